package decision_test

import (
	"testing"

	"curator/internal/decision"
)

func TestDecide(t *testing.T) {
	cases := []struct {
		name     string
		input    decision.Input
		expected decision.Route
	}{
		{
			name:     "high confidence auto mode imports",
			input:    decision.Input{Confidence: 0.9, AutoMode: true, Threshold: 0.7},
			expected: decision.RouteAutoImport,
		},
		{
			name:     "confidence at threshold imports",
			input:    decision.Input{Confidence: 0.7, AutoMode: true, Threshold: 0.7},
			expected: decision.RouteAutoImport,
		},
		{
			name:     "below threshold goes to review",
			input:    decision.Input{Confidence: 0.69, AutoMode: true, Threshold: 0.7},
			expected: decision.RouteLowConfidence,
		},
		{
			name:     "manual mode always reviews",
			input:    decision.Input{Confidence: 0.99, AutoMode: false, Threshold: 0.7},
			expected: decision.RouteLowConfidence,
		},
		{
			name:     "duplicate beats confidence",
			input:    decision.Input{Confidence: 0.99, Duplicate: true, AutoMode: true, Threshold: 0.7},
			expected: decision.RouteDuplicate,
		},
		{
			name:     "duplicate beats manual review",
			input:    decision.Input{Confidence: 0.1, Duplicate: true, AutoMode: false, Threshold: 0.7},
			expected: decision.RouteDuplicate,
		},
		{
			name:     "error beats everything",
			input:    decision.Input{Confidence: 0.99, Duplicate: true, AutoMode: true, HadError: true, Threshold: 0.7},
			expected: decision.RouteFailed,
		},
		{
			name:     "zero threshold imports anything in auto mode",
			input:    decision.Input{Confidence: 0, AutoMode: true, Threshold: 0},
			expected: decision.RouteAutoImport,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := decision.Decide(tc.input); got != tc.expected {
				t.Fatalf("Decide(%#v) = %s, want %s", tc.input, got, tc.expected)
			}
		})
	}
}
