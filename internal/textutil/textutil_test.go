package textutil_test

import (
	"testing"

	"curator/internal/textutil"
)

func TestSanitizeFileName(t *testing.T) {
	cases := []struct {
		input    string
		expected string
	}{
		{"A/B:C*D", "A-B-C-D"},
		{"What? \"Quotes\" <here>", "What Quotes here"},
		{"  padded  ", "padded"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := textutil.SanitizeFileName(tc.input); got != tc.expected {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func TestSanitizePathSegment(t *testing.T) {
	if got := textutil.SanitizePathSegment("..."); got != "unknown" {
		t.Errorf("expected unknown for unsafe segment, got %q", got)
	}
	if got := textutil.SanitizePathSegment("Live Sets"); got != "Live Sets" {
		t.Errorf("expected segment preserved, got %q", got)
	}
}

func TestNormalizeTitle(t *testing.T) {
	cases := []struct {
		input    string
		expected string
	}{
		{"my_cool-video.title", "My Cool Video Title"},
		{"already Clean", "Already Clean"},
		{"___", ""},
	}
	for _, tc := range cases {
		if got := textutil.NormalizeTitle(tc.input); got != tc.expected {
			t.Errorf("NormalizeTitle(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}
