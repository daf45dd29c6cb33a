// Package decision routes a classified candidate to its outcome. The router
// is pure: it looks at nothing but its input, so every path is table-testable.
package decision

// Route names the chosen outcome for a candidate.
type Route string

const (
	// RouteAutoImport commits the entry without review.
	RouteAutoImport Route = "auto_import"
	// RouteDuplicate files a duplicate inbox item; no entry is created.
	RouteDuplicate Route = "duplicate"
	// RouteLowConfidence files the candidate for human review.
	RouteLowConfidence Route = "low_confidence"
	// RouteFailed files a failed inbox item for a job that produced a
	// usable candidate before erroring.
	RouteFailed Route = "failed"
)

// Input is everything the router considers.
type Input struct {
	Confidence float64
	Duplicate  bool
	AutoMode   bool
	HadError   bool
	Threshold  float64
}

// Decide picks the route for a candidate. Priority order: errors beat
// duplicates, duplicates beat review, and only auto-mode imports with
// confidence at or above the threshold commit directly.
func Decide(input Input) Route {
	switch {
	case input.HadError:
		return RouteFailed
	case input.Duplicate:
		return RouteDuplicate
	case !input.AutoMode:
		return RouteLowConfidence
	case input.Confidence < input.Threshold:
		return RouteLowConfidence
	default:
		return RouteAutoImport
	}
}
