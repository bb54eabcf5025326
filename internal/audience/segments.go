// Package audience turns a campaign's target specification into a concrete
// list of user ids at send time.
package audience

import "time"

// Named segments, evaluated against user activity history. Every segment
// additionally requires a channel address.
const (
	SegmentAll        = "all"
	SegmentActive     = "active"
	SegmentNewUsers   = "new_users"
	SegmentAtRisk     = "at_risk"
	SegmentChurned    = "churned"
	SegmentPowerUsers = "power_users"
)

// PowerUserMinEvents is the activity floor for power_users within the
// 30-day window.
const PowerUserMinEvents = 50

var segments = map[string]bool{
	SegmentAll:        true,
	SegmentActive:     true,
	SegmentNewUsers:   true,
	SegmentAtRisk:     true,
	SegmentChurned:    true,
	SegmentPowerUsers: true,
}

func ValidSegment(name string) bool {
	return segments[name]
}

// Windows holds the cutoff instants every segment predicate binds against.
// Computing them once from an explicit reference time keeps resolution a
// pure function of the underlying data: same data + same now, same set.
type Windows struct {
	// Recent is now-30d: activity after this counts as recent (active,
	// power_users) and accounts created after it count as new.
	Recent time.Time
	// Stale is now-60d: last activity before this means churned; last
	// activity strictly between Stale and Recent means at_risk.
	Stale time.Time
}

func WindowsAt(now time.Time) Windows {
	return Windows{
		Recent: now.AddDate(0, 0, -30),
		Stale:  now.AddDate(0, 0, -60),
	}
}
