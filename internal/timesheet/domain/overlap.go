package domain

import "time"

// Range is a half-open time interval [From, To).
type Range struct {
	From time.Time
	To   time.Time
}

// Overlaps reports whether r and o intersect. Touching endpoints do not.
func (r Range) Overlaps(o Range) bool {
	return r.From.Before(o.To) && o.From.Before(r.To)
}

// Duration returns the length of the range.
func (r Range) Duration() time.Duration {
	return r.To.Sub(r.From)
}

// FindOverlap returns the first entry whose range intersects candidate,
// ignoring the entry with id skipID.
func FindOverlap(candidate Range, entries []*TimeEntry, skipID string) *TimeEntry {
	for _, e := range entries {
		if skipID != "" && e.ID == skipID {
			continue
		}
		if candidate.Overlaps(e.Range()) {
			return e
		}
	}
	return nil
}
