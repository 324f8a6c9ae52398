// Package conflict detects overlapping schedules and drives the interactive
// resolution of a rejected submission.
package conflict

import (
	"time"

	"github.com/Nixie-Tech-LLC/marquee/internal/model"
	"github.com/Nixie-Tech-LLC/marquee/internal/scheduling/recurrence"
	"github.com/Nixie-Tech-LLC/marquee/internal/scheduling/target"
)

// Window is a half-open interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Overlaps uses half-open semantics: touching windows do not overlap.
func (w Window) Overlaps(o Window) bool {
	return w.End.After(o.Start) && o.End.After(w.Start)
}

// Windows returns the instants a schedule occupies. Schedules with
// materialized days occupy their time of day on each of those days, read in
// the zone of their start time.
func Windows(s model.Schedule) []Window {
	return WindowsIn(s, nil)
}

// WindowsIn is Windows with the daily time of day read in loc, so a series
// keeps its wall clock across DST changes. A nil loc uses the start's zone.
func WindowsIn(s model.Schedule, loc *time.Location) []Window {
	if len(s.Days) == 0 {
		return []Window{{Start: s.Start, End: s.End}}
	}
	start, end := s.Start, s.End
	if loc != nil {
		start, end = start.In(loc), end.In(loc)
	}
	out := make([]Window, 0, len(s.Days))
	for _, d := range s.Days {
		start, end := recurrence.Combine(d.Date, start, end)
		out = append(out, Window{Start: start, End: end})
	}
	return out
}

// Detector compares schedules against a device index. The zero value knows
// no monitors and so reports no overlaps. Location, when set, is the zone
// recurring schedules keep their wall clock in.
type Detector struct {
	Index    *target.Index
	Location *time.Location
}

func NewDetector(monitors []model.Monitor) Detector {
	return Detector{Index: target.NewIndex(monitors)}
}

// Overlaps reports whether a and b share a monitor and a moment in time.
func (d Detector) Overlaps(a, b model.Schedule) bool {
	if !d.timeOverlap(a, b) {
		return false
	}
	return d.Index.Intersects(a.Target, b.Target)
}

func (d Detector) timeOverlap(a, b model.Schedule) bool {
	wb := WindowsIn(b, d.Location)
	for _, x := range WindowsIn(a, d.Location) {
		for _, y := range wb {
			if x.Overlaps(y) {
				return true
			}
		}
	}
	return false
}

// Conflicts returns the schedules in existing that overlap candidate. A
// persisted candidate never conflicts with itself.
func (d Detector) Conflicts(candidate model.Schedule, existing []model.Schedule) []model.Schedule {
	var out []model.Schedule
	for _, e := range existing {
		if candidate.ID != 0 && e.ID == candidate.ID {
			continue
		}
		if d.Overlaps(candidate, e) {
			out = append(out, e)
		}
	}
	return out
}

// Pairs returns the index pairs of overlapping schedules within batch.
func (d Detector) Pairs(batch []model.Schedule) [][2]int {
	var out [][2]int
	for i := range batch {
		for j := i + 1; j < len(batch); j++ {
			if d.Overlaps(batch[i], batch[j]) {
				out = append(out, [2]int{i, j})
			}
		}
	}
	return out
}
