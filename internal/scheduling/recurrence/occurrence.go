package recurrence

import (
	"iter"
	"time"

	"github.com/Nixie-Tech-LLC/marquee/internal/model"
)

// Occurrence is one dated instance of a recurring window.
type Occurrence struct {
	Date  model.Date
	Start time.Time
	End   time.Time
}

// Combine places the time of day of start and end on d. An end clock that is
// not after the start clock rolls over to the next day.
func Combine(d model.Date, start, end time.Time) (time.Time, time.Time) {
	s := atClock(d, start)
	e := atClock(d, end)
	if !e.After(s) {
		e = atClock(d.AddDays(1), end)
	}
	return s, e
}

func atClock(d model.Date, clock time.Time) time.Time {
	h, m, sec := clock.Clock()
	return time.Date(d.Year, d.Month, d.Day, h, m, sec, clock.Nanosecond(), clock.Location())
}

// Occurrences pairs every date in dates with the window [start, end) moved
// onto that date.
func Occurrences(dates iter.Seq[model.Date], start, end time.Time) iter.Seq[Occurrence] {
	return func(yield func(Occurrence) bool) {
		for d := range dates {
			s, e := Combine(d, start, end)
			if !yield(Occurrence{Date: d, Start: s, End: e}) {
				return
			}
		}
	}
}
