// Package calendar exports schedules as iCalendar documents.
package calendar

import (
	"fmt"
	"slices"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/Nixie-Tech-LLC/marquee/internal/model"
	"github.com/Nixie-Tech-LLC/marquee/internal/scheduling/conflict"
	"github.com/Nixie-Tech-LLC/marquee/internal/scheduling/recurrence"
)

const productID = "-//Nixie Tech//marquee//EN"

// Windows lists the concrete play windows of s. Materialized days win over a
// stored recurrence; an open-ended recurrence stops after horizonDays.
func Windows(s model.Schedule, horizonDays int) ([]conflict.Window, error) {
	if len(s.Days) > 0 || !s.Recurrence.Repeats() {
		return conflict.Windows(s), nil
	}
	dates, err := recurrence.Collect(*s.Recurrence, horizonDays)
	if err != nil {
		return nil, err
	}
	var out []conflict.Window
	for o := range recurrence.Occurrences(slices.Values(dates), s.Start, s.End) {
		out = append(out, conflict.Window{Start: o.Start, End: o.End})
	}
	return out, nil
}

// Export renders one VEVENT per window of s.
func Export(s model.Schedule, horizonDays int, stamp time.Time) (string, error) {
	windows, err := Windows(s, horizonDays)
	if err != nil {
		return "", fmt.Errorf("expand schedule %d: %w", s.ID, err)
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetName(s.Name)

	for i, w := range windows {
		ev := cal.AddEvent(fmt.Sprintf("schedule-%d-%d@marquee", s.ID, i))
		ev.SetDtStampTime(stamp.UTC())
		ev.SetStartAt(w.Start.UTC())
		ev.SetEndAt(w.End.UTC())
		ev.SetSummary(s.Name)
		if s.Description != nil && *s.Description != "" {
			ev.SetDescription(*s.Description)
		}
		ev.SetLocation(s.Target.String())
		if s.SeriesID != nil {
			ev.SetProperty(ical.ComponentPropertyRelatedTo, *s.SeriesID)
		}
	}
	return cal.Serialize(), nil
}
