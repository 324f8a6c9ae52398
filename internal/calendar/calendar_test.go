package calendar

import (
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/marquee/internal/model"
)

func TestExportRecurring(t *testing.T) {
	end := model.Date{Year: 2024, Month: 1, Day: 10}
	s := model.Schedule{
		ID:     3,
		Name:   "Lunch menu",
		Target: model.InGroup(2),
		Start:  time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC),
		End:    time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC),
		Recurrence: &model.Recurrence{
			Pattern:   model.PatternWeekly,
			DateStart: model.Date{Year: 2024, Month: 1, Day: 1},
			DateEnd:   &end,
			Weekdays:  []model.Weekday{model.Monday, model.Wednesday},
		},
	}

	out, err := Export(s, 366, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	cal, err := ical.ParseCalendar(strings.NewReader(out))
	require.NoError(t, err)
	events := cal.Events()
	require.Len(t, events, 4)

	first, err := events[0].GetStartAt()
	require.NoError(t, err)
	assert.True(t, first.Equal(time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)), first)
	last, err := events[3].GetEndAt()
	require.NoError(t, err)
	assert.True(t, last.Equal(time.Date(2024, 1, 10, 13, 0, 0, 0, time.UTC)), last)
	assert.Equal(t, "Lunch menu", events[1].GetProperty(ical.ComponentPropertySummary).Value)
}

func TestWindowsPrefersDays(t *testing.T) {
	s := model.Schedule{
		Start: time.Date(2024, 1, 1, 22, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC),
		Days: []model.ScheduleDay{
			{Date: model.Date{Year: 2024, Month: 2, Day: 3}},
		},
		Recurrence: &model.Recurrence{Pattern: model.PatternDaily, DateStart: model.Date{Year: 2024, Month: 1, Day: 1}},
	}
	ws, err := Windows(s, 30)
	require.NoError(t, err)
	require.Len(t, ws, 1)
	assert.WithinDuration(t, time.Date(2024, 2, 4, 2, 0, 0, 0, time.UTC), ws[0].End, 0)
}

func TestExportSingle(t *testing.T) {
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	out, err := Export(model.Schedule{ID: 1, Name: "Once", Target: model.AllLocations(), Start: start, End: start.Add(time.Hour)}, 30, start)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "BEGIN:VEVENT"))
	assert.Contains(t, out, "PRODID:"+productID)
}
