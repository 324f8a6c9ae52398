package conflict

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/marquee/internal/model"
)

func intPtr(v int) *int { return &v }

var monitors = []model.Monitor{
	{ID: 1, GroupID: intPtr(1), LocationID: intPtr(1)},
	{ID: 2, GroupID: intPtr(1), LocationID: intPtr(2)},
	{ID: 3, LocationID: intPtr(2)},
}

func at(hour, minute int) time.Time {
	return time.Date(2024, 5, 6, hour, minute, 0, 0, time.UTC)
}

func sched(id int, tgt model.Target, start, end time.Time) model.Schedule {
	return model.Schedule{ID: id, Name: "s", ContentID: intPtr(7), Target: tgt, Start: start, End: end}
}

func TestDetector(t *testing.T) {
	d := NewDetector(monitors)
	a := sched(1, model.OnMonitors(1), at(10, 0), at(11, 0))
	b := sched(2, model.InGroup(1), at(10, 30), at(11, 30))

	t.Run("same device overlapping", func(t *testing.T) {
		assert.True(t, d.Overlaps(a, b))
		assert.Equal(t, []model.Schedule{b}, d.Conflicts(a, []model.Schedule{a, b}))
	})

	t.Run("touching windows", func(t *testing.T) {
		c := sched(3, model.OnMonitors(1), at(11, 0), at(12, 0))
		assert.False(t, d.Overlaps(a, c))
	})

	t.Run("disjoint devices", func(t *testing.T) {
		c := sched(3, model.OnMonitors(3), at(10, 0), at(11, 0))
		assert.False(t, d.Overlaps(a, c))
		assert.True(t, d.Overlaps(c, sched(4, model.AtLocation(2), at(10, 59), at(12, 0))))
	})

	t.Run("materialized days", func(t *testing.T) {
		day := func(s string) model.ScheduleDay {
			dt, err := model.ParseDate(s)
			require.NoError(t, err)
			return model.ScheduleDay{Date: dt}
		}
		r := sched(5, model.OnMonitors(1), at(10, 30), at(10, 45))
		r.Days = []model.ScheduleDay{day("2024-05-07"), day("2024-05-08")}
		assert.False(t, d.Overlaps(a, r))

		r.Days = append(r.Days, day("2024-05-06"))
		assert.True(t, d.Overlaps(a, r))
	})

	t.Run("pairs", func(t *testing.T) {
		assert.Equal(t, [][2]int{{0, 1}}, d.Pairs([]model.Schedule{a, b, sched(9, model.OnMonitors(3), at(10, 0), at(11, 0))}))
	})
}

type fakeUpdater struct {
	responses []*model.ConflictResponse
	errs      []error
	batches   [][]model.Schedule
}

func (f *fakeUpdater) BulkUpdateSchedules(_ context.Context, batch []model.Schedule) (*model.ConflictResponse, error) {
	f.batches = append(f.batches, batch)
	n := len(f.batches) - 1
	if n < len(f.errs) && f.errs[n] != nil {
		return nil, f.errs[n]
	}
	if n < len(f.responses) {
		return f.responses[n], nil
	}
	return nil, nil
}

func TestSession(t *testing.T) {
	d := NewDetector(monitors)
	existing := sched(1, model.OnMonitors(1), at(10, 0), at(11, 0))
	attempted := sched(0, model.OnMonitors(1), at(10, 30), at(11, 30))
	resp := model.ConflictResponse{Error: model.ConflictWithExisting, Conflicts: []model.Schedule{existing}}

	t.Run("resolve by shortening", func(t *testing.T) {
		s := NewSession()
		require.NoError(t, s.Begin(attempted, resp))
		assert.Equal(t, Resolving, s.State())

		items := s.Items()
		require.Len(t, items, 2)
		assert.True(t, items[0].IsNew())
		assert.Equal(t, 60, items[1].DurationMinutes())
		assert.Len(t, s.Remaining(d), 1)

		require.NoError(t, s.SetDuration(1, 30))
		assert.WithinDuration(t, at(10, 30), s.Items()[1].End(), 0)
		assert.Empty(t, s.Remaining(d))

		require.NoError(t, s.SetPriority(0, 5))
		u := &fakeUpdater{}
		ok, err := s.Apply(context.Background(), u)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, Proposing, s.State())
		assert.Empty(t, s.Items())

		require.Len(t, u.batches, 1)
		assert.Equal(t, 0, u.batches[0][0].ID)
		assert.Equal(t, 5, u.batches[0][0].Priority)
		assert.WithinDuration(t, at(10, 30), u.batches[0][1].End, 0)
	})

	t.Run("edits rejected outside resolving", func(t *testing.T) {
		s := NewSession()
		assert.ErrorIs(t, s.SetDuration(0, 10), ErrNotResolving)
		_, err := s.Apply(context.Background(), &fakeUpdater{})
		assert.ErrorIs(t, err, ErrNotResolving)

		require.NoError(t, s.Begin(attempted, resp))
		assert.ErrorIs(t, s.Begin(attempted, resp), ErrNotProposing)
		assert.ErrorIs(t, s.SetDuration(0, 0), ErrBadDuration)
		assert.ErrorIs(t, s.SetPriority(7, 1), ErrOutOfRange)
	})

	t.Run("second conflict restarts", func(t *testing.T) {
		other := sched(8, model.AtLocation(1), at(9, 0), at(12, 0))
		u := &fakeUpdater{responses: []*model.ConflictResponse{
			{Error: model.ConflictWithExisting, Conflicts: []model.Schedule{existing, other}},
		}}
		s := NewSession()
		require.NoError(t, s.Begin(attempted, resp))
		require.NoError(t, s.SetDuration(0, 15))

		ok, err := s.Apply(context.Background(), u)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, Resolving, s.State())
		assert.Equal(t, 1, s.Attempts())

		items := s.Items()
		require.Len(t, items, 3)
		assert.Equal(t, 15, items[0].DurationMinutes())
		assert.Equal(t, 8, items[2].ID())
	})

	t.Run("transport error keeps state", func(t *testing.T) {
		u := &fakeUpdater{errs: []error{errors.New("boom")}}
		s := NewSession()
		require.NoError(t, s.Begin(attempted, resp))
		_, err := s.Apply(context.Background(), u)
		assert.Error(t, err)
		assert.Equal(t, Resolving, s.State())
		assert.Len(t, s.Items(), 2)
	})

	t.Run("attempt bound", func(t *testing.T) {
		u := &fakeUpdater{responses: []*model.ConflictResponse{&resp, &resp}}
		s := NewSession()
		s.MaxAttempts = 2
		require.NoError(t, s.Begin(attempted, resp))
		_, err := s.Apply(context.Background(), u)
		require.NoError(t, err)
		_, err = s.Apply(context.Background(), u)
		assert.ErrorIs(t, err, ErrTooManyAttempts)
		assert.Equal(t, Proposing, s.State())
	})

	t.Run("cancel discards", func(t *testing.T) {
		s := NewSession()
		require.NoError(t, s.Begin(attempted, resp))
		s.Cancel()
		assert.Equal(t, Proposing, s.State())
		assert.Empty(t, s.Items())
	})
}

func TestZeroDetectorReportsNothing(t *testing.T) {
	var d Detector
	a := sched(1, model.OnMonitors(1), at(10, 0), at(11, 0))
	b := sched(2, model.OnMonitors(1), at(10, 30), at(11, 30))
	assert.False(t, d.Overlaps(a, b))
	assert.Empty(t, d.Pairs([]model.Schedule{a, b}))
}

func TestDetectorLocationFollowsDST(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	winter := time.FixedZone("", 60*60)

	// stored before the change, decoded with a fixed +01:00 offset
	series := sched(1, model.OnMonitors(1),
		time.Date(2024, 3, 28, 9, 0, 0, 0, winter), time.Date(2024, 3, 28, 10, 0, 0, 0, winter))
	series.Days = []model.ScheduleDay{{Date: model.Date{Year: 2024, Month: 4, Day: 1}}}
	single := sched(2, model.OnMonitors(1),
		time.Date(2024, 4, 1, 9, 30, 0, 0, berlin), time.Date(2024, 4, 1, 10, 0, 0, 0, berlin))

	fixed := NewDetector(monitors)
	assert.False(t, fixed.Overlaps(series, single))

	zoned := NewDetector(monitors)
	zoned.Location = berlin
	assert.True(t, zoned.Overlaps(series, single))

	w := WindowsIn(series, berlin)
	require.Len(t, w, 1)
	assert.Equal(t, "2024-04-01T09:00:00+02:00", w[0].Start.Format(time.RFC3339))
}

func TestSessionKeepsUntouchedEnds(t *testing.T) {
	existing := sched(1, model.OnMonitors(1), at(10, 0), at(10, 59).Add(30*time.Second))
	attempted := sched(0, model.OnMonitors(1), at(10, 30), at(11, 30))
	s := NewSession()
	require.NoError(t, s.Begin(attempted, model.ConflictResponse{
		Error: model.ConflictWithExisting, Conflicts: []model.Schedule{existing},
	}))
	assert.Equal(t, 60, s.Items()[1].DurationMinutes())

	require.NoError(t, s.SetDuration(0, 45))
	u := &fakeUpdater{}
	ok, err := s.Apply(context.Background(), u)
	require.NoError(t, err)
	assert.True(t, ok)

	require.Len(t, u.batches, 1)
	assert.True(t, at(11, 15).Equal(u.batches[0][0].End))
	assert.True(t, existing.End.Equal(u.batches[0][1].End), "untouched end rewritten to %s", u.batches[0][1].End)
}
