package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/marquee/internal/model"
	"github.com/Nixie-Tech-LLC/marquee/internal/scheduling/conflict"
)

const weeklyDraft = `
name: Breakfast
contentId: 5
target:
  groupId: 2
startTime: "2024-01-01T10:00"
endTime: "2024-01-01T11:00"
recurrence:
  pattern: weekly
  dateStart: 2024-01-01
  dateEnd: 2024-01-10
  weekdays: [1, 3]
`

func TestParseDraft(t *testing.T) {
	d, err := parseDraft([]byte(weeklyDraft))
	require.NoError(t, err)
	assert.Equal(t, "Breakfast", d.Name)
	require.NotNil(t, d.ContentID)
	assert.Equal(t, 5, *d.ContentID)
	id, ok := d.Target.GroupID()
	assert.True(t, ok)
	assert.Equal(t, 2, id)
	require.NotNil(t, d.Recurrence)
	assert.Equal(t, model.PatternWeekly, d.Recurrence.Pattern)
	assert.Equal(t, "2024-01-10", d.Recurrence.DateEnd.String())
	assert.Equal(t, []model.Weekday{model.Monday, model.Wednesday}, d.Recurrence.Weekdays)

	_, err = parseDraft([]byte("name: x\ntarget:\n  groupId: 1\n  locationId: 2\n"))
	assert.ErrorIs(t, err, model.ErrAmbiguousTarget)
}

func TestParseTemplate(t *testing.T) {
	tpl, err := parseTemplate([]byte(`
name: Weekday
blocks:
  - name: morning
    startTime: "08:00"
    endTime: "12:00"
    contents:
      - {contentId: 1, duration: 30}
      - {contentId: 2, duration: 15}
`))
	require.NoError(t, err)
	require.Len(t, tpl.Blocks, 1)
	assert.Equal(t, 1, tpl.Blocks[0].Contents[1].Position)
	assert.Equal(t, 15, tpl.Blocks[0].Contents[1].Duration)
}

type batchRecorder struct {
	calls   [][]model.Schedule
	answers []*model.ConflictResponse
}

func (b *batchRecorder) BulkUpdateSchedules(_ context.Context, batch []model.Schedule) (*model.ConflictResponse, error) {
	b.calls = append(b.calls, batch)
	if len(b.answers) == 0 {
		return nil, nil
	}
	resp := b.answers[0]
	b.answers = b.answers[1:]
	return resp, nil
}

func TestResolverShortensAndApplies(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	attempted := model.Schedule{Name: "new", ContentID: intPtr(1), Target: model.OnMonitors(1), Start: start, End: start.Add(time.Hour)}
	existing := model.Schedule{ID: 8, Name: "old", ContentID: intPtr(1), Target: model.OnMonitors(1), Start: start.Add(30 * time.Minute), End: start.Add(90 * time.Minute)}

	s := conflict.NewSession()
	require.NoError(t, s.Begin(attempted, model.ConflictResponse{Error: model.ConflictWithExisting, Conflicts: []model.Schedule{existing}}))

	var out bytes.Buffer
	store := &batchRecorder{}
	r := &resolver{
		in:       bufio.NewScanner(strings.NewReader("d 0 0\nd 0 30\na\n")),
		out:      &out,
		loc:      time.UTC,
		detector: conflict.NewDetector([]model.Monitor{{ID: 1}}),
		store:    store,
	}
	done, err := r.run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Contains(t, out.String(), "items 0 and 1 still overlap")
	assert.Contains(t, out.String(), "error:")
	require.Len(t, store.calls, 1)
	assert.WithinDuration(t, start.Add(30*time.Minute), store.calls[0][0].End, 0)
	assert.Equal(t, 8, store.calls[0][1].ID)
	assert.Equal(t, conflict.Proposing, s.State())
}

func TestResolverCancelOnEOF(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	s := conflict.NewSession()
	require.NoError(t, s.Begin(
		model.Schedule{Name: "new", Target: model.OnMonitors(1), Start: start, End: start.Add(time.Hour)},
		model.ConflictResponse{Error: model.ConflictWithExisting, Conflicts: []model.Schedule{{ID: 3, Name: "old", Target: model.OnMonitors(1), Start: start, End: start.Add(time.Hour)}}},
	))
	var out bytes.Buffer
	r := &resolver{
		in:       bufio.NewScanner(strings.NewReader("")),
		out:      &out,
		loc:      time.UTC,
		detector: conflict.NewDetector([]model.Monitor{{ID: 1}}),
		store:    &batchRecorder{},
	}
	done, err := r.run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, conflict.Proposing, s.State())
	assert.Contains(t, out.String(), "items 0 and 1 still overlap")
}

func TestResolverWithoutDevicesShowsNoOverlap(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	s := conflict.NewSession()
	require.NoError(t, s.Begin(
		model.Schedule{Name: "new", Target: model.OnMonitors(1), Start: start, End: start.Add(time.Hour)},
		model.ConflictResponse{Error: model.ConflictWithExisting, Conflicts: []model.Schedule{{ID: 3, Name: "old", Target: model.OnMonitors(1), Start: start, End: start.Add(time.Hour)}}},
	))
	var out bytes.Buffer
	r := &resolver{in: bufio.NewScanner(strings.NewReader("")), out: &out, loc: time.UTC, store: &batchRecorder{}}
	done, err := r.run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, done)
	assert.NotContains(t, out.String(), "still overlap")
}

func intPtr(v int) *int { return &v }

// fakeServer answers the create flow: every POST conflicts with schedule 8,
// bulk updates are accepted.
func fakeServer(t *testing.T) (*httptest.Server, *[][]model.Schedule) {
	t.Helper()
	var mu sync.Mutex
	var bulk [][]model.Schedule
	existing := model.Schedule{
		ID: 8, Name: "old", ContentID: intPtr(5), Target: model.OnMonitors(1),
		Start: time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 1, 11, 30, 0, 0, time.UTC),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/monitors":
			_ = json.NewEncoder(w).Encode([]model.Monitor{{ID: 1, GroupID: intPtr(2)}})
		case r.Method == http.MethodGet:
			_, _ = w.Write([]byte(`[]`))
		case r.Method == http.MethodPost && r.URL.Path == "/schedules":
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(model.ConflictResponse{Error: model.ConflictWithExisting, Conflicts: []model.Schedule{existing}})
		case r.Method == http.MethodPut && r.URL.Path == "/schedules/update":
			var batch []model.Schedule
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&batch))
			mu.Lock()
			bulk = append(bulk, batch)
			mu.Unlock()
			_, _ = w.Write([]byte(`{"schedules":[]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &bulk
}

func TestCreateResolvesInteractively(t *testing.T) {
	srv, bulk := fakeServer(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "draft.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: Breakfast
contentId: 5
target: {groupId: 2}
startTime: "2024-01-01T10:00"
endTime: "2024-01-01T11:00"
`), 0o600))

	var out bytes.Buffer
	a := &app{apiURL: srv.URL, timeout: 5 * time.Second, in: strings.NewReader("d 0 30\na\n"), out: &out}
	code := a.run(context.Background(), "create", []string{"-f", path, "-tz", "UTC"})

	assert.Equal(t, exitOK, code, out.String())
	assert.Contains(t, out.String(), "applied")
	require.Len(t, *bulk, 1)
	assert.Len(t, (*bulk)[0], 2)
	assert.True(t, (*bulk)[0][0].End.Equal(time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC)))
}

func TestCreateNoResolve(t *testing.T) {
	srv, bulk := fakeServer(t)
	var out bytes.Buffer
	a := &app{apiURL: srv.URL, timeout: 5 * time.Second, in: strings.NewReader(weeklyDraft), out: &out}

	code := a.run(context.Background(), "create", []string{"-f", "-", "-tz", "UTC", "-no-resolve"})
	assert.Equal(t, exitUnresolved, code, out.String())
	assert.Equal(t, 4, strings.Count(out.String(), "conflict \"Breakfast\" on"))
	assert.Contains(t, out.String(), "on 2024-01-08")

	a.in = strings.NewReader("")
	code = a.run(context.Background(), "create", []string{"-tz", "UTC", "-no-resolve"})
	assert.Equal(t, exitUsage, code)
	assert.Empty(t, *bulk)
}

func TestTemplateValidate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: Day
blocks:
  - {name: a, startTime: "08:00", endTime: "10:00", contents: [{contentId: 1, duration: 10}]}
  - {name: b, startTime: "09:00", endTime: "11:00", contents: [{contentId: 1, duration: 10}]}
`), 0o600))

	var out bytes.Buffer
	a := &app{out: &out}
	code := a.run(context.Background(), "template", []string{"validate", "-f", path})
	assert.Equal(t, exitError, code)
	assert.Contains(t, out.String(), "overlap")
}

func TestPushResubmitsEverySchedule(t *testing.T) {
	var got []model.Schedule
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/schedules":
			_, _ = w.Write([]byte(`{"data":[{"id":1,"name":"a","target":{"allLocations":true}},{"id":2,"name":"b","target":{"groupId":3}}]}`))
		case r.Method == http.MethodPut && r.URL.Path == "/schedules/update":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			_, _ = w.Write([]byte(`{"schedules":[]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	var out bytes.Buffer
	a := &app{apiURL: srv.URL, timeout: 5 * time.Second, out: &out}
	assert.Equal(t, exitOK, a.run(context.Background(), "push", nil))
	assert.Contains(t, out.String(), "pushed 2 schedules")
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[1].ID)
}
