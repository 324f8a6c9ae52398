package db

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/marquee/internal/model"
)

func newMock(t *testing.T) (Store, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return NewStore(sqlx.NewDb(raw, "postgres"), time.UTC), mock
}

var scheduleCols = []string{
	"id", "name", "description", "content_id", "template_id",
	"all_locations", "all_monitors", "location_id", "group_id", "monitor_ids",
	"start_ts", "end_ts", "priority",
	"recurrence_pattern", "recurrence_date_start", "recurrence_date_end",
	"recurrence_weekdays", "recurrence_month_day", "recurrence_exceptions",
	"series_id", "created_at", "updated_at",
}

func scheduleValues(id int, name string, monitorIDs string, start, end time.Time) []driver.Value {
	now := time.Now()
	return []driver.Value{
		id, name, nil, 7, nil,
		false, false, nil, nil, []byte(monitorIDs),
		start, end, 0,
		nil, nil, nil,
		nil, nil, nil,
		nil, now, now,
	}
}

func expectLockedState(mock sqlmock.Sqlmock, existing *sqlmock.Rows, withDays bool) {
	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM monitors").WillReturnRows(
		sqlmock.NewRows([]string{"id", "name", "status", "group_id", "location_id", "created_at"}).
			AddRow(1, "lobby", "online", 1, 1, time.Now()).
			AddRow(2, "cafe", "online", nil, 2, time.Now()))
	mock.ExpectQuery("FROM schedules ORDER BY id").WillReturnRows(existing)
	if withDays {
		mock.ExpectQuery("FROM schedule_days").WillReturnRows(sqlmock.NewRows([]string{"id", "schedule_id", "date"}))
	}
}

func at(hour, minute int) time.Time {
	return time.Date(2024, 5, 6, hour, minute, 0, 0, time.UTC)
}

func TestCreateScheduleChecked(t *testing.T) {
	ctx := context.Background()
	candidate := model.Schedule{Name: "promo", ContentID: intPtr(7), Target: model.InGroup(1), Start: at(10, 30), End: at(11, 30)}

	t.Run("conflict", func(t *testing.T) {
		store, mock := newMock(t)
		expectLockedState(mock, sqlmock.NewRows(scheduleCols).AddRow(scheduleValues(4, "existing", "{1}", at(10, 0), at(11, 0))...), true)
		mock.ExpectRollback()

		_, conflicts, err := store.CreateScheduleChecked(ctx, candidate)
		require.NoError(t, err)
		require.Len(t, conflicts, 1)
		assert.Equal(t, 4, conflicts[0].ID)
		assert.Equal(t, []int{1}, conflicts[0].Target.MonitorIDs())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("other device", func(t *testing.T) {
		store, mock := newMock(t)
		expectLockedState(mock, sqlmock.NewRows(scheduleCols).AddRow(scheduleValues(4, "existing", "{2}", at(10, 0), at(11, 0))...), true)
		mock.ExpectQuery("INSERT INTO schedules").
			WillReturnRows(sqlmock.NewRows(scheduleCols).AddRow(scheduleValues(5, "promo", "{1}", at(10, 30), at(11, 30))...))
		mock.ExpectExec("DELETE FROM schedule_days").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		saved, conflicts, err := store.CreateScheduleChecked(ctx, candidate)
		require.NoError(t, err)
		assert.Empty(t, conflicts)
		assert.Equal(t, 5, saved.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUpdateSchedulesChecked(t *testing.T) {
	ctx := context.Background()

	t.Run("batch overlaps itself", func(t *testing.T) {
		store, mock := newMock(t)
		expectLockedState(mock, sqlmock.NewRows(scheduleCols).AddRow(scheduleValues(4, "existing", "{1}", at(10, 0), at(11, 0))...), true)
		mock.ExpectRollback()

		batch := []model.Schedule{
			{ID: 4, Name: "existing", ContentID: intPtr(7), Target: model.OnMonitors(1), Start: at(10, 0), End: at(11, 0)},
			{Name: "new", ContentID: intPtr(7), Target: model.OnMonitors(1), Start: at(10, 45), End: at(11, 15)},
		}
		_, conflicts, err := store.UpdateSchedulesChecked(ctx, batch)
		require.NoError(t, err)
		assert.Len(t, conflicts, 2)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown id", func(t *testing.T) {
		store, mock := newMock(t)
		expectLockedState(mock, sqlmock.NewRows(scheduleCols), false)
		mock.ExpectRollback()

		_, _, err := store.UpdateSchedulesChecked(ctx, []model.Schedule{{ID: 99, Target: model.AllLocations(), Start: at(9, 0), End: at(10, 0)}})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestListTemplates(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery("FROM templates").WillReturnRows(
		sqlmock.NewRows([]string{"id", "name", "description", "created_at", "updated_at"}).
			AddRow(1, "weekday", "", now, now))
	mock.ExpectQuery("FROM template_blocks").WillReturnRows(
		sqlmock.NewRows([]string{"id", "template_id", "name", "start_time", "end_time", "position"}).
			AddRow(10, 1, "morning", "08:00", "09:00", 0).
			AddRow(11, 1, "noon", "12:00", "13:00", 1))
	mock.ExpectQuery("FROM template_block_contents").WillReturnRows(
		sqlmock.NewRows([]string{"id", "block_id", "content_id", "duration", "position"}).
			AddRow(100, 10, 5, 30, 0).
			AddRow(101, 10, 6, 15, 1))

	ts, err := store.ListTemplates(context.Background())
	require.NoError(t, err)
	require.Len(t, ts, 1)
	require.Len(t, ts[0].Blocks, 2)
	assert.Len(t, ts[0].Blocks[0].Contents, 2)
	assert.Equal(t, 6, ts[0].Blocks[0].Contents[1].ContentID)
	assert.Empty(t, ts[0].Blocks[1].Contents)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteTemplateMissing(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec("DELETE FROM templates").WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, store.DeleteTemplate(context.Background(), 3), ErrNotFound)
}

func intPtr(v int) *int { return &v }
