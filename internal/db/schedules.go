package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/marquee/internal/model"
	"github.com/Nixie-Tech-LLC/marquee/internal/scheduling/conflict"
)

// scheduleLockKey serializes checked schedule writes across connections.
const scheduleLockKey = 0x6d61727175656501

const scheduleColumns = `id, name, description, content_id, template_id,
	all_locations, all_monitors, location_id, group_id, monitor_ids,
	start_ts, end_ts, priority,
	recurrence_pattern, recurrence_date_start, recurrence_date_end,
	recurrence_weekdays, recurrence_month_day, recurrence_exceptions,
	series_id, created_at, updated_at`

type scheduleRow struct {
	ID           int            `db:"id"`
	Name         string         `db:"name"`
	Description  *string        `db:"description"`
	ContentID    *int           `db:"content_id"`
	TemplateID   *int           `db:"template_id"`
	AllLocations bool           `db:"all_locations"`
	AllMonitors  bool           `db:"all_monitors"`
	LocationID   *int           `db:"location_id"`
	GroupID      *int           `db:"group_id"`
	MonitorIDs   pq.Int64Array  `db:"monitor_ids"`
	Start        time.Time      `db:"start_ts"`
	End          time.Time      `db:"end_ts"`
	Priority     int            `db:"priority"`
	Pattern      *string        `db:"recurrence_pattern"`
	DateStart    *time.Time     `db:"recurrence_date_start"`
	DateEnd      *time.Time     `db:"recurrence_date_end"`
	Weekdays     pq.Int64Array  `db:"recurrence_weekdays"`
	MonthDay     *int           `db:"recurrence_month_day"`
	Exceptions   pq.StringArray `db:"recurrence_exceptions"`
	SeriesID     *string        `db:"series_id"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func rowFromSchedule(s model.Schedule) scheduleRow {
	r := scheduleRow{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		ContentID:   s.ContentID,
		TemplateID:  s.TemplateID,
		Start:       s.Start,
		End:         s.End,
		Priority:    s.Priority,
		SeriesID:    s.SeriesID,
	}
	f := s.Target.Fields()
	r.AllLocations = f.AllLocations
	r.AllMonitors = f.AllMonitors
	r.LocationID = f.LocationID
	r.GroupID = f.GroupID
	if s.Target.Kind() == model.TargetMonitors && !f.AllMonitors {
		r.MonitorIDs = pq.Int64Array{}
		for _, id := range f.MonitorIDs {
			r.MonitorIDs = append(r.MonitorIDs, int64(id))
		}
	}
	if rc := s.Recurrence; rc != nil && rc.Pattern != "" {
		p := string(rc.Pattern)
		r.Pattern = &p
		if !rc.DateStart.IsZero() {
			ds := rc.DateStart.In(time.UTC)
			r.DateStart = &ds
		}
		if rc.DateEnd != nil {
			de := rc.DateEnd.In(time.UTC)
			r.DateEnd = &de
		}
		for _, w := range rc.Weekdays {
			r.Weekdays = append(r.Weekdays, int64(w))
		}
		if rc.MonthDay != 0 {
			md := rc.MonthDay
			r.MonthDay = &md
		}
		for _, ex := range rc.Exceptions {
			r.Exceptions = append(r.Exceptions, ex.String())
		}
	}
	return r
}

func (r scheduleRow) schedule() (model.Schedule, error) {
	s := model.Schedule{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		ContentID:   r.ContentID,
		TemplateID:  r.TemplateID,
		Start:       r.Start,
		End:         r.End,
		Priority:    r.Priority,
		SeriesID:    r.SeriesID,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	f := model.TargetFields{
		AllLocations: r.AllLocations,
		AllMonitors:  r.AllMonitors,
		LocationID:   r.LocationID,
		GroupID:      r.GroupID,
	}
	for _, id := range r.MonitorIDs {
		f.MonitorIDs = append(f.MonitorIDs, int(id))
	}
	if r.MonitorIDs != nil && len(r.MonitorIDs) == 0 {
		// an explicit empty set stays a monitor target that selects nothing
		s.Target = model.OnMonitors()
	} else {
		tgt, err := f.Target()
		if err != nil {
			return model.Schedule{}, fmt.Errorf("schedule %d target: %w", r.ID, err)
		}
		s.Target = tgt
	}

	if r.Pattern != nil {
		rc := &model.Recurrence{Pattern: model.Pattern(*r.Pattern)}
		if r.DateStart != nil {
			rc.DateStart = model.DateOf(*r.DateStart)
		}
		if r.DateEnd != nil {
			de := model.DateOf(*r.DateEnd)
			rc.DateEnd = &de
		}
		for _, w := range r.Weekdays {
			rc.Weekdays = append(rc.Weekdays, model.Weekday(w))
		}
		if r.MonthDay != nil {
			rc.MonthDay = *r.MonthDay
		}
		for _, raw := range r.Exceptions {
			d, err := model.ParseDate(raw)
			if err != nil {
				return model.Schedule{}, fmt.Errorf("schedule %d exception: %w", r.ID, err)
			}
			rc.Exceptions = append(rc.Exceptions, d)
		}
		s.Recurrence = rc
	}
	return s, nil
}

func (r scheduleRow) args() []any {
	return []any{
		r.Name, r.Description, r.ContentID, r.TemplateID,
		r.AllLocations, r.AllMonitors, r.LocationID, r.GroupID, r.MonitorIDs,
		r.Start, r.End, r.Priority,
		r.Pattern, r.DateStart, r.DateEnd,
		r.Weekdays, r.MonthDay, r.Exceptions,
		r.SeriesID,
	}
}

const insertSchedule = `
	INSERT INTO schedules (name, description, content_id, template_id,
	  all_locations, all_monitors, location_id, group_id, monitor_ids,
	  start_ts, end_ts, priority,
	  recurrence_pattern, recurrence_date_start, recurrence_date_end,
	  recurrence_weekdays, recurrence_month_day, recurrence_exceptions,
	  series_id, created_at, updated_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,now(),now())
	RETURNING ` + scheduleColumns + `;`

const updateSchedule = `
	UPDATE schedules
	   SET name = $1, description = $2, content_id = $3, template_id = $4,
	       all_locations = $5, all_monitors = $6, location_id = $7, group_id = $8, monitor_ids = $9,
	       start_ts = $10, end_ts = $11, priority = $12,
	       recurrence_pattern = $13, recurrence_date_start = $14, recurrence_date_end = $15,
	       recurrence_weekdays = $16, recurrence_month_day = $17, recurrence_exceptions = $18,
	       series_id = $19, updated_at = now()
	 WHERE id = $20
	RETURNING ` + scheduleColumns + `;`

// selectSchedules runs q and attaches every row's materialized days.
func selectSchedules(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) ([]model.Schedule, error) {
	var rows []scheduleRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]model.Schedule, 0, len(rows))
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		s, err := r.schedule()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
		ids = append(ids, int64(r.ID))
	}
	if len(ids) == 0 {
		return out, nil
	}

	var days []model.ScheduleDay
	if err := sqlx.SelectContext(ctx, q, &days, `
	SELECT id, schedule_id, date
	  FROM schedule_days
	 WHERE schedule_id = ANY($1)
	 ORDER BY schedule_id, date;`, pq.Int64Array(ids)); err != nil {
		return nil, err
	}
	byID := make(map[int][]model.ScheduleDay)
	for _, d := range days {
		byID[d.ScheduleID] = append(byID[d.ScheduleID], d)
	}
	for i := range out {
		out[i].Days = byID[out[i].ID]
	}
	return out, nil
}

func (s *pgStore) ListSchedules(ctx context.Context) ([]model.Schedule, error) {
	out, err := selectSchedules(ctx, s.db, `SELECT `+scheduleColumns+` FROM schedules ORDER BY start_ts, id;`)
	if err != nil {
		log.Error().Err(err).Msg("ListSchedules failed")
		return nil, err
	}
	return out, nil
}

func (s *pgStore) GetSchedule(ctx context.Context, id int) (model.Schedule, error) {
	out, err := selectSchedules(ctx, s.db, `SELECT `+scheduleColumns+` FROM schedules WHERE id = $1;`, id)
	if err != nil {
		log.Error().Err(err).Int("schedule_id", id).Msg("GetSchedule failed")
		return model.Schedule{}, err
	}
	if len(out) == 0 {
		return model.Schedule{}, ErrNotFound
	}
	return out[0], nil
}

// SchedulesOn returns schedules that play at some point on day, where day
// is taken in the store's zone.
func (s *pgStore) SchedulesOn(ctx context.Context, day model.Date) ([]model.Schedule, error) {
	from := day.In(s.loc)
	to := day.AddDays(1).In(s.loc)
	out, err := selectSchedules(ctx, s.db, `
	SELECT `+scheduleColumns+`
	  FROM schedules s
	 WHERE (start_ts < $2 AND end_ts > $1
	        AND NOT EXISTS (SELECT 1 FROM schedule_days d WHERE d.schedule_id = s.id))
	    OR EXISTS (SELECT 1 FROM schedule_days d WHERE d.schedule_id = s.id AND d.date = $3)
	 ORDER BY priority DESC, start_ts, id;`, from, to, day)
	if err != nil {
		log.Error().Err(err).Str("day", day.String()).Msg("SchedulesOn failed")
		return nil, err
	}
	return out, nil
}

// lockedState takes the schedule write lock and loads what overlap
// detection needs.
func (s *pgStore) lockedState(ctx context.Context, tx *sqlx.Tx) (conflict.Detector, []model.Schedule, error) {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1);`, int64(scheduleLockKey)); err != nil {
		return conflict.Detector{}, nil, fmt.Errorf("schedule lock: %w", err)
	}
	var monitors []model.Monitor
	if err := tx.SelectContext(ctx, &monitors, `SELECT id, name, status, group_id, location_id, created_at FROM monitors;`); err != nil {
		return conflict.Detector{}, nil, fmt.Errorf("load monitors: %w", err)
	}
	existing, err := selectSchedules(ctx, tx, `SELECT `+scheduleColumns+` FROM schedules ORDER BY id;`)
	if err != nil {
		return conflict.Detector{}, nil, fmt.Errorf("load schedules: %w", err)
	}
	det := conflict.NewDetector(monitors)
	det.Location = s.loc
	return det, existing, nil
}

func writeDays(ctx context.Context, tx *sqlx.Tx, id int, days []model.ScheduleDay) ([]model.ScheduleDay, error) {
	if _, err := tx.ExecContext(ctx, `DELETE FROM schedule_days WHERE schedule_id = $1;`, id); err != nil {
		return nil, err
	}
	if len(days) == 0 {
		return nil, nil
	}
	dates := make(pq.StringArray, len(days))
	for i, d := range days {
		dates[i] = d.Date.String()
	}
	var out []model.ScheduleDay
	err := tx.SelectContext(ctx, &out, `
	INSERT INTO schedule_days (schedule_id, date)
	SELECT $1, unnest($2::date[])
	ON CONFLICT DO NOTHING
	RETURNING id, schedule_id, date;`, id, dates)
	return out, err
}

func saveSchedule(ctx context.Context, tx *sqlx.Tx, s model.Schedule) (model.Schedule, error) {
	row := rowFromSchedule(s)
	var saved scheduleRow
	var err error
	if s.ID == 0 {
		err = tx.GetContext(ctx, &saved, insertSchedule, row.args()...)
	} else {
		err = tx.GetContext(ctx, &saved, updateSchedule, append(row.args(), s.ID)...)
	}
	if err != nil {
		return model.Schedule{}, translate(err)
	}
	out, err := saved.schedule()
	if err != nil {
		return model.Schedule{}, err
	}
	if out.Days, err = writeDays(ctx, tx, out.ID, s.Days); err != nil {
		return model.Schedule{}, fmt.Errorf("write days of schedule %d: %w", out.ID, err)
	}
	return out, nil
}

func (s *pgStore) CreateScheduleChecked(ctx context.Context, sc model.Schedule) (model.Schedule, []model.Schedule, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Schedule{}, nil, err
	}
	defer tx.Rollback()

	det, existing, err := s.lockedState(ctx, tx)
	if err != nil {
		log.Error().Err(err).Msg("CreateScheduleChecked failed")
		return model.Schedule{}, nil, err
	}
	sc.ID = 0
	if conflicts := det.Conflicts(sc, existing); len(conflicts) > 0 {
		return model.Schedule{}, conflicts, nil
	}
	saved, err := saveSchedule(ctx, tx, sc)
	if err != nil {
		log.Error().Err(err).Str("name", sc.Name).Msg("CreateScheduleChecked: insert failed")
		return model.Schedule{}, nil, err
	}
	if err := tx.Commit(); err != nil {
		return model.Schedule{}, nil, err
	}
	return saved, nil, nil
}

func (s *pgStore) UpdateSchedulesChecked(ctx context.Context, batch []model.Schedule) ([]model.Schedule, []model.Schedule, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	det, existing, err := s.lockedState(ctx, tx)
	if err != nil {
		log.Error().Err(err).Msg("UpdateSchedulesChecked failed")
		return nil, nil, err
	}

	inBatch := make(map[int]bool, len(batch))
	for _, sc := range batch {
		if sc.ID != 0 {
			inBatch[sc.ID] = true
		}
	}
	known := make(map[int]bool, len(existing))
	others := make([]model.Schedule, 0, len(existing))
	for _, e := range existing {
		known[e.ID] = true
		if !inBatch[e.ID] {
			others = append(others, e)
		}
	}
	for id := range inBatch {
		if !known[id] {
			return nil, nil, fmt.Errorf("schedule %d: %w", id, ErrNotFound)
		}
	}

	var conflicts []model.Schedule
	seen := make(map[int]bool)
	add := func(sc model.Schedule) {
		if sc.ID != 0 {
			if seen[sc.ID] {
				return
			}
			seen[sc.ID] = true
		}
		conflicts = append(conflicts, sc)
	}
	for _, sc := range batch {
		for _, c := range det.Conflicts(sc, others) {
			add(c)
		}
	}
	for _, p := range det.Pairs(batch) {
		add(batch[p[0]])
		add(batch[p[1]])
	}
	if len(conflicts) > 0 {
		return nil, conflicts, nil
	}

	saved := make([]model.Schedule, 0, len(batch))
	for _, sc := range batch {
		out, err := saveSchedule(ctx, tx, sc)
		if err != nil {
			log.Error().Err(err).Int("schedule_id", sc.ID).Msg("UpdateSchedulesChecked: write failed")
			return nil, nil, err
		}
		saved = append(saved, out)
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return saved, nil, nil
}

func (s *pgStore) DeleteSchedule(ctx context.Context, id int) (model.Schedule, error) {
	var row scheduleRow
	err := s.db.GetContext(ctx, &row, `DELETE FROM schedules WHERE id = $1 RETURNING `+scheduleColumns+`;`, id)
	if err != nil {
		err = translate(err)
		if !errors.Is(err, ErrNotFound) {
			log.Error().Err(err).Int("schedule_id", id).Msg("DeleteSchedule failed")
		}
		return model.Schedule{}, err
	}
	return row.schedule()
}
