// exposes a Store interface that is passed to API calls w/ param requirements
package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Nixie-Tech-LLC/marquee/internal/model"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrInUse    = errors.New("record is still referenced")
)

type Store interface {
	// catalog
	ListLocations(ctx context.Context) ([]model.Location, error)
	ListMonitors(ctx context.Context) ([]model.Monitor, error)
	ListGroups(ctx context.Context) ([]model.MonitorGroup, error)
	ListContents(ctx context.Context) ([]model.Content, error)

	// templates
	ListTemplates(ctx context.Context) ([]model.Template, error)
	GetTemplate(ctx context.Context, id int) (model.Template, error)
	CreateTemplate(ctx context.Context, t model.Template) (model.Template, error)
	ReplaceTemplate(ctx context.Context, id int, t model.Template) (model.Template, error)
	DeleteTemplate(ctx context.Context, id int) error

	// schedules
	ListSchedules(ctx context.Context) ([]model.Schedule, error)
	GetSchedule(ctx context.Context, id int) (model.Schedule, error)
	SchedulesOn(ctx context.Context, day model.Date) ([]model.Schedule, error)
	// CreateScheduleChecked inserts s unless it overlaps an existing
	// schedule, in which case the overlapping schedules are returned and
	// nothing is written.
	CreateScheduleChecked(ctx context.Context, s model.Schedule) (model.Schedule, []model.Schedule, error)
	// UpdateSchedulesChecked updates items with an id and inserts the rest,
	// all or nothing.
	UpdateSchedulesChecked(ctx context.Context, batch []model.Schedule) ([]model.Schedule, []model.Schedule, error)
	DeleteSchedule(ctx context.Context, id int) (model.Schedule, error)
}

type pgStore struct {
	db  *sqlx.DB
	loc *time.Location
}

// compile-time check that pgStore implements Store
var _ Store = (*pgStore)(nil)

// NewStore wraps db. loc is the zone days and recurring wall clocks are read
// in; nil means time.Local.
func NewStore(db *sqlx.DB, loc *time.Location) Store {
	if loc == nil {
		loc = time.Local
	}
	return &pgStore{db: db, loc: loc}
}

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23503" {
		return ErrInUse
	}
	return err
}
