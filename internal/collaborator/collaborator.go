// Package collaborator declares the schedule store operations the
// scheduling core depends on.
package collaborator

import (
	"context"

	"github.com/Nixie-Tech-LLC/marquee/internal/model"
)

// CreateResult is the outcome of a schedule submission. Exactly one of
// Schedule and Conflict is set. A conflict is a domain result, not an error.
type CreateResult struct {
	Schedule *model.Schedule
	Conflict *model.ConflictResponse
}

func (r CreateResult) Conflicted() bool { return r.Conflict != nil }

type Catalog interface {
	ListLocations(ctx context.Context) ([]model.Location, error)
	ListDevices(ctx context.Context) ([]model.Monitor, error)
	ListContents(ctx context.Context) ([]model.Content, error)
	ListTemplates(ctx context.Context) ([]model.Template, error)
	ListSchedules(ctx context.Context) ([]model.Schedule, error)
}

type Collaborator interface {
	Catalog

	CreateSchedule(ctx context.Context, s model.Schedule) (CreateResult, error)
	// BulkUpdateSchedules updates schedules with an id and creates the rest.
	// A non-nil response means the whole batch was rejected.
	BulkUpdateSchedules(ctx context.Context, schedules []model.Schedule) (*model.ConflictResponse, error)
	DeleteSchedule(ctx context.Context, id int) error

	CreateTemplate(ctx context.Context, t model.Template) (model.Template, error)
	UpdateTemplate(ctx context.Context, id int, t model.Template) (model.Template, error)
	DeleteTemplate(ctx context.Context, id int) error
}
