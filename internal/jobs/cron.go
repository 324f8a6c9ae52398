package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const refreshTimeout = 30 * time.Second

type Runner struct {
	c *cron.Cron
}

// NewRunner builds a cron runner in loc. Specs accept five fields or a
// descriptor such as "@midnight".
func NewRunner(loc *time.Location) *Runner {
	if loc == nil {
		loc = time.Local
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Runner{c: cron.New(cron.WithParser(parser), cron.WithLocation(loc))}
}

// ScheduleRefresh runs r.Refresh on spec.
func (rn *Runner) ScheduleRefresh(spec string, r *Refresher) error {
	_, err := rn.c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		if _, err := r.Refresh(ctx); err != nil {
			log.Warn().Err(err).Str("spec", spec).Msg("scheduled cache refresh failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job %q: %w", spec, err)
	}
	return nil
}

func (rn *Runner) Entries() int { return len(rn.c.Entries()) }

func (rn *Runner) Start() { rn.c.Start() }

// Stop stops the scheduler and waits for a running job until ctx is done.
func (rn *Runner) Stop(ctx context.Context) {
	select {
	case <-rn.c.Stop().Done():
	case <-ctx.Done():
	}
}
