// Package jobs runs the periodic work of the schedule store.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/marquee/internal/metrics"
	"github.com/Nixie-Tech-LLC/marquee/internal/model"
	"github.com/Nixie-Tech-LLC/marquee/internal/scheduling/target"
)

type Source interface {
	ListMonitors(ctx context.Context) ([]model.Monitor, error)
	SchedulesOn(ctx context.Context, day model.Date) ([]model.Schedule, error)
}

type Cache interface {
	Store(ctx context.Context, day model.Date, byMonitor map[int][]model.Schedule) error
}

// Refresher rebuilds the daily per-monitor schedule cache.
type Refresher struct {
	src     Source
	cache   Cache
	loc     *time.Location
	metrics *metrics.Metrics

	mu  sync.Mutex
	now func() time.Time
}

func NewRefresher(src Source, cache Cache, loc *time.Location, m *metrics.Metrics) *Refresher {
	if loc == nil {
		loc = time.Local
	}
	return &Refresher{src: src, cache: cache, loc: loc, metrics: m, now: time.Now}
}

// Today is the local date the refresher caches.
func (r *Refresher) Today() model.Date {
	return model.DateOf(r.now().In(r.loc))
}

// Refresh caches today's schedules for every monitor and returns the number
// of monitors written. Concurrent calls are serialized.
func (r *Refresher) Refresh(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, err := r.refresh(ctx)
	r.metrics.RecordCacheRefresh(n, err)
	if err != nil {
		log.Error().Err(err).Msg("failed to refresh schedule cache")
		return 0, err
	}
	log.Debug().Int("monitors", n).Msg("schedule cache refreshed")
	return n, nil
}

func (r *Refresher) refresh(ctx context.Context) (int, error) {
	day := r.Today()
	monitors, err := r.src.ListMonitors(ctx)
	if err != nil {
		return 0, fmt.Errorf("list monitors: %w", err)
	}
	schedules, err := r.src.SchedulesOn(ctx, day)
	if err != nil {
		return 0, fmt.Errorf("list schedules on %s: %w", day, err)
	}
	grouped := target.NewIndex(monitors).ByMonitor(schedules)
	if err := r.cache.Store(ctx, day, grouped); err != nil {
		return 0, fmt.Errorf("store cache: %w", err)
	}
	return len(grouped), nil
}
