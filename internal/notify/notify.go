// Package notify tells monitors that their schedules for today changed.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/marquee/internal/metrics"
	"github.com/Nixie-Tech-LLC/marquee/internal/model"
	"github.com/Nixie-Tech-LLC/marquee/internal/scheduling/target"
)

const (
	ReasonCreated = "schedules_created"
	ReasonUpdated = "schedules_updated"
	ReasonDeleted = "schedule_deleted"
	ReasonPushed  = "schedules_pushed"
)

// Topic is the per-monitor topic players subscribe to.
func Topic(monitorID int) string {
	return fmt.Sprintf("tv/%d/schedules", monitorID)
}

// Message is the payload published to a monitor.
type Message struct {
	Event     string           `json:"event"`
	MonitorID int              `json:"monitorId"`
	Date      model.Date       `json:"date"`
	Schedules []model.Schedule `json:"schedules"`
}

// Source provides the state a notification is built from.
type Source interface {
	ListMonitors(ctx context.Context) ([]model.Monitor, error)
	SchedulesOn(ctx context.Context, day model.Date) ([]model.Schedule, error)
}

type Notifier struct {
	pub     Publisher
	src     Source
	loc     *time.Location
	metrics *metrics.Metrics

	now func() time.Time
}

func NewNotifier(pub Publisher, src Source, loc *time.Location, m *metrics.Metrics) *Notifier {
	if loc == nil {
		loc = time.Local
	}
	return &Notifier{pub: pub, src: src, loc: loc, metrics: m, now: time.Now}
}

// Changed publishes today's schedules to every monitor any of the given
// schedules targets. Monitors whose publish fails are logged and skipped.
func (n *Notifier) Changed(ctx context.Context, event string, changed ...model.Schedule) error {
	if len(changed) == 0 {
		return nil
	}
	idx, grouped, day, err := n.today(ctx)
	if err != nil {
		return err
	}
	var affected []int
	for _, s := range changed {
		ids, err := idx.Resolve(s.Target)
		if err != nil {
			continue
		}
		affected = append(affected, ids...)
	}
	slices.Sort(affected)
	return n.publish(event, day, slices.Compact(affected), grouped)
}

// PushAll publishes today's schedules to every known monitor and returns how
// many monitors were notified.
func (n *Notifier) PushAll(ctx context.Context) (int, error) {
	idx, grouped, day, err := n.today(ctx)
	if err != nil {
		return 0, err
	}
	ids, _ := idx.Resolve(model.AllLocations())
	return len(ids), n.publish(ReasonPushed, day, ids, grouped)
}

func (n *Notifier) today(ctx context.Context) (*target.Index, map[int][]model.Schedule, model.Date, error) {
	day := model.DateOf(n.now().In(n.loc))
	monitors, err := n.src.ListMonitors(ctx)
	if err != nil {
		return nil, nil, day, fmt.Errorf("list monitors: %w", err)
	}
	schedules, err := n.src.SchedulesOn(ctx, day)
	if err != nil {
		return nil, nil, day, fmt.Errorf("list schedules on %s: %w", day, err)
	}
	idx := target.NewIndex(monitors)
	return idx, idx.ByMonitor(schedules), day, nil
}

func (n *Notifier) publish(event string, day model.Date, monitorIDs []int, grouped map[int][]model.Schedule) error {
	var errs []error
	for _, id := range monitorIDs {
		payload, err := json.Marshal(Message{Event: event, MonitorID: id, Date: day, Schedules: grouped[id]})
		if err != nil {
			return err
		}
		err = n.pub.Publish(Topic(id), payload)
		n.metrics.RecordNotification(err)
		if err != nil {
			log.Error().Err(err).Int("monitor_id", id).Str("event", event).Msg("failed to notify monitor")
			errs = append(errs, err)
			continue
		}
		log.Debug().Int("monitor_id", id).Str("event", event).Int("schedules", len(grouped[id])).Msg("monitor notified")
	}
	return errors.Join(errs...)
}
