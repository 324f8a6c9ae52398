package conflict

import (
	"context"
	"errors"
	"math"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/marquee/internal/model"
)

var (
	ErrNotProposing     = errors.New("resolution already in progress")
	ErrNotResolving     = errors.New("no resolution in progress")
	ErrOutOfRange       = errors.New("resolution item out of range")
	ErrBadDuration      = errors.New("duration must be at least one minute")
	ErrTooManyAttempts  = errors.New("conflict resolution attempts exhausted")
	ErrEmptyConflictSet = errors.New("conflict response lists no conflicts")
)

type State int

const (
	Proposing State = iota
	Resolving
)

func (s State) String() string {
	if s == Resolving {
		return "resolving"
	}
	return "proposing"
}

// Item is one editable entry of a resolution. Only duration and priority
// change; the schedule's identity and start are fixed. Until its duration is
// set the item keeps its exact original end.
type Item struct {
	schedule model.Schedule
	minutes  int
	resized  bool
	priority int
	isNew    bool
}

func newItem(s model.Schedule, isNew bool) Item {
	minutes := int(math.Round(s.End.Sub(s.Start).Minutes()))
	return Item{schedule: s, minutes: max(minutes, 1), priority: s.Priority, isNew: isNew}
}

func (it Item) ID() int { return it.schedule.ID }
func (it Item) Name() string { return it.schedule.Name }
func (it Item) ContentID() *int { return it.schedule.ContentID }
func (it Item) TemplateID() *int { return it.schedule.TemplateID }
func (it Item) Target() model.Target { return it.schedule.Target }
func (it Item) Start() time.Time { return it.schedule.Start }
func (it Item) End() time.Time {
	if !it.resized {
		return it.schedule.End
	}
	return it.schedule.Start.Add(time.Duration(it.minutes) * time.Minute)
}
func (it Item) DurationMinutes() int { return it.minutes }
func (it Item) Priority() int { return it.priority }
func (it Item) IsNew() bool { return it.isNew }
func (it Item) Original() model.Schedule { return it.schedule }

// Schedule returns the item's schedule with the edited end and priority.
func (it Item) Schedule() model.Schedule {
	s := it.schedule
	s.End = it.End()
	s.Priority = it.priority
	return s
}

// BulkUpdater writes a batch of schedules, updating those with an id and
// creating the rest. A non-nil response means the batch was rejected.
type BulkUpdater interface {
	BulkUpdateSchedules(ctx context.Context, schedules []model.Schedule) (*model.ConflictResponse, error)
}

// Session holds the transient state of one conflict resolution. It is not
// safe for concurrent use.
type Session struct {
	// MaxAttempts bounds how many rejected applies are tolerated before the
	// session gives up. Zero means no bound.
	MaxAttempts int

	state    State
	items    []Item
	attempts int
}

func NewSession() *Session { return &Session{} }

func (s *Session) State() State { return s.state }
func (s *Session) Attempts() int { return s.attempts }
func (s *Session) Items() []Item { return slices.Clone(s.items) }

// Begin moves to resolving with the attempted schedule listed first,
// followed by the existing schedules it collided with.
func (s *Session) Begin(attempted model.Schedule, resp model.ConflictResponse) error {
	if s.state != Proposing {
		return ErrNotProposing
	}
	if len(resp.Conflicts) == 0 {
		return ErrEmptyConflictSet
	}
	items := make([]Item, 0, len(resp.Conflicts)+1)
	items = append(items, newItem(attempted, true))
	for _, c := range resp.Conflicts {
		if attempted.ID != 0 && c.ID == attempted.ID {
			continue
		}
		items = append(items, newItem(c, false))
	}
	s.items = items
	s.attempts = 0
	s.state = Resolving
	return nil
}

func (s *Session) item(i int) (*Item, error) {
	if s.state != Resolving {
		return nil, ErrNotResolving
	}
	if i < 0 || i >= len(s.items) {
		return nil, ErrOutOfRange
	}
	return &s.items[i], nil
}

// SetDuration changes item i to last minutes, moving its end.
func (s *Session) SetDuration(i, minutes int) error {
	it, err := s.item(i)
	if err != nil {
		return err
	}
	if minutes < 1 {
		return ErrBadDuration
	}
	it.minutes = minutes
	it.resized = true
	return nil
}

func (s *Session) SetPriority(i, priority int) error {
	it, err := s.item(i)
	if err != nil {
		return err
	}
	it.priority = priority
	return nil
}

// Schedules returns the edited schedules in item order.
func (s *Session) Schedules() []model.Schedule {
	out := make([]model.Schedule, len(s.items))
	for i, it := range s.items {
		out[i] = it.Schedule()
	}
	return out
}

// Remaining re-runs overlap detection over the edited items.
func (s *Session) Remaining(d Detector) [][2]int {
	return d.Pairs(s.Schedules())
}

// Apply submits every item in one batch. On acceptance the session returns
// to proposing and reports true. On a new conflict response the session
// stays resolving with the refreshed list and reports false. Transport
// errors leave the session untouched so the operator can retry.
func (s *Session) Apply(ctx context.Context, u BulkUpdater) (bool, error) {
	if s.state != Resolving {
		return false, ErrNotResolving
	}
	batch := s.Schedules()
	resp, err := u.BulkUpdateSchedules(ctx, batch)
	if err != nil {
		return false, err
	}
	if resp == nil {
		log.Debug().Int("items", len(batch)).Msg("conflict resolution applied")
		s.Cancel()
		return true, nil
	}

	s.attempts++
	if s.MaxAttempts > 0 && s.attempts >= s.MaxAttempts {
		log.Warn().Int("attempts", s.attempts).Msg("giving up conflict resolution")
		s.Cancel()
		return false, ErrTooManyAttempts
	}

	// Keep the operator's edits and add any schedule the store newly reported.
	for _, c := range resp.Conflicts {
		if c.ID == 0 || s.contains(c.ID) {
			continue
		}
		s.items = append(s.items, newItem(c, false))
	}
	log.Debug().Int("attempt", s.attempts).Int("items", len(s.items)).Msg("conflict resolution rejected again")
	return false, nil
}

func (s *Session) contains(id int) bool {
	for _, it := range s.items {
		if it.schedule.ID == id {
			return true
		}
	}
	return false
}

// Cancel discards the item list and returns to proposing.
func (s *Session) Cancel() {
	s.items = nil
	s.state = Proposing
}
