// Package builder turns an operator's schedule draft into submissions and
// routes rejected submissions into conflict resolution.
package builder

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Nixie-Tech-LLC/marquee/internal/collaborator"
	"github.com/Nixie-Tech-LLC/marquee/internal/model"
	"github.com/Nixie-Tech-LLC/marquee/internal/scheduling/blocks"
	"github.com/Nixie-Tech-LLC/marquee/internal/scheduling/conflict"
	"github.com/Nixie-Tech-LLC/marquee/internal/scheduling/recurrence"
	"github.com/Nixie-Tech-LLC/marquee/internal/scheduling/target"
	"github.com/Nixie-Tech-LLC/marquee/internal/scheduling/timenorm"
)

const (
	DefaultConcurrency = 4
	DefaultHorizonDays = 366
)

// Draft is a schedule as entered by an operator. Start and End are local
// wall-clock strings ("YYYY-MM-DDTHH:mm[:ss]").
type Draft struct {
	Name        string
	Description string
	ContentID   *int
	TemplateID  *int
	Target      model.Target
	Start       string
	End         string
	Priority    int
	Recurrence  *model.Recurrence
}

type Options struct {
	// Location is the zone wall-clock input is read in; nil means time.Local.
	Location *time.Location
	// Concurrency bounds parallel submissions of recurring occurrences.
	Concurrency int
	// RatePerSec paces submissions; zero disables pacing.
	RatePerSec int
	// Atomic deletes accepted occurrences again when any sibling conflicts
	// or fails. The default keeps them.
	Atomic bool
	// ExpandOnServer submits a recurring draft once and lets the store
	// materialize its days.
	ExpandOnServer bool
	// HorizonDays caps open-ended recurrences.
	HorizonDays int
	// MaxAttempts is copied onto every resolution session.
	MaxAttempts int
	Logger      *zerolog.Logger
}

type Builder struct {
	coll    collaborator.Collaborator
	opts    Options
	norm    timenorm.Normalizer
	limiter *rate.Limiter
	log     zerolog.Logger
}

func New(c collaborator.Collaborator, opts Options) *Builder {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.HorizonDays <= 0 {
		opts.HorizonDays = DefaultHorizonDays
	}
	b := &Builder{
		coll: c,
		opts: opts,
		norm: timenorm.New(opts.Location),
		log:  log.Logger,
	}
	if opts.Logger != nil {
		b.log = *opts.Logger
	}
	if opts.RatePerSec > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.RatePerSec)
	}
	return b
}

// Submission is one payload bound for the collaborator. Date is the
// occurrence it was expanded from, zero for a single schedule.
type Submission struct {
	Date     model.Date
	Schedule model.Schedule
}

// Outcome is the collaborator's answer to one submission.
type Outcome struct {
	Submission
	Created  *model.Schedule
	Conflict *model.ConflictResponse
	Err      error
}

func (o Outcome) Accepted() bool { return o.Created != nil && o.Err == nil }

// Report summarizes a create run. Schedules is the list reloaded afterwards.
type Report struct {
	Outcomes   []Outcome
	RolledBack []int
	Schedules  []model.Schedule
}

func (r Report) Conflicts() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Conflict != nil {
			out = append(out, o)
		}
	}
	return out
}

func (r Report) Failures() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

func (r Report) Accepted() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Accepted() {
			out = append(out, o)
		}
	}
	return out
}

// Create prepares d and submits every resulting payload.
func (b *Builder) Create(ctx context.Context, d Draft) (Report, error) {
	subs, err := b.Prepare(ctx, d)
	if err != nil {
		return Report{}, err
	}
	return b.Submit(ctx, subs)
}

func checkDraft(d Draft) ValidationErrors {
	var errs ValidationErrors
	if strings.TrimSpace(d.Name) == "" {
		errs.add("name", "is required")
	}
	if d.ContentID == nil && d.TemplateID == nil {
		errs.add("content", "a content or template is required")
	}
	if d.Target.IsZero() {
		errs.add("target", "select all locations, a location, a group or monitors")
	}
	if strings.TrimSpace(d.Start) == "" {
		errs.add("startTime", "is required")
	}
	if d.TemplateID == nil && strings.TrimSpace(d.End) == "" {
		errs.add("endTime", "is required")
	}
	if d.Recurrence != nil {
		if err := recurrence.Validate(*d.Recurrence); err != nil {
			errs.add("recurrence", "%v", err)
		}
	}
	return errs
}

type catalog struct {
	monitors  []model.Monitor
	templates []model.Template
	contents  []model.Content
}

func (b *Builder) fetch(ctx context.Context, needTemplates bool) (catalog, error) {
	var cat catalog
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ms, err := b.coll.ListDevices(gctx)
		if err != nil {
			return fmt.Errorf("list devices: %w", err)
		}
		cat.monitors = ms
		return nil
	})
	if needTemplates {
		g.Go(func() error {
			ts, err := b.coll.ListTemplates(gctx)
			if err != nil {
				return fmt.Errorf("list templates: %w", err)
			}
			cat.templates = ts
			return nil
		})
		g.Go(func() error {
			cs, err := b.coll.ListContents(gctx)
			if err != nil {
				return fmt.Errorf("list contents: %w", err)
			}
			cat.contents = cs
			return nil
		})
	}
	return cat, g.Wait()
}

// Prepare validates d, resolves its times and target and expands its
// recurrence. Field problems come back as ValidationErrors.
func (b *Builder) Prepare(ctx context.Context, d Draft) ([]Submission, error) {
	if errs := checkDraft(d); len(errs) > 0 {
		return nil, errs
	}
	cat, err := b.fetch(ctx, d.TemplateID != nil)
	if err != nil {
		return nil, err
	}

	var errs ValidationErrors
	start, ok := b.resolve(d.Start)
	if !ok {
		errs.add("startTime", "%v: %q", ErrUnresolvedTime, d.Start)
	}

	var tpl *model.Template
	if d.TemplateID != nil {
		tpl = findTemplate(cat.templates, *d.TemplateID)
		if tpl == nil {
			errs.add("templateId", "%v: %d", ErrUnknownTemplate, *d.TemplateID)
		}
	}

	var end time.Time
	switch {
	case strings.TrimSpace(d.End) != "":
		if end, ok = b.resolve(d.End); !ok {
			errs.add("endTime", "%v: %q", ErrUnresolvedTime, d.End)
		}
	case tpl != nil && !start.IsZero():
		secs := blockSeconds(*tpl, cat.contents)
		if secs == 0 {
			errs.add("endTime", "is required, template %q has no timed content", tpl.Name)
		}
		end = start.Add(time.Duration(secs) * time.Second)
	}
	if !start.IsZero() && !end.IsZero() && !end.After(start) {
		errs.add("endTime", "must be after the start time")
	}

	idx := target.NewIndex(cat.monitors)
	tgt := idx.Materialize(d.Target)
	if tgt.Kind() == model.TargetMonitors {
		ids, _ := idx.Resolve(tgt)
		if len(ids) == 0 {
			errs.add("target", "none of the selected monitors exist")
		}
		tgt = model.OnMonitors(ids...)
	}
	if len(errs) > 0 {
		return nil, errs
	}

	base := model.Schedule{
		Name:       strings.TrimSpace(d.Name),
		ContentID:  d.ContentID,
		TemplateID: d.TemplateID,
		Target:     tgt,
		Start:      start,
		End:        end,
		Priority:   d.Priority,
	}
	if desc := strings.TrimSpace(d.Description); desc != "" {
		base.Description = &desc
	}
	if tpl != nil && base.ContentID == nil && !d.Recurrence.Repeats() {
		base.ContentID = firstContent(*tpl)
	}

	return b.expand(base, d.Recurrence)
}

func (b *Builder) resolve(local string) (time.Time, bool) {
	return b.norm.Resolve(local)
}

func (b *Builder) expand(base model.Schedule, r *model.Recurrence) ([]Submission, error) {
	if r == nil {
		return []Submission{{Schedule: base}}, nil
	}
	if b.opts.ExpandOnServer && r.Repeats() {
		rc := *r
		base.Recurrence = &rc
		return []Submission{{Date: r.DateStart, Schedule: base}}, nil
	}

	dates, err := recurrence.Collect(*r, b.opts.HorizonDays)
	if err != nil {
		return nil, ValidationErrors{{Field: "recurrence", Message: err.Error()}}
	}
	if !r.Repeats() && len(dates) == 0 {
		return []Submission{{Schedule: base}}, nil
	}
	if len(dates) == 0 {
		return nil, ValidationErrors{{Field: "recurrence", Message: ErrNoOccurrences.Error()}}
	}

	var series *string
	if len(dates) > 1 {
		id := uuid.NewString()
		series = &id
	}
	subs := make([]Submission, 0, len(dates))
	for occ := range recurrence.Occurrences(slices.Values(dates), base.Start, base.End) {
		s := base
		s.Start, s.End = occ.Start, occ.End
		s.SeriesID = series
		subs = append(subs, Submission{Date: occ.Date, Schedule: s})
	}
	return subs, nil
}

func findTemplate(ts []model.Template, id int) *model.Template {
	for i := range ts {
		if ts[i].ID == id {
			return &ts[i]
		}
	}
	return nil
}

func firstContent(t model.Template) *int {
	if len(t.Blocks) == 0 || len(t.Blocks[0].Contents) == 0 {
		return nil
	}
	id := t.Blocks[0].Contents[0].ContentID
	return &id
}

// blockSeconds sums the first block's positive item durations, falling back
// to the content's own duration for items without one.
func blockSeconds(t model.Template, contents []model.Content) int {
	if len(t.Blocks) == 0 {
		return 0
	}
	first := t.Blocks[0]
	total := blocks.TotalDuration(first)
	for _, c := range first.Contents {
		if c.Duration > 0 {
			continue
		}
		for _, ct := range contents {
			if ct.ID == c.ContentID && ct.Duration != nil && *ct.Duration > 0 {
				total += *ct.Duration
				break
			}
		}
	}
	return total
}

// Submit sends every submission independently. Each outcome stays attached
// to its submission. Afterwards the schedule list is reloaded.
func (b *Builder) Submit(ctx context.Context, subs []Submission) (Report, error) {
	report := Report{Outcomes: make([]Outcome, len(subs))}

	var g errgroup.Group
	g.SetLimit(b.opts.Concurrency)
	for i, sub := range subs {
		g.Go(func() error {
			report.Outcomes[i] = b.submit(ctx, sub)
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range report.Outcomes {
		var ev *zerolog.Event
		switch {
		case o.Err != nil:
			ev = b.log.Warn().Err(o.Err)
		case o.Conflict != nil:
			ev = b.log.Info().Int("conflicts", len(o.Conflict.Conflicts))
		default:
			ev = b.log.Debug()
		}
		ev.Str("date", o.Date.String()).Str("name", o.Schedule.Name).Msg("schedule submitted")
	}

	if b.opts.Atomic && len(report.Accepted()) < len(report.Outcomes) {
		report.RolledBack = b.rollback(ctx, report.Accepted())
	}

	list, err := b.coll.ListSchedules(ctx)
	if err != nil {
		return report, fmt.Errorf("reload schedules: %w", err)
	}
	report.Schedules = list
	return report, nil
}

func (b *Builder) submit(ctx context.Context, sub Submission) Outcome {
	out := Outcome{Submission: sub}
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			out.Err = err
			return out
		}
	}
	res, err := b.coll.CreateSchedule(ctx, sub.Schedule)
	if err != nil {
		out.Err = err
		return out
	}
	out.Created = res.Schedule
	out.Conflict = res.Conflict
	if out.Created == nil && out.Conflict == nil {
		out.Err = errors.New("empty create response")
	}
	return out
}

func (b *Builder) rollback(ctx context.Context, accepted []Outcome) []int {
	var ids []int
	for _, o := range accepted {
		if err := b.coll.DeleteSchedule(ctx, o.Created.ID); err != nil {
			b.log.Error().Err(err).Int("schedule_id", o.Created.ID).Msg("rollback delete failed")
			continue
		}
		ids = append(ids, o.Created.ID)
	}
	return ids
}

// Resolve opens a resolution session for a conflicted outcome.
func (b *Builder) Resolve(o Outcome) (*conflict.Session, error) {
	if o.Conflict == nil {
		return nil, ErrNotConflicted
	}
	s := conflict.NewSession()
	s.MaxAttempts = b.opts.MaxAttempts
	if err := s.Begin(o.Schedule, *o.Conflict); err != nil {
		return nil, err
	}
	return s, nil
}
