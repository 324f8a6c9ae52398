// Package recurrence expands recurrence descriptors into calendar dates.
package recurrence

import (
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/Nixie-Tech-LLC/marquee/internal/model"
)

var (
	ErrUnknownPattern = errors.New("unknown recurrence pattern")
	ErrNoDateStart    = errors.New("recurrence needs a start date")
	ErrEndBeforeStart = errors.New("recurrence end date is before its start date")
	ErrNoWeekdays     = errors.New("weekly recurrence needs at least one weekday")
	ErrBadMonthDay    = errors.New("monthly recurrence needs a day of month between 1 and 31")
)

var rruleWeekdays = [...]rrule.Weekday{
	model.Monday - 1:    rrule.MO,
	model.Tuesday - 1:   rrule.TU,
	model.Wednesday - 1: rrule.WE,
	model.Thursday - 1:  rrule.TH,
	model.Friday - 1:    rrule.FR,
	model.Saturday - 1:  rrule.SA,
	model.Sunday - 1:    rrule.SU,
}

// Validate checks r without expanding it.
func Validate(r model.Recurrence) error {
	if r.Pattern == "" || r.Pattern == model.PatternNone {
		return nil
	}
	if !r.Pattern.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownPattern, r.Pattern)
	}
	if r.DateStart.IsZero() {
		return ErrNoDateStart
	}
	if r.DateEnd != nil && r.DateEnd.Before(r.DateStart) {
		return ErrEndBeforeStart
	}
	switch r.Pattern {
	case model.PatternWeekly:
		if len(r.Weekdays) == 0 {
			return ErrNoWeekdays
		}
		for _, w := range r.Weekdays {
			if !w.Valid() {
				return fmt.Errorf("weekly recurrence: %s out of range 1..7", w)
			}
		}
	case model.PatternMonthly:
		if r.MonthDay < 1 || r.MonthDay > 31 {
			return ErrBadMonthDay
		}
	}
	return nil
}

// Expand returns the dates selected by r in ascending order. The sequence is
// infinite when r has no end date; cap it with Take or Through before
// collecting. A none pattern yields DateStart once, or nothing when no start
// date is set.
func Expand(r model.Recurrence) (iter.Seq[model.Date], error) {
	if err := Validate(r); err != nil {
		return nil, err
	}
	if !r.Repeats() {
		return single(r.DateStart), nil
	}

	opt := rrule.ROption{Dtstart: r.DateStart.In(time.UTC)}
	if r.DateEnd != nil {
		opt.Until = r.DateEnd.In(time.UTC)
	}
	switch r.Pattern {
	case model.PatternDaily:
		opt.Freq = rrule.DAILY
	case model.PatternWeekly:
		opt.Freq = rrule.WEEKLY
		for _, w := range r.Weekdays {
			opt.Byweekday = append(opt.Byweekday, rruleWeekdays[w-1])
		}
	case model.PatternMonthly:
		// Months without MonthDay produce no date.
		opt.Freq = rrule.MONTHLY
		opt.Bymonthday = []int{r.MonthDay}
	}
	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("build rrule: %w", err)
	}

	set := &rrule.Set{}
	set.RRule(rule)
	if r.Pattern == model.PatternDaily {
		for _, ex := range r.Exceptions {
			set.ExDate(ex.In(time.UTC))
		}
	}

	return func(yield func(model.Date) bool) {
		next := set.Iterator()
		for {
			t, ok := next()
			if !ok || !yield(model.DateOf(t)) {
				return
			}
		}
	}, nil
}

func single(d model.Date) iter.Seq[model.Date] {
	return func(yield func(model.Date) bool) {
		if !d.IsZero() {
			yield(d)
		}
	}
}

// Take collects at most n dates from seq.
func Take(seq iter.Seq[model.Date], n int) []model.Date {
	out := make([]model.Date, 0, min(n, 64))
	if n <= 0 {
		return out
	}
	for d := range seq {
		out = append(out, d)
		if len(out) == n {
			break
		}
	}
	return out
}

// Through stops seq after the last date not after limit.
func Through(seq iter.Seq[model.Date], limit model.Date) iter.Seq[model.Date] {
	return func(yield func(model.Date) bool) {
		for d := range seq {
			if d.After(limit) || !yield(d) {
				return
			}
		}
	}
}

// Collect materializes r. Open-ended rules are cut at horizonDays after the
// start date.
func Collect(r model.Recurrence, horizonDays int) ([]model.Date, error) {
	seq, err := Expand(r)
	if err != nil {
		return nil, err
	}
	if r.DateEnd == nil && r.Repeats() {
		seq = Through(seq, r.DateStart.AddDays(horizonDays))
	}
	var out []model.Date
	for d := range seq {
		out = append(out, d)
	}
	return out, nil
}
