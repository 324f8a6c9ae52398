package model

import "time"

// Pattern is the repetition rule of a schedule.
type Pattern string

const (
	PatternNone    Pattern = "none"
	PatternDaily   Pattern = "daily"
	PatternWeekly  Pattern = "weekly"
	PatternMonthly Pattern = "monthly"
)

func (p Pattern) Valid() bool {
	switch p {
	case PatternNone, PatternDaily, PatternWeekly, PatternMonthly:
		return true
	}
	return false
}

// Recurrence describes on which dates a schedule repeats. DateEnd is
// inclusive; a nil DateEnd is open-ended.
type Recurrence struct {
	Pattern    Pattern   `json:"pattern"              yaml:"pattern"`
	DateStart  Date      `json:"dateStart"            yaml:"dateStart"`
	DateEnd    *Date     `json:"dateEnd,omitempty"    yaml:"dateEnd"`
	Weekdays   []Weekday `json:"weekdays,omitempty"   yaml:"weekdays"`
	MonthDay   int       `json:"monthDay,omitempty"   yaml:"monthDay"`
	Exceptions []Date    `json:"exceptions,omitempty" yaml:"exceptions"`
}

func (r *Recurrence) Repeats() bool {
	return r != nil && r.Pattern != "" && r.Pattern != PatternNone
}

type Schedule struct {
	ID          int           `db:"id"          json:"id,omitempty"`
	Name        string        `db:"name"        json:"name"`
	Description *string       `db:"description" json:"description,omitempty"`
	ContentID   *int          `db:"content_id"  json:"contentId,omitempty"`
	TemplateID  *int          `db:"template_id" json:"templateId,omitempty"`
	Target      Target        `db:"-"           json:"target"`
	Start       time.Time     `db:"start_ts"    json:"startTime"`
	End         time.Time     `db:"end_ts"      json:"endTime"`
	Priority    int           `db:"priority"    json:"priority"`
	Recurrence  *Recurrence   `db:"-"           json:"recurrence,omitempty"`
	Days        []ScheduleDay `db:"-"           json:"days,omitempty"`
	SeriesID    *string       `db:"series_id"   json:"seriesId,omitempty"`
	CreatedAt   time.Time     `db:"created_at"  json:"createdAt"`
	UpdatedAt   time.Time     `db:"updated_at"  json:"updatedAt"`
}

// ScheduleDay is one server-side expanded occurrence date of a recurring
// schedule.
type ScheduleDay struct {
	ID         int  `db:"id"          json:"id,omitempty"`
	ScheduleID int  `db:"schedule_id" json:"scheduleId,omitempty"`
	Date       Date `db:"date"        json:"date"`
}

func (s Schedule) Duration() time.Duration { return s.End.Sub(s.Start) }

// ConflictResponse is the body returned when a write overlaps existing
// schedules.
type ConflictResponse struct {
	Error     string     `json:"error"`
	Conflicts []Schedule `json:"conflicts"`
}

const ConflictWithExisting = "conflict_with_existing"
