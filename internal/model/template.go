package model

import "time"

type Template struct {
	ID          int             `db:"id"          json:"id"`
	Name        string          `db:"name"        json:"name"`
	Description string          `db:"description" json:"description"`
	Blocks      []TemplateBlock `db:"-"           json:"blocks"`
	CreatedAt   time.Time       `db:"created_at"  json:"createdAt"`
	UpdatedAt   time.Time       `db:"updated_at"  json:"updatedAt"`
}

// TemplateBlock is a named time-of-day segment. StartTime and EndTime are
// "HH:MM" and carry no date.
type TemplateBlock struct {
	ID         int                    `db:"id"          json:"id,omitempty"`
	TemplateID int                    `db:"template_id" json:"templateId,omitempty"`
	Name       string                 `db:"name"        json:"name"`
	StartTime  string                 `db:"start_time"  json:"startTime"`
	EndTime    string                 `db:"end_time"    json:"endTime"`
	Position   int                    `db:"position"    json:"-"`
	Contents   []TemplateBlockContent `db:"-"           json:"contents"`
}

type TemplateBlockContent struct {
	ID        int `db:"id"         json:"id,omitempty"`
	BlockID   int `db:"block_id"   json:"blockId,omitempty"`
	ContentID int `db:"content_id" json:"contentId"`
	Duration  int `db:"duration"   json:"duration"` // seconds
	Position  int `db:"position"   json:"-"`
}
