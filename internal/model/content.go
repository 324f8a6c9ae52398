package model

import "time"

// MediaKind is the playable form of a content record.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
	MediaURL   MediaKind = "url"
)

func (k MediaKind) Valid() bool {
	switch k {
	case MediaImage, MediaVideo, MediaURL:
		return true
	}
	return false
}

type Content struct {
	ID          int       `db:"id"           json:"id"`
	Title       string    `db:"title"        json:"title"`
	Kind        MediaKind `db:"type"         json:"type"`
	Path        string    `db:"path"         json:"path"`
	Duration    *int      `db:"duration"     json:"duration,omitempty"` // seconds
	Description string    `db:"description"  json:"description"`
	CreatedAt   time.Time `db:"created_at"   json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at"   json:"updatedAt"`
}
