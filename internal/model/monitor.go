package model

import "time"

type Location struct {
	ID   int    `db:"id"   json:"id"`
	Name string `db:"name" json:"name"`
}

// Monitor represents a display device. It belongs to at most one group and
// one location.
type Monitor struct {
	ID         int       `db:"id"          json:"id"`
	Name       string    `db:"name"        json:"name"`
	Status     string    `db:"status"      json:"status"`
	GroupID    *int      `db:"group_id"    json:"groupId,omitempty"`
	LocationID *int      `db:"location_id" json:"locationId,omitempty"`
	CreatedAt  time.Time `db:"created_at"  json:"createdAt"`
}

// MonitorGroup only references its monitors; it never owns their lifecycle.
type MonitorGroup struct {
	ID   int    `db:"id"   json:"id"`
	Name string `db:"name" json:"name"`
}
