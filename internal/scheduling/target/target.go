// Package target resolves schedule targets into concrete monitor ids.
package target

import (
	"slices"

	"github.com/Nixie-Tech-LLC/marquee/internal/model"
)

// Index maps monitors to their group and location. It is built from a device
// listing and never mutated afterwards; refresh by building a new one.
// A nil *Index knows no monitors.
type Index struct {
	all        []int
	known      map[int]struct{}
	byGroup    map[int][]int
	byLocation map[int][]int
}

func NewIndex(monitors []model.Monitor) *Index {
	idx := &Index{
		known:      make(map[int]struct{}, len(monitors)),
		byGroup:    make(map[int][]int),
		byLocation: make(map[int][]int),
	}
	for _, m := range monitors {
		if _, dup := idx.known[m.ID]; dup {
			continue
		}
		idx.known[m.ID] = struct{}{}
		idx.all = append(idx.all, m.ID)
		if m.GroupID != nil {
			idx.byGroup[*m.GroupID] = append(idx.byGroup[*m.GroupID], m.ID)
		}
		if m.LocationID != nil {
			idx.byLocation[*m.LocationID] = append(idx.byLocation[*m.LocationID], m.ID)
		}
	}
	slices.Sort(idx.all)
	for _, ids := range idx.byGroup {
		slices.Sort(ids)
	}
	for _, ids := range idx.byLocation {
		slices.Sort(ids)
	}
	return idx
}

var empty Index

func (idx *Index) orEmpty() *Index {
	if idx == nil {
		return &empty
	}
	return idx
}

func (idx *Index) Len() int { return len(idx.orEmpty().all) }

func (idx *Index) Known(id int) bool {
	_, ok := idx.orEmpty().known[id]
	return ok
}

// Resolve returns the sorted monitor ids selected by t. Unknown explicit ids
// are dropped. An empty group or location yields an empty set.
func (idx *Index) Resolve(t model.Target) ([]int, error) {
	idx = idx.orEmpty()
	switch t.Kind() {
	case model.TargetAllLocations:
		return slices.Clone(idx.all), nil
	case model.TargetLocation:
		id, _ := t.LocationID()
		return slices.Clone(idx.byLocation[id]), nil
	case model.TargetGroup:
		id, _ := t.GroupID()
		return slices.Clone(idx.byGroup[id]), nil
	case model.TargetMonitors:
		if t.SelectsEveryMonitor() {
			return slices.Clone(idx.all), nil
		}
		ids := t.MonitorIDs()
		out := make([]int, 0, len(ids))
		for _, id := range ids {
			if idx.Known(id) {
				out = append(out, id)
			}
		}
		return out, nil
	}
	return nil, model.ErrNoTarget
}

// Materialize replaces a select-all monitor target with the explicit ids
// currently in the index. Other targets are returned as-is.
func (idx *Index) Materialize(t model.Target) model.Target {
	if !t.SelectsEveryMonitor() {
		return t
	}
	return model.OnMonitors(idx.orEmpty().all...)
}

// Intersects reports whether a and b share a monitor.
func (idx *Index) Intersects(a, b model.Target) bool {
	ra, err := idx.Resolve(a)
	if err != nil {
		return false
	}
	rb, err := idx.Resolve(b)
	if err != nil {
		return false
	}
	return Overlap(ra, rb)
}

// Overlap reports whether two sorted id sets share an element.
func Overlap(a, b []int) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			return true
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return false
}

// ByMonitor groups schedules by the monitors they resolve to. Every known
// monitor gets an entry, possibly empty.
func (idx *Index) ByMonitor(schedules []model.Schedule) map[int][]model.Schedule {
	idx = idx.orEmpty()
	out := make(map[int][]model.Schedule, len(idx.all))
	for _, id := range idx.all {
		out[id] = []model.Schedule{}
	}
	for _, s := range schedules {
		ids, err := idx.Resolve(s.Target)
		if err != nil {
			continue
		}
		for _, id := range ids {
			out[id] = append(out[id], s)
		}
	}
	return out
}
