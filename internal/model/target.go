package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

var (
	ErrAmbiguousTarget = errors.New("more than one target mode selected")
	ErrNoTarget        = errors.New("no target mode selected")
)

type TargetKind string

const (
	TargetNone         TargetKind = ""
	TargetAllLocations TargetKind = "all_locations"
	TargetLocation     TargetKind = "location"
	TargetGroup        TargetKind = "group"
	TargetMonitors     TargetKind = "monitors"
)

// Target selects the monitors a schedule plays on. Exactly one mode is set;
// the zero value selects nothing.
type Target struct {
	kind       TargetKind
	id         int
	monitorIDs []int
	every      bool
}

func AllLocations() Target { return Target{kind: TargetAllLocations} }

func AtLocation(id int) Target { return Target{kind: TargetLocation, id: id} }

func InGroup(id int) Target { return Target{kind: TargetGroup, id: id} }

// OnMonitors selects an explicit monitor set. Duplicates are dropped.
func OnMonitors(ids ...int) Target {
	set := slices.Clone(ids)
	slices.Sort(set)
	return Target{kind: TargetMonitors, monitorIDs: slices.Compact(set)}
}

// EveryMonitor is the "select all" form of the monitor-set mode. It is
// resolved against the device list at the time of use, not frozen here.
func EveryMonitor() Target { return Target{kind: TargetMonitors, every: true} }

func (t Target) Kind() TargetKind { return t.kind }

func (t Target) IsZero() bool { return t.kind == TargetNone }

func (t Target) LocationID() (int, bool) { return t.id, t.kind == TargetLocation }

func (t Target) GroupID() (int, bool) { return t.id, t.kind == TargetGroup }

func (t Target) MonitorIDs() []int { return slices.Clone(t.monitorIDs) }

func (t Target) SelectsEveryMonitor() bool { return t.kind == TargetMonitors && t.every }

func (t Target) String() string {
	switch t.kind {
	case TargetAllLocations:
		return "all locations"
	case TargetLocation:
		return fmt.Sprintf("location %d", t.id)
	case TargetGroup:
		return fmt.Sprintf("group %d", t.id)
	case TargetMonitors:
		if t.every {
			return "every monitor"
		}
		return fmt.Sprintf("monitors %v", t.monitorIDs)
	}
	return "no target"
}

// TargetFields is the flat wire form of a Target.
type TargetFields struct {
	AllLocations bool  `json:"allLocations,omitempty" yaml:"allLocations"`
	LocationID   *int  `json:"locationId,omitempty"   yaml:"locationId"`
	GroupID      *int  `json:"groupId,omitempty"      yaml:"groupId"`
	MonitorIDs   []int `json:"monitorIds,omitempty"   yaml:"monitorIds"`
	AllMonitors  bool  `json:"allMonitors,omitempty"  yaml:"allMonitors"`
}

// Target converts the flat fields, rejecting combinations that select more
// than one mode.
func (f TargetFields) Target() (Target, error) {
	if f.AllMonitors && len(f.MonitorIDs) > 0 {
		return Target{}, ErrAmbiguousTarget
	}
	var out Target
	n := 0
	if f.AllLocations {
		out = AllLocations()
		n++
	}
	if f.LocationID != nil {
		out = AtLocation(*f.LocationID)
		n++
	}
	if f.GroupID != nil {
		out = InGroup(*f.GroupID)
		n++
	}
	if len(f.MonitorIDs) > 0 {
		out = OnMonitors(f.MonitorIDs...)
		n++
	}
	if f.AllMonitors {
		out = EveryMonitor()
		n++
	}
	switch {
	case n == 0:
		return Target{}, ErrNoTarget
	case n > 1:
		return Target{}, ErrAmbiguousTarget
	}
	return out, nil
}

func (f TargetFields) IsEmpty() bool {
	return !f.AllLocations && f.LocationID == nil && f.GroupID == nil && len(f.MonitorIDs) == 0 && !f.AllMonitors
}

func (t Target) Fields() TargetFields {
	var f TargetFields
	switch t.kind {
	case TargetAllLocations:
		f.AllLocations = true
	case TargetLocation:
		id := t.id
		f.LocationID = &id
	case TargetGroup:
		id := t.id
		f.GroupID = &id
	case TargetMonitors:
		if t.every {
			f.AllMonitors = true
		} else {
			f.MonitorIDs = slices.Clone(t.monitorIDs)
		}
	}
	return f
}

func (t Target) MarshalJSON() ([]byte, error) { return json.Marshal(t.Fields()) }

func (t *Target) UnmarshalJSON(b []byte) error {
	var f TargetFields
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	if f.IsEmpty() {
		*t = Target{}
		return nil
	}
	parsed, err := f.Target()
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
