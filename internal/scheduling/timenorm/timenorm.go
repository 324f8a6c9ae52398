// Package timenorm turns local wall-clock strings into offset-qualified
// timestamps.
package timenorm

import (
	"strings"
	"time"
)

// Layout is the offset-qualified form produced by Normalize.
const Layout = "2006-01-02T15:04:05-07:00"

var inputLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// Normalizer attaches the UTC offset of its location to wall-clock input.
type Normalizer struct {
	loc *time.Location
}

// New returns a Normalizer for loc. A nil loc means time.Local.
func New(loc *time.Location) Normalizer {
	if loc == nil {
		loc = time.Local
	}
	return Normalizer{loc: loc}
}

// Normalize converts "YYYY-MM-DDTHH:mm[:ss]" into the same wall-clock time
// with an explicit offset. Input that does not parse is returned unchanged.
// It must be applied exactly once; already-qualified input is not parsed.
func (n Normalizer) Normalize(local string) string {
	t, ok := n.Parse(local)
	if !ok {
		return local
	}
	return t.Format(Layout)
}

// Parse reads local as wall-clock time in the normalizer's location.
func (n Normalizer) Parse(local string) (time.Time, bool) {
	s := strings.TrimSpace(local)
	for _, layout := range inputLayouts {
		if len(s) != len(layout) {
			continue
		}
		t, err := time.ParseInLocation(layout, s, n.Location())
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Resolve normalizes local and reads the result back in the normalizer's
// location, so later wall-clock arithmetic follows that zone's DST rules.
func (n Normalizer) Resolve(local string) (time.Time, bool) {
	t, ok := Resolved(n.Normalize(local))
	if !ok {
		return time.Time{}, false
	}
	return t.In(n.Location()), true
}

// Location is the zone wall-clock input is read in.
func (n Normalizer) Location() *time.Location {
	if n.loc == nil {
		return time.Local
	}
	return n.loc
}

// Normalize uses the machine's local zone.
func Normalize(local string) string { return New(nil).Normalize(local) }

// Resolved reports whether s is an offset-qualified timestamp, i.e. whether
// normalization succeeded. The result carries a fixed offset, not a named zone.
func Resolved(s string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, s)
	return t, err == nil
}
