// Package blocks validates and edits the time blocks of a template.
package blocks

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Nixie-Tech-LLC/marquee/internal/model"
)

type Kind string

const (
	KindInvalidTime    Kind = "invalid_time"
	KindStartNotBefore Kind = "start_not_before_end"
	KindEmpty          Kind = "empty_block"
	KindBadDuration    Kind = "bad_duration"
	KindOverlap        Kind = "overlap"
	KindMissingName    Kind = "missing_name"
)

// Violation describes one problem in a block list. Block and Other are block
// indexes; Other is -1 unless the violation involves a pair.
type Violation struct {
	Kind    Kind   `json:"kind"`
	Block   int    `json:"block"`
	Other   int    `json:"other"`
	Message string `json:"message"`
}

func (v Violation) String() string { return v.Message }

type Violations []Violation

func (vs Violations) Error() string {
	msgs := make([]string, len(vs))
	for i, v := range vs {
		msgs[i] = v.Message
	}
	return strings.Join(msgs, "; ")
}

// Err returns vs as an error, or nil when there are none.
func Err(vs []Violation) error {
	if len(vs) == 0 {
		return nil
	}
	return Violations(vs)
}

var ErrBadClock = errors.New("time of day must be HH:MM")

// ParseClock returns the minutes since midnight of an "HH:MM" string.
func ParseClock(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("%w: %q", ErrBadClock, s)
	}
	h, errH := strconv.Atoi(s[:2])
	m, errM := strconv.Atoi(s[3:])
	if errH != nil || errM != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrBadClock, s)
	}
	return h*60 + m, nil
}

type span struct {
	start, end int
	ok         bool
}

func label(b model.TemplateBlock, i int) string {
	if b.Name != "" {
		return strconv.Quote(b.Name)
	}
	return fmt.Sprintf("#%d", i+1)
}

// Validate checks a block list and returns every violation found. It does
// not modify blocks. Checks run in this order: time range per block, content
// per block, pairwise overlap, names. Blocks with an unusable time range are
// left out of the overlap check.
func Validate(blocks []model.TemplateBlock) []Violation {
	var out []Violation
	spans := make([]span, len(blocks))

	for i, b := range blocks {
		start, err := ParseClock(b.StartTime)
		if err == nil {
			var end int
			end, err = ParseClock(b.EndTime)
			if err == nil {
				if start >= end {
					out = append(out, Violation{Kind: KindStartNotBefore, Block: i, Other: -1,
						Message: fmt.Sprintf("block %s: start %s must be before end %s", label(b, i), b.StartTime, b.EndTime)})
					continue
				}
				spans[i] = span{start: start, end: end, ok: true}
				continue
			}
		}
		out = append(out, Violation{Kind: KindInvalidTime, Block: i, Other: -1,
			Message: fmt.Sprintf("block %s: %v", label(b, i), err)})
	}

	for i, b := range blocks {
		if len(b.Contents) == 0 {
			out = append(out, Violation{Kind: KindEmpty, Block: i, Other: -1,
				Message: fmt.Sprintf("block %s has no content", label(b, i))})
			continue
		}
		for j, c := range b.Contents {
			if c.Duration <= 0 {
				out = append(out, Violation{Kind: KindBadDuration, Block: i, Other: -1,
					Message: fmt.Sprintf("block %s: item %d needs a positive duration", label(b, i), j+1)})
				break
			}
		}
	}

	for i := range blocks {
		if !spans[i].ok {
			continue
		}
		for j := i + 1; j < len(blocks); j++ {
			if !spans[j].ok {
				continue
			}
			a, b := spans[i], spans[j]
			if !(a.end <= b.start || b.end <= a.start) {
				out = append(out, Violation{Kind: KindOverlap, Block: i, Other: j,
					Message: fmt.Sprintf("blocks %s and %s overlap", label(blocks[i], i), label(blocks[j], j))})
			}
		}
	}

	for i, b := range blocks {
		if strings.TrimSpace(b.Name) == "" {
			out = append(out, Violation{Kind: KindMissingName, Block: i, Other: -1,
				Message: fmt.Sprintf("block #%d needs a name", i+1)})
		}
	}
	return out
}

// TotalDuration sums the positive item durations of a block in seconds.
// Items without a valid duration contribute nothing.
func TotalDuration(b model.TemplateBlock) int {
	total := 0
	for _, c := range b.Contents {
		if c.Duration > 0 {
			total += c.Duration
		}
	}
	return total
}
