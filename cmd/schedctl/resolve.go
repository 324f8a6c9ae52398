package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Nixie-Tech-LLC/marquee/internal/scheduling/conflict"
)

const resolveHelp = `commands:
  d <item> <minutes>   set the duration of an item
  p <item> <priority>  set the priority of an item
  a                    apply all items
  c                    cancel
`

// resolver drives a conflict session from line-based input.
type resolver struct {
	in       *bufio.Scanner
	out      io.Writer
	loc      *time.Location
	detector conflict.Detector
	store    conflict.BulkUpdater
}

func (r *resolver) show(s *conflict.Session) {
	for i, it := range s.Items() {
		marker := " "
		if it.IsNew() {
			marker = "*"
		}
		fmt.Fprintf(r.out, "  [%d]%s %-24s %s - %s  %3d min  priority %d\n",
			i, marker, it.Name(),
			it.Start().In(r.loc).Format("2006-01-02 15:04"),
			it.End().In(r.loc).Format("15:04"),
			it.DurationMinutes(), it.Priority())
	}
	for _, p := range s.Remaining(r.detector) {
		fmt.Fprintf(r.out, "  ! items %d and %d still overlap\n", p[0], p[1])
	}
}

// run returns true once the store accepted the edited batch, false when the
// operator cancelled or input ended.
func (r *resolver) run(ctx context.Context, s *conflict.Session) (bool, error) {
	fmt.Fprint(r.out, resolveHelp)
	r.show(s)
	for {
		fmt.Fprint(r.out, "> ")
		if !r.in.Scan() {
			s.Cancel()
			return false, r.in.Err()
		}
		fields := strings.Fields(r.in.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "d", "p":
			if len(fields) != 3 {
				fmt.Fprint(r.out, resolveHelp)
				continue
			}
			i, errI := strconv.Atoi(fields[1])
			v, errV := strconv.Atoi(fields[2])
			if errI != nil || errV != nil {
				fmt.Fprintln(r.out, "item and value must be numbers")
				continue
			}
			var err error
			if fields[0] == "d" {
				err = s.SetDuration(i, v)
			} else {
				err = s.SetPriority(i, v)
			}
			if err != nil {
				fmt.Fprintln(r.out, "error:", err)
				continue
			}
			r.show(s)
		case "a":
			done, err := s.Apply(ctx, r.store)
			switch {
			case errors.Is(err, conflict.ErrTooManyAttempts):
				return false, err
			case err != nil:
				fmt.Fprintln(r.out, "error:", err)
			case done:
				fmt.Fprintln(r.out, "applied")
				return true, nil
			default:
				fmt.Fprintln(r.out, "the store still reports conflicts:")
				r.show(s)
			}
		case "c":
			s.Cancel()
			return false, nil
		default:
			fmt.Fprint(r.out, resolveHelp)
		}
	}
}
