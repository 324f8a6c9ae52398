// Command schedctl creates schedules against a marquee server and walks the
// operator through conflicts.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/marquee/internal/client"
	"github.com/Nixie-Tech-LLC/marquee/internal/scheduling/blocks"
	"github.com/Nixie-Tech-LLC/marquee/internal/scheduling/builder"
	"github.com/Nixie-Tech-LLC/marquee/internal/scheduling/conflict"
)

const usage = `usage: schedctl <command> [flags]

commands:
  create    -f draft.yaml     create a schedule, resolving conflicts interactively
  list                        list schedules
  delete    <id>              delete a schedule
  push      [-notify-only]    re-submit every schedule and notify monitors
  template  validate|create|update|delete
`

const (
	exitOK         = 0
	exitError      = 1
	exitUsage      = 2
	exitUnresolved = 3
)

type app struct {
	apiURL  string
	timeout time.Duration
	in      io.Reader
	out     io.Writer
}

func (a *app) client() *client.Client {
	return client.New(a.apiURL, a.timeout)
}

func main() {
	_ = godotenv.Load()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	if os.Getenv("SCHEDCTL_DEBUG") != "" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(exitUsage)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{
		apiURL:  getenv("MARQUEE_API_URL", "http://localhost:8080/api"),
		timeout: client.DefaultTimeout,
		in:      os.Stdin,
		out:     os.Stdout,
	}
	os.Exit(a.run(ctx, os.Args[1], os.Args[2:]))
}

func (a *app) run(ctx context.Context, cmd string, args []string) int {
	switch cmd {
	case "create":
		return a.create(ctx, args)
	case "list":
		return a.list(ctx)
	case "delete":
		return a.delete(ctx, args)
	case "push":
		return a.push(ctx, args)
	case "template":
		return a.template(ctx, args)
	case "help", "-h", "--help":
		fmt.Fprint(a.out, usage)
		return exitOK
	}
	fmt.Fprint(a.out, usage)
	return exitUsage
}

func (a *app) create(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(a.out)
	file := fs.String("f", "", "draft YAML file, - for stdin")
	tz := fs.String("tz", "", "zone wall-clock times are read in (default local)")
	atomic := fs.Bool("atomic", false, "delete accepted occurrences when any occurrence conflicts")
	serverExpand := fs.Bool("server-expand", false, "submit a recurring draft once and let the server expand it")
	ratePerSec := fs.Int("rate", 0, "max submissions per second, 0 for no pacing")
	concurrency := fs.Int("concurrency", builder.DefaultConcurrency, "parallel submissions")
	horizon := fs.Int("horizon", builder.DefaultHorizonDays, "days an open-ended recurrence is expanded")
	maxAttempts := fs.Int("max-attempts", 0, "rejected applies tolerated per conflict, 0 for no bound")
	noResolve := fs.Bool("no-resolve", false, "report conflicts without resolving them")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	loc := time.Local
	if *tz != "" {
		l, err := time.LoadLocation(*tz)
		if err != nil {
			fmt.Fprintln(a.out, "error:", err)
			return exitUsage
		}
		loc = l
	}

	raw, err := a.readFile(*file)
	if err != nil {
		fmt.Fprintln(a.out, "error:", err)
		return exitUsage
	}
	d, err := parseDraft(raw)
	if err != nil {
		fmt.Fprintln(a.out, "error:", err)
		return exitError
	}

	cl := a.client()
	b := builder.New(cl, builder.Options{
		Location:       loc,
		Concurrency:    *concurrency,
		RatePerSec:     *ratePerSec,
		Atomic:         *atomic,
		ExpandOnServer: *serverExpand,
		HorizonDays:    *horizon,
		MaxAttempts:    *maxAttempts,
	})

	report, err := b.Create(ctx, d)
	var verrs builder.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fmt.Fprintf(a.out, "invalid %s: %s\n", fe.Field, fe.Message)
		}
		return exitError
	}
	if err != nil && len(report.Outcomes) == 0 {
		fmt.Fprintln(a.out, "error:", err)
		return exitError
	}
	if err != nil {
		log.Warn().Err(err).Msg("submitted, but the schedule list could not be reloaded")
	}

	for _, o := range report.Accepted() {
		fmt.Fprintf(a.out, "created schedule %d %s\n", o.Created.ID, occurrenceLabel(o))
	}
	for _, o := range report.Failures() {
		fmt.Fprintf(a.out, "failed %s: %v\n", occurrenceLabel(o), o.Err)
	}
	if len(report.RolledBack) > 0 {
		fmt.Fprintf(a.out, "rolled back %d accepted occurrences\n", len(report.RolledBack))
	}

	conflicted := report.Conflicts()
	if len(conflicted) == 0 {
		if len(report.Failures()) > 0 {
			return exitError
		}
		return exitOK
	}
	if *noResolve {
		for _, o := range conflicted {
			fmt.Fprintf(a.out, "conflict %s with %d schedules\n", occurrenceLabel(o), len(o.Conflict.Conflicts))
		}
		return exitUnresolved
	}

	monitors, err := cl.ListDevices(ctx)
	if err != nil {
		fmt.Fprintln(a.out, "error:", err)
		return exitError
	}
	r := &resolver{
		in:       bufio.NewScanner(a.in),
		out:      a.out,
		loc:      loc,
		detector: conflict.NewDetector(monitors),
		store:    cl,
	}
	unresolved := 0
	for _, o := range conflicted {
		fmt.Fprintf(a.out, "\nconflict %s:\n", occurrenceLabel(o))
		s, err := b.Resolve(o)
		if err != nil {
			fmt.Fprintln(a.out, "error:", err)
			unresolved++
			continue
		}
		done, err := r.run(ctx, s)
		if err != nil {
			fmt.Fprintln(a.out, "error:", err)
		}
		if !done {
			unresolved++
		}
	}
	if unresolved > 0 {
		return exitUnresolved
	}
	return exitOK
}

func occurrenceLabel(o builder.Outcome) string {
	if o.Date.IsZero() {
		return strconv.Quote(o.Schedule.Name)
	}
	return fmt.Sprintf("%q on %s", o.Schedule.Name, o.Date)
}

func (a *app) list(ctx context.Context) int {
	schedules, err := a.client().ListSchedules(ctx)
	if err != nil {
		fmt.Fprintln(a.out, "error:", err)
		return exitError
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTARGET\tSTART\tEND\tPRIORITY")
	for _, s := range schedules {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\n", s.ID, s.Name, s.Target,
			s.Start.Local().Format("2006-01-02 15:04"), s.End.Local().Format("2006-01-02 15:04"), s.Priority)
	}
	w.Flush()
	return exitOK
}

func (a *app) delete(ctx context.Context, args []string) int {
	if len(args) != 1 {
		fmt.Fprint(a.out, usage)
		return exitUsage
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintln(a.out, "error: schedule id must be a number")
		return exitUsage
	}
	if err := a.client().DeleteSchedule(ctx, id); err != nil {
		fmt.Fprintln(a.out, "error:", err)
		return exitError
	}
	fmt.Fprintf(a.out, "deleted schedule %d\n", id)
	return exitOK
}

// push re-submits every current schedule as one bulk update so the server
// re-validates them and notifies every affected monitor. With -notify-only
// the server just republishes today's lists.
func (a *app) push(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("push", flag.ContinueOnError)
	fs.SetOutput(a.out)
	notifyOnly := fs.Bool("notify-only", false, "republish without re-submitting")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	cl := a.client()
	if *notifyOnly {
		if err := cl.PushSchedules(ctx); err != nil {
			fmt.Fprintln(a.out, "error:", err)
			return exitError
		}
		fmt.Fprintln(a.out, "schedules pushed")
		return exitOK
	}

	schedules, err := cl.ListSchedules(ctx)
	if err != nil {
		fmt.Fprintln(a.out, "error:", err)
		return exitError
	}
	if len(schedules) == 0 {
		fmt.Fprintln(a.out, "no schedules to push")
		return exitOK
	}
	resp, err := cl.BulkUpdateSchedules(ctx, schedules)
	if err != nil {
		fmt.Fprintln(a.out, "error:", err)
		return exitError
	}
	if resp != nil {
		fmt.Fprintf(a.out, "push rejected: %s with %d schedules\n", resp.Error, len(resp.Conflicts))
		return exitUnresolved
	}
	fmt.Fprintf(a.out, "pushed %d schedules\n", len(schedules))
	return exitOK
}

func (a *app) template(ctx context.Context, args []string) int {
	if len(args) == 0 {
		fmt.Fprint(a.out, usage)
		return exitUsage
	}
	fs := flag.NewFlagSet("template "+args[0], flag.ContinueOnError)
	fs.SetOutput(a.out)
	file := fs.String("f", "", "template YAML file, - for stdin")
	id := fs.Int("id", 0, "template id for update and delete")
	if err := fs.Parse(args[1:]); err != nil {
		return exitUsage
	}

	if args[0] == "delete" {
		if *id <= 0 {
			fmt.Fprintln(a.out, "error: -id is required")
			return exitUsage
		}
		if err := a.client().DeleteTemplate(ctx, *id); err != nil {
			fmt.Fprintln(a.out, "error:", err)
			return exitError
		}
		fmt.Fprintf(a.out, "deleted template %d\n", *id)
		return exitOK
	}

	raw, err := a.readFile(*file)
	if err != nil {
		fmt.Fprintln(a.out, "error:", err)
		return exitUsage
	}
	t, err := parseTemplate(raw)
	if err != nil {
		fmt.Fprintln(a.out, "error:", err)
		return exitError
	}
	if vs := blocks.Validate(t.Blocks); len(vs) > 0 {
		for _, v := range vs {
			fmt.Fprintf(a.out, "%s: %s\n", v.Kind, v.Message)
		}
		return exitError
	}

	switch args[0] {
	case "validate":
		fmt.Fprintf(a.out, "template %q is valid (%d blocks)\n", t.Name, len(t.Blocks))
		return exitOK
	case "create":
		saved, err := a.client().CreateTemplate(ctx, t)
		if err != nil {
			fmt.Fprintln(a.out, "error:", err)
			return exitError
		}
		fmt.Fprintf(a.out, "created template %d\n", saved.ID)
		return exitOK
	case "update":
		if *id <= 0 {
			fmt.Fprintln(a.out, "error: -id is required")
			return exitUsage
		}
		if _, err := a.client().UpdateTemplate(ctx, *id, t); err != nil {
			fmt.Fprintln(a.out, "error:", err)
			return exitError
		}
		fmt.Fprintf(a.out, "updated template %d\n", *id)
		return exitOK
	}
	fmt.Fprint(a.out, usage)
	return exitUsage
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
