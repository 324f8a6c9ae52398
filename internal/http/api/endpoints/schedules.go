package endpoints

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/marquee/internal/calendar"
	"github.com/Nixie-Tech-LLC/marquee/internal/db"
	"github.com/Nixie-Tech-LLC/marquee/internal/http/api"
	"github.com/Nixie-Tech-LLC/marquee/internal/http/api/packets"
	"github.com/Nixie-Tech-LLC/marquee/internal/model"
	"github.com/Nixie-Tech-LLC/marquee/internal/notify"
	"github.com/Nixie-Tech-LLC/marquee/internal/scheduling/recurrence"
)

const DefaultHorizonDays = 366

type ScheduleController struct {
	*Deps
}

func ScheduleModule(d *Deps) api.Module {
	ctl := &ScheduleController{Deps: d}
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/schedules", ctl.listSchedules)
		c.GET("/schedules/:id", ctl.getSchedule)
		c.GET("/schedules/:id/calendar.ics", ctl.exportCalendar)
		c.POST("/schedules", ctl.createSchedule)
		c.PUT("/schedules/update", ctl.bulkUpdate)
		c.DELETE("/schedules/:id", ctl.deleteSchedule)
		c.POST("/schedules/push", ctl.push)
	})
}

func (s *ScheduleController) horizon() int {
	if s.HorizonDays > 0 {
		return s.HorizonDays
	}
	return DefaultHorizonDays
}

// prepare checks sc and materializes its recurrence into days. Field errors
// are keyed by prefix+field.
func (s *ScheduleController) prepare(sc *model.Schedule, prefix string, fields map[string]string) {
	if strings.TrimSpace(sc.Name) == "" {
		fields[prefix+"name"] = "required"
	}
	if sc.ContentID == nil && sc.TemplateID == nil {
		fields[prefix+"content"] = "contentId or templateId is required"
	}
	if sc.Target.IsZero() {
		fields[prefix+"target"] = "required"
	}
	if sc.Start.IsZero() || sc.End.IsZero() {
		fields[prefix+"startTime"] = "startTime and endTime are required"
	} else if !sc.End.After(sc.Start) {
		fields[prefix+"endTime"] = "must be after startTime"
	}

	sc.Days = nil
	if !sc.Recurrence.Repeats() {
		return
	}
	dates, err := recurrence.Collect(*sc.Recurrence, s.horizon())
	if err != nil {
		fields[prefix+"recurrence"] = err.Error()
		return
	}
	if len(dates) == 0 {
		fields[prefix+"recurrence"] = "yields no occurrences"
		return
	}
	sc.Days = make([]model.ScheduleDay, len(dates))
	for i, d := range dates {
		sc.Days[i] = model.ScheduleDay{Date: d}
	}
}

func (s *ScheduleController) listSchedules(ctx *gin.Context) (any, *api.APIError) {
	list, err := s.Store.ListSchedules(ctx.Request.Context())
	return listed[model.Schedule]("schedules", list, err)
}

func (s *ScheduleController) getSchedule(ctx *gin.Context) (any, *api.APIError) {
	id, apiErr := parseID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	sc, err := s.Store.GetSchedule(ctx.Request.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, api.NotFound("schedule not found")
	}
	if err != nil {
		log.Error().Err(err).Int("schedule_id", id).Msg("failed to load schedule")
		return nil, api.Internal("failed to load schedule")
	}
	return sc, nil
}

func (s *ScheduleController) createSchedule(ctx *gin.Context) (any, *api.APIError) {
	var sc model.Schedule
	if err := ctx.ShouldBindJSON(&sc); err != nil {
		return nil, api.BadRequest(err.Error())
	}
	sc.ID = 0

	fields := map[string]string{}
	s.prepare(&sc, "", fields)
	if len(fields) > 0 {
		return nil, fieldErrors(fields)
	}

	began := time.Now()
	saved, conflicts, err := s.Store.CreateScheduleChecked(ctx.Request.Context(), sc)
	s.Metrics.ObserveWrite("create", began)
	if err != nil {
		log.Error().Err(err).Str("name", sc.Name).Msg("failed to create schedule")
		return nil, storeError(err, "schedule")
	}
	if len(conflicts) > 0 {
		s.Metrics.RecordConflict("create")
		log.Info().Str("name", sc.Name).Int("conflicts", len(conflicts)).Msg("schedule rejected with conflicts")
		return nil, conflictError(conflicts)
	}

	s.Metrics.RecordCreated("single", 1)
	log.Info().Int("schedule_id", saved.ID).Int("days", len(saved.Days)).Msg("schedule created")
	s.afterWrite(ctx.Request.Context(), notify.ReasonCreated, saved)
	return saved, nil
}

func (s *ScheduleController) bulkUpdate(ctx *gin.Context) (any, *api.APIError) {
	var batch []model.Schedule
	if err := ctx.ShouldBindJSON(&batch); err != nil {
		return nil, api.BadRequest(err.Error())
	}
	if len(batch) == 0 {
		return nil, api.BadRequest("no schedules to update")
	}

	fields := map[string]string{}
	created := 0
	for i := range batch {
		s.prepare(&batch[i], fmt.Sprintf("[%d].", i), fields)
		if batch[i].ID == 0 {
			created++
		}
	}
	if len(fields) > 0 {
		return nil, fieldErrors(fields)
	}

	previous := s.previousVersions(ctx.Request.Context(), batch)
	began := time.Now()
	saved, conflicts, err := s.Store.UpdateSchedulesChecked(ctx.Request.Context(), batch)
	s.Metrics.ObserveWrite("bulk_update", began)
	s.Metrics.RecordBulkUpdate(len(conflicts) > 0, err)
	if err != nil {
		log.Error().Err(err).Int("batch", len(batch)).Msg("failed to update schedules")
		return nil, storeError(err, "schedule")
	}
	if len(conflicts) > 0 {
		s.Metrics.RecordConflict("bulk_update")
		log.Info().Int("batch", len(batch)).Int("conflicts", len(conflicts)).Msg("bulk update rejected with conflicts")
		return nil, conflictError(conflicts)
	}

	s.Metrics.RecordCreated("bulk", created)
	log.Info().Int("batch", len(saved)).Int("created", created).Msg("schedules updated")
	s.afterWrite(ctx.Request.Context(), notify.ReasonUpdated, slices.Concat(saved, previous)...)
	return packets.BulkUpdateResponse{Schedules: saved}, nil
}

// previousVersions returns the stored state of the batch's existing
// schedules, so monitors an update drops from a target are notified too.
func (s *ScheduleController) previousVersions(ctx context.Context, batch []model.Schedule) []model.Schedule {
	if s.Notifier == nil {
		return nil
	}
	ids := make(map[int]bool, len(batch))
	for _, sc := range batch {
		if sc.ID != 0 {
			ids[sc.ID] = true
		}
	}
	if len(ids) == 0 {
		return nil
	}
	all, err := s.Store.ListSchedules(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("could not load schedules before update")
		return nil
	}
	var out []model.Schedule
	for _, sc := range all {
		if ids[sc.ID] {
			out = append(out, sc)
		}
	}
	return out
}

func (s *ScheduleController) deleteSchedule(ctx *gin.Context) (any, *api.APIError) {
	id, apiErr := parseID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	deleted, err := s.Store.DeleteSchedule(ctx.Request.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, api.NotFound("schedule not found")
	}
	if err != nil {
		log.Error().Err(err).Int("schedule_id", id).Msg("failed to delete schedule")
		return nil, api.Internal("could not delete schedule")
	}

	log.Info().Int("schedule_id", id).Msg("schedule deleted")
	s.afterWrite(ctx.Request.Context(), notify.ReasonDeleted, deleted)
	return packets.MessageResponse{Message: "schedule deleted"}, nil
}

func (s *ScheduleController) push(ctx *gin.Context) (any, *api.APIError) {
	if s.Notifier == nil {
		return nil, &api.APIError{Code: http.StatusServiceUnavailable, Message: "notifications are disabled"}
	}
	n, err := s.Notifier.PushAll(ctx.Request.Context())
	if err != nil {
		log.Error().Err(err).Int("monitors", n).Msg("push to monitors incomplete")
		return nil, &api.APIError{Code: http.StatusBadGateway, Message: "push to some monitors failed"}
	}
	return packets.PushResponse{Monitors: n}, nil
}

func (s *ScheduleController) exportCalendar(ctx *gin.Context) (any, *api.APIError) {
	id, apiErr := parseID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	sc, err := s.Store.GetSchedule(ctx.Request.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, api.NotFound("schedule not found")
	}
	if err != nil {
		log.Error().Err(err).Int("schedule_id", id).Msg("failed to load schedule")
		return nil, api.Internal("failed to load schedule")
	}

	out, err := calendar.Export(sc, s.horizon(), time.Now())
	if err != nil {
		log.Error().Err(err).Int("schedule_id", id).Msg("failed to export calendar")
		return nil, api.Internal("could not export schedule")
	}
	ctx.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="schedule-%d.ics"`, id))
	ctx.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(out))
	return nil, nil
}
