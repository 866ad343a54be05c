package stableapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	serverops "github.com/hoofbeat/stableops/apiframework"
	"github.com/hoofbeat/stableops/routineservice"
	"github.com/hoofbeat/stableops/stabletypes"
)

func AddRoutineRoutes(mux *http.ServeMux, service routineservice.Service) {
	s := &routineAPI{service: service}

	// Template CRUD
	mux.HandleFunc("POST /routines/templates", s.createTemplate)
	mux.HandleFunc("GET /routines/templates", s.listTemplates)
	mux.HandleFunc("GET /routines/templates/{id}", s.getTemplate)
	mux.HandleFunc("PUT /routines/templates/{id}", s.updateTemplate)
	mux.HandleFunc("DELETE /routines/templates/{id}", s.deleteTemplate)

	// Instance lifecycle
	mux.HandleFunc("POST /routines/instances", s.schedule)
	mux.HandleFunc("GET /routines/instances", s.listInstances)
	mux.HandleFunc("GET /routines/instances/{id}", s.getInstance)
	mux.HandleFunc("POST /routines/instances/{id}/start", s.start)
	mux.HandleFunc("POST /routines/instances/{id}/steps/{stepId}/complete", s.completeStep)
	mux.HandleFunc("POST /routines/instances/{id}/steps/{stepId}/skip", s.skipStep)
	mux.HandleFunc("POST /routines/instances/{id}/complete", s.complete)
	mux.HandleFunc("POST /routines/instances/{id}/cancel", s.cancel)

	// Maintenance
	mux.HandleFunc("POST /routines/sweep", s.sweepMissed)
}

type routineAPI struct {
	service routineservice.Service
}

// Creates a new routine template.
//
// Step IDs are assigned server-side when absent.
func (s *routineAPI) createTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	template, err := serverops.Decode[stabletypes.RoutineTemplate](r) // @request stabletypes.RoutineTemplate
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.CreateOperation)
		return
	}
	if err := s.service.CreateTemplate(ctx, &template); err != nil {
		_ = serverops.Error(w, r, err, serverops.CreateOperation)
		return
	}

	_ = serverops.Encode(w, r, http.StatusCreated, template) // @response stabletypes.RoutineTemplate
}

// Lists routine templates, newest first. Scoped to a stable via
// stableId, or across a whole organization via organizationId.
func (s *routineAPI) listTemplates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stableID := serverops.GetQueryParam(r, "stableId", "", "The stable whose templates to list.")
	organizationID := serverops.GetQueryParam(r, "organizationId", "", "List templates across every stable of this organization instead.")
	limitStr := serverops.GetQueryParam(r, "limit", "100", "The maximum number of items to return per page.")
	cursorStr := serverops.GetQueryParam(r, "cursor", "", "An optional RFC3339Nano timestamp to fetch the next page of results.")

	var cursor *time.Time
	if cursorStr != "" {
		parsedTime, err := time.Parse(time.RFC3339Nano, cursorStr)
		if err != nil {
			_ = serverops.Error(w, r, fmt.Errorf("invalid cursor format: %w", err), serverops.ListOperation)
			return
		}
		cursor = &parsedTime
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		_ = serverops.Error(w, r, fmt.Errorf("invalid limit format: %w", err), serverops.ListOperation)
		return
	}

	var templates []*stabletypes.RoutineTemplate
	if organizationID != "" {
		templates, err = s.service.ListTemplatesByOrganization(ctx, organizationID, cursor, limit)
	} else {
		templates, err = s.service.ListTemplates(ctx, stableID, cursor, limit)
	}
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.ListOperation)
		return
	}

	_ = serverops.Encode(w, r, http.StatusOK, templates) // @response []stabletypes.RoutineTemplate
}

// Retrieves a routine template by ID.
func (s *routineAPI) getTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := serverops.GetPathParam(r, "id", "The unique identifier for the routine template.")

	template, err := s.service.GetTemplate(ctx, id)
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.GetOperation)
		return
	}

	_ = serverops.Encode(w, r, http.StatusOK, template) // @response stabletypes.RoutineTemplate
}

// Updates a routine template.
//
// Refused once any instance has been scheduled from it.
func (s *routineAPI) updateTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := serverops.GetPathParam(r, "id", "The unique identifier for the routine template.")

	template, err := serverops.Decode[stabletypes.RoutineTemplate](r) // @request stabletypes.RoutineTemplate
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.UpdateOperation)
		return
	}
	template.ID = id
	if err := s.service.UpdateTemplate(ctx, &template); err != nil {
		_ = serverops.Error(w, r, err, serverops.UpdateOperation)
		return
	}

	_ = serverops.Encode(w, r, http.StatusOK, template) // @response stabletypes.RoutineTemplate
}

// Deletes a routine template.
//
// Refused once any instance has been scheduled from it.
func (s *routineAPI) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := serverops.GetPathParam(r, "id", "The unique identifier for the routine template.")

	if err := s.service.DeleteTemplate(ctx, id); err != nil {
		_ = serverops.Error(w, r, err, serverops.DeleteOperation)
		return
	}

	_ = serverops.Encode(w, r, http.StatusOK, "template removed") // @response string
}

// Schedules a dated instance of a template.
//
// The template's steps are frozen onto the instance.
func (s *routineAPI) schedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := serverops.Decode[routineservice.ScheduleRequest](r) // @request routineservice.ScheduleRequest
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.CreateOperation)
		return
	}
	instance, err := s.service.Schedule(ctx, &req)
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.CreateOperation)
		return
	}

	_ = serverops.Encode(w, r, http.StatusCreated, instance) // @response stabletypes.RoutineInstance
}

// Lists routine instances for a stable, optionally for one day.
func (s *routineAPI) listInstances(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stableID := serverops.GetQueryParam(r, "stableId", "", "The stable whose instances to list.")
	dateStr := serverops.GetQueryParam(r, "date", "", "An optional YYYY-MM-DD day filter.")
	limitStr := serverops.GetQueryParam(r, "limit", "100", "The maximum number of items to return per page.")

	var date *time.Time
	if dateStr != "" {
		parsed, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			_ = serverops.Error(w, r, fmt.Errorf("invalid date format: %w", err), serverops.ListOperation)
			return
		}
		date = &parsed
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		_ = serverops.Error(w, r, fmt.Errorf("invalid limit format: %w", err), serverops.ListOperation)
		return
	}

	instances, err := s.service.ListInstances(ctx, stableID, date, limit)
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.ListOperation)
		return
	}

	_ = serverops.Encode(w, r, http.StatusOK, instances) // @response []stabletypes.RoutineInstance
}

// Retrieves a routine instance with its progress aggregate.
func (s *routineAPI) getInstance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := serverops.GetPathParam(r, "id", "The unique identifier for the routine instance.")

	instance, err := s.service.GetInstance(ctx, id)
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.GetOperation)
		return
	}

	_ = serverops.Encode(w, r, http.StatusOK, instance) // @response stabletypes.RoutineInstance
}

// Starts a scheduled instance. Idempotent for instances already underway.
func (s *routineAPI) start(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := serverops.GetPathParam(r, "id", "The unique identifier for the routine instance.")

	instance, err := s.service.Start(ctx, id)
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.ExecuteOperation)
		return
	}

	_ = serverops.Encode(w, r, http.StatusOK, instance) // @response stabletypes.RoutineInstance
}

// Finalizes one step with its per-horse outcomes and returns the
// recomputed authoritative progress.
func (s *routineAPI) completeStep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := serverops.GetPathParam(r, "id", "The unique identifier for the routine instance.")
	stepID := serverops.GetPathParam(r, "stepId", "The step being finalized.")

	// A body is optional: confirmation-only steps post nothing.
	body, err := serverops.Decode[stabletypes.StepCompletionBody](r) // @request stabletypes.StepCompletionBody
	if err != nil && !errors.Is(err, serverops.ErrEmptyRequestBody) {
		_ = serverops.Error(w, r, err, serverops.ExecuteOperation)
		return
	}
	instance, err := s.service.CompleteStep(ctx, id, stepID, &body)
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.ExecuteOperation)
		return
	}

	_ = serverops.Encode(w, r, http.StatusOK, instance) // @response stabletypes.RoutineInstance
}

// Skips one step for the whole stable.
func (s *routineAPI) skipStep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := serverops.GetPathParam(r, "id", "The unique identifier for the routine instance.")
	stepID := serverops.GetPathParam(r, "stepId", "The step being skipped.")

	body, err := serverops.Decode[stabletypes.StepCompletionBody](r) // @request stabletypes.StepCompletionBody
	if err != nil && !errors.Is(err, serverops.ErrEmptyRequestBody) {
		_ = serverops.Error(w, r, err, serverops.ExecuteOperation)
		return
	}
	instance, err := s.service.SkipStep(ctx, id, stepID, body.SkipReason, body.CompletedBy)
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.ExecuteOperation)
		return
	}

	_ = serverops.Encode(w, r, http.StatusOK, instance) // @response stabletypes.RoutineInstance
}

// Completes an instance. Idempotent once completed.
func (s *routineAPI) complete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := serverops.GetPathParam(r, "id", "The unique identifier for the routine instance.")

	instance, err := s.service.Complete(ctx, id)
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.ExecuteOperation)
		return
	}

	_ = serverops.Encode(w, r, http.StatusOK, instance) // @response stabletypes.RoutineInstance
}

type cancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

// Cancels an instance from any non-terminal status.
func (s *routineAPI) cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := serverops.GetPathParam(r, "id", "The unique identifier for the routine instance.")

	req, err := serverops.Decode[cancelRequest](r) // @request stableapi.cancelRequest
	if err != nil && !errors.Is(err, serverops.ErrEmptyRequestBody) {
		_ = serverops.Error(w, r, err, serverops.ExecuteOperation)
		return
	}
	instance, err := s.service.Cancel(ctx, id, req.Reason)
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.ExecuteOperation)
		return
	}

	_ = serverops.Encode(w, r, http.StatusOK, instance) // @response stabletypes.RoutineInstance
}

type sweepResponse struct {
	Missed int `json:"missed"`
}

// Marks overdue scheduled instances as missed.
//
// The background sweep runs this continuously; the route exists for
// operators who want a sweep now with a custom grace window.
func (s *routineAPI) sweepMissed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	graceStr := serverops.GetQueryParam(r, "grace", "2h", "How long past the scheduled time an instance may still be started.")
	grace, err := time.ParseDuration(graceStr)
	if err != nil {
		_ = serverops.Error(w, r, fmt.Errorf("invalid grace format: %w", err), serverops.ExecuteOperation)
		return
	}
	missed, err := s.service.SweepMissed(ctx, grace)
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.ExecuteOperation)
		return
	}

	_ = serverops.Encode(w, r, http.StatusOK, sweepResponse{Missed: missed}) // @response stableapi.sweepResponse
}
