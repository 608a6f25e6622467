// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Shivanand-hulikatti/workshop-registration/internal/model"
	"github.com/Shivanand-hulikatti/workshop-registration/internal/repository"
	"github.com/Shivanand-hulikatti/workshop-registration/internal/scheduler"
	"github.com/Shivanand-hulikatti/workshop-registration/internal/service"
)

// Handler holds all HTTP handlers for the workshop API.
type Handler struct {
	courses  *service.CourseService
	messages *service.MessagingService
	logger   zerolog.Logger
}

// New constructs a Handler.
func New(courses *service.CourseService, messages *service.MessagingService, logger zerolog.Logger) *Handler {
	return &Handler{courses: courses, messages: messages, logger: logger}
}

// Routes mounts every endpoint on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", HealthCheck)

	r.Route("/courses", func(r chi.Router) {
		r.Post("/", h.CreateCourse)
		r.Get("/", h.ListCourses)
		r.Get("/{id}", h.GetCourse)
		r.Post("/{id}/register", h.Register)
		r.Get("/{id}/registrations", h.ListRegistrations)
	})

	r.Route("/registrations/{id}", func(r chi.Router) {
		r.Post("/promote", h.Promote)
		r.Delete("/", h.DeleteRegistration)
	})

	r.Get("/templates", h.ListTemplates)
	r.Put("/templates/{channel}/{trigger}", h.UpdateTemplate)
	r.Get("/messages", h.ListMessages)
	r.Get("/settings/sms", h.GetSMSSetting)
	r.Put("/settings/sms", h.SetSMSSetting)
	r.Post("/scheduled/process", h.ProcessScheduled)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeServiceError maps domain errors to status codes. what names the
// resource for 404 responses.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, what string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: "validation failed", Fields: verr.Fields})
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, what+" not found")
	case errors.Is(err, repository.ErrNotWaitlisted),
		errors.Is(err, repository.ErrNoSpotsAvailable),
		errors.Is(err, service.ErrCourseInactive),
		errors.Is(err, scheduler.ErrSweepInProgress):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
