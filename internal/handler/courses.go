package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/workshop-registration/internal/model"
)

// courseView adds the derived seat count to a course.
type courseView struct {
	model.Course
	SpotsAvailable *int `json:"spots_available"`
	IsFull         bool `json:"is_full"`
}

func newCourseView(c model.Course) courseView {
	return courseView{Course: c, SpotsAvailable: c.SpotsAvailable(), IsFull: c.IsFull()}
}

// CreateCourse handles POST /courses
func (h *Handler) CreateCourse(w http.ResponseWriter, r *http.Request) {
	var req model.CreateCourseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	course, err := h.courses.CreateCourse(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err, "course")
		return
	}
	writeJSON(w, http.StatusCreated, newCourseView(*course))
}

// ListCourses handles GET /courses
func (h *Handler) ListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.courses.ListCourses(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "course")
		return
	}

	views := make([]courseView, 0, len(courses))
	for _, c := range courses {
		views = append(views, newCourseView(c))
	}
	writeJSON(w, http.StatusOK, views)
}

// GetCourse handles GET /courses/{id}
func (h *Handler) GetCourse(w http.ResponseWriter, r *http.Request) {
	course, err := h.courses.GetCourse(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err, "course")
		return
	}
	writeJSON(w, http.StatusOK, newCourseView(*course))
}

// Register handles POST /courses/{id}/register
// The request is split between confirmed seats and the waitlist; it is never
// rejected for lack of capacity.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	res, err := h.courses.Register(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeServiceError(w, r, err, "course")
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// ListRegistrations handles GET /courses/{id}/registrations
func (h *Handler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := h.courses.ListRegistrations(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err, "course")
		return
	}
	if regs == nil {
		regs = []model.Registration{}
	}
	writeJSON(w, http.StatusOK, regs)
}

// Promote handles POST /registrations/{id}/promote
func (h *Handler) Promote(w http.ResponseWriter, r *http.Request) {
	res, err := h.courses.Promote(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err, "registration")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// DeleteRegistration handles DELETE /registrations/{id}
func (h *Handler) DeleteRegistration(w http.ResponseWriter, r *http.Request) {
	if err := h.courses.DeleteRegistration(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err, "registration")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
