package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/workshop-registration/internal/model"
)

// ListTemplates handles GET /templates
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	tpls, err := h.messages.ListTemplates(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "template")
		return
	}
	if tpls == nil {
		tpls = []model.MessageTemplate{}
	}
	writeJSON(w, http.StatusOK, tpls)
}

// UpdateTemplate handles PUT /templates/{channel}/{trigger}
func (h *Handler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateTemplateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	tpl, err := h.messages.UpdateTemplate(r.Context(),
		model.Channel(chi.URLParam(r, "channel")),
		model.Trigger(chi.URLParam(r, "trigger")),
		req,
	)
	if err != nil {
		h.writeServiceError(w, r, err, "template")
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

// ListMessages handles GET /messages?limit=N
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	logs, err := h.messages.ListMessages(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, r, err, "message")
		return
	}
	if logs == nil {
		logs = []model.MessageLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}

// GetSMSSetting handles GET /settings/sms
func (h *Handler) GetSMSSetting(w http.ResponseWriter, r *http.Request) {
	status, err := h.messages.SMSStatus(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "setting")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// SetSMSSetting handles PUT /settings/sms
func (h *Handler) SetSMSSetting(w http.ResponseWriter, r *http.Request) {
	var req model.SMSSettingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	status, err := h.messages.SetSMSEnabled(r.Context(), req.Enabled)
	if err != nil {
		h.writeServiceError(w, r, err, "setting")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// ProcessScheduled handles POST /scheduled/process
// Runs one sweep over due scheduled messages.
func (h *Handler) ProcessScheduled(w http.ResponseWriter, r *http.Request) {
	n, err := h.messages.ProcessScheduled(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "scheduled message")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"processed": n})
}
