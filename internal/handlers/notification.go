package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/smartkubik/import-api/internal/models"
	"github.com/smartkubik/import-api/internal/notification"
	"github.com/smartkubik/import-api/internal/repository"
)

// NotificationHandler serves the caller's import notifications.
type NotificationHandler struct {
	service notification.Service
	logger  zerolog.Logger
}

func NewNotificationHandler(service notification.Service, logger zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		logger:  logger.With().Str("handler", "notifications").Logger(),
	}
}

// List accepts ?unread=true, ?import_job_id= and ?limit=.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, ok := identity(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	unread, _ := strconv.ParseBool(q.Get("unread"))
	filter := models.NotificationFilter{
		UnreadOnly:  unread,
		ImportJobID: strings.TrimSpace(q.Get("import_job_id")),
		Limit:       queryInt(r, "limit", 25),
	}

	items, err := h.service.List(r.Context(), tenantID, userID, filter)
	if err != nil {
		h.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("Notifications not listed")
		writeError(w, http.StatusInternalServerError, "Failed to list notifications")
		return
	}
	if items == nil {
		items = []models.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"notifications": items})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, ok := identity(w, r)
	if !ok {
		return
	}
	id := strings.TrimSpace(mux.Vars(r)["notificationID"])
	if id == "" {
		writeError(w, http.StatusBadRequest, "Notification ID is required")
		return
	}

	n, err := h.service.MarkRead(r.Context(), tenantID, userID, id)
	switch {
	case errors.Is(err, repository.ErrNotificationNotFound):
		writeError(w, http.StatusNotFound, "Notification not found")
	case err != nil:
		h.logger.Error().Err(err).Str("notification_id", id).Msg("Notification not marked read")
		writeError(w, http.StatusInternalServerError, "Failed to update notification")
	default:
		writeJSON(w, http.StatusOK, n)
	}
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, ok := identity(w, r)
	if !ok {
		return
	}
	updated, err := h.service.MarkAllRead(r.Context(), tenantID, userID)
	if err != nil {
		h.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("Notifications not marked read")
		writeError(w, http.StatusInternalServerError, "Failed to update notifications")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": updated})
}
