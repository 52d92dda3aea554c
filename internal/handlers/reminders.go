package handlers

import (
	"errors"
	"net/http"
	"time"

	logpkg "github.com/benvon/smart-reminders/internal/logger"
	"github.com/benvon/smart-reminders/internal/models"
	"github.com/benvon/smart-reminders/internal/request"
	"github.com/benvon/smart-reminders/internal/search"
	"github.com/benvon/smart-reminders/internal/services/reminders"
	"github.com/benvon/smart-reminders/internal/timeslots"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// ReminderHandler handles reminder requests
type ReminderHandler struct {
	svc    *reminders.Service
	logger *zap.Logger
	loc    *time.Location
	now    func() time.Time
}

// NewReminderHandler creates a reminder handler. Slot times are interpreted
// in loc.
func NewReminderHandler(svc *reminders.Service, loc *time.Location, logger *zap.Logger) *ReminderHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &ReminderHandler{svc: svc, logger: logger, loc: loc, now: time.Now}
}

// RegisterRoutes registers reminder routes on a router that already has the
// /reminders prefix
func (h *ReminderHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListReminders).Methods(http.MethodGet)
	r.HandleFunc("", h.CreateReminder).Methods(http.MethodPost)
	r.HandleFunc("/{id}", h.GetReminder).Methods(http.MethodGet)
	r.HandleFunc("/{id}", h.DeleteReminder).Methods(http.MethodDelete)
	r.HandleFunc("/{id}/toggle", h.ToggleReminder).Methods(http.MethodPost)
	r.HandleFunc("/{id}/card", h.GetCard).Methods(http.MethodGet)
	r.HandleFunc("/{id}/card/toggle", h.ToggleCard).Methods(http.MethodPost)
	r.HandleFunc("/{id}/slots", h.AddTimeSlot).Methods(http.MethodPost)
	r.HandleFunc("/{id}/slots/{slotId}", h.RemoveTimeSlot).Methods(http.MethodDelete)
	r.HandleFunc("/{id}/slots/{slotId}/toggle", h.ToggleTimeSlot).Methods(http.MethodPost)
	r.HandleFunc("/{id}/slots/{slotId}/status", h.SetTimeSlotStatus).Methods(http.MethodPut)
}

// TimeSlotRequest is one slot of a create request
type TimeSlotRequest struct {
	ID          string  `json:"id,omitempty" validate:"omitempty,max=64"`
	Time        string  `json:"time" validate:"required,time_of_day"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
}

// CreateReminderRequest represents a create reminder request
type CreateReminderRequest struct {
	Title         string            `json:"title" validate:"required,max=200"`
	Description   string            `json:"description,omitempty" validate:"max=2000"`
	ScheduledTime *time.Time        `json:"scheduled_time,omitempty"`
	TimeSlots     []TimeSlotRequest `json:"time_slots,omitempty" validate:"max=48,dive"`
}

// SetSlotStatusRequest sets a slot to an explicit status
type SetSlotStatusRequest struct {
	Status string `json:"status" validate:"required,slot_status"`
}

// ReminderListItem is a reminder plus match details when listing with a query
type ReminderListItem struct {
	*models.Reminder
	TitleSegments []search.Segment `json:"title_segments,omitempty"`
	MatchCount    int              `json:"match_count,omitempty"`
}

// ListRemindersResponse represents the paginated response for listing reminders
type ListRemindersResponse struct {
	Reminders  []ReminderListItem `json:"reminders"`
	Query      string             `json:"query,omitempty"`
	Page       int                `json:"page"`
	PageSize   int                `json:"page_size"`
	Total      int                `json:"total"`
	TotalPages int                `json:"total_pages"`
}

// userAndID resolves the caller and the {id} path variable. It writes the
// error response and returns false on failure.
func (h *ReminderHandler) userAndID(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := request.UserID(r)
	if !ok {
		respondJSONError(w, r, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, r, http.StatusBadRequest, "Bad Request", "Invalid reminder ID")
		return uuid.Nil, uuid.Nil, false
	}
	return userID, id, true
}

// respondServiceError maps service errors onto HTTP responses
func (h *ReminderHandler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, reminders.ErrReminderNotFound):
		respondJSONError(w, r, http.StatusNotFound, "Not Found", "Reminder not found")
	case errors.Is(err, reminders.ErrTimeSlotNotFound):
		respondJSONError(w, r, http.StatusNotFound, "Not Found", "Time slot not found")
	case reminders.IsValidationError(err):
		respondJSONError(w, r, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, reminders.ErrUpdateFailed):
		h.logger.Warn("reminder_update_failed",
			zap.String("error", logpkg.SanitizeError(err)),
			zap.String("request_id", request.RequestID(r.Context())),
		)
		respondRetryableError(w, r, http.StatusBadGateway, "Update Failed", "The change could not be saved, please try again")
	case errors.Is(err, timeslots.ErrCardClosed):
		respondRetryableError(w, r, http.StatusConflict, "Conflict", "The reminder changed while the request was in flight")
	default:
		h.logger.Error("reminder_request_failed",
			zap.String("path", logpkg.SanitizePath(r.URL.Path)),
			zap.String("error", logpkg.SanitizeError(err)),
			zap.String("request_id", request.RequestID(r.Context())),
		)
		respondJSONError(w, r, http.StatusInternalServerError, "Internal Server Error", "Failed to process reminder request")
	}
}

// ListReminders lists the caller's reminders, optionally filtered by ?q=
func (h *ReminderHandler) ListReminders(w http.ResponseWriter, r *http.Request) {
	userID, ok := request.UserID(r)
	if !ok {
		respondJSONError(w, r, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	query := search.Normalize(r.URL.Query().Get("q"))
	page, pageSize := parsePage(r)

	list, total, err := h.svc.List(r.Context(), userID, query, page, pageSize)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	items := make([]ReminderListItem, 0, len(list))
	for _, rem := range list {
		item := ReminderListItem{Reminder: rem}
		if query != "" {
			item.TitleSegments = search.Highlight(rem.Title, query)
			item.MatchCount = search.MatchCount(rem.Title, query) + search.MatchCount(rem.Description, query)
		}
		items = append(items, item)
	}

	totalPages := (total + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}

	respondJSON(w, http.StatusOK, ListRemindersResponse{
		Reminders:  items,
		Query:      query,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
	})
}

// CreateReminder creates a reminder for the caller
func (h *ReminderHandler) CreateReminder(w http.ResponseWriter, r *http.Request) {
	userID, ok := request.UserID(r)
	if !ok {
		respondJSONError(w, r, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	var req CreateReminderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	input := reminders.CreateInput{
		Title:         req.Title,
		Description:   req.Description,
		ScheduledTime: req.ScheduledTime,
		TimeSlots:     make([]reminders.SlotInput, 0, len(req.TimeSlots)),
	}
	for _, s := range req.TimeSlots {
		input.TimeSlots = append(input.TimeSlots, reminders.SlotInput{ID: s.ID, Time: s.Time, Description: s.Description})
	}

	rem, err := h.svc.Create(r.Context(), userID, input)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, rem)
}

// GetReminder returns one reminder
func (h *ReminderHandler) GetReminder(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.userAndID(w, r)
	if !ok {
		return
	}
	rem, err := h.svc.Get(r.Context(), userID, id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rem)
}

// DeleteReminder deletes a reminder and cancels its notifications
func (h *ReminderHandler) DeleteReminder(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.userAndID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), userID, id); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleReminder flips a single-time reminder between pending and completed
func (h *ReminderHandler) ToggleReminder(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.userAndID(w, r)
	if !ok {
		return
	}
	if _, err := h.svc.Get(r.Context(), userID, id); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	rem, err := h.svc.ToggleReminderStatus(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rem)
}

// ToggleTimeSlot flips one slot between pending and completed
func (h *ReminderHandler) ToggleTimeSlot(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.userAndID(w, r)
	if !ok {
		return
	}
	if _, err := h.svc.Get(r.Context(), userID, id); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	rem, err := h.svc.ToggleTimeSlotStatus(r.Context(), id, mux.Vars(r)["slotId"])
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rem)
}

// SetTimeSlotStatus sets one slot to the requested status
func (h *ReminderHandler) SetTimeSlotStatus(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.userAndID(w, r)
	if !ok {
		return
	}
	var req SetSlotStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, err := h.svc.Get(r.Context(), userID, id); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	rem, err := h.svc.SetTimeSlotStatus(r.Context(), id, mux.Vars(r)["slotId"], models.SlotStatus(req.Status))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rem)
}

// AddTimeSlot appends a slot to a reminder
func (h *ReminderHandler) AddTimeSlot(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.userAndID(w, r)
	if !ok {
		return
	}
	var req TimeSlotRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rem, err := h.svc.AddTimeSlot(r.Context(), userID, id, reminders.SlotInput{ID: req.ID, Time: req.Time, Description: req.Description})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, rem)
}

// RemoveTimeSlot deletes a slot from a reminder
func (h *ReminderHandler) RemoveTimeSlot(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.userAndID(w, r)
	if !ok {
		return
	}
	rem, err := h.svc.RemoveTimeSlot(r.Context(), userID, id, mux.Vars(r)["slotId"])
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rem)
}

// cardTime returns ?now= or the current time, in the handler's location
func (h *ReminderHandler) cardTime(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	now, err := parseTime(r, "now", h.now())
	if err != nil {
		respondJSONError(w, r, http.StatusBadRequest, "Bad Request", err.Error())
		return time.Time{}, false
	}
	return now.In(h.loc), true
}

// GetCard renders the reminder card for ?selected= at ?now=
func (h *ReminderHandler) GetCard(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.userAndID(w, r)
	if !ok {
		return
	}
	now, ok := h.cardTime(w, r)
	if !ok {
		return
	}
	view, err := h.svc.Card(r.Context(), userID, id, r.URL.Query().Get("selected"), now)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// ToggleCard toggles ?slot= or the card's active slot and returns the
// refreshed card with the selection kept
func (h *ReminderHandler) ToggleCard(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.userAndID(w, r)
	if !ok {
		return
	}
	now, ok := h.cardTime(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	view, err := h.svc.ToggleCard(r.Context(), userID, id, q.Get("selected"), q.Get("slot"), now)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}
