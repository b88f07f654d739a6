package handlers

import (
	"context"
	"net/http"

	"cashback-platform/internal/middleware"
	"cashback-platform/internal/models"

	"github.com/rs/zerolog"
)

type NotificationInbox interface {
	ListForUser(ctx context.Context, userID int, unreadOnly bool, limit, offset int) ([]*models.Notification, error)
	MarkAsRead(ctx context.Context, id, userID int) error
}

type NotificationHandler struct {
	inbox  NotificationInbox
	logger zerolog.Logger
}

func NewNotificationHandler(inbox NotificationInbox, logger zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{
		inbox:  inbox,
		logger: logger,
	}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.GetAuthContext(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	page, perPage, offset := pagination(r)
	unread := parseFlag(r.URL.Query().Get("unread"))

	notifications, err := h.inbox.ListForUser(r.Context(), auth.UserID, unread, perPage, offset)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err, "Notification listing")
		return
	}

	respondWithPage(w, notifications, page, perPage, len(notifications))
}

func (h *NotificationHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.GetAuthContext(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	id, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid notification ID")
		return
	}

	if err := h.inbox.MarkAsRead(r.Context(), id, auth.UserID); err != nil {
		respondWithServiceError(w, r, h.logger, err, "Mark notification")
		return
	}

	respondWithJSON(w, http.StatusOK, "Notification marked as read", nil)
}
