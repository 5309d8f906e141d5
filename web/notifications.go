package web

import (
	"net/http"
	"time"

	"github.com/nasermirzaei89/agora/notifications"
)

type notificationResponse struct {
	ID          string     `json:"id"`
	ReferenceID string     `json:"referenceId"`
	Kind        string     `json:"kind"`
	UnseenCount *int       `json:"unseenCount,omitempty"`
	Message     string     `json:"message"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

func toNotificationResponse(notification *notifications.Notification) notificationResponse {
	return notificationResponse{
		ID:          notification.ID,
		ReferenceID: notification.ReferenceID,
		Kind:        string(notification.Kind),
		UnseenCount: notification.UnseenCount,
		Message:     notification.Message,
		CreatedAt:   notification.CreatedAt,
		UpdatedAt:   notification.UpdatedAt,
	}
}

func (h *Handler) HandleListNotifications(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, r, "failed to parse limit", err)

		return
	}

	list, nextCursor, err := h.notifySvc.ListNotifications(r.Context(), r.URL.Query().Get("cursor"), limit)
	if err != nil {
		writeError(w, r, "failed to list notifications", err)

		return
	}

	items := make([]notificationResponse, 0, len(list))
	for _, notification := range list {
		items = append(items, toNotificationResponse(notification))
	}

	writeJSON(w, r, http.StatusOK, pageResponse[notificationResponse]{Items: items, NextCursor: nextCursor})
}

func (h *Handler) HandleUnseenTotal(w http.ResponseWriter, r *http.Request) {
	total, err := h.notifySvc.UnseenTotal(r.Context())
	if err != nil {
		writeError(w, r, "failed to sum unseen counts", err)

		return
	}

	writeJSON(w, r, http.StatusOK, countResponse{Count: total})
}

func (h *Handler) HandleDeleteNotification(w http.ResponseWriter, r *http.Request) {
	err := h.notifySvc.DeleteNotification(r.Context(), r.PathValue("notificationId"))
	if err != nil {
		writeError(w, r, "failed to delete notification", err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

const (
	domainNotifications = "notifications"
	actionReconcile     = "reconcile"
)

// HandleReconcile runs one aggregator pass synchronously.
func (h *Handler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	err := h.authzClient.CheckAccess(r.Context(), domainNotifications, "", actionReconcile)
	if err != nil {
		writeError(w, r, "failed to check authorization", err)

		return
	}

	report, err := h.aggregator.Run(r.Context())
	if err != nil {
		writeError(w, r, "failed to reconcile notifications", err)

		return
	}

	writeJSON(w, r, http.StatusOK, report)
}
