package web

import (
	"net/http"
	"time"

	"github.com/nasermirzaei89/agora/chat"
)

type conversationResponse struct {
	ID        string    `json:"id"`
	MemberIDs []string  `json:"memberIds"`
	CreatedAt time.Time `json:"createdAt"`
}

func toConversationResponse(conversation *chat.Conversation) conversationResponse {
	return conversationResponse{
		ID:        conversation.ID,
		MemberIDs: conversation.MemberIDs,
		CreatedAt: conversation.CreatedAt,
	}
}

type messageResponse struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	AuthorID       string    `json:"authorId"`
	Text           string    `json:"text"`
	SeenBy         []string  `json:"seenBy"`
	CreatedAt      time.Time `json:"createdAt"`
}

func toMessageResponse(message *chat.Message) messageResponse {
	return messageResponse{
		ID:             message.ID,
		ConversationID: message.ConversationID,
		AuthorID:       message.AuthorID,
		Text:           message.Text,
		SeenBy:         message.SeenBy,
		CreatedAt:      message.CreatedAt,
	}
}

type createConversationRequest struct {
	MemberIDs []string `json:"memberIds"`
}

func (h *Handler) HandleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest

	err := decodeJSON(w, r, &req)
	if err != nil {
		writeError(w, r, "failed to decode request", err)

		return
	}

	conversation, err := h.chatSvc.CreateConversation(r.Context(), req.MemberIDs)
	if err != nil {
		writeError(w, r, "failed to create conversation", err)

		return
	}

	writeJSON(w, r, http.StatusCreated, toConversationResponse(conversation))
}

func (h *Handler) HandleGetConversation(w http.ResponseWriter, r *http.Request) {
	conversation, err := h.chatSvc.GetConversation(r.Context(), r.PathValue("conversationId"))
	if err != nil {
		writeError(w, r, "failed to get conversation", err)

		return
	}

	writeJSON(w, r, http.StatusOK, toConversationResponse(conversation))
}

func (h *Handler) HandleListMessages(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, r, "failed to parse limit", err)

		return
	}

	messages, nextCursor, err := h.chatSvc.ListMessages(
		r.Context(),
		r.PathValue("conversationId"),
		r.URL.Query().Get("cursor"),
		limit,
	)
	if err != nil {
		writeError(w, r, "failed to list messages", err)

		return
	}

	items := make([]messageResponse, 0, len(messages))
	for _, message := range messages {
		items = append(items, toMessageResponse(message))
	}

	writeJSON(w, r, http.StatusOK, pageResponse[messageResponse]{Items: items, NextCursor: nextCursor})
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

func (h *Handler) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest

	err := decodeJSON(w, r, &req)
	if err != nil {
		writeError(w, r, "failed to decode request", err)

		return
	}

	message, err := h.chatSvc.SendMessage(r.Context(), r.PathValue("conversationId"), req.Text)
	if err != nil {
		writeError(w, r, "failed to send message", err)

		return
	}

	writeJSON(w, r, http.StatusCreated, toMessageResponse(message))
}

func (h *Handler) HandleMarkMessagesSeen(w http.ResponseWriter, r *http.Request) {
	var req idsRequest

	err := decodeJSON(w, r, &req)
	if err != nil {
		writeError(w, r, "failed to decode request", err)

		return
	}

	err = h.chatSvc.MarkMessagesSeen(r.Context(), r.PathValue("conversationId"), req.IDs)
	if err != nil {
		writeError(w, r, "failed to mark messages seen", err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleConversationUnseenCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.notifySvc.ConversationUnseenCount(r.Context(), r.PathValue("conversationId"))
	if err != nil {
		writeError(w, r, "failed to count unseen messages", err)

		return
	}

	writeJSON(w, r, http.StatusOK, countResponse{Count: count})
}

func (h *Handler) HandleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	err := h.chatSvc.DeleteMessage(r.Context(), r.PathValue("messageId"))
	if err != nil {
		writeError(w, r, "failed to delete message", err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleHideMessage(w http.ResponseWriter, r *http.Request) {
	err := h.chatSvc.HideMessage(r.Context(), r.PathValue("messageId"))
	if err != nil {
		writeError(w, r, "failed to hide message", err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleSetOnline(w http.ResponseWriter, r *http.Request) {
	err := h.chatSvc.SetOnline(r.Context())
	if err != nil {
		writeError(w, r, "failed to set online", err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleSetOffline(w http.ResponseWriter, r *http.Request) {
	err := h.chatSvc.SetOffline(r.Context())
	if err != nil {
		writeError(w, r, "failed to set offline", err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type presenceResponse struct {
	Online bool `json:"online"`
}

func (h *Handler) HandleGetPresence(w http.ResponseWriter, r *http.Request) {
	online, err := h.chatSvc.IsOnline(r.Context(), r.PathValue("userId"))
	if err != nil {
		writeError(w, r, "failed to check presence", err)

		return
	}

	writeJSON(w, r, http.StatusOK, presenceResponse{Online: online})
}
