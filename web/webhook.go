package web

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/nasermirzaei89/agora/authentication"
	authcontext "github.com/nasermirzaei89/agora/authentication/context"
)

const (
	signatureHeader = "X-Webhook-Signature"
	signaturePrefix = "sha256="

	userEventUpserted = "user.upserted"
	userEventDeleted  = "user.deleted"
)

type userWebhookRequest struct {
	Type string `json:"type"`
	User struct {
		ExternalID string  `json:"externalId"`
		Name       string  `json:"name"`
		Role       string  `json:"role"`
		ImageID    *string `json:"imageId"`
	} `json:"user"`
}

func sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)

	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

func verifySignature(secret, body []byte, signature string) bool {
	if !strings.HasPrefix(signature, signaturePrefix) {
		return false
	}

	return hmac.Equal([]byte(sign(secret, body)), []byte(signature))
}

// HandleUserWebhook mirrors identity provider user changes into the local
// user table. The body must be signed with the shared webhook secret.
func (h *Handler) HandleUserWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, "failed to read webhook body", &InvalidBodyError{Err: err})

		return
	}

	if !verifySignature(h.webhookSecret, body, r.Header.Get(signatureHeader)) {
		writeJSON(w, r, http.StatusUnauthorized, errorResponse{Error: "invalid signature"})

		return
	}

	var req userWebhookRequest

	err = json.Unmarshal(body, &req)
	if err != nil {
		writeError(w, r, "failed to decode webhook body", &InvalidBodyError{Err: err})

		return
	}

	if req.User.ExternalID == "" {
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "user external id is required"})

		return
	}

	switch req.Type {
	case userEventUpserted:
		user, err := h.authSvc.UpsertUser(r.Context(), authentication.UpsertUserRequest{
			ExternalID: req.User.ExternalID,
			Name:       req.User.Name,
			Role:       authcontext.Role(req.User.Role),
			ImageID:    req.User.ImageID,
		})
		if err != nil {
			writeError(w, r, "failed to upsert user", err)

			return
		}

		writeJSON(w, r, http.StatusOK, h.toUserResponse(r, user))
	case userEventDeleted:
		err = h.authSvc.DeleteUser(r.Context(), req.User.ExternalID)
		if err != nil {
			writeError(w, r, "failed to delete user", err)

			return
		}

		w.WriteHeader(http.StatusNoContent)
	default:
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "unknown event type " + req.Type})
	}
}
