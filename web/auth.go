package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nasermirzaei89/agora/authentication"
	authcontext "github.com/nasermirzaei89/agora/authentication/context"
)

const bearerPrefix = "Bearer "

// authMiddleware resolves the bearer token into the request principal.
// Requests without a token continue as anonymous.
func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)

			return
		}

		token, ok := strings.CutPrefix(header, bearerPrefix)
		if !ok || token == "" {
			writeJSON(w, r, http.StatusUnauthorized, errorResponse{Error: "malformed authorization header"})

			return
		}

		user, err := h.authSvc.Authenticate(r.Context(), token)
		if err != nil {
			var (
				userNotFoundErr *authentication.UserByExternalIDNotFoundError
				invalidRoleErr  *authentication.InvalidRoleError
			)

			switch {
			case errors.Is(err, authentication.ErrInvalidToken):
				writeJSON(w, r, http.StatusUnauthorized, errorResponse{Error: "invalid token"})
			case errors.As(err, &invalidRoleErr):
				writeJSON(w, r, http.StatusUnauthorized, errorResponse{Error: "invalid role claim"})
			case errors.As(err, &userNotFoundErr):
				writeJSON(w, r, http.StatusUnauthorized, errorResponse{Error: "unknown user"})
			default:
				slog.ErrorContext(r.Context(), "failed to authenticate", "error", err)
				writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: "internal error occurred"})
			}

			return
		}

		r = r.WithContext(authcontext.WithPrincipal(r.Context(), user.ID, user.Role))

		next.ServeHTTP(w, r)
	})
}

func isAuthenticated(r *http.Request) bool {
	return authcontext.GetSubject(r.Context()) != authcontext.Anonymous
}

func (h *Handler) AuthenticatedOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isAuthenticated(r) {
			writeJSON(w, r, http.StatusUnauthorized, errorResponse{Error: "authentication required"})

			return
		}

		next.ServeHTTP(w, r)
	})
}

type userResponse struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Role      string     `json:"role"`
	ImageURL  string     `json:"imageUrl,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

func (h *Handler) toUserResponse(r *http.Request, user *authentication.User) userResponse {
	res := userResponse{
		ID:        user.ID,
		Name:      user.Name,
		Role:      string(user.Role),
		ImageURL:  "",
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}

	if user.ImageID != nil {
		url, err := h.blobs.URL(r.Context(), *user.ImageID)
		if err != nil {
			slog.WarnContext(r.Context(), "failed to resolve user image", "userId", user.ID, "error", err)
		}

		res.ImageURL = url
	}

	return res
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.authSvc.GetCurrentUser(r.Context())
	if err != nil {
		writeError(w, r, "failed to get current user", err)

		return
	}

	writeJSON(w, r, http.StatusOK, h.toUserResponse(r, user))
}

func (h *Handler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.authSvc.GetUser(r.Context(), r.PathValue("userId"))
	if err != nil {
		writeError(w, r, "failed to get user", err)

		return
	}

	writeJSON(w, r, http.StatusOK, h.toUserResponse(r, user))
}
