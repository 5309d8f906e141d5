package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/nasermirzaei89/agora/authentication"
	"github.com/nasermirzaei89/agora/authorization"
	"github.com/nasermirzaei89/agora/blob"
	"github.com/nasermirzaei89/agora/chat"
	"github.com/nasermirzaei89/agora/discuss"
	"github.com/nasermirzaei89/agora/forum"
	"github.com/nasermirzaei89/agora/jobs"
	"github.com/nasermirzaei89/agora/notifications"
)

// Services are the collaborators a Handler serves. Blobs may be nil.
type Services struct {
	Auth          *authentication.Service
	Authz         *authorization.Client
	Forum         *forum.Service
	Discuss       discuss.Service
	Notifications *notifications.Service
	Aggregator    *notifications.Aggregator
	Chat          *chat.Service
	Jobs          *jobs.Service
	Blobs         *blob.Store
}

type Handler struct {
	mux           *http.ServeMux
	handler       http.Handler
	authSvc       *authentication.Service
	authzClient   *authorization.Client
	forumSvc      *forum.Service
	discussSvc    discuss.Service
	notifySvc     *notifications.Service
	aggregator    *notifications.Aggregator
	chatSvc       *chat.Service
	jobsSvc       *jobs.Service
	blobs         *blob.Store
	webhookSecret []byte
	healthChecks  []HealthCheck
}

var _ http.Handler = (*Handler)(nil)

// HealthCheck reports whether one backing service is reachable.
type HealthCheck func(ctx context.Context) error

// NewHandler builds the JSON API. The user webhook is only served when
// webhookSecret is set.
func NewHandler(svcs Services, webhookSecret []byte, healthChecks ...HealthCheck) (*Handler, error) {
	if svcs.Auth == nil || svcs.Authz == nil || svcs.Forum == nil || svcs.Discuss == nil ||
		svcs.Notifications == nil || svcs.Aggregator == nil || svcs.Chat == nil || svcs.Jobs == nil {
		return nil, fmt.Errorf("all services except blobs are required")
	}

	h := &Handler{
		mux:           nil,
		handler:       nil,
		authSvc:       svcs.Auth,
		authzClient:   svcs.Authz,
		forumSvc:      svcs.Forum,
		discussSvc:    svcs.Discuss,
		notifySvc:     svcs.Notifications,
		aggregator:    svcs.Aggregator,
		chatSvc:       svcs.Chat,
		jobsSvc:       svcs.Jobs,
		blobs:         svcs.Blobs,
		webhookSecret: webhookSecret,
		healthChecks:  healthChecks,
	}

	{
		h.mux = &http.ServeMux{}
		h.handler = h.mux

		h.registerRoutes()
	}

	{
		h.handler = h.authMiddleware(h.handler)
		h.handler = recoverMiddleware(h.handler)
	}

	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /healthz", h.HandleHealth)
	h.mux.Handle("GET /me", h.AuthenticatedOnly(http.HandlerFunc(h.HandleMe)))
	h.mux.HandleFunc("GET /users/{userId}", h.HandleGetUser)

	h.mux.HandleFunc("GET /threads", h.HandleListThreads)
	h.mux.HandleFunc("POST /threads", h.HandleCreateThread)
	h.mux.HandleFunc("GET /threads/{threadId}", h.HandleGetThread)
	h.mux.HandleFunc("POST /threads/{threadId}/join", h.HandleJoinThread)
	h.mux.HandleFunc("POST /threads/{threadId}/leave", h.HandleLeaveThread)
	h.mux.HandleFunc("GET /threads/{threadId}/unseen", h.HandleThreadUnseenCount)
	h.mux.HandleFunc("GET /threads/{threadId}/posts", h.HandleListPosts)
	h.mux.HandleFunc("POST /threads/{threadId}/posts", h.HandleCreatePost)

	h.mux.HandleFunc("GET /posts/{postId}", h.HandleGetPost)
	h.mux.HandleFunc("PATCH /posts/{postId}", h.HandleUpdatePost)
	h.mux.HandleFunc("POST /posts/{postId}/vote", h.HandleVotePost)
	h.mux.HandleFunc("POST /posts/seen", h.HandleMarkPostsSeen)
	h.mux.HandleFunc("GET /posts/{postId}/unseen", h.HandlePostUnseenCount)

	h.mux.HandleFunc("GET /posts/{postId}/comments", h.HandleListComments)
	h.mux.HandleFunc("GET /posts/{postId}/comments/count", h.HandleCountComments)
	h.mux.HandleFunc("GET /posts/{postId}/comment-tree", h.HandleCommentTree)
	h.mux.HandleFunc("POST /posts/{postId}/comments", h.HandleCreateComment)
	h.mux.HandleFunc("GET /comments/{commentId}", h.HandleGetComment)
	h.mux.HandleFunc("PATCH /comments/{commentId}", h.HandleUpdateComment)
	h.mux.HandleFunc("DELETE /comments/{commentId}", h.HandleDeleteComment)
	h.mux.HandleFunc("POST /comments/seen", h.HandleMarkCommentsSeen)

	h.mux.HandleFunc("GET /notifications", h.HandleListNotifications)
	h.mux.HandleFunc("GET /notifications/unseen-total", h.HandleUnseenTotal)
	h.mux.HandleFunc("DELETE /notifications/{notificationId}", h.HandleDeleteNotification)

	h.mux.HandleFunc("POST /conversations", h.HandleCreateConversation)
	h.mux.HandleFunc("GET /conversations/{conversationId}", h.HandleGetConversation)
	h.mux.HandleFunc("GET /conversations/{conversationId}/messages", h.HandleListMessages)
	h.mux.HandleFunc("POST /conversations/{conversationId}/messages", h.HandleSendMessage)
	h.mux.HandleFunc("POST /conversations/{conversationId}/seen", h.HandleMarkMessagesSeen)
	h.mux.HandleFunc("GET /conversations/{conversationId}/unseen", h.HandleConversationUnseenCount)
	h.mux.HandleFunc("DELETE /messages/{messageId}", h.HandleDeleteMessage)
	h.mux.HandleFunc("POST /messages/{messageId}/hide", h.HandleHideMessage)
	h.mux.HandleFunc("PUT /presence", h.HandleSetOnline)
	h.mux.HandleFunc("DELETE /presence", h.HandleSetOffline)
	h.mux.HandleFunc("GET /users/{userId}/presence", h.HandleGetPresence)

	h.mux.HandleFunc("GET /jobs", h.HandleListJobs)
	h.mux.HandleFunc("POST /jobs", h.HandleCreateJob)
	h.mux.HandleFunc("GET /jobs/{jobId}", h.HandleGetJob)
	h.mux.HandleFunc("POST /jobs/{jobId}/applications", h.HandleApply)
	h.mux.HandleFunc("GET /jobs/{jobId}/applications", h.HandleListApplications)
	h.mux.HandleFunc("PATCH /applications/{applicationId}", h.HandleSetApplicationStatus)

	h.mux.Handle("POST /uploads", h.AuthenticatedOnly(http.HandlerFunc(h.HandleCreateUpload)))

	h.mux.HandleFunc("POST /admin/reconcile", h.HandleReconcile)

	if len(h.webhookSecret) > 0 {
		h.mux.HandleFunc("POST /webhooks/users", h.HandleUserWebhook)
	}
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func(ctx context.Context) {
			if err := recover(); err != nil {
				slog.ErrorContext(
					ctx,
					"recovered from panic",
					"error",
					err,
					"stack",
					string(debug.Stack()),
				)

				writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: "internal error occurred"})
			}
		}(r.Context())

		next.ServeHTTP(w, r)
	})
}

type healthResponse struct {
	Status string `json:"status"`
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	for _, check := range h.healthChecks {
		err := check(r.Context())
		if err != nil {
			slog.ErrorContext(r.Context(), "health check failed", "error", err)
			writeJSON(w, r, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})

			return
		}
	}

	writeJSON(w, r, http.StatusOK, healthResponse{Status: "ok"})
}
