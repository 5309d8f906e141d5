package web

import (
	"net/http"
	"time"

	"github.com/nasermirzaei89/agora/forum"
)

type threadResponse struct {
	ID          string     `json:"id"`
	AuthorID    string     `json:"authorId"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	ImageID     *string    `json:"imageId,omitempty"`
	ImageURL    string     `json:"imageUrl,omitempty"`
	MemberIDs   []string   `json:"memberIds"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

func toThreadResponse(thread *forum.Thread) threadResponse {
	return threadResponse{
		ID:          thread.ID,
		AuthorID:    thread.AuthorID,
		Title:       thread.Title,
		Description: thread.Description,
		ImageID:     thread.ImageID,
		ImageURL:    thread.ImageURL,
		MemberIDs:   thread.MemberIDs,
		CreatedAt:   thread.CreatedAt,
		UpdatedAt:   thread.UpdatedAt,
	}
}

type voteResponse struct {
	UserID string `json:"userId"`
	Value  string `json:"value"`
}

type postResponse struct {
	ID        string         `json:"id"`
	AuthorID  string         `json:"authorId"`
	ThreadID  string         `json:"threadId"`
	Title     string         `json:"title"`
	Content   *string        `json:"content,omitempty"`
	Votes     []voteResponse `json:"votes"`
	SeenBy    []string       `json:"seenBy"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt *time.Time     `json:"updatedAt,omitempty"`
}

func toPostResponse(post *forum.Post) postResponse {
	votes := make([]voteResponse, 0, len(post.Votes))
	for _, vote := range post.Votes {
		votes = append(votes, voteResponse{UserID: vote.UserID, Value: string(vote.Value)})
	}

	return postResponse{
		ID:        post.ID,
		AuthorID:  post.AuthorID,
		ThreadID:  post.ThreadID,
		Title:     post.Title,
		Content:   post.Content,
		Votes:     votes,
		SeenBy:    post.SeenBy,
		CreatedAt: post.CreatedAt,
		UpdatedAt: post.UpdatedAt,
	}
}

type countResponse struct {
	Count int `json:"count"`
}

type idsRequest struct {
	IDs []string `json:"ids"`
}

func (h *Handler) HandleListThreads(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, r, "failed to parse limit", err)

		return
	}

	threads, nextCursor, err := h.forumSvc.ListThreads(r.Context(), r.URL.Query().Get("cursor"), limit)
	if err != nil {
		writeError(w, r, "failed to list threads", err)

		return
	}

	items := make([]threadResponse, 0, len(threads))
	for _, thread := range threads {
		items = append(items, toThreadResponse(thread))
	}

	writeJSON(w, r, http.StatusOK, pageResponse[threadResponse]{Items: items, NextCursor: nextCursor})
}

type createThreadRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	ImageID     *string `json:"imageId"`
}

func (h *Handler) HandleCreateThread(w http.ResponseWriter, r *http.Request) {
	var req createThreadRequest

	err := decodeJSON(w, r, &req)
	if err != nil {
		writeError(w, r, "failed to decode request", err)

		return
	}

	thread, err := h.forumSvc.CreateThread(r.Context(), forum.CreateThreadRequest{
		Title:       req.Title,
		Description: req.Description,
		ImageID:     req.ImageID,
	})
	if err != nil {
		writeError(w, r, "failed to create thread", err)

		return
	}

	writeJSON(w, r, http.StatusCreated, toThreadResponse(thread))
}

func (h *Handler) HandleGetThread(w http.ResponseWriter, r *http.Request) {
	thread, err := h.forumSvc.GetThread(r.Context(), r.PathValue("threadId"))
	if err != nil {
		writeError(w, r, "failed to get thread", err)

		return
	}

	writeJSON(w, r, http.StatusOK, toThreadResponse(thread))
}

func (h *Handler) HandleJoinThread(w http.ResponseWriter, r *http.Request) {
	err := h.forumSvc.JoinThread(r.Context(), r.PathValue("threadId"))
	if err != nil {
		writeError(w, r, "failed to join thread", err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleLeaveThread(w http.ResponseWriter, r *http.Request) {
	err := h.forumSvc.LeaveThread(r.Context(), r.PathValue("threadId"))
	if err != nil {
		writeError(w, r, "failed to leave thread", err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleThreadUnseenCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.notifySvc.ThreadUnseenCount(r.Context(), r.PathValue("threadId"))
	if err != nil {
		writeError(w, r, "failed to count unseen posts", err)

		return
	}

	writeJSON(w, r, http.StatusOK, countResponse{Count: count})
}

func (h *Handler) HandleListPosts(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, r, "failed to parse limit", err)

		return
	}

	posts, nextCursor, err := h.forumSvc.ListPosts(r.Context(), r.PathValue("threadId"), r.URL.Query().Get("cursor"), limit)
	if err != nil {
		writeError(w, r, "failed to list posts", err)

		return
	}

	items := make([]postResponse, 0, len(posts))
	for _, post := range posts {
		items = append(items, toPostResponse(post))
	}

	writeJSON(w, r, http.StatusOK, pageResponse[postResponse]{Items: items, NextCursor: nextCursor})
}

type postRequest struct {
	Title   string  `json:"title"`
	Content *string `json:"content"`
}

func (h *Handler) HandleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req postRequest

	err := decodeJSON(w, r, &req)
	if err != nil {
		writeError(w, r, "failed to decode request", err)

		return
	}

	post, err := h.forumSvc.CreatePost(r.Context(), forum.CreatePostRequest{
		ThreadID: r.PathValue("threadId"),
		Title:    req.Title,
		Content:  req.Content,
	})
	if err != nil {
		writeError(w, r, "failed to create post", err)

		return
	}

	writeJSON(w, r, http.StatusCreated, toPostResponse(post))
}

func (h *Handler) HandleGetPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.forumSvc.GetPost(r.Context(), r.PathValue("postId"))
	if err != nil {
		writeError(w, r, "failed to get post", err)

		return
	}

	writeJSON(w, r, http.StatusOK, toPostResponse(post))
}

func (h *Handler) HandleUpdatePost(w http.ResponseWriter, r *http.Request) {
	var req postRequest

	err := decodeJSON(w, r, &req)
	if err != nil {
		writeError(w, r, "failed to decode request", err)

		return
	}

	post, err := h.forumSvc.UpdatePost(r.Context(), forum.UpdatePostRequest{
		PostID:  r.PathValue("postId"),
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		writeError(w, r, "failed to update post", err)

		return
	}

	writeJSON(w, r, http.StatusOK, toPostResponse(post))
}

type voteRequest struct {
	Value string `json:"value"`
}

func (h *Handler) HandleVotePost(w http.ResponseWriter, r *http.Request) {
	var req voteRequest

	err := decodeJSON(w, r, &req)
	if err != nil {
		writeError(w, r, "failed to decode request", err)

		return
	}

	post, err := h.forumSvc.VotePost(r.Context(), r.PathValue("postId"), forum.VoteValue(req.Value))
	if err != nil {
		writeError(w, r, "failed to vote post", err)

		return
	}

	writeJSON(w, r, http.StatusOK, toPostResponse(post))
}

func (h *Handler) HandleMarkPostsSeen(w http.ResponseWriter, r *http.Request) {
	var req idsRequest

	err := decodeJSON(w, r, &req)
	if err != nil {
		writeError(w, r, "failed to decode request", err)

		return
	}

	err = h.forumSvc.MarkPostsSeen(r.Context(), req.IDs)
	if err != nil {
		writeError(w, r, "failed to mark posts seen", err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandlePostUnseenCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.notifySvc.PostUnseenCount(r.Context(), r.PathValue("postId"))
	if err != nil {
		writeError(w, r, "failed to count unseen comments", err)

		return
	}

	writeJSON(w, r, http.StatusOK, countResponse{Count: count})
}
