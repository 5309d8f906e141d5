package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nasermirzaei89/agora/commenttree"
	"github.com/nasermirzaei89/agora/discuss"
)

type commentResponse struct {
	ID              string     `json:"id"`
	AuthorID        string     `json:"authorId"`
	PostID          string     `json:"postId"`
	ParentCommentID *string    `json:"parentCommentId,omitempty"`
	Text            string     `json:"text"`
	ReplyCount      int        `json:"replyCount"`
	SeenBy          []string   `json:"seenBy"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       *time.Time `json:"updatedAt,omitempty"`
}

func toCommentResponse(comment *discuss.Comment) commentResponse {
	return commentResponse{
		ID:              comment.ID,
		AuthorID:        comment.AuthorID,
		PostID:          comment.PostID,
		ParentCommentID: comment.ParentCommentID,
		Text:            comment.Text,
		ReplyCount:      comment.ReplyCount,
		SeenBy:          comment.SeenBy,
		CreatedAt:       comment.CreatedAt,
		UpdatedAt:       comment.UpdatedAt,
	}
}

func (h *Handler) HandleListComments(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, r, "failed to parse limit", err)

		return
	}

	params := discuss.ListCommentsParams{
		PostID:          r.PathValue("postId"),
		ParentCommentID: nil,
		Cursor:          r.URL.Query().Get("cursor"),
		Limit:           limit,
	}

	if parentID := r.URL.Query().Get("parentId"); parentID != "" {
		params.ParentCommentID = &parentID
	}

	comments, nextCursor, err := h.discussSvc.ListComments(r.Context(), params)
	if err != nil {
		writeError(w, r, "failed to list comments", err)

		return
	}

	items := make([]commentResponse, 0, len(comments))
	for _, comment := range comments {
		items = append(items, toCommentResponse(comment))
	}

	writeJSON(w, r, http.StatusOK, pageResponse[commentResponse]{Items: items, NextCursor: nextCursor})
}

func (h *Handler) HandleCountComments(w http.ResponseWriter, r *http.Request) {
	count, err := h.discussSvc.CountComments(r.Context(), r.PathValue("postId"))
	if err != nil {
		writeError(w, r, "failed to count comments", err)

		return
	}

	writeJSON(w, r, http.StatusOK, countResponse{Count: count})
}

// maxExpandedComments bounds the reply listings one tree request may run.
const maxExpandedComments = 50

type treeNodeResponse struct {
	Comment  commentResponse `json:"comment"`
	Level    int             `json:"level"`
	Expanded bool            `json:"expanded"`
}

// HandleCommentTree returns one page of root comments flattened in display
// order, with the comments named in the comma separated expand parameter
// opened. Expanded ids are applied in order, so a reply loaded by an earlier
// id can be expanded by a later one.
func (h *Handler) HandleCommentTree(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, r, "failed to parse limit", err)

		return
	}

	expand := make([]string, 0)

	for id := range strings.SplitSeq(r.URL.Query().Get("expand"), ",") {
		id = strings.TrimSpace(id)
		if id != "" {
			expand = append(expand, id)
		}
	}

	if len(expand) > maxExpandedComments {
		writeError(w, r, "too many comments to expand", &InvalidQueryError{
			Name:  "expand",
			Value: strconv.Itoa(len(expand)) + " ids",
		})

		return
	}

	session := commenttree.NewSession(h.discussSvc, r.PathValue("postId"), limit)

	nextCursor, err := session.LoadRoots(r.Context(), r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, r, "failed to load root comments", err)

		return
	}

	for _, id := range expand {
		err = session.ToggleAndLoad(r.Context(), id)
		if err != nil {
			writeError(w, r, "failed to expand comment", err)

			return
		}
	}

	nodes := session.Tree().Nodes()

	items := make([]treeNodeResponse, 0, len(nodes))
	for _, node := range nodes {
		items = append(items, treeNodeResponse{
			Comment:  toCommentResponse(node.Comment),
			Level:    node.Level,
			Expanded: node.Expanded,
		})
	}

	writeJSON(w, r, http.StatusOK, pageResponse[treeNodeResponse]{Items: items, NextCursor: nextCursor})
}

type createCommentRequest struct {
	Text            string  `json:"text"`
	ParentCommentID *string `json:"parentCommentId"`
}

func (h *Handler) HandleCreateComment(w http.ResponseWriter, r *http.Request) {
	var req createCommentRequest

	err := decodeJSON(w, r, &req)
	if err != nil {
		writeError(w, r, "failed to decode request", err)

		return
	}

	comment, err := h.discussSvc.CreateComment(r.Context(), discuss.CreateCommentRequest{
		PostID:          r.PathValue("postId"),
		Text:            req.Text,
		ParentCommentID: req.ParentCommentID,
	})
	if err != nil {
		writeError(w, r, "failed to create comment", err)

		return
	}

	writeJSON(w, r, http.StatusCreated, toCommentResponse(comment))
}

func (h *Handler) HandleGetComment(w http.ResponseWriter, r *http.Request) {
	comment, err := h.discussSvc.GetComment(r.Context(), r.PathValue("commentId"))
	if err != nil {
		writeError(w, r, "failed to get comment", err)

		return
	}

	writeJSON(w, r, http.StatusOK, toCommentResponse(comment))
}

type updateCommentRequest struct {
	Text string `json:"text"`
}

func (h *Handler) HandleUpdateComment(w http.ResponseWriter, r *http.Request) {
	var req updateCommentRequest

	err := decodeJSON(w, r, &req)
	if err != nil {
		writeError(w, r, "failed to decode request", err)

		return
	}

	comment, err := h.discussSvc.UpdateComment(r.Context(), discuss.UpdateCommentRequest{
		CommentID: r.PathValue("commentId"),
		Text:      req.Text,
	})
	if err != nil {
		writeError(w, r, "failed to update comment", err)

		return
	}

	writeJSON(w, r, http.StatusOK, toCommentResponse(comment))
}

type deleteCommentResponse struct {
	DeletedIDs []string `json:"deletedIds"`
}

func (h *Handler) HandleDeleteComment(w http.ResponseWriter, r *http.Request) {
	deletedIDs, err := h.discussSvc.DeleteComment(r.Context(), r.PathValue("commentId"))
	if err != nil {
		writeError(w, r, "failed to delete comment", err)

		return
	}

	writeJSON(w, r, http.StatusOK, deleteCommentResponse{DeletedIDs: deletedIDs})
}

func (h *Handler) HandleMarkCommentsSeen(w http.ResponseWriter, r *http.Request) {
	var req idsRequest

	err := decodeJSON(w, r, &req)
	if err != nil {
		writeError(w, r, "failed to decode request", err)

		return
	}

	err = h.discussSvc.MarkCommentsSeen(r.Context(), req.IDs)
	if err != nil {
		writeError(w, r, "failed to mark comments seen", err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}
