package discuss

import (
	"context"
	"fmt"
	"time"
)

// Comment belongs to a post. Root comments have no parent. ReplyCount tracks
// the number of direct children.
type Comment struct {
	ID              string
	AuthorID        string
	PostID          string
	ParentCommentID *string
	Text            string
	ReplyCount      int
	SeenBy          []string
	CreatedAt       time.Time
	UpdatedAt       *time.Time
}

type CommentRepository interface {
	Insert(ctx context.Context, comment *Comment) (err error)
	Find(ctx context.Context, commentID string) (comment *Comment, err error)
	UpdateText(ctx context.Context, comment *Comment) (err error)
	Delete(ctx context.Context, commentID string) (err error)
	ListChildIDs(ctx context.Context, commentID string) (childIDs []string, err error)
	IncrementReplyCount(ctx context.Context, commentID string) (err error)
	DecrementReplyCount(ctx context.Context, commentID string) (err error)
	MarkSeen(ctx context.Context, commentIDs []string, userID string) (err error)
	List(ctx context.Context, params *ListCommentsParams) (comments []*Comment, nextCursor string, err error)
	Count(ctx context.Context, postID string) (count int, err error)
}

// ListCommentsParams selects one level of a post's comments. A nil
// ParentCommentID lists root comments.
type ListCommentsParams struct {
	PostID          string
	ParentCommentID *string
	Cursor          string
	Limit           int
}

type CommentNotFoundError struct {
	ID string
}

func (err CommentNotFoundError) Error() string {
	return fmt.Sprintf("comment with id %q not found", err.ID)
}

func (err CommentNotFoundError) NotFound() bool { return true }

type ParentMismatchError struct {
	ParentCommentID string
	PostID          string
}

func (err ParentMismatchError) Error() string {
	return fmt.Sprintf("parent comment %q does not belong to post %q", err.ParentCommentID, err.PostID)
}

func (err ParentMismatchError) InvalidState() bool { return true }
