package forum

import (
	"context"
	"fmt"
	"time"
)

// Thread is a discussion space. Its author is an implicit member and is not
// listed in MemberIDs.
type Thread struct {
	ID          string
	AuthorID    string
	Title       string
	Description *string
	ImageID     *string
	ImageURL    string // resolved on read, not stored
	MemberIDs   []string
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}

type ThreadRepository interface {
	Insert(ctx context.Context, thread *Thread) (err error)
	Find(ctx context.Context, threadID string) (thread *Thread, err error)
	List(ctx context.Context, params *ListThreadsParams) (threads []*Thread, nextCursor string, err error)
	AddMember(ctx context.Context, threadID, userID string) (err error)
	RemoveMember(ctx context.Context, threadID, userID string) (err error)
}

type ListThreadsParams struct {
	Cursor string
	Limit  int
}

type ThreadNotFoundError struct {
	ID string
}

func (err ThreadNotFoundError) Error() string {
	return fmt.Sprintf("thread with id %q not found", err.ID)
}

func (err ThreadNotFoundError) NotFound() bool { return true }

type AlreadyMemberError struct {
	ThreadID string
	UserID   string
}

func (err AlreadyMemberError) Error() string {
	return fmt.Sprintf("user %q is already a member of thread %q", err.UserID, err.ThreadID)
}

func (err AlreadyMemberError) InvalidState() bool { return true }

type NotMemberError struct {
	ThreadID string
	UserID   string
}

func (err NotMemberError) Error() string {
	return fmt.Sprintf("user %q is not a member of thread %q", err.UserID, err.ThreadID)
}

func (err NotMemberError) InvalidState() bool { return true }

type CreatorCannotLeaveError struct {
	ThreadID string
}

func (err CreatorCannotLeaveError) Error() string {
	return fmt.Sprintf("creator cannot leave thread %q", err.ThreadID)
}

func (err CreatorCannotLeaveError) InvalidState() bool { return true }
