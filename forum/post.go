package forum

import (
	"context"
	"fmt"
	"time"
)

type VoteValue string

const (
	VoteUp   VoteValue = "up"
	VoteDown VoteValue = "down"
)

func (value VoteValue) IsValid() bool {
	switch value {
	case VoteUp, VoteDown:
		return true
	default:
		return false
	}
}

type Vote struct {
	UserID string
	Value  VoteValue
}

type Post struct {
	ID        string
	AuthorID  string
	ThreadID  string
	Title     string
	Content   *string
	Votes     []Vote
	SeenBy    []string
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// VoteOf returns the vote the user cast on the post, if any.
func (post *Post) VoteOf(userID string) (VoteValue, bool) {
	for _, vote := range post.Votes {
		if vote.UserID == userID {
			return vote.Value, true
		}
	}

	return "", false
}

type PostRepository interface {
	Insert(ctx context.Context, post *Post) (err error)
	Find(ctx context.Context, postID string) (post *Post, err error)
	Update(ctx context.Context, post *Post) (err error)
	List(ctx context.Context, params *ListPostsParams) (posts []*Post, nextCursor string, err error)
	UpsertVote(ctx context.Context, postID string, vote Vote) (err error)
	MarkSeen(ctx context.Context, postIDs []string, userID string) (err error)
}

type ListPostsParams struct {
	ThreadID string
	Cursor   string
	Limit    int
}

type PostNotFoundError struct {
	ID string
}

func (err PostNotFoundError) Error() string {
	return fmt.Sprintf("post with id %q not found", err.ID)
}

func (err PostNotFoundError) NotFound() bool { return true }

type InvalidVoteValueError struct {
	Value VoteValue
}

func (err InvalidVoteValueError) Error() string {
	return fmt.Sprintf("invalid vote value: %q", err.Value)
}

func (err InvalidVoteValueError) InvalidInput() bool { return true }

type VoteUnchangedError struct {
	PostID string
	UserID string
	Value  VoteValue
}

func (err VoteUnchangedError) Error() string {
	return fmt.Sprintf("user %q already voted %s on post %q", err.UserID, err.Value, err.PostID)
}

func (err VoteUnchangedError) InvalidState() bool { return true }
