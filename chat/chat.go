package chat

import (
	"context"
	"fmt"
	"time"
)

type Conversation struct {
	ID        string
	MemberIDs []string
	CreatedAt time.Time
}

// Message is soft deleted: DeletedAt set hides it from every member.
// InvisibleTo hides it from the listed members only.
type Message struct {
	ID             string
	ConversationID string
	AuthorID       string
	Text           string
	SeenBy         []string
	InvisibleTo    []string
	DeletedAt      *time.Time
	CreatedAt      time.Time
}

type ConversationRepository interface {
	Insert(ctx context.Context, conversation *Conversation) (err error)
	Find(ctx context.Context, conversationID string) (conversation *Conversation, err error)
}

type MessageRepository interface {
	Insert(ctx context.Context, message *Message) (err error)
	Find(ctx context.Context, messageID string) (message *Message, err error)
	List(ctx context.Context, params *ListMessagesParams) (messages []*Message, nextCursor string, err error)
	MarkSeen(ctx context.Context, messageIDs []string, userID string) (err error)
	SoftDelete(ctx context.Context, messageID string, deletedAt time.Time) (err error)
	Hide(ctx context.Context, messageID, userID string) (err error)
}

// ListMessagesParams lists live messages of a conversation visible to ViewerID.
type ListMessagesParams struct {
	ConversationID string
	ViewerID       string
	Cursor         string
	Limit          int
}

type ConversationNotFoundError struct {
	ID string
}

func (err ConversationNotFoundError) Error() string {
	return fmt.Sprintf("conversation with id %q not found", err.ID)
}

func (err ConversationNotFoundError) NotFound() bool { return true }

type MessageNotFoundError struct {
	ID string
}

func (err MessageNotFoundError) Error() string {
	return fmt.Sprintf("message with id %q not found", err.ID)
}

func (err MessageNotFoundError) NotFound() bool { return true }

type TooFewMembersError struct {
	Count int
}

func (err TooFewMembersError) Error() string {
	return fmt.Sprintf("a conversation needs at least 2 members, got %d", err.Count)
}

func (err TooFewMembersError) InvalidInput() bool { return true }

type MessageDeletedError struct {
	ID string
}

func (err MessageDeletedError) Error() string {
	return fmt.Sprintf("message %q is deleted", err.ID)
}

func (err MessageDeletedError) InvalidState() bool { return true }
