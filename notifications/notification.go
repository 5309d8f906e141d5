package notifications

import (
	"context"
	"fmt"
	"time"
)

type Kind string

const (
	KindThreadPosts          Kind = "thread_posts"
	KindPostComments         Kind = "post_comments"
	KindConversationMessages Kind = "conversation_messages"
	KindApplicationStatus    Kind = "application_status"
)

// Notification is unique per (UserID, ReferenceID). Counted kinds exist only
// while UnseenCount is positive; application status rows carry no count.
type Notification struct {
	ID          string
	UserID      string
	ReferenceID string
	Kind        Kind
	UnseenCount *int
	Message     string
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}

type Repository interface {
	Insert(ctx context.Context, notification *Notification) (err error)
	Update(ctx context.Context, notification *Notification) (err error)
	Delete(ctx context.Context, notificationID string) (err error)
	Find(ctx context.Context, notificationID string) (notification *Notification, err error)
	FindByUserReference(ctx context.Context, userID, referenceID string) (notification *Notification, err error)
	ListUserIDsByReference(ctx context.Context, referenceID string) (userIDs []string, err error)
	ListByUser(ctx context.Context, params *ListNotificationsParams) (notifications []*Notification, nextCursor string, err error)
	SumUnseen(ctx context.Context, userID string) (total int, err error)
}

type ListNotificationsParams struct {
	UserID string
	Cursor string
	Limit  int
}

type NotificationNotFoundError struct {
	ID string
}

func (err NotificationNotFoundError) Error() string {
	return fmt.Sprintf("notification with id %q not found", err.ID)
}

func (err NotificationNotFoundError) NotFound() bool { return true }

type NotificationByReferenceNotFoundError struct {
	UserID      string
	ReferenceID string
}

func (err NotificationByReferenceNotFoundError) Error() string {
	return fmt.Sprintf("notification for user %q on %q not found", err.UserID, err.ReferenceID)
}

func (err NotificationByReferenceNotFoundError) NotFound() bool { return true }

func plural(count int, singular, pluralForm string) string {
	if count == 1 {
		return singular
	}

	return pluralForm
}

func threadPostsMessage(count int, threadTitle string) string {
	return fmt.Sprintf("%d unseen %s in %s", count, plural(count, "post", "posts"), threadTitle)
}

func postCommentsMessage(count int, postTitle string) string {
	return fmt.Sprintf("%d unseen %s on %s", count, plural(count, "comment", "comments"), postTitle)
}

func conversationMessagesMessage(count int) string {
	return fmt.Sprintf("%d unseen %s", count, plural(count, "message", "messages"))
}

func applicationStatusMessage(jobTitle, status string) string {
	return fmt.Sprintf("Your application for %s is now %s", jobTitle, status)
}
