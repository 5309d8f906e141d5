package notifications

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/nasermirzaei89/agora/authorization"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// UnseenCache memoizes per-user unseen counts.
type UnseenCache interface {
	Get(ctx context.Context, userID, referenceID string) (count int, ok bool)
	Set(ctx context.Context, userID, referenceID string, count int)
}

type Service struct {
	repo   Repository
	source Source
	cache  UnseenCache
}

// NewService returns the notification service. cache is optional.
func NewService(repo Repository, source Source, cache UnseenCache) *Service {
	return &Service{
		repo:   repo,
		source: source,
		cache:  cache,
	}
}

func (svc *Service) cached(ctx context.Context, userID, referenceID string, compute func() (int, error)) (int, error) {
	if svc.cache != nil {
		if count, ok := svc.cache.Get(ctx, userID, referenceID); ok {
			return count, nil
		}
	}

	count, err := compute()
	if err != nil {
		return 0, err
	}

	if svc.cache != nil {
		svc.cache.Set(ctx, userID, referenceID, count)
	}

	return count, nil
}

// PostUnseenCount counts comments on the post the caller has not seen. The
// caller must be the post owner or a thread member and must have a stake in
// the post: it is theirs or they commented on it. Admins get the raw total.
func (svc *Service) PostUnseenCount(ctx context.Context, postID string) (int, error) {
	principal := authorization.CurrentPrincipal(ctx)

	err := authorization.CheckAuthenticated(principal)
	if err != nil {
		return 0, fmt.Errorf("failed to check authentication: %w", err)
	}

	post, err := svc.source.FindPostRef(ctx, postID)
	if err != nil {
		return 0, fmt.Errorf("failed to find post: %w", err)
	}

	if principal.IsAdmin() {
		count, err := svc.source.CountComments(ctx, post.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to count comments: %w", err)
		}

		return count, nil
	}

	return svc.cached(ctx, principal.ID, post.ID, func() (int, error) {
		thread, err := svc.source.FindThreadRef(ctx, post.ThreadID)
		if err != nil {
			return 0, fmt.Errorf("failed to find thread: %w", err)
		}

		isOwner := post.AuthorID == principal.ID
		if !isOwner && !thread.isMember(principal.ID) {
			return 0, nil
		}

		if !isOwner {
			commented, err := svc.source.HasCommentOnPost(ctx, post.ID, principal.ID)
			if err != nil {
				return 0, fmt.Errorf("failed to check comment authorship: %w", err)
			}

			if !commented {
				return 0, nil
			}
		}

		count, err := svc.source.CountUnseenComments(ctx, post.ID, principal.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to count unseen comments: %w", err)
		}

		return count, nil
	})
}

// ThreadUnseenCount counts posts in the thread the caller has not seen. The
// caller must be the thread owner or a member and must own the thread or
// have posted in it. Admins get the raw total.
func (svc *Service) ThreadUnseenCount(ctx context.Context, threadID string) (int, error) {
	principal := authorization.CurrentPrincipal(ctx)

	err := authorization.CheckAuthenticated(principal)
	if err != nil {
		return 0, fmt.Errorf("failed to check authentication: %w", err)
	}

	thread, err := svc.source.FindThreadRef(ctx, threadID)
	if err != nil {
		return 0, fmt.Errorf("failed to find thread: %w", err)
	}

	if principal.IsAdmin() {
		count, err := svc.source.CountPosts(ctx, thread.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to count posts: %w", err)
		}

		return count, nil
	}

	return svc.cached(ctx, principal.ID, thread.ID, func() (int, error) {
		if !thread.isMember(principal.ID) {
			return 0, nil
		}

		if thread.AuthorID != principal.ID {
			posted, err := svc.source.HasPostInThread(ctx, thread.ID, principal.ID)
			if err != nil {
				return 0, fmt.Errorf("failed to check post authorship: %w", err)
			}

			if !posted {
				return 0, nil
			}
		}

		count, err := svc.source.CountUnseenPosts(ctx, thread.ID, principal.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to count unseen posts: %w", err)
		}

		return count, nil
	})
}

func (svc *Service) ConversationUnseenCount(ctx context.Context, conversationID string) (int, error) {
	principal := authorization.CurrentPrincipal(ctx)

	conversation, err := svc.source.FindConversationRef(ctx, conversationID)
	if err != nil {
		return 0, fmt.Errorf("failed to find conversation: %w", err)
	}

	if principal.IsAnonymous() || !slices.Contains(conversation.MemberIDs, principal.ID) {
		return 0, &authorization.ForbiddenError{Reason: "not a member of this conversation"}
	}

	return svc.cached(ctx, principal.ID, conversation.ID, func() (int, error) {
		count, err := svc.source.CountUnseenMessages(ctx, conversation.ID, principal.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to count unseen messages: %w", err)
		}

		return count, nil
	})
}

func (svc *Service) ListNotifications(ctx context.Context, cursor string, limit int) ([]*Notification, string, error) {
	principal := authorization.CurrentPrincipal(ctx)

	err := authorization.CheckAuthenticated(principal)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check authentication: %w", err)
	}

	if limit <= 0 {
		limit = defaultPageSize
	}

	notifications, nextCursor, err := svc.repo.ListByUser(ctx, &ListNotificationsParams{
		UserID: principal.ID,
		Cursor: cursor,
		Limit:  min(limit, maxPageSize),
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to list notifications: %w", err)
	}

	return notifications, nextCursor, nil
}

// DeleteNotification dismisses one of the caller's notifications.
func (svc *Service) DeleteNotification(ctx context.Context, notificationID string) error {
	principal := authorization.CurrentPrincipal(ctx)

	notification, err := svc.repo.Find(ctx, notificationID)
	if err != nil {
		return fmt.Errorf("failed to find notification: %w", err)
	}

	err = authorization.CheckOwnership(notification.UserID, principal.ID)
	if err != nil {
		return fmt.Errorf("failed to check ownership: %w", err)
	}

	err = svc.repo.Delete(ctx, notification.ID)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}

	return nil
}

// UnseenTotal sums the unseen counts of the caller's notifications.
func (svc *Service) UnseenTotal(ctx context.Context) (int, error) {
	principal := authorization.CurrentPrincipal(ctx)

	err := authorization.CheckAuthenticated(principal)
	if err != nil {
		return 0, fmt.Errorf("failed to check authentication: %w", err)
	}

	total, err := svc.repo.SumUnseen(ctx, principal.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to sum unseen counts: %w", err)
	}

	return total, nil
}

type ApplicationStatusEvent struct {
	ApplicantID string
	JobID       string
	JobTitle    string
	Status      string
}

// NotifyApplicationStatus keeps one notification per applicant and job,
// overwriting its message on every transition.
func (svc *Service) NotifyApplicationStatus(ctx context.Context, event ApplicationStatusEvent) error {
	message := applicationStatusMessage(event.JobTitle, event.Status)
	timeNow := time.Now().UTC()

	existing, err := svc.repo.FindByUserReference(ctx, event.ApplicantID, event.JobID)
	if err != nil {
		var notFoundErr *NotificationByReferenceNotFoundError
		if !errors.As(err, &notFoundErr) {
			return fmt.Errorf("failed to find notification: %w", err)
		}

		err = svc.repo.Insert(ctx, &Notification{
			ID:          uuid.NewString(),
			UserID:      event.ApplicantID,
			ReferenceID: event.JobID,
			Kind:        KindApplicationStatus,
			Message:     message,
			CreatedAt:   timeNow,
		})
		if err != nil {
			return fmt.Errorf("failed to insert notification: %w", err)
		}

		return nil
	}

	existing.Message = message
	existing.UnseenCount = nil
	existing.UpdatedAt = &timeNow

	err = svc.repo.Update(ctx, existing)
	if err != nil {
		return fmt.Errorf("failed to update notification: %w", err)
	}

	return nil
}
