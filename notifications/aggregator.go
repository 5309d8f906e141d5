package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const DefaultParallelism = 8

// RunReport summarizes one reconciliation pass.
type RunReport struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Deleted   int `json:"deleted"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

type tally struct {
	inserted  atomic.Int64
	updated   atomic.Int64
	deleted   atomic.Int64
	unchanged atomic.Int64
	failed    atomic.Int64
}

func (t *tally) report() *RunReport {
	return &RunReport{
		Inserted:  int(t.inserted.Load()),
		Updated:   int(t.updated.Load()),
		Deleted:   int(t.deleted.Load()),
		Unchanged: int(t.unchanged.Load()),
		Failed:    int(t.failed.Load()),
	}
}

// Aggregator recomputes counted notifications for every user and reference.
// Passes are idempotent: a pass over unchanged data writes nothing.
type Aggregator struct {
	repo        Repository
	source      Source
	parallelism int
}

func NewAggregator(repo Repository, source Source, parallelism int) *Aggregator {
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}

	return &Aggregator{
		repo:        repo,
		source:      source,
		parallelism: parallelism,
	}
}

// Run performs one pass. Failures of single threads, posts or conversations
// are logged and counted; only failing to enumerate them aborts the pass.
func (a *Aggregator) Run(ctx context.Context) (*RunReport, error) {
	threads, err := a.source.ListThreadRefs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}

	posts, err := a.source.ListPostRefs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}

	conversations, err := a.source.ListConversationRefs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	threadsByID := make(map[string]*ThreadRef, len(threads))
	for _, thread := range threads {
		threadsByID[thread.ID] = thread
	}

	var t tally

	var g errgroup.Group

	g.SetLimit(a.parallelism)

	run := func(kind Kind, id string, fn func() error) {
		g.Go(func() error {
			err := fn()
			if err != nil {
				t.failed.Add(1)
				slog.ErrorContext(ctx, "failed to reconcile notifications", "kind", kind, "referenceId", id, "error", err)
			}

			return nil
		})
	}

	for _, thread := range threads {
		run(KindThreadPosts, thread.ID, func() error { return a.reconcileThread(ctx, &t, thread) })
	}

	for _, post := range posts {
		run(KindPostComments, post.ID, func() error { return a.reconcilePost(ctx, &t, post, threadsByID[post.ThreadID]) })
	}

	for _, conversation := range conversations {
		run(KindConversationMessages, conversation.ID, func() error {
			return a.reconcileConversation(ctx, &t, conversation)
		})
	}

	_ = g.Wait()

	report := t.report()

	slog.InfoContext(ctx, "notifications reconciled",
		"inserted", report.Inserted,
		"updated", report.Updated,
		"deleted", report.Deleted,
		"unchanged", report.Unchanged,
		"failed", report.Failed,
	)

	return report, nil
}

// RunEvery runs a pass on every tick until ctx is done.
func (a *Aggregator) RunEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, err := a.Run(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "failed to run notifications pass", "error", err)
			}
		}
	}
}

// withExisting adds users that already hold a row for the reference so
// stale rows are removed once their count drops to zero.
func (a *Aggregator) withExisting(ctx context.Context, referenceID string, userIDs []string) ([]string, error) {
	existing, err := a.repo.ListUserIDsByReference(ctx, referenceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notified users: %w", err)
	}

	res := slices.Clone(userIDs)

	for _, userID := range existing {
		if !slices.Contains(res, userID) {
			res = append(res, userID)
		}
	}

	return res, nil
}

func (a *Aggregator) reconcileThread(ctx context.Context, t *tally, thread *ThreadRef) error {
	userIDs, err := a.withExisting(ctx, thread.ID, thread.audience())
	if err != nil {
		return err
	}

	for _, userID := range userIDs {
		count := 0

		if thread.isMember(userID) {
			count, err = a.source.CountUnseenPosts(ctx, thread.ID, userID)
			if err != nil {
				return fmt.Errorf("failed to count unseen posts: %w", err)
			}
		}

		err = a.apply(ctx, t, userID, thread.ID, KindThreadPosts, count, threadPostsMessage(count, thread.Title))
		if err != nil {
			return err
		}
	}

	return nil
}

func (a *Aggregator) reconcilePost(ctx context.Context, t *tally, post *PostRef, thread *ThreadRef) error {
	audience := make([]string, 0)

	if thread != nil {
		commenterIDs, err := a.source.ListCommenterIDs(ctx, post.ID)
		if err != nil {
			return fmt.Errorf("failed to list commenters: %w", err)
		}

		for _, userID := range commenterIDs {
			if thread.isMember(userID) && !slices.Contains(audience, userID) {
				audience = append(audience, userID)
			}
		}
	}

	userIDs, err := a.withExisting(ctx, post.ID, audience)
	if err != nil {
		return err
	}

	for _, userID := range userIDs {
		count := 0

		if slices.Contains(audience, userID) {
			count, err = a.source.CountUnseenComments(ctx, post.ID, userID)
			if err != nil {
				return fmt.Errorf("failed to count unseen comments: %w", err)
			}
		}

		err = a.apply(ctx, t, userID, post.ID, KindPostComments, count, postCommentsMessage(count, post.Title))
		if err != nil {
			return err
		}
	}

	return nil
}

func (a *Aggregator) reconcileConversation(ctx context.Context, t *tally, conversation *ConversationRef) error {
	userIDs, err := a.withExisting(ctx, conversation.ID, conversation.MemberIDs)
	if err != nil {
		return err
	}

	for _, userID := range userIDs {
		count := 0

		if slices.Contains(conversation.MemberIDs, userID) {
			count, err = a.source.CountUnseenMessages(ctx, conversation.ID, userID)
			if err != nil {
				return fmt.Errorf("failed to count unseen messages: %w", err)
			}
		}

		err = a.apply(ctx, t, userID, conversation.ID, KindConversationMessages, count, conversationMessagesMessage(count))
		if err != nil {
			return err
		}
	}

	return nil
}

// apply moves the stored row for (userID, referenceID) to count: insert when
// missing, patch when different, delete at zero.
func (a *Aggregator) apply(
	ctx context.Context,
	t *tally,
	userID, referenceID string,
	kind Kind,
	count int,
	message string,
) error {
	existing, err := a.repo.FindByUserReference(ctx, userID, referenceID)
	if err != nil {
		var notFoundErr *NotificationByReferenceNotFoundError
		if !errors.As(err, &notFoundErr) {
			return fmt.Errorf("failed to find notification: %w", err)
		}

		existing = nil
	}

	timeNow := time.Now().UTC()

	switch {
	case count > 0 && existing == nil:
		err = a.repo.Insert(ctx, &Notification{
			ID:          uuid.NewString(),
			UserID:      userID,
			ReferenceID: referenceID,
			Kind:        kind,
			UnseenCount: &count,
			Message:     message,
			CreatedAt:   timeNow,
		})
		if err != nil {
			return fmt.Errorf("failed to insert notification: %w", err)
		}

		t.inserted.Add(1)
	case count > 0 && (existing.UnseenCount == nil || *existing.UnseenCount != count):
		existing.UnseenCount = &count
		existing.Message = message
		existing.UpdatedAt = &timeNow

		err = a.repo.Update(ctx, existing)
		if err != nil {
			return fmt.Errorf("failed to update notification: %w", err)
		}

		t.updated.Add(1)
	case count == 0 && existing != nil:
		err = a.repo.Delete(ctx, existing.ID)
		if err != nil {
			return fmt.Errorf("failed to delete notification: %w", err)
		}

		t.deleted.Add(1)
	default:
		t.unchanged.Add(1)
	}

	return nil
}
