package discuss

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	authcontext "github.com/nasermirzaei89/agora/authentication/context"
	"github.com/nasermirzaei89/agora/authorization"
	"github.com/nasermirzaei89/agora/forum"
	"github.com/nasermirzaei89/agora/sanitize"
	"golang.org/x/sync/errgroup"
)

const ServiceName = "discuss"

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type Service interface {
	CreateComment(ctx context.Context, req CreateCommentRequest) (*Comment, error)
	UpdateComment(ctx context.Context, req UpdateCommentRequest) (*Comment, error)
	DeleteComment(ctx context.Context, commentID string) ([]string, error)
	MarkCommentsSeen(ctx context.Context, commentIDs []string) error
	GetComment(ctx context.Context, commentID string) (*Comment, error)
	ListComments(ctx context.Context, params ListCommentsParams) ([]*Comment, string, error)
	CountComments(ctx context.Context, postID string) (int, error)
}

type PostFinder interface {
	Find(ctx context.Context, postID string) (*forum.Post, error)
}

type ThreadFinder interface {
	Find(ctx context.Context, threadID string) (*forum.Thread, error)
}

// UnseenInvalidator drops cached unseen counts affected by a write.
type UnseenInvalidator interface {
	InvalidateReference(ctx context.Context, referenceID string)
	InvalidateUser(ctx context.Context, userID string)
}

// Store is the comment store. It owns comment trees and keeps reply counts
// in step with the stored children.
type Store struct {
	commentRepo CommentRepository
	posts       PostFinder
	threads     ThreadFinder
	invalidator UnseenInvalidator
}

var _ Service = (*Store)(nil)

func NewStore(commentRepo CommentRepository, posts PostFinder, threads ThreadFinder, invalidator UnseenInvalidator) *Store {
	return &Store{
		commentRepo: commentRepo,
		posts:       posts,
		threads:     threads,
		invalidator: invalidator,
	}
}

func (s *Store) invalidateReference(ctx context.Context, referenceID string) {
	if s.invalidator != nil {
		s.invalidator.InvalidateReference(ctx, referenceID)
	}
}

type CreateCommentRequest struct {
	PostID          string
	Text            string
	ParentCommentID *string
}

func (s *Store) CreateComment(ctx context.Context, req CreateCommentRequest) (*Comment, error) {
	principal := authorization.CurrentPrincipal(ctx)

	err := authorization.CheckRole(principal, authcontext.RoleApplicant)
	if err != nil {
		return nil, fmt.Errorf("failed to check role: %w", err)
	}

	post, err := s.posts.Find(ctx, req.PostID)
	if err != nil {
		return nil, fmt.Errorf("failed to find post: %w", err)
	}

	thread, err := s.threads.Find(ctx, post.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("failed to find thread: %w", err)
	}

	err = authorization.CheckThreadMember(thread.AuthorID, thread.MemberIDs, principal.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check thread membership: %w", err)
	}

	text, err := sanitize.Required("text", req.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to sanitize text: %w", err)
	}

	if req.ParentCommentID != nil {
		parent, err := s.commentRepo.Find(ctx, *req.ParentCommentID)
		if err != nil {
			return nil, fmt.Errorf("failed to find parent comment: %w", err)
		}

		if parent.PostID != post.ID {
			return nil, &ParentMismatchError{ParentCommentID: parent.ID, PostID: post.ID}
		}
	}

	comment := &Comment{
		ID:              uuid.NewString(),
		AuthorID:        principal.ID,
		PostID:          post.ID,
		ParentCommentID: req.ParentCommentID,
		Text:            text,
		ReplyCount:      0,
		SeenBy:          []string{principal.ID},
		CreatedAt:       time.Now().UTC(),
	}

	err = s.commentRepo.Insert(ctx, comment)
	if err != nil {
		return nil, fmt.Errorf("failed to insert comment: %w", err)
	}

	if comment.ParentCommentID != nil {
		err = s.commentRepo.IncrementReplyCount(ctx, *comment.ParentCommentID)
		if err != nil {
			slog.WarnContext(ctx, "comment inserted but parent reply count not incremented",
				"commentId", comment.ID, "parentCommentId", *comment.ParentCommentID, "error", err)

			return nil, fmt.Errorf("failed to increment parent reply count: %w", err)
		}
	}

	s.invalidateReference(ctx, post.ID)

	return comment, nil
}

type UpdateCommentRequest struct {
	CommentID string
	Text      string
}

func (s *Store) UpdateComment(ctx context.Context, req UpdateCommentRequest) (*Comment, error) {
	principal := authorization.CurrentPrincipal(ctx)

	comment, err := s.commentRepo.Find(ctx, req.CommentID)
	if err != nil {
		return nil, fmt.Errorf("failed to find comment: %w", err)
	}

	err = authorization.CheckOwnership(comment.AuthorID, principal.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check ownership: %w", err)
	}

	text, err := sanitize.Required("text", req.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to sanitize text: %w", err)
	}

	timeNow := time.Now().UTC()

	comment.Text = text
	comment.UpdatedAt = &timeNow

	err = s.commentRepo.UpdateText(ctx, comment)
	if err != nil {
		return nil, fmt.Errorf("failed to update comment: %w", err)
	}

	return comment, nil
}

// DeleteComment removes the comment and every descendant, returning the
// removed ids root first then level by level. The subtree is collected
// before anything is removed; levels are then removed deepest first with
// the root last, so a failed call can be retried from the same root.
func (s *Store) DeleteComment(ctx context.Context, commentID string) ([]string, error) {
	principal := authorization.CurrentPrincipal(ctx)

	comment, err := s.commentRepo.Find(ctx, commentID)
	if err != nil {
		return nil, fmt.Errorf("failed to find comment: %w", err)
	}

	err = authorization.CheckOwnerOrAdmin(comment.AuthorID, principal)
	if err != nil {
		return nil, fmt.Errorf("failed to check ownership: %w", err)
	}

	levels, err := s.collectSubtree(ctx, comment.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to collect subtree: %w", err)
	}

	for i := len(levels) - 1; i >= 0; i-- {
		err = s.deleteLevel(ctx, levels[i])
		if err != nil {
			return nil, fmt.Errorf("failed to delete level %d: %w", i, err)
		}
	}

	if comment.ParentCommentID != nil {
		err = s.commentRepo.DecrementReplyCount(ctx, *comment.ParentCommentID)
		if err != nil {
			slog.WarnContext(ctx, "subtree deleted but parent reply count not decremented",
				"commentId", comment.ID, "parentCommentId", *comment.ParentCommentID, "error", err)
		}
	}

	s.invalidateReference(ctx, comment.PostID)

	deleted := make([]string, 0)
	for _, level := range levels {
		deleted = append(deleted, level...)
	}

	return deleted, nil
}

// collectSubtree walks the subtree breadth first. The children of one level
// are listed concurrently and the level completes before the next starts.
func (s *Store) collectSubtree(ctx context.Context, rootID string) ([][]string, error) {
	levels := [][]string{{rootID}}
	frontier := []string{rootID}

	for len(frontier) > 0 {
		children := make([][]string, len(frontier))

		g, gCtx := errgroup.WithContext(ctx)

		for i, id := range frontier {
			g.Go(func() error {
				childIDs, err := s.commentRepo.ListChildIDs(gCtx, id)
				if err != nil {
					return fmt.Errorf("failed to list children of %q: %w", id, err)
				}

				children[i] = childIDs

				return nil
			})
		}

		err := g.Wait()
		if err != nil {
			return nil, err
		}

		next := make([]string, 0)
		for _, childIDs := range children {
			next = append(next, childIDs...)
		}

		if len(next) > 0 {
			levels = append(levels, next)
		}

		frontier = next
	}

	return levels, nil
}

func (s *Store) deleteLevel(ctx context.Context, ids []string) error {
	g, gCtx := errgroup.WithContext(ctx)

	for _, id := range ids {
		g.Go(func() error {
			err := s.commentRepo.Delete(gCtx, id)
			if err != nil {
				return fmt.Errorf("failed to delete comment %q: %w", id, err)
			}

			return nil
		})
	}

	return g.Wait()
}

// MarkCommentsSeen adds the caller to the seen-by set of every comment. It is
// idempotent and a no-op for admins.
func (s *Store) MarkCommentsSeen(ctx context.Context, commentIDs []string) error {
	principal := authorization.CurrentPrincipal(ctx)

	err := authorization.CheckAuthenticated(principal)
	if err != nil {
		return fmt.Errorf("failed to check authentication: %w", err)
	}

	if principal.IsAdmin() || len(commentIDs) == 0 {
		return nil
	}

	err = s.commentRepo.MarkSeen(ctx, commentIDs, principal.ID)
	if err != nil {
		return fmt.Errorf("failed to mark comments seen: %w", err)
	}

	if s.invalidator != nil {
		s.invalidator.InvalidateUser(ctx, principal.ID)
	}

	return nil
}

func (s *Store) GetComment(ctx context.Context, commentID string) (*Comment, error) {
	comment, err := s.commentRepo.Find(ctx, commentID)
	if err != nil {
		return nil, fmt.Errorf("failed to find comment: %w", err)
	}

	return comment, nil
}

func (s *Store) ListComments(ctx context.Context, params ListCommentsParams) ([]*Comment, string, error) {
	if params.Limit <= 0 {
		params.Limit = defaultPageSize
	}

	params.Limit = min(params.Limit, maxPageSize)

	comments, nextCursor, err := s.commentRepo.List(ctx, &params)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list comments: %w", err)
	}

	return comments, nextCursor, nil
}

func (s *Store) CountComments(ctx context.Context, postID string) (int, error) {
	count, err := s.commentRepo.Count(ctx, postID)
	if err != nil {
		return 0, fmt.Errorf("failed to count comments: %w", err)
	}

	return count, nil
}
