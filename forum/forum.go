package forum

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/nasermirzaei89/agora/authorization"
	"github.com/nasermirzaei89/agora/sanitize"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ImageResolver turns a stored image id into a URL a client can fetch.
type ImageResolver interface {
	URL(ctx context.Context, imageID string) (url string, err error)
}

// UnseenInvalidator drops cached unseen counts affected by a write.
type UnseenInvalidator interface {
	InvalidateReference(ctx context.Context, referenceID string)
	InvalidateUser(ctx context.Context, userID string)
}

type Service struct {
	threadRepo  ThreadRepository
	postRepo    PostRepository
	images      ImageResolver
	invalidator UnseenInvalidator
}

// NewService returns a forum service. images and invalidator are optional.
func NewService(
	threadRepo ThreadRepository,
	postRepo PostRepository,
	images ImageResolver,
	invalidator UnseenInvalidator,
) *Service {
	return &Service{
		threadRepo:  threadRepo,
		postRepo:    postRepo,
		images:      images,
		invalidator: invalidator,
	}
}

func pageSize(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}

	return min(limit, maxPageSize)
}

func (svc *Service) invalidateReference(ctx context.Context, referenceID string) {
	if svc.invalidator != nil {
		svc.invalidator.InvalidateReference(ctx, referenceID)
	}
}

func (svc *Service) invalidateUser(ctx context.Context, userID string) {
	if svc.invalidator != nil {
		svc.invalidator.InvalidateUser(ctx, userID)
	}
}

type CreateThreadRequest struct {
	Title       string
	Description *string
	ImageID     *string
}

func (svc *Service) CreateThread(ctx context.Context, req CreateThreadRequest) (*Thread, error) {
	principal := authorization.CurrentPrincipal(ctx)

	err := authorization.CheckAuthenticated(principal)
	if err != nil {
		return nil, fmt.Errorf("failed to check authentication: %w", err)
	}

	if principal.IsAdmin() {
		return nil, &authorization.ForbiddenError{Reason: "admins cannot create threads"}
	}

	title, err := sanitize.Required("title", req.Title)
	if err != nil {
		return nil, fmt.Errorf("failed to sanitize title: %w", err)
	}

	thread := &Thread{
		ID:          uuid.NewString(),
		AuthorID:    principal.ID,
		Title:       title,
		Description: sanitize.Optional(req.Description),
		ImageID:     req.ImageID,
		MemberIDs:   []string{},
		CreatedAt:   time.Now().UTC(),
	}

	err = svc.threadRepo.Insert(ctx, thread)
	if err != nil {
		return nil, fmt.Errorf("failed to insert thread: %w", err)
	}

	svc.resolveImage(ctx, thread)

	return thread, nil
}

func (svc *Service) resolveImage(ctx context.Context, thread *Thread) {
	if svc.images == nil || thread.ImageID == nil {
		return
	}

	url, err := svc.images.URL(ctx, *thread.ImageID)
	if err != nil {
		slog.WarnContext(ctx, "failed to resolve thread image", "threadId", thread.ID, "error", err)

		return
	}

	thread.ImageURL = url
}

func (svc *Service) GetThread(ctx context.Context, threadID string) (*Thread, error) {
	thread, err := svc.threadRepo.Find(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to find thread: %w", err)
	}

	svc.resolveImage(ctx, thread)

	return thread, nil
}

func (svc *Service) ListThreads(ctx context.Context, cursor string, limit int) ([]*Thread, string, error) {
	threads, nextCursor, err := svc.threadRepo.List(ctx, &ListThreadsParams{Cursor: cursor, Limit: pageSize(limit)})
	if err != nil {
		return nil, "", fmt.Errorf("failed to list threads: %w", err)
	}

	for _, thread := range threads {
		svc.resolveImage(ctx, thread)
	}

	return threads, nextCursor, nil
}

func (svc *Service) JoinThread(ctx context.Context, threadID string) error {
	principal := authorization.CurrentPrincipal(ctx)

	err := authorization.CheckAuthenticated(principal)
	if err != nil {
		return fmt.Errorf("failed to check authentication: %w", err)
	}

	if principal.IsAdmin() {
		return &authorization.ForbiddenError{Reason: "admins cannot join threads"}
	}

	thread, err := svc.threadRepo.Find(ctx, threadID)
	if err != nil {
		return fmt.Errorf("failed to find thread: %w", err)
	}

	if thread.AuthorID == principal.ID || slices.Contains(thread.MemberIDs, principal.ID) {
		return &AlreadyMemberError{ThreadID: threadID, UserID: principal.ID}
	}

	err = svc.threadRepo.AddMember(ctx, threadID, principal.ID)
	if err != nil {
		return fmt.Errorf("failed to add thread member: %w", err)
	}

	svc.invalidateReference(ctx, threadID)

	return nil
}

func (svc *Service) LeaveThread(ctx context.Context, threadID string) error {
	principal := authorization.CurrentPrincipal(ctx)

	err := authorization.CheckAuthenticated(principal)
	if err != nil {
		return fmt.Errorf("failed to check authentication: %w", err)
	}

	thread, err := svc.threadRepo.Find(ctx, threadID)
	if err != nil {
		return fmt.Errorf("failed to find thread: %w", err)
	}

	if thread.AuthorID == principal.ID {
		return &CreatorCannotLeaveError{ThreadID: threadID}
	}

	if !slices.Contains(thread.MemberIDs, principal.ID) {
		return &NotMemberError{ThreadID: threadID, UserID: principal.ID}
	}

	err = svc.threadRepo.RemoveMember(ctx, threadID, principal.ID)
	if err != nil {
		return fmt.Errorf("failed to remove thread member: %w", err)
	}

	svc.invalidateReference(ctx, threadID)

	return nil
}

type CreatePostRequest struct {
	ThreadID string
	Title    string
	Content  *string
}

func (svc *Service) CreatePost(ctx context.Context, req CreatePostRequest) (*Post, error) {
	principal := authorization.CurrentPrincipal(ctx)

	err := authorization.CheckAuthenticated(principal)
	if err != nil {
		return nil, fmt.Errorf("failed to check authentication: %w", err)
	}

	thread, err := svc.threadRepo.Find(ctx, req.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("failed to find thread: %w", err)
	}

	err = authorization.CheckThreadMember(thread.AuthorID, thread.MemberIDs, principal.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check thread membership: %w", err)
	}

	title, err := sanitize.Required("title", req.Title)
	if err != nil {
		return nil, fmt.Errorf("failed to sanitize title: %w", err)
	}

	post := &Post{
		ID:        uuid.NewString(),
		AuthorID:  principal.ID,
		ThreadID:  thread.ID,
		Title:     title,
		Content:   sanitize.Optional(req.Content),
		Votes:     []Vote{},
		SeenBy:    []string{principal.ID},
		CreatedAt: time.Now().UTC(),
	}

	err = svc.postRepo.Insert(ctx, post)
	if err != nil {
		return nil, fmt.Errorf("failed to insert post: %w", err)
	}

	svc.invalidateReference(ctx, thread.ID)

	return post, nil
}

func (svc *Service) GetPost(ctx context.Context, postID string) (*Post, error) {
	post, err := svc.postRepo.Find(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to find post: %w", err)
	}

	return post, nil
}

func (svc *Service) ListPosts(ctx context.Context, threadID, cursor string, limit int) ([]*Post, string, error) {
	_, err := svc.threadRepo.Find(ctx, threadID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to find thread: %w", err)
	}

	posts, nextCursor, err := svc.postRepo.List(ctx, &ListPostsParams{
		ThreadID: threadID,
		Cursor:   cursor,
		Limit:    pageSize(limit),
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to list posts: %w", err)
	}

	return posts, nextCursor, nil
}

type UpdatePostRequest struct {
	PostID  string
	Title   string
	Content *string
}

func (svc *Service) UpdatePost(ctx context.Context, req UpdatePostRequest) (*Post, error) {
	principal := authorization.CurrentPrincipal(ctx)

	post, err := svc.postRepo.Find(ctx, req.PostID)
	if err != nil {
		return nil, fmt.Errorf("failed to find post: %w", err)
	}

	err = authorization.CheckOwnership(post.AuthorID, principal.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check ownership: %w", err)
	}

	title, err := sanitize.Required("title", req.Title)
	if err != nil {
		return nil, fmt.Errorf("failed to sanitize title: %w", err)
	}

	timeNow := time.Now().UTC()

	post.Title = title
	post.Content = sanitize.Optional(req.Content)
	post.UpdatedAt = &timeNow

	err = svc.postRepo.Update(ctx, post)
	if err != nil {
		return nil, fmt.Errorf("failed to update post: %w", err)
	}

	return post, nil
}

// VotePost records the caller's vote. A changed value replaces the previous
// vote; repeating the same value is rejected.
func (svc *Service) VotePost(ctx context.Context, postID string, value VoteValue) (*Post, error) {
	principal := authorization.CurrentPrincipal(ctx)

	err := authorization.CheckAuthenticated(principal)
	if err != nil {
		return nil, fmt.Errorf("failed to check authentication: %w", err)
	}

	if !value.IsValid() {
		return nil, &InvalidVoteValueError{Value: value}
	}

	post, err := svc.postRepo.Find(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to find post: %w", err)
	}

	if current, ok := post.VoteOf(principal.ID); ok && current == value {
		return nil, &VoteUnchangedError{PostID: postID, UserID: principal.ID, Value: value}
	}

	err = svc.postRepo.UpsertVote(ctx, postID, Vote{UserID: principal.ID, Value: value})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert vote: %w", err)
	}

	post, err = svc.postRepo.Find(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload post: %w", err)
	}

	return post, nil
}

// MarkPostsSeen adds the caller to the seen-by set of every post. It is a
// no-op for admins.
func (svc *Service) MarkPostsSeen(ctx context.Context, postIDs []string) error {
	principal := authorization.CurrentPrincipal(ctx)

	err := authorization.CheckAuthenticated(principal)
	if err != nil {
		return fmt.Errorf("failed to check authentication: %w", err)
	}

	if principal.IsAdmin() || len(postIDs) == 0 {
		return nil
	}

	err = svc.postRepo.MarkSeen(ctx, postIDs, principal.ID)
	if err != nil {
		return fmt.Errorf("failed to mark posts seen: %w", err)
	}

	svc.invalidateUser(ctx, principal.ID)

	return nil
}
