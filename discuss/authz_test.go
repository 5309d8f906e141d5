package discuss_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	"github.com/google/uuid"
	authcontext "github.com/nasermirzaei89/agora/authentication/context"
	"github.com/nasermirzaei89/agora/authorization"
	"github.com/nasermirzaei89/agora/authorization/casbin"
	"github.com/nasermirzaei89/agora/discuss"
	"github.com/stretchr/testify/require"
)

type stubService struct{}

var _ discuss.Service = (*stubService)(nil)

func (s *stubService) CreateComment(ctx context.Context, req discuss.CreateCommentRequest) (*discuss.Comment, error) {
	return &discuss.Comment{
		ID:       uuid.NewString(),
		PostID:   req.PostID,
		AuthorID: authcontext.GetSubject(ctx),
		Text:     req.Text,
	}, nil
}

func (s *stubService) UpdateComment(_ context.Context, req discuss.UpdateCommentRequest) (*discuss.Comment, error) {
	return &discuss.Comment{ID: req.CommentID, Text: req.Text}, nil
}

func (s *stubService) DeleteComment(_ context.Context, commentID string) ([]string, error) {
	return []string{commentID}, nil
}

func (s *stubService) MarkCommentsSeen(context.Context, []string) error {
	return nil
}

func (s *stubService) GetComment(_ context.Context, commentID string) (*discuss.Comment, error) {
	return &discuss.Comment{ID: commentID}, nil
}

func (s *stubService) ListComments(context.Context, discuss.ListCommentsParams) ([]*discuss.Comment, string, error) {
	return []*discuss.Comment{}, "", nil
}

func (s *stubService) CountComments(context.Context, string) (int, error) {
	return 0, nil
}

func TestAuthorizationMiddleware(t *testing.T) {
	ctx := context.Background()

	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "policy.csv")
	content := []byte(`g, system:anonymous, system:unauthenticated

p, system:authenticated, discuss, *, createComment
p, system:authenticated, discuss, *, updateComment
p, system:authenticated, discuss, *, deleteComment
p, system:authenticated, discuss, *, markCommentsSeen
p, system:authenticated, discuss, *, listComments
p, system:unauthenticated, discuss, *, listComments
p, system:authenticated, discuss, *, countComments
p, system:unauthenticated, discuss, *, countComments
`)

	err := os.WriteFile(tmpFile, content, 0o600)
	require.NoError(t, err)

	adapter := fileadapter.NewAdapter(tmpFile)

	provider, err := casbin.NewAuthorizationProvider(adapter)
	require.NoError(t, err)

	authzSvc, err := authorization.NewService(provider)
	require.NoError(t, err)

	client := authorization.NewClient(authzSvc)
	svc := discuss.NewAuthorizationMiddleware(client, &stubService{})

	userID := uuid.NewString()
	err = client.AddToGroup(ctx, userID, authcontext.Authenticated)
	require.NoError(t, err)

	postID := uuid.NewString()

	anonymousCtx := ctx
	authenticatedCtx := authcontext.WithSubject(ctx, userID)

	t.Run("anonymous", func(t *testing.T) {
		_, err := svc.CreateComment(anonymousCtx, discuss.CreateCommentRequest{
			PostID: postID,
			Text:   "comment",
		})
		require.Error(t, err)

		accessDeniedErr := &authorization.AccessDeniedError{}
		require.ErrorAs(t, err, &accessDeniedErr)

		_, err = svc.DeleteComment(anonymousCtx, uuid.NewString())
		require.ErrorAs(t, err, &accessDeniedErr)

		err = svc.MarkCommentsSeen(anonymousCtx, []string{uuid.NewString()})
		require.ErrorAs(t, err, &accessDeniedErr)

		_, _, err = svc.ListComments(anonymousCtx, discuss.ListCommentsParams{PostID: postID})
		require.NoError(t, err)

		_, err = svc.CountComments(anonymousCtx, postID)
		require.NoError(t, err)
	})

	t.Run("authenticated", func(t *testing.T) {
		comment, err := svc.CreateComment(authenticatedCtx, discuss.CreateCommentRequest{
			PostID: postID,
			Text:   "comment",
		})
		require.NoError(t, err)
		require.Equal(t, userID, comment.AuthorID)

		_, err = svc.UpdateComment(authenticatedCtx, discuss.UpdateCommentRequest{CommentID: comment.ID, Text: "edited"})
		require.NoError(t, err)

		deletedIDs, err := svc.DeleteComment(authenticatedCtx, comment.ID)
		require.NoError(t, err)
		require.Equal(t, []string{comment.ID}, deletedIDs)

		_, _, err = svc.ListComments(authenticatedCtx, discuss.ListCommentsParams{PostID: postID})
		require.NoError(t, err)

		_, err = svc.CountComments(authenticatedCtx, postID)
		require.NoError(t, err)
	})

	t.Run("get comment is not granted", func(t *testing.T) {
		_, err := svc.GetComment(authenticatedCtx, uuid.NewString())
		require.Error(t, err)
	})
}
