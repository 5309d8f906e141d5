package discuss_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	authcontext "github.com/nasermirzaei89/agora/authentication/context"
	"github.com/nasermirzaei89/agora/authorization"
	"github.com/nasermirzaei89/agora/database/sqlite3"
	"github.com/nasermirzaei89/agora/discuss"
	"github.com/nasermirzaei89/agora/forum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingInvalidator struct {
	mu         sync.Mutex
	references []string
	users      []string
}

func (inv *recordingInvalidator) InvalidateReference(_ context.Context, referenceID string) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	inv.references = append(inv.references, referenceID)
}

func (inv *recordingInvalidator) InvalidateUser(_ context.Context, userID string) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	inv.users = append(inv.users, userID)
}

type fixture struct {
	store       *discuss.Store
	forum       *forum.Service
	invalidator *recordingInvalidator
	post        *forum.Post
}

func as(userID string, role authcontext.Role) context.Context {
	return authcontext.WithPrincipal(context.Background(), userID, role)
}

// newFixture prepares a thread by alice with member bob and one post by alice.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(5000)"

	db, err := sqlite3.NewDB(ctx, dsn)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close()
	})

	err = sqlite3.MigrateUp(ctx, db)
	require.NoError(t, err)

	threadRepo := sqlite3.NewThreadRepository(db)
	postRepo := sqlite3.NewPostRepository(db)
	invalidator := &recordingInvalidator{}

	forumSvc := forum.NewService(threadRepo, postRepo, nil, nil)

	thread, err := forumSvc.CreateThread(as("alice", authcontext.RoleApplicant), forum.CreateThreadRequest{Title: "Go"})
	require.NoError(t, err)

	err = forumSvc.JoinThread(as("bob", authcontext.RoleApplicant), thread.ID)
	require.NoError(t, err)

	post, err := forumSvc.CreatePost(as("alice", authcontext.RoleApplicant), forum.CreatePostRequest{
		ThreadID: thread.ID,
		Title:    "hello",
	})
	require.NoError(t, err)

	return &fixture{
		store:       discuss.NewStore(sqlite3.NewCommentRepository(db), postRepo, threadRepo, invalidator),
		forum:       forumSvc,
		invalidator: invalidator,
		post:        post,
	}
}

func (f *fixture) comment(t *testing.T, userID string, parentCommentID *string) *discuss.Comment {
	t.Helper()

	comment, err := f.store.CreateComment(as(userID, authcontext.RoleApplicant), discuss.CreateCommentRequest{
		PostID:          f.post.ID,
		Text:            "text by " + userID,
		ParentCommentID: parentCommentID,
	})
	require.NoError(t, err)

	return comment
}

func TestStore_CreateComment(t *testing.T) {
	f := newFixture(t)

	t.Run("root comment", func(t *testing.T) {
		comment := f.comment(t, "bob", nil)
		assert.Equal(t, "bob", comment.AuthorID)
		assert.Equal(t, f.post.ID, comment.PostID)
		assert.Nil(t, comment.ParentCommentID)
		assert.Equal(t, 0, comment.ReplyCount)
		assert.Equal(t, []string{"bob"}, comment.SeenBy)
		assert.Contains(t, f.invalidator.references, f.post.ID)
	})

	t.Run("reply increments parent", func(t *testing.T) {
		parent := f.comment(t, "alice", nil)
		f.comment(t, "bob", &parent.ID)
		f.comment(t, "alice", &parent.ID)

		got, err := f.store.GetComment(context.Background(), parent.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.ReplyCount)
	})

	t.Run("non member is forbidden", func(t *testing.T) {
		_, err := f.store.CreateComment(as("carol", authcontext.RoleApplicant), discuss.CreateCommentRequest{
			PostID: f.post.ID,
			Text:   "hi",
		})
		forbiddenErr := &authorization.ForbiddenError{}
		require.ErrorAs(t, err, &forbiddenErr)
	})

	t.Run("company role is forbidden", func(t *testing.T) {
		_, err := f.store.CreateComment(as("bob", authcontext.RoleCompany), discuss.CreateCommentRequest{
			PostID: f.post.ID,
			Text:   "hi",
		})
		forbiddenErr := &authorization.ForbiddenError{}
		require.ErrorAs(t, err, &forbiddenErr)
	})

	t.Run("missing post", func(t *testing.T) {
		_, err := f.store.CreateComment(as("bob", authcontext.RoleApplicant), discuss.CreateCommentRequest{
			PostID: "missing",
			Text:   "hi",
		})
		notFoundErr := &forum.PostNotFoundError{}
		require.ErrorAs(t, err, &notFoundErr)
	})

	t.Run("missing parent", func(t *testing.T) {
		parentID := "missing"
		_, err := f.store.CreateComment(as("bob", authcontext.RoleApplicant), discuss.CreateCommentRequest{
			PostID:          f.post.ID,
			Text:            "hi",
			ParentCommentID: &parentID,
		})
		notFoundErr := &discuss.CommentNotFoundError{}
		require.ErrorAs(t, err, &notFoundErr)
	})

	t.Run("parent on another post", func(t *testing.T) {
		other, err := f.forum.CreatePost(as("alice", authcontext.RoleApplicant), forum.CreatePostRequest{
			ThreadID: f.post.ThreadID,
			Title:    "other",
		})
		require.NoError(t, err)

		parent, err := f.store.CreateComment(as("bob", authcontext.RoleApplicant), discuss.CreateCommentRequest{
			PostID: other.ID,
			Text:   "elsewhere",
		})
		require.NoError(t, err)

		_, err = f.store.CreateComment(as("bob", authcontext.RoleApplicant), discuss.CreateCommentRequest{
			PostID:          f.post.ID,
			Text:            "hi",
			ParentCommentID: &parent.ID,
		})
		mismatchErr := &discuss.ParentMismatchError{}
		require.ErrorAs(t, err, &mismatchErr)
	})

	t.Run("empty text", func(t *testing.T) {
		_, err := f.store.CreateComment(as("bob", authcontext.RoleApplicant), discuss.CreateCommentRequest{
			PostID: f.post.ID,
			Text:   "   ",
		})
		require.Error(t, err)
	})
}

func TestStore_UpdateComment(t *testing.T) {
	f := newFixture(t)
	comment := f.comment(t, "bob", nil)

	_, err := f.store.UpdateComment(as("alice", authcontext.RoleApplicant), discuss.UpdateCommentRequest{
		CommentID: comment.ID,
		Text:      "hijack",
	})
	forbiddenErr := &authorization.ForbiddenError{}
	require.ErrorAs(t, err, &forbiddenErr)

	updated, err := f.store.UpdateComment(as("bob", authcontext.RoleApplicant), discuss.UpdateCommentRequest{
		CommentID: comment.ID,
		Text:      "<i>edited</i>",
	})
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Text)
	assert.NotNil(t, updated.UpdatedAt)

	got, err := f.store.GetComment(context.Background(), comment.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Text)
}

func TestStore_DeleteComment(t *testing.T) {
	t.Run("cascades and decrements the parent", func(t *testing.T) {
		f := newFixture(t)

		root := f.comment(t, "alice", nil)
		x := f.comment(t, "bob", &root.ID)
		y := f.comment(t, "alice", &x.ID)
		z := f.comment(t, "bob", &y.ID)
		sibling := f.comment(t, "bob", &root.ID)

		deleted, err := f.store.DeleteComment(as("bob", authcontext.RoleApplicant), x.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{x.ID, y.ID, z.ID}, deleted)

		for _, id := range deleted {
			_, err := f.store.GetComment(context.Background(), id)
			notFoundErr := &discuss.CommentNotFoundError{}
			require.ErrorAs(t, err, &notFoundErr)
		}

		got, err := f.store.GetComment(context.Background(), root.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.ReplyCount)

		_, err = f.store.GetComment(context.Background(), sibling.ID)
		require.NoError(t, err)

		count, err := f.store.CountComments(context.Background(), f.post.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("returns levels in order", func(t *testing.T) {
		f := newFixture(t)

		root := f.comment(t, "alice", nil)
		a := f.comment(t, "bob", &root.ID)
		b := f.comment(t, "bob", &root.ID)
		a1 := f.comment(t, "alice", &a.ID)

		deleted, err := f.store.DeleteComment(as("alice", authcontext.RoleApplicant), root.ID)
		require.NoError(t, err)
		require.Len(t, deleted, 4)
		assert.Equal(t, root.ID, deleted[0])
		assert.ElementsMatch(t, []string{a.ID, b.ID}, deleted[1:3])
		assert.Equal(t, a1.ID, deleted[3])

		count, err := f.store.CountComments(context.Background(), f.post.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("admin may delete", func(t *testing.T) {
		f := newFixture(t)
		comment := f.comment(t, "bob", nil)

		deleted, err := f.store.DeleteComment(as("root", authcontext.RoleAdmin), comment.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{comment.ID}, deleted)
	})

	t.Run("other user is forbidden", func(t *testing.T) {
		f := newFixture(t)
		comment := f.comment(t, "bob", nil)

		_, err := f.store.DeleteComment(as("alice", authcontext.RoleApplicant), comment.ID)
		forbiddenErr := &authorization.ForbiddenError{}
		require.ErrorAs(t, err, &forbiddenErr)
	})

	t.Run("missing comment", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.store.DeleteComment(as("bob", authcontext.RoleApplicant), "missing")
		notFoundErr := &discuss.CommentNotFoundError{}
		require.ErrorAs(t, err, &notFoundErr)
	})
}

func TestStore_MarkCommentsSeen(t *testing.T) {
	f := newFixture(t)
	comment := f.comment(t, "bob", nil)

	err := f.store.MarkCommentsSeen(context.Background(), []string{comment.ID})
	forbiddenErr := &authorization.ForbiddenError{}
	require.ErrorAs(t, err, &forbiddenErr)

	err = f.store.MarkCommentsSeen(as("root", authcontext.RoleAdmin), []string{comment.ID})
	require.NoError(t, err)

	for range 2 {
		err = f.store.MarkCommentsSeen(as("alice", authcontext.RoleApplicant), []string{comment.ID})
		require.NoError(t, err)
	}

	got, err := f.store.GetComment(context.Background(), comment.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "alice"}, got.SeenBy)
	assert.Contains(t, f.invalidator.users, "alice")
	assert.NotContains(t, f.invalidator.users, "root")
}

func TestStore_ListComments(t *testing.T) {
	f := newFixture(t)

	root := f.comment(t, "alice", nil)
	f.comment(t, "bob", nil)
	reply := f.comment(t, "bob", &root.ID)

	roots, cursor, err := f.store.ListComments(context.Background(), discuss.ListCommentsParams{PostID: f.post.ID, Limit: 1})
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, root.ID, roots[0].ID)
	require.NotEmpty(t, cursor)

	rest, cursor, err := f.store.ListComments(context.Background(), discuss.ListCommentsParams{PostID: f.post.ID, Cursor: cursor, Limit: 1})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Empty(t, cursor)

	replies, _, err := f.store.ListComments(context.Background(), discuss.ListCommentsParams{
		PostID:          f.post.ID,
		ParentCommentID: &root.ID,
	})
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, reply.ID, replies[0].ID)
}
