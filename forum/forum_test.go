package forum_test

import (
	"context"
	"path/filepath"
	"testing"

	authcontext "github.com/nasermirzaei89/agora/authentication/context"
	"github.com/nasermirzaei89/agora/authorization"
	"github.com/nasermirzaei89/agora/database/sqlite3"
	"github.com/nasermirzaei89/agora/forum"
	"github.com/nasermirzaei89/agora/sanitize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) *forum.Service {
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

	return forum.NewService(sqlite3.NewThreadRepository(db), sqlite3.NewPostRepository(db), nil, nil)
}

func as(userID string, role authcontext.Role) context.Context {
	return authcontext.WithPrincipal(context.Background(), userID, role)
}

func TestService_CreateThread(t *testing.T) {
	svc := newService(t)

	t.Run("anonymous is forbidden", func(t *testing.T) {
		_, err := svc.CreateThread(context.Background(), forum.CreateThreadRequest{Title: "Go"})
		forbiddenErr := &authorization.ForbiddenError{}
		require.ErrorAs(t, err, &forbiddenErr)
	})

	t.Run("admin is forbidden", func(t *testing.T) {
		_, err := svc.CreateThread(as("admin", authcontext.RoleAdmin), forum.CreateThreadRequest{Title: "Go"})
		forbiddenErr := &authorization.ForbiddenError{}
		require.ErrorAs(t, err, &forbiddenErr)
	})

	t.Run("empty title", func(t *testing.T) {
		_, err := svc.CreateThread(as("alice", authcontext.RoleApplicant), forum.CreateThreadRequest{Title: " <b></b> "})
		emptyErr := &sanitize.EmptyInputError{}
		require.ErrorAs(t, err, &emptyErr)
	})

	t.Run("sanitized", func(t *testing.T) {
		description := "<script>x</script>about Go"
		thread, err := svc.CreateThread(as("alice", authcontext.RoleApplicant), forum.CreateThreadRequest{
			Title:       "<b>Go</b>",
			Description: &description,
		})
		require.NoError(t, err)
		assert.Equal(t, "Go", thread.Title)
		require.NotNil(t, thread.Description)
		assert.Equal(t, "about Go", *thread.Description)
		assert.Equal(t, "alice", thread.AuthorID)
		assert.Empty(t, thread.MemberIDs)
	})
}

func TestService_JoinLeaveThread(t *testing.T) {
	svc := newService(t)

	thread, err := svc.CreateThread(as("alice", authcontext.RoleApplicant), forum.CreateThreadRequest{Title: "Go"})
	require.NoError(t, err)

	t.Run("author cannot join", func(t *testing.T) {
		err := svc.JoinThread(as("alice", authcontext.RoleApplicant), thread.ID)
		alreadyErr := &forum.AlreadyMemberError{}
		require.ErrorAs(t, err, &alreadyErr)
	})

	t.Run("author cannot leave", func(t *testing.T) {
		err := svc.LeaveThread(as("alice", authcontext.RoleApplicant), thread.ID)
		creatorErr := &forum.CreatorCannotLeaveError{}
		require.ErrorAs(t, err, &creatorErr)
	})

	t.Run("admin cannot join", func(t *testing.T) {
		err := svc.JoinThread(as("root", authcontext.RoleAdmin), thread.ID)
		forbiddenErr := &authorization.ForbiddenError{}
		require.ErrorAs(t, err, &forbiddenErr)
	})

	t.Run("join twice then leave twice", func(t *testing.T) {
		ctx := as("bob", authcontext.RoleApplicant)

		err := svc.JoinThread(ctx, thread.ID)
		require.NoError(t, err)

		err = svc.JoinThread(ctx, thread.ID)
		alreadyErr := &forum.AlreadyMemberError{}
		require.ErrorAs(t, err, &alreadyErr)

		got, err := svc.GetThread(ctx, thread.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"bob"}, got.MemberIDs)

		err = svc.LeaveThread(ctx, thread.ID)
		require.NoError(t, err)

		err = svc.LeaveThread(ctx, thread.ID)
		notMemberErr := &forum.NotMemberError{}
		require.ErrorAs(t, err, &notMemberErr)
	})

	t.Run("missing thread", func(t *testing.T) {
		err := svc.JoinThread(as("bob", authcontext.RoleApplicant), "missing")
		notFoundErr := &forum.ThreadNotFoundError{}
		require.ErrorAs(t, err, &notFoundErr)
	})
}

func TestService_CreatePost(t *testing.T) {
	svc := newService(t)

	thread, err := svc.CreateThread(as("alice", authcontext.RoleApplicant), forum.CreateThreadRequest{Title: "Go"})
	require.NoError(t, err)

	t.Run("non member is forbidden", func(t *testing.T) {
		_, err := svc.CreatePost(as("bob", authcontext.RoleApplicant), forum.CreatePostRequest{ThreadID: thread.ID, Title: "hi"})
		forbiddenErr := &authorization.ForbiddenError{}
		require.ErrorAs(t, err, &forbiddenErr)
	})

	t.Run("author posts and has seen it", func(t *testing.T) {
		post, err := svc.CreatePost(as("alice", authcontext.RoleApplicant), forum.CreatePostRequest{ThreadID: thread.ID, Title: "hi"})
		require.NoError(t, err)
		assert.Equal(t, []string{"alice"}, post.SeenBy)

		posts, _, err := svc.ListPosts(context.Background(), thread.ID, "", 0)
		require.NoError(t, err)
		require.Len(t, posts, 1)
		assert.Equal(t, post.ID, posts[0].ID)
	})

	t.Run("only the owner updates", func(t *testing.T) {
		post, err := svc.CreatePost(as("alice", authcontext.RoleApplicant), forum.CreatePostRequest{ThreadID: thread.ID, Title: "draft"})
		require.NoError(t, err)

		_, err = svc.UpdatePost(as("bob", authcontext.RoleApplicant), forum.UpdatePostRequest{PostID: post.ID, Title: "x"})
		forbiddenErr := &authorization.ForbiddenError{}
		require.ErrorAs(t, err, &forbiddenErr)

		updated, err := svc.UpdatePost(as("alice", authcontext.RoleApplicant), forum.UpdatePostRequest{PostID: post.ID, Title: "final"})
		require.NoError(t, err)
		assert.Equal(t, "final", updated.Title)
		assert.NotNil(t, updated.UpdatedAt)
	})
}

func TestService_VotePost(t *testing.T) {
	svc := newService(t)

	thread, err := svc.CreateThread(as("alice", authcontext.RoleApplicant), forum.CreateThreadRequest{Title: "Go"})
	require.NoError(t, err)

	post, err := svc.CreatePost(as("alice", authcontext.RoleApplicant), forum.CreatePostRequest{ThreadID: thread.ID, Title: "hi"})
	require.NoError(t, err)

	ctx := as("bob", authcontext.RoleApplicant)

	voted, err := svc.VotePost(ctx, post.ID, forum.VoteUp)
	require.NoError(t, err)
	assert.Equal(t, []forum.Vote{{UserID: "bob", Value: forum.VoteUp}}, voted.Votes)

	_, err = svc.VotePost(ctx, post.ID, forum.VoteUp)
	unchangedErr := &forum.VoteUnchangedError{}
	require.ErrorAs(t, err, &unchangedErr)

	voted, err = svc.VotePost(ctx, post.ID, forum.VoteDown)
	require.NoError(t, err)
	assert.Equal(t, []forum.Vote{{UserID: "bob", Value: forum.VoteDown}}, voted.Votes)

	_, err = svc.VotePost(ctx, post.ID, forum.VoteValue("sideways"))
	invalidErr := &forum.InvalidVoteValueError{}
	require.ErrorAs(t, err, &invalidErr)

	_, err = svc.VotePost(context.Background(), post.ID, forum.VoteUp)
	forbiddenErr := &authorization.ForbiddenError{}
	require.ErrorAs(t, err, &forbiddenErr)
}

func TestService_MarkPostsSeen(t *testing.T) {
	svc := newService(t)

	thread, err := svc.CreateThread(as("alice", authcontext.RoleApplicant), forum.CreateThreadRequest{Title: "Go"})
	require.NoError(t, err)

	post, err := svc.CreatePost(as("alice", authcontext.RoleApplicant), forum.CreatePostRequest{ThreadID: thread.ID, Title: "hi"})
	require.NoError(t, err)

	err = svc.MarkPostsSeen(as("root", authcontext.RoleAdmin), []string{post.ID})
	require.NoError(t, err)

	for range 2 {
		err = svc.MarkPostsSeen(as("bob", authcontext.RoleApplicant), []string{post.ID})
		require.NoError(t, err)
	}

	got, err := svc.GetPost(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, got.SeenBy)
}
