package commenttree_test

import (
	"context"
	"errors"
	"testing"

	"github.com/nasermirzaei89/agora/commenttree"
	"github.com/nasermirzaei89/agora/discuss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func comment(id string, parentID *string) *discuss.Comment {
	return &discuss.Comment{ID: id, PostID: "post-1", ParentCommentID: parentID}
}

func ptr(s string) *string {
	return &s
}

func ids(tree *commenttree.Tree) []string {
	res := make([]string, 0, tree.Len())
	for _, node := range tree.Nodes() {
		res = append(res, node.Comment.ID)
	}

	return res
}

func TestTree_AddNode(t *testing.T) {
	t.Parallel()

	t.Run("roots are appended", func(t *testing.T) {
		t.Parallel()

		tree := commenttree.New()
		tree.AddNode(comment("a", nil), 0, nil)
		tree.AddNode(comment("b", nil), 0, nil)

		assert.Equal(t, []string{"a", "b"}, ids(tree))
	})

	t.Run("idempotent", func(t *testing.T) {
		t.Parallel()

		tree := commenttree.New()
		tree.AddNode(comment("a", nil), 0, nil)
		tree.AddNode(comment("a", nil), 0, nil)
		tree.AddNode(comment("b", ptr("a")), 1, ptr("a"))
		tree.AddNode(comment("b", ptr("a")), 1, ptr("a"))

		assert.Equal(t, []string{"a", "b"}, ids(tree))
	})

	t.Run("child goes after parent subtree", func(t *testing.T) {
		t.Parallel()

		tree := commenttree.New()
		tree.AddNode(comment("a", nil), 0, nil)
		tree.AddNode(comment("b", nil), 0, nil)
		tree.AddNode(comment("a1", ptr("a")), 1, ptr("a"))
		tree.AddNode(comment("a1x", ptr("a1")), 2, ptr("a1"))
		tree.AddNode(comment("a2", ptr("a")), 1, ptr("a"))
		tree.AddNode(comment("b1", ptr("b")), 1, ptr("b"))

		assert.Equal(t, []string{"a", "a1", "a1x", "a2", "b", "b1"}, ids(tree))
	})

	t.Run("unknown parent is appended", func(t *testing.T) {
		t.Parallel()

		tree := commenttree.New()
		tree.AddNode(comment("a", nil), 0, nil)
		tree.AddNode(comment("orphan", ptr("missing")), 3, ptr("missing"))

		assert.Equal(t, []string{"a", "orphan"}, ids(tree))

		node, ok := tree.Node("orphan")
		require.True(t, ok)
		assert.Equal(t, 3, node.Level)
	})

	t.Run("ancestors precede descendants", func(t *testing.T) {
		t.Parallel()

		tree := commenttree.New()
		tree.AddNode(comment("r1", nil), 0, nil)
		tree.AddNode(comment("r2", nil), 0, nil)
		tree.AddNode(comment("c1", ptr("r2")), 1, ptr("r2"))
		tree.AddNode(comment("c2", ptr("r1")), 1, ptr("r1"))
		tree.AddNode(comment("g1", ptr("c1")), 2, ptr("c1"))
		tree.AddNode(comment("g2", ptr("c2")), 2, ptr("c2"))
		tree.AddNode(comment("c3", ptr("r2")), 1, ptr("r2"))

		parents := map[string]string{"c1": "r2", "c2": "r1", "g1": "c1", "g2": "c2", "c3": "r2"}
		for child, parent := range parents {
			assert.Less(t, tree.IndexOf(parent), tree.IndexOf(child), "%s before %s", parent, child)
		}
	})
}

func TestTree_ToggleExpandCollapse(t *testing.T) {
	t.Parallel()

	tree := commenttree.New()
	tree.AddNode(comment("a", nil), 0, nil)

	assert.True(t, tree.Toggle("a"))
	assert.False(t, tree.Toggle("a"))

	tree.Expand("a")
	node, _ := tree.Node("a")
	assert.True(t, node.Expanded)

	tree.Collapse("a")
	node, _ = tree.Node("a")
	assert.False(t, node.Expanded)

	assert.False(t, tree.Toggle("missing"))
	assert.Equal(t, 1, tree.Len())
}

func TestTree_RemoveNodesAndReset(t *testing.T) {
	t.Parallel()

	tree := commenttree.New()
	tree.AddNode(comment("a", nil), 0, nil)
	tree.AddNode(comment("a1", ptr("a")), 1, ptr("a"))
	tree.AddNode(comment("b", nil), 0, nil)

	tree.RemoveNodes([]string{"a", "a1"})
	assert.Equal(t, []string{"b"}, ids(tree))
	assert.Equal(t, -1, tree.IndexOf("a"))

	tree.AddNode(comment("a", nil), 0, nil)
	assert.Equal(t, []string{"b", "a"}, ids(tree))

	tree.Reset()
	assert.Equal(t, 0, tree.Len())
}

type memFetcher struct {
	comments []*discuss.Comment
}

func (f *memFetcher) ListComments(_ context.Context, params discuss.ListCommentsParams) ([]*discuss.Comment, string, error) {
	res := make([]*discuss.Comment, 0)

	for _, c := range f.comments {
		switch {
		case params.ParentCommentID == nil && c.ParentCommentID == nil:
			res = append(res, c)
		case params.ParentCommentID != nil && c.ParentCommentID != nil && *c.ParentCommentID == *params.ParentCommentID:
			res = append(res, c)
		}
	}

	return res, "", nil
}

func TestSession_ReplyScenario(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	x := &discuss.Comment{ID: "x", PostID: "post-1", ReplyCount: 1}
	y := &discuss.Comment{ID: "y", PostID: "post-1", ParentCommentID: ptr("x")}

	session := commenttree.NewSession(&memFetcher{comments: []*discuss.Comment{x, y}}, "post-1", 10)

	next, err := session.LoadRoots(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, next)

	err = session.ToggleAndLoad(ctx, "x")
	require.NoError(t, err)

	nodes := session.Tree().Nodes()
	require.Len(t, nodes, 2)
	assert.Equal(t, "x", nodes[0].Comment.ID)
	assert.Equal(t, "y", nodes[1].Comment.ID)
	assert.Equal(t, nodes[0].Level+1, nodes[1].Level)
	assert.True(t, nodes[0].Expanded)

	err = session.ToggleAndLoad(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, 2, session.Tree().Len())

	session.ApplyDelete([]string{"x", "y"})
	assert.Equal(t, 0, session.Tree().Len())

	err = session.ToggleAndLoad(ctx, "x")
	require.Error(t, err)
}

// flakyFetcher fails the first replyFailures reply listings.
type flakyFetcher struct {
	memFetcher

	replyFailures int
}

func (f *flakyFetcher) ListComments(ctx context.Context, params discuss.ListCommentsParams) ([]*discuss.Comment, string, error) {
	if params.ParentCommentID != nil && f.replyFailures > 0 {
		f.replyFailures--

		return nil, "", errors.New("connection reset")
	}

	return f.memFetcher.ListComments(ctx, params)
}

func TestSession_ToggleAndLoad_RetryAfterFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	x := &discuss.Comment{ID: "x", PostID: "post-1", ReplyCount: 1}
	y := &discuss.Comment{ID: "y", PostID: "post-1", ParentCommentID: ptr("x")}

	fetcher := &flakyFetcher{memFetcher: memFetcher{comments: []*discuss.Comment{x, y}}, replyFailures: 1}
	session := commenttree.NewSession(fetcher, "post-1", 10)

	_, err := session.LoadRoots(ctx, "")
	require.NoError(t, err)

	err = session.ToggleAndLoad(ctx, "x")
	require.Error(t, err)

	node, ok := session.Tree().Node("x")
	require.True(t, ok)
	assert.False(t, node.Expanded)
	assert.Equal(t, []string{"x"}, ids(session.Tree()))

	err = session.ToggleAndLoad(ctx, "x")
	require.NoError(t, err)

	node, ok = session.Tree().Node("x")
	require.True(t, ok)
	assert.True(t, node.Expanded)
	assert.Equal(t, []string{"x", "y"}, ids(session.Tree()))
}
