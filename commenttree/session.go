package commenttree

import (
	"context"
	"fmt"
	"sync"

	"github.com/nasermirzaei89/agora/discuss"
)

// Fetcher pages through one level of a post's comments.
type Fetcher interface {
	ListComments(ctx context.Context, params discuss.ListCommentsParams) (comments []*discuss.Comment, nextCursor string, err error)
}

// Session binds a Tree to a post and a comment source. It is owned by one
// consumer and is not shared between users.
type Session struct {
	tree     *Tree
	fetcher  Fetcher
	postID   string
	pageSize int

	mu     sync.Mutex
	loaded map[string]struct{}
}

func NewSession(fetcher Fetcher, postID string, pageSize int) *Session {
	return &Session{
		tree:     New(),
		fetcher:  fetcher,
		postID:   postID,
		pageSize: pageSize,
		loaded:   make(map[string]struct{}),
	}
}

func (s *Session) Tree() *Tree {
	return s.tree
}

// LoadRoots adds one page of root comments at level 0 and returns the
// cursor of the next page.
func (s *Session) LoadRoots(ctx context.Context, cursor string) (string, error) {
	comments, nextCursor, err := s.fetcher.ListComments(ctx, discuss.ListCommentsParams{
		PostID: s.postID,
		Cursor: cursor,
		Limit:  s.pageSize,
	})
	if err != nil {
		return "", fmt.Errorf("failed to list root comments: %w", err)
	}

	for _, comment := range comments {
		s.tree.AddNode(comment, 0, nil)
	}

	return nextCursor, nil
}

// ToggleAndLoad flips a node and, the first time it is expanded, loads all
// of its direct replies one level deeper. A failed load leaves the node
// collapsed so the next call expands and loads again.
func (s *Session) ToggleAndLoad(ctx context.Context, commentID string) error {
	node, ok := s.tree.Node(commentID)
	if !ok {
		return &discuss.CommentNotFoundError{ID: commentID}
	}

	if !s.tree.Toggle(commentID) {
		return nil
	}

	s.mu.Lock()
	_, done := s.loaded[commentID]
	s.mu.Unlock()

	if done || node.Comment.ReplyCount == 0 {
		return nil
	}

	cursor := ""

	for {
		comments, nextCursor, err := s.fetcher.ListComments(ctx, discuss.ListCommentsParams{
			PostID:          s.postID,
			ParentCommentID: &commentID,
			Cursor:          cursor,
			Limit:           s.pageSize,
		})
		if err != nil {
			s.tree.Collapse(commentID)

			return fmt.Errorf("failed to list replies: %w", err)
		}

		for _, comment := range comments {
			s.tree.AddNode(comment, node.Level+1, &commentID)
		}

		if nextCursor == "" {
			break
		}

		cursor = nextCursor
	}

	s.mu.Lock()
	s.loaded[commentID] = struct{}{}
	s.mu.Unlock()

	return nil
}

// ApplyDelete prunes ids removed by a cascade delete.
func (s *Session) ApplyDelete(deletedIDs []string) {
	s.tree.RemoveNodes(deletedIDs)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range deletedIDs {
		delete(s.loaded, id)
	}
}

func (s *Session) Reset() {
	s.tree.Reset()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.loaded = make(map[string]struct{})
}
