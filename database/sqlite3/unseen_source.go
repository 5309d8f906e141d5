package sqlite3

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/nasermirzaei89/agora/forum"
	"github.com/nasermirzaei89/agora/notifications"
)

// UnseenSource answers the counting queries behind unseen notifications.
type UnseenSource struct {
	db            *sql.DB
	threads       *ThreadRepository
	conversations *ConversationRepository
}

var _ notifications.Source = (*UnseenSource)(nil)

func NewUnseenSource(db *sql.DB) *UnseenSource {
	return &UnseenSource{
		db:            db,
		threads:       NewThreadRepository(db),
		conversations: NewConversationRepository(db),
	}
}

func notSeenBy(seenTable, refField, parentTable, userID string) sq.Sqlizer {
	return sq.Expr(
		"NOT EXISTS (SELECT 1 FROM "+seenTable+" s WHERE s."+refField+" = "+parentTable+".id AND s.user_id = ?)",
		userID,
	)
}

func threadRef(thread *forum.Thread) *notifications.ThreadRef {
	return &notifications.ThreadRef{
		ID:        thread.ID,
		AuthorID:  thread.AuthorID,
		Title:     thread.Title,
		MemberIDs: thread.MemberIDs,
	}
}

func (src *UnseenSource) ListThreadRefs(ctx context.Context) ([]*notifications.ThreadRef, error) {
	threads, err := src.threads.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}

	res := make([]*notifications.ThreadRef, 0, len(threads))
	for _, thread := range threads {
		res = append(res, threadRef(thread))
	}

	return res, nil
}

func (src *UnseenSource) FindThreadRef(ctx context.Context, threadID string) (*notifications.ThreadRef, error) {
	thread, err := src.threads.Find(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to find thread: %w", err)
	}

	return threadRef(thread), nil
}

func postRefColumns() []string {
	return []string{postFieldID, postFieldThreadID, postFieldAuthorID, postFieldTitle}
}

func scanPostRef(row sq.RowScanner) (*notifications.PostRef, error) {
	var post notifications.PostRef

	err := row.Scan(&post.ID, &post.ThreadID, &post.AuthorID, &post.Title)
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	return &post, nil
}

func (src *UnseenSource) ListPostRefs(ctx context.Context) ([]*notifications.PostRef, error) {
	q := sq.Select(postRefColumns()...).From(tablePosts).OrderBy(fieldRowID + " ASC")

	rows, err := q.RunWith(src.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			slog.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	res := make([]*notifications.PostRef, 0)

	for rows.Next() {
		post, err := scanPostRef(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post failed: %w", err)
		}

		res = append(res, post)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return res, nil
}

func (src *UnseenSource) FindPostRef(ctx context.Context, postID string) (*notifications.PostRef, error) {
	q := sq.Select(postRefColumns()...).From(tablePosts).Where(sq.Eq{postFieldID: postID})

	post, err := scanPostRef(q.RunWith(src.db).QueryRowContext(ctx))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &forum.PostNotFoundError{ID: postID}
		}

		return nil, fmt.Errorf("failed to scan post: %w", err)
	}

	return post, nil
}

func (src *UnseenSource) ListConversationRefs(ctx context.Context) ([]*notifications.ConversationRef, error) {
	conversations, err := src.conversations.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	res := make([]*notifications.ConversationRef, 0, len(conversations))
	for _, conversation := range conversations {
		res = append(res, &notifications.ConversationRef{ID: conversation.ID, MemberIDs: conversation.MemberIDs})
	}

	return res, nil
}

func (src *UnseenSource) FindConversationRef(ctx context.Context, conversationID string) (*notifications.ConversationRef, error) {
	conversation, err := src.conversations.Find(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to find conversation: %w", err)
	}

	return &notifications.ConversationRef{ID: conversation.ID, MemberIDs: conversation.MemberIDs}, nil
}

func (src *UnseenSource) ListCommenterIDs(ctx context.Context, postID string) ([]string, error) {
	q := sq.Select(commentFieldAuthorID).
		Distinct().
		From(tableComments).
		Where(sq.Eq{commentFieldPostID: postID})

	userIDs, err := queryStrings(ctx, q, src.db)
	if err != nil {
		return nil, fmt.Errorf("failed to query commenters: %w", err)
	}

	return userIDs, nil
}

func (src *UnseenSource) CountPosts(ctx context.Context, threadID string) (int, error) {
	q := sq.Select("COUNT(*)").From(tablePosts).Where(sq.Eq{postFieldThreadID: threadID})

	return queryInt(ctx, q, src.db)
}

func (src *UnseenSource) CountComments(ctx context.Context, postID string) (int, error) {
	q := sq.Select("COUNT(*)").From(tableComments).Where(sq.Eq{commentFieldPostID: postID})

	return queryInt(ctx, q, src.db)
}

// CountUnseenPosts counts posts in the thread written by others that the user
// has not seen.
func (src *UnseenSource) CountUnseenPosts(ctx context.Context, threadID, userID string) (int, error) {
	q := sq.Select("COUNT(*)").
		From(tablePosts).
		Where(sq.Eq{postFieldThreadID: threadID}).
		Where(sq.NotEq{postFieldAuthorID: userID}).
		Where(notSeenBy(tablePostSeen, postRefFieldPostID, tablePosts, userID))

	return queryInt(ctx, q, src.db)
}

func (src *UnseenSource) CountUnseenComments(ctx context.Context, postID, userID string) (int, error) {
	q := sq.Select("COUNT(*)").
		From(tableComments).
		Where(sq.Eq{commentFieldPostID: postID}).
		Where(sq.NotEq{commentFieldAuthorID: userID}).
		Where(notSeenBy(tableCommentSeen, commentSeenFieldCommentID, tableComments, userID))

	return queryInt(ctx, q, src.db)
}

// CountUnseenMessages skips deleted messages and messages hidden from the user.
func (src *UnseenSource) CountUnseenMessages(ctx context.Context, conversationID, userID string) (int, error) {
	q := sq.Select("COUNT(*)").
		From(tableMessages).
		Where(sq.Eq{messageFieldConversationID: conversationID, messageFieldDeletedAt: nil}).
		Where(sq.NotEq{messageFieldAuthorID: userID}).
		Where(notHiddenFrom(userID)).
		Where(notSeenBy(tableMessageSeen, messageRefFieldMessageID, tableMessages, userID))

	return queryInt(ctx, q, src.db)
}

func (src *UnseenSource) HasPostInThread(ctx context.Context, threadID, userID string) (bool, error) {
	q := sq.Select("COUNT(*)").
		From(tablePosts).
		Where(sq.Eq{postFieldThreadID: threadID, postFieldAuthorID: userID})

	count, err := queryInt(ctx, q, src.db)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

func (src *UnseenSource) HasCommentOnPost(ctx context.Context, postID, userID string) (bool, error) {
	q := sq.Select("COUNT(*)").
		From(tableComments).
		Where(sq.Eq{commentFieldPostID: postID, commentFieldAuthorID: userID})

	count, err := queryInt(ctx, q, src.db)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}
