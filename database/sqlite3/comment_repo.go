package sqlite3

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/nasermirzaei89/agora/discuss"
)

const (
	tableComments    = "comments"
	tableCommentSeen = "comment_seen"
)

type CommentRepository struct {
	db *sql.DB
}

var _ discuss.CommentRepository = (*CommentRepository)(nil)

func NewCommentRepository(db *sql.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

const (
	commentFieldID              = "id"
	commentFieldAuthorID        = "author_id"
	commentFieldPostID          = "post_id"
	commentFieldParentCommentID = "parent_comment_id"
	commentFieldText            = "text"
	commentFieldReplyCount      = "reply_count"
	commentFieldCreatedAt       = "created_at"
	commentFieldUpdatedAt       = "updated_at"

	commentSeenFieldCommentID = "comment_id"
)

func commentColumns() []string {
	return []string{
		commentFieldID,
		commentFieldAuthorID,
		commentFieldPostID,
		commentFieldParentCommentID,
		commentFieldText,
		commentFieldReplyCount,
		commentFieldCreatedAt,
		commentFieldUpdatedAt,
	}
}

func scanComment(row sq.RowScanner, extra ...any) (*discuss.Comment, error) {
	var comment discuss.Comment

	dest := append(extra,
		&comment.ID,
		&comment.AuthorID,
		&comment.PostID,
		&comment.ParentCommentID,
		&comment.Text,
		&comment.ReplyCount,
		&comment.CreatedAt,
		&comment.UpdatedAt,
	)

	err := row.Scan(dest...)
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	return &comment, nil
}

func (repo *CommentRepository) Insert(ctx context.Context, comment *discuss.Comment) error {
	q := sq.Insert(tableComments).
		Columns(commentColumns()...).
		Values(
			comment.ID,
			comment.AuthorID,
			comment.PostID,
			comment.ParentCommentID,
			comment.Text,
			comment.ReplyCount,
			comment.CreatedAt,
			comment.UpdatedAt,
		)

	q = q.RunWith(repo.db)

	_, err := q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec insert: %w", err)
	}

	err = addMembersToSet(ctx, repo.db, tableCommentSeen, commentSeenFieldCommentID, comment.ID, comment.SeenBy)
	if err != nil {
		return fmt.Errorf("failed to insert seen by: %w", err)
	}

	return nil
}

func (repo *CommentRepository) Find(ctx context.Context, commentID string) (*discuss.Comment, error) {
	q := sq.Select(commentColumns()...).
		From(tableComments).
		Where(sq.Eq{commentFieldID: commentID})

	q = q.RunWith(repo.db)

	comment, err := scanComment(q.QueryRowContext(ctx))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &discuss.CommentNotFoundError{ID: commentID}
		}

		return nil, fmt.Errorf("failed to scan comment: %w", err)
	}

	comment.SeenBy, err = loadSet(ctx, repo.db, tableCommentSeen, commentSeenFieldCommentID, comment.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load seen by: %w", err)
	}

	return comment, nil
}

func (repo *CommentRepository) UpdateText(ctx context.Context, comment *discuss.Comment) error {
	q := sq.Update(tableComments).
		Set(commentFieldText, comment.Text).
		Set(commentFieldUpdatedAt, comment.UpdatedAt).
		Where(sq.Eq{commentFieldID: comment.ID})

	q = q.RunWith(repo.db)

	res, err := q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec update: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected == 0 {
		return &discuss.CommentNotFoundError{ID: comment.ID}
	}

	return nil
}

// Delete removes one comment and its seen-by rows. Deleting a missing
// comment is not an error.
func (repo *CommentRepository) Delete(ctx context.Context, commentID string) error {
	err := clearSet(ctx, repo.db, tableCommentSeen, commentSeenFieldCommentID, commentID)
	if err != nil {
		return fmt.Errorf("failed to delete seen by: %w", err)
	}

	q := sq.Delete(tableComments).Where(sq.Eq{commentFieldID: commentID})

	q = q.RunWith(repo.db)

	_, err = q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec delete: %w", err)
	}

	return nil
}

func (repo *CommentRepository) ListChildIDs(ctx context.Context, commentID string) ([]string, error) {
	q := sq.Select(commentFieldID).
		From(tableComments).
		Where(sq.Eq{commentFieldParentCommentID: commentID}).
		OrderBy(fieldRowID + " ASC")

	childIDs, err := queryStrings(ctx, q, repo.db)
	if err != nil {
		return nil, fmt.Errorf("failed to query child ids: %w", err)
	}

	return childIDs, nil
}

func (repo *CommentRepository) IncrementReplyCount(ctx context.Context, commentID string) error {
	q := sq.Update(tableComments).
		Set(commentFieldReplyCount, sq.Expr(commentFieldReplyCount+" + 1")).
		Where(sq.Eq{commentFieldID: commentID})

	return repo.execReplyCount(ctx, q, commentID)
}

func (repo *CommentRepository) DecrementReplyCount(ctx context.Context, commentID string) error {
	q := sq.Update(tableComments).
		Set(commentFieldReplyCount, sq.Expr("max("+commentFieldReplyCount+" - 1, 0)")).
		Where(sq.Eq{commentFieldID: commentID})

	return repo.execReplyCount(ctx, q, commentID)
}

func (repo *CommentRepository) execReplyCount(ctx context.Context, q sq.UpdateBuilder, commentID string) error {
	res, err := q.RunWith(repo.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec update: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected == 0 {
		return &discuss.CommentNotFoundError{ID: commentID}
	}

	return nil
}

func (repo *CommentRepository) MarkSeen(ctx context.Context, commentIDs []string, userID string) error {
	return addToSet(ctx, repo.db, tableCommentSeen, commentSeenFieldCommentID, tableComments, commentIDs, userID)
}

func (repo *CommentRepository) List(ctx context.Context, params *discuss.ListCommentsParams) ([]*discuss.Comment, string, error) {
	q := sq.Select(append([]string{fieldRowID}, commentColumns()...)...).
		From(tableComments).
		Where(sq.Eq{commentFieldPostID: params.PostID})

	if params.ParentCommentID != nil {
		q = q.Where(sq.Eq{commentFieldParentCommentID: *params.ParentCommentID})
	} else {
		q = q.Where(sq.Eq{commentFieldParentCommentID: nil})
	}

	q, err := paginate(q, params.Cursor, params.Limit)
	if err != nil {
		return nil, "", err
	}

	rows, err := q.RunWith(repo.db).QueryContext(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("query failed: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			slog.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	comments := make([]*discuss.Comment, 0)
	rowIDs := make([]int64, 0)

	for rows.Next() {
		var rowID int64

		comment, err := scanComment(rows, &rowID)
		if err != nil {
			return nil, "", fmt.Errorf("scan comment failed: %w", err)
		}

		comments = append(comments, comment)
		rowIDs = append(rowIDs, rowID)
	}

	err = rows.Err()
	if err != nil {
		return nil, "", fmt.Errorf("rows iteration failed: %w", err)
	}

	err = rows.Close()
	if err != nil {
		return nil, "", fmt.Errorf("failed to close rows: %w", err)
	}

	comments, nextCursor := trimPage(comments, rowIDs, params.Limit)

	ids := make([]string, len(comments))
	for i, comment := range comments {
		ids[i] = comment.ID
	}

	seen, err := loadSets(ctx, repo.db, tableCommentSeen, commentSeenFieldCommentID, ids)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load seen by: %w", err)
	}

	for _, comment := range comments {
		comment.SeenBy = seen[comment.ID]
	}

	return comments, nextCursor, nil
}

func (repo *CommentRepository) Count(ctx context.Context, postID string) (int, error) {
	q := sq.Select("COUNT(*)").From(tableComments).Where(sq.Eq{commentFieldPostID: postID})

	count, err := queryInt(ctx, q, repo.db)
	if err != nil {
		return 0, fmt.Errorf("failed to count comments: %w", err)
	}

	return count, nil
}
