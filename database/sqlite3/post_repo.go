package sqlite3

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/nasermirzaei89/agora/forum"
)

const (
	tablePosts     = "posts"
	tablePostVotes = "post_votes"
	tablePostSeen  = "post_seen"
)

type PostRepository struct {
	db *sql.DB
}

var _ forum.PostRepository = (*PostRepository)(nil)

func NewPostRepository(db *sql.DB) *PostRepository {
	return &PostRepository{db: db}
}

const (
	postFieldID        = "id"
	postFieldAuthorID  = "author_id"
	postFieldThreadID  = "thread_id"
	postFieldTitle     = "title"
	postFieldContent   = "content"
	postFieldCreatedAt = "created_at"
	postFieldUpdatedAt = "updated_at"

	postRefFieldPostID = "post_id"
	voteFieldValue     = "value"
)

func postColumns() []string {
	return []string{
		postFieldID,
		postFieldAuthorID,
		postFieldThreadID,
		postFieldTitle,
		postFieldContent,
		postFieldCreatedAt,
		postFieldUpdatedAt,
	}
}

func scanPost(row sq.RowScanner, extra ...any) (*forum.Post, error) {
	var post forum.Post

	dest := append(extra,
		&post.ID,
		&post.AuthorID,
		&post.ThreadID,
		&post.Title,
		&post.Content,
		&post.CreatedAt,
		&post.UpdatedAt,
	)

	err := row.Scan(dest...)
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	return &post, nil
}

func (repo *PostRepository) Insert(ctx context.Context, post *forum.Post) error {
	q := sq.Insert(tablePosts).
		Columns(postColumns()...).
		Values(
			post.ID,
			post.AuthorID,
			post.ThreadID,
			post.Title,
			post.Content,
			post.CreatedAt,
			post.UpdatedAt,
		)

	q = q.RunWith(repo.db)

	_, err := q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec insert: %w", err)
	}

	err = addMembersToSet(ctx, repo.db, tablePostSeen, postRefFieldPostID, post.ID, post.SeenBy)
	if err != nil {
		return fmt.Errorf("failed to insert seen by: %w", err)
	}

	for _, vote := range post.Votes {
		err = repo.UpsertVote(ctx, post.ID, vote)
		if err != nil {
			return fmt.Errorf("failed to insert vote: %w", err)
		}
	}

	return nil
}

func (repo *PostRepository) Find(ctx context.Context, postID string) (*forum.Post, error) {
	q := sq.Select(postColumns()...).
		From(tablePosts).
		Where(sq.Eq{postFieldID: postID})

	q = q.RunWith(repo.db)

	post, err := scanPost(q.QueryRowContext(ctx))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &forum.PostNotFoundError{ID: postID}
		}

		return nil, fmt.Errorf("failed to scan post: %w", err)
	}

	err = repo.loadRelations(ctx, []*forum.Post{post})
	if err != nil {
		return nil, err
	}

	return post, nil
}

func (repo *PostRepository) Update(ctx context.Context, post *forum.Post) error {
	q := sq.Update(tablePosts).
		Set(postFieldTitle, post.Title).
		Set(postFieldContent, post.Content).
		Set(postFieldUpdatedAt, post.UpdatedAt).
		Where(sq.Eq{postFieldID: post.ID})

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
		return &forum.PostNotFoundError{ID: post.ID}
	}

	return nil
}

func (repo *PostRepository) List(ctx context.Context, params *forum.ListPostsParams) ([]*forum.Post, string, error) {
	q := sq.Select(append([]string{fieldRowID}, postColumns()...)...).
		From(tablePosts).
		Where(sq.Eq{postFieldThreadID: params.ThreadID})

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

	posts := make([]*forum.Post, 0)
	rowIDs := make([]int64, 0)

	for rows.Next() {
		var rowID int64

		post, err := scanPost(rows, &rowID)
		if err != nil {
			return nil, "", fmt.Errorf("scan post failed: %w", err)
		}

		posts = append(posts, post)
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

	posts, nextCursor := trimPage(posts, rowIDs, params.Limit)

	err = repo.loadRelations(ctx, posts)
	if err != nil {
		return nil, "", err
	}

	return posts, nextCursor, nil
}

func (repo *PostRepository) loadRelations(ctx context.Context, posts []*forum.Post) error {
	ids := make([]string, len(posts))
	for i, post := range posts {
		ids[i] = post.ID
	}

	seen, err := loadSets(ctx, repo.db, tablePostSeen, postRefFieldPostID, ids)
	if err != nil {
		return fmt.Errorf("failed to load seen by: %w", err)
	}

	votes, err := repo.loadVotes(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to load votes: %w", err)
	}

	for _, post := range posts {
		post.SeenBy = seen[post.ID]
		post.Votes = votes[post.ID]
	}

	return nil
}

func (repo *PostRepository) loadVotes(ctx context.Context, postIDs []string) (map[string][]forum.Vote, error) {
	res := make(map[string][]forum.Vote, len(postIDs))
	for _, id := range postIDs {
		res[id] = []forum.Vote{}
	}

	if len(postIDs) == 0 {
		return res, nil
	}

	q := sq.Select(postRefFieldPostID, fieldUserID, voteFieldValue).
		From(tablePostVotes).
		Where(sq.Eq{postRefFieldPostID: postIDs}).
		OrderBy(fieldRowID + " ASC").
		RunWith(repo.db)

	rows, err := q.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			slog.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	for rows.Next() {
		var (
			postID string
			vote   forum.Vote
		)

		err := rows.Scan(&postID, &vote.UserID, &vote.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}

		res[postID] = append(res[postID], vote)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return res, nil
}

// UpsertVote replaces the user's vote in place.
func (repo *PostRepository) UpsertVote(ctx context.Context, postID string, vote forum.Vote) error {
	q := sq.Insert(tablePostVotes).
		Columns(postRefFieldPostID, fieldUserID, voteFieldValue).
		Values(postID, vote.UserID, string(vote.Value)).
		Suffix("ON CONFLICT (post_id, user_id) DO UPDATE SET value = excluded.value")

	q = q.RunWith(repo.db)

	_, err := q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec upsert: %w", err)
	}

	return nil
}

func (repo *PostRepository) MarkSeen(ctx context.Context, postIDs []string, userID string) error {
	return addToSet(ctx, repo.db, tablePostSeen, postRefFieldPostID, tablePosts, postIDs, userID)
}
