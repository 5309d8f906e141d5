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
	tableThreads       = "threads"
	tableThreadMembers = "thread_members"
)

type ThreadRepository struct {
	db *sql.DB
}

var _ forum.ThreadRepository = (*ThreadRepository)(nil)

func NewThreadRepository(db *sql.DB) *ThreadRepository {
	return &ThreadRepository{db: db}
}

const (
	threadFieldID          = "id"
	threadFieldAuthorID    = "author_id"
	threadFieldTitle       = "title"
	threadFieldDescription = "description"
	threadFieldImageID     = "image_id"
	threadFieldCreatedAt   = "created_at"
	threadFieldUpdatedAt   = "updated_at"

	threadMemberFieldThreadID = "thread_id"
)

func threadColumns() []string {
	return []string{
		threadFieldID,
		threadFieldAuthorID,
		threadFieldTitle,
		threadFieldDescription,
		threadFieldImageID,
		threadFieldCreatedAt,
		threadFieldUpdatedAt,
	}
}

func scanThread(row sq.RowScanner, extra ...any) (*forum.Thread, error) {
	var thread forum.Thread

	dest := append(extra,
		&thread.ID,
		&thread.AuthorID,
		&thread.Title,
		&thread.Description,
		&thread.ImageID,
		&thread.CreatedAt,
		&thread.UpdatedAt,
	)

	err := row.Scan(dest...)
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	return &thread, nil
}

func (repo *ThreadRepository) Insert(ctx context.Context, thread *forum.Thread) error {
	q := sq.Insert(tableThreads).
		Columns(threadColumns()...).
		Values(
			thread.ID,
			thread.AuthorID,
			thread.Title,
			thread.Description,
			thread.ImageID,
			thread.CreatedAt,
			thread.UpdatedAt,
		)

	q = q.RunWith(repo.db)

	_, err := q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec insert: %w", err)
	}

	err = addMembersToSet(ctx, repo.db, tableThreadMembers, threadMemberFieldThreadID, thread.ID, thread.MemberIDs)
	if err != nil {
		return fmt.Errorf("failed to insert members: %w", err)
	}

	return nil
}

func (repo *ThreadRepository) Find(ctx context.Context, threadID string) (*forum.Thread, error) {
	q := sq.Select(threadColumns()...).
		From(tableThreads).
		Where(sq.Eq{threadFieldID: threadID})

	q = q.RunWith(repo.db)

	thread, err := scanThread(q.QueryRowContext(ctx))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &forum.ThreadNotFoundError{ID: threadID}
		}

		return nil, fmt.Errorf("failed to scan thread: %w", err)
	}

	thread.MemberIDs, err = loadSet(ctx, repo.db, tableThreadMembers, threadMemberFieldThreadID, thread.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load members: %w", err)
	}

	return thread, nil
}

func (repo *ThreadRepository) List(ctx context.Context, params *forum.ListThreadsParams) ([]*forum.Thread, string, error) {
	q, err := paginate(sq.Select(append([]string{fieldRowID}, threadColumns()...)...).From(tableThreads), params.Cursor, params.Limit)
	if err != nil {
		return nil, "", err
	}

	threads, rowIDs, err := repo.query(ctx, q)
	if err != nil {
		return nil, "", err
	}

	threads, nextCursor := trimPage(threads, rowIDs, params.Limit)

	err = repo.loadMembers(ctx, threads)
	if err != nil {
		return nil, "", err
	}

	return threads, nextCursor, nil
}

// ListAll returns every thread with its members.
func (repo *ThreadRepository) ListAll(ctx context.Context) ([]*forum.Thread, error) {
	q := sq.Select(append([]string{fieldRowID}, threadColumns()...)...).
		From(tableThreads).
		OrderBy(fieldRowID + " ASC")

	threads, _, err := repo.query(ctx, q)
	if err != nil {
		return nil, err
	}

	err = repo.loadMembers(ctx, threads)
	if err != nil {
		return nil, err
	}

	return threads, nil
}

func (repo *ThreadRepository) query(ctx context.Context, q sq.SelectBuilder) ([]*forum.Thread, []int64, error) {
	rows, err := q.RunWith(repo.db).QueryContext(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("query failed: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			slog.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	threads := make([]*forum.Thread, 0)
	rowIDs := make([]int64, 0)

	for rows.Next() {
		var rowID int64

		thread, err := scanThread(rows, &rowID)
		if err != nil {
			return nil, nil, fmt.Errorf("scan thread failed: %w", err)
		}

		threads = append(threads, thread)
		rowIDs = append(rowIDs, rowID)
	}

	err = rows.Err()
	if err != nil {
		return nil, nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return threads, rowIDs, nil
}

func (repo *ThreadRepository) loadMembers(ctx context.Context, threads []*forum.Thread) error {
	ids := make([]string, len(threads))
	for i, thread := range threads {
		ids[i] = thread.ID
	}

	members, err := loadSets(ctx, repo.db, tableThreadMembers, threadMemberFieldThreadID, ids)
	if err != nil {
		return fmt.Errorf("failed to load members: %w", err)
	}

	for _, thread := range threads {
		thread.MemberIDs = members[thread.ID]
	}

	return nil
}

func (repo *ThreadRepository) AddMember(ctx context.Context, threadID, userID string) error {
	return addMembersToSet(ctx, repo.db, tableThreadMembers, threadMemberFieldThreadID, threadID, []string{userID})
}

func (repo *ThreadRepository) RemoveMember(ctx context.Context, threadID, userID string) error {
	return removeFromSet(ctx, repo.db, tableThreadMembers, threadMemberFieldThreadID, threadID, userID)
}
