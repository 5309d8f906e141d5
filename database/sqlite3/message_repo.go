package sqlite3

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/nasermirzaei89/agora/chat"
)

const (
	tableMessages      = "messages"
	tableMessageSeen   = "message_seen"
	tableMessageHidden = "message_hidden"
)

type MessageRepository struct {
	db *sql.DB
}

var _ chat.MessageRepository = (*MessageRepository)(nil)

func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

const (
	messageFieldID             = "id"
	messageFieldConversationID = "conversation_id"
	messageFieldAuthorID       = "author_id"
	messageFieldText           = "text"
	messageFieldDeletedAt      = "deleted_at"
	messageFieldCreatedAt      = "created_at"

	messageRefFieldMessageID = "message_id"
)

func messageColumns() []string {
	return []string{
		messageFieldID,
		messageFieldConversationID,
		messageFieldAuthorID,
		messageFieldText,
		messageFieldDeletedAt,
		messageFieldCreatedAt,
	}
}

func scanMessage(row sq.RowScanner, extra ...any) (*chat.Message, error) {
	var message chat.Message

	dest := append(extra,
		&message.ID,
		&message.ConversationID,
		&message.AuthorID,
		&message.Text,
		&message.DeletedAt,
		&message.CreatedAt,
	)

	err := row.Scan(dest...)
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	return &message, nil
}

// notHiddenFrom matches messages the user has not hidden.
func notHiddenFrom(userID string) sq.Sqlizer {
	return sq.Expr(
		"NOT EXISTS (SELECT 1 FROM "+tableMessageHidden+" h WHERE h.message_id = "+tableMessages+".id AND h.user_id = ?)",
		userID,
	)
}

func (repo *MessageRepository) Insert(ctx context.Context, message *chat.Message) error {
	q := sq.Insert(tableMessages).
		Columns(messageColumns()...).
		Values(
			message.ID,
			message.ConversationID,
			message.AuthorID,
			message.Text,
			message.DeletedAt,
			message.CreatedAt,
		)

	q = q.RunWith(repo.db)

	_, err := q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec insert: %w", err)
	}

	err = addMembersToSet(ctx, repo.db, tableMessageSeen, messageRefFieldMessageID, message.ID, message.SeenBy)
	if err != nil {
		return fmt.Errorf("failed to insert seen by: %w", err)
	}

	err = addMembersToSet(ctx, repo.db, tableMessageHidden, messageRefFieldMessageID, message.ID, message.InvisibleTo)
	if err != nil {
		return fmt.Errorf("failed to insert invisible to: %w", err)
	}

	return nil
}

func (repo *MessageRepository) Find(ctx context.Context, messageID string) (*chat.Message, error) {
	q := sq.Select(messageColumns()...).
		From(tableMessages).
		Where(sq.Eq{messageFieldID: messageID})

	q = q.RunWith(repo.db)

	message, err := scanMessage(q.QueryRowContext(ctx))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &chat.MessageNotFoundError{ID: messageID}
		}

		return nil, fmt.Errorf("failed to scan message: %w", err)
	}

	err = repo.loadRelations(ctx, []*chat.Message{message})
	if err != nil {
		return nil, err
	}

	return message, nil
}

func (repo *MessageRepository) List(ctx context.Context, params *chat.ListMessagesParams) ([]*chat.Message, string, error) {
	q := sq.Select(append([]string{fieldRowID}, messageColumns()...)...).
		From(tableMessages).
		Where(sq.Eq{messageFieldConversationID: params.ConversationID, messageFieldDeletedAt: nil}).
		Where(notHiddenFrom(params.ViewerID))

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

	messages := make([]*chat.Message, 0)
	rowIDs := make([]int64, 0)

	for rows.Next() {
		var rowID int64

		message, err := scanMessage(rows, &rowID)
		if err != nil {
			return nil, "", fmt.Errorf("scan message failed: %w", err)
		}

		messages = append(messages, message)
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

	messages, nextCursor := trimPage(messages, rowIDs, params.Limit)

	err = repo.loadRelations(ctx, messages)
	if err != nil {
		return nil, "", err
	}

	return messages, nextCursor, nil
}

func (repo *MessageRepository) loadRelations(ctx context.Context, messages []*chat.Message) error {
	ids := make([]string, len(messages))
	for i, message := range messages {
		ids[i] = message.ID
	}

	seen, err := loadSets(ctx, repo.db, tableMessageSeen, messageRefFieldMessageID, ids)
	if err != nil {
		return fmt.Errorf("failed to load seen by: %w", err)
	}

	hidden, err := loadSets(ctx, repo.db, tableMessageHidden, messageRefFieldMessageID, ids)
	if err != nil {
		return fmt.Errorf("failed to load invisible to: %w", err)
	}

	for _, message := range messages {
		message.SeenBy = seen[message.ID]
		message.InvisibleTo = hidden[message.ID]
	}

	return nil
}

func (repo *MessageRepository) MarkSeen(ctx context.Context, messageIDs []string, userID string) error {
	return addToSet(ctx, repo.db, tableMessageSeen, messageRefFieldMessageID, tableMessages, messageIDs, userID)
}

func (repo *MessageRepository) SoftDelete(ctx context.Context, messageID string, deletedAt time.Time) error {
	q := sq.Update(tableMessages).
		Set(messageFieldDeletedAt, deletedAt).
		Where(sq.Eq{messageFieldID: messageID})

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
		return &chat.MessageNotFoundError{ID: messageID}
	}

	return nil
}

func (repo *MessageRepository) Hide(ctx context.Context, messageID, userID string) error {
	return addToSet(ctx, repo.db, tableMessageHidden, messageRefFieldMessageID, tableMessages, []string{messageID}, userID)
}
