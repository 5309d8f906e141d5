package sqlite3

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/nasermirzaei89/agora/chat"
)

const (
	tableConversations       = "conversations"
	tableConversationMembers = "conversation_members"
)

type ConversationRepository struct {
	db *sql.DB
}

var _ chat.ConversationRepository = (*ConversationRepository)(nil)

func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

const (
	conversationFieldID        = "id"
	conversationFieldCreatedAt = "created_at"

	conversationMemberFieldConversationID = "conversation_id"
)

func (repo *ConversationRepository) Insert(ctx context.Context, conversation *chat.Conversation) error {
	q := sq.Insert(tableConversations).
		Columns(conversationFieldID, conversationFieldCreatedAt).
		Values(conversation.ID, conversation.CreatedAt)

	q = q.RunWith(repo.db)

	_, err := q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec insert: %w", err)
	}

	err = addMembersToSet(
		ctx,
		repo.db,
		tableConversationMembers,
		conversationMemberFieldConversationID,
		conversation.ID,
		conversation.MemberIDs,
	)
	if err != nil {
		return fmt.Errorf("failed to insert members: %w", err)
	}

	return nil
}

func (repo *ConversationRepository) Find(ctx context.Context, conversationID string) (*chat.Conversation, error) {
	var conversation chat.Conversation

	q := sq.Select(conversationFieldID, conversationFieldCreatedAt).
		From(tableConversations).
		Where(sq.Eq{conversationFieldID: conversationID})

	q = q.RunWith(repo.db)

	err := q.QueryRowContext(ctx).Scan(&conversation.ID, &conversation.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &chat.ConversationNotFoundError{ID: conversationID}
		}

		return nil, fmt.Errorf("failed to scan conversation: %w", err)
	}

	conversation.MemberIDs, err = loadSet(ctx, repo.db, tableConversationMembers, conversationMemberFieldConversationID, conversation.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load members: %w", err)
	}

	return &conversation, nil
}

// ListAll returns every conversation with its members.
func (repo *ConversationRepository) ListAll(ctx context.Context) ([]*chat.Conversation, error) {
	ids, err := queryStrings(ctx, sq.Select(conversationFieldID).From(tableConversations).OrderBy(fieldRowID+" ASC"), repo.db)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation ids: %w", err)
	}

	members, err := loadSets(ctx, repo.db, tableConversationMembers, conversationMemberFieldConversationID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load members: %w", err)
	}

	res := make([]*chat.Conversation, 0, len(ids))
	for _, id := range ids {
		res = append(res, &chat.Conversation{ID: id, MemberIDs: members[id]})
	}

	return res, nil
}
