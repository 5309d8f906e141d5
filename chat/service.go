package chat

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/nasermirzaei89/agora/authorization"
	"github.com/nasermirzaei89/agora/sanitize"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Presence tracks which users currently hold an open session.
type Presence interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string) error
	IsOnline(ctx context.Context, userID string) (bool, error)
}

// UnseenInvalidator drops cached unseen counts affected by a write.
type UnseenInvalidator interface {
	InvalidateReference(ctx context.Context, referenceID string)
	InvalidateUser(ctx context.Context, userID string)
}

type Service struct {
	conversationRepo ConversationRepository
	messageRepo      MessageRepository
	presence         Presence
	invalidator      UnseenInvalidator
}

// NewService returns a chat service. presence and invalidator are optional.
func NewService(
	conversationRepo ConversationRepository,
	messageRepo MessageRepository,
	presence Presence,
	invalidator UnseenInvalidator,
) *Service {
	return &Service{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		presence:         presence,
		invalidator:      invalidator,
	}
}

func checkConversationMember(conversation *Conversation, userID string) error {
	if userID == "" || !slices.Contains(conversation.MemberIDs, userID) {
		return &authorization.ForbiddenError{Reason: "not a member of this conversation"}
	}

	return nil
}

// CreateConversation opens a conversation between the caller and memberIDs.
func (svc *Service) CreateConversation(ctx context.Context, memberIDs []string) (*Conversation, error) {
	principal := authorization.CurrentPrincipal(ctx)

	err := authorization.CheckAuthenticated(principal)
	if err != nil {
		return nil, fmt.Errorf("failed to check authentication: %w", err)
	}

	members := []string{principal.ID}

	for _, memberID := range memberIDs {
		if memberID != "" && !slices.Contains(members, memberID) {
			members = append(members, memberID)
		}
	}

	if len(members) < 2 {
		return nil, &TooFewMembersError{Count: len(members)}
	}

	conversation := &Conversation{
		ID:        uuid.NewString(),
		MemberIDs: members,
		CreatedAt: time.Now().UTC(),
	}

	err = svc.conversationRepo.Insert(ctx, conversation)
	if err != nil {
		return nil, fmt.Errorf("failed to insert conversation: %w", err)
	}

	return conversation, nil
}

func (svc *Service) GetConversation(ctx context.Context, conversationID string) (*Conversation, error) {
	principal := authorization.CurrentPrincipal(ctx)

	conversation, err := svc.conversationRepo.Find(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to find conversation: %w", err)
	}

	err = checkConversationMember(conversation, principal.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check conversation membership: %w", err)
	}

	return conversation, nil
}

func (svc *Service) SendMessage(ctx context.Context, conversationID, text string) (*Message, error) {
	conversation, err := svc.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	text, err = sanitize.Required("text", text)
	if err != nil {
		return nil, fmt.Errorf("failed to sanitize text: %w", err)
	}

	authorID := authorization.CurrentPrincipal(ctx).ID

	message := &Message{
		ID:             uuid.NewString(),
		ConversationID: conversation.ID,
		AuthorID:       authorID,
		Text:           text,
		SeenBy:         []string{authorID},
		InvisibleTo:    []string{},
		CreatedAt:      time.Now().UTC(),
	}

	err = svc.messageRepo.Insert(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}

	if svc.invalidator != nil {
		svc.invalidator.InvalidateReference(ctx, conversation.ID)
	}

	return message, nil
}

func (svc *Service) ListMessages(ctx context.Context, conversationID, cursor string, limit int) ([]*Message, string, error) {
	conversation, err := svc.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, "", err
	}

	if limit <= 0 {
		limit = defaultPageSize
	}

	messages, nextCursor, err := svc.messageRepo.List(ctx, &ListMessagesParams{
		ConversationID: conversation.ID,
		ViewerID:       authorization.CurrentPrincipal(ctx).ID,
		Cursor:         cursor,
		Limit:          min(limit, maxPageSize),
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to list messages: %w", err)
	}

	return messages, nextCursor, nil
}

func (svc *Service) MarkMessagesSeen(ctx context.Context, conversationID string, messageIDs []string) error {
	conversation, err := svc.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}

	if len(messageIDs) == 0 {
		return nil
	}

	userID := authorization.CurrentPrincipal(ctx).ID

	err = svc.messageRepo.MarkSeen(ctx, messageIDs, userID)
	if err != nil {
		return fmt.Errorf("failed to mark messages seen: %w", err)
	}

	if svc.invalidator != nil {
		svc.invalidator.InvalidateReference(ctx, conversation.ID)
	}

	return nil
}

// DeleteMessage soft deletes a message. Only its author may do so.
func (svc *Service) DeleteMessage(ctx context.Context, messageID string) error {
	principal := authorization.CurrentPrincipal(ctx)

	message, err := svc.messageRepo.Find(ctx, messageID)
	if err != nil {
		return fmt.Errorf("failed to find message: %w", err)
	}

	err = authorization.CheckOwnership(message.AuthorID, principal.ID)
	if err != nil {
		return fmt.Errorf("failed to check ownership: %w", err)
	}

	if message.DeletedAt != nil {
		return &MessageDeletedError{ID: messageID}
	}

	err = svc.messageRepo.SoftDelete(ctx, messageID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to soft delete message: %w", err)
	}

	if svc.invalidator != nil {
		svc.invalidator.InvalidateReference(ctx, message.ConversationID)
	}

	return nil
}

// HideMessage hides a message from the caller only.
func (svc *Service) HideMessage(ctx context.Context, messageID string) error {
	message, err := svc.messageRepo.Find(ctx, messageID)
	if err != nil {
		return fmt.Errorf("failed to find message: %w", err)
	}

	_, err = svc.GetConversation(ctx, message.ConversationID)
	if err != nil {
		return err
	}

	userID := authorization.CurrentPrincipal(ctx).ID

	err = svc.messageRepo.Hide(ctx, messageID, userID)
	if err != nil {
		return fmt.Errorf("failed to hide message: %w", err)
	}

	if svc.invalidator != nil {
		svc.invalidator.InvalidateUser(ctx, userID)
	}

	return nil
}

func (svc *Service) SetOnline(ctx context.Context) error {
	principal := authorization.CurrentPrincipal(ctx)

	err := authorization.CheckAuthenticated(principal)
	if err != nil {
		return fmt.Errorf("failed to check authentication: %w", err)
	}

	if svc.presence == nil {
		return nil
	}

	err = svc.presence.SetOnline(ctx, principal.ID)
	if err != nil {
		return fmt.Errorf("failed to set online: %w", err)
	}

	return nil
}

func (svc *Service) SetOffline(ctx context.Context) error {
	principal := authorization.CurrentPrincipal(ctx)

	err := authorization.CheckAuthenticated(principal)
	if err != nil {
		return fmt.Errorf("failed to check authentication: %w", err)
	}

	if svc.presence == nil {
		return nil
	}

	err = svc.presence.SetOffline(ctx, principal.ID)
	if err != nil {
		return fmt.Errorf("failed to set offline: %w", err)
	}

	return nil
}

// IsOnline reports false when no presence backend is configured.
func (svc *Service) IsOnline(ctx context.Context, userID string) (bool, error) {
	if svc.presence == nil {
		return false, nil
	}

	online, err := svc.presence.IsOnline(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to check presence: %w", err)
	}

	return online, nil
}
