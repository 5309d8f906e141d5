package sqlite3

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/nasermirzaei89/agora/notifications"
)

const tableNotifications = "notifications"

type NotificationRepository struct {
	db *sql.DB
}

var _ notifications.Repository = (*NotificationRepository)(nil)

func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

const (
	notificationFieldID          = "id"
	notificationFieldUserID      = "user_id"
	notificationFieldReferenceID = "reference_id"
	notificationFieldKind        = "kind"
	notificationFieldUnseenCount = "unseen_count"
	notificationFieldMessage     = "message"
	notificationFieldCreatedAt   = "created_at"
	notificationFieldUpdatedAt   = "updated_at"
)

func notificationColumns() []string {
	return []string{
		notificationFieldID,
		notificationFieldUserID,
		notificationFieldReferenceID,
		notificationFieldKind,
		notificationFieldUnseenCount,
		notificationFieldMessage,
		notificationFieldCreatedAt,
		notificationFieldUpdatedAt,
	}
}

func scanNotification(row sq.RowScanner, extra ...any) (*notifications.Notification, error) {
	var notification notifications.Notification

	dest := append(extra,
		&notification.ID,
		&notification.UserID,
		&notification.ReferenceID,
		&notification.Kind,
		&notification.UnseenCount,
		&notification.Message,
		&notification.CreatedAt,
		&notification.UpdatedAt,
	)

	err := row.Scan(dest...)
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	return &notification, nil
}

func (repo *NotificationRepository) Insert(ctx context.Context, notification *notifications.Notification) error {
	q := sq.Insert(tableNotifications).
		Columns(notificationColumns()...).
		Values(
			notification.ID,
			notification.UserID,
			notification.ReferenceID,
			string(notification.Kind),
			notification.UnseenCount,
			notification.Message,
			notification.CreatedAt,
			notification.UpdatedAt,
		)

	q = q.RunWith(repo.db)

	_, err := q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec insert: %w", err)
	}

	return nil
}

func (repo *NotificationRepository) Update(ctx context.Context, notification *notifications.Notification) error {
	q := sq.Update(tableNotifications).
		Set(notificationFieldUnseenCount, notification.UnseenCount).
		Set(notificationFieldMessage, notification.Message).
		Set(notificationFieldUpdatedAt, notification.UpdatedAt).
		Where(sq.Eq{notificationFieldID: notification.ID})

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
		return &notifications.NotificationNotFoundError{ID: notification.ID}
	}

	return nil
}

func (repo *NotificationRepository) Delete(ctx context.Context, notificationID string) error {
	q := sq.Delete(tableNotifications).Where(sq.Eq{notificationFieldID: notificationID})

	q = q.RunWith(repo.db)

	_, err := q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec delete: %w", err)
	}

	return nil
}

func (repo *NotificationRepository) Find(ctx context.Context, notificationID string) (*notifications.Notification, error) {
	q := sq.Select(notificationColumns()...).
		From(tableNotifications).
		Where(sq.Eq{notificationFieldID: notificationID})

	q = q.RunWith(repo.db)

	notification, err := scanNotification(q.QueryRowContext(ctx))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &notifications.NotificationNotFoundError{ID: notificationID}
		}

		return nil, fmt.Errorf("failed to scan notification: %w", err)
	}

	return notification, nil
}

func (repo *NotificationRepository) FindByUserReference(
	ctx context.Context,
	userID, referenceID string,
) (*notifications.Notification, error) {
	q := sq.Select(notificationColumns()...).
		From(tableNotifications).
		Where(sq.Eq{notificationFieldUserID: userID, notificationFieldReferenceID: referenceID})

	q = q.RunWith(repo.db)

	notification, err := scanNotification(q.QueryRowContext(ctx))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &notifications.NotificationByReferenceNotFoundError{UserID: userID, ReferenceID: referenceID}
		}

		return nil, fmt.Errorf("failed to scan notification: %w", err)
	}

	return notification, nil
}

func (repo *NotificationRepository) ListUserIDsByReference(ctx context.Context, referenceID string) ([]string, error) {
	q := sq.Select(notificationFieldUserID).
		From(tableNotifications).
		Where(sq.Eq{notificationFieldReferenceID: referenceID})

	userIDs, err := queryStrings(ctx, q, repo.db)
	if err != nil {
		return nil, fmt.Errorf("failed to query user ids: %w", err)
	}

	return userIDs, nil
}

func (repo *NotificationRepository) ListByUser(
	ctx context.Context,
	params *notifications.ListNotificationsParams,
) ([]*notifications.Notification, string, error) {
	q := sq.Select(append([]string{fieldRowID}, notificationColumns()...)...).
		From(tableNotifications).
		Where(sq.Eq{notificationFieldUserID: params.UserID})

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

	res := make([]*notifications.Notification, 0)
	rowIDs := make([]int64, 0)

	for rows.Next() {
		var rowID int64

		notification, err := scanNotification(rows, &rowID)
		if err != nil {
			return nil, "", fmt.Errorf("scan notification failed: %w", err)
		}

		res = append(res, notification)
		rowIDs = append(rowIDs, rowID)
	}

	err = rows.Err()
	if err != nil {
		return nil, "", fmt.Errorf("rows iteration failed: %w", err)
	}

	res, nextCursor := trimPage(res, rowIDs, params.Limit)

	return res, nextCursor, nil
}

func (repo *NotificationRepository) SumUnseen(ctx context.Context, userID string) (int, error) {
	q := sq.Select("COALESCE(SUM(" + notificationFieldUnseenCount + "), 0)").
		From(tableNotifications).
		Where(sq.Eq{notificationFieldUserID: userID})

	total, err := queryInt(ctx, q, repo.db)
	if err != nil {
		return 0, fmt.Errorf("failed to sum unseen counts: %w", err)
	}

	return total, nil
}
