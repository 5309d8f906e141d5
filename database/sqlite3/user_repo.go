package sqlite3

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/nasermirzaei89/agora/authentication"
)

const tableUsers = "users"

type UserRepository struct {
	db *sql.DB
}

var _ authentication.UserRepository = (*UserRepository)(nil)

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const (
	userFieldID         = "id"
	userFieldExternalID = "external_id"
	userFieldName       = "name"
	userFieldRole       = "role"
	userFieldImageID    = "image_id"
	userFieldCreatedAt  = "created_at"
	userFieldUpdatedAt  = "updated_at"
)

func userColumns() []string {
	return []string{
		userFieldID,
		userFieldExternalID,
		userFieldName,
		userFieldRole,
		userFieldImageID,
		userFieldCreatedAt,
		userFieldUpdatedAt,
	}
}

func scanUser(row sq.RowScanner) (*authentication.User, error) {
	var user authentication.User

	err := row.Scan(
		&user.ID,
		&user.ExternalID,
		&user.Name,
		&user.Role,
		&user.ImageID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	return &user, nil
}

func (repo *UserRepository) Insert(ctx context.Context, user *authentication.User) error {
	q := sq.Insert(tableUsers).
		Columns(userColumns()...).
		Values(
			user.ID,
			user.ExternalID,
			user.Name,
			string(user.Role),
			user.ImageID,
			user.CreatedAt,
			user.UpdatedAt,
		)

	q = q.RunWith(repo.db)

	_, err := q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec insert: %w", err)
	}

	return nil
}

func (repo *UserRepository) Update(ctx context.Context, user *authentication.User) error {
	q := sq.Update(tableUsers).
		Set(userFieldName, user.Name).
		Set(userFieldRole, string(user.Role)).
		Set(userFieldImageID, user.ImageID).
		Set(userFieldUpdatedAt, user.UpdatedAt).
		Where(sq.Eq{userFieldID: user.ID})

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
		return &authentication.UserNotFoundError{ID: user.ID}
	}

	return nil
}

func (repo *UserRepository) Find(ctx context.Context, userID string) (*authentication.User, error) {
	q := sq.Select(userColumns()...).
		From(tableUsers).
		Where(sq.Eq{userFieldID: userID})

	q = q.RunWith(repo.db)

	row := q.QueryRowContext(ctx)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &authentication.UserNotFoundError{ID: userID}
		}

		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	return user, nil
}

func (repo *UserRepository) FindByExternalID(ctx context.Context, externalID string) (*authentication.User, error) {
	q := sq.Select(userColumns()...).
		From(tableUsers).
		Where(sq.Eq{userFieldExternalID: externalID})

	q = q.RunWith(repo.db)

	row := q.QueryRowContext(ctx)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &authentication.UserByExternalIDNotFoundError{ExternalID: externalID}
		}

		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	return user, nil
}

func (repo *UserRepository) DeleteByExternalID(ctx context.Context, externalID string) error {
	q := sq.Delete(tableUsers).Where(sq.Eq{userFieldExternalID: externalID})

	q = q.RunWith(repo.db)

	_, err := q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec delete: %w", err)
	}

	return nil
}

func (repo *UserRepository) ListExternalIDs(ctx context.Context) ([]string, error) {
	externalIDs, err := queryStrings(ctx, sq.Select(userFieldExternalID).From(tableUsers), repo.db)
	if err != nil {
		return nil, fmt.Errorf("failed to query external ids: %w", err)
	}

	return externalIDs, nil
}
