package authentication

import (
	"context"
	"fmt"
	"time"

	authcontext "github.com/nasermirzaei89/agora/authentication/context"
)

// User is the local record of an identity provider subject.
type User struct {
	ID         string
	ExternalID string
	Name       string
	Role       authcontext.Role
	ImageID    *string
	CreatedAt  time.Time
	UpdatedAt  *time.Time
}

type UserRepository interface {
	Insert(ctx context.Context, user *User) (err error)
	Update(ctx context.Context, user *User) (err error)
	Find(ctx context.Context, userID string) (user *User, err error)
	FindByExternalID(ctx context.Context, externalID string) (user *User, err error)
	DeleteByExternalID(ctx context.Context, externalID string) (err error)
	ListExternalIDs(ctx context.Context) (externalIDs []string, err error)
}

type UserNotFoundError struct {
	ID string
}

func (err UserNotFoundError) Error() string {
	return fmt.Sprintf("user with id %q not found", err.ID)
}

func (err UserNotFoundError) NotFound() bool { return true }

type UserByExternalIDNotFoundError struct {
	ExternalID string
}

func (err UserByExternalIDNotFoundError) Error() string {
	return fmt.Sprintf("user with external id %q not found", err.ExternalID)
}

func (err UserByExternalIDNotFoundError) NotFound() bool { return true }

type InvalidRoleError struct {
	Role authcontext.Role
}

func (err InvalidRoleError) Error() string {
	return fmt.Sprintf("invalid role: %q", err.Role)
}

func (err InvalidRoleError) InvalidState() bool { return true }

var ErrCurrentUserNotFound = fmt.Errorf("current user not found")
