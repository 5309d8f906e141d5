package authentication

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	authcontext "github.com/nasermirzaei89/agora/authentication/context"
)

// GroupManager keeps authorization groups in sync with user roles.
type GroupManager interface {
	AddToGroup(ctx context.Context, sub string, group ...string) error
	RemoveFromGroup(ctx context.Context, sub string, group ...string) error
}

const defaultUserCacheSize = 1024

type Service struct {
	userRepo UserRepository
	groups   GroupManager
	verifier TokenVerifier
	users    *lru.Cache[string, *User]

	filterMu       sync.RWMutex
	filter         *subjectFilter
	filterCapacity uint
	filterFPRate   float64
}

func NewService(userRepo UserRepository, groups GroupManager, verifier TokenVerifier) (*Service, error) {
	users, err := lru.New[string, *User](defaultUserCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create user cache: %w", err)
	}

	return &Service{
		userRepo: userRepo,
		groups:   groups,
		verifier: verifier,
		users:    users,
	}, nil
}

// LoadBloomFilter preloads known external ids so that tokens of unknown
// subjects are rejected without a database round trip. The filter is rebuilt
// with the same sizing whenever a user is deleted.
func (svc *Service) LoadBloomFilter(ctx context.Context, minCapacity uint, falsePositiveRate float64) error {
	svc.filterMu.Lock()
	svc.filterCapacity = minCapacity
	svc.filterFPRate = falsePositiveRate
	svc.filterMu.Unlock()

	return svc.rebuildFilter(ctx)
}

func (svc *Service) rebuildFilter(ctx context.Context) error {
	externalIDs, err := svc.userRepo.ListExternalIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list external ids for bloom filter: %w", err)
	}

	svc.filterMu.Lock()
	defer svc.filterMu.Unlock()

	filter := newSubjectFilter(max(uint(len(externalIDs)), svc.filterCapacity), svc.filterFPRate)
	for _, externalID := range externalIDs {
		filter.add(externalID)
	}

	svc.filter = filter

	return nil
}

func (svc *Service) filterEnabled() bool {
	svc.filterMu.RLock()
	defer svc.filterMu.RUnlock()

	return svc.filter != nil
}

func (svc *Service) addToFilter(externalID string) {
	svc.filterMu.Lock()
	defer svc.filterMu.Unlock()

	if svc.filter != nil {
		svc.filter.add(externalID)
	}
}

// mayBeKnown reports false only for subjects that certainly have no user.
func (svc *Service) mayBeKnown(externalID string) bool {
	svc.filterMu.RLock()
	defer svc.filterMu.RUnlock()

	return svc.filter == nil || svc.filter.mayContain(externalID)
}

type UpsertUserRequest struct {
	ExternalID string
	Name       string
	Role       authcontext.Role
	ImageID    *string
}

// UpsertUser creates or updates the local record of an identity provider
// subject. It is driven by the identity provider webhook and by role changes
// observed in tokens.
func (svc *Service) UpsertUser(ctx context.Context, req UpsertUserRequest) (*User, error) {
	if req.ExternalID == "" {
		return nil, fmt.Errorf("external id must not be empty")
	}

	if !req.Role.IsValid() {
		return nil, &InvalidRoleError{Role: req.Role}
	}

	user, err := svc.userRepo.FindByExternalID(ctx, req.ExternalID)
	if err != nil {
		var notFoundErr *UserByExternalIDNotFoundError
		if !errors.As(err, &notFoundErr) {
			return nil, fmt.Errorf("failed to find user by external id: %w", err)
		}

		user = nil
	}

	timeNow := time.Now().UTC()

	if user == nil {
		user = &User{
			ID:         uuid.NewString(),
			ExternalID: req.ExternalID,
			Name:       req.Name,
			Role:       req.Role,
			ImageID:    req.ImageID,
			CreatedAt:  timeNow,
		}

		err = svc.userRepo.Insert(ctx, user)
		if err != nil {
			return nil, fmt.Errorf("failed to insert user: %w", err)
		}

		err = svc.groups.AddToGroup(ctx, user.ID, authcontext.Authenticated, user.Role.Group())
		if err != nil {
			return nil, fmt.Errorf("failed to add user to groups: %w", err)
		}

		svc.addToFilter(user.ExternalID)

		svc.users.Add(user.ExternalID, user)

		return user, nil
	}

	previousRole := user.Role

	user.Name = req.Name
	user.Role = req.Role
	user.ImageID = req.ImageID
	user.UpdatedAt = &timeNow

	err = svc.userRepo.Update(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	if previousRole != user.Role {
		err = svc.groups.RemoveFromGroup(ctx, user.ID, previousRole.Group())
		if err != nil {
			return nil, fmt.Errorf("failed to remove user from previous role group: %w", err)
		}

		err = svc.groups.AddToGroup(ctx, user.ID, user.Role.Group())
		if err != nil {
			return nil, fmt.Errorf("failed to add user to role group: %w", err)
		}
	}

	svc.users.Add(user.ExternalID, user)

	return user, nil
}

func (svc *Service) DeleteUser(ctx context.Context, externalID string) error {
	user, err := svc.userRepo.FindByExternalID(ctx, externalID)
	if err != nil {
		return fmt.Errorf("failed to find user by external id: %w", err)
	}

	err = svc.userRepo.DeleteByExternalID(ctx, externalID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	svc.users.Remove(externalID)

	err = svc.groups.RemoveFromGroup(ctx, user.ID, authcontext.Authenticated, user.Role.Group())
	if err != nil {
		return fmt.Errorf("failed to remove user from groups: %w", err)
	}

	if svc.filterEnabled() {
		err = svc.rebuildFilter(ctx)
		if err != nil {
			return fmt.Errorf("failed to rebuild bloom filter: %w", err)
		}
	}

	return nil
}

// Authenticate verifies a bearer token and resolves the local user it was
// issued for. A role claim that differs from the stored role wins and is
// written back.
func (svc *Service) Authenticate(ctx context.Context, token string) (*User, error) {
	claims, err := svc.verifier.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("failed to verify token: %w", err)
	}

	if !svc.mayBeKnown(claims.Subject) {
		return nil, &UserByExternalIDNotFoundError{ExternalID: claims.Subject}
	}

	user, err := svc.findByExternalID(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to find token subject: %w", err)
	}

	if user.Role != claims.Role {
		slog.InfoContext(ctx, "syncing role from token claim", "userId", user.ID, "from", user.Role, "to", claims.Role)

		user, err = svc.UpsertUser(ctx, UpsertUserRequest{
			ExternalID: user.ExternalID,
			Name:       user.Name,
			Role:       claims.Role,
			ImageID:    user.ImageID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to sync role: %w", err)
		}
	}

	return user, nil
}

func (svc *Service) findByExternalID(ctx context.Context, externalID string) (*User, error) {
	if user, ok := svc.users.Get(externalID); ok {
		return user, nil
	}

	user, err := svc.userRepo.FindByExternalID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by external id: %w", err)
	}

	svc.users.Add(externalID, user)

	return user, nil
}

func (svc *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	user, err := svc.userRepo.Find(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by id: %w", err)
	}

	return user, nil
}

func (svc *Service) GetCurrentUser(ctx context.Context) (*User, error) {
	sub := authcontext.GetSubject(ctx)
	if sub == authcontext.Anonymous {
		return nil, ErrCurrentUserNotFound
	}

	user, err := svc.GetUser(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}

	return user, nil
}
