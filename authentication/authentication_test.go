package authentication_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/nasermirzaei89/agora/authentication"
	authcontext "github.com/nasermirzaei89/agora/authentication/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memUserRepo struct {
	mu      sync.Mutex
	users   map[string]*authentication.User
	lookups int
}

var _ authentication.UserRepository = (*memUserRepo)(nil)

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[string]*authentication.User{}}
}

func (r *memUserRepo) Insert(_ context.Context, user *authentication.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := *user
	r.users[user.ID] = &u

	return nil
}

func (r *memUserRepo) Update(ctx context.Context, user *authentication.User) error {
	return r.Insert(ctx, user)
}

func (r *memUserRepo) Find(_ context.Context, userID string) (*authentication.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return nil, &authentication.UserNotFoundError{ID: userID}
	}

	res := *u

	return &res, nil
}

func (r *memUserRepo) FindByExternalID(_ context.Context, externalID string) (*authentication.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lookups++

	for _, u := range r.users {
		if u.ExternalID == externalID {
			res := *u

			return &res, nil
		}
	}

	return nil, &authentication.UserByExternalIDNotFoundError{ExternalID: externalID}
}

func (r *memUserRepo) DeleteByExternalID(_ context.Context, externalID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, u := range r.users {
		if u.ExternalID == externalID {
			delete(r.users, id)
		}
	}

	return nil
}

func (r *memUserRepo) lookupCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.lookups
}

func (r *memUserRepo) ListExternalIDs(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := make([]string, 0, len(r.users))
	for _, u := range r.users {
		res = append(res, u.ExternalID)
	}

	return res, nil
}

type memGroups struct {
	mu     sync.Mutex
	groups map[string]map[string]bool
}

func newMemGroups() *memGroups {
	return &memGroups{groups: map[string]map[string]bool{}}
}

func (g *memGroups) AddToGroup(_ context.Context, sub string, groups ...string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.groups[sub] == nil {
		g.groups[sub] = map[string]bool{}
	}

	for _, group := range groups {
		if group != "" {
			g.groups[sub][group] = true
		}
	}

	return nil
}

func (g *memGroups) RemoveFromGroup(_ context.Context, sub string, groups ...string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, group := range groups {
		delete(g.groups[sub], group)
	}

	return nil
}

func (g *memGroups) has(sub, group string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.groups[sub][group]
}

var testSecret = []byte("test-secret")

func signToken(t *testing.T, sub string, role authcontext.Role) string {
	t.Helper()

	claims := authentication.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: role,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)

	return token
}

func newService(t *testing.T) (*authentication.Service, *memUserRepo, *memGroups) {
	t.Helper()

	verifier, err := authentication.NewHMACVerifier(testSecret)
	require.NoError(t, err)

	repo := newMemUserRepo()
	groups := newMemGroups()

	svc, err := authentication.NewService(repo, groups, verifier)
	require.NoError(t, err)

	return svc, repo, groups
}

func TestService_UpsertUser(t *testing.T) {
	ctx := context.Background()
	svc, _, groups := newService(t)

	user, err := svc.UpsertUser(ctx, authentication.UpsertUserRequest{
		ExternalID: "ext-1",
		Name:       "Ada",
		Role:       authcontext.RoleApplicant,
	})
	require.NoError(t, err)
	require.NotEmpty(t, user.ID)
	assert.True(t, groups.has(user.ID, authcontext.Authenticated))
	assert.True(t, groups.has(user.ID, "role:Applicant"))

	updated, err := svc.UpsertUser(ctx, authentication.UpsertUserRequest{
		ExternalID: "ext-1",
		Name:       "Ada L.",
		Role:       authcontext.RoleCompany,
	})
	require.NoError(t, err)
	assert.Equal(t, user.ID, updated.ID)
	assert.Equal(t, "Ada L.", updated.Name)
	assert.NotNil(t, updated.UpdatedAt)
	assert.False(t, groups.has(user.ID, "role:Applicant"))
	assert.True(t, groups.has(user.ID, "role:Company"))

	t.Run("invalid role", func(t *testing.T) {
		_, err := svc.UpsertUser(ctx, authentication.UpsertUserRequest{ExternalID: "ext-2", Role: "Pirate"})
		require.Error(t, err)

		invalidRoleErr := &authentication.InvalidRoleError{}
		require.ErrorAs(t, err, &invalidRoleErr)
	})
}

func TestService_Authenticate(t *testing.T) {
	ctx := context.Background()
	svc, _, groups := newService(t)

	user, err := svc.UpsertUser(ctx, authentication.UpsertUserRequest{ExternalID: "ext-1", Role: authcontext.RoleApplicant})
	require.NoError(t, err)

	err = svc.LoadBloomFilter(ctx, 100, 0.01)
	require.NoError(t, err)

	t.Run("valid token", func(t *testing.T) {
		got, err := svc.Authenticate(ctx, signToken(t, "ext-1", authcontext.RoleApplicant))
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("unknown subject", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, signToken(t, "ext-unknown", authcontext.RoleApplicant))
		require.Error(t, err)

		notFoundErr := &authentication.UserByExternalIDNotFoundError{}
		require.ErrorAs(t, err, &notFoundErr)
	})

	t.Run("bad signature", func(t *testing.T) {
		claims := jwt.RegisteredClaims{Subject: "ext-1"}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other"))
		require.NoError(t, err)

		_, err = svc.Authenticate(ctx, token)
		require.ErrorIs(t, err, authentication.ErrInvalidToken)
	})

	t.Run("role claim wins", func(t *testing.T) {
		got, err := svc.Authenticate(ctx, signToken(t, "ext-1", authcontext.RoleAdmin))
		require.NoError(t, err)
		assert.Equal(t, authcontext.RoleAdmin, got.Role)
		assert.True(t, groups.has(user.ID, "role:Admin"))
		assert.False(t, groups.has(user.ID, "role:Applicant"))
	})
}

func TestService_DeleteUser(t *testing.T) {
	ctx := context.Background()
	svc, repo, groups := newService(t)

	user, err := svc.UpsertUser(ctx, authentication.UpsertUserRequest{ExternalID: "ext-1", Role: authcontext.RoleCompany})
	require.NoError(t, err)

	err = svc.DeleteUser(ctx, "ext-1")
	require.NoError(t, err)

	_, err = repo.Find(ctx, user.ID)
	require.Error(t, err)
	assert.False(t, groups.has(user.ID, authcontext.Authenticated))

	_, err = svc.Authenticate(ctx, signToken(t, "ext-1", authcontext.RoleCompany))
	require.Error(t, err)
}

func TestService_DeleteUser_RebuildsBloomFilter(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newService(t)

	err := svc.LoadBloomFilter(ctx, 100, 0.01)
	require.NoError(t, err)

	_, err = svc.UpsertUser(ctx, authentication.UpsertUserRequest{ExternalID: "ext-1", Role: authcontext.RoleApplicant})
	require.NoError(t, err)

	_, err = svc.UpsertUser(ctx, authentication.UpsertUserRequest{ExternalID: "ext-2", Role: authcontext.RoleApplicant})
	require.NoError(t, err)

	err = svc.DeleteUser(ctx, "ext-1")
	require.NoError(t, err)

	lookups := repo.lookupCount()

	_, err = svc.Authenticate(ctx, signToken(t, "ext-1", authcontext.RoleApplicant))
	notFoundErr := &authentication.UserByExternalIDNotFoundError{}
	require.ErrorAs(t, err, &notFoundErr)
	assert.Equal(t, lookups, repo.lookupCount(), "deleted subject should be rejected before the repository")

	got, err := svc.Authenticate(ctx, signToken(t, "ext-2", authcontext.RoleApplicant))
	require.NoError(t, err)
	assert.Equal(t, "ext-2", got.ExternalID)
}

func TestService_GetCurrentUser(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	_, err := svc.GetCurrentUser(ctx)
	require.ErrorIs(t, err, authentication.ErrCurrentUserNotFound)

	user, err := svc.UpsertUser(ctx, authentication.UpsertUserRequest{ExternalID: "ext-1", Role: authcontext.RoleApplicant})
	require.NoError(t, err)

	got, err := svc.GetCurrentUser(authcontext.WithSubject(ctx, user.ID))
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}
