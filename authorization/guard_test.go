package authorization_test

import (
	"testing"

	authcontext "github.com/nasermirzaei89/agora/authentication/context"
	"github.com/nasermirzaei89/agora/authorization"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckRole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		principal authorization.Principal
		required  authcontext.Role
		wantErr   bool
	}{
		{
			name:      "matching role",
			principal: authorization.Principal{ID: "u1", Role: authcontext.RoleApplicant},
			required:  authcontext.RoleApplicant,
		},
		{
			name:      "admin is not an applicant",
			principal: authorization.Principal{ID: "u1", Role: authcontext.RoleAdmin},
			required:  authcontext.RoleApplicant,
			wantErr:   true,
		},
		{
			name:      "missing role",
			principal: authorization.Principal{ID: "u1"},
			required:  authcontext.RoleCompany,
			wantErr:   true,
		},
		{
			name:      "anonymous",
			principal: authorization.Principal{ID: authcontext.Anonymous, Role: authcontext.RoleApplicant},
			required:  authcontext.RoleApplicant,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := authorization.CheckRole(tt.principal, tt.required)
			if !tt.wantErr {
				assert.NoError(t, err)

				return
			}

			var forbiddenErr *authorization.ForbiddenError
			assert.ErrorAs(t, err, &forbiddenErr)
		})
	}
}

func TestCheckThreadMember(t *testing.T) {
	t.Parallel()

	members := []string{"b", "c"}

	require.NoError(t, authorization.CheckThreadMember("a", members, "a"))
	require.NoError(t, authorization.CheckThreadMember("a", members, "b"))

	err := authorization.CheckThreadMember("a", members, "d")

	var forbiddenErr *authorization.ForbiddenError
	require.ErrorAs(t, err, &forbiddenErr)
	require.Equal(t, "not a member of this thread", forbiddenErr.Reason)

	require.Error(t, authorization.CheckThreadMember("", nil, ""))
}

func TestCheckOwnerOrAdmin(t *testing.T) {
	t.Parallel()

	require.NoError(t, authorization.CheckOwnerOrAdmin("a", authorization.Principal{ID: "a"}))
	require.NoError(t, authorization.CheckOwnerOrAdmin("a", authorization.Principal{ID: "x", Role: authcontext.RoleAdmin}))
	require.Error(t, authorization.CheckOwnerOrAdmin("a", authorization.Principal{ID: "x", Role: authcontext.RoleApplicant}))
	require.Error(t, authorization.CheckOwnership("a", "x"))
	require.NoError(t, authorization.CheckOwnership("a", "a"))
}
