package authorization

import (
	"context"
	"slices"

	authcontext "github.com/nasermirzaei89/agora/authentication/context"
)

// Principal is the caller of an operation as seen by the guards.
type Principal struct {
	ID   string
	Role authcontext.Role
}

func CurrentPrincipal(ctx context.Context) Principal {
	return Principal{
		ID:   authcontext.GetSubject(ctx),
		Role: authcontext.GetRole(ctx),
	}
}

func (p Principal) IsAnonymous() bool {
	return p.ID == "" || p.ID == authcontext.Anonymous
}

func (p Principal) IsAdmin() bool {
	return !p.IsAnonymous() && p.Role == authcontext.RoleAdmin
}

type ForbiddenError struct {
	Reason string
}

func (err ForbiddenError) Error() string {
	return "forbidden: " + err.Reason
}

func (err ForbiddenError) Forbidden() bool { return true }

// The guards below never fetch anything. Callers check existence first.

func CheckAuthenticated(p Principal) error {
	if p.IsAnonymous() {
		return &ForbiddenError{Reason: "authentication required"}
	}

	return nil
}

func CheckRole(p Principal, requiredRole authcontext.Role) error {
	if p.IsAnonymous() || p.Role != requiredRole {
		return &ForbiddenError{Reason: "requires role " + string(requiredRole)}
	}

	return nil
}

func CheckThreadMember(threadAuthorID string, memberIDs []string, userID string) error {
	if userID != "" && (userID == threadAuthorID || slices.Contains(memberIDs, userID)) {
		return nil
	}

	return &ForbiddenError{Reason: "not a member of this thread"}
}

func CheckOwnership(authorID, userID string) error {
	if userID == "" || authorID != userID {
		return &ForbiddenError{Reason: "not the owner of this resource"}
	}

	return nil
}

// CheckOwnerOrAdmin is the delete-class variant of CheckOwnership.
func CheckOwnerOrAdmin(authorID string, p Principal) error {
	if p.IsAdmin() {
		return nil
	}

	return CheckOwnership(authorID, p.ID)
}
