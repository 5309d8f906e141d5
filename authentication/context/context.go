package authcontext

import "context"

const (
	// Anonymous is the guest user id.
	Anonymous = "system:anonymous"

	Authenticated   = "system:authenticated"
	Unauthenticated = "system:unauthenticated"
)

// Role is the role claim issued by the identity provider.
type Role string

const (
	RoleNone      Role = ""
	RoleAdmin     Role = "Admin"
	RoleApplicant Role = "Applicant"
	RoleCompany   Role = "Company"
)

func (role Role) IsValid() bool {
	switch role {
	case RoleNone, RoleAdmin, RoleApplicant, RoleCompany:
		return true
	default:
		return false
	}
}

// Group returns the authorization group a user holding the role belongs to.
func (role Role) Group() string {
	if role == RoleNone {
		return ""
	}

	return "role:" + string(role)
}

type contextKeySubject struct{}

type contextKeyRole struct{}

func GetSubject(ctx context.Context) string {
	userID, ok := ctx.Value(contextKeySubject{}).(string)
	if !ok {
		return Anonymous
	}

	return userID
}

func WithSubject(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKeySubject{}, userID)
}

func GetRole(ctx context.Context) Role {
	role, ok := ctx.Value(contextKeyRole{}).(Role)
	if !ok {
		return RoleNone
	}

	return role
}

// WithPrincipal stores both the subject and its role.
func WithPrincipal(ctx context.Context, userID string, role Role) context.Context {
	ctx = WithSubject(ctx, userID)

	return context.WithValue(ctx, contextKeyRole{}, role)
}
