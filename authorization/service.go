package authorization

import (
	"context"
	"fmt"
)

type Service struct {
	authzProvider AuthorizationProvider
}

type AuthorizationProvider interface {
	CheckAccess(ctx context.Context, req CheckAccessRequest) (res *CheckAccessResponse, err error)
	AddToGroup(ctx context.Context, sub string, groups ...string) (err error)
	RemoveFromGroup(ctx context.Context, sub string, groups ...string) (err error)
}

func NewService(authzProvider AuthorizationProvider) (*Service, error) {
	if authzProvider == nil {
		return nil, fmt.Errorf("authorization provider must not be nil")
	}

	return &Service{
		authzProvider: authzProvider,
	}, nil
}

type CheckAccessRequest struct {
	Subject string
	Domain  string
	Object  string
	Action  string
}

type CheckAccessResponse struct {
	// Allowed is required. True if the action would be allowed, false otherwise.
	Allowed bool
	// Denied is optional. True if the action would be denied, otherwise false.
	// If both allowed is false and denied is false, then the authorizer has no opinion on whether to authorize the
	// action.
	// Denied may not be true if Allowed is true.
	Denied bool
	// Reason is optional. It indicates why a request was allowed or denied.
	Reason string
}

type AccessDeniedError struct {
	Subject string
	Domain  string
	Object  string
	Action  string
}

func (err AccessDeniedError) Error() string {
	if err.Object != "" {
		return fmt.Sprintf(
			"access denied for subject '%s' and domain '%s' and object '%s' and action '%s'",
			err.Subject,
			err.Domain,
			err.Object,
			err.Action,
		)
	}

	return fmt.Sprintf(
		"access denied for subject '%s' and domain '%s' and action '%s'",
		err.Subject,
		err.Domain,
		err.Action,
	)
}

func (err AccessDeniedError) Forbidden() bool { return true }

func (svc *Service) CheckAccess(ctx context.Context, req CheckAccessRequest) (*CheckAccessResponse, error) {
	res, err := svc.authzProvider.CheckAccess(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to check permission: %w", err)
	}

	return res, nil
}

func (svc *Service) AddToGroup(ctx context.Context, sub string, groups ...string) error {
	err := svc.authzProvider.AddToGroup(ctx, sub, groups...)
	if err != nil {
		return fmt.Errorf("failed to add grouping policies: %w", err)
	}

	return nil
}

func (svc *Service) RemoveFromGroup(ctx context.Context, sub string, groups ...string) error {
	err := svc.authzProvider.RemoveFromGroup(ctx, sub, groups...)
	if err != nil {
		return fmt.Errorf("failed to remove grouping policies: %w", err)
	}

	return nil
}
