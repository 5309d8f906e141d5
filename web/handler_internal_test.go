package web

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nasermirzaei89/agora/authentication"
	"github.com/nasermirzaei89/agora/authorization"
	"github.com/nasermirzaei89/agora/database/sqlite3"
	"github.com/nasermirzaei89/agora/discuss"
	"github.com/nasermirzaei89/agora/forum"
	"github.com/nasermirzaei89/agora/sanitize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFromError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "forbidden",
			err:      &authorization.ForbiddenError{Reason: "nope"},
			expected: http.StatusForbidden,
		},
		{
			name:     "access denied",
			err:      &authorization.AccessDeniedError{Subject: "u", Domain: "discuss", Action: "createComment"},
			expected: http.StatusForbidden,
		},
		{
			name:     "not found",
			err:      &discuss.CommentNotFoundError{ID: "c1"},
			expected: http.StatusNotFound,
		},
		{
			name:     "invalid state",
			err:      &forum.AlreadyMemberError{ThreadID: "t1", UserID: "u1"},
			expected: http.StatusConflict,
		},
		{
			name:     "empty input",
			err:      &sanitize.EmptyInputError{Field: "text"},
			expected: http.StatusBadRequest,
		},
		{
			name:     "invalid cursor",
			err:      &sqlite3.InvalidCursorError{Cursor: "x"},
			expected: http.StatusBadRequest,
		},
		{
			name:     "invalid body",
			err:      &InvalidBodyError{Err: errors.New("unexpected EOF")},
			expected: http.StatusBadRequest,
		},
		{
			name:     "invalid token",
			err:      authentication.ErrInvalidToken,
			expected: http.StatusUnauthorized,
		},
		{
			name:     "wrapped not found",
			err:      fmt.Errorf("failed to get post: %w", &forum.PostNotFoundError{ID: "p1"}),
			expected: http.StatusNotFound,
		},
		{
			name:     "wrapped forbidden",
			err:      fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", &authorization.ForbiddenError{Reason: "x"})),
			expected: http.StatusForbidden,
		},
		{
			name:     "unknown",
			err:      errors.New("disk full"),
			expected: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, statusFromError(tt.err))
		})
	}
}

func TestVerifySignature(t *testing.T) {
	t.Parallel()

	secret := []byte("s3cret")
	body := []byte(`{"type":"user.deleted"}`)

	tests := []struct {
		name      string
		signature string
		expected  bool
	}{
		{
			name:      "valid",
			signature: sign(secret, body),
			expected:  true,
		},
		{
			name:      "empty",
			signature: "",
			expected:  false,
		},
		{
			name:      "missing prefix",
			signature: sign(secret, body)[len(signaturePrefix):],
			expected:  false,
		},
		{
			name:      "other secret",
			signature: sign([]byte("other"), body),
			expected:  false,
		},
		{
			name:      "other body",
			signature: sign(secret, []byte(`{}`)),
			expected:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, verifySignature(secret, body, tt.signature))
		})
	}
}

func TestQueryLimit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		query    string
		expected int
		wantErr  bool
	}{
		{name: "absent", query: "", expected: 0},
		{name: "number", query: "?limit=15", expected: 15},
		{name: "zero", query: "?limit=0", expected: 0},
		{name: "negative", query: "?limit=-1", wantErr: true},
		{name: "not a number", query: "?limit=ten", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodGet, "/threads"+tt.query, nil)

			limit, err := queryLimit(r)
			if tt.wantErr {
				var queryErr *InvalidQueryError
				require.ErrorAs(t, err, &queryErr)
				assert.Equal(t, "limit", queryErr.Name)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, limit)
		})
	}
}
