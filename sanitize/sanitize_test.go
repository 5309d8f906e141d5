package sanitize_test

import (
	"testing"

	"github.com/nasermirzaei89/agora/sanitize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "hello", want: "hello"},
		{name: "tags", in: "<b>bold</b> move", want: "bold move"},
		{name: "script", in: "<script>alert(1)</script>hi", want: "hi"},
		{name: "entities", in: "Tom &amp; Jerry", want: "Tom & Jerry"},
		{name: "spaces", in: "  padded  ", want: "padded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, sanitize.PlainText(tt.in))
		})
	}
}

func TestRequired(t *testing.T) {
	t.Parallel()

	_, err := sanitize.Required("text", "<p> </p>")
	require.Error(t, err)

	emptyErr := &sanitize.EmptyInputError{}
	require.ErrorAs(t, err, &emptyErr)
	assert.Equal(t, "text", emptyErr.Field)

	got, err := sanitize.Required("text", "ok")
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}
