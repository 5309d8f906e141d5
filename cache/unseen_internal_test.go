package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnseenKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "unseen:user-1:thread-1", unseenKey("user-1", "thread-1"))
	assert.Equal(t, "unseen:*:thread-1", unseenKey("*", "thread-1"))
}

func TestUnseenCache_Nil(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	var uc *UnseenCache

	uc.Set(ctx, "user-1", "thread-1", 3)

	_, ok := uc.Get(ctx, "user-1", "thread-1")
	assert.False(t, ok)

	uc.InvalidateReference(ctx, "thread-1")
	uc.InvalidateUser(ctx, "user-1")
}
