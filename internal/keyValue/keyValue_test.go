package keyValue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(zap.NewNop().Sugar(), time.Hour)
	defer m.Close()

	current := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return current }

	require.NoError(t, m.Set(ctx, "user_exists:1", "y", 15*time.Minute))

	got, err := m.Get(ctx, "user_exists:1")
	require.NoError(t, err)
	assert.Equal(t, "y", got)

	got, err = m.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, got)

	current = current.Add(16 * time.Minute)
	got, err = m.Get(ctx, "user_exists:1")
	require.NoError(t, err)
	assert.Empty(t, got)

	m.deleteExpired()
	m.mutex.RLock()
	assert.Empty(t, m.hashmap)
	m.mutex.RUnlock()
}

func TestMemoryCloseTwice(t *testing.T) {
	m := NewMemory(zap.NewNop().Sugar(), time.Millisecond)
	assert.NoError(t, m.Close())
	assert.NoError(t, m.Close())
}
