package manager

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homevault/homevault-go/internal/infrastructure/caching/interfaces"
	"github.com/homevault/homevault-go/internal/infrastructure/caching/types"
	"github.com/homevault/homevault-go/pkg/config"
)

func TestCheckMemoryPressureEvictsOverCeiling(t *testing.T) {
	withEvictionConfig(t, 0.5, 1, 0.1)
	oldMax := config.MaxCacheBytes
	config.MaxCacheBytes = 64
	t.Cleanup(func() { config.MaxCacheBytes = oldMax })

	m := newTestManager()
	store := m.CreateUserInterface("bob")
	require.NoError(t, store.Set("bob:notes:query:big1", string(make([]byte, 40)), interfaces.EntryOptions{Type: types.TypeQuery}))
	require.NoError(t, store.Set("bob:notes:query:big2", string(make([]byte, 40)), interfaces.EntryOptions{Type: types.TypeQuery}))
	require.Greater(t, m.GetStats().SizeBytes, config.MaxCacheBytes)

	m.checkMemoryPressure()
	assert.Equal(t, 1, m.GetStats().Entries)
}

func TestCheckMemoryPressureIdleUnderCeiling(t *testing.T) {
	withEvictionConfig(t, 0.2, 10, 0.1)
	oldMax, oldHeap := config.MaxCacheBytes, config.HeapThresholdBytes
	config.MaxCacheBytes = 1 << 30
	config.HeapThresholdBytes = 1 << 40
	t.Cleanup(func() {
		config.MaxCacheBytes = oldMax
		config.HeapThresholdBytes = oldHeap
	})

	m := newTestManager()
	store := m.CreateUserInterface("bob")
	require.NoError(t, store.Set("bob:notes:all", "v", interfaces.EntryOptions{Type: types.TypeAll}))

	m.checkMemoryPressure()
	assert.Equal(t, 1, m.GetStats().Entries)
}
