package swarm

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cellsim/pkg/types"
)

func TestAddressPool_InvalidRange(t *testing.T) {
	_, err := NewAddressPool(0, 10)
	assert.Error(t, err)

	_, err = NewAddressPool(20, 10)
	assert.Error(t, err)
}

func TestAddressPool_Allocate_Sequential(t *testing.T) {
	pool, err := NewAddressPool(10, 20)
	require.NoError(t, err)

	for _, want := range []types.Address{10, 11, 12} {
		got, err := pool.Allocate()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestAddressPool_Exhaustion(t *testing.T) {
	pool, err := NewAddressPool(1, 3)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := pool.Allocate()
		require.NoError(t, err)
	}

	_, err = pool.Allocate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "exhausted")
}

func TestAddressPool_Release_AllowsReallocation(t *testing.T) {
	pool, err := NewAddressPool(1, 3)
	require.NoError(t, err)

	_, err = pool.Allocate()
	require.NoError(t, err)
	second, err := pool.Allocate()
	require.NoError(t, err)
	_, err = pool.Allocate()
	require.NoError(t, err)

	pool.Release(second)

	again, err := pool.Allocate()
	require.NoError(t, err)
	assert.Equal(t, second, again)
}

func TestAddressPool_FullRange(t *testing.T) {
	pool, err := NewAddressPool(1, 255)
	require.NoError(t, err)
	assert.Equal(t, 255, pool.Available())

	last := types.InvalidAddress
	for i := 0; i < 255; i++ {
		last, err = pool.Allocate()
		require.NoError(t, err)
	}
	assert.Equal(t, types.Address(255), last)
	assert.Equal(t, 0, pool.Available())
}

func TestAddressPool_ConcurrentAccess(t *testing.T) {
	pool, err := NewAddressPool(1, 255)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan types.Address, 200)

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			addr, err := pool.Allocate()
			assert.NoError(t, err)
			results <- addr
		}()
	}

	wg.Wait()
	close(results)

	seen := make(map[types.Address]bool)
	for addr := range results {
		assert.False(t, seen[addr], "duplicate address allocated: %s", addr)
		seen[addr] = true
	}
	assert.Equal(t, 200, len(seen))
	assert.Equal(t, 200, pool.AllocatedCount())
}

func TestAddressPool_Release_Unknown(t *testing.T) {
	pool, err := NewAddressPool(1, 10)
	require.NoError(t, err)

	pool.Release(7)
	assert.Equal(t, 0, pool.AllocatedCount())
}
