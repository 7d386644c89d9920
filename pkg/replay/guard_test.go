package replay

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuard_DuplicateInsert(t *testing.T) {
	guard := NewGuard(4)

	assert.True(t, guard.Insert("1700000000"))
	assert.False(t, guard.Insert("1700000000"))
	assert.Equal(t, 1, guard.Len())
}

func TestGuard_EvictsOldestOnOverflow(t *testing.T) {
	const capacity = 4
	guard := NewGuard(capacity)

	for i := 0; i < capacity; i++ {
		assert.True(t, guard.Insert(fmt.Sprintf("token-%d", i)))
	}

	// One past capacity evicts token-0 and nothing else.
	assert.True(t, guard.Insert("token-4"))
	assert.Equal(t, capacity, guard.Len())

	// The evicted token is treated as new again; the rest are still known.
	assert.True(t, guard.Insert("token-0"))
	assert.False(t, guard.Insert("token-2"))
	assert.False(t, guard.Insert("token-4"))
}

func TestGuard_StrictFIFOUnderChurn(t *testing.T) {
	guard := NewGuard(3)

	for i := 0; i < 10; i++ {
		assert.True(t, guard.Insert(fmt.Sprintf("t%d", i)))
	}

	// Only the last three survive.
	assert.False(t, guard.Insert("t9"))
	assert.False(t, guard.Insert("t8"))
	assert.False(t, guard.Insert("t7"))
	assert.True(t, guard.Insert("t6"))
}

func TestGuard_NonPositiveCapacity(t *testing.T) {
	guard := NewGuard(0)

	assert.True(t, guard.Insert("a"))
	assert.False(t, guard.Insert("a"))
}
