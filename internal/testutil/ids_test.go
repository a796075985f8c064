package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequentialIDs_Sequence(t *testing.T) {
	ids := NewSequentialIDs("ws")

	assert.Equal(t, "ws-1", ids.Next())
	assert.Equal(t, "ws-2", ids.Next())
	assert.Equal(t, 2, ids.Count())

	ids.Reset()
	assert.Equal(t, "ws-1", ids.Next())
}

func TestSequentialIDs_DefaultPrefix(t *testing.T) {
	assert.Equal(t, "conn-1", NewSequentialIDs("").Next())
}

func TestSequentialIDs_ThreadSafe(t *testing.T) {
	ids := NewSequentialIDs("")
	const numGoroutines = 20
	const callsPerGoroutine = 50

	var wg sync.WaitGroup
	seen := sync.Map{}
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				_, dup := seen.LoadOrStore(ids.Next(), true)
				assert.False(t, dup)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, numGoroutines*callsPerGoroutine, ids.Count())
}
