package executor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDedupMarksFirstSeen(t *testing.T) {
	d := NewDedup(time.Minute)

	assert.False(t, d.IsDuplicate("sig-1"))
	assert.True(t, d.IsDuplicate("sig-1"))
	assert.False(t, d.IsDuplicate("sig-2"))
}

func TestDedupExpiresAfterTTL(t *testing.T) {
	d := NewDedup(time.Millisecond)

	assert.False(t, d.IsDuplicate("sig-1"))
	time.Sleep(5 * time.Millisecond)
	assert.False(t, d.IsDuplicate("sig-1"))
}

func TestDedupCleanupDropsStaleEntries(t *testing.T) {
	d := NewDedup(time.Millisecond)

	d.IsDuplicate("sig-1")
	d.IsDuplicate("sig-2")
	time.Sleep(5 * time.Millisecond)
	d.Cleanup()

	d.mu.Lock()
	defer d.mu.Unlock()
	assert.Empty(t, d.seen)
}
