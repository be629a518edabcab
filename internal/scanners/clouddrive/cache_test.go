package clouddrive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFolderCacheMissThenHit(t *testing.T) {
	c := NewFolderCache()
	_, ok := c.Get("f1")
	assert.False(t, ok)

	c.Set("f1", []DriveFile{{ID: "a"}})
	files, ok := c.Get("f1")
	assert.True(t, ok)
	assert.Len(t, files, 1)
}

func TestFolderCacheExpiresAfterTTL(t *testing.T) {
	c := NewFolderCache()
	now := time.Now()
	c.now = func() time.Time { return now }
	c.Set("f1", []DriveFile{{ID: "a"}})

	c.now = func() time.Time { return now.Add(CacheTTL + time.Second) }
	_, ok := c.Get("f1")
	assert.False(t, ok)
}

func TestFolderCacheInvalidate(t *testing.T) {
	c := NewFolderCache()
	c.Set("f1", []DriveFile{{ID: "a"}})
	c.Invalidate("f1")
	_, ok := c.Get("f1")
	assert.False(t, ok)
}
