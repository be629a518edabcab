package clouddrive

import (
	"sync"
	"time"
)

// CacheTTL is the file-metadata cache lifetime (spec §4.12: "5-minute TTL
// keyed by folder id").
const CacheTTL = 5 * time.Minute

type cacheEntry struct {
	files     []DriveFile
	expiresAt time.Time
}

// FolderCache caches a folder's file listing for CacheTTL, keyed by
// folder id.
type FolderCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

// NewFolderCache builds an empty FolderCache.
func NewFolderCache() *FolderCache {
	return &FolderCache{entries: make(map[string]cacheEntry), now: time.Now}
}

// Get returns the cached listing for folderID, or (nil, false) if absent
// or expired.
func (c *FolderCache) Get(folderID string) ([]DriveFile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[folderID]
	if !ok || c.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.files, true
}

// Set stores files for folderID with a fresh CacheTTL.
func (c *FolderCache) Set(folderID string, files []DriveFile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[folderID] = cacheEntry{files: files, expiresAt: c.now().Add(CacheTTL)}
}

// Invalidate drops folderID's cached listing, used when a change-token
// sync reports it changed.
func (c *FolderCache) Invalidate(folderID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, folderID)
}
