package clouddrive

import (
	"context"

	"github.com/polyforge/polyforge/internal/logger"
	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"
)

// BatchSize is the maximum number of uncached folders taken per listing
// round. Each folder in a round is still listed through its own
// ListFolderPage calls; folders are not combined into one API request.
const BatchSize = 100

// ConfigResolver resolves a source's profile id to its detection config.
type ConfigResolver func(ctx context.Context, profileID string) (types.ImportProfileConfig, error)

// Scanner lists a Google-Drive folder recursively with batching and a
// 5-minute metadata cache, then applies detection against the resulting
// virtual tree.
type Scanner struct {
	client    DriveClient
	cache     *FolderCache
	configFor ConfigResolver
}

// NewScanner builds a Scanner.
func NewScanner(client DriveClient, cache *FolderCache, configFor ConfigResolver) *Scanner {
	return &Scanner{client: client, cache: cache, configFor: configFor}
}

// Scan implements interfaces.Scanner for a GOOGLE_DRIVE ImportSource.
func (s *Scanner) Scan(ctx context.Context, source *types.ImportSource) ([]interfaces.DetectedDesign, error) {
	if source.DriveFolderID == "" {
		return nil, nil
	}

	root, err := s.client.GetFolder(ctx, source.DriveFolderID)
	if err != nil {
		return nil, err
	}

	files, err := s.listRecursiveCached(ctx, source.DriveFolderID)
	if err != nil {
		return nil, err
	}

	tree := BuildTree(source.DriveFolderID, root.Name, files)

	config, err := s.configFor(ctx, source.ProfileID)
	if err != nil {
		return nil, err
	}

	return DetectDesigns(tree, config), nil
}

// listRecursiveCached lists every file reachable from rootID, serving
// per-folder listings from the cache where fresh and batching uncached
// folders up to BatchSize per round (spec §4.12).
func (s *Scanner) listRecursiveCached(ctx context.Context, rootID string) ([]DriveFile, error) {
	var all []DriveFile
	frontier := []string{rootID}

	for len(frontier) > 0 {
		var uncached []string
		var nextFrontier []string
		for _, id := range frontier {
			if cached, ok := s.cache.Get(id); ok {
				all = append(all, cached...)
				for _, f := range cached {
					if f.IsFolder() {
						nextFrontier = append(nextFrontier, f.ID)
					}
				}
				continue
			}
			uncached = append(uncached, id)
		}

		for len(uncached) > 0 {
			batch := uncached
			if len(batch) > BatchSize {
				batch = batch[:BatchSize]
			}
			uncached = uncached[len(batch):]

			for _, folderID := range batch {
				files, err := s.listFolderAll(ctx, folderID)
				if err != nil {
					return nil, err
				}
				s.cache.Set(folderID, files)
				all = append(all, files...)
				for _, f := range files {
					if f.IsFolder() {
						nextFrontier = append(nextFrontier, f.ID)
					}
				}
			}
		}
		frontier = nextFrontier
	}
	return all, nil
}

func (s *Scanner) listFolderAll(ctx context.Context, folderID string) ([]DriveFile, error) {
	var all []DriveFile
	pageToken := ""
	for {
		files, next, err := s.client.ListFolderPage(ctx, folderID, pageToken)
		if err != nil {
			return nil, err
		}
		all = append(all, files...)
		if next == "" {
			break
		}
		pageToken = next
	}
	return all, nil
}

// SyncChangeToken implements spec §4.12's change-token sync: on first use,
// fetch and persist a start page token; on subsequent syncs, list changes
// since the token, invalidate the cache for touched folders, and persist
// the new token.
func (s *Scanner) SyncChangeToken(ctx context.Context, source *types.ImportSource) error {
	if source.DriveStartPageToken == "" {
		token, err := s.client.GetStartPageToken(ctx)
		if err != nil {
			return err
		}
		source.DriveStartPageToken = token
		logger.Info(ctx, "drive_change_token_initialized", "source_id", source.ID)
		return nil
	}

	changedFolderIDs, newToken, err := s.client.ListChanges(ctx, source.DriveStartPageToken)
	if err != nil {
		return err
	}
	for _, id := range changedFolderIDs {
		s.cache.Invalidate(id)
	}
	if newToken != "" {
		source.DriveStartPageToken = newToken
	}
	logger.Info(ctx, "drive_change_token_synced", "source_id", source.ID, "changed_folders", len(changedFolderIDs))
	return nil
}
