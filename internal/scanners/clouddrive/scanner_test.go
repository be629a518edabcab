package clouddrive

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyforge/polyforge/internal/importprofile"
	"github.com/polyforge/polyforge/internal/types"
)

type fakeDriveClient struct {
	folders    map[string]*DriveFile
	listing    map[string][]DriveFile
	listCalls  map[string]int
	startToken string
	changes    []string
	newToken   string
}

func (f *fakeDriveClient) GetFolder(ctx context.Context, folderID string) (*DriveFile, error) {
	return f.folders[folderID], nil
}

func (f *fakeDriveClient) ListFolderPage(ctx context.Context, folderID, pageToken string) ([]DriveFile, string, error) {
	if f.listCalls == nil {
		f.listCalls = map[string]int{}
	}
	f.listCalls[folderID]++
	return f.listing[folderID], "", nil
}

func (f *fakeDriveClient) GetStartPageToken(ctx context.Context) (string, error) {
	return f.startToken, nil
}

func (f *fakeDriveClient) ListChanges(ctx context.Context, pageToken string) ([]string, string, error) {
	return f.changes, f.newToken, nil
}

func (f *fakeDriveClient) DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("fake-bytes-" + fileID)), nil
}

func configFor(ctx context.Context, profileID string) (types.ImportProfileConfig, error) {
	return importprofile.DefaultConfig(), nil
}

func TestScanListsAndDetectsDesigns(t *testing.T) {
	client := &fakeDriveClient{
		folders: map[string]*DriveFile{
			"root": {ID: "root", Name: "My Drive"},
		},
		listing: map[string][]DriveFile{
			"root": {
				{ID: "design1", Name: "Dragon", MimeType: folderMimeType, Parents: []string{"root"}},
			},
			"design1": {
				{ID: "f1", Name: "dragon.stl", Size: 1000, Parents: []string{"design1"}},
			},
		},
	}
	scanner := NewScanner(client, NewFolderCache(), configFor)

	designs, err := scanner.Scan(context.Background(), &types.ImportSource{DriveFolderID: "root"})
	require.NoError(t, err)
	require.Len(t, designs, 1)
	assert.Equal(t, "Dragon", designs[0].RelativePath)
}

func TestScanWithoutDriveFolderIDReturnsEmpty(t *testing.T) {
	scanner := NewScanner(&fakeDriveClient{}, NewFolderCache(), configFor)
	designs, err := scanner.Scan(context.Background(), &types.ImportSource{})
	require.NoError(t, err)
	assert.Empty(t, designs)
}

func TestListRecursiveCachedServesFromCacheOnSecondCall(t *testing.T) {
	client := &fakeDriveClient{
		folders: map[string]*DriveFile{"root": {ID: "root", Name: "Root"}},
		listing: map[string][]DriveFile{
			"root": {{ID: "design1", Name: "Dragon", MimeType: folderMimeType, Parents: []string{"root"}}},
		},
	}
	cache := NewFolderCache()
	scanner := NewScanner(client, cache, configFor)
	source := &types.ImportSource{DriveFolderID: "root"}

	_, err := scanner.Scan(context.Background(), source)
	require.NoError(t, err)
	_, err = scanner.Scan(context.Background(), source)
	require.NoError(t, err)

	assert.Equal(t, 1, client.listCalls["root"])
}

func TestSyncChangeTokenInitializesOnFirstUse(t *testing.T) {
	client := &fakeDriveClient{startToken: "tok1"}
	scanner := NewScanner(client, NewFolderCache(), configFor)
	source := &types.ImportSource{DriveFolderID: "root"}

	require.NoError(t, scanner.SyncChangeToken(context.Background(), source))
	assert.Equal(t, "tok1", source.DriveStartPageToken)
}

func TestSyncChangeTokenInvalidatesChangedFolders(t *testing.T) {
	client := &fakeDriveClient{changes: []string{"design1"}, newToken: "tok2"}
	cache := NewFolderCache()
	cache.Set("design1", []DriveFile{{ID: "stale"}})
	scanner := NewScanner(client, cache, configFor)
	source := &types.ImportSource{DriveFolderID: "root", DriveStartPageToken: "tok1"}

	require.NoError(t, scanner.SyncChangeToken(context.Background(), source))
	assert.Equal(t, "tok2", source.DriveStartPageToken)
	_, ok := cache.Get("design1")
	assert.False(t, ok)
}
