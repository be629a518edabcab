package bulkfolder

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyforge/polyforge/internal/importprofile"
	"github.com/polyforge/polyforge/internal/types"
)

func standardConfigFor(ctx context.Context, profileID string) (types.ImportProfileConfig, error) {
	return importprofile.DefaultConfig(), nil
}

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

func TestScanDetectsFlatDesignWithFingerprint(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Dragon", "dragon.stl"), 1000)

	source := &types.ImportSource{FolderPath: root}
	scanner := NewScanner(standardConfigFor)

	designs, err := scanner.Scan(context.Background(), source)
	require.NoError(t, err)
	require.Len(t, designs, 1)
	assert.Equal(t, "Dragon", designs[0].RelativePath)
	assert.Equal(t, int64(1000), designs[0].SizeBytes)
	assert.NotEmpty(t, designs[0].Fingerprint)
	assert.Len(t, designs[0].Fingerprint, 32)
}

func TestScanMissingFolderReturnsEmpty(t *testing.T) {
	scanner := NewScanner(standardConfigFor)
	designs, err := scanner.Scan(context.Background(), &types.ImportSource{FolderPath: "/does/not/exist"})
	require.NoError(t, err)
	assert.Empty(t, designs)
}

func TestScanFingerprintStableAcrossRescans(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Vase", "vase.stl"), 500)

	scanner := NewScanner(standardConfigFor)
	source := &types.ImportSource{FolderPath: root}

	first, err := scanner.Scan(context.Background(), source)
	require.NoError(t, err)
	second, err := scanner.Scan(context.Background(), source)
	require.NoError(t, err)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].Fingerprint, second[0].Fingerprint)
}

func TestScanFingerprintChangesWithNewFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Vase", "vase.stl"), 500)

	scanner := NewScanner(standardConfigFor)
	source := &types.ImportSource{FolderPath: root}

	before, err := scanner.Scan(context.Background(), source)
	require.NoError(t, err)

	writeFile(t, filepath.Join(root, "Vase", "extra.stl"), 200)

	after, err := scanner.Scan(context.Background(), source)
	require.NoError(t, err)

	require.Len(t, before, 1)
	require.Len(t, after, 1)
	assert.NotEqual(t, before[0].Fingerprint, after[0].Fingerprint)
}
