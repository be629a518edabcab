package importprofile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyforge/polyforge/internal/types"
)

func mustMkdir(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(path, 0o755))
}

func mustWriteFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

func TestDetectFlatDesign(t *testing.T) {
	root := t.TempDir()
	designDir := filepath.Join(root, "Cool Dragon (Supported)")
	mustMkdir(t, designDir)
	mustWriteFile(t, filepath.Join(designDir, "dragon.stl"), 100)
	mustWriteFile(t, filepath.Join(designDir, "dragon.jpg"), 10)

	d := NewDetector(builtinProfiles[0].config) // standard
	designs, err := d.Detect(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, designs, 1)
	assert.Equal(t, "Cool Dragon (Supported)", designs[0].RelativePath)
	assert.Equal(t, "Cool Dragon", designs[0].Title)
	assert.Len(t, designs[0].ModelFiles, 1)
	assert.Len(t, designs[0].PreviewFiles, 1)
}

func TestDetectDoesNotRecurseIntoDesign(t *testing.T) {
	root := t.TempDir()
	designDir := filepath.Join(root, "Dragon")
	nestedJunk := filepath.Join(designDir, "WIP", "Dragon Revision")
	mustMkdir(t, nestedJunk)
	mustWriteFile(t, filepath.Join(designDir, "dragon.stl"), 100)
	mustWriteFile(t, filepath.Join(nestedJunk, "dragon_v2.stl"), 100)

	d := NewDetector(builtinProfiles[0].config)
	designs, err := d.Detect(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, designs, 1, "must not produce a second design for the nested WIP folder")
	assert.Equal(t, "Dragon", designs[0].RelativePath)
}

func TestDetectNestedModelSubfolder(t *testing.T) {
	root := t.TempDir()
	designDir := filepath.Join(root, "Tank")
	stlDir := filepath.Join(designDir, "STLs")
	mustMkdir(t, stlDir)
	mustWriteFile(t, filepath.Join(stlDir, "hull.stl"), 50)
	mustWriteFile(t, filepath.Join(stlDir, "turret.stl"), 50)

	d := NewDetector(builtinProfiles[0].config)
	designs, err := d.Detect(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, designs, 1)
	assert.Len(t, designs[0].ModelFiles, 2)
}

func TestDetectIgnoresFolder(t *testing.T) {
	root := t.TempDir()
	ignored := filepath.Join(root, "Lychee")
	mustMkdir(t, ignored)
	mustWriteFile(t, filepath.Join(ignored, "project.lys"), 1)

	d := NewDetector(builtinProfiles[0].config)
	designs, err := d.Detect(context.Background(), root)
	require.NoError(t, err)
	assert.Empty(t, designs)
}

func TestDetectArchiveOnlyCountsAsDesign(t *testing.T) {
	root := t.TempDir()
	designDir := filepath.Join(root, "Bundle")
	mustMkdir(t, designDir)
	mustWriteFile(t, filepath.Join(designDir, "bundle.zip"), 500)

	d := NewDetector(builtinProfiles[0].config)
	designs, err := d.Detect(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, designs, 1)
	assert.Len(t, designs[0].ArchiveFiles, 1)
}

func TestDetectRequirePreviewFolder(t *testing.T) {
	root := t.TempDir()
	designDir := filepath.Join(root, "NoPreview")
	mustMkdir(t, designDir)
	mustWriteFile(t, filepath.Join(designDir, "part.stl"), 10)

	cfg := builtinProfiles[0].config
	cfg.Detection.RequirePreviewFolder = true
	d := NewDetector(cfg)
	designs, err := d.Detect(context.Background(), root)
	require.NoError(t, err)
	assert.Empty(t, designs, "a design without a preview folder must be rejected when required")
}

func TestDetectDesignDepth(t *testing.T) {
	root := t.TempDir()
	designDir := filepath.Join(root, "Tier1", "Dragon")
	mustMkdir(t, designDir)
	mustWriteFile(t, filepath.Join(designDir, "dragon.stl"), 100)

	cfg := builtinProfiles[1].config // tier-based, design_depth=2
	d := NewDetector(cfg)
	designs, err := d.Detect(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, designs, 1)
	assert.Equal(t, filepath.Join("Tier1", "Dragon"), designs[0].RelativePath)
}

func TestDetectDesignDepthEmptyFolderSkipped(t *testing.T) {
	root := t.TempDir()
	mustMkdir(t, filepath.Join(root, "Tier1", "EmptyDesign"))

	cfg := builtinProfiles[1].config
	d := NewDetector(cfg)
	designs, err := d.Detect(context.Background(), root)
	require.NoError(t, err)
	assert.Empty(t, designs)
}

func TestExtractTitleCaseTransform(t *testing.T) {
	d := NewDetector(types.ImportProfileConfig{
		Title: types.TitleConfig{
			Source:        types.TitleFromFolder,
			StripPatterns: []string{"(Supported)"},
			CaseTransform: types.CaseTitle,
		},
	})
	title := d.extractTitle("/scan/root/cool dragon (Supported)")
	assert.Equal(t, "Cool Dragon", title)
}

func TestExtractTitleFallsBackWhenEmptiedByStrip(t *testing.T) {
	d := NewDetector(types.ImportProfileConfig{
		Title: types.TitleConfig{
			Source:        types.TitleFromFolder,
			StripPatterns: []string{"Design"},
			CaseTransform: types.CaseNone,
		},
	})
	title := d.extractTitle("/scan/root/Design")
	assert.Equal(t, "Design", title, "stripping to empty must fall back to the raw name")
}

func TestExtractAutoTagsFromSubfolders(t *testing.T) {
	tags := ExtractAutoTags("/lib/Creator/2024-01 Batch/Dragon", types.AutoTagsConfig{
		FromSubfolders:  true,
		SubfolderLevels: 2,
		StripPatterns:   []string{`^\d{4}-\d{2}`},
	})
	assert.Contains(t, tags, "Creator")
	assert.Contains(t, tags, "Batch")
}

func TestExtractAutoTagsFromFilename(t *testing.T) {
	tags := ExtractAutoTags("/lib/Articulated Fox Statue", types.AutoTagsConfig{
		FromFilename: true,
	})
	assert.Contains(t, tags, "Articulated")
	assert.Contains(t, tags, "Fox")
	assert.Contains(t, tags, "Statue")
	assert.NotContains(t, tags, "the")
}

func TestFingerprintStableUnderFileOrder(t *testing.T) {
	a := []FileEntry{{RelPath: "b.stl", Size: 10}, {RelPath: "a.stl", Size: 20}}
	b := []FileEntry{{RelPath: "a.stl", Size: 20}, {RelPath: "b.stl", Size: 10}}
	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprintChangesWithSize(t *testing.T) {
	a := []FileEntry{{RelPath: "a.stl", Size: 10}}
	b := []FileEntry{{RelPath: "a.stl", Size: 20}}
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
}
