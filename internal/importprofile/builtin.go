package importprofile

import (
	"context"

	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"
)

// builtinDef is one shipped profile definition (spec §4.5: "standard,
// tier-based, flat-archive, supported/unsupported").
type builtinDef struct {
	id          string
	name        string
	description string
	config      types.ImportProfileConfig
}

var builtinProfiles = []builtinDef{
	{
		id:          "standard",
		name:        "Standard",
		description: "Default profile for most creators. Handles flat and nested structures with common folder names.",
		config: types.ImportProfileConfig{
			Detection: types.DetectionConfig{
				ModelExtensions:   []string{".stl", ".3mf", ".obj", ".step"},
				ArchiveExtensions: []string{".zip", ".rar", ".7z"},
				MinModelFiles:     1,
				Structure:         types.StructureAuto,
				ModelSubfolders:   []string{"STLs", "stls", "Models", "Supported", "Unsupported"},
			},
			Title: types.TitleConfig{
				Source:        types.TitleFromFolder,
				StripPatterns: []string{"(Supported)", "(Unsupported)", "(STLs)", "(Models)"},
				CaseTransform: types.CaseNone,
			},
			Preview: types.PreviewConfig{
				Folders:         []string{"Renders", "Images", "Preview", "Photos", "Pictures"},
				WildcardFolders: []string{"*Renders", "*Preview"},
				Extensions:      []string{".jpg", ".jpeg", ".png", ".webp"},
				IncludeRoot:     true,
			},
			Ignore: types.IgnoreConfig{
				Folders:    []string{"Lychee", "Chitubox", "Project Files", "Source", ".git"},
				Extensions: []string{".lys", ".ctb", ".gcode", ".blend"},
				Patterns:   []string{".DS_Store", "Thumbs.db"},
			},
			AutoTags: types.AutoTagsConfig{
				FromSubfolders:  true,
				SubfolderLevels: 2,
				FromFilename:    false,
			},
		},
	},
	{
		id:          "tier-based",
		name:        "Tier-Based",
		description: "For creators organizing designs under tier/category folders. Uses depth-based detection: root -> tier folder -> design folder.",
		config: types.ImportProfileConfig{
			Detection: types.DetectionConfig{
				ModelExtensions:      []string{".stl", ".3mf"},
				ArchiveExtensions:    []string{".zip", ".rar", ".7z"},
				MinModelFiles:        1,
				Structure:            types.StructureNested,
				ModelSubfolders:      []string{"STL", "STLs", "stl", "stls", "Supported", "Unsupported", "Pre-Supported", "Un-Supported", "Models"},
				RequirePreviewFolder: false,
				DesignDepth:          intPtr(2),
			},
			Title: types.TitleConfig{
				Source:        types.TitleFromFolder,
				StripPatterns: []string{"(STLs)", "(Pre-Supported)", "(Un-Supported)"},
				CaseTransform: types.CaseTitle,
			},
			Preview: types.PreviewConfig{
				Folders:         []string{"Renders", "4K Renders", "Preview Renders", "Images"},
				WildcardFolders: []string{"*Renders", "*Preview"},
				Extensions:      []string{".jpg", ".jpeg", ".png", ".webp"},
				IncludeRoot:     true,
			},
			Ignore: types.IgnoreConfig{
				Folders:    []string{"Lychee", "Chitubox", "Project Files", "Source", "Lychee 4K"},
				Extensions: []string{".lys", ".ctb", ".gcode", ".blend", ".zcode"},
				Patterns:   []string{".DS_Store", "Thumbs.db", "*.lys"},
			},
			AutoTags: types.AutoTagsConfig{
				FromSubfolders:  true,
				SubfolderLevels: 2,
				StripPatterns:   []string{"Tier$", `^\d{4}-\d{2}`},
				FromFilename:    false,
			},
		},
	},
	{
		id:          "flat-archive",
		name:        "Flat Archive",
		description: "Simple profile for flat folders or archives with all files at root level.",
		config: types.ImportProfileConfig{
			Detection: types.DetectionConfig{
				ModelExtensions:   []string{".stl", ".3mf", ".obj", ".step"},
				ArchiveExtensions: []string{".zip", ".rar", ".7z"},
				MinModelFiles:     1,
				Structure:         types.StructureFlat,
			},
			Title: types.TitleConfig{
				Source:        types.TitleFromFolder,
				CaseTransform: types.CaseNone,
			},
			Preview: types.PreviewConfig{
				Extensions:  []string{".jpg", ".jpeg", ".png", ".webp"},
				IncludeRoot: true,
			},
			Ignore: types.IgnoreConfig{
				Folders:    []string{".git"},
				Extensions: []string{".gcode"},
				Patterns:   []string{".DS_Store", "Thumbs.db"},
			},
			AutoTags: types.AutoTagsConfig{
				FromSubfolders: false,
				FromFilename:   true,
			},
		},
	},
	{
		id:          "supported-unsupported",
		name:        "Supported/Unsupported",
		description: "For creators who split models into Supported and Unsupported subfolders.",
		config: types.ImportProfileConfig{
			Detection: types.DetectionConfig{
				ModelExtensions:   []string{".stl", ".3mf"},
				ArchiveExtensions: []string{".zip", ".rar", ".7z"},
				MinModelFiles:     1,
				Structure:         types.StructureNested,
				ModelSubfolders:   []string{"Supported", "Unsupported", "Pre-Supported", "Un-Supported", "Presupported"},
			},
			Title: types.TitleConfig{
				Source:        types.TitleFromFolder,
				StripPatterns: []string{"- Supported", "- Unsupported", "(Supported)", "(Unsupported)"},
				CaseTransform: types.CaseNone,
			},
			Preview: types.PreviewConfig{
				Folders:         []string{"Renders", "Images", "Preview"},
				WildcardFolders: []string{"*Renders"},
				Extensions:      []string{".jpg", ".jpeg", ".png", ".webp"},
				IncludeRoot:     true,
			},
			Ignore: types.IgnoreConfig{
				Folders:    []string{"Lychee", "Chitubox", "Project Files"},
				Extensions: []string{".lys", ".ctb", ".gcode"},
				Patterns:   []string{".DS_Store", "Thumbs.db"},
			},
			AutoTags: types.AutoTagsConfig{
				FromSubfolders:  true,
				SubfolderLevels: 1,
				FromFilename:    false,
			},
		},
	},
}

func intPtr(v int) *int { return &v }

// SeedBuiltinProfiles creates or updates every built-in profile row to match
// the shipped config (spec §4.5: "on every startup, built-in rows are
// created or updated ... user profiles are untouched").
func SeedBuiltinProfiles(ctx context.Context, repo interfaces.ImportRepository) error {
	for _, def := range builtinProfiles {
		if err := repo.UpsertBuiltinProfile(ctx, &types.ImportProfile{
			ID:          def.id,
			Name:        def.name,
			Description: def.description,
			Config:      def.config,
		}); err != nil {
			return err
		}
	}
	return nil
}

// DefaultConfig returns the "standard" profile's config, used when an
// ImportSource has no profile_id set (spec §4.5).
func DefaultConfig() types.ImportProfileConfig {
	return builtinProfiles[0].config
}
