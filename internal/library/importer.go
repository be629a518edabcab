package library

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	polyerrors "github.com/polyforge/polyforge/internal/errors"
	"github.com/polyforge/polyforge/internal/logger"
	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"
)

// GlobalTemplateFunc resolves the global library template setting, layered
// over internal/settings so this package doesn't import it directly.
type GlobalTemplateFunc func(ctx context.Context) (string, error)

// Importer moves a design's staged files into the library (spec §4.9).
type Importer struct {
	designs        interfaces.DesignRepository
	channels       interfaces.ChannelRepository
	libraryRoot    string
	stagingRoot    string
	globalTemplate GlobalTemplateFunc
}

// NewImporter builds an Importer. globalTemplate may be nil, in which case
// only channel overrides and the built-in default apply.
func NewImporter(designs interfaces.DesignRepository, channels interfaces.ChannelRepository, libraryRoot, stagingRoot string, globalTemplate GlobalTemplateFunc) *Importer {
	return &Importer{designs: designs, channels: channels, libraryRoot: libraryRoot, stagingRoot: stagingRoot, globalTemplate: globalTemplate}
}

// Result is the outcome of ImportDesign, mirroring spec §4.9's progress
// reporting.
type Result struct {
	DesignID     string
	FilesImported int
	TotalBytes   int64
	LibraryPath  string
}

// ProgressFunc reports (filesDone, filesTotal) as files move.
type ProgressFunc func(current, total int)

// ImportDesign moves every DesignFile in staging/{design_id}/... to a
// template-rendered library path, resolves filename collisions, updates
// each DesignFile's relative_path/filename, cleans up the empty staging
// tree, and sets the Design's status to ORGANIZED.
func (imp *Importer) ImportDesign(ctx context.Context, designID string, progress ProgressFunc) (*Result, error) {
	design, err := imp.designs.GetWithRelations(ctx, designID)
	if err != nil {
		return nil, err
	}
	if design == nil {
		return nil, polyerrors.NewInput(fmt.Errorf("design %s not found", designID))
	}

	stagingDir := filepath.Join(imp.stagingRoot, designID)

	template, err := imp.resolveTemplate(ctx, designID)
	if err != nil {
		return nil, err
	}

	channelTitle, err := imp.preferredChannelTitle(ctx, designID)
	if err != nil {
		return nil, err
	}

	relPath := Render(template, TemplateVars{
		Designer: design.Designer,
		Title:    design.Title,
		Channel:  channelTitle,
	}, time.Now())
	libraryPath := filepath.Join(imp.libraryRoot, relPath)

	files := design.Files
	if len(files) == 0 {
		logger.Info(ctx, "library_no_files_to_import", "design_id", designID)
		return &Result{DesignID: designID, LibraryPath: libraryPath}, nil
	}

	var filesImported int
	var totalBytes int64

	for i, file := range files {
		sourcePath := filepath.Join(stagingDir, file.RelativePath)

		targetFilename, err := ResolveCollision(libraryPath, file.Filename)
		if err != nil {
			return nil, polyerrors.NewInput(err)
		}
		targetPath := filepath.Join(libraryPath, targetFilename)

		if err := MoveFile(sourcePath, targetPath); err != nil {
			return nil, polyerrors.NewTransient(err)
		}

		newRel, err := filepath.Rel(imp.libraryRoot, targetPath)
		if err != nil {
			newRel = targetPath
		}
		file.RelativePath = newRel
		file.Filename = targetFilename
		if err := imp.designs.UpdateFile(ctx, &files[i]); err != nil {
			return nil, err
		}

		filesImported++
		totalBytes += file.SizeBytes
		if progress != nil {
			progress(i+1, len(files))
		}
	}

	RemoveEmptyDirs(stagingDir, imp.stagingRoot)

	design.Status = types.DesignOrganized
	if err := imp.designs.Update(ctx, design); err != nil {
		return nil, err
	}

	logger.Info(ctx, "library_import_complete", "design_id", designID,
		"files_imported", filesImported, "total_bytes", totalBytes, "library_path", libraryPath)

	return &Result{
		DesignID:      designID,
		FilesImported: filesImported,
		TotalBytes:    totalBytes,
		LibraryPath:   libraryPath,
	}, nil
}

// resolveTemplate implements spec §4.9's precedence: channel override >
// global setting > DefaultTemplate.
func (imp *Importer) resolveTemplate(ctx context.Context, designID string) (string, error) {
	var channelOverride string
	if ch, err := imp.preferredChannel(ctx, designID); err != nil {
		return "", err
	} else if ch != nil {
		channelOverride = ch.TemplateOverride
	}

	var global string
	if imp.globalTemplate != nil {
		g, err := imp.globalTemplate(ctx)
		if err != nil {
			return "", err
		}
		global = g
	}

	return ResolveTemplate(channelOverride, global), nil
}

func (imp *Importer) preferredChannelTitle(ctx context.Context, designID string) (string, error) {
	ch, err := imp.preferredChannel(ctx, designID)
	if err != nil {
		return "", err
	}
	if ch == nil {
		return "", nil
	}
	return ch.Title, nil
}

// preferredChannel walks Design -> preferred DesignSource -> Message ->
// Channel, returning nil if the preferred source isn't message-backed
// (e.g. came from an ImportRecord instead).
func (imp *Importer) preferredChannel(ctx context.Context, designID string) (*types.Channel, error) {
	source, err := imp.designs.GetPreferredSource(ctx, designID)
	if err != nil {
		return nil, err
	}
	if source == nil || source.MessageID == nil {
		return nil, nil
	}

	msg, err := imp.channels.GetMessage(ctx, *source.MessageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, nil
	}

	return imp.channels.Get(ctx, msg.ChannelID)
}
