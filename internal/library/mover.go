package library

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

// ErrTooManyCollisions is returned when ResolveCollision exhausts its
// numeric suffix range (spec §4.9: "give up after 9999 and fail the job
// non-retryably").
var ErrTooManyCollisions = errors.New("library: too many filename collisions")

// ResolveCollision returns a filename that does not already exist in dir,
// appending "_1", "_2", ... before the extension when filename collides.
func ResolveCollision(dir, filename string) (string, error) {
	if !exists(filepath.Join(dir, filename)) {
		return filename, nil
	}

	ext := filepath.Ext(filename)
	base := filename[:len(filename)-len(ext)]

	for counter := 1; counter <= 9999; counter++ {
		candidate := fmt.Sprintf("%s_%d%s", base, counter, ext)
		if !exists(filepath.Join(dir, candidate)) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrTooManyCollisions, filename)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// MoveFile relocates source to target, creating target's parent directory
// as needed. It falls back to copy+remove when os.Rename fails across
// filesystems (spec §4.9 "cross-filesystem-safe semantics"), matching the
// teacher's preference for explicit fallback over a hard dependency on
// same-filesystem staging/library paths.
func MoveFile(source, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("library: create target dir: %w", err)
	}

	err := os.Rename(source, target)
	if err == nil {
		return nil
	}
	if !isCrossDevice(err) {
		return fmt.Errorf("library: rename %s -> %s: %w", source, target, err)
	}

	if err := copyFile(source, target); err != nil {
		return fmt.Errorf("library: copy %s -> %s: %w", source, target, err)
	}
	if err := os.Remove(source); err != nil {
		return fmt.Errorf("library: remove source after copy %s: %w", source, err)
	}
	return nil
}

func isCrossDevice(err error) bool {
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		return errors.Is(linkErr.Err, syscall.EXDEV)
	}
	return false
}

func copyFile(source, target string) error {
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// RemoveEmptyDirs recursively removes path and any now-empty ancestor
// directories it produced, stopping at (and not removing) stopAt. Mirrors
// original_source's post-import staging cleanup.
func RemoveEmptyDirs(path, stopAt string) {
	removeEmptyDirsRecursive(path)

	dir := filepath.Dir(path)
	for dir != stopAt && dir != "." && dir != string(filepath.Separator) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// removeEmptyDirsRecursive removes path if, after recursively clearing
// empty subdirectories, it has no remaining entries.
func removeEmptyDirsRecursive(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.IsDir() {
			removeEmptyDirsRecursive(filepath.Join(path, e.Name()))
		}
	}

	entries, err = os.ReadDir(path)
	if err != nil || len(entries) > 0 {
		return false
	}
	return os.Remove(path) == nil
}
