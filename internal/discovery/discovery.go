// Package discovery finds the input files of a pipeline stage under a data directory.
package discovery

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// JSONExtension is the extension of song metadata and event log files.
const JSONExtension = ".json"

// Sentinel errors for file discovery.
var (
	// ErrRootNotFound is returned when the data directory does not exist.
	ErrRootNotFound = errors.New("data directory not found")

	// ErrRootUnreadable is returned when the data directory or one of its
	// subdirectories cannot be read, or the root is not a directory.
	ErrRootUnreadable = errors.New("data directory unreadable")
)

// FindFiles recursively walks root and returns the absolute paths of all regular
// files whose extension is exactly ext. Symlinks to regular files are included;
// symlinked directories are not descended into.
//
// Paths are returned in lexical walk order, so the result is deterministic for a
// given directory snapshot. An empty tree yields an empty, non-nil slice.
func FindFiles(root, ext string) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRootUnreadable, root, err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRootNotFound, root)
		}

		return nil, fmt.Errorf("%w: %s: %w", ErrRootUnreadable, root, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrRootUnreadable, root)
	}

	files := []string{}

	err = filepath.WalkDir(absRoot, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("%w: %s: %w", ErrRootUnreadable, path, walkErr)
		}

		if filepath.Ext(entry.Name()) != ext || !isFile(path, entry) {
			return nil
		}

		files = append(files, path)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// isFile reports whether entry is a regular file or a symlink resolving to one.
func isFile(path string, entry fs.DirEntry) bool {
	if entry.Type().IsRegular() {
		return true
	}

	if entry.Type()&fs.ModeSymlink == 0 {
		return false
	}

	info, err := os.Stat(path)

	return err == nil && info.Mode().IsRegular()
}
