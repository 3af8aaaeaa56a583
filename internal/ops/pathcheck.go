package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/objective/internal/errors"
)

// PathCheckMode indicates whether the path check is for reading or writing.
type PathCheckMode int

const (
	PathCheckRead  PathCheckMode = iota // for import (read file)
	PathCheckWrite                      // for export (write file)
)

// ValidatePath checks an import/export path against exportDir.
// It rejects:
// 1. Path traversal (.. sequences)
// 2. Any extension other than .jsonl
// 3. Files not directly in exportDir (subdirectories included)
// 4. Symlinks, for the file and for its parent directory
//
// Requiring the file to sit directly in exportDir leaves no intermediate
// directory that could be swapped for a symlink between validation and open.
// O_NOFOLLOW covers the final component.
func ValidatePath(path string, mode PathCheckMode, exportDir string) error {
	if path == "" {
		return errors.NewValidation("path is required")
	}
	if exportDir == "" {
		return errors.NewConfig("no export directory is configured")
	}

	if containsTraversal(path) {
		return errors.NewValidation("path must not contain directory traversal (..)")
	}

	cleaned := filepath.Clean(path)
	if filepath.Ext(cleaned) != ".jsonl" {
		return errors.NewValidation("path must have .jsonl extension")
	}

	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return errors.NewValidation(fmt.Sprintf("invalid path: %v", err))
	}

	allowed, err := resolveDir(exportDir)
	if err != nil {
		return err
	}

	parentDir := filepath.Dir(absPath)
	if filepath.Clean(parentDir) != allowed {
		return errors.NewValidation(fmt.Sprintf("file must be directly in %s (no subdirectories)", allowed))
	}

	if info, err := os.Lstat(parentDir); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewValidation("parent directory must not be a symlink")
	}

	if mode == PathCheckRead {
		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			return errors.NewNotFound("file", path)
		}
	}

	if info, err := os.Lstat(absPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewValidation("path must not be a symlink")
	}

	return nil
}

// resolveExportPath places a bare file name inside exportDir. Anything with
// a directory component is returned unchanged for ValidatePath to judge.
func resolveExportPath(path, exportDir string) string {
	if path == "" || exportDir == "" || filepath.Base(path) != path {
		return path
	}
	return filepath.Join(exportDir, path)
}

// resolveDir returns dir as a clean absolute path, following a symlinked
// dir so a configured link matches its target.
func resolveDir(dir string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(dir))
	if err != nil {
		return "", errors.NewValidation(fmt.Sprintf("invalid export directory: %v", err))
	}
	if info, err := os.Lstat(abs); err == nil && info.Mode()&os.ModeSymlink != 0 {
		resolved, err := filepath.EvalSymlinks(abs)
		if err != nil {
			return "", errors.NewValidation(fmt.Sprintf("cannot resolve export directory: %v", err))
		}
		abs = resolved
	}
	return abs, nil
}

// containsTraversal checks if path contains ".." directory traversal.
func containsTraversal(path string) bool {
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if part == ".." {
			return true
		}
	}
	// Forward slashes count on every platform
	if filepath.Separator != '/' {
		for _, part := range strings.Split(path, "/") {
			if part == ".." {
				return true
			}
		}
	}
	return false
}
