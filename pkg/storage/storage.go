// Package storage manages the folder that holds depot_tools and the ANGLE checkouts between runs.
package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/kivy/angle-builder/pkg/buildsys"
)

// FolderName is the name of the storage folder inside the user-supplied (or home) directory
const FolderName = ".angle-builder"

// Folder is the storage folder
type Folder struct {
	Path string
}

// New returns the storage folder inside userPath, or inside the home directory if userPath is empty
func New(userPath string) (*Folder, error) {
	base := userPath
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, eris.Wrap(err, "Failed to determine the home directory")
		}
		base = home
	}

	base, err := ExpandPath(base)
	if err != nil {
		return nil, err
	}

	base, err = filepath.Abs(base)
	if err != nil {
		return nil, eris.Wrapf(err, "Failed to resolve %s", base)
	}

	return &Folder{Path: filepath.Join(base, FolderName)}, nil
}

// Join returns a path inside the storage folder
func (f *Folder) Join(elem ...string) string {
	return filepath.Join(append([]string{f.Path}, elem...)...)
}

// Exists reports whether the folder has been created
func (f *Folder) Exists() (bool, error) {
	info, err := os.Stat(f.Path)
	if err != nil {
		if eris.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, eris.Wrapf(err, "Failed to check %s", f.Path)
	}

	if !info.IsDir() {
		return false, eris.Errorf("%s exists but is not a directory", f.Path)
	}
	return true, nil
}

// Ensure creates the folder if it doesn't exist yet
func (f *Folder) Ensure(ctx context.Context) error {
	exists, err := f.Exists()
	if err != nil {
		return err
	}

	if exists {
		buildsys.Log(ctx).Debug().Str("path", f.Path).Msgf("Build folder %s already exists", FolderName)
		return nil
	}

	if err := os.MkdirAll(f.Path, 0o770); err != nil {
		return eris.Wrapf(err, "Failed to create %s", f.Path)
	}

	buildsys.Log(ctx).Info().Str("path", f.Path).Msgf("Build folder %s created at %s", FolderName, f.Path)
	return nil
}

// Delete removes the folder including all checkouts. A missing folder is not an error.
func (f *Folder) Delete(ctx context.Context) error {
	exists, err := f.Exists()
	if err != nil {
		return err
	}

	if !exists {
		buildsys.Log(ctx).Info().Str("path", f.Path).Msgf("Build folder %s does not exist", FolderName)
		return nil
	}

	if err := os.RemoveAll(f.Path); err != nil {
		return eris.Wrapf(err, "Failed to delete %s", f.Path)
	}

	buildsys.Log(ctx).Info().Str("path", f.Path).Msgf("Build folder %s deleted from %s", FolderName, f.Path)
	return nil
}

// ExpandPath replaces a leading ~/ with the home directory
func ExpandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", eris.Wrap(err, "Failed to determine the home directory")
		}
		return filepath.Join(home, strings.TrimPrefix(path[1:], "/")), nil
	}

	return path, nil
}
