package angle

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

func recreateDir(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return eris.Wrapf(err, "Failed to remove %s", path)
	}
	if err := os.MkdirAll(path, 0o770); err != nil {
		return eris.Wrapf(err, "Failed to create %s", path)
	}
	return nil
}

// copyTree copies the directory src to dest, leaving out the entries named in skip (relative to src)
func copyTree(src, dest string, skip ...string) error {
	skipped := make(map[string]bool, len(skip))
	for _, item := range skip {
		skipped[filepath.Clean(item)] = true
	}

	return filepath.WalkDir(src, func(item string, d fs.DirEntry, err error) error {
		if err != nil {
			return eris.Wrapf(err, "Failed to read %s", item)
		}

		rel, err := filepath.Rel(src, item)
		if err != nil {
			return err
		}
		if skipped[rel] {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		target := filepath.Join(dest, rel)
		info, err := d.Info()
		if err != nil {
			return eris.Wrapf(err, "Failed to stat %s", item)
		}

		switch {
		case info.Mode()&fs.ModeSymlink != 0:
			link, err := os.Readlink(item)
			if err != nil {
				return eris.Wrapf(err, "Failed to read link %s", item)
			}
			if err = os.Symlink(link, target); err != nil {
				return eris.Wrapf(err, "Failed to create symlink %s pointing to %s", target, link)
			}
		case d.IsDir():
			if err = os.MkdirAll(target, info.Mode().Perm()|0o700); err != nil {
				return eris.Wrapf(err, "Failed to create directory %s", target)
			}
		default:
			if err = copyFile(item, target, info.Mode().Perm()); err != nil {
				return err
			}
		}

		return nil
	})
}

func copyFile(src, dest string, mode fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return eris.Wrapf(err, "Failed to open file %s", src)
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return eris.Wrapf(err, "Failed to create file %s", dest)
	}

	if _, err = io.Copy(out, in); err != nil {
		out.Close()
		return eris.Wrapf(err, "Failed to copy %s to %s", src, dest)
	}

	return eris.Wrapf(out.Close(), "Failed to write %s", dest)
}
