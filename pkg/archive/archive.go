// Package archive packs collected build artifacts into compressed tarballs.
package archive

import (
	"archive/tar"
	"context"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
)

// Entry maps a file or directory on disk to its name inside the archive
type Entry struct {
	Name   string
	Source string
}

type item struct {
	name string
	path string
	info fs.FileInfo
}

// Every entry gets the same timestamp so that rebuilding identical inputs yields identical archives.
var epoch = time.Unix(0, 0).UTC()

func newProgressBar(length int64, desc string) *progressbar.ProgressBar {
	if os.Getenv("CI") == "true" {
		return progressbar.NewOptions64(length, progressbar.OptionSetVisibility(false))
	}

	return progressbar.DefaultBytes(length, desc)
}

func collect(entries []Entry) ([]item, int64, error) {
	var items []item
	var total int64

	for _, entry := range entries {
		root := filepath.Clean(entry.Source)
		err := filepath.WalkDir(root, func(itemPath string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			info, err := os.Lstat(itemPath)
			if err != nil {
				return err
			}

			rel, err := filepath.Rel(root, itemPath)
			if err != nil {
				return err
			}

			name := path.Join(entry.Name, filepath.ToSlash(rel))
			if info.Mode().IsRegular() {
				total += info.Size()
			}

			items = append(items, item{name: name, path: itemPath, info: info})
			return nil
		})
		if err != nil {
			return nil, 0, eris.Wrapf(err, "Failed to scan %s", entry.Source)
		}
	}

	return items, total, nil
}

func writeItem(tw *tar.Writer, it item, out io.Writer) error {
	link := ""
	if it.info.Mode()&fs.ModeSymlink != 0 {
		var err error
		link, err = os.Readlink(it.path)
		if err != nil {
			return eris.Wrapf(err, "Failed to read link %s", it.path)
		}
	}

	hdr, err := tar.FileInfoHeader(it.info, link)
	if err != nil {
		return eris.Wrapf(err, "Failed to build header for %s", it.path)
	}

	hdr.Name = it.name
	if it.info.IsDir() {
		hdr.Name += "/"
	}
	hdr.ModTime = epoch
	hdr.AccessTime = time.Time{}
	hdr.ChangeTime = time.Time{}
	hdr.Uid, hdr.Gid = 0, 0
	hdr.Uname, hdr.Gname = "", ""
	hdr.Format = tar.FormatPAX

	if err = tw.WriteHeader(hdr); err != nil {
		return eris.Wrapf(err, "Failed to write header for %s", it.name)
	}

	if !it.info.Mode().IsRegular() {
		return nil
	}

	f, err := os.Open(it.path)
	if err != nil {
		return eris.Wrapf(err, "Failed to open file %s", it.path)
	}
	defer f.Close()

	if _, err = io.Copy(out, f); err != nil {
		return eris.Wrapf(err, "Failed to pack file %s", it.path)
	}

	return nil
}

// Write packs entries into dest. The archive is assembled in a temporary file next to dest and only
// renamed into place once it's complete; dest's folder is created if necessary.
func Write(ctx context.Context, dest string, format Format, entries []Entry) error {
	items, total, err := collect(entries)
	if err != nil {
		return err
	}

	destDir := filepath.Dir(dest)
	if err = os.MkdirAll(destDir, 0o770); err != nil {
		return eris.Wrapf(err, "Failed to create %s", destDir)
	}

	tmp, err := os.CreateTemp(destDir, "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return eris.Wrapf(err, "Failed to create a temporary file in %s", destDir)
	}

	done := false
	defer func() {
		if !done {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	comp, err := format.compressor(tmp)
	if err != nil {
		return err
	}

	bar := newProgressBar(total, "Packing "+filepath.Base(dest))
	tw := tar.NewWriter(comp)
	out := io.MultiWriter(tw, bar)

	for _, it := range items {
		if err = ctx.Err(); err != nil {
			return err
		}

		if err = writeItem(tw, it, out); err != nil {
			return err
		}
	}

	if err = tw.Close(); err != nil {
		return eris.Wrap(err, "Failed to finish tar stream")
	}
	if err = comp.Close(); err != nil {
		return eris.Wrapf(err, "Failed to finish %s stream", format)
	}
	bar.Finish()

	if err = tmp.Close(); err != nil {
		return eris.Wrapf(err, "Failed to close %s", tmp.Name())
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return eris.Wrapf(err, "Failed to set permissions on %s", tmp.Name())
	}
	if err = os.Rename(tmp.Name(), dest); err != nil {
		return eris.Wrapf(err, "Failed to move archive to %s", dest)
	}

	done = true
	return nil
}

// List returns the entry names of an archive written by Write
func List(filename string) ([]string, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filename)
	if err != nil {
		return nil, eris.Wrapf(err, "Failed to open %s", filename)
	}
	defer f.Close()

	reader, err := format.decompressor(f)
	if err != nil {
		return nil, eris.Wrapf(err, "Failed to read %s", filename)
	}

	var names []string
	tr := tar.NewReader(reader)
	for {
		hdr, err := tr.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, eris.Wrapf(err, "Failed to read archive entry in %s", filename)
		}

		names = append(names, hdr.Name)
	}

	return names, nil
}
