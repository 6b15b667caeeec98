package archive

import (
	"compress/gzip"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/rotisserie/eris"
	"github.com/ulikunitz/xz"
)

// Format is the compressed tarball flavour of an artifact archive
type Format string

const (
	TarGz Format = "tar.gz"
	TarXz Format = "tar.xz"
	TarBr Format = "tar.br"
)

// Formats lists all supported formats, the default first
var Formats = []Format{TarGz, TarXz, TarBr}

// ParseFormat accepts a format name with or without a leading dot
func ParseFormat(value string) (Format, error) {
	value = strings.TrimPrefix(strings.ToLower(value), ".")
	for _, f := range Formats {
		if string(f) == value {
			return f, nil
		}
	}

	return "", eris.Errorf("unsupported archive format %s (expected one of %s)", value, formatList())
}

func formatList() string {
	names := make([]string, len(Formats))
	for idx, f := range Formats {
		names[idx] = string(f)
	}
	return strings.Join(names, ", ")
}

// Ext returns the file extension (without the leading dot)
func (f Format) Ext() string {
	return string(f)
}

// DetectFormat determines the format from an archive's file name
func DetectFormat(filename string) (Format, error) {
	for _, f := range Formats {
		if strings.HasSuffix(filename, "."+string(f)) {
			return f, nil
		}
	}

	return "", eris.Errorf("can't determine the archive format of %s", filename)
}

func (f Format) compressor(w io.Writer) (io.WriteCloser, error) {
	switch f {
	case TarGz:
		return gzip.NewWriterLevel(w, gzip.BestCompression)
	case TarXz:
		return xz.NewWriter(w)
	case TarBr:
		return brotli.NewWriterLevel(w, brotli.BestCompression), nil
	}

	return nil, eris.Errorf("unsupported archive format %s", f)
}

func (f Format) decompressor(r io.Reader) (io.Reader, error) {
	switch f {
	case TarGz:
		return gzip.NewReader(r)
	case TarXz:
		return xz.NewReader(r)
	case TarBr:
		return brotli.NewReader(r), nil
	}

	return nil, eris.Errorf("unsupported archive format %s", f)
}
