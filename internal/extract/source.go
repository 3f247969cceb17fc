package extract

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Source opens the extract for reading. Each Open starts from the first byte;
// the iterator reopens a source to recover from a stalled read.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Compression and encoding names accepted by FileOptions.
const (
	CompressionAuto = "auto"
	CompressionNone = "none"
	CompressionGzip = "gzip"
	CompressionZstd = "zstd"

	EncodingCP1252 = "cp1252"
	EncodingUTF8   = "utf-8"
)

// FileOptions configures a local extract.
type FileOptions struct {
	Compression string // auto (by extension), none, gzip, zstd
	Encoding    string // cp1252 (default) or utf-8
}

// File is a local extract, optionally compressed, in a legacy or UTF-8
// encoding. Open yields UTF-8; bytes invalid in the source encoding decode to
// U+FFFD.
type File struct {
	path        string
	compression string
	decoder     func() *encoding.Decoder
}

// NewFile returns a Source bound to path.
func NewFile(path string, opt FileOptions) (*File, error) {
	comp := strings.ToLower(strings.TrimSpace(opt.Compression))
	switch comp {
	case "", CompressionAuto:
		comp = compressionFor(path)
	case CompressionNone, CompressionGzip, CompressionZstd:
	default:
		return nil, fmt.Errorf("extract: unsupported compression %q", opt.Compression)
	}

	var dec func() *encoding.Decoder
	switch strings.ToLower(strings.TrimSpace(opt.Encoding)) {
	case "", EncodingCP1252, "windows-1252", "latin1":
		dec = charmap.Windows1252.NewDecoder
	case EncodingUTF8, "utf8":
		dec = unicode.UTF8.NewDecoder
	default:
		return nil, fmt.Errorf("extract: unsupported encoding %q", opt.Encoding)
	}
	return &File{path: path, compression: comp, decoder: dec}, nil
}

func compressionFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return CompressionGzip
	case ".zst", ".zstd":
		return CompressionZstd
	}
	return CompressionNone
}

// Path returns the file path.
func (f *File) Path() string { return f.path }

// Open opens the file and layers decompression and decoding over it.
//
// If the context is already done, Open returns the context error without
// touching the filesystem. Filesystem errors are wrapped with the path and
// still satisfy errors.Is(err, os.ErrNotExist).
func (f *File) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	fh, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.path, err)
	}

	rc := &layered{closers: []io.Closer{fh}}
	var r io.Reader = fh
	switch f.compression {
	case CompressionGzip:
		zr, err := gzip.NewReader(fh)
		if err != nil {
			_ = fh.Close()
			return nil, fmt.Errorf("gzip %s: %w", f.path, err)
		}
		rc.closers = append(rc.closers, zr)
		r = zr
	case CompressionZstd:
		zr, err := zstd.NewReader(fh)
		if err != nil {
			_ = fh.Close()
			return nil, fmt.Errorf("zstd %s: %w", f.path, err)
		}
		zc := zr.IOReadCloser()
		rc.closers = append(rc.closers, zc)
		r = zc
	}
	rc.Reader = transform.NewReader(r, f.decoder())
	return rc, nil
}

// layered closes the outermost layer first and the file last.
type layered struct {
	io.Reader
	closers []io.Closer
}

func (l *layered) Close() error {
	var first error
	for i := len(l.closers) - 1; i >= 0; i-- {
		if err := l.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
