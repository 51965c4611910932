package unpack

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Format names an archive or compression layout.
type Format string

const (
	// Auto picks the format from the file name.
	Auto Format = "auto"

	// None copies the file as it is.
	None Format = "none"

	Tar    Format = "tar"
	TarGz  Format = "tar.gz"
	TarZst Format = "tar.zst"
	TarLz4 Format = "tar.lz4"
	Zip    Format = "zip"

	// Gz, Zst and Lz4 are single compressed files, not archives.
	Gz  Format = "gz"
	Zst Format = "zst"
	Lz4 Format = "lz4"
)

var (
	ErrUnknownFormat = errors.New("unknown archive format")

	// ErrEscapingPath rejects archive entries which would land outside
	// the destination directory.
	ErrEscapingPath = errors.New("archive entry escapes the destination")
)

// ParseFormat reads a format name. Empty means Auto; "tgz" is
// accepted for "tar.gz".
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", string(Auto):
		return Auto, nil
	case "tgz", string(TarGz):
		return TarGz, nil
	case string(None), string(Tar), string(TarZst), string(TarLz4),
		string(Zip), string(Gz), string(Zst), string(Lz4):
		return Format(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Detect guesses the format of a file from its name.
// Names with no recognized extension are None.
func Detect(name string) Format {
	base := strings.ToLower(filepath.Base(name))
	switch {
	case strings.HasSuffix(base, ".tar"):
		return Tar
	case strings.HasSuffix(base, ".tar.gz"), strings.HasSuffix(base, ".tgz"):
		return TarGz
	case strings.HasSuffix(base, ".tar.zst"):
		return TarZst
	case strings.HasSuffix(base, ".tar.lz4"):
		return TarLz4
	case strings.HasSuffix(base, ".zip"):
		return Zip
	case strings.HasSuffix(base, ".gz"):
		return Gz
	case strings.HasSuffix(base, ".zst"):
		return Zst
	case strings.HasSuffix(base, ".lz4"):
		return Lz4
	default:
		return None
	}
}

type config struct {
	progress func(delta int64)
}

type Option func(*config) *config

// WithProgress reports consumed source bytes as extraction goes on.
// Deltas sum up to about the compressed file size.
func WithProgress(fn func(delta int64)) Option {
	return func(c *config) *config {
		c.progress = fn
		return c
	}
}

// Extract unpacks the file at src into destDir and returns the paths
// of the files it created, relative to destDir, in creation order.
//
// destDir is created when missing. Archive entries trying to escape
// destDir fail the extraction with ErrEscapingPath.
func Extract(ctx context.Context, src string, destDir string, format Format, options ...Option) ([]string, error) {
	conf := &config{progress: func(int64) {}}
	for _, opt := range options {
		conf = opt(conf)
	}

	if format == "" || format == Auto {
		format = Detect(src)
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, err
	}

	if format == Zip {
		return unzip(ctx, src, destDir, conf.progress)
	}

	fp, err := os.Open(src)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	r := io.Reader(&ctxReader{ctx: ctx, r: &meteredReader{r: fp, report: conf.progress}})

	base := filepath.Base(src)
	switch format {
	case None:
		return writeOne(r, destDir, base)

	case Tar:
		return untar(r, destDir)
	case TarGz:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		return untar(gz, destDir)
	case TarZst:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return untar(zr, destDir)
	case TarLz4:
		return untar(lz4.NewReader(r), destDir)

	case Gz:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		return writeOne(gz, destDir, stripExt(base))
	case Zst:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return writeOne(zr, destDir, stripExt(base))
	case Lz4:
		return writeOne(lz4.NewReader(r), destDir, stripExt(base))

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// stripExt drops the compression suffix: "iris.csv.gz" comes out as
// "iris.csv". A name left empty keeps the original.
func stripExt(base string) string {
	stripped := strings.TrimSuffix(base, filepath.Ext(base))
	if stripped == "" {
		return base
	}
	return stripped
}

// writeOne stores one decompressed file under dest.
func writeOne(r io.Reader, dest string, name string) ([]string, error) {
	fp, err := os.Create(filepath.Join(dest, name))
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	if _, err := io.Copy(fp, r); err != nil {
		return nil, err
	}
	return []string{name}, nil
}

func untar(src io.Reader, dest string) ([]string, error) {
	created := []string{}
	tarr := tar.NewReader(src)
	for {
		hdr, err := tarr.Next()
		if err == io.EOF {
			return created, nil
		}
		if err != nil {
			return created, err
		}
		if hdr.Name == "" {
			continue
		}

		name := filepath.FromSlash(hdr.Name)
		if !filepath.IsLocal(name) {
			return created, fmt.Errorf("%w: %q", ErrEscapingPath, hdr.Name)
		}
		fullpath := filepath.Join(dest, name)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(fullpath, 0755); err != nil {
				return created, err
			}

		case tar.TypeSymlink:
			// the link target has to stay inside dest, too
			if !filepath.IsLocal(filepath.Join(filepath.Dir(name), hdr.Linkname)) {
				return created, fmt.Errorf("%w: %q -> %q", ErrEscapingPath, hdr.Name, hdr.Linkname)
			}
			if err := os.MkdirAll(filepath.Dir(fullpath), 0755); err != nil {
				return created, err
			}
			if err := os.Symlink(hdr.Linkname, fullpath); err != nil {
				return created, err
			}

		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(fullpath), 0755); err != nil {
				return created, err
			}
			if err := func() error {
				fp, err := os.OpenFile(fullpath, os.O_CREATE|os.O_RDWR|os.O_TRUNC, os.FileMode(hdr.Mode))
				if err != nil {
					return err
				}
				defer fp.Close()
				_, err = io.Copy(fp, tarr)
				return err
			}(); err != nil {
				return created, err
			}
			created = append(created, name)
		}
	}
}

func unzip(ctx context.Context, src string, dest string, progress func(int64)) ([]string, error) {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	created := []string{}
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return created, err
		}

		name := filepath.FromSlash(f.Name)
		if !filepath.IsLocal(name) {
			return created, fmt.Errorf("%w: %q", ErrEscapingPath, f.Name)
		}
		fullpath := filepath.Join(dest, name)

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(fullpath, 0755); err != nil {
				return created, err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(fullpath), 0755); err != nil {
			return created, err
		}
		if err := func() error {
			in, err := f.Open()
			if err != nil {
				return err
			}
			defer in.Close()
			out, err := os.OpenFile(fullpath, os.O_CREATE|os.O_RDWR|os.O_TRUNC, f.Mode())
			if err != nil {
				return err
			}
			defer out.Close()
			_, err = io.Copy(out, in)
			return err
		}(); err != nil {
			return created, err
		}
		created = append(created, name)
		progress(int64(f.CompressedSize64))
	}
	return created, nil
}

// ctxReader stops reading once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	select {
	case <-r.ctx.Done():
		return 0, r.ctx.Err()
	default:
	}
	return r.r.Read(p)
}

// meteredReader reports how many bytes passed through.
type meteredReader struct {
	r      io.Reader
	report func(int64)
}

func (r *meteredReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if 0 < n {
		r.report(int64(n))
	}
	return n, err
}
