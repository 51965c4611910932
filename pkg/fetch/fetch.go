package fetch

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/folklore-ml/folklore/pkg/manifest"
	"github.com/folklore-ml/folklore/pkg/utils/checksum"
	fpath "github.com/folklore-ml/folklore/pkg/utils/path"
	"github.com/folklore-ml/folklore/pkg/workspace"
)

// Executor ingests the declared files of a raw dataset into the raw
// data area, one directory per dataset.
//
// Sources are local: paths, file:// URLs and inline contents. Remote
// URLs fail the item; downloading is left to external tooling, and the
// failure lands in the result manifest instead of aborting the batch.
type Executor struct {
	layout   workspace.Layout
	progress func(name string, delta int64)
}

type Option func(*Executor) *Executor

// WithProgress reports ingested bytes per destination file name.
func WithProgress(fn func(name string, delta int64)) Option {
	return func(e *Executor) *Executor {
		e.progress = fn
		return e
	}
}

func New(layout workspace.Layout, options ...Option) *Executor {
	e := &Executor{
		layout:   layout,
		progress: func(string, int64) {},
	}
	for _, opt := range options {
		e = opt(e)
	}
	return e
}

func (e *Executor) Execute(ctx context.Context, item manifest.WorkItem) ([]manifest.Artifact, error) {
	destDir := filepath.Join(e.layout.RawDir(), item.Name)
	artifacts := []manifest.Artifact{}
	for nth, f := range item.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a, err := e.ingest(item.Name, destDir, f)
		if err != nil {
			return nil, fmt.Errorf("file #%d: %w", nth, err)
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, nil
}

func (e *Executor) ingest(dataset string, destDir string, f manifest.FileSpec) (manifest.Artifact, error) {
	name, src, err := e.open(f)
	if err != nil {
		return manifest.Artifact{}, err
	}
	defer src.Close()

	if name = destName(dataset, name, f.Role); name == "" {
		return manifest.Artifact{}, fmt.Errorf("no file name for the source")
	}

	algorithm := e.layout.Config().Checksum
	if f.HashType != "" {
		if algorithm, err = checksum.ParseAlgorithm(f.HashType); err != nil {
			return manifest.Artifact{}, err
		}
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return manifest.Artifact{}, err
	}
	dest := filepath.Join(destDir, name)

	digest, size, err := e.copy(dest, src, algorithm)
	if err != nil {
		return manifest.Artifact{}, err
	}

	if f.HashValue != "" && !strings.EqualFold(f.HashValue, digest) {
		os.Remove(dest)
		return manifest.Artifact{}, fmt.Errorf(
			"%s digest mismatch for %s: %s, declared %s",
			algorithm, name, digest, f.HashValue,
		)
	}

	rel, err := e.layout.Rel(dest)
	if err != nil {
		return manifest.Artifact{}, err
	}
	return manifest.Artifact{
		Path: rel, Size: size,
		Checksum: digest, Algorithm: string(algorithm),
	}, nil
}

// open locates the source of f and proposes a destination file name.
func (e *Executor) open(f manifest.FileSpec) (string, io.ReadCloser, error) {
	switch {
	case f.Contents != "":
		return f.FileName, io.NopCloser(strings.NewReader(f.Contents)), nil

	case f.Path != "":
		resolved, err := fpath.ResolveAt(e.layout.Root(), f.Path)
		if err != nil {
			return "", nil, err
		}
		src, err := os.Open(resolved)
		if err != nil {
			return "", nil, err
		}
		return fallback(f.FileName, filepath.Base(resolved)), src, nil

	case f.URL != "":
		u, err := url.Parse(f.URL)
		if err != nil {
			return "", nil, err
		}
		switch u.Scheme {
		case "file":
			src, err := os.Open(u.Path)
			if err != nil {
				return "", nil, err
			}
			return fallback(f.FileName, filepath.Base(u.Path)), src, nil
		case "http", "https":
			return "", nil, fmt.Errorf(
				"remote fetch requires external tooling: %s", f.URL,
			)
		default:
			return "", nil, fmt.Errorf("unsupported url scheme %q", u.Scheme)
		}

	default:
		return "", nil, fmt.Errorf("the file declares no source")
	}
}

// destName applies the role naming: descr and license files land next
// to the data as <dataset>.readme and <dataset>.license.
func destName(dataset string, name string, role string) string {
	switch role {
	case manifest.RoleDescr:
		return dataset + ".readme"
	case manifest.RoleLicense:
		return dataset + ".license"
	default:
		return name
	}
}

// copy streams src into a new file at dest, hashing as it goes.
// On failure the partial file is removed.
func (e *Executor) copy(dest string, src io.Reader, algorithm checksum.Algorithm) (string, int64, error) {
	fp, err := os.Create(dest)
	if err != nil {
		return "", 0, err
	}

	w, err := checksum.NewWriter(fp, algorithm)
	if err != nil {
		fp.Close()
		os.Remove(dest)
		return "", 0, err
	}

	name := filepath.Base(dest)
	size, err := io.Copy(w, &meteredReader{
		r:      src,
		report: func(n int64) { e.progress(name, n) },
	})
	if cerr := fp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dest)
		return "", 0, err
	}
	return w.Sum(), size, nil
}

func fallback(name string, otherwise string) string {
	if name != "" {
		return name
	}
	return otherwise
}

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
