package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"
)

var (
	// ErrNotFound means the manifest file does not exist.
	ErrNotFound = errors.New("manifest not found")

	// ErrParse means the manifest file is not a well-formed item list.
	ErrParse = errors.New("malformed manifest")
)

// Load reads the manifest at path and validates it for kind.
//
// The file is a JSON array of WorkItems. JSONC is accepted: // line
// comments, /* block comments */ and trailing commas are stripped
// before decoding.
//
// # Errors
//
// - ErrNotFound: no file at path.
//
// - ErrParse: the file is not a JSON array of items, or has unknown fields.
//
// - ErrInvalid: the items violate constraints of kind.
func Load(path string, kind Kind) (Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}

	m, err := Parse(b, kind)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes and validates manifest content. See Load.
func Parse(b []byte, kind Kind) (Manifest, error) {
	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(b)))
	dec.DisallowUnknownFields()

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrParse, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: unexpected content after the item list", ErrParse)
	}

	if err := m.Validate(kind); err != nil {
		return nil, err
	}
	return m, nil
}

// Save writes m to path atomically.
//
// The content lands in a temporary file first, which replaces path by
// rename. Readers never observe a half-written manifest.
func Save(path string, m Manifest) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(path, append(b, '\n'), 0644)
}

// LoadResult reads the result manifest at path.
//
// # Errors
//
// - ErrNotFound: no file at path.
//
// - ErrParse: the file is not a result manifest.
func LoadResult(path string) (ResultManifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ResultManifest{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return ResultManifest{}, err
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()

	var r ResultManifest
	if err := dec.Decode(&r); err != nil {
		return ResultManifest{}, fmt.Errorf("%s: %w: %s", path, ErrParse, err)
	}
	return r, nil
}

// SaveResult writes r to path atomically. See Save.
func SaveResult(path string, r ResultManifest) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(path, append(b, '\n'), 0644)
}

// writeAtomic lands data in a sibling temporary file, syncs it, and
// renames it over path. The directory is synced afterwards so the
// rename itself is durable.
func writeAtomic(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true

	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
