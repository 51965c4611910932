package manifest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/folklore-ml/folklore/pkg/utils/checksum"
)

// ErrInvalid means a manifest is well-formed JSON but violates
// constraints of its Kind. It is detected at load time, so that a batch
// never starts on a manifest which would fail halfway.
var ErrInvalid = errors.New("invalid manifest")

// Kind classifies which stage consumes a manifest.
//
// A manifest file itself does not carry its kind. The consuming command
// tells Load which constraints apply.
type Kind string

const (
	KindRaw       Kind = "raw"
	KindTransform Kind = "transform"
	KindTrain     Kind = "train"
	KindPredict   Kind = "predict"
	KindAnalysis  Kind = "analysis"
)

func (k Kind) String() string {
	return string(k)
}

// FileSpec declares one file of a raw dataset.
//
// Exactly one of Path, URL and Contents locates the source.
type FileSpec struct {
	// FileName is the name the file takes in the raw data area.
	// When empty, it is derived from the base name of Path or URL.
	FileName string `json:"file_name,omitempty"`

	// Path locates a local source file.
	// Relative paths are taken from the workspace root.
	Path string `json:"path,omitempty"`

	// URL locates a source by URL. file:// URLs are ingested directly;
	// other schemes are recorded as failures since downloading is left
	// to external tooling.
	URL string `json:"url,omitempty"`

	// Contents is literal file content, written as it is.
	Contents string `json:"contents,omitempty"`

	// HashType names the digest algorithm of HashValue:
	// md5, sha1, sha256 or blake3.
	HashType string `json:"hash_type,omitempty"`

	// HashValue is the expected hex digest. When set, a mismatching
	// file is rejected and removed.
	HashValue string `json:"hash_value,omitempty"`

	// Role marks what the file is: "data" (default), "descr" or "license".
	Role string `json:"role,omitempty"`
}

const (
	RoleData    = "data"
	RoleDescr   = "descr"
	RoleLicense = "license"
)

// WorkItem is one unit of work in a Manifest.
//
// Only Name is required. Which other fields are meaningful depends on
// the Kind of the manifest; see Validate.
type WorkItem struct {
	// Name identifies the item uniquely in its manifest.
	Name string `json:"name"`

	// Run is the command (argv) executed for this item.
	// Items without Run are failed by command stages, except the raw
	// process stage which falls back to copying the unpacked dataset.
	Run []string `json:"run,omitempty"`

	// Inputs are workspace-relative paths this item reads.
	Inputs []string `json:"inputs,omitempty"`

	// Outputs are workspace-relative paths this item must produce.
	// They are recorded as artifacts of the item.
	Outputs []string `json:"outputs,omitempty"`

	// Params are exported to the command environment as FOLK_PARAM_<KEY>.
	Params map[string]string `json:"params,omitempty"`

	// Timeout bounds a single attempt of this item. Zero means no bound.
	Timeout Duration `json:"timeout,omitempty"`

	// Retries is how many times a failed attempt is retried.
	Retries int `json:"retries,omitempty"`

	// Files lists source files of a raw dataset. Raw manifests only.
	Files []FileSpec `json:"files,omitempty"`

	// Unpack hints the archive format of the dataset: auto (default),
	// tar, tar.gz, tgz, tar.zst, tar.lz4, zip, gz, zst, lz4 or none.
	// Raw manifests only.
	Unpack string `json:"unpack,omitempty"`
}

// Manifest is an ordered list of WorkItems, as stored on file.
type Manifest []WorkItem

// Names returns item names in manifest order.
func (m Manifest) Names() []string {
	names := make([]string, len(m))
	for i, item := range m {
		names[i] = item.Name
	}
	return names
}

// Find returns the item named name.
func (m Manifest) Find(name string) (WorkItem, bool) {
	for _, item := range m {
		if item.Name == name {
			return item, true
		}
	}
	return WorkItem{}, false
}

var unpackFormats = map[string]struct{}{
	"": {}, "auto": {}, "none": {},
	"tar": {}, "tar.gz": {}, "tgz": {}, "tar.zst": {}, "tar.lz4": {},
	"zip": {}, "gz": {}, "zst": {}, "lz4": {},
}

// Validate checks constraints of kind over the whole manifest.
//
// For every kind: item names are required, unique and free of path
// separators. For KindRaw: each FileSpec needs exactly one source and a
// consistent hash declaration, and Unpack must name a known format.
// For other kinds, raw-only fields are rejected.
//
// All violations are reported wrapping ErrInvalid.
func (m Manifest) Validate(kind Kind) error {
	seen := map[string]struct{}{}
	for nth, item := range m {
		if err := item.validate(kind); err != nil {
			return fmt.Errorf("%w (item #%d)", err, nth)
		}
		if _, dup := seen[item.Name]; dup {
			return fmt.Errorf("%w: duplicated name %q", ErrInvalid, item.Name)
		}
		seen[item.Name] = struct{}{}
	}
	return nil
}

func (i WorkItem) validate(kind Kind) error {
	if i.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if strings.ContainsAny(i.Name, `/\`) || i.Name == "." || i.Name == ".." {
		return fmt.Errorf("%w: name %q may not be a path", ErrInvalid, i.Name)
	}
	if i.Retries < 0 {
		return fmt.Errorf("%w: %s: negative retries", ErrInvalid, i.Name)
	}
	if i.Timeout < 0 {
		return fmt.Errorf("%w: %s: negative timeout", ErrInvalid, i.Name)
	}

	if kind != KindRaw {
		if len(i.Files) != 0 {
			return fmt.Errorf("%w: %s: files are for raw manifests only", ErrInvalid, i.Name)
		}
		if i.Unpack != "" {
			return fmt.Errorf("%w: %s: unpack is for raw manifests only", ErrInvalid, i.Name)
		}
		return nil
	}

	if _, ok := unpackFormats[i.Unpack]; !ok {
		return fmt.Errorf("%w: %s: unknown unpack format %q", ErrInvalid, i.Name, i.Unpack)
	}
	for nth, f := range i.Files {
		if err := f.validate(); err != nil {
			return fmt.Errorf("%w (%s, file #%d)", err, i.Name, nth)
		}
	}
	return nil
}

func (f FileSpec) validate() error {
	sources := 0
	for _, s := range []string{f.Path, f.URL, f.Contents} {
		if s != "" {
			sources += 1
		}
	}
	if sources != 1 {
		return fmt.Errorf("%w: exactly one of path, url and contents is required", ErrInvalid)
	}
	if f.Contents != "" && f.FileName == "" {
		return fmt.Errorf("%w: file_name is required for inline contents", ErrInvalid)
	}

	if f.HashValue != "" {
		if f.HashType == "" {
			return fmt.Errorf("%w: hash_value without hash_type", ErrInvalid)
		}
		if _, err := checksum.ParseAlgorithm(f.HashType); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalid, err)
		}
	} else if f.HashType != "" {
		return fmt.Errorf("%w: hash_type without hash_value", ErrInvalid)
	}

	switch f.Role {
	case "", RoleData, RoleDescr, RoleLicense:
	default:
		return fmt.Errorf("%w: unknown file role %q", ErrInvalid, f.Role)
	}
	return nil
}
