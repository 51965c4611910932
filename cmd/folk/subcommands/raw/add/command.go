package add

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"path/filepath"

	"github.com/youta-t/flarc"

	"github.com/folklore-ml/folklore/cmd/folk/subcommands/common"
	"github.com/folklore-ml/folklore/pkg/manifest"
	"github.com/folklore-ml/folklore/pkg/utils/checksum"
	fpath "github.com/folklore-ml/folklore/pkg/utils/path"
	"github.com/folklore-ml/folklore/pkg/workspace"
)

type Flag struct {
	File     string `flag:"file" alias:"f" metavar:"PATH" help:"local file to ingest. Relative paths are taken from the workspace root."`
	URL      string `flag:"url" alias:"u" metavar:"URL" help:"URL to ingest. Only file:// is fetched by folk itself."`
	Contents string `flag:"contents" metavar:"TEXT" help:"literal file contents. Requires --name."`
	Name     string `flag:"name" alias:"n" metavar:"FILENAME" help:"file name in the raw data area. Default: base name of --file or --url."`

	HashType  string `flag:"hash-type" metavar:"ALGORITHM" help:"algorithm of --hash-value: md5, sha1, sha256 or blake3. Default: the workspace algorithm."`
	HashValue string `flag:"hash-value" metavar:"HEX" help:"expected digest of the file. Default: computed from the source at hand."`
	NoHash    bool   `flag:"no-hash" help:"record no digest."`

	Descr   bool `flag:"descr" help:"mark the file as the dataset description."`
	License bool `flag:"license" help:"mark the file as the dataset license."`

	Unpack string `flag:"unpack" metavar:"FORMAT" help:"archive format of the dataset: auto, none, tar, tar.gz, tgz, tar.zst, tar.lz4, zip, gz, zst or lz4."`
}

const ARG_DATASET = "DATASET"

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Declare a file of a raw dataset in the raw manifest.",
		Flag{},
		flarc.Args{
			{
				Name: ARG_DATASET, Required: true,
				Help: "name of the dataset the file belongs to.",
			},
		},
		common.NewTask(Task()),
		flarc.WithDescription(`
Declare where a file of a raw dataset comes from. "{{ .Command }}" only
updates the raw manifest; ingesting happens at "folk raw fetch".

	{{ .Command }} iris --file incoming/iris.csv
	{{ .Command }} iris --url file:///mnt/share/iris.zip --unpack zip
	{{ .Command }} iris --contents "Iris flower measurements." --name README --descr

The dataset item is created when missing. A declaration with the same
destination file name replaces the earlier one. Unless --no-hash (or an
explicit --hash-value) is given, the digest is computed now from the
source, so that fetch can verify it later; a source folk cannot read at
add time is recorded without a digest.

The updated dataset item is printed to stdout as JSON.
`),
	)
}

func Task() common.Task[Flag] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		_ common.CommonFlags,
		layout workspace.Layout,
		cl flarc.Commandline[Flag],
		params []any,
	) error {
		flags := cl.Flags()
		dataset := cl.Args()[ARG_DATASET][0]

		spec, err := fileSpec(logger, layout, flags)
		if err != nil {
			return err
		}

		mpath := layout.ManifestPath(manifest.KindRaw)
		m, err := manifest.Load(mpath, manifest.KindRaw)
		if errors.Is(err, manifest.ErrNotFound) {
			m = manifest.Manifest{}
		} else if err != nil {
			return err
		}

		idx := -1
		for i, item := range m {
			if item.Name == dataset {
				idx = i
				break
			}
		}
		if idx < 0 {
			m = append(m, manifest.WorkItem{Name: dataset})
			idx = len(m) - 1
		}
		item := m[idx]

		if flags.Unpack != "" {
			item.Unpack = flags.Unpack
		}

		dest := destName(dataset, spec)
		replaced := false
		for i, f := range item.Files {
			if destName(dataset, f) == dest {
				item.Files[i] = spec
				replaced = true
				break
			}
		}
		if !replaced {
			item.Files = append(item.Files, spec)
		}
		m[idx] = item

		if err := m.Validate(manifest.KindRaw); err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(mpath), 0755); err != nil {
			return err
		}
		if err := manifest.Save(mpath, m); err != nil {
			return err
		}

		if replaced {
			logger.Printf("replaced %s in dataset %s", dest, dataset)
		} else {
			logger.Printf("added %s to dataset %s", dest, dataset)
		}

		buf, err := json.MarshalIndent(item, "", "    ")
		if err != nil {
			return err
		}
		if _, err := cl.Stdout().Write(buf); err != nil {
			return err
		}
		fmt.Fprintln(cl.Stdout())
		return nil
	}
}

func fileSpec(logger *log.Logger, layout workspace.Layout, flags Flag) (manifest.FileSpec, error) {
	sources := 0
	for _, s := range []string{flags.File, flags.URL, flags.Contents} {
		if s != "" {
			sources += 1
		}
	}
	if sources != 1 {
		return manifest.FileSpec{}, fmt.Errorf(
			"%w: exactly one of --file, --url and --contents is required", flarc.ErrUsage,
		)
	}
	if flags.Contents != "" && flags.Name == "" {
		return manifest.FileSpec{}, fmt.Errorf("%w: --contents requires --name", flarc.ErrUsage)
	}
	if flags.Descr && flags.License {
		return manifest.FileSpec{}, fmt.Errorf("%w: --descr and --license are exclusive", flarc.ErrUsage)
	}
	if flags.NoHash && flags.HashValue != "" {
		return manifest.FileSpec{}, fmt.Errorf("%w: --no-hash and --hash-value are exclusive", flarc.ErrUsage)
	}

	spec := manifest.FileSpec{
		FileName: flags.Name,
		Path:     flags.File,
		URL:      flags.URL,
		Contents: flags.Contents,
	}
	switch {
	case flags.Descr:
		spec.Role = manifest.RoleDescr
	case flags.License:
		spec.Role = manifest.RoleLicense
	}

	if flags.NoHash {
		return spec, nil
	}

	algorithm := layout.Config().Checksum
	if flags.HashType != "" {
		a, err := checksum.ParseAlgorithm(flags.HashType)
		if err != nil {
			return manifest.FileSpec{}, fmt.Errorf("%w: %s", flarc.ErrUsage, err)
		}
		algorithm = a
	}

	if flags.HashValue != "" {
		spec.HashType = string(algorithm)
		spec.HashValue = flags.HashValue
		return spec, nil
	}

	switch {
	case flags.Contents != "":
		w, err := checksum.NewWriter(io.Discard, algorithm)
		if err != nil {
			return manifest.FileSpec{}, err
		}
		io.WriteString(w, flags.Contents)
		spec.HashType = string(algorithm)
		spec.HashValue = w.Sum()

	case flags.File != "":
		resolved, err := fpath.ResolveAt(layout.Root(), flags.File)
		if err != nil {
			return manifest.FileSpec{}, err
		}
		digest, _, err := checksum.File(resolved, algorithm)
		if err != nil {
			logger.Printf("no digest recorded for %s: %s", flags.File, err)
			break
		}
		spec.HashType = string(algorithm)
		spec.HashValue = digest

	default:
		// remote sources are not read at add time.
		logger.Printf("no digest recorded for %s", flags.URL)
	}
	return spec, nil
}

// destName is the file name the declaration lands on in the raw data
// area. Two declarations with the same destination would overwrite each
// other at fetch time, so add treats the later one as a replacement.
func destName(dataset string, f manifest.FileSpec) string {
	switch f.Role {
	case manifest.RoleDescr:
		return dataset + ".readme"
	case manifest.RoleLicense:
		return dataset + ".license"
	}
	if f.FileName != "" {
		return f.FileName
	}
	if f.Path != "" {
		return filepath.Base(f.Path)
	}
	if u, err := url.Parse(f.URL); err == nil {
		return filepath.Base(u.Path)
	}
	return ""
}
