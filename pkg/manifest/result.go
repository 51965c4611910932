package manifest

import (
	"github.com/folklore-ml/folklore/pkg/cmp"
	"github.com/folklore-ml/folklore/pkg/utils/rfctime"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Artifact records one file an item has produced, with its integrity
// digest as computed at record time. Artifacts are never rewritten;
// a newer run replaces the whole result manifest instead.
type Artifact struct {
	// Path is workspace-relative.
	Path string `json:"path"`

	Size int64 `json:"size"`

	// Checksum is the hex digest of the file, computed with Algorithm.
	Checksum  string `json:"checksum,omitempty"`
	Algorithm string `json:"algorithm,omitempty"`
}

// ResultRecord is the outcome of one WorkItem.
//
// A batch writes one record per item, in manifest order. Failures are
// recorded, never omitted.
type ResultRecord struct {
	Name      string          `json:"name"`
	Status    Status          `json:"status"`
	Error     string          `json:"error,omitempty"`
	Artifacts []Artifact      `json:"artifacts,omitempty"`
	Started   rfctime.RFC3339 `json:"started"`
	Elapsed   Duration        `json:"elapsed"`
	Attempts  int             `json:"attempts"`
}

// Equiv checks whether two records describe the same outcome.
//
// Timing fields and attempt counts necessarily differ between runs, so
// they are left out of the comparison.
func (r ResultRecord) Equiv(o ResultRecord) bool {
	return r.Name == o.Name &&
		r.Status == o.Status &&
		r.Error == o.Error &&
		cmp.SliceEq(r.Artifacts, o.Artifacts)
}

// ResultManifest is the persisted outcome of one stage run.
type ResultManifest struct {
	RunID string `json:"run_id"`
	Stage string `json:"stage"`

	// Manifest is the workspace-relative path of the input manifest.
	Manifest string `json:"manifest,omitempty"`

	Started   rfctime.RFC3339 `json:"started"`
	Finished  rfctime.RFC3339 `json:"finished"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Records   []ResultRecord  `json:"records"`
}

// Equiv checks whether two results describe the same outcome,
// ignoring run id and timings. See ResultRecord.Equiv.
func (r ResultManifest) Equiv(o ResultManifest) bool {
	return r.Stage == o.Stage &&
		r.Manifest == o.Manifest &&
		r.Succeeded == o.Succeeded &&
		r.Failed == o.Failed &&
		cmp.SliceEqWith(r.Records, o.Records, ResultRecord.Equiv)
}

// FailedRecords returns records of items which did not succeed.
func (r ResultManifest) FailedRecords() []ResultRecord {
	failed := []ResultRecord{}
	for _, rec := range r.Records {
		if rec.Status != StatusSuccess {
			failed = append(failed, rec)
		}
	}
	return failed
}
