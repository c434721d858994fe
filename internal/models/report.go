package models

import "time"

// Outcome classifies what happened to a single annotation during a run.
type Outcome string

const (
	// OutcomeCorrected means the agent proposed a different allowed label
	// and the annotation's category was rewritten.
	OutcomeCorrected Outcome = "corrected"

	// OutcomeUnchanged means the agent confirmed the existing label.
	OutcomeUnchanged Outcome = "unchanged"

	// OutcomeUnresolved means the agent signalled that no allowed class
	// matches; the annotation was left as-is.
	OutcomeUnresolved Outcome = "unresolved"

	// OutcomeErrored means the annotation could not be processed (missing
	// image, exhausted agent retries); it was left as-is.
	OutcomeErrored Outcome = "errored"
)

// DecisionSource records where a classification decision came from.
type DecisionSource string

const (
	SourceAgent   DecisionSource = "agent"   // fresh model call
	SourceCache   DecisionSource = "cache"   // sqlite decision cache hit
	SourceSimilar DecisionSource = "similar" // embedding similarity reuse
)

// Decision is the classifier's verdict for one image region.
type Decision struct {
	// Label is the proposed class, a member of the allowed class list.
	// Empty when NoneMatch is true.
	Label string `json:"label"`

	// NoneMatch is true when no allowed class fits the region.
	NoneMatch bool `json:"none_match"`

	// Source records whether the decision came from the agent, the cache,
	// or similarity reuse.
	Source DecisionSource `json:"source,omitempty"`
}

// FileReport summarizes the outcome of one COCO file.
type FileReport struct {
	// InputPath and SavePath are the resolved file pair.
	InputPath string `json:"input_path" yaml:"input_path"`
	SavePath  string `json:"save_path" yaml:"save_path"`

	// Failed is set when the file itself could not be processed (e.g.
	// malformed JSON); Error holds the reason. Annotation counters are
	// zero for failed files.
	Failed bool   `json:"failed,omitempty" yaml:"failed,omitempty"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`

	// Per-annotation outcome counters.
	Corrected  int `json:"corrected" yaml:"corrected"`
	Unchanged  int `json:"unchanged" yaml:"unchanged"`
	Unresolved int `json:"unresolved" yaml:"unresolved"`
	Errored    int `json:"errored" yaml:"errored"`

	// CategoriesAdded counts categories appended for valid labels that
	// were absent from the file's category map.
	CategoriesAdded int `json:"categories_added,omitempty" yaml:"categories_added,omitempty"`
}

// Count increments the counter for the given outcome.
func (fr *FileReport) Count(o Outcome) {
	switch o {
	case OutcomeCorrected:
		fr.Corrected++
	case OutcomeUnchanged:
		fr.Unchanged++
	case OutcomeUnresolved:
		fr.Unresolved++
	case OutcomeErrored:
		fr.Errored++
	}
}

// Annotations returns the total number of annotations the file report
// accounts for.
func (fr *FileReport) Annotations() int {
	return fr.Corrected + fr.Unchanged + fr.Unresolved + fr.Errored
}

// Report is the final outcome of a correction run.
type Report struct {
	StartedAt  time.Time    `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time    `json:"finished_at" yaml:"finished_at"`
	Files      []FileReport `json:"files" yaml:"files"`
}

// Totals sums the annotation counters across all files.
func (r *Report) Totals() FileReport {
	var t FileReport
	for _, f := range r.Files {
		t.Corrected += f.Corrected
		t.Unchanged += f.Unchanged
		t.Unresolved += f.Unresolved
		t.Errored += f.Errored
		t.CategoriesAdded += f.CategoriesAdded
	}
	return t
}

// HasWarnings reports whether any file failed or any annotation ended up
// unresolved or errored. A run with warnings still exits successfully.
func (r *Report) HasWarnings() bool {
	for _, f := range r.Files {
		if f.Failed || f.Unresolved > 0 || f.Errored > 0 {
			return true
		}
	}
	return false
}
