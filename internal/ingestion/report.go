package ingestion

import "time"

// SourceStatus is the outcome of one source within a run.
type SourceStatus string

const (
	SourceOK       SourceStatus = "ok"
	SourceFailed   SourceStatus = "failed"
	SourceSkipped  SourceStatus = "skipped"  // not started before the batch deadline
	SourceInactive SourceStatus = "inactive" // disabled in the registry
)

// SourceReport summarizes one source's pass through the pipeline.
type SourceReport struct {
	Source        string       `json:"source"`
	Status        SourceStatus `json:"status"`
	Found         int          `json:"found"`
	Dropped       int          `json:"dropped"`
	Duplicates    int          `json:"duplicates"`
	Added         int          `json:"added"`
	ErrorCategory string       `json:"errorCategory,omitempty"`
	Error         string       `json:"error,omitempty"`
	DurationMs    int64        `json:"durationMs"`
}

// RunReport is the result of one batch invocation. Sources keep the order in
// which they were requested.
type RunReport struct {
	ID         string         `json:"id"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Sources    []SourceReport `json:"sources"`
	Totals     RunTotals      `json:"totals"`
}

// RunTotals aggregates the per-source counts.
type RunTotals struct {
	Sources    int `json:"sources"`
	OK         int `json:"ok"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
	Inactive   int `json:"inactive"`
	Found      int `json:"found"`
	Dropped    int `json:"dropped"`
	Duplicates int `json:"duplicates"`
	Added      int `json:"added"`
}

func (r *RunReport) summarize() {
	t := RunTotals{Sources: len(r.Sources)}
	for _, s := range r.Sources {
		switch s.Status {
		case SourceOK:
			t.OK++
		case SourceFailed:
			t.Failed++
		case SourceSkipped:
			t.Skipped++
		case SourceInactive:
			t.Inactive++
		}
		t.Found += s.Found
		t.Dropped += s.Dropped
		t.Duplicates += s.Duplicates
		t.Added += s.Added
	}
	r.Totals = t
}

// Failed returns the reports of sources that failed in this run.
func (r RunReport) Failed() []SourceReport {
	var out []SourceReport
	for _, s := range r.Sources {
		if s.Status == SourceFailed {
			out = append(out, s)
		}
	}
	return out
}
