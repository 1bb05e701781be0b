package models

import "time"

// MaxSampledFailures caps how many failures a run report carries in full detail.
const MaxSampledFailures = 10

// RunFailure records one isolated item or page failure with enough context to
// find the source again.
type RunFailure struct {
	Term    string `json:"term"`
	Page    int    `json:"page"`
	ItemID  string `json:"item_id,omitempty"`
	Message string `json:"message"`
}

// RunStatistics is the aggregate outcome of one ingest or enrichment run.
// It is an explicit value threaded through the run, not shared state.
type RunStatistics struct {
	Platform    string       `json:"platform"`
	Processed   int          `json:"processed"`
	NewProducts int          `json:"new_products"`
	Errors      int          `json:"errors"`
	Aborted     bool         `json:"aborted"`
	Failures    []RunFailure `json:"failures,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`
}

// RecordFailure counts an error and keeps the failure detail while under the
// sampling cap.
func (s *RunStatistics) RecordFailure(f RunFailure) {
	s.Errors++
	if len(s.Failures) < MaxSampledFailures {
		s.Failures = append(s.Failures, f)
	}
}

// SuccessRate returns processed / (processed + errors) as a percentage.
// A run with no attempts reports 0.
func (s *RunStatistics) SuccessRate() float64 {
	total := s.Processed + s.Errors
	if total == 0 {
		return 0
	}
	return float64(s.Processed) / float64(total) * 100
}
