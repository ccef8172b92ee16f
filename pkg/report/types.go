// Package report provides JSON-based test reporting with real-time updates.
//
// Architecture:
//   - report.json: Main index file (shared by all workers, mutex-protected)
//   - entries/<entry-id>.json: Append-only log of one (scenario, attempt) pair
//   - assets/<entry-id>/: Screenshots attached to that entry
//   - report.html, allure-results/: Generated from the files above at the end of a run
package report

import (
	"time"

	"github.com/devicelab-dev/selenium-runner/pkg/core"
)

// Version is the report schema version.
const Version = "1.0.0"

// Status represents the execution status.
type Status string

// Status values.
const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// IsTerminal returns true if the status is a final state.
func (s Status) IsTerminal() bool {
	return s == StatusPassed || s == StatusFailed || s == StatusSkipped
}

// FromOutcome maps a scenario outcome onto a report status.
func FromOutcome(o core.Outcome) Status {
	switch o {
	case core.OutcomePassed:
		return StatusPassed
	case core.OutcomeFailed:
		return StatusFailed
	case core.OutcomeSkipped:
		return StatusSkipped
	case core.OutcomeStarted:
		return StatusRunning
	default:
		return StatusPending
	}
}

// ============================================================================
// INDEX (report.json)
// ============================================================================

// Index is the main report file that binds everything together.
type Index struct {
	Version     string            `json:"version"`
	RunID       string            `json:"runId"`
	Title       string            `json:"title"`
	UpdateSeq   uint64            `json:"updateSeq"`
	Status      Status            `json:"status"`
	StartTime   time.Time         `json:"startTime"`
	EndTime     *time.Time        `json:"endTime,omitempty"`
	LastUpdated time.Time         `json:"lastUpdated"`
	Browser     Browser           `json:"browser"`
	Runner      RunnerInfo        `json:"runner"`
	Environment map[string]string `json:"environment,omitempty"`
	Summary     Summary           `json:"summary"`
	Scenarios   []ScenarioEntry   `json:"scenarios"`
}

// Browser describes the browser the run targets.
type Browser struct {
	Name     string `json:"name"`
	Version  string `json:"version,omitempty"`
	Platform string `json:"platform,omitempty"`
	Headless bool   `json:"headless,omitempty"`
}

// RunnerInfo contains selenium-runner information.
type RunnerInfo struct {
	Version     string `json:"version"`
	Driver      string `json:"driver"` // selenium, cdp, mock
	Parallelism int    `json:"parallelism"`
	RetryLimit  int    `json:"retryLimit"`
}

// Summary contains aggregated counts.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Running int `json:"running"`
	Pending int `json:"pending"`
	Flaky   int `json:"flaky,omitempty"`
}

// ScenarioEntry is the index entry for one descriptor.
type ScenarioEntry struct {
	Index          int               `json:"index"` // Original position
	ID             string            `json:"id"`    // Descriptor key
	Name           string            `json:"name"`
	Row            int               `json:"row,omitempty"`
	Parameters     map[string]string `json:"parameters,omitempty"`
	Status         Status            `json:"status"`
	Worker         int               `json:"worker,omitempty"`
	UpdateSeq      uint64            `json:"updateSeq"`
	StartTime      *time.Time        `json:"startTime,omitempty"`
	EndTime        *time.Time        `json:"endTime,omitempty"`
	Duration       *int64            `json:"duration,omitempty"` // milliseconds
	Attempts       int               `json:"attempts"`
	AttemptHistory []AttemptEntry    `json:"attemptHistory,omitempty"`
	Error          *string           `json:"error,omitempty"`
}

// AttemptEntry tracks one attempt of a scenario.
type AttemptEntry struct {
	Attempt   int    `json:"attempt"`
	EntryID   string `json:"entryId"`
	DataFile  string `json:"dataFile"`
	Status    Status `json:"status"`
	Duration  int64  `json:"duration"` // milliseconds
	Error     string `json:"error,omitempty"`
	Artifacts int    `json:"artifacts"`
}

// ============================================================================
// ENTRY DETAIL (entries/<entry-id>.json)
// ============================================================================

// EntryDetail is the full log of one scenario attempt.
type EntryDetail struct {
	ID         string            `json:"id"`
	ScenarioID string            `json:"scenarioId"`
	Name       string            `json:"name"`
	Row        int               `json:"row,omitempty"`
	Attempt    int               `json:"attempt"`
	Worker     int               `json:"worker"`
	Parameters map[string]string `json:"parameters,omitempty"`
	StartTime  time.Time         `json:"startTime"`
	EndTime    *time.Time        `json:"endTime,omitempty"`
	Duration   *int64            `json:"duration,omitempty"`
	Status     Status            `json:"status"`
	Error      string            `json:"error,omitempty"`
	Logs       []LogLine         `json:"logs"`
}

// LogLine is one append-only line of an entry.
type LogLine struct {
	Time     time.Time         `json:"time"`
	Severity core.Severity     `json:"severity"`
	Message  string            `json:"message"`
	Error    string            `json:"error,omitempty"`
	Artifact *core.ArtifactRef `json:"artifact,omitempty"`
}

// Artifacts returns the artifacts attached to the entry in log order.
func (d *EntryDetail) Artifacts() []core.ArtifactRef {
	var out []core.ArtifactRef
	for _, l := range d.Logs {
		if l.Artifact != nil {
			out = append(out, *l.Artifact)
		}
	}
	return out
}

// CountSeverity returns how many log lines carry sev.
func (d *EntryDetail) CountSeverity(sev core.Severity) int {
	n := 0
	for _, l := range d.Logs {
		if l.Severity == sev {
			n++
		}
	}
	return n
}
