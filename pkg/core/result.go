package core

import (
	"fmt"
	"time"
)

// Descriptor identifies one scenario invocation: a name plus one row of parameters.
// Descriptors are created by the data source and never mutated afterwards.
type Descriptor struct {
	Name       string            `json:"name"`
	Parameters map[string]string `json:"parameters,omitempty"`
	Row        int               `json:"row"` // 1-based data row, 0 when the scenario has no data sheet
}

// Key returns a stable identifier for the descriptor within a run
func (d Descriptor) Key() string {
	if d.Row == 0 {
		return d.Name
	}
	return fmt.Sprintf("%s#%d", d.Name, d.Row)
}

// Clone returns a deep copy so callers may not share the parameter map
func (d Descriptor) Clone() Descriptor {
	c := Descriptor{Name: d.Name, Row: d.Row}
	if d.Parameters != nil {
		c.Parameters = make(map[string]string, len(d.Parameters))
		for k, v := range d.Parameters {
			c.Parameters[k] = v
		}
	}
	return c
}

// Param returns a parameter value, "" when absent
func (d Descriptor) Param(key string) string {
	return d.Parameters[key]
}

// AttemptResult captures one attempt of a scenario
type AttemptResult struct {
	Attempt   int           `json:"attempt"` // 1-based
	EntryID   string        `json:"entryId"`
	Status    Outcome       `json:"status"`
	Category  ErrorCategory `json:"errorCategory,omitempty"`
	Error     string        `json:"error,omitempty"`
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`
	Retried   bool          `json:"retried,omitempty"` // Retry was granted after this attempt
	Artifacts []ArtifactRef `json:"artifacts,omitempty"`
}

// ScenarioResult captures the complete outcome of one descriptor
type ScenarioResult struct {
	Descriptor Descriptor `json:"descriptor"`
	Worker     int        `json:"worker"`

	// Status of the last attempt, the authoritative one
	Status Outcome `json:"status"`
	Error  string  `json:"error,omitempty"`

	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	Attempts []AttemptResult `json:"attempts"`
}

// Flaky returns true if the scenario passed after at least one retry
func (r *ScenarioResult) Flaky() bool {
	return r.Status == OutcomePassed && len(r.Attempts) > 1
}

// Artifacts returns every artifact captured across attempts
func (r *ScenarioResult) Artifacts() []ArtifactRef {
	var out []ArtifactRef
	for _, a := range r.Attempts {
		out = append(out, a.Artifacts...)
	}
	return out
}

// SuiteResult captures the outcome of executing many descriptors
type SuiteResult struct {
	RunID     string           `json:"runId"`
	StartTime time.Time        `json:"startTime"`
	Duration  time.Duration    `json:"duration"`
	Scenarios []ScenarioResult `json:"scenarios"`

	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Flaky   int `json:"flaky,omitempty"`
}

// ComputeSummary calculates counts from the Scenarios slice
func (s *SuiteResult) ComputeSummary() {
	s.Total = len(s.Scenarios)
	s.Passed, s.Failed, s.Skipped, s.Flaky = 0, 0, 0, 0

	for i := range s.Scenarios {
		sc := &s.Scenarios[i]
		switch sc.Status {
		case OutcomePassed:
			s.Passed++
		case OutcomeFailed:
			s.Failed++
		case OutcomeSkipped:
			s.Skipped++
		}
		if sc.Flaky() {
			s.Flaky++
		}
	}
}

// Success returns true if no scenario failed and at least one ran
func (s *SuiteResult) Success() bool {
	for _, sc := range s.Scenarios {
		if !sc.Status.IsSuccess() {
			return false
		}
	}
	return len(s.Scenarios) > 0
}
