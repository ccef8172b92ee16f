package executor

import (
	"github.com/devicelab-dev/selenium-runner/pkg/core"
	"github.com/devicelab-dev/selenium-runner/pkg/report"
)

// runStatus derives the overall run status from the scenario outcomes.
func runStatus(s *core.SuiteResult) report.Status {
	switch {
	case s.Failed > 0:
		return report.StatusFailed
	case s.Total > 0 && s.Skipped == s.Total:
		return report.StatusSkipped
	default:
		return report.StatusPassed // All passed or some skipped
	}
}

// Failures returns the scenarios whose authoritative outcome is failed.
func (r *RunResult) Failures() []core.ScenarioResult {
	var out []core.ScenarioResult
	for _, sc := range r.Scenarios {
		if sc.Status == core.OutcomeFailed {
			out = append(out, sc)
		}
	}
	return out
}
