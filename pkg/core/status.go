package core

// Outcome represents the lifecycle state of a scenario attempt
type Outcome int

const (
	OutcomePending Outcome = iota // Not yet started
	OutcomeStarted                // Attempt is running
	OutcomePassed                 // Body returned without error
	OutcomeFailed                 // Body returned an error or panicked
	OutcomeSkipped                // Body asked to be skipped, or the run was cancelled
)

// String returns the string representation of Outcome
func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeStarted:
		return "started"
	case OutcomePassed:
		return "passed"
	case OutcomeFailed:
		return "failed"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the outcome is a final state
func (o Outcome) IsTerminal() bool {
	switch o {
	case OutcomePassed, OutcomeFailed, OutcomeSkipped:
		return true
	default:
		return false
	}
}

// IsSuccess returns true if the outcome does not count as a failure
func (o Outcome) IsSuccess() bool {
	return o == OutcomePassed || o == OutcomeSkipped
}

// Severity tags a report log line
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityPass    Severity = "pass"
	SeverityFail    Severity = "fail"
	SeveritySkip    Severity = "skip"
	SeverityWarning Severity = "warning"
)

// ErrorCategory classifies the type of error for better debugging and reporting
type ErrorCategory int

const (
	ErrCategoryNone       ErrorCategory = iota // No error
	ErrCategoryDataSource                      // Workbook or sheet missing/unreadable
	ErrCategoryContext                         // Execution context misuse
	ErrCategoryScenario                        // Scenario body failure, retryable
	ErrCategoryCapture                         // Screenshot capture failure, swallowed
	ErrCategoryConfig                          // Invalid configuration, unknown scenario
	ErrCategoryDriver                          // Browser session could not be created or commanded
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryDataSource:
		return "datasource"
	case ErrCategoryContext:
		return "context"
	case ErrCategoryScenario:
		return "scenario"
	case ErrCategoryCapture:
		return "capture"
	case ErrCategoryConfig:
		return "config"
	case ErrCategoryDriver:
		return "driver"
	default:
		return "unknown"
	}
}

// IsFatal returns true for categories that abort the whole run
func (c ErrorCategory) IsFatal() bool {
	return c == ErrCategoryDataSource || c == ErrCategoryContext || c == ErrCategoryConfig
}
