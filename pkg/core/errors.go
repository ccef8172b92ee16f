package core

import (
	"errors"
	"fmt"
)

// ExecutionError represents a structured error with category and details
type ExecutionError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: sheet_not_found, context_busy, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is matches errors sharing the same code, so copies made by
// WithCause/WithMessage still match their predefined sentinel.
func (e *ExecutionError) Is(target error) bool {
	t, ok := target.(*ExecutionError)
	if !ok {
		return false
	}
	return e.Code != "" && e.Code == t.Code
}

// WithCause returns a copy of the error with the given cause
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    cause,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  msg,
		Details:  e.Details,
		Cause:    e.Cause,
	}
}

// WithDetails returns a copy of the error with additional details
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  merged,
		Cause:    e.Cause,
	}
}

// Predefined errors
var (
	// Data source errors (fatal, abort the run)
	ErrWorkbookNotFound = &ExecutionError{
		Category: ErrCategoryDataSource,
		Code:     "workbook_not_found",
		Message:  "workbook not found",
	}
	ErrSheetNotFound = &ExecutionError{
		Category: ErrCategoryDataSource,
		Code:     "sheet_not_found",
		Message:  "sheet not found",
	}
	ErrWorkbookRead = &ExecutionError{
		Category: ErrCategoryDataSource,
		Code:     "workbook_read",
		Message:  "could not read workbook",
	}

	// Execution context errors (programming errors)
	ErrNoContext = &ExecutionError{
		Category: ErrCategoryContext,
		Code:     "no_context",
		Message:  "no execution context bound to worker",
	}
	ErrContextBusy = &ExecutionError{
		Category: ErrCategoryContext,
		Code:     "context_busy",
		Message:  "worker already has a live execution context",
	}

	// Scenario errors (retryable)
	ErrScenarioFailed = &ExecutionError{
		Category: ErrCategoryScenario,
		Code:     "scenario_failed",
		Message:  "scenario failed",
	}
	ErrScenarioPanic = &ExecutionError{
		Category: ErrCategoryScenario,
		Code:     "scenario_panic",
		Message:  "scenario panicked",
	}
	ErrElementNotVisible = &ExecutionError{
		Category: ErrCategoryScenario,
		Code:     "element_not_visible",
		Message:  "element not visible",
	}
	ErrTextMismatch = &ExecutionError{
		Category: ErrCategoryScenario,
		Code:     "text_mismatch",
		Message:  "text does not match expected value",
	}
	ErrDownloadTimeout = &ExecutionError{
		Category: ErrCategoryScenario,
		Code:     "download_timeout",
		Message:  "downloaded file did not appear",
	}
	ErrSkipped = &ExecutionError{
		Category: ErrCategoryScenario,
		Code:     "skipped",
		Message:  "scenario skipped",
	}

	// Capture errors (logged, never propagated)
	ErrCaptureFailed = &ExecutionError{
		Category: ErrCategoryCapture,
		Code:     "capture_failed",
		Message:  "screenshot capture failed",
	}

	// Driver errors
	ErrDriverStart = &ExecutionError{
		Category: ErrCategoryDriver,
		Code:     "driver_start",
		Message:  "could not start browser session",
	}
	ErrDriverCommand = &ExecutionError{
		Category: ErrCategoryDriver,
		Code:     "driver_command",
		Message:  "browser command failed",
	}

	// Config errors
	ErrInvalidConfig = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_config",
		Message:  "invalid configuration",
	}
	ErrMissingRequired = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "missing_required",
		Message:  "missing required field",
	}
	ErrUnknownScenario = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "unknown_scenario",
		Message:  "no scenario registered under that name",
	}
)

// NewExecutionError creates a new ExecutionError with the given parameters
func NewExecutionError(category ErrorCategory, code, message string) *ExecutionError {
	return &ExecutionError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// Skip returns an error that marks the running scenario as skipped.
func Skip(reason string) error {
	if reason == "" {
		return ErrSkipped
	}
	return ErrSkipped.WithMessage(reason)
}

// IsSkip reports whether err carries the skip sentinel.
func IsSkip(err error) bool {
	return errors.Is(err, ErrSkipped)
}

// CategoryOf returns the category of the first ExecutionError in err's chain.
func CategoryOf(err error) ErrorCategory {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Category
	}
	return ErrCategoryNone
}

// IsCategory reports whether err belongs to the given category.
func IsCategory(err error, category ErrorCategory) bool {
	return err != nil && CategoryOf(err) == category
}
