// Package validator validates the test data workbook before execution.
// It reads the selection sheet and every data sheet upfront, checks them against the
// scenario registry and collects all problems instead of stopping at the first.
package validator

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/devicelab-dev/selenium-runner/pkg/core"
	"github.com/devicelab-dev/selenium-runner/pkg/datasource"
	"github.com/devicelab-dev/selenium-runner/pkg/logger"
	"github.com/devicelab-dev/selenium-runner/pkg/scenario"
)

// ValidationError represents a validation error with context.
type ValidationError struct {
	Sheet   string
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Sheet, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// Result contains the validation result.
type Result struct {
	// Descriptors lists the runs the workbook selects, in row order.
	Descriptors []core.Descriptor
	// Errors contains all validation errors found.
	Errors []error
}

// IsValid returns true if there are no validation errors.
func (r *Result) IsValid() bool {
	return len(r.Errors) == 0
}

// Err returns every validation error as one error, nil when valid.
func (r *Result) Err() error {
	if r.IsValid() {
		return nil
	}
	var merr *multierror.Error
	for _, err := range r.Errors {
		merr = multierror.Append(merr, err)
	}
	return merr
}

func (r *Result) add(sheet, msg string, cause error) {
	r.Errors = append(r.Errors, &ValidationError{Sheet: sheet, Message: msg, Cause: cause})
}

// Validator checks a workbook against registered scenarios.
type Validator struct {
	registry *scenario.Registry
	columns  map[string][]string
	only     map[string]bool
}

// New creates a new Validator. columns maps a scenario name to the data sheet headers
// it needs. When only is not empty, scenarios outside it are ignored (case-insensitive).
func New(registry *scenario.Registry, columns map[string][]string, only []string) *Validator {
	v := &Validator{registry: registry, columns: columns}
	if len(only) > 0 {
		v.only = make(map[string]bool, len(only))
		for _, name := range only {
			v.only[strings.ToLower(strings.TrimSpace(name))] = true
		}
	}
	return v
}

// Validate reads the enabled scenarios of sheet and their parameter rows.
func (v *Validator) Validate(src datasource.Source, sheet string) *Result {
	result := &Result{}

	names, err := src.ListEnabledScenarios(sheet)
	if err != nil {
		result.add(sheet, "cannot read scenario selection", err)
		return result
	}

	seen := make(map[string]bool)
	for _, name := range names {
		key := strings.ToLower(name)
		if v.only != nil && !v.only[key] {
			continue
		}
		if seen[key] {
			result.add(sheet, fmt.Sprintf("scenario %s is enabled more than once", name), nil)
			continue
		}
		seen[key] = true

		if v.registry != nil && !v.registry.Has(name) {
			result.add(sheet, fmt.Sprintf("unknown scenario %s", name),
				core.ErrUnknownScenario.WithMessage(fmt.Sprintf("unknown scenario %s (registered: %s)",
					name, strings.Join(v.registry.Names(), ", "))))
			continue
		}

		v.validateScenario(src, sheet, name, result)
	}

	return result
}

// validateScenario loads the data sheet of name and checks its header.
func (v *Validator) validateScenario(src datasource.Source, sheet, name string, result *Result) {
	required := v.requiredColumns(name)

	params, err := src.LoadParameters(sheet, name)
	if errors.Is(err, core.ErrSheetNotFound) {
		if len(required) > 0 {
			result.add(name, fmt.Sprintf("data sheet is missing, needs columns %s", strings.Join(required, ", ")), err)
			return
		}
		result.Descriptors = append(result.Descriptors, core.Descriptor{Name: name, Parameters: map[string]string{}})
		return
	}
	if err != nil {
		result.add(name, "cannot read data sheet", err)
		return
	}
	if len(params) == 0 {
		logger.Warn("scenario %s has a data sheet without rows, nothing to run", name)
		return
	}

	if missing := missingColumns(params[0], required); len(missing) > 0 {
		result.add(name, fmt.Sprintf("missing columns %s", strings.Join(missing, ", ")), nil)
		return
	}
	for i, p := range params {
		result.Descriptors = append(result.Descriptors, core.Descriptor{Name: name, Parameters: p, Row: i + 1})
	}
}

// requiredColumns looks name up case-insensitively.
func (v *Validator) requiredColumns(name string) []string {
	if cols, ok := v.columns[name]; ok {
		return cols
	}
	for k, cols := range v.columns {
		if strings.EqualFold(k, name) {
			return cols
		}
	}
	return nil
}

// missingColumns returns the required headers absent from row, sorted.
func missingColumns(row map[string]string, required []string) []string {
	var missing []string
	for _, col := range required {
		if _, ok := row[col]; !ok {
			missing = append(missing, col)
		}
	}
	sort.Strings(missing)
	return missing
}
