// Package datasource reads scenario selection and test parameters from an Excel workbook.
package datasource

import (
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/devicelab-dev/selenium-runner/pkg/core"
	"github.com/devicelab-dev/selenium-runner/pkg/logger"
)

// Default workbook layout: column B holds the scenario name, column D the run flag.
const (
	DefaultNameColumn    = 1
	DefaultRunFlagColumn = 3
	DefaultEnabledToken  = "YES"
)

// Source supplies enabled scenarios and their parameter rows.
type Source interface {
	// ListEnabledScenarios returns the names whose run flag is set, in row order.
	ListEnabledScenarios(sheet string) ([]string, error)

	// LoadParameters returns one header→value map per data row of the named sheet.
	LoadParameters(sheet, scenario string) ([]map[string]string, error)
}

// Option customises a Workbook.
type Option func(*Workbook)

// WithColumns overrides the zero-based scenario name and run flag columns.
func WithColumns(name, runFlag int) Option {
	return func(w *Workbook) {
		w.nameColumn = name
		w.runFlagColumn = runFlag
	}
}

// WithEnabledToken overrides the run flag value that enables a scenario (case-insensitive).
func WithEnabledToken(token string) Option {
	return func(w *Workbook) {
		w.enabledToken = token
	}
}

// Workbook is a Source backed by an .xlsx file.
type Workbook struct {
	path          string
	mu            sync.Mutex // excelize.File is not safe for concurrent reads
	file          *excelize.File
	nameColumn    int
	runFlagColumn int
	enabledToken  string
}

// Open opens the workbook at path.
func Open(path string, opts ...Option) (*Workbook, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, core.ErrWorkbookNotFound.
			WithMessage("workbook not found: " + path).
			WithCause(err)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, core.ErrWorkbookRead.
			WithMessage("could not read workbook " + path).
			WithCause(err)
	}
	w := &Workbook{
		path:          path,
		file:          f,
		nameColumn:    DefaultNameColumn,
		runFlagColumn: DefaultRunFlagColumn,
		enabledToken:  DefaultEnabledToken,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Path returns the workbook file path.
func (w *Workbook) Path() string {
	return w.path
}

// Close releases the workbook.
func (w *Workbook) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// HasSheet reports whether the workbook contains the named sheet.
func (w *Workbook) HasSheet(name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	idx, err := w.file.GetSheetIndex(name)
	return err == nil && idx >= 0
}

// Sheets returns all sheet names in workbook order.
func (w *Workbook) Sheets() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.GetSheetList()
}

func (w *Workbook) rows(sheet string) ([][]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	idx, err := w.file.GetSheetIndex(sheet)
	if err != nil || idx < 0 {
		return nil, core.ErrSheetNotFound.
			WithMessage("sheet not found: " + sheet).
			WithDetails(map[string]interface{}{"workbook": w.path, "sheet": sheet})
	}
	rows, err := w.file.GetRows(sheet)
	if err != nil {
		return nil, core.ErrWorkbookRead.
			WithMessage("could not read sheet " + sheet).
			WithCause(err)
	}
	return rows, nil
}

// ListEnabledScenarios implements Source. The header row is skipped and names are trimmed.
func (w *Workbook) ListEnabledScenarios(sheet string) ([]string, error) {
	rows, err := w.rows(sheet)
	if err != nil {
		return nil, err
	}

	var names []string
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(cell(row, w.runFlagColumn)), w.enabledToken) {
			continue
		}
		name := strings.TrimSpace(cell(row, w.nameColumn))
		if name == "" {
			logger.Warn("sheet %s row %d is enabled but has no scenario name", sheet, i+1)
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// LoadParameters implements Source. The sheet argument names the selection sheet and
// is only used for error context; parameters come from the sheet named after the scenario.
func (w *Workbook) LoadParameters(sheet, scenario string) ([]map[string]string, error) {
	rows, err := w.rows(scenario)
	if err != nil {
		var ee *core.ExecutionError
		if errors.As(err, &ee) {
			return nil, ee.WithDetails(map[string]interface{}{"selectionSheet": sheet})
		}
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}

	var params []map[string]string
	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		values := make(map[string]string, len(header))
		for col, key := range header {
			if key == "" {
				continue
			}
			values[key] = cell(row, col)
		}
		params = append(params, values)
	}
	return params, nil
}

// Descriptors expands the enabled scenarios of sheet into one descriptor per parameter row.
// A scenario without its own sheet yields a single descriptor with no parameters; one whose
// sheet has only a header yields none.
func Descriptors(src Source, sheet string) ([]core.Descriptor, error) {
	names, err := src.ListEnabledScenarios(sheet)
	if err != nil {
		return nil, err
	}

	var out []core.Descriptor
	for _, name := range names {
		params, err := src.LoadParameters(sheet, name)
		if errors.Is(err, core.ErrSheetNotFound) {
			out = append(out, core.Descriptor{Name: name, Parameters: map[string]string{}})
			continue
		}
		if err != nil {
			return nil, err
		}
		if len(params) == 0 {
			logger.Warn("scenario %s has a data sheet without rows, nothing to run", name)
			continue
		}
		for i, p := range params {
			out = append(out, core.Descriptor{Name: name, Parameters: p, Row: i + 1})
		}
	}
	return out, nil
}

// cell returns the value at col, "" when the row is shorter.
func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
