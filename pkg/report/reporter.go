package report

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devicelab-dev/selenium-runner/pkg/core"
	"github.com/devicelab-dev/selenium-runner/pkg/logger"
)

// Options configures a Reporter.
type Options struct {
	OutputDir   string
	Title       string
	Browser     Browser
	Runner      RunnerInfo
	Environment map[string]string
	SkipHTML    bool // do not render report.html on End
	SkipAllure  bool // do not write allure-results on End
	EmbedAssets bool // inline screenshots in report.html
}

// Reporter is the shared report aggregator.
// Workers start entries concurrently; the index and the entry table are guarded by mu.
// Each Entry is then owned by the worker that started it.
type Reporter struct {
	mu        sync.Mutex
	opts      Options
	outputDir string
	path      string
	index     *Index
	entries   map[string]*Entry
	ended     bool
}

// New creates the report directory layout and an empty index.
func New(opts Options) (*Reporter, error) {
	if opts.OutputDir == "" {
		return nil, fmt.Errorf("report output dir is required")
	}
	if opts.Title == "" {
		opts.Title = "Test Report"
	}
	for _, dir := range []string{opts.OutputDir, filepath.Join(opts.OutputDir, "entries"), filepath.Join(opts.OutputDir, "assets")} {
		if err := ensureDir(dir); err != nil {
			return nil, fmt.Errorf("create report dir %s: %w", dir, err)
		}
	}

	now := time.Now()
	r := &Reporter{
		opts:      opts,
		outputDir: opts.OutputDir,
		path:      filepath.Join(opts.OutputDir, "report.json"),
		entries:   make(map[string]*Entry),
		index: &Index{
			Version:     Version,
			RunID:       uuid.New().String(),
			Title:       opts.Title,
			Status:      StatusPending,
			StartTime:   now,
			LastUpdated: now,
			Browser:     opts.Browser,
			Runner:      opts.Runner,
			Environment: opts.Environment,
			Scenarios:   []ScenarioEntry{},
		},
	}
	return r, nil
}

// Dir returns the report output directory.
func (r *Reporter) Dir() string {
	return r.outputDir
}

// RunID returns the unique ID of this run.
func (r *Reporter) RunID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.index.RunID
}

// Register adds pending index entries for descriptors, in order.
func (r *Reporter) Register(descs []core.Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range descs {
		r.scenarioLocked(d)
	}
	r.flushLocked()
}

// Start marks the run as started.
func (r *Reporter) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.index.Status = StatusRunning
	r.index.StartTime = now
	r.flushLocked()
}

// StartTest opens the log entry for one attempt of a descriptor.
func (r *Reporter) StartTest(d core.Descriptor, attempt, worker int) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := fmt.Sprintf("%s-a%d", slug(d.Key()), attempt)
	for n := 2; r.entries[id] != nil; n++ {
		id = fmt.Sprintf("%s-a%d-%d", slug(d.Key()), attempt, n)
	}

	now := time.Now()
	e := &Entry{
		reporter:  r,
		path:      filepath.Join(r.outputDir, "entries", id+".json"),
		assetsDir: filepath.Join(r.outputDir, "assets", id),
		detail: EntryDetail{
			ID:         id,
			ScenarioID: d.Key(),
			Name:       d.Name,
			Row:        d.Row,
			Attempt:    attempt,
			Worker:     worker,
			Parameters: d.Clone().Parameters,
			StartTime:  now,
			Status:     StatusRunning,
			Logs:       []LogLine{},
		},
	}
	if err := ensureDir(e.assetsDir); err != nil {
		return nil, fmt.Errorf("create assets dir for %s: %w", id, err)
	}
	if err := e.flushLocked(); err != nil {
		return nil, err
	}
	r.entries[id] = e

	sc := r.scenarioLocked(d)
	sc.Status = StatusRunning
	sc.Worker = worker
	sc.Attempts = attempt
	if sc.StartTime == nil {
		sc.StartTime = &now
	}
	sc.AttemptHistory = append(sc.AttemptHistory, AttemptEntry{
		Attempt:  attempt,
		EntryID:  id,
		DataFile: filepath.Join("entries", id+".json"),
		Status:   StatusRunning,
	})
	sc.UpdateSeq++
	r.flushLocked()
	return e, nil
}

// Entry returns a started entry by ID.
func (r *Reporter) Entry(id string) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	return e, ok
}

// finishAttempt records the terminal state of one attempt in the index.
func (r *Reporter) finishAttempt(scenarioID, entryID string, status Status, duration int64, errMsg string, artifacts int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.index.Scenarios {
		sc := &r.index.Scenarios[i]
		if sc.ID != scenarioID {
			continue
		}
		for j := range sc.AttemptHistory {
			a := &sc.AttemptHistory[j]
			if a.EntryID == entryID {
				a.Status = status
				a.Duration = duration
				a.Error = errMsg
				a.Artifacts = artifacts
			}
		}
		sc.UpdateSeq++
		break
	}
	r.flushLocked()
}

// CompleteScenario records the authoritative outcome of a descriptor.
func (r *Reporter) CompleteScenario(scenarioID string, status Status, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.index.Scenarios {
		sc := &r.index.Scenarios[i]
		if sc.ID != scenarioID {
			continue
		}
		now := time.Now()
		sc.Status = status
		sc.EndTime = &now
		if sc.StartTime != nil {
			d := now.Sub(*sc.StartTime).Milliseconds()
			sc.Duration = &d
		}
		if errMsg != "" {
			msg := errMsg
			sc.Error = &msg
		} else {
			sc.Error = nil
		}
		sc.UpdateSeq++
		break
	}
	r.flushLocked()
}

// Flush writes report.json.
func (r *Reporter) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushLocked()
}

// End marks the run as complete, flushes every entry and generates HTML and Allure output.
func (r *Reporter) End() error {
	r.mu.Lock()
	if r.ended {
		r.mu.Unlock()
		return nil
	}
	r.ended = true
	now := time.Now()
	r.index.EndTime = &now
	r.index.Status = r.computeRunStatus()
	entries := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	err := r.flushLocked()
	r.mu.Unlock()

	for _, e := range entries {
		if ferr := e.Flush(); ferr != nil {
			logger.Warn("flush entry %s: %v", e.ID(), ferr)
		}
	}
	if err != nil {
		return err
	}

	if !r.opts.SkipHTML {
		if err := GenerateHTML(r.outputDir, HTMLConfig{Title: r.opts.Title, EmbedAssets: r.opts.EmbedAssets}); err != nil {
			return fmt.Errorf("generate html: %w", err)
		}
	}
	if !r.opts.SkipAllure {
		if err := GenerateAllure(r.outputDir); err != nil {
			return fmt.Errorf("generate allure: %w", err)
		}
	}
	return nil
}

// Snapshot returns a deep-enough copy of the index for reading.
func (r *Reporter) Snapshot() Index {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := *r.index
	idx.Scenarios = make([]ScenarioEntry, len(r.index.Scenarios))
	for i, sc := range r.index.Scenarios {
		sc.AttemptHistory = append([]AttemptEntry(nil), sc.AttemptHistory...)
		idx.Scenarios[i] = sc
	}
	return idx
}

// scenarioLocked returns the index entry for d, appending a pending one if needed.
func (r *Reporter) scenarioLocked(d core.Descriptor) *ScenarioEntry {
	key := d.Key()
	for i := range r.index.Scenarios {
		if r.index.Scenarios[i].ID == key {
			return &r.index.Scenarios[i]
		}
	}
	r.index.Scenarios = append(r.index.Scenarios, ScenarioEntry{
		Index:      len(r.index.Scenarios),
		ID:         key,
		Name:       d.Name,
		Row:        d.Row,
		Parameters: d.Clone().Parameters,
		Status:     StatusPending,
	})
	return &r.index.Scenarios[len(r.index.Scenarios)-1]
}

func (r *Reporter) flushLocked() error {
	r.index.UpdateSeq++
	r.index.LastUpdated = time.Now()
	r.index.Summary = r.computeSummary()

	if err := atomicWriteJSON(r.path, r.index); err != nil {
		logger.Error("write report index: %v", err)
		return err
	}
	return nil
}

// computeSummary calculates summary from scenario statuses.
func (r *Reporter) computeSummary() Summary {
	var s Summary
	for _, sc := range r.index.Scenarios {
		s.Total++
		switch sc.Status {
		case StatusPassed:
			s.Passed++
			if len(sc.AttemptHistory) > 1 {
				s.Flaky++
			}
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		case StatusRunning:
			s.Running++
		case StatusPending:
			s.Pending++
		}
	}
	return s
}

// computeRunStatus determines overall run status from scenarios.
func (r *Reporter) computeRunStatus() Status {
	hasFailure := false
	allComplete := true

	for _, sc := range r.index.Scenarios {
		if sc.Status == StatusFailed {
			hasFailure = true
		}
		if !sc.Status.IsTerminal() {
			allComplete = false
		}
	}

	switch {
	case hasFailure:
		return StatusFailed
	case !allComplete:
		return StatusSkipped
	default:
		return StatusPassed
	}
}
