package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/devicelab-dev/selenium-runner/pkg/core"
)

// Entry is the append-only log of one scenario attempt.
// It is owned by the worker that started it; mu only protects against late readers.
type Entry struct {
	mu        sync.Mutex
	detail    EntryDetail
	path      string
	assetsDir string
	reporter  *Reporter
	finished  bool
}

// ID returns the entry ID (also the name of its data file and assets dir).
func (e *Entry) ID() string {
	return e.detail.ID
}

// ScenarioID returns the descriptor key the entry belongs to.
func (e *Entry) ScenarioID() string {
	return e.detail.ScenarioID
}

// AssetsDir returns the absolute assets directory of the entry.
func (e *Entry) AssetsDir() string {
	return e.assetsDir
}

// Log appends a line with an optional artifact. An empty artifact is not attached.
func (e *Entry) Log(sev core.Severity, msg string, artifact core.ArtifactRef) {
	e.append(LogLine{Severity: sev, Message: msg}, artifact)
}

// LogError appends a line carrying err's message.
func (e *Entry) LogError(sev core.Severity, msg string, err error) {
	line := LogLine{Severity: sev, Message: msg}
	if err != nil {
		line.Error = err.Error()
	}
	e.append(line, core.ArtifactRef{})
}

func (e *Entry) append(line LogLine, artifact core.ArtifactRef) {
	e.mu.Lock()
	defer e.mu.Unlock()

	line.Time = time.Now()
	if !artifact.IsEmpty() {
		a := artifact
		line.Artifact = &a
	}
	e.detail.Logs = append(e.detail.Logs, line)
	_ = e.flushLocked()
}

// SaveScreenshot stores PNG data in the entry's assets dir and returns its report-relative path.
func (e *Entry) SaveScreenshot(name string, data []byte) (string, error) {
	if err := ensureDir(e.assetsDir); err != nil {
		return "", err
	}
	absPath := filepath.Join(e.assetsDir, name)
	if err := os.WriteFile(absPath, data, 0o644); err != nil {
		return "", err
	}
	return filepath.Join("assets", e.detail.ID, name), nil
}

// Finish records the terminal status of the attempt. Only the first call has an effect.
func (e *Entry) Finish(status Status, errMsg string) {
	e.mu.Lock()
	if e.finished {
		e.mu.Unlock()
		return
	}
	e.finished = true

	now := time.Now()
	duration := now.Sub(e.detail.StartTime).Milliseconds()
	e.detail.EndTime = &now
	e.detail.Duration = &duration
	e.detail.Status = status
	e.detail.Error = errMsg
	artifacts := len(e.detail.Artifacts())
	_ = e.flushLocked()
	scenarioID, id := e.detail.ScenarioID, e.detail.ID
	e.mu.Unlock()

	if e.reporter != nil {
		e.reporter.finishAttempt(scenarioID, id, status, duration, errMsg, artifacts)
	}
}

// Finished reports whether Finish was called.
func (e *Entry) Finished() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.finished
}

// Status returns the current status of the attempt.
func (e *Entry) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.detail.Status
}

// Detail returns a copy of the entry detail.
func (e *Entry) Detail() EntryDetail {
	e.mu.Lock()
	defer e.mu.Unlock()

	d := e.detail
	d.Logs = append([]LogLine(nil), e.detail.Logs...)
	return d
}

// Flush writes the entry file.
func (e *Entry) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flushLocked()
}

func (e *Entry) flushLocked() error {
	if err := atomicWriteJSON(e.path, &e.detail); err != nil {
		return fmt.Errorf("write entry %s: %w", e.detail.ID, err)
	}
	return nil
}
