// Package session binds a browser driver and a report entry to one worker for one attempt.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/devicelab-dev/selenium-runner/pkg/core"
	"github.com/devicelab-dev/selenium-runner/pkg/logger"
	"github.com/devicelab-dev/selenium-runner/pkg/report"
)

// WorkerID identifies a worker slot. Sessions are keyed by worker, never by scenario.
type WorkerID int

// Session is the execution context of one scenario attempt.
type Session struct {
	Worker     WorkerID
	Descriptor core.Descriptor
	Attempt    int
	Driver     core.Driver
	Entry      *report.Entry
	Log        zerolog.Logger
}

// Manager hands out sessions, at most one live session per worker.
type Manager struct {
	mu        sync.Mutex
	slots     map[WorkerID]*Session
	newDriver core.DriverFactory
	reporter  *report.Reporter
}

// NewManager creates a Manager that builds drivers with factory and entries with reporter.
func NewManager(factory core.DriverFactory, reporter *report.Reporter) *Manager {
	return &Manager{
		slots:     make(map[WorkerID]*Session),
		newDriver: factory,
		reporter:  reporter,
	}
}

// Reporter returns the reporter sessions log into.
func (m *Manager) Reporter() *report.Reporter {
	return m.reporter
}

// Acquire creates a fresh driver and report entry and binds them to worker.
// Acquiring a busy slot is a programming error and fails with ErrContextBusy.
func (m *Manager) Acquire(ctx context.Context, worker WorkerID, d core.Descriptor, attempt int) (*Session, error) {
	m.mu.Lock()
	if _, busy := m.slots[worker]; busy {
		m.mu.Unlock()
		return nil, core.ErrContextBusy.
			WithMessage(fmt.Sprintf("worker %d already has a live session", worker))
	}
	// reserve the slot so a concurrent Acquire on the same worker fails fast
	m.slots[worker] = nil
	m.mu.Unlock()

	sess, err := m.open(ctx, worker, d, attempt)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		delete(m.slots, worker)
		return nil, err
	}
	m.slots[worker] = sess
	return sess, nil
}

func (m *Manager) open(ctx context.Context, worker WorkerID, d core.Descriptor, attempt int) (*Session, error) {
	entry, err := m.reporter.StartTest(d, attempt, int(worker))
	if err != nil {
		return nil, err
	}

	drv, err := m.newDriver(ctx)
	if err != nil {
		startErr := core.ErrDriverStart.WithCause(err)
		entry.LogError(core.SeverityWarning, "browser session could not be started", err)
		entry.Finish(report.StatusFailed, startErr.Error())
		return nil, startErr
	}

	return &Session{
		Worker:     worker,
		Descriptor: d.Clone(),
		Attempt:    attempt,
		Driver:     drv,
		Entry:      entry,
		Log:        logger.WithScenario(d.Key(), int(worker)).With().Int("attempt", attempt).Logger(),
	}, nil
}

// Current returns the live session of worker, or ErrNoContext.
func (m *Manager) Current(worker WorkerID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess := m.slots[worker]
	if sess == nil {
		return nil, core.ErrNoContext.
			WithMessage(fmt.Sprintf("no session bound to worker %d", worker))
	}
	return sess, nil
}

// Release quits the driver, flushes the entry and unbinds the worker.
// The slot is freed even when teardown fails; the teardown errors are returned together.
func (m *Manager) Release(worker WorkerID) error {
	m.mu.Lock()
	sess := m.slots[worker]
	if sess == nil {
		m.mu.Unlock()
		return core.ErrNoContext.
			WithMessage(fmt.Sprintf("no session bound to worker %d", worker))
	}
	delete(m.slots, worker)
	m.mu.Unlock()

	var result *multierror.Error
	if err := quit(sess.Driver); err != nil {
		result = multierror.Append(result, fmt.Errorf("quit driver: %w", err))
	}
	if !sess.Entry.Finished() {
		sess.Entry.Finish(report.StatusFailed, "session released before the attempt finished")
	}
	if err := sess.Entry.Flush(); err != nil {
		result = multierror.Append(result, fmt.Errorf("flush report entry: %w", err))
	}
	return result.ErrorOrNil()
}

// quit closes the driver, turning a panic inside Quit into an error.
func quit(d core.Driver) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("driver quit panicked: %v", r)
		}
	}()
	return d.Quit()
}

// Active returns how many workers currently hold a session.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.slots {
		if s != nil {
			n++
		}
	}
	return n
}

type ctxKey struct{}

// With returns a context carrying s.
func With(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// From returns the session carried by ctx, or ErrNoContext.
func From(ctx context.Context) (*Session, error) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	if !ok || s == nil {
		return nil, core.ErrNoContext
	}
	return s, nil
}
