package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/selenium-runner/pkg/capture"
	"github.com/devicelab-dev/selenium-runner/pkg/core"
	"github.com/devicelab-dev/selenium-runner/pkg/driver/mock"
	"github.com/devicelab-dev/selenium-runner/pkg/report"
	"github.com/devicelab-dev/selenium-runner/pkg/retry"
	"github.com/devicelab-dev/selenium-runner/pkg/scenario"
	"github.com/devicelab-dev/selenium-runner/pkg/session"
)

// script returns its errors in order, one per call; nil once exhausted.
type script struct {
	mu    sync.Mutex
	errs  []error
	calls int
}

func (s *script) next() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

func (s *script) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type harness struct {
	reporter *report.Reporter
	pool     *mock.Pool
	registry *scenario.Registry
	shots    string
}

func newHarness(t *testing.T, cfg mock.Config) *harness {
	t.Helper()
	rep, err := report.New(report.Options{OutputDir: t.TempDir(), SkipHTML: true, SkipAllure: true})
	require.NoError(t, err)
	return &harness{
		reporter: rep,
		pool:     mock.NewPool(cfg),
		registry: scenario.NewRegistry(),
		shots:    filepath.Join(t.TempDir(), "screenshots"),
	}
}

func (h *harness) runner(t *testing.T, limit, parallel int) *Runner {
	t.Helper()
	r, err := New(RunnerConfig{
		Registry:    h.registry,
		Sessions:    session.NewManager(h.pool.Factory(), h.reporter),
		Capturer:    capture.New(h.shots),
		Retry:       retry.New(limit),
		Parallelism: parallel,
	})
	require.NoError(t, err)
	return r
}

func (h *harness) register(t *testing.T, name string, s *script) {
	t.Helper()
	require.NoError(t, h.registry.RegisterFunc(name, func(context.Context, *session.Session, map[string]string) error {
		return s.next()
	}))
}

// artifactsBySeverity counts the screenshots attached across the scenario's attempts.
func (h *harness) artifactsBySeverity(t *testing.T, res core.ScenarioResult) map[core.Severity]int {
	t.Helper()
	counts := make(map[core.Severity]int)
	for _, a := range res.Attempts {
		e, ok := h.reporter.Entry(a.EntryID)
		require.True(t, ok, "entry %s", a.EntryID)
		for _, l := range e.Detail().Logs {
			if l.Artifact != nil {
				counts[l.Severity]++
			}
		}
	}
	return counts
}

func (h *harness) severities(res core.ScenarioResult) map[core.Severity]int {
	counts := make(map[core.Severity]int)
	for _, a := range res.Attempts {
		if e, ok := h.reporter.Entry(a.EntryID); ok {
			d := e.Detail()
			for _, l := range d.Logs {
				counts[l.Severity]++
			}
		}
	}
	return counts
}

var errAssert = core.ErrScenarioFailed.WithMessage("cart total did not match")

func TestRunPassesAfterRetries(t *testing.T) {
	h := newHarness(t, mock.Config{})
	s := &script{errs: []error{errAssert, errAssert}}
	h.register(t, "ShoppingCartTest", s)
	r := h.runner(t, 2, 1)

	d := core.Descriptor{Name: "ShoppingCartTest", Row: 1, Parameters: map[string]string{"quantity": "2"}}
	h.reporter.Register([]core.Descriptor{d})
	res := r.Run(context.Background(), d)

	assert.Equal(t, core.OutcomePassed, res.Status)
	require.Len(t, res.Attempts, 3)
	assert.True(t, res.Attempts[0].Retried)
	assert.True(t, res.Attempts[1].Retried)
	assert.False(t, res.Attempts[2].Retried)
	assert.True(t, res.Flaky())

	shots := h.artifactsBySeverity(t, res)
	assert.Equal(t, 2, shots[core.SeverityInfo], "one INFO screenshot per granted retry")
	assert.Zero(t, shots[core.SeverityFail])
	assert.Zero(t, h.severities(res)[core.SeverityFail], "no FAIL line when a retry eventually passes")
	assert.Equal(t, 1, h.severities(res)[core.SeverityPass])

	// every attempt ran on its own browser, and each was quit
	drivers := h.pool.Drivers()
	require.Len(t, drivers, 3)
	for _, drv := range drivers {
		assert.True(t, drv.Closed())
	}

	idx := h.reporter.Snapshot()
	require.Len(t, idx.Scenarios, 1)
	assert.Equal(t, report.StatusPassed, idx.Scenarios[0].Status)
	assert.Len(t, idx.Scenarios[0].AttemptHistory, 3)
}

func TestRunFailsWhenRetriesExhausted(t *testing.T) {
	h := newHarness(t, mock.Config{})
	s := &script{errs: []error{errAssert, errAssert}}
	h.register(t, "LoginTest", s)
	r := h.runner(t, 1, 1)

	d := core.Descriptor{Name: "LoginTest"}
	h.reporter.Register([]core.Descriptor{d})
	res := r.Run(context.Background(), d)

	assert.Equal(t, core.OutcomeFailed, res.Status)
	assert.Equal(t, errAssert.Error(), res.Error)
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, 2, s.Calls())

	shots := h.artifactsBySeverity(t, res)
	assert.Equal(t, 1, shots[core.SeverityInfo])
	assert.Equal(t, 1, shots[core.SeverityFail])
	assert.Equal(t, core.ErrCategoryScenario, res.Attempts[1].Category)

	files, err := os.ReadDir(h.shots)
	require.NoError(t, err)
	require.Len(t, files, 2)
	names := []string{files[0].Name(), files[1].Name()}
	assert.True(t, strings.HasPrefix(names[0], "LoginTest_attempt1_INFO_") || strings.HasPrefix(names[1], "LoginTest_attempt1_INFO_"), names)

	idx := h.reporter.Snapshot()
	assert.Equal(t, report.StatusFailed, idx.Scenarios[0].Status)
}

func TestRunWithoutRetry(t *testing.T) {
	h := newHarness(t, mock.Config{})
	s := &script{errs: []error{errors.New("plain error")}}
	h.register(t, "FooterLinkTest", s)

	res := h.runner(t, 0, 1).Run(context.Background(), core.Descriptor{Name: "FooterLinkTest"})
	assert.Equal(t, core.OutcomeFailed, res.Status)
	require.Len(t, res.Attempts, 1)
	assert.Equal(t, core.ErrCategoryScenario, res.Attempts[0].Category, "uncategorised errors are scenario failures")
	assert.Equal(t, 1, h.artifactsBySeverity(t, res)[core.SeverityFail])
}

func TestRunSkip(t *testing.T) {
	h := newHarness(t, mock.Config{})
	s := &script{errs: []error{core.Skip("no downloadable products")}}
	h.register(t, "PDFInvoiceTest", s)

	res := h.runner(t, 2, 1).Run(context.Background(), core.Descriptor{Name: "PDFInvoiceTest"})
	assert.Equal(t, core.OutcomeSkipped, res.Status)
	assert.Len(t, res.Attempts, 1, "skips are never retried")
	assert.Empty(t, res.Artifacts())
	assert.Equal(t, 1, h.severities(res)[core.SeveritySkip])
}

func TestRunRecoversPanic(t *testing.T) {
	h := newHarness(t, mock.Config{})
	require.NoError(t, h.registry.RegisterFunc("LoginTest", func(context.Context, *session.Session, map[string]string) error {
		var m map[string]int
		m["boom"]++
		return nil
	}))

	res := h.runner(t, 0, 1).Run(context.Background(), core.Descriptor{Name: "LoginTest"})
	assert.Equal(t, core.OutcomeFailed, res.Status)
	assert.Contains(t, res.Error, "scenario panicked")
	assert.True(t, h.pool.Drivers()[0].Closed(), "session released after a panic")
}

func TestRunCaptureFailureDoesNotChangeOutcome(t *testing.T) {
	h := newHarness(t, mock.Config{ScreenshotErr: errors.New("tab crashed")})
	s := &script{errs: []error{errAssert}}
	h.register(t, "LoginTest", s)

	res := h.runner(t, 1, 1).Run(context.Background(), core.Descriptor{Name: "LoginTest"})
	assert.Equal(t, core.OutcomePassed, res.Status)
	assert.Len(t, res.Attempts, 2)
	assert.Empty(t, res.Artifacts())
}

func TestRunDriverStartFailureIsRetried(t *testing.T) {
	h := newHarness(t, mock.Config{})
	h.pool.StartErr = errors.New("session not created")
	h.pool.StartFailures = 1
	s := &script{}
	h.register(t, "LoginTest", s)

	res := h.runner(t, 1, 1).Run(context.Background(), core.Descriptor{Name: "LoginTest"})
	assert.Equal(t, core.OutcomePassed, res.Status)
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, core.ErrCategoryDriver, res.Attempts[0].Category)
	assert.Equal(t, 1, s.Calls(), "body only ran once a browser was up")
}

func TestRunContextErrorIsNotRetried(t *testing.T) {
	h := newHarness(t, mock.Config{})
	s := &script{errs: []error{core.ErrNoContext}}
	h.register(t, "LoginTest", s)

	res := h.runner(t, 2, 1).Run(context.Background(), core.Descriptor{Name: "LoginTest"})
	assert.Equal(t, core.OutcomeFailed, res.Status)
	assert.Len(t, res.Attempts, 1)
	assert.Equal(t, core.ErrCategoryContext, res.Attempts[0].Category)
}

func TestRunPassesSessionThroughContext(t *testing.T) {
	h := newHarness(t, mock.Config{})
	var got *session.Session
	require.NoError(t, h.registry.RegisterFunc("LoginTest", func(ctx context.Context, s *session.Session, params map[string]string) error {
		fromCtx, err := session.From(ctx)
		if err != nil {
			return err
		}
		got = fromCtx
		if fromCtx != s {
			return fmt.Errorf("context carries another session")
		}
		params["mutated"] = "yes"
		return nil
	}))

	d := core.Descriptor{Name: "LoginTest", Parameters: map[string]string{"email": "a@b.c"}}
	r := h.runner(t, 0, 1)
	r.config.Expand = func(p map[string]string) map[string]string {
		out := map[string]string{}
		for k, v := range p {
			out[k] = strings.ToUpper(v)
		}
		return out
	}
	res := r.Run(context.Background(), d)
	require.Equal(t, core.OutcomePassed, res.Status, res.Error)
	require.NotNil(t, got)
	assert.Equal(t, session.WorkerID(1), got.Worker)
	assert.Equal(t, map[string]string{"email": "a@b.c"}, d.Parameters, "descriptor is never mutated")
}

func TestRunCancelledBeforeStart(t *testing.T) {
	h := newHarness(t, mock.Config{})
	h.register(t, "LoginTest", &script{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := h.runner(t, 1, 1).Run(ctx, core.Descriptor{Name: "LoginTest"})
	assert.Equal(t, core.OutcomeSkipped, res.Status)
	assert.Empty(t, res.Attempts)
	assert.Empty(t, h.pool.Drivers())
}

func TestRunCancelledDuringAttemptFailsWithoutRetry(t *testing.T) {
	h := newHarness(t, mock.Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	calls := 0
	require.NoError(t, h.registry.RegisterFunc("LoginTest", func(context.Context, *session.Session, map[string]string) error {
		calls++
		cancel()
		return errAssert
	}))

	res := h.runner(t, 2, 1).Run(ctx, core.Descriptor{Name: "LoginTest"})
	assert.Equal(t, core.OutcomeFailed, res.Status)
	assert.Equal(t, 1, calls)
	require.Len(t, res.Attempts, 1)
	assert.False(t, res.Attempts[0].Retried)

	sev := h.severities(res)
	assert.Equal(t, 1, sev[core.SeverityFail], "terminal failure is logged at FAIL")
	assert.Equal(t, map[core.Severity]int{core.SeverityFail: 1}, h.artifactsBySeverity(t, res))
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(RunnerConfig{})
	assert.Error(t, err)
}

func TestCaptureLabel(t *testing.T) {
	assert.Equal(t, "LoginTest_attempt1_FAIL", captureLabel(core.Descriptor{Name: "LoginTest"}, 1, core.SeverityFail))
	assert.Equal(t, "ShoppingCartTest_row2_attempt3_INFO", captureLabel(core.Descriptor{Name: "ShoppingCartTest", Row: 2}, 3, core.SeverityInfo))
}

func TestRunAttemptDurationsRecorded(t *testing.T) {
	h := newHarness(t, mock.Config{})
	require.NoError(t, h.registry.RegisterFunc("LoginTest", func(context.Context, *session.Session, map[string]string) error {
		time.Sleep(5 * time.Millisecond)
		return nil
	}))
	res := h.runner(t, 0, 1).Run(context.Background(), core.Descriptor{Name: "LoginTest"})
	require.Len(t, res.Attempts, 1)
	assert.GreaterOrEqual(t, res.Attempts[0].Duration, 5*time.Millisecond)
	assert.GreaterOrEqual(t, res.Duration, res.Attempts[0].Duration)
}
