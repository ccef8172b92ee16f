// Package executor runs scenario descriptors on browser sessions, owning the retry loop.
package executor

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/devicelab-dev/selenium-runner/pkg/capture"
	"github.com/devicelab-dev/selenium-runner/pkg/core"
	"github.com/devicelab-dev/selenium-runner/pkg/logger"
	"github.com/devicelab-dev/selenium-runner/pkg/metrics"
	"github.com/devicelab-dev/selenium-runner/pkg/report"
	"github.com/devicelab-dev/selenium-runner/pkg/retry"
	"github.com/devicelab-dev/selenium-runner/pkg/scenario"
	"github.com/devicelab-dev/selenium-runner/pkg/session"
)

// RunnerConfig configures the scenario runner.
type RunnerConfig struct {
	Registry    *scenario.Registry
	Sessions    *session.Manager
	Capturer    *capture.Capturer
	Retry       retry.Policy
	Parallelism int               // Worker count (values below 1 run sequentially)
	Metrics     *metrics.Recorder // Optional

	// Expand rewrites parameter values before they reach the scenario body
	Expand func(map[string]string) map[string]string

	// Live progress callbacks, called from worker goroutines
	OnScenarioStart func(worker int, d core.Descriptor)
	OnAttemptEnd    func(worker int, d core.Descriptor, a core.AttemptResult)
	OnScenarioEnd   func(res core.ScenarioResult)
}

// Runner orchestrates scenario execution.
type Runner struct {
	config   RunnerConfig
	reporter *report.Reporter
}

// New creates a Runner. Registry, Sessions and Capturer are required.
func New(cfg RunnerConfig) (*Runner, error) {
	switch {
	case cfg.Registry == nil:
		return nil, fmt.Errorf("executor: scenario registry is required")
	case cfg.Sessions == nil:
		return nil, fmt.Errorf("executor: session manager is required")
	case cfg.Capturer == nil:
		return nil, fmt.Errorf("executor: capturer is required")
	}
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}
	return &Runner{config: cfg, reporter: cfg.Sessions.Reporter()}, nil
}

// Run executes one descriptor on worker 1. See RunOn.
func (r *Runner) Run(ctx context.Context, d core.Descriptor) core.ScenarioResult {
	return r.RunOn(ctx, 1, d)
}

// RunOn executes one descriptor on worker, retrying failed attempts as the policy allows.
// Attempts run strictly one after another; each gets a fresh session that is released
// before the next starts. The last attempt's outcome is authoritative.
func (r *Runner) RunOn(ctx context.Context, worker session.WorkerID, d core.Descriptor) core.ScenarioResult {
	d = d.Clone()
	res := core.ScenarioResult{
		Descriptor: d,
		Worker:     int(worker),
		Status:     core.OutcomePending,
		StartTime:  time.Now(),
	}
	if r.config.OnScenarioStart != nil {
		r.config.OnScenarioStart(int(worker), d)
	}
	r.config.Metrics.WorkerBusy(1)
	defer r.config.Metrics.WorkerBusy(-1)

	params := d.Parameters
	if r.config.Expand != nil {
		params = r.config.Expand(params)
	}

	state := r.config.Retry.NewState()
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if attempt == 1 {
				res.Status = core.OutcomeSkipped
				res.Error = "run cancelled"
			} else {
				res.Error += " (retry cancelled)"
			}
			break
		}

		a, again := r.attempt(ctx, worker, d, attempt, params, state)
		res.Attempts = append(res.Attempts, a)
		res.Status = a.Status
		res.Error = a.Error
		if r.config.OnAttemptEnd != nil {
			r.config.OnAttemptEnd(int(worker), d, a)
		}
		if !again {
			break
		}
	}
	res.Duration = time.Since(res.StartTime)

	r.reporter.CompleteScenario(d.Key(), report.FromOutcome(res.Status), res.Error)
	r.config.Metrics.Scenario(d.Name, res.Status.String(), res.Duration)
	logger.Banner(fmt.Sprintf("%s %s", d.Key(), bannerWord(res.Status)))

	if r.config.OnScenarioEnd != nil {
		r.config.OnScenarioEnd(res)
	}
	return res
}

// attempt runs one attempt and reports whether another one was granted.
func (r *Runner) attempt(ctx context.Context, worker session.WorkerID, d core.Descriptor, n int, params map[string]string, state *retry.State) (a core.AttemptResult, again bool) {
	a = core.AttemptResult{Attempt: n, Status: core.OutcomeStarted, StartTime: time.Now()}
	defer func() {
		a.Duration = time.Since(a.StartTime)
		a.Retried = again
		r.config.Metrics.Attempt(d.Name, a.Status.String())
		if again {
			r.config.Metrics.Retry(d.Name)
		}
	}()

	sess, err := r.config.Sessions.Acquire(ctx, worker, d, n)
	if err != nil {
		// Acquire already recorded the failed entry when the browser would not start
		a.Status = core.OutcomeFailed
		a.Category = core.CategoryOf(err)
		a.Error = err.Error()
		log := logger.WithScenario(d.Key(), int(worker))
		log.Error().Err(err).Int("attempt", n).Msg("could not acquire session")
		if a.Category.IsFatal() || ctx.Err() != nil {
			return a, false
		}
		return a, r.config.Retry.ShouldRetry(state)
	}
	a.EntryID = sess.Entry.ID()
	defer func() {
		if rerr := r.config.Sessions.Release(worker); rerr != nil {
			sess.Log.Warn().Err(rerr).Msg("session teardown failed")
		}
	}()

	logger.Banner(fmt.Sprintf("%s STARTED", d.Key()))
	sess.Entry.Log(core.SeverityInfo, fmt.Sprintf("%s attempt %d STARTED", d.Key(), n), core.ArtifactRef{})

	err = invoke(ctx, r.config.Registry, sess, d.Name, params)
	switch {
	case err == nil:
		a.Status = core.OutcomePassed
		sess.Entry.Log(core.SeverityPass, d.Key()+" PASSED", core.ArtifactRef{})
		sess.Entry.Finish(report.StatusPassed, "")

	case core.IsSkip(err):
		a.Status = core.OutcomeSkipped
		a.Error = err.Error()
		sess.Entry.LogError(core.SeveritySkip, d.Key()+" SKIPPED", err)
		sess.Entry.Finish(report.StatusSkipped, a.Error)

	default:
		a.Status = core.OutcomeFailed
		a.Category = core.CategoryOf(err)
		if a.Category == core.ErrCategoryNone {
			a.Category = core.ErrCategoryScenario
		}
		a.Error = err.Error()

		again = !a.Category.IsFatal() && ctx.Err() == nil && r.config.Retry.ShouldRetry(state)
		sev := core.SeverityFail
		msg := d.Key() + " FAILED"
		if again {
			sev = core.SeverityInfo
			msg = fmt.Sprintf("%s attempt %d failed, retrying (%d left)", d.Key(), n, state.Remaining())
		}
		sess.Entry.LogError(sev, msg, err)
		sess.Log.Error().Err(err).Bool("retry", again).Msg("attempt failed")
		r.config.Capturer.Capture(sess, sev, captureLabel(d, n, sev))
		sess.Entry.Finish(report.StatusFailed, a.Error)
	}

	detail := sess.Entry.Detail()
	a.Artifacts = detail.Artifacts()
	return a, again
}

// invoke runs the registered body, turning a panic into a scenario failure.
func invoke(ctx context.Context, reg *scenario.Registry, sess *session.Session, name string, params map[string]string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = core.ErrScenarioPanic.
				WithMessage(fmt.Sprintf("scenario panicked: %v", rec)).
				WithDetails(map[string]interface{}{"stack": string(debug.Stack())})
		}
	}()

	sc, err := reg.New(name)
	if err != nil {
		return err
	}
	return sc.Run(session.With(ctx, sess), sess, copyParams(params))
}

func copyParams(params map[string]string) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}

// captureLabel names a failure screenshot, e.g. ShoppingCartTest_row2_attempt1_FAIL.
func captureLabel(d core.Descriptor, attempt int, sev core.Severity) string {
	base := d.Name
	if d.Row > 0 {
		base = fmt.Sprintf("%s_row%d", base, d.Row)
	}
	return fmt.Sprintf("%s_attempt%d_%s", base, attempt, strings.ToUpper(string(sev)))
}

func bannerWord(o core.Outcome) string {
	switch o {
	case core.OutcomePassed:
		return "PASSED"
	case core.OutcomeFailed:
		return "FAILED"
	case core.OutcomeSkipped:
		return "SKIPPED"
	default:
		return strings.ToUpper(o.String())
	}
}
