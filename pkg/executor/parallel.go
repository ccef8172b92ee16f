package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/devicelab-dev/selenium-runner/pkg/core"
	"github.com/devicelab-dev/selenium-runner/pkg/logger"
	"github.com/devicelab-dev/selenium-runner/pkg/report"
	"github.com/devicelab-dev/selenium-runner/pkg/session"
)

// RunResult contains the outcome of a test run.
type RunResult struct {
	core.SuiteResult
	Status    report.Status
	ReportDir string
}

// workItem is a descriptor and its index in the original list.
type workItem struct {
	desc  core.Descriptor
	index int
}

// RunAll executes descriptors on a fixed pool of workers pulling from one queue.
// Unknown scenario names fail the run before any browser starts. Once ctx is done,
// queued descriptors are reported as skipped.
func (r *Runner) RunAll(ctx context.Context, descs []core.Descriptor) (*RunResult, error) {
	names := make([]string, len(descs))
	for i, d := range descs {
		names[i] = d.Name
	}
	if missing := r.config.Registry.Missing(names); len(missing) > 0 {
		return nil, core.ErrUnknownScenario.
			WithMessage(fmt.Sprintf("unknown scenarios: %s (registered: %s)",
				strings.Join(missing, ", "), strings.Join(r.config.Registry.Names(), ", "))).
			WithDetails(map[string]interface{}{"missing": missing})
	}

	r.reporter.Register(descs)
	r.reporter.Start()
	r.config.Metrics.RunStarted()
	startTime := time.Now()

	queue := make(chan workItem, len(descs))
	for i, d := range descs {
		queue <- workItem{desc: d, index: i}
	}
	close(queue)

	workers := r.config.Parallelism
	if workers > len(descs) {
		workers = len(descs)
	}
	logger.Info("running %d scenarios on %d workers", len(descs), workers)

	// Each index is written by exactly one worker.
	results := make([]core.ScenarioResult, len(descs))
	g, gctx := errgroup.WithContext(ctx)
	for w := 1; w <= workers; w++ {
		worker := session.WorkerID(w)
		g.Go(func() error {
			for item := range queue {
				if gctx.Err() != nil {
					results[item.index] = r.skip(item.desc, worker, "run cancelled")
					continue
				}
				res := r.RunOn(gctx, worker, item.desc)
				results[item.index] = res
				if err := fatalError(res); err != nil {
					return err
				}
			}
			return nil
		})
	}
	runErr := g.Wait()

	// A fatal failure stops its worker early; whatever it left queued never ran.
	for item := range queue {
		results[item.index] = r.skip(item.desc, 0, "run aborted")
	}

	result := &RunResult{ReportDir: r.reporter.Dir()}
	result.RunID = r.reporter.RunID()
	result.StartTime = startTime
	result.Duration = time.Since(startTime)
	result.Scenarios = results
	result.ComputeSummary()
	result.Status = runStatus(&result.SuiteResult)

	r.config.Metrics.RunFinished()
	var errs *multierror.Error
	if runErr != nil {
		errs = multierror.Append(errs, runErr)
	}
	if err := r.reporter.End(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("finish report: %w", err))
	}
	if err := r.config.Metrics.Push(); err != nil {
		logger.Warn("%v", err)
	}
	return result, errs.ErrorOrNil()
}

// skip records a descriptor that never ran.
func (r *Runner) skip(d core.Descriptor, worker session.WorkerID, reason string) core.ScenarioResult {
	r.reporter.CompleteScenario(d.Key(), report.StatusSkipped, reason)
	return core.ScenarioResult{
		Descriptor: d.Clone(),
		Worker:     int(worker),
		Status:     core.OutcomeSkipped,
		Error:      reason,
		StartTime:  time.Now(),
	}
}

// fatalError returns the error of a last attempt that must stop the whole run.
func fatalError(res core.ScenarioResult) error {
	if len(res.Attempts) == 0 {
		return nil
	}
	last := res.Attempts[len(res.Attempts)-1]
	if last.Category != core.ErrCategoryContext {
		return nil
	}
	return core.NewExecutionError(core.ErrCategoryContext, "run_aborted",
		fmt.Sprintf("%s: %s", res.Descriptor.Key(), last.Error))
}
