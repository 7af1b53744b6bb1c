// Package executor implements the Plan Executor: it walks a plan's stages
// in order, dispatches each stage's sub-tasks in parallel over the dispatch
// channels, and collects results back into a deterministic, dispatch-ordered
// execution context.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/taskgraph/taskgraph/internal/dispatch"
	"github.com/taskgraph/taskgraph/internal/models"
)

// DefaultSubTaskTimeout bounds how long the executor waits on any single
// waiter before recording a timeout failure for that sub-task.
const DefaultSubTaskTimeout = 120 * time.Second

// Logger receives the journal-worthy events a Plan Executor run produces.
// Any or all methods may be left unimplemented by embedding a no-op.
type Logger interface {
	LogStageStart(stageIndex int, width int)
	LogStepOutcome(outcome models.StepOutcome)
}

// NoOpLogger implements Logger by discarding every event.
type NoOpLogger struct{}

func (NoOpLogger) LogStageStart(int, int)             {}
func (NoOpLogger) LogStepOutcome(models.StepOutcome) {}

// Executor runs plans stage by stage over a set of dispatch channels.
type Executor struct {
	channels    *dispatch.Channels
	registry    *dispatch.Registry
	logger      Logger
	subTaskTimeout time.Duration
}

// Option configures an Executor at construction time.
type Option func(*Executor)

// WithLogger attaches a Logger; the default is NoOpLogger.
func WithLogger(l Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithSubTaskTimeout overrides DefaultSubTaskTimeout.
func WithSubTaskTimeout(d time.Duration) Option {
	return func(e *Executor) { e.subTaskTimeout = d }
}

// New builds an Executor bound to the given dispatch channels and waiter
// registry. The caller owns running dispatch.RunDemux over channels.Results
// with the same registry.
func New(channels *dispatch.Channels, registry *dispatch.Registry, opts ...Option) *Executor {
	e := &Executor{
		channels:       channels,
		registry:       registry,
		logger:         NoOpLogger{},
		subTaskTimeout: DefaultSubTaskTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes a plan per the stage-by-stage algorithm: within a stage all
// sub-tasks dispatch and wait in parallel; results are appended to the
// execution context in dispatch order, not completion order; the first
// failure in iteration order short-circuits remaining stages.
func (e *Executor) Run(ctx context.Context, plan *models.Plan, parentTaskID string) models.ExecutionResult {
	var executionContext []models.StepOutcome
	var journal []models.JournalEntry
	var failed bool

	for stageIdx, stage := range plan.Stages {
		if failed {
			break
		}
		if len(stage) == 0 {
			continue
		}

		journal = append(journal, models.NewJournalEntry(time.Now(), models.EventExecutionAttemptStart,
			fmt.Sprintf("stage %d: dispatching %d sub-tasks", stageIdx, len(stage))))
		e.logger.LogStageStart(stageIdx, len(stage))

		outcomes := e.runStage(ctx, stage, stageIdx, parentTaskID)
		executionContext = append(executionContext, outcomes...)

		for _, o := range outcomes {
			e.logger.LogStepOutcome(o)
			if o.Status == models.SubTaskFailed {
				failed = true
				break
			}
		}

		if failed {
			journal = append(journal, models.NewJournalEntry(time.Now(), models.EventExecutionAttemptFail,
				fmt.Sprintf("stage %d failed, remaining stages skipped", stageIdx)))
		} else {
			journal = append(journal, models.NewJournalEntry(time.Now(), models.EventExecutionAttemptOK,
				fmt.Sprintf("stage %d completed", stageIdx)))
		}
	}

	result := models.NewExecutionResult(executionContext, journal)
	return result
}

// runStage dispatches every sub-task in a stage concurrently and waits for
// all waiters to complete, returning outcomes in the stage's original
// dispatch order regardless of completion order.
func (e *Executor) runStage(ctx context.Context, stage models.Stage, stageIdx int, parentTaskID string) []models.StepOutcome {
	outcomes := make([]models.StepOutcome, len(stage))
	var wg sync.WaitGroup

	for i, def := range stage {
		subTaskID := dispatch.NewSubTaskID()
		waiter := e.registry.Register(subTaskID)

		msg := models.SubTaskMessage{
			SubTaskDefinition: def,
			SubTaskID:         subTaskID,
			ParentTaskID:      parentTaskID,
		}

		wg.Add(1)
		go func(idx int, subTaskID string, def models.SubTaskDefinition, waiter <-chan models.SubTaskResult) {
			defer wg.Done()
			outcomes[idx] = e.awaitOne(ctx, stageIdx, idx, subTaskID, def, waiter)
		}(i, subTaskID, def, waiter)

		select {
		case e.channels.SubTasks <- msg:
		case <-ctx.Done():
			e.registry.Forfeit(subTaskID)
		}
	}

	wg.Wait()
	return outcomes
}

// awaitOne blocks on a single waiter until it fires, the sub-task timeout
// elapses, or ctx is cancelled.
func (e *Executor) awaitOne(ctx context.Context, stageIdx, dispatchIdx int, subTaskID string, def models.SubTaskDefinition, waiter <-chan models.SubTaskResult) models.StepOutcome {
	timer := time.NewTimer(e.subTaskTimeout)
	defer timer.Stop()

	select {
	case result := <-waiter:
		return models.StepOutcome{
			SubTaskDefinition: def,
			SubTaskID:         subTaskID,
			Status:            result.Status,
			ProcessedResult:   result.ResultData,
			ErrorDetails:      result.ErrorDetails,
			StageIndex:        stageIdx,
			DispatchIndex:     dispatchIdx,
		}
	case <-timer.C:
		e.registry.Forfeit(subTaskID)
		return models.StepOutcome{
			SubTaskDefinition: def,
			SubTaskID:         subTaskID,
			Status:            models.SubTaskFailed,
			ErrorDetails:      fmt.Sprintf("sub-task %s timed out after %s", subTaskID, e.subTaskTimeout),
			StageIndex:        stageIdx,
			DispatchIndex:     dispatchIdx,
			TimedOut:          true,
		}
	case <-ctx.Done():
		e.registry.Forfeit(subTaskID)
		return models.StepOutcome{
			SubTaskDefinition: def,
			SubTaskID:         subTaskID,
			Status:            models.SubTaskFailed,
			ErrorDetails:      ctx.Err().Error(),
			StageIndex:        stageIdx,
			DispatchIndex:     dispatchIdx,
		}
	}
}
