// Package orchestrator implements the top-level task state machine: it
// drives planning, execution, CWC refresh, and final-answer synthesis for
// one user task across the four supported modes, bounded replanning, and
// best-effort persistence of terminal state.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/taskgraph/taskgraph/internal/contextassembler"
	"github.com/taskgraph/taskgraph/internal/contextassembler/cache"
	"github.com/taskgraph/taskgraph/internal/dispatch"
	"github.com/taskgraph/taskgraph/internal/executor"
	"github.com/taskgraph/taskgraph/internal/llm"
	"github.com/taskgraph/taskgraph/internal/memory"
	"github.com/taskgraph/taskgraph/internal/models"
	"github.com/taskgraph/taskgraph/internal/planner"
)

// MaxRevisions bounds the replanning loop: up to this many revisions after
// the initial planning attempt (spec §4.7).
const MaxRevisions = 2

const taskStateFile = "task_state.json"
const journalFile = "orchestrator_journal.jsonl"

// Logger receives a best-effort callback for every journal entry the
// orchestrator appends, in addition to the durable journal file.
type Logger interface {
	LogJournalEntry(parentTaskID string, entry models.JournalEntry)
}

// NoOpLogger discards every entry.
type NoOpLogger struct{}

func (NoOpLogger) LogJournalEntry(string, models.JournalEntry) {}

// Catalog is the disposable SQLite accelerator over on-disk task state
// (internal/taskindex.Store satisfies this). Upsert is called every time
// the orchestrator persists task_state.json, so the catalog never drifts
// from the filesystem it indexes.
type Catalog interface {
	Upsert(ctx context.Context, task models.Task, taskDir string) error
}

// ContextCache is the optional Redis pre-cache in front of mega-context
// assembly (internal/contextassembler/cache.Cache satisfies this).
type ContextCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Config wires the Orchestrator to its collaborators. Channels/Registry are
// process-wide and shared across concurrent tasks; a demux goroutine
// (dispatch.RunDemux) must already be running against them. Catalog and
// ContextCache are both optional: nil disables the corresponding feature.
type Config struct {
	BaseDir          string
	KnownAgentRoles  []string
	KnownToolsByRole map[string][]string
	Planner          *planner.Manager
	Adapter          llm.Adapter
	Channels         *dispatch.Channels
	Registry         *dispatch.Registry
	Logger           Logger
	Catalog          Catalog
	ContextCache     ContextCache
	ContextCacheTTL  time.Duration
	MaxTokenLimit    int
	SubTaskTimeout   time.Duration
}

// Orchestrator runs handleUserTask invocations sequentially per task.
type Orchestrator struct {
	cfg Config
}

// New builds an Orchestrator. cfg.Logger defaults to NoOpLogger;
// cfg.MaxTokenLimit defaults to the adapter's max context tokens when zero.
func New(cfg Config) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = NoOpLogger{}
	}
	return &Orchestrator{cfg: cfg}
}

// Request is the handleUserTask input (spec §6).
type Request struct {
	UserTaskString string
	UploadedFiles  []models.UploadedFile
	ParentTaskID   string
	TaskToLoad     string
	Mode           models.Mode
}

func (o *Orchestrator) taskDir(parentTaskID string) string {
	return filepath.Join(o.cfg.BaseDir, parentTaskID)
}

// HandleUserTask runs one task invocation to completion. It never panics to
// the caller: any unrecoverable internal error is caught, persisted as a
// CRITICAL_ERROR task state on a best-effort basis, and returned as a
// structured failure.
func (o *Orchestrator) HandleUserTask(ctx context.Context, req Request) (result models.HandleUserTaskResult) {
	store := memory.New(o.taskDir(req.ParentTaskID))

	defer func() {
		if r := recover(); r != nil {
			o.appendJournal(store, req.ParentTaskID, models.EventCriticalError, fmt.Sprintf("panic: %v", r))
			o.persistTaskState(ctx, store, models.Task{
				ParentTaskID:   req.ParentTaskID,
				UserTaskString: req.UserTaskString,
				Mode:           req.Mode,
				Status:         models.StatusCriticalError,
				ErrorSummary:   &models.ErrorSummary{Reason: fmt.Sprintf("critical error: %v", r)},
				UpdatedAt:      time.Now(),
			})
			result = models.HandleUserTaskResult{
				Success:      false,
				Message:      "critical error",
				OriginalTask: req.UserTaskString,
				ErrorSummary: &models.ErrorSummary{Reason: fmt.Sprintf("critical error: %v", r)},
			}
		}
	}()

	if err := store.InitializeTaskMemory(); err != nil {
		return o.criticalFailure(ctx, store, req, models.NewTaskError(models.ErrMemoryIO, err))
	}
	if err := store.WriteTaskDefinition(req.UserTaskString); err != nil {
		return o.criticalFailure(ctx, store, req, models.NewTaskError(models.ErrMemoryIO, err))
	}
	for _, f := range req.UploadedFiles {
		if _, err := store.SaveUploadedFile(f.Name, []byte(f.Content)); err != nil {
			return o.criticalFailure(ctx, store, req, models.NewTaskError(models.ErrMemoryIO, err))
		}
	}

	switch req.Mode {
	case models.ModePlanOnly:
		return o.runPlanOnly(ctx, store, req)
	case models.ModeExecuteFullPlan:
		return o.runExecuteFullPlan(ctx, store, req)
	case models.ModeExecutePlannedTask:
		return o.runExecutePlannedTask(ctx, store, req)
	case models.ModeSynthesizeOnly:
		return o.runSynthesizeOnly(ctx, store, req)
	default:
		return o.criticalFailure(ctx, store, req, models.NewTaskError(models.ErrCritical, fmt.Errorf("unknown mode %q", req.Mode)))
	}
}

func (o *Orchestrator) criticalFailure(ctx context.Context, store *memory.Store, req Request, err *models.TaskError) models.HandleUserTaskResult {
	o.appendJournal(store, req.ParentTaskID, models.EventCriticalError, err.Error())
	o.persistTaskState(ctx, store, models.Task{
		ParentTaskID:   req.ParentTaskID,
		UserTaskString: req.UserTaskString,
		Mode:           req.Mode,
		Status:         models.StatusCriticalError,
		ErrorSummary:   &models.ErrorSummary{Reason: err.Error()},
		UpdatedAt:      time.Now(),
	})
	return models.HandleUserTaskResult{
		Success:      false,
		Message:      err.Error(),
		OriginalTask: req.UserTaskString,
		ErrorSummary: &models.ErrorSummary{Reason: err.Error()},
	}
}

func (o *Orchestrator) appendJournal(store *memory.Store, parentTaskID string, event models.JournalEventType, detail string) {
	entry := models.NewJournalEntry(time.Now(), event, detail)
	o.cfg.Logger.LogJournalEntry(parentTaskID, entry)
	line, err := json.Marshal(entry)
	if err != nil {
		return
	}
	_ = store.AppendToMemory(journalFile, string(line))
}

func (o *Orchestrator) persistTaskState(ctx context.Context, store *memory.Store, task models.Task) {
	data, err := json.MarshalIndent(task, "", "  ")
	if err != nil {
		return
	}
	_ = store.OverwriteMemory(taskStateFile, string(data), memory.OverwriteOptions{IsJSON: true})
	if o.cfg.Catalog != nil {
		_ = o.cfg.Catalog.Upsert(ctx, task, store.TaskDir())
	}
}

func (o *Orchestrator) loadTaskState(store *memory.Store) (models.Task, error) {
	raw, err := store.LoadMemory(taskStateFile, memory.LoadOptions{IsJSON: true})
	if err != nil {
		return models.Task{}, err
	}
	if raw == "" {
		return models.Task{}, fmt.Errorf("orchestrator: no task state found")
	}
	var task models.Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		return models.Task{}, fmt.Errorf("orchestrator: corrupt task state: %w", err)
	}
	return task, nil
}

// assemble runs the Context Assembler, transparently consulting and
// populating o.cfg.ContextCache (if configured) behind
// spec.EnableMegaContextCache. The cache key folds in every data field of
// spec that could change the rendered string, so a stale hit is never
// served; the file loader callbacks are not part of the key.
func (o *Orchestrator) assemble(ctx context.Context, parentTaskID string, spec contextassembler.Specification) contextassembler.Result {
	spec.EnableMegaContextCache = o.cfg.ContextCache != nil
	if !spec.EnableMegaContextCache {
		return contextassembler.Assemble(spec, o.cfg.Adapter.GetTokenizer())
	}

	findings, _ := json.Marshal(spec.KeyFindings)
	chat, _ := json.Marshal(spec.ChatHistory)
	fingerprint := fmt.Sprintf("%t|%s|%s|%v|%s|%s|%s|%s|%s|%s|%s|%d|%t|%s|%d|%v|%s|%s|%s|%s",
		spec.IncludeTaskDefinition, spec.TaskDefinitionText, spec.SystemPrompt, spec.UploadedFilePaths,
		spec.OriginalUserTask, spec.CurrentProgressSummary, spec.CurrentNextObjective,
		spec.OverallExecutionSuccess, spec.RecentErrorsSummary, spec.ExecutionContext,
		findings, spec.MaxLatestKeyFindings, spec.IncludeRawContentForReferencedFindings, chat,
		spec.MaxTokenLimit, spec.PriorityOrder, spec.CustomPreamble, spec.CustomPostamble,
		spec.RecordSeparator, spec.FindingSeparator)
	key := cache.Key(parentTaskID, fingerprint)

	if cached, ok, err := o.cfg.ContextCache.Get(ctx, key); err == nil && ok {
		return contextassembler.Result{Success: true, ContextString: cached, TokenCount: o.cfg.Adapter.GetTokenizer()(cached)}
	}

	result := contextassembler.Assemble(spec, o.cfg.Adapter.GetTokenizer())
	if result.Success {
		_ = o.cfg.ContextCache.Set(ctx, key, result.ContextString, o.cfg.ContextCacheTTL)
	}
	return result
}

// buildPlanningContext assembles the mega-context the Plan Manager's
// model-generated path receives as memoryContextForPlanning.
func (o *Orchestrator) buildPlanningContext(ctx context.Context, store *memory.Store, req Request) string {
	cwc, _ := store.LoadCWC()
	findings, _ := store.GetLatestKeyFindings(10)
	chat, _ := store.GetLatestChatHistory(10)

	limit := o.cfg.MaxTokenLimit
	if limit <= 0 {
		limit = o.cfg.Adapter.GetMaxContextTokens()
	}

	spec := contextassembler.Specification{
		IncludeTaskDefinition: true,
		TaskDefinitionText:    req.UserTaskString,
		CurrentProgressSummary: cwc.SummaryOfProgress,
		CurrentNextObjective:   cwc.NextObjective,
		KeyFindings:            findings,
		MaxLatestKeyFindings:   10,
		ChatHistory:            chat,
		MaxTokenLimit:          limit,
		PriorityOrder: []contextassembler.SectionTag{
			contextassembler.SectionTaskDefinition,
			contextassembler.SectionCurrentProgressSummary,
			contextassembler.SectionCurrentNextObjective,
			contextassembler.SectionKeyFindings,
			contextassembler.SectionChatHistory,
		},
	}
	out := o.assemble(ctx, req.ParentTaskID, spec)
	if !out.Success {
		return ""
	}
	return out.ContextString
}

func (o *Orchestrator) plan(ctx context.Context, store *memory.Store, req Request, isRevision bool, revisionAttempt int,
	failed *models.FailedStepDetail, prior *models.Plan, lastExecCtx []models.StepOutcome) planner.Result {

	findings, _ := store.GetLatestKeyFindings(10)
	errs, _ := store.GetLatestErrorsEncountered(10)
	cwc, _ := store.LoadCWC()

	lastExecText := ""
	if len(lastExecCtx) > 0 {
		var b strings.Builder
		for _, o := range lastExecCtx {
			fmt.Fprintf(&b, "- [%s] %s: %s\n", o.Status, o.NarrativeStep, o.ErrorDetails)
		}
		lastExecText = b.String()
	}

	in := planner.ModelPromptInputs{
		UserTaskString:           req.UserTaskString,
		KnownAgentRoles:          o.cfg.KnownAgentRoles,
		KnownToolsByRole:         o.cfg.KnownToolsByRole,
		MemoryContextForPlanning: o.buildPlanningContext(ctx, store, req),
		CurrentWorkingContext:    cwc.SummaryOfProgress,
		IsRevision:               isRevision,
		RevisionAttempt:          revisionAttempt,
		LastExecutionContext:     lastExecText,
		StructuredFailedStepInfo: failed,
		PreviousPlan:             prior,
		LatestKeyFindings:        findings,
		LatestErrorsEncountered:  errs,
	}
	return o.cfg.Planner.Plan(ctx, o.cfg.Adapter, in)
}

func (o *Orchestrator) runPlanOnly(ctx context.Context, store *memory.Store, req Request) models.HandleUserTaskResult {
	o.appendJournal(store, req.ParentTaskID, models.EventPlanningStarted, "")
	planResult := o.plan(ctx, store, req, false, 0, nil, nil, nil)
	if !planResult.Success {
		o.persistTaskState(ctx, store, models.Task{
			ParentTaskID: req.ParentTaskID, UserTaskString: req.UserTaskString, Mode: req.Mode,
			Status: models.StatusFailedPlanning, ErrorSummary: &models.ErrorSummary{Reason: planResult.Message}, UpdatedAt: time.Now(),
		})
		return models.HandleUserTaskResult{Success: false, Message: planResult.Message, OriginalTask: req.UserTaskString}
	}
	o.appendJournal(store, req.ParentTaskID, models.EventPlanningSucceeded, string(planResult.Source))

	task := models.Task{
		ParentTaskID: req.ParentTaskID, UserTaskString: req.UserTaskString, Mode: req.Mode,
		Status: models.StatusPlanGenerated, Plan: &planResult.Plan, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	o.persistTaskState(ctx, store, task)
	return models.HandleUserTaskResult{Success: true, OriginalTask: req.UserTaskString, Plan: &planResult.Plan}
}

func (o *Orchestrator) runExecuteFullPlan(ctx context.Context, store *memory.Store, req Request) models.HandleUserTaskResult {
	o.appendJournal(store, req.ParentTaskID, models.EventPlanningStarted, "")
	planResult := o.plan(ctx, store, req, false, 0, nil, nil, nil)
	if !planResult.Success {
		o.persistTaskState(ctx, store, models.Task{
			ParentTaskID: req.ParentTaskID, UserTaskString: req.UserTaskString, Mode: req.Mode,
			Status: models.StatusFailedPlanning, ErrorSummary: &models.ErrorSummary{Reason: planResult.Message}, UpdatedAt: time.Now(),
		})
		return models.HandleUserTaskResult{Success: false, Message: planResult.Message, OriginalTask: req.UserTaskString}
	}
	o.appendJournal(store, req.ParentTaskID, models.EventPlanningSucceeded, string(planResult.Source))

	return o.executeWithReplanning(ctx, store, req, planResult.Plan)
}

func (o *Orchestrator) runExecutePlannedTask(ctx context.Context, store *memory.Store, req Request) models.HandleUserTaskResult {
	loaded := memory.New(o.taskDir(req.TaskToLoad))
	task, err := o.loadTaskState(loaded)
	if err != nil || task.Plan == nil {
		msg := "no plan found to load"
		if err != nil {
			msg = err.Error()
		}
		o.persistTaskState(ctx, store, models.Task{
			ParentTaskID: req.ParentTaskID, UserTaskString: req.UserTaskString, Mode: req.Mode,
			Status: models.StatusFailedPlanning, ErrorSummary: &models.ErrorSummary{Reason: msg}, UpdatedAt: time.Now(),
		})
		return models.HandleUserTaskResult{Success: false, Message: msg, OriginalTask: req.UserTaskString}
	}
	return o.executeWithReplanning(ctx, store, req, *task.Plan)
}

func (o *Orchestrator) executeWithReplanning(ctx context.Context, store *memory.Store, req Request, plan models.Plan) models.HandleUserTaskResult {
	exec := executor.New(o.cfg.Channels, o.cfg.Registry, executor.WithSubTaskTimeout(o.resolveSubTaskTimeout()))

	currentPlan := plan
	var execResult models.ExecutionResult

	for attempt := 0; attempt <= MaxRevisions; attempt++ {
		o.appendJournal(store, req.ParentTaskID, models.EventExecutionAttemptStart, fmt.Sprintf("attempt %d", attempt))
		execResult = exec.Run(ctx, &currentPlan, req.ParentTaskID)
		for _, f := range execResult.UpdatesForWorkingContext.KeyFindings {
			_ = store.AddKeyFinding(f)
		}
		for _, e := range execResult.UpdatesForWorkingContext.ErrorsEncountered {
			_ = store.AddErrorEncountered(e)
		}

		if execResult.Success {
			o.appendJournal(store, req.ParentTaskID, models.EventExecutionAttemptOK, fmt.Sprintf("attempt %d", attempt))
			break
		}
		o.appendJournal(store, req.ParentTaskID, models.EventExecutionAttemptFail, execResult.FailedStepDetails.ErrorMessage)

		if attempt == MaxRevisions {
			break
		}

		o.appendJournal(store, req.ParentTaskID, models.EventReplanningStarted, fmt.Sprintf("revision %d", attempt+1))
		revised := o.plan(ctx, store, req, true, attempt+1, execResult.FailedStepDetails, &currentPlan, execResult.ExecutionContext)
		if !revised.Success {
			o.appendJournal(store, req.ParentTaskID, models.EventReplanningExhausted, revised.Message)
			break
		}
		o.appendJournal(store, req.ParentTaskID, models.EventReplanningSuccess, string(revised.Source))
		currentPlan = revised.Plan
	}

	if !execResult.Success {
		o.persistTaskState(ctx, store, models.Task{
			ParentTaskID: req.ParentTaskID, UserTaskString: req.UserTaskString, Mode: req.Mode,
			Status: models.StatusFailedExecution, Plan: &currentPlan, ExecutionContext: execResult.ExecutionContext,
			ErrorSummary: &models.ErrorSummary{Reason: "execution failed after replanning", FailedStep: execResult.FailedStepDetails},
			UpdatedAt:    time.Now(),
		})
		return models.HandleUserTaskResult{
			Success: false, OriginalTask: req.UserTaskString, Plan: &currentPlan, ExecutedPlan: &currentPlan,
			ErrorSummary: &models.ErrorSummary{Reason: "execution failed after replanning", FailedStep: execResult.FailedStepDetails},
		}
	}

	cwc := o.updateCWC(ctx, store, req, execResult)

	var finalAnswer string
	if execResult.FinalAnswerSynthesized && execResult.FinalAnswer != nil {
		finalAnswer = *execResult.FinalAnswer
	} else {
		finalAnswer = o.synthesize(ctx, store, req)
	}
	_ = store.OverwriteFinalAnswerArchive(finalAnswer)

	o.persistTaskState(ctx, store, models.Task{
		ParentTaskID: req.ParentTaskID, UserTaskString: req.UserTaskString, Mode: req.Mode,
		Status: models.StatusCompleted, Plan: &currentPlan, ExecutionContext: execResult.ExecutionContext,
		FinalAnswer: &finalAnswer, CWC: cwc, UpdatedAt: time.Now(),
	})

	return models.HandleUserTaskResult{
		Success: true, OriginalTask: req.UserTaskString, Plan: &currentPlan, ExecutedPlan: &currentPlan,
		FinalAnswer: &finalAnswer, CurrentWorkingContext: cwc,
	}
}

func (o *Orchestrator) resolveSubTaskTimeout() time.Duration {
	if o.cfg.SubTaskTimeout > 0 {
		return o.cfg.SubTaskTimeout
	}
	return executor.DefaultSubTaskTimeout
}

func (o *Orchestrator) updateCWC(ctx context.Context, store *memory.Store, req Request, execResult models.ExecutionResult) models.CurrentWorkingContext {
	prior, _ := store.LoadCWC()

	var progress strings.Builder
	fmt.Fprintf(&progress, "%s\n", prior.SummaryOfProgress)
	for _, o := range execResult.ExecutionContext {
		fmt.Fprintf(&progress, "- %s: %s\n", o.NarrativeStep, o.Status)
	}

	prompt := fmt.Sprintf("Given this execution progress, produce a JSON object with keys "+
		"summaryOfProgress, nextObjective, confidenceScore (0-1), identifiedEntities (array of strings), "+
		"pendingQuestions (array of strings).\n\nProgress so far:\n%s", progress.String())

	raw, err := o.cfg.Adapter.GenerateText(ctx, prompt, llm.Params{})
	cwc := models.CurrentWorkingContext{
		LastUpdatedAt:     time.Now().Format(time.RFC3339),
		SummaryOfProgress: progress.String(),
		NextObjective:     "continue",
	}
	if err == nil {
		var parsed models.CurrentWorkingContext
		if jsonErr := json.Unmarshal([]byte(strings.TrimSpace(raw)), &parsed); jsonErr == nil {
			parsed.LastUpdatedAt = time.Now().Format(time.RFC3339)
			if parsed.Validate() == nil {
				cwc = parsed
			}
		}
	}
	_ = store.OverwriteCWC(cwc)
	o.appendJournal(store, req.ParentTaskID, models.EventCWCUpdated, cwc.NextObjective)
	return cwc
}

func (o *Orchestrator) synthesize(ctx context.Context, store *memory.Store, req Request) string {
	o.appendJournal(store, req.ParentTaskID, models.EventSynthesisStarted, "")

	findings, _ := store.GetLatestKeyFindings(20)
	cwc, _ := store.LoadCWC()

	limit := o.cfg.MaxTokenLimit
	if limit <= 0 {
		limit = o.cfg.Adapter.GetMaxContextTokens()
	}

	spec := contextassembler.Specification{
		IncludeTaskDefinition:  true,
		TaskDefinitionText:     req.UserTaskString,
		CurrentProgressSummary: cwc.SummaryOfProgress,
		KeyFindings:            findings,
		MaxLatestKeyFindings:   20,
		MaxTokenLimit:          limit,
		CustomPreamble:         "Synthesize a final answer for the user from the following context.\n\n",
	}
	assembled := o.assemble(ctx, req.ParentTaskID, spec)

	answer, err := o.cfg.Adapter.GenerateText(ctx, assembled.ContextString, llm.Params{})
	if err != nil {
		answer = "unable to synthesize a final answer: " + err.Error()
	}
	o.appendJournal(store, req.ParentTaskID, models.EventSynthesisCompleted, "")
	return answer
}

func (o *Orchestrator) runSynthesizeOnly(ctx context.Context, store *memory.Store, req Request) models.HandleUserTaskResult {
	loaded := memory.New(o.taskDir(req.TaskToLoad))
	task, err := o.loadTaskState(loaded)
	if err != nil {
		return models.HandleUserTaskResult{Success: false, Message: err.Error(), OriginalTask: req.UserTaskString}
	}
	answer := o.synthesize(ctx, store, req)
	_ = store.OverwriteFinalAnswerArchive(answer)

	o.persistTaskState(ctx, store, models.Task{
		ParentTaskID: req.ParentTaskID, UserTaskString: req.UserTaskString, Mode: req.Mode,
		Status: models.StatusCompleted, ExecutionContext: task.ExecutionContext, FinalAnswer: &answer, UpdatedAt: time.Now(),
	})
	return models.HandleUserTaskResult{Success: true, OriginalTask: req.UserTaskString, FinalAnswer: &answer}
}
