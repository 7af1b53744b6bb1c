package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taskgraph/taskgraph/internal/contextassembler"
	"github.com/taskgraph/taskgraph/internal/dispatch"
	"github.com/taskgraph/taskgraph/internal/llm"
	"github.com/taskgraph/taskgraph/internal/models"
	"github.com/taskgraph/taskgraph/internal/planner"
)

var knownRoles = []string{"researcher"}
var knownTools = map[string][]string{"researcher": {"search"}}

func startEchoWorker(ctx context.Context, channels *dispatch.Channels) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-channels.SubTasks:
				if !ok {
					return
				}
				channels.Results <- models.SubTaskResult{
					SubTaskID:  msg.SubTaskID,
					Status:     models.SubTaskCompleted,
					ResultData: map[string]any{"step": msg.NarrativeStep},
				}
			}
		}
	}()
}

func newTestOrchestrator(t *testing.T, adapterResponses ...string) (*Orchestrator, *llm.FakeAdapter) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	channels := dispatch.NewChannels(8)
	registry := dispatch.NewRegistry(nil)
	go dispatch.RunDemux(ctx, channels.Results, registry)
	startEchoWorker(ctx, channels)

	adapter := llm.NewFakeAdapter(adapterResponses...)

	tmpl := planner.Template{
		Name:    "research",
		Pattern: planner.MustPattern(`^research (?P<topic>.+)$`),
		Stages: []planner.Stage{
			{{AssignedAgentRole: "researcher", ToolName: "search", NarrativeStep: "look up {{topic}}", SubTaskInput: map[string]any{"topic": "{{topic}}"}}},
		},
	}

	o := New(Config{
		BaseDir:          t.TempDir(),
		KnownAgentRoles:  knownRoles,
		KnownToolsByRole: knownTools,
		Planner:          planner.New([]planner.Template{tmpl}),
		Adapter:          adapter,
		Channels:         channels,
		Registry:         registry,
		MaxTokenLimit:    5000,
		SubTaskTimeout:   time.Second,
	})
	return o, adapter
}

func TestHandleUserTask_PlanOnlyUsesTemplate(t *testing.T) {
	o, adapter := newTestOrchestrator(t)
	result := o.HandleUserTask(context.Background(), Request{
		UserTaskString: "research wasps",
		ParentTaskID:   "task-1",
		Mode:           models.ModePlanOnly,
	})
	require.True(t, result.Success)
	require.NotNil(t, result.Plan)
	require.Equal(t, 0, adapter.Calls, "template match should skip the model entirely")
}

func TestHandleUserTask_ExecuteFullPlanSynthesizesFinalAnswer(t *testing.T) {
	o, _ := newTestOrchestrator(t, `{"summaryOfProgress":"done","nextObjective":"none","confidenceScore":0.9}`, "the final answer")
	result := o.HandleUserTask(context.Background(), Request{
		UserTaskString: "research wasps",
		ParentTaskID:   "task-2",
		Mode:           models.ModeExecuteFullPlan,
	})
	require.True(t, result.Success)
	require.NotNil(t, result.FinalAnswer)
	require.Equal(t, "the final answer", *result.FinalAnswer)
	require.Equal(t, "done", result.CurrentWorkingContext.SummaryOfProgress)
}

func TestHandleUserTask_UnknownModeFailsCleanly(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	result := o.HandleUserTask(context.Background(), Request{
		UserTaskString: "anything",
		ParentTaskID:   "task-3",
		Mode:           models.Mode("BOGUS"),
	})
	require.False(t, result.Success)
	require.NotNil(t, result.ErrorSummary)
}

// fakeCatalog records every Upsert call in memory, standing in for
// internal/taskindex.Store.
type fakeCatalog struct {
	upserts []models.Task
}

func (f *fakeCatalog) Upsert(ctx context.Context, task models.Task, taskDir string) error {
	f.upserts = append(f.upserts, task)
	return nil
}

func TestHandleUserTask_CatalogUpsertedOnEveryPersist(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	channels := dispatch.NewChannels(8)
	registry := dispatch.NewRegistry(nil)
	go dispatch.RunDemux(ctx, channels.Results, registry)
	startEchoWorker(ctx, channels)

	catalog := &fakeCatalog{}
	o := New(Config{
		BaseDir:          t.TempDir(),
		KnownAgentRoles:  knownRoles,
		KnownToolsByRole: knownTools,
		Planner:          planner.New(nil),
		Adapter:          llm.NewFakeAdapter(`[[{"assigned_agent_role":"researcher","tool_name":"search","narrative_step":"look","sub_task_input":{}}]]`),
		Channels:         channels,
		Registry:         registry,
		MaxTokenLimit:    5000,
		SubTaskTimeout:   time.Second,
		Catalog:          catalog,
	})

	result := o.HandleUserTask(context.Background(), Request{
		UserTaskString: "anything",
		ParentTaskID:   "task-catalog",
		Mode:           models.ModePlanOnly,
	})
	require.True(t, result.Success)
	require.NotEmpty(t, catalog.upserts, "expected persistTaskState to call Catalog.Upsert")
	require.Equal(t, "task-catalog", catalog.upserts[len(catalog.upserts)-1].ParentTaskID)
}

// fakeContextCache is an in-memory stand-in for
// internal/contextassembler/cache.Cache that also counts misses, so tests
// can assert a second identical assembly is served from cache.
type fakeContextCache struct {
	entries map[string]string
	misses  int
}

func newFakeContextCache() *fakeContextCache {
	return &fakeContextCache{entries: map[string]string{}}
}

func (f *fakeContextCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok := f.entries[key]
	if !ok {
		f.misses++
	}
	return v, ok, nil
}

func (f *fakeContextCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	f.entries[key] = value
	return nil
}

func TestAssemble_SecondIdenticalCallHitsCache(t *testing.T) {
	adapter := llm.NewFakeAdapter()
	cc := newFakeContextCache()
	o := New(Config{
		BaseDir:         t.TempDir(),
		KnownAgentRoles: knownRoles,
		Planner:         planner.New(nil),
		Adapter:         adapter,
		Channels:        dispatch.NewChannels(1),
		Registry:        dispatch.NewRegistry(nil),
		MaxTokenLimit:   5000,
		SubTaskTimeout:  time.Second,
		ContextCache:    cc,
		ContextCacheTTL: time.Minute,
	})

	spec := contextassembler.Specification{
		CurrentProgressSummary: "progress so far",
		CurrentNextObjective:   "next step",
		MaxTokenLimit:          5000,
	}

	first := o.assemble(context.Background(), "task-cache", spec)
	require.True(t, first.Success)
	require.Equal(t, 1, cc.misses)

	second := o.assemble(context.Background(), "task-cache", spec)
	require.True(t, second.Success)
	require.Equal(t, 1, cc.misses, "identical spec should be served from cache, not re-missed")
	require.Equal(t, first.ContextString, second.ContextString)
}
