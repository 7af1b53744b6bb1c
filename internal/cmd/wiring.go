package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/taskgraph/taskgraph/internal/capabilities"
	"github.com/taskgraph/taskgraph/internal/config"
	"github.com/taskgraph/taskgraph/internal/contextassembler/cache"
	"github.com/taskgraph/taskgraph/internal/dispatch"
	"github.com/taskgraph/taskgraph/internal/llm"
	"github.com/taskgraph/taskgraph/internal/logger"
	"github.com/taskgraph/taskgraph/internal/models"
	"github.com/taskgraph/taskgraph/internal/orchestrator"
	"github.com/taskgraph/taskgraph/internal/planner"
	"github.com/taskgraph/taskgraph/internal/taskindex"
)

// app bundles every collaborator a subcommand needs, built once per
// invocation from the layered configuration.
type app struct {
	cfg      *config.Config
	cons     *logger.ConsoleLogger
	reg      *capabilities.Registry
	adapter  llm.Adapter
	channels *dispatch.Channels
	registry *dispatch.Registry
	orch     *orchestrator.Orchestrator
	catalog  *taskindex.Store
	ctxCache *cache.Cache
	cancel   context.CancelFunc
}

func buildApp(configPath, envPath, capabilitiesPath string) (*app, error) {
	return buildAppWithTemplates(configPath, envPath, capabilitiesPath, "")
}

func buildAppWithTemplates(configPath, envPath, capabilitiesPath, templatesDir string) (*app, error) {
	cfg, err := config.Load(configPath, envPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	cons := logger.NewConsoleLogger(os.Stderr, cfg.LogLevel)

	reg := capabilities.New()
	if capabilitiesPath != "" {
		reg, err = capabilities.Load(capabilitiesPath)
		if err != nil {
			return nil, fmt.Errorf("load capabilities: %w", err)
		}
	}

	adapter, err := buildAdapter(cfg)
	if err != nil {
		return nil, fmt.Errorf("build LLM adapter: %w", err)
	}

	channels := dispatch.NewChannels(cfg.Dispatch.ChannelBuffer)
	registry := dispatch.NewRegistry(func(result models.SubTaskResult) {
		cons.LogJournalEntry(result.SubTaskID, models.JournalEntry{
			Event:  models.EventCriticalError,
			Detail: "orphan sub-task result: no waiter registered",
		})
	})

	ctx, cancel := context.WithCancel(context.Background())
	go dispatch.RunDemux(ctx, channels.Results, registry)
	go runDemoWorkers(ctx, channels, cfg.Dispatch.ChannelBuffer)

	var templates []planner.Template
	if templatesDir != "" {
		templates, err = planner.LoadTemplates(templatesDir)
		if err != nil {
			return nil, fmt.Errorf("load plan templates: %w", err)
		}
	}
	planMgr := planner.New(templates)
	planMgr.ModelParams = llm.Params{Model: cfg.LLM.Model, Temperature: cfg.LLM.Temperature}

	var catalog *taskindex.Store
	if cfg.Orchestrator.CatalogDBPath != "" {
		catalog, err = taskindex.Open(cfg.Orchestrator.CatalogDBPath)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("open task catalog: %w", err)
		}
	}

	var ctxCache *cache.Cache
	if cfg.ContextAssembler.EnableRedisCache {
		ctxCache = cache.New(cfg.ContextAssembler.RedisAddr, "", 0, "taskgraph:")
	}

	orchCfg := orchestrator.Config{
		BaseDir:          cfg.Orchestrator.BaseDir,
		KnownAgentRoles:  reg.KnownAgentRoles(),
		KnownToolsByRole: reg.KnownToolsByRole(),
		Planner:          planMgr,
		Adapter:          adapter,
		Channels:         channels,
		Registry:         registry,
		Logger:           cons,
		MaxTokenLimit:    cfg.ContextAssembler.MaxTokenLimit,
		SubTaskTimeout:   cfg.SubTaskTimeout(),
	}
	if catalog != nil {
		orchCfg.Catalog = catalog
	}
	if ctxCache != nil {
		orchCfg.ContextCache = ctxCache
		orchCfg.ContextCacheTTL = time.Duration(cfg.ContextAssembler.RedisCacheTTLSeconds) * time.Second
	}
	orch := orchestrator.New(orchCfg)

	return &app{
		cfg: cfg, cons: cons, reg: reg, adapter: adapter,
		channels: channels, registry: registry, orch: orch,
		catalog: catalog, ctxCache: ctxCache, cancel: cancel,
	}, nil
}

func (a *app) Close() {
	a.cancel()
	if a.catalog != nil {
		a.catalog.Close()
	}
	if a.ctxCache != nil {
		a.ctxCache.Close()
	}
}

func buildAdapter(cfg *config.Config) (llm.Adapter, error) {
	switch cfg.LLM.Provider {
	case "cli":
		return llm.NewCLIAdapter(cfg.LLM.CLIBinaryPath, "cli", cfg.LLM.MaxContextTokens), nil
	default:
		apiKey := os.Getenv(cfg.LLM.APIKeyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("environment variable %s is not set", cfg.LLM.APIKeyEnv)
		}
		return llm.NewAnthropicAdapter(apiKey, cfg.LLM.Model, cfg.LLM.MaxContextTokens)
	}
}

// runDemoWorkers is the placeholder worker pool consuming sub-tasks and
// echoing a trivial completed result. Concrete worker agents are out of
// scope; this keeps `taskgraph run` operable end to end against a
// capabilities file with no real tool integrations wired in yet.
func runDemoWorkers(ctx context.Context, channels *dispatch.Channels, count int) {
	if count < 1 {
		count = 1
	}
	for i := 0; i < count; i++ {
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
						SubTaskID: msg.SubTaskID,
						Status:    models.SubTaskCompleted,
						ResultData: map[string]any{
							"note": fmt.Sprintf("demo worker executed %q with tool %q", msg.NarrativeStep, msg.ToolName),
						},
					}
				}
			}
		}()
	}
}
