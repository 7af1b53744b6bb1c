// Package config loads taskgraph's runtime configuration from a YAML file,
// a ".env" file, and environment variable overrides, in that layered order.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// MemoryConfig holds Memory Store settings. No code reads this section:
// task directories are rooted at Orchestrator.BaseDir, and
// GetSummarizedMemory takes its length threshold per call.
type MemoryConfig struct {
	BaseDir             string `yaml:"base_dir"`
	SummaryMaxOriginalLength int `yaml:"summary_max_original_length"`
	CacheSummaries      bool   `yaml:"cache_summaries"`
}

// ContextAssemblerConfig holds mega-context assembly settings. Only
// MaxTokenLimit and the three Redis cache fields are read (by internal/cmd's
// wiring); the other fields have no effect.
type ContextAssemblerConfig struct {
	MaxTokenLimit                 int    `yaml:"max_token_limit"`
	MaxLatestKeyFindings          int    `yaml:"max_latest_key_findings"`
	MaxLatestChatTurns            int    `yaml:"max_latest_chat_turns"`
	IncludeRawContentForReferences bool  `yaml:"include_raw_content_for_references"`
	RecordSeparator               string `yaml:"record_separator"`
	EnableRedisCache              bool   `yaml:"enable_redis_cache"`
	RedisAddr                     string `yaml:"redis_addr"`
	RedisCacheTTLSeconds          int    `yaml:"redis_cache_ttl_seconds"`
}

// LLMConfig selects and configures the language-model adapter.
type LLMConfig struct {
	Provider         string  `yaml:"provider"` // "anthropic" or "cli"
	Model            string  `yaml:"model"`
	MaxContextTokens int     `yaml:"max_context_tokens"`
	Temperature      float64 `yaml:"temperature"`
	CLIBinaryPath    string  `yaml:"cli_binary_path"`
	APIKeyEnv        string  `yaml:"api_key_env"`
}

// DispatchConfig sizes the sub-task/results channels and default timeouts.
type DispatchConfig struct {
	ChannelBuffer  int    `yaml:"channel_buffer"`
	SubTaskTimeout string `yaml:"sub_task_timeout"`
}

// OrchestratorConfig holds the persistence root and the catalog location.
// MaxRevisions is not read: the replanning bound is the orchestrator
// package's MaxRevisions constant (2).
type OrchestratorConfig struct {
	MaxRevisions int    `yaml:"max_revisions"`
	BaseDir      string `yaml:"base_dir"`
	// CatalogDBPath is the SQLite file backing the task catalog
	// (internal/taskindex). Empty disables the catalog entirely.
	CatalogDBPath string `yaml:"catalog_db_path"`
}

// ConsoleConfig holds terminal output settings. No code reads this section;
// the console logger enables color when its output is a terminal.
type ConsoleConfig struct {
	EnableColor   bool `yaml:"enable_color"`
	CompactMode   bool `yaml:"compact_mode"`
	ShowDurations bool `yaml:"show_durations"`
}

// Config is the top-level configuration object.
type Config struct {
	LogLevel         string                 `yaml:"log_level"`
	LogDir           string                 `yaml:"log_dir"`
	Memory           MemoryConfig           `yaml:"memory"`
	ContextAssembler ContextAssemblerConfig `yaml:"context_assembler"`
	LLM              LLMConfig              `yaml:"llm"`
	Dispatch         DispatchConfig         `yaml:"dispatch"`
	Orchestrator     OrchestratorConfig     `yaml:"orchestrator"`
	Console          ConsoleConfig          `yaml:"console"`

	// resolvedSubTaskTimeout caches the parsed duration from Dispatch.SubTaskTimeout.
	resolvedSubTaskTimeout time.Duration
}

// DefaultConsoleConfig mirrors a terminal with color support enabled.
func DefaultConsoleConfig() ConsoleConfig {
	return ConsoleConfig{EnableColor: true, ShowDurations: true}
}

// DefaultConfig returns the baseline configuration used when no file is
// present, and as the merge base when one is.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		LogDir:   ".taskgraph/logs",
		Memory: MemoryConfig{
			BaseDir:                  ".taskgraph/tasks",
			SummaryMaxOriginalLength: 4000,
			CacheSummaries:           true,
		},
		ContextAssembler: ContextAssemblerConfig{
			MaxTokenLimit:        100000,
			MaxLatestKeyFindings: 20,
			MaxLatestChatTurns:   20,
			RecordSeparator:      "\n\n",
		},
		LLM: LLMConfig{
			Provider:         "anthropic",
			Model:            "claude-sonnet-4-5",
			MaxContextTokens: 200000,
			Temperature:      0.2,
			APIKeyEnv:        "ANTHROPIC_API_KEY",
		},
		Dispatch: DispatchConfig{
			ChannelBuffer:  32,
			SubTaskTimeout: "120s",
		},
		Orchestrator: OrchestratorConfig{
			MaxRevisions:  2,
			BaseDir:       ".taskgraph/tasks",
			CatalogDBPath: ".taskgraph/catalog.db",
		},
		Console: DefaultConsoleConfig(),
	}
}

// SubTaskTimeout returns the parsed Dispatch.SubTaskTimeout, defaulting to
// 120s if unset or invalid.
func (c *Config) SubTaskTimeout() time.Duration {
	if c.resolvedSubTaskTimeout > 0 {
		return c.resolvedSubTaskTimeout
	}
	d, err := time.ParseDuration(c.Dispatch.SubTaskTimeout)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}

// Load reads configuration from path (YAML), the ".env" file at envPath
// (skipped when envPath is empty or the file does not exist), and
// environment variable overrides via viper, in that
// order of increasing precedence. A missing YAML file is not an error: it
// falls back to DefaultConfig with only env overrides applied.
func Load(path string, envPath string) (*Config, error) {
	cfg := DefaultConfig()

	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: load .env: %w", err)
		}
	}

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	cfg.resolvedSubTaskTimeout = cfg.SubTaskTimeout()
	return cfg, nil
}

// applyEnvOverrides layers TASKGRAPH_-prefixed environment variables over
// the file-or-default configuration using viper's automatic binding.
func applyEnvOverrides(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix("TASKGRAPH")
	v.AutomaticEnv()

	if v.IsSet("LOG_LEVEL") {
		cfg.LogLevel = v.GetString("LOG_LEVEL")
	}
	if v.IsSet("LLM_PROVIDER") {
		cfg.LLM.Provider = v.GetString("LLM_PROVIDER")
	}
	if v.IsSet("LLM_MODEL") {
		cfg.LLM.Model = v.GetString("LLM_MODEL")
	}
	if v.IsSet("MEMORY_BASE_DIR") {
		cfg.Memory.BaseDir = v.GetString("MEMORY_BASE_DIR")
	}
	if v.IsSet("ORCHESTRATOR_BASE_DIR") {
		cfg.Orchestrator.BaseDir = v.GetString("ORCHESTRATOR_BASE_DIR")
	}
	if v.IsSet("ORCHESTRATOR_CATALOG_DB_PATH") {
		cfg.Orchestrator.CatalogDBPath = v.GetString("ORCHESTRATOR_CATALOG_DB_PATH")
	}
	if v.IsSet("CONTEXT_ASSEMBLER_MAX_TOKEN_LIMIT") {
		cfg.ContextAssembler.MaxTokenLimit = v.GetInt("CONTEXT_ASSEMBLER_MAX_TOKEN_LIMIT")
	}
	if v.IsSet("CONSOLE_ENABLE_COLOR") {
		cfg.Console.EnableColor = v.GetBool("CONSOLE_ENABLE_COLOR")
	}
}
