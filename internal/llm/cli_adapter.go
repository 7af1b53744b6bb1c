package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// CLIAdapter invokes a model through a subprocess CLI binary, the way the
// teacher's claude.Invoker drives the Claude Code CLI. It works with any
// binary that accepts a system prompt flag, a prompt flag, and emits a JSON
// envelope with a "content" or "result" field on stdout.
type CLIAdapter struct {
	BinaryPath        string
	ServiceName       string
	MaxContextTokens  int
	DefaultSystemPrompt string
	Tokenize          Tokenizer
}

// NewCLIAdapter builds a CLIAdapter with a conservative default tokenizer
// (character count divided by four, the common rule of thumb when no real
// tokenizer is wired) used only until a model-specific one is supplied.
func NewCLIAdapter(binaryPath, serviceName string, maxContextTokens int) *CLIAdapter {
	return &CLIAdapter{
		BinaryPath:       binaryPath,
		ServiceName:      serviceName,
		MaxContextTokens: maxContextTokens,
		Tokenize:         approximateTokenizer,
	}
}

func approximateTokenizer(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + 3) / 4
}

func (a *CLIAdapter) GetTokenizer() Tokenizer    { return a.Tokenize }
func (a *CLIAdapter) GetMaxContextTokens() int   { return a.MaxContextTokens }
func (a *CLIAdapter) GetServiceName() string     { return a.ServiceName }

// PrepareContextForModel has no provider-side caching for a subprocess CLI;
// it simply returns nil, signalling the orchestrator should not expect a
// cacheHandle from this adapter.
func (a *CLIAdapter) PrepareContextForModel(ctx context.Context, contextParts []string, options map[string]any) (any, error) {
	return nil, nil
}

func (a *CLIAdapter) GenerateText(ctx context.Context, prompt string, params Params) (string, error) {
	return WithRetry(ctx, func(ctx context.Context) (string, error) {
		return a.invoke(ctx, prompt, params)
	})
}

func (a *CLIAdapter) CompleteChat(ctx context.Context, messages []Message, params Params) (string, error) {
	return WithRetry(ctx, func(ctx context.Context) (string, error) {
		return a.invoke(ctx, flattenMessages(messages), params)
	})
}

func flattenMessages(messages []Message) string {
	var b strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&b, "[%s] %s\n", m.Role, m.Content)
	}
	return b.String()
}

func (a *CLIAdapter) invoke(ctx context.Context, prompt string, params Params) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("prompt is required")
	}
	systemPrompt := params.SystemInstruction
	if systemPrompt == "" {
		systemPrompt = a.DefaultSystemPrompt
	}

	args := []string{"--system-prompt", systemPrompt, "-p", prompt, "--output-format", "json"}
	if params.Model != "" {
		args = append(args, "--model", params.Model)
	}

	binary := a.BinaryPath
	if binary == "" {
		binary = "llm"
	}
	cmd := exec.CommandContext(ctx, binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", &cliStatusError{err: fmt.Errorf("%s invocation failed: %w (output: %s)", binary, err, output), status: 503}
	}

	content, err := parseCLIResponse(output)
	if err != nil {
		return "", err
	}
	return content, nil
}

// parseCLIResponse extracts the "content" or "result" field from the CLI's
// JSON envelope, falling back to brace extraction for mixed stdout output,
// exactly as the teacher's claude.ParseResponse does.
func parseCLIResponse(raw []byte) (string, error) {
	var envelope map[string]any
	if err := json.Unmarshal(raw, &envelope); err != nil {
		start := strings.Index(string(raw), "{")
		end := strings.LastIndex(string(raw), "}")
		if start >= 0 && end > start {
			if err := json.Unmarshal(raw[start:end+1], &envelope); err != nil {
				return string(raw), nil
			}
		} else {
			return string(raw), nil
		}
	}
	if v, ok := envelope["content"].(string); ok {
		return v, nil
	}
	if v, ok := envelope["result"].(string); ok {
		return v, nil
	}
	return string(raw), nil
}

type cliStatusError struct {
	err    error
	status int
}

func (e *cliStatusError) Error() string  { return e.err.Error() }
func (e *cliStatusError) Unwrap() error  { return e.err }
func (e *cliStatusError) StatusCode() int { return e.status }
