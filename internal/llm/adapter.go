// Package llm defines the uniform language-model adapter contract and ships
// two concrete adapters: a subprocess CLI adapter and a direct Anthropic API
// adapter.
package llm

import "context"

// Role is the speaker of one chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in a chat completion request.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Params carries the fields an adapter call may recognize; not every field
// applies to every adapter.
type Params struct {
	Model             string
	Temperature       float64
	MaxTokens         int
	StopSequences     []string
	SystemInstruction string
	CacheHandle       any
}

// Tokenizer counts the number of tokens a string would consume for a given
// model family.
type Tokenizer func(text string) int

// Adapter is the capability interface every concrete language-model
// integration implements (spec §4.3). One adapter instance per model
// family; adapters are otherwise stateless aside from client configuration.
type Adapter interface {
	GenerateText(ctx context.Context, prompt string, params Params) (string, error)
	CompleteChat(ctx context.Context, messages []Message, params Params) (string, error)
	GetTokenizer() Tokenizer
	GetMaxContextTokens() int
	GetServiceName() string
	// PrepareContextForModel optionally pre-caches contextParts with the
	// provider and returns an opaque handle later calls can pass back via
	// Params.CacheHandle. Adapters without provider-side caching return nil.
	PrepareContextForModel(ctx context.Context, contextParts []string, options map[string]any) (any, error)
}
