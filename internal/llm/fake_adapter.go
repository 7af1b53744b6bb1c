package llm

import "context"

// FakeAdapter is an in-memory Adapter stand-in for tests across packages
// that depend on the Adapter contract but are out of scope for a real
// model integration (spec §1). Responses is consumed in order; CompleteChat
// and GenerateText share the same queue.
type FakeAdapter struct {
	ServiceName string
	MaxTokens   int
	Responses   []string
	Err         error
	Calls       int
	LastPrompt  string
}

func NewFakeAdapter(responses ...string) *FakeAdapter {
	return &FakeAdapter{ServiceName: "fake", MaxTokens: 200000, Responses: responses}
}

func (f *FakeAdapter) GenerateText(ctx context.Context, prompt string, params Params) (string, error) {
	f.LastPrompt = prompt
	return f.next()
}

func (f *FakeAdapter) CompleteChat(ctx context.Context, messages []Message, params Params) (string, error) {
	if len(messages) > 0 {
		f.LastPrompt = messages[len(messages)-1].Content
	}
	return f.next()
}

func (f *FakeAdapter) next() (string, error) {
	if f.Err != nil {
		return "", f.Err
	}
	if f.Calls >= len(f.Responses) {
		return "", nil
	}
	r := f.Responses[f.Calls]
	f.Calls++
	return r, nil
}

func (f *FakeAdapter) GetTokenizer() Tokenizer  { return approximateTokenizer }
func (f *FakeAdapter) GetMaxContextTokens() int { return f.MaxTokens }
func (f *FakeAdapter) GetServiceName() string   { return f.ServiceName }
func (f *FakeAdapter) PrepareContextForModel(ctx context.Context, contextParts []string, options map[string]any) (any, error) {
	return nil, nil
}
