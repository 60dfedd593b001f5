package ai

import "context"

type Message struct {
	Role    string
	Content string
}

// Params tunes a single completion call. Zero values fall back to the
// provider's defaults.
type Params struct {
	MaxTokens   int
	Temperature float64
	// Model overrides the provider's configured model for this call.
	Model string
}

// Provider turns a message history into one completion.
type Provider interface {
	Chat(ctx context.Context, messages []Message, params Params) (string, error)
}

// StreamProvider is an optional interface. Providers may implement
// streaming chat.
type StreamProvider interface {
	StreamChat(ctx context.Context, messages []Message, params Params) (<-chan string, <-chan error)
}

func SystemMessage(content string) Message { return Message{Role: "system", Content: content} }
func UserMessage(content string) Message   { return Message{Role: "user", Content: content} }
