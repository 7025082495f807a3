// Package anthropic provides a dispatch handler backed by the Anthropic Claude API.
package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/deckbridge/deckbridge/dispatch"
)

// Options configures the Anthropic dispatch handler (model id, temperature,
// max tokens, API key, system prompt). Extend via functional options to
// preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	System      string
}

// Handler streams Claude replies for inbound chat messages behind the generic
// dispatch.Handler interface.
type Handler struct {
	client *anthropic.Client
	opts   Options
}

// NewHandler creates a new Anthropic handler using the official client.
func NewHandler(optFns ...func(o *Options)) *Handler {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Handler{
		client: &client,
		opts:   opts,
	}
}

// NewHandlerFromClient creates a new Anthropic handler from an existing client.
func NewHandlerFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Handler {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Handler{
		client: client,
		opts:   opts,
	}
}

// HandleMessage implements dispatch.Handler. It streams the Messages API
// response and forwards each text delta as one reply chunk.
func (h *Handler) HandleMessage(ctx context.Context, msg dispatch.Message, emit dispatch.EmitFunc) error {
	params := anthropic.MessageNewParams{
		Model:       h.opts.Model,
		MaxTokens:   h.opts.MaxTokens,
		Temperature: anthropic.Float(h.opts.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)),
		},
	}
	if h.opts.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: h.opts.System}}
	}

	stream := h.client.Messages.NewStreaming(ctx, params)
	for stream.Next() {
		event := stream.Current()
		switch eventVariant := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch deltaVariant := eventVariant.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if deltaVariant.Text == "" {
					continue
				}
				if err := emit(deltaVariant.Text); err != nil {
					return err
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		return fmt.Errorf("anthropic api error: %w", err)
	}
	return nil
}
