// Package openai provides a dispatch handler backed by the OpenAI
// Chat Completions API (streaming).
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/deckbridge/deckbridge/dispatch"
)

// Options configures the OpenAI dispatch handler.
type Options struct {
	Model               openai.ChatModel
	Temperature         float64
	MaxCompletionTokens int64
	APIKey              string
	System              string
}

// Handler streams Chat Completions replies for inbound chat messages behind
// the generic dispatch.Handler interface.
type Handler struct {
	client *openai.Client
	opts   Options
}

// NewHandler creates a new OpenAI handler using the official client.
func NewHandler(optFns ...func(o *Options)) *Handler {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := openai.NewClient(clientOpts...)

	return &Handler{
		client: &client,
		opts:   opts,
	}
}

// NewHandlerFromClient creates a new OpenAI handler from an existing client.
func NewHandlerFromClient(client *openai.Client, optFns ...func(o *Options)) *Handler {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Handler{
		client: client,
		opts:   opts,
	}
}

// HandleMessage implements dispatch.Handler. It streams the completion and
// forwards each content delta as one reply chunk.
func (h *Handler) HandleMessage(ctx context.Context, msg dispatch.Message, emit dispatch.EmitFunc) error {
	var messages []openai.ChatCompletionMessageParamUnion
	if h.opts.System != "" {
		messages = append(messages, openai.SystemMessage(h.opts.System))
	}
	messages = append(messages, openai.UserMessage(msg.Content))

	params := openai.ChatCompletionNewParams{
		Model:               h.opts.Model,
		Messages:            messages,
		Temperature:         openai.Float(h.opts.Temperature),
		MaxCompletionTokens: openai.Int(h.opts.MaxCompletionTokens),
	}

	stream := h.client.Chat.Completions.NewStreaming(ctx, params)
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		if err := emit(delta); err != nil {
			return err
		}
	}

	if err := stream.Err(); err != nil {
		return fmt.Errorf("openai api error: %w", err)
	}
	return nil
}
