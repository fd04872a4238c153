// Package llm is the thin prompt-completion collaborator the loop engines
// and generate_* tools draft text through. The LLM provider's own internals
// (streaming, tool calling, vision, retries) are out of scope per spec's
// Non-goals; this package exists only to give content/thread/reply
// generation a concrete text-in/text-out seam, grounded on
// internal/agent/providers/anthropic.go and internal/providers/venice's
// non-streaming single-turn call shape, trimmed to what a one-shot tweet
// draft needs.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	openai "github.com/sashabaranov/go-openai"

	"github.com/tuitbot/tuitbot-core/internal/config"
	"github.com/tuitbot/tuitbot-core/internal/xapi"
)

// Completer is the narrow seam every concrete provider implements: a
// single-turn prompt-in, text-out completion.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Generator adapts a Completer into the loop engines' TweetGenerator /
// ThreadGenerator / ReplyGenerator interfaces (internal/loops) and the
// generate_reply tool's ReplyDrafter (internal/tools), so callers needing
// any one of those only depend on this single concrete type.
type Generator struct {
	completer Completer
	voice     string
	topics    []string
}

// New builds a Generator from configuration, selecting the Anthropic or
// OpenAI-compatible completer per cfg.LLM.Provider. "ollama" reuses the
// OpenAI-compatible client pointed at cfg.LLM.BaseURL, the same
// OpenAI-compatible-surface trick internal/providers/venice.go plays for
// Venice.
func New(cfg config.LLM, voice string) (*Generator, error) {
	completer, err := newCompleter(cfg)
	if err != nil {
		return nil, err
	}
	return &Generator{completer: completer, voice: voice}, nil
}

func newCompleter(cfg config.LLM) (Completer, error) {
	switch cfg.Provider {
	case "", "anthropic":
		return newAnthropicCompleter(cfg), nil
	case "openai":
		return newOpenAICompleter(cfg, cfg.BaseURL), nil
	case "ollama":
		base := cfg.BaseURL
		if base == "" {
			base = "http://localhost:11434/v1"
		}
		return newOpenAICompleter(cfg, base), nil
	default:
		return nil, fmt.Errorf("llm: unsupported provider %q", cfg.Provider)
	}
}

// HealthCheck satisfies internal/tools.HealthChecker by issuing a
// near-zero-cost completion and checking it doesn't error.
func (g *Generator) HealthCheck(ctx context.Context) error {
	_, err := g.completer.Complete(ctx, "Reply with the single word: ok.", "ping")
	return err
}

const (
	tweetSystemPrompt  = "You draft a single X/Twitter post in the account's established voice. Respond with only the tweet text, no quotes, no preamble, no hashtags unless asked."
	replySystemPrompt  = "You draft a single reply tweet in the account's established voice, directly addressing the tweet you were shown. Respond with only the reply text."
	threadSystemPrompt = "You draft a numbered multi-tweet thread in the account's established voice. Respond with each tweet body on its own line, in posting order, no numbering prefixes."
)

func (g *Generator) voicedSystem(base string) string {
	if g.voice == "" {
		return base
	}
	return base + " Voice: " + g.voice
}

// GenerateTweet implements internal/loops.TweetGenerator.
func (g *Generator) GenerateTweet(ctx context.Context, topic string) (string, error) {
	text, err := g.completer.Complete(ctx, g.voicedSystem(tweetSystemPrompt), "Topic: "+topic)
	if err != nil {
		return "", fmt.Errorf("llm: generate tweet: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// DraftReply implements internal/tools.ReplyDrafter, drafting a reply to an
// arbitrary tweet body (not necessarily a mention).
func (g *Generator) DraftReply(ctx context.Context, inReplyToText string) (string, error) {
	text, err := g.completer.Complete(ctx, g.voicedSystem(replySystemPrompt), "Tweet: "+inReplyToText)
	if err != nil {
		return "", fmt.Errorf("llm: draft reply: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// GenerateReply implements internal/loops.ReplyGenerator, drafting a reply
// to an incoming mention. Delegates to DraftReply on the mention's own
// text -- the mentions loop and the generate_reply tool share one prompt.
func (g *Generator) GenerateReply(ctx context.Context, mention xapi.Tweet) (string, error) {
	return g.DraftReply(ctx, mention.Text)
}

// GenerateThread implements internal/loops.ThreadGenerator, asking for
// exactly count tweet bodies and splitting the response by line.
func (g *Generator) GenerateThread(ctx context.Context, topic string, count int) ([]string, error) {
	prompt := fmt.Sprintf("Topic: %s\nWrite exactly %d tweets.", topic, count)
	text, err := g.completer.Complete(ctx, g.voicedSystem(threadSystemPrompt), prompt)
	if err != nil {
		return nil, fmt.Errorf("llm: generate thread: %w", err)
	}
	var tweets []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			tweets = append(tweets, line)
		}
	}
	if len(tweets) == 0 {
		return nil, fmt.Errorf("llm: generate thread: provider returned no tweet lines")
	}
	return tweets, nil
}

// anthropicCompleter wraps the Anthropic Messages API for a single-turn,
// non-streaming completion, grounded on
// internal/agent/providers/anthropic.go's createStream/convertMessages,
// simplified to the non-streaming Messages.New call since generate_* tools
// need one finished string, not a token stream.
type anthropicCompleter struct {
	client *anthropic.Client
	model  string
}

func newAnthropicCompleter(cfg config.LLM) *anthropicCompleter {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	client := anthropic.NewClient(opts...)
	return &anthropicCompleter{client: &client, model: model}
}

func (c *anthropicCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 1024,
		System:    []anthropic.TextBlockParam{{Type: "text", Text: system}},
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
	})
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, block := range msg.Content {
		if text := block.Text; text != "" {
			sb.WriteString(text)
		}
	}
	return sb.String(), nil
}

// openAICompleter wraps go-openai's chat completion endpoint, reused as-is
// for the "openai" and "ollama" providers since Ollama exposes an
// OpenAI-compatible /v1 surface -- the same reuse internal/providers/venice
// makes of the OpenAI client for Venice's OpenAI-compatible proxy.
type openAICompleter struct {
	client *openai.Client
	model  string
}

func newOpenAICompleter(cfg config.LLM, baseURL string) *openAICompleter {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &openAICompleter{client: openai.NewClientWithConfig(clientCfg), model: model}
}

func (c *openAICompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: 1024,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}
