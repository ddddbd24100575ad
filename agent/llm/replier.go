package llm

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/openai/openai-go"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/loan-assistant/agent/contract"
	promptx "github.com/tanpawarit/loan-assistant/agent/prompt"
	openrouterx "github.com/tanpawarit/loan-assistant/pkg/openrouter"
)

// New builds the fallback replier described by cfg. A disabled config yields
// a replier that is never available.
func New(ctx context.Context, cfg Config) (contractx.FallbackReplier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled() {
		log.Info().Msg("fallback replier disabled")
		return Disabled{}, nil
	}

	systemPrompt := promptx.LoadPromptSet().Fallback
	if systemPrompt == "" {
		return nil, contractx.ErrPromptMissing
	}

	switch cfg.Provider {
	case ProviderOpenRouter:
		chatModel, err := openrouterx.NewChatModel(ctx, cfg.endpoint())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
		}
		return NewGraphReplier(ctx, chatModel, systemPrompt)
	default:
		return NewOpenAIReplier(cfg, systemPrompt)
	}
}

// Disabled never answers.
type Disabled struct{}

func (Disabled) Available() bool { return false }

func (Disabled) Reply(context.Context, string, contractx.ReplyContext) (string, error) {
	return "", contractx.ErrReplierDisabled
}

// OpenAIReplier answers through the chat completions endpoint.
type OpenAIReplier struct {
	client       *openai.Client
	model        string
	maxTokens    int64
	temperature  float64
	systemPrompt string
}

func NewOpenAIReplier(cfg Config, systemPrompt string) (*OpenAIReplier, error) {
	client := openrouterx.NewClient(cfg.endpoint())
	if client == nil {
		return nil, fmt.Errorf("%w: llm api key is required", contractx.ErrValidation)
	}
	return &OpenAIReplier{
		client:       client,
		model:        strings.TrimSpace(cfg.Model),
		maxTokens:    int64(cfg.MaxCompletionToken),
		temperature:  float64(cfg.Temperature),
		systemPrompt: systemPrompt,
	}, nil
}

func (r *OpenAIReplier) Available() bool { return r != nil && r.client != nil }

func (r *OpenAIReplier) Reply(ctx context.Context, utterance string, rc contractx.ReplyContext) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{openai.SystemMessage(r.systemPrompt)}
	if line := contextLine(rc); line != "" {
		messages = append(messages, openai.SystemMessage("Context: "+line))
	}
	messages = append(messages, openai.UserMessage(utterance))

	params := openai.ChatCompletionNewParams{
		Messages:    messages,
		Model:       openai.ChatModel(r.model),
		Temperature: openai.Float(r.temperature),
	}
	if r.maxTokens > 0 {
		params.MaxTokens = openai.Int(r.maxTokens)
	}

	resp, err := r.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// GraphReplier answers through an eino prompt template and chat model graph.
type GraphReplier struct {
	runner compose.Runnable[map[string]any, *schema.Message]
}

func NewGraphReplier(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*GraphReplier, error) {
	runner, err := compileReplyGraph(ctx, chatModel, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}
	return &GraphReplier{runner: runner}, nil
}

func (r *GraphReplier) Available() bool { return r != nil && r.runner != nil }

func (r *GraphReplier) Reply(ctx context.Context, utterance string, rc contractx.ReplyContext) (string, error) {
	line := contextLine(rc)
	if line == "" {
		line = "none"
	}
	msg, err := r.runner.Invoke(ctx, map[string]any{
		"context": line,
		"input":   utterance,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}
	if msg == nil {
		return "", nil
	}
	return strings.TrimSpace(msg.Content), nil
}

func compileReplyGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
) (compose.Runnable[map[string]any, *schema.Message], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.SystemMessage("Context: {context}"),
		schema.UserMessage("{input}"),
	)

	graph := compose.NewGraph[map[string]any, *schema.Message]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add reply prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add reply model node: %w", err)
	}
	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add reply edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add reply edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", compose.END); err != nil {
		return nil, fmt.Errorf("add reply edge model->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("fallback.reply_graph"))
	if err != nil {
		return nil, fmt.Errorf("compile reply graph: %w", err)
	}
	return runner, nil
}

// contextLine summarises the last decision for the model.
func contextLine(rc contractx.ReplyContext) string {
	var parts []string
	if rc.LastReason != "" {
		parts = append(parts, "Last decision reason: "+rc.LastReason)
	}
	if d := rc.LastDetails; d != nil {
		var figures []string
		if d.EMI != nil {
			figures = append(figures, fmt.Sprintf("EMI: %d", int64(*d.EMI)))
		}
		figures = append(figures, fmt.Sprintf("Preapproved limit: %d", d.PreapprovedLimit))
		parts = append(parts, strings.Join(figures, "; "))
	}
	return strings.Join(parts, " | ")
}
