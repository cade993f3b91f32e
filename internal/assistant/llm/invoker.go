package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	errx "github.com/marketchat/server/internal/core/error"
	logx "github.com/marketchat/server/pkg/logger"
)

// Invoker turns a rendered prompt into raw model text. The caller owns the
// lifecycle around the call; Invoke itself is a single suspension point.
type Invoker interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// InvokerFunc adapts a plain function into an Invoker.
type InvokerFunc func(ctx context.Context, prompt string) (string, error)

func (f InvokerFunc) Invoke(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// ================ Gemini ================

type GeminiConfig struct {
	APIKey        string
	BaseURL       string
	Model         string
	MaxTokens     int
	Temperature   float32
	ToolMaxRounds int
}

// GeminiInvoker runs the Gemini chat model with the market tools bound,
// executing tool calls in a bounded loop until the model produces text.
type GeminiInvoker struct {
	chat      *gemini.ChatModel
	modelName string
	maxRounds int
	tools     map[string]tool.InvokableTool
}

func NewGeminiInvoker(ctx context.Context, config GeminiConfig, marketTools []tool.BaseTool) (*GeminiInvoker, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	chat, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.Model,
		Temperature: &config.Temperature,
		MaxTokens:   &config.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating response model")
		return nil, fmt.Errorf("error creating response model: %w", err)
	}

	infos := make([]*schema.ToolInfo, 0, len(marketTools))
	byName := make(map[string]tool.InvokableTool, len(marketTools))
	for _, t := range marketTools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("tool info: %w", err)
		}
		inv, ok := t.(tool.InvokableTool)
		if !ok {
			return nil, fmt.Errorf("tool %s is not invokable", info.Name)
		}
		infos = append(infos, info)
		byName[info.Name] = inv
	}
	if len(infos) > 0 {
		if err := chat.BindTools(infos); err != nil {
			logx.Error().Err(err).Msg("Error binding tools to response model")
			return nil, fmt.Errorf("error binding tools: %w", err)
		}
	}

	maxRounds := config.ToolMaxRounds
	if maxRounds <= 0 {
		maxRounds = 4
	}
	return &GeminiInvoker{
		chat:      chat,
		modelName: config.Model,
		maxRounds: maxRounds,
		tools:     byName,
	}, nil
}

func (g *GeminiInvoker) Invoke(ctx context.Context, prompt string) (string, error) {
	msgs := []*schema.Message{schema.UserMessage(prompt)}
	callSeq := 0

	for round := 0; ; round++ {
		out, err := g.chat.Generate(ctx, msgs)
		if err != nil {
			logx.Error().Err(err).Str("model", g.modelName).Msg("Model generation failed")
			return "", errx.WrapModel(err)
		}
		if out == nil {
			return "", errx.WrapModel(fmt.Errorf("model returned nil message"))
		}

		if len(out.ToolCalls) == 0 {
			logx.Debug().Str("model", g.modelName).Int("rounds", round).Msg("AI response ready")
			return out.Content, nil
		}
		if round >= g.maxRounds {
			return "", errx.WrapModel(fmt.Errorf("tool loop exceeded %d rounds", g.maxRounds))
		}

		// Some providers omit tool_call IDs; synthesize them so the tool
		// responses can be correlated.
		for i := range out.ToolCalls {
			if strings.TrimSpace(out.ToolCalls[i].ID) == "" {
				callSeq++
				out.ToolCalls[i].ID = fmt.Sprintf("call_%d", callSeq)
			}
		}
		msgs = append(msgs, out)

		logx.Debug().Int("tool_count", len(out.ToolCalls)).Msg("Calling tools")
		for _, tc := range out.ToolCalls {
			msgs = append(msgs, g.runToolCall(ctx, tc))
		}
	}
}

func (g *GeminiInvoker) runToolCall(ctx context.Context, tc schema.ToolCall) *schema.Message {
	inv, ok := g.tools[tc.Function.Name]
	if !ok {
		logx.Warn().Str("tool", tc.Function.Name).Msg("Model requested unknown tool")
		return schema.ToolMessage(fmt.Sprintf(`{"error":"unknown tool %q"}`, tc.Function.Name), tc.ID)
	}

	result, err := inv.InvokableRun(ctx, tc.Function.Arguments)
	if err != nil {
		logx.Warn().Err(err).Str("tool", tc.Function.Name).Msg("Tool execution failed")
		return schema.ToolMessage(fmt.Sprintf(`{"error":%q}`, err.Error()), tc.ID)
	}
	return schema.ToolMessage(result, tc.ID)
}
