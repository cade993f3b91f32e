package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/marketchat/server/internal/assistant/model"
)

//go:embed template/snapshot_prompt.txt
var snapshotPrompt string

//go:embed template/support_resistance_prompt.txt
var supportResistancePrompt string

//go:embed template/technical_prompt.txt
var technicalPrompt string

//go:embed template/chat_prompt.txt
var chatPrompt string

var templatesByKind = map[model.RequestKind]string{
	model.KindNone:              chatPrompt,
	model.KindSnapshot:          snapshotPrompt,
	model.KindSupportResistance: supportResistancePrompt,
	model.KindTechnical:         technicalPrompt,
}

// Builder renders the per-kind request prompts. Rendering goes through the
// eino prompt component so prompt callbacks fire like any other component.
type Builder struct {
	cfg model.PromptConfig
}

func NewBuilder(cfg model.PromptConfig) *Builder {
	return &Builder{cfg: cfg}
}

// Build renders the prompt for one request. tickerText is a concrete symbol
// or the resolver's fallback phrase; userText carries optional custom
// instructions (or, for plain chat, the message itself).
func (b *Builder) Build(ctx context.Context, kind model.RequestKind, tickerText, userText string) (string, error) {
	raw, ok := templatesByKind[kind]
	if !ok {
		return "", fmt.Errorf("no prompt template for kind %q", kind)
	}

	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(raw),
	)
	vars := map[string]any{
		"AssistantName": b.cfg.AssistantName,
		"Disclaimer":    b.cfg.Disclaimer,
		"Ticker":        tickerText,
		"UserText":      userText,
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("prompt render: empty result")
	}
	return msgs[0].Content, nil
}
