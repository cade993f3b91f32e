package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/marketchat/server/internal/assistant/llm"
	"github.com/marketchat/server/internal/assistant/model"
	"github.com/marketchat/server/internal/assistant/prompts"
	"github.com/marketchat/server/internal/assistant/repo"
	"github.com/marketchat/server/internal/assistant/service"
	"github.com/marketchat/server/internal/assistant/session"
	"github.com/marketchat/server/internal/assistant/tools"
	"github.com/marketchat/server/internal/core"
	logx "github.com/marketchat/server/pkg/logger"
	pkgredis "github.com/marketchat/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the assistant example,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"APP_ENV" default:"development"`

	// Infrastructure
	Redis    pkgredis.Config
	AuditDSN string `envconfig:"AUDIT_POSTGRES_DSN"`

	// LLM provider; leave GEMINI_API_KEY unset to run with canned answers
	APIKey  string `envconfig:"GEMINI_API_KEY"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Assistant configs
	Chat         model.ChatModelConfig
	Prompt       model.PromptConfig
	Conversation model.ConversationConfig
	Session      model.SessionConfig
}

func main() {
	fmt.Println("MarketChat request lifecycle demo...")
	ctx := context.Background()

	// Load .env file
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Load structured config from env
	var envCfg AppConfig
	if err := envconfig.Process("", &envCfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}
	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(envCfg.Environment)})

	rdb, err := envCfg.Redis.New()
	if err != nil {
		log.Fatalf("Failed to initialise Redis client: %v", err)
	}
	defer rdb.Close()
	fmt.Println("Connected to Redis successfully")

	ttl, err := time.ParseDuration(envCfg.Conversation.TTL)
	if err != nil {
		log.Fatalf("Invalid CONVERSATION_TTL '%s': %v", envCfg.Conversation.TTL, err)
	}
	conv := repo.NewRedisConversationRepository(rdb, ttl)

	var audit *repo.CycleStore
	if envCfg.AuditDSN != "" {
		audit, err = repo.NewCycleStore(envCfg.AuditDSN)
		if err != nil {
			log.Fatalf("Failed to initialise audit store: %v", err)
		}
		defer audit.Close()
		fmt.Println("Cycle archiving enabled")
	}

	invoker, err := buildInvoker(ctx, envCfg)
	if err != nil {
		log.Fatalf("Failed to build model invoker: %v", err)
	}

	builder := prompts.NewBuilder(envCfg.Prompt)
	sessions := session.NewManager(envCfg.Conversation, envCfg.Session, builder.Build)
	if err := sessions.StartSweeper(); err != nil {
		log.Fatalf("Failed to start session sweeper: %v", err)
	}
	defer sessions.StopSweeper()

	svc := service.New(sessions, conv, invoker, audit)

	testActions := []struct {
		description string
		action      service.UserAction
	}{
		{
			description: "Snapshot via explicit symbol",
			action:      service.UserAction{Kind: "snapshot", Text: "Give me a snapshot of $AAPL"},
		},
		{
			description: "Support and resistance for a company name",
			action:      service.UserAction{Kind: "support_resistance", Text: "Where are the key levels for Apple?"},
		},
		{
			description: "Technical follow-up using session memory",
			action:      service.UserAction{Kind: "technical", Text: "And how do the technicals look?"},
		},
		{
			description: "Plain chat",
			action:      service.UserAction{Kind: "none", Text: "Thanks, that helps a lot!"},
		},
	}

	sessionID := session.NewSessionID()
	for i, test := range testActions {
		fmt.Printf("\nTest %d: %s\n", i+1, test.description)
		fmt.Printf("Action: kind=%s text=%q\n", test.action.Kind, test.action.Text)
		fmt.Println("Processing...")

		display, err := svc.Submit(ctx, sessionID, test.action)
		if err != nil {
			log.Fatalf("Failed to submit action %d: %v", i+1, err)
		}

		fmt.Printf("Response %d (%s via %s): %s\n", i+1, display.Ticker, display.TickerSource, display.Text)
		for _, row := range display.Table {
			fmt.Printf("  %-16s %.2f\n", row.Label, row.Value)
		}
		if display.Confidence != "" {
			fmt.Printf("Extraction confidence: %s, warnings: %v\n", display.Confidence, display.Warnings)
		}
		if !svc.Displayed(sessionID) {
			log.Fatalf("Failed to acknowledge display for action %d", i+1)
		}
		fmt.Println("────────────────────────────────────────────")

		// slight delay between tests for readability
		time.Sleep(500 * time.Millisecond)
	}

	snap := svc.GetSnapshot(sessionID, 12)
	fmt.Printf("\nSession %s finished in state %q after %d recent transitions, tickers seen: %v\n",
		snap.SessionID, snap.State, len(snap.LastTransitions), snap.TickersSeen)
}

// buildInvoker returns the Gemini invoker when an API key is configured and
// a canned offline invoker otherwise, so the demo runs without credentials.
func buildInvoker(ctx context.Context, cfg AppConfig) (llm.Invoker, error) {
	if cfg.APIKey != "" {
		return llm.NewGeminiInvoker(ctx, llm.GeminiConfig{
			APIKey:        cfg.APIKey,
			BaseURL:       cfg.BaseURL,
			Model:         cfg.Chat.Model,
			MaxTokens:     cfg.Chat.MaxTokens,
			Temperature:   cfg.Chat.Temperature,
			ToolMaxRounds: cfg.Chat.ToolMaxRounds,
		}, tools.GetMarketTools())
	}

	fmt.Println("GEMINI_API_KEY not set, using canned offline answers")
	return llm.InvokerFunc(func(ctx context.Context, prompt string) (string, error) {
		return "Current price: $182.31, up 2.4% today, gaining $4.25, " +
			"Trading volume: 45.2M shares, VWAP: $181.85, Open: $179.65, " +
			"High: $183.50, Low: $178.92, Previous close: $178.02. " +
			"Support levels: $178.50, $175.20, $172.80. Resistance levels: $185.00, $188.40, $192.10. " +
			"RSI (14): 62.5, MACD: 1.25, SMA 5: $181.20, SMA 200: $168.40, EMA 5: $181.65, EMA 200: $170.10.", nil
	}), nil
}
