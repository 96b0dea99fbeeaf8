// chatrelay bridges Telegram chats to an OpenAI-compatible completion
// endpoint, keeping a bounded per-user conversation history.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quietfield/chatrelay/internal/bot"
	"github.com/quietfield/chatrelay/internal/commander"
	"github.com/quietfield/chatrelay/internal/config"
	"github.com/quietfield/chatrelay/internal/control"
	"github.com/quietfield/chatrelay/internal/journal"
	"github.com/quietfield/chatrelay/internal/llm"
	"github.com/quietfield/chatrelay/internal/session"
	"github.com/quietfield/chatrelay/internal/telegram"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "chatrelay",
		Short: "Telegram bridge to an LLM completion endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			return run(configPath)
		},
	}
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (optional, env vars work without it)")

	if err := rootCmd.Execute(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := journal.Open(cfg.JournalPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer db.Close()
	if err := journal.InitSchema(db); err != nil {
		return fmt.Errorf("init journal schema: %w", err)
	}

	completer, err := newCompleter(cfg.LLM)
	if err != nil {
		return fmt.Errorf("init completer: %w", err)
	}

	var cmdr commander.Commander = telegram.NewClient(
		cfg.Telegram.BotAPIBase(),
		time.Duration(cfg.Telegram.PollTimeout+30)*time.Second,
	)

	b := bot.New(bot.Options{
		Commander:   cmdr,
		Completer:   completer,
		Sessions:    session.NewManager(cfg.Bot.MaxHistory, cfg.Bot.SystemPrompt),
		Journal:     db,
		Lang:        cfg.Bot.Lang,
		MaxHistory:  cfg.Bot.MaxHistory,
		PollTimeout: cfg.Telegram.PollTimeout,
		Sleep:       time.Duration(cfg.Telegram.SleepSecs) * time.Second,
		Breaker:     control.NewCircuitBreaker(cfg.Circuit.Threshold, cfg.Circuit.Cooldown),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model, "journal", cfg.JournalPath)
	if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("shutdown complete")
	return nil
}

func newCompleter(cfg config.LLMConfig) (llm.Completer, error) {
	switch cfg.Provider {
	case "openai":
		return llm.NewOpenAIClient(llm.Config{
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			MaxRetries: cfg.MaxRetries,
			Timeout:    cfg.Timeout,
		})
	case "dummy":
		return llm.NewDummyCompleter(cfg.DummyScript)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
