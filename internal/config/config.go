// Package config loads bot configuration from an optional YAML file
// and CHATRELAY_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/quietfield/chatrelay/internal/i18n"
	"github.com/quietfield/chatrelay/internal/session"
)

// TelegramConfig holds transport settings.
type TelegramConfig struct {
	Token       string
	APIBase     string
	PollTimeout int
	SleepSecs   int
}

// LLMConfig holds completion-endpoint settings.
type LLMConfig struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxRetries  int
	DummyScript string
}

// BotConfig holds conversation policy settings.
type BotConfig struct {
	MaxHistory   int
	SystemPrompt string
	Lang         string
}

// CircuitConfig holds poll-loop breaker settings.
type CircuitConfig struct {
	Threshold int
	Cooldown  time.Duration
}

// Config is the full bot configuration.
type Config struct {
	Telegram    TelegramConfig
	LLM         LLMConfig
	Bot         BotConfig
	Circuit     CircuitConfig
	JournalPath string
}

// APIBase returns the bot API base URL including the token.
func (c TelegramConfig) BotAPIBase() string {
	base := c.APIBase
	if base == "" {
		base = "https://api.telegram.org"
	}
	return fmt.Sprintf("%s/bot%s", strings.TrimRight(base, "/"), c.Token)
}

// Load reads configuration from the given file (optional, "" skips
// it) and the environment, validates it, and returns the result.
// Missing required credentials are an error; the process should exit
// rather than start degraded.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CHATRELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.api_base", "https://api.telegram.org")
	v.SetDefault("telegram.poll_timeout", 30)
	v.SetDefault("telegram.sleep", 1)
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://api.deepseek.com")
	v.SetDefault("llm.model", "deepseek-chat")
	v.SetDefault("llm.timeout", "120s")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.dummy_script", "")
	v.SetDefault("bot.max_history", session.DefaultMaxHistory)
	v.SetDefault("bot.system_prompt", "")
	v.SetDefault("bot.lang", i18n.DefaultLang)
	v.SetDefault("circuit.threshold", 5)
	v.SetDefault("circuit.cooldown", "30s")
	v.SetDefault("journal.path", "data/chatrelay.db")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := Config{
		Telegram: TelegramConfig{
			Token:       v.GetString("telegram.token"),
			APIBase:     v.GetString("telegram.api_base"),
			PollTimeout: v.GetInt("telegram.poll_timeout"),
			SleepSecs:   v.GetInt("telegram.sleep"),
		},
		LLM: LLMConfig{
			Provider:    v.GetString("llm.provider"),
			APIKey:      v.GetString("llm.api_key"),
			BaseURL:     v.GetString("llm.base_url"),
			Model:       v.GetString("llm.model"),
			Timeout:     v.GetDuration("llm.timeout"),
			MaxRetries:  v.GetInt("llm.max_retries"),
			DummyScript: v.GetString("llm.dummy_script"),
		},
		Bot: BotConfig{
			MaxHistory:   v.GetInt("bot.max_history"),
			SystemPrompt: v.GetString("bot.system_prompt"),
			Lang:         v.GetString("bot.lang"),
		},
		Circuit: CircuitConfig{
			Threshold: v.GetInt("circuit.threshold"),
			Cooldown:  v.GetDuration("circuit.cooldown"),
		},
		JournalPath: v.GetString("journal.path"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required (set CHATRELAY_TELEGRAM_TOKEN)")
	}
	switch c.LLM.Provider {
	case "openai":
		if c.LLM.APIKey == "" {
			return fmt.Errorf("llm.api_key is required when llm.provider=openai (set CHATRELAY_LLM_API_KEY)")
		}
	case "dummy":
	default:
		return fmt.Errorf("unsupported llm.provider: %s", c.LLM.Provider)
	}
	if !i18n.Supported(c.Bot.Lang) {
		return fmt.Errorf("unsupported bot.lang: %s", c.Bot.Lang)
	}
	if c.Bot.MaxHistory <= 0 {
		return fmt.Errorf("bot.max_history must be positive, got %d", c.Bot.MaxHistory)
	}
	return nil
}
