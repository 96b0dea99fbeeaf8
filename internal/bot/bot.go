// Package bot wires the transport, the session registry, and the
// completion client into the event loop: one inbound event handled
// end-to-end before the next, so per-user session access stays
// serialized.
package bot

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	cmdpkg "github.com/quietfield/chatrelay/internal/commander"
	"github.com/quietfield/chatrelay/internal/control"
	"github.com/quietfield/chatrelay/internal/i18n"
	"github.com/quietfield/chatrelay/internal/journal"
	"github.com/quietfield/chatrelay/internal/llm"
	"github.com/quietfield/chatrelay/internal/session"
)

// Callback data attached to the /start inline keyboard.
const (
	callbackEditPrompt = "edit_system_prompt"
	callbackResetCtx   = "reset_ctx"
)

// Options configures a Bot. Journal may be nil to disable event
// recording.
type Options struct {
	Commander   cmdpkg.Commander
	Completer   llm.Completer
	Sessions    *session.Manager
	Journal     *sql.DB
	Lang        string
	MaxHistory  int
	PollTimeout int
	Sleep       time.Duration
	Breaker     *control.CircuitBreaker
}

// Bot runs the poll loop and routes commands, button callbacks, and
// free text.
type Bot struct {
	commander   cmdpkg.Commander
	completer   llm.Completer
	sessions    *session.Manager
	db          *sql.DB
	lang        string
	maxHistory  int
	pollTimeout int
	sleep       time.Duration
	breaker     *control.CircuitBreaker
	rootEventID int64
}

// New creates a Bot from opts.
func New(opts Options) *Bot {
	lang := opts.Lang
	if lang == "" {
		lang = i18n.DefaultLang
	}
	maxHistory := opts.MaxHistory
	if maxHistory <= 0 {
		maxHistory = session.DefaultMaxHistory
	}
	breaker := opts.Breaker
	if breaker == nil {
		breaker = control.NewCircuitBreaker(5, 30*time.Second)
	}
	sleep := opts.Sleep
	if sleep <= 0 {
		sleep = time.Second
	}
	return &Bot{
		commander:   opts.Commander,
		completer:   opts.Completer,
		sessions:    opts.Sessions,
		db:          opts.Journal,
		lang:        lang,
		maxHistory:  maxHistory,
		pollTimeout: opts.PollTimeout,
		sleep:       sleep,
		breaker:     breaker,
	}
}

// Run polls for updates until ctx is cancelled. Transport errors feed
// the circuit breaker; every handled message ends in a reply, so a
// failed completion never stops the loop.
func (b *Bot) Run(ctx context.Context) error {
	runID := uuid.NewString()
	b.rootEventID = b.logEvent(nil, journal.EventProcessStarted, map[string]any{
		"run_id": runID,
		"pid":    os.Getpid(),
	})
	slog.Info("bot running", "run_id", runID, "lang", b.lang, "max_history", b.maxHistory)

	var offset int64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		prevState := b.breaker.State()
		if !b.breaker.Allow(time.Now()) {
			b.pause(ctx)
			continue
		}

		updates, err := b.commander.GetUpdates(offset, b.pollTimeout)
		if err != nil {
			slog.Warn("getUpdates error", "error", err)
			wasOpen := b.breaker.State() == control.CircuitOpen
			b.breaker.RecordFailure("transport_api", time.Now())
			if !wasOpen && b.breaker.State() == control.CircuitOpen {
				b.logEvent(&b.rootEventID, journal.EventCircuitOpened, map[string]any{
					"error_class":      "transport_api",
					"threshold":        b.breaker.Threshold,
					"cooldown_seconds": int(b.breaker.Cooldown.Seconds()),
				})
			}
			b.pause(ctx)
			continue
		}
		if prevState != control.CircuitClosed {
			b.breaker.RecordSuccess()
			b.logEvent(&b.rootEventID, journal.EventCircuitClosed, map[string]any{"recovered": true})
		}

		for _, update := range updates {
			offset = update.UpdateID + 1

			if update.Message == nil || update.Message.Text == nil {
				continue
			}
			text := strings.TrimSpace(*update.Message.Text)
			if text == "" {
				continue
			}
			b.handleMessage(ctx, update.Message.Chat.ID, text)
		}

		if len(updates) == 0 {
			b.pause(ctx)
		}
	}
}

// handleMessage routes one inbound text event.
func (b *Bot) handleMessage(ctx context.Context, chatID int64, text string) {
	switch cmd, args := splitCommand(text); cmd {
	case "/start":
		b.sendMenu(chatID, b.text(i18n.KeyWelcome), []cmdpkg.Button{
			{Label: b.text(i18n.KeyButtonEdit), Data: callbackEditPrompt},
			{Label: b.text(i18n.KeyButtonReset), Data: callbackResetCtx},
		})
	case "/help":
		b.send(chatID, b.text(i18n.KeyHelp))
	case "/systemprompt":
		b.handleSetPrompt(chatID, args)
	case "/showprompt":
		b.handleShowPrompt(chatID)
	case "/resetcontext":
		b.handleReset(chatID)
	case callbackEditPrompt:
		b.send(chatID, b.text(i18n.KeyPromptHowTo))
	case callbackResetCtx:
		b.handleReset(chatID)
	default:
		if strings.HasPrefix(cmd, "/") {
			b.send(chatID, b.text(i18n.KeyHelp))
			return
		}
		b.handleText(ctx, chatID, text)
	}
}

// handleText runs the conversation flow: append, compose, complete,
// record, reply.
func (b *Bot) handleText(ctx context.Context, chatID int64, text string) {
	msgEventID := b.logEvent(&b.rootEventID, journal.EventMessageReceived, map[string]any{
		"chat_id":  chatID,
		"text_len": len(text),
	})
	slog.Info("message received", "chat_id", chatID, "text_len", len(text))

	b.sessions.AppendUserMessage(chatID, text)
	messages, truncated := b.sessions.ComposeRequest(chatID)
	if truncated {
		slog.Info("history truncated", "chat_id", chatID, "kept", b.maxHistory)
		b.logEvent(&msgEventID, journal.EventContextTruncated, map[string]any{
			"chat_id": chatID,
			"kept":    b.maxHistory,
		})
		b.send(chatID, fmt.Sprintf(b.text(i18n.KeyTruncated), b.maxHistory))
	}

	reply, err := b.completer.Complete(ctx, messages)
	if err != nil {
		// The user turn stays in history with no assistant turn, so
		// the next request carries it exactly once.
		slog.Error("completion failed", "chat_id", chatID, "error", err)
		b.logEvent(&msgEventID, journal.EventCompletionFailed, map[string]any{
			"chat_id": chatID,
			"error":   truncate(err.Error(), 500),
		})
		b.send(chatID, b.text(i18n.KeyApology))
		return
	}

	b.sessions.RecordAssistantReply(chatID, reply)
	b.send(chatID, reply)
	b.logEvent(&msgEventID, journal.EventReplySent, map[string]any{"chat_id": chatID})
}

func (b *Bot) handleSetPrompt(chatID int64, args string) {
	prompt := strings.TrimSpace(args)
	if prompt == "" {
		// Blank input never reaches the session registry.
		b.send(chatID, b.text(i18n.KeyPromptUsage))
		return
	}
	b.sessions.SetSystemPrompt(chatID, prompt)
	b.logEvent(&b.rootEventID, journal.EventPromptUpdated, map[string]any{
		"chat_id":    chatID,
		"prompt_len": len(prompt),
	})
	b.send(chatID, fmt.Sprintf(b.text(i18n.KeyPromptUpdated), prompt))
}

func (b *Bot) handleShowPrompt(chatID int64) {
	prompt, ok := b.sessions.SystemPrompt(chatID)
	if !ok {
		b.send(chatID, b.text(i18n.KeyPromptNone))
		return
	}
	b.send(chatID, fmt.Sprintf(b.text(i18n.KeyPromptCurrent), prompt))
}

func (b *Bot) handleReset(chatID int64) {
	b.sessions.ResetContext(chatID)
	b.logEvent(&b.rootEventID, journal.EventSessionReset, map[string]any{"chat_id": chatID})
	b.send(chatID, b.text(i18n.KeyResetDone))
}

func (b *Bot) send(chatID int64, text string) {
	if err := b.commander.SendMessage(chatID, text); err != nil {
		slog.Warn("sendMessage failed", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) sendMenu(chatID int64, text string, buttons []cmdpkg.Button) {
	if err := b.commander.SendMenu(chatID, text, buttons); err != nil {
		slog.Warn("sendMenu failed", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) text(key string) string {
	return i18n.Lookup(key, b.lang)
}

// logEvent records a journal event, returning its id. A nil journal
// or a write failure only costs the event, never the message flow.
func (b *Bot) logEvent(parentID *int64, eventType string, payload map[string]any) int64 {
	if b.db == nil {
		return 0
	}
	id, err := journal.LogEvent(b.db, parentID, eventType, payload)
	if err != nil {
		slog.Warn("journal write failed", "event_type", eventType, "error", err)
		return 0
	}
	return id
}

func (b *Bot) pause(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(b.sleep):
	}
}

// splitCommand separates the leading command word (with any @botname
// suffix stripped) from its arguments.
func splitCommand(text string) (string, string) {
	word, args, _ := strings.Cut(text, " ")
	if at := strings.Index(word, "@"); at > 0 && strings.HasPrefix(word, "/") {
		word = word[:at]
	}
	return word, args
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
