package bot

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cmdpkg "github.com/quietfield/chatrelay/internal/commander"
	"github.com/quietfield/chatrelay/internal/control"
	"github.com/quietfield/chatrelay/internal/i18n"
	"github.com/quietfield/chatrelay/internal/journal"
	"github.com/quietfield/chatrelay/internal/llm"
	"github.com/quietfield/chatrelay/internal/session"
)

type sentMenu struct {
	chatID  int64
	text    string
	buttons []cmdpkg.Button
}

// fakeCommander serves scripted update batches and records every
// outbound message.
type fakeCommander struct {
	batches [][]cmdpkg.Update
	errs    []error
	calls   int
	offsets []int64

	sent  []string
	menus []sentMenu

	onPoll func(call int)
}

func (f *fakeCommander) GetUpdates(offset int64, _ int) ([]cmdpkg.Update, error) {
	call := f.calls
	f.calls++
	f.offsets = append(f.offsets, offset)
	if f.onPoll != nil {
		f.onPoll(call)
	}
	if call < len(f.errs) && f.errs[call] != nil {
		return nil, f.errs[call]
	}
	if call < len(f.batches) {
		return f.batches[call], nil
	}
	return nil, nil
}

func (f *fakeCommander) SendMessage(_ int64, text string) error {
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeCommander) SendMenu(chatID int64, text string, buttons []cmdpkg.Button) error {
	f.menus = append(f.menus, sentMenu{chatID: chatID, text: text, buttons: buttons})
	return nil
}

func textUpdate(id, chatID int64, text string) cmdpkg.Update {
	return cmdpkg.Update{
		UpdateID: id,
		Message: &cmdpkg.Message{
			Text: &text,
			Chat: cmdpkg.Chat{ID: chatID},
		},
	}
}

func newTestBot(t *testing.T, fc *fakeCommander, script string, maxHistory int) *Bot {
	t.Helper()
	completer, err := llm.NewDummyCompleter(script)
	require.NoError(t, err)
	return New(Options{
		Commander:  fc,
		Completer:  completer,
		Sessions:   session.NewManager(maxHistory, ""),
		MaxHistory: maxHistory,
		Sleep:      time.Millisecond,
	})
}

func TestHandleMessage_StartSendsMenu(t *testing.T) {
	fc := &fakeCommander{}
	b := newTestBot(t, fc, "", session.DefaultMaxHistory)

	b.handleMessage(context.Background(), 7, "/start")

	require.Len(t, fc.menus, 1)
	menu := fc.menus[0]
	assert.Equal(t, int64(7), menu.chatID)
	assert.Equal(t, i18n.Lookup(i18n.KeyWelcome, "en"), menu.text)
	require.Len(t, menu.buttons, 2)
	assert.Equal(t, "edit_system_prompt", menu.buttons[0].Data)
	assert.Equal(t, "reset_ctx", menu.buttons[1].Data)
}

func TestHandleMessage_HelpAndUnknownCommand(t *testing.T) {
	fc := &fakeCommander{}
	b := newTestBot(t, fc, "", session.DefaultMaxHistory)

	b.handleMessage(context.Background(), 7, "/help")
	b.handleMessage(context.Background(), 7, "/bogus")

	require.Len(t, fc.sent, 2)
	assert.Equal(t, i18n.Lookup(i18n.KeyHelp, "en"), fc.sent[0])
	assert.Equal(t, i18n.Lookup(i18n.KeyHelp, "en"), fc.sent[1])
}

func TestHandleMessage_SetPromptBlankIsRejected(t *testing.T) {
	fc := &fakeCommander{}
	b := newTestBot(t, fc, "", session.DefaultMaxHistory)
	b.sessions.SetSystemPrompt(7, "Be terse.")

	b.handleMessage(context.Background(), 7, "/systemprompt")
	b.handleMessage(context.Background(), 7, "/systemprompt    ")

	require.Len(t, fc.sent, 2)
	assert.Equal(t, i18n.Lookup(i18n.KeyPromptUsage, "en"), fc.sent[0])
	assert.Equal(t, i18n.Lookup(i18n.KeyPromptUsage, "en"), fc.sent[1])

	prompt, ok := b.sessions.SystemPrompt(7)
	require.True(t, ok)
	assert.Equal(t, "Be terse.", prompt)
}

func TestHandleMessage_SetAndShowPrompt(t *testing.T) {
	fc := &fakeCommander{}
	b := newTestBot(t, fc, "", session.DefaultMaxHistory)

	b.handleMessage(context.Background(), 7, "/showprompt")
	b.handleMessage(context.Background(), 7, "/systemprompt Answer in French.")
	b.handleMessage(context.Background(), 7, "/showprompt")

	require.Len(t, fc.sent, 3)
	assert.Equal(t, i18n.Lookup(i18n.KeyPromptNone, "en"), fc.sent[0])
	assert.Equal(t, fmt.Sprintf(i18n.Lookup(i18n.KeyPromptUpdated, "en"), "Answer in French."), fc.sent[1])
	assert.Equal(t, fmt.Sprintf(i18n.Lookup(i18n.KeyPromptCurrent, "en"), "Answer in French."), fc.sent[2])
}

func TestHandleMessage_ResetKeepsPrompt(t *testing.T) {
	fc := &fakeCommander{}
	b := newTestBot(t, fc, "", session.DefaultMaxHistory)
	b.sessions.SetSystemPrompt(7, "Be terse.")
	b.sessions.AppendUserMessage(7, "hi")
	b.sessions.RecordAssistantReply(7, "hello")

	b.handleMessage(context.Background(), 7, "/resetcontext")

	require.Len(t, fc.sent, 1)
	assert.Equal(t, i18n.Lookup(i18n.KeyResetDone, "en"), fc.sent[0])
	assert.Equal(t, 0, b.sessions.HistoryLen(7))
	prompt, ok := b.sessions.SystemPrompt(7)
	require.True(t, ok)
	assert.Equal(t, "Be terse.", prompt)
}

func TestHandleMessage_CallbackDataRoutes(t *testing.T) {
	fc := &fakeCommander{}
	b := newTestBot(t, fc, "", session.DefaultMaxHistory)
	b.sessions.AppendUserMessage(7, "hi")

	b.handleMessage(context.Background(), 7, "edit_system_prompt")
	b.handleMessage(context.Background(), 7, "reset_ctx")

	require.Len(t, fc.sent, 2)
	assert.Equal(t, i18n.Lookup(i18n.KeyPromptHowTo, "en"), fc.sent[0])
	assert.Equal(t, i18n.Lookup(i18n.KeyResetDone, "en"), fc.sent[1])
	assert.Equal(t, 0, b.sessions.HistoryLen(7))
}

func TestHandleMessage_CommandWithBotSuffix(t *testing.T) {
	fc := &fakeCommander{}
	b := newTestBot(t, fc, "", session.DefaultMaxHistory)

	b.handleMessage(context.Background(), 7, "/help@chatrelay_bot")

	require.Len(t, fc.sent, 1)
	assert.Equal(t, i18n.Lookup(i18n.KeyHelp, "en"), fc.sent[0])
}

func TestHandleText_RepliesAndRecords(t *testing.T) {
	fc := &fakeCommander{}
	b := newTestBot(t, fc, "", session.DefaultMaxHistory)

	b.handleMessage(context.Background(), 7, "what is 2+2?")

	require.Len(t, fc.sent, 1)
	assert.Equal(t, "what is 2+2?", fc.sent[0])
	assert.Equal(t, 2, b.sessions.HistoryLen(7))
}

func TestHandleText_FailureSendsApologyWithoutAssistantTurn(t *testing.T) {
	fc := &fakeCommander{}
	b := newTestBot(t, fc, "err:upstream down,echo", session.DefaultMaxHistory)

	b.handleMessage(context.Background(), 7, "first")
	require.Len(t, fc.sent, 1)
	assert.Equal(t, i18n.Lookup(i18n.KeyApology, "en"), fc.sent[0])
	assert.Equal(t, 1, b.sessions.HistoryLen(7))

	// The unanswered turn stays; the retry carries it exactly once.
	b.handleMessage(context.Background(), 7, "second")
	require.Len(t, fc.sent, 2)
	assert.Equal(t, "second", fc.sent[1])
	assert.Equal(t, 3, b.sessions.HistoryLen(7))
}

func TestHandleText_TruncationNotice(t *testing.T) {
	fc := &fakeCommander{}
	b := newTestBot(t, fc, "", 2)

	b.handleMessage(context.Background(), 7, "one")
	require.Len(t, fc.sent, 1)

	b.handleMessage(context.Background(), 7, "two")
	require.Len(t, fc.sent, 3)
	assert.Equal(t, fmt.Sprintf(i18n.Lookup(i18n.KeyTruncated, "en"), 2), fc.sent[1])
	assert.Equal(t, "two", fc.sent[2])
	// Compose kept the newest 2 turns; the new reply lands on top.
	assert.Equal(t, 3, b.sessions.HistoryLen(7))
}

func TestHandleText_WritesJournalEvents(t *testing.T) {
	db, err := journal.Open(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, journal.InitSchema(db))

	fc := &fakeCommander{}
	b := newTestBot(t, fc, "err:boom,echo", session.DefaultMaxHistory)
	b.db = db
	b.rootEventID, err = journal.LogEvent(db, nil, journal.EventProcessStarted, nil)
	require.NoError(t, err)

	b.handleMessage(context.Background(), 7, "first")
	b.handleMessage(context.Background(), 7, "second")

	counts := map[string]int{
		journal.EventMessageReceived:  2,
		journal.EventCompletionFailed: 1,
		journal.EventReplySent:        1,
	}
	for eventType, want := range counts {
		got, err := journal.CountEvents(db, eventType)
		require.NoError(t, err)
		assert.Equal(t, want, got, eventType)
	}
}

func TestRun_AdvancesOffsetAndStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fc := &fakeCommander{
		batches: [][]cmdpkg.Update{
			{textUpdate(10, 7, "hello"), textUpdate(11, 7, "/help")},
		},
		onPoll: func(call int) {
			if call >= 1 {
				cancel()
			}
		},
	}
	b := newTestBot(t, fc, "", session.DefaultMaxHistory)

	err := b.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.GreaterOrEqual(t, len(fc.offsets), 2)
	assert.Equal(t, int64(0), fc.offsets[0])
	assert.Equal(t, int64(12), fc.offsets[1])
	require.Len(t, fc.sent, 2)
	assert.Equal(t, "hello", fc.sent[0])
	assert.Equal(t, i18n.Lookup(i18n.KeyHelp, "en"), fc.sent[1])
}

func TestRun_TransportErrorsOpenCircuit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	transportErr := errors.New("telegram API error: 502")
	fc := &fakeCommander{
		errs: []error{transportErr, transportErr},
		onPoll: func(call int) {
			if call >= 1 {
				cancel()
			}
		},
	}
	b := newTestBot(t, fc, "", session.DefaultMaxHistory)
	b.breaker.Threshold = 2

	err := b.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, control.CircuitOpen, b.breaker.State())
}
