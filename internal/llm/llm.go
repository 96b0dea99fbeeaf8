// Package llm abstracts the remote chat-completion endpoint behind the
// Completer interface and provides an OpenAI-compatible client plus a
// deterministic local stand-in.
package llm

import (
	"context"

	"github.com/quietfield/chatrelay/internal/session"
)

// Completer executes one chat completion over an ordered, role-tagged
// message list and returns the generated text. Failures are the
// caller's to absorb: the bot substitutes a fixed apology and records
// no assistant turn.
type Completer interface {
	Complete(ctx context.Context, messages []session.Turn) (string, error)
}
