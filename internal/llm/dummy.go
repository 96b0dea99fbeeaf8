package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/quietfield/chatrelay/internal/session"
)

// DummyCompleter is a script-driven local Completer for development
// and tests. The script is a comma-separated action list consumed one
// action per call, the last action repeating forever:
//
//	echo        reply with the latest user turn's content
//	msg:<text>  reply with the literal text
//	err:<text>  fail with the given message
//
// An empty script behaves like "echo".
type DummyCompleter struct {
	mu      sync.Mutex
	actions []dummyAction
	index   int
}

type dummyAction struct {
	kind string
	arg  string
}

// NewDummyCompleter parses the script and returns the completer.
func NewDummyCompleter(script string) (*DummyCompleter, error) {
	actions, err := parseDummyScript(script)
	if err != nil {
		return nil, err
	}
	return &DummyCompleter{actions: actions}, nil
}

func parseDummyScript(script string) ([]dummyAction, error) {
	if strings.TrimSpace(script) == "" {
		return []dummyAction{{kind: "echo"}}, nil
	}
	parts := strings.Split(script, ",")
	actions := make([]dummyAction, 0, len(parts))
	for _, p := range parts {
		token := strings.TrimSpace(p)
		switch {
		case token == "":
			continue
		case token == "echo":
			actions = append(actions, dummyAction{kind: "echo"})
		case strings.HasPrefix(token, "msg:"):
			actions = append(actions, dummyAction{kind: "msg", arg: strings.TrimPrefix(token, "msg:")})
		case strings.HasPrefix(token, "err:"):
			actions = append(actions, dummyAction{kind: "err", arg: strings.TrimPrefix(token, "err:")})
		default:
			return nil, fmt.Errorf("invalid dummy action: %s", token)
		}
	}
	if len(actions) == 0 {
		actions = append(actions, dummyAction{kind: "echo"})
	}
	return actions, nil
}

func (d *DummyCompleter) next() dummyAction {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.index >= len(d.actions) {
		return d.actions[len(d.actions)-1]
	}
	a := d.actions[d.index]
	d.index++
	return a
}

// Complete executes the next scripted action.
func (d *DummyCompleter) Complete(_ context.Context, messages []session.Turn) (string, error) {
	switch a := d.next(); a.kind {
	case "msg":
		return a.arg, nil
	case "err":
		return "", fmt.Errorf("dummy completion error: %s", a.arg)
	default:
		for i := len(messages) - 1; i >= 0; i-- {
			if messages[i].Role == session.RoleUser {
				return messages[i].Content, nil
			}
		}
		return "(no user turn)", nil
	}
}

var _ Completer = (*DummyCompleter)(nil)
