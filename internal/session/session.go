// Package session owns per-user conversation state: the ordered turn
// history and the optional system prompt injected ahead of it.
package session

import "sync"

// Turn roles as expected by chat completion endpoints.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultMaxHistory is the retained-turn cap applied at request
// composition time.
const DefaultMaxHistory = 40

// Turn is one role-tagged message unit within a session's history.
type Turn struct {
	Role    string
	Content string
}

type state struct {
	history      []Turn
	systemPrompt string
}

// Manager maps user identities to their conversation state. It is the
// only component that mutates a session. Operations on a single user
// are expected to be serialized by the caller (the bot loop processes
// one event end-to-end); the internal lock only keeps the registry and
// slice headers coherent for concurrent readers such as tests.
type Manager struct {
	mu         sync.Mutex
	sessions   map[int64]*state
	maxHistory int
	seedPrompt string
}

// NewManager creates a session registry. maxHistory <= 0 falls back to
// DefaultMaxHistory. seedPrompt, when non-empty, becomes the system
// prompt of newly created sessions; empty means sessions start with no
// system directive.
func NewManager(maxHistory int, seedPrompt string) *Manager {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Manager{
		sessions:   make(map[int64]*state),
		maxHistory: maxHistory,
		seedPrompt: seedPrompt,
	}
}

// get returns the session for userID, creating it lazily.
func (m *Manager) get(userID int64) *state {
	s, ok := m.sessions[userID]
	if !ok {
		s = &state{systemPrompt: m.seedPrompt}
		m.sessions[userID] = s
	}
	return s
}

// AppendUserMessage appends a user turn. No truncation happens here;
// the cap is enforced at composition time so eviction always removes
// the oldest turns.
func (m *Manager) AppendUserMessage(userID int64, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.get(userID)
	s.history = append(s.history, Turn{Role: RoleUser, Content: text})
}

// RecordAssistantReply appends an assistant turn. The next
// ComposeRequest catches any overflow.
func (m *Manager) RecordAssistantReply(userID int64, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.get(userID)
	s.history = append(s.history, Turn{Role: RoleAssistant, Content: text})
}

// ComposeRequest builds the outbound message list for userID: one
// system turn iff a system prompt is set, then the history in order.
// If the stored history exceeds the cap it is permanently replaced
// with its newest maxHistory entries and truncated reports true, so
// the caller can tell the user that older turns were dropped.
func (m *Manager) ComposeRequest(userID int64) (messages []Turn, truncated bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.get(userID)

	if len(s.history) > m.maxHistory {
		kept := make([]Turn, m.maxHistory)
		copy(kept, s.history[len(s.history)-m.maxHistory:])
		s.history = kept
		truncated = true
	}

	messages = make([]Turn, 0, len(s.history)+1)
	if s.systemPrompt != "" {
		messages = append(messages, Turn{Role: RoleSystem, Content: s.systemPrompt})
	}
	messages = append(messages, s.history...)
	return messages, truncated
}

// SetSystemPrompt overwrites the session's system prompt. Input
// validation (rejecting blank text) is the caller's job; history is
// untouched.
func (m *Manager) SetSystemPrompt(userID int64, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.get(userID).systemPrompt = text
}

// SystemPrompt returns the session's system prompt and whether one is
// set.
func (m *Manager) SystemPrompt(userID int64) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.get(userID).systemPrompt
	return p, p != ""
}

// ResetContext clears the conversation history. The system prompt is
// configuration, not conversation, and survives the reset.
func (m *Manager) ResetContext(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.get(userID).history = nil
}

// HistoryLen reports the number of stored turns for userID.
func (m *Manager) HistoryLen(userID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.get(userID).history)
}
