package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quietfield/chatrelay/internal/session"
)

func newTestClient(t *testing.T, baseURL string) *OpenAIClient {
	t.Helper()
	c, err := NewOpenAIClient(Config{
		BaseURL:    baseURL,
		APIKey:     "test-key",
		Model:      "deepseek-chat",
		MaxRetries: 1,
		Timeout:    5 * time.Second,
	})
	require.NoError(t, err)
	return c
}

func TestNewOpenAIClient_RequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIClient(Config{})
	assert.Error(t, err)
}

func TestComplete_ForwardsMessagesAndReturnsContent(t *testing.T) {
	var gotReq struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &gotReq))
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"four"}}]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	reply, err := c.Complete(context.Background(), []session.Turn{
		{Role: session.RoleSystem, Content: "Be terse"},
		{Role: session.RoleUser, Content: "2+2?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "four", reply)
	assert.Equal(t, "deepseek-chat", gotReq.Model)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "Be terse", gotReq.Messages[0].Content)
	assert.Equal(t, "user", gotReq.Messages[1].Role)
}

func TestComplete_RetriesTransientFailure(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, `{"error":{"message":"upstream busy"}}`, http.StatusInternalServerError)
			return
		}
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`)
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(Config{
		BaseURL:    srv.URL,
		APIKey:     "test-key",
		MaxRetries: 2,
		Timeout:    10 * time.Second,
	})
	require.NoError(t, err)

	reply, err := c.Complete(context.Background(), []session.Turn{{Role: session.RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
	assert.Equal(t, 2, calls)
}

func TestComplete_EmptyChoicesIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Complete(context.Background(), []session.Turn{{Role: session.RoleUser, Content: "hi"}})
	assert.Error(t, err)
}
