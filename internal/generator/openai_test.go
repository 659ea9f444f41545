package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("What is Go?", "Go is a language.")
	assert.Contains(t, p, "Context:\nGo is a language.\n")
	assert.Contains(t, p, "Question:\nWhat is Go?\n")
	assert.Contains(t, p, "Don't make up information.")
	assert.True(t, strings.Index(p, "Context:") < strings.Index(p, "Question:"))
}

func TestNewOpenAI_RequiresCredentials(t *testing.T) {
	_, err := NewOpenAI(Config{BaseURL: "http://x"})
	assert.Error(t, err)
	_, err = NewOpenAI(Config{APIKey: "k"})
	assert.Error(t, err)

	g, err := NewOpenAI(Config{APIKey: "k", BaseURL: "http://x"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, g.ModelName())
}

func completionServer(t *testing.T, status int, content string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if seen != nil {
			_ = json.NewDecoder(r.Body).Decode(seen)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			fmt.Fprint(w, `{"error":{"message":"upstream exploded","type":"server_error"}}`)
			return
		}
		body := map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		}
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerate(t *testing.T) {
	var seen map[string]any
	srv := completionServer(t, http.StatusOK, "Go is a programming language.", &seen)

	g, err := NewOpenAI(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1/", Model: "test-model"})
	require.NoError(t, err)

	answer, err := g.Generate(context.Background(), "What is Go?", "Go is a language.")
	require.NoError(t, err)
	assert.Equal(t, "Go is a programming language.", answer)

	assert.Equal(t, "test-model", seen["model"])
	assert.InDelta(t, DefaultTemperature, seen["temperature"], 1e-9)
	messages := seen["messages"].([]any)
	require.Len(t, messages, 1)
	msg := messages[0].(map[string]any)
	assert.Equal(t, "user", msg["role"])
	assert.Equal(t, BuildPrompt("What is Go?", "Go is a language."), msg["content"])
}

func TestGenerate_ServerError(t *testing.T) {
	srv := completionServer(t, http.StatusInternalServerError, "", nil)
	g, err := NewOpenAI(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1/"})
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), "q", "c")
	assert.Error(t, err)
}
