package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newCompletionServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "gpt-4o-mini", body["model"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"upstream unavailable","type":"server_error"}}`))
			return
		}
		payload := map[string]interface{}{
			"id":     "chatcmpl-test",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []map[string]interface{}{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": content},
			}},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		}
		require.NoError(t, json.NewEncoder(w).Encode(payload))
	}))
}

func TestOpenAIGraderParsesStructuredReply(t *testing.T) {
	server := newCompletionServer(t, http.StatusOK, `{"grade":"A-","feedback":"Solid work."}`)
	defer server.Close()

	grader, err := NewOpenAIGrader(OpenAIConfig{APIKey: "test", BaseURL: server.URL + "/v1", Structured: true, Logger: zerolog.Nop()})
	require.NoError(t, err)

	result, err := grader.Grade(context.Background(), GradeRequest{Filename: "essay.txt", Content: "text"})
	require.NoError(t, err)
	require.Equal(t, "A-", result.Grade)
	require.Equal(t, "Solid work.", result.Feedback)
	require.Equal(t, 15, result.Usage["total_tokens"])
	require.Equal(t, "openai", grader.Provider())
}

func TestOpenAIGraderReportsUnparsableReply(t *testing.T) {
	server := newCompletionServer(t, http.StatusOK, "I think this deserves a good mark.")
	defer server.Close()

	grader, err := NewOpenAIGrader(OpenAIConfig{APIKey: "test", BaseURL: server.URL + "/v1", Logger: zerolog.Nop()})
	require.NoError(t, err)

	_, err = grader.Grade(context.Background(), GradeRequest{Filename: "essay.txt", Content: "text"})
	require.ErrorIs(t, err, ErrUnparsableResponse)
}

func TestOpenAIGraderSurfacesTransportErrors(t *testing.T) {
	server := newCompletionServer(t, http.StatusInternalServerError, "")
	defer server.Close()

	grader, err := NewOpenAIGrader(OpenAIConfig{APIKey: "test", BaseURL: server.URL + "/v1", Logger: zerolog.Nop()})
	require.NoError(t, err)

	_, err = grader.Grade(context.Background(), GradeRequest{Filename: "essay.txt", Content: "text"})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrUnparsableResponse)
}

func TestNewOpenAIGraderRequiresKey(t *testing.T) {
	_, err := NewOpenAIGrader(OpenAIConfig{})
	require.Error(t, err)
}
