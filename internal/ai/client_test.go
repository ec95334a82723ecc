package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestUpstream(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func modelReply(text string) string {
	body, _ := json.Marshal(map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]string{{"text": text}}}},
		},
	})
	return string(body)
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{APIKey: "k"})
	require.Error(t, err)

	_, err = NewClient(Config{BaseURL: "http://example.com"})
	require.Error(t, err)
}

func TestAskReturnsStructuredAnswer(t *testing.T) {
	var gotPath, gotKey string
	srv := newTestUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		require.Equal(t, "user", req.Contents[0].Role)
		require.Contains(t, req.Contents[0].Parts[0].Text, "FARMER'S QUESTION")

		fmt.Fprint(w, modelReply(`{"language":"hi-IN","answer":"यूरिया 45 किलो प्रति एकड़ डालें"}`))
	})

	frozen := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	client, err := NewClient(
		Config{BaseURL: srv.URL, APIKey: "secret", Model: "gemini-1.5-flash-latest"},
		WithNow(func() time.Time { return frozen }),
	)
	require.NoError(t, err)

	answer, err := client.Ask(context.Background(), AskRequest{Query: "गेहूं में कितना यूरिया डालें?"})
	require.NoError(t, err)
	require.Equal(t, "/v1beta/models/gemini-1.5-flash-latest:generateContent", gotPath)
	require.Equal(t, "secret", gotKey)
	require.Equal(t, "यूरिया 45 किलो प्रति एकड़ डालें", answer.Answer)
	require.Equal(t, "hi-IN", answer.Language)
	require.Equal(t, "gemini-ai", answer.Source)
	require.Equal(t, "gemini-1.5-flash-latest", answer.Model)
	require.Equal(t, frozen.Format(time.RFC3339), answer.Timestamp)
}

func TestAskUpstreamFailure(t *testing.T) {
	srv := newTestUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})

	client, err := NewClient(Config{BaseURL: srv.URL, APIKey: "k"})
	require.NoError(t, err)

	_, err = client.Ask(context.Background(), AskRequest{Query: "q"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "429")
}

func TestAskMalformedModelOutputFallsBack(t *testing.T) {
	srv := newTestUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, modelReply("no"))
	})

	client, err := NewClient(Config{BaseURL: srv.URL, APIKey: "k"})
	require.NoError(t, err)

	answer, err := client.Ask(context.Background(), AskRequest{Query: "q", TargetLang: "hi-IN"})
	require.NoError(t, err)
	require.Equal(t, FallbackAnswer, answer.Answer)
	require.Equal(t, "hi-IN", answer.Language)
}
