package analysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *OpenRouterGateway {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewOpenRouterGateway(OpenRouterConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "test-model",
	})
}

func completionBody(content string) []byte {
	payload := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	encoded, _ := json.Marshal(payload)
	return encoded
}

func TestOpenRouterAnalyzeSuccess(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing auth header")
		}
		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("unexpected model %q", req.Model)
		}
		w.Write(completionBody(`{"transcription": "caller asked about roaming", "sentiment": "positive"}`))
	})

	result, err := gateway.Analyze(context.Background(), Request{CallID: "call-1", Transcript: "hello"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.Transcription != "caller asked about roaming" {
		t.Fatalf("unexpected transcription %q", result.Transcription)
	}
	if result.Sentiment != SentimentPositive {
		t.Fatalf("unexpected sentiment %q", result.Sentiment)
	}
}

func TestOpenRouterNormalizesUnknownSentiment(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(completionBody(`{"transcription": "summary", "sentiment": "ecstatic"}`))
	})

	result, err := gateway.Analyze(context.Background(), Request{CallID: "call-2", Transcript: "hi"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.Sentiment != SentimentNeutral {
		t.Fatalf("expected neutral fallback, got %q", result.Sentiment)
	}
}

func TestOpenRouterClassifiesServerErrorsRetryable(t *testing.T) {
	for _, status := range []int{http.StatusInternalServerError, http.StatusTooManyRequests, http.StatusBadGateway} {
		gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})
		_, err := gateway.Analyze(context.Background(), Request{CallID: "call-3", Transcript: "x"})
		if !Retryable(err) {
			t.Fatalf("http %d should be retryable, got %v", status, err)
		}
	}
}

func TestOpenRouterClassifiesClientErrorsFatal(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound} {
		gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})
		_, err := gateway.Analyze(context.Background(), Request{CallID: "call-4", Transcript: "x"})
		if !Fatal(err) {
			t.Fatalf("http %d should be fatal, got %v", status, err)
		}
	}
}

func TestOpenRouterRequiresAPIKey(t *testing.T) {
	gateway := NewOpenRouterGateway(OpenRouterConfig{})
	_, err := gateway.Analyze(context.Background(), Request{CallID: "call-5"})
	if !Fatal(err) {
		t.Fatalf("missing api key should be fatal, got %v", err)
	}
}

func TestOpenRouterUndecodablePayloadRetryable(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(completionBody("not json at all"))
	})
	_, err := gateway.Analyze(context.Background(), Request{CallID: "call-6", Transcript: "x"})
	if !Retryable(err) {
		t.Fatalf("undecodable payload should be retryable, got %v", err)
	}
}
