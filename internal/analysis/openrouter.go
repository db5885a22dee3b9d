package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	jsonResponseType   = "json_object"
	defaultHTTPTimeout = 30 * time.Second

	analysisSystemPrompt = `You are a call-center analysis service. Given a reconstructed call transcript, respond with JSON only: {"transcription": "<cleaned transcript summary>", "sentiment": "positive"|"neutral"|"negative"}.`
)

// OpenRouterConfig captures the runtime settings required to talk to the
// chat completion API.
type OpenRouterConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenRouterGateway analyzes calls through an OpenRouter chat completion
// endpoint. Each Analyze call is a single attempt; HTTP failures are
// classified for the caller's retry policy.
type OpenRouterGateway struct {
	cfg        OpenRouterConfig
	httpClient *http.Client
}

// OpenRouterOption customizes the gateway.
type OpenRouterOption func(*OpenRouterGateway)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) OpenRouterOption {
	return func(g *OpenRouterGateway) {
		if client != nil {
			g.httpClient = client
		}
	}
}

// NewOpenRouterGateway constructs a gateway using the supplied configuration.
func NewOpenRouterGateway(cfg OpenRouterConfig, opts ...OpenRouterOption) *OpenRouterGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	gateway := &OpenRouterGateway{
		cfg: OpenRouterConfig{
			APIKey:  strings.TrimSpace(cfg.APIKey),
			BaseURL: strings.TrimSpace(cfg.BaseURL),
			Model:   strings.TrimSpace(cfg.Model),
			Timeout: timeout,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(gateway)
	}
	if gateway.cfg.BaseURL == "" {
		gateway.cfg.BaseURL = "https://openrouter.ai/api/v1/chat/completions"
	}
	return gateway
}

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type analysisPayload struct {
	Transcription string `json:"transcription"`
	Sentiment     string `json:"sentiment"`
}

// Analyze issues one chat completion request and maps the response into a
// Result.
func (g *OpenRouterGateway) Analyze(ctx context.Context, req Request) (Result, error) {
	if g.cfg.APIKey == "" {
		return Result{}, FatalError("api key required")
	}
	transcript := strings.TrimSpace(req.Transcript)
	if transcript == "" {
		transcript = fmt.Sprintf("(no payload text; %d packets received for call %s)", req.Packets, req.CallID)
	}

	payload := chatCompletionRequest{
		Model: g.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: analysisSystemPrompt},
			{Role: "user", Content: transcript},
		},
		Temperature:    0,
		ResponseFormat: map[string]string{"type": jsonResponseType},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return Result{}, FatalError("encode request: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return Result{}, FatalError("build request: %v", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Result{}, err
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return Result{}, RetryableError("request timed out: %v", err)
		}
		return Result{}, RetryableError("http error: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, RetryableError("read body: %v", err)
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		snippet := strings.TrimSpace(string(body))
		switch {
		case resp.StatusCode == http.StatusRequestTimeout,
			resp.StatusCode == http.StatusTooManyRequests,
			resp.StatusCode >= http.StatusInternalServerError:
			return Result{}, RetryableError("http %d: %s", resp.StatusCode, snippet)
		default:
			return Result{}, FatalError("http %d: %s", resp.StatusCode, snippet)
		}
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return Result{}, RetryableError("decode response: %v", err)
	}
	if completion.Error != nil {
		return Result{}, RetryableError("api error: %s", strings.TrimSpace(completion.Error.Message))
	}
	if len(completion.Choices) == 0 {
		return Result{}, RetryableError("empty choices")
	}

	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	var parsed analysisPayload
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return Result{}, RetryableError("parse payload: %v", err)
	}

	sentiment := strings.ToLower(strings.TrimSpace(parsed.Sentiment))
	switch sentiment {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
	default:
		sentiment = SentimentNeutral
	}

	return Result{
		Transcription: strings.TrimSpace(parsed.Transcription),
		Sentiment:     sentiment,
		Latency:       time.Since(started),
	}, nil
}
