package analysis

import (
	"context"
	"fmt"
	"time"

	"callwave/internal/config"
)

// Request carries everything a provider needs for one analysis attempt.
type Request struct {
	CallID     string
	Transcript string
	Packets    int
}

// Result is a completed transcription plus sentiment label.
type Result struct {
	Transcription string
	Sentiment     string
	Latency       time.Duration
}

// Gateway performs one analysis attempt. Implementations classify failures
// with ErrRetryable or ErrFatal so the caller's retry policy can decide
// whether to try again.
type Gateway interface {
	Analyze(ctx context.Context, req Request) (Result, error)
}

// Sentiment labels providers may return.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// NewGateway constructs the provider selected by configuration.
func NewGateway(cfg *config.Config) (Gateway, error) {
	switch cfg.Analysis.Provider {
	case config.ProviderFlaky:
		return NewFlakyGateway(FlakyOptions{
			FailureRate: cfg.Analysis.FailureRate,
			MinLatency:  cfg.Analysis.MinLatencyDuration(),
			MaxLatency:  cfg.Analysis.MaxLatencyDuration(),
		}), nil
	case config.ProviderOpenRouter:
		return NewOpenRouterGateway(OpenRouterConfig{
			APIKey:  cfg.Analysis.APIKey,
			BaseURL: cfg.Analysis.BaseURL,
			Model:   cfg.Analysis.Model,
			Timeout: time.Duration(cfg.Analysis.TimeoutSeconds) * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("analysis provider: unsupported value %q", cfg.Analysis.Provider)
	}
}
