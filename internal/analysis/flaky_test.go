package analysis

import (
	"context"
	"math/rand"
	"testing"
	"time"
)

func newDeterministicGateway(failureRate float64) *FlakyGateway {
	return NewFlakyGateway(FlakyOptions{
		FailureRate: failureRate,
		Rand:        rand.New(rand.NewSource(42)),
	})
}

func TestFlakyGatewayAlwaysSucceedsAtZeroRate(t *testing.T) {
	gateway := newDeterministicGateway(0)

	for i := 0; i < 20; i++ {
		result, err := gateway.Analyze(context.Background(), Request{CallID: "call-1", Packets: 3})
		if err != nil {
			t.Fatalf("Analyze: %v", err)
		}
		if result.Transcription == "" {
			t.Fatal("expected a transcription")
		}
		switch result.Sentiment {
		case SentimentPositive, SentimentNeutral, SentimentNegative:
		default:
			t.Fatalf("unexpected sentiment %q", result.Sentiment)
		}
	}

	stats := gateway.Stats()
	if stats.Requests != 20 || stats.Successes != 20 || stats.Failures != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestFlakyGatewayAlwaysFailsAtFullRate(t *testing.T) {
	gateway := newDeterministicGateway(1)

	for i := 0; i < 10; i++ {
		_, err := gateway.Analyze(context.Background(), Request{CallID: "call-2"})
		if err == nil {
			t.Fatal("expected failure")
		}
		if !Retryable(err) {
			t.Fatalf("simulated outages must be retryable, got %v", err)
		}
		if Fatal(err) {
			t.Fatalf("simulated outages must not be fatal, got %v", err)
		}
	}

	stats := gateway.Stats()
	if stats.Failures != 10 || stats.Successes != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestFlakyGatewayRejectsEmptyCallID(t *testing.T) {
	gateway := newDeterministicGateway(0)

	_, err := gateway.Analyze(context.Background(), Request{})
	if err == nil {
		t.Fatal("expected error for empty call id")
	}
	if !Fatal(err) {
		t.Fatalf("empty call id should be fatal, got %v", err)
	}
}

func TestFlakyGatewayHonorsCancellation(t *testing.T) {
	gateway := NewFlakyGateway(FlakyOptions{
		MinLatency: 50 * time.Millisecond,
		MaxLatency: 50 * time.Millisecond,
		Rand:       rand.New(rand.NewSource(1)),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := gateway.Analyze(ctx, Request{CallID: "call-3"}); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestErrorMarkers(t *testing.T) {
	retryable := RetryableError("boom")
	fatal := FatalError("dead")

	if !Retryable(retryable) || Fatal(retryable) {
		t.Fatalf("retryable marker misclassified: %v", retryable)
	}
	if !Fatal(fatal) || Retryable(fatal) {
		t.Fatalf("fatal marker misclassified: %v", fatal)
	}
	if Retryable(nil) || Fatal(nil) {
		t.Fatal("nil must not match markers")
	}
}
