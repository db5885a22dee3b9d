package analysis

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// FlakyOptions configures the simulated provider.
type FlakyOptions struct {
	FailureRate float64
	MinLatency  time.Duration
	MaxLatency  time.Duration
	Rand        *rand.Rand // deterministic source for tests
}

// FlakyGateway simulates an unreliable transcription provider: it sleeps a
// random latency, fails a configurable fraction of requests with a
// retryable error, and otherwise returns a canned transcription with a
// weighted sentiment.
type FlakyGateway struct {
	failureRate float64
	minLatency  time.Duration
	maxLatency  time.Duration

	mu        sync.Mutex
	rng       *rand.Rand
	requests  int64
	successes int64
	failures  int64
}

// FlakyStats exposes request counters for status output.
type FlakyStats struct {
	Requests  int64
	Successes int64
	Failures  int64
}

var transcriptionTemplates = []string{
	"Customer called about a billing discrepancy on their latest invoice and requested an itemized breakdown.",
	"Caller reported intermittent service outages over the past week and asked for a technician visit.",
	"Customer wanted to upgrade their plan and asked about promotional pricing for existing subscribers.",
	"Caller requested cancellation of an add-on service and confirmation of the new monthly total.",
	"Customer asked about international roaming charges ahead of an upcoming trip.",
	"Caller followed up on a previous support ticket that had not received a response.",
}

// weightedSentiments biases toward neutral outcomes the way real call
// volumes skew.
var weightedSentiments = []string{
	SentimentNeutral, SentimentNeutral, SentimentNeutral,
	SentimentPositive, SentimentPositive,
	SentimentNegative,
}

// NewFlakyGateway constructs the simulated provider.
func NewFlakyGateway(opts FlakyOptions) *FlakyGateway {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	minLatency := opts.MinLatency
	if minLatency < 0 {
		minLatency = 0
	}
	maxLatency := opts.MaxLatency
	if maxLatency < minLatency {
		maxLatency = minLatency
	}
	return &FlakyGateway{
		failureRate: clampRate(opts.FailureRate),
		minLatency:  minLatency,
		maxLatency:  maxLatency,
		rng:         rng,
	}
}

func clampRate(rate float64) float64 {
	if rate < 0 {
		return 0
	}
	if rate > 1 {
		return 1
	}
	return rate
}

// Analyze simulates one provider attempt.
func (g *FlakyGateway) Analyze(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.CallID) == "" {
		return Result{}, FatalError("call id is empty")
	}

	g.mu.Lock()
	g.requests++
	latency := g.minLatency
	if span := g.maxLatency - g.minLatency; span > 0 {
		latency += time.Duration(g.rng.Int63n(int64(span)))
	}
	failed := g.rng.Float64() < g.failureRate
	template := transcriptionTemplates[g.rng.Intn(len(transcriptionTemplates))]
	sentiment := weightedSentiments[g.rng.Intn(len(weightedSentiments))]
	g.mu.Unlock()

	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			g.recordFailure()
			return Result{}, ctx.Err()
		case <-timer.C:
		}
	}

	if failed {
		g.recordFailure()
		return Result{}, RetryableError("simulated provider outage for call %s", req.CallID)
	}

	g.mu.Lock()
	g.successes++
	g.mu.Unlock()

	transcription := template
	if req.Packets > 0 {
		transcription = fmt.Sprintf("%s (reconstructed from %d packets)", template, req.Packets)
	}
	return Result{
		Transcription: transcription,
		Sentiment:     sentiment,
		Latency:       latency,
	}, nil
}

func (g *FlakyGateway) recordFailure() {
	g.mu.Lock()
	g.failures++
	g.mu.Unlock()
}

// Stats returns a snapshot of request counters.
func (g *FlakyGateway) Stats() FlakyStats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return FlakyStats{
		Requests:  g.requests,
		Successes: g.successes,
		Failures:  g.failures,
	}
}
