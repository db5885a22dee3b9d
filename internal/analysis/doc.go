// Package analysis defines the gateway contract for transcription and
// sentiment analysis, a simulated flaky provider, and an OpenRouter-backed
// provider. Gateways perform a single attempt; retries live with the caller.
package analysis
