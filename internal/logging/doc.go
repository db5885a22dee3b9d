// Package logging builds the slog loggers used across callwave: a pretty
// console handler for interactive use, a JSON handler for machine ingestion,
// standardized attribute helpers, and context propagation of call
// identifiers so every log line produced while working on a call carries it.
package logging
