// Package api defines the transport-facing call representations shared by
// the HTTP server, the CLI client, and report generation.
package api
