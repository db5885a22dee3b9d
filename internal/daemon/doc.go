// Package daemon ties the store, scheduler, API server, and broadcaster
// into a single lifecycle with flock-based locking to prevent multiple
// concurrent instances.
package daemon
