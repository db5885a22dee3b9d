// Package notifications delivers pipeline milestones via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when no topic is set. All
// scheduler code depends only on the small Service interface.
package notifications
