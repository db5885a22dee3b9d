// Package store persists calls and packets in SQLite and owns every
// state transition through compare-and-swap updates on the status column.
package store
