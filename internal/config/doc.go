// Package config loads, normalizes, and validates the callwave TOML
// configuration. A commented sample file is written on first run so operators
// can discover every knob without reading source.
package config
