// Package config loads, normalizes, and validates the TOML configuration
// that drives the pipeline. All components receive an explicit *Config; there
// are no process-wide configuration singletons.
package config
