// Package logging configures slog for the pipeline: a compact console
// handler for interactive runs, a JSON handler for machine consumption, and
// attribute helpers shared by every component.
package logging
