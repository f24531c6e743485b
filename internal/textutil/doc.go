// Package textutil provides text normalization helpers shared across the
// pipeline: slug derivation for episode and feed names, and filesystem-safe
// sanitization.
package textutil
