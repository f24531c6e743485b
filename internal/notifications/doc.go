// Package notifications sends operator-facing push notifications via ntfy.
// With no topic configured the service degrades to a noop, so callers never
// guard their notification calls.
package notifications
