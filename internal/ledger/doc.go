// Package ledger implements the durable record of what the pipeline has
// processed: the processed/failed identifier sets and the ordered episode
// catalog. It is the single source of truth for what the rest of the system
// believes exists.
package ledger
