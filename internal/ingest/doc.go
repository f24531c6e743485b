// Package ingest drives the pipeline: for each configured feed it decides
// which remote entries to process, runs fetch, transcription, alignment and
// rendering for each, and commits the outcome to the ledger. One entry's
// failure never aborts its siblings, and the ledger only advances after the
// rendered artifact is verified on disk.
package ingest
