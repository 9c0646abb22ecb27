// Package jsonldb provides a concurrent-safe, JSONL-backed document store.
//
// # Overview
//
// The package centers around [Collection], which stores [Document] values in
// a JSONL (JSON Lines) file with full in-memory caching for fast reads.
// Collections are safe for concurrent use by multiple goroutines.
//
// # Save hooks
//
// [Collection.OnBeforeSave] registers [Hook] functions that run, in order and
// outside the collection lock, before a document is written. A failing hook
// vetoes the write. This is where [offload.Engine.BeforeSave] plugs in so that
// large fields are moved to a blob store before the document reaches disk.
//
// # File Format
//
// One JSON object per line. "_id" holds the ksid of the document and
// "_blobs" the Reference Map of offloaded fields; every other key is a field.
// Documents are sorted by ID on load if out of order (handles manual edits).
// Each save rewrites the file through a temp file and a rename.
package jsonldb
