// Package offload moves selected record fields into a blob store and brings
// them back on demand.
//
// # Overview
//
// A [Registry] names the fields of a record type that are offloadable. An
// [Engine] binds a registry to a [blobstore.Store]. [Engine.Offload] runs
// before a record is persisted: each registered field that holds a value is
// encoded, written to the store, replaced by a handle in the record's
// [RefMap] and removed from the record. [Engine.Rehydrate] does the reverse in
// memory only; the Reference Map is never modified by it.
//
// # Encoding
//
// Values are encoded as JSON with encoding/json. Rehydrated values are the
// result of decoding into an any: objects become map[string]any, arrays
// []any, numbers float64. A field value therefore round-trips to the same
// value a JSON load of the record would have produced.
//
// # Batches
//
// All per-field store calls of one Offload or Rehydrate run concurrently and
// the call returns only once every one of them has settled. The first failure
// cancels the context handed to the others and is the error returned.
//
// Offload is all or nothing: the record is only mutated after every put
// succeeded. Blobs written by the successful puts of a failed batch are not
// deleted.
//
// Rehydrate is not: fields fetched before a failure stay set on the record.
//
// # Concurrency
//
// An Engine is safe for concurrent use across records. A single record must
// not be offloaded or rehydrated concurrently; callers serialize saves.
package offload
