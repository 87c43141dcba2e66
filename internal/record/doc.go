// Package record defines what the store can hold.
//
// A record is any Go value that reports an integer identifier through
// RecordID. The store treats everything else about a record as opaque and
// owned by the caller's schema: it only ever serializes records to JSON,
// decodes them back, and merges shallow field patches into them.
//
// Two kinds of record are common:
//
//   - Typed structs with an `id` JSON field and a RecordID method.
//   - Document, a schemaless map used by the CLI and HTTP layers.
//
// Records returned by the store are shared with it. Callers must treat them
// as read-only; updates go through the store, which replaces the stored value
// with a freshly merged one and never mutates a record in place.
package record
