// Package store keeps a collection of uniquely keyed records in memory and
// mirrors it to a single JSON file.
//
// # Persistence
//
// Every mutation marks the store dirty and rearms a debounce timer. When the
// quiet window (DefaultQuietWindow unless overridden) passes without another
// mutation, a flush request is handed to the store's flush worker. The worker
// is a single goroutine fed by a one-slot channel, so at most one
// asynchronous write is ever in flight and requests that pile up while a
// write is running collapse into one follow-up write.
//
// A flush snapshots the whole sequence under the store lock and then writes
// it without holding that lock, so mutations keep flowing during the write
// and land in the next flush. Files are replaced atomically (temp file,
// fsync, rename). The dirty flag is cleared only after a confirmed write
// that captured the latest mutation; failed writes are logged, reported to
// the error handler and retried one quiet window later.
//
// # Emergency flush
//
// EmergencyFlush is the termination path. The first call on a dirty store
// latches the store, cancels the pending timer and writes synchronously,
// waiting for an in-flight asynchronous write to finish first. Once latched
// the store is read-only: mutations fail with CLOSED and no timers are armed.
// Stores register EmergencyFlush with a shutdown hook registry (see package
// lifecycle) through WithShutdownHooks.
//
// # File layout
//
//	<dir>/<name>.ds.json    [{"id":1,...},{"id":2,...}]
//
// The file is read in full by Open, created as an empty array when absent,
// and always overwritten in full.
//
// # Concurrency
//
// All methods are safe for concurrent use. Predicates passed to ReadWhere,
// UpdateWhere and DeleteWhere run under the store lock and must not call
// back into the store.
package store
