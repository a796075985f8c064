// Package store provides SQLite-backed local storage for liftsync.
//
// Two tables:
//   - kv: the persisted intent record under persist.RecordKey. Writes
//     replace the previous value; there is no versioning.
//   - snapshot_journal: an append-only diagnostic log of server snapshots.
//     Entries are ordered by seq, never by the server timestamp, matching
//     the order in which snapshots were applied.
//
// The schema is versioned through PRAGMA user_version and upgraded on Open.
// Connections run in WAL mode with a 5s busy timeout.
//
// Store implements persist.Storage and session.Journal.
package store
