// Package store is the record store adapter of the perks ledger: an ordered
// byte-keyed map with transactional get, put and range scan.
//
// Four backends implement the same Backend interface:
//   - memory: a mutex-guarded map, used by replay and tests
//   - sqlite: a single-connection SQLite database (WAL, synchronous=NORMAL)
//   - leveldb: goleveldb with one transaction per Update
//   - bbolt: a single bucket in a bbolt file
//
// # Ordering
//
// Scans return keys in byte order on every backend, so "r_10" sorts before
// "r_2". Callers that depend on scan order depend on key order only, never
// on write history.
//
// # Atomicity
//
// Every Update runs its function against one transaction. If the function
// returns an error nothing it wrote is committed. Writers are serialized by
// the backend.
//
// Values are stored as given; the ledger always passes canonical JSON from
// internal/ir, which keeps stores written by independent engines
// byte-identical.
package store
