// Package ledger holds the bookkeeping rules of the perks ledger: the
// participant registries, purchases and reward tokens.
//
// Every method takes the store.Tx of the invocation it runs in and never
// commits or rolls back itself. Counters and registries live in the same
// store as the assets, under keys that begin with "~":
//
//	~counter/purchase     next purchase number
//	~counter/reward       next reward number
//	~registry/student     JSON array of student identities
//	~registry/outlet      JSON array of outlet identities
//	~registry/university  JSON array of university identities
//
// Asset scans cover ["", "~") and never see these keys.
package ledger
