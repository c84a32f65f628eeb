// Package procreg provides a local, partitioned, concurrent key-to-process
// registry: name resolution, unique or duplicate key semantics, pattern and
// guard queries, broadcast-style dispatch, metadata storage, and per-key
// out-of-band locking, all tied to the lifetime of the registering
// processes.
//
// # Basic Usage
//
// Start a registry, register a process under a key, and look it up:
//
//	r, err := procreg.Start("sessions", procreg.WithKeys(procreg.KeysUnique))
//	if err != nil {
//	    // bad options
//	}
//	defer r.Stop()
//
//	owner := proc.Spawn(func(ctx context.Context) { <-ctx.Done() })
//	reg, err := r.Register(owner, "agent", config)
//
// In unique mode a second Register under the same key fails with
// *AlreadyRegisteredError carrying the current owner, which is how races
// to claim a name resolve: exactly one caller wins, the rest get the
// winner's handle.
//
// # Lifetimes
//
// Entries belong to the process that registered them. When the owner
// exits, the registry purges every entry it held; the notification is
// asynchronous, so readers may briefly observe entries of a dead owner.
// Metadata stored with PutMeta is exempt from this coupling.
//
// # Partitions
//
// The entry space is sharded across a configurable number of partitions.
// Each partition serializes its own writes; partitions never coordinate,
// so cross-partition results (duplicate-mode Lookup, Select, Dispatch,
// Count) are unions of snapshots taken at slightly different instants.
//
// # Queries
//
// Match filters one key's entries through a structural pattern plus
// guards; Select generalizes that across the whole registry with shaped
// output. See the match package for the pattern language.
package procreg
