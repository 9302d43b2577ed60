// Package keystore defines the SHE core's NVM adapter contract (spec.md
// §4.C) and ships three interchangeable backends behind it: an in-memory
// store for tests, a crash-safe YAML snapshot store for development/single-
// node deployments, and a gorm-backed SQL store for production.
//
// The keystore/NVM backend proper is explicitly out of the SHE core's scope
// (spec.md §1); this package is the external collaborator it talks to.
package keystore

import (
	"context"
	"errors"

	"github.com/barnettlynn/she-core/internal/sheconst"
)

// ErrNotFound is returned by Store.ReadKey when no record exists for an id.
var ErrNotFound = errors.New("keystore: key not found")

// ID addresses a key record by client and slot, matching spec.md §3's
// composite id `(type=SHE, client, slot)`. The type tag is implicit: every
// record in this store is a SHE key.
type ID struct {
	Client string
	Slot   sheconst.Slot
}

// Metadata is a key record's non-key-material half: its flags and
// monotonic counter (spec.md §3).
type Metadata struct {
	Flags byte
	Count uint32
}

// Record is a full key-slot entry.
type Record struct {
	ID       ID
	Metadata Metadata
	Key      [sheconst.KeySize]byte
}

// Store is the keystore adapter contract components D-H dispatch against.
// ReadKey and AddObject model persistent NVM; CacheKey is the write path used
// for the RAM-key slot. None of the backends in this package keeps a separate
// volatile cache: MemStore, FileStore and SQLStore implement CacheKey as the
// same write as AddObject, so FileStore and SQLStore persist a cached RAM key
// across restarts just like any other slot.
type Store interface {
	// ReadKey returns ErrNotFound if no record exists for id.
	ReadKey(ctx context.Context, id ID) (Record, error)
	// CacheKey installs a volatile (RAM) record, visible to ReadKey but not
	// necessarily surviving process restart.
	CacheKey(ctx context.Context, rec Record) error
	// AddObject durably persists rec, evicting any cached copy at the same id.
	AddObject(ctx context.Context, rec Record) error
}

// Snapshot is a read-only view used by operational tooling (cmd/she-repl) to
// list stored slot metadata without exposing key material. Not every Store
// implementation needs to support it; callers type-assert.
type Snapshot interface {
	DumpMetadata(ctx context.Context, client string) (map[sheconst.Slot]Metadata, error)
}
