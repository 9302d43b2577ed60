// Package shectx holds the per-client SHE session state (spec.md §3): UID
// latching, secure-boot progress, PRNG working set, and the RAM-key-plain
// gate. One Context exists per logical client; the dispatcher never shares
// one across concurrent clients (spec.md §5).
package shectx

import (
	"hash"

	"github.com/sixafter/nanoid"

	"github.com/barnettlynn/she-core/internal/sheconst"
)

// BootState is the closed secure-boot state variant (spec.md §3/§9: "model
// sb_state as a closed variant with explicit transitions").
type BootState int

const (
	BootInit BootState = iota
	BootUpdate
	BootFinish
	BootSuccess
	BootFailure
)

// Context is the mutable per-client SHE session (spec.md §3). It is created
// with all fields zeroed at session start and destroyed at session end;
// only the keystore's persisted state (keys, counters, PRNG seed) outlives
// it.
type Context struct {
	// SessionID is an opaque per-context identifier shown by operational
	// tooling (cmd/she-repl's banner); the dispatcher's log lines do not
	// include it. spec.md leaves the identifier scheme unspecified
	// (§9 open question on per-context vs shared state), so this core mints
	// one per Context via a nanoid generator.
	SessionID string

	Client string // the keystore namespace this context's slots live under

	UID    [sheconst.UIDSize]byte
	UIDSet bool

	BootState      BootState
	BootSize       uint32
	BootReceived   uint32
	CMACKeyFound   bool
	BootCMAC       hash.Hash // streaming CMAC state across SECURE_BOOT_UPDATE calls

	RNDInited  bool
	PRNGState  [sheconst.KeySize]byte
	PRNGKey    [sheconst.KeySize]byte

	// RAMKeyPlain gates EXPORT_RAM_KEY (spec.md §3/§4.F): true once the RAM
	// slot has been loaded with plaintext-known material, by LOAD_PLAIN_KEY
	// or by a successful LOAD_KEY targeting RAM_KEY_ID.
	RAMKeyPlain bool
}

// New creates a zeroed Context for client, latching nothing yet.
func New(client string) (*Context, error) {
	id, err := nanoid.New()
	if err != nil {
		return nil, err
	}
	return &Context{SessionID: id, Client: client}, nil
}

// ResetBoot restores the secure-boot state machine to INIT, as the
// dispatcher does after any non-skip boot failure (spec.md §4.D) so the
// client may retry.
func (c *Context) ResetBoot() {
	c.BootState = BootInit
	c.BootSize = 0
	c.BootReceived = 0
	c.CMACKeyFound = false
	c.BootCMAC = nil
}

// Zeroize clears volatile key material on context teardown (spec.md §5:
// prng_key/prng_state and decrypted key material must be zeroized on exit).
func (c *Context) Zeroize() {
	for i := range c.PRNGState {
		c.PRNGState[i] = 0
	}
	for i := range c.PRNGKey {
		c.PRNGKey[i] = 0
	}
}

// SREG computes the GET_STATUS bitfield (spec.md §4.D).
func (c *Context) SREG() uint16 {
	var reg uint16
	if c.CMACKeyFound {
		reg |= sheconst.SREGSecureBoot
	}
	if c.BootState == BootSuccess || c.BootState == BootFailure {
		reg |= sheconst.SREGBootFinished
	}
	if c.BootState == BootSuccess && c.CMACKeyFound {
		reg |= sheconst.SREGBootOK
	}
	if c.RNDInited {
		reg |= sheconst.SREGRNDInit
	}
	return reg
}
