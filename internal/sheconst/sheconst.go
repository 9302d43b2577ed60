// Package sheconst carries the fixed numeric constants of the SHE command
// set: reserved key-slot identifiers, the AES-MP16 domain-separation
// constants, command opcodes, and the GET_STATUS SREG bit positions.
//
// Per spec.md §6/§9, the exact numeric values for opcodes and SREG bits are
// externally specified by the SHE target the integrator is matching; the
// values below are one concrete, internally-consistent assignment (documented
// in DESIGN.md as an Open Question decision), not a universal standard.
package sheconst

// Action is a dispatched SHE command opcode.
type Action uint16

const (
	SetUID Action = iota + 1
	SecureBootInit
	SecureBootUpdate
	SecureBootFinish
	GetStatus
	LoadKey
	LoadPlainKey
	ExportRAMKey
	InitRND
	RND
	ExtendSeed
	EncECB
	EncCBC
	DecECB
	DecCBC
	GenMAC
	VerifyMAC
)

// Slot is a 4-bit SHE key-slot identifier within a client's namespace.
type Slot byte

// Reserved slot IDs (spec.md §3). Values chosen to fit the 4-bit SHE slot
// field and to stay out of the way of a typical 10-slot key table.
const (
	SecretKeyID   Slot = 0x0
	BootMACKeyID  Slot = 0x1
	BootMAC       Slot = 0x2
	RAMKeyID      Slot = 0xE
	PRNGSeedID    Slot = 0xF
	MinUserSlotID Slot = 0x4
	MaxUserSlotID Slot = 0xD
)

// Key-record flag bits (spec.md §3). The stored flags byte carries M2's
// 5-bit flags field verbatim (see wire.M2Header); the write-protect and
// wildcard checks in LOAD_KEY/LOAD_PLAIN_KEY only look at these two low
// bits, which are the ones this core enforces.
const (
	FlagWriteProtect byte = 1 << 0
	FlagWildcard     byte = 1 << 1
)

// SREG bits returned by GET_STATUS (spec.md §4.D).
const (
	SREGSecureBoot   uint16 = 1 << 0
	SREGBootFinished uint16 = 1 << 1
	SREGBootOK       uint16 = 1 << 2
	SREGRNDInit      uint16 = 1 << 3
)

// KeySize is the width in bytes of every SHE AES-128 key and MP16 output.
const KeySize = 16

// UIDSize is the width in bytes of the SHE 120-bit UID field.
const UIDSize = 15

func mustKey(b []byte) [KeySize]byte {
	var out [KeySize]byte
	copy(out[:], b)
	return out
}

// SHE's fixed 16-byte KDF domain-separation constants (spec.md §6).
var (
	CEnc      = mustKey([]byte{0x01, 0x01, 0x53, 0x48, 0x45, 0x00, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xB0})
	CMac      = mustKey([]byte{0x01, 0x02, 0x53, 0x48, 0x45, 0x00, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xB0})
	CPRNGKey  = mustKey([]byte{0x01, 0x04, 0x53, 0x48, 0x45, 0x00, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xB0})
	CPRNGSeed = mustKey([]byte{0x01, 0x05, 0x53, 0x48, 0x45, 0x00, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xB0})
)
