// Package wire extracts and packs the fixed-layout fields SHE carries in its
// M1/M2 messages and the M4 confirmation word (spec.md §4.B), plus a BE32
// helper. The other commands' request fields are decoded in internal/dispatch
// itself. All multi-byte integers on the wire are big-endian.
package wire

import "github.com/barnettlynn/she-core/internal/sheconst"

// M1Fields is the content of a 16-byte M1 message: 15 bytes of UID followed
// by a packed byte carrying the destination slot ID and the authenticating
// slot ID.
type M1Fields struct {
	UID    [sheconst.UIDSize]byte
	ID     sheconst.Slot // high nibble of M1[15]
	AuthID sheconst.Slot // low nibble of M1[15]
}

// DecodeM1 unpacks a 16-byte M1 buffer.
func DecodeM1(m1 []byte) M1Fields {
	var f M1Fields
	copy(f.UID[:], m1[:sheconst.UIDSize])
	tail := m1[sheconst.UIDSize]
	f.AuthID = sheconst.Slot(tail & 0x0F)
	f.ID = sheconst.Slot((tail >> 4) & 0x0F)
	return f
}

// EncodeM1 packs M1Fields into a 16-byte buffer.
func EncodeM1(f M1Fields) [16]byte {
	var out [16]byte
	copy(out[:sheconst.UIDSize], f.UID[:])
	out[sheconst.UIDSize] = byte(f.ID<<4) | (byte(f.AuthID) & 0x0F)
	return out
}

// M2Header is the flag/counter region packed into the first bytes of a
// 32-byte M2 message (spec.md §4.B): a 28-bit big-endian counter followed by
// a 5-bit flags field split across the low nibble of byte 3 and the high
// bit of byte 4.
//
// Flags is normalized to a contiguous 0..31 value for masking against
// sheconst.FlagWriteProtect/FlagWildcard: bits 0-3 come from the wire nibble
// at M2[3]&0x0F (SHE's four recognized+carried key flags, in the same bit
// order as the stored key record's flags field), bit 4 is the extra bit
// carried in M2[4]'s top bit (carried verbatim, not enforced by this core —
// see spec.md §3's "other SHE flags" note).
type M2Header struct {
	Counter uint32 // low 28 bits significant
	Flags   byte   // low 5 bits significant
}

// DecodeM2Header reads the counter/flags region from the first 5 bytes of a
// decrypted M2 payload (M2').
func DecodeM2Header(m2 []byte) M2Header {
	counter := (uint32(m2[0]) << 20) | (uint32(m2[1]) << 12) | (uint32(m2[2]) << 4) | (uint32(m2[3]) >> 4)
	flags := (m2[3] & 0x0F) | (((m2[4] & 0x80) >> 7) << 4)
	return M2Header{Counter: counter, Flags: flags}
}

// EncodeM2Header writes the counter/flags region into the first 5 bytes of
// dst (dst must be at least 5 bytes; only dst[4]'s top bit is touched, its
// low 7 bits are left as-is for the caller to fill with key material).
func EncodeM2Header(dst []byte, h M2Header) {
	c := h.Counter & 0x0FFFFFFF
	dst[0] = byte(c >> 20)
	dst[1] = byte(c >> 12)
	dst[2] = byte(c >> 4)
	dst[3] = byte(c<<4) | (h.Flags & 0x0F)
	dst[4] = (dst[4] & 0x7F) | ((h.Flags & 0x10) << 3)
}

// CounterPaddingWord builds the 4-byte big-endian word SHE uses as the
// high-order part of the ECB confirmation block in LOAD_KEY/EXPORT_RAM_KEY:
// the new counter in its high 28 bits, followed by a single set padding bit
// (spec.md §4.E step 6).
func CounterPaddingWord(counter uint32) [4]byte {
	var out [4]byte
	c := (counter & 0x0FFFFFFF) << 4
	c |= 0x8 // mandatory padding marker bit immediately after the counter
	out[0] = byte(c >> 24)
	out[1] = byte(c >> 16)
	out[2] = byte(c >> 8)
	out[3] = byte(c)
	return out
}

// BE32 encodes v as 4 big-endian bytes.
func BE32(v uint32) [4]byte {
	return [4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}
