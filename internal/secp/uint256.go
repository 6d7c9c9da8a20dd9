package secp

import (
	"encoding/binary"
	"encoding/hex"
	"math/big"
)

// Uint256 is a 256-bit unsigned integer in device layout: eight 32-bit words,
// most significant word first.
type Uint256 [8]uint32

// Uint256FromBytes converts a big-endian 32-byte value.
func Uint256FromBytes(b *[32]byte) Uint256 {
	var u Uint256
	for i := range u {
		u[i] = binary.BigEndian.Uint32(b[i*4:])
	}
	return u
}

// Uint256FromBig converts a non-negative integer of at most 256 bits.
// Higher bits are dropped.
func Uint256FromBig(v *big.Int) Uint256 {
	var b [32]byte
	v.FillBytes(b[:])
	return Uint256FromBytes(&b)
}

// Bytes returns the big-endian encoding.
func (u Uint256) Bytes() [32]byte {
	var b [32]byte
	for i, w := range u {
		binary.BigEndian.PutUint32(b[i*4:], w)
	}
	return b
}

// Big returns u as a big.Int.
func (u Uint256) Big() *big.Int {
	b := u.Bytes()
	return new(big.Int).SetBytes(b[:])
}

// Cmp compares u and o and returns -1, 0 or +1.
func (u Uint256) Cmp(o Uint256) int {
	for i := range u {
		switch {
		case u[i] < o[i]:
			return -1
		case u[i] > o[i]:
			return 1
		}
	}
	return 0
}

// IsZero reports whether every word is zero.
func (u Uint256) IsZero() bool {
	return u == Uint256{}
}

// String returns the 64 character hex encoding.
func (u Uint256) String() string {
	b := u.Bytes()
	return hex.EncodeToString(b[:])
}
