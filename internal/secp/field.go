package secp

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// FieldElement is an integer modulo the field prime P. Values are kept
// normalized so that equality and parity checks are direct.
type FieldElement struct {
	f secp256k1.FieldVal
}

// FieldFromUint64 returns v as a field element.
func FieldFromUint64(v uint64) FieldElement {
	var b [32]byte
	for i := 0; i < 8; i++ {
		b[31-i] = byte(v >> (8 * i))
	}
	var e FieldElement
	e.f.SetBytes(&b)
	return e
}

// FieldFromBytes interprets b as a big-endian integer. The second result is
// false when b is not below P.
func FieldFromBytes(b *[32]byte) (FieldElement, bool) {
	var e FieldElement
	overflow := e.f.SetBytes(b)
	e.f.Normalize()
	return e, overflow == 0
}

// Add returns a + b mod P.
func (a FieldElement) Add(b FieldElement) FieldElement {
	a.f.Add(&b.f).Normalize()
	return a
}

// Sub returns a - b mod P.
func (a FieldElement) Sub(b FieldElement) FieldElement {
	var neg secp256k1.FieldVal
	neg.NegateVal(&b.f, 1)
	a.f.Add(&neg).Normalize()
	return a
}

// Mul returns a * b mod P.
func (a FieldElement) Mul(b FieldElement) FieldElement {
	a.f.Mul(&b.f).Normalize()
	return a
}

// Square returns a² mod P.
func (a FieldElement) Square() FieldElement {
	a.f.Square().Normalize()
	return a
}

// Negate returns -a mod P.
func (a FieldElement) Negate() FieldElement {
	a.f.Negate(1).Normalize()
	return a
}

// Inverse returns a^-1 mod P. The inverse of zero is zero.
func (a FieldElement) Inverse() FieldElement {
	a.f.Inverse().Normalize()
	return a
}

// IsZero reports whether a is 0.
func (a FieldElement) IsZero() bool {
	return a.f.IsZero()
}

// IsOdd reports whether a is odd.
func (a FieldElement) IsOdd() bool {
	return a.f.IsOdd()
}

// Equal reports whether a == b.
func (a FieldElement) Equal(b FieldElement) bool {
	return a.f.Equals(&b.f)
}

// Bytes returns the 32-byte big-endian encoding.
func (a FieldElement) Bytes() [32]byte {
	var b [32]byte
	a.f.PutBytes(&b)
	return b
}

// PutBytes writes the 32-byte big-endian encoding into dst, which must be at
// least 32 bytes long.
func (a FieldElement) PutBytes(dst []byte) {
	a.f.PutBytesUnchecked(dst)
}

// Words returns a in device layout.
func (a FieldElement) Words() Uint256 {
	b := a.Bytes()
	return Uint256FromBytes(&b)
}

// String returns the 64 character hex encoding.
func (a FieldElement) String() string {
	return a.Words().String()
}
