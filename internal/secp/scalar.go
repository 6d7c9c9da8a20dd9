package secp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

var (
	// ErrOutOfRangeKey is returned for private keys that are zero or not below
	// the group order.
	ErrOutOfRangeKey = errors.New("private key out of valid range")

	// ErrMalformedKey is returned when a key cannot be parsed as hex.
	ErrMalformedKey = errors.New("malformed private key")
)

// Order is the order N of the secp256k1 group.
var Order = Uint256FromBig(secp256k1.Params().N)

// Scalar is an integer modulo the group order N.
// The zero value is the scalar 0.
type Scalar struct {
	n secp256k1.ModNScalar
}

// ScalarFromUint64 returns v as a scalar.
func ScalarFromUint64(v uint64) Scalar {
	var b [32]byte
	binary.BigEndian.PutUint64(b[24:], v)
	var s Scalar
	s.n.SetBytes(&b)
	return s
}

// ScalarFromUint256 converts u, rejecting values >= N.
func ScalarFromUint256(u Uint256) (Scalar, error) {
	if u.Cmp(Order) >= 0 {
		return Scalar{}, fmt.Errorf("%w: %s", ErrOutOfRangeKey, u)
	}
	b := u.Bytes()
	var s Scalar
	s.n.SetBytes(&b)
	return s, nil
}

// KeyFromUint256 converts u to a private key, which must satisfy 0 < u < N.
func KeyFromUint256(u Uint256) (Scalar, error) {
	if u.IsZero() {
		return Scalar{}, fmt.Errorf("%w: zero", ErrOutOfRangeKey)
	}
	return ScalarFromUint256(u)
}

// ParseKey parses a hexadecimal private key with an optional 0x prefix.
//
// Args:
//   - text: Hex string of at most 256 bits
//
// Returns:
//   - The key, ErrMalformedKey for non-hex input, ErrOutOfRangeKey for 0 or values >= N
func ParseKey(text string) (Scalar, error) {
	u, err := parseHex(text)
	if err != nil {
		return Scalar{}, err
	}
	return KeyFromUint256(u)
}

// ParseScalar is ParseKey without the non-zero requirement, for values such
// as strides that are validated by their user.
func ParseScalar(text string) (Scalar, error) {
	u, err := parseHex(text)
	if err != nil {
		return Scalar{}, err
	}
	return ScalarFromUint256(u)
}

func parseHex(text string) (Uint256, error) {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	if s == "" || strings.IndexFunc(s, notHex) >= 0 {
		return Uint256{}, fmt.Errorf("%w: %q", ErrMalformedKey, text)
	}

	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return Uint256{}, fmt.Errorf("%w: %q", ErrMalformedKey, text)
	}
	if v.BitLen() > 256 {
		return Uint256{}, fmt.Errorf("%w: %q exceeds 256 bits", ErrOutOfRangeKey, text)
	}
	return Uint256FromBig(v), nil
}

func notHex(r rune) bool {
	return !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f' || r >= 'A' && r <= 'F')
}

// Add returns s + o mod N.
func (s Scalar) Add(o Scalar) Scalar {
	s.n.Add(&o.n)
	return s
}

// Sub returns s - o mod N.
func (s Scalar) Sub(o Scalar) Scalar {
	var neg secp256k1.ModNScalar
	neg.NegateVal(&o.n)
	s.n.Add(&neg)
	return s
}

// Mul returns s * o mod N.
func (s Scalar) Mul(o Scalar) Scalar {
	s.n.Mul(&o.n)
	return s
}

// Negate returns -s mod N.
func (s Scalar) Negate() Scalar {
	s.n.Negate()
	return s
}

// Inverse returns s^-1 mod N. The inverse of zero is zero.
func (s Scalar) Inverse() Scalar {
	s.n.InverseNonConst()
	return s
}

// IsZero reports whether s is 0.
func (s Scalar) IsZero() bool {
	return s.n.IsZero()
}

// Equal reports whether s == o.
func (s Scalar) Equal(o Scalar) bool {
	return s.n.Equals(&o.n)
}

// Cmp compares the canonical integer values of s and o.
func (s Scalar) Cmp(o Scalar) int {
	return s.Words().Cmp(o.Words())
}

// Bytes returns the 32-byte big-endian encoding.
func (s Scalar) Bytes() [32]byte {
	return s.n.Bytes()
}

// Words returns s in device layout.
func (s Scalar) Words() Uint256 {
	b := s.n.Bytes()
	return Uint256FromBytes(&b)
}

// Big returns s as a big.Int.
func (s Scalar) Big() *big.Int {
	b := s.n.Bytes()
	return new(big.Int).SetBytes(b[:])
}

// String returns the 64 character hex encoding.
func (s Scalar) String() string {
	return s.Words().String()
}
