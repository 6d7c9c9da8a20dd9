// Package digest computes address digests (HASH160) of secp256k1 public points.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // HASH160 is defined over RIPEMD-160

	"github.com/mahdiidarabi/keyfinder/internal/secp"
)

// Size is the length of a HASH160 digest in bytes.
const Size = ripemd160.Size

// Hash is RIPEMD160(SHA256(pubkey)).
type Hash [Size]byte

// String returns the hex encoding.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// ParseHash decodes a 40 character hex digest.
func ParseHash(s string) (Hash, error) {
	var h Hash
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != 2*Size {
		return h, fmt.Errorf("invalid hash160 length %d", len(s))
	}
	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return h, fmt.Errorf("invalid hash160: %w", err)
	}
	return h, nil
}

// Compression selects the public key encoding(s) a digest is taken over.
type Compression uint32

const (
	Compressed   Compression = 1 << 0
	Uncompressed Compression = 1 << 1
	Both                     = Compressed | Uncompressed
)

// Encodings lists the single encodings contained in c, compressed first.
func (c Compression) Encodings() []Compression {
	out := make([]Compression, 0, 2)
	if c&Compressed != 0 {
		out = append(out, Compressed)
	}
	if c&Uncompressed != 0 {
		out = append(out, Uncompressed)
	}
	return out
}

func (c Compression) String() string {
	switch c {
	case Compressed:
		return "compressed"
	case Uncompressed:
		return "uncompressed"
	case Both:
		return "both"
	default:
		return fmt.Sprintf("compression(%d)", uint32(c))
	}
}

// ParseCompression accepts "compressed", "uncompressed" or "both".
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "compressed":
		return Compressed, nil
	case "uncompressed":
		return Uncompressed, nil
	case "both", "":
		return Both, nil
	}
	return 0, fmt.Errorf("unknown compression mode %q", s)
}

// Hasher computes digests with reusable hash state. It is not safe for
// concurrent use; give each worker its own.
type Hasher struct {
	sha hash.Hash
	rmd hash.Hash
	buf [65]byte
	sum [sha256.Size]byte
}

// NewHasher returns a ready Hasher.
func NewHasher() *Hasher {
	return &Hasher{sha: sha256.New(), rmd: ripemd160.New()}
}

// Sum returns the digest of p serialized with the single encoding c. Passing
// anything other than Compressed or Uncompressed panics.
func (h *Hasher) Sum(p secp.Point, c Compression) Hash {
	var pub []byte
	switch c {
	case Compressed:
		p.PutCompressed(h.buf[:33])
		pub = h.buf[:33]
	case Uncompressed:
		p.PutUncompressed(h.buf[:65])
		pub = h.buf[:65]
	default:
		panic(fmt.Sprintf("digest: cannot hash with %v", c))
	}
	return h.SumBytes(pub)
}

// SumBytes returns the HASH160 of an already serialized public key.
func (h *Hasher) SumBytes(pub []byte) Hash {
	h.sha.Reset()
	h.sha.Write(pub)
	h.sha.Sum(h.sum[:0])

	h.rmd.Reset()
	h.rmd.Write(h.sum[:])
	var out Hash
	h.rmd.Sum(out[:0])
	return out
}

// Compute is the one-shot form of Hasher.Sum. Like Sum it panics unless c is
// a single encoding; use ComputeEach for a mask such as Both.
func Compute(p secp.Point, c Compression) Hash {
	return NewHasher().Sum(p, c)
}

// ComputeEach returns the digest of p for every encoding in c, in the order
// of c.Encodings().
func ComputeEach(p secp.Point, c Compression) []Hash {
	h := NewHasher()
	encodings := c.Encodings()
	out := make([]Hash, len(encodings))
	for i, e := range encodings {
		out[i] = h.Sum(p, e)
	}
	return out
}
