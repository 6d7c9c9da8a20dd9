// Package targetset holds the immutable set of address digests a search is
// looking for.
package targetset

import (
	"bytes"
	"errors"
	"slices"

	"github.com/bits-and-blooms/bitset"
	"github.com/dchest/siphash"
	"github.com/spaolacci/murmur3"

	"github.com/mahdiidarabi/keyfinder/internal/digest"
)

// ErrNoTargets is returned when a set would be empty.
var ErrNoTargets = errors.New("target set is empty")

const (
	bloomBitsPerEntry = 16
	bloomHashes       = 8
	bloomMinBits      = 1 << 10

	// RecordSize is the device footprint of one target record.
	RecordSize = digest.Size
)

// Fixed keys for the second Bloom hash. Collisions only cost an extra binary
// search, never a false match.
const sipK0, sipK1 = 0x6b657966696e6465, 0x72746172676574

// Target is one digest to search for together with the public key encodings
// it may be derived from.
type Target struct {
	Hash  digest.Hash
	Flags digest.Compression
}

// Set is a sorted, deduplicated collection of targets with a Bloom prefilter.
// A Set is read-only after New and safe for concurrent lookups.
type Set struct {
	entries []Target
	bloom   *bitset.BitSet
	mask    uint64
}

// New builds a set from targets. Targets sharing a hash are merged and their
// flags combined; a zero flag value means either encoding.
//
// Args:
//   - targets: Digests to search for
//
// Returns:
//   - The set, or ErrNoTargets if targets is empty
func New(targets []Target) (*Set, error) {
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}

	entries := make([]Target, len(targets))
	copy(entries, targets)
	for i := range entries {
		if entries[i].Flags&digest.Both == 0 {
			entries[i].Flags = digest.Both
		}
		entries[i].Flags &= digest.Both
	}
	slices.SortFunc(entries, func(a, b Target) int {
		return bytes.Compare(a.Hash[:], b.Hash[:])
	})

	merged := entries[:1]
	for _, t := range entries[1:] {
		last := &merged[len(merged)-1]
		if last.Hash == t.Hash {
			last.Flags |= t.Flags
			continue
		}
		merged = append(merged, t)
	}

	bits := uint64(bloomMinBits)
	for bits < uint64(len(merged))*bloomBitsPerEntry {
		bits <<= 1
	}
	s := &Set{
		entries: slices.Clip(merged),
		bloom:   bitset.New(uint(bits)),
		mask:    bits - 1,
	}
	for _, t := range s.entries {
		h1, h2 := bloomHashPair(t.Hash)
		for i := uint64(0); i < bloomHashes; i++ {
			s.bloom.Set(uint((h1 + i*h2) & s.mask))
		}
	}
	return s, nil
}

func bloomHashPair(h digest.Hash) (uint64, uint64) {
	return murmur3.Sum64(h[:]), siphash.Hash(sipK0, sipK1, h[:]) | 1
}

// Len returns the number of distinct digests.
func (s *Set) Len() int {
	return len(s.entries)
}

// Lookup returns the encodings registered for h.
func (s *Set) Lookup(h digest.Hash) (digest.Compression, bool) {
	h1, h2 := bloomHashPair(h)
	for i := uint64(0); i < bloomHashes; i++ {
		if !s.bloom.Test(uint((h1 + i*h2) & s.mask)) {
			return 0, false
		}
	}

	i, found := slices.BinarySearchFunc(s.entries, h, func(t Target, h digest.Hash) int {
		return bytes.Compare(t.Hash[:], h[:])
	})
	if !found {
		return 0, false
	}
	return s.entries[i].Flags, true
}

// Match reports whether h is a target for the single encoding c.
func (s *Set) Match(h digest.Hash, c digest.Compression) bool {
	flags, ok := s.Lookup(h)
	return ok && flags&c != 0
}

// Targets returns a copy of the sorted entries.
func (s *Set) Targets() []Target {
	return slices.Clone(s.entries)
}

// DeviceSize is the number of bytes the set occupies once uploaded: the packed
// digest records plus the filter words.
func (s *Set) DeviceSize() uint64 {
	return uint64(len(s.entries))*RecordSize + uint64(len(s.bloom.Bytes()))*8
}
