package keyfinder

import (
	"fmt"

	"github.com/mahdiidarabi/keyfinder/internal/secp"
	"github.com/mahdiidarabi/keyfinder/internal/stepper"
)

// sequentialKey decodes a lane of a sequential batch:
// start + (iteration·batchSize + lane)·stride.
func sequentialKey(r SequentialRange, iteration uint64, batchSize int, lane uint32) Scalar {
	offset := secp.ScalarFromUint64(iteration).
		Mul(secp.ScalarFromUint64(uint64(batchSize))).
		Add(secp.ScalarFromUint64(uint64(lane)))
	return r.KeyAt(offset)
}

// listKey decodes a lane of an explicit-list page: the key at that index.
func listKey(page ExplicitList, lane uint32) (Scalar, error) {
	if int(lane) >= len(page.Keys) {
		return Scalar{}, fmt.Errorf("%w: lane %d outside page of %d keys",
			stepper.ErrArithmeticInvariant, lane, len(page.Keys))
	}
	return page.Keys[lane], nil
}

// newResult pairs a decoded key with its match and verifies it.
func newResult(key Scalar, iteration uint64, m stepper.MatchResult) (Result, error) {
	addr, err := Address(m.Hash)
	if err != nil {
		return Result{}, err
	}
	verified, err := VerifyMatch(key, m.Hash, m.Compression)
	if err != nil {
		return Result{}, fmt.Errorf("failed to verify key for lane %d: %w", m.Lane, err)
	}
	return Result{
		PrivateKey:  key,
		Hash:        m.Hash,
		Address:     addr,
		Compression: m.Compression,
		Iteration:   iteration,
		Lane:        m.Lane,
		Verified:    verified,
	}, nil
}
