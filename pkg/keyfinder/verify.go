package keyfinder

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/mahdiidarabi/keyfinder/internal/secp"
)

// VerifyMatch checks that a private key produces the given digest.
//
// The public key is derived with btcec and hashed with btcutil, independently
// of the batch stepping code that reported the match.
//
// Args:
//   - key: Decoded private key
//   - hash: Matched HASH160
//   - c: Public key encoding the digest was taken over
//
// Returns:
//   - True if the key reproduces hash, false otherwise
func VerifyMatch(key Scalar, hash Hash, c Compression) (bool, error) {
	if key.IsZero() {
		return false, fmt.Errorf("%w: zero", secp.ErrOutOfRangeKey)
	}

	b := key.Bytes()
	_, pub := btcec.PrivKeyFromBytes(b[:])

	var serialized []byte
	switch c {
	case Compressed:
		serialized = pub.SerializeCompressed()
	case Uncompressed:
		serialized = pub.SerializeUncompressed()
	default:
		return false, errors.New("compression must be a single encoding")
	}
	return bytes.Equal(btcutil.Hash160(serialized), hash[:]), nil
}

// Address returns the mainnet pay-to-pubkey-hash address of a digest.
func Address(hash Hash) (string, error) {
	addr, err := btcutil.NewAddressPubKeyHash(hash[:], &chaincfg.MainNetParams)
	if err != nil {
		return "", fmt.Errorf("failed to encode address: %w", err)
	}
	return addr.EncodeAddress(), nil
}
