package parser

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/mahdiidarabi/keyfinder/internal/digest"
	"github.com/mahdiidarabi/keyfinder/internal/targetset"
)

// ErrMalformedTarget is returned for target entries that cannot be decoded.
var ErrMalformedTarget = errors.New("malformed target")

// BinaryRecordSize is the size of one record in a binary target file: the
// 20-byte digest, 4 bytes of little-endian flags and 4 bytes of padding.
const BinaryRecordSize = 28

// ParseTarget decodes a base58 P2PKH address or a 40 character hex HASH160.
// Neither form records which public key encoding produced the digest, so the
// target matches both.
func ParseTarget(text string) (targetset.Target, error) {
	s := strings.TrimSpace(text)
	if len(s) == 2*digest.Size {
		if h, err := digest.ParseHash(s); err == nil {
			return targetset.Target{Hash: h, Flags: digest.Both}, nil
		}
	}

	addr, err := btcutil.DecodeAddress(s, &chaincfg.MainNetParams)
	if err != nil {
		return targetset.Target{}, fmt.Errorf("%w: %q: %v", ErrMalformedTarget, text, err)
	}
	pkh, ok := addr.(*btcutil.AddressPubKeyHash)
	if !ok {
		return targetset.Target{}, fmt.Errorf("%w: %q is not a pay-to-pubkey-hash address", ErrMalformedTarget, text)
	}
	return targetset.Target{Hash: *pkh.Hash160(), Flags: digest.Both}, nil
}

// ParseTargets reads one address or hex digest per line. Undecodable lines are
// reported as warnings.
func ParseTargets(r io.Reader) ([]targetset.Target, []Warning, error) {
	var (
		targets  []targetset.Target
		warnings []Warning
	)
	err := scanLines(r, func(line int, text string) {
		t, err := ParseTarget(text)
		if err != nil {
			warnings = append(warnings, Warning{Line: line, Text: text, Err: err})
			return
		}
		targets = append(targets, t)
	})
	if err != nil {
		return nil, warnings, fmt.Errorf("failed to read targets: %w", err)
	}
	if len(targets) == 0 {
		return nil, warnings, targetset.ErrNoTargets
	}
	return targets, warnings, nil
}

// ReadBinaryTargets reads fixed-size target records until EOF.
func ReadBinaryTargets(r io.Reader) ([]targetset.Target, error) {
	var (
		targets []targetset.Target
		rec     [BinaryRecordSize]byte
	)
	for {
		_, err := io.ReadFull(r, rec[:])
		if err == io.EOF {
			break
		}
		if err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("%w: truncated record %d", ErrMalformedTarget, len(targets))
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read targets: %w", err)
		}

		var t targetset.Target
		copy(t.Hash[:], rec[:digest.Size])
		t.Flags = digest.Compression(binary.LittleEndian.Uint32(rec[digest.Size:]))
		if t.Flags&^digest.Both != 0 {
			return nil, fmt.Errorf("%w: record %d has unknown flags %#x", ErrMalformedTarget, len(targets), uint32(t.Flags))
		}
		targets = append(targets, t)
	}
	if len(targets) == 0 {
		return nil, targetset.ErrNoTargets
	}
	return targets, nil
}

// WriteBinaryTargets writes targets in the binary record format.
func WriteBinaryTargets(w io.Writer, targets []targetset.Target) error {
	var rec [BinaryRecordSize]byte
	for _, t := range targets {
		copy(rec[:digest.Size], t.Hash[:])
		binary.LittleEndian.PutUint32(rec[digest.Size:], uint32(t.Flags))
		if _, err := w.Write(rec[:]); err != nil {
			return fmt.Errorf("failed to write targets: %w", err)
		}
	}
	return nil
}

// LoadTargetsFile reads a target file. Files with a .bin extension use the
// binary record format, anything else is read as text.
func LoadTargetsFile(path string) ([]targetset.Target, []Warning, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read file: %w", err)
	}
	defer file.Close()

	if strings.EqualFold(filepath.Ext(path), ".bin") {
		targets, err := ReadBinaryTargets(file)
		return targets, nil, err
	}
	return ParseTargets(file)
}
