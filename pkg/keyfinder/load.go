package keyfinder

import (
	"github.com/mahdiidarabi/keyfinder/internal/parser"
	"github.com/mahdiidarabi/keyfinder/internal/secp"
	"github.com/mahdiidarabi/keyfinder/internal/targetset"
)

// LoadTargets reads a target file (text, or binary records for .bin files)
// and builds the target set.
func LoadTargets(path string) (*TargetSet, []Warning, error) {
	targets, warnings, err := parser.LoadTargetsFile(path)
	if err != nil {
		return nil, warnings, err
	}
	set, err := targetset.New(targets)
	return set, warnings, err
}

// NewTargetSet builds a target set from already decoded targets.
func NewTargetSet(targets []Target) (*TargetSet, error) {
	return targetset.New(targets)
}

// ParseTarget decodes a base58 P2PKH address or a hex HASH160.
func ParseTarget(text string) (Target, error) {
	return parser.ParseTarget(text)
}

// LoadKeyList reads a key list file for an ExplicitList search.
func LoadKeyList(path string) (ExplicitList, []Warning, error) {
	keys, warnings, err := parser.LoadKeyListFile(path)
	if err != nil {
		return ExplicitList{}, warnings, err
	}
	return ExplicitList{Keys: keys}, warnings, nil
}

// ParseKey parses a hex private key.
func ParseKey(text string) (Scalar, error) {
	return secp.ParseKey(text)
}

// ParseScalar parses a hex integer below the group order; zero is allowed.
func ParseScalar(text string) (Scalar, error) {
	return secp.ParseScalar(text)
}

// ScalarFromUint64 returns v as a scalar.
func ScalarFromUint64(v uint64) Scalar {
	return secp.ScalarFromUint64(v)
}
