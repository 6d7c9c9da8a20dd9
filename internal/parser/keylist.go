// Package parser reads the line-oriented key lists and target files a search
// consumes.
package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mahdiidarabi/keyfinder/internal/secp"
)

var (
	// ErrNoValidKeys is returned when a key list yields no usable key.
	ErrNoValidKeys = errors.New("no valid keys")

	// ErrDuplicateKey marks a key already seen earlier in the input.
	ErrDuplicateKey = errors.New("duplicate key")
)

const maxLineBytes = 1 << 20

// Warning describes an input entry that was skipped.
type Warning struct {
	Line int    // 1-based line or entry number
	Text string // Offending input
	Err  error  // Why it was skipped
}

func (w Warning) String() string {
	return fmt.Sprintf("line %d: %v", w.Line, w.Err)
}

// ParseKeyList reads one hexadecimal private key per line.
//
// Blank lines and lines starting with '#' are ignored. Malformed keys, keys
// outside (0, N) and repeated keys are skipped and reported as warnings.
//
// Args:
//   - r: Source of the key list
//
// Returns:
//   - Keys in input order, the warnings, and ErrNoValidKeys if no key was usable
func ParseKeyList(r io.Reader) ([]secp.Scalar, []Warning, error) {
	var (
		keys     []secp.Scalar
		warnings []Warning
		seen     = make(map[secp.Uint256]int)
	)

	err := scanLines(r, func(line int, text string) {
		k, err := secp.ParseKey(text)
		if err != nil {
			warnings = append(warnings, Warning{Line: line, Text: text, Err: err})
			return
		}
		w := k.Words()
		if first, ok := seen[w]; ok {
			warnings = append(warnings, Warning{Line: line, Text: text,
				Err: fmt.Errorf("%w: first seen on line %d", ErrDuplicateKey, first)})
			return
		}
		seen[w] = line
		keys = append(keys, k)
	})
	if err != nil {
		return nil, warnings, fmt.Errorf("failed to read key list: %w", err)
	}
	if len(keys) == 0 {
		return nil, warnings, ErrNoValidKeys
	}
	return keys, warnings, nil
}

// LoadKeyListFile parses the key list stored at path.
func LoadKeyListFile(path string) ([]secp.Scalar, []Warning, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read file: %w", err)
	}
	defer file.Close()

	return ParseKeyList(file)
}

// scanLines calls fn for every non-blank, non-comment line with surrounding
// whitespace removed.
func scanLines(r io.Reader, fn func(line int, text string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fn(line, text)
	}
	return scanner.Err()
}
