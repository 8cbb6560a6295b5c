package corpus

import (
	"fmt"
	"io"
	"iter"
	"strings"

	"chunk/internal/domain"
)

// ParseTagged splits a line of word/POS tokens. The POS is whatever follows
// the last slash, so words may contain slashes.
func ParseTagged(line string) ([]domain.TaggedToken, error) {
	fields := strings.Fields(line)
	tokens := make([]domain.TaggedToken, 0, len(fields))
	for _, f := range fields {
		i := strings.LastIndexByte(f, '/')
		if i <= 0 || i == len(f)-1 {
			return nil, fmt.Errorf("untagged token %q", f)
		}
		tokens = append(tokens, domain.TaggedToken{Text: f[:i], POS: f[i+1:]})
	}
	return tokens, nil
}

// FormatTagged is the inverse of ParseTagged.
func FormatTagged(tokens []domain.TaggedToken) string {
	parts := make([]string, len(tokens))
	for i, tok := range tokens {
		parts[i] = tok.String()
	}
	return strings.Join(parts, " ")
}

// ScanTagged yields one sentence per non-blank line, reading r only as far
// as the consumer pulls. Iteration stops after the first error.
func ScanTagged(r io.Reader) iter.Seq2[[]domain.TaggedToken, error] {
	return func(yield func([]domain.TaggedToken, error) bool) {
		sc := newScanner(r)
		lineNo := 0
		for sc.Scan() {
			lineNo++
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			tokens, err := ParseTagged(line)
			if err != nil {
				yield(nil, fmt.Errorf("line %d: %w", lineNo, err))
				return
			}
			if !yield(tokens, nil) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			yield(nil, err)
		}
	}
}
