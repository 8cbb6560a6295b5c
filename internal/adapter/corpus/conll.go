// Package corpus reads and writes chunked and tagged sentence files.
//
// The chunk format has one "word POS TAG" line per token, tab or space
// separated, with a blank line after each sentence. The tagged format has one
// sentence per line as space separated word/POS tokens.
package corpus

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	"chunk/internal/adapter/iob"
	"chunk/internal/domain"
)

const docStart = "-DOCSTART-"

// ScanCoNLL yields one tree per sentence. Boundary tags are decoded strictly
// and errors carry the line number; iteration stops after the first error.
func ScanCoNLL(r io.Reader) iter.Seq2[domain.Tree, error] {
	return func(yield func(domain.Tree, error) bool) {
		sc := newScanner(r)
		var seq []domain.IOBToken
		lineNo, start := 0, 0

		flush := func() bool {
			if len(seq) == 0 {
				return true
			}
			tree, err := iob.Decode(seq)
			seq = nil
			if err != nil {
				yield(domain.Tree{}, fmt.Errorf("sentence at line %d: %w", start, err))
				return false
			}
			return yield(tree, nil)
		}

		for sc.Scan() {
			lineNo++
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				if !flush() {
					return
				}
				continue
			}
			if strings.HasPrefix(line, docStart) {
				continue
			}

			fields := strings.Fields(line)
			if len(fields) != 3 {
				yield(domain.Tree{}, fmt.Errorf("line %d: expected word, POS and tag, got %d fields", lineNo, len(fields)))
				return
			}
			if len(seq) == 0 {
				start = lineNo
			}
			seq = append(seq, domain.IOBToken{Text: fields[0], POS: fields[1], Tag: fields[2]})
		}
		if err := sc.Err(); err != nil {
			yield(domain.Tree{}, err)
			return
		}
		flush()
	}
}

// ReadCoNLL reads every sentence of r.
func ReadCoNLL(r io.Reader) ([]domain.Tree, error) {
	var trees []domain.Tree
	for tree, err := range ScanCoNLL(r) {
		if err != nil {
			return nil, err
		}
		trees = append(trees, tree)
	}
	return trees, nil
}

func ReadCoNLLFile(path string) ([]domain.Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	trees, err := ReadCoNLL(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return trees, nil
}

// WriteCoNLL writes trees tab separated, each followed by a blank line.
func WriteCoNLL(w io.Writer, trees ...domain.Tree) error {
	bw := bufio.NewWriter(w)
	for _, tree := range trees {
		for _, tok := range iob.Encode(tree) {
			if _, err := fmt.Fprintf(bw, "%s\t%s\t%s\n", tok.Text, tok.POS, tok.Tag); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func newScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	return sc
}
