package usecase

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"strings"

	"chunk/internal/adapter/corpus"
	"chunk/internal/adapter/iob"
	"chunk/internal/domain"
)

// Convert reads chunk trees in one format and writes them in another. Input
// is CoNLL or one bracketed sentence per line whose tokens carry a /POS
// suffix; output is any format Parse writes. It returns the number of
// sentences written.
func Convert(r io.Reader, w io.Writer, from, to string) (int, error) {
	write, err := writerFor(to)
	if err != nil {
		return 0, err
	}

	var trees iter.Seq2[domain.Tree, error]
	switch from {
	case FormatCoNLL:
		trees = corpus.ScanCoNLL(r)
	case FormatBrackets:
		trees = scanBrackets(r)
	default:
		return 0, fmt.Errorf("unknown input format %q", from)
	}

	bw := bufio.NewWriter(w)
	defer bw.Flush()

	n := 0
	for tree, err := range trees {
		if err != nil {
			return n, err
		}
		if err := write(bw, tree); err != nil {
			return n, err
		}
		n++
	}
	return n, bw.Flush()
}

func scanBrackets(r io.Reader) iter.Seq2[domain.Tree, error] {
	return func(yield func(domain.Tree, error) bool) {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
		lineNo := 0
		for sc.Scan() {
			lineNo++
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			tree, err := iob.ParseBrackets(line)
			if err == nil {
				for _, tok := range tree.Leaves() {
					if tok.POS == "" {
						err = fmt.Errorf("token %q has no POS tag", tok.Text)
						break
					}
				}
			}
			if err != nil {
				yield(domain.Tree{}, fmt.Errorf("line %d: %w", lineNo, err))
				return
			}
			if !yield(tree, nil) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			yield(domain.Tree{}, err)
		}
	}
}
