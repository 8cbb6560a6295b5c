package usecase

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"iter"

	"chunk/internal/adapter/corpus"
	"chunk/internal/adapter/iob"
	"chunk/internal/domain"
	"chunk/internal/port"
)

// Output formats accepted by ParseUseCase.
const (
	FormatBrackets = "brackets"
	FormatTree     = "tree"
	FormatCoNLL    = "conll"
	FormatJSON     = "json"
	FormatTagged   = "tagged"
)

// ParseUseCase chunks a stream of tagged sentences.
type ParseUseCase struct {
	chunker port.StreamChunker
}

func NewParseUseCase(chunker port.StreamChunker) *ParseUseCase {
	return &ParseUseCase{chunker: chunker}
}

// ParseResult contains the counts of a parse run.
type ParseResult struct {
	Sentences int
	Tokens    int
	Chunks    int
}

// Parse reads one word/POS sentence per line from r and writes one chunked
// sentence per record to w. Input is read only as far as output is written,
// so an error leaves every earlier sentence in w.
func (u *ParseUseCase) Parse(r io.Reader, w io.Writer, format string) (*ParseResult, error) {
	write, err := writerFor(format)
	if err != nil {
		return nil, err
	}

	var scanErr error
	sentences := func(yield func([]domain.TaggedToken) bool) {
		for s, err := range corpus.ScanTagged(r) {
			if err != nil {
				scanErr = err
				return
			}
			if !yield(s) {
				return
			}
		}
	}

	bw := bufio.NewWriter(w)
	defer bw.Flush()

	result := &ParseResult{}
	for tree, err := range u.chunker.ParseMany(iter.Seq[[]domain.TaggedToken](sentences)) {
		if err != nil {
			return result, fmt.Errorf("sentence %d: %w", result.Sentences+1, err)
		}
		if err := write(bw, tree); err != nil {
			return result, err
		}
		result.Sentences++
		for _, child := range tree.Children {
			result.Tokens += len(child.Tokens)
			if child.Kind == domain.Group {
				result.Chunks++
			}
		}
	}
	if scanErr != nil {
		return result, scanErr
	}
	return result, bw.Flush()
}

type treeWriter func(w io.Writer, tree domain.Tree) error

func writerFor(format string) (treeWriter, error) {
	switch format {
	case "", FormatBrackets:
		return func(w io.Writer, tree domain.Tree) error {
			_, err := fmt.Fprintln(w, iob.Brackets(tree))
			return err
		}, nil
	case FormatTree:
		return func(w io.Writer, tree domain.Tree) error {
			_, err := fmt.Fprintln(w, tree.String())
			return err
		}, nil
	case FormatCoNLL:
		return func(w io.Writer, tree domain.Tree) error {
			return corpus.WriteCoNLL(w, tree)
		}, nil
	case FormatJSON:
		return func(w io.Writer, tree domain.Tree) error {
			data, err := json.Marshal(chunkedSentence(tree))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(w, "%s\n", data)
			return err
		}, nil
	case FormatTagged:
		return func(w io.Writer, tree domain.Tree) error {
			_, err := fmt.Fprintln(w, corpus.FormatTagged(tree.Leaves()))
			return err
		}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

type jsonChunk struct {
	Label  string               `json:"label,omitempty"`
	Tokens []domain.TaggedToken `json:"tokens"`
}

type jsonSentence struct {
	Text   string      `json:"text"`
	Chunks []jsonChunk `json:"chunks"`
}

// chunkedSentence lists every child in order; bare tokens have no label.
func chunkedSentence(tree domain.Tree) jsonSentence {
	out := jsonSentence{
		Text:   iob.Brackets(tree),
		Chunks: make([]jsonChunk, 0, len(tree.Children)),
	}
	for _, child := range tree.Children {
		out.Chunks = append(out.Chunks, jsonChunk{Label: child.Label, Tokens: child.Tokens})
	}
	return out
}
