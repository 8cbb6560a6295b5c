package port

import (
	"iter"

	"chunk/internal/domain"
)

// Chunker turns a tagged sentence into a chunk tree.
type Chunker interface {
	Parse(sentence []domain.TaggedToken) (domain.Tree, error)
}

// StreamChunker chunks a sequence of sentences lazily, one tree per pull, in
// input order.
type StreamChunker interface {
	Chunker
	ParseMany(sentences iter.Seq[[]domain.TaggedToken]) iter.Seq2[domain.Tree, error]
}
