package port

import (
	"iter"

	"chunk/internal/domain"
)

// FeatureExtractor maps a tagged sentence to one attribute list per token.
// Chunkers pass it to the tagger without looking inside.
type FeatureExtractor func(sentence []domain.TaggedToken) [][]string

// ProgressFunc is called after every training iteration.
type ProgressFunc func(iteration, total int, loss float64)

// TrainOptions carries the hyperparameters for SequenceTagger.Train.
type TrainOptions struct {
	C1             float64 // L1 regularization coefficient
	C2             float64 // L2 regularization coefficient
	MaxIterations  int
	Verbose        bool
	OutputPath     string // where the trained model is written; empty skips saving
	Features       FeatureExtractor
	ReportDuration bool
	Progress       ProgressFunc
}

// SequenceTagger is a trainable per-token labeler over boundary tags.
type SequenceTagger interface {
	// Train fits the model to boundary-tagged sentences.
	Train(examples [][]domain.IOBToken, opts TrainOptions) error

	// Tag predicts one boundary tag per token.
	Tag(sentence []domain.TaggedToken, fx FeatureExtractor) ([]string, error)

	// TagMany tags sentences lazily, one per pull, in input order.
	TagMany(sentences iter.Seq[[]domain.TaggedToken], fx FeatureExtractor) iter.Seq2[[]string, error]
}
