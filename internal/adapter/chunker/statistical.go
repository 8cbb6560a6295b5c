package chunker

import (
	"fmt"
	"iter"

	"go.uber.org/zap"

	"chunk/internal/adapter/analyzer"
	"chunk/internal/adapter/crf"
	"chunk/internal/adapter/iob"
	"chunk/internal/domain"
	"chunk/internal/port"
)

type options struct {
	features port.FeatureExtractor
	lenient  bool
	logger   *zap.Logger
}

type Option func(*options)

// WithFeatures replaces the default feature extractor.
func WithFeatures(fx port.FeatureExtractor) Option {
	return func(o *options) { o.features = fx }
}

// WithLenientDecoding makes Parse repair an I- tag that does not continue a
// group by starting a new group, instead of failing.
func WithLenientDecoding() Option {
	return func(o *options) { o.lenient = true }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{
		features: analyzer.Features,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Statistical chunks sentences by tagging every token with a boundary tag
// and decoding the tags into a tree.
type Statistical struct {
	tagger port.SequenceTagger
	opts   options
}

var _ port.StreamChunker = (*Statistical)(nil)

func New(tagger port.SequenceTagger, opts ...Option) *Statistical {
	return &Statistical{tagger: tagger, opts: buildOptions(opts)}
}

// Open loads a trained CRF model from path.
func Open(path string, opts ...Option) (*Statistical, error) {
	o := buildOptions(opts)
	tagger, err := crf.Load(path, crf.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}
	return &Statistical{tagger: tagger, opts: o}, nil
}

// TrainParams are passed to the tagger as given; start from
// DefaultTrainParams.
type TrainParams struct {
	C1             float64
	C2             float64
	MaxIterations  int
	Verbose        bool
	OutputPath     string
	ReportDuration bool
	Features       port.FeatureExtractor // nil uses the chunker's extractor
	Progress       port.ProgressFunc
}

func DefaultTrainParams() TrainParams {
	return TrainParams{
		C1:             0.4,
		C2:             0.04,
		MaxIterations:  400,
		Verbose:        true,
		OutputPath:     "chunker_crf.model",
		ReportDuration: true,
	}
}

// Train encodes the trees as boundary sequences and trains the tagger on
// them. Tagger errors are returned as is.
func (c *Statistical) Train(trees []domain.Tree, p TrainParams) error {
	examples := make([][]domain.IOBToken, len(trees))
	tokens := 0
	for i, tree := range trees {
		examples[i] = iob.Encode(tree)
		tokens += len(examples[i])
	}

	fx := p.Features
	if fx == nil {
		fx = c.opts.features
	}
	c.opts.logger.Debug("encoded training trees",
		zap.Int("sentences", len(examples)),
		zap.Int("tokens", tokens),
	)

	return c.tagger.Train(examples, port.TrainOptions{
		C1:             p.C1,
		C2:             p.C2,
		MaxIterations:  p.MaxIterations,
		Verbose:        p.Verbose,
		OutputPath:     p.OutputPath,
		Features:       fx,
		ReportDuration: p.ReportDuration,
		Progress:       p.Progress,
	})
}

// Parse chunks one sentence. An empty sentence yields an empty tree without
// consulting the tagger.
func (c *Statistical) Parse(sentence []domain.TaggedToken) (domain.Tree, error) {
	if len(sentence) == 0 {
		return domain.NewTree(), nil
	}
	tags, err := c.tagger.Tag(sentence, c.opts.features)
	if err != nil {
		return domain.Tree{}, err
	}
	return c.decode(sentence, tags)
}

// ParseMany chunks sentences lazily in input order. The input is consumed
// once, one sentence per result, and iteration stops after the first error.
// Empty sentences yield empty trees without reaching the tagger, as in Parse.
func (c *Statistical) ParseMany(sentences iter.Seq[[]domain.TaggedToken]) iter.Seq2[domain.Tree, error] {
	return func(yield func(domain.Tree, error) bool) {
		var current []domain.TaggedToken
		pulled := func(next func([]domain.TaggedToken) bool) {
			for sentence := range sentences {
				if len(sentence) == 0 {
					if !yield(domain.NewTree(), nil) {
						return
					}
					continue
				}
				current = sentence
				if !next(sentence) {
					return
				}
			}
		}

		for tags, err := range c.tagger.TagMany(pulled, c.opts.features) {
			if err != nil {
				yield(domain.Tree{}, err)
				return
			}
			tree, err := c.decode(current, tags)
			if !yield(tree, err) || err != nil {
				return
			}
		}
	}
}

func (c *Statistical) decode(sentence []domain.TaggedToken, tags []string) (domain.Tree, error) {
	if len(tags) != len(sentence) {
		return domain.Tree{}, fmt.Errorf("tagger returned %d tags for %d tokens", len(tags), len(sentence))
	}
	seq := make([]domain.IOBToken, len(sentence))
	for i, tok := range sentence {
		seq[i] = domain.IOBToken{Text: tok.Text, POS: tok.POS, Tag: tags[i]}
	}
	if c.opts.lenient {
		return iob.DecodeLenient(seq)
	}
	return iob.Decode(seq)
}
