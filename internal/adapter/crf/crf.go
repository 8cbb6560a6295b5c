// Package crf implements a first-order linear-chain conditional random field
// over boundary tags.
//
// Weights are trained with stochastic gradient ascent on the conditional
// log-likelihood. Transitions that would produce an invalid boundary sequence
// (an I-X after O, at the start, or after another label) are never scored, so
// every decoded sequence is valid.
package crf

import (
	"errors"
	"fmt"
	"iter"
	"slices"

	"go.uber.org/zap"

	"chunk/internal/adapter/store"
	"chunk/internal/domain"
	"chunk/internal/port"
)

var (
	ErrNotTrained  = errors.New("crf: model not trained")
	ErrEmptyCorpus = errors.New("crf: no training examples")
)

const (
	defaultLearningRate = 0.1
	defaultIterations   = 400
)

// Tagger is a linear-chain CRF. Training and tagging must not run
// concurrently on the same Tagger.
type Tagger struct {
	logger *zap.Logger
	eta0   float64
	seed   int64

	labels []string
	valid  []bool // (len(labels)+1) x len(labels) transition mask
	attrs  map[string]int
	state  []float64 // attribute-major, len(attrs) x len(labels)
	trans  []float64 // (len(labels)+1) x len(labels), last row is the start state
	info   store.ModelInfo
}

var _ port.SequenceTagger = (*Tagger)(nil)

type Option func(*Tagger)

func WithLogger(l *zap.Logger) Option {
	return func(t *Tagger) { t.logger = l }
}

// WithLearningRate sets the initial SGD step size.
func WithLearningRate(eta float64) Option {
	return func(t *Tagger) {
		if eta > 0 {
			t.eta0 = eta
		}
	}
}

// WithSeed sets the seed of the per-epoch example shuffle.
func WithSeed(seed int64) Option {
	return func(t *Tagger) { t.seed = seed }
}

// New returns an untrained tagger.
func New(opts ...Option) *Tagger {
	t := &Tagger{
		logger: zap.NewNop(),
		eta0:   defaultLearningRate,
		seed:   1,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Load opens a model artifact written by Save or by Train.
func Load(path string, opts ...Option) (*Tagger, error) {
	s, err := store.NewBoltStore(path)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	m, err := s.LoadModel()
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", path, err)
	}

	t := New(opts...)
	t.restore(m)
	return t, nil
}

// Save writes the trained model to path.
func (t *Tagger) Save(path string) error {
	if !t.trained() {
		return ErrNotTrained
	}
	s, err := store.NewBoltStore(path)
	if err != nil {
		return err
	}
	defer s.Close()

	m := t.snapshot()
	if err := s.SaveModel(m); err != nil {
		return fmt.Errorf("save model %s: %w", path, err)
	}
	t.info = m.Info
	return nil
}

// Labels returns the label set in model order.
func (t *Tagger) Labels() []string {
	return slices.Clone(t.labels)
}

// Info returns the metadata of the last training run.
func (t *Tagger) Info() store.ModelInfo {
	return t.info
}

func (t *Tagger) trained() bool {
	return len(t.labels) > 0
}

// Tag returns the highest scoring valid boundary sequence for sentence.
func (t *Tagger) Tag(sentence []domain.TaggedToken, fx port.FeatureExtractor) ([]string, error) {
	if !t.trained() {
		return nil, ErrNotTrained
	}
	if len(sentence) == 0 {
		return []string{}, nil
	}

	rows, err := extract(sentence, fx)
	if err != nil {
		return nil, err
	}
	ids := make([][]int, len(rows))
	for i, row := range rows {
		ids[i] = t.lookup(row)
	}

	path := t.viterbi(t.emissions(ids, 1))
	tags := make([]string, len(path))
	for i, y := range path {
		tags[i] = t.labels[y]
	}
	return tags, nil
}

// TagMany tags sentences lazily and stops after the first error.
func (t *Tagger) TagMany(sentences iter.Seq[[]domain.TaggedToken], fx port.FeatureExtractor) iter.Seq2[[]string, error] {
	return func(yield func([]string, error) bool) {
		for sentence := range sentences {
			tags, err := t.Tag(sentence, fx)
			if !yield(tags, err) || err != nil {
				return
			}
		}
	}
}

// lookup maps attribute names to ids, dropping unseen ones.
func (t *Tagger) lookup(row []string) []int {
	ids := make([]int, 0, len(row))
	for _, a := range row {
		if id, ok := t.attrs[a]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func extract(sentence []domain.TaggedToken, fx port.FeatureExtractor) ([][]string, error) {
	if fx == nil {
		fx = basicFeatures
	}
	rows := fx(sentence)
	if len(rows) != len(sentence) {
		return nil, fmt.Errorf("crf: feature extractor returned %d rows for %d tokens", len(rows), len(sentence))
	}
	return rows, nil
}

// basicFeatures is used when no extractor is supplied.
func basicFeatures(sentence []domain.TaggedToken) [][]string {
	rows := make([][]string, len(sentence))
	for i, tok := range sentence {
		rows[i] = []string{"bias", "w=" + tok.Text, "pos=" + tok.POS}
	}
	return rows
}

func (t *Tagger) snapshot() *store.Model {
	n := len(t.labels)
	m := &store.Model{
		Info:   t.info,
		Labels: slices.Clone(t.labels),
		State:  make(map[string][]float64, len(t.attrs)),
		Trans:  make([][]float64, n+1),
	}
	for a, id := range t.attrs {
		m.State[a] = slices.Clone(t.state[id*n : (id+1)*n])
	}
	for i := range m.Trans {
		m.Trans[i] = slices.Clone(t.trans[i*n : (i+1)*n])
	}
	return m
}

func (t *Tagger) restore(m *store.Model) {
	n := len(m.Labels)
	t.setLabels(slices.Clone(m.Labels))
	t.info = m.Info

	names := make([]string, 0, len(m.State))
	for a := range m.State {
		names = append(names, a)
	}
	slices.Sort(names)

	t.attrs = make(map[string]int, len(names))
	t.state = make([]float64, len(names)*n)
	for id, a := range names {
		t.attrs[a] = id
		copy(t.state[id*n:], m.State[a])
	}
	t.trans = make([]float64, (n+1)*n)
	for i, row := range m.Trans {
		copy(t.trans[i*n:], row)
	}
}

func (t *Tagger) setLabels(labels []string) {
	t.labels = labels
	t.valid = transitionMask(labels)
}

// transitionMask marks which label may follow which. Row len(labels) is the
// sentence start.
func transitionMask(labels []string) []bool {
	n := len(labels)
	valid := make([]bool, (n+1)*n)
	for prev := 0; prev <= n; prev++ {
		for y := 0; y < n; y++ {
			valid[prev*n+y] = allowed(labels, prev, y)
		}
	}
	return valid
}

// allowed reports whether label y may follow prev; prev == len(labels) is the
// sentence start.
func allowed(labels []string, prev, y int) bool {
	p, label, _ := domain.SplitTag(labels[y])
	if p != 'I' {
		return true
	}
	if prev == len(labels) {
		return false
	}
	_, prevLabel, _ := domain.SplitTag(labels[prev])
	return prevLabel == label
}
