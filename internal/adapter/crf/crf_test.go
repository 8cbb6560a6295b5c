package crf

import (
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chunk/internal/domain"
	"chunk/internal/port"
)

// parse reads "word/POS/TAG" triples.
func parse(s string) []domain.IOBToken {
	var out []domain.IOBToken
	for _, f := range strings.Fields(s) {
		parts := strings.Split(f, "/")
		out = append(out, domain.IOBToken{Text: parts[0], POS: parts[1], Tag: parts[2]})
	}
	return out
}

func tokens(seq []domain.IOBToken) []domain.TaggedToken {
	out := make([]domain.TaggedToken, len(seq))
	for i, t := range seq {
		out[i] = t.Token()
	}
	return out
}

func tags(seq []domain.IOBToken) []string {
	out := make([]string, len(seq))
	for i, t := range seq {
		out[i] = t.Tag
	}
	return out
}

// posWindow uses the tag and the previous tag only, so the toy corpus is
// separable without looking at words.
func posWindow(sentence []domain.TaggedToken) [][]string {
	rows := make([][]string, len(sentence))
	for i, tok := range sentence {
		prev := "BOS"
		if i > 0 {
			prev = sentence[i-1].POS
		}
		rows[i] = []string{"bias", "pos=" + tok.POS, "pos[-1]=" + prev, "pos[-1]|pos=" + prev + "|" + tok.POS}
	}
	return rows
}

func corpus() [][]domain.IOBToken {
	return [][]domain.IOBToken{
		parse("the/DT/B-NP cat/NN/I-NP sat/VB/B-VP ././O"),
		parse("a/DT/B-NP dog/NN/I-NP ran/VB/B-VP ././O"),
		parse("dogs/NN/B-NP ran/VB/B-VP ././O"),
		parse("the/DT/B-NP man/NN/I-NP saw/VB/B-VP a/DT/B-NP cat/NN/I-NP ././O"),
		parse("cats/NN/B-NP sleep/VB/B-VP"),
	}
}

func trainOptions() port.TrainOptions {
	return port.TrainOptions{
		C1:            0.01,
		C2:            0.01,
		MaxIterations: 60,
		Features:      posWindow,
	}
}

func trained(t *testing.T) *Tagger {
	t.Helper()
	tagger := New(WithSeed(7), WithLearningRate(0.5))
	require.NoError(t, tagger.Train(corpus(), trainOptions()))
	return tagger
}

func TestTrain_FitsCorpus(t *testing.T) {
	tagger := trained(t)

	assert.Equal(t, []string{"B-NP", "B-VP", "I-NP", "O"}, tagger.Labels())
	for _, ex := range corpus() {
		got, err := tagger.Tag(tokens(ex), posWindow)
		require.NoError(t, err)
		assert.Equal(t, tags(ex), got)
	}
}

func TestTag_Generalizes(t *testing.T) {
	tagger := trained(t)

	ex := parse("a/DT/B-NP bird/NN/I-NP flew/VB/B-VP ././O")
	got, err := tagger.Tag(tokens(ex), posWindow)
	require.NoError(t, err)
	assert.Equal(t, tags(ex), got)
}

func TestTag_AlwaysValidSequence(t *testing.T) {
	tagger := trained(t)

	odd := []domain.TaggedToken{{Text: "x", POS: "NN"}, {Text: ".", POS: "."}, {Text: "y", POS: "NN"}, {Text: "z", POS: "??"}}
	got, err := tagger.Tag(odd, posWindow)
	require.NoError(t, err)
	require.Len(t, got, len(odd))

	prevLabel, prevPrefix := "", byte('O')
	for i, tag := range got {
		p, label, ok := domain.SplitTag(tag)
		require.True(t, ok)
		if p == 'I' {
			assert.NotEqual(t, byte('O'), prevPrefix, "token %d: %s after O", i, tag)
			assert.Equal(t, prevLabel, label, "token %d", i)
		}
		prevLabel, prevPrefix = label, p
	}
}

func TestTag_EmptySentence(t *testing.T) {
	tagger := trained(t)

	got, err := tagger.Tag(nil, posWindow)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTag_NotTrained(t *testing.T) {
	_, err := New().Tag([]domain.TaggedToken{{Text: "a", POS: "N"}}, nil)
	assert.ErrorIs(t, err, ErrNotTrained)

	assert.ErrorIs(t, New().Save(filepath.Join(t.TempDir(), "m.db")), ErrNotTrained)
}

func TestTag_ExtractorMismatch(t *testing.T) {
	tagger := trained(t)

	short := func([]domain.TaggedToken) [][]string { return nil }
	_, err := tagger.Tag([]domain.TaggedToken{{Text: "a", POS: "NN"}}, short)
	assert.Error(t, err)
}

func TestTrain_EmptyCorpus(t *testing.T) {
	assert.ErrorIs(t, New().Train(nil, trainOptions()), ErrEmptyCorpus)
	assert.ErrorIs(t, New().Train([][]domain.IOBToken{{}, {}}, trainOptions()), ErrEmptyCorpus)
}

func TestTrain_RejectsInvalidSequences(t *testing.T) {
	err := New().Train([][]domain.IOBToken{parse("a/NN/O b/NN/I-NP")}, trainOptions())
	assert.ErrorContains(t, err, "I-NP cannot follow O")

	err = New().Train([][]domain.IOBToken{parse("a/NN/I-NP")}, trainOptions())
	assert.ErrorContains(t, err, "cannot follow sentence start")

	err = New().Train([][]domain.IOBToken{parse("a/NN/X-NP")}, trainOptions())
	assert.ErrorContains(t, err, "invalid tag")
}

func TestTrain_FailureKeepsModel(t *testing.T) {
	tagger := trained(t)
	sentence := tokens(corpus()[0])
	before, err := tagger.Tag(sentence, posWindow)
	require.NoError(t, err)
	labels := slices.Clone(tagger.Labels())

	err = tagger.Train([][]domain.IOBToken{parse("x/X/I-VP")}, trainOptions())
	require.ErrorContains(t, err, "cannot follow sentence start")

	after, err := tagger.Tag(sentence, posWindow)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, labels, tagger.Labels())

	fresh := New()
	require.Error(t, fresh.Train([][]domain.IOBToken{parse("x/X/I-VP")}, trainOptions()))
	_, err = fresh.Tag(sentence, posWindow)
	assert.ErrorIs(t, err, ErrNotTrained)
}

func TestTrain_Progress(t *testing.T) {
	opts := trainOptions()
	opts.MaxIterations = 5

	var seen []int
	var losses []float64
	opts.Progress = func(iteration, total int, loss float64) {
		assert.Equal(t, 5, total)
		seen = append(seen, iteration)
		losses = append(losses, loss)
	}
	require.NoError(t, New().Train(corpus(), opts))

	assert.Equal(t, []int{1, 2, 3, 4, 5}, seen)
	assert.Less(t, losses[4], losses[0])
}

func TestTrain_Deterministic(t *testing.T) {
	a, b := New(WithSeed(3)), New(WithSeed(3))
	require.NoError(t, a.Train(corpus(), trainOptions()))
	require.NoError(t, b.Train(corpus(), trainOptions()))

	assert.Equal(t, a.state, b.state)
	assert.Equal(t, a.trans, b.trans)
}

func TestTrain_L1Sparsity(t *testing.T) {
	opts := trainOptions()
	opts.C1 = 1.0
	opts.C2 = 0

	tagger := New()
	require.NoError(t, tagger.Train(corpus(), opts))

	zeros := 0
	for _, w := range tagger.state {
		if w == 0 {
			zeros++
		}
	}
	assert.Positive(t, zeros)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunker_crf.model")

	opts := trainOptions()
	opts.OutputPath = path
	tagger := New()
	require.NoError(t, tagger.Train(corpus(), opts))
	assert.NotEmpty(t, tagger.Info().RunID)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, tagger.Labels(), loaded.Labels())
	assert.Equal(t, tagger.Info().RunID, loaded.Info().RunID)
	assert.Equal(t, 60, loaded.Info().Iterations)

	for _, ex := range corpus() {
		want, err := tagger.Tag(tokens(ex), posWindow)
		require.NoError(t, err)
		got, err := loaded.Tag(tokens(ex), posWindow)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "empty.db"))
	assert.Error(t, err)
}

func TestTagMany(t *testing.T) {
	tagger := trained(t)

	var inputs [][]domain.TaggedToken
	for _, ex := range corpus() {
		inputs = append(inputs, tokens(ex))
	}

	var got [][]string
	for seq, err := range tagger.TagMany(slices.Values(inputs), posWindow) {
		require.NoError(t, err)
		got = append(got, seq)
	}
	require.Len(t, got, len(inputs))
	for i, ex := range corpus() {
		assert.Equal(t, tags(ex), got[i])
	}
}

func TestTagMany_StopsAtFirstError(t *testing.T) {
	tagger := trained(t)

	calls := 0
	fx := func(s []domain.TaggedToken) [][]string {
		calls++
		if calls == 2 {
			return nil
		}
		return posWindow(s)
	}
	inputs := [][]domain.TaggedToken{
		tokens(corpus()[0]),
		tokens(corpus()[1]),
		tokens(corpus()[2]),
	}

	var errs []error
	for _, err := range tagger.TagMany(slices.Values(inputs), fx) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 2)
	assert.NoError(t, errs[0])
	assert.Error(t, errs[1])
	assert.Equal(t, 2, calls)
}

func TestTagMany_EarlyBreak(t *testing.T) {
	tagger := trained(t)

	pulled := 0
	source := func(yield func([]domain.TaggedToken) bool) {
		for _, ex := range corpus() {
			pulled++
			if !yield(tokens(ex)) {
				return
			}
		}
	}
	for range tagger.TagMany(source, posWindow) {
		break
	}
	assert.Equal(t, 1, pulled)
}
