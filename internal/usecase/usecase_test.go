package usecase

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chunk/config"
	"chunk/internal/adapter/chunker"
	"chunk/internal/adapter/corpus"
	"chunk/internal/adapter/fs"
	"chunk/internal/domain"
)

const trainingCorpus = `نامه	Ne	B-NP
ایشان	PRO	I-NP
را	POSTP	B-POSTP
دریافت	N	B-VP
داشتم	V	I-VP
.	PUNC	O

کتاب	N	B-NP
را	POSTP	B-POSTP
خواندم	V	B-VP
.	PUNC	O
`

const taggedInput = `نامه/Ne ایشان/PRO را/POSTP دریافت/N داشتم/V ./PUNC
نامه/Ne ۱۰/NUMe فوریه/Ne شما/PRO را/POSTP دریافت/N داشتم/V ./PUNC
`

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Train.MaxIterations = 20
	cfg.Train.ReportDuration = false
	return cfg
}

func writeCorpus(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "train.conll"), []byte(content), 0644))
}

func newTrainUseCase(cfg *config.Config, dir string) *TrainUseCase {
	walker := fs.NewWalker(cfg.Corpus.Includes, cfg.Corpus.Excludes)
	return NewTrainUseCase(cfg, walker, cfg.ModelPath(dir), nil)
}

func TestTrainUseCase_Train(t *testing.T) {
	dir := t.TempDir()
	writeCorpus(t, dir, trainingCorpus)
	cfg := testConfig()

	var epochs int
	result, err := newTrainUseCase(cfg, dir).Train(dir, false, func(iteration, total int, loss float64) {
		epochs = iteration
	})
	require.NoError(t, err)

	assert.False(t, result.Skipped)
	assert.Equal(t, "no model found", result.Reason)
	assert.Equal(t, 1, result.Files)
	assert.Equal(t, 2, result.Sentences)
	assert.Equal(t, 10, result.Tokens)
	assert.Equal(t, 20, epochs)
	assert.Contains(t, result.Labels, "B-NP")
	assert.FileExists(t, cfg.ModelPath(dir))

	c, err := chunker.Open(cfg.ModelPath(dir))
	require.NoError(t, err)
	tree, err := c.Parse([]domain.TaggedToken{{Text: "کتاب", POS: "N"}, {Text: "را", POS: "POSTP"}})
	require.NoError(t, err)
	assert.Len(t, tree.Leaves(), 2)
}

func TestTrainUseCase_SkipsUpToDateModel(t *testing.T) {
	dir := t.TempDir()
	writeCorpus(t, dir, trainingCorpus)
	cfg := testConfig()

	first, err := newTrainUseCase(cfg, dir).Train(dir, false, nil)
	require.NoError(t, err)

	again, err := newTrainUseCase(cfg, dir).Train(dir, false, nil)
	require.NoError(t, err)
	assert.True(t, again.Skipped)
	assert.Equal(t, first.Fingerprint, again.Fingerprint)

	forced, err := newTrainUseCase(cfg, dir).Train(dir, true, nil)
	require.NoError(t, err)
	assert.False(t, forced.Skipped)
	assert.Equal(t, "forced", forced.Reason)
}

func TestTrainUseCase_RetrainsOnChange(t *testing.T) {
	dir := t.TempDir()
	writeCorpus(t, dir, trainingCorpus)
	cfg := testConfig()

	_, err := newTrainUseCase(cfg, dir).Train(dir, false, nil)
	require.NoError(t, err)

	changed := *cfg
	changed.Train.C1 = 0.1
	result, err := newTrainUseCase(&changed, dir).Train(dir, false, nil)
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, "training configuration changed", result.Reason)

	writeCorpus(t, dir, trainingCorpus+"\nمن\tPRO\tB-NP\n")
	result, err = newTrainUseCase(&changed, dir).Train(dir, false, nil)
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, "corpus changed", result.Reason)
	assert.Equal(t, 3, result.Sentences)
}

func TestTrainUseCase_NoCorpus(t *testing.T) {
	dir := t.TempDir()
	_, err := newTrainUseCase(testConfig(), dir).Train(dir, false, nil)
	assert.ErrorIs(t, err, ErrNoCorpus)
}

func TestTrainUseCase_BadCorpus(t *testing.T) {
	dir := t.TempDir()
	writeCorpus(t, dir, "a\tN\tI-NP\n")
	_, err := newTrainUseCase(testConfig(), dir).Train(dir, false, nil)
	assert.ErrorContains(t, err, "train.conll")
}

func TestParseUseCase_Brackets(t *testing.T) {
	var out bytes.Buffer
	result, err := NewParseUseCase(chunker.NewRuleBased()).Parse(strings.NewReader(taggedInput), &out, FormatBrackets)
	require.NoError(t, err)

	assert.Equal(t,
		"[نامه ایشان NP] [را POSTP] [دریافت داشتم VP] .\n"+
			"[نامه ۱۰ فوریه شما NP] [را POSTP] [دریافت داشتم VP] .\n",
		out.String())
	assert.Equal(t, &ParseResult{Sentences: 2, Tokens: 14, Chunks: 6}, result)
}

func TestParseUseCase_Formats(t *testing.T) {
	uc := NewParseUseCase(chunker.NewRuleBased())
	line := strings.SplitAfter(taggedInput, "\n")[0]

	var out bytes.Buffer
	_, err := uc.Parse(strings.NewReader(line), &out, FormatTree)
	require.NoError(t, err)
	assert.Equal(t, "(S (NP نامه/Ne ایشان/PRO) (POSTP را/POSTP) (VP دریافت/N داشتم/V) ./PUNC)\n", out.String())

	out.Reset()
	_, err = uc.Parse(strings.NewReader(line), &out, FormatCoNLL)
	require.NoError(t, err)
	trees, err := corpus.ReadCoNLL(&out)
	require.NoError(t, err)
	require.Len(t, trees, 1)
	assert.Len(t, trees[0].Children, 4)

	out.Reset()
	_, err = uc.Parse(strings.NewReader(line), &out, FormatJSON)
	require.NoError(t, err)
	var decoded jsonSentence
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	require.Len(t, decoded.Chunks, 4)
	assert.Equal(t, "NP", decoded.Chunks[0].Label)
	assert.Empty(t, decoded.Chunks[3].Label)

	_, err = uc.Parse(strings.NewReader(line), &out, "xml")
	assert.Error(t, err)
}

func TestParseUseCase_KeepsOutputBeforeError(t *testing.T) {
	var out bytes.Buffer
	input := "کتاب/N را/POSTP\nbroken\nمن/PRO\n"
	result, err := NewParseUseCase(chunker.NewRuleBased()).Parse(strings.NewReader(input), &out, FormatBrackets)
	assert.ErrorContains(t, err, "line 2")
	assert.Equal(t, 1, result.Sentences)
	assert.Equal(t, "[کتاب NP] [را POSTP]\n", out.String())
}

type failingChunker struct{ err error }

func (f failingChunker) Parse([]domain.TaggedToken) (domain.Tree, error) {
	return domain.Tree{}, f.err
}

func TestEvaluateUseCase(t *testing.T) {
	gold, err := corpus.ReadCoNLL(strings.NewReader(trainingCorpus))
	require.NoError(t, err)

	result, err := NewEvaluateUseCase(chunker.NewRuleBased()).Evaluate(gold)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Sentences)
	assert.Equal(t, 10, result.Tokens)
	assert.Equal(t, 2, result.ExactSentences)
	assert.Equal(t, 1.0, result.F1())

	boom := errors.New("boom")
	_, err = NewEvaluateUseCase(failingChunker{boom}).Evaluate(gold)
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "sentence 1")
}

func TestEvaluateUseCase_Files(t *testing.T) {
	dir := t.TempDir()
	writeCorpus(t, dir, trainingCorpus)

	files, err := fs.NewWalker([]string{"**/*.conll"}, nil).Walk(dir)
	require.NoError(t, err)

	result, err := NewEvaluateUseCase(chunker.NewRuleBased()).EvaluateFiles(files)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Sentences)
}

func TestConvert(t *testing.T) {
	var out bytes.Buffer
	n, err := Convert(strings.NewReader(trainingCorpus), &out, FormatCoNLL, FormatTagged)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "نامه/Ne ایشان/PRO را/POSTP دریافت/N داشتم/V ./PUNC\nکتاب/N را/POSTP خواندم/V ./PUNC\n", out.String())

	out.Reset()
	_, err = Convert(strings.NewReader(trainingCorpus), &out, FormatCoNLL, FormatBrackets)
	require.NoError(t, err)
	assert.Equal(t, "[نامه ایشان NP] [را POSTP] [دریافت داشتم VP] .\n[کتاب NP] [را POSTP] [خواندم VP] .\n", out.String())
}

func TestConvert_FromBrackets(t *testing.T) {
	var out bytes.Buffer
	n, err := Convert(strings.NewReader("[کتاب/N NP] [را/POSTP POSTP] ./PUNC\n"), &out, FormatBrackets, FormatCoNLL)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "کتاب\tN\tB-NP\nرا\tPOSTP\tB-POSTP\n.\tPUNC\tO\n\n", out.String())

	_, err = Convert(strings.NewReader("[کتاب NP]\n"), &out, FormatBrackets, FormatCoNLL)
	assert.ErrorContains(t, err, "no POS tag")

	_, err = Convert(strings.NewReader(""), &out, "xml", FormatCoNLL)
	assert.Error(t, err)
}
