// Package eval scores predicted chunk trees against gold trees.
package eval

import (
	"fmt"
	"slices"

	"chunk/internal/adapter/iob"
	"chunk/internal/domain"
)

// Precision, Recall and F1 return 0 instead of dividing by zero.
func Precision(truePositives, testPositives int) float64 {
	if testPositives == 0 {
		return 0
	}
	return float64(truePositives) / float64(testPositives)
}

func Recall(truePositives, conditionPositives int) float64 {
	if conditionPositives == 0 {
		return 0
	}
	return float64(truePositives) / float64(conditionPositives)
}

func F1(precision, recall float64) float64 {
	if precision+recall == 0 {
		return 0
	}
	return 2.0 * (precision * recall) / (precision + recall)
}

// Counts are chunk-level counts; a predicted chunk is correct when a gold
// chunk has the same label and the same token span.
type Counts struct {
	TP, FP, FN int
}

func (c Counts) Precision() float64 { return Precision(c.TP, c.TP+c.FP) }
func (c Counts) Recall() float64    { return Recall(c.TP, c.TP+c.FN) }
func (c Counts) F1() float64        { return F1(c.Precision(), c.Recall()) }

type Result struct {
	Counts
	PerLabel       map[string]*Counts
	Tokens         int
	CorrectTags    int
	Sentences      int
	ExactSentences int
}

func NewResult() *Result {
	return &Result{PerLabel: make(map[string]*Counts)}
}

// TagAccuracy is the share of tokens whose boundary tag matches gold.
func (r *Result) TagAccuracy() float64 {
	if r.Tokens == 0 {
		return 0
	}
	return float64(r.CorrectTags) / float64(r.Tokens)
}

// Labels returns the labels seen in gold or predictions, sorted.
func (r *Result) Labels() []string {
	labels := make([]string, 0, len(r.PerLabel))
	for l := range r.PerLabel {
		labels = append(labels, l)
	}
	slices.Sort(labels)
	return labels
}

type span struct {
	label      string
	start, end int
}

func spans(tree domain.Tree) map[span]struct{} {
	out := make(map[span]struct{})
	pos := 0
	for _, child := range tree.Children {
		if child.Kind == domain.Group {
			out[span{child.Label, pos, pos + len(child.Tokens)}] = struct{}{}
		}
		pos += len(child.Tokens)
	}
	return out
}

func (r *Result) label(l string) *Counts {
	c, ok := r.PerLabel[l]
	if !ok {
		c = &Counts{}
		r.PerLabel[l] = c
	}
	return c
}

// Add scores one sentence. Both trees must have the same leaves.
func (r *Result) Add(gold, predicted domain.Tree) error {
	g, p := iob.Encode(gold), iob.Encode(predicted)
	if len(g) != len(p) {
		return fmt.Errorf("gold has %d tokens, prediction has %d", len(g), len(p))
	}
	for i := range g {
		if g[i].Text != p[i].Text {
			return fmt.Errorf("token %d: gold %q, prediction %q", i, g[i].Text, p[i].Text)
		}
	}
	for i := range g {
		if g[i].Tag == p[i].Tag {
			r.CorrectTags++
		}
	}
	r.Tokens += len(g)
	r.Sentences++

	gs, ps := spans(gold), spans(predicted)
	exact := len(gs) == len(ps)
	for s := range ps {
		if _, ok := gs[s]; ok {
			r.TP++
			r.label(s.label).TP++
		} else {
			r.FP++
			r.label(s.label).FP++
			exact = false
		}
	}
	for s := range gs {
		if _, ok := ps[s]; !ok {
			r.FN++
			r.label(s.label).FN++
		}
	}
	if exact {
		r.ExactSentences++
	}
	return nil
}
