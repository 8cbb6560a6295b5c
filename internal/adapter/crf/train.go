package crf

import (
	"fmt"
	"math"
	"math/rand"
	"slices"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"chunk/internal/adapter/store"
	"chunk/internal/domain"
	"chunk/internal/port"
)

// minScale is the point at which the lazy L2 scale is folded into the weights.
const minScale = 1e-9

type instance struct {
	ids  [][]int
	gold []int
}

// Train fits the model from scratch.
//
// C2 is an L2 penalty applied by decaying a global weight scale; C1 is an L1
// penalty applied with cumulative clipping, which drives unused weights to
// exactly zero. Each iteration is one shuffled pass over the examples.
func (t *Tagger) Train(examples [][]domain.IOBToken, opts port.TrainOptions) error {
	start := time.Now()

	data, err := t.prepare(examples, opts.Features)
	if err != nil {
		return err
	}

	iterations := opts.MaxIterations
	if iterations <= 0 {
		iterations = defaultIterations
	}
	logf := t.logger.Debug
	if opts.Verbose {
		logf = t.logger.Info
	}
	logf("training started",
		zap.Int("sentences", len(data)),
		zap.Int("labels", len(t.labels)),
		zap.Int("attributes", len(t.attrs)),
		zap.Int("iterations", iterations),
		zap.Float64("c1", opts.C1),
		zap.Float64("c2", opts.C2),
	)

	tr := &trainer{
		Tagger: t,
		c1:     opts.C1,
		c2:     opts.C2,
		n:      float64(len(data)),
		scale:  1,
		qState: make([]float64, len(t.state)),
		qTrans: make([]float64, len(t.trans)),
	}
	rng := rand.New(rand.NewSource(t.seed))
	order := make([]int, len(data))
	for i := range order {
		order[i] = i
	}

	for epoch := 1; epoch <= iterations; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		loss := 0.0
		for _, idx := range order {
			loss -= tr.step(data[idx])
		}

		logf("iteration",
			zap.Int("iteration", epoch),
			zap.Int("total", iterations),
			zap.Float64("loss", loss),
		)
		if opts.Progress != nil {
			opts.Progress(epoch, iterations, loss)
		}
	}
	tr.fold()

	t.info = store.ModelInfo{
		CreatedAt:  time.Now().UTC(),
		Labels:     slices.Clone(t.labels),
		C1:         opts.C1,
		C2:         opts.C2,
		Iterations: iterations,
	}
	if opts.OutputPath != "" {
		if err := t.Save(opts.OutputPath); err != nil {
			return err
		}
	}
	if opts.ReportDuration {
		t.logger.Info("training finished", zap.Duration("elapsed", time.Since(start)))
	}
	return nil
}

// prepare builds the label set and attribute dictionary and converts the
// examples to ids. Empty sentences are skipped.
func (t *Tagger) prepare(examples [][]domain.IOBToken, fx port.FeatureExtractor) ([]instance, error) {
	type raw struct {
		rows [][]string
		tags []string
	}
	var raws []raw
	labelSet := make(map[string]struct{})
	attrSet := make(map[string]struct{})

	for e, ex := range examples {
		if len(ex) == 0 {
			continue
		}
		tokens := make([]domain.TaggedToken, len(ex))
		tags := make([]string, len(ex))
		for i, tok := range ex {
			if _, _, ok := domain.SplitTag(tok.Tag); !ok {
				return nil, fmt.Errorf("crf: example %d token %d: invalid tag %q", e, i, tok.Tag)
			}
			tokens[i] = tok.Token()
			tags[i] = tok.Tag
			labelSet[tok.Tag] = struct{}{}
		}
		rows, err := extract(tokens, fx)
		if err != nil {
			return nil, fmt.Errorf("example %d: %w", e, err)
		}
		for _, row := range rows {
			for _, a := range row {
				attrSet[a] = struct{}{}
			}
		}
		raws = append(raws, raw{rows: rows, tags: tags})
	}
	if len(raws) == 0 {
		return nil, ErrEmptyCorpus
	}

	labels := sortedKeys(labelSet)
	names := sortedKeys(attrSet)
	n := len(labels)
	valid := transitionMask(labels)

	labelID := make(map[string]int, n)
	for i, l := range labels {
		labelID[l] = i
	}
	attrs := make(map[string]int, len(names))
	for id, a := range names {
		attrs[a] = id
	}

	// the tagger is left untouched until every example validates
	gold := make([][]int, len(raws))
	for e, r := range raws {
		gold[e] = make([]int, len(r.tags))
		prev := n
		for i, tag := range r.tags {
			y := labelID[tag]
			if !valid[prev*n+y] {
				before := "sentence start"
				if prev < n {
					before = labels[prev]
				}
				return nil, fmt.Errorf("crf: sentence %d token %d: %s cannot follow %s", e, i, tag, before)
			}
			gold[e][i] = y
			prev = y
		}
	}

	t.labels = labels
	t.valid = valid
	t.attrs = attrs
	t.state = make([]float64, len(names)*n)
	t.trans = make([]float64, (n+1)*n)

	data := make([]instance, len(raws))
	for e, r := range raws {
		inst := instance{ids: make([][]int, len(r.rows)), gold: gold[e]}
		for i, row := range r.rows {
			inst.ids[i] = t.lookup(row)
		}
		data[e] = inst
	}
	return data, nil
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// trainer holds the SGD state. Real weights are scale times the stored ones.
type trainer struct {
	*Tagger
	c1, c2 float64
	n      float64
	k      int
	scale  float64
	u      float64 // total L1 penalty each weight could have received
	qState []float64
	qTrans []float64
}

// step runs one stochastic update and returns the log-likelihood of inst
// under the weights before the update.
func (tr *trainer) step(inst instance) float64 {
	eta := tr.eta0 / (1 + float64(tr.k)/tr.n)
	tr.k++

	if tr.c2 > 0 {
		tr.scale *= math.Max(1-2*eta*tr.c2/tr.n, minScale)
		if tr.scale < minScale {
			tr.fold()
		}
	}
	if tr.c1 > 0 {
		tr.u += eta * tr.c1 / tr.n
	}

	labels := len(tr.labels)
	emit := tr.emissions(inst.ids, tr.scale)
	lt := tr.forwardBackward(emit, tr.scale)

	gold := 0.0
	prev := labels
	for i, y := range inst.gold {
		gold += emit[i][y] + tr.transition(prev, y, tr.scale)
		prev = y
	}

	// transition gradient is taken before any weight moves
	grad := make([]float64, len(tr.trans))
	prev = labels
	for i, y := range inst.gold {
		grad[prev*labels+y]++
		prev = y
		if i == 0 {
			for k := 0; k < labels; k++ {
				if tr.valid[labels*labels+k] {
					grad[labels*labels+k] -= lt.marginal(0, k)
				}
			}
			continue
		}
		for p := 0; p < labels; p++ {
			for k := 0; k < labels; k++ {
				if tr.valid[p*labels+k] {
					grad[p*labels+k] -= lt.pairMarginal(i, p, k, tr.transition(p, k, tr.scale))
				}
			}
		}
	}

	delta := eta / tr.scale
	touched := make(map[int]struct{})
	for i, ids := range inst.ids {
		y := inst.gold[i]
		for _, id := range ids {
			row := tr.state[id*labels : (id+1)*labels]
			row[y] += delta
			for k := range row {
				row[k] -= delta * lt.marginal(i, k)
			}
			touched[id] = struct{}{}
		}
	}
	floats.AddScaled(tr.trans, delta, grad)

	if tr.c1 > 0 {
		for id := range touched {
			for k := 0; k < labels; k++ {
				tr.penalize(tr.state, tr.qState, id*labels+k)
			}
		}
		for i := range tr.trans {
			tr.penalize(tr.trans, tr.qTrans, i)
		}
	}

	return gold - lt.logZ
}

// penalize applies the outstanding L1 penalty to weight i without letting it
// cross zero.
func (tr *trainer) penalize(w, q []float64, i int) {
	z := w[i] * tr.scale
	next := z
	switch {
	case z > 0:
		next = math.Max(0, z-(tr.u+q[i]))
	case z < 0:
		next = math.Min(0, z+(tr.u-q[i]))
	}
	q[i] += next - z
	w[i] = next / tr.scale
}

// fold multiplies the scale into the stored weights.
func (tr *trainer) fold() {
	if tr.scale == 1 {
		return
	}
	floats.Scale(tr.scale, tr.state)
	floats.Scale(tr.scale, tr.trans)
	tr.scale = 1
}
