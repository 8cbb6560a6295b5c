package crf

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// emissions returns per-position label scores with weights multiplied by
// scale.
func (t *Tagger) emissions(ids [][]int, scale float64) [][]float64 {
	n := len(t.labels)
	out := make([][]float64, len(ids))
	for i, row := range ids {
		scores := make([]float64, n)
		for _, id := range row {
			floats.AddScaled(scores, scale, t.state[id*n:(id+1)*n])
		}
		out[i] = scores
	}
	return out
}

func (t *Tagger) transition(prev, y int, scale float64) float64 {
	n := len(t.labels)
	if !t.valid[prev*n+y] {
		return math.Inf(-1)
	}
	return scale * t.trans[prev*n+y]
}

// viterbi returns the best label path. Ties go to the lower label index.
func (t *Tagger) viterbi(emit [][]float64) []int {
	n := len(t.labels)
	size := len(emit)
	score := make([]float64, n)
	next := make([]float64, n)
	back := make([][]int, size)

	for y := 0; y < n; y++ {
		score[y] = t.transition(n, y, 1) + emit[0][y]
	}
	for i := 1; i < size; i++ {
		back[i] = make([]int, n)
		for y := 0; y < n; y++ {
			best, arg := math.Inf(-1), 0
			for p := 0; p < n; p++ {
				if s := score[p] + t.transition(p, y, 1); s > best {
					best, arg = s, p
				}
			}
			next[y] = best + emit[i][y]
			back[i][y] = arg
		}
		score, next = next, score
	}

	path := make([]int, size)
	path[size-1] = floats.MaxIdx(score)
	for i := size - 1; i > 0; i-- {
		path[i-1] = back[i][path[i]]
	}
	return path
}

// lattice holds forward and backward log scores of one sentence.
type lattice struct {
	emit  [][]float64
	alpha [][]float64
	beta  [][]float64
	logZ  float64
}

func (t *Tagger) forwardBackward(emit [][]float64, scale float64) *lattice {
	n := len(t.labels)
	size := len(emit)
	lt := &lattice{
		emit:  emit,
		alpha: make([][]float64, size),
		beta:  make([][]float64, size),
	}
	buf := make([]float64, n)

	lt.alpha[0] = make([]float64, n)
	for y := 0; y < n; y++ {
		lt.alpha[0][y] = t.transition(n, y, scale) + emit[0][y]
	}
	for i := 1; i < size; i++ {
		lt.alpha[i] = make([]float64, n)
		for y := 0; y < n; y++ {
			for p := 0; p < n; p++ {
				buf[p] = lt.alpha[i-1][p] + t.transition(p, y, scale)
			}
			lt.alpha[i][y] = floats.LogSumExp(buf) + emit[i][y]
		}
	}

	lt.beta[size-1] = make([]float64, n)
	for i := size - 2; i >= 0; i-- {
		lt.beta[i] = make([]float64, n)
		for y := 0; y < n; y++ {
			for k := 0; k < n; k++ {
				buf[k] = t.transition(y, k, scale) + emit[i+1][k] + lt.beta[i+1][k]
			}
			lt.beta[i][y] = floats.LogSumExp(buf)
		}
	}

	lt.logZ = floats.LogSumExp(lt.alpha[size-1])
	return lt
}

// marginal is P(y at position i).
func (lt *lattice) marginal(i, y int) float64 {
	return math.Exp(lt.alpha[i][y] + lt.beta[i][y] - lt.logZ)
}

// pairMarginal is P(p at i-1, y at i) given the transition score.
func (lt *lattice) pairMarginal(i, p, y int, trans float64) float64 {
	return math.Exp(lt.alpha[i-1][p] + trans + lt.emit[i][y] + lt.beta[i][y] - lt.logZ)
}
