// Package grammar implements cascaded chunking with tag-pattern rules.
//
// A grammar is a list of stages. Each stage has a label and an ordered list
// of rules; the rules of a stage rewrite the chunk layout of the sentence and
// every chunk left at the end of the stage becomes a group with the stage
// label. Groups built by earlier stages are seen by later stages as single
// units whose tag is the group label.
//
// Grammar text:
//
//	NP:
//	    {<DT>?<JJ>*<NN>}   # chunk determiner/adjective/noun sequences
//	    <NN>}{<.*>         # and split after every bare noun
//	VP: {<V>+}
package grammar

import (
	"errors"
	"fmt"
	"strings"

	"chunk/internal/domain"
)

// ErrSyntax is returned for malformed grammars, rules and patterns.
var ErrSyntax = errors.New("grammar syntax error")

type Stage struct {
	Label string
	Rules []*Rule
}

// Grammar is an immutable rule cascade, safe for concurrent use.
type Grammar struct {
	Stages []Stage
}

// Parse reads a grammar. A line "LABEL:" opens a stage, optionally followed
// by a rule on the same line; blank lines and # comments are skipped.
func Parse(src string) (*Grammar, error) {
	g := &Grammar{}
	cur := -1

	for n, line := range strings.Split(src, "\n") {
		code, _ := splitComment(line)
		line = strings.TrimSpace(line)
		if label, rest, ok := stageHeader(strings.TrimSpace(code)); ok {
			if label == "" {
				return nil, fmt.Errorf("%w: line %d: empty stage label", ErrSyntax, n+1)
			}
			g.Stages = append(g.Stages, Stage{Label: label})
			cur = len(g.Stages) - 1
			line = rest
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if cur < 0 {
			return nil, fmt.Errorf("%w: line %d: rule outside a stage", ErrSyntax, n+1)
		}
		rule, err := ParseRule(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n+1, err)
		}
		g.Stages[cur].Rules = append(g.Stages[cur].Rules, rule)
	}

	for _, st := range g.Stages {
		if len(st.Rules) == 0 {
			return nil, fmt.Errorf("%w: stage %s has no rules", ErrSyntax, st.Label)
		}
	}
	return g, nil
}

// MustParse is like Parse but panics on error.
func MustParse(src string) *Grammar {
	g, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return g
}

// stageHeader splits "LABEL: rest" at the first unescaped colon.
func stageHeader(line string) (label, rest string, ok bool) {
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			i++
		case ':':
			return strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+1:]), true
		}
	}
	return "", "", false
}

func (g *Grammar) String() string {
	var sb strings.Builder
	for _, st := range g.Stages {
		sb.WriteString(st.Label)
		sb.WriteString(":\n")
		for _, r := range st.Rules {
			sb.WriteString("    ")
			sb.WriteString(r.Source)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// TraceFunc observes the tree after each stage.
type TraceFunc func(stage *Stage, tree domain.Tree)

// Apply runs every stage in order over the tree's children.
func (g *Grammar) Apply(tree domain.Tree) domain.Tree {
	return g.ApplyTrace(tree, nil)
}

func (g *Grammar) ApplyTrace(tree domain.Tree, trace TraceFunc) domain.Tree {
	out := domain.Tree{Label: tree.Label, Children: tree.Children}
	if out.Label == "" {
		out.Label = domain.RootLabel
	}
	if len(out.Children) == 0 {
		return out
	}
	for i := range g.Stages {
		st := &g.Stages[i]
		out.Children = st.apply(out.Children)
		if trace != nil {
			trace(st, out)
		}
	}
	return out
}

func (s *Stage) apply(nodes []domain.Node) []domain.Node {
	cs := newChunkString(nodes)
	for _, r := range s.Rules {
		r.apply(cs)
	}
	return cs.nodes(s.Label)
}

// piece is a run of units that is either inside one chunk or outside all
// chunks.
type piece struct {
	start, end int
	chunk      bool
}

// chunkString is the working state of one stage: the unit tags plus the
// current chunk layout. Outside pieces are never adjacent; chunk pieces may be.
type chunkString struct {
	units  []domain.Node
	tags   []string
	pieces []piece
}

func newChunkString(units []domain.Node) *chunkString {
	tags := make([]string, len(units))
	for i, u := range units {
		tags[i] = u.Tag()
	}
	return &chunkString{
		units:  units,
		tags:   tags,
		pieces: []piece{{start: 0, end: len(units)}},
	}
}

// nodes materializes the layout. Groups swallowed by a new chunk are
// flattened into it.
func (cs *chunkString) nodes(label string) []domain.Node {
	out := make([]domain.Node, 0, len(cs.units))
	for _, p := range cs.pieces {
		if !p.chunk {
			out = append(out, cs.units[p.start:p.end]...)
			continue
		}
		var tokens []domain.TaggedToken
		for _, u := range cs.units[p.start:p.end] {
			tokens = append(tokens, u.Tokens...)
		}
		out = append(out, domain.NewGroup(label, tokens...))
	}
	return out
}

func appendPiece(out []piece, p piece) []piece {
	if p.end <= p.start {
		return out
	}
	return append(out, p)
}

func normalize(pieces []piece) []piece {
	out := pieces[:0]
	for _, p := range pieces {
		if p.end <= p.start {
			continue
		}
		if n := len(out); n > 0 && !p.chunk && !out[n-1].chunk {
			out[n-1].end = p.end
			continue
		}
		out = append(out, p)
	}
	return out
}
