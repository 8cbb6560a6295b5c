package grammar

import (
	"fmt"
	"strings"
)

type RuleKind int

const (
	ChunkRule RuleKind = iota
	StripRule
	SplitRule
	MergeRule
)

func (k RuleKind) String() string {
	switch k {
	case ChunkRule:
		return "chunk"
	case StripRule:
		return "strip"
	case SplitRule:
		return "split"
	case MergeRule:
		return "merge"
	default:
		return "unknown"
	}
}

// Rule is one line of a stage.
//
//	{P}     chunk runs matching P outside existing chunks
//	L{P}R   same, but only between left context L and right context R
//	}P{     strip runs matching P out of chunks
//	L}{R    split a chunk between L and R
//	L{}R    merge adjacent chunks where the first ends in L and the next starts with R
type Rule struct {
	Kind    RuleKind
	Source  string
	Comment string

	left, body, right *Pattern
}

func (r *Rule) String() string {
	return r.Source
}

// ParseRule parses a single rule line. Whitespace inside the rule is
// ignored and an unescaped # starts a comment.
func ParseRule(line string) (*Rule, error) {
	text, comment := splitComment(line)
	text = strings.Join(strings.Fields(text), "")
	if text == "" {
		return nil, fmt.Errorf("%w: empty rule", ErrSyntax)
	}

	r := &Rule{Source: text, Comment: comment}
	var err error
	switch {
	case text[0] == '{' && text[len(text)-1] == '}':
		r.Kind = ChunkRule
		err = r.compile("", text[1:len(text)-1], "")
	case text[0] == '}' && text[len(text)-1] == '{':
		r.Kind = StripRule
		err = r.compile("", text[1:len(text)-1], "")
	case strings.Contains(text, "}{"):
		r.Kind = SplitRule
		parts := strings.Split(text, "}{")
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: illegal split rule %q", ErrSyntax, text)
		}
		err = r.compile(parts[0], "", parts[1])
	case strings.Contains(text, "{}"):
		r.Kind = MergeRule
		parts := strings.Split(text, "{}")
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: illegal merge rule %q", ErrSyntax, text)
		}
		err = r.compile(parts[0], "", parts[1])
	case strings.Count(text, "{") == 1 && strings.Count(text, "}") == 1 &&
		strings.Index(text, "{") < strings.Index(text, "}"):
		r.Kind = ChunkRule
		open, closing := strings.Index(text, "{"), strings.Index(text, "}")
		err = r.compile(text[:open], text[open+1:closing], text[closing+1:])
	default:
		return nil, fmt.Errorf("%w: illegal chunk pattern %q", ErrSyntax, text)
	}
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", text, err)
	}
	return r, nil
}

func (r *Rule) compile(left, body, right string) error {
	var err error
	if r.left, err = CompilePattern(left); err != nil {
		return err
	}
	if r.body, err = CompilePattern(body); err != nil {
		return err
	}
	r.right, err = CompilePattern(right)
	return err
}

func splitComment(line string) (string, string) {
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			i++
		case '#':
			return line[:i], strings.TrimSpace(line[i+1:])
		}
	}
	return line, ""
}

// apply rewrites the chunk layout of st.
func (r *Rule) apply(st *chunkString) {
	switch r.Kind {
	case ChunkRule:
		r.applyChunk(st)
	case StripRule:
		r.applyStrip(st)
	case SplitRule:
		r.applySplit(st)
	case MergeRule:
		r.applyMerge(st)
	}
}

// matchContext matches left, body and right in sequence at pos and returns
// the body span [a, b) and the end of the whole match c.
func (r *Rule) matchContext(tags []string, pos int) (a, b, c int, ok bool) {
	ok = r.left.root.match(tags, pos, func(la int) bool {
		return r.body.root.match(tags, la, func(lb int) bool {
			return r.right.root.match(tags, lb, func(lc int) bool {
				a, b, c = la, lb, lc
				return true
			})
		})
	})
	return a, b, c, ok
}

func (r *Rule) applyChunk(st *chunkString) {
	var out []piece
	for _, p := range st.pieces {
		if p.chunk {
			out = append(out, p)
			continue
		}
		tags := st.tags[:p.end]
		last := p.start
		for i := p.start; i < p.end; {
			a, b, c, ok := r.matchContext(tags, i)
			if !ok {
				i++
				continue
			}
			if b > a {
				out = appendPiece(out, piece{start: last, end: a})
				out = append(out, piece{start: a, end: b, chunk: true})
				last = b
			}
			if c > i {
				i = c
			} else {
				i++
			}
		}
		out = appendPiece(out, piece{start: last, end: p.end})
	}
	st.pieces = normalize(out)
}

func (r *Rule) applyStrip(st *chunkString) {
	var out []piece
	for _, p := range st.pieces {
		if !p.chunk {
			out = append(out, p)
			continue
		}
		tags := st.tags[:p.end]
		last := p.start
		for i := p.start; i < p.end; {
			m, ok := r.body.Match(tags, i)
			if !ok || m == i {
				i++
				continue
			}
			out = appendPiece(out, piece{start: last, end: i, chunk: true})
			out = append(out, piece{start: i, end: m})
			last, i = m, m
		}
		out = appendPiece(out, piece{start: last, end: p.end, chunk: true})
	}
	st.pieces = normalize(out)
}

func (r *Rule) applySplit(st *chunkString) {
	var out []piece
	for _, p := range st.pieces {
		if !p.chunk {
			out = append(out, p)
			continue
		}
		tags := st.tags[:p.end]
		last := p.start
		for i := p.start; i < p.end; {
			at := -1
			r.left.root.match(tags, i, func(a int) bool {
				if _, ok := r.right.Match(tags, a); ok {
					at = a
					return true
				}
				return false
			})
			if at < 0 {
				i++
				continue
			}
			if at > last && at < p.end {
				out = append(out, piece{start: last, end: at, chunk: true})
				last = at
			}
			if at > i {
				i = at
			} else {
				i++
			}
		}
		out = appendPiece(out, piece{start: last, end: p.end, chunk: true})
	}
	st.pieces = out
}

func (r *Rule) applyMerge(st *chunkString) {
	var out []piece
	for idx, p := range st.pieces {
		if idx > 0 && p.chunk && len(out) > 0 {
			prev := &out[len(out)-1]
			if prev.chunk && r.canMerge(st.tags, st.pieces[idx-1].start, prev.end, p) {
				prev.end = p.end
				continue
			}
		}
		out = append(out, p)
	}
	st.pieces = out
}

// canMerge reports whether left matches some span ending exactly at the
// chunk boundary (starting no earlier than from) and right matches at the
// start of next.
func (r *Rule) canMerge(tags []string, from, boundary int, next piece) bool {
	if _, ok := r.right.Match(tags[:next.end], next.start); !ok {
		return false
	}
	for i := from; i <= boundary; i++ {
		if r.left.MatchExact(tags, i, boundary) {
			return true
		}
	}
	return false
}
