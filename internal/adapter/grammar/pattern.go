package grammar

import (
	"fmt"
	"regexp"
	"strings"
)

// Pattern is a compiled tag pattern such as "<DT>?<JJ>*<NN.*>+".
//
// Each <...> atom is an RE2 expression that must match a whole tag. Atoms
// combine with ?, *, + (greedy), grouping and | alternation. Matching walks
// the alternatives in order and backtracks, so the first successful path
// wins, which for greedy quantifiers is the longest run.
type Pattern struct {
	src  string
	root node
}

// node matches at pos and hands every candidate end position to k until k
// accepts one.
type node interface {
	match(tags []string, pos int, k func(int) bool) bool
}

type atomNode struct {
	re *regexp.Regexp
}

func (a atomNode) match(tags []string, pos int, k func(int) bool) bool {
	if pos >= len(tags) || !a.re.MatchString(tags[pos]) {
		return false
	}
	return k(pos + 1)
}

type seqNode []node

func (s seqNode) match(tags []string, pos int, k func(int) bool) bool {
	return s.matchFrom(0, tags, pos, k)
}

func (s seqNode) matchFrom(i int, tags []string, pos int, k func(int) bool) bool {
	if i == len(s) {
		return k(pos)
	}
	return s[i].match(tags, pos, func(next int) bool {
		return s.matchFrom(i+1, tags, next, k)
	})
}

type altNode []node

func (a altNode) match(tags []string, pos int, k func(int) bool) bool {
	for _, branch := range a {
		if branch.match(tags, pos, k) {
			return true
		}
	}
	return false
}

type repeatNode struct {
	sub      node
	min, max int // max < 0 means unbounded
}

func (r repeatNode) match(tags []string, pos int, k func(int) bool) bool {
	return r.repeat(0, tags, pos, k)
}

func (r repeatNode) repeat(count int, tags []string, pos int, k func(int) bool) bool {
	if r.max < 0 || count < r.max {
		more := r.sub.match(tags, pos, func(next int) bool {
			if next == pos {
				// zero-width iteration ends the loop
				return count+1 >= r.min && k(next)
			}
			return r.repeat(count+1, tags, next, k)
		})
		if more {
			return true
		}
	}
	return count >= r.min && k(pos)
}

// CompilePattern parses a tag pattern. Whitespace is ignored.
func CompilePattern(src string) (*Pattern, error) {
	clean := strings.Join(strings.Fields(src), "")
	p := &patternParser{src: clean}
	root, err := p.parseAlt()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected %q", p.src[p.pos])
	}
	return &Pattern{src: clean, root: root}, nil
}

func (p *Pattern) String() string {
	return p.src
}

// Match reports the end of the first match starting at pos, looking only at
// tags[:len(tags)].
func (p *Pattern) Match(tags []string, pos int) (int, bool) {
	end := -1
	ok := p.root.match(tags, pos, func(e int) bool {
		end = e
		return true
	})
	return end, ok
}

// MatchExact reports whether the pattern can match exactly tags[pos:end].
func (p *Pattern) MatchExact(tags []string, pos, end int) bool {
	return p.root.match(tags[:end], pos, func(e int) bool {
		return e == end
	})
}

type patternParser struct {
	src string
	pos int
}

func (p *patternParser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: pattern %q at %d: %s", ErrSyntax, p.src, p.pos, fmt.Sprintf(format, args...))
}

func (p *patternParser) peek() byte {
	if p.pos < len(p.src) {
		return p.src[p.pos]
	}
	return 0
}

func (p *patternParser) parseAlt() (node, error) {
	first, err := p.parseSeq()
	if err != nil {
		return nil, err
	}
	if p.peek() != '|' {
		return first, nil
	}
	alt := altNode{first}
	for p.peek() == '|' {
		p.pos++
		next, err := p.parseSeq()
		if err != nil {
			return nil, err
		}
		alt = append(alt, next)
	}
	return alt, nil
}

func (p *patternParser) parseSeq() (node, error) {
	var seq seqNode
	for p.pos < len(p.src) {
		c := p.peek()
		if c == '|' || c == ')' {
			break
		}
		item, err := p.parseItem()
		if err != nil {
			return nil, err
		}
		seq = append(seq, item)
	}
	if len(seq) == 1 {
		return seq[0], nil
	}
	return seq, nil
}

func (p *patternParser) parseItem() (node, error) {
	var item node
	switch p.peek() {
	case '<':
		atom, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		item = atom
	case '(':
		p.pos++
		inner, err := p.parseAlt()
		if err != nil {
			return nil, err
		}
		if p.peek() != ')' {
			return nil, p.errorf("missing )")
		}
		p.pos++
		item = inner
	default:
		return nil, p.errorf("expected < or (, got %q", p.peek())
	}

	for {
		switch p.peek() {
		case '?':
			item = repeatNode{sub: item, min: 0, max: 1}
		case '*':
			item = repeatNode{sub: item, min: 0, max: -1}
		case '+':
			item = repeatNode{sub: item, min: 1, max: -1}
		default:
			return item, nil
		}
		p.pos++
	}
}

func (p *patternParser) parseAtom() (node, error) {
	start := p.pos + 1
	end := strings.IndexByte(p.src[start:], '>')
	if end < 0 {
		return nil, p.errorf("unterminated tag")
	}
	expr := p.src[start : start+end]
	if expr == "" || strings.ContainsAny(expr, "<{}") {
		return nil, p.errorf("bad tag expression %q", expr)
	}
	re, err := regexp.Compile(`^(?:` + expr + `)$`)
	if err != nil {
		return nil, p.errorf("tag expression %q: %v", expr, err)
	}
	p.pos = start + end + 1
	return atomNode{re: re}, nil
}
