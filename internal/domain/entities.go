package domain

import "strings"

// RootLabel is the label of every chunk tree root.
const RootLabel = "S"

// Boundary tag vocabulary.
const (
	Outside     = "O"
	BeginPrefix = "B-"
	InPrefix    = "I-"
)

type TaggedToken struct {
	Text string `json:"text"`
	POS  string `json:"pos"`
}

func (t TaggedToken) String() string {
	return t.Text + "/" + t.POS
}

type NodeKind uint8

const (
	BareToken NodeKind = iota
	Group
)

// Node is one child of a chunk tree: either a bare token outside any chunk,
// or a labeled group of tokens. A bare node carries exactly one token.
type Node struct {
	Kind   NodeKind      `json:"kind"`
	Label  string        `json:"label,omitempty"`
	Tokens []TaggedToken `json:"tokens"`
}

func Bare(tok TaggedToken) Node {
	return Node{Kind: BareToken, Tokens: []TaggedToken{tok}}
}

func NewGroup(label string, tokens ...TaggedToken) Node {
	return Node{Kind: Group, Label: label, Tokens: tokens}
}

// Tag returns the tag a node shows to pattern matching: the POS of a bare
// token or the label of a group.
func (n Node) Tag() string {
	if n.Kind == Group {
		return n.Label
	}
	if len(n.Tokens) == 0 {
		return ""
	}
	return n.Tokens[0].POS
}

func (n Node) Equal(o Node) bool {
	if n.Kind != o.Kind || n.Label != o.Label || len(n.Tokens) != len(o.Tokens) {
		return false
	}
	for i := range n.Tokens {
		if n.Tokens[i] != o.Tokens[i] {
			return false
		}
	}
	return true
}

// Tree is a flat chunk tree. Groups never contain groups.
type Tree struct {
	Label    string `json:"label"`
	Children []Node `json:"children"`
}

func NewTree(children ...Node) Tree {
	return Tree{Label: RootLabel, Children: children}
}

// FromTokens builds an unchunked tree.
func FromTokens(tokens []TaggedToken) Tree {
	children := make([]Node, len(tokens))
	for i, tok := range tokens {
		children[i] = Bare(tok)
	}
	return NewTree(children...)
}

// Leaves returns all tokens in sentence order.
func (t Tree) Leaves() []TaggedToken {
	var leaves []TaggedToken
	for _, child := range t.Children {
		leaves = append(leaves, child.Tokens...)
	}
	return leaves
}

func (t Tree) Equal(o Tree) bool {
	if t.Label != o.Label || len(t.Children) != len(o.Children) {
		return false
	}
	for i := range t.Children {
		if !t.Children[i].Equal(o.Children[i]) {
			return false
		}
	}
	return true
}

// String renders the tree in bracketed s-expression form, e.g.
// (S (NP w1/N w2/PRO) ./PUNC). Bare nodes without tokens are skipped.
func (t Tree) String() string {
	var sb strings.Builder
	sb.WriteString("(")
	sb.WriteString(t.Label)
	for _, child := range t.Children {
		if child.Kind == BareToken {
			for _, tok := range child.Tokens {
				sb.WriteString(" ")
				sb.WriteString(tok.String())
			}
			continue
		}
		sb.WriteString(" (")
		sb.WriteString(child.Label)
		for _, tok := range child.Tokens {
			sb.WriteString(" ")
			sb.WriteString(tok.String())
		}
		sb.WriteString(")")
	}
	sb.WriteString(")")
	return sb.String()
}

// IOBToken is one element of a boundary-tagged sequence.
type IOBToken struct {
	Text string `json:"text"`
	POS  string `json:"pos"`
	Tag  string `json:"tag"`
}

func (t IOBToken) Token() TaggedToken {
	return TaggedToken{Text: t.Text, POS: t.POS}
}

// SplitTag splits a boundary tag into its prefix letter and label.
// "B-NP" yields ('B', "NP"), "O" yields ('O', ""). ok is false for anything
// outside the O / B-L / I-L vocabulary.
func SplitTag(tag string) (prefix byte, label string, ok bool) {
	if tag == Outside {
		return 'O', "", true
	}
	if len(tag) > 2 && tag[1] == '-' && (tag[0] == 'B' || tag[0] == 'I') {
		return tag[0], tag[2:], true
	}
	return 0, "", false
}
