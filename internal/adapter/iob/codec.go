// Package iob converts between chunk trees, boundary-tagged (B-/I-/O)
// sequences and the bracketed text rendering.
package iob

import (
	"errors"
	"fmt"
	"strings"

	"chunk/internal/domain"
)

var (
	// ErrOrphanInside is returned by Decode for an I-L tag that does not
	// continue a B-L or I-L run of the same label.
	ErrOrphanInside = errors.New("inside tag without matching begin")
	// ErrInvalidTag is returned for tags outside the O / B-L / I-L vocabulary.
	ErrInvalidTag = errors.New("invalid boundary tag")
)

// Encode flattens a chunk tree into a boundary-tagged sequence. A group
// without a label has no valid boundary tag, so its tokens are tagged O.
func Encode(tree domain.Tree) []domain.IOBToken {
	seq := make([]domain.IOBToken, 0, len(tree.Children))
	for _, child := range tree.Children {
		if child.Kind == domain.BareToken || child.Label == "" {
			for _, tok := range child.Tokens {
				seq = append(seq, domain.IOBToken{Text: tok.Text, POS: tok.POS, Tag: domain.Outside})
			}
			continue
		}
		for i, tok := range child.Tokens {
			prefix := domain.InPrefix
			if i == 0 {
				prefix = domain.BeginPrefix
			}
			seq = append(seq, domain.IOBToken{Text: tok.Text, POS: tok.POS, Tag: prefix + child.Label})
		}
	}
	return seq
}

// Decode rebuilds a chunk tree from a boundary-tagged sequence. It rejects
// orphan inside tags.
func Decode(seq []domain.IOBToken) (domain.Tree, error) {
	return decode(seq, false)
}

// DecodeLenient rebuilds a chunk tree, repairing orphan inside tags: an I-L
// that cannot continue the current group starts a new group labeled L.
func DecodeLenient(seq []domain.IOBToken) (domain.Tree, error) {
	return decode(seq, true)
}

func decode(seq []domain.IOBToken, repair bool) (domain.Tree, error) {
	tree := domain.NewTree()
	open := -1
	for i, item := range seq {
		prefix, label, ok := domain.SplitTag(item.Tag)
		if !ok {
			return domain.Tree{}, fmt.Errorf("token %d (%q): %w: %q", i, item.Text, ErrInvalidTag, item.Tag)
		}
		tok := item.Token()
		switch prefix {
		case 'O':
			tree.Children = append(tree.Children, domain.Bare(tok))
			open = -1
		case 'B':
			tree.Children = append(tree.Children, domain.NewGroup(label, tok))
			open = len(tree.Children) - 1
		case 'I':
			if open >= 0 && tree.Children[open].Label == label {
				tree.Children[open].Tokens = append(tree.Children[open].Tokens, tok)
				continue
			}
			if !repair {
				return domain.Tree{}, fmt.Errorf("token %d (%q): %w: %s", i, item.Text, ErrOrphanInside, item.Tag)
			}
			tree.Children = append(tree.Children, domain.NewGroup(label, tok))
			open = len(tree.Children) - 1
		}
	}
	return tree, nil
}

// Brackets renders a tree as "[w1 w2 LABEL] w3 [w4 LABEL]".
//
// A bracket is closed right before the token whose tag begins with B or O,
// and a new bracket is opened right before a B token. Output is trimmed.
func Brackets(tree domain.Tree) string {
	var sb strings.Builder
	label := ""
	for _, item := range Encode(tree) {
		first := item.Tag[0]
		if (first == 'B' || first == 'O') && label != "" {
			sb.WriteString(label)
			sb.WriteString("] ")
			label = ""
		}
		if first == 'B' {
			label = strings.TrimPrefix(item.Tag, domain.BeginPrefix)
			sb.WriteString("[")
		}
		sb.WriteString(item.Text)
		sb.WriteString(" ")
	}
	if label != "" {
		sb.WriteString(label)
		sb.WriteString("] ")
	}
	return strings.TrimSpace(sb.String())
}
