package iob

import (
	"fmt"
	"strings"

	"chunk/internal/domain"
)

// ParseBrackets reads the output of Brackets back into a tree. Tokens may
// carry a "/POS" suffix; without one the POS is left empty.
func ParseBrackets(s string) (domain.Tree, error) {
	tree := domain.NewTree()
	var group []domain.TaggedToken
	inGroup := false

	for _, field := range strings.Fields(s) {
		if strings.HasPrefix(field, "[") {
			if inGroup {
				return domain.Tree{}, fmt.Errorf("nested bracket at %q", field)
			}
			inGroup = true
			group = nil
			field = field[1:]
			if field == "" {
				continue
			}
		}
		if inGroup && strings.HasSuffix(field, "]") {
			label := strings.TrimSuffix(field, "]")
			if label == "" || len(group) == 0 {
				return domain.Tree{}, fmt.Errorf("empty group closed by %q", field)
			}
			tree.Children = append(tree.Children, domain.NewGroup(label, group...))
			inGroup = false
			continue
		}
		tok := splitTagged(field)
		if inGroup {
			group = append(group, tok)
		} else {
			tree.Children = append(tree.Children, domain.Bare(tok))
		}
	}
	if inGroup {
		return domain.Tree{}, fmt.Errorf("unclosed bracket in %q", s)
	}
	return tree, nil
}

func splitTagged(field string) domain.TaggedToken {
	i := strings.LastIndex(field, "/")
	if i <= 0 || i == len(field)-1 {
		return domain.TaggedToken{Text: field}
	}
	return domain.TaggedToken{Text: field[:i], POS: field[i+1:]}
}
