package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTree_String(t *testing.T) {
	tree := NewTree(
		NewGroup("NP", TaggedToken{"کتاب", "N"}),
		NewGroup("POSTP", TaggedToken{"را", "POSTP"}),
		Bare(TaggedToken{".", "PUNC"}),
	)
	assert.Equal(t, "(S (NP کتاب/N) (POSTP را/POSTP) ./PUNC)", tree.String())
	assert.Equal(t, "(S)", NewTree().String())
}

func TestTree_StringTokenlessNodes(t *testing.T) {
	tree := NewTree(Node{}, Bare(TaggedToken{"a", "X"}), NewGroup("NP"))
	assert.NotPanics(t, func() { _ = tree.String() })
	assert.Equal(t, "(S a/X (NP))", tree.String())
}

func TestSplitTag(t *testing.T) {
	tests := []struct {
		tag    string
		prefix byte
		label  string
		ok     bool
	}{
		{"O", 'O', "", true},
		{"B-NP", 'B', "NP", true},
		{"I-VP", 'I', "VP", true},
		{"B-", 0, "", false},
		{"X-NP", 0, "", false},
	}
	for _, tt := range tests {
		prefix, label, ok := SplitTag(tt.tag)
		assert.Equal(t, tt.prefix, prefix, tt.tag)
		assert.Equal(t, tt.label, label, tt.tag)
		assert.Equal(t, tt.ok, ok, tt.tag)
	}
}
