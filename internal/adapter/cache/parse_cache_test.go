package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chunk/internal/domain"
)

func sentence(words ...string) []domain.TaggedToken {
	tokens := make([]domain.TaggedToken, len(words))
	for i, w := range words {
		tokens[i] = domain.TaggedToken{Text: w, POS: "N"}
	}
	return tokens
}

type countingChunker struct {
	calls int
	err   error
}

func (c *countingChunker) Parse(s []domain.TaggedToken) (domain.Tree, error) {
	c.calls++
	if c.err != nil {
		return domain.Tree{}, c.err
	}
	return domain.NewTree(domain.NewGroup("NP", s...)), nil
}

func TestParseCache_GetPut(t *testing.T) {
	c := NewParseCache(10, time.Minute)
	s := sentence("a", "b")

	_, hit := c.Get(s)
	assert.False(t, hit)

	tree := domain.NewTree(domain.NewGroup("NP", s...))
	c.Put(s, tree)

	got, hit := c.Get(s)
	require.True(t, hit)
	assert.True(t, tree.Equal(got))

	// same words, different tags
	other := []domain.TaggedToken{{Text: "a", POS: "V"}, {Text: "b", POS: "N"}}
	_, hit = c.Get(other)
	assert.False(t, hit)

	hits, misses := c.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(2), misses)
}

func TestParseCache_ReturnsCopies(t *testing.T) {
	c := NewParseCache(10, time.Minute)
	s := sentence("a")
	c.Put(s, domain.NewTree(domain.NewGroup("NP", s...)))

	got, _ := c.Get(s)
	got.Children[0].Tokens[0].Text = "changed"

	again, _ := c.Get(s)
	assert.Equal(t, "a", again.Children[0].Tokens[0].Text)
}

func TestParseCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewParseCache(2, time.Minute)
	a, b, d := sentence("a"), sentence("b"), sentence("d")

	c.Put(a, domain.FromTokens(a))
	c.Put(b, domain.FromTokens(b))
	c.Get(a)
	c.Put(d, domain.FromTokens(d))

	assert.Equal(t, 2, c.Size())
	_, hit := c.Get(b)
	assert.False(t, hit)
	_, hit = c.Get(a)
	assert.True(t, hit)
}

func TestParseCache_Expiry(t *testing.T) {
	c := NewParseCache(10, time.Millisecond)
	s := sentence("a")
	c.Put(s, domain.FromTokens(s))

	time.Sleep(5 * time.Millisecond)
	_, hit := c.Get(s)
	assert.False(t, hit)
	assert.Equal(t, 0, c.Size())
}

func TestParseCache_Invalidate(t *testing.T) {
	c := NewParseCache(10, time.Minute)
	s := sentence("a")
	c.Put(s, domain.FromTokens(s))

	c.Invalidate()
	assert.Equal(t, 0, c.Size())
	_, hit := c.Get(s)
	assert.False(t, hit)
}

func TestCachedChunker(t *testing.T) {
	inner := &countingChunker{}
	c := NewCachedChunker(inner, NewParseCache(10, time.Minute))
	s := sentence("a", "b")

	first, err := c.Parse(s)
	require.NoError(t, err)
	second, err := c.Parse(s)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
	assert.True(t, first.Equal(second))
}

func TestCachedChunker_DoesNotCacheErrors(t *testing.T) {
	boom := errors.New("boom")
	inner := &countingChunker{err: boom}
	c := NewCachedChunker(inner, NewParseCache(10, time.Minute))

	_, err := c.Parse(sentence("a"))
	assert.ErrorIs(t, err, boom)
	_, err = c.Parse(sentence("a"))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedChunker_ParseMany(t *testing.T) {
	inner := &countingChunker{}
	c := NewCachedChunker(inner, NewParseCache(10, time.Minute))

	input := func(yield func([]domain.TaggedToken) bool) {
		for _, s := range [][]domain.TaggedToken{sentence("a"), sentence("b"), sentence("a")} {
			if !yield(s) {
				return
			}
		}
	}

	var words []string
	for tree, err := range c.ParseMany(input) {
		require.NoError(t, err)
		words = append(words, tree.Leaves()[0].Text)
	}
	assert.Equal(t, []string{"a", "b", "a"}, words)
	assert.Equal(t, 2, inner.calls)
}
