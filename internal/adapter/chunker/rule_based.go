package chunker

import (
	"iter"

	"go.uber.org/zap"

	"chunk/internal/adapter/grammar"
	"chunk/internal/domain"
	"chunk/internal/port"
)

// DefaultGrammar is the Persian chunking cascade.
const DefaultGrammar = grammar.Persian

var defaultGrammar = grammar.MustParse(DefaultGrammar)

// RuleBased chunks sentences with a tag-pattern cascade. It is safe for
// concurrent use.
type RuleBased struct {
	grammar *grammar.Grammar
	logger  *zap.Logger
}

var _ port.StreamChunker = (*RuleBased)(nil)

func NewRuleBased(opts ...Option) *RuleBased {
	o := buildOptions(opts)
	return &RuleBased{grammar: defaultGrammar, logger: o.logger}
}

// NewRuleBasedFromGrammar compiles a custom cascade.
func NewRuleBasedFromGrammar(src string, opts ...Option) (*RuleBased, error) {
	g, err := grammar.Parse(src)
	if err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	return &RuleBased{grammar: g, logger: o.logger}, nil
}

func (c *RuleBased) Grammar() *grammar.Grammar {
	return c.grammar
}

// Parse never fails; the error is there to satisfy port.Chunker.
func (c *RuleBased) Parse(sentence []domain.TaggedToken) (domain.Tree, error) {
	return c.Reparse(domain.FromTokens(sentence)), nil
}

// Reparse runs the cascade over an already chunked tree. Existing groups are
// matched by their label. Running it on its own output changes nothing.
func (c *RuleBased) Reparse(tree domain.Tree) domain.Tree {
	var trace grammar.TraceFunc
	if c.logger.Core().Enabled(zap.DebugLevel) {
		trace = func(st *grammar.Stage, t domain.Tree) {
			c.logger.Debug("stage applied", zap.String("stage", st.Label), zap.Stringer("tree", t))
		}
	}
	return c.grammar.ApplyTrace(tree, trace)
}

// ParseMany chunks sentences lazily in input order.
func (c *RuleBased) ParseMany(sentences iter.Seq[[]domain.TaggedToken]) iter.Seq2[domain.Tree, error] {
	return func(yield func(domain.Tree, error) bool) {
		for sentence := range sentences {
			tree, err := c.Parse(sentence)
			if !yield(tree, err) {
				return
			}
		}
	}
}
