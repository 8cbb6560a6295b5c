//go:build js && wasm

package main

import (
	"encoding/json"
	"strings"
	"syscall/js"

	"chunk/internal/adapter/cache"
	"chunk/internal/adapter/corpus"
	"chunk/internal/adapter/grammar"
	"chunk/internal/adapter/iob"
	"chunk/internal/domain"
)

// cascade chunks with a rule grammar. The browser build has no model store,
// so only rule-based chunking is available.
type cascade struct {
	g *grammar.Grammar
}

func (c cascade) Parse(sentence []domain.TaggedToken) (domain.Tree, error) {
	return c.g.Apply(domain.FromTokens(sentence)), nil
}

var (
	parseCache *cache.ParseCache
	chk        *cache.CachedChunker
	sentences  int
)

func init() {
	parseCache = cache.NewParseCache(4096, 0)
	chk = cache.NewCachedChunker(cascade{grammar.MustParse(grammar.Persian)}, parseCache)
}

func main() {
	c := make(chan struct{})

	js.Global().Set("chunkParse", js.FuncOf(parseText))
	js.Global().Set("chunkGrammar", js.FuncOf(setGrammar))
	js.Global().Set("chunkClear", js.FuncOf(clearCache))
	js.Global().Set("chunkStats", js.FuncOf(getStats))

	<-c
}

// parseText chunks one word/POS sentence per line.
func parseText(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("usage: chunkParse(text)")
	}

	output := make([]map[string]interface{}, 0)
	for s, err := range corpus.ScanTagged(strings.NewReader(args[0].String())) {
		if err != nil {
			return makeError("parse failed: " + err.Error())
		}
		tree, err := chk.Parse(s)
		if err != nil {
			return makeError("chunking failed: " + err.Error())
		}
		sentences++
		output = append(output, map[string]interface{}{
			"brackets": iob.Brackets(tree),
			"tree":     tree.String(),
			"iob":      iob.Encode(tree),
		})
	}

	return makeResult(map[string]interface{}{
		"sentences": output,
	})
}

// setGrammar replaces the cascade and drops cached parses.
func setGrammar(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("usage: chunkGrammar(source)")
	}

	g, err := grammar.Parse(args[0].String())
	if err != nil {
		return makeError("invalid grammar: " + err.Error())
	}
	parseCache.Invalidate()
	chk = cache.NewCachedChunker(cascade{g}, parseCache)

	return makeResult(map[string]interface{}{
		"success": true,
		"stages":  len(g.Stages),
	})
}

func clearCache(this js.Value, args []js.Value) interface{} {
	parseCache.Invalidate()
	return makeResult(map[string]interface{}{
		"success": true,
	})
}

func getStats(this js.Value, args []js.Value) interface{} {
	hits, misses := parseCache.Stats()
	return makeResult(map[string]interface{}{
		"sentences": sentences,
		"cached":    parseCache.Size(),
		"hits":      hits,
		"misses":    misses,
	})
}

func makeError(msg string) interface{} {
	result, _ := json.Marshal(map[string]interface{}{
		"error": msg,
	})
	return string(result)
}

func makeResult(data map[string]interface{}) interface{} {
	result, _ := json.Marshal(data)
	return string(result)
}
