package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"chunk/config"
	"chunk/internal/adapter/chunker"
	"chunk/internal/adapter/corpus"
	"chunk/internal/adapter/eval"
	"chunk/internal/domain"
	"chunk/internal/port"
	"chunk/internal/usecase"
)

func main() {
	dir := flag.String("dir", ".", "Directory holding .chunker/ and the config")
	gold := flag.String("gold", "", "Gold chunk file (word POS IOB per line)")
	rounds := flag.Int("n", 5, "Parse rounds for timing")
	flag.Parse()

	if *gold == "" {
		fmt.Println("Usage: go run cmd/benchmark/main.go -dir . -gold corpus/test.conll")
		fmt.Println("\nCompares:")
		fmt.Println("  1. Chunk F1 of the trained model and the rule cascade")
		fmt.Println("  2. Per-label scores")
		fmt.Println("  3. Parse throughput (sentences and tokens per second)")
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	trees, err := corpus.ReadCoNLLFile(*gold)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading gold file: %v\n", err)
		os.Exit(1)
	}
	if len(trees) == 0 {
		fmt.Fprintln(os.Stderr, "Gold file has no sentences")
		os.Exit(1)
	}

	var chunkers []namedChunker
	if model, err := chunker.Open(cfg.ModelPath(*dir)); err == nil {
		chunkers = append(chunkers, namedChunker{"crf", model})
	} else {
		fmt.Printf("Trained model not available (%v); benchmarking rules only\n\n", err)
	}

	chunkers = append(chunkers, namedChunker{"rules", chunker.NewRuleBased()})

	tokens := 0
	for _, t := range trees {
		tokens += len(t.Leaves())
	}

	fmt.Println("CHUNKER BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Gold sentences: %d\n", len(trees))
	fmt.Printf("Gold tokens:    %d\n", tokens)
	fmt.Println()

	for _, ch := range chunkers {
		result, err := usecase.NewEvaluateUseCase(ch.c).Evaluate(trees)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", ch.name, err)
			continue
		}
		elapsed, err := timeParse(ch.c, trees, *rounds)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", ch.name, err)
			continue
		}
		report(ch.name, result, elapsed, len(trees)*(*rounds), tokens*(*rounds))
	}
}

type namedChunker struct {
	name string
	c    port.Chunker
}

func timeParse(c port.Chunker, trees []domain.Tree, rounds int) (time.Duration, error) {
	start := time.Now()
	for r := 0; r < rounds; r++ {
		for _, t := range trees {
			if _, err := c.Parse(t.Leaves()); err != nil {
				return 0, err
			}
		}
	}
	return time.Since(start), nil
}

func report(name string, r *eval.Result, elapsed time.Duration, sentences, tokens int) {
	fmt.Printf("%s\n", strings.ToUpper(name))
	fmt.Println(strings.Repeat("-", 70))
	for _, label := range r.Labels() {
		c := r.PerLabel[label]
		fmt.Printf("  %-8s P %.3f  R %.3f  F1 %.3f\n", label, c.Precision(), c.Recall(), c.F1())
	}
	fmt.Printf("  %-8s P %.3f  R %.3f  F1 %.3f\n", "all", r.Precision(), r.Recall(), r.F1())
	fmt.Printf("  Tag accuracy:    %.3f\n", r.TagAccuracy())
	fmt.Printf("  Exact sentences: %d/%d\n", r.ExactSentences, r.Sentences)

	secs := elapsed.Seconds()
	if secs > 0 {
		fmt.Printf("  Throughput:      %.0f sentences/s, %.0f tokens/s\n", float64(sentences)/secs, float64(tokens)/secs)
	}

	switch f := r.F1(); {
	case f > 0.9:
		fmt.Println("  Status: GOOD")
	case f > 0.7:
		fmt.Println("  Status: OK")
	default:
		fmt.Println("  Status: POOR - check the tag set against the grammar or retrain")
	}
	fmt.Println()
}
