package usecase

import (
	"fmt"

	"chunk/internal/adapter/corpus"
	"chunk/internal/adapter/eval"
	"chunk/internal/domain"
	"chunk/internal/port"
)

// EvaluateUseCase scores a chunker against gold chunk trees.
type EvaluateUseCase struct {
	chunker port.Chunker
}

func NewEvaluateUseCase(chunker port.Chunker) *EvaluateUseCase {
	return &EvaluateUseCase{chunker: chunker}
}

// Evaluate re-chunks the leaves of every gold tree and scores the result.
func (u *EvaluateUseCase) Evaluate(gold []domain.Tree) (*eval.Result, error) {
	result := eval.NewResult()
	for i, tree := range gold {
		predicted, err := u.chunker.Parse(tree.Leaves())
		if err != nil {
			return nil, fmt.Errorf("sentence %d: %w", i+1, err)
		}
		if err := result.Add(tree, predicted); err != nil {
			return nil, fmt.Errorf("sentence %d: %w", i+1, err)
		}
	}
	return result, nil
}

// EvaluateFiles reads gold trees from chunk files and scores them together.
func (u *EvaluateUseCase) EvaluateFiles(files []port.FileInfo) (*eval.Result, error) {
	var gold []domain.Tree
	for _, f := range files {
		trees, err := corpus.ReadCoNLLFile(f.Path)
		if err != nil {
			return nil, err
		}
		gold = append(gold, trees...)
	}
	return u.Evaluate(gold)
}
