package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"chunk/config"
	"chunk/internal/adapter/chunker"
	"chunk/internal/adapter/corpus"
	"chunk/internal/adapter/crf"
	"chunk/internal/adapter/store"
	"chunk/internal/domain"
	"chunk/internal/port"
)

var ErrNoCorpus = errors.New("no corpus files found")

// TrainUseCase trains the statistical chunker from the chunk files under a
// directory.
type TrainUseCase struct {
	cfg       *config.Config
	walker    port.FileWalker
	modelPath string
	logger    *zap.Logger
}

func NewTrainUseCase(cfg *config.Config, walker port.FileWalker, modelPath string, logger *zap.Logger) *TrainUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrainUseCase{
		cfg:       cfg,
		walker:    walker,
		modelPath: modelPath,
		logger:    logger,
	}
}

// TrainResult contains the results of a training run.
type TrainResult struct {
	Files       int
	Sentences   int
	Tokens      int
	Labels      []string
	Skipped     bool
	Reason      string
	Duration    time.Duration
	Fingerprint string
}

// Train reads every corpus file under root and trains a model at the use
// case's model path. An existing model whose corpus fingerprint and training
// config match is kept unless force is set.
func (u *TrainUseCase) Train(root string, force bool, progress port.ProgressFunc) (*TrainResult, error) {
	start := time.Now()

	files, err := u.walker.Walk(root)
	if err != nil {
		return nil, fmt.Errorf("failed to walk corpus: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w under %s", ErrNoCorpus, root)
	}

	result := &TrainResult{
		Files:       len(files),
		Fingerprint: fingerprint(u.cfg, files),
	}

	if !force {
		fresh, reason, err := u.upToDate(result.Fingerprint)
		if err != nil {
			return nil, err
		}
		if fresh {
			result.Skipped = true
			result.Reason = "model is up to date"
			result.Duration = time.Since(start)
			return result, nil
		}
		result.Reason = reason
	} else {
		result.Reason = "forced"
	}

	var trees []domain.Tree
	for _, f := range files {
		fileTrees, err := corpus.ReadCoNLLFile(f.Path)
		if err != nil {
			return nil, err
		}
		u.logger.Debug("read corpus file",
			zap.String("file", f.RelPath),
			zap.Int("sentences", len(fileTrees)),
		)
		trees = append(trees, fileTrees...)
	}
	for _, tree := range trees {
		result.Tokens += len(tree.Leaves())
	}
	result.Sentences = len(trees)

	tagger := crf.New(
		crf.WithLogger(u.logger),
		crf.WithLearningRate(u.cfg.Train.LearningRate),
		crf.WithSeed(u.cfg.Train.Seed),
	)
	chk := chunker.New(tagger, chunker.WithLogger(u.logger))

	params := chunker.DefaultTrainParams()
	params.C1 = u.cfg.Train.C1
	params.C2 = u.cfg.Train.C2
	params.MaxIterations = u.cfg.Train.MaxIterations
	params.Verbose = u.cfg.Train.Verbose
	params.ReportDuration = u.cfg.Train.ReportDuration
	params.OutputPath = u.modelPath
	params.Progress = progress

	if err := os.MkdirAll(filepath.Dir(u.modelPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create model directory: %w", err)
	}
	if err := chk.Train(trees, params); err != nil {
		return nil, err
	}
	if err := u.stamp(result.Fingerprint); err != nil {
		return nil, err
	}

	result.Labels = tagger.Labels()
	result.Duration = time.Since(start)
	return result, nil
}

// upToDate reports whether the stored model was trained on the same corpus
// with the same config. When it was not, reason says why.
func (u *TrainUseCase) upToDate(fp string) (bool, string, error) {
	if _, err := os.Stat(u.modelPath); os.IsNotExist(err) {
		return false, "no model found", nil
	}

	st, err := store.NewBoltStore(u.modelPath)
	if err != nil {
		return false, "", fmt.Errorf("failed to open model: %w", err)
	}
	defer st.Close()

	migration, err := st.CheckMigration(u.cfg)
	if err != nil {
		return false, "", err
	}
	if migration.NeedsRetrain {
		return false, migration.Reason, nil
	}

	info, err := st.ReadInfo()
	if errors.Is(err, store.ErrNoModel) {
		return false, "no model found", nil
	}
	if err != nil {
		return false, "", err
	}
	if info.Fingerprint != fp {
		return false, "corpus changed", nil
	}
	if migration.NeedsMigration {
		if err := st.Migrate(u.cfg); err != nil {
			return false, "", fmt.Errorf("migration failed: %w", err)
		}
	}
	return true, "", nil
}

// stamp records schema info and the corpus fingerprint on a fresh model.
func (u *TrainUseCase) stamp(fp string) error {
	st, err := store.NewBoltStore(u.modelPath)
	if err != nil {
		return fmt.Errorf("failed to open model: %w", err)
	}
	defer st.Close()

	if err := st.Migrate(u.cfg); err != nil {
		return fmt.Errorf("failed to update schema info: %w", err)
	}
	return st.SetFingerprint(fp)
}

// fingerprint hashes the training config together with the name, size and
// modification time of every corpus file.
func fingerprint(cfg *config.Config, files []port.FileInfo) string {
	h := sha256.New()
	fmt.Fprintln(h, store.ComputeConfigHash(cfg))
	for _, f := range files {
		fmt.Fprintf(h, "%s\t%d\t%d\n", f.RelPath, f.Size, f.ModTime)
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}
