package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"

	"chunk/config"
)

// CurrentSchemaVersion is the current artifact schema version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 2

var (
	keySchemaVersion = []byte("schema_version")
	keyConfigHash    = []byte("config_hash")

	// v1 kept the whole transition matrix in one meta value.
	keyLegacyTransitions = []byte("transitions")
)

// SchemaInfo stores schema version and configuration hash.
type SchemaInfo struct {
	Version    int    `json:"version"`
	ConfigHash string `json:"config_hash"`
}

// GetSchemaInfo retrieves the current schema info from the database.
func (s *BoltStore) GetSchemaInfo() (*SchemaInfo, error) {
	var info SchemaInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if b == nil {
			return nil
		}

		if versionData := b.Get(keySchemaVersion); versionData != nil {
			if err := msgpack.Unmarshal(versionData, &info.Version); err != nil {
				info.Version = 1
			}
		}

		if hashData := b.Get(keyConfigHash); hashData != nil {
			info.ConfigHash = string(hashData)
		}

		return nil
	})
	return &info, err
}

// SetSchemaInfo stores the schema info in the database.
func (s *BoltStore) SetSchemaInfo(info *SchemaInfo) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if err := putValue(b, keySchemaVersion, info.Version); err != nil {
			return err
		}
		return b.Put(keyConfigHash, []byte(info.ConfigHash))
	})
}

// ComputeConfigHash computes a hash of training-relevant configuration.
// Changes to this hash indicate the model should be retrained.
func ComputeConfigHash(cfg *config.Config) string {
	relevant := struct {
		C1            float64 `json:"c1"`
		C2            float64 `json:"c2"`
		MaxIterations int     `json:"max_iterations"`
		LearningRate  float64 `json:"learning_rate"`
		Seed          int64   `json:"seed"`
	}{
		C1:            cfg.Train.C1,
		C2:            cfg.Train.C2,
		MaxIterations: cfg.Train.MaxIterations,
		LearningRate:  cfg.Train.LearningRate,
		Seed:          cfg.Train.Seed,
	}

	data, _ := json.Marshal(relevant)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}

// MigrationResult describes the result of a migration check.
type MigrationResult struct {
	NeedsMigration bool
	NeedsRetrain   bool
	OldVersion     int
	NewVersion     int
	Reason         string
}

// CheckMigration checks if migration or retraining is needed.
func (s *BoltStore) CheckMigration(cfg *config.Config) (*MigrationResult, error) {
	info, err := s.GetSchemaInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to get schema info: %w", err)
	}

	result := &MigrationResult{
		OldVersion: info.Version,
		NewVersion: CurrentSchemaVersion,
	}

	switch {
	case info.Version == 0:
		result.NeedsMigration = true
		result.Reason = "initializing schema version"
	case info.Version < CurrentSchemaVersion:
		result.NeedsMigration = true
		result.Reason = fmt.Sprintf("schema upgrade from v%d to v%d", info.Version, CurrentSchemaVersion)
	case info.Version > CurrentSchemaVersion:
		result.NeedsRetrain = true
		result.Reason = fmt.Sprintf("model written by newer version (v%d > v%d)", info.Version, CurrentSchemaVersion)
		return result, nil
	}

	if info.ConfigHash != "" && info.ConfigHash != ComputeConfigHash(cfg) {
		result.NeedsRetrain = true
		result.Reason = "training configuration changed"
	}

	return result, nil
}

// Migrate performs any necessary schema migrations.
func (s *BoltStore) Migrate(cfg *config.Config) error {
	info, err := s.GetSchemaInfo()
	if err != nil {
		return err
	}
	if info.Version > CurrentSchemaVersion {
		return fmt.Errorf("cannot migrate schema v%d down to v%d", info.Version, CurrentSchemaVersion)
	}

	for v := info.Version; v < CurrentSchemaVersion; v++ {
		if err := s.runMigration(v, v+1); err != nil {
			return fmt.Errorf("migration from v%d to v%d failed: %w", v, v+1, err)
		}
	}

	return s.SetSchemaInfo(&SchemaInfo{
		Version:    CurrentSchemaVersion,
		ConfigHash: ComputeConfigHash(cfg),
	})
}

func (s *BoltStore) runMigration(from, to int) error {
	switch {
	case from == 1 && to == 2:
		// split the legacy transition matrix into per-row keys
		return s.db.Update(func(tx *bbolt.Tx) error {
			meta := tx.Bucket(bucketMeta)
			data := meta.Get(keyLegacyTransitions)
			if data == nil {
				return nil
			}
			var matrix [][]float64
			if err := msgpack.Unmarshal(data, &matrix); err != nil {
				return err
			}
			trans, err := tx.CreateBucketIfNotExists(bucketTransitions)
			if err != nil {
				return err
			}
			for i, row := range matrix {
				if isZero(row) {
					continue
				}
				if err := putValue(trans, rowKey(i), row); err != nil {
					return err
				}
			}
			return meta.Delete(keyLegacyTransitions)
		})
	default:
		return nil
	}
}

// Clear removes the model weights and metadata, keeping schema info.
func (s *BoltStore) Clear() error {
	return s.db.Update(clearModel)
}

func clearModel(tx *bbolt.Tx) error {
	for _, name := range [][]byte{bucketAttributes, bucketTransitions, bucketMeta} {
		b := tx.Bucket(name)
		if b == nil {
			continue
		}
		var keys [][]byte
		err := b.ForEach(func(k, _ []byte) error {
			if string(k) == string(keySchemaVersion) || string(k) == string(keyConfigHash) {
				return nil
			}
			keys = append(keys, append([]byte(nil), k...))
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
	}
	return nil
}

// NeedsRetrain checks if the stored model is stale for cfg.
func (s *BoltStore) NeedsRetrain(cfg *config.Config) (bool, string, error) {
	result, err := s.CheckMigration(cfg)
	if err != nil {
		return false, "", err
	}
	return result.NeedsRetrain, result.Reason, nil
}
