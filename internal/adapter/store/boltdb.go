package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"
)

var (
	bucketMeta        = []byte("meta")
	bucketAttributes  = []byte("attributes")
	bucketTransitions = []byte("transitions")
	keyInfo           = []byte("model_info")
	keyLabels         = []byte("labels")
)

// ErrNoModel is returned when the artifact holds no trained model.
var ErrNoModel = errors.New("no model in store")

// ModelInfo describes one training run.
type ModelInfo struct {
	RunID       string    `msgpack:"run_id"`
	CreatedAt   time.Time `msgpack:"created_at"`
	Labels      []string  `msgpack:"labels"`
	C1          float64   `msgpack:"c1"`
	C2          float64   `msgpack:"c2"`
	Iterations  int       `msgpack:"iterations"`
	Fingerprint string    `msgpack:"fingerprint,omitempty"`
}

// Model is a weight snapshot of a linear-chain model.
//
// State maps an attribute to its weights over Labels. Trans has len(Labels)+1
// rows of len(Labels) weights; row i is the previous label i and the last row
// is the sentence start.
type Model struct {
	Info   ModelInfo
	Labels []string
	State  map[string][]float64
	Trans  [][]float64
}

type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketMeta, bucketAttributes, bucketTransitions} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// SaveModel replaces the stored model in one transaction, so a failed write
// leaves the previous model in place. All-zero weight rows are not written.
func (s *BoltStore) SaveModel(m *Model) error {
	if m.Info.RunID == "" {
		m.Info.RunID = uuid.NewString()
	}
	if m.Info.CreatedAt.IsZero() {
		m.Info.CreatedAt = time.Now().UTC()
	}
	m.Info.Labels = m.Labels

	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := clearModel(tx); err != nil {
			return err
		}
		meta := tx.Bucket(bucketMeta)
		if err := putValue(meta, keyInfo, m.Info); err != nil {
			return err
		}
		if err := putValue(meta, keyLabels, m.Labels); err != nil {
			return err
		}
		if err := putValue(meta, keySchemaVersion, CurrentSchemaVersion); err != nil {
			return err
		}

		attrs := tx.Bucket(bucketAttributes)
		for attr, row := range m.State {
			if isZero(row) {
				continue
			}
			if err := putValue(attrs, []byte(attr), row); err != nil {
				return fmt.Errorf("attribute %q: %w", attr, err)
			}
		}

		trans := tx.Bucket(bucketTransitions)
		for i, row := range m.Trans {
			if isZero(row) {
				continue
			}
			if err := putValue(trans, rowKey(i), row); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadModel reads the stored model. Pruned rows come back as zeros for
// transitions and as missing attributes.
func (s *BoltStore) LoadModel() (*Model, error) {
	m := &Model{State: make(map[string][]float64)}
	err := s.db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if meta.Get(keyLabels) == nil {
			return ErrNoModel
		}
		if err := getValue(meta, keyInfo, &m.Info); err != nil {
			return err
		}
		if err := getValue(meta, keyLabels, &m.Labels); err != nil {
			return err
		}
		n := len(m.Labels)

		err := tx.Bucket(bucketAttributes).ForEach(func(k, v []byte) error {
			var row []float64
			if err := msgpack.Unmarshal(v, &row); err != nil {
				return fmt.Errorf("attribute %q: %w", k, err)
			}
			if len(row) != n {
				return fmt.Errorf("attribute %q: %d weights for %d labels", k, len(row), n)
			}
			m.State[string(k)] = row
			return nil
		})
		if err != nil {
			return err
		}

		m.Trans = make([][]float64, n+1)
		for i := range m.Trans {
			m.Trans[i] = make([]float64, n)
		}
		return tx.Bucket(bucketTransitions).ForEach(func(k, v []byte) error {
			i := int(binary.BigEndian.Uint32(k))
			if i > n {
				return fmt.Errorf("transition row %d out of range", i)
			}
			var row []float64
			if err := msgpack.Unmarshal(v, &row); err != nil {
				return err
			}
			if len(row) != n {
				return fmt.Errorf("transition row %d: %d weights for %d labels", i, len(row), n)
			}
			m.Trans[i] = row
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ReadInfo returns the run metadata without loading weights.
func (s *BoltStore) ReadInfo() (*ModelInfo, error) {
	var info ModelInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if meta.Get(keyInfo) == nil {
			return ErrNoModel
		}
		return getValue(meta, keyInfo, &info)
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// SetFingerprint records the corpus fingerprint of the stored model.
func (s *BoltStore) SetFingerprint(fp string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if meta.Get(keyInfo) == nil {
			return ErrNoModel
		}
		var info ModelInfo
		if err := getValue(meta, keyInfo, &info); err != nil {
			return err
		}
		info.Fingerprint = fp
		return putValue(meta, keyInfo, info)
	})
}

func putValue(b *bbolt.Bucket, key []byte, v any) error {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put(key, data)
}

func getValue(b *bbolt.Bucket, key []byte, v any) error {
	data := b.Get(key)
	if data == nil {
		return fmt.Errorf("missing key %s", key)
	}
	return msgpack.Unmarshal(data, v)
}

func rowKey(i int) []byte {
	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key, uint32(i))
	return key
}

func isZero(row []float64) bool {
	for _, w := range row {
		if w != 0 {
			return false
		}
	}
	return true
}
