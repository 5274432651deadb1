// Package history persists execution records in a bbolt database so runs
// can be listed and inspected after the process exits. Values of secret
// inputs are stored only as blake2b digests.
package history

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/copyleftdev/sigmos/internal/compiler/ast"
	"github.com/copyleftdev/sigmos/internal/runtime"
)

var executionsBucket = []byte("executions")

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("execution record not found")

// DigestPrefix marks a redacted secret value.
const DigestPrefix = "blake2b:"

// Record is one stored execution.
type Record struct {
	ID         string         `json:"id"`
	Spec       string         `json:"spec"`
	Version    string         `json:"version"`
	State      string         `json:"state"`
	Failure    string         `json:"failure,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Inputs     map[string]any `json:"inputs"`
	Computed   map[string]any `json:"computed"`
}

// Duration is the wall time of the execution.
func (r *Record) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// NewRecord builds a record from a runtime snapshot, replacing the values
// of secret inputs with their digests.
func NewRecord(spec *ast.Spec, snap runtime.Snapshot, started, finished time.Time) *Record {
	inputs := make(map[string]any, len(snap.Variables))
	for name, value := range snap.Variables {
		if field, ok := spec.Input(name); ok && field.HasModifier(ast.ModifierSecret) && value != nil {
			inputs[name] = Digest(value)
			continue
		}
		inputs[name] = value
	}

	return &Record{
		ID:         snap.ExecutionID,
		Spec:       spec.Name,
		Version:    spec.Version.String(),
		State:      snap.State.String(),
		Failure:    snap.Failure,
		StartedAt:  started.UTC(),
		FinishedAt: finished.UTC(),
		Inputs:     inputs,
		Computed:   snap.Computed,
	}
}

// Digest returns the blake2b-256 digest of the rendered value.
func Digest(value any) string {
	sum := blake2b.Sum256([]byte(runtime.Render(value)))
	return DigestPrefix + hex.EncodeToString(sum[:])
}

// Store is a bbolt-backed record store.
type Store struct {
	db     *bbolt.DB
	logger *zap.Logger
}

// Open opens or creates the database at path.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(executionsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history database: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores the record, replacing any record with the same id.
func (s *Store) Save(ctx context.Context, record *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if record.ID == "" {
		return errors.New("execution record has no id")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode execution record: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(executionsBucket).Put([]byte(record.ID), data)
	})
	if err != nil {
		return err
	}

	s.logger.Debug("execution recorded",
		zap.String("execution_id", record.ID),
		zap.String("spec", record.Spec),
		zap.String("state", record.State))
	return nil
}

// Get returns the record with the given id.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var record Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(executionsBucket).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return json.Unmarshal(data, &record)
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// List returns records newest first. An empty spec matches every record;
// limit <= 0 returns all.
func (s *Store) List(ctx context.Context, spec string, limit int) ([]*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records := make([]*Record, 0, 16)
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(executionsBucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var record Record
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("corrupt execution record %s: %w", k, err)
			}
			if spec != "" && record.Spec != spec {
				continue
			}
			records = append(records, &record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Delete removes a record.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(executionsBucket)
		if b.Get([]byte(id)) == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return b.Delete([]byte(id))
	})
}

// Prune keeps the newest keep records and deletes the rest, returning the
// number deleted.
func (s *Store) Prune(ctx context.Context, keep int) (int, error) {
	records, err := s.List(ctx, "", 0)
	if err != nil {
		return 0, err
	}
	if keep < 0 {
		keep = 0
	}
	if len(records) <= keep {
		return 0, nil
	}

	stale := records[keep:]
	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(executionsBucket)
		for _, record := range stale {
			if err := b.Delete([]byte(record.ID)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(stale), nil
}
