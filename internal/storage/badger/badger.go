// Package badger stores session snapshots in an embedded BadgerDB.
package badger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/bodul/campus-crossword/internal/session"
)

const keyPrefix = "snapshot/"

// Config holds configuration for a snapshot database.
type Config struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in RAM; used by tests and the dev server.
	InMemory bool

	// SyncWrites fsyncs every write.
	SyncWrites bool

	// GCInterval is how often value log garbage collection runs.
	// Zero disables it.
	GCInterval time.Duration

	Logger *zap.Logger
}

// DefaultConfig returns production defaults for a database at path.
func DefaultConfig(path string) Config {
	return Config{
		Path:       path,
		SyncWrites: true,
		GCInterval: 10 * time.Minute,
	}
}

// InMemoryConfig returns a configuration without disk I/O.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// zapLogger adapts zap to badger's Logger interface.
type zapLogger struct {
	sugar *zap.SugaredLogger
}

func (l zapLogger) Errorf(format string, args ...interface{})   { l.sugar.Errorf(format, args...) }
func (l zapLogger) Warningf(format string, args ...interface{}) { l.sugar.Warnf(format, args...) }
func (l zapLogger) Infof(format string, args ...interface{})    { l.sugar.Debugf(format, args...) }
func (l zapLogger) Debugf(format string, args ...interface{})   { l.sugar.Debugf(format, args...) }

// Store is a session.Store backed by BadgerDB.
type Store struct {
	db     *badger.DB
	log    *zap.Logger
	stopGC chan struct{}
	gcDone chan struct{}
}

var _ session.Store = (*Store)(nil)

// Open opens or creates the database described by cfg.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(zapLogger{sugar: cfg.Logger.Named("badger").Sugar()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	s := &Store{db: db, log: cfg.Logger}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.stopGC = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.runGC(cfg.GCInterval)
	}
	return s, nil
}

// Load returns the snapshot stored under key, or session.ErrNoSnapshot.
func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, session.ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", key, err)
	}
	return data, nil
}

// Save replaces the snapshot stored under key.
func (s *Store) Save(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+key), data)
	})
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", key, err)
	}
	return nil
}

// Delete removes the snapshot stored under key. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + key))
	})
	if err != nil {
		return fmt.Errorf("delete snapshot %s: %w", key, err)
	}
	return nil
}

// Keys lists the slots that hold a snapshot.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			keys = append(keys, string(it.Item().Key()[len(keyPrefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return keys, nil
}

// Close stops garbage collection and closes the database.
func (s *Store) Close() error {
	if s.stopGC != nil {
		close(s.stopGC)
		<-s.gcDone
	}
	return s.db.Close()
}

func (s *Store) runGC(interval time.Duration) {
	defer close(s.gcDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			// ErrNoRewrite means there was nothing to collect.
			if err := s.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				s.log.Warn("badger value log GC error", zap.Error(err))
			}
		}
	}
}
