package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// BadgerConfig configures a BadgerStore.
type BadgerConfig struct {
	// Path is the data directory. Ignored when InMemory is true.
	Path string
	// InMemory keeps everything in memory (tests, ephemeral servers).
	InMemory bool
	// GCInterval runs value-log GC periodically. Zero disables it.
	GCInterval time.Duration
}

// BadgerStore is a Store backed by BadgerDB. Entries carry a native TTL.
type BadgerStore struct {
	db     *badger.DB
	logger *zap.Logger

	stopGC    chan struct{}
	gcDone    chan struct{}
	closeOnce sync.Once
}

// zapBadgerLogger adapts zap to Badger's Logger interface.
type zapBadgerLogger struct {
	sugar *zap.SugaredLogger
}

func (l *zapBadgerLogger) Errorf(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

func (l *zapBadgerLogger) Warningf(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

func (l *zapBadgerLogger) Infof(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

func (l *zapBadgerLogger) Debugf(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// OpenBadger opens (or creates) a Badger-backed store.
func OpenBadger(cfg BadgerConfig, logger *zap.Logger) (*BadgerStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badger cache path is required unless in-memory")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithLogger(&zapBadgerLogger{sugar: logger.Named("badger").Sugar()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger cache: %w", err)
	}

	s := &BadgerStore{db: db, logger: logger}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.stopGC = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.runGC(cfg.GCInterval)
	}
	return s, nil
}

// Get returns the value stored under key. Expired entries are reported
// as absent.
func (s *BadgerStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return nil, false, nil
	case errors.Is(err, badger.ErrDBClosed):
		return nil, false, ErrClosed
	case err != nil:
		return nil, false, fmt.Errorf("cache get %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key with the given ttl.
func (s *BadgerStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if errors.Is(err, badger.ErrDBClosed) {
		return ErrClosed
	}
	if err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Close stops GC and closes the database. Safe to call more than once.
func (s *BadgerStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.stopGC != nil {
			close(s.stopGC)
			<-s.gcDone
		}
		err = s.db.Close()
	})
	return err
}

func (s *BadgerStore) runGC(interval time.Duration) {
	defer close(s.gcDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			err := s.db.RunValueLogGC(0.5)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				s.logger.Warn("badger value log GC failed", zap.Error(err))
			}
		}
	}
}
