package audit

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/hupe1980/agentfloor/core"
	"github.com/hupe1980/agentfloor/internal/codec"
	"github.com/hupe1980/agentfloor/logging"
)

// BadgerConfig configures a BadgerStore.
type BadgerConfig struct {
	// Path is the directory for database files. Ignored when InMemory is set.
	Path string
	// InMemory keeps everything in RAM. Useful for tests.
	InMemory bool
	// SyncWrites fsyncs every commit.
	SyncWrites bool
	// Logger receives badger's internal log lines. Nil silences them.
	Logger logging.Logger
}

// BadgerStore is a durable AuditStore on an embedded badger database. Keys
// are session scoped and ordered by a store-wide sequence, so List returns
// records in append order.
type BadgerStore struct {
	db  *badger.DB
	seq *badger.Sequence
}

var seqKey = []byte("audit\x00seq")

// OpenBadger opens (or creates) a badger backed audit store.
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("audit: badger path is required for a persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create audit directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{l: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	seq, err := db.GetSequence(seqKey, 128)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open audit sequence: %w", err)
	}
	return &BadgerStore{db: db, seq: seq}, nil
}

func sessionPrefix(sessionID string) []byte {
	return []byte("audit\x00" + sessionID + "\x00")
}

// Append stores rec under the next sequence number.
func (s *BadgerStore) Append(ctx context.Context, rec core.AuditRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := s.seq.Next()
	if err != nil {
		return fmt.Errorf("next audit sequence: %w", err)
	}
	val, err := codec.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode audit record %s: %w", rec.ID, err)
	}
	key := binary.BigEndian.AppendUint64(sessionPrefix(rec.SessionID), n)
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	}); err != nil {
		return fmt.Errorf("store audit record %s: %w", rec.ID, err)
	}
	return nil
}

// List returns the session's records in append order.
func (s *BadgerStore) List(ctx context.Context, sessionID string) ([]core.AuditRecord, error) {
	prefix := sessionPrefix(sessionID)
	var out []core.AuditRecord
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, PrefetchSize: 64, Prefix: prefix})
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec core.AuditRecord
			if err := it.Item().Value(func(val []byte) error {
				return codec.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode audit record: %w", err)
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases the sequence and closes the database.
func (s *BadgerStore) Close() error {
	return errors.Join(s.seq.Release(), s.db.Close())
}

// badgerLogger adapts logging.Logger to badger's Logger interface.
type badgerLogger struct {
	l logging.Logger
}

func (b *badgerLogger) Errorf(format string, args ...any) {
	b.l.Error(fmt.Sprintf(format, args...), "component", "badger")
}

func (b *badgerLogger) Warningf(format string, args ...any) {
	b.l.Warn(fmt.Sprintf(format, args...), "component", "badger")
}

func (b *badgerLogger) Infof(format string, args ...any) {
	b.l.Debug(fmt.Sprintf(format, args...), "component", "badger")
}

func (b *badgerLogger) Debugf(format string, args ...any) {
	b.l.Debug(fmt.Sprintf(format, args...), "component", "badger")
}
