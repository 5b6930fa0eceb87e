// Package badgerstore implements the graft backend on embedded BadgerDB.
//
// Items are stored as JSON records; the four adjacency relations are
// key-only index entries maintained in the same transaction as the pointer
// writes. Badger's serializable transactions provide the snapshot reads and
// atomic multi-record commits the core assumes, so this backend is suitable
// both for embedded use and as the unit-test substrate (in-memory mode).
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/jacentio/graft/access"
	"github.com/jacentio/graft/store"
)

// Config holds configuration for the embedded backend.
type Config struct {
	// Path is the directory for database files. Ignored when InMemory.
	Path string

	// InMemory enables in-memory mode (no disk persistence). Useful for
	// testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives badger's internal logging. Nil disables it.
	Logger *slog.Logger
}

// DefaultConfig returns durable defaults for persistent use.
func DefaultConfig(path string) Config {
	return Config{
		Path:       path,
		SyncWrites: true,
	}
}

// InMemoryConfig returns configuration for tests: in-memory, no sync.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is a store.Backend and access.GrantStore over one badger database.
type Store struct {
	db *badger.DB
}

var (
	_ store.Backend     = (*Store)(nil)
	_ access.GrantStore = (*Store)(nil)
)

// Open creates and opens the backend with the given configuration.
func Open(cfg Config) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("badgerstore: path is required for persistent database")
		}
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetItem returns the item with the given id.
func (s *Store) GetItem(ctx context.Context, id string) (*store.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out *store.Item
	err := s.db.View(func(txn *badger.Txn) error {
		it, err := getItem(txn, id)
		out = it
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// NativeDescendants returns all items whose Ascendant is id.
func (s *Store) NativeDescendants(ctx context.Context, id string) ([]*store.Item, error) {
	return s.itemsByLink(ctx, kindAsc, id)
}

// MountingStems returns all items whose DescendantHead is id.
func (s *Store) MountingStems(ctx context.Context, id string) ([]*store.Item, error) {
	return s.itemsByLink(ctx, kindHead, id)
}

// PeerPredecessors returns all items whose PeerNext is id.
func (s *Store) PeerPredecessors(ctx context.Context, id string) ([]*store.Item, error) {
	return s.itemsByLink(ctx, kindPeer, id)
}

// ItemsByContent returns all items referencing the given content.
func (s *Store) ItemsByContent(ctx context.Context, contentRef string) ([]*store.Item, error) {
	return s.itemsByLink(ctx, kindContent, contentRef)
}

func (s *Store) itemsByLink(ctx context.Context, kind byte, target string) ([]*store.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*store.Item
	err := s.db.View(func(txn *badger.Txn) error {
		items, err := itemsByLink(txn, kind, target)
		out = items
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// View runs fn against one read snapshot.
func (s *Store) View(ctx context.Context, fn func(r store.ItemReader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		return fn(&txnReader{txn: txn})
	})
}

// Apply applies the batch in one read-write transaction. A serialization
// conflict surfaces as ErrConcurrentModification.
func (s *Store) Apply(ctx context.Context, tx *store.Tx) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		now := nowISO()
		for _, op := range tx.Ops {
			switch {
			case op.Put != nil:
				if err := applyPut(txn, op.Put, now); err != nil {
					return err
				}
			case op.Update != nil:
				if err := applyUpdate(txn, op.Update, now); err != nil {
					return err
				}
			case op.Delete != nil:
				if err := applyDelete(txn, op.Delete.ID); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if errors.Is(err, badger.ErrConflict) {
		return store.ErrConcurrentModification
	}
	return err
}

// PutGrant creates or replaces a grant record.
func (s *Store) PutGrant(ctx context.Context, contentRef, userID string, level access.Level) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(grantKey(contentRef, userID), []byte(level.String()))
	})
}

// GetGrant returns the grant level for the pair, if any.
func (s *Store) GetGrant(ctx context.Context, contentRef, userID string) (access.Level, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(grantKey(contentRef, userID))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	level, err := access.ParseLevel(string(raw))
	if err != nil {
		return 0, false, err
	}
	return level, true, nil
}

// RevokeGrant removes the grant record. Absent grants are a no-op.
func (s *Store) RevokeGrant(ctx context.Context, contentRef, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(grantKey(contentRef, userID))
	})
}

// txnReader exposes one badger transaction as a store.ItemReader, giving
// walkers a real snapshot.
type txnReader struct {
	txn *badger.Txn
}

func (r *txnReader) GetItem(ctx context.Context, id string) (*store.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return getItem(r.txn, id)
}

func (r *txnReader) NativeDescendants(ctx context.Context, id string) ([]*store.Item, error) {
	return itemsByLink(r.txn, kindAsc, id)
}

func (r *txnReader) MountingStems(ctx context.Context, id string) ([]*store.Item, error) {
	return itemsByLink(r.txn, kindHead, id)
}

func (r *txnReader) PeerPredecessors(ctx context.Context, id string) ([]*store.Item, error) {
	return itemsByLink(r.txn, kindPeer, id)
}

func (r *txnReader) ItemsByContent(ctx context.Context, contentRef string) ([]*store.Item, error) {
	return itemsByLink(r.txn, kindContent, contentRef)
}
