// Package store persists the book collection and the reader settings in
// Badger.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/yuanying/epub-reader/internal/logger"
)

var (
	ErrBookNotFound  = errors.New("store: book not found")
	ErrDuplicateBook = errors.New("store: a book with this title already exists")
)

const (
	bookPrefix    = "book:"
	filePrefix    = "file:"
	titleIndex    = "idx:books:title:"
	orderIndex    = "idx:books:order:"
	checksumIndex = "idx:books:checksum:"
	settingsKey   = "settings"
	sequenceKey   = "seq:books"
	sequenceLease = 100
)

// Store wraps a Badger database.
type Store struct {
	db     *badger.DB
	seq    *badger.Sequence
	logger *slog.Logger
}

// Open opens or creates the database in path.
func Open(path string, l *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	return open(opts, logger.OrDiscard(l).With("path", path))
}

// OpenInMemory opens a database that lives only as long as the process.
func OpenInMemory(l *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts, logger.OrDiscard(l))
}

func open(opts badger.Options, l *slog.Logger) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	seq, err := db.GetSequence([]byte(sequenceKey), sequenceLease)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open book sequence: %w", err)
	}
	l.Debug("badger database opened")
	return &Store{db: db, seq: seq, logger: l}, nil
}

// Close releases the sequence lease and closes the database.
func (s *Store) Close() error {
	if err := s.seq.Release(); err != nil {
		s.logger.Warn("failed to release book sequence", "error", err)
	}
	return s.db.Close()
}

func getJSON(txn *badger.Txn, key string, dest any) error {
	item, err := txn.Get([]byte(key))
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, dest)
	})
}

func setJSON(txn *badger.Txn, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return txn.Set([]byte(key), data)
}

func getString(txn *badger.Txn, key string) (string, error) {
	item, err := txn.Get([]byte(key))
	if err != nil {
		return "", err
	}
	v, err := item.ValueCopy(nil)
	return string(v), err
}
