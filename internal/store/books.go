package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/yuanying/epub-reader/internal/domain"
	"github.com/yuanying/epub-reader/internal/id"
)

// storedBook is the value kept under book:<key>.
type storedBook struct {
	domain.BookRecord
	Seq uint64 `json:"seq"`
}

func orderKey(seq uint64) string {
	return fmt.Sprintf("%s%020d", orderIndex, seq)
}

// GetAll returns every book in insertion order. File bytes are not
// loaded.
func (s *Store) GetAll(ctx context.Context) ([]domain.Item, error) {
	var items []domain.Item
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(orderIndex)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var sb storedBook
			if err := getJSON(txn, bookPrefix+string(key), &sb); err != nil {
				return fmt.Errorf("failed to read book %s: %w", key, err)
			}
			items = append(items, domain.Item{Key: string(key), Value: sb.BookRecord})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Get returns the book stored under key, file bytes included.
func (s *Store) Get(ctx context.Context, key string) (*domain.BookRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rec domain.BookRecord
	err := s.db.View(func(txn *badger.Txn) error {
		var sb storedBook
		if err := getJSON(txn, bookPrefix+key, &sb); err != nil {
			return err
		}
		rec = sb.BookRecord

		item, err := txn.Get([]byte(filePrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		rec.File, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get book %s: %w", key, err)
	}
	return &rec, nil
}

// Add stores a new book and returns its key. Titles are unique.
func (s *Store) Add(ctx context.Context, rec domain.BookRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key, err := id.Generate("book")
	if err != nil {
		return "", err
	}
	seq, err := s.seq.Next()
	if err != nil {
		return "", fmt.Errorf("failed to allocate book sequence: %w", err)
	}
	if rec.AddedAt == 0 {
		rec.AddedAt = domain.NowMillis()
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(titleIndex + rec.Title))
		if err == nil {
			return ErrDuplicateBook
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if err := setJSON(txn, bookPrefix+key, storedBook{BookRecord: rec, Seq: seq}); err != nil {
			return err
		}
		if err := txn.Set([]byte(filePrefix+key), rec.File); err != nil {
			return err
		}
		if err := txn.Set([]byte(titleIndex+rec.Title), []byte(key)); err != nil {
			return err
		}
		if rec.Checksum != "" {
			if err := txn.Set([]byte(checksumIndex+rec.Checksum), []byte(key)); err != nil {
				return err
			}
		}
		return txn.Set([]byte(orderKey(seq)), []byte(key))
	})
	if errors.Is(err, ErrDuplicateBook) {
		return "", err
	}
	if err != nil {
		return "", fmt.Errorf("failed to add book: %w", err)
	}
	s.logger.Info("book added", "key", key, "title", rec.Title)
	return key, nil
}

// Remove deletes a book with its file and index entries.
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		var sb storedBook
		if err := getJSON(txn, bookPrefix+key, &sb); err != nil {
			return err
		}
		keys := []string{bookPrefix + key, filePrefix + key, orderKey(sb.Seq)}
		if owner, err := getString(txn, titleIndex+sb.Title); err == nil && owner == key {
			keys = append(keys, titleIndex+sb.Title)
		}
		if sb.Checksum != "" {
			keys = append(keys, checksumIndex+sb.Checksum)
		}
		for _, k := range keys {
			if err := txn.Delete([]byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrBookNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to remove book %s: %w", key, err)
	}
	s.logger.Info("book removed", "key", key)
	return nil
}

// UpdatePosition overwrites the reading state of key, stamping the update
// time. It returns the new timestamp.
func (s *Store) UpdatePosition(ctx context.Context, key string, rec domain.BookRecord) (int64, error) {
	rec.UpdatedAt = domain.NowMillis()
	if err := s.Put(ctx, key, rec); err != nil {
		return 0, err
	}
	return rec.UpdatedAt, nil
}

// Put overwrites the record of an existing book as given, keeping its
// file, position in the collection and title index.
func (s *Store) Put(ctx context.Context, key string, rec domain.BookRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		var sb storedBook
		if err := getJSON(txn, bookPrefix+key, &sb); err != nil {
			return err
		}
		if rec.Title != sb.Title {
			if owner, err := getString(txn, titleIndex+rec.Title); err == nil && owner != key {
				return ErrDuplicateBook
			}
			if err := txn.Delete([]byte(titleIndex + sb.Title)); err != nil {
				return err
			}
			if err := txn.Set([]byte(titleIndex+rec.Title), []byte(key)); err != nil {
				return err
			}
		}
		if rec.Checksum == "" {
			rec.Checksum = sb.Checksum
		}
		if rec.Checksum != sb.Checksum {
			if sb.Checksum != "" {
				if err := txn.Delete([]byte(checksumIndex + sb.Checksum)); err != nil {
					return err
				}
			}
			if err := txn.Set([]byte(checksumIndex+rec.Checksum), []byte(key)); err != nil {
				return err
			}
		}
		if rec.AddedAt == 0 {
			rec.AddedAt = sb.AddedAt
		}
		return setJSON(txn, bookPrefix+key, storedBook{BookRecord: rec, Seq: sb.Seq})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrBookNotFound
	}
	if errors.Is(err, ErrDuplicateBook) {
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to update book %s: %w", key, err)
	}
	return nil
}

// HasChecksum reports whether an archive with checksum sum is stored.
func (s *Store) HasChecksum(ctx context.Context, sum string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(checksumIndex + sum))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
