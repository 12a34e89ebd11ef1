package verses

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// BadgerStore is a Store backed by a local badger database. Keys are
// "book/chapter/verse" with the book name lowercased; values are the raw
// verse text.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a badger-backed verse store at path.
func OpenBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open verse store at %q: %w", path, err)
	}
	return &BadgerStore{db: db}, nil
}

// Lookup implements Store.
func (s *BadgerStore) Lookup(ctx context.Context, book string, chapter, verse int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var text string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(verseKey(book, chapter, verse)))
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		text = string(val)
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("verse lookup %s %d:%d: %w", book, chapter, verse, err)
	}
	return text, nil
}

// Put stores verse text, used when loading translations into the store.
func (s *BadgerStore) Put(book string, chapter, verse int, text string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(verseKey(book, chapter, verse)), []byte(text))
	})
	if err != nil {
		return fmt.Errorf("verse put %s %d:%d: %w", book, chapter, verse, err)
	}
	return nil
}

// Close releases the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
