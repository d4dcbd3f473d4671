package kv

import (
	"fmt"
	"log"
	"path/filepath"

	badger "github.com/dgraph-io/badger/v4"
)

// BadgerStore implements Store using BadgerDB.
type BadgerStore struct {
	db *badger.DB
	n  notifier
}

func NewBadgerStore(dir string) (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions(filepath.Clean(dir)))
	if err != nil {
		return nil, fmt.Errorf("badger open: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (b *BadgerStore) Close() error { return b.db.Close() }

func (b *BadgerStore) Get(key string) (string, bool) {
	var val string
	err := b.db.View(func(txn *badger.Txn) error {
		item, e := txn.Get([]byte(key))
		if e != nil {
			return e
		}
		v, e := item.ValueCopy(nil)
		if e != nil {
			return e
		}
		val = string(v)
		return nil
	})
	if err != nil {
		return "", false
	}
	return val, true
}

func (b *BadgerStore) Set(key, value string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("badger set: %w", err)
	}
	b.n.publish(Event{Key: key})
	return nil
}

func (b *BadgerStore) Remove(key string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("badger delete: %w", err)
	}
	b.n.publish(Event{Key: key})
	return nil
}

func (b *BadgerStore) Range(fn func(key, value string) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			k := item.KeyCopy(nil)
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(string(k), string(v)); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadAll replaces the full contents with the provided snapshot.
func (b *BadgerStore) LoadAll(all map[string]string) {
	err := b.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		var toDelete [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			toDelete = append(toDelete, it.Item().KeyCopy(nil))
		}
		it.Close()
		for _, k := range toDelete {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		for k, v := range all {
			if err := txn.Set([]byte(k), []byte(v)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("badger: load snapshot: %v", err)
	}
}

func (b *BadgerStore) Watch() (<-chan Event, func()) { return b.n.subscribe() }
