package kv

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/cockroachdb/pebble"
)

// PebbleStore implements Store using PebbleDB.
type PebbleStore struct {
	db *pebble.DB
	n  notifier
}

func NewPebbleStore(dir string) (*PebbleStore, error) {
	d, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &PebbleStore{db: d}, nil
}

func (p *PebbleStore) Close() error { return p.db.Close() }

func (p *PebbleStore) Get(key string) (string, bool) {
	v, closer, err := p.db.Get([]byte(key))
	if err != nil {
		return "", false
	}
	defer closer.Close()
	return string(v), true
}

func (p *PebbleStore) Set(key, value string) error {
	if err := p.db.Set([]byte(key), []byte(value), pebble.Sync); err != nil {
		return fmt.Errorf("pebble set: %w", err)
	}
	p.n.publish(Event{Key: key})
	return nil
}

func (p *PebbleStore) Remove(key string) error {
	if err := p.db.Delete([]byte(key), pebble.Sync); err != nil {
		return fmt.Errorf("pebble delete: %w", err)
	}
	p.n.publish(Event{Key: key})
	return nil
}

func (p *PebbleStore) Range(fn func(key, value string) error) error {
	it, err := p.db.NewIter(nil)
	if err != nil {
		return fmt.Errorf("pebble iter: %w", err)
	}
	defer it.Close()
	for it.First(); it.Valid(); it.Next() {
		k := append([]byte(nil), it.Key()...)
		v := append([]byte(nil), it.Value()...)
		if err := fn(string(k), string(v)); err != nil {
			return err
		}
	}
	return nil
}

// LoadAll replaces the full contents with the provided snapshot.
func (p *PebbleStore) LoadAll(all map[string]string) {
	var toDelete [][]byte
	it, err := p.db.NewIter(nil)
	if err == nil {
		for it.First(); it.Valid(); it.Next() {
			toDelete = append(toDelete, append([]byte(nil), it.Key()...))
		}
		it.Close()
	}
	wb := p.db.NewBatch()
	for _, k := range toDelete {
		_ = wb.Delete(k, nil)
	}
	for k, v := range all {
		_ = wb.Set([]byte(k), []byte(v), nil)
	}
	if err := wb.Commit(pebble.Sync); err != nil {
		log.Printf("pebble: load snapshot commit: %v", err)
	}
	_ = wb.Close()
}

func (p *PebbleStore) Watch() (<-chan Event, func()) { return p.n.subscribe() }
