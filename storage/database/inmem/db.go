// Package inmemdb is a process-local TreeStore, used in development and tests.
package inmemdb

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"

	"github.com/trezcool/hazira/core"
	"github.com/trezcool/hazira/storage/database/jsontree"
	"github.com/trezcool/hazira/storage/database/watch"
)

type DB struct {
	mutex sync.RWMutex
	root  interface{}
	hub   *watch.Hub
}

var _ core.TreeStore = (*DB)(nil)

func NewDB(logger core.Logger) *DB {
	db := &DB{}
	db.hub = watch.NewHub(db.Get, logger)
	return db
}

func (db *DB) Get(_ context.Context, path string) (core.Snapshot, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	return jsontree.Encode(jsontree.Get(db.root, core.SplitPath(path)))
}

func (db *DB) Set(ctx context.Context, path string, value interface{}) error {
	val, err := jsontree.Normalize(value)
	if err != nil {
		return err
	}

	db.mutex.Lock()
	db.root = jsontree.Set(db.root, core.SplitPath(path), val)
	db.mutex.Unlock()

	db.hub.Notify(ctx, path)
	return nil
}

func (db *DB) Delete(ctx context.Context, path string) error {
	return db.Set(ctx, path, nil)
}

func (db *DB) NewKey(_ context.Context, _ string) (string, error) {
	return ulid.Make().String(), nil
}

func (db *DB) Transaction(ctx context.Context, path string, fn core.UpdateFunc) error {
	segs := core.SplitPath(path)

	db.mutex.Lock()
	current, err := jsontree.Encode(jsontree.Get(db.root, segs))
	if err != nil {
		db.mutex.Unlock()
		return err
	}
	value, err := fn(current)
	if err != nil {
		db.mutex.Unlock()
		if errors.Cause(err) == core.ErrAbortTransaction {
			return nil
		}
		return err
	}
	val, err := jsontree.Normalize(value)
	if err != nil {
		db.mutex.Unlock()
		return err
	}
	db.root = jsontree.Set(db.root, segs, val)
	db.mutex.Unlock()

	db.hub.Notify(ctx, path)
	return nil
}

func (db *DB) Subscribe(ctx context.Context, path string, fn core.SnapshotFunc) (core.Subscription, error) {
	return db.hub.Subscribe(ctx, path, fn)
}

func (db *DB) Close() error {
	db.hub.Close()
	return nil
}

// Reset drops all the data.
func (db *DB) Reset() {
	db.mutex.Lock()
	db.root = nil
	db.mutex.Unlock()
	db.hub.Refresh(context.Background())
}
