// Package firebasedb adapts a Firebase Realtime Database to core.TreeStore.
package firebasedb

import (
	"context"
	"encoding/json"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"github.com/pkg/errors"
	"google.golang.org/api/option"

	"github.com/trezcool/hazira/core"
	"github.com/trezcool/hazira/storage/database/watch"
)

type DB struct {
	client *db.Client
	hub    *watch.Hub

	ctx    context.Context
	cancel context.CancelFunc
}

var _ core.TreeStore = (*DB)(nil)

// Open connects to the configured database. Without a credentials file the
// application default credentials are used.
func Open(ctx context.Context, conf *core.Config, logger core.Logger) (*DB, error) {
	var opts []option.ClientOption
	if conf.Firebase.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(conf.Firebase.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{DatabaseURL: conf.Firebase.DatabaseURL}, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "initializing firebase app")
	}
	client, err := app.Database(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "initializing database client")
	}
	return New(client, conf.Store.PollInterval, logger), nil
}

// New wraps client. The admin SDK has no streaming listeners, so subscriptions
// are refreshed after local writes and on every poll interval.
func New(client *db.Client, pollInterval time.Duration, logger core.Logger) *DB {
	ctx, cancel := context.WithCancel(context.Background())
	s := &DB{client: client, ctx: ctx, cancel: cancel}
	s.hub = watch.NewHub(s.Get, logger)
	if pollInterval > 0 {
		go s.hub.Poll(ctx, pollInterval)
	}
	return s
}

func (s *DB) ref(path string) *db.Ref {
	return s.client.NewRef(path)
}

func (s *DB) Get(ctx context.Context, path string) (core.Snapshot, error) {
	var raw json.RawMessage
	if err := s.ref(path).Get(ctx, &raw); err != nil {
		return nil, errors.Wrapf(err, "reading %q", path)
	}
	return toSnapshot(raw), nil
}

func (s *DB) Set(ctx context.Context, path string, value interface{}) error {
	if value == nil {
		return s.Delete(ctx, path)
	}
	if err := s.ref(path).Set(ctx, value); err != nil {
		return errors.Wrapf(err, "writing %q", path)
	}
	s.hub.Notify(ctx, path)
	return nil
}

func (s *DB) Delete(ctx context.Context, path string) error {
	if err := s.ref(path).Delete(ctx); err != nil {
		return errors.Wrapf(err, "deleting %q", path)
	}
	s.hub.Notify(ctx, path)
	return nil
}

// NewKey asks the server for a push key. The child briefly holds an empty
// string until the caller writes the record.
func (s *DB) NewKey(ctx context.Context, path string) (string, error) {
	ref, err := s.ref(path).Push(ctx, nil)
	if err != nil {
		return "", errors.Wrapf(err, "pushing to %q", path)
	}
	return ref.Key, nil
}

func (s *DB) Transaction(ctx context.Context, path string, fn core.UpdateFunc) error {
	var aborted bool
	err := s.ref(path).Transaction(ctx, func(tn db.TransactionNode) (interface{}, error) {
		var raw json.RawMessage
		if err := tn.Unmarshal(&raw); err != nil {
			return nil, err
		}
		current := toSnapshot(raw)
		value, err := fn(current)
		if errors.Cause(err) == core.ErrAbortTransaction {
			aborted = true
			return current, nil // unchanged
		}
		aborted = false
		return value, err
	})
	if err != nil {
		return errors.Wrapf(err, "transaction on %q", path)
	}
	if !aborted {
		s.hub.Notify(ctx, path)
	}
	return nil
}

func (s *DB) Subscribe(ctx context.Context, path string, fn core.SnapshotFunc) (core.Subscription, error) {
	return s.hub.Subscribe(ctx, path, fn)
}

func (s *DB) Close() error {
	s.cancel()
	s.hub.Close()
	return nil
}

func toSnapshot(raw json.RawMessage) core.Snapshot {
	snap := core.Snapshot(raw)
	if !snap.Exists() {
		return nil
	}
	return snap
}
