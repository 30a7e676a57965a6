// Package sqlxdb stores the tree in a SQL table, one JSON document per top-level key.
package sqlxdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"

	"github.com/trezcool/hazira/core"
	"github.com/trezcool/hazira/storage/database/jsontree"
	"github.com/trezcool/hazira/storage/database/watch"
)

// NotifyChannel is the postgres channel carrying changed paths.
const NotifyChannel = "tree_changes"

type (
	DB struct {
		db       *sqlx.DB
		hub      *watch.Hub
		logger   core.Logger
		listener *pq.Listener

		ctx    context.Context
		cancel context.CancelFunc
	}

	node struct {
		RootKey string `db:"root_key"`
		Value   string `db:"value"`
	}
)

var _ core.TreeStore = (*DB)(nil)

func New(db *sqlx.DB, logger core.Logger) *DB {
	ctx, cancel := context.WithCancel(context.Background())
	s := &DB{
		db:     db,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	s.hub = watch.NewHub(s.Get, logger)
	return s
}

func (s *DB) isPostgres() bool {
	return s.db.DriverName() == "postgres"
}

// Listen relays postgres NOTIFY events so that writes from other processes reach subscribers.
func (s *DB) Listen(dsn string) error {
	s.listener = pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			s.logger.Warn(fmt.Sprintf("listener event %d", ev), err)
		}
	})
	if err := s.listener.Listen(NotifyChannel); err != nil {
		return errors.Wrap(err, "listening to tree changes")
	}

	go func() {
		for {
			select {
			case <-s.ctx.Done():
				return
			case n := <-s.listener.Notify:
				if n == nil { // reconnected: events may have been missed
					s.hub.Refresh(s.ctx)
					continue
				}
				s.hub.Notify(s.ctx, n.Extra)
			}
		}
	}()
	return nil
}

// Poll refreshes every subscriber on each interval, for engines without notifications.
func (s *DB) Poll(interval time.Duration) {
	go s.hub.Poll(s.ctx, interval)
}

func (s *DB) load(ctx context.Context, q sqlx.QueryerContext, rootKey string) (interface{}, error) {
	var n node
	err := sqlx.GetContext(ctx, q, &n, s.db.Rebind("SELECT root_key, value FROM tree_nodes WHERE root_key = ?"), rootKey)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "loading %q", rootKey)
	}
	return jsontree.Decode([]byte(n.Value))
}

func (s *DB) loadAll(ctx context.Context, q sqlx.QueryerContext) (interface{}, error) {
	var nodes []node
	if err := sqlx.SelectContext(ctx, q, &nodes, "SELECT root_key, value FROM tree_nodes"); err != nil {
		return nil, errors.Wrap(err, "loading tree")
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	root := make(map[string]interface{}, len(nodes))
	for _, n := range nodes {
		val, err := jsontree.Decode([]byte(n.Value))
		if err != nil {
			return nil, err
		}
		if val != nil {
			root[n.RootKey] = val
		}
	}
	return root, nil
}

func (s *DB) Get(ctx context.Context, path string) (core.Snapshot, error) {
	segs := core.SplitPath(path)
	if len(segs) == 0 {
		root, err := s.loadAll(ctx, s.db)
		if err != nil {
			return nil, err
		}
		return jsontree.Encode(root)
	}

	doc, err := s.load(ctx, s.db, segs[0])
	if err != nil {
		return nil, err
	}
	return jsontree.Encode(jsontree.Get(doc, segs[1:]))
}

// lock serializes writers of the same top-level document for the duration of tx.
func (s *DB) lock(ctx context.Context, tx *sqlx.Tx, rootKey string) error {
	if !s.isPostgres() {
		return nil // sqlite runs on a single connection
	}
	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", rootKey); err != nil {
		return errors.Wrapf(err, "locking %q", rootKey)
	}
	return nil
}

func (s *DB) save(ctx context.Context, tx *sqlx.Tx, rootKey string, val interface{}) error {
	if val == nil {
		_, err := tx.ExecContext(ctx, s.db.Rebind("DELETE FROM tree_nodes WHERE root_key = ?"), rootKey)
		return errors.Wrapf(err, "deleting %q", rootKey)
	}

	snap, err := jsontree.Encode(val)
	if err != nil {
		return err
	}
	q := s.db.Rebind(`INSERT INTO tree_nodes (root_key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (root_key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)
	_, err = tx.ExecContext(ctx, q, rootKey, string(snap))
	return errors.Wrapf(err, "saving %q", rootKey)
}

func (s *DB) notify(ctx context.Context, tx *sqlx.Tx, path string) error {
	if !s.isPostgres() {
		return nil
	}
	_, err := tx.ExecContext(ctx, "SELECT pg_notify($1, $2)", NotifyChannel, path)
	return errors.Wrap(err, "notifying tree change")
}

// write replaces the value at segs inside tx.
func (s *DB) write(ctx context.Context, tx *sqlx.Tx, segs []string, val interface{}) error {
	if len(segs) == 0 {
		if _, err := tx.ExecContext(ctx, "DELETE FROM tree_nodes"); err != nil {
			return errors.Wrap(err, "clearing tree")
		}
		if val == nil {
			return nil
		}
		children, ok := val.(map[string]interface{})
		if !ok {
			return errors.New("tree root must be an object")
		}
		for key, child := range children {
			if err := s.save(ctx, tx, key, child); err != nil {
				return err
			}
		}
		return nil
	}

	if err := s.lock(ctx, tx, segs[0]); err != nil {
		return err
	}
	doc, err := s.load(ctx, tx, segs[0])
	if err != nil {
		return err
	}
	return s.save(ctx, tx, segs[0], jsontree.Set(doc, segs[1:], val))
}

// inTx runs fn in a transaction and notifies subscribers of path once committed.
func (s *DB) inTx(ctx context.Context, path string, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = s.notify(ctx, tx, path); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}

	s.hub.Notify(ctx, path)
	return nil
}

func (s *DB) Set(ctx context.Context, path string, value interface{}) error {
	val, err := jsontree.Normalize(value)
	if err != nil {
		return err
	}
	return s.inTx(ctx, path, func(tx *sqlx.Tx) error {
		return s.write(ctx, tx, core.SplitPath(path), val)
	})
}

func (s *DB) Delete(ctx context.Context, path string) error {
	return s.Set(ctx, path, nil)
}

func (s *DB) NewKey(_ context.Context, _ string) (string, error) {
	return ulid.Make().String(), nil
}

func (s *DB) Transaction(ctx context.Context, path string, fn core.UpdateFunc) error {
	segs := core.SplitPath(path)
	if len(segs) == 0 {
		return errors.New("transactions on the tree root are not supported")
	}

	err := s.inTx(ctx, path, func(tx *sqlx.Tx) error {
		if err := s.lock(ctx, tx, segs[0]); err != nil {
			return err
		}
		doc, err := s.load(ctx, tx, segs[0])
		if err != nil {
			return err
		}
		current, err := jsontree.Encode(jsontree.Get(doc, segs[1:]))
		if err != nil {
			return err
		}
		value, err := fn(current)
		if err != nil {
			return err
		}
		val, err := jsontree.Normalize(value)
		if err != nil {
			return err
		}
		return s.save(ctx, tx, segs[0], jsontree.Set(doc, segs[1:], val))
	})
	if errors.Cause(err) == core.ErrAbortTransaction {
		return nil
	}
	return err
}

func (s *DB) Subscribe(ctx context.Context, path string, fn core.SnapshotFunc) (core.Subscription, error) {
	return s.hub.Subscribe(ctx, path, fn)
}

func (s *DB) Close() error {
	s.cancel()
	s.hub.Close()
	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			return errors.Wrap(err, "closing listener")
		}
	}
	return s.db.Close()
}
