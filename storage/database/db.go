package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/trezcool/hazira/core"
	"github.com/trezcool/hazira/fs"
	firebasedb "github.com/trezcool/hazira/storage/database/firebase"
	inmemdb "github.com/trezcool/hazira/storage/database/inmem"
	sqlxdb "github.com/trezcool/hazira/storage/database/sqlx"
)

// OpenStore opens the tree store selected by conf.Store.Engine, creating and
// migrating SQL databases as needed.
func OpenStore(ctx context.Context, conf *core.Config, logger core.Logger) (core.TreeStore, error) {
	switch conf.Store.Engine {
	case core.EngineMemory:
		return inmemdb.NewDB(logger), nil

	case core.EngineFirebase:
		return firebasedb.Open(ctx, conf, logger)

	case core.EnginePostgres:
		if err := CreateIfNotExist(conf); err != nil {
			return nil, err
		}
		db, err := Open(conf)
		if err != nil {
			return nil, errors.Wrap(err, "opening database")
		}
		if err = ping(db); err != nil {
			return nil, err
		}
		if err = Migrate(db, core.EnginePostgres); err != nil {
			return nil, err
		}
		store := sqlxdb.New(sqlx.NewDb(db, "postgres"), logger)
		if err = store.Listen(dsn(conf.Database.Name, false, conf)); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil

	case core.EngineSqlite:
		db, err := OpenSqlite(conf)
		if err != nil {
			return nil, err
		}
		if err = Migrate(db, core.EngineSqlite); err != nil {
			return nil, err
		}
		store := sqlxdb.New(sqlx.NewDb(db, "sqlite3"), logger)
		store.Poll(conf.Store.PollInterval) // other processes may write the same file
		return store, nil
	}
	return nil, errors.Errorf("unknown store engine %q", conf.Store.Engine)
}

// OpenSqlDB opens the configured SQL database without migrating it.
func OpenSqlDB(conf *core.Config) (*sql.DB, string, error) {
	switch conf.Store.Engine {
	case core.EnginePostgres:
		db, err := Open(conf)
		return db, core.EnginePostgres, err
	case core.EngineSqlite:
		db, err := OpenSqlite(conf)
		return db, core.EngineSqlite, err
	}
	return nil, "", errors.Errorf("store engine %q is not a SQL database", conf.Store.Engine)
}

func OpenSqlite(conf *core.Config) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", conf.Database.Path)
	if err != nil {
		return nil, errors.Wrap(err, "opening sqlite database")
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func dsn(dbName string, admin bool, conf *core.Config) string {
	user := url.UserPassword(conf.Database.User, conf.Database.Password)
	if admin && conf.Database.AdminUser != "" {
		user = url.UserPassword(conf.Database.AdminUser, conf.Database.AdminPassword)
	}

	sslMode := "require"
	if conf.Database.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   "postgres",
		User:     user,
		Host:     conf.Database.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func open(dbName string, admin bool, conf *core.Config) (*sql.DB, error) {
	return sql.Open("postgres", dsn(dbName, admin, conf))
}

func Open(conf *core.Config) (*sql.DB, error) {
	return open(conf.Database.Name, false, conf)
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(db *sql.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

func createAppUser(db *sql.DB, conf *core.Config) error {
	if conf.Database.User == "" {
		return nil
	}

	// check if app user exists
	var exists bool
	rows, err := db.Query(fmt.Sprintf("SELECT true FROM pg_roles WHERE rolname='%s'", conf.Database.User))
	if err != nil {
		return errors.Wrap(err, "checking app user")
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		if err = rows.Scan(&exists); err != nil {
			return errors.Wrap(err, "checking app user")
		}
	}
	if err = rows.Err(); err != nil {
		return errors.Wrap(err, "checking app user")
	}

	// create app user if not exist
	if !exists {
		q := fmt.Sprintf("CREATE USER %s CREATEDB ENCRYPTED PASSWORD '%s'", conf.Database.User, conf.Database.Password)
		if _, err = db.Exec(q); err != nil {
			return errors.Wrap(err, "creating app user")
		}
	}
	return nil
}

func createDB(db *sql.DB, conf *core.Config) error {
	// check if DB exists
	var exists bool
	rows, err := db.Query(fmt.Sprintf("SELECT true FROM pg_database WHERE datname='%s'", conf.Database.Name))
	if err != nil {
		return errors.Wrap(err, "checking DB")
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		if err = rows.Scan(&exists); err != nil {
			return errors.Wrap(err, "checking DB")
		}
	}
	if err = rows.Err(); err != nil {
		return errors.Wrap(err, "checking DB")
	}

	// create DB if not exist
	if !exists {
		if _, err = db.Exec(fmt.Sprintf("CREATE DATABASE %s", conf.Database.Name)); err != nil {
			return errors.Wrap(err, "creating database")
		}
	}
	return nil
}

func CreateIfNotExist(conf *core.Config) error {
	// connect as admin
	db, err := open("postgres", true, conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}

	if err = ping(db); err != nil {
		return errors.Wrap(err, "pinging database")
	}

	if err = createAppUser(db, conf); err != nil {
		return errors.Wrap(err, "creating app user")
	}
	defer func() { _ = db.Close() }()

	// create DB as app user
	db, err = open("postgres", false, conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	if err = createDB(db, conf); err != nil {
		return errors.Wrap(err, "creating database")
	}
	defer func() { _ = db.Close() }()
	return nil
}

// SetUpGoose points goose at the embedded migrations for dialect.
func SetUpGoose(dialect string) error {
	goose.SetBaseFS(appfs.FS)
	if err := goose.SetDialect(dialect); err != nil {
		return errors.Wrap(err, "setting goose dialect")
	}
	return nil
}

func Migrate(db *sql.DB, dialect string) error {
	if err := SetUpGoose(dialect); err != nil {
		return err
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return errors.Wrap(err, "migrating database")
	}
	return nil
}
