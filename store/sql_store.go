// Copyright (c) 2017-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package store

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql" // Load MySQL Driver
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/mattermost/mattermost-server/v6/shared/mlog"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite" // Load SQLite Driver

	"github.com/mattermost/mattermost-issuesync/store/migrations"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

var allTables = []string{"ExportJobItems", "ExportJobSources", "ExportJobs", mutexTableName}

type SQLStore struct {
	dbx        *sqlx.DB
	driverName string
	exportJob  ExportJobStore
}

// NewSQLStore opens the database, brings its schema up to date and returns
// the store built on top of it.
func NewSQLStore(driverName, dataSource string) (*SQLStore, error) {
	db, err := Open(driverName, dataSource)
	if err != nil {
		return nil, err
	}

	mlog.Info("pinging db", mlog.String("driver", driverName))
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "could not ping db")
	}

	if err = Migrate(db, driverName, -1); err != nil {
		db.Close()
		return nil, err
	}

	sqlStore := &SQLStore{
		dbx:        sqlx.NewDb(db, driverName),
		driverName: driverName,
	}
	sqlStore.exportJob = NewSQLExportJobStore(sqlStore)
	return sqlStore, nil
}

// Open opens a connection pool for one of the supported drivers.
func Open(driverName, dataSource string) (*sql.DB, error) {
	switch driverName {
	case DriverMySQL, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driverName)
	}

	db, err := sql.Open(driverName, dataSource)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open db connection")
	}
	if driverName != DriverSQLite {
		return db, nil
	}

	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "setting pragma %q", p)
		}
	}
	return db, nil
}

// Migrate runs the embedded migrations of driverName. A negative version
// migrates all the way up.
func Migrate(db *sql.DB, driverName string, version int) error {
	var (
		dbDriver database.Driver
		err      error
	)
	switch driverName {
	case DriverMySQL:
		dbDriver, err = mysql.WithInstance(db, &mysql.Config{})
	case DriverSQLite:
		dbDriver, err = sqlite.WithInstance(db, &sqlite.Config{})
	default:
		return fmt.Errorf("unsupported database driver %q", driverName)
	}
	if err != nil {
		return errors.Wrap(err, "failed to create migration driver")
	}

	srcDriver, err := iofs.New(migrations.FS, driverName)
	if err != nil {
		return errors.Wrap(err, "failed to create source instance")
	}

	m, err := migrate.NewWithInstance("iofs", srcDriver, driverName, dbDriver)
	if err != nil {
		return errors.Wrap(err, "failed to create db instance")
	}

	if version < 0 {
		err = m.Up()
	} else {
		err = m.Migrate(uint(version))
	}
	// A missing file means the database is ahead of this binary, which
	// happens after a rollback without down migrations.
	if err != nil && err != migrate.ErrNoChange && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "failed to migrate DB")
	}
	return nil
}

func (ss *SQLStore) Close() {
	mlog.Info("closing db")
	if err := ss.dbx.Close(); err != nil {
		mlog.Warn("failed to close db", mlog.Err(err))
	}
}

func (ss *SQLStore) ExportJob() ExportJobStore {
	return ss.exportJob
}

func (ss *SQLStore) NewMutex(key string) (Locker, error) {
	return NewMutex(key, ss.dbx.DB)
}

func (ss *SQLStore) DropAllTables() {
	for _, table := range allTables {
		if _, err := ss.dbx.Exec("DELETE FROM " + table); err != nil {
			mlog.Error("failed to clear table", mlog.String("table", table), mlog.Err(err))
		}
	}
}

func (ss *SQLStore) finalizeTx(tx *sqlx.Tx) {
	if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
		mlog.Debug("failed to rollback transaction", mlog.Err(err))
	}
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano() / int64(time.Millisecond)
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.Unix(0, ms*int64(time.Millisecond)).UTC()
}
