// Package cardstore is the persistence layer of a hierarchical Kanban board.
//
// Cards live in columns and form a tree through parent links. Siblings (cards
// sharing a column and a parent) carry a dense 0-based order. Cards own
// attachments, a hierarchical checklist and a set of global tags. Whole
// folder subtrees can be exported to and imported from zip archives.
//
// All writes that touch more than one row run in a single SQLite
// transaction. Errors always wrap one of [ErrNotFound], [ErrConflict],
// [ErrInvalidArgument], [ErrIO] or [ErrStorage].
package cardstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/calvinalkan/cardstore/pkg/fs"
)

const (
	dirPerms = 0o750

	// DefaultStorageDirName is the attachment directory created next to
	// the database when [Options.StorageDir] is empty.
	DefaultStorageDirName = "storage"
)

// Options configures [Open].
type Options struct {
	// DBPath is the SQLite database file. Required.
	DBPath string

	// StorageDir is the root of the attachment tree. Defaults to
	// "storage" next to DBPath.
	StorageDir string

	// ForeignKeys enables backend cascade enforcement. The store cleans
	// up owned rows explicitly, so behavior is identical either way.
	ForeignKeys bool

	// TempDir holds short-lived archive staging directories. Defaults to
	// the system temp directory.
	TempDir string

	// FS is used for every file operation. Defaults to [fs.NewReal].
	FS fs.FS

	// Logger receives warnings about degraded operations. Defaults to the
	// logrus standard logger.
	Logger logrus.FieldLogger

	// Now returns the current time. Defaults to [time.Now].
	Now func() time.Time
}

// Store is a handle to a card database and its attachment storage.
// It is safe for concurrent use; SQLite serializes writers.
type Store struct {
	db         *sql.DB
	storageDir string
	tempDir    string
	fs         fs.FS
	log        logrus.FieldLogger
	now        func() time.Time
}

// Open opens (creating if needed) the card database described by opts and
// brings its schema up to date.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if ctx == nil {
		return nil, wrap("open store", "", 0, errors.New("context is nil"))
	}

	if opts.DBPath == "" {
		return nil, wrap("open store", "", 0, invalid("database path is empty"))
	}

	s := &Store{
		storageDir: opts.StorageDir,
		tempDir:    opts.TempDir,
		fs:         opts.FS,
		log:        opts.Logger,
		now:        opts.Now,
	}

	dbPath := filepath.Clean(opts.DBPath)

	if s.storageDir == "" {
		s.storageDir = filepath.Join(filepath.Dir(dbPath), DefaultStorageDirName)
	}

	if s.fs == nil {
		s.fs = fs.NewReal()
	}

	if s.log == nil {
		s.log = logrus.StandardLogger()
	}

	if s.now == nil {
		s.now = time.Now
	}

	err := s.fs.MkdirAll(filepath.Dir(dbPath), dirPerms)
	if err != nil {
		return nil, wrap("open store", "", 0, fmt.Errorf("create database directory: %w", err))
	}

	db, err := openSQLite(ctx, dbPath, opts.ForeignKeys)
	if err != nil {
		return nil, wrap("open store", "", 0, err)
	}

	from, err := migrate(ctx, db)
	if err != nil {
		_ = db.Close()

		return nil, wrap("open store", "", 0, err)
	}

	if from != currentSchemaVersion {
		s.log.WithFields(logrus.Fields{
			"path": dbPath,
			"from": from,
			"to":   currentSchemaVersion,
		}).Info("cardstore: schema migrated")
	}

	s.db = db

	return s, nil
}

// Close releases the database handle opened by Open.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	err := s.db.Close()
	s.db = nil

	if err != nil {
		return wrap("close", "", 0, err)
	}

	return nil
}

// StorageDir returns the root directory of attachment payloads.
func (s *Store) StorageDir() string {
	return s.storageDir
}

// withTx runs fn inside one transaction. The transaction commits when fn
// returns nil and rolls back otherwise.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if s.db == nil {
		return ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	committed := false

	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	err = fn(tx)
	if err != nil {
		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	committed = true

	return nil
}

// reader returns the handle used for reads outside a transaction.
func (s *Store) reader() (querier, error) {
	if s.db == nil {
		return nil, ErrClosed
	}

	return s.db, nil
}

func (s *Store) timestamp() int64 {
	return s.now().UnixNano()
}

func fromTimestamp(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}
