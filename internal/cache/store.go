// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The syncbox Authors

package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/syncbox/syncbox/internal/logger"
	"github.com/syncbox/syncbox/migrations"
	"github.com/syncbox/syncbox/models"
)

// databaseFile is the name of the sqlite file inside the cache directory.
const databaseFile = "syncbox.db"

// Store is the sqlite-backed Cache and Information implementation.
//
// All reads and writes run inside one pending transaction guarded by a
// single mutex, so a read always observes preceding writes from this
// process and Commit is a real durability point.
type Store struct {
	db     *sql.DB
	logger *logger.Logger
	now    func() time.Time

	mu sync.Mutex
	tx *sql.Tx
}

// Open opens (or creates) the cache database under dir and runs migrations.
// A database that fails to open or migrate is assumed corrupt: the file is
// destroyed and the open retried once. The second error is returned to the
// caller, which is expected to fall back to a no-op cache.
func Open(ctx context.Context, dir string, log *logger.Logger) (*Store, error) {
	path := filepath.Join(dir, databaseFile)

	store, err := open(ctx, path, log)
	if err == nil {
		return store, nil
	}
	log.Err(err).Str("func", "cache.Open").Str("path", path).Msg("cache database unusable, destroying and retrying")

	if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
		return nil, fmt.Errorf("remove corrupt cache database: %w", rmErr)
	}

	store, err = open(ctx, path, log)
	if err != nil {
		return nil, fmt.Errorf("reopen cache database: %w", err)
	}
	return store, nil
}

func open(ctx context.Context, path string, log *logger.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	if err := createLocalDBFileIfNotExists(path); err != nil {
		log.Err(err).Str("func", "cache.open").Msg("error creating database file")
		return nil, err
	}

	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		log.Err(err).Str("func", "cache.open").Msg("error connecting database")
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	if err = conn.PingContext(ctx); err != nil {
		log.Err(err).Str("func", "cache.open").Msg("error connecting database (ping)")
		conn.Close()
		return nil, fmt.Errorf("ping cache database: %w", err)
	}

	if err = migrations.Migrate(conn); err != nil {
		log.Err(err).Str("func", "cache.open").Msg("error migrating database")
		conn.Close()
		return nil, err
	}
	log.Debug().Str("func", "cache.open").Str("path", path).Msg("cache database ready")

	return NewStoreWithDB(conn, log), nil
}

func createLocalDBFileIfNotExists(dbFile string) error {
	if _, err := os.Stat(dbFile); os.IsNotExist(err) {
		f, err := os.Create(dbFile)
		if err != nil {
			return fmt.Errorf("error creating DB file: %w", err)
		}
		f.Close()
	}

	return nil
}

// NewStoreWithDB wraps an already opened database. Migrations are not run;
// the caller owns the schema. Used by Open and by tests.
func NewStoreWithDB(db *sql.DB, log *logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: log,
		now:    time.Now,
	}
}

// SetNow replaces the clock used for updated-at stamps. Test hook.
func (s *Store) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// pending returns the open transaction, starting one if needed.
// Callers must hold s.mu.
func (s *Store) pending(ctx context.Context) (*sql.Tx, error) {
	if s.tx != nil {
		return s.tx, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin cache transaction: %w", err)
	}
	s.tx = tx
	return tx, nil
}

func (s *Store) Put(ctx context.Context, collection string, doc models.Document, state models.TransmitState) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", doc.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.pending(ctx)
	if err != nil {
		return err
	}

	current, found, err := s.currentState(ctx, tx, doc.ID)
	if err != nil {
		return err
	}
	// A pending create stays a create until the server has seen it.
	if found && current == models.StateNeverTransmitted && state == models.StateUpdateNotTransmitted {
		state = models.StateNeverTransmitted
	}

	query, args, err := sq.Insert("documents").
		Columns("identity", "collection", "payload", "updated_at", "state").
		Values(doc.ID.Hex(), collection, payload, s.now().UnixMilli(), int64(state)).
		Suffix("ON CONFLICT (identity) DO UPDATE SET collection = excluded.collection, payload = excluded.payload, updated_at = excluded.updated_at, state = excluded.state").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert query: %w", err)
	}

	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		s.logger.Err(err).
			Str("func", "Store.Put").
			Str("collection", collection).
			Str("identity", doc.ID.Hex()).
			Msg("failed to upsert document")
		return fmt.Errorf("put document %s: %w", doc.ID, err)
	}

	return nil
}

// currentState reads the stored state of one identity inside tx.
func (s *Store) currentState(ctx context.Context, tx *sql.Tx, id models.Identity) (models.TransmitState, bool, error) {
	query, args, err := sq.Select("state").
		From("documents").
		Where(sq.Eq{"identity": id.Hex()}).
		ToSql()
	if err != nil {
		return 0, false, fmt.Errorf("build state query: %w", err)
	}

	var state int64
	err = tx.QueryRowContext(ctx, query, args...).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query document state: %w", err)
	}
	return models.TransmitState(state), true, nil
}

func (s *Store) GetByID(ctx context.Context, id models.Identity) (models.CachedDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.pending(ctx)
	if err != nil {
		return models.CachedDocument{}, err
	}

	query, args, err := sq.Select("identity", "collection", "payload", "updated_at", "state").
		From("documents").
		Where(sq.Eq{"identity": id.Hex()}).
		ToSql()
	if err != nil {
		return models.CachedDocument{}, fmt.Errorf("build get query: %w", err)
	}

	doc, err := scanDocument(tx.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return models.CachedDocument{}, ErrNotFound
	}
	if err != nil {
		s.logger.Err(err).
			Str("func", "Store.GetByID").
			Str("identity", id.Hex()).
			Msg("failed to read document")
		return models.CachedDocument{}, fmt.Errorf("get document %s: %w", id, err)
	}
	return doc, nil
}

func (s *Store) GetAll(ctx context.Context, collection string) ([]models.CachedDocument, error) {
	builder := sq.Select("identity", "collection", "payload", "updated_at", "state").
		From("documents").
		Where(sq.Eq{"collection": collection}).
		Where(sq.NotEq{"state": int64(models.StateDeleted)}).
		OrderBy("identity")

	return s.queryDocuments(ctx, "Store.GetAll", builder)
}

func (s *Store) GetAllIdentities(ctx context.Context, collection string) ([]models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.pending(ctx)
	if err != nil {
		return nil, err
	}

	query, args, err := sq.Select("identity").
		From("documents").
		Where(sq.Eq{"collection": collection}).
		Where(sq.NotEq{"state": int64(models.StateDeleted)}).
		OrderBy("identity").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build identities query: %w", err)
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Err(err).
			Str("func", "Store.GetAllIdentities").
			Str("collection", collection).
			Msg("failed to query identities")
		return nil, fmt.Errorf("query identities of %s: %w", collection, err)
	}
	defer rows.Close()

	var ids []models.Identity
	for rows.Next() {
		var hex string
		if err = rows.Scan(&hex); err != nil {
			return nil, fmt.Errorf("scan identity row: %w", err)
		}
		id, err := models.IdentityFromHex(hex)
		if err != nil {
			return nil, fmt.Errorf("stored identity: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identity rows: %w", err)
	}
	return ids, nil
}

func (s *Store) GetUntransmitted(ctx context.Context) ([]models.CachedDocument, error) {
	builder := sq.Select("identity", "collection", "payload", "updated_at", "state").
		From("documents").
		Where(sq.Lt{"state": int64(models.TransmittedFloor)}).
		OrderBy("updated_at")

	return s.queryDocuments(ctx, "Store.GetUntransmitted", builder)
}

func (s *Store) queryDocuments(ctx context.Context, fn string, builder sq.SelectBuilder) ([]models.CachedDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.pending(ctx)
	if err != nil {
		return nil, err
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select query: %w", err)
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Err(err).Str("func", fn).Msg("failed to query documents")
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []models.CachedDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		docs = append(docs, doc)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document rows: %w", err)
	}
	return docs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (models.CachedDocument, error) {
	var (
		doc   models.CachedDocument
		hex   string
		state int64
	)
	if err := row.Scan(&hex, &doc.Collection, &doc.Payload, &doc.UpdatedAt, &state); err != nil {
		return models.CachedDocument{}, err
	}
	id, err := models.IdentityFromHex(hex)
	if err != nil {
		return models.CachedDocument{}, fmt.Errorf("stored identity: %w", err)
	}
	doc.Identity = id
	doc.State = models.TransmitState(state)
	return doc, nil
}

func (s *Store) MarkDeleted(ctx context.Context, collection string, id models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.pending(ctx)
	if err != nil {
		return err
	}

	current, found, err := s.currentState(ctx, tx, id)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}

	// The server never saw this object, so nothing remains to acknowledge.
	if current == models.StateNeverTransmitted {
		return s.deleteLocked(ctx, tx, collection, id)
	}

	query, args, err := sq.Update("documents").
		Set("state", int64(models.StateDeleted)).
		Set("updated_at", s.now().UnixMilli()).
		Where(sq.Eq{"identity": id.Hex(), "collection": collection}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark-deleted query: %w", err)
	}

	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		s.logger.Err(err).
			Str("func", "Store.MarkDeleted").
			Str("collection", collection).
			Str("identity", id.Hex()).
			Msg("failed to mark document deleted")
		return fmt.Errorf("mark document %s deleted: %w", id, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection string, id models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.pending(ctx)
	if err != nil {
		return err
	}
	return s.deleteLocked(ctx, tx, collection, id)
}

func (s *Store) deleteLocked(ctx context.Context, tx *sql.Tx, collection string, id models.Identity) error {
	query, args, err := sq.Delete("documents").
		Where(sq.Eq{"identity": id.Hex(), "collection": collection}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete query: %w", err)
	}

	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		s.logger.Err(err).
			Str("func", "Store.Delete").
			Str("collection", collection).
			Str("identity", id.Hex()).
			Msg("failed to delete document")
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}

func (s *Store) PruneOlderThan(ctx context.Context, collection string, ts int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.pending(ctx)
	if err != nil {
		return 0, err
	}

	// Sentinel states are local work in flight and must survive a prune.
	query, args, err := sq.Delete("documents").
		Where(sq.Eq{"collection": collection}).
		Where(sq.Lt{"updated_at": ts}).
		Where(sq.GtOrEq{"state": int64(models.TransmittedFloor)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build prune query: %w", err)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		s.logger.Err(err).
			Str("func", "Store.PruneOlderThan").
			Str("collection", collection).
			Msg("failed to prune documents")
		return 0, fmt.Errorf("prune collection %s: %w", collection, err)
	}

	pruned, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune result: %w", err)
	}
	return pruned, nil
}

func (s *Store) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx == nil {
		return nil
	}
	err := s.tx.Commit()
	s.tx = nil
	if err != nil {
		s.logger.Err(err).Str("func", "Store.Commit").Msg("failed to commit cache transaction")
		return fmt.Errorf("commit cache transaction: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx != nil {
		// Uncommitted work is discarded on purpose; Commit is the only
		// durability point.
		_ = s.tx.Rollback()
		s.tx = nil
	}
	return s.db.Close()
}

func (s *Store) LastModified(ctx context.Context, collection string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.pending(ctx)
	if err != nil {
		return 0, err
	}

	query, args, err := sq.Select("last_modified").
		From("collection_info").
		Where(sq.Eq{"collection": collection}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build last-modified query: %w", err)
	}

	var ts int64
	err = tx.QueryRowContext(ctx, query, args...).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query last modified of %s: %w", collection, err)
	}
	return ts, nil
}

func (s *Store) SetLastModified(ctx context.Context, collection string, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.pending(ctx)
	if err != nil {
		return err
	}

	query, args, err := sq.Insert("collection_info").
		Columns("collection", "last_modified").
		Values(collection, ts).
		Suffix("ON CONFLICT (collection) DO UPDATE SET last_modified = excluded.last_modified").
		ToSql()
	if err != nil {
		return fmt.Errorf("build set-last-modified query: %w", err)
	}

	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		s.logger.Err(err).
			Str("func", "Store.SetLastModified").
			Str("collection", collection).
			Msg("failed to record last modified")
		return fmt.Errorf("set last modified of %s: %w", collection, err)
	}
	return nil
}

func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.pending(ctx)
	if err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM collection_info"); err != nil {
		return fmt.Errorf("clear collection info: %w", err)
	}
	return nil
}
