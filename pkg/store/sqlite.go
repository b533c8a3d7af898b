// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jllopis/flakewatch/pkg/errors"
	"github.com/jllopis/flakewatch/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists failures and clusters in a SQLite database. Records
// are kept as JSON documents next to the columns the queries filter on.
type SQLiteStore struct {
	db *sql.DB

	Now func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path and ensures the
// schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, sqliteErr("open database", err)
	}
	store, err := NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteStore wraps an existing database handle and ensures the schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New(errors.CodeStorage, "sqlite store: db is nil", nil)
	}
	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			timestamp INTEGER NOT NULL,
			failure_json BLOB NOT NULL
		);`, FailuresCollection),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_timestamp ON %s(timestamp);`,
			FailuresCollection, FailuresCollection),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			failure_count INTEGER NOT NULL,
			saved_at INTEGER NOT NULL,
			cluster_json BLOB NOT NULL
		);`, ClustersCollection),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_count ON %s(failure_count);`,
			ClustersCollection, ClustersCollection),
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return sqliteErr("ensure schema", err)
		}
	}
	return nil
}

func (s *SQLiteStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveFailures upserts failure records keyed by id.
func (s *SQLiteStore) SaveFailures(ctx context.Context, failures []model.TestFailure) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return sqliteErr("begin transaction", err)
	}
	defer tx.Rollback()

	stmt := fmt.Sprintf(`INSERT INTO %s (id, timestamp, failure_json) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET timestamp = excluded.timestamp, failure_json = excluded.failure_json`,
		FailuresCollection)
	for i := range failures {
		payload, err := json.Marshal(&failures[i])
		if err != nil {
			return sqliteErr("encode failure record", err)
		}
		if _, err := tx.ExecContext(ctx, stmt, failures[i].ID, failures[i].Timestamp.UnixMilli(), payload); err != nil {
			return sqliteErr("insert failure record", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return sqliteErr("commit failures", err)
	}
	return nil
}

// FetchFailures returns failures within the past days, oldest first.
func (s *SQLiteStore) FetchFailures(ctx context.Context, days int) ([]model.TestFailure, error) {
	cutoff := s.now().AddDate(0, 0, -days).UnixMilli()
	query := fmt.Sprintf(`SELECT failure_json FROM %s WHERE timestamp >= ? ORDER BY timestamp, id`,
		FailuresCollection)
	rows, err := s.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, sqliteErr("query failures", err)
	}
	defer rows.Close()

	var out []model.TestFailure
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, sqliteErr("scan failure row", err)
		}
		var f model.TestFailure
		if err := json.Unmarshal(payload, &f); err != nil {
			return nil, sqliteErr("decode failure record", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, sqliteErr("iterate failures", err)
	}
	return out, nil
}

// SaveClusters replaces the cluster keyspace with the ranked pass output.
func (s *SQLiteStore) SaveClusters(ctx context.Context, clusters []model.FailureCluster) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return sqliteErr("begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, ClustersCollection)); err != nil {
		return sqliteErr("clear clusters", err)
	}
	savedAt := s.now().UnixMilli()
	stmt := fmt.Sprintf(`INSERT INTO %s (id, failure_count, saved_at, cluster_json) VALUES (?, ?, ?, ?)`,
		ClustersCollection)
	for i := range clusters {
		payload, err := json.Marshal(&clusters[i])
		if err != nil {
			return sqliteErr("encode cluster", err)
		}
		if _, err := tx.ExecContext(ctx, stmt, clusters[i].ID, clusters[i].Metadata.FailureCount, savedAt, payload); err != nil {
			return sqliteErr("insert cluster", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return sqliteErr("commit clusters", err)
	}
	return nil
}

// FetchClusters returns persisted clusters, largest first.
func (s *SQLiteStore) FetchClusters(ctx context.Context, limit int) ([]model.FailureCluster, error) {
	query := fmt.Sprintf(`SELECT cluster_json FROM %s ORDER BY failure_count DESC, id`, ClustersCollection)
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, sqliteErr("query clusters", err)
	}
	defer rows.Close()

	var out []model.FailureCluster
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, sqliteErr("scan cluster row", err)
		}
		var c model.FailureCluster
		if err := json.Unmarshal(payload, &c); err != nil {
			return nil, sqliteErr("decode cluster", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, sqliteErr("iterate clusters", err)
	}
	return out, nil
}

func sqliteErr(op string, err error) error {
	return errors.New(errors.CodeStorage, fmt.Sprintf("sqlite store: %s", op), err)
}
