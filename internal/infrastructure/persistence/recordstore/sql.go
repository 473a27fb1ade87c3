package recordstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
	_ "github.com/tursodatabase/libsql-client-go/libsql"

	"github.com/homevault/homevault-go/internal/infrastructure/caching/query"
	"github.com/homevault/homevault-go/internal/infrastructure/caching/types"
	"github.com/homevault/homevault-go/internal/infrastructure/observability/logging"
	"github.com/homevault/homevault-go/pkg/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	owner      TEXT NOT NULL,
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	doc        TEXT NOT NULL,
	modified   INTEGER NOT NULL,
	PRIMARY KEY (owner, collection, id)
);
CREATE INDEX IF NOT EXISTS idx_records_modified ON records (owner, collection, modified);
`

// SQLStore keeps each record as a JSON document in a single table, local
// SQLite or remote libsql depending on configuration.
type SQLStore struct {
	conn     *sql.DB
	useTurso bool
	logger   *logging.ChanneledLogger
}

// NewSQLStore opens the store. A configured LibSQL URL selects the remote
// driver; otherwise a local SQLite file is created under the data directory.
func NewSQLStore(logger *logging.ChanneledLogger) (*SQLStore, error) {
	var conn *sql.DB
	var err error
	useTurso := false

	if config.LibSQLURL != "" && config.LibSQLToken != "" {
		connStr := config.LibSQLURL + "?authToken=" + config.LibSQLToken
		conn, err = sql.Open("libsql", connStr)
		if err != nil {
			return nil, fmt.Errorf("libsql connection failed: %w", err)
		}
		if err := conn.Ping(); err != nil {
			conn.Close()
			return nil, fmt.Errorf("libsql ping failed: %w", err)
		}
		useTurso = true
	} else {
		if err := os.MkdirAll(filepath.Dir(config.DBPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		conn, err = sql.Open("sqlite3", config.DBPath)
		if err != nil {
			return nil, fmt.Errorf("sqlite connection failed: %w", err)
		}
		if err := conn.Ping(); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite ping failed: %w", err)
		}
	}

	conn.SetMaxOpenConns(config.DBMaxOpenConns)
	conn.SetMaxIdleConns(config.DBMaxIdleConns)
	conn.SetConnMaxLifetime(time.Duration(config.DBConnMaxLifetimeMinutes) * time.Minute)
	conn.SetConnMaxIdleTime(time.Duration(config.DBConnMaxIdleMinutes) * time.Minute)

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply record store schema: %w", err)
	}

	store := &SQLStore{conn: conn, useTurso: useTurso, logger: logger}
	if logger != nil {
		logger.Store().Info("Record store opened",
			"driver", store.driverName(), "path", config.DBPath)
	}
	return store, nil
}

func (s *SQLStore) driverName() string {
	if s.useTurso {
		return "libsql"
	}
	return "sqlite3"
}

// Query loads the collection's documents and evaluates predicate and
// options in memory. Collections are personal-data sized; pushing the
// predicate into SQL would duplicate the matcher's semantics for no win.
func (s *SQLStore) Query(ctx context.Context, owner, coll string, predicate map[string]any, opts query.Options) ([]types.Record, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT doc FROM records WHERE owner = ? AND collection = ? ORDER BY modified DESC`,
		owner, coll)
	if err != nil {
		return nil, fmt.Errorf("query records %s:%s: %w", owner, coll, err)
	}
	defer rows.Close()

	var records []types.Record
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		var rec types.Record
		if err := json.Unmarshal([]byte(doc), &rec); err != nil {
			return nil, fmt.Errorf("decode record document: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	filtered, err := query.FilterRecords(records, predicate, opts)
	if err != nil {
		return nil, fmt.Errorf("filter records %s:%s: %w", owner, coll, err)
	}
	return filtered, nil
}

// Create inserts a record, assigning an ID and timestamps when absent
func (s *SQLStore) Create(ctx context.Context, owner, coll string, rec types.Record) (types.Record, error) {
	stored := rec.Clone()
	nowMs := float64(time.Now().UTC().UnixMilli())
	if stored.ID() == "" {
		stored[types.FieldID] = ulid.Make().String()
	}
	if _, present := stored[types.FieldCreated]; !present {
		stored[types.FieldCreated] = nowMs
	}
	stored[types.FieldModified] = nowMs

	doc, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("encode record document: %w", err)
	}
	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO records (owner, collection, id, doc, modified) VALUES (?, ?, ?, ?, ?)`,
		owner, coll, stored.ID(), string(doc), int64(stored.Modified()))
	if err != nil {
		return nil, fmt.Errorf("create record %s:%s:%s: %w", owner, coll, stored.ID(), err)
	}
	return stored, nil
}

// Update replaces a record's document and bumps its modification time
func (s *SQLStore) Update(ctx context.Context, owner, coll string, rec types.Record) (types.Record, error) {
	id := rec.ID()
	if id == "" {
		return nil, fmt.Errorf("update record in %s:%s: missing %s", owner, coll, types.FieldID)
	}
	stored := rec.Clone()
	stored[types.FieldModified] = float64(time.Now().UTC().UnixMilli())

	doc, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("encode record document: %w", err)
	}
	result, err := s.conn.ExecContext(ctx,
		`UPDATE records SET doc = ?, modified = ? WHERE owner = ? AND collection = ? AND id = ?`,
		string(doc), int64(stored.Modified()), owner, coll, id)
	if err != nil {
		return nil, fmt.Errorf("update record %s:%s:%s: %w", owner, coll, id, err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return nil, fmt.Errorf("update record %s:%s:%s: not found", owner, coll, id)
	}
	return stored, nil
}

// Delete removes a record by ID
func (s *SQLStore) Delete(ctx context.Context, owner, coll, id string) error {
	_, err := s.conn.ExecContext(ctx,
		`DELETE FROM records WHERE owner = ? AND collection = ? AND id = ?`,
		owner, coll, id)
	if err != nil {
		return fmt.Errorf("delete record %s:%s:%s: %w", owner, coll, id, err)
	}
	return nil
}

// Close releases the underlying connection pool
func (s *SQLStore) Close() error {
	return s.conn.Close()
}
