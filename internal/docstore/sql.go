package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mind-engage/classquiz/internal/db"
)

// SQLStore keeps documents as JSON text in the documents table.
// Equality filters are applied after decoding so the same code runs on
// SQLite and Postgres.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLStore) Get(ctx context.Context, collection, key string) (Document, error) {
	return getDoc(ctx, s.db, collection, key)
}

func getDoc(ctx context.Context, q querier, collection, key string) (Document, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT data FROM documents WHERE collection=$1 AND key=$2`, collection, key).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("docstore: get %s/%s: %w", collection, key, err)
	}
	var d Document
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, fmt.Errorf("docstore: corrupt %s/%s: %w", collection, key, err)
	}
	return d, nil
}

func (s *SQLStore) Set(ctx context.Context, collection, key string, doc Document, merge bool) error {
	if !merge {
		return upsert(ctx, s.db, collection, key, doc)
	}
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		existing, err := getDoc(ctx, tx, collection, key)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		return upsert(ctx, tx, collection, key, mergeInto(existing, doc))
	})
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsert(ctx context.Context, e execer, collection, key string, doc Document) error {
	if doc == nil {
		doc = Document{}
	}
	buf, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("docstore: encode %s/%s: %w", collection, key, err)
	}
	_, err = e.ExecContext(ctx, `INSERT INTO documents (collection,key,data,updated_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (collection,key) DO UPDATE SET data=EXCLUDED.data, updated_at=EXCLUDED.updated_at`,
		collection, key, string(buf), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("docstore: set %s/%s: %w", collection, key, err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, collection, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection=$1 AND key=$2`, collection, key); err != nil {
		return fmt.Errorf("docstore: delete %s/%s: %w", collection, key, err)
	}
	return nil
}

func (s *SQLStore) Query(ctx context.Context, collection string, filters ...Filter) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, data FROM documents WHERE collection=$1 ORDER BY key`, collection)
	if err != nil {
		return nil, fmt.Errorf("docstore: query %s: %w", collection, err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, err
		}
		var d Document
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			return nil, fmt.Errorf("docstore: corrupt %s/%s: %w", collection, key, err)
		}
		if matches(d, filters) {
			out = append(out, Entry{Key: key, Doc: d})
		}
	}
	return out, rows.Err()
}
