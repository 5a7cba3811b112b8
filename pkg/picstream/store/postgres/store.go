// Package postgres provides pgx-backed implementations of the picstream
// record and user stores. One Store maps to one table; the owner and status
// indexes are plain btree indexes on (owner, id) and (status, id), so a
// record row and its index entries always change in the same atomic write.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kavichu/picstream/pkg/picstream"
)

// DBTX is satisfied by both a pgx connection pool and a transaction.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Store implements picstream.RecordStore on a PostgreSQL table.
type Store struct {
	db    DBTX
	table string
}

// NewStore creates a record store over the named table.
func NewStore(db DBTX, table string) (*Store, error) {
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{db: db, table: table}, nil
}

// NewStoreWithPool creates a record store backed by a connection pool.
func NewStoreWithPool(pool *pgxpool.Pool, table string) (*Store, error) {
	return NewStore(pool, table)
}

// Migrate creates the table and its secondary indexes if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id         text PRIMARY KEY,
			kind       text NOT NULL,
			owner      text NOT NULL,
			created_at timestamptz NOT NULL,
			text_body  text NOT NULL DEFAULT '',
			object_key text NOT NULL DEFAULT '',
			status     text NOT NULL DEFAULT '',
			labels     text[],
			url        text NOT NULL DEFAULT '',
			width      integer NOT NULL DEFAULT 0,
			height     integer NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS %[1]s_by_owner ON %[1]s (owner, id);
		CREATE INDEX IF NOT EXISTS %[1]s_by_status ON %[1]s (status, id);`, s.table)

	if _, err := s.db.Exec(ctx, ddl); err != nil {
		return mapError("migrate", err)
	}
	return nil
}

func (s *Store) Put(ctx context.Context, record *picstream.Record) error {
	if record.ID == "" {
		return fmt.Errorf("%w: record id is required", picstream.ErrInvalidInput)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, kind, owner, created_at, text_body, object_key, status, labels, url, width, height)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			kind = EXCLUDED.kind,
			owner = EXCLUDED.owner,
			created_at = EXCLUDED.created_at,
			text_body = EXCLUDED.text_body,
			object_key = EXCLUDED.object_key,
			status = EXCLUDED.status,
			labels = EXCLUDED.labels,
			url = EXCLUDED.url,
			width = EXCLUDED.width,
			height = EXCLUDED.height`, s.table)

	_, err := s.db.Exec(ctx, query,
		record.ID, record.Kind, record.Owner, record.CreatedAt,
		record.Text, record.ObjectKey, record.Status, record.Labels,
		record.URL, record.Width, record.Height)
	if err != nil {
		return mapError("put", err)
	}

	return nil
}

func (s *Store) PutIf(ctx context.Context, record *picstream.Record, expect picstream.ImageStatus) error {
	query := fmt.Sprintf(`
		UPDATE %s SET
			status = $3,
			labels = $4,
			url = $5,
			width = $6,
			height = $7
		WHERE id = $1 AND status = $2`, s.table)

	tag, err := s.db.Exec(ctx, query,
		record.ID, expect, record.Status, record.Labels,
		record.URL, record.Width, record.Height)
	if err != nil {
		return mapError("put_if", err)
	}

	if tag.RowsAffected() == 0 {
		// Either the row is missing or another writer moved the status first.
		if _, err := s.Get(ctx, record.ID); err != nil {
			return err
		}
		return fmt.Errorf("%w: expected status %s", picstream.ErrConflict, expect)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*picstream.Record, error) {
	query := fmt.Sprintf(`
		SELECT id, kind, owner, created_at, text_body, object_key, status, labels, url, width, height
		FROM %s WHERE id = $1`, s.table)

	record, err := scanRecord(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, picstream.ErrNotFound
		}
		return nil, mapError("get", err)
	}

	return record, nil
}

func (s *Store) Query(ctx context.Context, req picstream.QueryRequest) (*picstream.Page, error) {
	if req.Limit <= 0 {
		return nil, fmt.Errorf("%w: query limit must be positive", picstream.ErrInvalidInput)
	}

	var partitionColumn string
	switch req.Index {
	case picstream.IndexByOwner:
		partitionColumn = "owner"
	case picstream.IndexByStatus:
		partitionColumn = "status"
	default:
		return nil, fmt.Errorf("%w: unknown index %q", picstream.ErrInvalidInput, req.Index)
	}

	resumeAfter, err := picstream.DecodeCursor(req.Cursor)
	if err != nil {
		return nil, err
	}

	comparison, direction := ">", "ASC"
	if !req.Ascending {
		comparison, direction = "<", "DESC"
	}

	// Keyset pagination on the sort key; fetch one row past the page to know
	// whether a cursor is needed.
	query := fmt.Sprintf(`
		SELECT id, kind, owner, created_at, text_body, object_key, status, labels, url, width, height
		FROM %s
		WHERE %s = $1 AND ($2 = '' OR id %s $2)
		ORDER BY id %s
		LIMIT $3`, s.table, partitionColumn, comparison, direction)

	rows, err := s.db.Query(ctx, query, req.Partition, resumeAfter, req.Limit+1)
	if err != nil {
		return nil, mapError("query", err)
	}
	defer rows.Close()

	page := &picstream.Page{Items: []*picstream.Record{}}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, mapError("query", err)
		}
		page.Items = append(page.Items, record)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("query", err)
	}

	if len(page.Items) > req.Limit {
		page.Items = page.Items[:req.Limit]
		page.Cursor = picstream.EncodeCursor(page.Items[req.Limit-1].ID)
	}

	return page, nil
}

func scanRecord(row pgx.Row) (*picstream.Record, error) {
	var record picstream.Record
	err := row.Scan(
		&record.ID, &record.Kind, &record.Owner, &record.CreatedAt,
		&record.Text, &record.ObjectKey, &record.Status, &record.Labels,
		&record.URL, &record.Width, &record.Height)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// mapError folds driver failures into the store error taxonomy.
func mapError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505": // unique_violation
			return fmt.Errorf("%s: %w", operation, picstream.ErrAlreadyExists)
		case strings.HasPrefix(pgErr.Code, "08"): // connection exception
			return fmt.Errorf("%s: %w: %v", operation, picstream.ErrStoreUnavailable, err)
		default:
			return fmt.Errorf("%s: database error: %w", operation, err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w: %v", operation, picstream.ErrStoreUnavailable, err)
	}

	return fmt.Errorf("%s: %w: %v", operation, picstream.ErrStoreUnavailable, err)
}
