// Package sqlite provides a directory-backed vector store on SQLite.
//
// Entries live in a single database file inside the configured directory and
// are partitioned by collection name, so several indexes can share one
// directory. Search is an exact cosine scan over the collection.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver

	"ragqa/internal/domain"
	"ragqa/internal/vectorstore"
)

// DefaultCollection is the collection used when none is configured.
const DefaultCollection = "doc_chunks"

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	collection  TEXT    NOT NULL,
	id          TEXT    NOT NULL,
	document_id TEXT    NOT NULL,
	position    INTEGER NOT NULL,
	text        TEXT    NOT NULL,
	dimension   INTEGER NOT NULL,
	vector      BLOB    NOT NULL,
	PRIMARY KEY (collection, id)
)`

// Storage is a SQLite-backed vector store bound to one collection.
type Storage struct {
	db         *sql.DB
	path       string
	collection string
}

// Open creates dir if needed and opens dir/index.db for the collection.
func Open(dir, collection string) (*Storage, error) {
	if dir == "" {
		return nil, fmt.Errorf("sqlite store: directory is required")
	}
	if collection == "" {
		collection = DefaultCollection
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	path := filepath.Join(dir, "index.db")
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Storage{db: db, path: path, collection: collection}, nil
}

// Path returns the database file path.
func (s *Storage) Path() string { return s.path }

// Collection returns the collection this store reads and writes.
func (s *Storage) Collection() string { return s.collection }

func (s *Storage) Close() error { return s.db.Close() }

// Upsert inserts or replaces all entries in one transaction.
func (s *Storage) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float64) error {
	current, err := s.dimension(ctx)
	if err != nil {
		return err
	}
	dim, err := vectorstore.CheckBatch(chunks, vectors, current)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (collection, id, document_id, position, text, dimension, vector)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET
			document_id = excluded.document_id,
			position    = excluded.position,
			text        = excluded.text,
			dimension   = excluded.dimension,
			vector      = excluded.vector`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for i, ch := range chunks {
		if _, err := stmt.ExecContext(ctx, s.collection, ch.ID, ch.DocumentID, ch.Index, ch.Text, dim, encodeVector(vectors[i])); err != nil {
			return fmt.Errorf("upsert %s: %w", ch.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Search scans the collection in insertion order and returns the topK most
// similar entries.
func (s *Storage) Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, position, text, vector
		FROM entries WHERE collection = ? ORDER BY rowid`, s.collection)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var (
		chunks  []domain.Chunk
		vectors [][]float64
	)
	for rows.Next() {
		var (
			ch   domain.Chunk
			blob []byte
		)
		if err := rows.Scan(&ch.ID, &ch.DocumentID, &ch.Index, &ch.Text, &blob); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		v, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", ch.ID, err)
		}
		if len(v) != len(vector) {
			return nil, vectorstore.ErrDimensionMismatch
		}
		chunks = append(chunks, ch)
		vectors = append(vectors, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return vectorstore.Rank(vector, chunks, vectors, topK), nil
}

// Count returns the number of entries in the collection.
func (s *Storage) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries WHERE collection = ?`, s.collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// dimension returns the vector width of the collection, or 0 when empty.
func (s *Storage) dimension(ctx context.Context) (int, error) {
	var dim sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(dimension) FROM entries WHERE collection = ?`, s.collection).Scan(&dim)
	if err != nil {
		return 0, fmt.Errorf("read dimension: %w", err)
	}
	return int(dim.Int64), nil
}

func encodeVector(v []float64) []byte {
	buf := make([]byte, 8*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func decodeVector(buf []byte) ([]float64, error) {
	if len(buf)%8 != 0 {
		return nil, fmt.Errorf("corrupt vector blob of %d bytes", len(buf))
	}
	v := make([]float64, len(buf)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return v, nil
}
