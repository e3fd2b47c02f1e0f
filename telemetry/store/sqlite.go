package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id  TEXT NOT NULL,
	name    TEXT NOT NULL,
	step    INTEGER NOT NULL,
	time    INTEGER NOT NULL,
	count   INTEGER NOT NULL,
	min     REAL NOT NULL,
	max     REAL NOT NULL,
	mean    REAL NOT NULL,
	stddev  REAL NOT NULL,
	edges   TEXT NOT NULL,
	counts  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS records_name_step ON records (name, step);
`

// SQLite is the durable writer. One database holds any number of runs, keyed
// by run id.
type SQLite struct {
	mu     sync.Mutex
	db     *sql.DB
	closed bool
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open telemetry database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create telemetry schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// WriteBatch appends records in a single transaction so a failed epoch never
// leaves a partial time series.
func (s *SQLite) WriteBatch(records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrWriterClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO records
		(run_id, name, step, time, count, min, max, mean, stddev, edges, counts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		edges, err := json.Marshal(r.Edges)
		if err != nil {
			return err
		}
		counts, err := json.Marshal(r.Counts)
		if err != nil {
			return err
		}

		if _, err := stmt.Exec(r.RunID, r.Name, r.Step, r.Time.UnixNano(),
			r.Count, r.Min, r.Max, r.Mean, r.Stddev, string(edges), string(counts)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLite) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrWriterClosed
	}

	return nil
}

func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrWriterClosed
	}

	s.closed = true
	return s.db.Close()
}

// Names returns the distinct summary names in the database.
func (s *SQLite) Names() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrWriterClosed
	}

	rows, err := s.db.Query(`SELECT DISTINCT name FROM records ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}

	return names, rows.Err()
}

// Series returns the records for one summary name in step order, optionally
// restricted to a run id.
func (s *SQLite) Series(name, runID string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrWriterClosed
	}

	query := `SELECT run_id, name, step, time, count, min, max, mean, stddev, edges, counts
		FROM records WHERE name = ?`
	args := []any{name}
	if runID != "" {
		query += ` AND run_id = ?`
		args = append(args, runID)
	}
	query += ` ORDER BY step`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var nanos int64
		var edges, counts string
		if err := rows.Scan(&r.RunID, &r.Name, &r.Step, &nanos,
			&r.Count, &r.Min, &r.Max, &r.Mean, &r.Stddev, &edges, &counts); err != nil {
			return nil, err
		}

		r.Time = time.Unix(0, nanos).UTC()
		if err := json.Unmarshal([]byte(edges), &r.Edges); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(counts), &r.Counts); err != nil {
			return nil, err
		}

		records = append(records, r)
	}

	return records, rows.Err()
}
