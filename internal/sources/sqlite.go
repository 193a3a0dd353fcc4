package sources

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"pitpipe/pkg/contracts/domain"
)

//go:embed schema.sql
var schemaSQL string

// sqliteTime is fixed width so that text comparison orders instants
const sqliteTime = "2006-01-02T15:04:05.000000000Z"

// Store keeps raw event rows for every dataset in one SQLite database
type Store struct {
	db *sql.DB
}

// OpenStore creates or opens the database at path and applies the schema.
// Use ":memory:" for a private in-memory database.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite allows one writer; a single connection also keeps :memory:
	// databases alive across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks that the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type payload struct {
	Values map[string]float64 `json:"values,omitempty"`
	Dates  map[string]string  `json:"dates,omitempty"`
}

// Insert appends rows for dataset in one transaction
func (s *Store) Insert(ctx context.Context, dataset string, rows []domain.EventRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO event_rows (dataset, sid, timestamp, event_date, payload) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		body, err := encodePayload(row)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		var eventDate sql.NullString
		if !row.EventDate.IsZero() {
			eventDate = sql.NullString{String: row.EventDate.UTC().Format(sqliteTime), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, dataset, row.SID, row.Timestamp.UTC().Format(sqliteTime), eventDate, body); err != nil {
			return fmt.Errorf("failed to insert row %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// Source returns a Source over one dataset's rows
func (s *Store) Source(dataset string) Source {
	return &sqliteSource{db: s.db, dataset: dataset}
}

type sqliteSource struct {
	db      *sql.DB
	dataset string
}

// Rows implements Source, in insertion order
func (s *sqliteSource) Rows(ctx context.Context, upper time.Time) ([]domain.EventRow, error) {
	rs, err := s.db.QueryContext(ctx,
		`SELECT sid, timestamp, event_date, payload FROM event_rows
		 WHERE dataset = ? AND timestamp <= ?
		 ORDER BY id`,
		s.dataset, upper.UTC().Format(sqliteTime))
	if err != nil {
		return nil, fmt.Errorf("failed to query event rows: %w", err)
	}
	defer rs.Close()

	var out []domain.EventRow
	for rs.Next() {
		var (
			row       domain.EventRow
			ts        string
			eventDate sql.NullString
			body      string
		)
		if err := rs.Scan(&row.SID, &ts, &eventDate, &body); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		if row.Timestamp, err = time.Parse(sqliteTime, ts); err != nil {
			return nil, fmt.Errorf("%w: timestamp %q", ErrMalformedValue, ts)
		}
		if eventDate.Valid {
			if row.EventDate, err = time.Parse(sqliteTime, eventDate.String); err != nil {
				return nil, fmt.Errorf("%w: event date %q", ErrMalformedValue, eventDate.String)
			}
		}
		if err := decodePayload(body, &row); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("failed to read event rows: %w", err)
	}
	return out, nil
}

// encodePayload drops NaN values and NaT dates, which mean "absent"
func encodePayload(row domain.EventRow) (string, error) {
	var p payload
	for k, v := range row.Values {
		if math.IsNaN(v) {
			continue
		}
		if p.Values == nil {
			p.Values = make(map[string]float64)
		}
		p.Values[k] = v
	}
	for k, v := range row.Dates {
		if v.IsZero() {
			continue
		}
		if p.Dates == nil {
			p.Dates = make(map[string]string)
		}
		p.Dates[k] = v.UTC().Format(sqliteTime)
	}
	body, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode payload: %w", err)
	}
	return string(body), nil
}

func decodePayload(body string, row *domain.EventRow) error {
	var p payload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return fmt.Errorf("%w: payload: %v", ErrMalformedValue, err)
	}
	row.Values = p.Values
	if len(p.Dates) > 0 {
		row.Dates = make(map[string]time.Time, len(p.Dates))
		for k, v := range p.Dates {
			t, err := time.Parse(sqliteTime, v)
			if err != nil {
				return fmt.Errorf("%w: %s %q", ErrMalformedValue, k, v)
			}
			row.Dates[k] = t
		}
	}
	return nil
}
