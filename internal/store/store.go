// Package store persists assembled plate readings to MySQL or PostgreSQL.
//
// Each call to SaveReading stores one row per plate under a shared reading
// id, inside a single transaction.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	_ "github.com/lib/pq" // registers the "postgres" driver
	"gopkg.in/guregu/null.v4"

	"github.com/ironsheep/plate-text-mcp/internal/detection"
)

// Supported drivers.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// ErrNotFound is returned when a reading id has no rows.
var ErrNotFound = errors.New("reading not found")

// Reading is one stored plate.
type Reading struct {
	ReadingID  uuid.UUID     `json:"reading_id"`
	Source     null.String   `json:"source"`
	PlateIndex int           `json:"plate_index"`
	Text       string        `json:"text"`
	Box        detection.Box `json:"box"`
	Characters int           `json:"characters"`
	MeanScore  null.Float    `json:"mean_score"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Store writes readings through database/sql.
type Store struct {
	db     *sql.DB
	driver string
}

// NormalizeDSN prepares a DSN for the driver. MySQL DSNs are parsed and get
// parseTime=true so timestamps scan into time.Time.
func NormalizeDSN(driver, dsn string) (string, error) {
	switch driver {
	case DriverMySQL:
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "", fmt.Errorf("invalid mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		return cfg.FormatDSN(), nil
	case DriverPostgres:
		return dsn, nil
	default:
		return "", fmt.Errorf("unsupported driver %q", driver)
	}
}

// Open connects to the database, verifies the connection and creates the
// schema if needed.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	normalized, err := NormalizeDSN(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}

	s := &Store{db: db, driver: driver}
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders as $1, $2, ... for PostgreSQL.
func rebind(driver, query string) string {
	if driver != DriverPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func schema(driver string) []string {
	if driver == DriverPostgres {
		return []string{
			`CREATE TABLE IF NOT EXISTS plate_readings (
				id BIGSERIAL PRIMARY KEY,
				reading_id CHAR(36) NOT NULL,
				source TEXT NULL,
				plate_index INT NOT NULL,
				plate_text VARCHAR(64) NOT NULL,
				start_y DOUBLE PRECISION NOT NULL,
				start_x DOUBLE PRECISION NOT NULL,
				end_y DOUBLE PRECISION NOT NULL,
				end_x DOUBLE PRECISION NOT NULL,
				characters INT NOT NULL,
				mean_score DOUBLE PRECISION NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
			`CREATE INDEX IF NOT EXISTS idx_plate_readings_reading ON plate_readings (reading_id)`,
		}
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS plate_readings (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			reading_id CHAR(36) NOT NULL,
			source VARCHAR(1024) NULL,
			plate_index INT NOT NULL,
			plate_text VARCHAR(64) NOT NULL,
			start_y DOUBLE NOT NULL,
			start_x DOUBLE NOT NULL,
			end_y DOUBLE NOT NULL,
			end_x DOUBLE NOT NULL,
			characters INT NOT NULL,
			mean_score DOUBLE NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_plate_readings_reading (reading_id)
		)`,
	}
}

// EnsureSchema creates the plate_readings table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema(s.driver) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// meanScore averages the character scores of a plate.
func meanScore(p detection.PlateRecord) null.Float {
	if len(p.Characters) == 0 {
		return null.Float{}
	}
	sum := 0.0
	for _, c := range p.Characters {
		sum += c.Score
	}
	return null.FloatFrom(sum / float64(len(p.Characters)))
}

// SaveReading stores every plate of res under a new reading id. An empty
// source is stored as NULL. A result without plates writes nothing and
// returns uuid.Nil.
func (s *Store) SaveReading(ctx context.Context, source string, res *detection.Result) (uuid.UUID, error) {
	if len(res.Plates) == 0 {
		return uuid.Nil, nil
	}
	id := uuid.New()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := rebind(s.driver, `INSERT INTO plate_readings
		(reading_id, source, plate_index, plate_text, start_y, start_x, end_y, end_x, characters, mean_score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	src := null.NewString(source, source != "")
	for i, p := range res.Plates {
		_, err := stmt.ExecContext(ctx,
			id.String(), src, i, p.Text(),
			p.Box.StartY, p.Box.StartX, p.Box.EndY, p.Box.EndX,
			len(p.Characters), meanScore(p),
		)
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to insert plate %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("failed to commit reading: %w", err)
	}
	return id, nil
}

// Readings returns the plates stored under a reading id, in plate order.
func (s *Store) Readings(ctx context.Context, id uuid.UUID) ([]Reading, error) {
	query := rebind(s.driver, `SELECT reading_id, source, plate_index, plate_text,
		start_y, start_x, end_y, end_x, characters, mean_score, created_at
		FROM plate_readings WHERE reading_id = ? ORDER BY plate_index`)

	rows, err := s.db.QueryContext(ctx, query, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var out []Reading
	for rows.Next() {
		var r Reading
		var rid string
		if err := rows.Scan(&rid, &r.Source, &r.PlateIndex, &r.Text,
			&r.Box.StartY, &r.Box.StartX, &r.Box.EndY, &r.Box.EndX,
			&r.Characters, &r.MeanScore, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		if r.ReadingID, err = uuid.Parse(strings.TrimSpace(rid)); err != nil {
			return nil, fmt.Errorf("invalid reading id %q: %w", rid, err)
		}
		r.CreatedAt = r.CreatedAt.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}
