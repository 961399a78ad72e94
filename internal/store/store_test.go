package store

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ironsheep/plate-text-mcp/internal/detection"
)

func TestRebind(t *testing.T) {
	q := "INSERT INTO t (a, b, c) VALUES (?, ?, ?)"

	if got := rebind(DriverMySQL, q); got != q {
		t.Errorf("mysql: got %q", got)
	}
	want := "INSERT INTO t (a, b, c) VALUES ($1, $2, $3)"
	if got := rebind(DriverPostgres, q); got != want {
		t.Errorf("postgres: got %q, want %q", got, want)
	}
}

func TestNormalizeDSN(t *testing.T) {
	got, err := NormalizeDSN(DriverMySQL, "user:pass@tcp(localhost:3306)/plates")
	if err != nil {
		t.Fatalf("NormalizeDSN failed: %v", err)
	}
	if !strings.Contains(got, "parseTime=true") {
		t.Errorf("mysql dsn missing parseTime: %q", got)
	}

	pg := "postgres://u:p@localhost/plates?sslmode=disable"
	if got, err := NormalizeDSN(DriverPostgres, pg); err != nil || got != pg {
		t.Errorf("postgres dsn changed: %q, %v", got, err)
	}

	if _, err := NormalizeDSN(DriverMySQL, "not a dsn"); err == nil {
		t.Error("expected error for malformed mysql dsn")
	}
	if _, err := NormalizeDSN("sqlite", "x"); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestSchema(t *testing.T) {
	if stmts := schema(DriverPostgres); len(stmts) != 2 || !strings.Contains(stmts[0], "BIGSERIAL") {
		t.Errorf("unexpected postgres schema: %v", stmts)
	}
	if stmts := schema(DriverMySQL); len(stmts) != 1 || !strings.Contains(stmts[0], "AUTO_INCREMENT") {
		t.Errorf("unexpected mysql schema: %v", stmts)
	}
}

func TestMeanScore(t *testing.T) {
	p := detection.PlateRecord{Characters: []detection.Character{
		{Score: 0.5}, {Score: 1.0},
	}}
	if got := meanScore(p); !got.Valid || got.Float64 != 0.75 {
		t.Errorf("got %+v, want 0.75", got)
	}
	if got := meanScore(detection.PlateRecord{}); got.Valid {
		t.Errorf("empty plate should be null, got %+v", got)
	}
}

func TestSaveReading_NoPlates(t *testing.T) {
	// No plates means no statement reaches the database.
	var s Store
	id, err := s.SaveReading(context.Background(), "cam/empty.jpg", &detection.Result{Plates: []detection.PlateRecord{}})
	if err != nil {
		t.Fatalf("SaveReading failed: %v", err)
	}
	if id != uuid.Nil {
		t.Errorf("got %s, want uuid.Nil", id)
	}
}

// TestStore_MySQL runs against a live server when PLATE_MCP_TEST_MYSQL_DSN
// is set.
func TestStore_MySQL(t *testing.T) {
	dsn := os.Getenv("PLATE_MCP_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("PLATE_MCP_TEST_MYSQL_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := Open(ctx, DriverMySQL, dsn)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	res := &detection.Result{
		Plates: []detection.PlateRecord{
			{
				Box: detection.Box{StartY: 0.1, StartX: 0.1, EndY: 0.3, EndX: 0.9},
				Characters: []detection.Character{
					{Label: "A", Score: 0.9},
					{Label: "7", Score: 0.7},
				},
			},
		},
		Count: 1,
	}

	id, err := s.SaveReading(ctx, "", res)
	if err != nil {
		t.Fatalf("SaveReading failed: %v", err)
	}

	readings, err := s.Readings(ctx, id)
	if err != nil {
		t.Fatalf("Readings failed: %v", err)
	}
	if len(readings) != 1 || readings[0].Text != "A7" {
		t.Fatalf("unexpected readings: %+v", readings)
	}
	if readings[0].Source.Valid {
		t.Error("empty source should be stored as NULL")
	}

	if id, err := s.SaveReading(ctx, "", &detection.Result{}); err != nil || id != uuid.Nil {
		t.Errorf("empty result: got %s, %v", id, err)
	}

	if _, err := s.Readings(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
