package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/dongdongbh/dsse/server"
)

// TestPostgresStore exercises the conformance suite against a real
// PostgreSQL instance. It is skipped unless DSSE_TEST_POSTGRES_DSN is set,
// since this package's only external dependency (a running database) isn't
// available in an ordinary `go test` run.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("DSSE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("DSSE_TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	ctx := context.Background()
	s, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open: %s", err)
	}
	defer s.Close()

	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		t.Fatalf("applying schema: %s", err)
	}

	server.TestNodeRoundTrip(t, s)
	server.TestNodeNotFound(t, s)
	server.TestNodeCollision(t, s)
	server.TestFileRoundTrip(t, s)
	server.TestFileNotFound(t, s)
}
