// Package postgres is a PostgreSQL-backed Store, for deployments that want
// the server's two tables managed by a real database rather than the
// filesystem. It follows the pgxpool.Pool-per-Store, one-struct-per-table
// shape of github.com/sage-x-project/sage/pkg/storage/postgres, and reuses
// its check-then-insert-in-a-transaction idiom (see that package's
// nonces.go) to turn a would-be unique-constraint violation into the core's
// distinguished dsse.ErrCollision.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dongdongbh/dsse"
	"github.com/dongdongbh/dsse/server"
)

func init() {
	server.Register("postgres", newStoreFromConfig)
}

// Schema is the DDL the caller is expected to have applied before opening a
// Store. It is exposed as a constant, rather than run automatically, so
// that deployments can manage migrations with whatever tooling they already
// use — the Store itself only ever does point reads and point inserts.
const Schema = `
CREATE TABLE IF NOT EXISTS nodes (
	address    BYTEA PRIMARY KEY,
	nonce      BYTEA NOT NULL,
	ciphertext BYTEA NOT NULL
);

CREATE TABLE IF NOT EXISTS files (
	file_id    BYTEA PRIMARY KEY,
	nonce      BYTEA NOT NULL,
	ciphertext BYTEA NOT NULL,
	enc_name   BYTEA NOT NULL
);
`

func newStoreFromConfig(c server.Config) (server.Store, error) {
	if c.DSN == "" {
		return nil, fmt.Errorf("postgres: Config.DSN is required")
	}
	return Open(context.Background(), c.DSN)
}

// Store implements server.Store against a PostgreSQL connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn and pings it before returning, mirroring
// postgres.NewStore's eager connection check in the sage-x store package.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: pinging database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// PutNode inserts a node inside a transaction that first checks for an
// existing row at address, so a collision surfaces as dsse.ErrCollision
// rather than a raw unique-violation error.
func (s *Store) PutNode(address, nonce, ciphertext []byte) error {
	ctx := context.Background()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: %w: begin: %s", dsse.ErrIO, err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM nodes WHERE address = $1)`, address).Scan(&exists); err != nil {
		return fmt.Errorf("postgres: %w: checking address: %s", dsse.ErrIO, err)
	}
	if exists {
		return fmt.Errorf("postgres: %w: address %x", dsse.ErrCollision, address)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO nodes (address, nonce, ciphertext) VALUES ($1, $2, $3)`,
		address, nonce, ciphertext,
	); err != nil {
		return fmt.Errorf("postgres: %w: inserting node: %s", dsse.ErrIO, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: %w: committing node: %s", dsse.ErrIO, err)
	}
	return nil
}

// GetNode looks up the row at address.
func (s *Store) GetNode(address []byte) ([]byte, []byte, error) {
	ctx := context.Background()
	var nonce, ciphertext []byte
	err := s.pool.QueryRow(ctx,
		`SELECT nonce, ciphertext FROM nodes WHERE address = $1`, address,
	).Scan(&nonce, &ciphertext)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, fmt.Errorf("postgres: %w: address %x", dsse.ErrNotFound, address)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: %w: %s", dsse.ErrIO, err)
	}
	return nonce, ciphertext, nil
}

// PutFile inserts a file record, using the same check-then-insert pattern
// as PutNode.
func (s *Store) PutFile(fileID, nonce, ciphertext, encName []byte) error {
	ctx := context.Background()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: %w: begin: %s", dsse.ErrIO, err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM files WHERE file_id = $1)`, fileID).Scan(&exists); err != nil {
		return fmt.Errorf("postgres: %w: checking file id: %s", dsse.ErrIO, err)
	}
	if exists {
		return fmt.Errorf("postgres: %w: file id %x", dsse.ErrCollision, fileID)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO files (file_id, nonce, ciphertext, enc_name) VALUES ($1, $2, $3, $4)`,
		fileID, nonce, ciphertext, encName,
	); err != nil {
		return fmt.Errorf("postgres: %w: inserting file: %s", dsse.ErrIO, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: %w: committing file: %s", dsse.ErrIO, err)
	}
	return nil
}

// GetFile looks up the row at fileID.
func (s *Store) GetFile(fileID []byte) ([]byte, []byte, []byte, error) {
	ctx := context.Background()
	var nonce, ciphertext, encName []byte
	err := s.pool.QueryRow(ctx,
		`SELECT nonce, ciphertext, enc_name FROM files WHERE file_id = $1`, fileID,
	).Scan(&nonce, &ciphertext, &encName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, nil, fmt.Errorf("postgres: %w: file id %x", dsse.ErrNotFound, fileID)
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("postgres: %w: %s", dsse.ErrIO, err)
	}
	return nonce, ciphertext, encName, nil
}
