// Package server defines the pure-storage half of the protocol: a
// address-keyed table of chain nodes and a file-id-keyed table of encrypted
// file blobs. The server holds no keys and performs no cryptography; it is
// generalized from github.com/asjoyner/shade's drive.Client interface, which
// plays the same "opaque keyed blob store behind a pluggable backend" role
// for shade's chunks and file metadata.
package server

import (
	"fmt"
)

// Node is a persisted chain entry, as it exists on the server: an address,
// the nonce used to seal it, and its ciphertext. The server never sees the
// plaintext these bytes decrypt to.
type Node struct {
	Address    []byte
	Nonce      []byte
	Ciphertext []byte
}

// FileRecord is a persisted encrypted file blob, keyed by its opaque file id.
type FileRecord struct {
	FileID     []byte
	Nonce      []byte
	Ciphertext []byte
	EncName    []byte
}

// Store is the server's four-operation interface. Implementations MUST be
// atomic with respect to concurrent readers (no partially written row is
// ever visible) and MUST durably commit a write before returning success
// from Put*.
type Store interface {
	// PutNode inserts a node. It returns dsse.ErrCollision if address is
	// already occupied; the caller must treat that as fatal and must not
	// retry with the same key.
	PutNode(address, nonce, ciphertext []byte) error

	// GetNode returns dsse.ErrNotFound if no row exists for address.
	GetNode(address []byte) (nonce, ciphertext []byte, err error)

	// PutFile inserts a file record. It returns dsse.ErrCollision if
	// fileID is already occupied.
	PutFile(fileID, nonce, ciphertext, encName []byte) error

	// GetFile returns dsse.ErrNotFound if no row exists for fileID.
	GetFile(fileID []byte) (nonce, ciphertext, encName []byte, err error)
}

// Config selects and parameterizes a Store backend. Provider names one of
// the backends registered with Register (by that backend's package's init);
// the remaining fields are interpreted by that backend alone. Grounded on
// drive.Config's role in github.com/asjoyner/shade/config.
type Config struct {
	Provider string `json:"provider"`

	// Dir is the base directory for on-disk backends (server/local).
	Dir string `json:"dir,omitempty"`

	// MaxNodes and MaxFiles bound the size of in-memory backends
	// (server/memory). Zero means "use the backend's default".
	MaxNodes int `json:"maxNodes,omitempty"`
	MaxFiles int `json:"maxFiles,omitempty"`

	// DSN is a connection string for network-backed stores (server/postgres).
	DSN string `json:"dsn,omitempty"`
}

// Factory constructs a Store from a Config. Backends register one via
// Register in an init function, matching the registration idiom of
// github.com/asjoyner/shade/drive's per-backend init()s.
type Factory func(Config) (Store, error)

var providers = map[string]Factory{}

// Register makes a backend available under name to Open. It is intended to
// be called from a backend package's init function; calling it twice for
// the same name is a programmer error and panics, exactly as a duplicate
// flag registration would.
func Register(name string, f Factory) {
	if _, exists := providers[name]; exists {
		panic("server: Register called twice for provider " + name)
	}
	providers[name] = f
}

// Open constructs the Store named by cfg.Provider. Callers must blank-import
// the backend package (e.g. _ "github.com/dongdongbh/dsse/server/local") so
// its init function has registered before Open is called.
func Open(cfg Config) (Store, error) {
	f, ok := providers[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("server: unknown provider %q (forgot a blank import?)", cfg.Provider)
	}
	return f(cfg)
}
