// Package memory is a transient, in-RAM Store backend.
//
// It holds nodes and file records in two LRU-bounded maps, evicting the
// least-recently-used row once MaxNodes/MaxFiles is exceeded. It never
// survives a process restart, so it is unsuitable as the normative backend
// but is convenient for tests and short-lived experiments. Grounded on
// github.com/asjoyner/shade/drive/memory, which plays the same role for
// shade's file/chunk tables.
package memory

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/dongdongbh/dsse"
	"github.com/dongdongbh/dsse/server"
)

func init() {
	server.Register("memory", NewStore)
}

const (
	defaultMaxNodes = 1 << 20
	defaultMaxFiles = 1 << 16
)

// NewStore returns a fresh, empty in-memory Store.
func NewStore(c server.Config) (server.Store, error) {
	if c.MaxNodes == 0 {
		c.MaxNodes = defaultMaxNodes
	}
	if c.MaxFiles == 0 {
		c.MaxFiles = defaultMaxFiles
	}
	nodes, err := lru.New(c.MaxNodes)
	if err != nil {
		return nil, fmt.Errorf("memory: initializing node cache: %s", err)
	}
	files, err := lru.New(c.MaxFiles)
	if err != nil {
		return nil, fmt.Errorf("memory: initializing file cache: %s", err)
	}
	return &Store{nodes: nodes, files: files}, nil
}

type nodeRow struct {
	nonce, ciphertext []byte
}

type fileRow struct {
	nonce, ciphertext, encName []byte
}

// Store implements server.Store by holding rows in two LRU caches.
type Store struct {
	mu    sync.Mutex
	nodes *lru.Cache
	files *lru.Cache
}

// PutNode inserts a node, failing with dsse.ErrCollision if address is
// already occupied.
func (s *Store) PutNode(address, nonce, ciphertext []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nodes.Contains(string(address)) {
		return fmt.Errorf("memory: %w: address %x", dsse.ErrCollision, address)
	}
	s.nodes.Add(string(address), nodeRow{
		nonce:      append([]byte(nil), nonce...),
		ciphertext: append([]byte(nil), ciphertext...),
	})
	return nil
}

// GetNode retrieves a node, or dsse.ErrNotFound if address is unused.
func (s *Store) GetNode(address []byte) ([]byte, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.nodes.Get(string(address))
	if !ok {
		return nil, nil, fmt.Errorf("memory: %w: address %x", dsse.ErrNotFound, address)
	}
	row := v.(nodeRow)
	return row.nonce, row.ciphertext, nil
}

// PutFile inserts a file record, failing with dsse.ErrCollision if fileID
// is already occupied.
func (s *Store) PutFile(fileID, nonce, ciphertext, encName []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.files.Contains(string(fileID)) {
		return fmt.Errorf("memory: %w: file id %x", dsse.ErrCollision, fileID)
	}
	s.files.Add(string(fileID), fileRow{
		nonce:      append([]byte(nil), nonce...),
		ciphertext: append([]byte(nil), ciphertext...),
		encName:    append([]byte(nil), encName...),
	})
	return nil
}

// GetFile retrieves a file record, or dsse.ErrNotFound if fileID is unused.
func (s *Store) GetFile(fileID []byte) ([]byte, []byte, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.files.Get(string(fileID))
	if !ok {
		return nil, nil, nil, fmt.Errorf("memory: %w: file id %x", dsse.ErrNotFound, fileID)
	}
	row := v.(fileRow)
	return row.nonce, row.ciphertext, row.encName, nil
}
