// Package fail is a test Store that fails every operation with
// dsse.ErrIO. Grounded on github.com/asjoyner/shade/drive/fail, which plays
// the same role for drive.Client: a backend that "does what it says on the
// tin", used to exercise a caller's error handling and retry paths without
// standing up a real flaky backend.
package fail

import (
	"fmt"

	"github.com/dongdongbh/dsse"
	"github.com/dongdongbh/dsse/server"
)

func init() {
	server.Register("fail", NewStore)
}

// NewStore returns a Store that fails every call.
func NewStore(c server.Config) (server.Store, error) {
	return &Store{}, nil
}

// Store implements server.Store by failing every operation with
// dsse.ErrIO.
type Store struct{}

func (s *Store) PutNode(address, nonce, ciphertext []byte) error {
	return fmt.Errorf("fail: %w: PutNode always fails", dsse.ErrIO)
}

func (s *Store) GetNode(address []byte) ([]byte, []byte, error) {
	return nil, nil, fmt.Errorf("fail: %w: GetNode always fails", dsse.ErrIO)
}

func (s *Store) PutFile(fileID, nonce, ciphertext, encName []byte) error {
	return fmt.Errorf("fail: %w: PutFile always fails", dsse.ErrIO)
}

func (s *Store) GetFile(fileID []byte) ([]byte, []byte, []byte, error) {
	return nil, nil, nil, fmt.Errorf("fail: %w: GetFile always fails", dsse.ErrIO)
}
