// Package local is a disk-backed Store for the DSSE server: it stores nodes
// and file records as individual files under two directories, named by the
// hex encoding of their key. Grounded on
// github.com/asjoyner/shade/drive/local, which stores shade's file and
// chunk blobs the same way.
package local

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dongdongbh/dsse"
	"github.com/dongdongbh/dsse/server"
)

func init() {
	server.Register("local", NewStore)
}

// NewStore returns a Store rooted at c.Dir, creating the nodes/ and files/
// subdirectories if they do not already exist.
func NewStore(c server.Config) (server.Store, error) {
	if c.Dir == "" {
		return nil, fmt.Errorf("local: Config.Dir is required")
	}
	nodeDir := filepath.Join(c.Dir, "nodes")
	fileDir := filepath.Join(c.Dir, "files")
	for _, dir := range []string{nodeDir, fileDir} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("local: %s", err)
		}
	}
	return &Store{nodeDir: nodeDir, fileDir: fileDir}, nil
}

// Store implements server.Store by writing one file per row.
type Store struct {
	sync.RWMutex
	nodeDir, fileDir string
}

// row layout on disk: a 2-byte big-endian nonce length, then the nonce,
// then the remaining bytes is the ciphertext (or ciphertext||encName for
// file records, delimited the same way).
func encodeRow(nonce, rest []byte) []byte {
	out := make([]byte, 2+len(nonce)+len(rest))
	binary.BigEndian.PutUint16(out[:2], uint16(len(nonce)))
	copy(out[2:], nonce)
	copy(out[2+len(nonce):], rest)
	return out
}

func decodeRow(b []byte) (nonce, rest []byte, err error) {
	if len(b) < 2 {
		return nil, nil, fmt.Errorf("local: truncated row (%d bytes)", len(b))
	}
	n := int(binary.BigEndian.Uint16(b[:2]))
	if len(b) < 2+n {
		return nil, nil, fmt.Errorf("local: truncated row (%d bytes, want %d nonce bytes)", len(b), n)
	}
	return b[2 : 2+n], b[2+n:], nil
}

// writeNew atomically creates filename with data, failing with
// dsse.ErrCollision (instead of clobbering) if it already exists. Like the
// client's own state file, every server row is first written to a temp
// file, but it is then hard-linked into place rather than renamed (see
// below): a crash mid-write must never leave a torn file visible to a reader.
func writeNew(filename string, data []byte) error {
	if _, err := os.Stat(filename); err == nil {
		return fmt.Errorf("local: %w", dsse.ErrCollision)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("local: %w: %s", dsse.ErrIO, err)
	}
	tmp := filename + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("local: %w: %s", dsse.ErrIO, err)
	}
	// os.Link + Remove instead of Rename gives an atomic "create iff absent":
	// Rename would silently clobber a row written between our Stat and here.
	if err := os.Link(tmp, filename); err != nil {
		os.Remove(tmp)
		if os.IsExist(err) {
			return fmt.Errorf("local: %w", dsse.ErrCollision)
		}
		return fmt.Errorf("local: %w: %s", dsse.ErrIO, err)
	}
	return os.Remove(tmp)
}

func readFile(filename string) ([]byte, error) {
	b, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("local: %w", dsse.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("local: %w: %s", dsse.ErrIO, err)
	}
	return b, nil
}

// PutNode writes a node to nodeDir/<hex address>.
func (s *Store) PutNode(address, nonce, ciphertext []byte) error {
	s.Lock()
	defer s.Unlock()
	filename := filepath.Join(s.nodeDir, hex.EncodeToString(address))
	return writeNew(filename, encodeRow(nonce, ciphertext))
}

// GetNode reads the node stored at nodeDir/<hex address>.
func (s *Store) GetNode(address []byte) ([]byte, []byte, error) {
	s.RLock()
	defer s.RUnlock()
	filename := filepath.Join(s.nodeDir, hex.EncodeToString(address))
	b, err := readFile(filename)
	if err != nil {
		return nil, nil, err
	}
	return decodeRow(b)
}

// fileRow bundles ciphertext and encName with a length prefix on ciphertext
// so the two can be split back apart.
func encodeFileRow(nonce, ciphertext, encName []byte) []byte {
	rest := make([]byte, 4+len(ciphertext)+len(encName))
	binary.BigEndian.PutUint32(rest[:4], uint32(len(ciphertext)))
	copy(rest[4:], ciphertext)
	copy(rest[4+len(ciphertext):], encName)
	return encodeRow(nonce, rest)
}

func decodeFileRow(b []byte) (nonce, ciphertext, encName []byte, err error) {
	nonce, rest, err := decodeRow(b)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(rest) < 4 {
		return nil, nil, nil, fmt.Errorf("local: truncated file row")
	}
	n := int(binary.BigEndian.Uint32(rest[:4]))
	if len(rest) < 4+n {
		return nil, nil, nil, fmt.Errorf("local: truncated file row")
	}
	return nonce, rest[4 : 4+n], rest[4+n:], nil
}

// PutFile writes a file record to fileDir/<hex file id>.
func (s *Store) PutFile(fileID, nonce, ciphertext, encName []byte) error {
	s.Lock()
	defer s.Unlock()
	filename := filepath.Join(s.fileDir, hex.EncodeToString(fileID))
	return writeNew(filename, encodeFileRow(nonce, ciphertext, encName))
}

// GetFile reads the file record stored at fileDir/<hex file id>.
func (s *Store) GetFile(fileID []byte) ([]byte, []byte, []byte, error) {
	s.RLock()
	defer s.RUnlock()
	filename := filepath.Join(s.fileDir, hex.EncodeToString(fileID))
	b, err := readFile(filename)
	if err != nil {
		return nil, nil, nil, err
	}
	return decodeFileRow(b)
}
