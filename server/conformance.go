package server

// This file contains test helper functions. Every backend's test package
// should call all of the public functions here, to reduce duplication and
// ensure uniform behavior across backends — the same role
// github.com/asjoyner/shade/drive/test.go plays for drive.Client
// implementations.

import (
	"bytes"
	"crypto/rand"
	"errors"
	"sync"
	"testing"

	"github.com/dongdongbh/dsse"
)

func randBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// TestNodeRoundTrip puts a node and checks it reads back identically.
func TestNodeRoundTrip(t *testing.T, s Store) {
	addr := randBytes(dsse.AddrSize)
	nonce := randBytes(dsse.NonceSize)
	ct := randBytes(dsse.NodeSize + 16)

	if err := s.PutNode(addr, nonce, ct); err != nil {
		t.Fatalf("PutNode: %s", err)
	}
	gotNonce, gotCT, err := s.GetNode(addr)
	if err != nil {
		t.Fatalf("GetNode: %s", err)
	}
	if !bytes.Equal(gotNonce, nonce) {
		t.Errorf("GetNode nonce = %x, want %x", gotNonce, nonce)
	}
	if !bytes.Equal(gotCT, ct) {
		t.Errorf("GetNode ciphertext = %x, want %x", gotCT, ct)
	}
}

// TestNodeNotFound checks that an unused address reports dsse.ErrNotFound.
func TestNodeNotFound(t *testing.T, s Store) {
	addr := randBytes(dsse.AddrSize)
	if _, _, err := s.GetNode(addr); !errors.Is(err, dsse.ErrNotFound) {
		t.Errorf("GetNode of unused address: err = %v, want dsse.ErrNotFound", err)
	}
}

// TestNodeCollision checks that writing to an occupied address fails with
// dsse.ErrCollision and does not clobber the existing row.
func TestNodeCollision(t *testing.T, s Store) {
	addr := randBytes(dsse.AddrSize)
	nonce := randBytes(dsse.NonceSize)
	ct := randBytes(dsse.NodeSize + 16)
	if err := s.PutNode(addr, nonce, ct); err != nil {
		t.Fatalf("PutNode: %s", err)
	}

	if err := s.PutNode(addr, randBytes(dsse.NonceSize), randBytes(dsse.NodeSize+16)); !errors.Is(err, dsse.ErrCollision) {
		t.Errorf("PutNode of occupied address: err = %v, want dsse.ErrCollision", err)
	}

	gotNonce, gotCT, err := s.GetNode(addr)
	if err != nil {
		t.Fatalf("GetNode after failed collision: %s", err)
	}
	if !bytes.Equal(gotNonce, nonce) || !bytes.Equal(gotCT, ct) {
		t.Errorf("collision attempt clobbered the existing row")
	}
}

// TestFileRoundTrip puts a file record and checks it reads back identically.
func TestFileRoundTrip(t *testing.T, s Store) {
	id := randBytes(16)
	nonce := randBytes(2 * dsse.NonceSize)
	ct := randBytes(1024)
	name := randBytes(48)

	if err := s.PutFile(id, nonce, ct, name); err != nil {
		t.Fatalf("PutFile: %s", err)
	}
	gotNonce, gotCT, gotName, err := s.GetFile(id)
	if err != nil {
		t.Fatalf("GetFile: %s", err)
	}
	if !bytes.Equal(gotNonce, nonce) || !bytes.Equal(gotCT, ct) || !bytes.Equal(gotName, name) {
		t.Errorf("GetFile returned different bytes than PutFile stored")
	}
}

// TestFileNotFound checks that an unused file id reports dsse.ErrNotFound.
func TestFileNotFound(t *testing.T, s Store) {
	id := randBytes(16)
	if _, _, _, err := s.GetFile(id); !errors.Is(err, dsse.ErrNotFound) {
		t.Errorf("GetFile of unused id: err = %v, want dsse.ErrNotFound", err)
	}
}

// TestConcurrentPuts exercises many concurrent PutNode calls to distinct
// addresses, checking the store's linearizability claim: every one must
// succeed and be independently readable afterwards.
func TestConcurrentPuts(t *testing.T, s Store, n int) {
	var wg sync.WaitGroup
	addrs := make([][]byte, n)
	for i := range addrs {
		addrs[i] = randBytes(dsse.AddrSize)
	}
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.PutNode(addrs[i], randBytes(dsse.NonceSize), randBytes(dsse.NodeSize+16)); err != nil {
				t.Errorf("concurrent PutNode %d: %s", i, err)
			}
		}(i)
	}
	wg.Wait()
	for i, a := range addrs {
		if _, _, err := s.GetNode(a); err != nil {
			t.Errorf("GetNode %d after concurrent puts: %s", i, err)
		}
	}
}
