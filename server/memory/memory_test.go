package memory

import (
	"testing"

	"github.com/dongdongbh/dsse/server"
)

func TestMemoryStore(t *testing.T) {
	s, err := NewStore(server.Config{})
	if err != nil {
		t.Fatalf("NewStore: %s", err)
	}
	server.TestNodeRoundTrip(t, s)
	server.TestNodeNotFound(t, s)
	server.TestNodeCollision(t, s)
	server.TestFileRoundTrip(t, s)
	server.TestFileNotFound(t, s)
	server.TestConcurrentPuts(t, s, 200)
}

func TestMemoryStoreEviction(t *testing.T) {
	s, err := NewStore(server.Config{MaxNodes: 2, MaxFiles: 2})
	if err != nil {
		t.Fatalf("NewStore: %s", err)
	}
	addrs := [][]byte{{1}, {2}, {3}}
	for i, a := range addrs {
		addr := make([]byte, 32)
		addr[0] = a[0]
		if err := s.PutNode(addr, make([]byte, 12), make([]byte, 32)); err != nil {
			t.Fatalf("PutNode %d: %s", i, err)
		}
	}
	// The first address should have been evicted once the third was added.
	first := make([]byte, 32)
	first[0] = 1
	if _, _, err := s.GetNode(first); err == nil {
		t.Errorf("expected oldest node to be evicted once MaxNodes was exceeded")
	}
}
