// Package client implements the orchestrating half of the protocol: it
// owns the per-keyword head table, performs Update, Search, UploadFile, and
// RetrieveFile, and persists its own state to a local file. Its
// update critical section and its retry-on-read-failure behavior are
// grounded on github.com/asjoyner/shade: the single-mutex-per-client
// pattern of drive/local.Drive, and the github.com/cenk/backoff retry used
// by drive/amazon/endpoint.go.
package client

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenk/backoff"
	"github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/dongdongbh/dsse"
	"github.com/dongdongbh/dsse/crypto"
	"github.com/dongdongbh/dsse/server"
)

// Head identifies the newest node of one keyword's chain.
type Head struct {
	Key  []byte // 32 bytes
	Addr []byte // 32 bytes
}

// Record is one decrypted chain entry, as returned by Search.
type Record struct {
	DocID   []byte
	FileKey []byte
}

// Client owns the heads map and serializes its update critical section
// behind a single mutex — coarser than a per-keyword lock, but
// linearizable and simple, matching the single sync.RWMutex
// drive/local.Drive holds across its whole backing directory rather than
// one lock per file.
type Client struct {
	mu    sync.Mutex
	heads map[string]Head // keyed by raw keyword bytes
	store StateStore

	// retry governs how Search retries GetNode calls on dsse.ErrIO.
	// RetrieveFile takes no Client and uses defaultRetry instead.
	// It is cloned per call, per backoff.BackOff's single-use contract.
	retry func() backoff.BackOff
}

// New returns a Client whose head table is loaded from store. A store with
// no prior state is treated as an empty head table: every keyword starts
// absent, with no chain of its own yet.
func New(store StateStore) (*Client, error) {
	heads, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("client: %w: %s", dsse.ErrState, err)
	}
	return &Client{
		heads: heads,
		store: store,
		retry: defaultRetry,
	}, nil
}

// defaultRetry is the backoff policy used for retrying a transient
// dsse.ErrIO on a read path: exponential backoff capped at 10 seconds of
// total elapsed time before giving up and surfacing the error. It is a
// package variable, rather than a plain function, so tests can swap in a
// faster policy without waiting out the real backoff schedule.
var defaultRetry = func() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 10 * time.Second
	return b
}

// getNodeRetry wraps server.GetNode with exponential backoff, since a
// transient dsse.ErrIO read failure is safe to retry — unlike a write.
func getNodeRetry(s server.Store, address []byte, retry func() backoff.BackOff) (nonce, ciphertext []byte, err error) {
	op := func() error {
		var opErr error
		nonce, ciphertext, opErr = s.GetNode(address)
		if isRetryable(opErr) {
			return opErr
		}
		if opErr != nil {
			return backoff.Permanent(opErr)
		}
		return nil
	}
	if err := backoff.Retry(op, retry()); err != nil {
		if pe, ok := err.(*backoff.PermanentError); ok {
			return nil, nil, pe.Err
		}
		return nil, nil, err
	}
	return nonce, ciphertext, nil
}

func getFileRetry(s server.Store, fileID []byte, retry func() backoff.BackOff) (nonce, ciphertext, encName []byte, err error) {
	op := func() error {
		var opErr error
		nonce, ciphertext, encName, opErr = s.GetFile(fileID)
		if isRetryable(opErr) {
			return opErr
		}
		if opErr != nil {
			return backoff.Permanent(opErr)
		}
		return nil
	}
	if err := backoff.Retry(op, retry()); err != nil {
		if pe, ok := err.(*backoff.PermanentError); ok {
			return nil, nil, nil, pe.Err
		}
		return nil, nil, nil, err
	}
	return nonce, ciphertext, encName, nil
}

func isRetryable(err error) bool {
	return err != nil && errors.Is(err, dsse.ErrIO) && !errors.Is(err, dsse.ErrNotFound)
}

// Update prepends a new node to keyword's chain. The node's key and nonce
// are fresh random samples; the resulting address is unlinkable to any past
// operation without them, which is the source of forward privacy.
//
// Step ordering is load-bearing: the head is only advanced after
// s.PutNode succeeds. A crash between the two leaves one harmless orphan
// node on the server; a crash before PutNode loses the update entirely.
// Neither leaves the chain inconsistent.
func (c *Client) Update(s server.Store, keyword, docID, fileKey []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.update(s, keyword, docID, fileKey)
}

func (c *Client) update(s server.Store, keyword, docID, fileKey []byte) error {
	nodeKey, err := crypto.RandomBytes(dsse.KeySize)
	if err != nil {
		return err
	}
	nonce, err := crypto.RandomBytes(dsse.NonceSize)
	if err != nil {
		return err
	}
	addr := crypto.Address(nodeKey)

	prev, hadPrev := c.heads[string(keyword)]
	node := &dsse.Node{DocID: docID, FileKey: fileKey}
	if hadPrev {
		node.PrevKey = prev.Key
		node.PrevAddr = prev.Addr
	}

	plaintext, err := node.Encode()
	if err != nil {
		return fmt.Errorf("client: %s", err)
	}
	ciphertext, err := crypto.Seal(nodeKey, nonce, plaintext, addr)
	if err != nil {
		return fmt.Errorf("client: %s", err)
	}

	if err := s.PutNode(addr, nonce, ciphertext); err != nil {
		return fmt.Errorf("client: update: %w", err)
	}

	c.heads[string(keyword)] = Head{Key: nodeKey, Addr: addr}
	if err := c.store.Save(c.heads); err != nil {
		return fmt.Errorf("client: %w: %s", dsse.ErrState, err)
	}
	glog.V(1).Infof("client: update: keyword rotated, chain head now %x", addr)
	return nil
}

// Search walks keyword's chain from the head, newest-first, decrypting
// every node along the way. An absent keyword returns an empty result with
// no server call. A broken link (dsse.ErrNotFound) or a forged/corrupted
// node (dsse.ErrAuth) stops the walk but does not discard records already
// decrypted — only the tail of the walk is lost.
func (c *Client) Search(s server.Store, keyword []byte) ([]Record, error) {
	c.mu.Lock()
	head, ok := c.heads[string(keyword)]
	c.mu.Unlock()
	if !ok {
		return nil, nil
	}

	var records []Record
	key, addr := head.Key, head.Addr
	for {
		nonce, ciphertext, err := getNodeRetry(s, addr, c.retry)
		if errors.Is(err, dsse.ErrNotFound) {
			return records, fmt.Errorf("client: search: %w", dsse.ErrChainBroken)
		}
		if err != nil {
			return records, fmt.Errorf("client: search: %w", err)
		}

		plaintext, err := crypto.Open(key, nonce, ciphertext, addr)
		if err != nil {
			return records, fmt.Errorf("client: search: %w", dsse.ErrChainCorrupt)
		}
		node, err := dsse.DecodeNode(plaintext)
		if err != nil {
			return records, fmt.Errorf("client: search: %w: %s", dsse.ErrChainCorrupt, err)
		}

		records = append(records, Record{DocID: node.DocID, FileKey: node.FileKey})
		if node.IsTail() {
			break
		}
		key, addr = node.PrevKey, node.PrevAddr
	}
	return records, nil
}

// UploadFile encrypts fileBytes and fileName under a fresh per-file key,
// stores the ciphertext under a random file id, and links that id into
// keyword's chain by embedding the file key in the new node's plaintext.
// The chain node is the only bearer credential for the file: compromising
// one file's key reveals nothing about any other file.
func (c *Client) UploadFile(s server.Store, keyword, fileBytes, fileName []byte) (fileID []byte, err error) {
	fileKey, err := crypto.RandomBytes(dsse.KeySize)
	if err != nil {
		return nil, err
	}
	id := uuid.New() // version-4 UUID: 16 bytes (122 random bits), matching the node layout's file id width
	fileID = id[:]
	nonceF, err := crypto.RandomBytes(dsse.NonceSize)
	if err != nil {
		return nil, err
	}
	nonceN, err := crypto.RandomBytes(dsse.NonceSize)
	if err != nil {
		return nil, err
	}

	ctFile, err := crypto.Seal(fileKey, nonceF, fileBytes, fileID)
	if err != nil {
		return nil, fmt.Errorf("client: upload: %s", err)
	}
	ctName, err := crypto.Seal(fileKey, nonceN, fileName, append(append([]byte{}, fileID...), "name"...))
	if err != nil {
		return nil, fmt.Errorf("client: upload: %s", err)
	}

	combinedNonce := append(append([]byte{}, nonceF...), nonceN...)
	if err := s.PutFile(fileID, combinedNonce, ctFile, ctName); err != nil {
		return nil, fmt.Errorf("client: upload: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.update(s, keyword, fileID, fileKey); err != nil {
		return nil, err
	}
	return fileID, nil
}

// RetrieveFile looks up the file record named by fileID and, given the file
// key recovered from a successful Search, decrypts both the file's bytes
// and its original name.
func RetrieveFile(s server.Store, fileID, fileKey []byte) (fileName, fileBytes []byte, err error) {
	nonce, ctFile, ctName, err := getFileRetry(s, fileID, defaultRetry)
	if err != nil {
		return nil, nil, fmt.Errorf("client: retrieve: %w", err)
	}
	if len(nonce) != 2*dsse.NonceSize {
		return nil, nil, fmt.Errorf("client: retrieve: malformed nonce pair (%d bytes)", len(nonce))
	}
	nonceF, nonceN := nonce[:dsse.NonceSize], nonce[dsse.NonceSize:]

	fileBytes, err = crypto.Open(fileKey, nonceF, ctFile, fileID)
	if err != nil {
		return nil, nil, fmt.Errorf("client: retrieve: %w", dsse.ErrAuth)
	}
	fileName, err = crypto.Open(fileKey, nonceN, ctName, append(append([]byte{}, fileID...), "name"...))
	if err != nil {
		return nil, nil, fmt.Errorf("client: retrieve: %w", dsse.ErrAuth)
	}
	return fileName, fileBytes, nil
}
