package client

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dongdongbh/dsse"
)

// StateStore loads and persists a Client's head table. FileStore is the
// normative implementation; tests may supply a trivial in-memory one.
type StateStore interface {
	Load() (map[string]Head, error)
	Save(map[string]Head) error
}

// stateFile is the on-disk JSON shape of the client state file: keyword is
// hex-encoded so that arbitrary byte strings — including ones with embedded
// NUL or invalid UTF-8 — survive the round trip unchanged.
type stateFile struct {
	Heads map[string]encodedHead `json:"heads"`
}

type encodedHead struct {
	HeadKey  string `json:"head_key"`
	HeadAddr string `json:"head_addr"`
}

// FileStore persists the head table to a single JSON file, written
// atomically (temp file + rename) so a crash mid-write never leaves a torn
// file behind. Grounded on github.com/asjoyner/shade/config.Read's
// read-whole-file-then-json.Unmarshal idiom, with the write half added.
type FileStore struct {
	Path string
}

// Load reads and parses the state file. A missing file is not an error: it
// denotes a brand new client with every keyword absent and no chain of its
// own yet.
func (f FileStore) Load() (map[string]Head, error) {
	heads := make(map[string]Head)
	b, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		return heads, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %q: %s", f.Path, err)
	}

	var sf stateFile
	if err := json.Unmarshal(b, &sf); err != nil {
		return nil, fmt.Errorf("parsing %q: %s", f.Path, err)
	}
	for hexKeyword, eh := range sf.Heads {
		keyword, err := hex.DecodeString(hexKeyword)
		if err != nil {
			return nil, fmt.Errorf("%q: keyword %q is not valid hex", f.Path, hexKeyword)
		}
		key, err := hex.DecodeString(eh.HeadKey)
		if err != nil || len(key) != dsse.KeySize {
			return nil, fmt.Errorf("%q: malformed head_key for keyword %q", f.Path, hexKeyword)
		}
		addr, err := hex.DecodeString(eh.HeadAddr)
		if err != nil || len(addr) != dsse.AddrSize {
			return nil, fmt.Errorf("%q: malformed head_addr for keyword %q", f.Path, hexKeyword)
		}
		heads[string(keyword)] = Head{Key: key, Addr: addr}
	}
	return heads, nil
}

// Save serializes heads and writes it to f.Path atomically: it writes to a
// temp file in the same directory, then renames it over the target. The
// rename is what makes a crash mid-write harmless — readers only ever see
// the old file or the fully-written new one, never a partial write.
func (f FileStore) Save(heads map[string]Head) error {
	sf := stateFile{Heads: make(map[string]encodedHead, len(heads))}
	for keyword, h := range heads {
		sf.Heads[hex.EncodeToString([]byte(keyword))] = encodedHead{
			HeadKey:  hex.EncodeToString(h.Key),
			HeadAddr: hex.EncodeToString(h.Addr),
		}
	}
	b, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling state: %s", err)
	}

	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating %q: %s", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp state file: %s", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp state file: %s", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp state file: %s", err)
	}
	if err := os.Rename(tmpName, f.Path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp state file into place: %s", err)
	}
	return nil
}

// MemoryStore is a StateStore that never touches disk. It exists for tests
// that want a Client without a filesystem dependency.
type MemoryStore struct {
	heads map[string]Head
}

func (m *MemoryStore) Load() (map[string]Head, error) {
	if m.heads == nil {
		return make(map[string]Head), nil
	}
	out := make(map[string]Head, len(m.heads))
	for k, v := range m.heads {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryStore) Save(heads map[string]Head) error {
	m.heads = make(map[string]Head, len(heads))
	for k, v := range heads {
		m.heads[k] = v
	}
	return nil
}
