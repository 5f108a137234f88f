// Package config reads the JSON configuration file that tells
// cmd/dssectl which server backend to talk to and where to keep the
// client's local state. Grounded on github.com/asjoyner/shade/config,
// which plays the same role for shade's list of drive.Config backends.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/dongdongbh/dsse/server"

	// Blank-imported so every backend registers itself with server.Open
	// before a Config naming it is read by a caller of this package.
	_ "github.com/dongdongbh/dsse/server/fail"
	_ "github.com/dongdongbh/dsse/server/local"
	_ "github.com/dongdongbh/dsse/server/memory"
	_ "github.com/dongdongbh/dsse/server/postgres"
)

// Config is the top-level shape of dssectl's config file.
type Config struct {
	Server    server.Config `json:"server"`
	StatePath string        `json:"statePath"`
}

// Read finds, reads, and parses the config at path.
func Read(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %s", path, err)
	}
	return parseConfig(b)
}

// parseConfig is broken out primarily to test unmarshaling of various
// example configuration documents.
func parseConfig(b []byte) (*Config, error) {
	var c Config
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("json unmarshal error: %s", err)
	}
	if c.Server.Provider == "" {
		return nil, fmt.Errorf("config: no server.provider specified")
	}
	if c.StatePath == "" {
		c.StatePath = filepath.Join(DefaultDir(), "state.json")
	}
	return &c, nil
}

// DefaultPath identifies the default location of the config file on
// various operating systems, mirroring shade's configPath().
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.json")
}

// DefaultDir identifies the correct directory to store dssectl's
// persistent data on various operating systems.
func DefaultDir() string {
	dir := "."
	switch runtime.GOOS {
	case "darwin":
		dir = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "dsse")
	case "linux", "freebsd":
		dir = filepath.Join(os.Getenv("HOME"), ".dsse")
	default:
		fmt.Fprintf(os.Stderr, "config: no default directory convention for GOOS %q, using %q\n", runtime.GOOS, dir)
	}
	return dir
}

// Open reads the config at path and opens the server.Store it names.
func Open(path string) (*Config, server.Store, error) {
	c, err := Read(path)
	if err != nil {
		return nil, nil, err
	}
	s, err := server.Open(c.Server)
	if err != nil {
		return nil, nil, fmt.Errorf("opening server %q: %s", c.Server.Provider, err)
	}
	return c, s, nil
}
