// Package store implements the persistence gateway: one indent-formatted,
// human-inspectable JSON (or markdown) document per logical collection,
// re-serialized in full after every mutation. It owns no data; it is a
// stateless serializer invoked by the providers.
package store

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidName is returned when a collection name would escape the
// persist directory.
var ErrInvalidName = errors.New("invalid collection name: directory traversal detected")

// ErrDisabled is returned by Load when no persist directory is configured.
var ErrDisabled = errors.New("persistence disabled")

// Gateway serializes logical collections into a configurable directory.
// A gateway with an empty directory is disabled: Save is a no-op and Load
// reports ErrDisabled, so servers run memory-only.
type Gateway struct {
	dir    string
	logger *log.Logger
}

// New creates a gateway rooted at dir. An empty dir disables persistence.
// The directory is created on first use.
func New(dir string, logger *log.Logger) (*Gateway, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[store] ", log.LstdFlags)
	}
	g := &Gateway{dir: dir, logger: logger}
	if dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Enabled reports whether a persist directory is configured.
func (g *Gateway) Enabled() bool {
	return g.dir != ""
}

// Dir returns the persist directory ("" when disabled).
func (g *Gateway) Dir() string {
	return g.dir
}

// Path resolves a collection file name inside the persist directory,
// rejecting names that would escape it.
func (g *Gateway) Path(name string) (string, error) {
	clean := filepath.Clean(name)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) || strings.ContainsRune(clean, filepath.Separator) {
		return "", ErrInvalidName
	}
	return filepath.Join(g.dir, clean), nil
}

// Save serializes doc as indented JSON to the named collection file.
// The write goes through a temp file and rename, so readers never observe
// a partial document. When persistence is disabled this is a no-op.
func (g *Gateway) Save(name string, doc any) error {
	if !g.Enabled() {
		return nil
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return g.writeFile(name, append(data, '\n'))
}

// SaveText writes a plain text collection (the kanban board renders to
// markdown). Same temp-and-rename discipline as Save.
func (g *Gateway) SaveText(name string, text string) error {
	if !g.Enabled() {
		return nil
	}
	return g.writeFile(name, []byte(text))
}

// Load deserializes the named collection into doc. A missing file is
// reported as os.ErrNotExist so callers can start empty.
func (g *Gateway) Load(name string, doc any) error {
	if !g.Enabled() {
		return ErrDisabled
	}

	path, err := g.Path(name)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path) // #nosec G304 - path validated by Path
	if err != nil {
		return err
	}
	return json.Unmarshal(data, doc)
}

func (g *Gateway) writeFile(name string, data []byte) error {
	path, err := g.Path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(g.dir, 0750); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil { // #nosec G304 - path validated by Path
		return err
	}
	return os.Rename(tmp, path)
}
