package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// Direction tags stored files by which way they crossed the bridge.
type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// Store persists attachments under a per-account media directory.
type Store struct {
	baseDir string
}

// NewStore creates a Store rooted at baseDir.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// Save writes fetched content to disk under a direction subdirectory and
// returns the absolute path. Files get uuid names so concurrent saves never
// collide; the original extension is kept when present, otherwise derived
// from the sniffed MIME type.
func (s *Store) Save(fetched *Fetched, direction Direction) (string, error) {
	dir := filepath.Join(s.baseDir, string(direction))
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create media directory: %w", err)
	}

	ext := ""
	if fetched.Filename != "" {
		ext = filepath.Ext(fetched.Filename)
	}
	if ext == "" && fetched.MIME != "" {
		if mt := mimetype.Lookup(fetched.MIME); mt != nil {
			ext = mt.Extension()
		}
	}

	name := uuid.New().String() + strings.ToLower(ext)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, fetched.Data, 0600); err != nil {
		return "", fmt.Errorf("failed to write media file: %w", err)
	}
	return path, nil
}
