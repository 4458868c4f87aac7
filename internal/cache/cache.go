// Package cache is the on-disk, content-addressed store for expensive
// artifacts: separated stem WAVs and rendered strips. Entries are append-only
// and persist across invocations until the cache root is cleared externally.
//
// Keys are derived from the caller-supplied cache-id, not from the audio
// content itself. Two different files processed under the same cache-id will
// collide; that decoupling is deliberate and covered by tests.
package cache

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pforret/stemmogram/internal/config"
	pkgerrors "github.com/pforret/stemmogram/internal/errors"
	"github.com/pforret/stemmogram/internal/logger"
	"github.com/pforret/stemmogram/internal/stem"
	"go.uber.org/zap"
)

// Key identifies one cached strip artifact.
type Key struct {
	CacheID string
	Stem    stem.Stem
	Mode    config.Mode
	Scale   config.Scale
	Palette config.Palette
}

// Hash returns the deterministic digest the key's artifact is stored under.
func (k Key) Hash() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s", k.CacheID, k.Stem, k.Mode, k.Scale, k.Palette)
	return fmt.Sprintf("%x", h.Sum(nil))[:16]
}

// Cache is a directory-backed artifact store. Safe for concurrent readers
// and concurrent writers to distinct keys; writers to the same key are
// serialized by the atomic rename (last one wins with identical content).
type Cache struct {
	root string
	log  *logger.Logger
}

// New opens (creating if needed) the cache at root.
func New(root string, log *logger.Logger) (*Cache, error) {
	if log == nil {
		log = logger.Nop()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache root: %w", err)
	}
	return &Cache{root: root, log: log}, nil
}

// DefaultRoot returns the per-user cache directory.
func DefaultRoot() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "stemmogram")
	}
	return filepath.Join(os.TempDir(), "stemmogram-cache")
}

// StripPath returns the slot path for a strip key.
func (c *Cache) StripPath(k Key) string {
	return filepath.Join(c.root, k.CacheID, "strips", k.Stem.String(), k.Hash()+".png")
}

// StemPath returns the slot path for a separated stem WAV. Separation output
// depends only on the input audio, so the key is (cache-id, stem).
func (c *Cache) StemPath(id string, s stem.Stem) string {
	return filepath.Join(c.root, id, "stems", s.WAVName())
}

// Lookup returns the artifact path for key if present.
func (c *Cache) Lookup(k Key) (string, bool) {
	return c.lookupFile(c.StripPath(k))
}

// LookupStem returns the cached separated WAV for (id, stem) if present.
func (c *Cache) LookupStem(id string, s stem.Stem) (string, bool) {
	return c.lookupFile(c.StemPath(id, s))
}

func (c *Cache) lookupFile(path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return "", false
	}
	if info.Size() == 0 {
		// A zero-byte slot is corrupt; treat as a miss so it gets recomputed.
		c.log.Warn("corrupt cache entry, treating as miss", zap.String("path", path))
		return "", false
	}
	return path, true
}

// Store copies the artifact at srcPath into the slot for key and returns the
// slot path.
func (c *Cache) Store(k Key, srcPath string) (string, error) {
	return c.storeFile(c.StripPath(k), srcPath)
}

// StoreStem copies a separated WAV into its slot.
func (c *Cache) StoreStem(id string, s stem.Stem, srcPath string) (string, error) {
	return c.storeFile(c.StemPath(id, s), srcPath)
}

// storeFile writes to a temp file in the destination directory and renames
// it into place, so concurrent writers never expose a partial artifact and
// readers only ever see complete files.
func (c *Cache) storeFile(dst, src string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache dir: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("failed to open artifact: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".partial-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to copy artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", err
	}

	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to finalize cache entry: %w", err)
	}

	c.log.Debug("stored cache entry", zap.String("path", dst))
	return dst, nil
}

// Corrupt wraps a read failure on a cached artifact. Callers log it and fall
// through to recomputation.
func Corrupt(path string, cause error) error {
	return pkgerrors.New(pkgerrors.KindCacheCorrupt, "cache",
		fmt.Sprintf("unreadable cached artifact %s", path), cause)
}
