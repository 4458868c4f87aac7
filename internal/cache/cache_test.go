package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pforret/stemmogram/internal/config"
	"github.com/pforret/stemmogram/internal/logger"
	"github.com/pforret/stemmogram/internal/stem"
)

func testKey(id string) Key {
	return Key{
		CacheID: id,
		Stem:    stem.Bass,
		Mode:    config.ModeSpectrogram,
		Scale:   config.ScaleLog,
		Palette: config.PaletteSimple,
	}
}

func writeArtifact(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestKeyHash_Deterministic(t *testing.T) {
	a := testKey("song").Hash()
	b := testKey("song").Hash()
	if a != b {
		t.Errorf("same key hashed differently: %s vs %s", a, b)
	}

	// Any component change must change the hash.
	variants := []Key{
		{CacheID: "other", Stem: stem.Bass, Mode: config.ModeSpectrogram, Scale: config.ScaleLog, Palette: config.PaletteSimple},
		{CacheID: "song", Stem: stem.Drums, Mode: config.ModeSpectrogram, Scale: config.ScaleLog, Palette: config.PaletteSimple},
		{CacheID: "song", Stem: stem.Bass, Mode: config.ModeWaveform, Scale: config.ScaleLog, Palette: config.PaletteSimple},
		{CacheID: "song", Stem: stem.Bass, Mode: config.ModeSpectrogram, Scale: config.ScaleCbrt, Palette: config.PaletteSimple},
		{CacheID: "song", Stem: stem.Bass, Mode: config.ModeSpectrogram, Scale: config.ScaleLog, Palette: config.PaletteOcean},
	}
	for _, v := range variants {
		if v.Hash() == a {
			t.Errorf("key %+v collides with base key", v)
		}
	}
}

func TestStoreLookup_RoundTrip(t *testing.T) {
	c, err := New(t.TempDir(), logger.Nop())
	if err != nil {
		t.Fatal(err)
	}

	src := writeArtifact(t, t.TempDir(), "strip.png", "fake png bytes")
	key := testKey("song")

	stored, err := c.Store(key, src)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	got, ok := c.Lookup(key)
	if !ok {
		t.Fatal("Lookup after Store missed")
	}
	if got != stored {
		t.Errorf("Lookup = %q, want %q", got, stored)
	}

	data, err := os.ReadFile(got)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "fake png bytes" {
		t.Errorf("cached content = %q", data)
	}

	// No partial temp files may remain beside the slot.
	entries, err := os.ReadDir(filepath.Dir(stored))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".partial-") {
			t.Errorf("leftover partial file: %s", e.Name())
		}
	}
}

// TestLookup_DifferentCacheID documents the deliberate decoupling of cache
// identity from audio content: the same underlying audio under a different
// cache-id is always a miss.
func TestLookup_DifferentCacheID(t *testing.T) {
	c, err := New(t.TempDir(), logger.Nop())
	if err != nil {
		t.Fatal(err)
	}

	src := writeArtifact(t, t.TempDir(), "strip.png", "artifact")
	if _, err := c.Store(testKey("id-one"), src); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Lookup(testKey("id-two")); ok {
		t.Error("lookup under a different cache-id must miss")
	}
}

func TestLookup_EmptyEntryIsMiss(t *testing.T) {
	c, err := New(t.TempDir(), logger.Nop())
	if err != nil {
		t.Fatal(err)
	}

	key := testKey("song")
	slot := c.StripPath(key)
	if err := os.MkdirAll(filepath.Dir(slot), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(slot, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Lookup(key); ok {
		t.Error("zero-byte cache entry should be treated as a miss")
	}
}

func TestStemRoundTrip(t *testing.T) {
	c, err := New(t.TempDir(), logger.Nop())
	if err != nil {
		t.Fatal(err)
	}

	src := writeArtifact(t, t.TempDir(), "vocals.wav", "RIFF....")
	if _, err := c.StoreStem("song", stem.Vocals, src); err != nil {
		t.Fatal(err)
	}

	path, ok := c.LookupStem("song", stem.Vocals)
	if !ok {
		t.Fatal("LookupStem missed after StoreStem")
	}
	if filepath.Base(path) != "vocals.wav" {
		t.Errorf("stem slot = %q, want vocals.wav basename", path)
	}

	if _, ok := c.LookupStem("song", stem.Drums); ok {
		t.Error("unseparated stem should miss")
	}
}
