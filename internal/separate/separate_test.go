package separate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	pkgerrors "github.com/pforret/stemmogram/internal/errors"
	"github.com/pforret/stemmogram/internal/stem"
)

func writeStemTree(t *testing.T, sepDir, track string, stems []stem.Stem) {
	t.Helper()
	dir := filepath.Join(sepDir, Model, track)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, s := range stems {
		if err := os.WriteFile(filepath.Join(dir, s.WAVName()), []byte("RIFF"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestLocate_AllStems(t *testing.T) {
	sepDir := t.TempDir()
	all := stem.All()
	writeStemTree(t, sepDir, "song", all[:])

	paths, err := Locate(sepDir, "/music/song.mp3")
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if len(paths) != stem.Count {
		t.Fatalf("got %d stems, want %d", len(paths), stem.Count)
	}
	for _, s := range all {
		if filepath.Base(paths[s]) != s.WAVName() {
			t.Errorf("%s path = %q", s, paths[s])
		}
	}
}

func TestLocate_MissingStemIsSeparationFailed(t *testing.T) {
	sepDir := t.TempDir()
	writeStemTree(t, sepDir, "song", []stem.Stem{stem.Vocals, stem.Bass, stem.Drums}) // no "other"

	_, err := Locate(sepDir, "/music/song.mp3")
	if err == nil {
		t.Fatal("Locate with a missing stem must fail")
	}

	var se *pkgerrors.StageError
	if !errors.As(err, &se) || se.Kind != pkgerrors.KindSeparation {
		t.Errorf("error kind = %v, want SeparationFailed", pkgerrors.KindOf(err))
	}
}
