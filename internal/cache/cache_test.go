package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spotUP/DEViLBOX-sub001/internal/song"
)

func testSong(name string) *song.Song {
	p := song.NewPattern(0, 64, 4)
	p.Channels[0].Cells[0].Note = 13
	return &song.Song{
		Name:          name,
		Format:        "mod",
		Channels:      4,
		Tempo:         125,
		Speed:         6,
		Patterns:      []*song.Pattern{p},
		SongPositions: []int{0},
	}
}

func TestKeyForBytes(t *testing.T) {
	a := KeyForBytes([]byte("one"))
	b := KeyForBytes([]byte("two"))

	if a == b {
		t.Error("distinct content produced the same key")
	}
	if a != KeyForBytes([]byte("one")) {
		t.Error("key is not deterministic")
	}
	if len(a) != len("mod_")+16 {
		t.Errorf("key length = %d", len(a))
	}
	if a[:4] != "mod_" {
		t.Errorf("key prefix = %q", a[:4])
	}
}

func TestKeyForFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "axelf.mod")
	if err := os.WriteFile(path, []byte("module bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	key, err := KeyForFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if key != KeyForBytes([]byte("module bytes")) {
		t.Error("file key does not match content key")
	}

	if _, err := KeyForFile(filepath.Join(dir, "missing.mod")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestPutGet(t *testing.T) {
	c, err := NewSongCacheIn(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	key := KeyForBytes([]byte("fixture"))
	if _, ok := c.Get(key); ok {
		t.Fatal("hit on empty cache")
	}

	rec := &Record{SourceFile: "axelf.mod", Format: "mod", Song: testSong("axel f")}
	if err := c.Put(key, rec); err != nil {
		t.Fatal(err)
	}
	if rec.Version != 1 {
		t.Errorf("first version = %d, want 1", rec.Version)
	}

	got, ok := c.Get(key)
	if !ok {
		t.Fatal("miss after put")
	}
	if got.Format != "mod" || got.SourceFile != "axelf.mod" {
		t.Errorf("record = %+v", got)
	}
	if got.Song == nil || got.Song.Name != "axel f" {
		t.Error("song did not round-trip")
	}
	if got.Song.Patterns[0].Channels[0].Cells[0].Note != 13 {
		t.Error("pattern data did not round-trip")
	}
}

func TestHistoryVersions(t *testing.T) {
	c, err := NewSongCacheIn(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	key := KeyForBytes([]byte("fixture"))
	for _, name := range []string{"first", "second", "third"} {
		rec := &Record{SourceFile: "x.mod", Format: "mod", Song: testSong(name)}
		if err := c.Put(key, rec); err != nil {
			t.Fatal(err)
		}
	}

	history, err := c.History(key)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	for i, rec := range history {
		if rec.Version != i+1 {
			t.Errorf("history[%d].Version = %d", i, rec.Version)
		}
	}

	latest, ok := c.Get(key)
	if !ok {
		t.Fatal("miss after three puts")
	}
	if latest.Song.Name != "third" {
		t.Errorf("latest song = %q, want %q", latest.Song.Name, "third")
	}
}

func TestVersionMismatchInvalidates(t *testing.T) {
	c, err := NewSongCacheIn(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	key := KeyForBytes([]byte("fixture"))
	rec := &Record{SourceFile: "x.mod", Format: "mod", Song: testSong("x")}
	if err := c.Put(key, rec); err != nil {
		t.Fatal(err)
	}

	versionPath := filepath.Join(c.Dir(key), ".version")
	if err := os.WriteFile(versionPath, []byte("stale"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Get(key); ok {
		t.Error("stale schema version still hit")
	}
}

func TestClearAndSize(t *testing.T) {
	c, err := NewSongCacheIn(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	for _, content := range []string{"a", "b"} {
		rec := &Record{SourceFile: content + ".mod", Format: "mod", Song: testSong(content)}
		if err := c.Put(KeyForBytes([]byte(content)), rec); err != nil {
			t.Fatal(err)
		}
	}

	size, count, err := c.Size()
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("entry count = %d, want 2", count)
	}
	if size == 0 {
		t.Error("size = 0 after two puts")
	}

	if err := c.Clear(); err != nil {
		t.Fatal(err)
	}
	size, count, err = c.Size()
	if err != nil {
		t.Fatal(err)
	}
	if size != 0 || count != 0 {
		t.Errorf("after clear: size=%d count=%d", size, count)
	}
}
