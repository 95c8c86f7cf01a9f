// Package cache persists converted songs keyed by the content hash of the
// source module, so re-importing an unchanged file never re-parses it.
// Records are versioned JSON snapshots; bumping the model schema invalidates
// every entry at once.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spotUP/DEViLBOX-sub001/internal/song"
)

// schemaFacets are the model properties a cached record depends on. Changing
// any of them (or adding one) produces a new version hash and invalidates
// existing entries.
var schemaFacets = []string{
	"note-codes 0/1-96/97/98/99",
	"effects-per-cell 8",
	"volume-column value+1",
	"instrument tagged sample/synth",
	"native-blob passthrough",
}

// computedVersion is calculated once from the schema facets.
var computedVersion string

// SongCache manages cached conversion results.
type SongCache struct {
	dir string
}

// Record is one cached conversion.
type Record struct {
	SourceFile string     `json:"source_file"`
	Format     string     `json:"format"`
	Version    int        `json:"version"`
	CreatedAt  time.Time  `json:"created_at"`
	Song       *song.Song `json:"song"`
}

// NewSongCache opens the cache in the repository's .cache directory.
func NewSongCache() (*SongCache, error) {
	cacheDir, err := findRepoCacheDir()
	if err != nil {
		return nil, err
	}
	return NewSongCacheIn(cacheDir)
}

// NewSongCacheIn opens a cache rooted at an explicit directory.
func NewSongCacheIn(dir string) (*SongCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	if computedVersion == "" {
		computedVersion = computeSchemaVersion()
	}
	return &SongCache{dir: dir}, nil
}

// computeSchemaVersion hashes the schema facets into a short version tag.
func computeSchemaVersion() string {
	hasher := sha256.New()
	for _, facet := range schemaFacets {
		hasher.Write([]byte(facet))
		hasher.Write([]byte{'\n'})
	}
	hash := hex.EncodeToString(hasher.Sum(nil))
	return hash[:12]
}

// GetVersion returns the current cache schema version.
func GetVersion() string {
	if computedVersion == "" {
		computedVersion = computeSchemaVersion()
	}
	return computedVersion
}

// findRepoCacheDir finds .cache/songs under the repository root.
func findRepoCacheDir() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working dir: %w", err)
	}

	// Walk up looking for go.mod (repo root marker).
	for {
		if fileExists(filepath.Join(dir, "go.mod")) {
			return filepath.Join(dir, ".cache", "songs"), nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			cwd, _ := os.Getwd()
			return filepath.Join(cwd, ".cache", "songs"), nil
		}
		dir = parent
	}
}

// KeyForBytes generates a cache key from module content.
func KeyForBytes(data []byte) string {
	hash := sha256.Sum256(data)
	return "mod_" + hex.EncodeToString(hash[:])[:16]
}

// KeyForFile generates a cache key from a file's content hash.
func KeyForFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}

	return "mod_" + hex.EncodeToString(hash.Sum(nil))[:16], nil
}

// Get retrieves the latest cached conversion for the given key. A version
// mismatch counts as a miss.
func (c *SongCache) Get(key string) (*Record, bool) {
	cacheSubdir := filepath.Join(c.dir, key)

	info, err := os.Stat(cacheSubdir)
	if err != nil || !info.IsDir() {
		return nil, false
	}

	versionPath := filepath.Join(cacheSubdir, ".version")
	versionData, err := os.ReadFile(versionPath)
	if err != nil || strings.TrimSpace(string(versionData)) != GetVersion() {
		return nil, false
	}

	data, err := os.ReadFile(filepath.Join(cacheSubdir, "song_latest.json"))
	if err != nil {
		return nil, false
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false
	}
	return &rec, true
}

// Put stores a conversion under the key as the next numbered version and
// updates the latest copy.
func (c *SongCache) Put(key string, rec *Record) error {
	cacheSubdir := filepath.Join(c.dir, key)

	if err := os.MkdirAll(cacheSubdir, 0755); err != nil {
		return fmt.Errorf("create cache subdir: %w", err)
	}

	history, _ := c.History(key)
	rec.Version = len(history) + 1
	rec.CreatedAt = time.Now()

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	filename := fmt.Sprintf("song_v%03d.json", rec.Version)
	if err := os.WriteFile(filepath.Join(cacheSubdir, filename), data, 0644); err != nil {
		return fmt.Errorf("write record: %w", err)
	}

	latestPath := filepath.Join(cacheSubdir, "song_latest.json")
	_ = os.Remove(latestPath)
	if err := os.WriteFile(latestPath, data, 0644); err != nil {
		return fmt.Errorf("write latest: %w", err)
	}

	versionPath := filepath.Join(cacheSubdir, ".version")
	if err := os.WriteFile(versionPath, []byte(GetVersion()), 0644); err != nil {
		return fmt.Errorf("write cache version: %w", err)
	}

	return nil
}

// History retrieves all cached conversions for a key, sorted by version.
func (c *SongCache) History(key string) ([]*Record, error) {
	cacheSubdir := filepath.Join(c.dir, key)

	entries, err := os.ReadDir(cacheSubdir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cache dir: %w", err)
	}

	var records []*Record

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, "song_v") || !strings.HasSuffix(name, ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(cacheSubdir, name))
		if err != nil {
			continue
		}

		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		records = append(records, &rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Version < records[j].Version
	})

	return records, nil
}

// Clear removes all cached conversions.
func (c *SongCache) Clear() error {
	return os.RemoveAll(c.dir)
}

// Size returns the total size of cached records in bytes and the entry count.
func (c *SongCache) Size() (int64, int, error) {
	var totalSize int64
	var count int

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, nil
		}
		return 0, 0, err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		count++

		subdir := filepath.Join(c.dir, entry.Name())
		files, _ := os.ReadDir(subdir)
		for _, f := range files {
			info, err := f.Info()
			if err == nil {
				totalSize += info.Size()
			}
		}
	}

	return totalSize, count, nil
}

// Dir returns the cache directory for a key.
func (c *SongCache) Dir(key string) string {
	return filepath.Join(c.dir, key)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
