// Package cache implements the content-hash-keyed file cache: one manifest
// plus one file per cached fragment, under a per-project directory,
// replaced atomically and serialized across concurrent writers by
// advisory file locks.
package cache

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/wenkaifan0720/code-context-sub001/internal/semerr"
	"github.com/wenkaifan0720/code-context-sub001/internal/semindex"
)

// Fragment is the semantic output for one source file: its content hash,
// modification time, and the Semantic Index rows it contributed.
type Fragment struct {
	Path        string
	ContentHash string
	ModTime     time.Time
	Index       *semindex.Index
}

type manifest struct {
	AnalyzerVersion string    `json:"analyzer_version"`
	ProjectID       string    `json:"project_id"`
	CreatedAt       time.Time `json:"created_at"`
}

// Cache is a content-addressed file cache rooted at Dir, keyed by
// (project_id, language, analyzer_version, file_path) via the manifest's
// analyzer_version/project_id and a per-call language/path.
type Cache struct {
	Dir             string
	ProjectID       string
	AnalyzerVersion string
}

// Open opens (or initializes) the cache directory at dir. If an existing
// manifest records a different analyzer_version, the entire cache is
// invalidated: every *.bin file under dir is removed and a fresh manifest
// is written (spec §4.D, §9 open question: any inequality invalidates).
func Open(dir, projectID, analyzerVersion string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, semerr.Cache("create cache directory", err)
	}
	c := &Cache{Dir: dir, ProjectID: projectID, AnalyzerVersion: analyzerVersion}

	manifestPath := filepath.Join(dir, "manifest.json")
	existing, err := readManifest(manifestPath)
	switch {
	case err == nil:
		if existing.AnalyzerVersion != analyzerVersion || existing.ProjectID != projectID {
			if err := c.wipe(); err != nil {
				return nil, err
			}
			if err := c.writeManifest(manifestPath); err != nil {
				return nil, err
			}
		}
	case os.IsNotExist(err):
		if err := c.writeManifest(manifestPath); err != nil {
			return nil, err
		}
	default:
		// Corrupt manifest: treat as a one-shot wholesale rebuild (spec §7).
		if err := c.wipe(); err != nil {
			return nil, err
		}
		if err := c.writeManifest(manifestPath); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func readManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}

func (c *Cache) writeManifest(path string) error {
	m := manifest{AnalyzerVersion: c.AnalyzerVersion, ProjectID: c.ProjectID, CreatedAt: time.Now()}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return semerr.Cache("encode manifest", err)
	}
	return atomicWrite(path, data)
}

func (c *Cache) wipe() error {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		return semerr.Cache("list cache directory", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".bin" {
			os.Remove(filepath.Join(c.Dir, e.Name()))
		}
	}
	return nil
}

// keyPath returns the on-disk path for the cache entry identified by
// language and file path.
func (c *Cache) keyPath(language, path string) string {
	h := sha1.Sum([]byte(c.ProjectID + "\x00" + c.AnalyzerVersion + "\x00" + language + "\x00" + path))
	return filepath.Join(c.Dir, hex.EncodeToString(h[:])+".bin")
}

// HashContent returns the sha256 hex digest of the given file content.
func HashContent(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}

// Load returns the cached Fragment for (language, path) if its stored
// content hash matches contentHash; otherwise it is a cache miss.
func (c *Cache) Load(language, path, contentHash string) (*Fragment, bool) {
	f, err := os.Open(c.keyPath(language, path))
	if err != nil {
		return nil, false
	}
	defer f.Close()

	var entry gobEntry
	if err := gob.NewDecoder(f).Decode(&entry); err != nil {
		return nil, false
	}
	if entry.ContentHash != contentHash {
		return nil, false
	}
	return &Fragment{
		Path:        path,
		ContentHash: entry.ContentHash,
		ModTime:     entry.ModTime,
		Index:       entry.Index,
	}, true
}

// gobEntry is the on-disk encoding of a cached Fragment.
type gobEntry struct {
	ContentHash string
	ModTime     time.Time
	Index       *semindex.Index
}

// Store persists frag under its content hash key, replacing any existing
// entry atomically (temp file + rename). Concurrent writers to the same
// key are serialized by an advisory lock file; a writer that cannot
// acquire the lock retries once after a short delay, then skips the
// write entirely (the cache is an optimization, never authoritative).
func (c *Cache) Store(language string, frag *Fragment) error {
	key := c.keyPath(language, frag.Path)
	unlock, ok := c.acquireLock(key)
	if !ok {
		return nil
	}
	defer unlock()

	var buf fileBuffer
	if err := gob.NewEncoder(&buf).Encode(gobEntry{
		ContentHash: frag.ContentHash,
		ModTime:     frag.ModTime,
		Index:       frag.Index,
	}); err != nil {
		return semerr.Cache("encode fragment "+frag.Path, err)
	}
	return atomicWrite(key, buf.Bytes())
}

func (c *Cache) acquireLock(key string) (unlock func(), ok bool) {
	lockPath := key + ".lock"
	if tryLock(lockPath) {
		return func() { os.Remove(lockPath) }, true
	}
	time.Sleep(20 * time.Millisecond)
	if tryLock(lockPath) {
		return func() { os.Remove(lockPath) }, true
	}
	return nil, false
}

func tryLock(lockPath string) bool {
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// atomicWrite writes data to a sibling temp file then renames it over path.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return semerr.Cache("create temp file", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return semerr.Cache("write temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return semerr.Cache("close temp file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return semerr.Cache("rename into place", err)
	}
	return nil
}

// fileBuffer is a minimal io.Writer/Bytes buffer (avoids pulling in
// bytes.Buffer's full API surface for this single use).
type fileBuffer struct {
	data []byte
}

func (b *fileBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *fileBuffer) Bytes() []byte { return b.data }

var _ io.Writer = (*fileBuffer)(nil)
