// Package cache stores per-module analysis records keyed by content
// hash, in memory and on disk. No compiler stage consults it: the loader
// lexes and parses every module again on every run. Grounded on the
// teacher's internal/driver module-cache
// pair: modulecache.go's in-memory ModuleCache (keyed by content hash,
// invalidated on mismatch) and dcache.go's msgpack-backed DiskCache
// (atomic temp-file-then-rename writes, XDG_CACHE_HOME layout).
//
// Unlike dcache.go's DiskPayload, Record never carries spans: a Span's
// FileID is only meaningful within the FileSet that issued it, and a
// fresh process building a fresh FileSet on every run would assign
// different FileIDs to the same path — so, like diskPayloadToModule,
// anything span-shaped is dropped to a plain line/col pair on the way
// into the cache.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Digest is a content hash, used both as the disk cache's filename and
// as the invalidation key for the in-memory cache.
type Digest [32]byte

// HashBytes hashes a module's raw file content.
func HashBytes(content []byte) Digest {
	return sha256.Sum256(content)
}

// CachedDiagnostic is a diagnostic reduced to what survives a
// cross-process round trip: no FileID, no byte-offset span.
type CachedDiagnostic struct {
	Severity string
	Code     string
	Message  string
	Line     uint32
	Col      uint32
}

// schemaVersion guards against decoding a Record shape from a previous
// version of this package; bump it whenever Record's fields change.
const schemaVersion uint16 = 1

// Record is one module's cached analysis outcome: enough to skip
// re-running the front end, never enough to skip re-running codegen
// (codegen depends on the whole program's grounded scenario, not just
// one module's shape).
type Record struct {
	Schema uint16

	Path        string
	Dir         string
	ContentHash Digest

	Imports []string

	ProblemNames []string
	ParamNames   []string

	Broken           bool
	FirstDiagnostic  *CachedDiagnostic
	DiagnosticsCount int
}

// MemCache is a per-process, in-memory front end to the disk cache,
// grounded on modulecache.go's ModuleCache.
type MemCache struct {
	mu    sync.RWMutex
	byKey map[string]Record
}

// NewMemCache creates a MemCache with a capacity hint.
func NewMemCache(capHint int) *MemCache {
	return &MemCache{byKey: make(map[string]Record, capHint)}
}

// Get returns the cached record for path if content still hashes to the
// same digest recorded within it.
func (c *MemCache) Get(path string, content Digest) (Record, bool) {
	c.mu.RLock()
	rec, ok := c.byKey[path]
	c.mu.RUnlock()
	if !ok || rec.ContentHash != content {
		return Record{}, false
	}
	return rec, true
}

// Put stores a module's analysis record.
func (c *MemCache) Put(rec Record) {
	c.mu.Lock()
	c.byKey[rec.Path] = rec
	c.mu.Unlock()
}

// DiskCache persists Records across process runs, keyed by content
// digest, grounded on dcache.go's DiskCache.
type DiskCache struct {
	mu  sync.RWMutex
	dir string
}

// OpenDiskCache opens (creating if needed) the on-disk cache directory
// for app under $XDG_CACHE_HOME (or ~/.cache).
func OpenDiskCache(app string) (*DiskCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, app, "modules")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

func (c *DiskCache) pathFor(key Digest) string {
	return filepath.Join(c.dir, hex.EncodeToString(key[:])+".mp")
}

// Put serializes and atomically writes a record.
func (c *DiskCache) Put(key Digest, rec *Record) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	rec.Schema = schemaVersion
	target := c.pathFor(key)
	f, err := os.CreateTemp(c.dir, "tmp-*")
	if err != nil {
		return err
	}
	tmpName := f.Name()
	if err := msgpack.NewEncoder(f).Encode(rec); err != nil {
		f.Close()
		os.Remove(tmpName)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, target)
}

// Get reads and deserializes a record, reporting false (no error) if
// the entry is absent or was written by an incompatible schema.
func (c *DiskCache) Get(key Digest) (*Record, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	var rec Record
	if err := msgpack.NewDecoder(f).Decode(&rec); err != nil {
		return nil, false, err
	}
	if rec.Schema != schemaVersion {
		return nil, false, nil
	}
	return &rec, true, nil
}

// DropAll invalidates the entire disk cache by renaming it aside and
// removing the old directory, mirroring dcache.go's DropAll.
func (c *DiskCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		return err
	}
	return os.RemoveAll(old)
}
