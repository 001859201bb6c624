// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

package jake

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

// fileCacheEntry mirrors mk/state.go's HashCache entry: a file's content
// hash keyed by (mtime, size) so unchanged files are never re-read.
type fileCacheEntry struct {
	mtime int64
	size  int64
	hash  string
}

// HashCache is the content-addressed freshness cache from spec.md §3/§7.
// It serves two roles: a per-file content-hash memo (grounded in
// mk/state.go's HashCache), and the persisted key→hash table backing
// `@cache` and `file` recipe staleness decisions, written to
// `.jake/cache`. golang.org/x/sync/singleflight de-duplicates concurrent
// hash computation for a file referenced by more than one in-flight
// recipe in the parallel scheduler, something the teacher's bare
// mutex+map didn't need since mk has no parallel worker pool.
type HashCache struct {
	path string

	mu    sync.Mutex
	files map[string]fileCacheEntry
	sf    singleflight.Group

	entMu   sync.Mutex
	entries map[string]string // key -> stored sha256 hex
	dirty   bool
}

// LoadHashCache loads the persisted cache at path, or starts empty if
// the file does not exist. Corrupted lines are ignored, per spec.md §6.
func LoadHashCache(path string) (*HashCache, error) {
	c := &HashCache{
		path:    path,
		files:   make(map[string]fileCacheEntry),
		entries: make(map[string]string),
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, errors.Wrapf(err, "loading cache %s", path)
	}
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := scanner.Text()
		tab := strings.IndexByte(line, '\t')
		if tab < 0 {
			continue // corrupted line, ignored on load
		}
		c.entries[line[:tab]] = line[tab+1:]
	}
	return c, nil
}

// HashFile returns the SHA-256 hex digest of path's content, reusing a
// cached value when mtime and size are unchanged. Concurrent calls for
// the same path are deduplicated via singleflight.
func (c *HashCache) HashFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	mtime := info.ModTime().UnixNano()
	size := info.Size()

	c.mu.Lock()
	if e, ok := c.files[path]; ok && e.mtime == mtime && e.size == size {
		c.mu.Unlock()
		return e.hash, nil
	}
	c.mu.Unlock()

	v, err, _ := c.sf.Do(path, func() (interface{}, error) {
		return hashFileContents(path)
	})
	if err != nil {
		return "", err
	}
	h := v.(string)

	c.mu.Lock()
	c.files[path] = fileCacheEntry{mtime: mtime, size: size, hash: h}
	c.mu.Unlock()
	return h, nil
}

func hashFileContents(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// HashSet computes SHA-256 over the sorted, concatenated SHA-256 of
// every resolved input file, per spec.md §4.8's @cache semantics and
// §3's CacheEntry definition. Missing files are skipped (their absence
// already shows up as a staleness signal via the caller's own checks).
func (c *HashCache) HashSet(paths []string) (string, error) {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)
	var b strings.Builder
	for _, p := range sorted {
		h, err := c.HashFile(p)
		if err != nil {
			continue
		}
		b.WriteString(h)
	}
	return hashString(b.String()), nil
}

// Lookup returns the stored hash for key, and whether it was present.
func (c *HashCache) Lookup(key string) (string, bool) {
	c.entMu.Lock()
	defer c.entMu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

// Store records value as the current hash for key, marking the cache
// dirty so Save writes it out.
func (c *HashCache) Store(key, value string) {
	c.entMu.Lock()
	defer c.entMu.Unlock()
	c.entries[key] = value
	c.dirty = true
}

// IsStaleFileRecipe decides staleness for a file recipe per spec.md
// §4.9: stale iff the output doesn't exist, or the joint input hash
// differs from the stored value for key.
func (c *HashCache) IsStaleFileRecipe(key, output string, inputs []string) (bool, error) {
	if _, err := os.Stat(output); os.IsNotExist(err) {
		return true, nil
	}
	h, err := c.HashSet(inputs)
	if err != nil {
		return false, err
	}
	stored, ok := c.Lookup(key)
	return !ok || stored != h, nil
}

// IsStaleCacheDirective decides the @cache directive's skip/run
// decision: an empty pattern list always executes (never "stale=false").
func (c *HashCache) IsStaleCacheDirective(key string, inputs []string) (bool, error) {
	if len(inputs) == 0 {
		return true, nil
	}
	h, err := c.HashSet(inputs)
	if err != nil {
		return false, err
	}
	stored, ok := c.Lookup(key)
	return !ok || stored != h, nil
}

// Record stores the current joint hash of inputs under key, used after
// a file recipe or @cache block completes successfully.
func (c *HashCache) Record(key string, inputs []string) error {
	h, err := c.HashSet(inputs)
	if err != nil {
		return err
	}
	c.Store(key, h)
	return nil
}

// Invalidate drops the per-file mtime/size memo for each of paths, so
// the next HashFile call re-reads content instead of trusting a stat
// that may have landed within the same mtime tick as the last read
// (spec.md §4.10: watch mode must not miss a rapid edit).
func (c *HashCache) Invalidate(paths []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range paths {
		delete(c.files, p)
	}
}

// Save persists the cache to its backing file, atomically (temp file +
// rename) and guarded by an advisory flock so concurrent `jake`
// invocations against the same working directory don't interleave
// writes. It is a no-op if nothing changed since load/last save.
func (c *HashCache) Save() error {
	c.entMu.Lock()
	dirty := c.dirty
	entries := make(map[string]string, len(c.entries))
	for k, v := range c.entries {
		entries[k] = v
	}
	c.entMu.Unlock()
	if !dirty {
		return nil
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating cache dir %s", dir)
	}

	lock := flock.New(filepath.Join(dir, ".cache.lock"))
	if err := lock.Lock(); err != nil {
		return errors.Wrap(err, "locking cache file")
	}
	defer lock.Unlock()

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('\t')
		b.WriteString(entries[k])
		b.WriteByte('\n')
	}

	tmp := c.path + "." + uuid.NewString() + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0o644); err != nil {
		return errors.Wrapf(err, "writing temp cache file %s", tmp)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "renaming cache file into place")
	}

	c.entMu.Lock()
	c.dirty = false
	c.entMu.Unlock()
	return nil
}
