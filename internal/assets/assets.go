// Package assets resolves scene files from a stack of GRF archives.
package assets

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/resmesh/internal/logger"
	"github.com/Faultbox/resmesh/pkg/encoding"
	"github.com/Faultbox/resmesh/pkg/grf"
)

// Library is an fs.FS over the archives added to it. Later archives
// shadow earlier ones, the way patch archives override the base data.
type Library struct {
	archives []*grf.Archive
	names    []string
	cache    *Cache
	mu       sync.RWMutex
	log      *zap.Logger
}

// NewLibrary creates an empty library.
func NewLibrary() *Library {
	return &Library{
		cache: NewCache(),
		log:   logger.Named("assets"),
	}
}

// Open creates a library from archives, decoding entry names with charset.
func Open(charset string, archives ...string) (*Library, error) {
	l := NewLibrary()
	for _, path := range archives {
		if err := l.AddArchive(path, charset); err != nil {
			l.Close()
			return nil, err
		}
	}
	return l, nil
}

// AddArchive opens the GRF at path and puts it on top of the stack.
func (l *Library) AddArchive(path, charset string) error {
	enc, err := encoding.Lookup(charset)
	if err != nil {
		return err
	}
	archive, err := grf.Open(path, enc)
	if err != nil {
		return fmt.Errorf("opening archive %s: %w", path, err)
	}

	l.mu.Lock()
	l.archives = append(l.archives, archive)
	l.names = append(l.names, path)
	l.mu.Unlock()

	l.log.Debug("Archive added", zap.String("path", path), zap.Int("entries", len(archive.List())))
	return nil
}

// Len returns the number of archives.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.archives)
}

// Contains reports whether any archive stores name.
func (l *Library) Contains(name string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, a := range l.archives {
		if a.Contains(name) {
			return true
		}
	}
	return false
}

// ReadFile returns name from the topmost archive that stores it.
func (l *Library) ReadFile(name string) ([]byte, error) {
	if data, ok := l.cache.Get(name); ok {
		return data, nil
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	for i := len(l.archives) - 1; i >= 0; i-- {
		data, err := l.archives[i].ReadFile(name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", l.names[i], err)
		}
		l.cache.Set(name, data)
		return data, nil
	}
	return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrNotExist}
}

// Open implements fs.FS.
func (l *Library) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	data, err := l.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return newFile(name, bytes.NewReader(data)), nil
}

// Close closes all archives and drops cached content.
func (l *Library) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, archive := range l.archives {
		if err := archive.Close(); err != nil {
			l.log.Warn("Closing archive failed", zap.String("path", l.names[i]), zap.Error(err))
		}
	}
	l.archives = nil
	l.names = nil
	l.cache.Clear()
}

// Stats returns the cache statistics.
func (l *Library) Stats() (hits, misses int) {
	return l.cache.Stats()
}

// Cache is a simple in-memory cache for loaded assets.
type Cache struct {
	data map[string][]byte
	mu   sync.Mutex

	// Stats
	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string][]byte),
	}
}

// Get retrieves an item from cache.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return data, ok
}

// Set stores an item in cache.
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string][]byte)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
