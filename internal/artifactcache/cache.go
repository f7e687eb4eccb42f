package artifactcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"cartographer/internal/logging"
	"cartographer/internal/services"
)

const (
	recordExt = ".json"
	tmpExt    = ".tmp"
	component = "artifactcache"
)

// Cache is a directory of parsed-document records, one file per id, with a
// bounded lifetime. Store and Delete hold the record's exclusive lock; Get
// holds the shared lock. Different ids never contend.
type Cache struct {
	dir    string
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
	locks  *lockTable
	memory *gocache.Cache
}

// Option customizes the cache.
type Option func(*Cache)

// WithClock overrides the time source used for creation stamps and expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logging destination.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logging.NewComponentLogger(logger, component)
	}
}

// New opens (creating if necessary) a cache rooted at dir.
func New(dir string, ttl time.Duration, opts ...Option) (*Cache, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("artifactcache: directory required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("artifactcache: ttl must be positive, got %s", ttl)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifactcache: create directory: %w", err)
	}
	c := &Cache{
		dir:    dir,
		ttl:    ttl,
		now:    time.Now,
		logger: logging.NewComponentLogger(nil, component),
		locks:  newLockTable(),
		memory: gocache.New(ttl, ttl),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Dir returns the cache root.
func (c *Cache) Dir() string { return c.dir }

// TTL returns the configured record lifetime.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Store persists a new record and returns it with its generated id.
func (c *Cache) Store(sourceName, content string, tokenCount int) (Record, error) {
	sourceName = strings.TrimSpace(sourceName)
	if sourceName == "" {
		return Record{}, services.Wrap(services.ErrValidation, component, "store", "source name required", nil)
	}
	if tokenCount < 0 {
		return Record{}, services.Wrap(services.ErrValidation, component, "store", "token count must not be negative", nil)
	}

	record := Record{
		ID:         uuid.NewString(),
		SourceName: sourceName,
		Content:    content,
		TokenCount: tokenCount,
		CreatedAt:  c.now().UTC(),
	}

	unlock := c.locks.lock(record.ID)
	defer unlock()

	if err := c.write(record); err != nil {
		return Record{}, services.Wrap(services.ErrInternal, component, "store", record.ID, err)
	}
	c.memory.Set(record.ID, record, c.ttl)

	c.logger.Debug("stored artifact",
		logging.String(logging.FieldArtifactID, record.ID),
		logging.String("source_name", sourceName),
		logging.Int("token_count", tokenCount))
	return record, nil
}

// Get returns a live record. Records at or past their TTL are reported as
// not found even if the sweep has not removed them yet.
func (c *Cache) Get(id string) (Record, error) {
	if !validID(id) {
		return Record{}, notFound(id)
	}

	unlock := c.locks.rlock(id)
	defer unlock()

	now := c.now()
	if cached, ok := c.memory.Get(id); ok {
		record := cached.(Record)
		if record.Expired(now, c.ttl) {
			return Record{}, notFound(id)
		}
		return record, nil
	}

	data, err := os.ReadFile(c.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Record{}, notFound(id)
		}
		return Record{}, services.Wrap(services.ErrInternal, component, "get", id, err)
	}
	record, err := decodeRecord(data)
	if err != nil {
		// The sweep deletes malformed files; readers just treat them as absent.
		return Record{}, notFound(id)
	}
	if record.Expired(now, c.ttl) {
		return Record{}, notFound(id)
	}
	if remaining := record.CreatedAt.Add(c.ttl).Sub(now); remaining > 0 {
		c.memory.Set(id, record, remaining)
	}
	return record, nil
}

// Delete removes a record. It reports whether anything was removed.
func (c *Cache) Delete(id string) (bool, error) {
	if !validID(id) {
		return false, nil
	}

	unlock := c.locks.lock(id)
	defer unlock()

	c.memory.Delete(id)
	if err := os.Remove(c.path(id)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, services.Wrap(services.ErrInternal, component, "delete", id, err)
	}
	c.logger.Debug("deleted artifact", logging.String(logging.FieldArtifactID, id))
	return true, nil
}

// List returns metadata for live records, newest first. Expired and
// unreadable records are omitted.
func (c *Cache) List() ([]Metadata, error) {
	ids, err := c.recordIDs()
	if err != nil {
		return nil, err
	}
	out := make([]Metadata, 0, len(ids))
	for _, id := range ids {
		record, err := c.Get(id)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, record.metadata(c.ttl))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (c *Cache) recordIDs() ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, services.Wrap(services.ErrInternal, component, "list", c.dir, err)
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, recordExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, recordExt))
	}
	return ids, nil
}

func (c *Cache) path(id string) string {
	return filepath.Join(c.dir, id+recordExt)
}

// write stores the record atomically via a temp file in the same directory.
func (c *Cache) write(record Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	final := c.path(record.ID)
	tmp := final + tmpExt
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// validID accepts only canonical UUID strings, which also keeps ids from
// escaping the cache directory.
func validID(id string) bool {
	parsed, err := uuid.Parse(id)
	return err == nil && parsed.String() == id
}

func notFound(id string) error {
	return services.Wrap(services.ErrNotFound, component, "get", fmt.Sprintf("artifact %q", id), nil)
}
