package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/maypok86/otter/v2"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type Options struct {
	Capacity int
	// TTL evicts entries that were not read or written for this long. Zero keeps them.
	TTL time.Duration
	// FilePath enables persistence: the cache is loaded from it on creation
	// and written back by Flush, Close and every FlushInterval.
	FilePath      string
	FlushInterval time.Duration
}

type Cache[T any] struct {
	outer *otter.Cache[string, T]
	opts  Options

	flushMu   sync.Mutex
	stopFlush chan struct{}
	closeOnce sync.Once
}

func NewCache[T any](opts Options) (*Cache[T], error) {
	c := &Cache[T]{
		opts:      opts,
		stopFlush: make(chan struct{}),
	}

	o := &otter.Options[string, T]{}
	if opts.Capacity > 0 {
		o.MaximumSize = opts.Capacity
	}
	if opts.TTL > 0 {
		o.ExpiryCalculator = otter.ExpiryAccessing[string, T](opts.TTL)
	}

	outer, err := otter.New(o)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	c.outer = outer

	if opts.FilePath != "" {
		if err = c.loadFromDisk(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load cache from %s: %w", opts.FilePath, err)
		}
		if opts.FlushInterval > 0 {
			go c.periodicFlush(opts.FlushInterval)
		}
	}

	return c, nil
}

func (c *Cache[T]) Set(key string, val T) {
	c.outer.Set(key, val)
}

func (c *Cache[T]) Get(key string) (T, bool) {
	return c.outer.GetIfPresent(key)
}

func (c *Cache[T]) Delete(key string) {
	c.outer.Invalidate(key)
}

func (c *Cache[T]) Clear() {
	c.outer.InvalidateAll()
}

func (c *Cache[T]) Len() int {
	n := 0
	for range c.outer.All() {
		n++
	}
	return n
}

// Flush writes every live entry to FilePath. It is a no-op without a file.
func (c *Cache[T]) Flush() error {
	if c.opts.FilePath == "" {
		return nil
	}

	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	items := make(map[string]T)
	for k, v := range c.outer.All() {
		items[k] = v
	}

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(c.opts.FilePath), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp := c.opts.FilePath + ".tmp"
	if err = os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	return os.Rename(tmp, c.opts.FilePath)
}

func (c *Cache[T]) periodicFlush(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = c.Flush()
		case <-c.stopFlush:
			return
		}
	}
}

func (c *Cache[T]) loadFromDisk() error {
	data, err := os.ReadFile(c.opts.FilePath)
	if err != nil {
		return err
	}

	var items map[string]T
	if err = json.Unmarshal(data, &items); err != nil {
		return err
	}

	for k, v := range items {
		c.outer.Set(k, v)
	}

	return nil
}

// Close stops the periodic flush and writes the cache one last time.
func (c *Cache[T]) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stopFlush)
		err = c.Flush()
	})
	return err
}
