// Package docstore reads and writes the single shared JSON document that
// every client session converges on.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"golang.org/x/sync/singleflight"
)

// Defaults for Options.
const (
	DefaultTTL          = 5 * time.Second
	DefaultDebounce     = 300 * time.Millisecond
	DefaultWriteTimeout = 30 * time.Second
)

// Backend stores the whole document.
type Backend interface {
	Get(ctx context.Context) (Document, error)
	Put(ctx context.Context, doc Document) error
}

// Options tunes a Client. Zero values select the defaults.
type Options struct {
	Now          func() time.Time
	TTL          time.Duration
	Debounce     time.Duration
	WriteTimeout time.Duration
}

// Client caches the shared document and debounces writes to it.
//
// Reads within the TTL are served from the cache. Writes update the cache
// immediately and reach the backend after the debounce window; a newer write
// inside the window replaces the older one, which is never sent.
type Client struct {
	backend Backend
	logger  *slog.Logger
	now     func() time.Time
	group   singleflight.Group

	ttl          time.Duration
	debounce     time.Duration
	writeTimeout time.Duration

	mu         sync.Mutex
	cache      Document
	fetchedAt  time.Time
	gen        uint64 // bumped by every Write
	timer      *time.Timer
	timerSeq   uint64
	pending    Document
	pendingGen uint64
	closed     bool
	inflight   sync.WaitGroup

	writeMu sync.Mutex
	sentGen uint64
}

// New creates a client. A nil backend yields a disabled client whose reads
// return an empty document and whose writes are dropped.
func New(backend Backend, logger *slog.Logger, opts Options) *Client {
	c := &Client{
		backend:      backend,
		logger:       logger,
		now:          opts.Now,
		ttl:          opts.TTL,
		debounce:     opts.Debounce,
		writeTimeout: opts.WriteTimeout,
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}
	if c.debounce <= 0 {
		c.debounce = DefaultDebounce
	}
	if c.writeTimeout <= 0 {
		c.writeTimeout = DefaultWriteTimeout
	}
	return c
}

// Configured reports whether the client is backed by a real store.
func (c *Client) Configured() bool {
	return c.backend != nil
}

// Fetch returns the shared document.
//
// On a backend failure Fetch still returns a usable document, the last good
// snapshot or an empty one, along with the error. Callers decide whether to
// degrade or surface it.
func (c *Client) Fetch(ctx context.Context) (Document, error) {
	if c.backend == nil {
		return Document{}, nil
	}

	c.mu.Lock()
	if c.cache != nil && c.now().Sub(c.fetchedAt) < c.ttl {
		doc := c.cache.Clone()
		c.mu.Unlock()
		return doc, nil
	}
	c.mu.Unlock()

	v, err, shared := c.group.Do("fetch", func() (any, error) {
		c.mu.Lock()
		gen := c.gen
		c.mu.Unlock()

		start := c.now()
		doc, err := c.backend.Get(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		// A local write landed while the read was in flight; it is newer.
		if gen != c.gen {
			c.logger.Debug("Discarding fetched document older than local write")
			return c.cache, nil
		}
		c.cache = doc
		c.fetchedAt = c.now()
		c.logger.Debug("Shared document fetched", "fields", len(doc), "duration_ms", c.now().Sub(start).Milliseconds())
		return doc, nil
	})
	if err != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.cache != nil {
			return c.cache.Clone(), fmt.Errorf("fetch document: %w", err)
		}
		return Document{}, fmt.Errorf("fetch document: %w", err)
	}
	if shared {
		c.logger.Debug("Fetch collapsed with concurrent request")
	}
	return v.(Document).Clone(), nil
}

// Write replaces the shared document. It returns immediately: the cache is
// updated at once and the backend write fires after the debounce window.
func (c *Client) Write(doc Document) {
	if c.backend == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	c.cache = doc.Clone()
	c.fetchedAt = c.now()

	if c.closed {
		c.logger.Warn("Shared write after close dropped", "fields", len(doc))
		return
	}

	c.pending = c.cache
	c.pendingGen = c.gen
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timerSeq++
	seq := c.timerSeq
	c.timer = time.AfterFunc(c.debounce, func() { c.fire(seq) })
}

func (c *Client) fire(seq uint64) {
	c.mu.Lock()
	if seq != c.timerSeq || c.pending == nil {
		c.mu.Unlock()
		return
	}
	doc, gen := c.pending, c.pendingGen
	c.pending = nil
	c.timer = nil
	c.inflight.Add(1)
	c.mu.Unlock()
	defer c.inflight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), c.writeTimeout)
	defer cancel()

	if err := c.send(ctx, doc, gen); err != nil {
		c.logger.Warn("Shared document write failed", "error", err)
	}
}

// Flush sends a pending debounced write now.
func (c *Client) Flush(ctx context.Context) error {
	c.mu.Lock()
	doc, gen := c.takePendingLocked()
	c.mu.Unlock()

	if doc == nil {
		return nil
	}
	return c.send(ctx, doc, gen)
}

// Close flushes any pending write and waits for in-flight writes.
// Later writes only update the cache.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	doc, gen := c.takePendingLocked()
	c.mu.Unlock()

	var err error
	if doc != nil {
		err = c.send(ctx, doc, gen)
	}
	c.inflight.Wait()
	return err
}

func (c *Client) takePendingLocked() (Document, uint64) {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.timerSeq++
	doc, gen := c.pending, c.pendingGen
	c.pending = nil
	return doc, gen
}

// send writes doc unless a newer generation was already written.
func (c *Client) send(ctx context.Context, doc Document, gen uint64) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if gen <= c.sentGen {
		c.logger.Debug("Skipping stale shared write", "generation", gen, "sent", c.sentGen)
		return nil
	}

	payload, err := Trim(doc)
	if err != nil {
		return fmt.Errorf("trim document: %w", err)
	}

	start := c.now()
	err = retry.Do(
		func() error {
			return c.backend.Put(ctx, payload)
		},
		retry.Attempts(3),
		retry.Delay(250*time.Millisecond),
		retry.MaxDelay(5*time.Second),
		retry.MaxJitter(250*time.Millisecond),
		retry.Context(ctx),
		retry.RetryIf(func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.Temporary()
			}
			return true
		}),
		retry.OnRetry(func(n uint, retryErr error) {
			c.logger.Info("Retrying shared write after error", "attempt", n, "error", retryErr)
		}),
	)
	if err != nil {
		return fmt.Errorf("put document after retries: %w", err)
	}

	c.sentGen = gen
	c.logger.Info("Shared document written", "fields", len(payload), "generation", gen, "duration_ms", c.now().Sub(start).Milliseconds())
	return nil
}
