// Package resource bounds what a run may hold or consume at once: decoded
// block memory, payload read bandwidth and concurrent export uploads.
//
// Every method is safe on a nil *Controller, which imposes no limits and
// caches nothing.
package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// DefaultUploads is the upload concurrency when Config.MaxUploads is unset.
const DefaultUploads = 1

// Config holds the limits of one run.
type Config struct {
	// MemoryLimitBytes is the budget for decoded blocks kept for a second
	// pass. Zero disables block caching.
	MemoryLimitBytes int64
	// IOLimitBytesPerSec throttles payload reads. Zero is unlimited.
	IOLimitBytesPerSec int64
	// MaxUploads bounds concurrent export uploads.
	MaxUploads int64
}

// Controller enforces a Config.
type Controller struct {
	cfg      Config
	blocks   *semaphore.Weighted
	reserved atomic.Int64
	uploads  *semaphore.Weighted
	reads    *rate.Limiter
}

// NewController creates a controller for cfg.
func NewController(cfg Config) *Controller {
	if cfg.MaxUploads <= 0 {
		cfg.MaxUploads = DefaultUploads
	}
	c := &Controller{cfg: cfg, uploads: semaphore.NewWeighted(cfg.MaxUploads)}
	if cfg.MemoryLimitBytes > 0 {
		c.blocks = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}
	if cfg.IOLimitBytesPerSec > 0 {
		c.reads = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}
	return c
}

// Config returns the effective limits.
func (c *Controller) Config() Config {
	if c == nil {
		return Config{}
	}
	return c.cfg
}

// CachesBlocks reports whether decoded blocks may be kept between passes.
func (c *Controller) CachesBlocks() bool {
	return c != nil && c.blocks != nil
}

// ThrottlesIO reports whether payload reads are rate limited.
func (c *Controller) ThrottlesIO() bool {
	return c != nil && c.reads != nil
}

// TryReserve claims bytes of the block budget without waiting. It fails
// when the budget is exhausted or caching is disabled.
func (c *Controller) TryReserve(bytes int64) bool {
	if !c.CachesBlocks() || bytes <= 0 || !c.blocks.TryAcquire(bytes) {
		return false
	}
	c.reserved.Add(bytes)
	return true
}

// Release returns bytes claimed by TryReserve.
func (c *Controller) Release(bytes int64) {
	if !c.CachesBlocks() || bytes <= 0 {
		return
	}
	c.blocks.Release(bytes)
	c.reserved.Add(-bytes)
}

// Reserved returns the bytes currently claimed.
func (c *Controller) Reserved() int64 {
	if c == nil {
		return 0
	}
	return c.reserved.Load()
}

// AcquireUpload waits for an upload slot.
func (c *Controller) AcquireUpload(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.uploads.Acquire(ctx, 1)
}

// ReleaseUpload frees a slot taken by AcquireUpload.
func (c *Controller) ReleaseUpload() {
	if c != nil {
		c.uploads.Release(1)
	}
}

// WaitIO blocks until n more bytes may be read. Requests larger than one
// second of budget are charged in pieces.
func (c *Controller) WaitIO(ctx context.Context, n int) error {
	if !c.ThrottlesIO() {
		return nil
	}
	burst := c.reads.Burst()
	for n > 0 {
		step := min(n, burst)
		if err := c.reads.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}
