// Package indexer owns the indexing lifecycle: the state machine,
// strategy selection, progress persistence, and crash-tolerant status
// recovery that sit above the scanner and worker pool.
package indexer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nodo1014/indexer-quick/internal/core"
	"github.com/nodo1014/indexer-quick/internal/repository"
	"github.com/nodo1014/indexer-quick/internal/scanner"
	"github.com/nodo1014/indexer-quick/internal/worker"
	"github.com/nodo1014/indexer-quick/pkg/eta"
)

// Options configures a Controller for its whole lifetime.
type Options struct {
	Repo               *repository.Repository
	StatusPath         string
	RootDir            string
	MediaExtensions    []string
	SubtitleExtensions []string
	ChannelCapacity    int
	Workers            int
	MinEnglishRatio    float64
	LogRingSize        int
	Log                zerolog.Logger
}

// Controller is the process-wide singleton owning IndexingStatus and the
// one active run, if any. Status reads/writes go through statusMu;
// nothing else in the process is allowed to mutate core.Status.
type Controller struct {
	opts Options

	statusMu sync.RWMutex
	status   core.Status

	runMu     sync.Mutex
	cancelRun context.CancelFunc
	pool      *worker.Pool

	persistMu   sync.Mutex
	lastPersist time.Time

	subMu       sync.Mutex
	subscribers []chan core.Status
}

// New constructs a Controller and applies the crash-tolerance rule: a
// status file found in running or paused is reset to idle, since this
// process cannot possibly be the one that wrote it.
func New(opts Options) (*Controller, error) {
	if opts.LogRingSize <= 0 {
		opts.LogRingSize = 200
	}

	status, err := readStatusFile(opts.StatusPath)
	if err != nil {
		return nil, err
	}
	if status.State == core.StateRunning || status.State == core.StatePaused {
		status.State = core.StateIdle
		status.FailReason = ""
	}
	if status.State == "" {
		status.State = core.StateIdle
	}

	c := &Controller{opts: opts, status: status}
	return c, nil
}

// Snapshot returns a value copy of the current status; callers never see
// the controller's live struct.
func (c *Controller) Snapshot() core.Status {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.status
}

// Subscribe returns a channel that receives every status snapshot the
// controller publishes, used by the websocket progress feed. The
// caller must keep draining it; a snapshot that does not fit in a slow
// subscriber's buffer is dropped for that subscriber rather than allowed
// to block publication.
func (c *Controller) Subscribe() <-chan core.Status {
	ch := make(chan core.Status, 8)
	c.subMu.Lock()
	c.subscribers = append(c.subscribers, ch)
	c.subMu.Unlock()
	return ch
}

// Unsubscribe removes and closes a channel previously returned by
// Subscribe.
func (c *Controller) Unsubscribe(ch <-chan core.Status) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for i, sub := range c.subscribers {
		if sub == ch {
			close(sub)
			c.subscribers = append(c.subscribers[:i], c.subscribers[i+1:]...)
			return
		}
	}
}

func (c *Controller) publish(status core.Status) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, sub := range c.subscribers {
		select {
		case sub <- status:
		default:
		}
	}
}

// mutate applies fn under the status lock, always stamps LastUpdated,
// persists at most once per persistInterval, and publishes every time
// (publication is not rate-limited; only the on-disk write is).
func (c *Controller) mutate(force bool, fn func(*core.Status)) {
	c.statusMu.Lock()
	fn(&c.status)
	c.status.LastUpdated = time.Now()
	snapshot := c.status
	c.statusMu.Unlock()

	c.persistMu.Lock()
	shouldPersist := force || time.Since(c.lastPersist) >= persistInterval
	if shouldPersist {
		c.lastPersist = time.Now()
	}
	c.persistMu.Unlock()

	if shouldPersist {
		if err := writeStatusFile(c.opts.StatusPath, snapshot); err != nil {
			c.opts.Log.Error().Err(err).Msg("indexer: failed to persist status")
		}
	}
	c.publish(snapshot)
}

func (c *Controller) log(level, msg string) {
	c.mutate(false, func(s *core.Status) {
		s.LogRing = appendLogRing(s.LogRing, core.LogEntry{
			Time: time.Now(), Level: level, Message: msg,
		}, c.opts.LogRingSize)
	})
}

// Start transitions idle/stopped/completed/failed → scanning and launches
// the run in the background. It fails if a run is already active.
func (c *Controller) Start(strategy core.Strategy) error {
	c.runMu.Lock()
	if c.cancelRun != nil {
		c.runMu.Unlock()
		return core.NewError(core.KindQuery, core.Continue, "start: a run is already active", core.ErrInvalidState)
	}

	current := c.Snapshot().State
	switch current {
	case core.StateIdle, core.StateStopped, core.StateCompleted, core.StateFailed:
	default:
		c.runMu.Unlock()
		return core.NewError(core.KindQuery, core.Continue,
			fmt.Sprintf("start: invalid from state %q", current), core.ErrInvalidState)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancelRun = cancel
	c.pool = worker.NewPool(c.opts.Repo, c.opts.Workers, c.opts.MinEnglishRatio, c.opts.Log)
	c.runMu.Unlock()

	c.mutate(true, func(s *core.Status) {
		*s = core.Status{
			State:     core.StateScanning,
			StartedAt: time.Now(),
			LogRing:   s.LogRing,
		}
	})
	c.log("info", fmt.Sprintf("indexing started (strategy=%s)", strategy))

	go c.run(ctx, strategy)
	return nil
}

// run executes one full pass: scan → strategy filter → worker pool →
// progress accounting, ending in stopped/completed/failed.
func (c *Controller) run(ctx context.Context, strategy core.Strategy) {
	defer func() {
		c.runMu.Lock()
		c.cancelRun = nil
		c.pool = nil
		c.runMu.Unlock()
	}()

	pairs, err := scanner.Scan(ctx, scanner.Options{
		Root:               c.opts.RootDir,
		MediaExtensions:    c.opts.MediaExtensions,
		SubtitleExtensions: c.opts.SubtitleExtensions,
		ChannelCapacity:    c.opts.ChannelCapacity,
		Logger:             c.opts.Log,
	})
	if err != nil {
		c.fail(err.Error())
		return
	}

	filtered := applyStrategy(ctx, strategy, c.opts.Repo, pairs)
	counted := c.countDiscovered(ctx, filtered)

	rate := eta.NewCalculator(time.Now())
	outcomes := c.pool.Run(ctx, c.firstPairTransition(ctx, counted))

	var processed, subtitleCount int64
	for outcome := range outcomes {
		processed++
		subtitleCount += int64(outcome.Inserted)
		currentRate := rate.Update(processed, time.Now())

		c.mutate(false, func(s *core.Status) {
			s.ProcessedFiles = int(processed)
			s.CurrentPath = outcome.Pair.MediaPath
			s.SubtitleCount = subtitleCount
			remaining := int64(s.TotalFiles) - processed
			if currentRate > 0 && remaining > 0 {
				s.ETASeconds = rate.ETA(remaining).Seconds()
			} else {
				s.ETASeconds = 0
			}
		})

		switch {
		case outcome.Err != nil:
			c.log("warn", fmt.Sprintf("%s: %s", outcome.Pair.MediaPath, outcome.Err.Error()))
		case outcome.SkipReason != "":
			c.log("info", fmt.Sprintf("%s: skipped (%s)", outcome.Pair.MediaPath, outcome.SkipReason))
		}
	}

	if ctx.Err() != nil {
		c.mutate(true, func(s *core.Status) { s.State = core.StateStopped })
		c.log("info", "indexing stopped")
		return
	}

	c.mutate(true, func(s *core.Status) { s.State = core.StateCompleted; s.ETASeconds = 0 })
	c.log("info", fmt.Sprintf("indexing completed: %d files, %d subtitles", processed, subtitleCount))
}

// countDiscovered taps the pair stream to grow TotalFiles as the scanner
// discovers work, independently of how far the worker pool has gotten —
// total_files is a live discovery count, not a pre-computed total,
// since the scanner and workers run concurrently rather than in two phases.
func (c *Controller) countDiscovered(ctx context.Context, in <-chan core.Pair) <-chan core.Pair {
	out := make(chan core.Pair, c.opts.ChannelCapacity)
	go func() {
		defer close(out)
		var discovered int
		for {
			select {
			case <-ctx.Done():
				return
			case pair, ok := <-in:
				if !ok {
					return
				}
				discovered++
				c.mutate(false, func(s *core.Status) { s.TotalFiles = discovered })
				select {
				case out <- pair:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// firstPairTransition wraps in so that receiving the very first pair
// flips scanning → running, matching the lifecycle state machine; every
// subsequent pair passes through untouched.
func (c *Controller) firstPairTransition(ctx context.Context, in <-chan core.Pair) <-chan core.Pair {
	out := make(chan core.Pair, c.opts.ChannelCapacity)
	go func() {
		defer close(out)
		first := true
		for {
			select {
			case <-ctx.Done():
				return
			case pair, ok := <-in:
				if !ok {
					if first {
						// No pairs at all: the run completes with zero work,
						// still passing through "running" so the final state
						// transition in run() applies uniformly.
						c.mutate(true, func(s *core.Status) { s.State = core.StateRunning })
					}
					return
				}
				if first {
					first = false
					c.mutate(true, func(s *core.Status) { s.State = core.StateRunning })
				}
				select {
				case out <- pair:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (c *Controller) fail(reason string) {
	c.mutate(true, func(s *core.Status) {
		s.State = core.StateFailed
		s.FailReason = reason
	})
	c.log("error", reason)
}

// Pause holds the worker pool between files; in-flight work finishes.
func (c *Controller) Pause() error {
	c.runMu.Lock()
	pool := c.pool
	c.runMu.Unlock()
	if pool == nil || c.Snapshot().State != core.StateRunning {
		return core.NewError(core.KindQuery, core.Continue, "pause: no active run", core.ErrInvalidState)
	}
	pool.Pause()
	c.mutate(true, func(s *core.Status) { s.State = core.StatePaused })
	c.log("info", "indexing paused")
	return nil
}

// Resume releases the pause gate on an already-running pool.
func (c *Controller) Resume() error {
	c.runMu.Lock()
	pool := c.pool
	c.runMu.Unlock()
	if pool == nil || c.Snapshot().State != core.StatePaused {
		return core.NewError(core.KindQuery, core.Continue, "resume: not paused", core.ErrInvalidState)
	}
	pool.Resume()
	c.mutate(true, func(s *core.Status) { s.State = core.StateRunning })
	c.log("info", "indexing resumed")
	return nil
}

// Stop cancels the active run; it drains and transitions to stopped once
// the worker pool closes its outcome channel.
func (c *Controller) Stop() error {
	c.runMu.Lock()
	cancel := c.cancelRun
	c.runMu.Unlock()
	if cancel == nil {
		return core.NewError(core.KindQuery, core.Continue, "stop: no active run", core.ErrInvalidState)
	}
	c.mutate(true, func(s *core.Status) { s.State = core.StateStopping })
	cancel()
	return nil
}

// Reset wipes every indexed row and returns the controller to idle. It is
// only valid from stopped, the one state where a run has been explicitly
// ended but its partial corpus is still on disk.
func (c *Controller) Reset(ctx context.Context) error {
	c.runMu.Lock()
	active := c.cancelRun != nil
	c.runMu.Unlock()
	if active {
		return core.NewError(core.KindQuery, core.Continue, "reset: a run is active", core.ErrInvalidState)
	}
	if state := c.Snapshot().State; state != core.StateStopped {
		return core.NewError(core.KindQuery, core.Continue,
			fmt.Sprintf("reset: invalid from state %q", state), core.ErrInvalidState)
	}
	if err := c.opts.Repo.ResetAll(ctx); err != nil {
		return err
	}
	c.mutate(true, func(s *core.Status) {
		*s = core.Status{State: core.StateIdle, LogRing: s.LogRing}
	})
	c.log("info", "index reset")
	return nil
}
