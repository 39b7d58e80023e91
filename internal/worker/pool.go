// Package worker runs the decode→parse→classify→persist ingestion pipeline concurrently
// over a bounded stream of media/subtitle pairs: fixed worker count,
// bounded queue, a pause "pass ticket" gate, cooperative cancellation, and
// per-worker panic isolation.
package worker

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nodo1014/indexer-quick/internal/core"
	"github.com/nodo1014/indexer-quick/internal/encoding"
	"github.com/nodo1014/indexer-quick/internal/lang"
	"github.com/nodo1014/indexer-quick/internal/repository"
	"github.com/nodo1014/indexer-quick/internal/subtitle"
)

// perFileTimeout is the soft timeout of one pair's pipeline. It is checked
// before decoding and again before the database writes, and it bounds those
// writes; decode, parse and classify do not observe it while they run.
const perFileTimeout = 30 * time.Second

// Skip reasons recorded on an Outcome; lang_rejected is the error-taxonomy
// name so the controller's log ring carries it verbatim.
const (
	SkipNoSubtitle      = "no subtitle"
	SkipNoCues          = "no cues"
	SkipDecodeFailed    = "decode failed"
	SkipParseFailed     = "parse failed"
	SkipLangRejected    = "lang_rejected"
	SkipMediaUnreadable = "media unreadable"
)

// Outcome is what one worker reports back to the controller for one pair.
type Outcome struct {
	Pair       core.Pair
	Inserted   int
	SkipReason string
	Err        *core.ProcessingError
}

// DefaultWorkerCount returns min(8, runtime.NumCPU()), the default pool size.
func DefaultWorkerCount() int {
	n := runtime.NumCPU()
	if n > 8 {
		return 8
	}
	if n < 1 {
		return 1
	}
	return n
}

// Pool runs a fixed number of worker goroutines over a bounded channel of
// pairs, each sending its outcome on the channel returned by Run.
type Pool struct {
	Repo            *repository.Repository
	MinEnglishRatio float64
	Log             zerolog.Logger
	Workers         int

	passTicket chan struct{}
	pausedMu   sync.Mutex
	paused     bool
}

// NewPool constructs a pool with workers (default if <= 0) feeding off repo.
func NewPool(repo *repository.Repository, workers int, minEnglishRatio float64, log zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = DefaultWorkerCount()
	}
	return &Pool{
		Repo:            repo,
		MinEnglishRatio: minEnglishRatio,
		Log:             log,
		Workers:         workers,
		passTicket:      make(chan struct{}, 1),
	}
}

// Pause stops issuing new passes; in-flight work finishes undisturbed.
func (p *Pool) Pause() {
	p.pausedMu.Lock()
	p.paused = true
	p.pausedMu.Unlock()
}

// Resume starts issuing passes again.
func (p *Pool) Resume() {
	p.pausedMu.Lock()
	p.paused = false
	p.pausedMu.Unlock()
}

// Run dispatches pairs from in to Workers goroutines and returns a channel
// of outcomes, closed once every pair has been processed or ctx is done.
func (p *Pool) Run(ctx context.Context, in <-chan core.Pair) <-chan Outcome {
	out := make(chan Outcome, p.Workers)
	var wg sync.WaitGroup

	// Ticket refiller: issues a pass roughly every 10ms while not paused,
	// and simply stops issuing them while paused — the pause gate falls
	// out of not refilling the channel, no separate "paused" signal needed
	// by the workers themselves.
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.pausedMu.Lock()
				isPaused := p.paused
				p.pausedMu.Unlock()
				if isPaused {
					continue
				}
				select {
				case p.passTicket <- struct{}{}:
				default:
				}
			}
		}
	}()

	for i := 0; i < p.Workers; i++ {
		wg.Add(1)
		go p.runWorker(ctx, i, in, out, &wg)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

func (p *Pool) runWorker(ctx context.Context, id int, in <-chan core.Pair, out chan<- Outcome, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case pair, ok := <-in:
			if !ok {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-p.passTicket:
			}
			outcome := p.process(ctx, id, pair)
			select {
			case out <- outcome:
			case <-ctx.Done():
				return
			}
		}
	}
}

// process runs one pair through the pipeline with panic isolation: a
// recovered panic is logged, counted as a skip, and never takes down the
// pool.
func (p *Pool) process(ctx context.Context, workerID int, pair core.Pair) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			p.Log.Error().
				Int("worker", workerID).
				Str("media", pair.MediaPath).
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("worker: recovered panic, skipping pair")
			outcome = Outcome{Pair: pair, SkipReason: "internal error"}
		}
	}()

	outcome.Pair = pair

	if pair.SubtitlePath == "" {
		outcome.SkipReason = SkipNoSubtitle
		return outcome
	}

	// Soft per-file timeout: an overrunning file is cancelled on its own
	// without touching the rest of the run. The same context carries
	// the run-level cancellation token into the checks and database
	// calls below.
	pipelineCtx, cancel := context.WithTimeout(ctx, perFileTimeout)
	defer cancel()

	if pipelineCtx.Err() != nil {
		outcome.Err = core.NewError(core.KindCancelled, core.Continue, "pipeline cancelled before start", core.ErrCancelled)
		return outcome
	}

	decoded, err := encoding.DetectAndDecode(pair.SubtitlePath)
	if err != nil {
		outcome.Err = asProcessingError(err, core.KindDecode)
		outcome.SkipReason = SkipDecodeFailed
		return outcome
	}
	if decoded.Label == "utf-8-lossy" {
		p.Log.Warn().
			Str("subtitle", pair.SubtitlePath).
			Msg("worker: no confident encoding, decoded as lossy UTF-8")
	}

	ext := strings.ToLower(filepath.Ext(pair.SubtitlePath))
	cues, err := subtitle.ParseText(ext, decoded.Text)
	if err != nil {
		outcome.Err = asProcessingError(err, core.KindParse)
		outcome.SkipReason = SkipParseFailed
		return outcome
	}
	if len(cues) == 0 {
		outcome.SkipReason = SkipNoCues
		return outcome
	}

	fullText := concatCueText(cues)
	verdict := lang.Classify(fullText, p.MinEnglishRatio)
	if !verdict.Accepted {
		outcome.SkipReason = SkipLangRejected
		return outcome
	}

	// Cancellation check between the parse and insert phases: a
	// stop raised while this file was decoding must not start a write.
	if pipelineCtx.Err() != nil {
		outcome.Err = core.NewError(core.KindCancelled, core.Continue, "pipeline cancelled before insert", core.ErrCancelled)
		return outcome
	}

	stat, statErr := statMedia(pair.MediaPath)
	if statErr != nil {
		outcome.Err = core.NewError(core.KindIO, core.AbortFile, "stat media file", statErr)
		outcome.SkipReason = SkipMediaUnreadable
		return outcome
	}

	mediaID, err := p.Repo.UpsertMedia(pipelineCtx, stat)
	if err != nil {
		outcome.Err = core.NewError(core.KindDB, core.AbortFile, "upsert media", err)
		return outcome
	}

	domainCues := make([]core.Cue, 0, len(cues))
	for _, c := range cues {
		domainCues = append(domainCues, core.Cue{
			MediaID: mediaID,
			StartMs: c.StartMs,
			EndMs:   c.EndMs,
			Content: c.Text,
			Lang:    verdict.Lang,
		})
	}

	inserted, err := p.Repo.BulkInsertSubtitles(pipelineCtx, mediaID, pair.SubtitlePath, domainCues)
	if err != nil {
		outcome.Err = core.NewError(core.KindDB, core.AbortFile, "bulk insert subtitles", err)
		return outcome
	}

	outcome.Inserted = inserted
	p.Log.Debug().
		Str("media", pair.MediaPath).
		Str("encoding", decoded.Label).
		Int("cues", inserted).
		Msg("worker: track indexed")
	return outcome
}

func concatCueText(cues []subtitle.RawCue) string {
	var sb []byte
	for _, c := range cues {
		sb = append(sb, c.Text...)
		sb = append(sb, ' ')
	}
	return string(sb)
}

func asProcessingError(err error, kind core.ErrorKind) *core.ProcessingError {
	if pe, ok := err.(*core.ProcessingError); ok {
		return pe
	}
	return core.NewError(kind, core.AbortFile, fmt.Sprintf("%s", err), err)
}
