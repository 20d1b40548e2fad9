// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package mediafire

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Downloader plans and runs one download. Its Stats accumulate across
// Plan and Run; use a new Downloader for every link.
type Downloader struct {
	cfg      Settings
	fs       afero.Fs
	httpc    *http.Client
	catalog  Catalog
	history  HistorySink
	progress ProgressFunc
	log      *zap.Logger
	stats    *Stats
	runID    string
}

// Option customizes a Downloader.
type Option func(*Downloader)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(d *Downloader) {
		if l != nil {
			d.log = l
		}
	}
}

// WithHistory sets the sink that records completed downloads.
func WithHistory(h HistorySink) Option {
	return func(d *Downloader) { d.history = h }
}

// WithProgress sets the progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(d *Downloader) { d.progress = fn }
}

// WithFs sets the filesystem files are written to. The default is the OS
// filesystem.
func WithFs(fs afero.Fs) Option {
	return func(d *Downloader) {
		if fs != nil {
			d.fs = fs
		}
	}
}

// WithHTTPClient sets the HTTP client used for every request.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Downloader) {
		if c != nil {
			d.httpc = c
		}
	}
}

// WithCatalog replaces the catalog client, e.g. with a cached or fake one.
func WithCatalog(c Catalog) Option {
	return func(d *Downloader) { d.catalog = c }
}

// New returns a Downloader for cfg. Zero fields of cfg take their defaults.
func New(cfg Settings, opts ...Option) *Downloader {
	d := &Downloader{
		cfg:   cfg.withDefaults(),
		fs:    afero.NewOsFs(),
		log:   zap.NewNop(),
		runID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.httpc == nil {
		d.httpc = buildHTTPClient()
	}
	if d.catalog == nil {
		d.catalog = NewClient(d.httpc, d.cfg.Endpoint, d.cfg.RequestTimeout)
	}
	d.log = d.log.With(zap.String("run", d.runID))
	d.stats = NewStats(d.cfg.StrictCounting)
	return d
}

// Stats returns the live counters of the run.
func (d *Downloader) Stats() *Stats { return d.stats }

// RunID returns the identifier attached to every log line of the run.
func (d *Downloader) RunID() string { return d.runID }

// Settings returns the effective settings.
func (d *Downloader) Settings() Settings { return d.cfg }

func (d *Downloader) emit(ev ProgressEvent) {
	if d.progress == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	d.progress(ev)
}

// Plan discovers every file the link refers to and records the totals.
// Files rejected by the ignore policy are counted as skipped and left out.
// Unreadable folders and files are logged and contribute nothing, so a
// link that resolves to nothing yields an empty plan and no error.
func (d *Downloader) Plan(ctx context.Context, link Link) ([]DownloadTask, error) {
	if link.Key == "" {
		return nil, ErrMissingKey
	}
	d.emit(ProgressEvent{Event: "scan_start", Message: fmt.Sprintf("scanning %s %s", link.Kind, link.Key)})

	ignore := NewIgnorePolicy(d.cfg.IgnoreExtensions, d.cfg.IgnoreNames)
	disc := newDiscoverer(d.catalog, ignore, d.stats, d.log, d.emit)

	var tasks []DownloadTask
	switch link.Kind {
	case KindFile:
		tasks = disc.file(ctx, link.Key, d.cfg.OutputDir)
	case KindFolder:
		tasks = disc.discover(ctx, link.Key, d.cfg.OutputDir)
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrInvalidLink, link.Kind)
	}

	var size uint64
	for _, t := range tasks {
		size += t.File.Size
	}
	d.stats.SetTotals(len(tasks), size)
	d.log.Info("scan complete",
		zap.Int("files", len(tasks)), zap.Uint64("bytes", size), zap.Int("skipped", d.stats.Snapshot().Skipped))
	return tasks, nil
}

// Run transfers tasks with at most Concurrency transfers in flight and
// blocks until every task has reached an outcome. Cancelling ctx stops the
// run; Run still waits for every worker to clean up before returning.
func (d *Downloader) Run(ctx context.Context, tasks []DownloadTask) Summary {
	w := &worker{
		fs:        d.fs,
		httpc:     d.httpc,
		resolver:  NewResolver(d.httpc, d.cfg.UserAgent, d.cfg.TransferTimeout),
		stats:     d.stats,
		history:   d.history,
		log:       d.log,
		emit:      d.emit,
		userAgent: d.cfg.UserAgent,
		timeout:   d.cfg.TransferTimeout,
	}

	sem := semaphore.NewWeighted(int64(d.cfg.Concurrency))
	var wg sync.WaitGroup

	for _, task := range tasks {
		wg.Add(1)
		go func(t DownloadTask) {
			defer wg.Done()
			// The slot is held for the whole task.
			if err := sem.Acquire(ctx, 1); err != nil {
				w.cancelled(t, false)
				return
			}
			defer sem.Release(1)
			w.transfer(ctx, t)
		}(task)
	}
	wg.Wait()

	sum := Summary{Snapshot: d.stats.Snapshot(), Interrupted: ctx.Err() != nil}
	d.emit(ProgressEvent{
		Event: "done",
		Message: fmt.Sprintf("downloaded %d, skipped %d, failed %d, cancelled %d",
			sum.DownloadedFiles, sum.Skipped, sum.Failed, sum.Cancelled),
	})
	d.log.Info("run complete",
		zap.Int("downloaded", sum.DownloadedFiles),
		zap.Int("skipped", sum.Skipped),
		zap.Int("failed", sum.Failed),
		zap.Bool("interrupted", sum.Interrupted))
	return sum
}

// Download creates the output directory, plans link and runs the result.
// Only setup failures are returned; per-file failures are in the Summary.
func (d *Downloader) Download(ctx context.Context, link Link) (Summary, error) {
	if err := d.fs.MkdirAll(d.cfg.OutputDir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("create output directory: %w", err)
	}
	tasks, err := d.Plan(ctx, link)
	if err != nil {
		return Summary{Snapshot: d.stats.Snapshot()}, err
	}
	return d.Run(ctx, tasks), nil
}
