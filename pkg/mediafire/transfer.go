// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package mediafire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// chunkSize is the read size for streaming and hashing.
const chunkSize = 64 << 10

// progressInterval throttles file_progress events per file.
const progressInterval = 200 * time.Millisecond

// worker runs the per-file state machine. One worker value is shared by
// every goroutine of a run; it holds no per-task state.
type worker struct {
	fs        afero.Fs
	httpc     *http.Client
	resolver  *Resolver
	stats     *Stats
	history   HistorySink
	log       *zap.Logger
	emit      func(ProgressEvent)
	userAgent string
	timeout   time.Duration
}

// transfer brings one task to a terminal outcome and updates the counters.
// A partial destination file never survives a non-completed outcome.
func (w *worker) transfer(ctx context.Context, t DownloadTask) Outcome {
	dst := t.Path()

	if err := w.fs.MkdirAll(t.Dir, 0o755); err != nil {
		return w.fail(t, fmt.Errorf("create directory: %w", err), false)
	}

	if w.matchesLocal(t, dst) {
		w.stats.AddExisting(t.File.Size)
		w.log.Debug("already present", zap.String("file", dst))
		w.emit(ProgressEvent{Event: "file_done", Path: dst, Name: t.File.Name, Total: int64(t.File.Size), Message: "skip (hash match)"})
		return OutcomeSkipped
	}

	if ctx.Err() != nil {
		return w.cancelled(t, false)
	}

	w.emit(ProgressEvent{Event: "file_start", Path: dst, Name: t.File.Name, Total: int64(t.File.Size)})

	link, err := w.resolver.Resolve(ctx, t.File.DownloadPage)
	if err != nil {
		if ctx.Err() != nil {
			return w.cancelled(t, false)
		}
		return w.fail(t, err, false)
	}

	written, created, err := w.stream(ctx, t, link, dst)
	switch {
	case ctx.Err() != nil && (err != nil || written == 0):
		return w.cancelled(t, created)
	case err != nil:
		return w.fail(t, err, created)
	case written == 0:
		return w.fail(t, ErrZeroBytes, created)
	}

	if w.history != nil {
		w.history.Record(Sanitize(t.File.Name), FormatSize(t.File.Size))
	}
	w.stats.AddDownloaded()
	w.log.Info("downloaded", zap.String("file", dst), zap.Uint64("bytes", written))
	w.emit(ProgressEvent{Event: "file_done", Path: dst, Name: t.File.Name, Total: int64(t.File.Size), Downloaded: int64(written)})
	return OutcomeCompleted
}

// matchesLocal reports whether dst exists with the remote hash.
func (w *worker) matchesLocal(t DownloadTask, dst string) bool {
	if t.File.Hash == "" {
		return false
	}
	if ok, err := afero.Exists(w.fs, dst); err != nil || !ok {
		return false
	}
	sum, err := HashFile(w.fs, dst)
	if err != nil {
		w.log.Warn("cannot hash existing file", zap.String("file", dst), zap.Error(err))
		return false
	}
	return strings.EqualFold(sum, t.File.Hash)
}

// stream copies the transfer body to dst in chunkSize reads, checking ctx
// before each read. It returns the number of bytes written and whether dst
// was created.
func (w *worker) stream(ctx context.Context, t DownloadTask, link, dst string) (written uint64, created bool, err error) {
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(sctx, http.MethodGet, link, nil)
	if err != nil {
		return 0, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", w.userAgent)

	// The timeout covers the wait for response headers only.
	timer := time.AfterFunc(w.timeout, cancel)
	resp, err := w.httpc.Do(req)
	timer.Stop()
	if err != nil {
		return 0, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, false, &APIError{StatusCode: resp.StatusCode, Status: resp.Status, URL: link}
	}

	out, err := w.fs.Create(dst)
	if err != nil {
		return 0, false, fmt.Errorf("create file: %w", err)
	}

	var (
		pending  int64
		lastEmit = time.Now()
		buf      = make([]byte, chunkSize)
	)
	flush := func() {
		if pending == 0 {
			return
		}
		w.emit(ProgressEvent{
			Event:      "file_progress",
			Path:       dst,
			Name:       t.File.Name,
			Bytes:      pending,
			Total:      int64(t.File.Size),
			Downloaded: int64(written),
		})
		pending = 0
		lastEmit = time.Now()
	}

	for {
		if err := ctx.Err(); err != nil {
			out.Close()
			return written, true, err
		}
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				out.Close()
				return written, true, fmt.Errorf("write file: %w", werr)
			}
			written += uint64(n)
			pending += int64(n)
			w.stats.AddBytes(uint64(n))
			if time.Since(lastEmit) >= progressInterval {
				flush()
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			flush()
			out.Close()
			return written, true, rerr
		}
	}
	flush()

	if err := out.Close(); err != nil {
		return written, true, fmt.Errorf("close file: %w", err)
	}
	return written, true, nil
}

func (w *worker) fail(t DownloadTask, err error, removePartial bool) Outcome {
	if removePartial {
		w.remove(t.Path())
	}
	w.stats.AddFailed()
	terr := &TransferError{Name: t.File.Name, Err: err}
	w.log.Error("download failed", zap.String("file", t.Path()), zap.Error(err))
	w.emit(ProgressEvent{Event: "file_failed", Path: t.Path(), Name: t.File.Name, Total: int64(t.File.Size), Message: terr.Error()})
	return OutcomeFailed
}

func (w *worker) cancelled(t DownloadTask, removePartial bool) Outcome {
	if removePartial {
		w.remove(t.Path())
	}
	w.stats.AddCancelled()
	w.log.Debug("download cancelled", zap.String("file", t.Path()))
	w.emit(ProgressEvent{Event: "file_cancelled", Path: t.Path(), Name: t.File.Name, Total: int64(t.File.Size)})
	return OutcomeCancelled
}

func (w *worker) remove(path string) {
	if err := w.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		w.log.Warn("cannot remove partial file", zap.String("file", path), zap.Error(err))
	}
}
