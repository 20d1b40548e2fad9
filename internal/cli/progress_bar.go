// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/cheggaaa/pb/v3"

	"github.com/mfget/mfget/pkg/mediafire"
)

const barTemplate = `{{string . "prefix"}} {{counters . }} {{bar . }} {{percent . }} {{speed . }} {{rtime . "ETA %s"}}`

// barProgress draws one aggregate byte bar for the run. Events that arrive
// before Start are ignored. Unless counting is strict, a file skipped on a
// hash match advances the bar by its size, matching Stats.
type barProgress struct {
	out    io.Writer
	strict bool

	mu    sync.Mutex
	bar   *pb.ProgressBar
	files int
	done  int
}

func newBarProgress(out io.Writer, strict bool) *barProgress {
	return &barProgress{out: out, strict: strict}
}

// Start creates the bar once the plan totals are known.
func (b *barProgress) Start(totalSize uint64, files int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.files = files
	b.bar = pb.New64(int64(totalSize)).
		SetTemplateString(barTemplate).
		SetWriter(b.out).
		Set(pb.Bytes, true).
		Set("prefix", b.prefix()).
		Start()
}

func (b *barProgress) prefix() string {
	return fmt.Sprintf("[%d/%d files]", b.done, b.files)
}

// Handler returns a ProgressFunc that advances the bar.
func (b *barProgress) Handler() mediafire.ProgressFunc {
	return func(ev mediafire.ProgressEvent) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.bar == nil {
			return
		}
		switch ev.Event {
		case "file_progress":
			b.bar.Add64(ev.Bytes)
		case "file_done", "file_failed", "file_cancelled":
			if ev.Event == "file_done" && !b.strict && strings.HasPrefix(ev.Message, "skip") {
				b.bar.Add64(ev.Total)
			}
			b.done++
			b.bar.Set("prefix", b.prefix())
		}
	}
}

// Finish stops the bar.
func (b *barProgress) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bar != nil {
		b.bar.Finish()
	}
}
