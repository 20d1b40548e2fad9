// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package tui renders a live, adaptive progress table for a download run.
package tui

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/term"

	"github.com/mfget/mfget/pkg/mediafire"
)

// StatsSource provides the authoritative run counters.
type StatsSource interface {
	Snapshot() mediafire.Snapshot
}

// RunInfo is shown in the header.
type RunInfo struct {
	Link        string
	OutputDir   string
	Concurrency int
	Strict      bool
}

// LiveRenderer draws totals from a StatsSource and one row per active or
// recently finished file from progress events. It falls back to plain
// redraws when the output is not an ANSI terminal.
type LiveRenderer struct {
	info  RunInfo
	stats StatsSource
	out   io.Writer
	fd    int

	mu       sync.Mutex
	events   chan mediafire.ProgressEvent
	done     chan struct{}
	finished chan struct{}
	stopped  bool
	supports bool // ANSI + interactive
	noColor  bool
	hideCur  bool
	phase    string

	files map[string]*fileRow
	seq   int

	lastBytes uint64
	lastTick  time.Time
	speed     float64
}

type fileRow struct {
	path   string
	total  int64
	bytes  int64
	status string // "queued","active","done","skip","failed","cancelled"
	msg    string
	order  int

	lastBytes int64
	lastTime  time.Time
	speed     float64
}

// EMA smoothing factor (0.1 = very smooth, 0.5 = responsive)
const speedSmoothingFactor = 0.3

func smoothSpeed(current, previous float64) float64 {
	if previous == 0 {
		return current
	}
	return speedSmoothingFactor*current + (1-speedSmoothingFactor)*previous
}

func newRenderer(info RunInfo, stats StatsSource, out io.Writer) *LiveRenderer {
	lr := &LiveRenderer{
		info:     info,
		stats:    stats,
		out:      out,
		fd:       -1,
		events:   make(chan mediafire.ProgressEvent, 2048),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		files:    map[string]*fileRow{},
		noColor:  os.Getenv("NO_COLOR") != "",
		phase:    "scanning",
	}
	if f, ok := out.(*os.File); ok {
		lr.fd = int(f.Fd())
		lr.supports = term.IsTerminal(lr.fd) && ansiOkay()
	}
	return lr
}

// NewLiveRenderer starts a renderer writing to out. Call Close when the run
// ends.
func NewLiveRenderer(info RunInfo, stats StatsSource, out io.Writer) *LiveRenderer {
	lr := newRenderer(info, stats, out)
	if lr.supports {
		fmt.Fprint(lr.out, "\x1b[?25l")
		lr.hideCur = true
	}
	go lr.loop()
	return lr
}

// Supported reports whether out is an interactive ANSI terminal.
func (lr *LiveRenderer) Supported() bool { return lr.supports }

// Close draws the final frame and restores the terminal.
func (lr *LiveRenderer) Close() {
	lr.mu.Lock()
	if lr.stopped {
		lr.mu.Unlock()
		return
	}
	lr.stopped = true
	close(lr.done)
	lr.mu.Unlock()
	<-lr.finished
	if lr.hideCur {
		fmt.Fprint(lr.out, "\x1b[?25h")
	}
	fmt.Fprintln(lr.out)
}

// Handler returns a ProgressFunc that feeds events to the renderer.
func (lr *LiveRenderer) Handler() mediafire.ProgressFunc {
	return func(ev mediafire.ProgressEvent) {
		select {
		case lr.events <- ev:
		default:
			// Congested; totals still come from the stats source.
		}
	}
}

func (lr *LiveRenderer) loop() {
	defer close(lr.finished)
	ticker := time.NewTicker(150 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-lr.done:
			lr.drain()
			lr.render(lr.out)
			return
		case ev := <-lr.events:
			lr.apply(ev)
		case <-ticker.C:
			lr.render(lr.out)
		}
	}
}

func (lr *LiveRenderer) drain() {
	for {
		select {
		case ev := <-lr.events:
			lr.apply(ev)
		default:
			return
		}
	}
}

func (lr *LiveRenderer) apply(ev mediafire.ProgressEvent) {
	lr.mu.Lock()
	defer lr.mu.Unlock()

	switch ev.Event {
	case "scan_start":
		lr.phase = "scanning"
	case "plan_item":
		f := lr.row(ev.Path)
		f.total = ev.Total
		f.status = "queued"
	case "file_start":
		f := lr.row(ev.Path)
		if ev.Total > 0 {
			f.total = ev.Total
		}
		f.status = "active"
		lr.phase = "downloading"
	case "file_progress":
		f := lr.row(ev.Path)
		f.bytes = ev.Downloaded
		if f.lastTime.IsZero() {
			f.lastTime = time.Now()
			f.lastBytes = f.bytes
		}
	case "file_done":
		f := lr.row(ev.Path)
		f.status = "done"
		if strings.HasPrefix(ev.Message, "skip") {
			f.status = "skip"
		}
		f.bytes = max(f.bytes, f.total, ev.Downloaded)
	case "file_failed":
		f := lr.row(ev.Path)
		f.status = "failed"
		f.msg = ev.Message
	case "file_cancelled":
		lr.row(ev.Path).status = "cancelled"
	case "done":
		lr.phase = "finished"
	}
	if f, ok := lr.files[ev.Path]; ok && ev.Path != "" && ev.Event != "file_progress" {
		lr.seq++
		f.order = lr.seq
	}
}

func (lr *LiveRenderer) row(path string) *fileRow {
	if f, ok := lr.files[path]; ok {
		return f
	}
	f := &fileRow{path: path, status: "queued"}
	lr.files[path] = f
	return f
}

func (lr *LiveRenderer) render(out io.Writer) {
	lr.mu.Lock()
	defer lr.mu.Unlock()

	w, h := lr.termSize()
	w = max(w, 70)
	h = max(h, 12)

	var snap mediafire.Snapshot
	if lr.stats != nil {
		snap = lr.stats.Snapshot()
	}

	now := time.Now()
	if lr.lastTick.IsZero() {
		lr.lastTick, lr.lastBytes = now, snap.DownloadedBytes
	} else if dt := now.Sub(lr.lastTick).Seconds(); dt > 0.05 {
		if snap.DownloadedBytes >= lr.lastBytes {
			lr.speed = smoothSpeed(float64(snap.DownloadedBytes-lr.lastBytes)/dt, lr.speed)
		}
		lr.lastTick, lr.lastBytes = now, snap.DownloadedBytes
	}

	eta := "-"
	if lr.speed > 0 && snap.TotalSize > snap.DownloadedBytes {
		eta = fmtDuration(time.Duration(float64(snap.TotalSize-snap.DownloadedBytes)/lr.speed) * time.Second)
	}

	if lr.supports {
		fmt.Fprint(out, "\x1b[H\x1b[2J")
	}

	fmt.Fprintln(out, lr.colorize(lr.bold("MediaFire: "+lr.info.Link), "fg=cyan"))
	counting := "compat"
	if lr.info.Strict {
		counting = "strict"
	}
	fmt.Fprintln(out, lr.dim(fmt.Sprintf("Out: %s   Threads: %d   Counting: %s   Phase: %s",
		lr.info.OutputDir, lr.info.Concurrency, counting, lr.phase)))

	prog := ratio(int64(snap.DownloadedBytes), int64(snap.TotalSize))
	fmt.Fprintf(out, "%s  %s  %s/%s  %s/s  ETA %s\n",
		lr.colorize(renderBar(int(float64(w)*0.4), prog), "fg=green"),
		percent(prog),
		mediafire.FormatSize(snap.DownloadedBytes), mediafire.FormatSize(snap.TotalSize),
		mediafire.FormatSize(uint64(lr.speed)), eta,
	)
	fmt.Fprintf(out, "Files %d/%d   downloaded %d   skipped %d   existing %d   failed %d   cancelled %d\n",
		snap.Done(), snap.TotalFiles, snap.DownloadedFiles, snap.Skipped, snap.Existing, snap.Failed, snap.Cancelled)

	fmt.Fprintln(out)
	fmt.Fprintln(out, lr.headerRow("Status", "File", "Progress", "Speed", "ETA"))

	maxRows := max(h-9, 3)

	var active, rest []*fileRow
	for _, f := range lr.files {
		switch f.status {
		case "active":
			active = append(active, f)
		case "queued":
		default:
			rest = append(rest, f)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].bytes > active[j].bytes })
	sort.Slice(rest, func(i, j int) bool { return rest[i].order > rest[j].order })

	shown := 0
	for _, f := range append(active, rest...) {
		if shown >= maxRows {
			break
		}
		fmt.Fprintln(out, lr.renderRow(f, w, now))
		shown++
	}

	if lr.supports {
		fmt.Fprintln(out, lr.dim(fmt.Sprintf("Press Ctrl+C to cancel • %s %s", runtime.GOOS, runtime.GOARCH)))
	}
}

func (lr *LiveRenderer) renderRow(f *fileRow, w int, now time.Time) string {
	const statusW, speedW, etaW = 11, 12, 7
	remain := max(w-(statusW+speedW+etaW+8), 20)
	fileW := max(remain/2, 18)
	progressW := remain - fileW

	var icon, col string
	switch f.status {
	case "active":
		icon, col = "▶", "fg=yellow"
	case "done":
		icon, col = "✓", "fg=green"
	case "skip":
		icon, col = "•", "fg=blue"
	case "failed":
		icon, col = "×", "fg=red"
	case "cancelled":
		icon, col = "-", "fg=magenta"
	default:
		icon, col = "…", "fg=magenta"
	}
	status := pad(lr.colorize(icon+" "+f.status, col), statusW)

	if !f.lastTime.IsZero() {
		if dt := now.Sub(f.lastTime).Seconds(); dt > 0.05 {
			if d := f.bytes - f.lastBytes; d >= 0 {
				f.speed = smoothSpeed(float64(d)/dt, f.speed)
			}
			f.lastTime, f.lastBytes = now, f.bytes
		}
	}

	var progress string
	if f.status == "failed" && f.msg != "" {
		progress = truncate(f.msg, progressW)
	} else {
		p := ratio(f.bytes, f.total)
		progress = truncate(renderBar(progressW-22, p)+fmt.Sprintf(" %s/%s %s",
			mediafire.FormatSize(uint64(f.bytes)), mediafire.FormatSize(uint64(max(f.total, 0))), percent(p)), progressW)
	}

	speed, eta := "", ""
	if f.status == "active" {
		speed = mediafire.FormatSize(uint64(f.speed)) + "/s"
		eta = "-"
		if f.speed > 0 && f.total > f.bytes {
			eta = fmtDuration(time.Duration(float64(f.total-f.bytes)/f.speed) * time.Second)
		}
	}

	return fmt.Sprintf("%s  %s  %s  %s  %s", status, ellipsizeMiddle(f.path, fileW), pad(progress, progressW),
		pad(speed, speedW), pad(eta, etaW))
}

func (lr *LiveRenderer) headerRow(cols ...string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = lr.bold(c)
	}
	return strings.Join(parts, "  ")
}

func (lr *LiveRenderer) termSize() (int, int) {
	if lr.fd < 0 {
		return 100, 30
	}
	w, h, err := term.GetSize(lr.fd)
	if err != nil || w <= 0 || h <= 0 {
		return 100, 30
	}
	return w, h
}

func ratio(n, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return min(max(float64(n)/float64(total), 0), 1)
}

func ellipsizeMiddle(s string, w int) string {
	if w <= 3 || utf8.RuneCountInString(s) <= w {
		return pad(s, w)
	}
	runes := []rune(s)
	half := (w - 3) / 2
	return pad(string(runes[:half])+"..."+string(runes[len(runes)-half:]), w)
}

func truncate(s string, w int) string {
	if utf8.RuneCountInString(s) <= w {
		return s
	}
	return string([]rune(s)[:max(w, 0)])
}

func pad(s string, w int) string {
	if r := utf8.RuneCountInString(s); r < w {
		return s + strings.Repeat(" ", w-r)
	}
	return s
}

func renderBar(width int, p float64) string {
	width = max(width, 3)
	filled := min(int(p*float64(width)), width)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func percent(p float64) string {
	return fmt.Sprintf("%3.0f%%", p*100)
}

func fmtDuration(d time.Duration) string {
	d = max(d, 0)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

func ansiOkay() bool {
	return strings.ToLower(os.Getenv("TERM")) != "dumb"
}

func (lr *LiveRenderer) colorize(s, style string) string {
	if lr.noColor || !lr.supports {
		return s
	}
	code := map[string]string{
		"fg=green":   "32",
		"fg=yellow":  "33",
		"fg=red":     "31",
		"fg=blue":    "34",
		"fg=magenta": "35",
		"fg=cyan":    "36",
	}[style]
	if code == "" {
		return s
	}
	return "\x1b[" + code + "m" + s + "\x1b[0m"
}

func (lr *LiveRenderer) bold(s string) string {
	if lr.noColor || !lr.supports {
		return s
	}
	return "\x1b[1m" + s + "\x1b[0m"
}

func (lr *LiveRenderer) dim(s string) string {
	if lr.noColor || !lr.supports {
		return s
	}
	return "\x1b[2m" + s + "\x1b[0m"
}
