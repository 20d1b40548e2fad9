// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/mfget/mfget/internal/history"
	"github.com/mfget/mfget/internal/logging"
	"github.com/mfget/mfget/internal/metrics"
	"github.com/mfget/mfget/internal/server"
	"github.com/mfget/mfget/internal/tui"
	"github.com/mfget/mfget/pkg/mediafire"
)

// RootOpts holds global CLI options.
type RootOpts struct {
	JSONOut   bool
	Quiet     bool
	Verbose   bool
	Config    string
	LogFile   string
	LogLevel  string
	LogFormat string
}

// downloadOpts holds the CLI-only options of the download command.
type downloadOpts struct {
	dryRun    bool
	planFmt   string
	progress  string
	serveAddr string
	noHistory bool
}

var errInterrupted = errors.New("interrupted")

// Execute runs the CLI with the given version string.
func Execute(version string) error {
	ro := &RootOpts{}
	ctx, cancel := signalContext(context.Background())
	defer cancel()

	root := newRootCmd(ctx, ro, version)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return err
	}
	return nil
}

func newRootCmd(ctx context.Context, ro *RootOpts, version string) *cobra.Command {
	root := &cobra.Command{
		Use:           "mfget [LINK]",
		Short:         "Bulk downloader for MediaFire files and folders",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}

	// Global flags
	root.PersistentFlags().BoolVar(&ro.JSONOut, "json", false, "Emit machine-readable JSON events (progress, plan, results)")
	root.PersistentFlags().BoolVarP(&ro.Quiet, "quiet", "q", false, "Quiet mode (errors only)")
	root.PersistentFlags().BoolVarP(&ro.Verbose, "verbose", "v", false, "Verbose logs (debug details)")
	root.PersistentFlags().StringVar(&ro.Config, "config", "", "Path to config file (JSON or YAML)")
	root.PersistentFlags().StringVar(&ro.LogFile, "log-file", "", "Write logs to file instead of stderr")
	root.PersistentFlags().StringVar(&ro.LogLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&ro.LogFormat, "log-format", "console", "Log format: console, json")

	downloadCmd := newDownloadCmd(ctx, ro, version)
	root.AddCommand(downloadCmd)
	root.AddCommand(newVersionCmd(version, ro))
	root.AddCommand(newConfigCmd())
	root.AddCommand(newHistoryCmd(ro))

	// Make download the default command when no subcommand is given
	root.Flags().AddFlagSet(downloadCmd.Flags())
	root.Args = downloadCmd.Args
	root.PreRunE = downloadCmd.PreRunE
	root.RunE = downloadCmd.RunE
	root.SetHelpCommand(&cobra.Command{Use: "help", Hidden: true})
	return root
}

func newDownloadCmd(ctx context.Context, ro *RootOpts, version string) *cobra.Command {
	cfg := &mediafire.Settings{}
	opts := &downloadOpts{}

	cmd := &cobra.Command{
		Use:   "download LINK",
		Short: "Download a MediaFire file or folder",
		Long: `Download a MediaFire file or folder link.

Folders are walked recursively and recreated under the output directory.
Files already on disk with a matching SHA-256 are skipped.

Example:
  mfget https://www.mediafire.com/folder/abc123/Stuff
  mfget download -o ~/Downloads -t 20 https://www.mediafire.com/file/xyz789/report.pdf`,
		Args: cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return applySettingsDefaults(cmd, ro, cfg, opts)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			link, finalCfg, err := finalize(args, cfg)
			if err != nil {
				return err
			}
			return runDownload(ctx, cmd.OutOrStdout(), ro, opts, link, args[0], finalCfg, version)
		},
	}

	def := mediafire.DefaultSettings()
	cmd.Flags().StringVarP(&cfg.OutputDir, "output", "o", def.OutputDir, "Destination base directory ($VAR and ~ are expanded)")
	cmd.Flags().IntVarP(&cfg.Concurrency, "threads", "t", def.Concurrency, "Maximum number of files downloading at once")
	cmd.Flags().StringSliceVar(&cfg.IgnoreExtensions, "ignore-extensions", def.IgnoreExtensions, "Comma-separated name suffixes to skip")
	cmd.Flags().StringSliceVar(&cfg.IgnoreNames, "ignore-names", def.IgnoreNames, "Comma-separated exact file names to skip")
	cmd.Flags().StringVar(&cfg.Endpoint, "endpoint", def.Endpoint, "MediaFire base URL")
	cmd.Flags().DurationVar(&cfg.RequestTimeout, "timeout", def.RequestTimeout, "Timeout for each catalog request")
	cmd.Flags().DurationVar(&cfg.TransferTimeout, "transfer-timeout", def.TransferTimeout, "Timeout for download pages and transfer response headers")
	cmd.Flags().BoolVar(&cfg.StrictCounting, "strict-counting", false, "Do not count files already on disk as downloaded")

	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Plan only: print the file list and exit")
	cmd.Flags().StringVar(&opts.planFmt, "plan-format", "table", "Plan output format for --dry-run: table|json")
	cmd.Flags().StringVar(&opts.progress, "progress", "auto", "Progress display: auto|tui|bar|plain|none")
	cmd.Flags().StringVar(&opts.serveAddr, "serve-addr", "", "Serve live stats, WebSocket and metrics on this address (e.g. 127.0.0.1:8080)")
	cmd.Flags().BoolVar(&opts.noHistory, "no-history", false, "Do not record completed downloads in the history file")

	return cmd
}

func runDownload(ctx context.Context, out io.Writer, ro *RootOpts, opts *downloadOpts, link mediafire.Link, rawLink string, cfg mediafire.Settings, version string) error {
	log, err := newLogger(ro)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	var sinks dispatcher
	dopts := []mediafire.Option{mediafire.WithLogger(log), mediafire.WithProgress(sinks.emit)}
	if !opts.noHistory && !opts.dryRun {
		if path, err := history.DefaultPath(); err == nil {
			dopts = append(dopts, mediafire.WithHistory(history.New(afero.NewOsFs(), path, log)))
		} else {
			log.Warn("history disabled", zap.Error(err))
		}
	}
	d := mediafire.New(cfg, dopts...)

	// Plan-only mode
	if opts.dryRun {
		tasks, err := d.Plan(ctx, link)
		if err != nil {
			return err
		}
		return printPlan(out, tasks, strings.ToLower(opts.planFmt) == "json" || ro.JSONOut)
	}

	if opts.serveAddr != "" {
		m := metrics.New()
		srv := server.New(server.Config{Addr: opts.serveAddr, Version: version, Logger: log, Metrics: m})
		srv.Attach(d.Stats(), d.RunID(), rawLink)
		sinks.add(srv.Progress())

		srvCtx, stop := context.WithCancel(ctx)
		defer stop()
		go func() {
			if err := srv.ListenAndServe(srvCtx); err != nil {
				log.Error("stats server", zap.Error(err))
			}
		}()
	}

	mode := progressMode(opts.progress, ro, out)
	var bar *barProgress
	closeUI := func() {}
	switch mode {
	case "json":
		sinks.add(jsonProgress(out))
	case "tui":
		ui := tui.NewLiveRenderer(tui.RunInfo{
			Link:        rawLink,
			OutputDir:   cfg.OutputDir,
			Concurrency: d.Settings().Concurrency,
			Strict:      cfg.StrictCounting,
		}, d.Stats(), out)
		closeUI = ui.Close
		defer ui.Close()
		sinks.add(ui.Handler())
	case "bar":
		bar = newBarProgress(out, cfg.StrictCounting)
		sinks.add(bar.Handler())
	case "plain":
		sinks.add(cliProgress(out, rawLink))
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	tasks, err := d.Plan(ctx, link)
	if err != nil {
		return err
	}
	if len(tasks) == 0 && mode != "json" {
		closeUI()
		fmt.Fprintf(out, "Warning: no files found to download for %s\n", rawLink)
		return nil
	}
	if bar != nil {
		snap := d.Stats().Snapshot()
		bar.Start(snap.TotalSize, snap.TotalFiles)
	}
	sum := d.Run(ctx, tasks)
	if bar != nil {
		bar.Finish()
	}
	closeUI()

	if mode == "json" {
		_ = json.NewEncoder(out).Encode(map[string]any{"event": "summary", "summary": sum})
	} else {
		printSummary(out, sum)
	}

	if sum.Interrupted {
		return errInterrupted
	}
	return nil
}

func newLogger(ro *RootOpts) (*zap.Logger, error) {
	level := ro.LogLevel
	switch {
	case ro.Verbose:
		level = "debug"
	case ro.Quiet:
		level = "error"
	}
	return logging.New(logging.Config{Level: level, Format: ro.LogFormat, OutputPath: ro.LogFile})
}

// progressMode resolves "auto" against the output and the global flags.
func progressMode(mode string, ro *RootOpts, out io.Writer) string {
	if ro.JSONOut {
		return "json"
	}
	mode = strings.ToLower(strings.TrimSpace(mode))
	switch mode {
	case "tui", "bar", "plain", "none":
		return mode
	}
	if ro.Quiet {
		return "none"
	}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "tui"
	}
	return "plain"
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(ch)
	}()
	return ctx, cancel
}

func finalize(args []string, cfg *mediafire.Settings) (mediafire.Link, mediafire.Settings, error) {
	c := *cfg
	c.OutputDir = expandPath(c.OutputDir)

	link, err := mediafire.ParseLink(strings.TrimSpace(args[0]))
	if err != nil {
		return link, c, err
	}
	if c.Concurrency <= 0 {
		return link, c, fmt.Errorf("--threads must be positive, got %d", c.Concurrency)
	}
	return link, c, nil
}

func splitComma(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// dispatcher fans events out to sinks added after the Downloader is built.
type dispatcher struct {
	mu    sync.RWMutex
	sinks []mediafire.ProgressFunc
}

func (d *dispatcher) add(fn mediafire.ProgressFunc) {
	if fn == nil {
		return
	}
	d.mu.Lock()
	d.sinks = append(d.sinks, fn)
	d.mu.Unlock()
}

func (d *dispatcher) emit(ev mediafire.ProgressEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, fn := range d.sinks {
		fn(ev)
	}
}

func printPlan(w io.Writer, tasks []mediafire.DownloadTask, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(tasks)
	}
	var total uint64
	for _, t := range tasks {
		total += t.File.Size
	}
	fmt.Fprintf(w, "Plan (%d files, %s):\n", len(tasks), mediafire.FormatSize(total))
	for _, t := range tasks {
		fmt.Fprintf(w, "  %s  %10s\n", t.Path(), mediafire.FormatSize(t.File.Size))
	}
	return nil
}

func printSummary(w io.Writer, s mediafire.Summary) {
	rows := [][2]string{
		{"Total files found", fmt.Sprint(s.TotalFiles)},
		{"Downloaded", fmt.Sprint(s.DownloadedFiles)},
		{"Skipped", fmt.Sprint(s.Skipped)},
		{"Failed", fmt.Sprint(s.Failed)},
		{"Total size", mediafire.FormatSize(s.TotalSize)},
		{"Downloaded size", mediafire.FormatSize(s.DownloadedBytes)},
	}
	if s.Cancelled > 0 {
		rows = append(rows, [2]string{"Cancelled", fmt.Sprint(s.Cancelled)})
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Download summary")
	for _, r := range rows {
		fmt.Fprintf(w, "  %-18s %s\n", r[0]+":", r[1])
	}
	if s.Interrupted {
		fmt.Fprintln(w, "  (interrupted)")
	}
}

// cliProgress returns a simple line-based progress handler.
func cliProgress(w io.Writer, link string) mediafire.ProgressFunc {
	var mu sync.Mutex
	return func(ev mediafire.ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		switch ev.Event {
		case "scan_start":
			fmt.Fprintf(w, "Scanning %s ...\n", link)
		case "file_start":
			fmt.Fprintf(w, "downloading: %s (%s)\n", ev.Path, mediafire.FormatSize(uint64(max(ev.Total, 0))))
		case "file_done":
			if strings.HasPrefix(ev.Message, "skip") {
				fmt.Fprintf(w, "skip: %s %s\n", ev.Path, ev.Message)
			} else {
				fmt.Fprintf(w, "done: %s\n", ev.Path)
			}
		case "file_failed":
			fmt.Fprintf(w, "failed: %s: %s\n", ev.Path, ev.Message)
		case "file_cancelled":
			fmt.Fprintf(w, "cancelled: %s\n", ev.Path)
		case "done":
			fmt.Fprintln(w, ev.Message)
		}
	}
}

// jsonProgress returns a JSON-lines progress handler.
func jsonProgress(w io.Writer) mediafire.ProgressFunc {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	var mu sync.Mutex
	return func(ev mediafire.ProgressEvent) {
		mu.Lock()
		_ = enc.Encode(ev)
		mu.Unlock()
	}
}
