// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

/*
Package mediafire provides a Go library for bulk-downloading files and folders
from MediaFire with hash-based resume, bounded concurrency and cooperative
cancellation.

# Features

  - Recursive discovery: folder trees are walked through the paginated catalog API
  - Bounded concurrency: at most Settings.Concurrency files transfer at once
  - Resume by content: files already on disk with a matching SHA-256 are skipped
  - Ignore rules: junk files are filtered by extension or exact name before transfer
  - Link resolution: download pages are scraped with an ordered list of strategies
  - Context cancellation: partial files are removed when the context is canceled

# Quick Start

	link, err := mediafire.ParseLink("https://www.mediafire.com/folder/abc123/Stuff")
	if err != nil {
		log.Fatal(err)
	}

	cfg := mediafire.DefaultSettings()
	cfg.OutputDir = "./Downloads"

	d := mediafire.New(cfg, mediafire.WithLogger(logger))
	sum, err := d.Download(ctx, link)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("downloaded %d/%d files\n", sum.DownloadedFiles, sum.TotalFiles)

# Two Phases

Download runs discovery first (Plan), which is sequential and produces a flat
list of DownloadTask values, then hands the list to the scheduler (Run), which
starts one goroutine per task and admits them through a weighted semaphore.
Both phases can be called separately for dry runs or custom planning.

# Progress

Aggregate counters live in a Stats value shared by all workers; renderers poll
Stats.Snapshot. Per-file events are delivered through the ProgressFunc passed
with WithProgress:

  - scan_start: discovery has begun
  - plan_item: a file has been added to the task list
  - file_start: transfer of a file has started
  - file_progress: a chunk was written
  - file_done: a file finished (Message is "skip (hash match)" when skipped)
  - file_failed: a file failed (Message holds the reason)
  - file_cancelled: a file was abandoned because the context was canceled
  - done: all workers have exited

# Counting

A file already present on disk with the expected hash counts as both skipped
and downloaded so that "done/total" progress stays monotonic. Set
Settings.StrictCounting to count it only as skipped.

# Errors

Nothing in this package retries. Failures are isolated to the file or folder
branch that produced them, counted in Stats and logged; Download itself only
returns an error when the link cannot be planned or the output directory cannot
be created.
*/
package mediafire
