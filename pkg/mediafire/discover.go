// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package mediafire

import (
	"context"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Catalog is the remote listing API used by discovery. *Client implements it.
type Catalog interface {
	FileInfo(ctx context.Context, fileKey string) (FileEntry, error)
	FolderInfo(ctx context.Context, folderKey string) (FolderEntry, error)
	FileChunk(ctx context.Context, folderKey string, chunk int) ([]FileEntry, bool, error)
	FolderChunk(ctx context.Context, folderKey string, chunk int) ([]FolderEntry, bool, error)
}

// discoverer walks a folder tree once, sequentially.
type discoverer struct {
	catalog Catalog
	ignore  IgnorePolicy
	stats   *Stats
	log     *zap.Logger
	emit    func(ProgressEvent)

	// visited guards against a folder listed under itself.
	visited map[string]struct{}
}

func newDiscoverer(c Catalog, ignore IgnorePolicy, stats *Stats, log *zap.Logger, emit func(ProgressEvent)) *discoverer {
	return &discoverer{
		catalog: c,
		ignore:  ignore,
		stats:   stats,
		log:     log,
		emit:    emit,
		visited: make(map[string]struct{}),
	}
}

// file plans a single-file link into dir. A file the catalog cannot return
// is logged and yields no task, like an unreadable folder.
func (d *discoverer) file(ctx context.Context, fileKey, dir string) []DownloadTask {
	f, err := d.catalog.FileInfo(ctx, fileKey)
	if err != nil {
		d.log.Error("cannot fetch file info", zap.String("file", fileKey), zap.Error(err))
		return nil
	}
	if !d.accept(f) {
		return nil
	}
	t := DownloadTask{File: f, Dir: dir}
	d.planned(t)
	return []DownloadTask{t}
}

// discover returns every eligible file under folderKey, placed below
// basePath/<sanitized folder name>. A branch that cannot be read is logged
// and contributes nothing; its siblings are unaffected.
func (d *discoverer) discover(ctx context.Context, folderKey, basePath string) []DownloadTask {
	if ctx.Err() != nil {
		return nil
	}
	if _, ok := d.visited[folderKey]; ok {
		d.log.Warn("folder already visited", zap.String("folder", folderKey))
		return nil
	}
	d.visited[folderKey] = struct{}{}

	info, err := d.catalog.FolderInfo(ctx, folderKey)
	if err != nil {
		d.log.Error("cannot access folder", zap.String("folder", folderKey), zap.Error(err))
		return nil
	}
	current := filepath.Join(basePath, Sanitize(info.Name))
	d.log.Debug("scanning folder", zap.String("folder", folderKey), zap.String("path", current))

	var tasks []DownloadTask

	for chunk := 1; ; chunk++ {
		files, more, err := d.catalog.FileChunk(ctx, folderKey, chunk)
		if err != nil {
			d.log.Error("cannot fetch files chunk",
				zap.String("folder", folderKey), zap.Int("chunk", chunk), zap.Error(err))
			break
		}
		for _, f := range files {
			if !d.accept(f) {
				continue
			}
			t := DownloadTask{File: f, Dir: current}
			d.planned(t)
			tasks = append(tasks, t)
		}
		if !more {
			break
		}
	}

	for chunk := 1; ; chunk++ {
		folders, more, err := d.catalog.FolderChunk(ctx, folderKey, chunk)
		if err != nil {
			d.log.Error("cannot fetch subfolders chunk",
				zap.String("folder", folderKey), zap.Int("chunk", chunk), zap.Error(err))
			break
		}
		for _, sub := range folders {
			tasks = append(tasks, d.discover(ctx, sub.Key, current)...)
		}
		if !more {
			break
		}
	}

	return tasks
}

// accept applies the ignore policy, counting rejected files as skipped.
func (d *discoverer) accept(f FileEntry) bool {
	name := Sanitize(f.Name)
	if d.ignore.Ignored(name) {
		d.stats.AddSkipped()
		d.log.Debug("ignored", zap.String("file", name))
		return false
	}
	return true
}

func (d *discoverer) planned(t DownloadTask) {
	d.emit(ProgressEvent{
		Time:  time.Now(),
		Event: "plan_item",
		Path:  t.Path(),
		Name:  t.File.Name,
		Total: int64(t.File.Size),
	})
}
