// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package mediafire

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeFile struct {
	key  string
	name string
	body []byte

	// pageStatus and streamStatus default to 200.
	pageStatus   int
	streamStatus int
}

func (f *fakeFile) hash() string {
	sum := sha256.Sum256(f.body)
	return hex.EncodeToString(sum[:])
}

type fakeFolder struct {
	key     string
	name    string
	files   []string
	folders []string
}

// fakeMediaFire serves the catalog API, download pages and transfers.
type fakeMediaFire struct {
	srv *httptest.Server

	mu      sync.Mutex
	files   map[string]*fakeFile
	folders map[string]*fakeFolder

	// pageSize is the number of entries per listing chunk.
	pageSize int

	// streamDelay is slept inside every transfer.
	streamDelay time.Duration

	// hold makes transfers send one chunk and then wait for the client to
	// go away. started receives the file key once that chunk is flushed.
	hold    bool
	started chan string

	streams   atomic.Int32
	active    atomic.Int32
	maxActive atomic.Int32
}

func newFakeMediaFire(t *testing.T) *fakeMediaFire {
	t.Helper()
	f := &fakeMediaFire{
		files:    make(map[string]*fakeFile),
		folders:  make(map[string]*fakeFolder),
		pageSize: 100,
		started:  make(chan string, 16),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/file/get_info.php", f.handleFileInfo)
	mux.HandleFunc("GET /api/1.4/folder/get_info.php", f.handleFolderInfo)
	mux.HandleFunc("GET /api/1.4/folder/get_content.php", f.handleFolderContent)
	mux.HandleFunc("GET /page/{key}", f.handlePage)
	mux.HandleFunc("GET /dl/{key}", f.handleStream)
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeMediaFire) addFile(file *fakeFile) *fakeFile {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[file.key] = file
	return file
}

func (f *fakeMediaFire) addFolder(folder *fakeFolder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.folders[folder.key] = folder
}

// set changes server behavior under the lock.
func (f *fakeMediaFire) set(fn func(f *fakeMediaFire)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeMediaFire) settings(outputDir string) Settings {
	cfg := DefaultSettings()
	cfg.OutputDir = outputDir
	cfg.Endpoint = f.srv.URL
	cfg.RequestTimeout = 5 * time.Second
	cfg.TransferTimeout = 5 * time.Second
	return cfg
}

func (f *fakeMediaFire) fileJSON(file *fakeFile) map[string]any {
	return map[string]any{
		"quickkey": file.key,
		"filename": file.name,
		"size":     strconv.Itoa(len(file.body)),
		"hash":     file.hash(),
		"links":    map[string]string{"normal_download": f.srv.URL + "/page/" + file.key},
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeMediaFire) handleFileInfo(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	file, ok := f.files[r.URL.Query().Get("quick_key")]
	f.mu.Unlock()
	resp := map[string]any{}
	if ok {
		resp["file_info"] = f.fileJSON(file)
	}
	writeJSON(w, map[string]any{"response": resp})
}

func (f *fakeMediaFire) handleFolderInfo(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	folder, ok := f.folders[r.URL.Query().Get("folder_key")]
	f.mu.Unlock()
	resp := map[string]any{}
	if ok {
		resp["folder_info"] = map[string]string{"folderkey": folder.key, "name": folder.name}
	}
	writeJSON(w, map[string]any{"response": resp})
}

func (f *fakeMediaFire) handleFolderContent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f.mu.Lock()
	defer f.mu.Unlock()

	folder, ok := f.folders[q.Get("folder_key")]
	if !ok {
		writeJSON(w, map[string]any{"response": map[string]any{}})
		return
	}
	chunk, _ := strconv.Atoi(q.Get("chunk"))
	if chunk < 1 {
		chunk = 1
	}

	var keys []string
	if q.Get("content_type") == "folders" {
		keys = folder.folders
	} else {
		keys = folder.files
	}
	start := (chunk - 1) * f.pageSize
	end := min(start+f.pageSize, len(keys))
	if start > end {
		start = end
	}
	more := "no"
	if end < len(keys) {
		more = "yes"
	}

	content := map[string]any{"more_chunks": more}
	if q.Get("content_type") == "folders" {
		list := []map[string]string{}
		for _, k := range keys[start:end] {
			name := ""
			if sub, ok := f.folders[k]; ok {
				name = sub.name
			}
			list = append(list, map[string]string{"folderkey": k, "name": name})
		}
		content["folders"] = list
	} else {
		list := []map[string]any{}
		for _, k := range keys[start:end] {
			list = append(list, f.fileJSON(f.files[k]))
		}
		content["files"] = list
	}
	writeJSON(w, map[string]any{"response": map[string]any{"folder_content": content}})
}

func (f *fakeMediaFire) handlePage(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	file, ok := f.files[r.PathValue("key")]
	f.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	if file.pageStatus != 0 && file.pageStatus != http.StatusOK {
		w.WriteHeader(file.pageStatus)
		return
	}
	fmt.Fprintf(w, `<html><body><div class="download_link">
<a class="input popsok" aria-label="Download file" href="%s/dl/%s" id="downloadButton">Download</a>
</div></body></html>`, f.srv.URL, file.key)
}

func (f *fakeMediaFire) handleStream(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	file, ok := f.files[r.PathValue("key")]
	delay, hold := f.streamDelay, f.hold
	f.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	if file.streamStatus != 0 && file.streamStatus != http.StatusOK {
		w.WriteHeader(file.streamStatus)
		return
	}

	f.streams.Add(1)
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxActive.Load()
		if n <= m || f.maxActive.CompareAndSwap(m, n) {
			break
		}
	}

	if delay > 0 {
		time.Sleep(delay)
	}

	if hold {
		half := len(file.body) / 2
		_, _ = w.Write(file.body[:half])
		w.(http.Flusher).Flush()
		f.started <- file.key
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
		return
	}
	_, _ = w.Write(file.body)
}

// recordingHistory collects history entries.
type recordingHistory struct {
	mu      sync.Mutex
	entries [][2]string
}

func (h *recordingHistory) Record(name, size string) {
	h.mu.Lock()
	h.entries = append(h.entries, [2]string{name, size})
	h.mu.Unlock()
}

func (h *recordingHistory) names() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.entries))
	for _, e := range h.entries {
		out = append(out, e[0])
	}
	return out
}

// eventLog collects progress events.
type eventLog struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (l *eventLog) add(ev ProgressEvent) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) byType(name string) []ProgressEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []ProgressEvent
	for _, ev := range l.events {
		if ev.Event == name {
			out = append(out, ev)
		}
	}
	return out
}
