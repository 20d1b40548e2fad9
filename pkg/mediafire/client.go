// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package mediafire

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultEndpoint is the MediaFire base URL.
const DefaultEndpoint = "https://www.mediafire.com"

// DefaultUserAgent is a browser user agent; download pages serve different
// markup to unknown clients.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:131.0) Gecko/20100101 Firefox/131.0"

// getEndpoint returns the endpoint to use, falling back to default if empty.
func getEndpoint(endpoint string) string {
	if endpoint == "" {
		return DefaultEndpoint
	}
	return strings.TrimSuffix(endpoint, "/")
}

// Content types accepted by the folder listing endpoint.
const (
	contentFiles   = "files"
	contentFolders = "folders"
)

// Client issues the read-only catalog requests. It never retries; every
// call is bounded by its own timeout.
type Client struct {
	httpc    *http.Client
	endpoint string
	timeout  time.Duration
}

// NewClient returns a catalog client. A nil httpc uses a client built with
// buildHTTPClient; a non-positive timeout defaults to 30s.
func NewClient(httpc *http.Client, endpoint string, timeout time.Duration) *Client {
	if httpc == nil {
		httpc = buildHTTPClient()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{httpc: httpc, endpoint: getEndpoint(endpoint), timeout: timeout}
}

// buildHTTPClient creates an HTTP client with sensible defaults.
func buildHTTPClient() *http.Client {
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Transport: tr}
}

// flexSize accepts sizes encoded either as JSON numbers or as strings.
type flexSize uint64

func (s *flexSize) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*s = 0
		return nil
	}
	n, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", b, err)
	}
	*s = flexSize(n)
	return nil
}

type apiFile struct {
	QuickKey string   `json:"quickkey"`
	Filename string   `json:"filename"`
	Size     flexSize `json:"size"`
	Hash     string   `json:"hash"`
	Links    struct {
		NormalDownload string `json:"normal_download"`
	} `json:"links"`
}

func (f apiFile) entry(fallbackKey string) FileEntry {
	key := f.QuickKey
	if key == "" {
		key = fallbackKey
	}
	return FileEntry{
		Name:         f.Filename,
		Size:         uint64(f.Size),
		Hash:         f.Hash,
		DownloadPage: f.Links.NormalDownload,
		Key:          key,
	}
}

type apiFolder struct {
	FolderKey string `json:"folderkey"`
	Name      string `json:"name"`
}

type fileInfoEnvelope struct {
	Response struct {
		FileInfo *apiFile `json:"file_info"`
	} `json:"response"`
}

type folderInfoEnvelope struct {
	Response struct {
		FolderInfo *apiFolder `json:"folder_info"`
	} `json:"response"`
}

type folderContent struct {
	Files      []apiFile   `json:"files"`
	Folders    []apiFolder `json:"folders"`
	MoreChunks string      `json:"more_chunks"`
}

type folderContentEnvelope struct {
	Response struct {
		FolderContent *folderContent `json:"folder_content"`
	} `json:"response"`
}

// FileInfo fetches the metadata of a single file.
func (c *Client) FileInfo(ctx context.Context, fileKey string) (FileEntry, error) {
	if fileKey == "" {
		return FileEntry{}, ErrMissingKey
	}
	var env fileInfoEnvelope
	if err := c.getJSON(ctx, fileInfoURL(c.endpoint, fileKey), &env); err != nil {
		return FileEntry{}, err
	}
	if env.Response.FileInfo == nil {
		return FileEntry{}, fmt.Errorf("file %s: %w", fileKey, ErrNotFound)
	}
	return env.Response.FileInfo.entry(fileKey), nil
}

// FolderInfo fetches the name of a folder.
func (c *Client) FolderInfo(ctx context.Context, folderKey string) (FolderEntry, error) {
	if folderKey == "" {
		return FolderEntry{}, ErrMissingKey
	}
	var env folderInfoEnvelope
	if err := c.getJSON(ctx, folderURL(c.endpoint, "folder", folderKey, 1, true), &env); err != nil {
		return FolderEntry{}, err
	}
	if env.Response.FolderInfo == nil {
		return FolderEntry{}, fmt.Errorf("folder %s: %w", folderKey, ErrNotFound)
	}
	return FolderEntry{Key: folderKey, Name: env.Response.FolderInfo.Name}, nil
}

// FileChunk fetches one page of the files directly inside a folder.
// Chunks are 1-indexed; keep requesting while more is true.
func (c *Client) FileChunk(ctx context.Context, folderKey string, chunk int) (files []FileEntry, more bool, err error) {
	env, err := c.folderContent(ctx, contentFiles, folderKey, chunk)
	if err != nil || env == nil {
		return nil, false, err
	}
	files = make([]FileEntry, 0, len(env.Files))
	for _, f := range env.Files {
		files = append(files, f.entry(""))
	}
	return files, env.MoreChunks == "yes", nil
}

// FolderChunk fetches one page of the sub-folders of a folder.
// Chunks are 1-indexed; keep requesting while more is true.
func (c *Client) FolderChunk(ctx context.Context, folderKey string, chunk int) (folders []FolderEntry, more bool, err error) {
	env, err := c.folderContent(ctx, contentFolders, folderKey, chunk)
	if err != nil || env == nil {
		return nil, false, err
	}
	folders = make([]FolderEntry, 0, len(env.Folders))
	for _, f := range env.Folders {
		folders = append(folders, FolderEntry{Key: f.FolderKey, Name: f.Name})
	}
	return folders, env.MoreChunks == "yes", nil
}

// folderContent returns nil without error when the envelope carries no
// folder_content.
func (c *Client) folderContent(ctx context.Context, contentType, folderKey string, chunk int) (*folderContent, error) {
	if folderKey == "" {
		return nil, ErrMissingKey
	}
	if chunk < 1 {
		chunk = 1
	}
	var env folderContentEnvelope
	if err := c.getJSON(ctx, folderURL(c.endpoint, contentType, folderKey, chunk, false), &env); err != nil {
		return nil, err
	}
	return env.Response.FolderContent, nil
}

func (c *Client) getJSON(ctx context.Context, reqURL string, v any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Status: resp.Status, URL: reqURL}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// URL builders

func fileInfoURL(endpoint, fileKey string) string {
	return fmt.Sprintf("%s/api/file/get_info.php?quick_key=%s&response_format=json",
		getEndpoint(endpoint), url.QueryEscape(fileKey))
}

func folderURL(endpoint, contentType, folderKey string, chunk int, info bool) string {
	action := "get_content"
	if info {
		action = "get_info"
	}
	return fmt.Sprintf("%s/api/1.4/folder/%s.php?r=utga&content_type=%s&filter=all&order_by=name&order_direction=asc&chunk=%d&version=1.5&folder_key=%s&response_format=json",
		getEndpoint(endpoint), action, contentType, chunk, url.QueryEscape(folderKey))
}
