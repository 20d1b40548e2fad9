// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package mediafire

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// maxPageSize caps how much of a download page is read.
const maxPageSize = 8 << 20

// downloadPage is a fetched download page.
type downloadPage struct {
	raw    []byte
	button *html.Node // nil when the page has no download anchor
}

// strategy extracts a transfer URL from a page. Strategies are tried in
// order and the first hit wins.
type strategy struct {
	name string
	find func(p *downloadPage) (string, bool)
}

var defaultStrategies = []strategy{
	{name: "button-href", find: buttonHref},
	{name: "scrambled-url", find: scrambledURL},
	{name: "href-pattern", find: hrefPattern},
}

// Resolver turns an intermediate download page into a direct transfer URL.
type Resolver struct {
	httpc      *http.Client
	userAgent  string
	timeout    time.Duration
	strategies []strategy
}

// NewResolver returns a resolver using the standard strategy order.
func NewResolver(httpc *http.Client, userAgent string, timeout time.Duration) *Resolver {
	if httpc == nil {
		httpc = buildHTTPClient()
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Resolver{httpc: httpc, userAgent: userAgent, timeout: timeout, strategies: defaultStrategies}
}

// Resolve fetches pageURL and extracts the transfer URL from it. Every
// failure wraps ErrUnresolvable; a non-200 page also wraps *APIError.
func (r *Resolver) Resolve(ctx context.Context, pageURL string) (string, error) {
	if pageURL == "" {
		return "", fmt.Errorf("%w: no download page", ErrUnresolvable)
	}
	raw, err := r.fetch(ctx, pageURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnresolvable, err)
	}
	return r.extract(raw)
}

// ExtractLink runs the standard strategies over an already fetched page.
func ExtractLink(page []byte) (string, error) {
	r := Resolver{strategies: defaultStrategies}
	return r.extract(page)
}

func (r *Resolver) extract(raw []byte) (string, error) {
	p := &downloadPage{raw: raw}
	if doc, err := html.Parse(bytes.NewReader(raw)); err == nil {
		p.button = findByID(doc, "a", "downloadButton")
	}
	for _, s := range r.strategies {
		if link, ok := s.find(p); ok {
			return link, nil
		}
	}
	return "", ErrUnresolvable
}

func (r *Resolver) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Status: resp.Status, URL: pageURL}
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
}

// buttonHref uses the href of the download anchor when it is an absolute
// http(s) URL.
func buttonHref(p *downloadPage) (string, bool) {
	if p.button == nil {
		return "", false
	}
	href := strings.TrimSpace(attr(p.button, "href"))
	if href == "" {
		return "", false
	}
	u, err := url.Parse(href)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}
	return href, true
}

// scrambledURL decodes the base64 data-scrambled-url attribute of the
// download anchor.
func scrambledURL(p *downloadPage) (string, bool) {
	if p.button == nil {
		return "", false
	}
	enc := strings.TrimSpace(attr(p.button, "data-scrambled-url"))
	if enc == "" {
		return "", false
	}
	dec, err := base64.StdEncoding.DecodeString(enc)
	if err != nil || len(dec) == 0 || !utf8.Valid(dec) {
		return "", false
	}
	return string(dec), true
}

var transferHrefRe = regexp.MustCompile(`href=["'](https?://download[^"']+)["']`)

// hrefPattern scans the raw page for any link to a download host.
func hrefPattern(p *downloadPage) (string, bool) {
	m := transferHrefRe.FindSubmatch(p.raw)
	if m == nil {
		return "", false
	}
	return string(m[1]), true
}

// findByID returns the first element named tag whose id attribute is id.
func findByID(n *html.Node, tag, id string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag && attr(n, "id") == id {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, tag, id); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
