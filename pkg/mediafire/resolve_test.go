// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package mediafire

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExtractLink(t *testing.T) {
	scrambled := base64.StdEncoding.EncodeToString([]byte("https://download2.mediafire.com/scrambled/file.zip"))

	tests := []struct {
		name string
		page string
		want string
		err  error
	}{
		{
			name: "href wins over scrambled url",
			page: `<a id="downloadButton" href="https://download1.mediafire.com/direct/file.zip" data-scrambled-url="` + scrambled + `">Download</a>`,
			want: "https://download1.mediafire.com/direct/file.zip",
		},
		{
			name: "scrambled url when href is a script",
			page: `<a id="downloadButton" href="javascript:void(0)" data-scrambled-url="` + scrambled + `">Download</a>`,
			want: "https://download2.mediafire.com/scrambled/file.zip",
		},
		{
			name: "scrambled url when href is missing",
			page: `<div><a id="downloadButton" data-scrambled-url="` + scrambled + `">Download</a></div>`,
			want: "https://download2.mediafire.com/scrambled/file.zip",
		},
		{
			name: "pattern fallback without button",
			page: `<p>mirror: <a class="alt" href="https://download9.mediafire.com/x/y/file.zip">here</a></p>`,
			want: "https://download9.mediafire.com/x/y/file.zip",
		},
		{
			name: "pattern fallback with broken scrambled url",
			page: `<a id="downloadButton" data-scrambled-url="%%%"></a><a href='http://download3.mediafire.com/f.bin'>x</a>`,
			want: "http://download3.mediafire.com/f.bin",
		},
		{
			name: "nothing to find",
			page: `<html><body><a href="https://www.mediafire.com/">home</a></body></html>`,
			err:  ErrUnresolvable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractLink([]byte(tt.page))
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestResolver_Resolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != DefaultUserAgent {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`<a id="downloadButton" href="https://download1.mediafire.com/a/b.zip">Download</a>`))
	}))
	defer srv.Close()

	r := NewResolver(srv.Client(), "", time.Second)

	link, err := r.Resolve(context.Background(), srv.URL+"/file")
	require.NoError(t, err)
	require.Equal(t, "https://download1.mediafire.com/a/b.zip", link)

	_, err = r.Resolve(context.Background(), srv.URL+"/missing")
	require.ErrorIs(t, err, ErrUnresolvable)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = r.Resolve(context.Background(), "")
	require.ErrorIs(t, err, ErrUnresolvable)
}
