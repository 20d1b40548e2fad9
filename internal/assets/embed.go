// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package assets embeds the live stats dashboard served by internal/server.
package assets

import (
	"embed"
	"io/fs"
)

//go:embed static/*
var staticFiles embed.FS

// StaticFS returns the dashboard files rooted at static/.
func StaticFS() fs.FS {
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
