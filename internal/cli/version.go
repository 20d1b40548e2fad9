// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// BuildInfo holds version and build information.
type BuildInfo struct {
	Version   string `json:"version"`
	GoVersion string `json:"go"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	Commit    string `json:"commit"`
	BuildTime string `json:"built"`
	Modified  bool   `json:"modified,omitempty"`
}

// GetBuildInfo returns the current build information.
func GetBuildInfo(version string) BuildInfo {
	info := BuildInfo{
		Version:   version,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		Commit:    "unknown",
		BuildTime: "unknown",
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		applyVCS(&info, bi.Settings)
	}
	return info
}

func applyVCS(info *BuildInfo, settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			info.Commit = s.Value[:min(7, len(s.Value))]
		case "vcs.time":
			info.BuildTime = s.Value
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
}

func (b BuildInfo) write(w io.Writer) {
	commit := b.Commit
	if b.Modified {
		commit += " (dirty)"
	}
	fmt.Fprintf(w, "mfget %s\n", b.Version)
	fmt.Fprintf(w, "  Go:       %s\n", b.GoVersion)
	fmt.Fprintf(w, "  OS/Arch:  %s/%s\n", b.OS, b.Arch)
	fmt.Fprintf(w, "  Commit:   %s\n", commit)
	fmt.Fprintf(w, "  Built:    %s\n", b.BuildTime)
}

func newVersionCmd(version string, ro *RootOpts) *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version and build information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := GetBuildInfo(version)
			out := cmd.OutOrStdout()
			switch {
			case short:
				fmt.Fprintln(out, info.Version)
			case ro.JSONOut:
				return json.NewEncoder(out).Encode(info)
			default:
				info.write(out)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print only the version number")

	return cmd
}
