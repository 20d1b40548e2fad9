// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/mfget/mfget/internal/history"
)

func newHistoryCmd(ro *RootOpts) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently completed downloads",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := history.DefaultPath()
			if err != nil {
				return err
			}
			entries, err := history.New(afero.NewOsFs(), path, nil).List()
			if err != nil {
				return fmt.Errorf("read history %s: %w", path, err)
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[:limit]
			}
			return printHistory(cmd.OutOrStdout(), entries, ro.JSONOut)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most this many entries (0 = all)")
	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the history file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := history.DefaultPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	})
	return cmd
}

func printHistory(w io.Writer, entries []history.Entry, asJSON bool) error {
	if asJSON {
		if entries == nil {
			entries = []history.Entry{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "No downloads recorded yet.")
		return nil
	}
	fmt.Fprintf(w, "%-19s  %10s  %s\n", "Date", "Size", "File")
	for _, e := range entries {
		fmt.Fprintf(w, "%-19s  %10s  %s\n", e.Date, e.Size, e.File)
	}
	return nil
}
