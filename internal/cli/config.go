// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mfget/mfget/pkg/mediafire"
)

const appName = "mfget"

// DefaultConfig returns the default configuration.
func DefaultConfig() map[string]any {
	def := mediafire.DefaultSettings()
	return map[string]any{
		"output":            def.OutputDir,
		"threads":           def.Concurrency,
		"ignore-extensions": def.IgnoreExtensions,
		"ignore-names":      def.IgnoreNames,
		"timeout":           def.RequestTimeout.String(),
		"transfer-timeout":  def.TransferTimeout.String(),
		"strict-counting":   false,
		"progress":          "auto",
		"serve-addr":        "",
		"log-level":         "warn",
	}
}

// configDir returns <user config dir>/mfget.
func configDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not find user config directory: %w", err)
	}
	return filepath.Join(dir, appName), nil
}

// findConfig returns the first existing config.{json,yaml,yml} in dir.
func findConfig(dir string) string {
	for _, name := range []string{"config.json", "config.yaml", "config.yml"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func loadConfig(path string) (map[string]any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("invalid YAML config file: %w", err)
		}
	default: // .json or unknown
		if err := json.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("invalid JSON config file: %w", err)
		}
	}
	return cfg, nil
}

// applySettingsDefaults fills flags the user did not set from the config
// file.
func applySettingsDefaults(cmd *cobra.Command, ro *RootOpts, dst *mediafire.Settings, opts *downloadOpts) error {
	path := ro.Config
	if path == "" {
		if dir, err := configDir(); err == nil {
			path = findConfig(dir)
		}
	}
	if path == "" {
		return nil
	}

	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}
	return mergeConfig(cmd, cfg, ro, dst, opts)
}

func mergeConfig(cmd *cobra.Command, cfg map[string]any, ro *RootOpts, dst *mediafire.Settings, opts *downloadOpts) error {
	lookup := func(flagName string) (any, bool) {
		if cmd.Flags().Changed(flagName) {
			return nil, false
		}
		v, ok := cfg[flagName]
		return v, ok && v != nil
	}
	setStr := func(flagName string, set func(string)) {
		if v, ok := lookup(flagName); ok {
			set(fmt.Sprint(v))
		}
	}
	setInt := func(flagName string, set func(int)) {
		if v, ok := lookup(flagName); ok {
			var x int
			fmt.Sscan(fmt.Sprint(v), &x)
			set(x)
		}
	}
	setBool := func(flagName string, set func(bool)) {
		if v, ok := lookup(flagName); ok {
			set(fmt.Sprint(v) == "true")
		}
	}
	setList := func(flagName string, set func([]string)) {
		v, ok := lookup(flagName)
		if !ok {
			return
		}
		switch vv := v.(type) {
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				out = append(out, fmt.Sprint(x))
			}
			set(out)
		default:
			set(splitComma(fmt.Sprint(vv)))
		}
	}
	var errs []error
	setDuration := func(flagName string, set func(time.Duration)) {
		if v, ok := lookup(flagName); ok {
			d, err := time.ParseDuration(fmt.Sprint(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("config %q: %w", flagName, err))
				return
			}
			set(d)
		}
	}

	setStr("output", func(v string) { dst.OutputDir = v })
	setInt("threads", func(v int) { dst.Concurrency = v })
	setList("ignore-extensions", func(v []string) { dst.IgnoreExtensions = v })
	setList("ignore-names", func(v []string) { dst.IgnoreNames = v })
	setStr("endpoint", func(v string) { dst.Endpoint = v })
	setDuration("timeout", func(v time.Duration) { dst.RequestTimeout = v })
	setDuration("transfer-timeout", func(v time.Duration) { dst.TransferTimeout = v })
	setBool("strict-counting", func(v bool) { dst.StrictCounting = v })
	setStr("progress", func(v string) { opts.progress = v })
	setStr("serve-addr", func(v string) { opts.serveAddr = v })
	setBool("no-history", func(v bool) { opts.noHistory = v })
	setStr("log-level", func(v string) { ro.LogLevel = v })
	setStr("log-format", func(v string) { ro.LogFormat = v })

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

var (
	winEnvRe = regexp.MustCompile(`%([A-Za-z_][A-Za-z0-9_]*)%`)
	envRe    = regexp.MustCompile(`\$(?:\{([A-Za-z_][A-Za-z0-9_]*)\}|([A-Za-z_][A-Za-z0-9_]*))`)
)

// expandPath expands ~, $VAR, ${VAR} and %VAR%. Unset variables are kept
// as written.
func expandPath(p string) string {
	p = winEnvRe.ReplaceAllStringFunc(p, func(m string) string {
		if v, ok := os.LookupEnv(m[1 : len(m)-1]); ok {
			return v
		}
		return m
	})
	p = envRe.ReplaceAllStringFunc(p, func(m string) string {
		sub := envRe.FindStringSubmatch(m)
		name := sub[1] + sub[2]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return m
	})
	if p == "~" || strings.HasPrefix(p, "~/") || strings.HasPrefix(p, `~\`) {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[1:])
		}
	}
	return p
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		force   bool
		useYAML bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default configuration file",
		Long: `Creates a default configuration file at <user config dir>/mfget/config.json (or .yaml)

The configuration file sets default values for the download flags.
CLI flags always override config file values.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := configDir()
			if err != nil {
				return err
			}
			ext := ".json"
			if useYAML {
				ext = ".yaml"
			}
			configPath := filepath.Join(dir, "config"+ext)

			if _, err := os.Stat(configPath); err == nil && !force {
				return fmt.Errorf("config file already exists: %s\nUse --force to overwrite", configPath)
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("could not create config directory: %w", err)
			}

			cfg := DefaultConfig()
			var data []byte
			if useYAML {
				data, err = yaml.Marshal(cfg)
			} else {
				data, err = json.MarshalIndent(cfg, "", "  ")
			}
			if err != nil {
				return err
			}
			if err := os.WriteFile(configPath, data, 0o644); err != nil {
				return fmt.Errorf("could not write config file: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Created config file: %s\n\n", configPath)
			fmt.Fprintln(out, "Edit this file to set your defaults, for example the output directory or thread count.")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing config file")
	cmd.Flags().BoolVar(&useYAML, "yaml", false, "Create YAML config instead of JSON")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			dir, err := configDir()
			if err != nil {
				return err
			}
			configPath := findConfig(dir)
			if configPath == "" {
				fmt.Fprintln(out, "No config file found.")
				fmt.Fprintf(out, "Run 'mfget config init' to create one at:\n  %s\n", filepath.Join(dir, "config.json"))
				return nil
			}

			data, err := os.ReadFile(configPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Config file: %s\n\n", configPath)
			fmt.Fprintln(out, string(data))
			return nil
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := configDir()
			if err != nil {
				return err
			}
			p := findConfig(dir)
			if p == "" {
				p = filepath.Join(dir, "config.json")
			}
			fmt.Fprintln(cmd.OutOrStdout(), p)
			return nil
		},
	}
}
