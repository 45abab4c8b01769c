// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the istat-engine CLI. It wires
// configuration, the SDMX client, the document store, and reporters into
// the pipeline stages; the stages themselves live under internal/.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/istat-engine/internal/sdmx"
	"github.com/pdiddy/istat-engine/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// rootCmd is the base command for the istat-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "istat-engine",
	Short: "Resolve ISTAT SDMX metadata and extract labelled time series",
	Long: `istat-engine talks to the ISTAT SDMX REST service and turns a dataset's
structural metadata and observations into JSON documents.

Each stage is a subcommand: mapping resolves every dimension's codelist,
constraints narrows it to the codes a dataset actually uses, and extract
writes one labelled Series Record per series. run chains all three, and
catalog indexes the written series into a local SQLite database.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

// configDefaults lists every configuration key with its default value.
var configDefaults = map[string]any{
	"sdmx.base_url":                 sdmx.DefaultBaseURL,
	"sdmx.dataflow_agency":          sdmx.DefaultDataflowAgency,
	"sdmx.default_codelist_version": sdmx.DefaultCodelistVersion,
	"sdmx.timeout":                  sdmx.DefaultTimeout,
	"sdmx.user_agent":               sdmx.DefaultUserAgent,
	"sdmx.rate_limit_retries":       0,
	"store.backend":                 "fs",
	"store.root":                    "data",
	"store.minio.endpoint":          "",
	"store.minio.bucket":            "",
	"store.minio.use_ssl":           true,
	"store.minio.access_key":        "",
	"store.minio.secret_key":        "",
	"catalog.dir":                   "data",
	"catalog.max_results":           20,
	"log.level":                     "info",
	"log.format":                    "text",
	"metrics.textfile":              "",
}

// flagKeys maps persistent flags to the configuration key they override.
var flagKeys = map[string]string{
	"base-url":           "sdmx.base_url",
	"timeout":            "sdmx.timeout",
	"rate-limit-retries": "sdmx.rate_limit_retries",
	"store":              "store.backend",
	"store-root":         "store.root",
	"log-level":          "log.level",
	"log-format":         "log.format",
	"metrics-textfile":   "metrics.textfile",
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: istat-engine.yaml in . or ~/.config/istat-engine/)")
	pf.String("base-url", "", "SDMX REST root (default "+sdmx.DefaultBaseURL+")")
	pf.Duration("timeout", 0, "per-call HTTP timeout (default 30s)")
	pf.Int("rate-limit-retries", 0, "retries after HTTP 429 (default 0)")
	pf.String("store", "", "document store backend: fs or minio (default fs)")
	pf.String("store-root", "", "base directory of the fs store (default data)")
	pf.String("log-level", "", "log level: debug, info, warn, error (default info)")
	pf.String("log-format", "", "log format: text or json (default text)")
	pf.String("metrics-textfile", "", "write Prometheus metrics to this file on exit")

	for flag, key := range flagKeys {
		if err := viper.BindPFlag(key, pf.Lookup(flag)); err != nil {
			panic(err)
		}
	}
	for key, value := range configDefaults {
		viper.SetDefault(key, value)
	}
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("istat-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "istat-engine"))
		}
	}

	viper.SetEnvPrefix("ISTAT_ENGINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
