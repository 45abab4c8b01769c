// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/istat-engine/internal/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Index, query, and export written Series Records",
	Long: `Catalog manages a local SQLite index of the Series Records in the
document store. Use subcommands to index them, query them, or export.`,
}

// --- index subcommand ---

var catalogIndexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index every Series Record in the document store",
	Long: `Index reads every document under series/ and stores its dataset,
key, and observations in {catalog.dir}/index/catalog.db. Records whose
generation timestamp is unchanged are skipped on later runs.`,
	RunE: withApp(runCatalogIndex),
}

func runCatalogIndex(cmd *cobra.Command, a *app, _ []string) error {
	ctx := cmd.Context()
	store, err := catalog.NewStore(a.cfg.Catalog)
	if err != nil {
		return err
	}
	defer store.Close()

	summary, err := store.Ingest(ctx, a.store, os.Stdout)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d series document(s) failed indexing", summary.Failed)
	}
	return nil
}

// --- query subcommand ---

var catalogQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "List indexed series by dataset and dimension code",
	Long: `Query lists indexed series, optionally filtered by dataset id and by a
dimension/code pair of the series key. Use --series with a document name
to print that series' observations instead.`,
	RunE: withApp(runCatalogQuery),
}

func runCatalogQuery(cmd *cobra.Command, a *app, _ []string) error {
	ctx := cmd.Context()
	store, err := catalog.NewStore(a.cfg.Catalog)
	if err != nil {
		return err
	}
	defer store.Close()

	jsonOutput, _ := cmd.Flags().GetBool("json")

	if name, _ := cmd.Flags().GetString("series"); name != "" {
		obs, err := store.Observations(ctx, name)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(obs)
		}
		for _, o := range obs {
			fmt.Fprintf(os.Stdout, "%-12s  %s\n", o.TimePeriod, o.Value)
		}
		return nil
	}

	results, err := store.Query(ctx, catalogQueryOptions(cmd))
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(results)
	}
	return formatQueryOutput(results)
}

func formatQueryOutput(results []catalog.SeriesSummary) error {
	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-10s  %-50s  %-9s  %-9s  %s\n",
		"Dataset", "Key", "First", "Last", "Obs")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 92))

	for _, r := range results {
		pairs := make([]string, 0, len(r.Metadata))
		for _, e := range r.Metadata {
			pairs = append(pairs, e.Dimension+"="+e.Code)
		}
		key := strings.Join(pairs, ",")
		if len(key) > 50 {
			key = key[:47] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-10s  %-50s  %-9s  %-9s  %d\n",
			r.DatasetID, key, r.FirstPeriod, r.LastPeriod, r.Observations)
	}

	fmt.Fprintf(os.Stdout, "\n%d results\n", len(results))
	return nil
}

// --- export subcommand ---

var catalogExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export indexed series summaries to YAML or JSON",
	Long: `Export writes the indexed series (or a filtered subset) to
{catalog.dir}/index/export.yaml or export.json. Supports the same filter
flags as query.`,
	RunE: withApp(runCatalogExport),
}

func runCatalogExport(cmd *cobra.Command, a *app, _ []string) error {
	ctx := cmd.Context()
	store, err := catalog.NewStore(a.cfg.Catalog)
	if err != nil {
		return err
	}
	defer store.Close()

	opts := catalogQueryOptions(cmd)
	format, _ := cmd.Flags().GetString("format")

	switch format {
	case "yaml", "":
		if err := store.ExportYAML(ctx, opts); err != nil {
			return err
		}
		fmt.Println("Exported to", store.ExportPath("yaml"))
	case "json":
		if err := store.ExportJSON(ctx, opts); err != nil {
			return err
		}
		fmt.Println("Exported to", store.ExportPath("json"))
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	return nil
}

// --- shared helpers ---

func catalogQueryOptions(cmd *cobra.Command) catalog.QueryOptions {
	datasetID, _ := cmd.Flags().GetString("dataset")
	dimension, _ := cmd.Flags().GetString("dimension")
	code, _ := cmd.Flags().GetString("code")
	limit, _ := cmd.Flags().GetInt("limit")

	return catalog.QueryOptions{
		DatasetID:  datasetID,
		Dimension:  dimension,
		Code:       code,
		MaxResults: limit,
	}
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	// Shared flags on the parent command, inherited by subcommands.
	catalogCmd.PersistentFlags().String("catalog-dir", "", "base directory for the catalog (contains index/)")
	catalogCmd.PersistentFlags().Int("max-results", 0, "default maximum number of query results (default 20)")
	for flag, key := range map[string]string{"catalog-dir": "catalog.dir", "max-results": "catalog.max_results"} {
		if err := viper.BindPFlag(key, catalogCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	// Filter flags shared by query and export.
	for _, c := range []*cobra.Command{catalogQueryCmd, catalogExportCmd} {
		c.Flags().String("dataset", "", "filter by dataset id")
		c.Flags().String("dimension", "", "filter by dimension id")
		c.Flags().String("code", "", "filter by dimension code")
		c.Flags().Int("limit", 0, "maximum results (0 = use default)")
	}
	catalogQueryCmd.Flags().String("series", "", "print the observations of this series document")
	catalogQueryCmd.Flags().Bool("json", false, "output results as JSON")
	catalogExportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	// Wire subcommands.
	catalogCmd.AddCommand(catalogIndexCmd)
	catalogCmd.AddCommand(catalogQueryCmd)
	catalogCmd.AddCommand(catalogExportCmd)

	rootCmd.AddCommand(catalogCmd)
}
