// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/spf13/cobra"

	"github.com/pdiddy/istat-engine/internal/constraints"
	"github.com/pdiddy/istat-engine/internal/docstore"
	"github.com/pdiddy/istat-engine/internal/mapping"
	"github.com/pdiddy/istat-engine/internal/pipeline"
	"github.com/pdiddy/istat-engine/internal/series"
)

var mappingCmd = &cobra.Command{
	Use:   "mapping <dataset-id>...",
	Short: "Resolve every dimension's codelist for a dataset",
	Long: `Mapping looks up the data structure definition of each dataset, fetches
the codelist bound to every dimension, and writes
mappings/mapping_{id}.json with the multilingual label of every code.`,
	Args: cobra.MinimumNArgs(1),
	RunE: withApp(runMapping),
}

func runMapping(cmd *cobra.Command, a *app, ids []string) error {
	r := mapping.NewResolver(a.client, a.store, a.reporter)
	return forEachDataset(cmd.Context(), a, ids, func(ctx context.Context, id string) error {
		doc, err := r.Build(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "wrote %s (%d dimensions)\n",
			path.Join(docstore.StageMappings, docstore.MappingName(id)), len(doc.Dimensions))
		return nil
	})
}

var constraintsCmd = &cobra.Command{
	Use:   "constraints <dataset-id>...",
	Short: "Narrow a dataset's mapping to the codes it actually uses",
	Long: `Constraints reads mappings/mapping_{id}.json, fetches the dataset's
available constraint and dataflow, and writes
constraints/constraints_{id}.json holding only the populated codes.
Run mapping first.`,
	Args: cobra.MinimumNArgs(1),
	RunE: withApp(runConstraints),
}

func runConstraints(cmd *cobra.Command, a *app, ids []string) error {
	r := constraints.NewResolver(a.client, a.store, a.reporter)
	return forEachDataset(cmd.Context(), a, ids, func(ctx context.Context, id string) error {
		doc, err := r.Build(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "wrote %s (%d dimensions)\n",
			path.Join(docstore.StageConstraints, docstore.ConstraintsName(id)), len(doc.Dimensions))
		return nil
	})
}

var extractCmd = &cobra.Command{
	Use:   "extract <dataset-id>...",
	Short: "Write one labelled Series Record per series of a dataset",
	Long: `Extract reads constraints/constraints_{id}.json, streams the dataset's
generic data message, and writes series/series_dataset_{id}_*.json for
every series with at least one observation. Run constraints first.`,
	Args: cobra.MinimumNArgs(1),
	RunE: withApp(runExtract),
}

func runExtract(cmd *cobra.Command, a *app, ids []string) error {
	e := series.NewExtractor(a.client, a.store, a.reporter)
	return forEachDataset(cmd.Context(), a, ids, func(ctx context.Context, id string) error {
		rpt, err := e.Build(ctx, id)
		if err != nil {
			return err
		}
		printSeriesReport(id, rpt)
		return nil
	})
}

var runCmd = &cobra.Command{
	Use:   "run <dataset-id>...",
	Short: "Run mapping, constraints, and extract for each dataset",
	Long: `Run executes the three stages in order for every dataset. Each stage
reads its input back from the document store, so a run is equivalent to
calling the stage subcommands one after another. A dataset stops at its
first failing stage; the other datasets still run.`,
	Args: cobra.MinimumNArgs(1),
	RunE: withApp(runPipeline),
}

func runPipeline(cmd *cobra.Command, a *app, ids []string) error {
	r := pipeline.NewRunner(a.client, a.store, a.reporter, nil)
	return forEachDataset(cmd.Context(), a, ids, func(ctx context.Context, id string) error {
		res, err := r.Run(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%s: %d dimensions mapped, %d constrained\n",
			id, len(res.Mapping.Dimensions), len(res.Constraints.Dimensions))
		printSeriesReport(id, res.Series)
		return nil
	})
}

func printSeriesReport(id string, rpt series.Report) {
	for _, s := range rpt.Skipped {
		fmt.Fprintf(os.Stdout, "skipped series %d: %s\n", s.Index, s.Reason)
	}
	fmt.Fprintf(os.Stdout, "%s: %d series written, %d skipped\n", id, len(rpt.Written), len(rpt.Skipped))
}

func init() {
	rootCmd.AddCommand(mappingCmd)
	rootCmd.AddCommand(constraintsCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(runCmd)
}
