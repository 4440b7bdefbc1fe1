package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	"github.com/hupe1980/shapespace"
	"github.com/hupe1980/shapespace/distance"
	"github.com/hupe1980/shapespace/matrix"
	"github.com/hupe1980/shapespace/pairwise"
	"github.com/hupe1980/shapespace/partition"
)

func newDistanceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "distance [metric...]",
		Short: "Compute all-pairs distance matrices",
		Long: `Compute one N×N distance matrix per metric and write it as
<metric>_distance.bin with a .bin.dims sidecar.

Metrics: ` + strings.Join(metricNames(), ", ") + `, pca.
Metrics may also be listed in the run file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := args
			if len(names) == 0 {
				names = a.cfg.Metrics
			}
			p, src, err := a.pipeline(cmd.Context())
			if err != nil {
				return err
			}
			defer src.Close()

			report, err := p.ComputeDistances(cmd.Context(), names, a.cfg.Out)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report, a.cfg.Out)
			return nil
		},
	}
	addSourceFlags(cmd)
	cmd.Flags().Float64("pca-variance", shapespace.DefaultPCAVariance, "explained variance kept by the pca metric")
	cmd.Flags().Float64("minkowski-p", 2, "order of the minkowski metric")
	return cmd
}

func metricNames() []string {
	out := make([]string, 0, len(distance.Metrics()))
	for _, m := range distance.Metrics() {
		out = append(out, m.String())
	}
	return out
}

func newModelCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Fit a latent model per crystal of a partition hierarchy",
		Long: `Fit a linear latent model for every crystal of every persistence level and
write persistence-<level>/crystal-<id>/{W,w0,z}.bin.

The hierarchy is JSON ({"crystalPartitions": [...]}) or CSV with one row of
crystal ids per level.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.Partitions == "" {
				return fmt.Errorf("no partition hierarchy configured (--partitions)")
			}
			h, err := partition.ReadFile(a.cfg.Partitions, a.cfg.FirstLevel)
			if err != nil {
				return err
			}
			p, src, err := a.pipeline(cmd.Context())
			if err != nil {
				return err
			}
			defer src.Close()

			report, err := p.BuildModels(cmd.Context(), h, a.cfg.Out)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report, a.cfg.Out)
			return nil
		},
	}
	addSourceFlags(cmd)
	f := cmd.Flags()
	f.StringP("partitions", "p", "", "partition hierarchy file (.json or .csv)")
	f.Int("first-level", 0, "persistence of the first CSV row")
	f.IntP("components", "k", 0, "components per model (0 keeps all the data supports)")
	f.Float64("component-variance", 0, "keep the fewest components explaining this fraction")
	f.Int("max-components", 0, "cap on components per model")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "import <matrix.csv>",
		Short: "Publish a precomputed CSV distance matrix in binary form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, src, err := a.pipeline(cmd.Context())
			if err != nil {
				return err
			}
			defer src.Close()

			report, err := p.ImportDistances(cmd.Context(), args[0], name, a.cfg.Out)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report, a.cfg.Out)
			return nil
		},
	}
	addSourceFlags(cmd)
	cmd.Flags().StringVar(&name, "name", shapespace.PrecomputedMetric, "metric name of the output file")
	return cmd
}

func newInspectCmd(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file.bin>...",
		Short: "Print the shape, type and value range of binary matrices",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				if err := inspect(cmd.OutOrStdout(), path); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func inspect(w io.Writer, path string) error {
	m, dtype, err := matrix.ReadFile(path, matrix.RowMajor)
	if err != nil {
		return err
	}
	rows, cols := m.Dims()
	fmt.Fprintf(w, "%s: %d x %d %s\n", filepath.Base(path), rows, cols, dtype)
	if data := m.RawData(); len(data) > 0 {
		fmt.Fprintf(w, "  min %g max %g\n", floats.Min(data), floats.Max(data))
	}
	if rows == cols && rows > 0 {
		if err := pairwise.Validate(m); err != nil {
			fmt.Fprintf(w, "  not a distance matrix: %v\n", err)
		} else {
			fmt.Fprintln(w, "  symmetric, zero diagonal")
		}
	}
	return nil
}
