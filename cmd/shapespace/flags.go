package main

import (
	"github.com/spf13/cobra"
)

// addSourceFlags registers the flags shared by commands that read samples.
// Defaults shown in help are the built-in ones; a run file may change them.
func addSourceFlags(cmd *cobra.Command) {
	d := defaultConfig()
	f := cmd.Flags()
	f.StringP("source", "s", "", "sample source: dir, s3://bucket/prefix, minio://bucket/prefix, file.parquet or sqlite://path")
	f.String("pattern", "", "glob on sample base names, e.g. *.f32")
	f.Int("offset", d.Offset, "id of the first sample")
	f.String("format", d.Format, "payload format (auto, float32, float64, float16, uint8, text)")
	f.String("compression", d.Compression, "payload compression (auto, none, zstd, lz4, gzip)")
	f.String("table", d.Table, "SQLite table name")
	f.StringP("out", "o", "", "output directory")
	f.String("export", "", "mirror outputs to this store (dir, s3:// or minio://)")
	f.Bool("report", d.Report, "write a JSON run report")
	f.IntP("workers", "w", 0, "loader goroutines (default GOMAXPROCS)")
	f.IntP("blocks", "b", d.Blocks, "number of blocks per collection or crystal")
	f.Int64("memory-budget", 0, "size blocks to this many decoded bytes instead of --blocks")
	f.String("dtype", d.DType, "element type of written matrices (float32, float64)")
	f.Bool("debug-text", false, "also write .csv copies of every matrix")
	f.Int64("memory-limit", 0, "bytes of decoded blocks kept for reuse")
	f.Int64("io-limit", 0, "payload read limit in bytes per second")
}

// applyFlags copies explicitly set flags into cfg.
func applyFlags(cmd *cobra.Command, cfg *Config) error {
	f := cmd.Flags()
	var err error
	str := func(name string, dst *string) {
		if err == nil && f.Lookup(name) != nil && f.Changed(name) {
			*dst, err = f.GetString(name)
		}
	}
	integer := func(name string, dst *int) {
		if err == nil && f.Lookup(name) != nil && f.Changed(name) {
			*dst, err = f.GetInt(name)
		}
	}
	int64s := func(name string, dst *int64) {
		if err == nil && f.Lookup(name) != nil && f.Changed(name) {
			*dst, err = f.GetInt64(name)
		}
	}
	boolean := func(name string, dst *bool) {
		if err == nil && f.Lookup(name) != nil && f.Changed(name) {
			*dst, err = f.GetBool(name)
		}
	}
	float := func(name string, dst *float64) {
		if err == nil && f.Lookup(name) != nil && f.Changed(name) {
			*dst, err = f.GetFloat64(name)
		}
	}

	str("source", &cfg.Source)
	str("pattern", &cfg.Pattern)
	integer("offset", &cfg.Offset)
	str("format", &cfg.Format)
	str("compression", &cfg.Compression)
	str("table", &cfg.Table)
	str("out", &cfg.Out)
	str("export", &cfg.Export)
	boolean("report", &cfg.Report)
	integer("workers", &cfg.Workers)
	integer("blocks", &cfg.Blocks)
	int64s("memory-budget", &cfg.MemoryBudget)
	str("dtype", &cfg.DType)
	boolean("debug-text", &cfg.DebugText)
	int64s("memory-limit", &cfg.MemoryLimit)
	int64s("io-limit", &cfg.IOLimit)

	float("pca-variance", &cfg.PCAVariance)
	float("minkowski-p", &cfg.MinkowskiP)

	str("partitions", &cfg.Partitions)
	integer("first-level", &cfg.FirstLevel)
	integer("components", &cfg.Components)
	float("component-variance", &cfg.ComponentVariance)
	integer("max-components", &cfg.MaxComponents)
	return err
}
