package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/shapespace"
	"github.com/hupe1980/shapespace/latent"
	"github.com/hupe1980/shapespace/loader"
	"github.com/hupe1980/shapespace/matrix"
	"github.com/hupe1980/shapespace/resource"
	"github.com/hupe1980/shapespace/sample"
)

// envPrefix prefixes every environment override.
const envPrefix = "SHAPESPACE"

// Config is the run file. Every field can be overridden by a flag of the
// same name in kebab case.
type Config struct {
	// Source is a directory, s3://bucket/prefix, minio://bucket/prefix,
	// a .parquet file or sqlite://path.
	Source      string `yaml:"source"`
	Pattern     string `yaml:"pattern"`
	Offset      int    `yaml:"offset"`
	Format      string `yaml:"format"`
	Compression string `yaml:"compression"`
	Table       string `yaml:"table"`

	Out     string   `yaml:"out"`
	Export  string   `yaml:"export"`
	Report  bool     `yaml:"report"`
	Metrics []string `yaml:"metrics"`

	Workers      int    `yaml:"workers"`
	Blocks       int    `yaml:"blocks"`
	MemoryBudget int64  `yaml:"memoryBudget"`
	DType        string `yaml:"dtype"`
	DebugText    bool   `yaml:"debugText"`

	PCAVariance float64 `yaml:"pcaVariance"`
	MinkowskiP  float64 `yaml:"minkowskiP"`

	Partitions        string  `yaml:"partitions"`
	FirstLevel        int     `yaml:"firstLevel"`
	Components        int     `yaml:"components"`
	ComponentVariance float64 `yaml:"componentVariance"`
	MaxComponents     int     `yaml:"maxComponents"`

	MemoryLimit   int64 `yaml:"memoryLimit"`
	IOLimit       int64 `yaml:"ioLimit"`
	ExportUploads int64 `yaml:"exportUploads"`
}

// Env holds storage credentials and endpoints, read from SHAPESPACE_*
// variables.
type Env struct {
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3Region    string `envconfig:"S3_REGION"`
	S3PathStyle bool   `envconfig:"S3_PATH_STYLE"`

	MinioEndpoint  string `envconfig:"MINIO_ENDPOINT" default:"localhost:9000"`
	MinioAccessKey string `envconfig:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `envconfig:"MINIO_SECRET_KEY"`
	MinioSecure    bool   `envconfig:"MINIO_SECURE"`

	Workers  int    `envconfig:"WORKERS"`
	LogLevel string `envconfig:"LOG_LEVEL"`
}

func defaultConfig() Config {
	return Config{
		Offset:        sample.DefaultOffset,
		Format:        "auto",
		Compression:   "auto",
		Table:         "shapes",
		Report:        true,
		Blocks:        shapespace.DefaultBlocks,
		DType:         "float32",
		PCAVariance:   shapespace.DefaultPCAVariance,
		MinkowskiP:    2,
		ExportUploads: 4,
	}
}

// loadConfig reads the run file at path over the defaults. An empty path
// yields the defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func loadEnv() (Env, error) {
	var env Env
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return env, err
	}
	return env, nil
}

// applyEnv lets environment values override the run file.
func (c *Config) applyEnv(env Env) {
	if env.Workers > 0 {
		c.Workers = env.Workers
	}
}

func (c Config) componentPolicy() latent.ComponentPolicy {
	return latent.ComponentPolicy{
		Components: c.Components,
		Variance:   c.ComponentVariance,
		Max:        c.MaxComponents,
	}
}

func (c Config) resourceController() *resource.Controller {
	if c.MemoryLimit == 0 && c.IOLimit == 0 && c.ExportUploads == 0 {
		return nil
	}
	return resource.NewController(resource.Config{
		MemoryLimitBytes:   c.MemoryLimit,
		IOLimitBytesPerSec: c.IOLimit,
		MaxUploads:         c.ExportUploads,
	})
}

func (c Config) loaderOptions(rc *resource.Controller) ([]loader.Option, error) {
	format, err := loader.ParseFormat(c.Format)
	if err != nil {
		return nil, err
	}
	comp, err := loader.ParseCompression(c.Compression)
	if err != nil {
		return nil, err
	}
	return []loader.Option{
		loader.WithFormat(format),
		loader.WithCompression(comp),
		loader.WithResourceController(rc),
	}, nil
}

// pipelineOptions translates the run file into pipeline options.
func (c Config) pipelineOptions() ([]shapespace.Option, error) {
	dtype, err := matrix.ParseDType(c.DType)
	if err != nil {
		return nil, err
	}
	opts := []shapespace.Option{
		shapespace.WithWorkers(c.Workers),
		shapespace.WithDType(dtype),
		shapespace.WithDebugText(c.DebugText),
		shapespace.WithReport(c.Report),
		shapespace.WithPCAVariance(c.PCAVariance),
		shapespace.WithMinkowskiP(c.MinkowskiP),
		shapespace.WithComponents(c.componentPolicy()),
	}
	if c.MemoryBudget > 0 {
		opts = append(opts, shapespace.WithMemoryBudget(c.MemoryBudget))
	} else {
		opts = append(opts, shapespace.WithBlocks(c.Blocks))
	}
	return opts, nil
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return l, fmt.Errorf("invalid log level %q", s)
	}
	return l, nil
}
