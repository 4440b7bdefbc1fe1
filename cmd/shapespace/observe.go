package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/shapespace"
)

// promCollector exports run metrics to Prometheus.
type promCollector struct {
	loadLatency *prometheus.HistogramVec
	blockPairs  *prometheus.CounterVec
	samplePairs *prometheus.CounterVec
	models      *prometheus.CounterVec
	progress    *prometheus.GaugeVec
	runLatency  *prometheus.HistogramVec
}

func newPromCollector(reg prometheus.Registerer) *promCollector {
	c := &promCollector{
		loadLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shapespace_load_seconds",
			Help:    "Latency of single shape loads",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"status"}),
		blockPairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shapespace_block_pairs_total",
			Help: "Block pairs evaluated per metric",
		}, []string{"metric"}),
		samplePairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shapespace_sample_pairs_total",
			Help: "Sample pairs covered by evaluated block pairs",
		}, []string{"metric"}),
		models: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shapespace_models_total",
			Help: "Latent models fitted",
		}, []string{"components"}),
		progress: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "shapespace_progress_ratio",
			Help: "Completed fraction of the current stage (0.0-1.0)",
		}, []string{"stage"}),
		runLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shapespace_run_seconds",
			Help:    "Duration of whole runs",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind", "status"}),
	}
	reg.MustRegister(c.loadLatency, c.blockPairs, c.samplePairs, c.models, c.progress, c.runLatency)
	return c
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (c *promCollector) RecordLoad(d time.Duration, err error) {
	c.loadLatency.WithLabelValues(status(err)).Observe(d.Seconds())
}

func (c *promCollector) RecordBlockPair(metric string, pairs int, _ time.Duration) {
	c.blockPairs.WithLabelValues(metric).Inc()
	c.samplePairs.WithLabelValues(metric).Add(float64(pairs))
}

func (c *promCollector) RecordModel(_, _, k int, _ time.Duration) {
	label := "nonzero"
	if k == 0 {
		label = "zero"
	}
	c.models.WithLabelValues(label).Inc()
}

func (c *promCollector) RecordProgress(stage string, done, total int) {
	if total > 0 {
		c.progress.WithLabelValues(stage).Set(float64(done) / float64(total))
	}
}

func (c *promCollector) RecordRun(kind string, d time.Duration, err error) {
	c.runLatency.WithLabelValues(kind, status(err)).Observe(d.Seconds())
}

// serveMetrics exposes reg on addr until the returned stop function is
// called.
func serveMetrics(addr string, reg *prometheus.Registry, logger *shapespace.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// progressCollector draws one progress bar per stage and forwards every
// record to next.
type progressCollector struct {
	next shapespace.MetricsCollector
	out  io.Writer

	mu   sync.Mutex
	bars map[string]*pb.ProgressBar // unfinished bars only
}

func newProgressCollector(next shapespace.MetricsCollector, out io.Writer) *progressCollector {
	return &progressCollector{next: next, out: out, bars: make(map[string]*pb.ProgressBar)}
}

func (c *progressCollector) RecordLoad(d time.Duration, err error) { c.next.RecordLoad(d, err) }

func (c *progressCollector) RecordBlockPair(metric string, pairs int, d time.Duration) {
	c.next.RecordBlockPair(metric, pairs, d)
}

func (c *progressCollector) RecordModel(level, crystal, k int, d time.Duration) {
	c.next.RecordModel(level, crystal, k, d)
}

func (c *progressCollector) RecordProgress(stage string, done, total int) {
	c.next.RecordProgress(stage, done, total)

	c.mu.Lock()
	defer c.mu.Unlock()
	bar, ok := c.bars[stage]
	if !ok {
		bar = pb.New(total).Set("prefix", stage+" ").SetWriter(c.out).Start()
		c.bars[stage] = bar
	}
	bar.SetCurrent(int64(done))
	if done >= total {
		bar.Finish()
		delete(c.bars, stage)
	}
}

func (c *progressCollector) RecordRun(kind string, d time.Duration, err error) {
	c.mu.Lock()
	for _, bar := range c.bars {
		bar.Finish()
	}
	c.bars = make(map[string]*pb.ProgressBar)
	c.mu.Unlock()
	c.next.RecordRun(kind, d, err)
}
