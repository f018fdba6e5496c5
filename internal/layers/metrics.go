package layers

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/accessio/accessio/internal/raw"
	"github.com/accessio/accessio/pkg/types"
)

// MetricsConfig configures the metrics layer's Prometheus registration,
// generalized from the teacher's S3-only Collector to any scheme.
type MetricsConfig struct {
	Namespace string
	Subsystem string
	Registry  *prometheus.Registry
}

// Metrics wraps every Accessor method with counters and duration
// histograms labeled by scheme and operation, mirroring the teacher's
// Collector but attached as a composable layer instead of being wired
// directly into the S3 backend.
func Metrics(cfg MetricsConfig) Layer {
	if cfg.Namespace == "" {
		cfg.Namespace = "accessio"
	}
	m := &metricsVecs{
		operationCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "operations_total",
			Help:      "Total accessor operations by scheme and operation.",
		}, []string{"scheme", "operation"}),
		errorCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "operation_errors_total",
			Help:      "Total accessor operation errors by scheme and operation.",
		}, []string{"scheme", "operation"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "operation_duration_seconds",
			Help:      "Accessor operation latency by scheme and operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"scheme", "operation"}),
	}
	if cfg.Registry != nil {
		cfg.Registry.MustRegister(m.operationCounter, m.errorCounter, m.operationDuration)
	}
	return LayerFunc(func(inner raw.Accessor) raw.Accessor {
		return &metricsAccessor{inner: inner, m: m, scheme: string(inner.Info().Scheme)}
	})
}

type metricsVecs struct {
	operationCounter  *prometheus.CounterVec
	errorCounter      *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
}

func (m *metricsVecs) observe(scheme, operation string, start time.Time, err error) {
	m.operationCounter.WithLabelValues(scheme, operation).Inc()
	m.operationDuration.WithLabelValues(scheme, operation).Observe(time.Since(start).Seconds())
	if err != nil {
		m.errorCounter.WithLabelValues(scheme, operation).Inc()
	}
}

type metricsAccessor struct {
	inner  raw.Accessor
	m      *metricsVecs
	scheme string
}

func (a *metricsAccessor) Info() types.AccessorInfo { return a.inner.Info() }

func (a *metricsAccessor) CreateDir(ctx context.Context, path string, op types.OpCreateDir) (types.Reply, error) {
	start := time.Now()
	r, err := a.inner.CreateDir(ctx, path, op)
	a.m.observe(a.scheme, "create_dir", start, err)
	return r, err
}

func (a *metricsAccessor) Stat(ctx context.Context, path string, op types.OpStat) (types.Reply, error) {
	start := time.Now()
	r, err := a.inner.Stat(ctx, path, op)
	a.m.observe(a.scheme, "stat", start, err)
	return r, err
}

func (a *metricsAccessor) Read(ctx context.Context, path string, op types.OpRead) (types.Reply, raw.Reader, error) {
	start := time.Now()
	r, reader, err := a.inner.Read(ctx, path, op)
	a.m.observe(a.scheme, "read", start, err)
	return r, reader, err
}

func (a *metricsAccessor) Write(ctx context.Context, path string, op types.OpWrite) (types.Reply, raw.Writer, error) {
	start := time.Now()
	r, writer, err := a.inner.Write(ctx, path, op)
	a.m.observe(a.scheme, "write", start, err)
	return r, writer, err
}

func (a *metricsAccessor) Delete(ctx context.Context, path string, op types.OpDelete) (types.Reply, error) {
	start := time.Now()
	r, err := a.inner.Delete(ctx, path, op)
	a.m.observe(a.scheme, "delete", start, err)
	return r, err
}

func (a *metricsAccessor) Copy(ctx context.Context, from, to string, op types.OpCopy) (types.Reply, error) {
	start := time.Now()
	r, err := a.inner.Copy(ctx, from, to, op)
	a.m.observe(a.scheme, "copy", start, err)
	return r, err
}

func (a *metricsAccessor) Rename(ctx context.Context, from, to string, op types.OpRename) (types.Reply, error) {
	start := time.Now()
	r, err := a.inner.Rename(ctx, from, to, op)
	a.m.observe(a.scheme, "rename", start, err)
	return r, err
}

func (a *metricsAccessor) List(ctx context.Context, path string, op types.OpList) (types.Reply, raw.Lister, error) {
	start := time.Now()
	r, lister, err := a.inner.List(ctx, path, op)
	a.m.observe(a.scheme, "list", start, err)
	return r, lister, err
}

func (a *metricsAccessor) Presign(ctx context.Context, path string, op types.OpPresign) (types.ReplyPresign, error) {
	start := time.Now()
	r, err := a.inner.Presign(ctx, path, op)
	a.m.observe(a.scheme, "presign", start, err)
	return r, err
}

func (a *metricsAccessor) Batch(ctx context.Context, op types.OpBatch) (types.ReplyBatch, error) {
	start := time.Now()
	r, err := a.inner.Batch(ctx, op)
	a.m.observe(a.scheme, "batch", start, err)
	return r, err
}
