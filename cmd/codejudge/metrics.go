package main

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/kaiju-coding/codejudge/env/pool"
	"github.com/kaiju-coding/codejudge/envexec"
	"github.com/kaiju-coding/codejudge/evaluation"
	"github.com/kaiju-coding/codejudge/execution"
	"github.com/kaiju-coding/codejudge/pkg/apperr"
	"github.com/kaiju-coding/codejudge/worker"
	"github.com/prometheus/client_golang/prometheus"
	ginprometheus "github.com/zsais/go-gin-prometheus"
)

const (
	metricsNamespace = "codejudge"
)

var (
	// 1ms -> 30s
	timeBuckets = []float64{
		0.001, 0.002, 0.005, 0.010, 0.025, 0.050, 0.1, 0.2, 0.4, 0.6,
		0.8, 1.0, 1.5, 2, 5, 10, 20, 30,
	}

	// 4k (1<<12) -> 4g (1<<32)
	memoryBucket = prometheus.ExponentialBuckets(1<<12, 2, 21)

	percentageBuckets = prometheus.LinearBuckets(0, 10, 11)

	metricsSummaryQuantile = map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001}

	sandboxErrorCount = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "sandbox",
		Name:      "error",
		Help:      "Number of worker requests returning error",
	})

	sandboxTimeHist = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "sandbox",
		Name:      "time_seconds",
		Help:      "Histogram for the cpu time of sandboxed commands",
		Buckets:   timeBuckets,
	}, []string{"status"})

	sandboxMemHist = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "sandbox",
		Name:      "memory_bytes",
		Help:      "Histogram for the peak memory of sandboxed commands",
		Buckets:   memoryBucket,
	}, []string{"status"})

	executionCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "execution",
		Name:      "total",
		Help:      "Number of executions by language and status",
	}, []string{"language", "status"})

	executionTimeSummary = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace:  metricsNamespace,
		Subsystem:  "execution",
		Name:       "elapsed",
		Help:       "Summary for the elapsed time of executions in seconds",
		Objectives: metricsSummaryQuantile,
	}, []string{"language"})

	evaluationPercentage = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "evaluation",
		Name:      "percentage",
		Help:      "Histogram for the score percentage of evaluations",
		Buckets:   percentageBuckets,
	}, []string{"language"})

	evaluationErrorCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "evaluation",
		Name:      "error",
		Help:      "Number of evaluations returning error by error type",
	}, []string{"type"})

	envCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "environment_created",
		Help:      "Total number of environment build by environment builder",
	})

	envInUse = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "environment_in_use",
		Help:      "Total number of environment currently in use",
	})
)

func init() {
	prometheus.MustRegister(sandboxErrorCount, sandboxTimeHist, sandboxMemHist)
	prometheus.MustRegister(executionCount, executionTimeSummary)
	prometheus.MustRegister(evaluationPercentage, evaluationErrorCount)
	prometheus.MustRegister(envCreated, envInUse)
}

func initGinMetrics(r *gin.Engine) {
	p := ginprometheus.NewWithConfig(ginprometheus.Config{
		Subsystem:          "gin",
		DisableBodyReading: true,
	})
	p.ReqCntURLLabelMappingFn = func(c *gin.Context) string {
		return c.FullPath()
	}
	r.Use(p.HandlerFunc())
}

func execObserve(res worker.Response) {
	if res.Error != nil {
		sandboxErrorCount.Inc()
	}
	for _, r := range res.Results {
		status := r.Status.String()
		sandboxTimeHist.WithLabelValues(status).Observe(r.Time.Seconds())
		sandboxMemHist.WithLabelValues(status).Observe(float64(r.Memory))
	}
}

var _ execution.Executor = &metricsExecutor{}

type metricsExecutor struct {
	execution.Executor
}

func (m *metricsExecutor) Execute(ctx context.Context, req execution.Request) (execution.Outcome, error) {
	o, err := m.Executor.Execute(ctx, req)
	lang := req.Language.String()
	if err != nil {
		executionCount.WithLabelValues(lang, apperr.KindOf(err).String()).Inc()
		return o, err
	}
	executionCount.WithLabelValues(lang, o.Status.String()).Inc()
	executionTimeSummary.WithLabelValues(lang).Observe(o.Elapsed.Seconds())
	return o, nil
}

// metricsEvaluator records the score of every finished evaluation
type metricsEvaluator struct {
	*evaluation.Engine
}

func (m *metricsEvaluator) Evaluate(ctx context.Context, sub evaluation.Submission) (*evaluation.Result, error) {
	return m.EvaluateWithProgress(ctx, sub, nil)
}

func (m *metricsEvaluator) EvaluateWithProgress(ctx context.Context, sub evaluation.Submission, progress evaluation.ProgressFunc) (*evaluation.Result, error) {
	rt, err := m.Engine.EvaluateWithProgress(ctx, sub, progress)
	if err != nil {
		evaluationErrorCount.WithLabelValues(apperr.KindOf(err).String()).Inc()
		return nil, err
	}
	evaluationPercentage.WithLabelValues(sub.Language.String()).Observe(rt.Percentage)
	return rt, nil
}

var _ pool.EnvBuilder = &metricsEnvBuilder{}

type metricsEnvBuilder struct {
	pool.EnvBuilder
}

func (b *metricsEnvBuilder) Build() (pool.Environment, error) {
	e, err := b.EnvBuilder.Build()
	if err != nil {
		return nil, err
	}
	envCreated.Inc()
	return e, nil
}

var _ worker.EnvironmentPool = &metricsEnvPool{}

type metricsEnvPool struct {
	worker.EnvironmentPool
}

func (p *metricsEnvPool) Get() (envexec.Environment, error) {
	e, err := p.EnvironmentPool.Get()
	if err != nil {
		return nil, err
	}
	envInUse.Inc()
	return e, nil
}

func (p *metricsEnvPool) Put(env envexec.Environment) {
	p.EnvironmentPool.Put(env)
	envInUse.Dec()
}
