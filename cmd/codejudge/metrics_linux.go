package main

import (
	"path/filepath"
	"time"

	"github.com/criyle/go-sandbox/pkg/cgroup"
	"github.com/kaiju-coding/codejudge/cmd/codejudge/config"
	"github.com/prometheus/client_golang/prometheus"
)

const cgroupSubsystem = "cgroup"

var _ prometheus.Collector = &cgroupMetrics{}

// cgroupMetrics reads usage of a cgroup on every scrape
type cgroupMetrics struct {
	cgroup    cgroup.Cgroup
	cpu       *prometheus.Desc
	memory    *prometheus.Desc
	maxMemory *prometheus.Desc
}

// Collect implements prometheus.Collector.
func (c *cgroupMetrics) Collect(ch chan<- prometheus.Metric) {
	if u, err := c.cgroup.CPUUsage(); err == nil {
		ch <- prometheus.MustNewConstMetric(c.cpu, prometheus.CounterValue, time.Duration(u).Seconds())
	}
	if m, err := c.cgroup.MemoryUsage(); err == nil {
		ch <- prometheus.MustNewConstMetric(c.memory, prometheus.GaugeValue, float64(m))
	}
	if m, err := c.cgroup.MemoryMaxUsage(); err == nil {
		ch <- prometheus.MustNewConstMetric(c.maxMemory, prometheus.GaugeValue, float64(m))
	}
}

// Describe implements prometheus.Collector.
func (c *cgroupMetrics) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(c, ch)
}

func registerCgroupMetrics(cg cgroup.Cgroup, label string) {
	labels := prometheus.Labels{"type": label}
	prometheus.MustRegister(&cgroupMetrics{
		cgroup: cg,
		cpu: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, cgroupSubsystem, "cpu_seconds"),
			"CPU usage of the cgroup", nil, labels),
		memory: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, cgroupSubsystem, "memory_bytes"),
			"Memory usage of the cgroup", nil, labels),
		maxMemory: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, cgroupSubsystem, "memory_max_bytes"),
			"Maximum memory usage of the cgroup", nil, labels),
	})
}

// initCgroupMetrics exports the usage of the service cgroup, the server
// itself runs in <prefix>/api and sandboxes in <prefix>/containers
func initCgroupMetrics(conf *config.Config, param map[string]any) {
	if !conf.EnableMetrics {
		return
	}
	ct, ok := param["cgroupType"].(int)
	if !ok || (ct != cgroup.TypeV1 && ct != cgroup.TypeV2) {
		return
	}
	prefix, err := cgroup.GetCurrentCgroupPrefix()
	if err != nil {
		return
	}
	prefix = filepath.Dir(prefix)
	control, err := cgroup.GetAvailableControllerWithPrefix(prefix)
	if err != nil {
		return
	}
	all, err := cgroup.New(prefix, control)
	if err != nil {
		return
	}
	registerCgroupMetrics(all, "all")

	if containers, err := cgroup.New(filepath.Join(prefix, "containers"), control); err == nil {
		registerCgroupMetrics(containers, "containers")
	}
}
