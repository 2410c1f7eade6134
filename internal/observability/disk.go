package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/campusguard/edge-collector/internal/logger"
)

// UsageFunc returns filesystem usage for path. disk.Usage in production.
type UsageFunc func(path string) (*disk.UsageStat, error)

// DiskCollector reports capacity of the filesystem holding the data
// directory. Samples are cached for the configured interval so frequent
// scrapes do not hit statfs each time.
type DiskCollector struct {
	path     string
	interval time.Duration
	usage    UsageFunc
	now      func() time.Time
	log      logger.Logger

	totalDesc *prometheus.Desc
	freeDesc  *prometheus.Desc
	usedDesc  *prometheus.Desc

	mu         sync.Mutex
	last       *disk.UsageStat
	lastSample time.Time
}

// NewDiskCollector creates a collector for path. A nil usage function uses
// gopsutil's disk.Usage.
func NewDiskCollector(path string, interval time.Duration, usage UsageFunc, log logger.Logger) *DiskCollector {
	if usage == nil {
		usage = disk.Usage
	}
	labels := prometheus.Labels{"path": path}
	return &DiskCollector{
		path:     path,
		interval: interval,
		usage:    usage,
		now:      time.Now,
		log:      log,
		totalDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "data_dir", "total_bytes"),
			"Size of the filesystem holding the data directory.", nil, labels),
		freeDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "data_dir", "free_bytes"),
			"Free space on the filesystem holding the data directory.", nil, labels),
		usedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "data_dir", "used_bytes"),
			"Used space on the filesystem holding the data directory.", nil, labels),
	}
}

// Describe implements prometheus.Collector.
func (c *DiskCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalDesc
	ch <- c.freeDesc
	ch <- c.usedDesc
}

// Collect implements prometheus.Collector. Nothing is emitted while the
// path cannot be measured.
func (c *DiskCollector) Collect(ch chan<- prometheus.Metric) {
	stat := c.sample()
	if stat == nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.totalDesc, prometheus.GaugeValue, float64(stat.Total))
	ch <- prometheus.MustNewConstMetric(c.freeDesc, prometheus.GaugeValue, float64(stat.Free))
	ch <- prometheus.MustNewConstMetric(c.usedDesc, prometheus.GaugeValue, float64(stat.Used))
}

func (c *DiskCollector) sample() *disk.UsageStat {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.last != nil && now.Sub(c.lastSample) < c.interval {
		return c.last
	}

	stat, err := c.usage(c.path)
	if err != nil {
		c.log.Warn("disk usage sample failed",
			logger.String("path", c.path),
			logger.Error(err))
		c.last = nil
		return nil
	}
	c.last = stat
	c.lastSample = now
	return stat
}
