package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SegmentSizer reports the published segments and their sizes.
type SegmentSizer func() map[string]int64

// RecordCollector reports the stored record at scrape time.
type RecordCollector struct {
	sizes    SegmentSizer
	sizeDesc *prometheus.Desc
	heldDesc *prometheus.Desc
}

// NewRecordCollector creates a collector over sizes.
func NewRecordCollector(sizes SegmentSizer) *RecordCollector {
	return &RecordCollector{
		sizes: sizes,
		sizeDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "segment_size_bytes"),
			"Recorded length of each published segment",
			[]string{"segment"}, nil,
		),
		heldDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "record_present"),
			"Whether a committed panic record is published (1) or not (0)",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *RecordCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sizeDesc
	ch <- c.heldDesc
}

// Collect implements prometheus.Collector.
func (c *RecordCollector) Collect(ch chan<- prometheus.Metric) {
	sizes := c.sizes()
	for name, size := range sizes {
		ch <- prometheus.MustNewConstMetric(c.sizeDesc, prometheus.GaugeValue, float64(size), name)
	}
	held := 0.0
	if len(sizes) > 0 {
		held = 1
	}
	ch <- prometheus.MustNewConstMetric(c.heldDesc, prometheus.GaugeValue, held)
}
