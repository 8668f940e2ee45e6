// Package metric exposes apanic metrics in Prometheus format.
//
//   - prometheus.go: the registry, engine outcome counters and /metrics handler
//   - collector.go: scrape-time collector for the published record
//
// The Registry implements the engine's observer so capture, erase, read and
// binding outcomes are counted without the engine importing Prometheus.
package metric
