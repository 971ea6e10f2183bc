// Package promstats exports the statistics of a rendezvous channel as
// Prometheus metrics.
package promstats

import (
	"github.com/creachadair/rendezvous"
	"github.com/prometheus/client_golang/prometheus"
)

// A Source reports channel statistics. [rendezvous.Channel] implements this
// interface for every element type.
type Source interface {
	Stats() rendezvous.Stats
}

// Collector is a [prometheus.Collector] that reads the statistics of a
// channel each time it is scraped. Every metric carries a "channel" label
// holding the name given to [New].
type Collector struct {
	src Source

	rounds    *prometheus.Desc
	aborted   *prometheus.Desc
	rejected  *prometheus.Desc
	speakers  *prometheus.Desc
	listeners *prometheus.Desc
	closed    *prometheus.Desc
}

// New constructs a collector for src, labelled with name.
func New(name string, src Source) *Collector {
	labels := prometheus.Labels{"channel": name}
	desc := func(metric, help string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName("rendezvous", "", metric), help, nil, labels)
	}
	return &Collector{
		src:       src,
		rounds:    desc("rounds_total", "Completed speaker/listener exchanges."),
		aborted:   desc("aborted_total", "Calls abandoned because their context ended."),
		rejected:  desc("rejected_total", "Calls that failed because the channel was closed."),
		speakers:  desc("speakers", "Goroutines currently blocked in or running Speak."),
		listeners: desc("listeners", "Goroutines currently blocked in or running Listen."),
		closed:    desc("closed", "Whether the channel is closed (1) or open (0)."),
	}
}

// Describe implements part of [prometheus.Collector].
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.rounds
	ch <- c.aborted
	ch <- c.rejected
	ch <- c.speakers
	ch <- c.listeners
	ch <- c.closed
}

// Collect implements part of [prometheus.Collector].
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()
	ch <- prometheus.MustNewConstMetric(c.rounds, prometheus.CounterValue, float64(s.Rounds))
	ch <- prometheus.MustNewConstMetric(c.aborted, prometheus.CounterValue, float64(s.Aborted))
	ch <- prometheus.MustNewConstMetric(c.rejected, prometheus.CounterValue, float64(s.Rejected))
	ch <- prometheus.MustNewConstMetric(c.speakers, prometheus.GaugeValue, float64(s.Speakers))
	ch <- prometheus.MustNewConstMetric(c.listeners, prometheus.GaugeValue, float64(s.Listeners))
	closed := 0.0
	if s.Closed {
		closed = 1
	}
	ch <- prometheus.MustNewConstMetric(c.closed, prometheus.GaugeValue, closed)
}
