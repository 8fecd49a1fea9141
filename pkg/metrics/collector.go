package metrics

import "time"

// SourceStats is a point-in-time snapshot of a single extractor's progress,
// as returned by a StatsProvider.
type SourceStats struct {
	Source          string
	QueueDepth      int
	LagSeconds      float64
	CheckpointAgeS  float64
	ReconnectsDelta int
}

// StatsProvider supplies the per-source snapshots the collector samples,
// without the collector importing the sync packages. No type in this
// repository implements it.
type StatsProvider interface {
	CollectStats() []SourceStats
}

// Collector periodically samples a StatsProvider and updates the package's
// Prometheus gauges, the way a reconciliation loop samples cluster state.
type Collector struct {
	provider StatsProvider
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector for the given provider.
func NewCollector(provider StatsProvider) *Collector {
	return &Collector{
		provider: provider,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics on a fixed interval until Stop is called.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	for _, s := range c.provider.CollectStats() {
		ExtractorQueueDepth.WithLabelValues(s.Source).Set(float64(s.QueueDepth))
		ExtractorLagSeconds.WithLabelValues(s.Source).Set(s.LagSeconds)
		CheckpointLagSeconds.WithLabelValues(s.Source).Set(s.CheckpointAgeS)
		if s.ReconnectsDelta > 0 {
			ExtractorReconnectsTotal.WithLabelValues(s.Source).Add(float64(s.ReconnectsDelta))
		}
	}
}
