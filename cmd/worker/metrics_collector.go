// Processor for the Engagement Collector's periodic sweep (spec.md
// §4.6): every published post's engagement row gets refreshed on a
// fixed interval. Adapted from the starting codebase's
// FetchAnalyticsProcessor ticker-loop shape, pointed at
// engagement.Service.RefreshStale instead of a per-platform mock.
package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vouse/postqueue/internal/domain/engagement"
)

const collectorInterval = 15 * time.Minute
const staleAfter = 15 * time.Minute

type MetricsCollectorProcessor struct {
	engagements *engagement.Service
	logger      *logrus.Entry
	stopCh      chan struct{}
}

func NewMetricsCollectorProcessor(engagements *engagement.Service, logger *logrus.Entry) *MetricsCollectorProcessor {
	return &MetricsCollectorProcessor{engagements: engagements, logger: logger, stopCh: make(chan struct{})}
}

func (p *MetricsCollectorProcessor) Name() string { return "MetricsCollectorProcessor" }

func (p *MetricsCollectorProcessor) Run(ctx context.Context) error {
	ticker := time.NewTicker(collectorInterval)
	defer ticker.Stop()

	p.logger.Info("metrics collector started")

	p.collect(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.stopCh:
			return nil
		case <-ticker.C:
			p.collect(ctx)
		}
	}
}

func (p *MetricsCollectorProcessor) collect(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-staleAfter)
	refreshed, errs := p.engagements.RefreshStale(ctx, cutoff)
	if len(errs) > 0 {
		p.logger.WithField("failures", len(errs)).Warn("metrics collector: sweep completed with partial failures")
	}
	p.logger.WithField("refreshed", refreshed).Info("metrics collector: sweep complete")
}

func (p *MetricsCollectorProcessor) Stop(ctx context.Context) error {
	close(p.stopCh)
	return nil
}
