// Processor for the crash-recovery reconciliation of spec.md §4.5.1:
// periodically resets any post stuck in publishing (its owning worker
// died mid-job) back to scheduled and re-enqueues it. Adapted from the
// starting codebase's CleanupProcessor timer shape, narrowed from its
// daily SQL maintenance sweep (old drafts, expired tokens, vacuum — none
// of which this schema has an equivalent of) to the one reconciliation
// task this domain actually needs.
package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vouse/postqueue/internal/scheduler"
)

const recoveryInterval = 2 * time.Minute

type RecoverStuckProcessor struct {
	publisher *scheduler.Publisher
	logger    *logrus.Entry
	stopCh    chan struct{}
}

func NewRecoverStuckProcessor(publisher *scheduler.Publisher, logger *logrus.Entry) *RecoverStuckProcessor {
	return &RecoverStuckProcessor{publisher: publisher, logger: logger, stopCh: make(chan struct{})}
}

func (p *RecoverStuckProcessor) Name() string { return "RecoverStuckProcessor" }

func (p *RecoverStuckProcessor) Run(ctx context.Context) error {
	ticker := time.NewTicker(recoveryInterval)
	defer ticker.Stop()

	p.logger.Info("stuck-post recovery processor started")

	p.recover(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.stopCh:
			return nil
		case <-ticker.C:
			p.recover(ctx)
		}
	}
}

func (p *RecoverStuckProcessor) recover(ctx context.Context) {
	n, err := p.publisher.RecoverStuck(ctx)
	if err != nil {
		p.logger.WithError(err).Warn("recovery processor: sweep failed")
		return
	}
	if n > 0 {
		p.logger.WithField("count", n).Warn("recovery processor: reset stuck posts back to scheduled")
	}
}

func (p *RecoverStuckProcessor) Stop(ctx context.Context) error {
	close(p.stopCh)
	return nil
}
