// Processor for the post-publish queue: dequeues due publish jobs and
// hands each to the scheduler's Publisher, which owns the nine-step
// publication algorithm. The promote/dequeue/run loop shape is adapted
// from the starting codebase's PublishPostProcessor, generalized from a
// ticker-only sweep into promote-then-block-dequeue.
package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vouse/postqueue/internal/queue"
	"github.com/vouse/postqueue/internal/scheduler"
)

const promoteInterval = 5 * time.Second
const dequeueTimeout = 5 * time.Second

type PublishPostProcessor struct {
	jobs      *queue.Queue
	publisher *scheduler.Publisher
	logger    *logrus.Entry
	stopCh    chan struct{}
}

func NewPublishPostProcessor(jobs *queue.Queue, publisher *scheduler.Publisher, logger *logrus.Entry) *PublishPostProcessor {
	return &PublishPostProcessor{jobs: jobs, publisher: publisher, logger: logger, stopCh: make(chan struct{})}
}

func (p *PublishPostProcessor) Name() string { return "PublishPostProcessor" }

func (p *PublishPostProcessor) Run(ctx context.Context) error {
	p.logger.Info("publish processor started")

	go p.promoteLoop(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.stopCh:
			return nil
		default:
		}

		job, err := p.jobs.Dequeue(ctx, queue.QueuePostPublish, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.WithError(err).Warn("publish processor: dequeue failed")
			continue
		}
		if job == nil {
			continue
		}
		if err := p.publisher.ProcessJob(ctx, job); err != nil {
			p.logger.WithError(err).WithField("job_id", job.ID).Error("publish processor: job failed")
		}
	}
}

func (p *PublishPostProcessor) promoteLoop(ctx context.Context) {
	ticker := time.NewTicker(promoteInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			if _, err := p.jobs.PromoteDue(ctx, queue.QueuePostPublish, time.Now().UTC()); err != nil {
				p.logger.WithError(err).Warn("publish processor: promote sweep failed")
			}
		}
	}
}

func (p *PublishPostProcessor) Stop(ctx context.Context) error {
	close(p.stopCh)
	return nil
}
