package main

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"canvas-api/api"
	"canvas-api/domain"
)

// planConsumer drains the plan-request queue one message at a time. Having a
// single consumer serializes planning runs, so the API and the cron schedule
// may both trigger without ever planning concurrently.
type planConsumer struct {
	queue  *azqueue.QueueClient
	store  api.Storage
	guard  api.Guard
	dates  *domain.Dates
	logger *log.Logger
}

func newPlanConsumer(connStr, queueName string, store api.Storage, guard api.Guard, dates *domain.Dates, logger *log.Logger) (*planConsumer, error) {
	queue, err := azqueue.NewQueueClientFromConnectionString(connStr, queueName, nil)
	if err != nil {
		return nil, err
	}
	return &planConsumer{queue: queue, store: store, guard: guard, dates: dates, logger: logger}, nil
}

// Run polls until ctx is cancelled. A message is deleted only after its plan
// run succeeds; failed runs leave it on the queue for redelivery.
func (p *planConsumer) Run(ctx context.Context) {
	p.logger.Info("plan consumer started")
	for {
		if ctx.Err() != nil {
			return
		}
		resp, err := p.queue.DequeueMessage(ctx, nil)
		if err != nil {
			p.logger.WithField("error", err).Error("dequeue plan request")
			p.sleep(ctx, time.Second)
			continue
		}
		if len(resp.Messages) == 0 {
			p.sleep(ctx, time.Second)
			continue
		}
		msg := resp.Messages[0]
		if msg.MessageText == nil || msg.MessageID == nil || msg.PopReceipt == nil {
			continue
		}

		var req domain.PlanRequest
		if err := sonic.UnmarshalString(*msg.MessageText, &req); err != nil {
			// Malformed messages would loop forever; drop them.
			p.logger.WithField("error", err).Warn("dropping malformed plan request")
			p.delete(ctx, msg)
			continue
		}

		inserted, err := api.RunPlan(ctx, p.store, p.guard, p.dates, p.logger)
		if err != nil {
			p.logger.WithFields(log.Fields{
				"request_id": req.ID,
				"error":      err,
			}).Error("plan run failed, leaving request for redelivery")
			continue
		}
		p.logger.WithFields(log.Fields{
			"request_id":   req.ID,
			"requested_by": req.RequestedBy,
			"inserted":     inserted,
		}).Info("plan run complete")
		p.delete(ctx, msg)
	}
}

func (p *planConsumer) delete(ctx context.Context, msg *azqueue.DequeuedMessage) {
	if _, err := p.queue.DeleteMessage(ctx, *msg.MessageID, *msg.PopReceipt, nil); err != nil {
		p.logger.WithField("error", err).Error("delete plan request message")
	}
}

func (p *planConsumer) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
