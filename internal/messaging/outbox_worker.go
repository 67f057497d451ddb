package messaging

import (
	"context"
	"sync"
	"time"

	"public-eye-service/internal/repository"

	"go.uber.org/zap"
)

const (
	workerInterval     = 1 * time.Second
	batchSize          = 50
	cleanupInterval    = 1 * time.Hour
	publishedRetention = 24 * time.Hour
)

// Publisher delivers one outbox message downstream.
type Publisher interface {
	Publish(ctx context.Context, messageID, routingKey string, body []byte) error
}

// MessageHandler processes one delivered message.
type MessageHandler interface {
	Handle(ctx context.Context, messageID, routingKey string, body []byte) error
}

// LocalPublisher hands messages straight to a handler in-process. It is used
// when no broker is configured.
type LocalPublisher struct {
	handler MessageHandler
}

func NewLocalPublisher(handler MessageHandler) *LocalPublisher {
	return &LocalPublisher{handler: handler}
}

func (p *LocalPublisher) Publish(ctx context.Context, messageID, routingKey string, body []byte) error {
	return p.handler.Handle(ctx, messageID, routingKey, body)
}

// OutboxWorker publishes messages from the outbox table
type OutboxWorker struct {
	outboxRepo *repository.OutboxRepository
	publisher  Publisher
	logger     *zap.Logger

	interval        time.Duration
	cleanupInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewOutboxWorker(outboxRepo *repository.OutboxRepository, publisher Publisher, logger *zap.Logger) *OutboxWorker {
	ctx, cancel := context.WithCancel(context.Background())
	return &OutboxWorker{
		outboxRepo:      outboxRepo,
		publisher:       publisher,
		logger:          logger,
		interval:        workerInterval,
		cleanupInterval: cleanupInterval,
		ctx:             ctx,
		cancel:          cancel,
	}
}

func (w *OutboxWorker) Start() {
	w.wg.Add(2)
	go w.processLoop()
	go w.cleanupLoop()
	w.logger.Info("outbox: started")
}

func (w *OutboxWorker) processLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.ProcessPending(w.ctx); err != nil && w.ctx.Err() == nil {
				w.logger.Error("outbox: get pending", zap.Error(err))
			}
		}
	}
}

// ProcessPending publishes one batch of pending messages and returns how many
// were published.
func (w *OutboxWorker) ProcessPending(ctx context.Context) (int, error) {
	messages, err := w.outboxRepo.PendingMessages(ctx, batchSize)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, msg := range messages {
		if ctx.Err() != nil {
			return published, ctx.Err()
		}

		if err := w.publisher.Publish(ctx, msg.ID.String(), msg.RoutingKey, msg.Payload); err != nil {
			w.logger.Warn("outbox: publish failed",
				zap.Stringer("id", msg.ID),
				zap.String("routing_key", msg.RoutingKey),
				zap.Error(err),
			)
			if err := w.outboxRepo.MarkAsFailed(ctx, msg.ID, err.Error()); err != nil {
				w.logger.Error("outbox: mark failed", zap.Stringer("id", msg.ID), zap.Error(err))
			}
			continue
		}

		if err := w.outboxRepo.MarkAsPublished(ctx, msg.ID, time.Now().UTC()); err != nil {
			w.logger.Error("outbox: mark published", zap.Stringer("id", msg.ID), zap.Error(err))
			continue
		}
		published++
	}

	return published, nil
}

func (w *OutboxWorker) cleanupLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			deleted, err := w.outboxRepo.DeletePublished(w.ctx, time.Now().UTC().Add(-publishedRetention))
			if err != nil {
				w.logger.Error("outbox: cleanup", zap.Error(err))
			} else if deleted > 0 {
				w.logger.Info("outbox: cleaned old messages", zap.Int64("deleted", deleted))
			}
		}
	}
}

func (w *OutboxWorker) Stop() {
	w.cancel()
	w.wg.Wait()
	w.logger.Info("outbox: stopped")
}

func (w *OutboxWorker) GetStats(ctx context.Context) (map[string]int, error) {
	return w.outboxRepo.GetStats(ctx)
}
