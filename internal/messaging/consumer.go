package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"public-eye-service/internal/apperror"
	"public-eye-service/internal/model"
	"public-eye-service/internal/repository"

	"github.com/avast/retry-go"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	maxRetryAttempts = 3
	initialDelay     = 1 * time.Second
	maxDelay         = 30 * time.Second
	resubscribeDelay = 5 * time.Second
)

// NotificationConsumer turns domain events into citizen notifications.
// It reads from RabbitMQ when started with a broker, and is also called
// directly by LocalPublisher.
type NotificationConsumer struct {
	rmq              *RabbitMQ
	notificationRepo *repository.NotificationRepository
	logger           *zap.Logger
	retryDelay       time.Duration
	now              func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewNotificationConsumer builds a consumer. rmq may be nil, in which case
// Start is a no-op and events arrive only through Handle.
func NewNotificationConsumer(rmq *RabbitMQ, notificationRepo *repository.NotificationRepository, logger *zap.Logger) *NotificationConsumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &NotificationConsumer{
		rmq:              rmq,
		notificationRepo: notificationRepo,
		logger:           logger,
		retryDelay:       initialDelay,
		now:              func() time.Time { return time.Now().UTC() },
		ctx:              ctx,
		cancel:           cancel,
	}
}

func (c *NotificationConsumer) Start() {
	if c.rmq == nil {
		return
	}
	c.wg.Add(1)
	go c.consume()
	c.logger.Info("consumer: started", zap.String("queue", QueueName))
}

func (c *NotificationConsumer) consume() {
	defer c.wg.Done()

	for {
		if c.ctx.Err() != nil {
			return
		}

		msgs, err := c.rmq.Consume()
		if err != nil {
			c.logger.Warn("consumer: subscribe failed", zap.Error(err), zap.Duration("retry_in", resubscribeDelay))
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(resubscribeDelay):
			}
			continue
		}

		c.processMessages(msgs)
	}
}

func (c *NotificationConsumer) processMessages(msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				c.logger.Warn("consumer: channel closed, resubscribing")
				return
			}
			c.deliver(msg)
		}
	}
}

func (c *NotificationConsumer) deliver(msg amqp.Delivery) {
	messageID := msg.MessageId
	if messageID == "" {
		messageID = fmt.Sprintf("%x", msg.Body[:min(32, len(msg.Body))])
	}

	if err := c.Handle(c.ctx, messageID, msg.RoutingKey, msg.Body); err != nil {
		c.logger.Error("consumer: failed, dropping message",
			zap.String("message_id", messageID),
			zap.String("routing_key", msg.RoutingKey),
			zap.Error(err),
		)
		msg.Nack(false, false)
		return
	}
	msg.Ack(false)
}

// Handle processes one event at most once per messageID. Storing the
// notifications is retried with backoff; malformed payloads are logged and
// acknowledged.
func (c *NotificationConsumer) Handle(ctx context.Context, messageID, routingKey string, body []byte) error {
	log := c.logger.With(zap.String("message_id", messageID), zap.String("routing_key", routingKey))

	processed, err := c.notificationRepo.IsMessageProcessed(ctx, messageID)
	if err != nil {
		log.Warn("consumer: idempotency check failed", zap.Error(err))
	}
	if processed {
		log.Debug("consumer: already processed")
		return nil
	}

	now := c.now()
	notifications, err := buildNotifications(routingKey, body, now)
	if err != nil {
		log.Warn("consumer: bad payload", zap.Error(err))
		return nil
	}

	return retry.Do(
		func() error {
			_, err := c.notificationRepo.Record(ctx, messageID, notifications, now)
			return err
		},
		retry.Attempts(maxRetryAttempts),
		retry.Delay(c.retryDelay),
		retry.MaxDelay(maxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil && apperror.Is(err, apperror.KindStorage)
		}),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("consumer: retrying", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
}

// buildNotifications maps an event to the notifications it produces. Events
// without an owner produce none.
func buildNotifications(routingKey string, body []byte, now time.Time) ([]model.Notification, error) {
	switch routingKey {
	case model.RoutingKeyComplaintCreated:
		var event model.ComplaintCreatedEvent
		if err := json.Unmarshal(body, &event); err != nil {
			return nil, err
		}
		if event.OwnerID == "" {
			return nil, nil
		}
		return []model.Notification{newNotification(event.OwnerID, &event.ComplaintID, now,
			"Complaint registered",
			fmt.Sprintf("Complaint %s has been registered with %s priority", event.ComplaintID, event.Priority),
		)}, nil

	case model.RoutingKeyStatusUpdated:
		var event model.StatusUpdatedEvent
		if err := json.Unmarshal(body, &event); err != nil {
			return nil, err
		}
		if event.OwnerID == "" {
			return nil, nil
		}
		return []model.Notification{newNotification(event.OwnerID, &event.ComplaintID, now,
			"Complaint status updated",
			fmt.Sprintf("Complaint %s is now %s", event.ComplaintID, event.NewStatus),
		)}, nil

	case model.RoutingKeyRewardCredited:
		var event model.RewardCreditedEvent
		if err := json.Unmarshal(body, &event); err != nil {
			return nil, err
		}
		return []model.Notification{newNotification(event.CitizenID, &event.ComplaintID, now,
			"Reward credited",
			fmt.Sprintf("You earned %d points", event.Points),
		)}, nil

	case model.RoutingKeyRewardClaimed:
		var event model.RewardClaimedEvent
		if err := json.Unmarshal(body, &event); err != nil {
			return nil, err
		}
		return []model.Notification{newNotification(event.CitizenID, nil, now,
			"Reward claimed",
			fmt.Sprintf("You redeemed %d points", event.Points),
		)}, nil
	}

	return nil, fmt.Errorf("unknown routing key %q", routingKey)
}

func newNotification(citizenID string, complaintID *string, now time.Time, title, message string) model.Notification {
	return model.Notification{
		ID:          uuid.New(),
		CitizenID:   citizenID,
		ComplaintID: complaintID,
		Title:       title,
		Message:     message,
		CreatedAt:   now,
	}
}

func (c *NotificationConsumer) Stop() {
	c.cancel()
	c.wg.Wait()
	c.logger.Info("consumer: stopped")
}
