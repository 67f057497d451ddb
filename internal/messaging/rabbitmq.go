package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"public-eye-service/config"
	"public-eye-service/internal/model"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	ExchangeName = "publiceye.events"
	QueueName    = "publiceye.notifications"

	reconnectDelay = 5 * time.Second
	publishTimeout = 5 * time.Second
)

// RoutingKeys lists every event the notification queue is bound to.
var RoutingKeys = []string{
	model.RoutingKeyComplaintCreated,
	model.RoutingKeyStatusUpdated,
	model.RoutingKeyRewardCredited,
	model.RoutingKeyRewardClaimed,
}

var errChannelUnavailable = errors.New("channel not available")

type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	url     string
	logger  *zap.Logger
	mu      sync.RWMutex
	done    chan struct{}
	closed  sync.Once
}

func NewRabbitMQ(cfg config.RabbitMQConfig, logger *zap.Logger) (*RabbitMQ, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%s/", cfg.User, cfg.Password, cfg.Host, cfg.Port)

	rmq := &RabbitMQ{
		url:    url,
		logger: logger,
		done:   make(chan struct{}),
	}

	if err := rmq.connect(); err != nil {
		return nil, err
	}

	go rmq.handleReconnect()

	return rmq, nil
}

func (r *RabbitMQ) connect() error {
	conn, err := amqp.Dial(r.url)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareTopology(channel); err != nil {
		channel.Close()
		conn.Close()
		return err
	}

	r.conn = conn
	r.channel = channel
	r.logger.Info("rabbitmq: connected", zap.String("exchange", ExchangeName), zap.String("queue", QueueName))
	return nil
}

func declareTopology(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(
		ExchangeName,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	_, err = ch.QueueDeclare(
		QueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	for _, key := range RoutingKeys {
		if err := ch.QueueBind(QueueName, key, ExchangeName, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue with key %s: %w", key, err)
		}
	}
	return nil
}

func (r *RabbitMQ) handleReconnect() {
	for {
		r.mu.RLock()
		closed := r.conn.NotifyClose(make(chan *amqp.Error, 1))
		r.mu.RUnlock()

		select {
		case <-r.done:
			return
		case err := <-closed:
			select {
			case <-r.done:
				return
			default:
			}
			r.logger.Warn("rabbitmq: connection lost, reconnecting", zap.Error(err))
		}

		r.mu.Lock()
		for {
			if err := r.connect(); err != nil {
				r.logger.Warn("rabbitmq: reconnect failed", zap.Error(err), zap.Duration("retry_in", reconnectDelay))
				select {
				case <-r.done:
					r.mu.Unlock()
					return
				case <-time.After(reconnectDelay):
				}
				continue
			}
			break
		}
		r.mu.Unlock()
	}
}

// Publish sends body to the events exchange. messageID travels as the AMQP
// MessageId so consumers can deduplicate redeliveries.
func (r *RabbitMQ) Publish(ctx context.Context, messageID, routingKey string, body []byte) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.channel == nil {
		return errChannelUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := r.channel.PublishWithContext(
		ctx,
		ExchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    messageID,
			Body:         body,
			Timestamp:    time.Now().UTC(),
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	return nil
}

func (r *RabbitMQ) Consume() (<-chan amqp.Delivery, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.channel == nil {
		return nil, errChannelUnavailable
	}

	msgs, err := r.channel.Consume(
		QueueName,
		"",    // consumer tag
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register consumer: %w", err)
	}

	return msgs, nil
}

func (r *RabbitMQ) Close() {
	r.closed.Do(func() {
		close(r.done)

		r.mu.Lock()
		defer r.mu.Unlock()

		if r.channel != nil {
			r.channel.Close()
		}
		if r.conn != nil {
			r.conn.Close()
		}
		r.logger.Info("rabbitmq: connection closed")
	})
}
