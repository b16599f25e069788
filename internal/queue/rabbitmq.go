package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/courseloop/autograder/internal/model"
)

type RabbitQueue struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	queue    string
	prefetch int
}

// NewRabbitQueue declares a durable queue and publishes jobs persistently,
// so queued work survives broker restarts. Unacked deliveries are redelivered
// by the broker when a consumer dies, which is the crash-recovery lease for
// in-flight jobs.
func NewRabbitQueue(url, name string, prefetch int) (*RabbitQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := channel.QueueDeclare(
		name,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", name, err)
	}
	if prefetch <= 0 {
		prefetch = 1
	}
	return &RabbitQueue{
		conn:     conn,
		channel:  channel,
		queue:    name,
		prefetch: prefetch,
	}, nil
}

func (q *RabbitQueue) Enqueue(ctx context.Context, job model.GradingJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.channel.PublishWithContext(ctx,
		"",      // default exchange
		q.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

func (q *RabbitQueue) Consume(ctx context.Context) (<-chan Delivery, error) {
	if err := q.channel.Qos(q.prefetch, 0, false); err != nil {
		return nil, err
	}
	msgs, err := q.channel.Consume(
		q.queue,
		"",    // consumer tag
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, err
	}

	output := make(chan Delivery)
	go func() {
		defer close(output)
		logger := logutil.GetLogger(ctx).With(zap.String("queue", q.queue))
		for {
			select {
			case <-ctx.Done():
				logger.Info("stopping queue consumer")
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Warn("queue channel closed")
					return
				}
				var job model.GradingJob
				if err := json.Unmarshal(msg.Body, &job); err != nil {
					logger.Error("dropping malformed job payload", zap.Error(err))
					_ = msg.Ack(false)
					continue
				}
				delivery := Delivery{
					Job: job,
					Ack: func() error {
						return msg.Ack(false)
					},
					Nack: func(requeue bool) error {
						return msg.Nack(false, requeue)
					},
				}
				select {
				case output <- delivery:
				case <-ctx.Done():
					_ = msg.Nack(false, true)
					return
				}
			}
		}
	}()
	return output, nil
}

func (q *RabbitQueue) Close() error {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}
