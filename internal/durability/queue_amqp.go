package durability

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// AMQPQueue is the job-queue dispatch path's distributed realization:
// debates are published to a durable queue and any worker process
// connected to the same broker can pick one up, selected when
// JobQueueConfig.URL is configured.
type AMQPQueue struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	log     *logrus.Logger
}

// NewAMQPQueue dials url and declares queueName (durable per durable).
func NewAMQPQueue(url, queueName string, durable bool, log *logrus.Logger) (*AMQPQueue, error) {
	if log == nil {
		log = logrus.New()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	_, err = ch.QueueDeclare(queueName, durable, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queueName, err)
	}
	return &AMQPQueue{conn: conn, channel: ch, queue: queueName, log: log}, nil
}

// Enqueue publishes a job as a JSON body to the declared queue.
func (q *AMQPQueue) Enqueue(ctx context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	err = q.channel.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		return fmt.Errorf("publish job %s: %w", job.DebateID, err)
	}
	return nil
}

// Consume delivers jobs to handle until ctx is canceled, acking each
// delivery only after handle succeeds so a crashed worker's in-flight
// job is redelivered to another consumer.
func (q *AMQPQueue) Consume(ctx context.Context, handle func(context.Context, Job) error) error {
	deliveries, err := q.channel.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start amqp consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			var job Job
			if err := json.Unmarshal(d.Body, &job); err != nil {
				q.log.WithError(err).Warn("discarding malformed job delivery")
				_ = d.Nack(false, false)
				continue
			}
			if err := handle(ctx, job); err != nil {
				q.log.WithError(err).WithField("debate_id", job.DebateID).Warn("job handler failed, requeuing")
				_ = d.Nack(false, true)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Close tears down the channel and connection.
func (q *AMQPQueue) Close() error {
	if err := q.channel.Close(); err != nil {
		q.conn.Close()
		return fmt.Errorf("close amqp channel: %w", err)
	}
	return q.conn.Close()
}
