package rabbitmq

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	errors "github.com/Laisky/errors/v2"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends generation jobs. It implements chat.JobPublisher.
type Publisher struct {
	conn  *amqp.Connection
	queue string

	// amqp channels are not safe for concurrent publishes
	mu sync.Mutex
	ch *amqp.Channel
}

func NewPublisher(url, queue string) (*Publisher, error) {
	conn, ch, err := dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "rabbit dial")
	}
	if err := declareQueues(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, errors.Wrap(err, "declare queues")
	}
	return &Publisher{conn: conn, ch: ch, queue: queue}, nil
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func (p *Publisher) PublishJob(ctx context.Context, jobID string) error {
	body, err := json.Marshal(JobMessage{JobID: jobID})
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(cctx,
		"",      // default exchange
		p.queue, // routing key = queue
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
}
