package rabbitmq

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	errors "github.com/Laisky/errors/v2"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/ai-studio/internal/log"
	"go.uber.org/zap"
)

// JobHandler processes one job. A returned error nacks the delivery to the DLQ.
type JobHandler func(ctx context.Context, jobID string) error

type Consumer struct {
	conn        *amqp.Connection
	ch          *amqp.Channel
	queue       string
	concurrency int
}

func NewConsumer(url, queue string, concurrency int) (*Consumer, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	conn, ch, err := dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "rabbit dial")
	}
	if err := declareQueues(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, errors.Wrap(err, "declare queues")
	}
	// strict concurrency control
	if err := ch.Qos(concurrency, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, errors.Wrap(err, "qos")
	}
	return &Consumer{conn: conn, ch: ch, queue: queue, concurrency: concurrency}, nil
}

func (c *Consumer) Close() error {
	_ = c.ch.Close()
	return c.conn.Close()
}

// Run dispatches deliveries to a fixed pool of workers until ctx is done,
// then waits for in-flight jobs.
func (c *Consumer) Run(ctx context.Context, handle JobHandler) error {
	msgs, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return errors.Wrap(err, "consume")
	}

	logger := log.L().With(zap.String("queue", c.queue))
	logger.Info("worker started", zap.Int("concurrency", c.concurrency))

	jobs := make(chan amqp.Delivery, c.concurrency*2)
	var wg sync.WaitGroup
	wg.Add(c.concurrency)
	for i := 0; i < c.concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				process(ctx, logger.With(zap.Int("worker", workerID)), d, handle)
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutting down")
			close(jobs)
			wg.Wait()
			return nil

		case d, ok := <-msgs:
			if !ok {
				close(jobs)
				wg.Wait()
				return errors.New("delivery channel closed")
			}
			jobs <- d
		}
	}
}

func process(ctx context.Context, logger *zap.Logger, d amqp.Delivery, handle JobHandler) {
	var m JobMessage
	if err := json.Unmarshal(d.Body, &m); err != nil || m.JobID == "" {
		logger.Warn("bad message", zap.ByteString("body", d.Body), zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	start := time.Now()
	if err := handle(ctx, m.JobID); err != nil {
		logger.Warn("job failed",
			zap.String("job_id", m.JobID),
			zap.Duration("cost", time.Since(start)),
			zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	if cost := time.Since(start); cost > 2*time.Second {
		logger.Info("job slow", zap.String("job_id", m.JobID), zap.Duration("cost", cost))
	}
	if err := d.Ack(false); err != nil {
		logger.Warn("ack failed", zap.String("job_id", m.JobID), zap.Error(err))
	}
}
