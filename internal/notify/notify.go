// Package notify publishes job lifecycle events so other services can react
// to finished downloads without polling.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"ytdl-api/internal/models"
)

// Event is the message body sent when a job reaches a terminal state.
type Event struct {
	JobID      string           `json:"download_id"`
	Status     models.JobStatus `json:"status"`
	URL        string           `json:"url"`
	Format     string           `json:"format"`
	FileSizeMB *float64         `json:"filesize_mb,omitempty"`
	Error      string           `json:"error,omitempty"`
	ErrorCode  string           `json:"error_code,omitempty"`
	At         time.Time        `json:"at"`
}

func EventFor(job models.DownloadJob, at time.Time) Event {
	return Event{
		JobID:      job.ID,
		Status:     job.Status,
		URL:        job.URL,
		Format:     job.Format,
		FileSizeMB: job.SizeMB,
		Error:      job.Error,
		ErrorCode:  job.ErrorCode,
		At:         at,
	}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Noop drops every event. Used when AMQP_URL is not set.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQP publishes events as persistent JSON messages to a durable queue on the
// default exchange.
type AMQP struct {
	mu    sync.Mutex
	conn  *amqp.Connection
	ch    channel
	queue string
}

func DialAMQP(url, queue string) (*AMQP, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	q, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}

	return &AMQP{conn: conn, ch: ch, queue: q.Name}, nil
}

func (p *AMQP) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	// amqp channels are not safe for concurrent publishing
	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.JobID,
		Timestamp:    event.At,
		Type:         "download." + string(event.Status),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.JobID, err)
	}
	return nil
}

func (p *AMQP) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
