// Package nats implements the message queue port using NATS JetStream.
package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/TaskForge/internal/logger"
	"github.com/Strob0t/TaskForge/internal/port/messagequeue"
)

const (
	headerRequestID  = "X-Request-ID"
	headerRetryCount = "Retry-Count"
	headerDLQReason  = "DLQ-Reason"

	dlqSuffix  = ".dlq"
	maxRetries = 3
	retryDelay = 2 * time.Second
)

// Queue implements messagequeue.Queue using NATS JetStream.
type Queue struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	stream string
}

// Connect establishes a connection to NATS and ensures the history stream
// exists. Dead-lettered messages live under the same subject tree.
func Connect(ctx context.Context, url, stream string) (*Queue, error) {
	nc, err := nats.Connect(url,
		nats.Name("taskforge"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     stream,
		Subjects: []string{messagequeue.SubjectHistoryAll},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats connected", "url", url, "stream", stream)
	return &Queue{nc: nc, js: js, stream: stream}, nil
}

// Publish validates data against the subject schema and sends it. The
// request ID of ctx travels as a message header.
func (q *Queue) Publish(ctx context.Context, subject string, data []byte) error {
	if err := messagequeue.Validate(subject, data); err != nil {
		return err
	}
	msg := &nats.Msg{Subject: subject, Data: data, Header: nats.Header{}}
	if id := logger.RequestID(ctx); id != "" {
		msg.Header.Set(headerRequestID, id)
	}
	if _, err := q.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers a handler for messages on the given subject. Messages
// that fail validation go straight to <subject>.dlq; handler failures are
// redelivered until maxRetries and then dead-lettered.
func (q *Queue) Subscribe(ctx context.Context, subject string, handler messagequeue.Handler) (func(), error) {
	consumer, err := q.js.CreateOrUpdateConsumer(ctx, q.stream, jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("nats consumer create: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		q.handle(msg, handler)
	})
	if err != nil {
		return nil, fmt.Errorf("nats consume: %w", err)
	}

	return cons.Stop, nil
}

func (q *Queue) handle(msg jetstream.Msg, handler messagequeue.Handler) {
	subject := msg.Subject()
	if isDLQ(subject) {
		ack(msg)
		return
	}

	ctx := context.Background()
	if id := msg.Headers().Get(headerRequestID); id != "" {
		ctx = logger.WithRequestID(ctx, id)
	}

	if err := messagequeue.Validate(subject, msg.Data()); err != nil {
		slog.WarnContext(ctx, "invalid message", "subject", subject, "error", err)
		q.moveToDLQ(ctx, msg, err)
		return
	}

	if err := handler(ctx, subject, msg.Data()); err != nil {
		attempts := retryCount(msg)
		if attempts >= maxRetries {
			slog.ErrorContext(ctx, "message handler retries exhausted", "subject", subject, "attempts", attempts, "error", err)
			q.moveToDLQ(ctx, msg, err)
			return
		}
		slog.WarnContext(ctx, "message handler failed", "subject", subject, "attempt", attempts+1, "error", err)
		if nakErr := msg.NakWithDelay(retryDelay); nakErr != nil {
			slog.ErrorContext(ctx, "nats nak failed", "error", nakErr)
		}
		return
	}
	ack(msg)
}

func (q *Queue) moveToDLQ(ctx context.Context, msg jetstream.Msg, reason error) {
	dlq := &nats.Msg{Subject: msg.Subject() + dlqSuffix, Data: msg.Data(), Header: nats.Header{}}
	for k, vals := range msg.Headers() {
		for _, v := range vals {
			dlq.Header.Add(k, v)
		}
	}
	dlq.Header.Set(headerDLQReason, reason.Error())
	if _, err := q.js.PublishMsg(ctx, dlq); err != nil {
		slog.ErrorContext(ctx, "nats dlq publish failed", "subject", dlq.Subject, "error", err)
		if nakErr := msg.Nak(); nakErr != nil {
			slog.ErrorContext(ctx, "nats nak failed", "error", nakErr)
		}
		return
	}
	ack(msg)
}

// retryCount returns how many deliveries already failed, from either the
// Retry-Count header or the JetStream delivery counter.
func retryCount(msg jetstream.Msg) int {
	n := 0
	if h := msg.Headers().Get(headerRetryCount); h != "" {
		if v, err := strconv.Atoi(h); err == nil {
			n = v
		}
	}
	if md, err := msg.Metadata(); err == nil && int(md.NumDelivered)-1 > n {
		n = int(md.NumDelivered) - 1
	}
	return n
}

func isDLQ(subject string) bool {
	return strings.HasSuffix(subject, dlqSuffix)
}

func ack(msg jetstream.Msg) {
	if err := msg.Ack(); err != nil {
		slog.Error("nats ack failed", "error", err)
	}
}

// KeyValue returns the named JetStream KV bucket, creating it with the given
// per-entry TTL if needed.
func (q *Queue) KeyValue(ctx context.Context, bucket string, ttl time.Duration) (jetstream.KeyValue, error) {
	kv, err := q.js.KeyValue(ctx, bucket)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, fmt.Errorf("nats kv %s: %w", bucket, err)
	}
	kv, err = q.js.CreateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: bucket, TTL: ttl})
	if err != nil {
		return nil, fmt.Errorf("nats kv create %s: %w", bucket, err)
	}
	return kv, nil
}

// Drain gracefully drains all subscriptions and closes the connection.
func (q *Queue) Drain() error {
	return q.nc.Drain()
}

// Close shuts down the NATS connection.
func (q *Queue) Close() error {
	q.nc.Close()
	return nil
}

// IsConnected reports whether the underlying connection is up.
func (q *Queue) IsConnected() bool {
	return q.nc.IsConnected()
}
