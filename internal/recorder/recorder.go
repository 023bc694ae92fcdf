package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/steward/internal/knowledge"
)

const (
	// DefaultStream is the JetStream stream decisions land on.
	DefaultStream = "STEWARD_DECISIONS"

	// DefaultSubjectPrefix scopes decision subjects; the full subject is
	// <prefix>.<user_id>.
	DefaultSubjectPrefix = "decisions"

	defaultBuffer         = 1024
	defaultPublishTimeout = 5 * time.Second

	// streamMaxAge bounds stream growth; the durable consumer normally
	// drains within seconds, so a day of retention covers any outage the
	// store can recover from.
	streamMaxAge = 24 * time.Hour
)

// ErrClosed is returned by Record after Close.
var ErrClosed = errors.New("recorder closed")

// Config tunes the recorder.
type Config struct {
	Stream         string
	SubjectPrefix  string
	Buffer         int
	PublishTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.Stream == "" {
		c.Stream = DefaultStream
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = DefaultSubjectPrefix
	}
	if c.Buffer <= 0 {
		c.Buffer = defaultBuffer
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = defaultPublishTimeout
	}
}

// Recorder is the fire-and-forget publisher side.
type Recorder struct {
	js     jetstream.JetStream
	cfg    Config
	logger *zap.Logger

	queue chan *knowledge.Decision
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// New connects the recorder to JetStream and ensures the stream exists.
func New(ctx context.Context, nc *nats.Conn, cfg Config, logger *zap.Logger) (*Recorder, error) {
	if nc == nil {
		return nil, errors.New("recorder: nats connection is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("creating jetstream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.Stream,
		Subjects:  []string{cfg.SubjectPrefix + ".>"},
		Retention: jetstream.LimitsPolicy,
		MaxAge:    streamMaxAge,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("ensuring stream %s: %w", cfg.Stream, err)
	}

	r := &Recorder{
		js:     js,
		cfg:    cfg,
		logger: logger,
		queue:  make(chan *knowledge.Decision, cfg.Buffer),
	}
	r.wg.Add(1)
	go r.run()
	return r, nil
}

// Record enqueues a decision without blocking the caller. If the queue
// is full it publishes synchronously rather than drop the decision; the
// caller pays the publish latency only under sustained backlog.
func (r *Recorder) Record(ctx context.Context, d *knowledge.Decision) error {
	if d == nil || d.ID == "" || d.UserID == "" {
		return fmt.Errorf("%w: decision id and user id are required", knowledge.ErrInvalidInput)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	select {
	case r.queue <- d:
		r.mu.Unlock()
		QueueDepth.Set(float64(len(r.queue)))
		RecordedTotal.WithLabelValues("queued").Inc()
		return nil
	default:
	}
	r.mu.Unlock()

	RecordedTotal.WithLabelValues("sync_fallback").Inc()
	r.logger.Warn("recorder queue full, publishing synchronously",
		zap.String("decision_id", d.ID))
	return r.publish(ctx, d)
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for d := range r.queue {
		QueueDepth.Set(float64(len(r.queue)))
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.PublishTimeout)
		if err := r.publish(ctx, d); err != nil {
			r.logger.Error("publishing decision",
				zap.String("decision_id", d.ID),
				zap.Error(err))
		}
		cancel()
	}
}

func (r *Recorder) publish(ctx context.Context, d *knowledge.Decision) error {
	data, err := json.Marshal(d)
	if err != nil {
		PublishErrorsTotal.Inc()
		return fmt.Errorf("encoding decision: %w", err)
	}
	subject := fmt.Sprintf("%s.%s", r.cfg.SubjectPrefix, d.UserID)
	// Msg-Id dedup makes the sync-fallback race with the queue harmless.
	_, err = r.js.Publish(ctx, subject, data, jetstream.WithMsgID(d.ID))
	if err != nil {
		PublishErrorsTotal.Inc()
		return fmt.Errorf("publishing decision %s: %w", d.ID, err)
	}
	return nil
}

// Close stops accepting decisions and drains the queue.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	r.wg.Wait()
	return nil
}
