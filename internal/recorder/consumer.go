package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/steward/internal/knowledge"
)

// durableName identifies the store-writer consumer across restarts.
const durableName = "steward-decision-writer"

// DecisionStore is the slice of the knowledge store the consumer writes.
type DecisionStore interface {
	InsertDecision(ctx context.Context, d *knowledge.Decision) error
}

// Consumer drains the decision stream into the knowledge store.
type Consumer struct {
	store   DecisionStore
	cfg     Config
	logger  *zap.Logger
	js      jetstream.JetStream
	consCtx jetstream.ConsumeContext
}

// NewConsumer builds the store-writer side.
func NewConsumer(nc *nats.Conn, store DecisionStore, cfg Config, logger *zap.Logger) (*Consumer, error) {
	if nc == nil {
		return nil, errors.New("recorder: nats connection is required")
	}
	if store == nil {
		return nil, errors.New("recorder: decision store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("creating jetstream context: %w", err)
	}
	return &Consumer{store: store, cfg: cfg, logger: logger, js: js}, nil
}

// Start attaches the durable consumer and begins draining. The stream
// must already exist (New on the publisher side creates it).
func (c *Consumer) Start(ctx context.Context) error {
	cons, err := c.js.CreateOrUpdateConsumer(ctx, c.cfg.Stream, jetstream.ConsumerConfig{
		Durable:       durableName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		FilterSubject: c.cfg.SubjectPrefix + ".>",
	})
	if err != nil {
		return fmt.Errorf("ensuring consumer %s: %w", durableName, err)
	}

	consCtx, err := cons.Consume(c.handle)
	if err != nil {
		return fmt.Errorf("starting consume loop: %w", err)
	}
	c.consCtx = consCtx
	c.logger.Info("decision consumer started",
		zap.String("stream", c.cfg.Stream),
		zap.String("durable", durableName))
	return nil
}

func (c *Consumer) handle(msg jetstream.Msg) {
	var d knowledge.Decision
	if err := json.Unmarshal(msg.Data(), &d); err != nil {
		// Poison message; ack so it stops redelivering.
		c.logger.Error("decoding decision message", zap.Error(err))
		PersistedTotal.WithLabelValues("error").Inc()
		_ = msg.Ack()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.PublishTimeout)
	defer cancel()

	if err := c.store.InsertDecision(ctx, &d); err != nil {
		c.logger.Error("persisting decision",
			zap.String("decision_id", d.ID),
			zap.Error(err))
		PersistedTotal.WithLabelValues("error").Inc()
		_ = msg.Nak()
		return
	}
	PersistedTotal.WithLabelValues("success").Inc()
	_ = msg.Ack()
}

// Stop halts the consume loop. The durable consumer keeps its cursor, so
// a later Start resumes where this one left off.
func (c *Consumer) Stop() {
	if c.consCtx != nil {
		c.consCtx.Stop()
		c.consCtx = nil
	}
}
