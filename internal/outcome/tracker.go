package outcome

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/steward/internal/autonomy"
	"github.com/fyrsmithlabs/steward/internal/heartbeat"
	"github.com/fyrsmithlabs/steward/internal/knowledge"
	"github.com/fyrsmithlabs/steward/internal/portfolio"
)

var tracer = otel.Tracer("steward.outcome")

const (
	defaultGrace         = 72 * time.Hour
	defaultMaxAge        = 30 * 24 * time.Hour
	defaultBatchLimit    = 200
	defaultDecayDays     = 30
	defaultDecayAmount   = 0.1
	defaultRetentionDays = 365
)

// Store is the slice of the knowledge store the tracker drives.
type Store interface {
	ListDecisionsNeedingOutcome(ctx context.Context, grace, maxAge time.Duration, limit int) ([]*knowledge.Decision, error)
	InsertOutcome(ctx context.Context, o *knowledge.Outcome) error
	GetTaskByDecisionID(ctx context.Context, userID, decisionID string) (*knowledge.Task, error)
	ListRuleUsers(ctx context.Context) ([]string, error)
	DecayStaleRules(ctx context.Context, userID string, daysThreshold int, decayAmount float64) (int, error)
	CleanupOldLearningData(ctx context.Context, retentionDays int) (*knowledge.CleanupResult, error)
}

// Config tunes measurement and maintenance.
type Config struct {
	// Grace is how long after a decision measurement first runs; the
	// world needs time to react.
	Grace time.Duration

	// MaxAge is when unmeasurable decisions are abandoned.
	MaxAge time.Duration

	BatchLimit    int
	DecayDays     int
	DecayAmount   float64
	RetentionDays int
}

func (c *Config) applyDefaults() {
	if c.Grace <= 0 {
		c.Grace = defaultGrace
	}
	if c.MaxAge <= 0 {
		c.MaxAge = defaultMaxAge
	}
	if c.BatchLimit <= 0 {
		c.BatchLimit = defaultBatchLimit
	}
	if c.DecayDays <= 0 {
		c.DecayDays = defaultDecayDays
	}
	if c.DecayAmount <= 0 {
		c.DecayAmount = defaultDecayAmount
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = defaultRetentionDays
	}
}

// Tracker measures decision outcomes and runs knowledge maintenance.
type Tracker struct {
	store  Store
	reader portfolio.Reader
	cfg    Config
	logger *zap.Logger
}

// NewTracker wires a tracker.
func NewTracker(store Store, reader portfolio.Reader, cfg Config, logger *zap.Logger) (*Tracker, error) {
	if store == nil || reader == nil {
		return nil, errors.New("outcome: store and reader are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()
	return &Tracker{store: store, reader: reader, cfg: cfg, logger: logger}, nil
}

// Jobs returns the tracker's scheduled work in run order, for the
// heartbeat scheduler.
func (t *Tracker) Jobs() []heartbeat.Job {
	return []heartbeat.Job{
		{Name: "outcome-measure", Run: func(ctx context.Context) error {
			_, _, err := t.MeasureOutcomes(ctx)
			return err
		}},
		{Name: "rule-decay", Run: t.DecayRules},
		{Name: "retention-cleanup", Run: t.Cleanup},
	}
}

// MeasureOutcomes visits decisions past grace with no outcome. Owner
// feedback measures directly; otherwise a category probe checks the
// portfolio for the state change the action should have caused. A probe
// that finds no change yet leaves the decision unmeasured for the next
// run; the store stops returning decisions past MaxAge.
func (t *Tracker) MeasureOutcomes(ctx context.Context) (measured, skipped int, err error) {
	ctx, span := tracer.Start(ctx, "outcome.MeasureOutcomes")
	defer span.End()

	decisions, err := t.store.ListDecisionsNeedingOutcome(ctx, t.cfg.Grace, t.cfg.MaxAge, t.cfg.BatchLimit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, 0, err
	}

	for _, d := range decisions {
		outcome, ok := t.measure(ctx, d)
		if !ok {
			skipped++
			measuredTotal.WithLabelValues("skipped").Inc()
			continue
		}
		if err := t.store.InsertOutcome(ctx, outcome); err != nil {
			t.logger.Error("recording outcome",
				zap.String("decision_id", d.ID), zap.Error(err))
			continue
		}
		measured++
		result := "failure"
		if outcome.Success {
			result = "success"
		}
		measuredTotal.WithLabelValues(result).Inc()
	}

	span.SetAttributes(
		attribute.Int("measured", measured),
		attribute.Int("skipped", skipped),
	)
	span.SetStatus(codes.Ok, "success")
	if measured > 0 || skipped > 0 {
		t.logger.Info("measured decision outcomes",
			zap.Int("measured", measured),
			zap.Int("skipped", skipped))
	}
	return measured, skipped, nil
}

// measure produces the outcome for one decision, or ok=false when it
// cannot be judged yet.
func (t *Tracker) measure(ctx context.Context, d *knowledge.Decision) (*knowledge.Outcome, bool) {
	if d.OwnerFeedback != nil {
		return &knowledge.Outcome{
			DecisionID: d.ID,
			Success:    *d.OwnerFeedback == knowledge.FeedbackApproved,
			Detail:     "owner feedback",
		}, true
	}

	task, err := t.store.GetTaskByDecisionID(ctx, d.UserID, d.ID)
	if err != nil {
		if !errors.Is(err, knowledge.ErrNotFound) {
			t.logger.Error("loading task for probe",
				zap.String("decision_id", d.ID), zap.Error(err))
		}
		return nil, false
	}

	switch d.Category {
	case autonomy.CategoryRentCollection:
		return t.probeArrearsCleared(ctx, d, task)
	case autonomy.CategoryMaintenance:
		return t.probeTradeEngaged(ctx, d, task)
	case autonomy.CategoryLeaseManagement:
		return t.probeRenewalStarted(ctx, d, task)
	default:
		// No portfolio signal distinguishes success for this category.
		return nil, false
	}
}

func taskArg(task *knowledge.Task, key string) (string, bool) {
	v, _ := task.ToolArgs[key].(string)
	return v, v != ""
}

// probeArrearsCleared succeeds when the reminded tenancy is no longer
// behind on rent.
func (t *Tracker) probeArrearsCleared(ctx context.Context, d *knowledge.Decision, task *knowledge.Task) (*knowledge.Outcome, bool) {
	tenancyID, ok := taskArg(task, "tenancy_id")
	if !ok {
		return nil, false
	}
	arrears, err := t.reader.RentArrears(ctx, d.UserID)
	if err != nil {
		t.logger.Error("probing arrears", zap.String("decision_id", d.ID), zap.Error(err))
		return nil, false
	}
	for _, a := range arrears {
		if a.TenancyID == tenancyID {
			return nil, false
		}
	}
	return &knowledge.Outcome{
		DecisionID: d.ID,
		Success:    true,
		Detail:     "arrears cleared",
	}, true
}

// probeTradeEngaged succeeds when the maintenance request got a trade
// assigned or was closed.
func (t *Tracker) probeTradeEngaged(ctx context.Context, d *knowledge.Decision, task *knowledge.Task) (*knowledge.Outcome, bool) {
	requestID, ok := taskArg(task, "request_id")
	if !ok {
		return nil, false
	}
	open, err := t.reader.OpenMaintenanceRequests(ctx, d.UserID)
	if err != nil {
		t.logger.Error("probing maintenance", zap.String("decision_id", d.ID), zap.Error(err))
		return nil, false
	}
	for _, r := range open {
		if r.ID != requestID {
			continue
		}
		if r.AssignedTradeID != "" || r.Status == "closed" {
			return &knowledge.Outcome{
				DecisionID: d.ID,
				Success:    true,
				Detail:     "trade engaged",
			}, true
		}
		return nil, false
	}
	// Absent from the open set means the request was closed.
	return &knowledge.Outcome{
		DecisionID: d.ID,
		Success:    true,
		Detail:     "request closed",
	}, true
}

// probeRenewalStarted succeeds when the lease shows a renewal in
// progress.
func (t *Tracker) probeRenewalStarted(ctx context.Context, d *knowledge.Decision, task *knowledge.Task) (*knowledge.Outcome, bool) {
	leaseID, ok := taskArg(task, "lease_id")
	if !ok {
		return nil, false
	}
	leases, err := t.reader.CurrentLeases(ctx, d.UserID)
	if err != nil {
		t.logger.Error("probing leases", zap.String("decision_id", d.ID), zap.Error(err))
		return nil, false
	}
	for _, l := range leases {
		if l.ID == leaseID && l.RenewalInProgress {
			return &knowledge.Outcome{
				DecisionID: d.ID,
				Success:    true,
				Detail:     "renewal in progress",
			}, true
		}
	}
	return nil, false
}

// DecayRules lowers confidence on stale rules for every user holding
// active rules.
func (t *Tracker) DecayRules(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "outcome.DecayRules")
	defer span.End()

	users, err := t.store.ListRuleUsers(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	total := 0
	for _, u := range users {
		n, err := t.store.DecayStaleRules(ctx, u, t.cfg.DecayDays, t.cfg.DecayAmount)
		if err != nil {
			t.logger.Error("decaying rules", zap.String("user_id", u), zap.Error(err))
			continue
		}
		total += n
	}
	rulesDecayedTotal.Add(float64(total))

	span.SetAttributes(attribute.Int("decayed", total))
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Cleanup prunes learning data past retention.
func (t *Tracker) Cleanup(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "outcome.Cleanup")
	defer span.End()

	result, err := t.store.CleanupOldLearningData(ctx, t.cfg.RetentionDays)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	cleanupRowsTotal.WithLabelValues("corrections").Add(float64(result.CorrectionsDeleted))
	cleanupRowsTotal.WithLabelValues("rules").Add(float64(result.RulesDeleted))

	span.SetStatus(codes.Ok, "success")
	return nil
}
