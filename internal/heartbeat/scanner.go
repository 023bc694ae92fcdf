package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/steward/internal/autonomy"
	"github.com/fyrsmithlabs/steward/internal/confidence"
	"github.com/fyrsmithlabs/steward/internal/knowledge"
	"github.com/fyrsmithlabs/steward/internal/portfolio"
	"github.com/fyrsmithlabs/steward/internal/vectorstore"
)

var tracer = otel.Tracer("steward.heartbeat")

const defaultTimeBucket = 24 * time.Hour

// Scorer computes confidence factors for a candidate action.
type Scorer interface {
	Score(ctx context.Context, c *confidence.Candidate) (*knowledge.ConfidenceFactors, error)
}

// Recorder accepts decisions off the sweep path.
type Recorder interface {
	Record(ctx context.Context, d *knowledge.Decision) error
}

// ToolRunner executes a registered tool by name.
type ToolRunner interface {
	Run(ctx context.Context, userID, name string, args map[string]interface{}) (string, error)
}

// Store is the slice of the knowledge store the scanner writes to.
type Store interface {
	GetAutonomyConfig(ctx context.Context, userID string) (*autonomy.Config, error)
	PutAutonomyConfig(ctx context.Context, cfg *autonomy.Config) error
	CreateTask(ctx context.Context, t *knowledge.Task) (created bool, err error)
	TransitionTask(ctx context.Context, userID, taskID string, from, to knowledge.TaskStatus) (*knowledge.Task, error)
	RecordHeartbeatRun(ctx context.Context, run *knowledge.HeartbeatRun) error
}

// Config tunes the scanner.
type Config struct {
	// TimeBucket is the idempotency window: the same finding within one
	// bucket dedupes to one task.
	TimeBucket time.Duration

	// DefaultPreset seeds autonomy config for users swept before they
	// ever chatted.
	DefaultPreset string
}

func (c *Config) applyDefaults() {
	if c.TimeBucket <= 0 {
		c.TimeBucket = defaultTimeBucket
	}
	if !autonomy.IsValidPreset(c.DefaultPreset) {
		c.DefaultPreset = string(autonomy.PresetBalanced)
	}
}

// Scanner runs detector sweeps and turns findings into gated tasks.
type Scanner struct {
	reader    portfolio.Reader
	scorer    Scorer
	store     Store
	recorder  Recorder
	runner    ToolRunner
	embedder  vectorstore.Embedder
	detectors []Detector
	cfg       Config
	logger    *zap.Logger

	now func() time.Time
}

// NewScanner wires a scanner over the full detector set.
func NewScanner(reader portfolio.Reader, scorer Scorer, store Store, rec Recorder, runner ToolRunner, embedder vectorstore.Embedder, cfg Config, logger *zap.Logger) (*Scanner, error) {
	if reader == nil || scorer == nil || store == nil || rec == nil || runner == nil {
		return nil, errors.New("heartbeat: reader, scorer, store, recorder, and runner are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()
	return &Scanner{
		reader:    reader,
		scorer:    scorer,
		store:     store,
		recorder:  rec,
		runner:    runner,
		embedder:  embedder,
		detectors: Detectors(),
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Summary is the per-sweep result surfaced to callers and the ops API.
type Summary struct {
	StartedAt    time.Time                 `json:"started_at"`
	FinishedAt   time.Time                 `json:"finished_at"`
	Users        int                       `json:"users"`
	Findings     int                       `json:"findings"`
	TasksCreated int                       `json:"tasks_created"`
	Executed     int                       `json:"executed"`
	ByCategory   map[autonomy.Category]int `json:"by_category"`
}

// RunSweep sweeps one user, or every user the portfolio knows when
// userID is empty. Detector failures are isolated per category; a sweep
// only errors when no user could be swept at all.
func (s *Scanner) RunSweep(ctx context.Context, userID string) (*Summary, error) {
	ctx, span := tracer.Start(ctx, "heartbeat.RunSweep")
	defer span.End()

	summary := &Summary{
		StartedAt:  s.now().UTC(),
		ByCategory: make(map[autonomy.Category]int),
	}

	users := []string{userID}
	if userID == "" {
		var err error
		users, err = s.reader.ListUsers(ctx)
		if err != nil {
			sweepsTotal.WithLabelValues("error").Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("listing users for sweep: %w", err)
		}
	}

	for _, u := range users {
		s.sweepUser(ctx, u, summary)
	}

	summary.Users = len(users)
	summary.FinishedAt = s.now().UTC()
	sweepDuration.Observe(summary.FinishedAt.Sub(summary.StartedAt).Seconds())
	sweepsTotal.WithLabelValues("ok").Inc()

	run := &knowledge.HeartbeatRun{
		UserID:       userID,
		StartedAt:    summary.StartedAt,
		FinishedAt:   summary.FinishedAt,
		Findings:     summary.Findings,
		TasksCreated: summary.TasksCreated,
	}
	if err := s.store.RecordHeartbeatRun(ctx, run); err != nil {
		s.logger.Error("recording heartbeat run", zap.Error(err))
	}

	span.SetAttributes(
		attribute.Int("findings", summary.Findings),
		attribute.Int("tasks_created", summary.TasksCreated),
	)
	span.SetStatus(codes.Ok, "success")
	return summary, nil
}

func (s *Scanner) sweepUser(ctx context.Context, userID string, summary *Summary) {
	now := s.now().UTC()
	for _, d := range s.detectors {
		findings, err := d.Detect(ctx, s.reader, userID, now)
		if err != nil {
			s.logger.Error("detector failed",
				zap.String("category", string(d.Category)),
				zap.String("user_id", userID),
				zap.Error(err))
			continue
		}
		for i := range findings {
			summary.Findings++
			summary.ByCategory[d.Category]++
			findingsTotal.WithLabelValues(string(d.Category)).Inc()
			s.processFinding(ctx, userID, &findings[i], now, summary)
		}
	}
}

// processFinding scores one finding, gates it, and creates or executes
// the resulting task. Duplicates within the time bucket are dropped
// before any decision is recorded.
func (s *Scanner) processFinding(ctx context.Context, userID string, f *Finding, now time.Time, summary *Summary) {
	var embedding []float32
	var embedErr error
	if s.embedder != nil {
		embedding, embedErr = s.embedder.EmbedQuery(ctx, f.Recommendation)
	}

	decision := &knowledge.Decision{
		ID:           uuid.NewString(),
		UserID:       userID,
		ToolName:     f.ToolName,
		Category:     f.Category,
		InputSummary: f.Recommendation,
		Embedding:    embedding,
	}

	disposition := autonomy.DispositionBlock
	if embedErr != nil {
		s.logger.Error("embedding finding for scoring",
			zap.String("category", string(f.Category)), zap.Error(embedErr))
	} else {
		factors, err := s.scorer.Score(ctx, &confidence.Candidate{
			UserID:       userID,
			ToolName:     f.ToolName,
			Category:     f.Category,
			InputSummary: f.Recommendation,
			Source:       confidence.SourceLive,
			Embedding:    embedding,
		})
		if err != nil {
			s.logger.Error("scoring finding",
				zap.String("category", string(f.Category)), zap.Error(err))
		} else {
			decision.Factors = factors
			composite := factors.Composite
			decision.Confidence = &composite

			cfg, err := s.autonomyConfig(ctx, userID)
			if err != nil {
				s.logger.Error("loading autonomy config",
					zap.String("user_id", userID), zap.Error(err))
			} else {
				disposition = autonomy.Decide(cfg, f.Category, composite)
			}
		}
	}
	decision.Disposition = disposition
	decision.WasAutoExecuted = disposition.AllowsExecution()

	if disposition == autonomy.DispositionBlock {
		s.record(ctx, decision)
		return
	}

	status := knowledge.TaskStatusSuggested
	if disposition != autonomy.DispositionSuggest {
		status = knowledge.TaskStatusPendingApproval
	}
	task := &knowledge.Task{
		ID:             uuid.NewString(),
		UserID:         userID,
		Category:       f.Category,
		Title:          f.Title,
		Recommendation: f.Recommendation,
		Priority:       f.Priority,
		Status:         status,
		IdempotencyKey: f.IdempotencyKey(now, s.cfg.TimeBucket),
		ToolName:       f.ToolName,
		ToolArgs:       f.ToolArgs,
		DecisionID:     decision.ID,
	}
	created, err := s.store.CreateTask(ctx, task)
	if err != nil {
		s.logger.Error("creating task from finding",
			zap.String("category", string(f.Category)), zap.Error(err))
		return
	}
	if !created {
		// Same finding already produced a task this bucket.
		return
	}
	summary.TasksCreated++
	tasksCreatedTotal.Inc()
	s.record(ctx, decision)

	if !disposition.AllowsExecution() {
		return
	}
	result, err := s.runner.Run(ctx, userID, f.ToolName, f.ToolArgs)
	if err != nil {
		// The task stays pending so the owner can approve it manually.
		s.logger.Error("auto-executing finding",
			zap.String("tool", f.ToolName), zap.Error(err))
		return
	}
	if _, err := s.store.TransitionTask(ctx, userID, task.ID,
		knowledge.TaskStatusPendingApproval, knowledge.TaskStatusExecuted); err != nil {
		s.logger.Error("marking auto-executed task",
			zap.String("task_id", task.ID), zap.Error(err))
		return
	}
	summary.Executed++
	s.logger.Info("auto-executed finding",
		zap.String("tool", f.ToolName),
		zap.String("category", string(f.Category)),
		zap.Bool("notice", disposition.Notifies()),
		zap.String("result", result))
}

func (s *Scanner) record(ctx context.Context, d *knowledge.Decision) {
	if err := s.recorder.Record(ctx, d); err != nil {
		s.logger.Error("recording heartbeat decision",
			zap.String("decision_id", d.ID), zap.Error(err))
	}
}

func (s *Scanner) autonomyConfig(ctx context.Context, userID string) (*autonomy.Config, error) {
	cfg, err := s.store.GetAutonomyConfig(ctx, userID)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, knowledge.ErrNotFound) {
		return nil, err
	}
	cfg = autonomy.NewConfig(userID, autonomy.Preset(s.cfg.DefaultPreset))
	if err := s.store.PutAutonomyConfig(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
