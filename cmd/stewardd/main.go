// Stewardd is the steward decision daemon.
//
// It serves the agent chat API, runs the periodic heartbeat scanner, and
// maintains the knowledge store. Configuration is layered: defaults, an
// optional YAML file, then STEWARD_-prefixed environment variables.
//
// Usage:
//
//	# Start with defaults (fixture portfolio, embedded NATS and index)
//	stewardd
//
//	# Point at a config file
//	stewardd -config /etc/steward/config.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/steward/internal/agent"
	"github.com/fyrsmithlabs/steward/internal/config"
	"github.com/fyrsmithlabs/steward/internal/confidence"
	"github.com/fyrsmithlabs/steward/internal/embeddings"
	"github.com/fyrsmithlabs/steward/internal/goldens"
	"github.com/fyrsmithlabs/steward/internal/heartbeat"
	"github.com/fyrsmithlabs/steward/internal/httpapi"
	"github.com/fyrsmithlabs/steward/internal/knowledge"
	"github.com/fyrsmithlabs/steward/internal/learning"
	"github.com/fyrsmithlabs/steward/internal/llm"
	"github.com/fyrsmithlabs/steward/internal/logging"
	"github.com/fyrsmithlabs/steward/internal/outcome"
	"github.com/fyrsmithlabs/steward/internal/portfolio"
	"github.com/fyrsmithlabs/steward/internal/recorder"
	"github.com/fyrsmithlabs/steward/internal/secrets"
	"github.com/fyrsmithlabs/steward/internal/telemetry"
	"github.com/fyrsmithlabs/steward/internal/vectorstore"
)

// demoUserID is the portfolio fixture owner seeded in fixture mode so a
// fresh install has something to sweep and chat about.
const demoUserID = "demo"

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  stewardd           Start the steward daemon\n")
			fmt.Fprintf(os.Stderr, "  stewardd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("stewardd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the steward daemon and blocks until context is cancelled.
//
// Initialization order:
//  1. Configuration and validation
//  2. Telemetry and logging
//  3. Infrastructure (embeddings, vector index, knowledge store, NATS)
//  4. Business services (learning, scoring, agent, heartbeat, outcomes)
//  5. HTTP server and scheduler
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Protocol:       cfg.Telemetry.Protocol,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		// Telemetry degrades rather than blocks startup.
		log.Printf("telemetry degraded: %v", err)
	}
	defer func() { _ = tel.Shutdown(context.Background()) }()

	appLogger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, tel.LoggerProvider())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger := appLogger.Underlying()
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting stewardd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("portfolio_mode", cfg.Portfolio.Mode),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout))

	deps, err := initDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()

	logger.Info("Dependencies initialized",
		zap.Bool("nats_connected", deps.natsConn != nil),
		zap.Bool("embedded_nats", deps.embeddedNATS != nil),
		zap.Int("goldens", deps.goldenCount()))

	svcs, err := initServices(cfg, deps, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	srv, err := httpapi.NewServer(svcs.agent, svcs.scanner, svcs.learning, deps.store, logger, &httpapi.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		SchedulerSecret: cfg.Scheduler.Secret,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	if err := deps.consumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start decision consumer: %w", err)
	}
	defer deps.consumer.Stop()

	var scheduler *heartbeat.Scheduler
	if cfg.Scheduler.Enabled {
		jobs := append([]heartbeat.Job{heartbeat.SweepJob(svcs.scanner)}, svcs.tracker.Jobs()...)
		scheduler, err = heartbeat.NewScheduler(cfg.Scheduler.Interval, logger, jobs...)
		if err != nil {
			return fmt.Errorf("failed to create scheduler: %w", err)
		}
		if err := scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer scheduler.Stop()
		logger.Info("Heartbeat scheduler running",
			zap.Duration("interval", cfg.Scheduler.Interval))
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	logger.Info("Server configured",
		zap.String("health_endpoint", fmt.Sprintf("http://%s:%d/health", cfg.Server.Host, cfg.Server.Port)),
		zap.String("metrics_endpoint", "/metrics"))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// dependencies holds infrastructure the services are built on.
type dependencies struct {
	embedder     embeddings.Provider
	index        vectorstore.Store
	db           *knowledge.DB
	store        *knowledge.Store
	embeddedNATS *recorder.EmbeddedServer
	natsConn     *nats.Conn
	recorder     *recorder.Recorder
	consumer     *recorder.Consumer
	goldens      *goldens.Index
	reader       portfolio.Reader
	executor     portfolio.Executor
}

func (d *dependencies) goldenCount() int {
	if d.goldens == nil {
		return 0
	}
	return d.goldens.Count()
}

// Close releases infrastructure in reverse dependency order.
func (d *dependencies) Close() {
	if d.goldens != nil {
		_ = d.goldens.Close()
	}
	if d.recorder != nil {
		_ = d.recorder.Close()
	}
	if d.natsConn != nil {
		d.natsConn.Close()
	}
	if d.embeddedNATS != nil {
		d.embeddedNATS.Shutdown()
	}
	if d.index != nil {
		_ = d.index.Close()
	}
	if d.db != nil {
		_ = d.db.Close()
	}
	if d.embedder != nil {
		_ = d.embedder.Close()
	}
}

// initDependencies builds the embedding provider, vector index, knowledge
// store, decision queue, goldens index, and portfolio backend.
func initDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*dependencies, error) {
	d := &dependencies{}
	ok := false
	defer func() {
		if !ok {
			d.Close()
		}
	}()

	embedder, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider:  cfg.Embeddings.Provider,
		Model:     cfg.Embeddings.Model,
		BaseURL:   cfg.Embeddings.BaseURL,
		APIKey:    os.Getenv(cfg.Embeddings.APIKeyEnv),
		Dimension: cfg.Embeddings.Dimension,
		Timeout:   cfg.Embeddings.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}
	d.embedder = embedder

	logger.Info("Embedding provider initialized",
		zap.String("provider", cfg.Embeddings.Provider),
		zap.String("model", cfg.Embeddings.Model),
		zap.Int("dimension", cfg.Embeddings.Dimension))

	index, err := vectorstore.NewStore(cfg, embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("creating vector index: %w", err)
	}
	d.index = index

	if err := vectorstore.EnsureKnowledgeCollections(ctx, index); err != nil {
		return nil, fmt.Errorf("ensuring collections: %w", err)
	}

	db, err := knowledge.OpenDB(cfg.Knowledge.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("opening knowledge store: %w", err)
	}
	d.db = db

	store, err := knowledge.NewStore(db, index, cfg.Embeddings.Dimension, logger)
	if err != nil {
		return nil, fmt.Errorf("creating knowledge store: %w", err)
	}
	d.store = store

	natsURL := cfg.Recorder.URL
	if cfg.Recorder.Embedded {
		embedded, err := recorder.StartEmbedded(filepath.Join(filepath.Dir(cfg.Knowledge.Path), "nats"), logger)
		if err != nil {
			return nil, fmt.Errorf("starting embedded NATS: %w", err)
		}
		d.embeddedNATS = embedded
		natsURL = embedded.ClientURL()
	}

	nc, err := recorder.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", natsURL, err)
	}
	d.natsConn = nc
	logger.Info("Connected to NATS", zap.String("url", natsURL))

	recCfg := recorder.Config{
		Stream:         cfg.Recorder.Stream,
		SubjectPrefix:  cfg.Recorder.SubjectPrefix,
		Buffer:         cfg.Recorder.Buffer,
		PublishTimeout: cfg.Recorder.PublishTimeout,
	}
	rec, err := recorder.New(ctx, nc, recCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating decision recorder: %w", err)
	}
	d.recorder = rec

	consumer, err := recorder.NewConsumer(nc, store, recCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating decision consumer: %w", err)
	}
	d.consumer = consumer

	if cfg.Goldens.Dir != "" {
		idx, err := goldens.NewIndex(ctx, cfg.Goldens.Dir, index, logger)
		if err != nil {
			return nil, fmt.Errorf("loading goldens: %w", err)
		}
		if cfg.Goldens.Watch {
			if err := idx.Watch(); err != nil {
				_ = idx.Close()
				return nil, fmt.Errorf("watching goldens: %w", err)
			}
		}
		d.goldens = idx
	}

	switch cfg.Portfolio.Mode {
	case "http":
		client, err := portfolio.NewHTTPClient(portfolio.HTTPConfig{
			BaseURL:      cfg.Portfolio.BaseURL,
			TokenURL:     cfg.Portfolio.TokenURL,
			ClientID:     cfg.Portfolio.ClientID,
			ClientSecret: os.Getenv(cfg.Portfolio.ClientSecretEnv),
			Timeout:      cfg.Portfolio.Timeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("creating portfolio client: %w", err)
		}
		d.reader, d.executor = client, client
	default:
		fix := portfolio.NewFixture()
		fix.SeedDemo(demoUserID)
		d.reader, d.executor = fix, fix
		logger.Info("Portfolio fixture in use", zap.String("demo_user", demoUserID))
	}

	ok = true
	return d, nil
}

// services holds the business layer.
type services struct {
	learning *learning.Service
	agent    *agent.Service
	scanner  *heartbeat.Scanner
	tracker  *outcome.Tracker
}

// initServices wires the learning pipeline, confidence scorer, agent, and
// heartbeat over the shared infrastructure.
func initServices(cfg *config.Config, deps *dependencies, logger *zap.Logger) (*services, error) {
	scrubber, err := secrets.New(&secrets.Config{
		Enabled:       cfg.Secrets.Enabled,
		AllowlistPath: cfg.Secrets.AllowlistPath,
	})
	if err != nil {
		return nil, fmt.Errorf("creating secrets scrubber: %w", err)
	}

	learningSvc, err := learning.NewService(deps.store, deps.embedder, scrubber, learning.Config{
		DedupThreshold:      cfg.Learning.DedupThreshold,
		RuleStartConfidence: cfg.Learning.RuleStartConfidence,
		ReinforceBump:       cfg.Learning.ReinforceBump,
		SearchCount:         cfg.Learning.SearchCount,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating learning service: %w", err)
	}

	// A nil goldens index keeps the golden factor neutral.
	var goldenIndex confidence.GoldenIndex
	if deps.goldens != nil {
		goldenIndex = deps.goldens
	}
	scorer, err := confidence.NewScorer(deps.store, goldenIndex)
	if err != nil {
		return nil, fmt.Errorf("creating confidence scorer: %w", err)
	}

	llmClient, err := llm.New(llm.Config{
		Provider:          cfg.LLM.Provider,
		BaseURL:           cfg.LLM.BaseURL,
		Model:             cfg.LLM.Model,
		APIKey:            os.Getenv(cfg.LLM.APIKeyEnv),
		MaxTokens:         cfg.LLM.MaxTokens,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		MaxRetries:        cfg.LLM.MaxRetries,
		Timeout:           cfg.LLM.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("creating llm client: %w", err)
	}

	registry := agent.NewRegistry()
	if err := agent.RegisterBuiltins(registry, deps.reader, deps.executor, deps.store, deps.embedder); err != nil {
		return nil, fmt.Errorf("registering tools: %w", err)
	}

	agentSvc, err := agent.NewService(llmClient, registry, scorer, deps.store, deps.recorder, deps.embedder, agent.Config{
		DefaultPreset: cfg.Autonomy.DefaultPreset,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating agent: %w", err)
	}

	scanner, err := heartbeat.NewScanner(deps.reader, scorer, deps.store, deps.recorder, registry, deps.embedder, heartbeat.Config{
		TimeBucket:    cfg.Scheduler.TimeBucket,
		DefaultPreset: cfg.Autonomy.DefaultPreset,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating heartbeat scanner: %w", err)
	}

	tracker, err := outcome.NewTracker(deps.store, deps.reader, outcome.Config{
		Grace:         cfg.Scheduler.OutcomeGrace,
		MaxAge:        cfg.Scheduler.OutcomeMaxAge,
		DecayDays:     cfg.Learning.DecayDays,
		DecayAmount:   cfg.Learning.DecayAmount,
		RetentionDays: cfg.Knowledge.RetentionDays,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating outcome tracker: %w", err)
	}

	return &services{
		learning: learningSvc,
		agent:    agentSvc,
		scanner:  scanner,
		tracker:  tracker,
	}, nil
}
