package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/steward/internal/autonomy"
	"github.com/fyrsmithlabs/steward/internal/confidence"
	"github.com/fyrsmithlabs/steward/internal/knowledge"
	"github.com/fyrsmithlabs/steward/internal/llm"
	"github.com/fyrsmithlabs/steward/internal/vectorstore"
)

var tracer = otel.Tracer("steward.agent")

// ErrInvalidRequest indicates a chat request missing required fields.
var ErrInvalidRequest = errors.New("invalid chat request")

const (
	defaultMaxToolIterations = 8
	defaultMaxConversations  = 1024
	defaultMaxHistory        = 60

	defaultSystemPrompt = `You are Steward, an assistant managing rental properties on behalf of their owner.
Use the available tools to inspect portfolio state before acting. Actions you
request may execute immediately, be queued for owner approval, or be refused,
depending on the owner's autonomy settings; relay the outcome honestly and
never claim an action happened when the tool result says otherwise.`
)

// Store is the slice of the knowledge store the agent uses directly.
type Store interface {
	GetAutonomyConfig(ctx context.Context, userID string) (*autonomy.Config, error)
	PutAutonomyConfig(ctx context.Context, cfg *autonomy.Config) error
	CreateTask(ctx context.Context, t *knowledge.Task) (created bool, err error)
	GetTask(ctx context.Context, userID, id string) (*knowledge.Task, error)
	TransitionTask(ctx context.Context, userID, taskID string, from, to knowledge.TaskStatus) (*knowledge.Task, error)
}

// Recorder accepts decisions off the response path.
type Recorder interface {
	Record(ctx context.Context, d *knowledge.Decision) error
}

// Scorer computes confidence factors for a candidate action.
type Scorer interface {
	Score(ctx context.Context, c *confidence.Candidate) (*knowledge.ConfidenceFactors, error)
}

// Config tunes the agent.
type Config struct {
	MaxToolIterations int
	MaxConversations  int
	MaxHistory        int
	SystemPrompt      string
	DefaultPreset     string
}

func (c *Config) applyDefaults() {
	if c.MaxToolIterations <= 0 {
		c.MaxToolIterations = defaultMaxToolIterations
	}
	if c.MaxConversations <= 0 {
		c.MaxConversations = defaultMaxConversations
	}
	if c.MaxHistory <= 0 {
		c.MaxHistory = defaultMaxHistory
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = defaultSystemPrompt
	}
	if !autonomy.IsValidPreset(c.DefaultPreset) {
		c.DefaultPreset = string(autonomy.PresetBalanced)
	}
}

// Service runs chat turns and task approvals.
type Service struct {
	llm      llm.Client
	registry *Registry
	scorer   Scorer
	store    Store
	recorder Recorder
	embedder vectorstore.Embedder
	cfg      Config
	logger   *zap.Logger

	conversations *conversationStore
}

// NewService wires the agent. embedder may be nil; candidates then score
// without similarity factors.
func NewService(client llm.Client, registry *Registry, scorer Scorer, store Store, rec Recorder, embedder vectorstore.Embedder, cfg Config, logger *zap.Logger) (*Service, error) {
	if client == nil || registry == nil || scorer == nil || store == nil || rec == nil {
		return nil, errors.New("agent: llm client, registry, scorer, store, and recorder are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()
	return &Service{
		llm:           client,
		registry:      registry,
		scorer:        scorer,
		store:         store,
		recorder:      rec,
		embedder:      embedder,
		cfg:           cfg,
		logger:        logger,
		conversations: newConversationStore(cfg.MaxConversations, cfg.MaxHistory),
	}, nil
}

// ChatRequest is one owner message.
type ChatRequest struct {
	UserID         string `json:"-"`
	ConversationID string `json:"conversationId,omitempty"`
	Message        string `json:"message"`
}

// PendingAction is a drafted action awaiting owner approval. The id is
// the task id to pass to the approval endpoint.
type PendingAction struct {
	ID          string            `json:"id"`
	ToolName    string            `json:"tool_name"`
	Description string            `json:"description"`
	Category    autonomy.Category `json:"category"`
}

// ChatResponse is the agent's reply.
type ChatResponse struct {
	ConversationID string          `json:"conversationId"`
	Message        string          `json:"message"`
	TokensUsed     int             `json:"tokensUsed"`
	ToolsUsed      []string        `json:"toolsUsed,omitempty"`
	PendingActions []PendingAction `json:"pendingActions,omitempty"`
}

// Chat runs one turn: model call, tool dispatch under the autonomy gate,
// repeat until the model stops calling tools or the iteration budget
// runs out.
func (s *Service) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	ctx, span := tracer.Start(ctx, "agent.Chat")
	defer span.End()

	if req == nil || req.UserID == "" || strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("%w: user id and message are required", ErrInvalidRequest)
	}

	convID := req.ConversationID
	if convID == "" {
		convID = uuid.NewString()
	}
	span.SetAttributes(attribute.String("conversation_id", convID))

	history := s.conversations.get(req.UserID, convID)
	if history == nil {
		history = []llm.Message{{Role: llm.RoleSystem, Content: s.cfg.SystemPrompt}}
	}
	history = append(history, llm.Message{Role: llm.RoleUser, Content: req.Message})

	resp := &ChatResponse{ConversationID: convID}
	specs := s.registry.Specs()

	for i := 0; i < s.cfg.MaxToolIterations; i++ {
		reply, err := s.llm.Chat(ctx, history, specs)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("chat model: %w", err)
		}
		resp.TokensUsed += reply.Usage.Total()
		history = append(history, reply.Message)

		if !reply.HasToolCalls() {
			resp.Message = reply.Message.Content
			break
		}

		for _, call := range reply.Message.ToolCalls {
			result := s.dispatch(ctx, req.UserID, convID, call, resp)
			history = append(history, llm.Message{
				Role:       llm.RoleTool,
				ToolCallID: call.ID,
				Name:       call.Name,
				Content:    result,
			})
		}
	}
	if resp.Message == "" {
		resp.Message = "I ran out of room to finish that; the partial results are above."
	}

	s.conversations.put(req.UserID, convID, history)
	span.SetAttributes(attribute.Int("tokens_used", resp.TokensUsed))
	span.SetStatus(codes.Ok, "success")
	return resp, nil
}

// dispatch executes one tool call under the gate and returns the tool
// result text fed back to the model.
func (s *Service) dispatch(ctx context.Context, userID, convID string, call llm.ToolCall, resp *ChatResponse) string {
	tool, err := s.registry.Get(call.Name)
	if err != nil {
		return fmt.Sprintf("error: no tool named %q", call.Name)
	}

	var args map[string]interface{}
	if len(call.Arguments) > 0 {
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			return fmt.Sprintf("error: arguments for %s are not valid JSON: %v", call.Name, err)
		}
	}

	resp.ToolsUsed = append(resp.ToolsUsed, tool.Name)

	if tool.Exempt {
		result, err := tool.Run(ctx, userID, args)
		if err != nil {
			return fmt.Sprintf("error: %s failed: %v", tool.Name, err)
		}
		return result
	}

	return s.dispatchScored(ctx, userID, convID, tool, call, args, resp)
}

func (s *Service) dispatchScored(ctx context.Context, userID, convID string, tool *Tool, call llm.ToolCall, args map[string]interface{}, resp *ChatResponse) string {
	summary := inputSummary(tool.Name, call.Arguments)

	var embedding []float32
	embedErr := error(nil)
	if s.embedder != nil {
		embedding, embedErr = s.embedder.EmbedQuery(ctx, summary)
	}

	decision := &knowledge.Decision{
		ID:             uuid.NewString(),
		UserID:         userID,
		ToolName:       tool.Name,
		Category:       tool.Category,
		InputSummary:   summary,
		Embedding:      embedding,
		ConversationID: convID,
	}

	var disposition autonomy.Disposition
	if embedErr != nil {
		// An action we cannot score does not run.
		disposition = autonomy.DispositionBlock
		s.logger.Error("embedding candidate for scoring",
			zap.String("tool", tool.Name), zap.Error(embedErr))
	} else {
		factors, err := s.scorer.Score(ctx, &confidence.Candidate{
			UserID:       userID,
			ToolName:     tool.Name,
			Category:     tool.Category,
			InputSummary: summary,
			Source:       tool.Source,
			Embedding:    embedding,
		})
		if err != nil {
			disposition = autonomy.DispositionBlock
			s.logger.Error("scoring candidate",
				zap.String("tool", tool.Name), zap.Error(err))
		} else {
			decision.Factors = factors
			composite := factors.Composite
			decision.Confidence = &composite

			cfg, err := s.autonomyConfig(ctx, userID)
			if err != nil {
				disposition = autonomy.DispositionBlock
				s.logger.Error("loading autonomy config",
					zap.String("user_id", userID), zap.Error(err))
			} else {
				disposition = autonomy.Decide(cfg, tool.Category, composite)
			}
		}
	}

	decision.Disposition = disposition
	decision.WasAutoExecuted = disposition.AllowsExecution()
	if err := s.recorder.Record(ctx, decision); err != nil {
		s.logger.Error("recording decision",
			zap.String("decision_id", decision.ID), zap.Error(err))
	}

	switch disposition {
	case autonomy.DispositionBlock:
		if decision.Factors == nil {
			return fmt.Sprintf("refused: %s could not be confidence-scored, so it was not executed", tool.Name)
		}
		return fmt.Sprintf("refused: %s is blocked by the owner's autonomy settings for %s", tool.Name, tool.Category)

	case autonomy.DispositionSuggest:
		task, err := s.createTask(ctx, userID, tool, args, decision, knowledge.TaskStatusSuggested)
		if err != nil {
			return fmt.Sprintf("error: could not record suggestion for %s: %v", tool.Name, err)
		}
		return fmt.Sprintf("not executed: recorded as suggestion %s for the owner to consider; describe the suggestion in your reply", task.ID)

	case autonomy.DispositionDraft:
		task, err := s.createTask(ctx, userID, tool, args, decision, knowledge.TaskStatusPendingApproval)
		if err != nil {
			return fmt.Sprintf("error: could not draft %s for approval: %v", tool.Name, err)
		}
		resp.PendingActions = append(resp.PendingActions, PendingAction{
			ID:          task.ID,
			ToolName:    task.ToolName,
			Description: task.Recommendation,
			Category:    task.Category,
		})
		return fmt.Sprintf("not executed: drafted as task %s awaiting owner approval", task.ID)

	case autonomy.DispositionAutoNotice, autonomy.DispositionAutoSilent:
		result, err := tool.Run(ctx, userID, args)
		if err != nil {
			return fmt.Sprintf("error: %s failed: %v", tool.Name, err)
		}
		if disposition == autonomy.DispositionAutoNotice {
			return result + " (the owner will see a notice of this action)"
		}
		return result

	default:
		return fmt.Sprintf("refused: unknown disposition for %s", tool.Name)
	}
}

// autonomyConfig loads the user's gate config, creating the default
// preset on first contact.
func (s *Service) autonomyConfig(ctx context.Context, userID string) (*autonomy.Config, error) {
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

func (s *Service) createTask(ctx context.Context, userID string, tool *Tool, args map[string]interface{}, decision *knowledge.Decision, status knowledge.TaskStatus) (*knowledge.Task, error) {
	task := &knowledge.Task{
		ID:             uuid.NewString(),
		UserID:         userID,
		Category:       tool.Category,
		Title:          titleFor(tool.Name),
		Recommendation: decision.InputSummary,
		Priority:       knowledge.PriorityNormal,
		Status:         status,
		IdempotencyKey: decision.ID,
		ToolName:       tool.Name,
		ToolArgs:       args,
		DecisionID:     decision.ID,
	}
	if _, err := s.store.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// inputSummary renders a tool call as one line for embedding and audit.
func inputSummary(toolName string, args json.RawMessage) string {
	compact := strings.TrimSpace(string(args))
	if compact == "" || compact == "{}" || compact == "null" {
		return toolName
	}
	return toolName + " " + compact
}

// titleFor turns a tool name into an owner-facing title.
func titleFor(toolName string) string {
	return strings.ReplaceAll(toolName, "_", " ")
}
