package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/steward/internal/agent"
	"github.com/fyrsmithlabs/steward/internal/autonomy"
	"github.com/fyrsmithlabs/steward/internal/heartbeat"
	"github.com/fyrsmithlabs/steward/internal/knowledge"
	"github.com/fyrsmithlabs/steward/internal/learning"
)

const testSchedulerSecret = "sweep-me"

type fakeAgent struct {
	chatResp *agent.ChatResponse
	chatErr  error
	lastChat *agent.ChatRequest

	approveTask   *knowledge.Task
	approveResult string
	approveErr    error
	rejectTask    *knowledge.Task
	rejectErr     error
}

func (f *fakeAgent) Chat(ctx context.Context, req *agent.ChatRequest) (*agent.ChatResponse, error) {
	f.lastChat = req
	return f.chatResp, f.chatErr
}

func (f *fakeAgent) ApproveTask(ctx context.Context, userID, taskID string) (*knowledge.Task, string, error) {
	return f.approveTask, f.approveResult, f.approveErr
}

func (f *fakeAgent) RejectTask(ctx context.Context, userID, taskID string) (*knowledge.Task, error) {
	return f.rejectTask, f.rejectErr
}

type fakeSweeper struct {
	summary  *heartbeat.Summary
	err      error
	lastUser string
	calls    int
}

func (f *fakeSweeper) RunSweep(ctx context.Context, userID string) (*heartbeat.Summary, error) {
	f.lastUser = userID
	f.calls++
	return f.summary, f.err
}

type feedbackCall struct {
	userID     string
	decisionID string
	feedback   knowledge.Feedback
}

type fakeLearner struct {
	correctionID string
	corrErr      error
	lastInput    *learning.CorrectionInput

	result   *learning.Result
	learnErr error

	feedback    []feedbackCall
	feedbackErr error
}

func (f *fakeLearner) RecordCorrection(ctx context.Context, in *learning.CorrectionInput) (string, error) {
	f.lastInput = in
	return f.correctionID, f.corrErr
}

func (f *fakeLearner) ClassifyAndLearn(ctx context.Context, in *learning.LearnInput) (*learning.Result, error) {
	return f.result, f.learnErr
}

func (f *fakeLearner) ProcessFeedback(ctx context.Context, userID, decisionID string, feedback knowledge.Feedback, category autonomy.Category) error {
	f.feedback = append(f.feedback, feedbackCall{userID, decisionID, feedback})
	return f.feedbackErr
}

type fakeStore struct {
	tasks      []*knowledge.Task
	lastStatus knowledge.TaskStatus
	listErr    error

	cfg    *autonomy.Config
	getErr error
	saved  *autonomy.Config

	stats    *knowledge.Stats
	statsErr error
}

func (f *fakeStore) ListTasks(ctx context.Context, userID string, status knowledge.TaskStatus, category autonomy.Category, limit int) ([]*knowledge.Task, error) {
	f.lastStatus = status
	return f.tasks, f.listErr
}

func (f *fakeStore) GetAutonomyConfig(ctx context.Context, userID string) (*autonomy.Config, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.cfg, nil
}

func (f *fakeStore) PutAutonomyConfig(ctx context.Context, cfg *autonomy.Config) error {
	f.saved = cfg
	return nil
}

func (f *fakeStore) Stats(ctx context.Context) (*knowledge.Stats, error) {
	return f.stats, f.statsErr
}

type fixture struct {
	server  *Server
	agent   *fakeAgent
	sweeper *fakeSweeper
	learner *fakeLearner
	store   *fakeStore
}

func setupTestServer(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		agent:   &fakeAgent{},
		sweeper: &fakeSweeper{},
		learner: &fakeLearner{},
		store:   &fakeStore{},
	}

	server, err := NewServer(f.agent, f.sweeper, f.learner, f.store, zap.NewNop(), &Config{
		Host:            "localhost",
		Port:            8787,
		SchedulerSecret: testSchedulerSecret,
	})
	require.NoError(t, err)
	f.server = server
	return f
}

func doJSON(t *testing.T, s *Server, method, target, user string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if user != "" {
		req.Header.Set(headerUserID, user)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestNewServer(t *testing.T) {
	t.Run("returns error when agent is nil", func(t *testing.T) {
		_, err := NewServer(nil, nil, nil, &fakeStore{}, zap.NewNop(), nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "agent cannot be nil")
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(&fakeAgent{}, nil, nil, &fakeStore{}, nil, nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server, err := NewServer(&fakeAgent{}, nil, nil, &fakeStore{}, zap.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, "localhost", server.config.Host)
		assert.Equal(t, 8787, server.config.Port)
	})
}

func TestHandleHealth(t *testing.T) {
	f := setupTestServer(t)

	rec := doJSON(t, f.server, http.MethodGet, "/health", "", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestUserHeaderRequired(t *testing.T) {
	f := setupTestServer(t)

	for _, route := range []struct {
		method string
		target string
	}{
		{http.MethodPost, "/api/v1/agent/chat"},
		{http.MethodPost, "/api/v1/agent/learning"},
		{http.MethodGet, "/api/v1/tasks"},
		{http.MethodPost, "/api/v1/tasks/t-1/approve"},
		{http.MethodGet, "/api/v1/autonomy"},
	} {
		rec := doJSON(t, f.server, route.method, route.target, "", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", route.method, route.target)
	}
}

func TestHandleChat(t *testing.T) {
	t.Run("forwards the turn and identity", func(t *testing.T) {
		f := setupTestServer(t)
		f.agent.chatResp = &agent.ChatResponse{
			ConversationID: "conv-1",
			Message:        "Two tenancies are behind on rent.",
			TokensUsed:     42,
		}

		rec := doJSON(t, f.server, http.MethodPost, "/api/v1/agent/chat", "alice",
			ChatRequest{Message: "how is the portfolio?"}, nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		require.NotNil(t, f.agent.lastChat)
		assert.Equal(t, "alice", f.agent.lastChat.UserID)
		assert.Equal(t, "how is the portfolio?", f.agent.lastChat.Message)

		var resp agent.ChatResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "conv-1", resp.ConversationID)
		assert.Equal(t, 42, resp.TokensUsed)
	})

	t.Run("uses the documented json keys", func(t *testing.T) {
		f := setupTestServer(t)
		f.agent.chatResp = &agent.ChatResponse{
			ConversationID: "conv-1",
			Message:        "Drafted a reminder.",
			TokensUsed:     7,
			ToolsUsed:      []string{"send_rent_reminder"},
			PendingActions: []agent.PendingAction{{
				ID:          "task-1",
				ToolName:    "send_rent_reminder",
				Description: "Send a rent reminder to the tenant in unit 4B.",
				Category:    autonomy.CategoryRentCollection,
			}},
		}

		rec := doJSON(t, f.server, http.MethodPost, "/api/v1/agent/chat", "alice",
			map[string]string{"message": "chase the rent", "conversationId": "conv-1"}, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "conv-1", f.agent.lastChat.ConversationID)

		var raw map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
		for _, key := range []string{"conversationId", "message", "tokensUsed", "toolsUsed", "pendingActions"} {
			assert.Contains(t, raw, key)
		}

		var actions []map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(raw["pendingActions"], &actions))
		require.Len(t, actions, 1)
		for _, key := range []string{"id", "tool_name", "description", "category"} {
			assert.Contains(t, actions[0], key)
		}
	})

	t.Run("rejects empty message", func(t *testing.T) {
		f := setupTestServer(t)
		rec := doJSON(t, f.server, http.MethodPost, "/api/v1/agent/chat", "alice",
			ChatRequest{}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects invalid json", func(t *testing.T) {
		f := setupTestServer(t)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/agent/chat", bytes.NewReader([]byte("not json")))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set(headerUserID, "alice")
		rec := httptest.NewRecorder()
		f.server.echo.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleHeartbeat(t *testing.T) {
	t.Run("requires the scheduler secret", func(t *testing.T) {
		f := setupTestServer(t)

		rec := doJSON(t, f.server, http.MethodPost, "/api/v1/agent/heartbeat", "", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = doJSON(t, f.server, http.MethodPost, "/api/v1/agent/heartbeat", "", nil,
			map[string]string{headerSchedulerSecret: "wrong"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, 0, f.sweeper.calls)
	})

	t.Run("owner credentials never trigger a sweep", func(t *testing.T) {
		f := setupTestServer(t)
		rec := doJSON(t, f.server, http.MethodPost, "/api/v1/agent/heartbeat", "alice", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, 0, f.sweeper.calls)
	})

	t.Run("runs the sweep for one user", func(t *testing.T) {
		f := setupTestServer(t)
		f.sweeper.summary = &heartbeat.Summary{Users: 1, Findings: 3, TasksCreated: 2}

		rec := doJSON(t, f.server, http.MethodPost, "/api/v1/agent/heartbeat?user_id=alice", "", nil,
			map[string]string{headerSchedulerSecret: testSchedulerSecret})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "alice", f.sweeper.lastUser)

		var resp HeartbeatResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.OK)
		assert.Equal(t, 3, resp.Summary.Findings)
	})

	t.Run("disabled without a configured secret", func(t *testing.T) {
		server, err := NewServer(&fakeAgent{}, &fakeSweeper{}, nil, &fakeStore{}, zap.NewNop(), &Config{})
		require.NoError(t, err)

		rec := doJSON(t, server, http.MethodPost, "/api/v1/agent/heartbeat", "", nil,
			map[string]string{headerSchedulerSecret: ""})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestHandleLearning(t *testing.T) {
	t.Run("record_correction", func(t *testing.T) {
		f := setupTestServer(t)
		f.learner.correctionID = "corr-9"

		rec := doJSON(t, f.server, http.MethodPost, "/api/v1/agent/learning", "alice", LearningRequest{
			Action:         "record_correction",
			OriginalAction: "sent the reminder to the wrong tenant",
			Correction:     "unit 4B is tenanted by the Wus, not the Chens",
			Category:       "rent_collection",
		}, nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		require.NotNil(t, f.learner.lastInput)
		assert.Equal(t, "alice", f.learner.lastInput.UserID)
		assert.Equal(t, autonomy.CategoryRentCollection, f.learner.lastInput.Category)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "corr-9", resp["correction_id"])
	})

	t.Run("record_correction requires both texts", func(t *testing.T) {
		f := setupTestServer(t)
		rec := doJSON(t, f.server, http.MethodPost, "/api/v1/agent/learning", "alice",
			LearningRequest{Action: "record_correction", Correction: "only half"}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("classify_and_learn returns the result verbatim", func(t *testing.T) {
		f := setupTestServer(t)
		f.learner.result = &learning.Result{
			Learned:      true,
			ArtifactType: learning.ArtifactRule,
			ArtifactID:   "rule-1",
		}

		rec := doJSON(t, f.server, http.MethodPost, "/api/v1/agent/learning", "alice", LearningRequest{
			Action:       "classify_and_learn",
			ErrorType:    "factual_error",
			ErrorMessage: "the smoke alarm certificate was already renewed",
		}, nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp learning.Result
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Learned)
		assert.Equal(t, "rule-1", resp.ArtifactID)
	})

	t.Run("classify_and_learn rejects unknown error types", func(t *testing.T) {
		f := setupTestServer(t)
		rec := doJSON(t, f.server, http.MethodPost, "/api/v1/agent/learning", "alice",
			LearningRequest{Action: "classify_and_learn", ErrorType: "VIBES", ErrorMessage: "x"}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("process_feedback", func(t *testing.T) {
		f := setupTestServer(t)
		rec := doJSON(t, f.server, http.MethodPost, "/api/v1/agent/learning", "alice", LearningRequest{
			Action:     "process_feedback",
			DecisionID: "dec-7",
			Feedback:   "rejected",
		}, nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		require.Len(t, f.learner.feedback, 1)
		assert.Equal(t, "dec-7", f.learner.feedback[0].decisionID)
		assert.Equal(t, knowledge.FeedbackRejected, f.learner.feedback[0].feedback)
	})

	t.Run("process_feedback validates the verdict", func(t *testing.T) {
		f := setupTestServer(t)
		rec := doJSON(t, f.server, http.MethodPost, "/api/v1/agent/learning", "alice",
			LearningRequest{Action: "process_feedback", DecisionID: "dec-7", Feedback: "maybe"}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown action", func(t *testing.T) {
		f := setupTestServer(t)
		rec := doJSON(t, f.server, http.MethodPost, "/api/v1/agent/learning", "alice",
			LearningRequest{Action: "osmosis"}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleListTasks(t *testing.T) {
	t.Run("lists tasks with filters", func(t *testing.T) {
		f := setupTestServer(t)
		f.store.tasks = []*knowledge.Task{
			{ID: "t-1", Status: knowledge.TaskStatusPendingApproval},
		}

		rec := doJSON(t, f.server, http.MethodGet, "/api/v1/tasks?status=pending_approval", "alice", nil, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, knowledge.TaskStatusPendingApproval, f.store.lastStatus)

		var resp TaskListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Count)
		assert.Equal(t, "t-1", resp.Tasks[0].ID)
	})

	t.Run("empty list stays a list", func(t *testing.T) {
		f := setupTestServer(t)
		rec := doJSON(t, f.server, http.MethodGet, "/api/v1/tasks", "alice", nil, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"tasks":[]`)
	})

	t.Run("rejects unknown status and category", func(t *testing.T) {
		f := setupTestServer(t)
		rec := doJSON(t, f.server, http.MethodGet, "/api/v1/tasks?status=snoozed", "alice", nil, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = doJSON(t, f.server, http.MethodGet, "/api/v1/tasks?category=astrology", "alice", nil, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bounds the limit", func(t *testing.T) {
		f := setupTestServer(t)
		rec := doJSON(t, f.server, http.MethodGet, "/api/v1/tasks?limit=9000", "alice", nil, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleApproveTask(t *testing.T) {
	t.Run("executes and records owner feedback", func(t *testing.T) {
		f := setupTestServer(t)
		f.agent.approveTask = &knowledge.Task{
			ID:         "t-1",
			DecisionID: "dec-1",
			Category:   autonomy.CategoryMaintenance,
			Status:     knowledge.TaskStatusExecuted,
		}
		f.agent.approveResult = "quote requested from trade"

		rec := doJSON(t, f.server, http.MethodPost, "/api/v1/tasks/t-1/approve", "alice", nil, nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp TaskResolutionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "quote requested from trade", resp.Result)

		require.Len(t, f.learner.feedback, 1)
		assert.Equal(t, "dec-1", f.learner.feedback[0].decisionID)
		assert.Equal(t, knowledge.FeedbackApproved, f.learner.feedback[0].feedback)
	})

	t.Run("already resolved tasks conflict", func(t *testing.T) {
		f := setupTestServer(t)
		f.agent.approveErr = knowledge.ErrTaskStatusConflict

		rec := doJSON(t, f.server, http.MethodPost, "/api/v1/tasks/t-1/approve", "alice", nil, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Empty(t, f.learner.feedback)
	})

	t.Run("missing task is 404", func(t *testing.T) {
		f := setupTestServer(t)
		f.agent.approveErr = knowledge.ErrNotFound

		rec := doJSON(t, f.server, http.MethodPost, "/api/v1/tasks/t-9/approve", "alice", nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandleRejectTask(t *testing.T) {
	f := setupTestServer(t)
	f.agent.rejectTask = &knowledge.Task{
		ID:         "t-2",
		DecisionID: "dec-2",
		Category:   autonomy.CategoryRentCollection,
		Status:     knowledge.TaskStatusRejected,
	}

	rec := doJSON(t, f.server, http.MethodPost, "/api/v1/tasks/t-2/reject", "alice", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, f.learner.feedback, 1)
	assert.Equal(t, knowledge.FeedbackRejected, f.learner.feedback[0].feedback)
}

func TestHandleAutonomy(t *testing.T) {
	t.Run("get falls back to the balanced default", func(t *testing.T) {
		f := setupTestServer(t)
		f.store.getErr = knowledge.ErrNotFound

		rec := doJSON(t, f.server, http.MethodGet, "/api/v1/autonomy", "alice", nil, nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		var cfg autonomy.Config
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
		assert.Equal(t, autonomy.PresetBalanced, cfg.Preset)
		assert.Equal(t, "alice", cfg.UserID)
	})

	t.Run("put applies a preset", func(t *testing.T) {
		f := setupTestServer(t)
		f.store.cfg = autonomy.NewConfig("alice", autonomy.PresetBalanced)

		rec := doJSON(t, f.server, http.MethodPut, "/api/v1/autonomy", "alice",
			AutonomyUpdateRequest{Preset: "cautious"}, nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		require.NotNil(t, f.store.saved)
		assert.Equal(t, autonomy.PresetCautious, f.store.saved.Preset)
	})

	t.Run("put with a level flips to custom", func(t *testing.T) {
		f := setupTestServer(t)
		f.store.cfg = autonomy.NewConfig("alice", autonomy.PresetBalanced)

		rec := doJSON(t, f.server, http.MethodPut, "/api/v1/autonomy", "alice",
			AutonomyUpdateRequest{Levels: map[string]string{"maintenance": "auto_notice"}}, nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		require.NotNil(t, f.store.saved)
		assert.Equal(t, autonomy.PresetCustom, f.store.saved.Preset)
		assert.Equal(t, autonomy.LevelAutoNotice, f.store.saved.Level(autonomy.CategoryMaintenance))
	})

	t.Run("put rejects garbage", func(t *testing.T) {
		f := setupTestServer(t)
		f.store.cfg = autonomy.NewConfig("alice", autonomy.PresetBalanced)

		rec := doJSON(t, f.server, http.MethodPut, "/api/v1/autonomy", "alice",
			AutonomyUpdateRequest{}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = doJSON(t, f.server, http.MethodPut, "/api/v1/autonomy", "alice",
			AutonomyUpdateRequest{Preset: "yolo"}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = doJSON(t, f.server, http.MethodPut, "/api/v1/autonomy", "alice",
			AutonomyUpdateRequest{Levels: map[string]string{"maintenance": "L9"}}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleOpsStats(t *testing.T) {
	t.Run("requires the operator secret when one is configured", func(t *testing.T) {
		f := setupTestServer(t)
		f.store.stats = &knowledge.Stats{DecisionsTotal: 12, ActiveRules: 3}

		rec := doJSON(t, f.server, http.MethodGet, "/api/v1/ops/stats", "", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = doJSON(t, f.server, http.MethodGet, "/api/v1/ops/stats", "", nil,
			map[string]string{headerSchedulerSecret: "wrong"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = doJSON(t, f.server, http.MethodGet, "/api/v1/ops/stats", "", nil,
			map[string]string{headerSchedulerSecret: testSchedulerSecret})
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp knowledge.Stats
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 12, resp.DecisionsTotal)
		assert.Equal(t, 3, resp.ActiveRules)
	})

	t.Run("stays open on a dev server with no secret", func(t *testing.T) {
		f := setupTestServer(t)
		f.server.config.SchedulerSecret = ""
		f.store.stats = &knowledge.Stats{DecisionsTotal: 1}

		rec := doJSON(t, f.server, http.MethodGet, "/api/v1/ops/stats", "", nil, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	f := setupTestServer(t)

	// Generate at least one labeled observation first.
	doJSON(t, f.server, http.MethodGet, "/health", "", nil, nil)

	rec := doJSON(t, f.server, http.MethodGet, "/metrics", "", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "steward_http_requests_total")
}

func TestMiddleware(t *testing.T) {
	t.Run("adds request ID to response", func(t *testing.T) {
		f := setupTestServer(t)
		rec := doJSON(t, f.server, http.MethodGet, "/health", "", nil, nil)
		assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
	})

	t.Run("recovers from panic", func(t *testing.T) {
		f := setupTestServer(t)
		f.server.echo.GET("/panic", func(c echo.Context) error {
			panic("test panic")
		})

		assert.NotPanics(t, func() {
			doJSON(t, f.server, http.MethodGet, "/panic", "", nil, nil)
		})
	})
}

func TestServerLifecycle(t *testing.T) {
	server, err := NewServer(&fakeAgent{}, nil, nil, &fakeStore{}, zap.NewNop(), &Config{
		Host: "localhost",
		Port: 0,
	})
	require.NoError(t, err)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(ctx))

	select {
	case err := <-errChan:
		assert.True(t, err == nil || err == http.ErrServerClosed)
	case <-time.After(6 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}
