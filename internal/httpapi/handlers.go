package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/steward/internal/agent"
	"github.com/fyrsmithlabs/steward/internal/autonomy"
	"github.com/fyrsmithlabs/steward/internal/heartbeat"
	"github.com/fyrsmithlabs/steward/internal/knowledge"
	"github.com/fyrsmithlabs/steward/internal/learning"
)

// ChatRequest is the request body for POST /api/v1/agent/chat.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId,omitempty"`
}

func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid chat request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message field is required")
	}

	resp, err := s.agent.Chat(c.Request().Context(), &agent.ChatRequest{
		UserID:         userID(c),
		ConversationID: req.ConversationID,
		Message:        req.Message,
	})
	if err != nil {
		if errors.Is(err, agent.ErrInvalidRequest) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		s.logger.Error("chat turn failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "the agent could not complete the turn")
	}

	return c.JSON(http.StatusOK, resp)
}

// HeartbeatResponse is the response body for POST /api/v1/agent/heartbeat.
type HeartbeatResponse struct {
	OK      bool               `json:"ok"`
	Summary *heartbeat.Summary `json:"summary"`
}

func (s *Server) handleHeartbeat(c echo.Context) error {
	if s.sweeper == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "heartbeat is not configured")
	}

	// Empty user_id sweeps every user the portfolio knows.
	summary, err := s.sweeper.RunSweep(c.Request().Context(), c.QueryParam("user_id"))
	if err != nil {
		s.logger.Error("heartbeat sweep failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "heartbeat sweep failed")
	}

	return c.JSON(http.StatusOK, HeartbeatResponse{OK: true, Summary: summary})
}

// LearningRequest is the request body for POST /api/v1/agent/learning.
// Action selects which fields apply.
type LearningRequest struct {
	Action string `json:"action"`

	// record_correction
	OriginalAction  string `json:"original_action,omitempty"`
	Correction      string `json:"correction,omitempty"`
	ContextSnapshot string `json:"context_snapshot,omitempty"`

	// classify_and_learn
	ErrorType    string `json:"error_type,omitempty"`
	ToolName     string `json:"tool_name,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	InputSummary string `json:"input_summary,omitempty"`

	// process_feedback
	DecisionID string `json:"decision_id,omitempty"`
	Feedback   string `json:"feedback,omitempty"`

	Category string `json:"category,omitempty"`
}

func (s *Server) handleLearning(c echo.Context) error {
	if s.learner == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "learning is not configured")
	}

	var req LearningRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid learning request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	uid := userID(c)

	switch req.Action {
	case "record_correction":
		if req.OriginalAction == "" || req.Correction == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "original_action and correction fields are required")
		}
		id, err := s.learner.RecordCorrection(ctx, &learning.CorrectionInput{
			UserID:          uid,
			OriginalAction:  req.OriginalAction,
			Correction:      req.Correction,
			ContextSnapshot: req.ContextSnapshot,
			Category:        autonomy.ParseCategory(req.Category),
		})
		if err != nil {
			s.logger.Error("recording correction failed", zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "could not record the correction")
		}
		return c.JSON(http.StatusOK, map[string]string{"correction_id": id})

	case "classify_and_learn":
		errType, err := learning.ParseErrorType(req.ErrorType)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if req.ErrorMessage == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "error_message field is required")
		}
		result, err := s.learner.ClassifyAndLearn(ctx, &learning.LearnInput{
			UserID:       uid,
			ErrorType:    errType,
			ToolName:     req.ToolName,
			ErrorMessage: req.ErrorMessage,
			InputSummary: req.InputSummary,
			Category:     autonomy.ParseCategory(req.Category),
		})
		if err != nil {
			s.logger.Error("learning pass failed", zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "learning failed")
		}
		return c.JSON(http.StatusOK, result)

	case "process_feedback":
		feedback := knowledge.Feedback(req.Feedback)
		if !feedback.Valid() {
			return echo.NewHTTPError(http.StatusBadRequest, "feedback must be approved or rejected")
		}
		if req.DecisionID == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "decision_id field is required")
		}
		err := s.learner.ProcessFeedback(ctx, uid, req.DecisionID, feedback, autonomy.ParseCategory(req.Category))
		if err != nil {
			if errors.Is(err, knowledge.ErrNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "decision not found")
			}
			s.logger.Error("processing feedback failed", zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "could not process feedback")
		}
		return c.JSON(http.StatusOK, map[string]bool{"ok": true})

	default:
		return echo.NewHTTPError(http.StatusBadRequest, "action must be record_correction, classify_and_learn, or process_feedback")
	}
}

// TaskListResponse is the response body for GET /api/v1/tasks.
type TaskListResponse struct {
	Tasks []*knowledge.Task `json:"tasks"`
	Count int               `json:"count"`
}

func (s *Server) handleListTasks(c echo.Context) error {
	status := knowledge.TaskStatus(c.QueryParam("status"))
	if status != "" && !status.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown task status")
	}
	category := autonomy.Category(c.QueryParam("category"))
	if category != "" && !autonomy.IsValidCategory(string(category)) {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown category")
	}

	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be between 1 and 500")
		}
		limit = n
	}

	tasks, err := s.store.ListTasks(c.Request().Context(), userID(c), status, category, limit)
	if err != nil {
		s.logger.Error("listing tasks failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "could not list tasks")
	}
	if tasks == nil {
		tasks = []*knowledge.Task{}
	}

	return c.JSON(http.StatusOK, TaskListResponse{Tasks: tasks, Count: len(tasks)})
}

// TaskResolutionResponse is the response body for task approve/reject.
type TaskResolutionResponse struct {
	Task   *knowledge.Task `json:"task"`
	Result string          `json:"result,omitempty"`
}

func (s *Server) handleApproveTask(c echo.Context) error {
	ctx := c.Request().Context()
	uid := userID(c)

	task, result, err := s.agent.ApproveTask(ctx, uid, c.Param("id"))
	if err != nil {
		return taskResolutionError(err)
	}

	// The approval doubles as owner feedback on the originating decision,
	// feeding confidence for future gating. Best effort.
	if s.learner != nil && task.DecisionID != "" {
		if err := s.learner.ProcessFeedback(ctx, uid, task.DecisionID, knowledge.FeedbackApproved, task.Category); err != nil {
			s.logger.Warn("recording approval feedback",
				zap.String("decision_id", task.DecisionID), zap.Error(err))
		}
	}

	return c.JSON(http.StatusOK, TaskResolutionResponse{Task: task, Result: result})
}

func (s *Server) handleRejectTask(c echo.Context) error {
	ctx := c.Request().Context()
	uid := userID(c)

	task, err := s.agent.RejectTask(ctx, uid, c.Param("id"))
	if err != nil {
		return taskResolutionError(err)
	}

	if s.learner != nil && task.DecisionID != "" {
		if err := s.learner.ProcessFeedback(ctx, uid, task.DecisionID, knowledge.FeedbackRejected, task.Category); err != nil {
			s.logger.Warn("recording rejection feedback",
				zap.String("decision_id", task.DecisionID), zap.Error(err))
		}
	}

	return c.JSON(http.StatusOK, TaskResolutionResponse{Task: task})
}

func taskResolutionError(err error) error {
	switch {
	case errors.Is(err, knowledge.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "task not found")
	case errors.Is(err, knowledge.ErrTaskStatusConflict):
		return echo.NewHTTPError(http.StatusConflict, "task is not awaiting approval")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleGetAutonomy(c echo.Context) error {
	cfg, err := s.store.GetAutonomyConfig(c.Request().Context(), userID(c))
	if err != nil {
		if errors.Is(err, knowledge.ErrNotFound) {
			// No stored config yet: show the default the gate would use.
			return c.JSON(http.StatusOK, autonomy.NewConfig(userID(c), autonomy.PresetBalanced))
		}
		s.logger.Error("loading autonomy config failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "could not load autonomy config")
	}
	return c.JSON(http.StatusOK, cfg)
}

// AutonomyUpdateRequest is the request body for PUT /api/v1/autonomy.
// Either a whole preset or individual category levels; setting any single
// level flips the configuration to custom.
type AutonomyUpdateRequest struct {
	Preset string            `json:"preset,omitempty"`
	Levels map[string]string `json:"levels,omitempty"`
}

func (s *Server) handlePutAutonomy(c echo.Context) error {
	var req AutonomyUpdateRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid autonomy update", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Preset == "" && len(req.Levels) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "preset or levels is required")
	}

	ctx := c.Request().Context()
	uid := userID(c)

	cfg, err := s.store.GetAutonomyConfig(ctx, uid)
	if err != nil {
		if !errors.Is(err, knowledge.ErrNotFound) {
			s.logger.Error("loading autonomy config failed", zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "could not load autonomy config")
		}
		cfg = autonomy.NewConfig(uid, autonomy.PresetBalanced)
	}

	if req.Preset != "" {
		if err := cfg.ApplyPreset(autonomy.Preset(req.Preset)); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown preset")
		}
	}
	for cat, name := range req.Levels {
		if !autonomy.IsValidCategory(cat) {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown category "+cat)
		}
		level, err := autonomy.ParseLevel(name)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if err := cfg.SetLevel(autonomy.Category(cat), level); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}

	if err := s.store.PutAutonomyConfig(ctx, cfg); err != nil {
		s.logger.Error("saving autonomy config failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "could not save autonomy config")
	}

	return c.JSON(http.StatusOK, cfg)
}

func (s *Server) handleOpsStats(c echo.Context) error {
	stats, err := s.store.Stats(c.Request().Context())
	if err != nil {
		s.logger.Error("collecting stats failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "could not collect stats")
	}
	return c.JSON(http.StatusOK, stats)
}
