package agent

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/steward/internal/knowledge"
)

// ApproveTask executes a task the owner approved. The status transition
// is the claim: it happens before the tool runs, so concurrent approvals
// of the same task execute it at most once. If the tool then fails, the
// task is returned to pending_approval so the owner can retry.
func (s *Service) ApproveTask(ctx context.Context, userID, taskID string) (*knowledge.Task, string, error) {
	ctx, span := tracer.Start(ctx, "agent.ApproveTask")
	defer span.End()
	span.SetAttributes(attribute.String("task_id", taskID))

	task, err := s.store.TransitionTask(ctx, userID, taskID,
		knowledge.TaskStatusPendingApproval, knowledge.TaskStatusExecuted)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, "", err
	}

	tool, err := s.registry.Get(task.ToolName)
	if err != nil {
		s.revertClaim(ctx, userID, taskID)
		return nil, "", fmt.Errorf("approved task references unknown tool %q: %w", task.ToolName, err)
	}

	result, err := tool.Run(ctx, userID, task.ToolArgs)
	if err != nil {
		s.revertClaim(ctx, userID, taskID)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, "", fmt.Errorf("executing approved task: %w", err)
	}

	span.SetStatus(codes.Ok, "success")
	return task, result, nil
}

// revertClaim puts a claimed task back so approval can be retried.
func (s *Service) revertClaim(ctx context.Context, userID, taskID string) {
	if _, err := s.store.TransitionTask(ctx, userID, taskID,
		knowledge.TaskStatusExecuted, knowledge.TaskStatusPendingApproval); err != nil {
		s.logger.Error("reverting claimed task after failed execution",
			zap.String("task_id", taskID), zap.Error(err))
	}
}

// RejectTask marks a pending task rejected without executing it.
func (s *Service) RejectTask(ctx context.Context, userID, taskID string) (*knowledge.Task, error) {
	ctx, span := tracer.Start(ctx, "agent.RejectTask")
	defer span.End()
	span.SetAttributes(attribute.String("task_id", taskID))

	task, err := s.store.TransitionTask(ctx, userID, taskID,
		knowledge.TaskStatusPendingApproval, knowledge.TaskStatusRejected)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(codes.Ok, "success")
	return task, nil
}
