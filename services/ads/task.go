package ads

import (
	"context"
	"encoding/json"
	"fmt"

	"fogsly/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type TaskHandler struct {
	svc *Service
}

func NewTaskHandler(svc *Service) *TaskHandler {
	return &TaskHandler{svc: svc}
}

// HandleAdCompletedTask refreshes the watcher's aggregate stats.
func (h *TaskHandler) HandleAdCompletedTask(ctx context.Context, t *asynq.Task) error {
	var payload AdCompletedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		zap.L().Error("invalid ad completed payload", zap.Error(err))
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.UserID == "" {
		return fmt.Errorf("missing user id: %w", asynq.SkipRetry)
	}

	_, err := h.svc.RefreshStats(ctx, payload.UserID)
	return err
}

func registerTaskHandlers(mux *asynq.ServeMux, h *TaskHandler) {
	mux.HandleFunc(taskname.AdCompleted, h.HandleAdCompletedTask)
}
