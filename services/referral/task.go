package referral

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

func (h *TaskHandler) HandleReferralPayoutTask(ctx context.Context, t *asynq.Task) error {
	var payload PayoutPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		zap.L().Error("invalid referral payout payload", zap.Error(err))
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.ReferredUserID == "" || payload.PaymentID == "" {
		return fmt.Errorf("incomplete referral payout payload: %w", asynq.SkipRetry)
	}

	_, err := h.svc.RewardDeposit(ctx, payload)
	return err
}

func registerTaskHandlers(mux *asynq.ServeMux, h *TaskHandler) {
	mux.HandleFunc(taskname.ReferralPayout, h.HandleReferralPayoutTask)
}
