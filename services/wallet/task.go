package wallet

import (
	"context"
	"time"

	"fogsly/pkg/config"
	"fogsly/pkg/task"
	"fogsly/pkg/taskname"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type TaskHandler struct {
	svc       *Service
	olderThan time.Duration
}

func NewTaskHandler(svc *Service, cfg *config.Config) *TaskHandler {
	return &TaskHandler{svc: svc, olderThan: cfg.Ledger.StalePendingAfter}
}

func (h *TaskHandler) HandleSweepPending(ctx context.Context, _ *asynq.Task) error {
	_, err := h.svc.SweepStalePending(ctx, h.olderThan)
	return err
}

func registerTaskHandlers(mux *asynq.ServeMux, h *TaskHandler) {
	mux.HandleFunc(taskname.WalletSweepPending, h.HandleSweepPending)
}

// Scheduler enqueues the stale pending sweep on the LEDGER.SWEEP_SCHEDULE cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	enqueuer task.Enqueuer
	spec     string
}

func NewScheduler(enqueuer task.Enqueuer, cfg *config.Config) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		enqueuer: enqueuer,
		spec:     cfg.Ledger.SweepSchedule,
	}
}

func (s *Scheduler) enqueueSweep() {
	t := asynq.NewTask(taskname.WalletSweepPending, nil)
	// one sweep in flight per interval
	_, err := s.enqueuer.Enqueue(context.Background(), t,
		asynq.Queue(taskname.QueueLow),
		asynq.Unique(time.Minute),
		asynq.MaxRetry(1),
	)
	if err != nil {
		zap.L().Warn("[Scheduler] failed to enqueue transfer sweep", zap.Error(err))
	}
}

func StartScheduler(lc fx.Lifecycle, s *Scheduler) error {
	if _, err := s.cron.AddFunc(s.spec, s.enqueueSweep); err != nil {
		return err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.cron.Start()
			zap.L().Info("[Scheduler] transfer sweep scheduled", zap.String("spec", s.spec))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			select {
			case <-s.cron.Stop().Done():
			case <-ctx.Done():
			}
			zap.L().Info("[Scheduler] stopped")
			return nil
		},
	})
	return nil
}
