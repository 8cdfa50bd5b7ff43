package earnings

import (
	"context"
	"strings"
	"time"

	"fogsly/pkg/db/option"
	"fogsly/pkg/db/pagination"
	"fogsly/pkg/errutil"
	"fogsly/pkg/featureflags"
	applog "fogsly/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrDestinationRequired = errutil.New(errutil.StatusValidationFailed, "destination is required")
	ErrReasonRequired      = errutil.New(errutil.StatusValidationFailed, "reason is required when rejecting")
)

type WithdrawalParams struct {
	UserID      string          `json:"-"`
	Amount      decimal.Decimal `json:"amount"`
	Source      Bucket          `json:"source"`
	Destination string          `json:"destination"`
}

// RequestWithdrawal debits the ledger immediately and records a pending request.
func (s *Service) RequestWithdrawal(ctx context.Context, p WithdrawalParams) (*WithdrawalRequest, error) {
	log := applog.FromContext(ctx).With(zap.String("user_id", p.UserID))

	if err := validateAmount(p.Amount); err != nil {
		return nil, err
	}
	column, err := p.Source.Column()
	if err != nil {
		return nil, err
	}
	p.Destination = strings.TrimSpace(p.Destination)
	if p.Destination == "" {
		return nil, ErrDestinationRequired
	}

	cfg, err := s.settings.GetFogCoinSettings(ctx)
	if err != nil {
		return nil, err
	}
	if !cfg.IsWithdrawalsEnabled || !s.flagEnabled(ctx, featureflags.Withdrawals, p.UserID) {
		return nil, ErrWithdrawalsDisabled
	}
	if p.Amount.LessThan(cfg.MinimumWithdrawAmount) {
		return nil, ErrBelowMinimumWithdrawal
	}

	id := s.node.Generate().String()
	code, err := s.withdrawalCode(ctx, id)
	if err != nil {
		return nil, errutil.Internal("failed to generate withdrawal code", err)
	}

	req := &WithdrawalRequest{
		ID:          id,
		Code:        code,
		UserID:      p.UserID,
		Bucket:      p.Source,
		Amount:      p.Amount,
		Destination: p.Destination,
		Status:      WithdrawalPending,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.lockLedger(ctx, tx, p.UserID); err != nil {
			return err
		}
		if err := debitLedger(ctx, tx, p.UserID, column, p.Amount, map[string]any{
			"withdrawn_amount": gorm.Expr("withdrawn_amount + ?", p.Amount),
		}); err != nil {
			return err
		}
		if err := s.withdrawal.WithTrx(tx).Create(ctx, req); err != nil {
			return err
		}
		_, err := s.appendEntry(ctx, tx, EntryParams{
			UserID:      p.UserID,
			Kind:        KindWithdrawal,
			Bucket:      p.Source,
			Direction:   DirectionDebit,
			Amount:      p.Amount,
			ReferenceID: "withdrawal:" + id,
			Description: "withdrawal " + code,
		})
		return err
	})
	if err != nil {
		log.Warn("withdrawal request failed", zap.Error(err))
		return nil, asDomainError(err, "failed to request withdrawal")
	}

	withdrawalsTotal.WithLabelValues(WithdrawalPending).Inc()
	log.Info("withdrawal requested", zap.String("withdrawal_id", id), zap.String("amount", p.Amount.String()))
	return req, nil
}

func (s *Service) withdrawalCode(ctx context.Context, id string) (string, error) {
	if s.codes == nil {
		return "WDR-" + id, nil
	}
	return s.codes.NextWithdrawalCode(ctx)
}

func (s *Service) flagEnabled(ctx context.Context, feature, userID string) bool {
	if s.flags == nil {
		return true
	}
	return s.flags.IsEnabled(ctx, feature, userID, true)
}

type ResolveWithdrawalParams struct {
	AdminID string `json:"-"`
	ID      string `json:"-"`
	Approve bool   `json:"approve"`
	Reason  string `json:"reason"`
}

// ResolveWithdrawal completes a pending request, or rejects it and reverses the debit.
func (s *Service) ResolveWithdrawal(ctx context.Context, p ResolveWithdrawalParams) (*WithdrawalRequest, error) {
	p.Reason = strings.TrimSpace(p.Reason)
	if !p.Approve && p.Reason == "" {
		return nil, ErrReasonRequired
	}

	status := WithdrawalCompleted
	if !p.Approve {
		status = WithdrawalRejected
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		res := tx.WithContext(ctx).Model(&WithdrawalRequest{}).
			Where("id = ? AND status = ?", p.ID, WithdrawalPending).
			Updates(map[string]any{
				"status":      status,
				"reviewer_id": p.AdminID,
				"reason":      p.Reason,
				"reviewed_at": now,
				"updated_at":  now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			existing, err := s.withdrawal.WithTrx(tx).FindOne(ctx, &WithdrawalRequest{ID: p.ID})
			if err != nil {
				return err
			}
			if existing == nil {
				return ErrWithdrawalNotFound
			}
			return ErrWithdrawalNotPending
		}

		if p.Approve {
			return nil
		}
		return s.reverseWithdrawal(ctx, tx, p.ID)
	})
	if err != nil {
		return nil, asDomainError(err, "failed to resolve withdrawal")
	}

	withdrawalsTotal.WithLabelValues(status).Inc()
	applog.FromContext(ctx).Info("withdrawal resolved",
		zap.String("withdrawal_id", p.ID), zap.String("status", status), zap.String("admin_id", p.AdminID))

	return s.withdrawal.FindOne(ctx, &WithdrawalRequest{ID: p.ID})
}

func (s *Service) reverseWithdrawal(ctx context.Context, tx *gorm.DB, id string) error {
	req, err := s.withdrawal.WithTrx(tx).FindOne(ctx, &WithdrawalRequest{ID: id})
	if err != nil {
		return err
	}
	column, err := req.Bucket.Column()
	if err != nil {
		return err
	}

	if _, err := s.lockLedger(ctx, tx, req.UserID); err != nil {
		return err
	}
	if err := tx.WithContext(ctx).Model(&UserEarning{}).Where("user_id = ?", req.UserID).Updates(map[string]any{
		"available_balance": gorm.Expr("available_balance + ?", req.Amount),
		column:              gorm.Expr(column+" + ?", req.Amount),
		"withdrawn_amount":  gorm.Expr("withdrawn_amount - ?", req.Amount),
		"version":           gorm.Expr("version + 1"),
		"updated_at":        time.Now().UTC(),
	}).Error; err != nil {
		return err
	}

	_, err = s.appendEntry(ctx, tx, EntryParams{
		UserID:      req.UserID,
		Kind:        KindReversal,
		Bucket:      req.Bucket,
		Direction:   DirectionCredit,
		Amount:      req.Amount,
		ReferenceID: "withdrawal-reversal:" + id,
		Description: "withdrawal " + req.Code + " rejected",
	})
	return err
}

type WithdrawalFilter struct {
	UserID string `form:"-"`
	Status string `form:"status"`
	pagination.Pagination
}

func (s *Service) ListWithdrawals(ctx context.Context, f WithdrawalFilter) ([]*WithdrawalRequest, *pagination.PageInfo, error) {
	rows, err := s.withdrawal.Find(ctx, &WithdrawalRequest{UserID: f.UserID, Status: f.Status}, option.ApplyPagination(f.Pagination))
	if err != nil {
		return nil, nil, errutil.Internal("failed to list withdrawals", err)
	}

	out, info := pagination.BuildCursorPage(rows, f.Size(), func(w *WithdrawalRequest) string {
		return pagination.CursorOf(w.CreatedAt, w.ID)
	})
	return out, info, nil
}
