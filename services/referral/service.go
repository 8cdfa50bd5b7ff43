package referral

import (
	"context"
	"strings"
	"time"

	"fogsly/pkg/celengine"
	"fogsly/pkg/config"
	"fogsly/pkg/errutil"
	applog "fogsly/pkg/logger"
	"fogsly/pkg/repository"
	"fogsly/services/earnings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/cel-go/cel"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrSelfReferral      = errutil.New(errutil.StatusValidationFailed, "users cannot refer themselves")
	ErrInvalidExpression = errutil.New(errutil.StatusValidationFailed, "invalid referral reward expression")
)

// sample attributes; the expression environment is keyed by their names and types
func attributes(deposit, rewarded decimal.Decimal) map[string]any {
	return map[string]any{
		"deposit_amount": deposit.InexactFloat64(),
		"total_rewarded": rewarded.InexactFloat64(),
	}
}

type Service struct {
	db         *gorm.DB
	node       *snowflake.Node
	earnings   *earnings.Service
	env        *cel.Env
	expression string

	referral repository.Repository[Referral]
	reward   repository.Repository[Reward]
}

type ServiceParams struct {
	fx.In
	DB       *gorm.DB
	Node     *snowflake.Node
	Config   *config.Config
	Earnings *earnings.Service
}

func NewService(p ServiceParams) (*Service, error) {
	env, err := celengine.GetOrBuildEnv(attributes(decimal.Zero, decimal.Zero))
	if err != nil {
		return nil, err
	}

	expr := strings.TrimSpace(p.Config.Referral.RewardExpression)
	if err := celengine.ValidateExpression(env, expr); err != nil {
		return nil, errutil.Wrap(ErrInvalidExpression, err)
	}

	return &Service{
		db:         p.DB,
		node:       p.Node,
		earnings:   p.Earnings,
		env:        env,
		expression: expr,

		referral: repository.ProvideStore[Referral](p.DB),
		reward:   repository.ProvideStore[Reward](p.DB),
	}, nil
}

type RecordParams struct {
	ReferrerID     string
	Code           string
	ReferredUserID string
}

// Record links the new user to the referrer inside the signup transaction. A second
// link for the same user is ignored.
func (s *Service) Record(ctx context.Context, tx *gorm.DB, p RecordParams) error {
	if p.ReferrerID == p.ReferredUserID {
		return ErrSelfReferral
	}

	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "referred_user_id"}}, DoNothing: true}).
		Create(&Referral{
			ID:             s.node.Generate().String(),
			ReferrerID:     p.ReferrerID,
			ReferredUserID: p.ReferredUserID,
			Code:           p.Code,
			TotalRewarded:  decimal.Zero,
		}).Error
}

// Commission evaluates the reward expression for a deposit.
func (s *Service) Commission(deposit, totalRewarded decimal.Decimal) (decimal.Decimal, error) {
	v, err := celengine.EvaluateNumber(s.env, s.expression, attributes(deposit, totalRewarded))
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromFloat(v).Round(4), nil
}

// RewardDeposit pays the referrer of p.ReferredUserID a commission on an approved
// deposit. Each payment pays out at most once; users without a referrer get nothing.
func (s *Service) RewardDeposit(ctx context.Context, p PayoutPayload) (*Reward, error) {
	log := applog.FromContext(ctx).With(zap.String("referred_user_id", p.ReferredUserID), zap.String("payment_id", p.PaymentID))

	ref, err := s.referral.FindOne(ctx, &Referral{ReferredUserID: p.ReferredUserID})
	if err != nil {
		return nil, errutil.Internal("failed to load referral", err)
	}
	if ref == nil {
		return nil, nil
	}

	amount, err := s.Commission(p.DepositAmount, ref.TotalRewarded)
	if err != nil {
		log.Error("failed to evaluate referral reward", zap.Error(err))
		return nil, errutil.Wrap(ErrInvalidExpression, err)
	}
	if !amount.IsPositive() {
		log.Info("referral reward is zero, skipping")
		return nil, nil
	}

	reward := &Reward{
		ID:             s.node.Generate().String(),
		ReferralID:     ref.ID,
		ReferrerID:     ref.ReferrerID,
		ReferredUserID: p.ReferredUserID,
		PaymentID:      p.PaymentID,
		DepositAmount:  p.DepositAmount,
		Amount:         amount,
	}

	paid := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "payment_id"}}, DoNothing: true}).
			Create(reward)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		if _, err := s.earnings.CreditWithTx(ctx, tx, earnings.CreditParams{
			UserID:      ref.ReferrerID,
			Bucket:      earnings.BucketReferral,
			Amount:      amount,
			ReferenceID: "referral:" + p.PaymentID,
			Description: "referral commission",
			Metadata:    map[string]any{"referred_user_id": p.ReferredUserID},
		}); err != nil {
			return err
		}

		paid = true
		return tx.WithContext(ctx).Model(&Referral{}).Where("id = ?", ref.ID).Updates(map[string]any{
			"total_rewarded": gorm.Expr("total_rewarded + ?", amount),
			"updated_at":     time.Now().UTC(),
		}).Error
	})
	if err != nil {
		log.Error("failed to pay referral reward", zap.Error(err))
		return nil, errutil.Internal("failed to pay referral reward", err)
	}

	if !paid {
		log.Info("referral reward already paid")
		return s.reward.FindOne(ctx, &Reward{PaymentID: p.PaymentID})
	}

	log.Info("referral reward paid", zap.String("referrer_id", ref.ReferrerID), zap.String("amount", amount.String()))
	return reward, nil
}

func (s *Service) ListReferrals(ctx context.Context, referrerID string) ([]*Referral, error) {
	rows, err := s.referral.Find(ctx, &Referral{ReferrerID: referrerID})
	if err != nil {
		return nil, errutil.Internal("failed to list referrals", err)
	}
	return rows, nil
}

func (s *Service) GetSummary(ctx context.Context, referrerID string) (*Summary, error) {
	var row struct {
		Referrals     int64
		TotalRewarded decimal.Decimal
	}
	if err := s.db.WithContext(ctx).Model(&Referral{}).
		Select("COUNT(*) AS referrals, COALESCE(SUM(total_rewarded), 0) AS total_rewarded").
		Where("referrer_id = ?", referrerID).
		Scan(&row).Error; err != nil {
		return nil, errutil.Internal("failed to summarise referrals", err)
	}
	return &Summary{Referrals: row.Referrals, TotalRewarded: row.TotalRewarded}, nil
}
