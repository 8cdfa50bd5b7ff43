package settings

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"fogsly/pkg/db/option"
	"fogsly/pkg/db/pagination"
	"fogsly/pkg/errutil"
	applog "fogsly/pkg/logger"
	"fogsly/pkg/rediskey"
	"fogsly/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const cacheTTL = 5 * time.Minute

var (
	ErrReasonRequired = errutil.New(errutil.StatusValidationFailed, "reason is required")
	ErrInvalidRate    = errutil.New(errutil.StatusValidationFailed, "fog_to_usd_rate must be greater than zero")
	ErrNegativeLimit  = errutil.New(errutil.StatusValidationFailed, "limits must not be negative")
)

// Reader is what other services need from settings.
type Reader interface {
	GetFogCoinSettings(ctx context.Context) (*FogCoinSettings, error)
}

type Service struct {
	db    *gorm.DB
	node  *snowflake.Node
	redis *redis.Client
	group singleflight.Group

	current repository.Repository[FogCoinSettings]
	history repository.Repository[FogCoinSettingsHistory]
}

type ServiceParams struct {
	fx.In
	DB    *gorm.DB
	Node  *snowflake.Node
	Redis *redis.Client `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:    p.DB,
		node:  p.Node,
		redis: p.Redis,

		current: repository.ProvideStore[FogCoinSettings](p.DB),
		history: repository.ProvideStore[FogCoinSettingsHistory](p.DB),
	}
}

func (s *Service) GetFogCoinSettings(ctx context.Context) (*FogCoinSettings, error) {
	if cached := s.readCache(ctx); cached != nil {
		return cached, nil
	}

	v, err, _ := s.group.Do(CurrentID, func() (any, error) {
		current, err := s.loadOrInit(ctx)
		if err != nil {
			return nil, err
		}
		s.writeCache(ctx, current)
		return current, nil
	})
	if err != nil {
		return nil, err
	}

	out := *v.(*FogCoinSettings)
	return &out, nil
}

// loadOrInit reads the current row, persisting the defaults when it is absent.
func (s *Service) loadOrInit(ctx context.Context) (*FogCoinSettings, error) {
	current, err := s.current.FindOne(ctx, &FogCoinSettings{ID: CurrentID})
	if err != nil {
		return nil, errutil.Internal("failed to load fog coin settings", err)
	}
	if current != nil {
		return current, nil
	}

	defaults := Defaults()
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&defaults)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return tx.Create(defaults.snapshot(s.node.Generate().String(), defaults.UpdatedBy, "initial defaults")).Error
	}); err != nil {
		return nil, errutil.Internal("failed to persist default fog coin settings", err)
	}

	applog.FromContext(ctx).Info("fog coin settings initialised with defaults")

	current, err = s.current.FindOne(ctx, &FogCoinSettings{ID: CurrentID})
	if err != nil {
		return nil, errutil.Internal("failed to load fog coin settings", err)
	}
	return current, nil
}

func (s *Service) UpdateFogCoinSettings(ctx context.Context, p UpdateParams) (*FogCoinSettings, error) {
	p.Reason = strings.TrimSpace(p.Reason)
	if p.Reason == "" {
		return nil, ErrReasonRequired
	}

	if _, err := s.loadOrInit(ctx); err != nil {
		return nil, err
	}

	// the patch is applied to the row locked inside the write so concurrent partial
	// updates do not overwrite each other
	var next FogCoinSettings
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.current.WithTrx(tx).FindOne(ctx, &FogCoinSettings{ID: CurrentID}, option.WithLockingUpdate())
		if err != nil {
			return err
		}
		if current == nil {
			return errors.New("fog coin settings row missing")
		}

		next = p.apply(*current)
		if err := validate(next); err != nil {
			return err
		}

		if err := s.history.WithTrx(tx).Create(ctx, next.snapshot(s.node.Generate().String(), p.AdminID, p.Reason)); err != nil {
			return err
		}
		return s.current.WithTrx(tx).Update(ctx, CurrentID, map[string]any{
			"fog_to_usd_rate":         next.FogToUsdRate,
			"minimum_withdraw_amount": next.MinimumWithdrawAmount,
			"maximum_daily_earnings":  next.MaximumDailyEarnings,
			"is_withdrawals_enabled":  next.IsWithdrawalsEnabled,
			"updated_by":              next.UpdatedBy,
			"updated_at":              time.Now().UTC(),
		})
	})
	if err != nil {
		var be errutil.BaseError
		if errors.As(err, &be) {
			return nil, err
		}
		return nil, errutil.Internal("failed to update fog coin settings", err)
	}

	s.invalidateCache(ctx)

	applog.FromContext(ctx).Info("fog coin settings updated",
		zap.String("admin_id", p.AdminID),
		zap.String("reason", p.Reason),
		zap.String("fog_to_usd_rate", next.FogToUsdRate.String()))

	return s.loadOrInit(ctx)
}

// apply returns current with the fields set in p replaced.
func (p UpdateParams) apply(current FogCoinSettings) FogCoinSettings {
	next := current
	if p.FogToUsdRate != nil {
		next.FogToUsdRate = *p.FogToUsdRate
	}
	if p.MinimumWithdrawAmount != nil {
		next.MinimumWithdrawAmount = *p.MinimumWithdrawAmount
	}
	if p.MaximumDailyEarnings != nil {
		next.MaximumDailyEarnings = *p.MaximumDailyEarnings
	}
	if p.IsWithdrawalsEnabled != nil {
		next.IsWithdrawalsEnabled = *p.IsWithdrawalsEnabled
	}
	next.UpdatedBy = p.AdminID
	return next
}

func validate(v FogCoinSettings) error {
	if !v.FogToUsdRate.IsPositive() {
		return ErrInvalidRate
	}
	if v.MinimumWithdrawAmount.IsNegative() || v.MaximumDailyEarnings.IsNegative() {
		return ErrNegativeLimit
	}
	return nil
}

func (s *Service) ListHistory(ctx context.Context, page pagination.Pagination) ([]*FogCoinSettingsHistory, *pagination.PageInfo, error) {
	rows, err := s.history.Find(ctx, nil, option.ApplyPagination(page))
	if err != nil {
		return nil, nil, errutil.Internal("failed to list settings history", err)
	}

	out, info := pagination.BuildCursorPage(rows, page.Size(), func(h *FogCoinSettingsHistory) string {
		return pagination.CursorOf(h.CreatedAt, h.ID)
	})
	return out, info, nil
}

func (s *Service) readCache(ctx context.Context) *FogCoinSettings {
	if s.redis == nil {
		return nil
	}

	raw, err := s.redis.Get(ctx, rediskey.BuildFogCoinSettingsKey()).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zap.L().Warn("failed to read settings cache", zap.Error(err))
		}
		return nil
	}

	var out FogCoinSettings
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return &out
}

func (s *Service) writeCache(ctx context.Context, v *FogCoinSettings) {
	if s.redis == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, rediskey.BuildFogCoinSettingsKey(), b, cacheTTL).Err(); err != nil {
		zap.L().Warn("failed to write settings cache", zap.Error(err))
	}
}

func (s *Service) invalidateCache(ctx context.Context) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, rediskey.BuildFogCoinSettingsKey()).Err(); err != nil {
		zap.L().Warn("failed to invalidate settings cache", zap.Error(err))
	}
}
