package ranking

import (
	"context"

	"fogsly/pkg/errutil"
	applog "fogsly/pkg/logger"
	"fogsly/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrRankNotFound = errutil.New(errutil.StatusNotFound, "rank not found")

type Service struct {
	db   *gorm.DB
	node *snowflake.Node

	counter repository.Repository[SystemCounter]
	ranking repository.Repository[UserRanking]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,

		counter: repository.ProvideStore[SystemCounter](p.DB),
		ranking: repository.ProvideStore[UserRanking](p.DB),
	}
}

// GetNextUserRank increments the global counter in its own transaction.
func (s *Service) GetNextUserRank(ctx context.Context) (int64, error) {
	var next int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		next, err = s.NextUserRankTx(ctx, tx)
		return err
	})
	if err != nil {
		return 0, errutil.Internal("failed to allocate user rank", err)
	}
	return next, nil
}

// NextUserRankTx increments the counter inside tx. The UPDATE holds the row lock
// until tx ends, so concurrent callers observe distinct consecutive values.
func (s *Service) NextUserRankTx(ctx context.Context, tx *gorm.DB) (int64, error) {
	if err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&SystemCounter{ID: UserRankingCounter}).Error; err != nil {
		return 0, err
	}

	res := tx.WithContext(ctx).Model(&SystemCounter{}).
		Where("id = ?", UserRankingCounter).
		Update("value", gorm.Expr("value + 1"))
	if res.Error != nil {
		return 0, res.Error
	}

	counter, err := s.counter.WithTrx(tx).FindOne(ctx, &SystemCounter{ID: UserRankingCounter})
	if err != nil {
		return 0, err
	}
	return counter.Value, nil
}

// AssignRank allocates the next rank to userID inside the caller's transaction.
func (s *Service) AssignRank(ctx context.Context, tx *gorm.DB, userID string) (*UserRanking, error) {
	next, err := s.NextUserRankTx(ctx, tx)
	if err != nil {
		return nil, err
	}

	rank := &UserRanking{
		ID:     s.node.Generate().String(),
		UserID: userID,
		RankNo: next,
	}
	if err := s.ranking.WithTrx(tx).Create(ctx, rank); err != nil {
		return nil, err
	}

	applog.FromContext(ctx).Info("rank assigned", zap.String("user_id", userID), zap.Int64("rank", next))
	return rank, nil
}

func (s *Service) GetUserRank(ctx context.Context, userID string) (*UserRanking, error) {
	rank, err := s.ranking.FindOne(ctx, &UserRanking{UserID: userID})
	if err != nil {
		return nil, errutil.Internal("failed to load rank", err)
	}
	if rank == nil {
		return nil, ErrRankNotFound
	}
	return rank, nil
}
