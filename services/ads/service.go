package ads

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"fogsly/pkg/db/option"
	"fogsly/pkg/db/pagination"
	"fogsly/pkg/errutil"
	"fogsly/pkg/featureflags"
	applog "fogsly/pkg/logger"
	"fogsly/pkg/minio"
	"fogsly/pkg/repository"
	"fogsly/pkg/task"
	"fogsly/pkg/taskname"
	"fogsly/pkg/util"
	"fogsly/services/earnings"
	"fogsly/services/settings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const dayLayout = "2006-01-02"

type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	earnings *earnings.Service
	settings settings.Reader
	enqueuer task.Enqueuer
	storage  minio.Storage
	flags    featureflags.FeatureFlag
	now      func() time.Time

	ad          repository.Repository[Ad]
	interaction repository.Repository[UserAdInteraction]
	stats       repository.Repository[UserAdStats]
	daily       repository.Repository[UserDailyActivity]
}

type ServiceParams struct {
	fx.In
	DB       *gorm.DB
	Node     *snowflake.Node
	Earnings *earnings.Service
	Settings settings.Reader
	Enqueuer task.Enqueuer            `optional:"true"`
	Storage  minio.Storage            `optional:"true"`
	Flags    featureflags.FeatureFlag `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	enqueuer := p.Enqueuer
	if enqueuer == nil {
		enqueuer = task.NopEnqueuer{}
	}

	return &Service{
		db:       p.DB,
		node:     p.Node,
		earnings: p.Earnings,
		settings: p.Settings,
		enqueuer: enqueuer,
		storage:  p.Storage,
		flags:    p.Flags,
		now:      func() time.Time { return time.Now().UTC() },

		ad:          repository.ProvideStore[Ad](p.DB),
		interaction: repository.ProvideStore[UserAdInteraction](p.DB),
		stats:       repository.ProvideStore[UserAdStats](p.DB),
		daily:       repository.ProvideStore[UserDailyActivity](p.DB),
	}
}

type QuestionParams struct {
	Kind          string          `json:"kind"`
	Prompt        string          `json:"prompt"`
	Options       []string        `json:"options"`
	CorrectAnswer string          `json:"correct_answer"`
	RewardShare   decimal.Decimal `json:"reward_share"`
}

type CreateAdParams struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	VideoURL    string           `json:"video_url"`
	PreviewURL  string           `json:"preview_url"`
	TotalReward decimal.Decimal  `json:"total_reward"`
	IsActive    bool             `json:"is_active"`
	StartsAt    *time.Time       `json:"starts_at"`
	EndsAt      *time.Time       `json:"ends_at"`
	Questions   []QuestionParams `json:"questions"`
	CreatedBy   string           `json:"-"`
}

func validateAd(p CreateAdParams) error {
	invalid := func(msg string) error {
		return errutil.ValidationFailed(msg, ErrInvalidAd)
	}

	if strings.TrimSpace(p.Title) == "" {
		return invalid("title is required")
	}
	if !p.TotalReward.IsPositive() || !p.TotalReward.Equal(p.TotalReward.Round(4)) {
		return invalid("total reward must be positive with at most 4 decimals")
	}
	if p.StartsAt != nil && p.EndsAt != nil && !p.EndsAt.After(*p.StartsAt) {
		return invalid("ends_at must be after starts_at")
	}
	if len(p.Questions) == 0 {
		return invalid("at least one question is required")
	}

	var mc, feedback int
	sum := decimal.Zero
	for _, q := range p.Questions {
		if strings.TrimSpace(q.Prompt) == "" {
			return invalid("question prompt is required")
		}
		if !q.RewardShare.IsPositive() {
			return invalid("question reward share must be positive")
		}
		sum = sum.Add(q.RewardShare)

		switch q.Kind {
		case KindMultipleChoice:
			mc++
			if len(q.Options) < 2 {
				return invalid("multiple choice questions need at least two options")
			}
			found := false
			for _, o := range q.Options {
				if strings.TrimSpace(o) == strings.TrimSpace(q.CorrectAnswer) {
					found = true
					break
				}
			}
			if !found {
				return invalid("correct answer must be one of the options")
			}
		case KindFeedback:
			feedback++
		default:
			return invalid("unknown question kind " + q.Kind)
		}
	}

	if mc > maxMultipleChoice || feedback > maxFeedback {
		return invalid("an ad has at most 3 multiple choice and 1 feedback question")
	}
	if !sum.Equal(p.TotalReward) {
		return invalid("reward shares must add up to the total reward")
	}
	return nil
}

func (s *Service) CreateAd(ctx context.Context, p CreateAdParams) (*Ad, error) {
	if err := validateAd(p); err != nil {
		return nil, err
	}

	id := s.node.Generate().String()
	ad := &Ad{
		ID:          id,
		Title:       strings.TrimSpace(p.Title),
		Slug:        slug.Make(p.Title) + "-" + id,
		Description: p.Description,
		VideoURL:    p.VideoURL,
		PreviewURL:  p.PreviewURL,
		TotalReward: p.TotalReward,
		IsActive:    p.IsActive,
		StartsAt:    p.StartsAt,
		EndsAt:      p.EndsAt,
		CreatedBy:   p.CreatedBy,
	}
	for i, q := range p.Questions {
		ad.Questions = append(ad.Questions, AdQuestion{
			ID:            s.node.Generate().String(),
			AdID:          id,
			Position:      i + 1,
			Kind:          q.Kind,
			Prompt:        strings.TrimSpace(q.Prompt),
			Options:       q.Options,
			CorrectAnswer: strings.TrimSpace(q.CorrectAnswer),
			RewardShare:   q.RewardShare,
		})
	}

	// questions are saved through the association
	if err := s.ad.Create(ctx, ad); err != nil {
		applog.FromContext(ctx).Error("failed to create ad", zap.Error(err))
		return nil, errutil.Internal("failed to create ad", err)
	}

	applog.FromContext(ctx).Info("ad created", zap.String("ad_id", id), zap.String("created_by", p.CreatedBy))
	return ad, nil
}

type UpdateAdParams struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
}

// UpdateAd changes the presentation and schedule of an ad. Questions and rewards are
// fixed once created so earlier completions stay comparable.
func (s *Service) UpdateAd(ctx context.Context, id string, p UpdateAdParams) (*Ad, error) {
	ad, err := s.loadAd(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{"updated_at": s.now()}
	if p.Title != nil {
		if strings.TrimSpace(*p.Title) == "" {
			return nil, errutil.ValidationFailed("title is required", ErrInvalidAd)
		}
		updates["title"] = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		updates["description"] = *p.Description
	}
	startsAt, endsAt := ad.StartsAt, ad.EndsAt
	if p.StartsAt != nil {
		startsAt = p.StartsAt
		updates["starts_at"] = p.StartsAt
	}
	if p.EndsAt != nil {
		endsAt = p.EndsAt
		updates["ends_at"] = p.EndsAt
	}
	if startsAt != nil && endsAt != nil && !endsAt.After(*startsAt) {
		return nil, errutil.ValidationFailed("ends_at must be after starts_at", ErrInvalidAd)
	}

	if err := s.ad.Update(ctx, id, updates); err != nil {
		return nil, errutil.Internal("failed to update ad", err)
	}
	return s.loadAd(ctx, id)
}

func (s *Service) SetActive(ctx context.Context, id string, active bool) (*Ad, error) {
	if _, err := s.loadAd(ctx, id); err != nil {
		return nil, err
	}
	if err := s.ad.Update(ctx, id, map[string]any{"is_active": active, "updated_at": s.now()}); err != nil {
		return nil, errutil.Internal("failed to update ad", err)
	}
	applog.FromContext(ctx).Info("ad activation changed", zap.String("ad_id", id), zap.Bool("active", active))
	return s.loadAd(ctx, id)
}

type MediaParams struct {
	AdID        string
	Kind        string
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// UploadMedia stores the video or preview image of an ad and records its URL.
func (s *Service) UploadMedia(ctx context.Context, p MediaParams) (*Ad, error) {
	var column string
	switch p.Kind {
	case "video":
		column = "video_url"
	case "preview":
		column = "preview_url"
	default:
		return nil, ErrInvalidMediaKind
	}
	if s.storage == nil {
		return nil, errutil.NotImplemented("media storage is not configured", nil)
	}
	if _, err := s.loadAd(ctx, p.AdID); err != nil {
		return nil, err
	}

	objectPath := util.ObjectPath("ads/"+p.Kind, p.AdID, p.Filename, s.node.Generate().String())
	url, err := s.storage.Upload(ctx, objectPath, p.Body, p.Size, p.ContentType)
	if err != nil {
		return nil, errutil.BadGateway("failed to upload media", err)
	}

	if err := s.ad.Update(ctx, p.AdID, map[string]any{column: url, "updated_at": s.now()}); err != nil {
		_ = s.storage.Remove(ctx, objectPath)
		return nil, errutil.Internal("failed to save media url", err)
	}
	return s.loadAd(ctx, p.AdID)
}

type AdFilter struct {
	ActiveOnly bool `form:"-"`
	pagination.Pagination
}

func (s *Service) ListAds(ctx context.Context, f AdFilter, includeAnswers bool) ([]*Ad, *pagination.PageInfo, error) {
	opts := []option.QueryOption{
		option.ApplyPagination(f.Pagination),
		func(db *gorm.DB) *gorm.DB {
			return db.Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") })
		},
	}
	if f.ActiveOnly {
		now := s.now()
		opts = append(opts,
			option.ApplyOperator(option.Condition{Field: "is_active", Value: true}),
			func(db *gorm.DB) *gorm.DB {
				return db.Where("(starts_at IS NULL OR starts_at <= ?) AND (ends_at IS NULL OR ends_at > ?)", now, now)
			},
		)
	}

	rows, err := s.ad.Find(ctx, nil, opts...)
	if err != nil {
		return nil, nil, errutil.Internal("failed to list ads", err)
	}

	out, info := pagination.BuildCursorPage(rows, f.Size(), func(a *Ad) string {
		return pagination.CursorOf(a.CreatedAt, a.ID)
	})
	if !includeAnswers {
		for _, a := range out {
			hideAnswers(a)
		}
	}
	return out, info, nil
}

// GetAd returns an ad with its questions. Correct answers are only included for admins.
func (s *Service) GetAd(ctx context.Context, id string, includeAnswers bool) (*Ad, error) {
	ad, err := s.loadAd(ctx, id)
	if err != nil {
		return nil, err
	}
	if !includeAnswers {
		hideAnswers(ad)
	}
	return ad, nil
}

func hideAnswers(a *Ad) {
	for i := range a.Questions {
		a.Questions[i].CorrectAnswer = ""
	}
}

func (s *Service) loadAd(ctx context.Context, id string) (*Ad, error) {
	ad, err := s.ad.FindOne(ctx, &Ad{ID: id}, func(db *gorm.DB) *gorm.DB {
		return db.Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") })
	})
	if err != nil {
		return nil, errutil.Internal("failed to load ad", err)
	}
	if ad == nil {
		return nil, ErrAdNotFound
	}
	return ad, nil
}

type WatchParams struct {
	UserID  string   `json:"-"`
	AdID    string   `json:"-"`
	Answers []Answer `json:"answers"`
}

// WatchAd records the user's single completion of an ad and credits the ads bucket for
// the correct answers, clipped to what is left of today's earnings cap.
func (s *Service) WatchAd(ctx context.Context, p WatchParams) (*UserAdInteraction, error) {
	log := applog.FromContext(ctx).With(zap.String("user_id", p.UserID), zap.String("ad_id", p.AdID))

	if s.flags != nil && !s.flags.IsEnabled(ctx, featureflags.AdRewards, p.UserID, true) {
		return nil, ErrAdRewardsPaused
	}

	ad, err := s.loadAd(ctx, p.AdID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !ad.Available(now) {
		return nil, ErrAdNotAvailable
	}

	done, err := s.interaction.FindOne(ctx, &UserAdInteraction{UserID: p.UserID, AdID: p.AdID})
	if err != nil {
		return nil, errutil.Internal("failed to load interaction", err)
	}
	if done != nil {
		return nil, ErrAdAlreadyCompleted
	}

	cfg, err := s.settings.GetFogCoinSettings(ctx)
	if err != nil {
		return nil, err
	}

	results, correct, reward := Score(ad.Questions, p.Answers)
	day := now.Format(dayLayout)

	interaction := &UserAdInteraction{
		ID:           s.node.Generate().String(),
		UserID:       p.UserID,
		AdID:         p.AdID,
		Answers:      results,
		CorrectCount: correct,
		IsCompleted:  true,
		CompletedAt:  &now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		activity, err := s.lockDaily(ctx, tx, p.UserID, day)
		if err != nil {
			return err
		}

		remaining := cfg.MaximumDailyEarnings.Sub(activity.Earned)
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}
		if reward.GreaterThan(remaining) {
			ClipRewards(results, reward, remaining)
			reward = remaining
			interaction.RewardCapped = true
		}
		interaction.TotalReward = reward

		res := tx.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(interaction)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAdAlreadyCompleted
		}

		if err := tx.WithContext(ctx).Model(&UserDailyActivity{}).Where("id = ?", activity.ID).Updates(map[string]any{
			"ads_watched": gorm.Expr("ads_watched + 1"),
			"earned":      gorm.Expr("earned + ?", reward),
			"updated_at":  now,
		}).Error; err != nil {
			return err
		}

		if !reward.IsPositive() {
			return nil
		}
		_, err = s.earnings.CreditWithTx(ctx, tx, earnings.CreditParams{
			UserID:      p.UserID,
			Bucket:      earnings.BucketAds,
			Amount:      reward,
			ReferenceID: "ad:" + p.AdID,
			Description: "ad reward: " + ad.Title,
			Metadata:    map[string]any{"ad_id": p.AdID, "correct": correct},
		})
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrAdAlreadyCompleted) {
			log.Error("failed to record ad completion", zap.Error(err))
		}
		return nil, asDomainError(err, "failed to record ad completion")
	}

	watchedTotal.WithLabelValues(capLabel(interaction.RewardCapped)).Inc()
	log.Info("ad completed",
		zap.Int("correct", correct),
		zap.String("reward", interaction.TotalReward.String()),
		zap.Bool("capped", interaction.RewardCapped))

	s.enqueueCompleted(ctx, AdCompletedPayload{UserID: p.UserID, AdID: p.AdID})
	return interaction, nil
}

// lockDaily returns today's activity row for the user, creating it first if needed.
func (s *Service) lockDaily(ctx context.Context, tx *gorm.DB, userID, day string) (*UserDailyActivity, error) {
	if err := tx.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&UserDailyActivity{
		ID:     s.node.Generate().String(),
		UserID: userID,
		Day:    day,
		Earned: decimal.Zero,
	}).Error; err != nil {
		return nil, err
	}

	activity, err := s.daily.WithTrx(tx).FindOne(ctx, &UserDailyActivity{UserID: userID, Day: day}, option.WithLockingUpdate())
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, errutil.Internal("daily activity missing", nil)
	}
	return activity, nil
}

func (s *Service) enqueueCompleted(ctx context.Context, payload AdCompletedPayload) {
	t, err := task.NewJSONTask(taskname.AdCompleted, payload)
	if err != nil {
		return
	}
	if _, err := s.enqueuer.Enqueue(context.WithoutCancel(ctx), t, asynq.Queue(taskname.QueueDefault), asynq.MaxRetry(5)); err != nil {
		applog.FromContext(ctx).Warn("failed to enqueue ad completed task", zap.String("user_id", payload.UserID), zap.Error(err))
	}
}

func (s *Service) GetInteraction(ctx context.Context, userID, adID string) (*UserAdInteraction, error) {
	out, err := s.interaction.FindOne(ctx, &UserAdInteraction{UserID: userID, AdID: adID})
	if err != nil {
		return nil, errutil.Internal("failed to load interaction", err)
	}
	if out == nil {
		return nil, ErrInteractionMissing
	}
	return out, nil
}

// GetDailyActivity returns today's counters; a day without activity reads as zero.
func (s *Service) GetDailyActivity(ctx context.Context, userID string) (*UserDailyActivity, error) {
	day := s.now().Format(dayLayout)
	out, err := s.daily.FindOne(ctx, &UserDailyActivity{UserID: userID, Day: day})
	if err != nil {
		return nil, errutil.Internal("failed to load daily activity", err)
	}
	if out == nil {
		out = &UserDailyActivity{UserID: userID, Day: day, Earned: decimal.Zero}
	}
	return out, nil
}

func (s *Service) GetStats(ctx context.Context, userID string) (*UserAdStats, error) {
	out, err := s.stats.FindOne(ctx, &UserAdStats{UserID: userID})
	if err != nil {
		return nil, errutil.Internal("failed to load ad stats", err)
	}
	if out == nil {
		out = &UserAdStats{UserID: userID, TotalEarned: decimal.Zero}
	}
	return out, nil
}

type statsRow struct {
	AdsWatched     int64
	CorrectAnswers int64
	TotalEarned    decimal.Decimal
}

// RefreshStats recomputes the user's aggregate from the interactions table.
func (s *Service) RefreshStats(ctx context.Context, userID string) (*UserAdStats, error) {
	var row statsRow
	if err := s.db.WithContext(ctx).Model(&UserAdInteraction{}).
		Select("COUNT(*) AS ads_watched, COALESCE(SUM(correct_count), 0) AS correct_answers, COALESCE(SUM(total_reward), 0) AS total_earned").
		Where("user_id = ?", userID).
		Scan(&row).Error; err != nil {
		return nil, errutil.Internal("failed to aggregate ad stats", err)
	}

	last, err := s.interaction.FindOne(ctx, &UserAdInteraction{UserID: userID},
		option.WithSortBy(option.QuerySortBy{SortBy: "created_at", OrderBy: "desc"}))
	if err != nil {
		return nil, errutil.Internal("failed to load last interaction", err)
	}

	stats := &UserAdStats{
		UserID:         userID,
		AdsWatched:     row.AdsWatched,
		CorrectAnswers: row.CorrectAnswers,
		TotalEarned:    row.TotalEarned,
		UpdatedAt:      s.now(),
	}
	if last != nil {
		stats.LastWatchedAt = last.CompletedAt
	}

	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"ads_watched", "correct_answers", "total_earned", "last_watched_at", "updated_at"}),
	}).Create(stats).Error; err != nil {
		return nil, errutil.Internal("failed to save ad stats", err)
	}
	return stats, nil
}

func capLabel(capped bool) string {
	if capped {
		return "capped"
	}
	return "full"
}

func asDomainError(err error, msg string) error {
	var be errutil.BaseError
	if errors.As(err, &be) {
		return err
	}
	return errutil.Internal(msg, err)
}
