package ads

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	KindMultipleChoice = "multiple_choice"
	KindFeedback       = "feedback"

	maxMultipleChoice = 3
	maxFeedback       = 1
)

type Ad struct {
	ID          string          `gorm:"column:id;primaryKey" json:"id"`
	Title       string          `gorm:"column:title;not null" json:"title"`
	Slug        string          `gorm:"column:slug;uniqueIndex;not null" json:"slug"`
	Description string          `gorm:"column:description" json:"description"`
	VideoURL    string          `gorm:"column:video_url" json:"video_url"`
	PreviewURL  string          `gorm:"column:preview_url" json:"preview_url"`
	TotalReward decimal.Decimal `gorm:"column:total_reward;type:decimal(20,4);not null" json:"total_reward"`
	IsActive    bool            `gorm:"column:is_active;not null;index" json:"is_active"`
	StartsAt    *time.Time      `gorm:"column:starts_at" json:"starts_at,omitempty"`
	EndsAt      *time.Time      `gorm:"column:ends_at" json:"ends_at,omitempty"`
	CreatedBy   string          `gorm:"column:created_by" json:"created_by,omitempty"`
	Questions   []AdQuestion    `gorm:"foreignKey:AdID" json:"questions,omitempty"`
	CreatedAt   time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (Ad) TableName() string { return "ads" }

// Available reports whether the ad can be watched at now.
func (a *Ad) Available(now time.Time) bool {
	if !a.IsActive {
		return false
	}
	if a.StartsAt != nil && now.Before(*a.StartsAt) {
		return false
	}
	if a.EndsAt != nil && !now.Before(*a.EndsAt) {
		return false
	}
	return true
}

type AdQuestion struct {
	ID            string                      `gorm:"column:id;primaryKey" json:"id"`
	AdID          string                      `gorm:"column:ad_id;not null;index" json:"ad_id"`
	Position      int                         `gorm:"column:position;not null" json:"position"`
	Kind          string                      `gorm:"column:kind;not null" json:"kind"`
	Prompt        string                      `gorm:"column:prompt;not null" json:"prompt"`
	Options       datatypes.JSONSlice[string] `gorm:"column:options" json:"options,omitempty"`
	CorrectAnswer string                      `gorm:"column:correct_answer" json:"correct_answer,omitempty"`
	RewardShare   decimal.Decimal             `gorm:"column:reward_share;type:decimal(20,4);not null" json:"reward_share"`
}

func (AdQuestion) TableName() string { return "ad_questions" }

type AnswerResult struct {
	QuestionID string          `json:"question_id"`
	Answer     string          `json:"answer"`
	Correct    bool            `json:"correct"`
	Reward     decimal.Decimal `json:"reward"`
}

// UserAdInteraction is the single completion of one ad by one user.
type UserAdInteraction struct {
	ID           string                            `gorm:"column:id;primaryKey" json:"id"`
	UserID       string                            `gorm:"column:user_id;not null;uniqueIndex:idx_ad_interaction_user_ad,priority:1" json:"user_id"`
	AdID         string                            `gorm:"column:ad_id;not null;uniqueIndex:idx_ad_interaction_user_ad,priority:2" json:"ad_id"`
	Answers      datatypes.JSONSlice[AnswerResult] `gorm:"column:answers" json:"answers"`
	CorrectCount int                               `gorm:"column:correct_count;not null" json:"correct_count"`
	TotalReward  decimal.Decimal                   `gorm:"column:total_reward;type:decimal(20,4);not null" json:"total_reward"`
	RewardCapped bool                              `gorm:"column:reward_capped;not null" json:"reward_capped"`
	IsCompleted  bool                              `gorm:"column:is_completed;not null" json:"is_completed"`
	CompletedAt  *time.Time                        `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt    time.Time                         `gorm:"column:created_at;index" json:"created_at"`
}

func (UserAdInteraction) TableName() string { return "user_ad_interactions" }

type UserAdStats struct {
	UserID         string          `gorm:"column:user_id;primaryKey" json:"user_id"`
	AdsWatched     int64           `gorm:"column:ads_watched;not null" json:"ads_watched"`
	CorrectAnswers int64           `gorm:"column:correct_answers;not null" json:"correct_answers"`
	TotalEarned    decimal.Decimal `gorm:"column:total_earned;type:decimal(20,4);not null" json:"total_earned"`
	LastWatchedAt  *time.Time      `gorm:"column:last_watched_at" json:"last_watched_at,omitempty"`
	UpdatedAt      time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (UserAdStats) TableName() string { return "user_ad_stats" }

// UserDailyActivity backs the daily earnings cap. Day is the UTC date.
type UserDailyActivity struct {
	ID         string          `gorm:"column:id;primaryKey" json:"id"`
	UserID     string          `gorm:"column:user_id;not null;uniqueIndex:idx_daily_activity_user_day,priority:1" json:"user_id"`
	Day        string          `gorm:"column:day;not null;uniqueIndex:idx_daily_activity_user_day,priority:2" json:"day"`
	AdsWatched int             `gorm:"column:ads_watched;not null;default:0" json:"ads_watched"`
	Earned     decimal.Decimal `gorm:"column:earned;type:decimal(20,4);not null;default:0" json:"earned"`
	UpdatedAt  time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (UserDailyActivity) TableName() string { return "user_daily_activities" }

type AdCompletedPayload struct {
	UserID string `json:"user_id"`
	AdID   string `json:"ad_id"`
}
