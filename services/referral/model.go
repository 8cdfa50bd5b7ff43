package referral

import (
	"time"

	"github.com/shopspring/decimal"
)

// Referral links a user to whoever invited them. A user is referred at most once.
type Referral struct {
	ID             string          `gorm:"column:id;primaryKey" json:"id"`
	ReferrerID     string          `gorm:"column:referrer_id;not null;index" json:"referrer_id"`
	ReferredUserID string          `gorm:"column:referred_user_id;not null;uniqueIndex" json:"referred_user_id"`
	Code           string          `gorm:"column:code;not null" json:"code"`
	TotalRewarded  decimal.Decimal `gorm:"column:total_rewarded;type:decimal(20,4);not null;default:0" json:"total_rewarded"`
	CreatedAt      time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (Referral) TableName() string { return "referrals" }

// Reward is one commission paid for a referred user's approved deposit.
type Reward struct {
	ID             string          `gorm:"column:id;primaryKey" json:"id"`
	ReferralID     string          `gorm:"column:referral_id;not null;index" json:"referral_id"`
	ReferrerID     string          `gorm:"column:referrer_id;not null;index" json:"referrer_id"`
	ReferredUserID string          `gorm:"column:referred_user_id;not null" json:"referred_user_id"`
	PaymentID      string          `gorm:"column:payment_id;not null;uniqueIndex" json:"payment_id"`
	DepositAmount  decimal.Decimal `gorm:"column:deposit_amount;type:decimal(20,4);not null" json:"deposit_amount"`
	Amount         decimal.Decimal `gorm:"column:amount;type:decimal(20,4);not null" json:"amount"`
	CreatedAt      time.Time       `gorm:"column:created_at" json:"created_at"`
}

func (Reward) TableName() string { return "referral_rewards" }

// PayoutPayload is the body of the referral payout task enqueued on deposit approval.
type PayoutPayload struct {
	ReferredUserID string          `json:"referred_user_id"`
	PaymentID      string          `json:"payment_id"`
	DepositAmount  decimal.Decimal `json:"deposit_amount"`
}

type Summary struct {
	Referrals     int64           `json:"referrals"`
	TotalRewarded decimal.Decimal `json:"total_rewarded"`
}
