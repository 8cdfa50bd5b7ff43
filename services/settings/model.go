package settings

import (
	"time"

	"github.com/shopspring/decimal"
)

const CurrentID = "current"

// FogCoinSettings is the materialized "current" row. The history table is the
// system of record.
type FogCoinSettings struct {
	ID                    string          `gorm:"column:id;primaryKey" json:"id"`
	FogToUsdRate          decimal.Decimal `gorm:"column:fog_to_usd_rate;type:decimal(20,4);not null" json:"fog_to_usd_rate"`
	MinimumWithdrawAmount decimal.Decimal `gorm:"column:minimum_withdraw_amount;type:decimal(20,4);not null" json:"minimum_withdraw_amount"`
	MaximumDailyEarnings  decimal.Decimal `gorm:"column:maximum_daily_earnings;type:decimal(20,4);not null" json:"maximum_daily_earnings"`
	IsWithdrawalsEnabled  bool            `gorm:"column:is_withdrawals_enabled;not null" json:"is_withdrawals_enabled"`
	UpdatedBy             string          `gorm:"column:updated_by" json:"updated_by,omitempty"`
	CreatedAt             time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt             time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (FogCoinSettings) TableName() string { return "fog_coin_settings" }

type FogCoinSettingsHistory struct {
	ID                    string          `gorm:"column:id;primaryKey" json:"id"`
	FogToUsdRate          decimal.Decimal `gorm:"column:fog_to_usd_rate;type:decimal(20,4);not null" json:"fog_to_usd_rate"`
	MinimumWithdrawAmount decimal.Decimal `gorm:"column:minimum_withdraw_amount;type:decimal(20,4);not null" json:"minimum_withdraw_amount"`
	MaximumDailyEarnings  decimal.Decimal `gorm:"column:maximum_daily_earnings;type:decimal(20,4);not null" json:"maximum_daily_earnings"`
	IsWithdrawalsEnabled  bool            `gorm:"column:is_withdrawals_enabled;not null" json:"is_withdrawals_enabled"`
	AdminID               string          `gorm:"column:admin_id;not null" json:"admin_id"`
	Reason                string          `gorm:"column:reason;not null" json:"reason"`
	CreatedAt             time.Time       `gorm:"column:created_at;index" json:"created_at"`
}

func (FogCoinSettingsHistory) TableName() string { return "fog_coin_settings_history" }

// Defaults are persisted the first time settings are read.
func Defaults() FogCoinSettings {
	return FogCoinSettings{
		ID:                    CurrentID,
		FogToUsdRate:          decimal.RequireFromString("0.10"),
		MinimumWithdrawAmount: decimal.NewFromInt(50),
		MaximumDailyEarnings:  decimal.NewFromInt(100),
		IsWithdrawalsEnabled:  true,
		UpdatedBy:             "system",
	}
}

func (s FogCoinSettings) snapshot(id, adminID, reason string) *FogCoinSettingsHistory {
	return &FogCoinSettingsHistory{
		ID:                    id,
		FogToUsdRate:          s.FogToUsdRate,
		MinimumWithdrawAmount: s.MinimumWithdrawAmount,
		MaximumDailyEarnings:  s.MaximumDailyEarnings,
		IsWithdrawalsEnabled:  s.IsWithdrawalsEnabled,
		AdminID:               adminID,
		Reason:                reason,
	}
}

// UpdateParams is a partial update; nil fields keep their current value.
type UpdateParams struct {
	AdminID               string           `json:"-"`
	Reason                string           `json:"reason"`
	FogToUsdRate          *decimal.Decimal `json:"fog_to_usd_rate"`
	MinimumWithdrawAmount *decimal.Decimal `json:"minimum_withdraw_amount"`
	MaximumDailyEarnings  *decimal.Decimal `json:"maximum_daily_earnings"`
	IsWithdrawalsEnabled  *bool            `json:"is_withdrawals_enabled"`
}
