package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusApproved   = "approved"
	StatusRejected   = "rejected"
)

// BankAccount is a company account users pay fiat into.
type BankAccount struct {
	ID            string    `gorm:"column:id;primaryKey" json:"id"`
	BankName      string    `gorm:"column:bank_name;not null" json:"bank_name"`
	AccountName   string    `gorm:"column:account_name;not null" json:"account_name"`
	AccountNumber string    `gorm:"column:account_number;not null" json:"account_number"`
	Currency      string    `gorm:"column:currency;not null" json:"currency"`
	Instructions  string    `gorm:"column:instructions" json:"instructions,omitempty"`
	IsActive      bool      `gorm:"column:is_active;not null;index" json:"is_active"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (BankAccount) TableName() string { return "bank_accounts" }

// PaymentRequest is a fiat purchase of FOG awaiting manual verification.
type PaymentRequest struct {
	ID              string          `gorm:"column:id;primaryKey" json:"id"`
	Code            string          `gorm:"column:code;uniqueIndex;not null" json:"code"`
	UserID          string          `gorm:"column:user_id;not null;index" json:"user_id"`
	BankAccountID   string          `gorm:"column:bank_account_id;not null" json:"bank_account_id"`
	FiatAmount      decimal.Decimal `gorm:"column:fiat_amount;type:decimal(20,4);not null" json:"fiat_amount"`
	Currency        string          `gorm:"column:currency;not null" json:"currency"`
	Rate            decimal.Decimal `gorm:"column:rate;type:decimal(20,4);not null" json:"rate"`
	FogAmount       decimal.Decimal `gorm:"column:fog_amount;type:decimal(20,4);not null" json:"fog_amount"`
	Status          string          `gorm:"column:status;not null;index" json:"status"`
	TransactionID   string          `gorm:"column:transaction_id" json:"transaction_id,omitempty"`
	ScreenshotURL   string          `gorm:"column:screenshot_url" json:"screenshot_url,omitempty"`
	ReviewerID      string          `gorm:"column:reviewer_id" json:"reviewer_id,omitempty"`
	RejectionReason string          `gorm:"column:rejection_reason" json:"rejection_reason,omitempty"`
	ReviewedAt      *time.Time      `gorm:"column:reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt       time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (PaymentRequest) TableName() string { return "payment_requests" }
