package earnings

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Bucket string

const (
	BucketAds      Bucket = "ads"
	BucketReferral Bucket = "referral"
	BucketDeposit  Bucket = "deposit"
)

// Column returns the UserEarning column holding the bucket's current amount.
func (b Bucket) Column() (string, error) {
	switch b {
	case BucketAds:
		return "ads_earnings", nil
	case BucketReferral:
		return "referral_earnings", nil
	case BucketDeposit:
		return "deposit_earnings", nil
	default:
		return "", ErrUnknownBucket
	}
}

const (
	DirectionCredit = "CREDIT"
	DirectionDebit  = "DEBIT"
)

// Entry kinds recorded in the journal besides plain bucket credits.
const (
	KindEarning        = "earning"
	KindWalletTransfer = "wallet_transfer"
	KindWithdrawal     = "withdrawal"
	KindReversal       = "withdrawal_reversal"
)

const genesisHash = "GENESIS"

// UserEarning is the per-user ledger snapshot. AvailableBalance always equals the sum
// of the three bucket columns; TotalAdsEarnings is lifetime and never decremented.
type UserEarning struct {
	ID               string          `gorm:"column:id;primaryKey" json:"id"`
	UserID           string          `gorm:"column:user_id;uniqueIndex;not null" json:"user_id"`
	TotalEarnings    decimal.Decimal `gorm:"column:total_earnings;type:decimal(20,4);not null;default:0" json:"total_earnings"`
	AvailableBalance decimal.Decimal `gorm:"column:available_balance;type:decimal(20,4);not null;default:0" json:"available_balance"`
	AdsEarnings      decimal.Decimal `gorm:"column:ads_earnings;type:decimal(20,4);not null;default:0" json:"ads_earnings"`
	TotalAdsEarnings decimal.Decimal `gorm:"column:total_ads_earnings;type:decimal(20,4);not null;default:0" json:"total_ads_earnings"`
	DepositEarnings  decimal.Decimal `gorm:"column:deposit_earnings;type:decimal(20,4);not null;default:0" json:"deposit_earnings"`
	ReferralEarnings decimal.Decimal `gorm:"column:referral_earnings;type:decimal(20,4);not null;default:0" json:"referral_earnings"`
	WalletAddress    string          `gorm:"column:wallet_address;index" json:"wallet_address"`
	TotalSent        decimal.Decimal `gorm:"column:total_sent;type:decimal(20,4);not null;default:0" json:"total_sent"`
	TotalReceived    decimal.Decimal `gorm:"column:total_received;type:decimal(20,4);not null;default:0" json:"total_received"`
	WithdrawnAmount  decimal.Decimal `gorm:"column:withdrawn_amount;type:decimal(20,4);not null;default:0" json:"withdrawn_amount"`
	Version          int64           `gorm:"column:version;not null;default:0" json:"version"`
	CreatedAt        time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (UserEarning) TableName() string { return "user_earnings" }

// EarningEntry is one append-only, hash-chained journal line per ledger mutation.
type EarningEntry struct {
	ID            string          `gorm:"column:id;primaryKey" json:"id"`
	UserID        string          `gorm:"column:user_id;not null;uniqueIndex:idx_earning_entry_reference,priority:1;index:idx_earning_entry_user_created,priority:1" json:"user_id"`
	Kind          string          `gorm:"column:kind;not null" json:"kind"`
	Bucket        Bucket          `gorm:"column:bucket;not null" json:"bucket"`
	Direction     string          `gorm:"column:direction;not null" json:"direction"`
	Amount        decimal.Decimal `gorm:"column:amount;type:decimal(20,4);not null" json:"amount"`
	TransactionID string          `gorm:"column:transaction_id;not null" json:"transaction_id"`
	ReferenceID   string          `gorm:"column:reference_id;not null;uniqueIndex:idx_earning_entry_reference,priority:2" json:"reference_id"`
	Description   string          `gorm:"column:description" json:"description"`
	PreviousHash  string          `gorm:"column:previous_hash" json:"previous_hash"`
	Hash          string          `gorm:"column:hash" json:"hash"`
	Metadata      datatypes.JSON  `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt     time.Time       `gorm:"column:created_at;index:idx_earning_entry_user_created,priority:2" json:"created_at"`
}

func (EarningEntry) TableName() string { return "earning_entries" }

type EntryParams struct {
	EntryID       string
	UserID        string
	Kind          string
	Bucket        Bucket
	Direction     string
	Amount        decimal.Decimal
	ReferenceID   string
	TransactionID string
	Description   string
	PreviousHash  string
	Metadata      datatypes.JSON
	CreatedAt     time.Time
}

// NewEarningEntry builds a sealed entry: CreatedAt is truncated to the millisecond so
// the hash survives a round trip through any supported database.
func NewEarningEntry(p EntryParams) *EarningEntry {
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	previous := p.PreviousHash
	if previous == "" {
		previous = genesisHash
	}

	e := &EarningEntry{
		ID:            p.EntryID,
		UserID:        p.UserID,
		Kind:          p.Kind,
		Bucket:        p.Bucket,
		Direction:     p.Direction,
		Amount:        p.Amount,
		TransactionID: p.TransactionID,
		ReferenceID:   p.ReferenceID,
		Description:   p.Description,
		PreviousHash:  previous,
		Metadata:      p.Metadata,
		CreatedAt:     createdAt.UTC().Truncate(time.Millisecond),
	}
	e.Hash = e.GenerateHash()
	return e
}

func (m *EarningEntry) HashFields() map[string]string {
	return map[string]string{
		"id":             m.ID,
		"user_id":        m.UserID,
		"kind":           m.Kind,
		"bucket":         string(m.Bucket),
		"direction":      m.Direction,
		"amount":         m.Amount.StringFixed(4),
		"transaction_id": m.TransactionID,
		"reference_id":   m.ReferenceID,
		"description":    m.Description,
		"created_at":     m.CreatedAt.UTC().Format(time.RFC3339Nano),
		"previous_hash":  m.PreviousHash,
		"metadata":       canonicalJSON(m.Metadata),
	}
}

// canonicalJSON re-encodes raw JSON with sorted object keys so the hash does not
// depend on how the database hands the column back.
func canonicalJSON(raw datatypes.JSON) string {
	if len(raw) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return string(raw)
	}
	return string(b)
}

func (m *EarningEntry) GenerateHash() string {
	fields := m.HashFields()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, fields[k]))
	}

	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(hash[:])
}

// WithdrawalRequest moves funds out of the ledger. The debit happens at request time;
// a rejection reverses it.
type WithdrawalRequest struct {
	ID          string          `gorm:"column:id;primaryKey" json:"id"`
	Code        string          `gorm:"column:code;uniqueIndex" json:"code"`
	UserID      string          `gorm:"column:user_id;not null;index" json:"user_id"`
	Bucket      Bucket          `gorm:"column:bucket;not null" json:"bucket"`
	Amount      decimal.Decimal `gorm:"column:amount;type:decimal(20,4);not null" json:"amount"`
	Destination string          `gorm:"column:destination;not null" json:"destination"`
	Status      string          `gorm:"column:status;not null;index" json:"status"`
	ReviewerID  string          `gorm:"column:reviewer_id" json:"reviewer_id,omitempty"`
	Reason      string          `gorm:"column:reason" json:"reason,omitempty"`
	ReviewedAt  *time.Time      `gorm:"column:reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt   time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (WithdrawalRequest) TableName() string { return "withdrawal_requests" }

const (
	WithdrawalPending   = "pending"
	WithdrawalCompleted = "completed"
	WithdrawalRejected  = "rejected"
)

// LeaderboardRow is one line of the earnings leaderboard.
type LeaderboardRow struct {
	UserID        string          `json:"user_id"`
	RankNo        int64           `json:"rank"`
	TotalEarnings decimal.Decimal `json:"total_earnings"`
}

func GenerateTransactionID() (string, error) {
	datePart := time.Now().UTC().Format("20060102")

	r := make([]byte, 4)
	if _, err := rand.Read(r); err != nil {
		return "", err
	}

	return fmt.Sprintf("%s-%s", datePart, strings.ToUpper(hex.EncodeToString(r))), nil
}
