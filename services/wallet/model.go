package wallet

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	AddressPrefix = "FOG"
	addressLength = 16
)

var addressPattern = regexp.MustCompile(`^FOG[A-Z0-9]{12,20}$`)

// ValidateAddress reports whether address has the shape of a FOG wallet address.
func ValidateAddress(address string) bool {
	return addressPattern.MatchString(address)
}

type UserWallet struct {
	ID        string         `gorm:"column:id;primaryKey" json:"id"`
	UserID    string         `gorm:"column:user_id;uniqueIndex;not null" json:"user_id"`
	Address   string         `gorm:"column:address;uniqueIndex;not null" json:"address"`
	QRPayload datatypes.JSON `gorm:"column:qr_payload" json:"qr_payload"`
	CreatedAt time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at" json:"updated_at"`
}

func (UserWallet) TableName() string { return "user_wallets" }

// QRPayload is encoded into the wallet sharing QR code.
type QRPayload struct {
	WalletAddress string `json:"walletAddress"`
	UserName      string `json:"userName"`
	UserEmail     string `json:"userEmail"`
	UserID        string `json:"userId"`
	Type          string `json:"type"`
	Version       string `json:"version"`
}

func NewQRPayload(address string, owner Owner) datatypes.JSON {
	b, _ := json.Marshal(QRPayload{
		WalletAddress: address,
		UserName:      owner.Name,
		UserEmail:     owner.Email,
		UserID:        owner.UserID,
		Type:          "fogsly_wallet",
		Version:       "1.0",
	})
	return datatypes.JSON(b)
}

// WalletBalance holds spendable funds. AvailableBalance excludes amounts held by
// pending outgoing transfers; TotalBalance includes them.
type WalletBalance struct {
	ID               string          `gorm:"column:id;primaryKey" json:"id"`
	UserID           string          `gorm:"column:user_id;uniqueIndex;not null" json:"user_id"`
	Address          string          `gorm:"column:address;index" json:"address"`
	TotalBalance     decimal.Decimal `gorm:"column:total_balance;type:decimal(20,4);not null;default:0" json:"total_balance"`
	AvailableBalance decimal.Decimal `gorm:"column:available_balance;type:decimal(20,4);not null;default:0" json:"available_balance"`
	PendingOutgoing  decimal.Decimal `gorm:"column:pending_outgoing;type:decimal(20,4);not null;default:0" json:"pending_outgoing"`
	PendingIncoming  decimal.Decimal `gorm:"column:pending_incoming;type:decimal(20,4);not null;default:0" json:"pending_incoming"`
	Version          int64           `gorm:"column:version;not null;default:0" json:"version"`
	CreatedAt        time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (WalletBalance) TableName() string { return "wallet_balances" }

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

type WalletTransfer struct {
	ID               string          `gorm:"column:id;primaryKey" json:"id"`
	Code             string          `gorm:"column:code;uniqueIndex" json:"code"`
	SenderID         string          `gorm:"column:sender_id;not null;uniqueIndex:idx_transfer_idempotency,priority:1;index" json:"sender_id"`
	RecipientID      string          `gorm:"column:recipient_id;not null;index" json:"recipient_id"`
	SenderAddress    string          `gorm:"column:sender_address;not null" json:"sender_address"`
	RecipientAddress string          `gorm:"column:recipient_address;not null" json:"recipient_address"`
	Amount           decimal.Decimal `gorm:"column:amount;type:decimal(20,4);not null" json:"amount"`
	Note             string          `gorm:"column:note" json:"note,omitempty"`
	Status           string          `gorm:"column:status;not null;index" json:"status"`
	// Reserved is set once the amount is held on the sender's balance.
	Reserved        bool       `gorm:"column:reserved;not null" json:"-"`
	TransactionHash string     `gorm:"column:transaction_hash" json:"transaction_hash,omitempty"`
	FailureReason   string     `gorm:"column:failure_reason" json:"failure_reason,omitempty"`
	IdempotencyKey  string     `gorm:"column:idempotency_key;not null;uniqueIndex:idx_transfer_idempotency,priority:2" json:"idempotency_key"`
	CompletedAt     *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt       time.Time  `gorm:"column:created_at;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (WalletTransfer) TableName() string { return "wallet_transfers" }

// TransactionHashOf derives the public hash of a completed transfer.
func TransactionHashOf(t *WalletTransfer, completedAt time.Time) string {
	canonical := strings.Join([]string{
		t.ID,
		t.Code,
		t.SenderAddress,
		t.RecipientAddress,
		t.Amount.StringFixed(4),
		completedAt.UTC().Format(time.RFC3339Nano),
	}, "|")
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// Owner identifies the user a wallet is created for.
type Owner struct {
	UserID string
	Name   string
	Email  string
}
