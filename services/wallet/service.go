package wallet

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"fogsly/pkg/db/option"
	"fogsly/pkg/db/pagination"
	"fogsly/pkg/errutil"
	"fogsly/pkg/featureflags"
	applog "fogsly/pkg/logger"
	"fogsly/pkg/repository"
	"fogsly/pkg/sequence"
	"fogsly/pkg/util"
	"fogsly/services/earnings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxNoteLength = 280

type Service struct {
	db    *gorm.DB
	node  *snowflake.Node
	flags featureflags.FeatureFlag
	codes sequence.Generator

	wallet   repository.Repository[UserWallet]
	balance  repository.Repository[WalletBalance]
	transfer repository.Repository[WalletTransfer]
}

type ServiceParams struct {
	fx.In
	DB    *gorm.DB
	Node  *snowflake.Node
	Flags featureflags.FeatureFlag `optional:"true"`
	Codes sequence.Generator       `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:    p.DB,
		node:  p.Node,
		flags: p.Flags,
		codes: p.Codes,

		wallet:   repository.ProvideStore[UserWallet](p.DB),
		balance:  repository.ProvideStore[WalletBalance](p.DB),
		transfer: repository.ProvideStore[WalletTransfer](p.DB),
	}
}

// CreateWallet opens the wallet and an empty balance for owner inside tx.
func (s *Service) CreateWallet(ctx context.Context, tx *gorm.DB, owner Owner) (*UserWallet, error) {
	walletTx := s.wallet.WithTrx(tx)

	var address string
	for attempt := 0; attempt < 5; attempt++ {
		suffix, err := util.RandomUpperAlphaNum(addressLength)
		if err != nil {
			return nil, err
		}
		candidate := AddressPrefix + suffix

		taken, err := walletTx.FindOne(ctx, &UserWallet{Address: candidate})
		if err != nil {
			return nil, err
		}
		if taken == nil {
			address = candidate
			break
		}
	}
	if address == "" {
		return nil, errutil.Internal("failed to allocate a unique wallet address", nil)
	}

	w := &UserWallet{
		ID:        s.node.Generate().String(),
		UserID:    owner.UserID,
		Address:   address,
		QRPayload: NewQRPayload(address, owner),
	}
	if err := walletTx.Create(ctx, w); err != nil {
		return nil, err
	}

	if err := s.balance.WithTrx(tx).Create(ctx, &WalletBalance{
		ID:      s.node.Generate().String(),
		UserID:  owner.UserID,
		Address: address,
	}); err != nil {
		return nil, err
	}

	applog.FromContext(ctx).Info("wallet created", zap.String("user_id", owner.UserID), zap.String("wallet_address", address))
	return w, nil
}

func (s *Service) GetWallet(ctx context.Context, userID string) (*UserWallet, error) {
	w, err := s.wallet.FindOne(ctx, &UserWallet{UserID: userID})
	if err != nil {
		return nil, errutil.Internal("failed to load wallet", err)
	}
	if w == nil {
		return nil, ErrWalletNotFound
	}
	return w, nil
}

func (s *Service) GetWalletByAddress(ctx context.Context, address string) (*UserWallet, error) {
	if !ValidateAddress(address) {
		return nil, ErrInvalidAddress
	}
	w, err := s.wallet.FindOne(ctx, &UserWallet{Address: address})
	if err != nil {
		return nil, errutil.Internal("failed to load wallet", err)
	}
	if w == nil {
		return nil, ErrWalletNotFound
	}
	return w, nil
}

func (s *Service) GetBalance(ctx context.Context, userID string) (*WalletBalance, error) {
	b, err := s.balance.FindOne(ctx, &WalletBalance{UserID: userID})
	if err != nil {
		return nil, errutil.Internal("failed to load balance", err)
	}
	if b == nil {
		return nil, ErrWalletNotFound
	}
	return b, nil
}

// CreditWithTx adds spendable funds to userID's wallet inside tx.
func (s *Service) CreditWithTx(ctx context.Context, tx *gorm.DB, userID string, amount decimal.Decimal) error {
	res := tx.WithContext(ctx).Model(&WalletBalance{}).Where("user_id = ?", userID).Updates(map[string]any{
		"total_balance":     gorm.Expr("total_balance + ?", amount),
		"available_balance": gorm.Expr("available_balance + ?", amount),
		"version":           gorm.Expr("version + 1"),
		"updated_at":        time.Now().UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrWalletNotFound
	}
	return nil
}

type TransferParams struct {
	SenderID         string          `json:"-"`
	RecipientAddress string          `json:"recipient_address"`
	Amount           decimal.Decimal `json:"amount"`
	Note             string          `json:"note"`
	IdempotencyKey   string          `json:"idempotency_key"`
}

func (p *TransferParams) validate() error {
	if !p.Amount.IsPositive() || !p.Amount.Equal(p.Amount.Round(4)) {
		return ErrInvalidAmount
	}
	p.RecipientAddress = strings.ToUpper(strings.TrimSpace(p.RecipientAddress))
	if !ValidateAddress(p.RecipientAddress) {
		return ErrInvalidAddress
	}
	p.Note = strings.TrimSpace(p.Note)
	if utf8.RuneCountInString(p.Note) > maxNoteLength {
		return ErrNoteTooLong
	}
	return nil
}

// TransferFogCoins moves funds between two wallets. The transfer is recorded as
// pending first and always leaves this call completed or failed.
func (s *Service) TransferFogCoins(ctx context.Context, p TransferParams) (*WalletTransfer, error) {
	log := applog.FromContext(ctx).With(zap.String("user_id", p.SenderID))

	if err := p.validate(); err != nil {
		return nil, err
	}
	if s.flags != nil && !s.flags.IsEnabled(ctx, featureflags.P2PTransfers, p.SenderID, true) {
		return nil, ErrTransfersDisabled
	}

	sender, err := s.GetWallet(ctx, p.SenderID)
	if err != nil {
		return nil, err
	}
	recipient, err := s.wallet.FindOne(ctx, &UserWallet{Address: p.RecipientAddress})
	if err != nil {
		return nil, errutil.Internal("failed to load recipient wallet", err)
	}
	if recipient == nil {
		return nil, ErrRecipientNotFound
	}
	if recipient.UserID == sender.UserID {
		return nil, ErrSelfTransfer
	}

	if p.IdempotencyKey == "" {
		p.IdempotencyKey = uuid.NewString()
	}
	if existing, err := s.transfer.FindOne(ctx, &WalletTransfer{SenderID: p.SenderID, IdempotencyKey: p.IdempotencyKey}); err != nil {
		return nil, errutil.Internal("failed to check idempotency key", err)
	} else if existing != nil {
		log.Info("transfer replayed", zap.String("transfer_id", existing.ID))
		return replayTransfer(existing, p)
	}

	id := s.node.Generate().String()
	code, err := s.transferCode(ctx, id)
	if err != nil {
		return nil, errutil.Internal("failed to generate transfer code", err)
	}

	t := &WalletTransfer{
		ID:               id,
		Code:             code,
		SenderID:         sender.UserID,
		RecipientID:      recipient.UserID,
		SenderAddress:    sender.Address,
		RecipientAddress: recipient.Address,
		Amount:           p.Amount,
		Note:             p.Note,
		Status:           StatusPending,
		IdempotencyKey:   p.IdempotencyKey,
	}
	if err := s.transfer.Create(ctx, t); err != nil {
		// a concurrent replay of the same key won the insert
		if existing, findErr := s.transfer.FindOne(ctx, &WalletTransfer{SenderID: p.SenderID, IdempotencyKey: p.IdempotencyKey}); findErr == nil && existing != nil {
			return replayTransfer(existing, p)
		}
		return nil, errutil.Internal("failed to record transfer", err)
	}

	log = log.With(zap.String("transfer_id", t.ID))

	if err := s.hold(ctx, t); err != nil {
		s.fail(ctx, t.ID, err)
		log.Warn("transfer rejected", zap.Error(err))
		transfersTotal.WithLabelValues(StatusFailed).Inc()
		return nil, asDomainError(err, "failed to hold transfer amount")
	}
	if err := s.settle(ctx, t); err != nil {
		s.fail(ctx, t.ID, err)
		log.Error("transfer settlement failed", zap.Error(err))
		transfersTotal.WithLabelValues(StatusFailed).Inc()
		return nil, asDomainError(err, "failed to settle transfer")
	}

	transfersTotal.WithLabelValues(StatusCompleted).Inc()
	log.Info("transfer completed",
		zap.String("wallet_address", t.SenderAddress),
		zap.String("recipient_address", t.RecipientAddress),
		zap.String("amount", t.Amount.String()))

	return s.transfer.FindOne(ctx, &WalletTransfer{ID: t.ID})
}

// replayTransfer answers a repeated idempotency key with the stored outcome. A key
// reused for a different recipient or amount is a conflict.
func replayTransfer(existing *WalletTransfer, p TransferParams) (*WalletTransfer, error) {
	if existing.RecipientAddress != p.RecipientAddress || !existing.Amount.Equal(p.Amount) {
		return nil, ErrIdempotencyConflict
	}
	if existing.Status == StatusFailed {
		return nil, replayedFailure(existing.FailureReason)
	}
	return existing, nil
}

func replayedFailure(reason string) error {
	for _, sentinel := range []error{ErrInsufficientBalance, ErrTransferNotPending, ErrWalletNotFound} {
		if failureReason(sentinel) == reason {
			return sentinel
		}
	}
	return errutil.UnprocessableEntity(reason, nil)
}

func (s *Service) transferCode(ctx context.Context, id string) (string, error) {
	if s.codes == nil {
		return "TRF-" + id, nil
	}
	return s.codes.NextTransferCode(ctx)
}

// hold moves the amount from the sender's available balance to pending outgoing.
func (s *Service) hold(ctx context.Context, t *WalletTransfer) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&WalletTransfer{}).
			Where("id = ? AND status = ? AND reserved = ?", t.ID, StatusPending, false).
			Updates(map[string]any{"reserved": true, "updated_at": time.Now().UTC()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrTransferNotPending
		}

		now := time.Now().UTC()
		res = tx.Model(&WalletBalance{}).
			Where("user_id = ? AND available_balance >= ?", t.SenderID, t.Amount).
			Updates(map[string]any{
				"available_balance": gorm.Expr("available_balance - ?", t.Amount),
				"pending_outgoing":  gorm.Expr("pending_outgoing + ?", t.Amount),
				"version":           gorm.Expr("version + 1"),
				"updated_at":        now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInsufficientBalance
		}

		return tx.Model(&WalletBalance{}).Where("user_id = ?", t.RecipientID).Updates(map[string]any{
			"pending_incoming": gorm.Expr("pending_incoming + ?", t.Amount),
			"version":          gorm.Expr("version + 1"),
			"updated_at":       now,
		}).Error
	})
}

// settle completes a held transfer on both balances and both ledgers.
func (s *Service) settle(ctx context.Context, t *WalletTransfer) error {
	completedAt := time.Now().UTC()
	hash := TransactionHashOf(t, completedAt)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&WalletTransfer{}).
			Where("id = ? AND status = ? AND reserved = ?", t.ID, StatusPending, true).
			Updates(map[string]any{
				"status":           StatusCompleted,
				"transaction_hash": hash,
				"completed_at":     completedAt,
				"updated_at":       completedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrTransferNotPending
		}

		if err := tx.Model(&WalletBalance{}).Where("user_id = ?", t.SenderID).Updates(map[string]any{
			"total_balance":    gorm.Expr("total_balance - ?", t.Amount),
			"pending_outgoing": gorm.Expr("pending_outgoing - ?", t.Amount),
			"version":          gorm.Expr("version + 1"),
			"updated_at":       completedAt,
		}).Error; err != nil {
			return err
		}

		res = tx.Model(&WalletBalance{}).Where("user_id = ?", t.RecipientID).Updates(map[string]any{
			"total_balance":     gorm.Expr("total_balance + ?", t.Amount),
			"available_balance": gorm.Expr("available_balance + ?", t.Amount),
			"pending_incoming":  gorm.Expr("pending_incoming - ?", t.Amount),
			"version":           gorm.Expr("version + 1"),
			"updated_at":        completedAt,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRecipientNotFound
		}

		return earnings.ApplyTransferTotals(ctx, tx, t.SenderID, t.RecipientID, t.Amount)
	})
}

// fail closes a transfer that could not complete. It runs detached from ctx so the
// record does not stay pending when the caller has gone away.
func (s *Service) fail(ctx context.Context, id string, cause error) {
	ctx = context.WithoutCancel(ctx)
	if err := s.finish(ctx, id, StatusFailed, failureReason(cause)); err != nil && !errors.Is(err, ErrTransferNotPending) {
		applog.FromContext(ctx).Error("failed to mark transfer failed", zap.String("transfer_id", id), zap.Error(err))
	}
}

// finish moves a pending transfer to a terminal status and releases any hold.
func (s *Service) finish(ctx context.Context, id, status, reason string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := s.transfer.WithTrx(tx).FindOne(ctx, &WalletTransfer{ID: id}, option.WithLockingUpdate())
		if err != nil {
			return err
		}
		if t == nil {
			return ErrTransferNotFound
		}

		now := time.Now().UTC()
		res := tx.Model(&WalletTransfer{}).
			Where("id = ? AND status = ?", id, StatusPending).
			Updates(map[string]any{
				"status":         status,
				"failure_reason": reason,
				"updated_at":     now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrTransferNotPending
		}
		if !t.Reserved {
			return nil
		}

		if err := tx.Model(&WalletBalance{}).Where("user_id = ?", t.SenderID).Updates(map[string]any{
			"available_balance": gorm.Expr("available_balance + ?", t.Amount),
			"pending_outgoing":  gorm.Expr("pending_outgoing - ?", t.Amount),
			"version":           gorm.Expr("version + 1"),
			"updated_at":        now,
		}).Error; err != nil {
			return err
		}
		return tx.Model(&WalletBalance{}).Where("user_id = ?", t.RecipientID).Updates(map[string]any{
			"pending_incoming": gorm.Expr("pending_incoming - ?", t.Amount),
			"version":          gorm.Expr("version + 1"),
			"updated_at":       now,
		}).Error
	})
}

// CancelTransfer cancels a pending transfer owned by userID.
func (s *Service) CancelTransfer(ctx context.Context, userID, id string) (*WalletTransfer, error) {
	t, err := s.transfer.FindOne(ctx, &WalletTransfer{ID: id, SenderID: userID})
	if err != nil {
		return nil, errutil.Internal("failed to load transfer", err)
	}
	if t == nil {
		return nil, ErrTransferNotFound
	}

	if err := s.finish(ctx, id, StatusCancelled, "cancelled by sender"); err != nil {
		return nil, asDomainError(err, "failed to cancel transfer")
	}
	transfersTotal.WithLabelValues(StatusCancelled).Inc()
	applog.FromContext(ctx).Info("transfer cancelled", zap.String("user_id", userID), zap.String("transfer_id", id))

	return s.transfer.FindOne(ctx, &WalletTransfer{ID: id})
}

// SweepStalePending fails transfers left pending for longer than olderThan, which only
// happens when a process died between recording and settling a transfer.
func (s *Service) SweepStalePending(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	stale, err := s.transfer.Find(ctx, &WalletTransfer{Status: StatusPending},
		option.ApplyOperator(option.Condition{Field: "created_at", Operator: option.LT, Value: cutoff}),
		option.WithLimit(500),
	)
	if err != nil {
		return 0, errutil.Internal("failed to list stale transfers", err)
	}

	swept := 0
	for _, t := range stale {
		err := s.finish(ctx, t.ID, StatusFailed, "expired while pending")
		switch {
		case err == nil:
			swept++
		case errors.Is(err, ErrTransferNotPending):
		default:
			return swept, errutil.Internal("failed to expire transfer", err)
		}
	}

	if swept > 0 {
		transfersTotal.WithLabelValues(StatusFailed).Add(float64(swept))
		applog.FromContext(ctx).Warn("expired stale pending transfers", zap.Int("count", swept))
	}
	return swept, nil
}

// GetTransfer returns a transfer visible to userID as sender or recipient.
func (s *Service) GetTransfer(ctx context.Context, userID, id string) (*WalletTransfer, error) {
	t, err := s.transfer.FindOne(ctx, &WalletTransfer{ID: id})
	if err != nil {
		return nil, errutil.Internal("failed to load transfer", err)
	}
	if t == nil || (t.SenderID != userID && t.RecipientID != userID) {
		return nil, ErrTransferNotFound
	}
	return t, nil
}

const (
	DirectionAll      = "all"
	DirectionSent     = "sent"
	DirectionReceived = "received"
)

type TransferFilter struct {
	UserID    string `form:"-"`
	Direction string `form:"direction"`
	Status    string `form:"status"`
	pagination.Pagination
}

func (s *Service) ListTransfers(ctx context.Context, f TransferFilter) ([]*WalletTransfer, *pagination.PageInfo, error) {
	query := &WalletTransfer{Status: f.Status}
	opts := []option.QueryOption{option.ApplyPagination(f.Pagination)}

	switch f.Direction {
	case DirectionSent:
		query.SenderID = f.UserID
	case DirectionReceived:
		query.RecipientID = f.UserID
	default:
		userID := f.UserID
		opts = append(opts, func(db *gorm.DB) *gorm.DB {
			return db.Where("(sender_id = ? OR recipient_id = ?)", userID, userID)
		})
	}

	rows, err := s.transfer.Find(ctx, query, opts...)
	if err != nil {
		return nil, nil, errutil.Internal("failed to list transfers", err)
	}

	out, info := pagination.BuildCursorPage(rows, f.Size(), func(t *WalletTransfer) string {
		return pagination.CursorOf(t.CreatedAt, t.ID)
	})
	return out, info, nil
}

func failureReason(err error) string {
	var be errutil.BaseError
	if errors.As(err, &be) {
		return be.Message
	}
	return err.Error()
}

func asDomainError(err error, msg string) error {
	var be errutil.BaseError
	if errors.As(err, &be) {
		return err
	}
	return errutil.Internal(msg, err)
}
