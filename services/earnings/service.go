package earnings

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"fogsly/pkg/db/option"
	"fogsly/pkg/db/pagination"
	"fogsly/pkg/errutil"
	"fogsly/pkg/featureflags"
	applog "fogsly/pkg/logger"
	"fogsly/pkg/repository"
	"fogsly/pkg/sequence"
	"fogsly/services/settings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WalletCreditor moves funds into a user's spendable wallet balance inside the
// transaction that debits the ledger.
type WalletCreditor interface {
	CreditWithTx(ctx context.Context, tx *gorm.DB, userID string, amount decimal.Decimal) error
}

type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	settings settings.Reader
	flags    featureflags.FeatureFlag
	codes    sequence.Generator
	wallet   WalletCreditor

	earning    repository.Repository[UserEarning]
	entry      repository.Repository[EarningEntry]
	withdrawal repository.Repository[WithdrawalRequest]
}

type ServiceParams struct {
	fx.In
	DB       *gorm.DB
	Node     *snowflake.Node
	Settings settings.Reader
	Wallet   WalletCreditor
	Flags    featureflags.FeatureFlag `optional:"true"`
	Codes    sequence.Generator       `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		node:     p.Node,
		settings: p.Settings,
		flags:    p.Flags,
		codes:    p.Codes,
		wallet:   p.Wallet,

		earning:    repository.ProvideStore[UserEarning](p.DB),
		entry:      repository.ProvideStore[EarningEntry](p.DB),
		withdrawal: repository.ProvideStore[WithdrawalRequest](p.DB),
	}
}

type CreditParams struct {
	UserID      string
	Bucket      Bucket
	Amount      decimal.Decimal
	ReferenceID string
	Description string
	Metadata    map[string]any
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || !amount.Equal(amount.Round(4)) {
		return ErrInvalidAmount
	}
	return nil
}

// GetUserEarnings returns the ledger of userID, opening an empty one on first access.
func (s *Service) GetUserEarnings(ctx context.Context, userID string) (*UserEarning, error) {
	earning, err := s.earning.FindOne(ctx, &UserEarning{UserID: userID})
	if err != nil {
		return nil, errutil.Internal("failed to load earnings", err)
	}
	if earning != nil {
		return earning, nil
	}

	if err := s.OpenLedger(ctx, s.db, userID, ""); err != nil {
		return nil, errutil.Internal("failed to open earnings ledger", err)
	}

	earning, err = s.earning.FindOne(ctx, &UserEarning{UserID: userID})
	if err != nil {
		return nil, errutil.Internal("failed to load earnings", err)
	}
	return earning, nil
}

// OpenLedger inserts the ledger row when absent and links walletAddress when the row
// has none yet. Safe under concurrent first access.
func (s *Service) OpenLedger(ctx context.Context, tx *gorm.DB, userID, walletAddress string) error {
	if err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&UserEarning{
			ID:            s.node.Generate().String(),
			UserID:        userID,
			WalletAddress: walletAddress,
		}).Error; err != nil {
		return err
	}

	if walletAddress == "" {
		return nil
	}
	return tx.WithContext(ctx).Model(&UserEarning{}).
		Where("user_id = ? AND (wallet_address = '' OR wallet_address IS NULL)", userID).
		Update("wallet_address", walletAddress).Error
}

func (s *Service) AddAdsEarnings(ctx context.Context, userID string, amount decimal.Decimal, referenceID string) (*EarningEntry, error) {
	return s.Credit(ctx, CreditParams{UserID: userID, Bucket: BucketAds, Amount: amount, ReferenceID: referenceID, Description: "ad reward"})
}

func (s *Service) AddReferralEarnings(ctx context.Context, userID string, amount decimal.Decimal, referenceID string) (*EarningEntry, error) {
	return s.Credit(ctx, CreditParams{UserID: userID, Bucket: BucketReferral, Amount: amount, ReferenceID: referenceID, Description: "referral commission"})
}

func (s *Service) AddDepositEarnings(ctx context.Context, userID string, amount decimal.Decimal, referenceID string) (*EarningEntry, error) {
	return s.Credit(ctx, CreditParams{UserID: userID, Bucket: BucketDeposit, Amount: amount, ReferenceID: referenceID, Description: "deposit"})
}

// Credit applies p in its own transaction.
func (s *Service) Credit(ctx context.Context, p CreditParams) (*EarningEntry, error) {
	var entry *EarningEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = s.CreditWithTx(ctx, tx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// CreditWithTx credits a bucket inside the caller's transaction. A reference that was
// already applied for the user returns the original entry and credits nothing.
func (s *Service) CreditWithTx(ctx context.Context, tx *gorm.DB, p CreditParams) (*EarningEntry, error) {
	log := applog.FromContext(ctx).With(zap.String("user_id", p.UserID), zap.String("reference_id", p.ReferenceID))

	if err := validateAmount(p.Amount); err != nil {
		return nil, err
	}
	column, err := p.Bucket.Column()
	if err != nil {
		return nil, err
	}
	if p.ReferenceID == "" {
		return nil, ErrMissingReference
	}

	if err := s.OpenLedger(ctx, tx, p.UserID, ""); err != nil {
		return nil, errutil.Internal("failed to open earnings ledger", err)
	}
	if _, err := s.lockLedger(ctx, tx, p.UserID); err != nil {
		return nil, errutil.Internal("failed to lock earnings ledger", err)
	}

	existing, err := s.entry.WithTrx(tx).FindOne(ctx, &EarningEntry{UserID: p.UserID, ReferenceID: p.ReferenceID})
	if err != nil {
		return nil, errutil.Internal("failed to check reference", err)
	}
	if existing != nil {
		log.Info("reference already applied, skipping credit")
		return existing, nil
	}

	updates := map[string]any{
		column:              gorm.Expr(column+" + ?", p.Amount),
		"total_earnings":    gorm.Expr("total_earnings + ?", p.Amount),
		"available_balance": gorm.Expr("available_balance + ?", p.Amount),
		"version":           gorm.Expr("version + 1"),
		"updated_at":        time.Now().UTC(),
	}
	if p.Bucket == BucketAds {
		updates["total_ads_earnings"] = gorm.Expr("total_ads_earnings + ?", p.Amount)
	}

	if err := tx.WithContext(ctx).Model(&UserEarning{}).Where("user_id = ?", p.UserID).Updates(updates).Error; err != nil {
		log.Error("failed to credit earnings", zap.Error(err))
		return nil, errutil.Internal("failed to credit earnings", err)
	}

	entry, err := s.appendEntry(ctx, tx, EntryParams{
		UserID:      p.UserID,
		Kind:        KindEarning,
		Bucket:      p.Bucket,
		Direction:   DirectionCredit,
		Amount:      p.Amount,
		ReferenceID: p.ReferenceID,
		Description: p.Description,
		Metadata:    marshalMetadata(p.Metadata),
	})
	if err != nil {
		log.Error("failed to append earning entry", zap.Error(err))
		return nil, errutil.Internal("failed to record earning entry", err)
	}

	creditedTotal.WithLabelValues(string(p.Bucket)).Add(p.Amount.InexactFloat64())
	log.Info("earnings credited", zap.String("bucket", string(p.Bucket)), zap.String("amount", p.Amount.String()))
	return entry, nil
}

// Client references live under their own prefix so they never collide with
// server-issued credit references.
const walletTransferPrefix = "wallet-transfer:"

type TransferToWalletParams struct {
	UserID      string          `json:"-"`
	Amount      decimal.Decimal `json:"amount"`
	Source      Bucket          `json:"source"`
	ReferenceID string          `json:"reference_id"`
}

// TransferEarningsToWallet debits a bucket and credits the spendable wallet balance in
// one transaction.
func (s *Service) TransferEarningsToWallet(ctx context.Context, p TransferToWalletParams) (*EarningEntry, error) {
	log := applog.FromContext(ctx).With(zap.String("user_id", p.UserID))

	if err := validateAmount(p.Amount); err != nil {
		return nil, err
	}
	column, err := p.Source.Column()
	if err != nil {
		return nil, err
	}
	ref := p.ReferenceID
	if ref == "" {
		ref = s.node.Generate().String()
	}
	p.ReferenceID = walletTransferPrefix + ref

	var entry *EarningEntry
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.lockLedger(ctx, tx, p.UserID); err != nil {
			return err
		}

		existing, err := s.entry.WithTrx(tx).FindOne(ctx, &EarningEntry{UserID: p.UserID, ReferenceID: p.ReferenceID})
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.Kind != KindWalletTransfer || existing.Bucket != p.Source || !existing.Amount.Equal(p.Amount) {
				return ErrReferenceConflict
			}
			entry = existing
			return nil
		}

		if err := debitLedger(ctx, tx, p.UserID, column, p.Amount, nil); err != nil {
			return err
		}

		if err := s.wallet.CreditWithTx(ctx, tx, p.UserID, p.Amount); err != nil {
			return err
		}

		entry, err = s.appendEntry(ctx, tx, EntryParams{
			UserID:      p.UserID,
			Kind:        KindWalletTransfer,
			Bucket:      p.Source,
			Direction:   DirectionDebit,
			Amount:      p.Amount,
			ReferenceID: p.ReferenceID,
			Description: "transfer to wallet",
		})
		return err
	})
	if err != nil {
		log.Warn("transfer to wallet failed", zap.String("amount", p.Amount.String()), zap.Error(err))
		return nil, asDomainError(err, "failed to transfer earnings to wallet")
	}

	log.Info("earnings moved to wallet", zap.String("amount", p.Amount.String()), zap.String("source", string(p.Source)))
	return entry, nil
}

// debitLedger is the conditional debit shared by wallet transfers and withdrawals;
// extra carries additional column updates.
func debitLedger(ctx context.Context, tx *gorm.DB, userID, column string, amount decimal.Decimal, extra map[string]any) error {
	updates := map[string]any{
		"available_balance": gorm.Expr("available_balance - ?", amount),
		column:              gorm.Expr(column+" - ?", amount),
		"version":           gorm.Expr("version + 1"),
		"updated_at":        time.Now().UTC(),
	}
	for k, v := range extra {
		updates[k] = v
	}

	res := tx.WithContext(ctx).Model(&UserEarning{}).
		Where("user_id = ? AND available_balance >= ? AND "+column+" >= ?", userID, amount, amount).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

// ApplyTransferTotals records a wallet-to-wallet transfer on both ledgers inside the
// transfer's transaction.
func ApplyTransferTotals(ctx context.Context, tx *gorm.DB, senderID, recipientID string, amount decimal.Decimal) error {
	now := time.Now().UTC()
	if err := tx.WithContext(ctx).Model(&UserEarning{}).Where("user_id = ?", senderID).Updates(map[string]any{
		"total_sent": gorm.Expr("total_sent + ?", amount),
		"version":    gorm.Expr("version + 1"),
		"updated_at": now,
	}).Error; err != nil {
		return err
	}
	return tx.WithContext(ctx).Model(&UserEarning{}).Where("user_id = ?", recipientID).Updates(map[string]any{
		"total_received": gorm.Expr("total_received + ?", amount),
		"version":        gorm.Expr("version + 1"),
		"updated_at":     now,
	}).Error
}

// lockLedger takes the row lock that serialises journal appends for one user.
func (s *Service) lockLedger(ctx context.Context, tx *gorm.DB, userID string) (*UserEarning, error) {
	return s.earning.WithTrx(tx).FindOne(ctx, &UserEarning{UserID: userID}, option.WithLockingUpdate())
}

func (s *Service) appendEntry(ctx context.Context, tx *gorm.DB, p EntryParams) (*EarningEntry, error) {
	last, err := s.entry.WithTrx(tx).FindOne(ctx, &EarningEntry{UserID: p.UserID},
		option.WithSortBy(option.QuerySortBy{SortBy: "created_at", OrderBy: "desc"}),
		option.WithSortBy(option.QuerySortBy{SortBy: "id", OrderBy: "desc", Allow: map[string]bool{"id": true}}),
	)
	if err != nil {
		return nil, err
	}

	transactionID, err := GenerateTransactionID()
	if err != nil {
		return nil, err
	}

	p.EntryID = s.node.Generate().String()
	p.TransactionID = transactionID
	if last != nil {
		p.PreviousHash = last.Hash
		// keep the chain ordered when the clock does not move forward
		if now := time.Now().UTC().Truncate(time.Millisecond); !now.After(last.CreatedAt) {
			p.CreatedAt = last.CreatedAt.Add(time.Millisecond)
		}
	}

	entry := NewEarningEntry(p)
	if err := s.entry.WithTrx(tx).Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Service) ListEntries(ctx context.Context, userID string, page pagination.Pagination) ([]*EarningEntry, *pagination.PageInfo, error) {
	rows, err := s.entry.Find(ctx, &EarningEntry{UserID: userID}, option.ApplyPagination(page))
	if err != nil {
		return nil, nil, errutil.Internal("failed to list earning entries", err)
	}

	out, info := pagination.BuildCursorPage(rows, page.Size(), func(e *EarningEntry) string {
		return pagination.CursorOf(e.CreatedAt, e.ID)
	})
	return out, info, nil
}

// VerifyChain recomputes every hash of the user's journal and checks the links.
func (s *Service) VerifyChain(ctx context.Context, userID string) (bool, error) {
	entries, err := s.entry.Find(ctx, &EarningEntry{UserID: userID},
		option.WithSortBy(option.QuerySortBy{SortBy: "created_at", OrderBy: "asc"}),
		option.WithSortBy(option.QuerySortBy{SortBy: "id", OrderBy: "asc", Allow: map[string]bool{"id": true}}),
	)
	if err != nil {
		return false, errutil.Internal("failed to load earning entries", err)
	}

	previous := genesisHash
	for _, e := range entries {
		if e.PreviousHash != previous || e.GenerateHash() != e.Hash {
			applog.FromContext(ctx).Warn("earning chain broken",
				zap.String("user_id", userID), zap.String("entry_id", e.ID))
			return false, nil
		}
		previous = e.Hash
	}
	return true, nil
}

// Leaderboard lists the top earners with their signup rank.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]LeaderboardRow, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	var rows []LeaderboardRow
	err := s.db.WithContext(ctx).
		Table("user_earnings AS e").
		Select("e.user_id AS user_id, COALESCE(r.rank_no, 0) AS rank_no, e.total_earnings AS total_earnings").
		Joins("LEFT JOIN user_rankings r ON r.user_id = e.user_id").
		Order("e.total_earnings DESC").
		Order("r.rank_no ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, errutil.Internal("failed to load leaderboard", err)
	}
	return rows, nil
}

func marshalMetadata(m map[string]any) datatypes.JSON {
	if len(m) == 0 {
		return nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

// asDomainError keeps domain errors and wraps anything else as an internal error.
func asDomainError(err error, msg string) error {
	var be errutil.BaseError
	if errors.As(err, &be) {
		return err
	}
	return errutil.Internal(msg, err)
}
