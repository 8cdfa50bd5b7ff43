package payment

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"fogsly/pkg/db/option"
	"fogsly/pkg/db/pagination"
	"fogsly/pkg/errutil"
	applog "fogsly/pkg/logger"
	"fogsly/pkg/minio"
	"fogsly/pkg/repository"
	"fogsly/pkg/sequence"
	"fogsly/pkg/task"
	"fogsly/pkg/taskname"
	"fogsly/pkg/util"
	"fogsly/services/earnings"
	"fogsly/services/referral"
	"fogsly/services/settings"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	earnings *earnings.Service
	settings settings.Reader
	codes    sequence.Generator
	enqueuer task.Enqueuer
	storage  minio.Storage

	account repository.Repository[BankAccount]
	request repository.Repository[PaymentRequest]
}

type ServiceParams struct {
	fx.In
	DB       *gorm.DB
	Node     *snowflake.Node
	Earnings *earnings.Service
	Settings settings.Reader
	Codes    sequence.Generator `optional:"true"`
	Enqueuer task.Enqueuer      `optional:"true"`
	Storage  minio.Storage      `optional:"true"`
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
		codes:    p.Codes,
		enqueuer: enqueuer,
		storage:  p.Storage,

		account: repository.ProvideStore[BankAccount](p.DB),
		request: repository.ProvideStore[PaymentRequest](p.DB),
	}
}

type BankAccountParams struct {
	BankName      string `json:"bank_name"`
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	Currency      string `json:"currency"`
	Instructions  string `json:"instructions"`
	IsActive      bool   `json:"is_active"`
}

func (s *Service) CreateBankAccount(ctx context.Context, p BankAccountParams) (*BankAccount, error) {
	acc := &BankAccount{
		ID:            s.node.Generate().String(),
		BankName:      strings.TrimSpace(p.BankName),
		AccountName:   strings.TrimSpace(p.AccountName),
		AccountNumber: strings.TrimSpace(p.AccountNumber),
		Currency:      strings.ToUpper(strings.TrimSpace(p.Currency)),
		Instructions:  p.Instructions,
		IsActive:      p.IsActive,
	}
	if acc.BankName == "" || acc.AccountName == "" || acc.AccountNumber == "" || acc.Currency == "" {
		return nil, ErrInvalidBankAccount
	}

	if err := s.account.Create(ctx, acc); err != nil {
		return nil, errutil.Internal("failed to create bank account", err)
	}
	return acc, nil
}

type BankAccountUpdate struct {
	BankName     *string `json:"bank_name"`
	AccountName  *string `json:"account_name"`
	Instructions *string `json:"instructions"`
	IsActive     *bool   `json:"is_active"`
}

func (s *Service) UpdateBankAccount(ctx context.Context, id string, p BankAccountUpdate) (*BankAccount, error) {
	if _, err := s.getBankAccount(ctx, id); err != nil {
		return nil, err
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if p.BankName != nil {
		if strings.TrimSpace(*p.BankName) == "" {
			return nil, ErrInvalidBankAccount
		}
		updates["bank_name"] = strings.TrimSpace(*p.BankName)
	}
	if p.AccountName != nil {
		if strings.TrimSpace(*p.AccountName) == "" {
			return nil, ErrInvalidBankAccount
		}
		updates["account_name"] = strings.TrimSpace(*p.AccountName)
	}
	if p.Instructions != nil {
		updates["instructions"] = *p.Instructions
	}
	if p.IsActive != nil {
		updates["is_active"] = *p.IsActive
	}

	if err := s.account.Update(ctx, id, updates); err != nil {
		return nil, errutil.Internal("failed to update bank account", err)
	}
	return s.getBankAccount(ctx, id)
}

func (s *Service) ListBankAccounts(ctx context.Context, activeOnly bool) ([]*BankAccount, error) {
	opts := []option.QueryOption{option.WithSortBy(option.QuerySortBy{SortBy: "bank_name", OrderBy: "asc"})}
	if activeOnly {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "is_active", Value: true}))
	}

	rows, err := s.account.Find(ctx, nil, opts...)
	if err != nil {
		return nil, errutil.Internal("failed to list bank accounts", err)
	}
	return rows, nil
}

func (s *Service) getBankAccount(ctx context.Context, id string) (*BankAccount, error) {
	acc, err := s.account.FindOne(ctx, &BankAccount{ID: id})
	if err != nil {
		return nil, errutil.Internal("failed to load bank account", err)
	}
	if acc == nil {
		return nil, ErrBankAccountNotFound
	}
	return acc, nil
}

type CreatePaymentParams struct {
	UserID        string          `json:"-"`
	BankAccountID string          `json:"bank_account_id"`
	FiatAmount    decimal.Decimal `json:"fiat_amount"`
	Currency      string          `json:"currency"`
}

// CreatePaymentRequest opens a pending purchase priced at the current FOG rate.
func (s *Service) CreatePaymentRequest(ctx context.Context, p CreatePaymentParams) (*PaymentRequest, error) {
	if !p.FiatAmount.IsPositive() || !p.FiatAmount.Equal(p.FiatAmount.Round(4)) {
		return nil, ErrInvalidAmount
	}

	acc, err := s.getBankAccount(ctx, p.BankAccountID)
	if err != nil {
		return nil, err
	}
	if !acc.IsActive {
		return nil, ErrBankAccountInactive
	}
	currency := strings.ToUpper(strings.TrimSpace(p.Currency))
	if currency == "" {
		currency = acc.Currency
	}
	if currency != acc.Currency {
		return nil, ErrCurrencyMismatch
	}

	cfg, err := s.settings.GetFogCoinSettings(ctx)
	if err != nil {
		return nil, err
	}
	if !cfg.FogToUsdRate.IsPositive() {
		return nil, errutil.Internal("fog coin rate is not configured", nil)
	}

	id := s.node.Generate().String()
	code, err := s.paymentCode(ctx, id)
	if err != nil {
		return nil, errutil.Internal("failed to generate payment code", err)
	}

	req := &PaymentRequest{
		ID:            id,
		Code:          code,
		UserID:        p.UserID,
		BankAccountID: acc.ID,
		FiatAmount:    p.FiatAmount,
		Currency:      currency,
		Rate:          cfg.FogToUsdRate,
		FogAmount:     p.FiatAmount.DivRound(cfg.FogToUsdRate, 4),
		Status:        StatusPending,
	}
	if err := s.request.Create(ctx, req); err != nil {
		return nil, errutil.Internal("failed to create payment request", err)
	}

	applog.FromContext(ctx).Info("payment request created",
		zap.String("payment_id", id),
		zap.String("user_id", p.UserID),
		zap.String("fog_amount", req.FogAmount.String()))
	return req, nil
}

func (s *Service) paymentCode(ctx context.Context, id string) (string, error) {
	if s.codes == nil {
		return "PAY-" + id, nil
	}
	return s.codes.NextPaymentCode(ctx)
}

type EvidenceParams struct {
	UserID        string
	ID            string
	TransactionID string
	Filename      string
	ContentType   string
	Size          int64
	Body          io.Reader
}

// AttachEvidence records the bank transaction id and optional screenshot on the
// owner's unresolved request.
func (s *Service) AttachEvidence(ctx context.Context, p EvidenceParams) (*PaymentRequest, error) {
	p.TransactionID = strings.TrimSpace(p.TransactionID)
	if p.TransactionID == "" {
		return nil, ErrTransactionIDRequired
	}

	req, err := s.GetPaymentRequest(ctx, p.UserID, p.ID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{
		"transaction_id": p.TransactionID,
		"updated_at":     time.Now().UTC(),
	}

	var objectPath string
	if p.Body != nil {
		if s.storage == nil {
			return nil, errutil.NotImplemented("media storage is not configured", nil)
		}
		objectPath = util.ObjectPath("payments", req.UserID, p.Filename, s.node.Generate().String())
		url, err := s.storage.Upload(ctx, objectPath, p.Body, p.Size, p.ContentType)
		if err != nil {
			return nil, errutil.BadGateway("failed to upload screenshot", err)
		}
		updates["screenshot_url"] = url
	}

	res := s.db.WithContext(ctx).Model(&PaymentRequest{}).
		Where("id = ? AND status IN ?", req.ID, []string{StatusPending, StatusProcessing}).
		Updates(updates)
	if res.Error != nil {
		return nil, errutil.Internal("failed to attach evidence", res.Error)
	}
	if res.RowsAffected == 0 {
		if objectPath != "" {
			_ = s.storage.Remove(ctx, objectPath)
		}
		return nil, ErrPaymentNotReviewable
	}
	return s.GetPaymentRequest(ctx, p.UserID, p.ID)
}

// MarkProcessing tells the user an admin has started verifying the request.
func (s *Service) MarkProcessing(ctx context.Context, adminID, id string) (*PaymentRequest, error) {
	err := s.transition(ctx, s.db, id, []string{StatusPending}, map[string]any{
		"status":      StatusProcessing,
		"reviewer_id": adminID,
	})
	if err != nil {
		return nil, err
	}
	return s.GetPaymentRequest(ctx, "", id)
}

// Approve resolves the request and credits the FOG amount to the user's deposit
// bucket in the same transaction, then schedules the referral payout.
func (s *Service) Approve(ctx context.Context, adminID, id string) (*PaymentRequest, error) {
	log := applog.FromContext(ctx).With(zap.String("payment_id", id), zap.String("admin_id", adminID))

	var req *PaymentRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		if err := s.transition(ctx, tx, id, []string{StatusPending, StatusProcessing}, map[string]any{
			"status":      StatusApproved,
			"reviewer_id": adminID,
			"reviewed_at": now,
		}); err != nil {
			return err
		}

		var err error
		req, err = s.request.WithTrx(tx).FindOne(ctx, &PaymentRequest{ID: id})
		if err != nil {
			return err
		}

		_, err = s.earnings.CreditWithTx(ctx, tx, earnings.CreditParams{
			UserID:      req.UserID,
			Bucket:      earnings.BucketDeposit,
			Amount:      req.FogAmount,
			ReferenceID: "payment:" + req.ID,
			Description: "deposit " + req.Code,
			Metadata: map[string]any{
				"fiat_amount": req.FiatAmount.String(),
				"currency":    req.Currency,
				"rate":        req.Rate.String(),
			},
		})
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrPaymentNotReviewable) && !errors.Is(err, ErrPaymentNotFound) {
			log.Error("failed to approve payment", zap.Error(err))
		}
		return nil, asDomainError(err, "failed to approve payment")
	}

	resolvedTotal.WithLabelValues(StatusApproved).Inc()
	log.Info("payment approved", zap.String("user_id", req.UserID), zap.String("fog_amount", req.FogAmount.String()))

	s.enqueuePayout(ctx, referral.PayoutPayload{
		ReferredUserID: req.UserID,
		PaymentID:      req.ID,
		DepositAmount:  req.FogAmount,
	})
	return req, nil
}

func (s *Service) Reject(ctx context.Context, adminID, id, reason string) (*PaymentRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}

	err := s.transition(ctx, s.db, id, []string{StatusPending, StatusProcessing}, map[string]any{
		"status":           StatusRejected,
		"reviewer_id":      adminID,
		"rejection_reason": reason,
		"reviewed_at":      time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	resolvedTotal.WithLabelValues(StatusRejected).Inc()
	applog.FromContext(ctx).Info("payment rejected", zap.String("payment_id", id), zap.String("admin_id", adminID))
	return s.GetPaymentRequest(ctx, "", id)
}

// transition moves the request to a new status only while it is in one of from.
func (s *Service) transition(ctx context.Context, db *gorm.DB, id string, from []string, updates map[string]any) error {
	updates["updated_at"] = time.Now().UTC()
	res := db.WithContext(ctx).Model(&PaymentRequest{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return errutil.Internal("failed to update payment request", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	existing, err := s.request.WithTrx(db).FindOne(ctx, &PaymentRequest{ID: id})
	if err != nil {
		return errutil.Internal("failed to load payment request", err)
	}
	if existing == nil {
		return ErrPaymentNotFound
	}
	return ErrPaymentNotReviewable
}

func (s *Service) enqueuePayout(ctx context.Context, payload referral.PayoutPayload) {
	t, err := task.NewJSONTask(taskname.ReferralPayout, payload)
	if err != nil {
		return
	}
	if _, err := s.enqueuer.Enqueue(context.WithoutCancel(ctx), t,
		asynq.Queue(taskname.QueueCritical),
		asynq.TaskID("referral-payout:"+payload.PaymentID),
		asynq.MaxRetry(10),
	); err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		applog.FromContext(ctx).Warn("failed to enqueue referral payout", zap.String("payment_id", payload.PaymentID), zap.Error(err))
	}
}

// GetPaymentRequest returns the request; a non-empty userID restricts it to its owner.
func (s *Service) GetPaymentRequest(ctx context.Context, userID, id string) (*PaymentRequest, error) {
	req, err := s.request.FindOne(ctx, &PaymentRequest{ID: id, UserID: userID})
	if err != nil {
		return nil, errutil.Internal("failed to load payment request", err)
	}
	if req == nil {
		return nil, ErrPaymentNotFound
	}
	return req, nil
}

type PaymentFilter struct {
	UserID string `form:"-"`
	Status string `form:"status"`
	pagination.Pagination
}

func (s *Service) ListPaymentRequests(ctx context.Context, f PaymentFilter) ([]*PaymentRequest, *pagination.PageInfo, error) {
	rows, err := s.request.Find(ctx, &PaymentRequest{UserID: f.UserID, Status: f.Status}, option.ApplyPagination(f.Pagination))
	if err != nil {
		return nil, nil, errutil.Internal("failed to list payment requests", err)
	}

	out, info := pagination.BuildCursorPage(rows, f.Size(), func(r *PaymentRequest) string {
		return pagination.CursorOf(r.CreatedAt, r.ID)
	})
	return out, info, nil
}

func asDomainError(err error, msg string) error {
	var be errutil.BaseError
	if errors.As(err, &be) {
		return err
	}
	return errutil.Internal(msg, err)
}
