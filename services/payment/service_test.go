package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"

	"fogsly/pkg/taskname"
	"fogsly/services/earnings"
	"fogsly/services/referral"
	"fogsly/services/settings"
	"fogsly/services/testutil"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type staticSettings struct {
	value settings.FogCoinSettings
}

func (s staticSettings) GetFogCoinSettings(ctx context.Context) (*settings.FogCoinSettings, error) {
	v := s.value
	return &v, nil
}

type enqueuerMock struct {
	mu    sync.Mutex
	tasks []*asynq.Task
}

func (e *enqueuerMock) Enqueue(ctx context.Context, t *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tasks = append(e.tasks, t)
	return &asynq.TaskInfo{Type: t.Type()}, nil
}

type storageMock struct {
	paths []string
}

func (s *storageMock) Upload(ctx context.Context, objectPath string, r io.Reader, size int64, contentType string) (string, error) {
	s.paths = append(s.paths, objectPath)
	return "https://cdn.test/" + objectPath, nil
}

func (s *storageMock) Remove(ctx context.Context, objectPath string) error { return nil }

type fixture struct {
	svc      *Service
	earnings *earnings.Service
	db       *gorm.DB
	enqueuer *enqueuerMock
	storage  *storageMock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t, &BankAccount{}, &PaymentRequest{}, &earnings.UserEarning{}, &earnings.EarningEntry{})
	node := testutil.NewTestNode(t)
	reader := staticSettings{value: settings.Defaults()}
	ledger := earnings.NewService(earnings.ServiceParams{DB: db, Node: node, Settings: reader})

	f := &fixture{earnings: ledger, db: db, enqueuer: &enqueuerMock{}, storage: &storageMock{}}
	f.svc = NewService(ServiceParams{
		DB:       db,
		Node:     node,
		Earnings: ledger,
		Settings: reader,
		Enqueuer: f.enqueuer,
		Storage:  f.storage,
	})
	return f
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, dec(want).Equal(got), "want %s, got %s", want, got.String())
}

func (f *fixture) account(t *testing.T, active bool) *BankAccount {
	t.Helper()
	acc, err := f.svc.CreateBankAccount(context.Background(), BankAccountParams{
		BankName:      "First Bank",
		AccountName:   "Fogsly Ltd",
		AccountNumber: "0011223344",
		Currency:      "usd",
		IsActive:      active,
	})
	require.NoError(t, err)
	return acc
}

func (f *fixture) request(t *testing.T, userID, fiat string) *PaymentRequest {
	t.Helper()
	acc := f.account(t, true)
	req, err := f.svc.CreatePaymentRequest(context.Background(), CreatePaymentParams{
		UserID:        userID,
		BankAccountID: acc.ID,
		FiatAmount:    dec(fiat),
	})
	require.NoError(t, err)
	return req
}

func TestBankAccounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	active := f.account(t, true)
	require.Equal(t, "USD", active.Currency)
	inactive := f.account(t, false)

	rows, err := f.svc.ListBankAccounts(ctx, true)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, active.ID, rows[0].ID)

	on := true
	_, err = f.svc.UpdateBankAccount(ctx, inactive.ID, BankAccountUpdate{IsActive: &on})
	require.NoError(t, err)
	rows, err = f.svc.ListBankAccounts(ctx, true)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	_, err = f.svc.CreateBankAccount(ctx, BankAccountParams{BankName: "x"})
	require.ErrorIs(t, err, ErrInvalidBankAccount)

	_, err = f.svc.UpdateBankAccount(ctx, "missing", BankAccountUpdate{IsActive: &on})
	require.ErrorIs(t, err, ErrBankAccountNotFound)
}

func TestCreatePaymentRequestPricesAtRate(t *testing.T) {
	f := newFixture(t)

	req := f.request(t, "user-1", "25")
	require.Equal(t, StatusPending, req.Status)
	require.Equal(t, "USD", req.Currency)
	requireDecimal(t, "0.1", req.Rate)
	requireDecimal(t, "250", req.FogAmount)
	require.Contains(t, req.Code, "PAY-")
}

func TestCreatePaymentRequestRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	active := f.account(t, true)
	inactive := f.account(t, false)

	tests := []struct {
		name string
		p    CreatePaymentParams
		err  error
	}{
		{"zero amount", CreatePaymentParams{BankAccountID: active.ID, FiatAmount: decimal.Zero}, ErrInvalidAmount},
		{"too many decimals", CreatePaymentParams{BankAccountID: active.ID, FiatAmount: dec("1.00001")}, ErrInvalidAmount},
		{"unknown account", CreatePaymentParams{BankAccountID: "nope", FiatAmount: dec("10")}, ErrBankAccountNotFound},
		{"inactive account", CreatePaymentParams{BankAccountID: inactive.ID, FiatAmount: dec("10")}, ErrBankAccountInactive},
		{"currency mismatch", CreatePaymentParams{BankAccountID: active.ID, FiatAmount: dec("10"), Currency: "EUR"}, ErrCurrencyMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.p.UserID = "user-1"
			_, err := f.svc.CreatePaymentRequest(ctx, tt.p)
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestAttachEvidence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.request(t, "user-1", "10")

	got, err := f.svc.AttachEvidence(ctx, EvidenceParams{
		UserID:        "user-1",
		ID:            req.ID,
		TransactionID: " TX-991 ",
		Filename:      "receipt.png",
		ContentType:   "image/png",
		Size:          3,
		Body:          bytes.NewReader([]byte("png")),
	})
	require.NoError(t, err)
	require.Equal(t, "TX-991", got.TransactionID)
	require.Len(t, f.storage.paths, 1)
	require.Contains(t, f.storage.paths[0], "payments/user-1/receipt-")
	require.Equal(t, "https://cdn.test/"+f.storage.paths[0], got.ScreenshotURL)

	_, err = f.svc.AttachEvidence(ctx, EvidenceParams{UserID: "user-2", ID: req.ID, TransactionID: "TX"})
	require.ErrorIs(t, err, ErrPaymentNotFound)

	_, err = f.svc.AttachEvidence(ctx, EvidenceParams{UserID: "user-1", ID: req.ID})
	require.ErrorIs(t, err, ErrTransactionIDRequired)

	_, err = f.svc.Reject(ctx, "admin-1", req.ID, "no funds received")
	require.NoError(t, err)
	_, err = f.svc.AttachEvidence(ctx, EvidenceParams{UserID: "user-1", ID: req.ID, TransactionID: "TX-2"})
	require.ErrorIs(t, err, ErrPaymentNotReviewable)
}

func TestApproveCreditsDepositOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.request(t, "user-1", "20")

	got, err := f.svc.MarkProcessing(ctx, "admin-1", req.ID)
	require.NoError(t, err)
	require.Equal(t, StatusProcessing, got.Status)

	got, err = f.svc.Approve(ctx, "admin-1", req.ID)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, got.Status)
	require.Equal(t, "admin-1", got.ReviewerID)
	require.NotNil(t, got.ReviewedAt)

	_, err = f.svc.Approve(ctx, "admin-1", req.ID)
	require.ErrorIs(t, err, ErrPaymentNotReviewable)
	_, err = f.svc.Reject(ctx, "admin-1", req.ID, "late")
	require.ErrorIs(t, err, ErrPaymentNotReviewable)

	ledger, err := f.earnings.GetUserEarnings(ctx, "user-1")
	require.NoError(t, err)
	requireDecimal(t, "200", ledger.DepositEarnings)
	requireDecimal(t, "200", ledger.AvailableBalance)

	require.Len(t, f.enqueuer.tasks, 1)
	require.Equal(t, taskname.ReferralPayout, f.enqueuer.tasks[0].Type())
	var payload referral.PayoutPayload
	require.NoError(t, json.Unmarshal(f.enqueuer.tasks[0].Payload(), &payload))
	require.Equal(t, "user-1", payload.ReferredUserID)
	require.Equal(t, req.ID, payload.PaymentID)
	requireDecimal(t, "200", payload.DepositAmount)
}

func TestApproveConcurrentCreditsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.request(t, "user-1", "5")

	const workers = 5
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Approve(ctx, "admin-1", req.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, ErrPaymentNotReviewable)
	}
	require.Equal(t, 1, succeeded)

	ledger, err := f.earnings.GetUserEarnings(ctx, "user-1")
	require.NoError(t, err)
	requireDecimal(t, "50", ledger.DepositEarnings)
}

func TestRejectAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.request(t, "user-1", "10")
	f.request(t, "user-1", "11")
	f.request(t, "user-2", "12")

	_, err := f.svc.Reject(ctx, "admin-1", first.ID, "  ")
	require.ErrorIs(t, err, ErrReasonRequired)

	got, err := f.svc.Reject(ctx, "admin-1", first.ID, "screenshot unreadable")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, got.Status)
	require.Equal(t, "screenshot unreadable", got.RejectionReason)

	_, err = f.svc.Approve(ctx, "admin-1", "missing")
	require.ErrorIs(t, err, ErrPaymentNotFound)

	mine, _, err := f.svc.ListPaymentRequests(ctx, PaymentFilter{UserID: "user-1"})
	require.NoError(t, err)
	require.Len(t, mine, 2)

	rejected, _, err := f.svc.ListPaymentRequests(ctx, PaymentFilter{Status: StatusRejected})
	require.NoError(t, err)
	require.Len(t, rejected, 1)

	all, _, err := f.svc.ListPaymentRequests(ctx, PaymentFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	ledger, err := f.earnings.GetUserEarnings(ctx, "user-1")
	require.NoError(t, err)
	requireDecimal(t, "0", ledger.DepositEarnings)
}
