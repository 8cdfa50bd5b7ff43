package earnings

import (
	"context"
	"testing"

	"fogsly/pkg/featureflags"
	"fogsly/services/settings"

	"github.com/stretchr/testify/require"
)

func TestRequestWithdrawalRules(t *testing.T) {
	ctx := context.Background()

	t.Run("below minimum", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.svc.AddDepositEarnings(ctx, "user-1", dec("100"), "payment:1")
		require.NoError(t, err)

		_, err = f.svc.RequestWithdrawal(ctx, WithdrawalParams{UserID: "user-1", Amount: dec("49"), Source: BucketDeposit, Destination: "BANK-1"})
		require.ErrorIs(t, err, ErrBelowMinimumWithdrawal)
	})

	t.Run("disabled in settings", func(t *testing.T) {
		f := newFixture(t, nil)
		off := settings.Defaults()
		off.IsWithdrawalsEnabled = false
		f.svc.settings = staticSettings{value: off}

		_, err := f.svc.RequestWithdrawal(ctx, WithdrawalParams{UserID: "user-1", Amount: dec("60"), Source: BucketDeposit, Destination: "BANK-1"})
		require.ErrorIs(t, err, ErrWithdrawalsDisabled)
	})

	t.Run("disabled by flag", func(t *testing.T) {
		f := newFixture(t, featureflags.Static{featureflags.Withdrawals: false})
		_, err := f.svc.RequestWithdrawal(ctx, WithdrawalParams{UserID: "user-1", Amount: dec("60"), Source: BucketDeposit, Destination: "BANK-1"})
		require.ErrorIs(t, err, ErrWithdrawalsDisabled)
	})

	t.Run("insufficient", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.svc.RequestWithdrawal(ctx, WithdrawalParams{UserID: "user-1", Amount: dec("60"), Source: BucketDeposit, Destination: "BANK-1"})
		require.ErrorIs(t, err, ErrInsufficientBalance)
	})

	t.Run("destination", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.svc.RequestWithdrawal(ctx, WithdrawalParams{UserID: "user-1", Amount: dec("60"), Source: BucketDeposit, Destination: "  "})
		require.ErrorIs(t, err, ErrDestinationRequired)
	})
}

func TestWithdrawalRejectReversesDebit(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.AddDepositEarnings(ctx, "user-1", dec("100"), "payment:1")
	require.NoError(t, err)

	req, err := f.svc.RequestWithdrawal(ctx, WithdrawalParams{UserID: "user-1", Amount: dec("60"), Source: BucketDeposit, Destination: "BANK-1"})
	require.NoError(t, err)
	require.Equal(t, WithdrawalPending, req.Status)

	got, err := f.svc.GetUserEarnings(ctx, "user-1")
	require.NoError(t, err)
	requireDecimal(t, "40", got.AvailableBalance)
	requireDecimal(t, "60", got.WithdrawnAmount)

	_, err = f.svc.ResolveWithdrawal(ctx, ResolveWithdrawalParams{AdminID: "admin", ID: req.ID})
	require.ErrorIs(t, err, ErrReasonRequired)

	resolved, err := f.svc.ResolveWithdrawal(ctx, ResolveWithdrawalParams{AdminID: "admin", ID: req.ID, Reason: "bank details mismatch"})
	require.NoError(t, err)
	require.Equal(t, WithdrawalRejected, resolved.Status)
	require.Equal(t, "admin", resolved.ReviewerID)

	got, err = f.svc.GetUserEarnings(ctx, "user-1")
	require.NoError(t, err)
	requireDecimal(t, "100", got.AvailableBalance)
	requireDecimal(t, "100", got.DepositEarnings)
	requireDecimal(t, "0", got.WithdrawnAmount)

	_, err = f.svc.ResolveWithdrawal(ctx, ResolveWithdrawalParams{AdminID: "admin", ID: req.ID, Approve: true})
	require.ErrorIs(t, err, ErrWithdrawalNotPending)

	valid, err := f.svc.VerifyChain(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, valid)
}

func TestWithdrawalApprove(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.AddDepositEarnings(ctx, "user-1", dec("100"), "payment:1")
	require.NoError(t, err)
	req, err := f.svc.RequestWithdrawal(ctx, WithdrawalParams{UserID: "user-1", Amount: dec("50"), Source: BucketDeposit, Destination: "BANK-1"})
	require.NoError(t, err)

	resolved, err := f.svc.ResolveWithdrawal(ctx, ResolveWithdrawalParams{AdminID: "admin", ID: req.ID, Approve: true})
	require.NoError(t, err)
	require.Equal(t, WithdrawalCompleted, resolved.Status)
	require.NotNil(t, resolved.ReviewedAt)

	got, err := f.svc.GetUserEarnings(ctx, "user-1")
	require.NoError(t, err)
	requireDecimal(t, "50", got.AvailableBalance)
	require.True(t, got.AvailableBalance.LessThanOrEqual(got.TotalEarnings.Sub(got.WithdrawnAmount)))

	rows, _, err := f.svc.ListWithdrawals(ctx, WithdrawalFilter{UserID: "user-1"})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	_, err = f.svc.ResolveWithdrawal(ctx, ResolveWithdrawalParams{AdminID: "admin", ID: "missing", Approve: true})
	require.ErrorIs(t, err, ErrWithdrawalNotFound)
}
