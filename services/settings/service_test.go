package settings

import (
	"context"
	"errors"
	"sync"
	"testing"

	"fogsly/pkg/db/pagination"
	"fogsly/services/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	db := testutil.NewTestDB(t, &FogCoinSettings{}, &FogCoinSettingsHistory{})
	return NewService(ServiceParams{DB: db, Node: testutil.NewTestNode(t)})
}

func TestGetFogCoinSettingsPersistsDefaults(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	got, err := svc.GetFogCoinSettings(ctx)
	require.NoError(t, err)
	require.True(t, got.FogToUsdRate.Equal(decimal.RequireFromString("0.10")))
	require.True(t, got.MinimumWithdrawAmount.Equal(decimal.NewFromInt(50)))
	require.True(t, got.MaximumDailyEarnings.Equal(decimal.NewFromInt(100)))
	require.True(t, got.IsWithdrawalsEnabled)

	var count int64
	require.NoError(t, svc.db.Model(&FogCoinSettings{}).Where("id = ?", CurrentID).Count(&count).Error)
	require.Equal(t, int64(1), count)

	require.NoError(t, svc.db.Model(&FogCoinSettingsHistory{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestGetFogCoinSettingsConcurrentFirstRead(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.GetFogCoinSettings(ctx)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var count int64
	require.NoError(t, svc.db.Model(&FogCoinSettingsHistory{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestUpdateFogCoinSettings(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	rate := decimal.RequireFromString("0.25")
	disabled := false
	got, err := svc.UpdateFogCoinSettings(ctx, UpdateParams{
		AdminID:              "admin-1",
		Reason:               "quarterly repricing",
		FogToUsdRate:         &rate,
		IsWithdrawalsEnabled: &disabled,
	})
	require.NoError(t, err)
	require.True(t, got.FogToUsdRate.Equal(rate))
	require.False(t, got.IsWithdrawalsEnabled)
	require.True(t, got.MinimumWithdrawAmount.Equal(decimal.NewFromInt(50)))
	require.Equal(t, "admin-1", got.UpdatedBy)

	rows, info, err := svc.ListHistory(ctx, pagination.Pagination{Limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.False(t, info.HasMore)

	var latest FogCoinSettingsHistory
	require.NoError(t, svc.db.Where("admin_id = ?", "admin-1").First(&latest).Error)
	require.Equal(t, "quarterly repricing", latest.Reason)
	require.False(t, latest.IsWithdrawalsEnabled)
}

func TestUpdateFogCoinSettingsConcurrentPatches(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	rate := decimal.RequireFromString("0.5")
	limit := decimal.NewFromInt(250)

	var g errgroup.Group
	g.Go(func() error {
		_, err := svc.UpdateFogCoinSettings(ctx, UpdateParams{AdminID: "admin-1", Reason: "rate", FogToUsdRate: &rate})
		return err
	})
	g.Go(func() error {
		_, err := svc.UpdateFogCoinSettings(ctx, UpdateParams{AdminID: "admin-2", Reason: "cap", MaximumDailyEarnings: &limit})
		return err
	})
	require.NoError(t, g.Wait())

	got, err := svc.GetFogCoinSettings(ctx)
	require.NoError(t, err)
	require.True(t, got.FogToUsdRate.Equal(rate))
	require.True(t, got.MaximumDailyEarnings.Equal(limit))

	var count int64
	require.NoError(t, svc.db.Model(&FogCoinSettingsHistory{}).Count(&count).Error)
	require.Equal(t, int64(3), count)
}

func TestUpdateFogCoinSettingsValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	zero := decimal.Zero
	negative := decimal.NewFromInt(-1)

	cases := []struct {
		name   string
		params UpdateParams
		want   error
	}{
		{name: "missing reason", params: UpdateParams{AdminID: "a"}, want: ErrReasonRequired},
		{name: "zero rate", params: UpdateParams{AdminID: "a", Reason: "r", FogToUsdRate: &zero}, want: ErrInvalidRate},
		{name: "negative cap", params: UpdateParams{AdminID: "a", Reason: "r", MaximumDailyEarnings: &negative}, want: ErrNegativeLimit},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.UpdateFogCoinSettings(ctx, tc.params)
			require.Error(t, err)
			require.True(t, errors.Is(err, tc.want))
		})
	}
}
