package ranking

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"fogsly/services/testutil"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	db := testutil.NewTestDB(t, &SystemCounter{}, &UserRanking{})
	return NewService(ServiceParams{DB: db, Node: testutil.NewTestNode(t)})
}

func TestGetNextUserRankSequential(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := svc.GetNextUserRank(ctx)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestGetNextUserRankConcurrent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	const n = 20
	var (
		mu    sync.Mutex
		ranks []int64
		errs  []error
		wg    sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := svc.GetNextUserRank(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			ranks = append(ranks, r)
		}()
	}
	wg.Wait()
	require.Empty(t, errs)

	sort.Slice(ranks, func(i, j int) bool { return ranks[i] < ranks[j] })
	require.Len(t, ranks, n)
	for i, r := range ranks {
		require.Equal(t, int64(i+1), r)
	}
}

func TestAssignRankAndLookup(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	err := svc.db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.AssignRank(ctx, tx, "user-a")
		if err != nil {
			return err
		}
		_, err = svc.AssignRank(ctx, tx, "user-b")
		return err
	})
	require.NoError(t, err)

	rank, err := svc.GetUserRank(ctx, "user-b")
	require.NoError(t, err)
	require.Equal(t, int64(2), rank.RankNo)

	_, err = svc.GetUserRank(ctx, "missing")
	require.True(t, errors.Is(err, ErrRankNotFound))
}

func TestAssignRankRollsBackWithCaller(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := svc.db.Transaction(func(tx *gorm.DB) error {
		if _, err := svc.AssignRank(ctx, tx, "user-a"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	next, err := svc.GetNextUserRank(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), next)
}
