package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"fogsly/pkg/config"
	"fogsly/pkg/errutil"
	"fogsly/pkg/middleware"
	"fogsly/services/earnings"
	"fogsly/services/profile"
	"fogsly/services/ranking"
	"fogsly/services/referral"
	"fogsly/services/settings"
	"fogsly/services/testutil"
	"fogsly/services/wallet"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

const testSecret = "0123456789abcdef0123456789abcdef"

type staticSettings struct{}

func (staticSettings) GetFogCoinSettings(ctx context.Context) (*settings.FogCoinSettings, error) {
	v := settings.Defaults()
	return &v, nil
}

type fixture struct {
	svc      *Service
	db       *gorm.DB
	referral *referral.Service
	denylist *MemoryDenylist
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t,
		&User{},
		&ranking.SystemCounter{}, &ranking.UserRanking{},
		&profile.UserProfile{},
		&wallet.UserWallet{}, &wallet.WalletBalance{}, &wallet.WalletTransfer{},
		&earnings.UserEarning{}, &earnings.EarningEntry{},
		&referral.Referral{}, &referral.Reward{},
	)
	node := testutil.NewTestNode(t)

	cfg := config.Default()
	cfg.Auth.JWTSecret = testSecret

	issuer, err := NewIssuer(cfg)
	require.NoError(t, err)

	ledger := earnings.NewService(earnings.ServiceParams{DB: db, Node: node, Settings: staticSettings{}})
	ref, err := referral.NewService(referral.ServiceParams{DB: db, Node: node, Config: cfg, Earnings: ledger})
	require.NoError(t, err)

	deny := &MemoryDenylist{}
	svc := NewService(ServiceParams{
		DB:       db,
		Node:     node,
		Issuer:   issuer,
		Denylist: deny,
		Ranking:  ranking.NewService(ranking.ServiceParams{DB: db, Node: node}),
		Profile:  profile.NewService(profile.ServiceParams{DB: db, Node: node}),
		Wallet:   wallet.NewService(wallet.ServiceParams{DB: db, Node: node}),
		Earnings: ledger,
		Referral: ref,
	})
	return &fixture{svc: svc, db: db, referral: ref, denylist: deny}
}

func (f *fixture) signUp(t *testing.T, email, code string) *Session {
	t.Helper()
	out, err := f.svc.SignUp(context.Background(), SignUpParams{
		Email:        email,
		Password:     "correct-horse",
		DisplayName:  "Tester",
		ReferralCode: code,
	})
	require.NoError(t, err)
	return out
}

func TestNewIssuerRejectsShortSecret(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.JWTSecret = "short"
	_, err := NewIssuer(cfg)
	require.ErrorIs(t, err, errWeakSecret)

	cfg.Auth.JWTSecret = ""
	cfg.AppEnv = "production"
	_, err = NewIssuer(cfg)
	require.ErrorIs(t, err, errWeakSecret)
}

func TestIssuerRoundTrip(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.JWTSecret = testSecret
	issuer, err := NewIssuer(cfg)
	require.NoError(t, err)

	raw, expires, err := issuer.Issue(&User{ID: "42", Email: "a@b.co", Role: middleware.RoleAdmin})
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(24*time.Hour), expires, time.Minute)

	c, err := issuer.verify(raw)
	require.NoError(t, err)
	require.Equal(t, "42", c.Subject)
	require.Equal(t, middleware.RoleAdmin, c.Role)
	require.NotEmpty(t, c.ID)

	other := *issuer
	other.key = []byte(strings.Repeat("x", minSecretLength))
	_, err = other.verify(raw)
	require.Error(t, err)

	issuer.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	_, err = issuer.verify(raw)
	require.Error(t, err)
}

func TestSignUpOpensAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out := f.signUp(t, "  Alice@Example.com ", "")
	require.NotEmpty(t, out.Token)
	require.Equal(t, "alice@example.com", out.User.Email)
	require.Equal(t, middleware.RoleUser, out.User.Role)
	require.Equal(t, int64(1), out.User.RankNo)
	require.Len(t, out.User.ReferralCode, referralCodeLength)
	require.True(t, strings.HasPrefix(out.WalletAddress, wallet.AddressPrefix))

	var count int64
	require.NoError(t, f.db.Model(&profile.UserProfile{}).Where("user_id = ?", out.User.ID).Count(&count).Error)
	require.Equal(t, int64(1), count)
	require.NoError(t, f.db.Model(&earnings.UserEarning{}).Where("user_id = ?", out.User.ID).Count(&count).Error)
	require.Equal(t, int64(1), count)

	second := f.signUp(t, "bob@example.com", "")
	require.Equal(t, int64(2), second.User.RankNo)

	id, err := f.svc.Authenticate(ctx, out.Token)
	require.NoError(t, err)
	require.Equal(t, out.User.ID, id.UserID)
	require.Equal(t, "alice@example.com", id.Email)
}

func TestSignUpRejections(t *testing.T) {
	f := newFixture(t)
	f.signUp(t, "taken@example.com", "")

	tests := []struct {
		name   string
		params SignUpParams
		err    error
	}{
		{"bad email", SignUpParams{Email: "nope", Password: "correct-horse"}, ErrInvalidEmail},
		{"short password", SignUpParams{Email: "a@example.com", Password: "short"}, ErrWeakPassword},
		{"taken email", SignUpParams{Email: "TAKEN@example.com", Password: "correct-horse"}, ErrEmailTaken},
		{"unknown referral", SignUpParams{Email: "b@example.com", Password: "correct-horse", ReferralCode: "ZZZZZZZZ"}, ErrInvalidReferralCode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SignUp(context.Background(), tt.params)
			require.ErrorIs(t, err, tt.err)
		})
	}

	var count int64
	require.NoError(t, f.db.Model(&User{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestSignUpRecordsReferral(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	referrer := f.signUp(t, "ref@example.com", "")
	referred := f.signUp(t, "new@example.com", strings.ToLower(referrer.User.ReferralCode))

	list, err := f.referral.ListReferrals(ctx, referrer.User.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, referred.User.ID, list[0].ReferredUserID)
}

func TestSignInAndSignOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.signUp(t, "carol@example.com", "")

	_, err := f.svc.SignIn(ctx, SignInParams{Email: "carol@example.com", Password: "wrong-password"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
	require.True(t, errutil.IsCode(err, errutil.StatusUnauthorized))

	_, err = f.svc.SignIn(ctx, SignInParams{Email: "nobody@example.com", Password: "correct-horse"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	out, err := f.svc.SignIn(ctx, SignInParams{Email: "Carol@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	require.Equal(t, created.WalletAddress, out.WalletAddress)

	id, err := f.svc.Authenticate(ctx, out.Token)
	require.NoError(t, err)

	require.NoError(t, f.svc.SignOut(ctx, id))
	_, err = f.svc.Authenticate(ctx, out.Token)
	require.ErrorIs(t, err, ErrInvalidToken)

	// the signup token is still valid
	_, err = f.svc.Authenticate(ctx, created.Token)
	require.NoError(t, err)
}

func TestAuthenticateRejectsGarbage(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Authenticate(context.Background(), "not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionAndSetRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.signUp(t, "dave@example.com", "")

	s, err := f.svc.Session(ctx, created.User.ID)
	require.NoError(t, err)
	require.Empty(t, s.Token)
	require.Equal(t, created.WalletAddress, s.WalletAddress)

	_, err = f.svc.SetRole(ctx, created.User.ID, "root")
	require.ErrorIs(t, err, ErrInvalidRole)

	_, err = f.svc.SetRole(ctx, "missing", middleware.RoleAdmin)
	require.ErrorIs(t, err, ErrUserNotFound)

	u, err := f.svc.SetRole(ctx, created.User.ID, middleware.RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, middleware.RoleAdmin, u.Role)
}

func TestAuthenticateUsesStoredRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.signUp(t, "erin@example.com", "")

	_, err := f.svc.SetRole(ctx, created.User.ID, middleware.RoleAdmin)
	require.NoError(t, err)

	out, err := f.svc.SignIn(ctx, SignInParams{Email: "erin@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	id, err := f.svc.Authenticate(ctx, out.Token)
	require.NoError(t, err)
	require.Equal(t, middleware.RoleAdmin, id.Role)

	_, err = f.svc.SetRole(ctx, created.User.ID, middleware.RoleUser)
	require.NoError(t, err)

	id, err = f.svc.Authenticate(ctx, out.Token)
	require.NoError(t, err)
	require.Equal(t, middleware.RoleUser, id.Role)
}

func TestAuthenticateRejectsUnknownUser(t *testing.T) {
	f := newFixture(t)

	raw, _, err := f.svc.issuer.Issue(&User{ID: "ghost", Email: "ghost@example.com", Role: middleware.RoleAdmin})
	require.NoError(t, err)

	_, err = f.svc.Authenticate(context.Background(), raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}
