package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"fogsly/pkg/errutil"
	applog "fogsly/pkg/logger"
	"fogsly/pkg/middleware"
	"fogsly/pkg/repository"
	"fogsly/pkg/sequence"
	"fogsly/services/earnings"
	"fogsly/services/profile"
	"fogsly/services/ranking"
	"fogsly/services/referral"
	"fogsly/services/wallet"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	minPasswordLength  = 8
	referralCodeLength = 8
)

var (
	ErrInvalidEmail        = errutil.New(errutil.StatusValidationFailed, "a valid email is required")
	ErrWeakPassword        = errutil.New(errutil.StatusValidationFailed, "password must be at least 8 characters")
	ErrEmailTaken          = errutil.New(errutil.StatusConflict, "email is already registered")
	ErrInvalidReferralCode = errutil.New(errutil.StatusValidationFailed, "referral code not found")
	ErrInvalidCredentials  = errutil.New(errutil.StatusUnauthorized, "invalid email or password")
	ErrInvalidToken        = errutil.New(errutil.StatusUnauthorized, "invalid or expired token")
	ErrUserNotFound        = errutil.New(errutil.StatusNotFound, "user not found")
	ErrInvalidRole         = errutil.New(errutil.StatusValidationFailed, "unknown role")
)

type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	issuer   *Issuer
	denylist Denylist

	ranking  *ranking.Service
	profile  *profile.Service
	wallet   *wallet.Service
	earnings *earnings.Service
	referral *referral.Service

	user repository.Repository[User]
}

type ServiceParams struct {
	fx.In
	DB       *gorm.DB
	Node     *snowflake.Node
	Issuer   *Issuer
	Denylist Denylist
	Ranking  *ranking.Service
	Profile  *profile.Service
	Wallet   *wallet.Service
	Earnings *earnings.Service
	Referral *referral.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		node:     p.Node,
		issuer:   p.Issuer,
		denylist: p.Denylist,
		ranking:  p.Ranking,
		profile:  p.Profile,
		wallet:   p.Wallet,
		earnings: p.Earnings,
		referral: p.Referral,

		user: repository.ProvideStore[User](p.DB),
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// SignUp registers the user and, in one transaction, assigns their rank and opens
// their profile, wallet, earnings ledger and referral link.
func (s *Service) SignUp(ctx context.Context, p SignUpParams) (*Session, error) {
	email, err := normalizeEmail(p.Email)
	if err != nil {
		return nil, err
	}
	if len(p.Password) < minPasswordLength {
		return nil, ErrWeakPassword
	}
	displayName := strings.TrimSpace(p.DisplayName)
	if displayName == "" {
		displayName = email[:strings.Index(email, "@")]
	}

	taken, err := s.user.FindOne(ctx, &User{Email: email})
	if err != nil {
		return nil, errutil.Internal("failed to check email", err)
	}
	if taken != nil {
		return nil, ErrEmailTaken
	}

	var referrer *User
	if code := strings.ToUpper(strings.TrimSpace(p.ReferralCode)); code != "" {
		referrer, err = s.user.FindOne(ctx, &User{ReferralCode: code})
		if err != nil {
			return nil, errutil.Internal("failed to resolve referral code", err)
		}
		if referrer == nil {
			return nil, ErrInvalidReferralCode
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errutil.Internal("failed to hash password", err)
	}

	user := &User{
		ID:           s.node.Generate().String(),
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  displayName,
		Role:         middleware.RoleUser,
	}

	var address string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		code, err := s.uniqueReferralCode(ctx, tx)
		if err != nil {
			return err
		}
		user.ReferralCode = code

		res := tx.WithContext(ctx).Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).Create(user)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrEmailTaken
		}

		rank, err := s.ranking.AssignRank(ctx, tx, user.ID)
		if err != nil {
			return err
		}
		user.RankNo = rank.RankNo
		if err := tx.WithContext(ctx).Model(&User{}).Where("id = ?", user.ID).Update("rank_no", rank.RankNo).Error; err != nil {
			return err
		}

		if _, err := s.profile.CreateProfile(ctx, tx, user.ID, displayName); err != nil {
			return err
		}

		w, err := s.wallet.CreateWallet(ctx, tx, wallet.Owner{UserID: user.ID, Name: displayName, Email: email})
		if err != nil {
			return err
		}
		address = w.Address

		if err := s.earnings.OpenLedger(ctx, tx, user.ID, address); err != nil {
			return err
		}

		if referrer != nil {
			return s.referral.Record(ctx, tx, referral.RecordParams{
				ReferrerID:     referrer.ID,
				Code:           referrer.ReferralCode,
				ReferredUserID: user.ID,
			})
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrEmailTaken) {
			applog.FromContext(ctx).Error("signup failed", zap.String("email", email), zap.Error(err))
		}
		return nil, asDomainError(err, "failed to sign up")
	}

	applog.FromContext(ctx).Info("user signed up", zap.String("user_id", user.ID), zap.Int64("rank", user.RankNo))
	return s.newSession(user, address)
}

func (s *Service) uniqueReferralCode(ctx context.Context, tx *gorm.DB) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		code, err := sequence.RandomAlphaNumeric(referralCodeLength)
		if err != nil {
			return "", err
		}
		existing, err := s.user.WithTrx(tx).FindOne(ctx, &User{ReferralCode: code})
		if err != nil {
			return "", err
		}
		if existing == nil {
			return code, nil
		}
	}
	return "", errutil.Internal("could not allocate a referral code", nil)
}

func (s *Service) SignIn(ctx context.Context, p SignInParams) (*Session, error) {
	email, err := normalizeEmail(p.Email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	user, err := s.user.FindOne(ctx, &User{Email: email})
	if err != nil {
		return nil, errutil.Internal("failed to load user", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(p.Password)); err != nil {
		applog.FromContext(ctx).Info("signin rejected", zap.String("user_id", user.ID))
		return nil, ErrInvalidCredentials
	}

	var address string
	if w, err := s.wallet.GetWallet(ctx, user.ID); err == nil {
		address = w.Address
	}
	return s.newSession(user, address)
}

func (s *Service) newSession(user *User, address string) (*Session, error) {
	token, expires, err := s.issuer.Issue(user)
	if err != nil {
		return nil, errutil.Internal("failed to issue token", err)
	}
	return &Session{Token: token, ExpiresAt: expires, User: user, WalletAddress: address}, nil
}

// SignOut revokes the token of id for the rest of its lifetime.
func (s *Service) SignOut(ctx context.Context, id *middleware.Identity) error {
	ttl := time.Until(id.ExpiresAt)
	if err := s.denylist.Add(ctx, id.TokenID, ttl); err != nil {
		return errutil.Internal("failed to revoke token", err)
	}
	applog.FromContext(ctx).Info("user signed out", zap.String("user_id", id.UserID))
	return nil
}

// Authenticate verifies a bearer token for the auth middleware.
func (s *Service) Authenticate(ctx context.Context, token string) (*middleware.Identity, error) {
	c, err := s.issuer.verify(token)
	if err != nil {
		return nil, errutil.Wrap(ErrInvalidToken, err)
	}

	revoked, err := s.denylist.Contains(ctx, c.ID)
	if err != nil {
		return nil, errutil.Internal("failed to check token", err)
	}
	if revoked {
		return nil, ErrInvalidToken
	}

	// the role claim is only a hint; role changes apply to live tokens
	user, err := s.GetUser(ctx, c.Subject)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}

	return &middleware.Identity{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		TokenID:   c.ID,
		ExpiresAt: c.Expiry.Time(),
	}, nil
}

// Session returns the signed in user with their wallet address.
func (s *Service) Session(ctx context.Context, userID string) (*Session, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := &Session{User: user}
	if w, err := s.wallet.GetWallet(ctx, userID); err == nil {
		out.WalletAddress = w.Address
	}
	return out, nil
}

func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	user, err := s.user.FindOne(ctx, &User{ID: userID})
	if err != nil {
		return nil, errutil.Internal("failed to load user", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// SetRole changes a user's role. Authenticate reads the stored role, so the change
// applies to tokens already issued.
func (s *Service) SetRole(ctx context.Context, userID, role string) (*User, error) {
	switch role {
	case middleware.RoleUser, middleware.RoleAdmin, middleware.RoleAuditor:
	default:
		return nil, ErrInvalidRole
	}
	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.user.Update(ctx, userID, map[string]any{"role": role, "updated_at": time.Now().UTC()}); err != nil {
		return nil, errutil.Internal("failed to update role", err)
	}
	return s.GetUser(ctx, userID)
}

func asDomainError(err error, msg string) error {
	var be errutil.BaseError
	if errors.As(err, &be) {
		return err
	}
	return errutil.Internal(msg, err)
}
