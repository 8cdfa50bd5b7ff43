package auth

import (
	"crypto/rand"
	"errors"
	"time"

	"fogsly/pkg/config"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const minSecretLength = 32

var errWeakSecret = errors.New("AUTH.JWT_SECRET must be at least 32 bytes")

type privateClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Issuer signs and verifies HS256 session tokens.
type Issuer struct {
	signer jose.Signer
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(cfg *config.Config) (*Issuer, error) {
	key := []byte(cfg.Auth.JWTSecret)
	if len(key) == 0 && cfg.AppEnv != "production" {
		key = make([]byte, minSecretLength)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
		zap.L().Warn("AUTH.JWT_SECRET not set, using an ephemeral signing key")
	}
	if len(key) < minSecretLength {
		return nil, errWeakSecret
	}

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: key}, (&jose.SignerOptions{}).WithType("JWT"))
	if err != nil {
		return nil, err
	}

	ttl := cfg.Auth.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &Issuer{
		signer: signer,
		key:    key,
		issuer: cfg.Auth.Issuer,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

type claims struct {
	jwt.Claims
	privateClaims
}

func (i *Issuer) Issue(u *User) (string, time.Time, error) {
	now := i.now()
	expires := now.Add(i.ttl)

	raw, err := jwt.Signed(i.signer).
		Claims(jwt.Claims{
			ID:       uuid.NewString(),
			Issuer:   i.issuer,
			Subject:  u.ID,
			IssuedAt: jwt.NewNumericDate(now),
			Expiry:   jwt.NewNumericDate(expires),
		}).
		Claims(privateClaims{Email: u.Email, Role: u.Role}).
		Serialize()
	if err != nil {
		return "", time.Time{}, err
	}
	return raw, expires, nil
}

// verify checks the signature, issuer and expiry of raw.
func (i *Issuer) verify(raw string) (*claims, error) {
	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, err
	}

	var out claims
	if err := tok.Claims(i.key, &out.Claims, &out.privateClaims); err != nil {
		return nil, err
	}
	if err := out.Claims.ValidateWithLeeway(jwt.Expected{Issuer: i.issuer, Time: i.now()}, 0); err != nil {
		return nil, err
	}
	if out.Subject == "" || out.ID == "" {
		return nil, errors.New("token without subject or id")
	}
	return &out, nil
}
