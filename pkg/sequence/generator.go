package sequence

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"fogsly/pkg/rediskey"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var Module = fx.Module("sequence",
	fx.Provide(NewRedisGenerator),
)

// Generator issues human readable reference codes, unique per day and prefix.
type Generator interface {
	NextPaymentCode(ctx context.Context) (string, error)
	NextTransferCode(ctx context.Context) (string, error)
	NextWithdrawalCode(ctx context.Context) (string, error)
}

type RedisGenerator struct {
	rdb *redis.Client
	now func() time.Time
}

type Params struct {
	fx.In

	Redis *redis.Client
}

func NewRedisGenerator(p Params) Generator {
	return &RedisGenerator{
		rdb: p.Redis,
		now: time.Now,
	}
}

func (g *RedisGenerator) NextPaymentCode(ctx context.Context) (string, error) {
	return g.nextDailyCode(ctx, "PAY")
}

func (g *RedisGenerator) NextTransferCode(ctx context.Context) (string, error) {
	return g.nextDailyCode(ctx, "TRF")
}

func (g *RedisGenerator) NextWithdrawalCode(ctx context.Context) (string, error) {
	return g.nextDailyCode(ctx, "WDR")
}

func (g *RedisGenerator) nextDailyCode(ctx context.Context, prefix string) (string, error) {
	now := g.now().UTC()
	today := now.Format("060102")
	key := rediskey.BuildDailySequenceKey(prefix, today)

	seq, err := g.rdb.Incr(ctx, key).Result()
	if err != nil {
		return "", err
	}

	if seq == 1 {
		endOfDay := now.Truncate(24 * time.Hour).Add(24 * time.Hour)
		_ = g.rdb.ExpireAt(ctx, key, endOfDay.Add(time.Hour)).Err()
	}

	return formatCode(prefix, today, seq)
}

func formatCode(prefix, day string, seq int64) (string, error) {
	encoded := strings.ToUpper(strconv.FormatInt(seq, 36))
	if len(encoded) < 3 {
		encoded = strings.Repeat("0", 3-len(encoded)) + encoded
	}

	suffix, err := randomAlphaNumeric(2)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s-%s-%s%s", prefix, day, encoded, suffix), nil
}

// RandomAlphaNumeric draws n characters from an alphabet without look-alike glyphs.
func RandomAlphaNumeric(n int) (string, error) {
	return randomAlphaNumeric(n)
}

func randomAlphaNumeric(n int) (string, error) {
	const chars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	b := make([]byte, n)
	for i := range b {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		if err != nil {
			return "", err
		}
		b[i] = chars[num.Int64()]
	}
	return string(b), nil
}
