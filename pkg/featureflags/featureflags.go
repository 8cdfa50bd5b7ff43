package featureflags

import (
	"context"

	"fogsly/pkg/config"

	"github.com/Flagsmith/flagsmith-go-client/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("featureflags", fx.Provide(ProvideFeatureFlag))

// Flag names evaluated by the ledger services.
const (
	P2PTransfers = "p2p_transfers"
	Withdrawals  = "withdrawals"
	AdRewards    = "ad_rewards"
)

type FeatureFlag interface {
	// IsEnabled evaluates feature for identifier, returning fallback when the flag
	// service is not configured or unreachable.
	IsEnabled(ctx context.Context, feature, identifier string, fallback bool) bool
	Flags(ctx context.Context, identifier string, traits ...*flagsmith.Trait) (flagsmith.Flags, error)
}

type featureflag struct {
	client *flagsmith.Client
}

type FeatureParams struct {
	fx.In
	Config *config.Config
}

func ProvideFeatureFlag(p FeatureParams) FeatureFlag {
	if p.Config.Flagsmith.ApiKey == "" {
		zap.L().Info("flagsmith not configured, feature flags use fallbacks")
		return &featureflag{}
	}

	opts := []flagsmith.Option{
		flagsmith.WithAnalytics(),
	}
	if p.Config.Flagsmith.Addr != "" {
		opts = append(opts, flagsmith.WithBaseURL(p.Config.Flagsmith.Addr))
	}

	return &featureflag{
		client: flagsmith.NewClient(p.Config.Flagsmith.ApiKey, opts...),
	}
}

func (s *featureflag) IsEnabled(ctx context.Context, feature, identifier string, fallback bool) bool {
	if s.client == nil {
		return fallback
	}

	flags, err := s.Flags(ctx, identifier)
	if err != nil {
		zap.L().Warn("failed to fetch feature flags", zap.String("feature", feature), zap.Error(err))
		return fallback
	}

	enabled, err := flags.IsFeatureEnabled(feature)
	if err != nil {
		return fallback
	}
	return enabled
}

func (s *featureflag) Flags(ctx context.Context, identifier string, traits ...*flagsmith.Trait) (flagsmith.Flags, error) {
	if identifier == "" {
		return s.client.GetEnvironmentFlags()
	}
	return s.client.GetIdentityFlags(identifier, traits)
}

// Static is a FeatureFlag with fixed values, used by tests and tools.
type Static map[string]bool

func (s Static) IsEnabled(ctx context.Context, feature, identifier string, fallback bool) bool {
	if v, ok := s[feature]; ok {
		return v
	}
	return fallback
}

func (s Static) Flags(ctx context.Context, identifier string, traits ...*flagsmith.Trait) (flagsmith.Flags, error) {
	return flagsmith.Flags{}, nil
}
