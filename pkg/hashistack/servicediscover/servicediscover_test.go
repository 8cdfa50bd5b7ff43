package servicediscover

import (
	"context"
	"testing"

	"fogsly/pkg/config"

	"github.com/stretchr/testify/require"
)

func TestNewRegistryWithoutConsul(t *testing.T) {
	r, err := NewRegistry(config.Default())
	require.NoError(t, err)
	require.IsType(t, nopRegistry{}, r)
	require.NoError(t, r.Register(context.Background()))
}

func TestNewRegistryNeedsNumericPort(t *testing.T) {
	cfg := config.Default()
	cfg.Consul.Addr = "127.0.0.1:8500"
	cfg.Server.Addr = "localhost:8080"

	_, err := NewRegistry(cfg)
	require.Error(t, err)
}

func TestRegistration(t *testing.T) {
	reg := Registration("fogsly", "api-1", 8080)
	require.Equal(t, "fogsly-api-1-8080", reg.ID)
	require.Equal(t, "http://api-1:8080/readyz", reg.Check.HTTP)
}
