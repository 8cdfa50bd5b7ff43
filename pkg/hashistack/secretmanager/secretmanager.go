package secretmanager

import (
	"os"

	vault "github.com/hashicorp/vault-client-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("secretmanager", fx.Provide(ProvideVault))

// Enabled reports whether VAULT_ADDR points at a vault the config loader should read
// secrets from.
func Enabled() bool {
	return os.Getenv("VAULT_ADDR") != ""
}

// ProvideVault builds a client from VAULT_ADDR, VAULT_TOKEN and the other VAULT_*
// environment variables.
func ProvideVault() (*vault.Client, error) {
	client, err := vault.New(vault.WithEnvironment())
	if err != nil {
		zap.L().Error("failed to create vault client", zap.Error(err))
		return nil, err
	}
	return client, nil
}
