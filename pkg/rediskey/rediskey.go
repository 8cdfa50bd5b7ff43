package rediskey

import "fmt"

const (
	SettingsPrefix      = "settings"
	TokenDenylistPrefix = "auth:denylist"
	SequencePrefix      = "seq"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildFogCoinSettingsKey returns "settings:fog_coin"
func BuildFogCoinSettingsKey() string {
	return NamespaceKey(SettingsPrefix, "fog_coin")
}

// BuildTokenDenylistKey returns "auth:denylist:{tokenID}"
func BuildTokenDenylistKey(tokenID string) string {
	return NamespaceKey(TokenDenylistPrefix, tokenID)
}

// BuildDailySequenceKey returns "seq:{prefix}:{yymmdd}"
func BuildDailySequenceKey(prefix, day string) string {
	return fmt.Sprintf("%s:%s:%s", SequencePrefix, prefix, day)
}
