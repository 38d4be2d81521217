package config

import "time"

type Relay struct{}

var _ RelayConfig = Relay{}

// GetJoinTokenSecret returns the HMAC secret for join tokens. Empty means the
// relay generates a random secret per process.
func (Relay) GetJoinTokenSecret() string {
	return GetEnv("JOIN_TOKEN_SECRET", "")
}

func (Relay) GetJoinTokenExpiry() time.Duration {
	return GetEnvDuration("JOIN_TOKEN_EXPIRY", 1*time.Hour)
}

func (Relay) GetRelayRegion() string {
	return GetEnv("RELAY_REGION", "local")
}
