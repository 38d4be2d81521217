package config

import "time"

type Config interface {
	EnvConfig
	CorsConfig
	SessionConfig
	RelayConfig
	DirectoryConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type SessionConfig interface {
	GetMaxClients() int
	GetKeepAliveInterval() time.Duration
	GetExternalCallTimeout() time.Duration
	GetKeepAliveRetries() int
	GetKeepAliveFailureThreshold() int
	GetCharacterSelectScene() string
	GetGameplayScene() string
	GetSpawnSpread() float64
}

type RelayConfig interface {
	GetJoinTokenSecret() string
	GetJoinTokenExpiry() time.Duration
	GetRelayRegion() string
}

type DirectoryConfig interface {
	GetDirectoryName() string
	GetDirectoryPath() string
	GetDirectoryEntryTTL() time.Duration
	GetCatalogPath() string
}

type mainConfig struct {
	EnvVars
	Cors
	Session
	Relay
	Directory
}

func New() Config {
	return mainConfig{}
}
