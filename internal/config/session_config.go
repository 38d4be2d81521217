package config

import "time"

type Session struct{}

var _ SessionConfig = Session{}

// GetMaxClients includes the host's own slot.
func (Session) GetMaxClients() int {
	return GetEnvInt("MAX_CLIENTS", 4)
}

func (Session) GetKeepAliveInterval() time.Duration {
	return GetEnvDuration("KEEP_ALIVE_INTERVAL", 15*time.Second)
}

// GetExternalCallTimeout bounds each relay and directory call.
func (Session) GetExternalCallTimeout() time.Duration {
	return GetEnvDuration("EXTERNAL_CALL_TIMEOUT", 10*time.Second)
}

func (Session) GetKeepAliveRetries() int {
	return GetEnvInt("KEEP_ALIVE_RETRIES", 2)
}

func (Session) GetKeepAliveFailureThreshold() int {
	return GetEnvInt("KEEP_ALIVE_FAILURE_THRESHOLD", 3)
}

func (Session) GetCharacterSelectScene() string {
	return GetEnv("CHARACTER_SELECT_SCENE", "CharacterSelect")
}

func (Session) GetGameplayScene() string {
	return GetEnv("GAMEPLAY_SCENE", "GamePlay")
}

// GetSpawnSpread is the half-width of the lateral spawn range.
func (Session) GetSpawnSpread() float64 {
	return GetEnvFloat("SPAWN_SPREAD", 3.0)
}
