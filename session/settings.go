package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/jrsteele09/go-session-host/internal/config"
)

// Settings tune a Coordinator.
type Settings struct {
	// DirectoryName is the name the session is advertised under.
	DirectoryName string
	// KeepAliveInterval is the period between directory heartbeats.
	KeepAliveInterval time.Duration
	// CallTimeout bounds each relay and directory call. Zero means no timeout.
	CallTimeout time.Duration
	// KeepAliveRetries is how many times a failed heartbeat is retried within one round.
	KeepAliveRetries int
	// KeepAliveFailureThreshold is the number of consecutive failed rounds after
	// which the entry is reported as likely expired.
	KeepAliveFailureThreshold int
	CharacterSelectScene      string
	GameplayScene             string
}

// DefaultSettings matches the defaults of internal/config.
func DefaultSettings() Settings {
	return Settings{
		DirectoryName:             "MyLobby",
		KeepAliveInterval:         15 * time.Second,
		CallTimeout:               10 * time.Second,
		KeepAliveRetries:          2,
		KeepAliveFailureThreshold: 3,
		CharacterSelectScene:      "CharacterSelect",
		GameplayScene:             "GamePlay",
	}
}

// SettingsFromConfig reads Settings from the environment-backed configuration.
func SettingsFromConfig(sc config.SessionConfig, dc config.DirectoryConfig) Settings {
	return Settings{
		DirectoryName:             dc.GetDirectoryName(),
		KeepAliveInterval:         sc.GetKeepAliveInterval(),
		CallTimeout:               sc.GetExternalCallTimeout(),
		KeepAliveRetries:          sc.GetKeepAliveRetries(),
		KeepAliveFailureThreshold: sc.GetKeepAliveFailureThreshold(),
		CharacterSelectScene:      sc.GetCharacterSelectScene(),
		GameplayScene:             sc.GetGameplayScene(),
	}
}

func (s Settings) validate() error {
	if strings.TrimSpace(s.DirectoryName) == "" {
		return fmt.Errorf("directory name is required")
	}
	if s.KeepAliveInterval <= 0 {
		return fmt.Errorf("keep-alive interval must be positive")
	}
	if s.CallTimeout < 0 {
		return fmt.Errorf("call timeout must not be negative")
	}
	if s.KeepAliveRetries < 0 {
		return fmt.Errorf("keep-alive retries must not be negative")
	}
	return nil
}
