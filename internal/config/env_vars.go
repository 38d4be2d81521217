package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	portEnvVar     = "PORT"
	appNameVar     = "APP_NAME"
	logLevelEnvVar = "LOG_LEVEL"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Session Host")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

// GetLogLevel returns a zerolog level name (trace, debug, info, warn, error).
func (EnvVars) GetLogLevel() string {
	return strings.ToLower(GetEnv(logLevelEnvVar, "info"))
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetEnvInt returns the integer value of envVar, or defaultValue when unset or unparsable.
func GetEnvInt(envVar string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(envVar))
	if err != nil {
		return defaultValue
	}
	return value
}

// GetEnvFloat returns the float value of envVar, or defaultValue when unset or unparsable.
func GetEnvFloat(envVar string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(os.Getenv(envVar), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// GetEnvDuration accepts Go duration strings ("15s", "2m") as well as a bare
// number of seconds.
func GetEnvDuration(envVar string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(envVar)
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
