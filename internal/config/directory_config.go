package config

import "time"

type Directory struct{}

var _ DirectoryConfig = Directory{}

func (Directory) GetDirectoryName() string {
	return GetEnv("DIRECTORY_NAME", "MyLobby")
}

// GetDirectoryPath is the SQLite file backing the directory. Empty keeps the
// directory in memory.
func (Directory) GetDirectoryPath() string {
	return GetEnv("DIRECTORY_PATH", "")
}

// GetDirectoryEntryTTL is how long an entry survives without a heartbeat.
func (Directory) GetDirectoryEntryTTL() time.Duration {
	return GetEnvDuration("DIRECTORY_ENTRY_TTL", 30*time.Second)
}

func (Directory) GetCatalogPath() string {
	return GetEnv("CATALOG_PATH", "./characters.yaml")
}
