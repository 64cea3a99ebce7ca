package config

import (
	"os"

	"github.com/joho/godotenv"
)

// LoadEnv reads the .env file named by INVESTIGATOR_ENV (or .env by
// default) into the process environment. Variables already set win. A
// missing file is not an error.
func LoadEnv() error {
	envFile := os.Getenv("INVESTIGATOR_ENV")
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err != nil {
		return nil
	}
	return godotenv.Load(envFile)
}

// DatabasePath is the sqlite file used for saved networks.
func DatabasePath() string {
	return getEnv("INVESTIGATOR_DB", "investigator.db")
}

// LogLevel returns debug, info, warn or error. Defaults to info.
func LogLevel() string {
	return getEnv("LOG_LEVEL", "info")
}

// EngineConfigPath is the YAML file with engine tunables. Empty means
// built-in defaults.
func EngineConfigPath() string {
	return os.Getenv("INVESTIGATOR_ENGINE_CONFIG")
}

// TelemetryExporter returns stdout or none. Defaults to none.
func TelemetryExporter() string {
	return getEnv("INVESTIGATOR_TELEMETRY", "none")
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
