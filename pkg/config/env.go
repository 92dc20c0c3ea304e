package config

import (
	"os"
	"strings"
)

// Deployment environments. Staging and production refuse local infrastructure.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

var environmentAliases = map[string]string{
	"dev":   EnvDevelopment,
	"local": EnvDevelopment,
	"test":  EnvDevelopment,
	"stage": EnvStaging,
	"stg":   EnvStaging,
	"prod":  EnvProduction,
	"prd":   EnvProduction,
}

// GetEnv returns the value of an environment variable or a default value if not set.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// NormalizeEnvironment lower-cases raw and resolves short deployment names
// (prod, stg, dev). Empty or unknown values are returned as given, lower-cased;
// empty becomes development.
func NormalizeEnvironment(raw string) string {
	env := strings.ToLower(strings.TrimSpace(raw))
	if env == "" {
		return EnvDevelopment
	}
	if canonical, ok := environmentAliases[env]; ok {
		return canonical
	}
	return env
}

// IsProductionLike reports whether env demands production-grade configuration.
func IsProductionLike(env string) bool {
	switch NormalizeEnvironment(env) {
	case EnvStaging, EnvProduction:
		return true
	default:
		return false
	}
}
