package config

import (
	"fmt"
	"strings"
)

// Environment names
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// ProductionLike reports whether env must run against real remote services
func ProductionLike(env string) bool {
	env = strings.ToLower(env)
	return env == EnvStaging || env == EnvProduction
}

// requireRemote rejects an empty or localhost endpoint for a production-like environment
func requireRemote(envVar, value, env string) error {
	if value == "" || strings.Contains(value, "localhost") || strings.Contains(value, "127.0.0.1") {
		return fmt.Errorf("%s must be set to a non-localhost value in %s", envVar, env)
	}
	return nil
}
