package config

import (
	"fmt"
	"os"
)

const (
	portEnvVar   = "PORT"
	appNameVar   = "APP_NAME"
	baseURLVar   = "BASE_URL"
	upstreamVar  = "UPSTREAM_URL"
	redisAddrVar = "REDIS_ADDR"
)

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetBaseURL() string
	GetUpstreamURL() string
	GetRedisAddr() string
	GetEnv() string
}

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if port != "" || port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "CampusBoard Session Gateway")
}

// GetBaseURL returns the externally visible base URL of this gateway,
// used for the OAuth redirect URI and post-logout navigation.
func (EnvVars) GetBaseURL() string {
	return GetEnv(baseURLVar, "http://localhost:8080")
}

// GetUpstreamURL returns the dashboard API the gateway proxies to.
func (EnvVars) GetUpstreamURL() string {
	return GetEnv(upstreamVar, "http://localhost:9090")
}

// GetRedisAddr returns the Redis address for the persisted session
// artifact cache; empty selects the in-memory cache.
func (EnvVars) GetRedisAddr() string {
	return GetEnv(redisAddrVar, "")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
