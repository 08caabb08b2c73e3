package config

import (
	"os"
	"strconv"
	"strings"
)

// Redis configures the optional status-event stream. An empty Addr disables it.
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Stream   string `yaml:"stream"`
}

func (r Redis) Enabled() bool {
	return strings.TrimSpace(r.Addr) != ""
}

func (r Redis) withEnv() Redis {
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if parsed, err := strconv.Atoi(dbStr); err == nil {
			r.DB = parsed
		}
	}

	r.Addr = getEnv("REDIS_ADDR", r.Addr)
	r.Password = getEnv("REDIS_PASSWORD", r.Password)
	r.Stream = getEnv("REDIS_STREAM", r.Stream)
	if r.Stream == "" {
		r.Stream = defaultRedisStream
	}
	return r
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}
