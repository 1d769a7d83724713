package app

import (
	"time"
)

// Config holds process-level settings: the HTTP listener, logging, the
// backing stores, and CORS. Subsystem settings (tokens, OAuth app, cookie
// policy) load in their own packages.
type Config struct {
	HTTPAddr string
	LogLevel string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// DatabaseURL selects the Postgres session store when set. RedisAddr
	// selects Redis when Postgres is not configured. With neither, the
	// process falls back to the in-memory store and says so loudly.
	DatabaseURL string
	DBMaxConns  int32
	AutoMigrate bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CORSOrigins []string

	// SweepInterval is how often expired session records are deleted.
	SweepInterval time.Duration
}

// LoadConfigFromEnv loads process configuration from the environment.
func LoadConfigFromEnv() Config {
	return Config{
		HTTPAddr: EnvString("GITFOLIO_HTTP_ADDR", ":8080"),
		LogLevel: EnvString("GITFOLIO_LOG_LEVEL", "info"),

		ReadTimeout:     EnvDuration("GITFOLIO_HTTP_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    EnvDuration("GITFOLIO_HTTP_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:     EnvDuration("GITFOLIO_HTTP_IDLE_TIMEOUT", 120*time.Second),
		ShutdownTimeout: EnvDuration("GITFOLIO_SHUTDOWN_TIMEOUT", 15*time.Second),

		DatabaseURL: EnvString("GITFOLIO_DATABASE_URL", ""),
		DBMaxConns:  int32(EnvInt("GITFOLIO_DB_MAX_CONNS", 10)),
		AutoMigrate: EnvBool("GITFOLIO_DB_AUTO_MIGRATE", true),

		RedisAddr:     EnvString("GITFOLIO_REDIS_ADDR", ""),
		RedisPassword: EnvString("GITFOLIO_REDIS_PASSWORD", ""),
		RedisDB:       EnvInt("GITFOLIO_REDIS_DB", 0),

		CORSOrigins: EnvList("GITFOLIO_CORS_ORIGINS", nil),

		SweepInterval: EnvDuration("GITFOLIO_SWEEP_INTERVAL", time.Hour),
	}
}
