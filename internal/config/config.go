// Package config loads application configuration from environment
// variables.
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration values. Each field maps to one
// environment variable; required values are enforced by must() at
// startup so a misconfigured deployment fails immediately instead of at
// the first request.
type Config struct {
	Env            string // application environment (dev/test/prod)
	Port           string // HTTP port to listen on
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for password hashing

	// Settlement knobs. CancelGrace is the free-cancellation window
	// before a session starts; RecoverSweep is how often the saga
	// recovery sweep looks for stale checkouts, and RecoverStaleAfter
	// is how long a saga must sit untouched before the sweep takes it.
	// PromotionTTL is how long a promoted waitlist member keeps their
	// held spot before the sweep returns it to the pool.
	CancelGrace       time.Duration
	RecoverSweep      time.Duration
	RecoverStaleAfter time.Duration
	PromotionTTL      time.Duration
}

// Load reads configuration from the environment. Required variables
// cause a fatal log when missing; the settlement knobs carry defaults.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"), // empty allowed
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),

		CancelGrace:       time.Duration(envInt("CANCEL_GRACE_HOURS", 6)) * time.Hour,
		RecoverSweep:      envDur("SAGA_RECOVER_INTERVAL", time.Minute),
		RecoverStaleAfter: envDur("SAGA_STALE_AFTER", 2*time.Minute),
		PromotionTTL:      envDur("WAITLIST_PROMOTION_TTL", time.Hour),
	}
}

// must retrieves a required environment variable or exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is must() plus integer conversion.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
