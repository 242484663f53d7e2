// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Config holds all configuration values for the API server and the CLI.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to ["http://localhost:5173"]. Set CORS_ORIGINS to a
	// comma-separated list to override.
	CORSOrigins []string

	// MaxBodyBytes caps request bodies. Defaults to 1 MiB; document uploads
	// carry extracted PDF text, which stays well below that.
	MaxBodyBytes int64

	// AutoMigrate applies pending migrations at server start.
	AutoMigrate bool

	// Extractor settings for the language-model extraction endpoint.
	// An empty ExtractorAPIKey disables document ingestion.
	ExtractorAPIKey  string
	ExtractorURL     string
	ExtractorModel   string
	ExtractorTimeout time.Duration

	// ExtractionRPS and ExtractionBurst throttle extraction calls per owner.
	// A non-positive rate disables the throttle.
	ExtractionRPS   float64
	ExtractionBurst int

	// ContentLimit caps the runes of a document sent to extraction.
	ContentLimit int

	// StaleYears are the years rewritten by year correction. Empty means
	// the built-in default.
	StaleYears []int

	// CalendarDomain is the right-hand side of calendar UIDs.
	CalendarDomain string

	// CalendarTimezone is the IANA zone stored wall-clock times are read in.
	CalendarTimezone string

	// Gmail polling. Polling is enabled only when the three OAuth values
	// and GmailOwnerID are all set.
	GmailClientID       string
	GmailClientSecret   string
	GmailRefreshToken   string
	GmailOwnerID        uuid.UUID
	GmailAllowedSenders []string
	GmailPollInterval   time.Duration
}

// GmailEnabled reports whether mailbox polling is fully configured.
func (c Config) GmailEnabled() bool {
	return c.GmailClientID != "" && c.GmailClientSecret != "" && c.GmailRefreshToken != "" && c.GmailOwnerID != uuid.Nil
}

// Location resolves CalendarTimezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.CalendarTimezone)
	if err != nil {
		return nil, fmt.Errorf("config: CALENDAR_TIMEZONE: %w", err)
	}
	return loc, nil
}

// Load reads configuration from environment variables and returns a Config.
// A .env file in the working directory is loaded first when present; real
// environment variables take precedence over it.
// Returns an error listing any required variables that are not set or any
// values that do not parse.
func Load() (Config, error) {
	_ = godotenv.Load()

	p := parser{}
	cfg := Config{
		Port:             getEnv("PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		CORSOrigins:      splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		MaxBodyBytes:     int64(p.intVal("MAX_BODY_BYTES", 1<<20)),
		AutoMigrate:      p.boolVal("AUTO_MIGRATE", false),
		ExtractorAPIKey:  os.Getenv("EXTRACTOR_API_KEY"),
		ExtractorURL:     os.Getenv("EXTRACTOR_URL"),
		ExtractorModel:   os.Getenv("EXTRACTOR_MODEL"),
		ExtractorTimeout: p.durationVal("EXTRACTOR_TIMEOUT", 90*time.Second),
		ExtractionRPS:    p.floatVal("EXTRACTION_RPS", 0.5),
		ExtractionBurst:  p.intVal("EXTRACTION_BURST", 3),
		ContentLimit:     p.intVal("CONTENT_LIMIT", 15000),
		StaleYears:       p.intsVal("STALE_YEARS"),
		CalendarDomain:   getEnv("CALENDAR_DOMAIN", "itinerary.local"),
		CalendarTimezone: getEnv("CALENDAR_TIMEZONE", "America/Argentina/Buenos_Aires"),

		GmailClientID:       os.Getenv("GMAIL_CLIENT_ID"),
		GmailClientSecret:   os.Getenv("GMAIL_CLIENT_SECRET"),
		GmailRefreshToken:   os.Getenv("GMAIL_REFRESH_TOKEN"),
		GmailOwnerID:        p.uuidVal("GMAIL_OWNER_ID"),
		GmailAllowedSenders: splitCSV(os.Getenv("GMAIL_ALLOWED_SENDERS")),
		GmailPollInterval:   p.durationVal("GMAIL_POLL_INTERVAL", 5*time.Minute),
	}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}
	if len(p.invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variables: %s", strings.Join(p.invalid, ", "))
	}
	if _, err := cfg.Location(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// parser reads typed variables and records the names of those that fail to
// parse, so Load can report them all at once.
type parser struct {
	invalid []string
}

func (p *parser) intVal(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.invalid = append(p.invalid, key)
		return fallback
	}
	return n
}

func (p *parser) floatVal(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.invalid = append(p.invalid, key)
		return fallback
	}
	return f
}

func (p *parser) boolVal(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.invalid = append(p.invalid, key)
		return fallback
	}
	return b
}

// durationVal accepts Go durations ("90s") or a bare number of seconds.
func (p *parser) durationVal(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.invalid = append(p.invalid, key)
		return fallback
	}
	return d
}

func (p *parser) intsVal(key string) []int {
	var out []int
	for _, part := range splitCSV(os.Getenv(key)) {
		n, err := strconv.Atoi(part)
		if err != nil {
			p.invalid = append(p.invalid, key)
			return nil
		}
		out = append(out, n)
	}
	return out
}

func (p *parser) uuidVal(key string) uuid.UUID {
	v := os.Getenv(key)
	if v == "" {
		return uuid.Nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		p.invalid = append(p.invalid, key)
		return uuid.Nil
	}
	return id
}
