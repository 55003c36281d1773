// Package config reads service settings from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

type Config struct {
	Port               string
	RateLimitPerMinute int

	DataBackend    string
	MemorySeedFile string
	SQLiteDBPath   string

	// Change events and the spreadsheet mirror.
	AMQPURL                  string
	AMQPExchange             string
	AMQPQueue                string
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	SyncBatchSize            int
	SyncInterval             time.Duration

	AuthJWTSecret string
	AuthAudience  string
	AuthDisabled  bool

	Timezone string
	LogLevel string
}

// Backends lists the accepted DATA_BACKEND values.
var Backends = []string{"memory", "sheets", "sqlite"}

// defaults maps each setting to its fallback. Keys are the lower-cased
// environment variable names.
var defaults = map[string]any{
	"port":                        "8081",
	"rate_limit_per_minute":       60,
	"data_backend":                "memory",
	"memory_seed_file":            "",
	"sqlite_db_path":              "./data/flowtrack.db",
	"amqp_url":                    "",
	"amqp_exchange":               "flowtrack",
	"amqp_queue":                  "sync_transactions",
	"google_spreadsheet_id":       "",
	"google_sheet_name":           "Transactions",
	"google_service_account_json": "",
	"google_service_account_file": "",
	"sync_batch_size":             10,
	"sync_interval":               30 * time.Second,
	"auth_jwt_secret":             "",
	"auth_audience":               "",
	"auth_disabled":               false,
	"timezone":                    "UTC",
	"log_level":                   "info",
}

// settings resolves keys against the environment. Values that do not parse
// fall back to the default.
type settings struct{ v *viper.Viper }

func (s settings) str(key string) string { return s.v.GetString(key) }

func (s settings) int(key string) int {
	if n, err := cast.ToIntE(s.v.Get(key)); err == nil {
		return n
	}
	return defaults[key].(int)
}

func (s settings) bool(key string) bool {
	if b, err := cast.ToBoolE(s.v.Get(key)); err == nil {
		return b
	}
	return defaults[key].(bool)
}

func (s settings) duration(key string) time.Duration {
	if d, err := cast.ToDurationE(s.v.Get(key)); err == nil {
		return d
	}
	return defaults[key].(time.Duration)
}

// Load reads the configuration from environment variables. Empty variables
// count as unset.
func Load() *Config {
	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	s := settings{v}

	return &Config{
		Port:               s.str("port"),
		RateLimitPerMinute: s.int("rate_limit_per_minute"),

		DataBackend:    s.str("data_backend"),
		MemorySeedFile: s.str("memory_seed_file"),
		SQLiteDBPath:   s.str("sqlite_db_path"),

		AMQPURL:                  s.str("amqp_url"),
		AMQPExchange:             s.str("amqp_exchange"),
		AMQPQueue:                s.str("amqp_queue"),
		GoogleSpreadsheetID:      s.str("google_spreadsheet_id"),
		GoogleSheetName:          s.str("google_sheet_name"),
		GoogleServiceAccountJSON: s.str("google_service_account_json"),
		GoogleServiceAccountFile: s.str("google_service_account_file"),
		SyncBatchSize:            s.int("sync_batch_size"),
		SyncInterval:             s.duration("sync_interval"),

		AuthJWTSecret: s.str("auth_jwt_secret"),
		AuthAudience:  s.str("auth_audience"),
		AuthDisabled:  s.bool("auth_disabled"),

		Timezone: s.str("timezone"),
		LogLevel: s.str("log_level"),
	}
}

// Location resolves TIMEZONE. An empty value means UTC.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE %q is not a known zone: %w", c.Timezone, err)
	}
	return loc, nil
}

// problems collects every configuration error so they are reported at once.
type problems []string

func (p *problems) add(msg string) { *p = append(*p, msg) }

func (p *problems) addf(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

func (p problems) err() error {
	if len(p) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(p, "\n  - "))
}

// Validate checks the settings the API server needs. The SQLite directory
// is created when missing.
func (c *Config) Validate() error {
	var p problems

	port, err := strconv.Atoi(c.Port)
	switch {
	case err != nil:
		p.addf("PORT %q is not a number", c.Port)
	case port < 1 || port > 65535:
		p.addf("PORT %d is outside 1-65535", port)
	}
	if c.RateLimitPerMinute < 1 {
		p.addf("RATE_LIMIT_PER_MINUTE must be at least 1, got %d", c.RateLimitPerMinute)
	}

	switch c.DataBackend {
	case "memory":
		if c.MemorySeedFile != "" {
			if info, err := os.Stat(c.MemorySeedFile); err == nil && info.IsDir() {
				p.addf("MEMORY_SEED_FILE %q is a directory", c.MemorySeedFile)
			}
		}
	case "sqlite":
		c.checkSQLite(&p)
	case "sheets":
		c.checkSheets(&p)
	default:
		p.addf("DATA_BACKEND %q must be one of %s", c.DataBackend, strings.Join(Backends, ", "))
	}

	if c.AMQPURL != "" {
		c.checkAMQP(&p)
	}

	if c.SyncBatchSize < 1 || c.SyncBatchSize > 1000 {
		p.addf("SYNC_BATCH_SIZE must be between 1 and 1000, got %d", c.SyncBatchSize)
	}
	if c.SyncInterval < time.Second || c.SyncInterval > 24*time.Hour {
		p.addf("SYNC_INTERVAL must be between 1s and 24h, got %v", c.SyncInterval)
	}

	if !c.AuthDisabled {
		switch {
		case c.AuthJWTSecret == "":
			p.add("AUTH_JWT_SECRET is required unless AUTH_DISABLED=true")
		case len(c.AuthJWTSecret) < 16:
			p.add("AUTH_JWT_SECRET must be at least 16 characters")
		}
	}

	if _, err := c.Location(); err != nil {
		p.add(err.Error())
	}
	return p.err()
}

// ValidateMirror checks what the sync worker needs: the SQLite database it
// sweeps, a broker to consume from and a sheet to write.
func (c *Config) ValidateMirror() error {
	var p problems
	if c.AMQPURL == "" {
		p.add("AMQP_URL is required by the sync worker")
	} else {
		c.checkAMQP(&p)
	}
	if c.SQLiteDBPath == "" {
		p.add("SQLITE_DB_PATH is required by the sync worker")
	}
	c.checkSheets(&p)
	return p.err()
}

func (c *Config) checkSQLite(p *problems) {
	if c.SQLiteDBPath == "" {
		p.add("SQLITE_DB_PATH is required for the sqlite backend")
		return
	}
	dir := filepath.Dir(c.SQLiteDBPath)
	if dir == "." {
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		p.addf("SQLITE_DB_PATH directory %q cannot be created: %v", dir, err)
	}
}

func (c *Config) checkAMQP(p *problems) {
	u, err := url.Parse(c.AMQPURL)
	switch {
	case err != nil:
		p.addf("AMQP_URL is not a URL: %v", err)
	case !slices.Contains([]string{"amqp", "amqps"}, u.Scheme):
		p.addf("AMQP_URL scheme %q must be amqp or amqps", u.Scheme)
	}
	if c.AMQPExchange == "" {
		p.add("AMQP_EXCHANGE is required with AMQP_URL")
	}
	if c.AMQPQueue == "" {
		p.add("AMQP_QUEUE is required with AMQP_URL")
	}
}

func (c *Config) checkSheets(p *problems) {
	if c.GoogleSpreadsheetID == "" {
		p.add("GOOGLE_SPREADSHEET_ID is required for the sheets backend")
	}
	if c.GoogleSheetName == "" {
		p.add("GOOGLE_SHEET_NAME is required for the sheets backend")
	}
	switch {
	case c.GoogleServiceAccountFile != "":
		if _, err := os.Stat(c.GoogleServiceAccountFile); err != nil {
			p.addf("GOOGLE_SERVICE_ACCOUNT_FILE %q: %v", c.GoogleServiceAccountFile, err)
		}
	case c.GoogleServiceAccountJSON == "":
		p.add("GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON is required for the sheets backend")
	}
}
