// Package config loads the checker configuration from a YAML file, with
// environment overrides for secrets.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/luxmed-sniper/internal/luxmed"
)

const (
	defaultIntervalSeconds = 1800
	defaultLookupDays      = 14
	defaultStorePath       = "luxmed-seen.json"
	defaultTemplate        = "New visit! {AppointmentDate} at {ClinicPublicName} - {DoctorName}"

	// minInterval is a fair-use floor, not a tuning knob: polling the
	// portal too often gets the account locked.
	minInterval = time.Minute
)

type Config struct {
	LuxMed   LuxMed       `yaml:"luxmed"`
	Search   Search       `yaml:"search"`
	Telegram Telegram     `yaml:"telegram"`
	Store    Store        `yaml:"store"`
	Poll     Poll         `yaml:"poll"`
	Session  SessionCache `yaml:"session_cache"`
}

type LuxMed struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

type Search struct {
	CityID           int   `yaml:"city_id"`
	ServiceVariantID int   `yaml:"service_variant_id"`
	FacilityIDs      []int `yaml:"facility_ids"`
	DoctorIDs        []int `yaml:"doctor_ids"`
	LookupDays       int   `yaml:"lookup_days"`

	// Legacy "cityId*serviceId*clinicId*doctorId" shorthand; structured
	// fields above win where both are given.
	DoctorLocatorID string `yaml:"doctor_locator_id"`
}

type Telegram struct {
	APIToken        string `yaml:"api_token"`
	ChatID          int64  `yaml:"chat_id"`
	MessageTemplate string `yaml:"message_template"`
}

type Store struct {
	Path        string `yaml:"path"`
	DatabaseURL string `yaml:"database_url"`
}

type Poll struct {
	IntervalSeconds int `yaml:"interval_seconds"`
}

type SessionCache struct {
	Path string `yaml:"path"`

	// Keys come from SESSION_HASH_KEY / SESSION_BLOCK_KEY (base64), never
	// from the YAML file.
	HashKey  []byte `yaml:"-"`
	BlockKey []byte `yaml:"-"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyEnv()
	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Interval() time.Duration {
	return time.Duration(c.Poll.IntervalSeconds) * time.Second
}

func (c Config) Filter() luxmed.Filter {
	return luxmed.Filter{
		CityID:           c.Search.CityID,
		ServiceVariantID: c.Search.ServiceVariantID,
		FacilityIDs:      c.Search.FacilityIDs,
		DoctorIDs:        c.Search.DoctorIDs,
		LookupDays:       c.Search.LookupDays,
	}
}

func (c *Config) applyEnv() {
	overrideString(&c.LuxMed.Email, "LUXMED_EMAIL")
	overrideString(&c.LuxMed.Password, "LUXMED_PASSWORD")
	overrideString(&c.Telegram.APIToken, "TELEGRAM_API_TOKEN")
	overrideString(&c.Store.DatabaseURL, "DATABASE_URL")
	if v := strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Telegram.ChatID = id
		}
	}
}

func (c *Config) normalize() error {
	if c.LuxMed.Email == "" || c.LuxMed.Password == "" {
		return fmt.Errorf("luxmed email and password are required")
	}

	if c.Search.DoctorLocatorID != "" {
		f, err := luxmed.ParseLocatorID(c.Search.DoctorLocatorID)
		if err != nil {
			return err
		}
		if c.Search.CityID == 0 {
			c.Search.CityID = f.CityID
		}
		if c.Search.ServiceVariantID == 0 {
			c.Search.ServiceVariantID = f.ServiceVariantID
		}
		if len(c.Search.FacilityIDs) == 0 {
			c.Search.FacilityIDs = f.FacilityIDs
		}
		if len(c.Search.DoctorIDs) == 0 {
			c.Search.DoctorIDs = f.DoctorIDs
		}
	}
	if c.Search.LookupDays == 0 {
		c.Search.LookupDays = defaultLookupDays
	}

	if c.Poll.IntervalSeconds == 0 {
		c.Poll.IntervalSeconds = defaultIntervalSeconds
	}
	if c.Interval() < minInterval {
		return fmt.Errorf("poll interval_seconds is below the %s fair-use floor", minInterval)
	}

	if c.Telegram.APIToken == "" {
		return fmt.Errorf("telegram api_token is required")
	}
	if c.Telegram.ChatID == 0 {
		return fmt.Errorf("telegram chat_id is required")
	}
	if c.Telegram.MessageTemplate == "" {
		c.Telegram.MessageTemplate = defaultTemplate
	}

	if c.Store.Path == "" && c.Store.DatabaseURL == "" {
		c.Store.Path = defaultStorePath
	}

	if c.Session.Path != "" {
		var err error
		if c.Session.HashKey, err = keyFromEnv("SESSION_HASH_KEY"); err != nil {
			return err
		}
		if c.Session.BlockKey, err = keyFromEnv("SESSION_BLOCK_KEY"); err != nil {
			return err
		}
	}

	return c.Filter().Validate()
}

func overrideString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func keyFromEnv(k string) ([]byte, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return nil, fmt.Errorf("%s is required (base64) when session_cache.path is set", k)
	}
	if b, err := base64.StdEncoding.DecodeString(v); err == nil {
		return b, nil
	}
	b, err := base64.RawStdEncoding.DecodeString(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", k, err)
	}
	return b, nil
}
