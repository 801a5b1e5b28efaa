// Package config loads campuswatch settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/shehryarbajwa/campuswatch/internal/schedule"
	"github.com/shehryarbajwa/campuswatch/pkg/models"
)

const DefaultTargetURL = "https://book-ourcampus.securerc.co.uk/onlineleasing/ourcampus-amsterdam-diemen/floorplans.aspx"

type Config struct {
	TargetURL    string
	CookieDomain string
	Profile      Profile
	Location     *time.Location

	HighWindows   []models.PriorityWindow
	MediumWindows []models.PriorityWindow

	TelegramToken  string
	TelegramChatID int64

	// DBPath is the sqlite file; DatabaseURL switches to Postgres when set.
	DBPath      string
	DatabaseURL string

	HealthEnabled bool
	HealthPort    int

	ChromePath       string
	BrowserContainer bool

	RecycleEvery   int
	ErrorThreshold int
	ErrorPenalty   time.Duration
	CommandPoll    time.Duration
	AlertCommand   string

	LogLevel string
	LogDir   string

	// DotEnv is true when a .env file was read.
	DotEnv bool
}

// Load reads .env files (".env" when none are given) into the environment
// without overriding variables that are already set, then calls FromEnv.
// A missing or unreadable file is not an error.
func Load(files ...string) (Config, error) {
	loaded := godotenv.Load(files...) == nil
	cfg, err := FromEnv()
	if err != nil {
		return Config{}, err
	}
	cfg.DotEnv = loaded
	return cfg, nil
}

func FromEnv() (Config, error) {
	profile, err := LookupProfile(getenv("PROFILE", "conservative"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		TargetURL:     getenv("TARGET_URL", DefaultTargetURL),
		CookieDomain:  getenv("COOKIE_DOMAIN", ".securerc.co.uk"),
		Profile:       profile,
		HighWindows:   schedule.DefaultHighWindows(),
		MediumWindows: schedule.DefaultMediumWindows(),
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		DBPath:        filepath.Join(getenv("DB_DIR", "data"), getenv("DB_FILE", "apartment_history.db")),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		ChromePath:    os.Getenv("CHROME_PATH"),
		AlertCommand:  os.Getenv("ALERT_COMMAND"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		LogDir:        getenv("LOG_DIR", "logs"),
	}

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	cfg.Location, err = time.LoadLocation(getenv("TIMEZONE", "Europe/Amsterdam"))
	collect(err)

	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.TelegramChatID, err = strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			collect(fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err))
		}
	}

	for _, o := range []struct {
		tier     models.Tier
		min, max string
		unit     time.Duration
	}{
		{models.TierHigh, "HIGH_PRIORITY_MIN", "HIGH_PRIORITY_MAX", time.Second},
		{models.TierMedium, "MEDIUM_PRIORITY_MIN", "MEDIUM_PRIORITY_MAX", time.Second},
		{models.TierNormal, "NORMAL_CHECK_INTERVAL_MIN", "NORMAL_CHECK_INTERVAL_MAX", time.Minute},
	} {
		r := cfg.Profile.Bounds[o.tier]
		r.Min, err = getDuration(o.min, r.Min, o.unit)
		collect(err)
		r.Max, err = getDuration(o.max, r.Max, o.unit)
		collect(err)
		if r.Min <= 0 || r.Max < r.Min {
			collect(fmt.Errorf("invalid %s interval bounds: %s", o.tier, r))
		}
		cfg.Profile.Bounds[o.tier] = r
	}

	if v := os.Getenv("HIGH_PRIORITY_WINDOWS"); v != "" {
		cfg.HighWindows, err = schedule.ParseWindows(v)
		if err != nil {
			collect(fmt.Errorf("invalid HIGH_PRIORITY_WINDOWS: %w", err))
		}
	}
	if v := os.Getenv("MEDIUM_PRIORITY_WINDOWS"); v != "" {
		cfg.MediumWindows, err = schedule.ParseWindows(v)
		if err != nil {
			collect(fmt.Errorf("invalid MEDIUM_PRIORITY_WINDOWS: %w", err))
		}
	}

	cfg.Profile.Headless, err = getBool("HEADLESS", cfg.Profile.Headless)
	collect(err)
	cfg.HealthEnabled, err = getBool("HEALTH_CHECK_ENABLED", true)
	collect(err)
	cfg.BrowserContainer, err = getBool("BROWSER_CONTAINER", false)
	collect(err)

	cfg.HealthPort, err = getInt("HEALTH_CHECK_PORT", 8080, 1)
	collect(err)
	if cfg.HealthPort > 65535 {
		collect(fmt.Errorf("invalid HEALTH_CHECK_PORT: %d", cfg.HealthPort))
	}
	cfg.RecycleEvery, err = getInt("RECYCLE_EVERY", 10, 1)
	collect(err)
	cfg.ErrorThreshold, err = getInt("ERROR_THRESHOLD", 5, 1)
	collect(err)

	cfg.ErrorPenalty, err = getDuration("ERROR_PENALTY_SECONDS", 60*time.Second, time.Second)
	collect(err)
	cfg.CommandPoll, err = getDuration("COMMAND_POLL_SECONDS", 10*time.Second, time.Second)
	collect(err)
	if cfg.CommandPoll <= 0 {
		collect(fmt.Errorf("invalid COMMAND_POLL_SECONDS: must be positive"))
	}

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return cfg, nil
}

// RequireTelegram reports missing messaging credentials.
func (c Config) RequireTelegram() error {
	if c.TelegramToken == "" || c.TelegramChatID == 0 {
		return fmt.Errorf("TELEGRAM_TOKEN and TELEGRAM_CHAT_ID are required")
	}
	return nil
}

// Evaluator builds the priority-window evaluator for this configuration.
func (c Config) Evaluator() *schedule.Evaluator {
	return schedule.NewEvaluator(c.HighWindows, c.MediumWindows, c.Profile.Bounds, c.Location)
}

func getenv(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func getInt(k string, def, floor int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < floor {
		return def, fmt.Errorf("invalid %s: %q", k, v)
	}
	return n, nil
}

func getBool(k string, def bool) (bool, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("invalid %s: %q", k, v)
	}
	return b, nil
}

// getDuration reads a whole number of units.
func getDuration(k string, def, unit time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		return def, fmt.Errorf("invalid %s: %q", k, v)
	}
	return time.Duration(n) * unit, nil
}
