package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shehryarbajwa/campuswatch/pkg/models"
)

// Profile bundles the cadence and browser behaviour of one monitoring style.
type Profile struct {
	Name          string
	Bounds        map[models.Tier]models.IntervalRange
	Headless      bool
	ClickAttempts int
	SettleDelay   time.Duration
	Humanize      bool
	// Alert runs the external alert command on new availability.
	Alert bool
}

func bounds(high, medium, normal [2]time.Duration) map[models.Tier]models.IntervalRange {
	return map[models.Tier]models.IntervalRange{
		models.TierHigh:   {Min: high[0], Max: high[1]},
		models.TierMedium: {Min: medium[0], Max: medium[1]},
		models.TierNormal: {Min: normal[0], Max: normal[1]},
	}
}

var profiles = map[string]Profile{
	"conservative": {
		Name: "conservative",
		Bounds: bounds(
			[2]time.Duration{45 * time.Second, 75 * time.Second},
			[2]time.Duration{90 * time.Second, 150 * time.Second},
			[2]time.Duration{3 * time.Minute, 8 * time.Minute},
		),
		Headless:      true,
		ClickAttempts: 3,
		SettleDelay:   2 * time.Second,
		Humanize:      true,
	},
	"fast": {
		Name: "fast",
		Bounds: bounds(
			[2]time.Duration{20 * time.Second, 40 * time.Second},
			[2]time.Duration{45 * time.Second, 90 * time.Second},
			[2]time.Duration{time.Minute, 3 * time.Minute},
		),
		Headless:      true,
		ClickAttempts: 2,
		SettleDelay:   time.Second,
		Humanize:      true,
	},
	"speed": {
		Name: "speed",
		Bounds: bounds(
			[2]time.Duration{10 * time.Second, 20 * time.Second},
			[2]time.Duration{20 * time.Second, 40 * time.Second},
			[2]time.Duration{30 * time.Second, 60 * time.Second},
		),
		Headless:      false,
		ClickAttempts: 1,
		SettleDelay:   500 * time.Millisecond,
		Humanize:      false,
		Alert:         true,
	},
}

// LookupProfile returns the named profile, matched case-insensitively.
func LookupProfile(name string) (Profile, error) {
	p, ok := profiles[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Profile{}, fmt.Errorf("unknown profile %q (want conservative, fast or speed)", name)
	}
	// Bounds is shared; hand out a copy.
	b := make(map[models.Tier]models.IntervalRange, len(p.Bounds))
	for k, v := range p.Bounds {
		b[k] = v
	}
	p.Bounds = b
	return p, nil
}
