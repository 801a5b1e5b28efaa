// Package schedule derives check cadence from wall-clock time.
//
// Every instant belongs to exactly one priority tier: HIGH if it falls in a
// HIGH window, otherwise MEDIUM if it falls in a MEDIUM window, otherwise
// NORMAL. The wait until the next check is drawn uniformly from the tier's
// interval range so consecutive checks never land on a fixed period.
package schedule

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/shehryarbajwa/campuswatch/pkg/models"
)

// Decision is the evaluator's answer for one point in time.
type Decision struct {
	Tier     models.Tier
	Interval time.Duration
	At       time.Time // when the next check is due
}

// Evaluator maps wall-clock time to a priority tier and a jittered interval.
type Evaluator struct {
	High     []models.PriorityWindow
	Medium   []models.PriorityWindow
	Bounds   map[models.Tier]models.IntervalRange
	Location *time.Location

	rnd *rand.Rand
}

// NewEvaluator creates an evaluator. A nil location means time.Local.
func NewEvaluator(high, medium []models.PriorityWindow, bounds map[models.Tier]models.IntervalRange, loc *time.Location) *Evaluator {
	if loc == nil {
		loc = time.Local
	}
	return &Evaluator{
		High:     high,
		Medium:   medium,
		Bounds:   bounds,
		Location: loc,
		rnd:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
	}
}

// WithSeed makes interval draws reproducible.
func (e *Evaluator) WithSeed(seed uint64) *Evaluator {
	e.rnd = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return e
}

// TierAt returns the tier in force at now. First matching window wins.
func (e *Evaluator) TierAt(now time.Time) models.Tier {
	local := now.In(e.Location)
	for _, w := range e.High {
		if w.Contains(local) {
			return models.TierHigh
		}
	}
	for _, w := range e.Medium {
		if w.Contains(local) {
			return models.TierMedium
		}
	}
	return models.TierNormal
}

// ComputeInterval returns a random wait within the bounds of the tier in force at now.
func (e *Evaluator) ComputeInterval(now time.Time) time.Duration {
	return e.draw(e.TierAt(now))
}

// Next returns the tier, the drawn interval and the resulting due time.
func (e *Evaluator) Next(now time.Time) Decision {
	tier := e.TierAt(now)
	iv := e.draw(tier)
	return Decision{Tier: tier, Interval: iv, At: now.Add(iv)}
}

// Range returns the configured bounds for a tier.
func (e *Evaluator) Range(t models.Tier) models.IntervalRange {
	return e.Bounds[t]
}

func (e *Evaluator) draw(t models.Tier) time.Duration {
	r := e.Bounds[t]
	if r.Max <= r.Min {
		return r.Min
	}
	span := float64(r.Max - r.Min)
	return r.Min + time.Duration(e.rnd.Float64()*span)
}

// Validate reports windows that can never match because they wrap past
// midnight, and tiers whose bounds are inverted or missing.
func (e *Evaluator) Validate() []error {
	var errs []error
	check := func(tier string, ws []models.PriorityWindow) {
		for _, w := range ws {
			if w.Wraps() {
				errs = append(errs, fmt.Errorf("%s window %s ends before it starts and will never match", tier, w))
			}
		}
	}
	check("high", e.High)
	check("medium", e.Medium)

	for _, t := range []models.Tier{models.TierHigh, models.TierMedium, models.TierNormal} {
		r, ok := e.Bounds[t]
		if !ok {
			errs = append(errs, fmt.Errorf("no interval bounds for tier %s", t))
			continue
		}
		if r.Min <= 0 || r.Max < r.Min {
			errs = append(errs, fmt.Errorf("invalid interval bounds for tier %s: %s", t, r))
		}
	}
	return errs
}
