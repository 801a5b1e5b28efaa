// Package probe reads the availability of every monitored category from the
// floorplans page in a single pass.
package probe

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"

	"github.com/shehryarbajwa/campuswatch/pkg/models"
)

const mouseMoveScript = `document.dispatchEvent(new MouseEvent('mousemove', {
	view: window,
	bubbles: true,
	cancelable: true,
	clientX: Math.floor(Math.random() * window.innerWidth),
	clientY: Math.floor(Math.random() * window.innerHeight)
}));`

// Options configures a Probe. Zero durations and counts fall back to defaults.
type Options struct {
	URL    string
	Layout []CategorySpec

	// RootTimeout bounds the wait for the root container.
	RootTimeout time.Duration
	// ClickAttempts is how many times a tab click is tried before giving up.
	ClickAttempts int
	ClickBackoff  time.Duration
	// SettleDelay is waited after each tab click before reading texts.
	SettleDelay time.Duration
	// Humanize adds random 1-3s pauses after load and after each click.
	Humanize bool
}

// Probe runs one availability check against a Page.
type Probe struct {
	opts  Options
	log   *log.Logger
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
	rnd   *rand.Rand
}

func New(opts Options, logger *log.Logger) *Probe {
	if opts.Layout == nil {
		opts.Layout = DefaultLayout()
	}
	if opts.RootTimeout <= 0 {
		opts.RootTimeout = 45 * time.Second
	}
	if opts.ClickAttempts <= 0 {
		opts.ClickAttempts = 3
	}
	if opts.ClickBackoff <= 0 {
		opts.ClickBackoff = time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Probe{
		opts:  opts,
		log:   logger,
		now:   time.Now,
		sleep: Sleep,
		rnd:   rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
	}
}

// WithClock replaces the time source and sleeper, for tests.
func (p *Probe) WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) *Probe {
	p.now = now
	p.sleep = sleep
	return p
}

// Run loads the page and returns exactly one result per category in layout
// order. If the root container never appears the whole probe is void and
// Run returns ErrStructural. Failures on a single category only affect that
// category's result. Navigation and driver errors are returned as-is.
func (p *Probe) Run(ctx context.Context, page Page) ([]models.CheckResult, error) {
	p.log.Info("Checking for apartment availability", "url", p.opts.URL)

	if err := page.Navigate(ctx, p.opts.URL); err != nil {
		return nil, fmt.Errorf("failed to load page: %w", err)
	}
	if err := p.humanize(ctx); err != nil {
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, p.opts.RootTimeout)
	err := page.WaitPresent(waitCtx, RootContainer)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.log.Error("Main container not found, page may have changed structure", "err", err)
		return nil, fmt.Errorf("%w: %v", ErrStructural, err)
	}

	if err := page.Eval(ctx, mouseMoveScript); err != nil {
		return nil, fmt.Errorf("failed to dispatch mouse move: %w", err)
	}

	results := make([]models.CheckResult, 0, len(p.opts.Layout))
	for _, spec := range p.opts.Layout {
		results = append(results, p.category(ctx, page, spec))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Probe) category(ctx context.Context, page Page, spec CategorySpec) models.CheckResult {
	name := spec.Category.DisplayName()

	tab, err := FirstMatch(ctx, page, spec.Tabs)
	if err != nil {
		p.log.Error("Could not find tab using any selector", "category", name)
		return models.ErrorResult(spec.Category, p.now())
	}
	p.log.Debug("Found tab", "category", name, "selector", tab)

	// The panel behind an unactivated tab may belong to another category.
	if err := p.click(ctx, page, tab); err != nil {
		p.log.Warn("Tab click failed", "category", name, "err", err)
		return models.ErrorResult(spec.Category, p.now())
	}
	if err := p.sleep(ctx, p.opts.SettleDelay); err != nil {
		return models.ErrorResult(spec.Category, p.now())
	}
	if err := p.humanize(ctx); err != nil {
		return models.ErrorResult(spec.Category, p.now())
	}

	availability, ok := ReadFirst(ctx, page, spec.Availability)
	if !ok {
		p.log.Warn("Could not read availability text", "category", name)
		availability = models.TextUnknown
	}
	button, ok := ReadFirst(ctx, page, spec.Button)
	if !ok {
		p.log.Warn("Could not read button text", "category", name)
		button = models.TextUnknown
	}

	p.log.Info("Read category", "category", name, "availability", availability, "button", button)
	return models.NewCheckResult(spec.Category, availability, button, p.now())
}

// click tries a native click, retrying on stale elements and falling back to
// a script click for any other failure.
func (p *Probe) click(ctx context.Context, page Page, sel Selector) error {
	var last error
	for attempt := 1; attempt <= p.opts.ClickAttempts; attempt++ {
		err := page.Click(ctx, sel)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrStale) {
			if err = page.ScriptClick(ctx, sel); err == nil {
				return nil
			}
		}
		last = err
		p.log.Debug("Click failed, retrying", "attempt", attempt, "err", err)
		if attempt < p.opts.ClickAttempts {
			if err := p.sleep(ctx, p.opts.ClickBackoff); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("failed to click %s after %d attempts: %w", sel, p.opts.ClickAttempts, last)
}

func (p *Probe) humanize(ctx context.Context) error {
	if !p.opts.Humanize {
		return nil
	}
	return p.sleep(ctx, HumanDelay(p.rnd))
}

// HumanDelay returns a random pause of 1-3s, lengthened by another 1-3s one
// time in five.
func HumanDelay(rnd *rand.Rand) time.Duration {
	d := time.Second + time.Duration(rnd.Int64N(int64(2*time.Second)))
	if rnd.Float64() < 0.2 {
		d += time.Second + time.Duration(rnd.Int64N(int64(2*time.Second)))
	}
	return d
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
