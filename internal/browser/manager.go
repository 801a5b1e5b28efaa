// Package browser provisions the automated browser used by the check loop.
package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"

	"github.com/shehryarbajwa/campuswatch/pkg/models"
)

// Manager creates, recycles and releases browser sessions. It is used from
// the check loop's goroutine only.
type Manager struct {
	provisioners []Provisioner
	opts         Options
	log          *log.Logger
	rnd          *rand.Rand
	now          func() time.Time
	open         func(context.Context, *Allocation, Fingerprint) (*Session, error)
}

// NewManager returns a Manager trying provisioners in the given order.
func NewManager(opts Options, logger *log.Logger, provisioners ...Provisioner) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	m := &Manager{
		provisioners: provisioners,
		opts:         opts.withDefaults(),
		log:          logger,
		rnd:          rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(time.Now().Unix()))),
		now:          time.Now,
	}
	m.open = m.openTab
	return m
}

// Acquire starts a new session from the first provisioner that works. When
// every provisioner fails their errors are joined and returned.
func (m *Manager) Acquire(ctx context.Context) (*Session, error) {
	if len(m.provisioners) == 0 {
		return nil, ErrNoProvisioner
	}

	fp := RandomFingerprint(m.rnd)
	var errs []error
	for _, p := range m.provisioners {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := m.start(ctx, p, fp)
		if err != nil {
			m.log.Warn("Browser provisioner failed", "provider", p.Name(), "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		m.log.Info("✅ Browser session started",
			"id", shortID(s.info.ID), "provider", p.Name(), "viewport", s.info.Viewport, "ua", s.info.UserAgent)
		return s, nil
	}
	return nil, fmt.Errorf("failed to start browser: %w", errors.Join(errs...))
}

func (m *Manager) start(ctx context.Context, p Provisioner, fp Fingerprint) (*Session, error) {
	alloc, err := p.Allocate(ctx, m.opts, fp)
	if err != nil {
		return nil, err
	}

	s, err := m.open(ctx, alloc, fp)
	if err != nil {
		if alloc.Cancel != nil {
			alloc.Cancel()
		}
		if alloc.Cleanup != nil {
			if cerr := alloc.Cleanup(context.WithoutCancel(ctx)); cerr != nil {
				m.log.Warn("Browser cleanup failed", "provider", p.Name(), "err", cerr)
			}
		}
		return nil, err
	}

	s.info = models.BrowserSession{
		ID:          uuid.New().String(),
		Provider:    p.Name(),
		Status:      models.StatusRunning,
		StartedAt:   m.now(),
		UserAgent:   fp.UserAgent,
		Viewport:    fp.Viewport.String(),
		ConnectURL:  alloc.ConnectURL,
		ContainerID: alloc.ContainerID,
	}
	return s, nil
}

// openTab opens a tab on alloc, applies the fingerprint and stealth script,
// then loads the target page and plants returning-visitor cookies.
func (m *Manager) openTab(ctx context.Context, alloc *Allocation, fp Fingerprint) (*Session, error) {
	tabCtx, cancelTab := chromedp.NewContext(alloc.Ctx)
	s := &Session{
		ctx: tabCtx,
		cancel: func() {
			cancelTab()
			if alloc.Cancel != nil {
				alloc.Cancel()
			}
		},
		cleanup:  alloc.Cleanup,
		loadWait: m.opts.PageLoadTimeout,
	}

	err := s.run(ctx, m.opts.PageLoadTimeout,
		emulation.SetUserAgentOverride(fp.UserAgent).WithAcceptLanguage(acceptLanguage(m.opts.Languages)),
		emulation.SetDeviceMetricsOverride(int64(fp.Viewport.Width), int64(fp.Viewport.Height), 1, false),
		emulation.SetTimezoneOverride(m.opts.Timezone),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
			return err
		}),
	)
	if err != nil {
		cancelTab()
		return nil, fmt.Errorf("failed to prepare tab: %w", err)
	}

	if m.opts.TargetURL == "" {
		return s, nil
	}
	if err := s.Navigate(ctx, m.opts.TargetURL); err != nil {
		cancelTab()
		return nil, fmt.Errorf("failed to load target page: %w", err)
	}

	for _, c := range visitorCookies(m.rnd, m.now()) {
		expires := cdp.TimeSinceEpoch(c.Expires)
		err := s.run(ctx, actionTimeout, network.SetCookie(c.Name, c.Value).
			WithDomain(m.opts.CookieDomain).
			WithPath("/").
			WithSecure(true).
			WithExpires(&expires))
		if err != nil {
			m.log.Debug("Failed to add cookie", "name", c.Name, "err", err)
		}
	}
	return s, nil
}

// Release closes the session and whatever backs it. It is safe to call with nil.
func (m *Manager) Release(s *Session) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.close(ctx); err != nil {
		m.log.Warn("Failed to release browser", "id", shortID(s.info.ID), "err", err)
	}
	s.info.Status = models.StatusCompleted
	m.log.Info("🔌 Browser session closed", "id", shortID(s.info.ID), "provider", s.info.Provider)
}

// Recycle releases s and starts a fresh session in its place.
func (m *Manager) Recycle(ctx context.Context, s *Session) (*Session, error) {
	m.Release(s)
	return m.Acquire(ctx)
}

// Close releases provisioner resources such as the docker client.
func (m *Manager) Close() error {
	var errs []error
	for _, p := range m.provisioners {
		if c, ok := p.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
