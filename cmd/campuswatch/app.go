package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/shehryarbajwa/campuswatch/internal/browser"
	"github.com/shehryarbajwa/campuswatch/internal/config"
	"github.com/shehryarbajwa/campuswatch/internal/logging"
	"github.com/shehryarbajwa/campuswatch/internal/probe"
	"github.com/shehryarbajwa/campuswatch/internal/store"
	"github.com/shehryarbajwa/campuswatch/internal/telegram"
)

// app carries what every subcommand needs: configuration and a logger.
type app struct {
	cfg  config.Config
	sink *logging.Sink
	log  *log.Logger
}

// setup loads configuration and opens the logger. Flags take precedence over
// the environment, which takes precedence over the dotenv file.
func setup(cmd *cobra.Command, g *globals) (*app, error) {
	if g.profile != "" {
		os.Setenv("PROFILE", g.profile)
	}
	if g.logLevel != "" {
		os.Setenv("LOG_LEVEL", g.logLevel)
	}

	cfg, err := config.Load(g.envFile)
	if err != nil {
		return nil, err
	}

	sink, err := logging.Open(cfg.LogLevel, cfg.LogDir, cmd.ErrOrStderr(), time.Now())
	if err != nil {
		return nil, err
	}
	logger := sink.Logger

	if !cfg.DotEnv {
		logger.Info("No .env file found, using system environment variables", "file", g.envFile)
	}
	if sink.Path != "" {
		logger.Debug("Logging to file", "path", sink.Path)
	}
	for _, err := range cfg.Evaluator().Validate() {
		logger.Warn("Schedule problem", "err", err)
	}

	return &app{cfg: cfg, sink: sink, log: logger}, nil
}

func (a *app) Close() error {
	return a.sink.Close()
}

// openStore opens Postgres when DATABASE_URL is set and the sqlite file
// otherwise.
func (a *app) openStore(ctx context.Context) (store.Store, error) {
	if a.cfg.DatabaseURL != "" {
		s, err := store.OpenPostgres(ctx, a.cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.log.Info("✓ Postgres history store ready")
		return s, nil
	}

	s, err := store.OpenSQLite(a.cfg.DBPath)
	if err != nil {
		return nil, err
	}
	a.log.Info("✓ SQLite history store ready", "path", a.cfg.DBPath)
	return s, nil
}

// browserManager builds the session manager with provisioners in fallback
// order: container, explicit Chrome binary, discovered Chrome.
func (a *app) browserManager() *browser.Manager {
	logger := a.log.WithPrefix("browser")

	var provisioners []browser.Provisioner
	if a.cfg.BrowserContainer {
		cp, err := browser.NewContainerProvisioner()
		if err != nil {
			logger.Warn("Container provisioner unavailable, using local Chrome", "err", err)
		} else {
			provisioners = append(provisioners, cp)
		}
	}
	if a.cfg.ChromePath != "" {
		provisioners = append(provisioners, browser.ExecProvisioner{Path: a.cfg.ChromePath})
	}
	provisioners = append(provisioners, browser.ExecProvisioner{})

	opts := browser.Options{
		TargetURL:    a.cfg.TargetURL,
		CookieDomain: a.cfg.CookieDomain,
		Headless:     a.cfg.Profile.Headless,
		Timezone:     a.cfg.Location.String(),
	}
	m := browser.NewManager(opts, logger, provisioners...)

	names := make([]string, len(provisioners))
	for i, p := range provisioners {
		names[i] = p.Name()
	}
	a.log.Info("✓ Browser manager initialized", "provisioners", names, "headless", opts.Headless)
	return m
}

func (a *app) prober() *probe.Probe {
	p := a.cfg.Profile
	return probe.New(probe.Options{
		URL:           a.cfg.TargetURL,
		ClickAttempts: p.ClickAttempts,
		SettleDelay:   p.SettleDelay,
		Humanize:      p.Humanize,
	}, a.log.WithPrefix("probe"))
}

func (a *app) telegram() (*telegram.Client, error) {
	if err := a.cfg.RequireTelegram(); err != nil {
		return nil, err
	}
	c, err := telegram.New(a.cfg.TelegramToken, a.cfg.TelegramChatID, telegram.Options{}, a.log.WithPrefix("telegram"))
	if err != nil {
		return nil, err
	}
	a.log.Info("✓ Telegram client initialized", "chat", a.cfg.TelegramChatID)
	return c, nil
}

func describeProfile(p config.Profile) string {
	return fmt.Sprintf("%s (headless=%t, clicks=%d, settle=%s)", p.Name, p.Headless, p.ClickAttempts, p.SettleDelay)
}
