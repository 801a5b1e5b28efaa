package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/shehryarbajwa/campuswatch/internal/alert"
	"github.com/shehryarbajwa/campuswatch/internal/api"
	"github.com/shehryarbajwa/campuswatch/internal/monitor"
	"github.com/shehryarbajwa/campuswatch/internal/ratelimit"
	"github.com/shehryarbajwa/campuswatch/internal/store"
	"github.com/shehryarbajwa/campuswatch/internal/work"
)

// Requests per minute per client on /metrics and /status.
const reportRequestsPerMinute = 60

func newRunCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the monitor until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, g)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := a.run(ctx); err != nil {
				a.log.Error("Monitor exited", "err", err)
				return err
			}
			return nil
		},
	}
}

func (a *app) run(ctx context.Context) error {
	a.log.Info("Starting campuswatch...", "version", Version, "profile", describeProfile(a.cfg.Profile))

	tg, err := a.telegram()
	if err != nil {
		return err
	}

	deps := monitor.Deps{
		Prober:   a.prober(),
		Schedule: a.cfg.Evaluator(),
		Sender:   tg,
		Commands: tg,
	}

	// Deferred in reverse: pending writes drain before the store closes.
	hist, err := a.openStore(ctx)
	if err != nil {
		a.log.Warn("History store unavailable, running without statistics", "err", err)
	} else {
		defer hist.Close()
	}
	queue := work.NewQueue(2, 256, a.log.WithPrefix("work"))
	defer queue.Close()
	if hist != nil {
		deps.Recorder = store.NewRecorder(hist, queue)
		deps.History = hist
	}

	if a.cfg.Profile.Alert && a.cfg.AlertCommand != "" {
		deps.Alerter = alert.New(a.cfg.AlertCommand)
		a.log.Info("✓ Alert command enabled")
	}

	var feed *api.Feed
	if a.cfg.HealthEnabled {
		feed = api.NewFeed(64, a.log.WithPrefix("api"))
		deps.Events = feed
	}

	manager := a.browserManager()
	defer manager.Close()
	deps.Sessions = monitor.BrowserSessions(manager)

	mon := monitor.New(monitor.Options{
		URL:            a.cfg.TargetURL,
		RecycleEvery:   a.cfg.RecycleEvery,
		ErrorThreshold: a.cfg.ErrorThreshold,
		ErrorPenalty:   a.cfg.ErrorPenalty,
		PollSlice:      a.cfg.CommandPoll,
	}, deps, a.log.WithPrefix("monitor"))

	if err := mon.Announce(ctx); err != nil {
		return err
	}

	var srv *http.Server
	if a.cfg.HealthEnabled {
		var history api.History
		if hist != nil {
			history = hist
		}
		handler := api.NewHandler(mon, history, queue, feed, a.cfg.Location, a.log.WithPrefix("api"))
		limiter := ratelimit.NewLimiter(reportRequestsPerMinute, 10)
		srv = &http.Server{
			Addr:         fmt.Sprintf(":%d", a.cfg.HealthPort),
			Handler:      handler.SetupRoutes(limiter, reportRequestsPerMinute),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	group, gctx := errgroup.WithContext(runCtx)

	group.Go(func() error {
		defer cancel()
		return mon.Run(gctx)
	})

	if srv != nil {
		group.Go(func() error {
			a.log.Info("🚀 Health server starting", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				// The monitor keeps running without its health endpoint.
				a.log.Error("Health server error", "err", err)
			}
			return nil
		})
		group.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("health server forced to shutdown: %w", err)
			}
			a.log.Info("Health server stopped")
			return nil
		})
	}

	err = group.Wait()
	a.log.Info("⏳ Flushing history writes...")
	return err
}
