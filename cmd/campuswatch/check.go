package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shehryarbajwa/campuswatch/internal/monitor"
	"github.com/shehryarbajwa/campuswatch/internal/store"
	"github.com/shehryarbajwa/campuswatch/internal/work"
	"github.com/shehryarbajwa/campuswatch/pkg/models"
)

func newCheckCmd(g *globals) *cobra.Command {
	var notify bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run a single availability check and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, g)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return a.checkOnce(ctx, cmd.OutOrStdout(), notify)
		},
	}

	cmd.Flags().BoolVar(&notify, "notify", false, "send Telegram notifications for newly available apartments")
	return cmd
}

// lastCheck keeps the most recent check event.
type lastCheck struct {
	mu sync.Mutex
	ev *models.Event
}

func (l *lastCheck) Publish(ev models.Event) {
	if ev.Type != models.EventCheck {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ev = &ev
}

func (l *lastCheck) event() *models.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ev
}

func (a *app) checkOnce(ctx context.Context, out io.Writer, notify bool) error {
	captured := &lastCheck{}
	deps := monitor.Deps{
		Prober:   a.prober(),
		Schedule: a.cfg.Evaluator(),
		Events:   captured,
	}

	if notify {
		tg, err := a.telegram()
		if err != nil {
			return err
		}
		deps.Sender = tg
	}

	hist, err := a.openStore(ctx)
	if err != nil {
		a.log.Warn("History store unavailable, result will not be recorded", "err", err)
	} else {
		defer hist.Close()
	}
	queue := work.NewQueue(1, 16, a.log.WithPrefix("work"))
	defer queue.Close()
	if hist != nil {
		deps.Recorder = store.NewRecorder(hist, queue)
	}

	manager := a.browserManager()
	defer manager.Close()
	deps.Sessions = monitor.BrowserSessions(manager)

	mon := monitor.New(monitor.Options{URL: a.cfg.TargetURL, Once: true}, deps, a.log.WithPrefix("monitor"))
	runErr := mon.Run(ctx)

	if ev := captured.event(); ev != nil {
		printCheck(out, *ev, a.cfg.Location)
	}
	if runErr != nil {
		return fmt.Errorf("check failed: %w", runErr)
	}
	return nil
}
