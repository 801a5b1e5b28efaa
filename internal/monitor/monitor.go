// Package monitor drives the check loop: probe the page, notify on change,
// wait for the next slot, repeat.
//
// A single goroutine owns the loop and the browser session. Persistence and
// the live feed are handed off to their own workers; other goroutines only
// read the Status snapshot.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/shehryarbajwa/campuswatch/internal/alert"
	"github.com/shehryarbajwa/campuswatch/internal/notify"
	"github.com/shehryarbajwa/campuswatch/internal/probe"
	"github.com/shehryarbajwa/campuswatch/internal/schedule"
	"github.com/shehryarbajwa/campuswatch/pkg/models"
)

// State is the loop's current phase.
type State int

const (
	StateIdle State = iota
	StateChecking
	StateNotifying
	StateSleeping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateChecking:
		return "checking"
	case StateNotifying:
		return "notifying"
	case StateSleeping:
		return "sleeping"
	default:
		return "stopped"
	}
}

// Session is a live browser tab the probe can drive.
type Session interface {
	probe.Page
	Info() models.BrowserSession
}

// Sessions creates and replaces browser sessions.
type Sessions interface {
	Acquire(ctx context.Context) (Session, error)
	// Recycle releases s and returns a fresh session.
	Recycle(ctx context.Context, s Session) (Session, error)
	Release(s Session)
}

type Prober interface {
	Run(ctx context.Context, page probe.Page) ([]models.CheckResult, error)
}

// Sender delivers a chat message and reports whether it arrived.
type Sender interface {
	Send(ctx context.Context, text string) bool
}

// Commands returns operator commands received since the last poll.
type Commands interface {
	Poll(ctx context.Context) []string
}

// Recorder persists history without blocking.
type Recorder interface {
	Results(checkID string, results []models.CheckResult)
	Notification(message string, sent bool, at time.Time)
	Check(date string, found, failed bool)
}

// History answers the report queries.
type History interface {
	LatestAvailability(ctx context.Context, limit int) ([]models.AvailabilityRecord, error)
	Daily(ctx context.Context, date string) (models.DailyStats, error)
	RecentDays(ctx context.Context, n int) ([]models.DailyStats, error)
	Totals(ctx context.Context) (models.Totals, error)
	ByCategory(ctx context.Context) ([]models.CategoryTotals, error)
}

// Publisher fans events out to live subscribers.
type Publisher interface {
	Publish(ev models.Event)
}

// Options tunes the loop. Zero values fall back to defaults.
type Options struct {
	// URL is linked from availability notices.
	URL string
	// RecycleEvery is the number of checks between scheduled browser recycles.
	RecycleEvery   int
	ErrorThreshold int
	// ErrorPenalty replaces the scheduled wait after a failed check.
	ErrorPenalty time.Duration
	// PollSlice is how often commands are polled while sleeping.
	PollSlice time.Duration
	// Once runs a single check and returns.
	Once bool
}

// Deps are the collaborators of a Monitor. Sessions, Prober and Schedule are
// required; the rest may be nil.
type Deps struct {
	Sessions Sessions
	Prober   Prober
	Schedule *schedule.Evaluator
	Sender   Sender
	Commands Commands
	Recorder Recorder
	History  History
	Alerter  alert.Alerter
	Events   Publisher
}

// Status is a point-in-time copy of the loop's state.
type Status struct {
	State             State
	StartedAt         time.Time
	LastCheck         time.Time
	NextCheck         time.Time
	Tier              models.Tier
	Checks            int
	ConsecutiveErrors int
	SinceRecycle      int
	Recycles          int
	LastError         string
	Session           models.BrowserSession
	Notified          []models.Category
}

// Running reports whether the loop has started and not yet stopped.
func (s Status) Running() bool {
	return !s.StartedAt.IsZero() && s.State != StateStopped
}

type outcome int

const (
	outcomeOK outcome = iota
	outcomeStructural
	outcomeFailed
)

type Monitor struct {
	opts     Options
	sessions Sessions
	prober   Prober
	schedule *schedule.Evaluator
	sender   Sender
	commands Commands
	recorder Recorder
	history  History
	alerter  alert.Alerter
	events   Publisher
	log      *log.Logger
	now      func() time.Time
	sleep    func(context.Context, time.Duration) error

	// Owned by the loop goroutine.
	tracker      *notify.Tracker
	session      Session
	consecutive  int
	sinceRecycle int

	mu     sync.RWMutex
	status Status
}

func New(opts Options, deps Deps, logger *log.Logger) *Monitor {
	if opts.RecycleEvery <= 0 {
		opts.RecycleEvery = 10
	}
	if opts.ErrorThreshold <= 0 {
		opts.ErrorThreshold = 5
	}
	if opts.ErrorPenalty <= 0 {
		opts.ErrorPenalty = 60 * time.Second
	}
	if opts.PollSlice <= 0 {
		opts.PollSlice = 10 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}

	m := &Monitor{
		opts:     opts,
		sessions: deps.Sessions,
		prober:   deps.Prober,
		schedule: deps.Schedule,
		sender:   deps.Sender,
		commands: deps.Commands,
		recorder: deps.Recorder,
		history:  deps.History,
		alerter:  deps.Alerter,
		events:   deps.Events,
		log:      logger,
		now:      time.Now,
		sleep:    probe.Sleep,
		tracker:  notify.NewTracker(),
	}
	if m.sender == nil {
		m.sender = nopSender{}
	}
	if m.recorder == nil {
		m.recorder = nopRecorder{}
	}
	if m.alerter == nil {
		m.alerter = alert.Nop{}
	}
	if m.events == nil {
		m.events = nopPublisher{}
	}
	return m
}

// WithClock replaces the time source and the sleeper.
func (m *Monitor) WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) *Monitor {
	m.now = now
	m.sleep = sleep
	return m
}

// Status returns a snapshot safe to use from any goroutine.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := m.status
	st.Notified = append([]models.Category(nil), m.status.Notified...)
	return st
}

func (m *Monitor) update(fn func(*Status)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.status)
}

func (m *Monitor) setState(s State) {
	m.update(func(st *Status) { st.State = s })
}

// Announce sends the startup notice. It fails when the message could not be
// delivered, which usually means the chat credentials are wrong.
func (m *Monitor) Announce(ctx context.Context) error {
	if !m.send(ctx, startupMessage(m.now(), m.schedule)) {
		return errors.New("failed to deliver startup notice")
	}
	return nil
}

// Run acquires a browser session and loops until ctx is done. The session is
// released on every exit path. A session that cannot be created or replaced
// stops the loop with an error; an interrupted loop returns nil.
func (m *Monitor) Run(ctx context.Context) error {
	m.update(func(st *Status) {
		st.State = StateIdle
		st.StartedAt = m.now()
	})
	defer m.setState(StateStopped)

	sess, err := m.sessions.Acquire(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		m.stopped(ctx, err)
		return fmt.Errorf("failed to start browser session: %w", err)
	}
	m.setSession(sess)
	defer func() {
		m.sessions.Release(m.session)
		m.session = nil
	}()

	if m.opts.Once {
		m.log.Info("Running a single check")
		if _, err := m.check(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	}

	for ctx.Err() == nil {
		result, _ := m.check(ctx)
		if ctx.Err() != nil {
			break
		}

		if result == outcomeFailed {
			if err := m.recycle(ctx, "error"); err != nil {
				return err
			}
			m.log.Info("Waiting before the next attempt", "penalty", m.opts.ErrorPenalty)
			m.update(func(st *Status) { st.NextCheck = m.now().Add(m.opts.ErrorPenalty) })
			if err := m.wait(ctx, m.opts.ErrorPenalty); err != nil {
				break
			}
			continue
		}

		d := m.schedule.Next(m.now())
		m.update(func(st *Status) {
			st.NextCheck = d.At
			st.Tier = d.Tier
		})
		m.log.Info(tierIcon(d.Tier)+" Next check scheduled", "tier", d.Tier, "in", d.Interval.Round(time.Second), "at", d.At.In(m.schedule.Location).Format(time.TimeOnly))
		if err := m.wait(ctx, d.Interval); err != nil {
			break
		}

		if m.sinceRecycle >= m.opts.RecycleEvery {
			if err := m.recycle(ctx, "scheduled"); err != nil {
				return err
			}
		}
	}

	m.log.Info("🛑 Monitor stopped")
	return nil
}

// check runs one probe and records and notifies its outcome. The returned
// error is the probe's, nil on success.
func (m *Monitor) check(ctx context.Context) (outcome, error) {
	m.setState(StateChecking)
	checkID := uuid.NewString()
	at := m.now()
	m.log.Info("🔍 Checking availability", "check", checkID[:8])

	results, err := m.prober.Run(ctx, m.session)
	if err != nil && ctx.Err() != nil {
		return outcomeFailed, err
	}

	date := at.In(m.schedule.Location).Format(models.DateLayout)
	m.sinceRecycle++
	ev := models.Event{Type: models.EventCheck, At: at, CheckID: checkID}

	var result outcome
	switch {
	case err == nil:
		result = outcomeOK
		m.consecutive = 0
		available := models.AvailableSet(results)
		for _, r := range results {
			m.log.Info(r.Category.DisplayName(), "availability", r.AvailabilityText, "button", r.ButtonText, "available", r.Available)
		}
		m.recorder.Results(checkID, results)
		m.recorder.Check(date, len(available) > 0, false)
		ev.Outcome, ev.Results = "ok", results

	case errors.Is(err, probe.ErrStructural):
		result = outcomeStructural
		m.log.Warn("Availability container not found, skipping this check", "err", err)
		m.recorder.Check(date, false, true)
		ev.Outcome, ev.Error = "structural", err.Error()

	default:
		result = outcomeFailed
		m.consecutive++
		m.log.Error("Error during check", "err", err, "consecutive", m.consecutive)
		m.recorder.Check(date, false, true)
		ev.Outcome, ev.Error = "error", err.Error()
	}

	m.update(func(st *Status) {
		st.LastCheck = at
		st.Checks++
		st.Session.Checks++
		st.ConsecutiveErrors = m.consecutive
		st.SinceRecycle = m.sinceRecycle
		if err != nil {
			st.LastError = err.Error()
		}
	})
	m.events.Publish(ev)

	m.setState(StateNotifying)
	switch result {
	case outcomeOK:
		m.notifyChanges(ctx, results)
	case outcomeFailed:
		if m.consecutive == m.opts.ErrorThreshold {
			m.log.Warn("Error threshold reached, escalating", "consecutive", m.consecutive)
			m.send(ctx, escalationMessage(m.consecutive, err))
		}
	}
	return result, err
}

// notifyChanges compares the available set with what was last announced.
// Failed checks never get here, so they cannot clear the announced set.
func (m *Monitor) notifyChanges(ctx context.Context, results []models.CheckResult) {
	available := models.AvailableSet(results)
	diff := m.tracker.Diff(available)

	switch {
	case len(diff.NewlyAvailable) > 0:
		m.log.Info("🎉 New apartments available!", "categories", diff.NewlyAvailable)
		m.send(ctx, availableMessage(diff.NewlyAvailable, results, m.opts.URL))
		if err := m.alerter.Alert(ctx, diff.NewlyAvailable, m.opts.URL); err != nil {
			m.log.Warn("Alert failed", "err", err)
		}
	case diff.Cleared:
		m.log.Info("Previously available apartments are gone")
		m.send(ctx, clearedMessage)
	case len(available) > 0:
		m.log.Info("No new apartments since last check")
	default:
		m.log.Info("No apartments available currently")
	}

	notified := m.tracker.Notified()
	m.update(func(st *Status) { st.Notified = notified })
}

// wait sleeps for d in slices, polling commands on entry and after each slice.
func (m *Monitor) wait(ctx context.Context, d time.Duration) error {
	m.setState(StateSleeping)
	m.pollCommands(ctx)
	for remaining := d; remaining > 0; {
		slice := min(remaining, m.opts.PollSlice)
		if err := m.sleep(ctx, slice); err != nil {
			return err
		}
		remaining -= slice
		m.pollCommands(ctx)
	}
	return nil
}

func (m *Monitor) pollCommands(ctx context.Context) {
	if m.commands == nil {
		return
	}
	for _, cmd := range m.commands.Poll(ctx) {
		reply, ok := m.Reply(ctx, cmd)
		if !ok {
			m.log.Debug("Ignoring unknown command", "command", cmd)
			continue
		}
		m.log.Info("Answering command", "command", cmd)
		m.send(ctx, reply)
	}
}

func (m *Monitor) recycle(ctx context.Context, reason string) error {
	m.log.Info("♻️ Recycling browser session", "reason", reason)
	next, err := m.sessions.Recycle(ctx, m.session)
	m.sinceRecycle = 0
	if err != nil {
		m.session = nil
		if ctx.Err() != nil {
			return nil
		}
		m.stopped(ctx, err)
		return fmt.Errorf("failed to recycle browser session: %w", err)
	}
	m.setSession(next)
	m.update(func(st *Status) { st.Recycles++ })
	return nil
}

func (m *Monitor) setSession(s Session) {
	m.session = s
	info := s.Info()
	m.update(func(st *Status) {
		st.Session = info
		st.SinceRecycle = m.sinceRecycle
	})
	m.events.Publish(models.Event{Type: models.EventSession, At: m.now(), Message: info.Provider})
}

// stopped tells the operator the loop cannot continue.
func (m *Monitor) stopped(ctx context.Context, err error) {
	m.log.Error("Cannot continue without a browser", "err", err)
	m.update(func(st *Status) { st.LastError = err.Error() })
	m.send(ctx, stoppedMessage(err))
	m.events.Publish(models.Event{Type: models.EventStopped, At: m.now(), Error: err.Error()})
}

// send delivers text and records the attempt whatever the result.
func (m *Monitor) send(ctx context.Context, text string) bool {
	sent := m.sender.Send(ctx, text)
	at := m.now()
	m.recorder.Notification(text, sent, at)
	m.events.Publish(models.Event{Type: models.EventNotification, At: at, Message: text, Sent: sent})
	return sent
}

type nopSender struct{}

func (nopSender) Send(context.Context, string) bool { return false }

type nopRecorder struct{}

func (nopRecorder) Results(string, []models.CheckResult) {}
func (nopRecorder) Notification(string, bool, time.Time) {}
func (nopRecorder) Check(string, bool, bool)             {}

type nopPublisher struct{}

func (nopPublisher) Publish(models.Event) {}
