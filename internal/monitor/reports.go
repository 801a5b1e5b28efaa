package monitor

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/shehryarbajwa/campuswatch/internal/schedule"
	"github.com/shehryarbajwa/campuswatch/internal/store"
	"github.com/shehryarbajwa/campuswatch/pkg/models"
)

const stampLayout = "2006-01-02 15:04:05"

const clearedMessage = "ℹ️ <b>OurCampus Update</b> ℹ️\n\nPreviously available apartments are no longer listed."

const helpMessage = "🏠 <b>OurCampus Monitor Help</b>\n\n" +
	"Available commands:\n" +
	"• /last - Show last check time and latest availability\n" +
	"• /status - Show full status of the monitor\n" +
	"• /stats - Show detailed statistics\n" +
	"• /restart - Show how to restart the monitor\n" +
	"• /help - Show this help message"

const restartMessage = "⚠️ <b>Restart Request</b>\n\n" +
	"The monitor can't restart itself from chat.\n\n" +
	"To restart it manually:\n" +
	"1. Connect to your server\n" +
	"2. Stop the current process\n" +
	"3. Run 'campuswatch run'\n\n" +
	"A systemd unit with Restart=on-failure brings it back automatically after a crash."

// Reply answers an operator command. It reports false for commands it
// does not know.
func (m *Monitor) Reply(ctx context.Context, command string) (string, bool) {
	switch command {
	case "/last":
		return m.lastReport(ctx), true
	case "/status":
		return m.statusReport(ctx), true
	case "/stats":
		return m.statsReport(ctx), true
	case "/help":
		return helpMessage, true
	case "/restart":
		return restartMessage, true
	default:
		return "", false
	}
}

func (m *Monitor) stamp(t time.Time) string {
	return t.In(m.schedule.Location).Format(stampLayout)
}

func (m *Monitor) lastReport(ctx context.Context) string {
	st := m.Status()
	if st.LastCheck.IsZero() {
		return "❓ No checks have been performed yet"
	}

	var b strings.Builder
	b.WriteString("✅ <b>Last Apartment Check</b>\n\n")
	fmt.Fprintf(&b, "Last checked: %s\n", m.stamp(st.LastCheck))
	fmt.Fprintf(&b, "(%d minutes ago)", int(m.now().Sub(st.LastCheck).Minutes()))

	if m.history == nil {
		return b.String()
	}
	latest, err := m.history.LatestAvailability(ctx, 2*len(models.Categories))
	if err != nil {
		m.log.Error("Error getting last availability from database", "err", err)
		return b.String()
	}
	if len(latest) > 0 {
		b.WriteString("\n\n<b>Latest availability info:</b>\n")
		for _, r := range latest {
			status := "❌ Not available"
			if r.Available {
				status = "✅ AVAILABLE"
			}
			fmt.Fprintf(&b, "• %s: %s (%s)\n", r.Category.DisplayName(), status, html.EscapeString(r.ButtonText))
		}
	}
	return b.String()
}

func (m *Monitor) statusReport(ctx context.Context) string {
	st := m.Status()
	now := m.now()

	var b strings.Builder
	b.WriteString("🏠 <b>OurCampus Monitor Status</b>\n\n")
	b.WriteString("• Monitor is running: ✅\n")
	fmt.Fprintf(&b, "• Started at: %s\n", m.stamp(st.StartedAt))
	fmt.Fprintf(&b, "• Uptime: %s\n", uptime(now.Sub(st.StartedAt)))

	if st.LastCheck.IsZero() {
		b.WriteString("• Last check: None yet\n")
	} else {
		fmt.Fprintf(&b, "• Last check: %s\n", m.stamp(st.LastCheck))
		fmt.Fprintf(&b, "• Time since last check: %d minutes\n", int(now.Sub(st.LastCheck).Minutes()))
	}

	if st.NextCheck.IsZero() || !st.NextCheck.After(now) {
		b.WriteString("• Next check: In progress or coming shortly\n")
	} else {
		fmt.Fprintf(&b, "• Next check: %s\n", st.NextCheck.In(m.schedule.Location).Format(time.TimeOnly))
		fmt.Fprintf(&b, "• Time until next check: %d seconds\n", int(st.NextCheck.Sub(now).Seconds()))
	}

	tier := m.schedule.TierAt(now)
	fmt.Fprintf(&b, "• Current priority: %s %s (checking every %s)\n", tierIcon(tier), tier, describeRange(m.schedule.Range(tier)))

	if st.Session.ID != "" {
		fmt.Fprintf(&b, "• Browser: %s, %d checks since start\n", st.Session.Provider, st.Session.Checks)
	}
	if st.ConsecutiveErrors > 0 {
		fmt.Fprintf(&b, "• Consecutive errors: %d\n", st.ConsecutiveErrors)
	}

	if m.history == nil {
		return b.String()
	}

	today, err := m.history.Daily(ctx, now.In(m.schedule.Location).Format(models.DateLayout))
	switch {
	case err == nil:
		b.WriteString("\n<b>Today's Stats:</b>\n")
		fmt.Fprintf(&b, "• Checks performed: %d\n", today.Checks)
		fmt.Fprintf(&b, "• Availabilities found: %d\n", today.AvailabilitiesFound)
		fmt.Fprintf(&b, "• Errors encountered: %d\n", today.Errors)
	case !errors.Is(err, store.ErrNotFound):
		m.log.Error("Error getting stats from database", "err", err)
	}

	totals, err := m.history.Totals(ctx)
	if err != nil {
		m.log.Error("Error getting stats from database", "err", err)
		return b.String()
	}
	b.WriteString("\n<b>All-time Stats:</b>\n")
	fmt.Fprintf(&b, "• Total checks: %d\n", totals.Checks)
	fmt.Fprintf(&b, "• Total availabilities: %d\n", totals.Available)
	return b.String()
}

func (m *Monitor) statsReport(ctx context.Context) string {
	if m.history == nil {
		return "⚠️ Database not available for statistics."
	}

	totals, err := m.history.Totals(ctx)
	if err != nil {
		return statsError(err)
	}
	if totals.Checks == 0 {
		return "📊 No checks recorded yet."
	}
	byCategory, err := m.history.ByCategory(ctx)
	if err != nil {
		return statsError(err)
	}
	days, err := m.history.RecentDays(ctx, 5)
	if err != nil {
		return statsError(err)
	}

	var b strings.Builder
	b.WriteString("📊 <b>OurCampus Monitor Statistics</b>\n\n")
	b.WriteString("<b>Overview:</b>\n")
	fmt.Fprintf(&b, "• Days monitored: %d\n", totals.DaysMonitored)
	fmt.Fprintf(&b, "• Total checks: %d\n", totals.Checks)
	fmt.Fprintf(&b, "• Total availabilities found: %d\n", totals.Available)
	fmt.Fprintf(&b, "• Availability rate: %.2f%%\n\n", totals.Rate())

	b.WriteString("<b>By Apartment Type:</b>\n")
	for _, c := range byCategory {
		fmt.Fprintf(&b, "• %s: %d/%d (%.2f%%)\n", c.Category.DisplayName(), c.Available, c.Checks, c.Rate())
	}

	b.WriteString("\n<b>Last 5 Days:</b>\n")
	for _, d := range days {
		fmt.Fprintf(&b, "• %s: %d checks, %d available, %d errors\n", d.Date, d.Checks, d.AvailabilitiesFound, d.Errors)
	}
	return b.String()
}

func statsError(err error) string {
	return "⚠️ Error generating statistics: " + html.EscapeString(err.Error())
}

func startupMessage(started time.Time, e *schedule.Evaluator) string {
	var b strings.Builder
	b.WriteString("🏠 <b>OurCampus Monitor Started</b> 🏠\n\n")
	fmt.Fprintf(&b, "Monitoring started at: %s\n", started.In(e.Location).Format(stampLayout))
	b.WriteString("Priority-based checking:\n")
	fmt.Fprintf(&b, "• High Priority: %s (%s)\n", describeRange(e.Range(models.TierHigh)), describeWindows(e.High))
	fmt.Fprintf(&b, "• Medium Priority: %s (%s)\n", describeRange(e.Range(models.TierMedium)), describeWindows(e.Medium))
	fmt.Fprintf(&b, "• Normal Priority: %s (All other times)\n\n", describeRange(e.Range(models.TierNormal)))
	b.WriteString("I'll notify you as soon as apartments become available!\n\n")
	b.WriteString("Available commands:\n")
	b.WriteString("• /last - Show last check time\n")
	b.WriteString("• /status - Show full status\n")
	b.WriteString("• /stats - Show detailed statistics\n")
	b.WriteString("• /help - Show available commands")
	return b.String()
}

func availableMessage(newly []models.Category, results []models.CheckResult, url string) string {
	buttons := make(map[models.Category]string, len(results))
	for _, r := range results {
		buttons[r.Category] = r.ButtonText
	}

	var b strings.Builder
	b.WriteString("🎉 <b>OurCampus Apartments Available!</b> 🎉\n\n")
	b.WriteString("The following apartments are now available:\n\n")
	for _, c := range newly {
		fmt.Fprintf(&b, "• %s - Button says: %s\n", c.DisplayName(), html.EscapeString(buttons[c]))
	}
	fmt.Fprintf(&b, "\n🔗 <a href='%s'>Click here to apply now!</a>", html.EscapeString(url))
	return b.String()
}

func escalationMessage(n int, err error) string {
	return fmt.Sprintf("🚨 <b>OurCampus Monitor Errors</b>\n\n%d consecutive checks have failed.\nLast error: <code>%s</code>",
		n, html.EscapeString(err.Error()))
}

func stoppedMessage(err error) string {
	return fmt.Sprintf("🛑 <b>OurCampus Monitor Stopped</b>\n\nNo browser session could be started.\nError: <code>%s</code>",
		html.EscapeString(err.Error()))
}

func tierIcon(t models.Tier) string {
	switch t {
	case models.TierHigh:
		return "🔥"
	case models.TierMedium:
		return "⚡"
	default:
		return "🕙"
	}
}

func describeRange(r models.IntervalRange) string {
	return fmt.Sprintf("%s-%s", r.Min.Round(time.Second), r.Max.Round(time.Second))
}

func describeWindows(ws []models.PriorityWindow) string {
	if len(ws) == 0 {
		return "none"
	}
	parts := make([]string, len(ws))
	for i, w := range ws {
		parts[i] = w.String()
	}
	return strings.Join(parts, ", ")
}

func uptime(d time.Duration) string {
	d = d.Round(time.Second)
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, d/time.Second)
}
