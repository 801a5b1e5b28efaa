package api

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"

	"github.com/shehryarbajwa/campuswatch/internal/monitor"
	"github.com/shehryarbajwa/campuswatch/internal/store"
	"github.com/shehryarbajwa/campuswatch/internal/work"
	"github.com/shehryarbajwa/campuswatch/pkg/models"
)

//go:embed templates/*.html
var templatesFS embed.FS

var statusTemplate = template.Must(template.New("status.html").Funcs(template.FuncMap{
	"ago": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return humanize.Time(t)
	},
	"percent": func(f float64) string { return strconv.FormatFloat(f, 'f', 1, 64) + "%" },
	"comma":   func(n int) string { return humanize.Comma(int64(n)) },
}).ParseFS(templatesFS, "templates/status.html"))

// StatusSource exposes the loop snapshot.
type StatusSource interface {
	Status() monitor.Status
}

// History is the subset of the store the metrics need.
type History interface {
	Totals(ctx context.Context) (models.Totals, error)
	Daily(ctx context.Context, date string) (models.DailyStats, error)
	LastCheckTime(ctx context.Context) (time.Time, error)
}

// Metrics is the /metrics payload.
type Metrics struct {
	GeneratedAt time.Time       `json:"generatedAt"`
	Monitor     MonitorMetrics  `json:"monitor"`
	System      SystemMetrics   `json:"system"`
	Database    DatabaseMetrics `json:"database"`
	Queue       work.Stats      `json:"queue"`
	Feed        FeedMetrics     `json:"feed"`
}

type MonitorMetrics struct {
	Running           bool              `json:"running"`
	State             string            `json:"state"`
	StartedAt         time.Time         `json:"startedAt"`
	UptimeSeconds     float64           `json:"uptimeSeconds"`
	LastCheck         time.Time         `json:"lastCheck"`
	NextCheck         time.Time         `json:"nextCheck"`
	Tier              string            `json:"tier"`
	Checks            int               `json:"checks"`
	ConsecutiveErrors int               `json:"consecutiveErrors"`
	Recycles          int               `json:"recycles"`
	LastError         string            `json:"lastError,omitempty"`
	Notified          []models.Category `json:"notified"`
}

type SystemMetrics struct {
	Goroutines int    `json:"goroutines"`
	HeapAlloc  uint64 `json:"heapAllocBytes"`
	GoVersion  string `json:"goVersion"`
}

type DatabaseMetrics struct {
	Available      bool              `json:"available"`
	TotalChecks    int               `json:"totalChecks"`
	TotalAvailable int               `json:"totalAvailable"`
	DaysMonitored  int               `json:"daysMonitored"`
	LastCheckTime  *time.Time        `json:"lastCheckTime,omitempty"`
	Today          models.DailyStats `json:"today"`
	Error          string            `json:"error,omitempty"`
}

// Rate is the percentage of history rows that were available.
func (d DatabaseMetrics) Rate() float64 {
	return models.Totals{Checks: d.TotalChecks, Available: d.TotalAvailable}.Rate()
}

type FeedMetrics struct {
	Subscribers int    `json:"subscribers"`
	Dropped     uint64 `json:"dropped"`
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	status   StatusSource
	history  History
	queue    *work.Queue
	feed     *Feed
	loc      *time.Location
	log      *log.Logger
	now      func() time.Time
	cacheFor time.Duration

	mu       sync.Mutex
	cached   *Metrics
	cachedAt time.Time
}

// NewHandler creates a new HTTP handler. history and queue may be nil.
func NewHandler(status StatusSource, history History, queue *work.Queue, feed *Feed, loc *time.Location, logger *log.Logger) *Handler {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = log.Default()
	}
	if feed == nil {
		feed = NewFeed(0, logger)
	}
	return &Handler{
		status:   status,
		history:  history,
		queue:    queue,
		feed:     feed,
		loc:      loc,
		log:      logger,
		now:      time.Now,
		cacheFor: 10 * time.Second,
	}
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if !h.status.Status().Running() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("Monitor Not Running"))
		return
	}
	w.Write([]byte("OK"))
}

// Metrics handles GET /metrics
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	m := h.metrics(r.Context())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(m)
}

// StatusPage handles GET /status
func (h *Handler) StatusPage(w http.ResponseWriter, r *http.Request) {
	m := h.metrics(r.Context())

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := statusTemplate.Execute(w, m); err != nil {
		h.log.Error("Failed to render status page", "err", err)
	}
}

// Session handles GET /v1/session
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	st := h.status.Status()
	if st.Session.ID == "" {
		http.Error(w, "no browser session", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(st.Session)
}

// metrics returns the cached snapshot, rebuilding it once it is older than
// cacheFor.
func (h *Handler) metrics(ctx context.Context) Metrics {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	if h.cached != nil && now.Sub(h.cachedAt) < h.cacheFor {
		return *h.cached
	}

	m := h.collect(ctx, now)
	h.cached = &m
	h.cachedAt = now
	return m
}

func (h *Handler) collect(ctx context.Context, now time.Time) Metrics {
	st := h.status.Status()

	m := Metrics{
		GeneratedAt: now,
		Monitor: MonitorMetrics{
			Running:           st.Running(),
			State:             st.State.String(),
			StartedAt:         st.StartedAt,
			LastCheck:         st.LastCheck,
			NextCheck:         st.NextCheck,
			Tier:              st.Tier.String(),
			Checks:            st.Checks,
			ConsecutiveErrors: st.ConsecutiveErrors,
			Recycles:          st.Recycles,
			LastError:         st.LastError,
			Notified:          st.Notified,
		},
		Feed: FeedMetrics{
			Subscribers: h.feed.Subscribers(),
			Dropped:     h.feed.Dropped(),
		},
	}
	if !st.StartedAt.IsZero() {
		m.Monitor.UptimeSeconds = now.Sub(st.StartedAt).Seconds()
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	m.System = SystemMetrics{
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  mem.HeapAlloc,
		GoVersion:  runtime.Version(),
	}

	if h.queue != nil {
		m.Queue = h.queue.Stats()
	}

	m.Database = h.database(ctx, now)
	return m
}

func (h *Handler) database(ctx context.Context, now time.Time) DatabaseMetrics {
	if h.history == nil {
		return DatabaseMetrics{}
	}
	db := DatabaseMetrics{Available: true}

	totals, err := h.history.Totals(ctx)
	if err != nil {
		h.log.Warn("Metrics: totals query failed", "err", err)
		db.Error = err.Error()
		return db
	}
	db.TotalChecks = totals.Checks
	db.TotalAvailable = totals.Available
	db.DaysMonitored = totals.DaysMonitored

	last, err := h.history.LastCheckTime(ctx)
	switch {
	case err == nil:
		db.LastCheckTime = &last
	case !errors.Is(err, store.ErrNotFound):
		db.Error = err.Error()
	}

	date := now.In(h.loc).Format(models.DateLayout)
	today, err := h.history.Daily(ctx, date)
	switch {
	case err == nil:
		db.Today = today
	case errors.Is(err, store.ErrNotFound):
		db.Today = models.DailyStats{Date: date}
	default:
		db.Error = err.Error()
	}
	return db
}
