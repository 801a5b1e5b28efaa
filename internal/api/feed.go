package api

import (
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/shehryarbajwa/campuswatch/pkg/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const writeWait = 10 * time.Second

// Feed fans loop events out to websocket subscribers. A subscriber that
// falls behind loses events rather than stalling the loop.
type Feed struct {
	mu      sync.Mutex
	subs    map[chan models.Event]struct{}
	buffer  int
	dropped uint64
	log     *log.Logger
}

func NewFeed(buffer int, logger *log.Logger) *Feed {
	if buffer <= 0 {
		buffer = 32
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Feed{
		subs:   make(map[chan models.Event]struct{}),
		buffer: buffer,
		log:    logger,
	}
}

// Publish never blocks.
func (f *Feed) Publish(ev models.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case ch <- ev:
		default:
			f.dropped++
		}
	}
}

func (f *Feed) subscribe() chan models.Event {
	ch := make(chan models.Event, f.buffer)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()
	return ch
}

func (f *Feed) unsubscribe(ch chan models.Event) {
	f.mu.Lock()
	delete(f.subs, ch)
	close(ch)
	f.mu.Unlock()
}

// Subscribers is the number of connected clients.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Dropped counts events skipped for slow subscribers.
func (f *Feed) Dropped() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

// HandleEvents handles GET /v1/events
func (f *Feed) HandleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.log.Error("Failed to upgrade connection", "err", err)
		return
	}
	defer conn.Close()

	ch := f.subscribe()
	defer f.unsubscribe(ch)

	client := clientAddr(r)
	f.log.Info("✅ Client subscribed to events", "client", client)

	errChan := make(chan error, 2)

	// Client messages are ignored; reading surfaces the close.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				errChan <- err
				return
			}
		}
	}()

	// Events → client
	go func() {
		for ev := range ch {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				errChan <- err
				return
			}
		}
		errChan <- io.EOF
	}()

	err = <-errChan
	if err != nil && err != io.EOF && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
		f.log.Warn("Event feed error", "client", client, "err", err)
	}

	f.log.Info("Client unsubscribed from events", "client", client)
}
