package monitor

import (
	"context"

	"github.com/shehryarbajwa/campuswatch/internal/browser"
)

// BrowserSessions adapts a browser.Manager to Sessions.
func BrowserSessions(m *browser.Manager) Sessions {
	return browserSessions{m: m}
}

type browserSessions struct {
	m *browser.Manager
}

func (b browserSessions) Acquire(ctx context.Context) (Session, error) {
	s, err := b.m.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (b browserSessions) Recycle(ctx context.Context, s Session) (Session, error) {
	bs, _ := s.(*browser.Session)
	next, err := b.m.Recycle(ctx, bs)
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (b browserSessions) Release(s Session) {
	bs, _ := s.(*browser.Session)
	b.m.Release(bs)
}
