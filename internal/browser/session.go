package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"github.com/shehryarbajwa/campuswatch/internal/probe"
	"github.com/shehryarbajwa/campuswatch/pkg/models"
)

const actionTimeout = 10 * time.Second

// Session is one live browser tab. It implements probe.Page on chromedp.
type Session struct {
	info     models.BrowserSession
	ctx      context.Context
	cancel   context.CancelFunc
	cleanup  func(context.Context) error
	loadWait time.Duration
}

// Info returns the session's descriptor.
func (s *Session) Info() models.BrowserSession { return s.info }

// run executes actions on the tab. The tab context carries the browser; ctx
// only contributes cancellation and its deadline.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if s.ctx == nil {
		return fmt.Errorf("session %s is not open", s.info.ID)
	}
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if deadline, ok := ctx.Deadline(); ok {
		var c context.CancelFunc
		runCtx, c = context.WithDeadline(runCtx, deadline)
		defer c()
	}
	if timeout > 0 {
		var c context.CancelFunc
		runCtx, c = context.WithTimeout(runCtx, timeout)
		defer c()
	}
	return chromedp.Run(runCtx, actions...)
}

func by(sel probe.Selector) chromedp.QueryOption {
	if sel.By == probe.ByXPath {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

func byAll(sel probe.Selector) chromedp.QueryOption {
	if sel.By == probe.ByXPath {
		return chromedp.BySearch
	}
	return chromedp.ByQueryAll
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, s.loadWait, chromedp.Navigate(url))
}

func (s *Session) WaitPresent(ctx context.Context, sel probe.Selector) error {
	return s.run(ctx, 0, chromedp.WaitReady(sel.Query, by(sel)))
}

func (s *Session) Exists(ctx context.Context, sel probe.Selector) (bool, error) {
	var nodes []*cdp.Node
	if err := s.run(ctx, actionTimeout, chromedp.Nodes(sel.Query, &nodes, byAll(sel), chromedp.AtLeast(0))); err != nil {
		return false, err
	}
	return len(nodes) > 0, nil
}

func (s *Session) Click(ctx context.Context, sel probe.Selector) error {
	err := s.run(ctx, actionTimeout, chromedp.Click(sel.Query, by(sel), chromedp.NodeVisible))
	if err != nil && isStale(err) {
		return fmt.Errorf("%w: %v", probe.ErrStale, err)
	}
	return err
}

func (s *Session) ScriptClick(ctx context.Context, sel probe.Selector) error {
	var clicked bool
	script := fmt.Sprintf(`(function() {
	const els = %s;
	if (els.length === 0) return false;
	els[0].click();
	return true;
})()`, elementsExpr(sel))
	if err := s.run(ctx, actionTimeout, chromedp.Evaluate(script, &clicked)); err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("%w: %s", probe.ErrNotFound, sel)
	}
	return nil
}

func (s *Session) Texts(ctx context.Context, sel probe.Selector) ([]string, error) {
	var texts []string
	script := fmt.Sprintf(`%s.map(el => (el.innerText || el.textContent || '').trim())`, elementsExpr(sel))
	if err := s.run(ctx, actionTimeout, chromedp.Evaluate(script, &texts)); err != nil {
		return nil, err
	}
	return texts, nil
}

func (s *Session) Eval(ctx context.Context, script string) error {
	return s.run(ctx, actionTimeout, chromedp.Evaluate(script, nil))
}

// elementsExpr is a JS expression evaluating to an array of the elements
// matching sel in document order.
func elementsExpr(sel probe.Selector) string {
	q, _ := json.Marshal(sel.Query)
	if sel.By == probe.ByXPath {
		return fmt.Sprintf(`(function() {
	const r = document.evaluate(%s, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
	const out = [];
	for (let i = 0; i < r.snapshotLength; i++) out.push(r.snapshotItem(i));
	return out;
})()`, q)
	}
	return fmt.Sprintf(`Array.from(document.querySelectorAll(%s))`, q)
}

func isStale(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"no node with given id", "could not find node", "node is detached", "stale"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// close tears down the tab, the browser and whatever the provisioner started.
func (s *Session) close(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.cleanup != nil {
		return s.cleanup(ctx)
	}
	return nil
}
