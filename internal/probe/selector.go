package probe

import (
	"context"
	"errors"
	"strings"
)

// Strategy is how a Selector's query is interpreted.
type Strategy int

const (
	ByCSS Strategy = iota
	ByXPath
)

// Selector is one way of locating an element on the page.
type Selector struct {
	By    Strategy
	Query string
}

// CSS builds a CSS selector.
func CSS(q string) Selector { return Selector{By: ByCSS, Query: q} }

// XPath builds an XPath selector.
func XPath(q string) Selector { return Selector{By: ByXPath, Query: q} }

func (s Selector) String() string {
	if s.By == ByXPath {
		return "xpath:" + s.Query
	}
	return "css:" + s.Query
}

var (
	// ErrStructural means the page's root container never appeared; the whole probe is void.
	ErrStructural = errors.New("root container not found")
	// ErrStale means the element went away between lookup and interaction.
	ErrStale = errors.New("stale element")
	// ErrNotFound means no selector in a strategy list matched.
	ErrNotFound = errors.New("element not found")
)

// Page is the subset of browser capabilities the probe needs. Methods that
// take a Selector act on the first matching element unless stated otherwise.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// WaitPresent blocks until sel matches or ctx expires.
	WaitPresent(ctx context.Context, sel Selector) error
	// Exists reports whether sel currently matches at least one element.
	Exists(ctx context.Context, sel Selector) (bool, error)
	Click(ctx context.Context, sel Selector) error
	// ScriptClick dispatches el.click() from page script, bypassing overlays.
	ScriptClick(ctx context.Context, sel Selector) error
	// Texts returns the trimmed visible text of every element matching sel, in document order.
	Texts(ctx context.Context, sel Selector) ([]string, error)
	Eval(ctx context.Context, script string) error
}

// FirstMatch tries selectors in order and returns the first that matches.
// Lookup errors are treated as a miss for that selector.
func FirstMatch(ctx context.Context, p Page, sels []Selector) (Selector, error) {
	for _, sel := range sels {
		if err := ctx.Err(); err != nil {
			return Selector{}, err
		}
		ok, err := p.Exists(ctx, sel)
		if err == nil && ok {
			return sel, nil
		}
	}
	return Selector{}, ErrNotFound
}

// TextRead is one way of reading a text: the Index-th element matching Selector.
type TextRead struct {
	Selector Selector
	Index    int
}

// ReadFirst tries each read in order and returns the text of the first one
// whose element exists. An existing element with empty text is a resolved read.
func ReadFirst(ctx context.Context, p Page, reads []TextRead) (string, bool) {
	for _, r := range reads {
		if ctx.Err() != nil {
			return "", false
		}
		texts, err := p.Texts(ctx, r.Selector)
		if err != nil || r.Index < 0 || r.Index >= len(texts) {
			continue
		}
		return strings.TrimSpace(texts[r.Index]), true
	}
	return "", false
}
