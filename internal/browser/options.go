package browser

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36 Edg/91.0.864.59",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.114 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
}

// Viewport is a desktop window size.
type Viewport struct {
	Width  int
	Height int
}

func (v Viewport) String() string { return fmt.Sprintf("%dx%d", v.Width, v.Height) }

var viewports = []Viewport{
	{1920, 1080}, {1366, 768}, {1536, 864}, {1440, 900},
	{1280, 720}, {1600, 900}, {1280, 800}, {1280, 1024},
}

// Fingerprint is the per-session identity presented to the site.
type Fingerprint struct {
	UserAgent string
	Viewport  Viewport
}

// RandomFingerprint picks a user agent and viewport from the fixed pools.
func RandomFingerprint(rnd *rand.Rand) Fingerprint {
	return Fingerprint{
		UserAgent: userAgents[rnd.IntN(len(userAgents))],
		Viewport:  viewports[rnd.IntN(len(viewports))],
	}
}

// Options configures every session the Manager creates.
type Options struct {
	TargetURL       string
	CookieDomain    string
	Headless        bool
	Timezone        string
	Languages       []string
	PageLoadTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.CookieDomain == "" {
		o.CookieDomain = ".securerc.co.uk"
	}
	if o.Timezone == "" {
		o.Timezone = "Europe/Amsterdam"
	}
	if len(o.Languages) == 0 {
		o.Languages = []string{"en-GB", "en-US", "en", "nl"}
	}
	if o.PageLoadTimeout <= 0 {
		o.PageLoadTimeout = 60 * time.Second
	}
	return o
}

// acceptLanguage renders languages as an Accept-Language header with
// descending q-values.
func acceptLanguage(langs []string) string {
	parts := make([]string, len(langs))
	for i, l := range langs {
		if i == 0 {
			parts[i] = l
			continue
		}
		q := 1.0 - 0.1*float64(i)
		if q < 0.1 {
			q = 0.1
		}
		parts[i] = fmt.Sprintf("%s;q=%.1f", l, q)
	}
	return strings.Join(parts, ",")
}

// execFlags are the command-line options for a locally launched Chrome.
func execFlags(o Options, fp Fingerprint) []chromedp.ExecAllocatorOption {
	flags := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", o.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.Flag("lang", acceptLanguage(o.Languages)),
		chromedp.UserAgent(fp.UserAgent),
		chromedp.WindowSize(fp.Viewport.Width, fp.Viewport.Height),
	)
	return flags
}

const stealthScript = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined});
if (navigator.plugins) {
	Object.defineProperty(navigator, 'plugins', {get: () => [1, 2, 3, 4, 5]});
}
if (navigator.languages) {
	Object.defineProperty(navigator, 'languages', {get: () => ['en-GB', 'en', 'nl']});
}`

var cookieNames = []string{"_ga", "_gid", "visitor_id", "session_id"}

type visitorCookie struct {
	Name    string
	Value   string
	Expires time.Time
}

// visitorCookies makes the cookies of a returning visitor: random 16-hex
// values expiring 1 to 365 days after now.
func visitorCookies(rnd *rand.Rand, now time.Time) []visitorCookie {
	const hex = "0123456789abcdef"
	out := make([]visitorCookie, 0, len(cookieNames))
	for _, name := range cookieNames {
		var b strings.Builder
		for i := 0; i < 16; i++ {
			b.WriteByte(hex[rnd.IntN(len(hex))])
		}
		days := 1 + rnd.IntN(365)
		out = append(out, visitorCookie{
			Name:    name,
			Value:   b.String(),
			Expires: now.AddDate(0, 0, days),
		})
	}
	return out
}
