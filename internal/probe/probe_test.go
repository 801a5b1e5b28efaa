package probe

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/shehryarbajwa/campuswatch/pkg/models"
)

// fakePage is an in-memory DOM keyed by selector query.
type fakePage struct {
	elements  map[string][]string
	noRoot    bool
	navErr    error
	clickErrs map[string][]error
	scriptErr error
	clicks    int
	scripts   int
	navigated []string
	lookups   []string
	evaluated int
}

func newFakePage() *fakePage {
	return &fakePage{elements: map[string][]string{}, clickErrs: map[string][]error{}}
}

func (f *fakePage) Navigate(ctx context.Context, url string) error {
	f.navigated = append(f.navigated, url)
	return f.navErr
}

func (f *fakePage) WaitPresent(ctx context.Context, sel Selector) error {
	if f.noRoot {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (f *fakePage) Exists(ctx context.Context, sel Selector) (bool, error) {
	f.lookups = append(f.lookups, sel.Query)
	_, ok := f.elements[sel.Query]
	return ok, nil
}

func (f *fakePage) Click(ctx context.Context, sel Selector) error {
	f.clicks++
	errs := f.clickErrs[sel.Query]
	if len(errs) == 0 {
		return nil
	}
	f.clickErrs[sel.Query] = errs[1:]
	return errs[0]
}

func (f *fakePage) ScriptClick(ctx context.Context, sel Selector) error {
	f.scripts++
	return f.scriptErr
}

func (f *fakePage) Texts(ctx context.Context, sel Selector) ([]string, error) {
	texts, ok := f.elements[sel.Query]
	if !ok {
		return nil, nil
	}
	return texts, nil
}

func (f *fakePage) Eval(ctx context.Context, script string) error {
	f.evaluated++
	return nil
}

func noSleep(context.Context, time.Duration) error { return nil }

var fixed = time.Date(2024, 5, 15, 13, 0, 0, 0, time.UTC)

func newTestProbe(opts Options) *Probe {
	opts.URL = "https://example.test/floorplans"
	if opts.RootTimeout == 0 {
		opts.RootTimeout = 10 * time.Millisecond
	}
	p := New(opts, log.New(io.Discard))
	return p.WithClock(func() time.Time { return fixed }, noSleep)
}

// fullPage renders both floorplans with their detail panels.
func fullPage(oneButton, twoButton string) *fakePage {
	f := newFakePage()
	f.elements["a[href='#FP_Detail_1100004']"] = []string{"1 Person"}
	f.elements["a[href='#FP_Detail_1100005']"] = []string{"2 Person"}
	f.elements["//div[@id='FP_Detail_1100004']//div[@class='availability-count']"] = []string{"0 available"}
	f.elements["//div[@id='FP_Detail_1100005']//div[@class='availability-count']"] = []string{"2 available"}
	f.elements["//div[@id='FP_Detail_1100004']//button[contains(@class, 'btn')]"] = []string{oneButton}
	f.elements["//div[@id='FP_Detail_1100005']//button[contains(@class, 'btn')]"] = []string{twoButton}
	return f
}

func TestRunReadsBothCategories(t *testing.T) {
	page := fullPage("CONTACT US", "Apply Now")
	results, err := newTestProbe(Options{}).Run(context.Background(), page)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	want := []models.CheckResult{
		{Category: models.OnePerson, AvailabilityText: "0 available", ButtonText: "CONTACT US", Available: false, CheckedAt: fixed},
		{Category: models.TwoPerson, AvailabilityText: "2 available", ButtonText: "Apply Now", Available: true, CheckedAt: fixed},
	}
	for i := range want {
		if results[i] != want[i] {
			t.Errorf("result %d = %+v, want %+v", i, results[i], want[i])
		}
	}
	if len(page.navigated) != 1 || page.evaluated != 1 {
		t.Errorf("navigated %v, evaluated %d", page.navigated, page.evaluated)
	}
}

func TestRunStructuralFailure(t *testing.T) {
	page := fullPage("Apply Now", "Apply Now")
	page.noRoot = true

	results, err := newTestProbe(Options{}).Run(context.Background(), page)
	if !errors.Is(err, ErrStructural) {
		t.Fatalf("err = %v, want ErrStructural", err)
	}
	if results != nil {
		t.Errorf("results = %v, want nil", results)
	}
	if len(page.lookups) != 0 {
		t.Errorf("looked up tabs after structural failure: %v", page.lookups)
	}
}

func TestRunNavigationErrorEscapes(t *testing.T) {
	page := fullPage("Apply Now", "Apply Now")
	page.navErr = errors.New("net::ERR_CONNECTION_RESET")

	_, err := newTestProbe(Options{}).Run(context.Background(), page)
	if err == nil || errors.Is(err, ErrStructural) {
		t.Fatalf("err = %v, want a non-structural error", err)
	}
}

func TestRunMissingTabYieldsErrorResult(t *testing.T) {
	page := fullPage("Apply Now", "Apply Now")
	delete(page.elements, "a[href='#FP_Detail_1100004']")

	results, err := newTestProbe(Options{}).Run(context.Background(), page)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0] != models.ErrorResult(models.OnePerson, fixed) {
		t.Errorf("one person = %+v, want error result", results[0])
	}
	if !results[1].Available || results[1].Category != models.TwoPerson {
		t.Errorf("two person = %+v, want available", results[1])
	}
}

func TestTabFallbackOrder(t *testing.T) {
	page := fullPage("Apply Now", "Apply Now")
	delete(page.elements, "a[href='#FP_Detail_1100004']")
	page.elements["//li[contains(@class, 'FPTabLi')]/a[1]"] = []string{"1 Person"}

	results, err := newTestProbe(Options{}).Run(context.Background(), page)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !results[0].Available {
		t.Errorf("one person = %+v, want read through positional tab", results[0])
	}
	want := []string{
		"a[href='#FP_Detail_1100004']",
		"//a[contains(@href, '#FP_Detail_1100004')]",
		"//li[contains(@class, 'FPTabLi')]/a[1]",
	}
	for i, q := range want {
		if page.lookups[i] != q {
			t.Errorf("lookup %d = %q, want %q", i, page.lookups[i], q)
		}
	}
}

func TestPositionalTextFallback(t *testing.T) {
	page := fullPage("", "")
	delete(page.elements, "//div[@id='FP_Detail_1100005']//div[@class='availability-count']")
	delete(page.elements, "//div[@id='FP_Detail_1100005']//button[contains(@class, 'btn')]")
	page.elements[".availability-count"] = []string{"first", " 1 left "}
	page.elements["//button[contains(@class, 'btn')]"] = []string{"CONTACT US", "Apply"}

	results, err := newTestProbe(Options{}).Run(context.Background(), page)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if results[1].AvailabilityText != "1 left" || results[1].ButtonText != "Apply" || !results[1].Available {
		t.Errorf("two person = %+v", results[1])
	}
	// Empty specific text is a resolved read.
	if results[0].ButtonText != "" || results[0].Available {
		t.Errorf("one person = %+v, want empty unavailable", results[0])
	}
}

func TestUnresolvedTextsAreUnknown(t *testing.T) {
	page := fullPage("Apply Now", "Apply Now")
	delete(page.elements, "//div[@id='FP_Detail_1100005']//div[@class='availability-count']")
	delete(page.elements, "//div[@id='FP_Detail_1100005']//button[contains(@class, 'btn')]")
	// Only one positional element exists, so index 1 misses.
	page.elements[".availability-count"] = []string{"x"}

	results, err := newTestProbe(Options{}).Run(context.Background(), page)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := results[1]
	if got.AvailabilityText != models.TextUnknown || got.ButtonText != models.TextUnknown || got.Available {
		t.Errorf("two person = %+v, want Unknown/Unknown unavailable", got)
	}
}

func TestClickRetries(t *testing.T) {
	tab := "a[href='#FP_Detail_1100004']"
	tests := []struct {
		name        string
		errs        []error
		scriptErr   error
		wantClicks  int
		wantScripts int
		wantErr     bool
	}{
		{"first try", nil, nil, 1, 0, false},
		{"stale then ok", []error{ErrStale}, nil, 2, 0, false},
		{"intercepted falls back to script", []error{errors.New("intercepted")}, nil, 1, 1, false},
		{"always stale", []error{ErrStale, ErrStale, ErrStale}, nil, 3, 0, true},
		{"script fails too", []error{errors.New("a"), errors.New("b"), errors.New("c")}, errors.New("js"), 3, 3, true},
	}

	for _, tt := range tests {
		page := fullPage("Apply Now", "Apply Now")
		page.clickErrs[tab] = tt.errs
		page.scriptErr = tt.scriptErr

		p := newTestProbe(Options{ClickAttempts: 3})
		err := p.click(context.Background(), page, CSS(tab))
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: err = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
		if page.clicks != tt.wantClicks || page.scripts != tt.wantScripts {
			t.Errorf("%s: clicks=%d scripts=%d, want %d/%d", tt.name, page.clicks, page.scripts, tt.wantClicks, tt.wantScripts)
		}
	}
}

func TestClickFailureYieldsErrorResult(t *testing.T) {
	intercepted := errors.New("element click intercepted")
	tests := []struct {
		name      string
		tab       string
		errs      []error
		scriptErr error
		failed    int
	}{
		{"stale exhausted", "a[href='#FP_Detail_1100004']", []error{ErrStale, ErrStale, ErrStale}, nil, 0},
		{"intercepted and script fails", "a[href='#FP_Detail_1100005']", []error{intercepted, intercepted, intercepted}, errors.New("js"), 1},
	}

	for _, tt := range tests {
		page := fullPage("Apply Now", "Apply Now")
		page.clickErrs[tt.tab] = tt.errs
		page.scriptErr = tt.scriptErr

		results, err := newTestProbe(Options{ClickAttempts: 3}).Run(context.Background(), page)
		if err != nil {
			t.Fatalf("%s: Run: %v", tt.name, err)
		}
		if len(results) != 2 {
			t.Fatalf("%s: got %d results, want 2", tt.name, len(results))
		}

		got := results[tt.failed]
		if got.AvailabilityText != models.TextError || got.ButtonText != models.TextError || got.Available {
			t.Errorf("%s: failed category = %+v, want Error/Error unavailable", tt.name, got)
		}
		other := results[1-tt.failed]
		if other.ButtonText != "Apply Now" || !other.Available {
			t.Errorf("%s: other category = %+v, want Apply Now available", tt.name, other)
		}
	}
}

func TestHumanDelayBounds(t *testing.T) {
	rnd := rand.New(rand.NewPCG(1, 2))
	var short, long int
	for i := 0; i < 1000; i++ {
		d := HumanDelay(rnd)
		if d < time.Second || d >= 6*time.Second {
			t.Fatalf("HumanDelay = %s, want within [1s, 6s)", d)
		}
		if d < 3*time.Second {
			short++
		} else {
			long++
		}
	}
	// Base draws are all under 3s and four in five draws skip the extra pause.
	if short < 600 {
		t.Errorf("%d of 1000 delays under 3s, want most", short)
	}
	if long == 0 {
		t.Error("no delay reached 3s, want the extra pause to occur")
	}
}

func TestHumanDelayBaseBranch(t *testing.T) {
	// Same stream as HumanDelay consumes: base draw, then the extra-pause roll.
	rnd := rand.New(rand.NewPCG(7, 11))
	mirror := rand.New(rand.NewPCG(7, 11))
	var base, extra int
	for i := 0; i < 1000; i++ {
		d := HumanDelay(rnd)
		first := time.Second + time.Duration(mirror.Int64N(int64(2*time.Second)))
		if mirror.Float64() < 0.2 {
			mirror.Int64N(int64(2 * time.Second))
			extra++
			if d < first+time.Second || d >= first+3*time.Second {
				t.Fatalf("extended delay = %s, want [%s, %s)", d, first+time.Second, first+3*time.Second)
			}
			continue
		}
		base++
		if d != first || d >= 3*time.Second {
			t.Fatalf("base delay = %s, want %s under 3s", d, first)
		}
	}
	if base == 0 || extra == 0 {
		t.Errorf("base=%d extra=%d, want both branches taken", base, extra)
	}
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep = %v, want context.Canceled", err)
	}
}
