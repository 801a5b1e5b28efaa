package notify

import (
	"reflect"
	"testing"

	"github.com/shehryarbajwa/campuswatch/pkg/models"
)

const (
	a = models.OnePerson
	b = models.TwoPerson
)

func set(cs ...models.Category) map[models.Category]bool {
	m := make(map[models.Category]bool)
	for _, c := range cs {
		m[c] = true
	}
	return m
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name        string
		current     map[models.Category]bool
		previous    map[models.Category]bool
		wantNew     []models.Category
		wantCleared bool
	}{
		{"both new", set(a, b), set(), []models.Category{a, b}, false},
		{"all gone", set(), set(a, b), nil, true},
		{"unchanged", set(a), set(a), nil, false},
		{"nothing ever", set(), set(), nil, false},
		{"one added", set(a, b), set(a), []models.Category{b}, false},
		{"one dropped", set(b), set(a, b), nil, false},
		{"swap", set(b), set(a), []models.Category{b}, false},
		{"false entries ignored", map[models.Category]bool{a: false}, set(b), nil, true},
	}

	for _, tt := range tests {
		d := Compute(tt.current, tt.previous)
		if !reflect.DeepEqual(d.NewlyAvailable, tt.wantNew) {
			t.Errorf("%s: NewlyAvailable = %v, want %v", tt.name, d.NewlyAvailable, tt.wantNew)
		}
		if d.Cleared != tt.wantCleared {
			t.Errorf("%s: Cleared = %v, want %v", tt.name, d.Cleared, tt.wantCleared)
		}
	}
}

func TestTrackerSequence(t *testing.T) {
	tr := NewTracker()

	d := tr.Diff(set(a, b))
	if !reflect.DeepEqual(d.NewlyAvailable, []models.Category{a, b}) || d.Cleared {
		t.Fatalf("first diff = %+v", d)
	}

	// Repeated identical availability does not re-notify.
	d = tr.Diff(set(a, b))
	if !d.Empty() {
		t.Fatalf("repeat diff = %+v, want empty", d)
	}

	// Shrinking refreshes the baseline without a clear.
	d = tr.Diff(set(a))
	if !d.Empty() {
		t.Fatalf("shrink diff = %+v, want empty", d)
	}
	if got := tr.Notified(); !reflect.DeepEqual(got, []models.Category{a}) {
		t.Fatalf("baseline = %v, want [a]", got)
	}

	// B coming back is new again because the baseline was refreshed.
	d = tr.Diff(set(a, b))
	if !reflect.DeepEqual(d.NewlyAvailable, []models.Category{b}) {
		t.Fatalf("regrow diff = %+v", d)
	}

	d = tr.Diff(set())
	if !d.Cleared || len(d.NewlyAvailable) != 0 {
		t.Fatalf("clear diff = %+v", d)
	}
	if len(tr.Notified()) != 0 {
		t.Fatalf("baseline not reset: %v", tr.Notified())
	}

	// A second empty check is silent.
	if d = tr.Diff(set()); !d.Empty() {
		t.Fatalf("empty-after-clear diff = %+v", d)
	}
}
