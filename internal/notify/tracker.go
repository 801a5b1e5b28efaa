// Package notify decides when availability changes are worth announcing.
package notify

import (
	"sort"

	"github.com/shehryarbajwa/campuswatch/pkg/models"
)

// Diff is the outcome of comparing the current available set with the announced one.
type Diff struct {
	NewlyAvailable []models.Category
	Cleared        bool
}

// Empty reports whether the diff requires no notification.
func (d Diff) Empty() bool {
	return len(d.NewlyAvailable) == 0 && !d.Cleared
}

// Compute is the pure form of the dedup rule: newly = current - previous,
// cleared when current is empty and previous was not.
func Compute(current, previous map[models.Category]bool) Diff {
	var d Diff
	for c, ok := range current {
		if ok && !previous[c] {
			d.NewlyAvailable = append(d.NewlyAvailable, c)
		}
	}
	sortCategories(d.NewlyAvailable)
	if size(current) == 0 && size(previous) > 0 {
		d.Cleared = true
	}
	return d
}

func size(set map[models.Category]bool) int {
	n := 0
	for _, ok := range set {
		if ok {
			n++
		}
	}
	return n
}

// Tracker holds the set of categories already announced as available.
// It is owned by the check loop and not safe for concurrent use.
type Tracker struct {
	notified map[models.Category]bool
}

func NewTracker() *Tracker {
	return &Tracker{notified: make(map[models.Category]bool)}
}

// Diff compares current against the tracked set and updates the baseline:
// a non-empty current replaces it, an empty current clears it.
func (t *Tracker) Diff(current map[models.Category]bool) Diff {
	d := Compute(current, t.notified)
	next := make(map[models.Category]bool, len(current))
	for c, ok := range current {
		if ok {
			next[c] = true
		}
	}
	t.notified = next
	return d
}

// Notified returns the announced categories in probe order.
func (t *Tracker) Notified() []models.Category {
	out := make([]models.Category, 0, len(t.notified))
	for c := range t.notified {
		out = append(out, c)
	}
	sortCategories(out)
	return out
}

func sortCategories(cs []models.Category) {
	order := make(map[models.Category]int, len(models.Categories))
	for i, c := range models.Categories {
		order[c] = i
	}
	sort.Slice(cs, func(i, j int) bool { return order[cs[i]] < order[cs[j]] })
}
