package probe

import (
	"fmt"

	"github.com/shehryarbajwa/campuswatch/pkg/models"
)

// RootContainer is present on every rendered floorplans page.
var RootContainer = CSS("#floorPlanDataContainer")

// CategorySpec tells the probe where one category lives on the page.
type CategorySpec struct {
	Category     models.Category
	Tabs         []Selector
	Availability []TextRead
	Button       []TextRead
}

// DefaultLayout returns the floorplans page shape for both categories.
// Each floorplan has a tab linking to its detail panel "#FP_Detail_<id>".
func DefaultLayout() []CategorySpec {
	return []CategorySpec{
		floorplan(models.OnePerson, "1100004", 1),
		floorplan(models.TwoPerson, "1100005", 2),
	}
}

// floorplan builds the selectors for the floorplan with the given detail id
// at 1-based position pos in the tab list.
func floorplan(c models.Category, id string, pos int) CategorySpec {
	panel := "FP_Detail_" + id
	return CategorySpec{
		Category: c,
		Tabs: []Selector{
			CSS(fmt.Sprintf("a[href='#%s']", panel)),
			XPath(fmt.Sprintf("//a[contains(@href, '#%s')]", panel)),
			XPath(fmt.Sprintf("//li[contains(@class, 'FPTabLi')]/a[%d]", pos)),
			XPath(fmt.Sprintf("//ul[@id='floorplansLink']/li/a[%d]", pos)),
		},
		Availability: []TextRead{
			{Selector: XPath(fmt.Sprintf("//div[@id='%s']//div[@class='availability-count']", panel))},
			{Selector: CSS(".availability-count"), Index: pos - 1},
		},
		Button: []TextRead{
			{Selector: XPath(fmt.Sprintf("//div[@id='%s']//button[contains(@class, 'btn')]", panel))},
			{Selector: XPath("//button[contains(@class, 'btn')]"), Index: pos - 1},
		},
	}
}
