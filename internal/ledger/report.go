package ledger

import (
	"fmt"
	"strings"
)

var slotTitles = map[MealType]string{
	Breakfast: "Breakfast",
	Lunch:     "Lunch",
	Dinner:    "Dinner",
	Snacks:    "Snacks",
}

// Markdown renders the day as a markdown report: a totals table followed by
// one section per meal slot.
func Markdown(d *Day) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Food log for %s\n\n", d.Date)

	b.WriteString("## Totals\n\n")
	b.WriteString("| Calories | Protein (g) | Carbs (g) | Fats (g) | Sugar (g) | Fiber (g) |\n")
	b.WriteString("|---:|---:|---:|---:|---:|---:|\n")
	t := d.Totals
	fmt.Fprintf(&b, "| %.0f | %.1f | %.1f | %.1f | %.1f | %.1f |\n", t.Calories, t.Protein, t.Carbs, t.Fats, t.Sugar, t.Fiber)

	for _, mt := range MealTypes {
		entries := *d.Slot(mt)
		fmt.Fprintf(&b, "\n## %s\n\n", slotTitles[mt])
		if len(entries) == 0 {
			b.WriteString("_Nothing logged._\n")
			continue
		}
		for _, e := range entries {
			name := e.FoodName
			if e.IsEstimated {
				name += " *(estimated)*"
			}
			fmt.Fprintf(&b, "- **%s** %.0fg: %.0f kcal, P %.1fg, C %.1fg, F %.1fg\n",
				name, e.QuantityInGrams, e.Calories, e.Protein, e.Carbs, e.Fats)
		}
	}

	return b.String()
}
