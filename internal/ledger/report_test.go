package ledger

import (
	"strings"
	"testing"

	"github.com/hpungsan/larder/internal/food"
)

func TestMarkdown(t *testing.T) {
	d := Empty("u1", "2026-03-04")
	d.Breakfast = []Entry{{FoodName: "banana", QuantityInGrams: 150, Nutrients: food.Nutrients{Calories: 134, Protein: 1.6}}}
	d.Dinner = []Entry{{FoodName: "butter chicken", QuantityInGrams: 180, Nutrients: food.Nutrients{Calories: 250}, IsEstimated: true}}
	d.Totals = Sum(d.Entries())

	md := Markdown(d)

	for _, want := range []string{
		"# Food log for 2026-03-04",
		"| 384 |",
		"## Breakfast",
		"- **banana** 150g: 134 kcal",
		"butter chicken *(estimated)*",
		"## Lunch\n\n_Nothing logged._",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("Markdown missing %q:\n%s", want, md)
		}
	}
}
