package food

import "math"

// Per-serving figures for the composed-food fallback. These are a crude
// last resort for dishes that cannot be resolved as one raw ingredient.
const (
	ServingGrams    = 180
	ServingCalories = 250
	ServingProtein  = 10
	ServingCarbs    = 35
	ServingFats     = 9
)

// Estimate is a resolved quantity of food with its absolute nutrients.
type Estimate struct {
	Grams       float64
	Nutrients   Nutrients
	IsEstimated bool
}

// ComposedEstimate treats quantity as a serving count (1 when non-positive)
// and scales the fixed per-serving figures. Sugar and fiber are not claimed.
func ComposedEstimate(quantity float64) Estimate {
	servings := quantity
	if !(servings > 0) || math.IsInf(servings, 0) {
		servings = 1
	}
	return Estimate{
		Grams: ServingGrams * servings,
		Nutrients: Nutrients{
			Calories: ServingCalories * servings,
			Protein:  ServingProtein * servings,
			Carbs:    ServingCarbs * servings,
			Fats:     ServingFats * servings,
		},
		IsEstimated: true,
	}
}

// Round applies presentation/storage rounding: whole grams, whole calories,
// and one decimal place for every other nutrient.
func Round(e Estimate) Estimate {
	return Estimate{
		Grams: math.Round(e.Grams),
		Nutrients: Nutrients{
			Calories: math.Round(e.Nutrients.Calories),
			Protein:  Round1(e.Nutrients.Protein),
			Carbs:    Round1(e.Nutrients.Carbs),
			Fats:     Round1(e.Nutrients.Fats),
			Sugar:    Round1(e.Nutrients.Sugar),
			Fiber:    Round1(e.Nutrients.Fiber),
		},
		IsEstimated: e.IsEstimated,
	}
}

// Round1 rounds v to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
