package food

// BaseQuantityGrams is the reference mass every cached nutrition record describes.
const BaseQuantityGrams = 100

// Category values for a cached record.
const (
	CategoryNatural = "natural" // raw, single-ingredient food resolved per 100g
)

// Source values recorded on a cached record.
const (
	SourceOracle = "oracle"
	SourceSeed   = "seed"
)

// Nutrients holds the six tracked nutrient fields. Depending on context the
// values are per 100g (cache records) or absolute (ledger entries, totals).
type Nutrients struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fats     float64 `json:"fats"`
	Sugar    float64 `json:"sugar"`
	Fiber    float64 `json:"fiber"`
}

// Scale multiplies every field by factor.
func (n Nutrients) Scale(factor float64) Nutrients {
	return Nutrients{
		Calories: n.Calories * factor,
		Protein:  n.Protein * factor,
		Carbs:    n.Carbs * factor,
		Fats:     n.Fats * factor,
		Sugar:    n.Sugar * factor,
		Fiber:    n.Fiber * factor,
	}
}

// Record is a cached nutrition-per-100g entry for one normalized food.
type Record struct {
	// Key is the normalized name plus KeySuffix; unique per store
	Key string `json:"food_key"`

	// Name is the normalized food name
	Name string `json:"name"`

	// BaseQuantityGrams is always 100 for cache entries
	BaseQuantityGrams float64 `json:"base_quantity_grams"`

	// Per100g holds the nutrient values for BaseQuantityGrams of the food
	Per100g Nutrients `json:"per_100g"`

	// AveragePieceWeight is set lazily, at most once, the first time a count
	// unit is used for this food (nullable)
	AveragePieceWeight *float64 `json:"average_piece_weight,omitempty"`

	// Category is CategoryNatural for raw single-ingredient foods
	Category string `json:"category"`

	// Source records where the values came from (oracle, seed)
	Source string `json:"source"`

	// CreatedAt is the Unix timestamp when the record was first stored
	CreatedAt int64 `json:"created_at"`

	// UpdatedAt is the Unix timestamp of the last change (piece weight calibration)
	UpdatedAt int64 `json:"updated_at"`
}

// IsNatural reports whether the record may be used for direct per-100g scaling.
func (r *Record) IsNatural() bool {
	return r != nil && r.Category == CategoryNatural
}

// ForGrams scales the per-100g values to the given mass.
func (r *Record) ForGrams(grams float64) Nutrients {
	base := r.BaseQuantityGrams
	if base <= 0 {
		base = BaseQuantityGrams
	}
	return r.Per100g.Scale(grams / base)
}
