package ops

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/hpungsan/larder/internal/db"
	"github.com/hpungsan/larder/internal/errors"
	"github.com/hpungsan/larder/internal/food"
)

// ListFoodsInput contains parameters for the ListFoods operation.
type ListFoodsInput struct {
	Limit  int // default: 20, max: 100
	Offset int // default: 0
}

// ListFoodsOutput contains the result of the ListFoods operation.
type ListFoodsOutput struct {
	Items      []food.Record `json:"items"`
	Pagination Pagination    `json:"pagination"`
}

// ListFoods retrieves cached nutrition records with pagination.
func ListFoods(ctx context.Context, database *sql.DB, input ListFoodsInput) (*ListFoodsOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := max(input.Offset, 0)

	items, total, err := db.ListFoods(ctx, database, limit, offset)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []food.Record{}
	}

	return &ListFoodsOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
	}, nil
}

// SeedFood is one record in a seed file. Values are per 100g.
type SeedFood struct {
	Name               string   `json:"name"`
	Calories           float64  `json:"calories"`
	Protein            float64  `json:"protein"`
	Carbs              float64  `json:"carbs"`
	Fats               float64  `json:"fats"`
	Sugar              float64  `json:"sugar"`
	Fiber              float64  `json:"fiber"`
	AveragePieceWeight *float64 `json:"average_piece_weight,omitempty"`
}

// SeedInput contains parameters for the Seed operation.
type SeedInput struct {
	Foods []SeedFood
}

// SeedOutput contains the result of the Seed operation.
type SeedOutput struct {
	Seeded int      `json:"seeded"`
	Keys   []string `json:"keys"`
}

// Seed validates every record first and then inserts or replaces them all
// as natural foods. One bad record rejects the whole batch.
func Seed(ctx context.Context, database *sql.DB, input SeedInput) (*SeedOutput, error) {
	records := make([]*food.Record, 0, len(input.Foods))
	for i, f := range input.Foods {
		name := food.Normalize(f.Name)
		if name == "" {
			return nil, errors.NewInvalidInput(fmt.Sprintf("foods[%d]: name is required", i))
		}
		for _, v := range []float64{f.Calories, f.Protein, f.Carbs, f.Fats, f.Sugar, f.Fiber} {
			if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errors.NewInvalidInput(fmt.Sprintf("foods[%d]: nutrient values must be non-negative numbers", i))
			}
		}
		if f.AveragePieceWeight != nil && !(*f.AveragePieceWeight > 0) {
			return nil, errors.NewInvalidInput(fmt.Sprintf("foods[%d]: average_piece_weight must be positive", i))
		}

		records = append(records, &food.Record{
			Key:               food.Key(name),
			Name:              name,
			BaseQuantityGrams: food.BaseQuantityGrams,
			Per100g: food.Nutrients{
				Calories: f.Calories,
				Protein:  f.Protein,
				Carbs:    f.Carbs,
				Fats:     f.Fats,
				Sugar:    f.Sugar,
				Fiber:    f.Fiber,
			},
			AveragePieceWeight: f.AveragePieceWeight,
			Category:           food.CategoryNatural,
			Source:             food.SourceSeed,
		})
	}

	keys := make([]string, 0, len(records))
	for _, rec := range records {
		if err := db.SeedFood(ctx, database, rec); err != nil {
			return nil, err
		}
		keys = append(keys, rec.Key)
	}

	return &SeedOutput{Seeded: len(keys), Keys: keys}, nil
}
