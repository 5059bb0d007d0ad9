package ops

import (
	"context"
	"database/sql"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/larder/internal/config"
	"github.com/hpungsan/larder/internal/db"
	"github.com/hpungsan/larder/internal/errors"
	"github.com/hpungsan/larder/internal/food"
	"github.com/hpungsan/larder/internal/ledger"
	"github.com/hpungsan/larder/internal/oracle"
)

// Where a resolved figure came from.
const (
	SourceCache    = "cache"
	SourceOracle   = "oracle"
	SourceEstimate = "estimate"
)

// ResolveInput contains parameters for the Resolve operation.
type ResolveInput struct {
	FoodName string
	MealType string // breakfast, lunch, dinner, snacks
	Quantity float64
	Unit     string
}

// ResolveOutput contains rounded absolute nutrients for the requested quantity.
type ResolveOutput struct {
	FoodName    string  `json:"food_name"`
	Grams       float64 `json:"grams"`
	Calories    float64 `json:"calories"`
	Protein     float64 `json:"protein"`
	Carbs       float64 `json:"carbs"`
	Fats        float64 `json:"fats"`
	Sugar       float64 `json:"sugar"`
	Fiber       float64 `json:"fiber"`
	IsEstimated bool    `json:"is_estimated"`
	Source      string  `json:"source"`
}

// Nutrients returns the nutrient fields of o.
func (o *ResolveOutput) Nutrients() food.Nutrients {
	return food.Nutrients{
		Calories: o.Calories,
		Protein:  o.Protein,
		Carbs:    o.Carbs,
		Fats:     o.Fats,
		Sugar:    o.Sugar,
		Fiber:    o.Fiber,
	}
}

// Resolver turns (food name, quantity, unit) into nutrients using the food
// cache, the oracle, and finally the composed-food estimate.
type Resolver struct {
	database *sql.DB
	cfg      *config.Config
	oracle   NutritionOracle
	logger   *zap.Logger
}

// NewResolver creates a Resolver. A nil logger is replaced with a no-op logger.
func NewResolver(database *sql.DB, cfg *config.Config, nutrition NutritionOracle, logger *zap.Logger) *Resolver {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{database: database, cfg: cfg, oracle: nutrition, logger: logger}
}

// Resolve computes nutrients for input. Oracle failures never surface as
// errors: a food that cannot be resolved as a raw ingredient falls back to
// the composed-food estimate, flagged IsEstimated.
func (r *Resolver) Resolve(ctx context.Context, input ResolveInput) (*ResolveOutput, error) {
	name := food.Normalize(input.FoodName)
	if name == "" {
		return nil, errors.NewInvalidInput("food_name is required")
	}
	if _, ok := ledger.ParseMealType(input.MealType); !ok {
		return nil, errors.NewInvalidInput("meal_type must be one of breakfast, lunch, dinner, snacks")
	}
	if !(input.Quantity > 0) || math.IsInf(input.Quantity, 0) {
		return nil, errors.NewInvalidInput("quantity must be a positive number")
	}

	start := time.Now()
	key := food.Key(name)

	rec, err := db.GetFood(ctx, r.database, key)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	source := SourceCache
	if rec == nil {
		rec, err = r.lookupRaw(ctx, name, key)
		if err != nil {
			return nil, err
		}
		source = SourceOracle
	}

	if !rec.IsNatural() {
		est := food.Round(food.ComposedEstimate(input.Quantity))
		r.logger.Info("composed food estimate",
			zap.String("food", name),
			zap.Float64("servings", est.Grams/food.ServingGrams),
		)
		return toOutput(name, est, SourceEstimate), nil
	}

	grams, ok, err := ToGrams(ctx, r.database, r.oracle, rec, input.Unit, input.Quantity)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.NewUnsupportedUnit(input.Unit)
	}

	est := food.Round(food.Estimate{Grams: grams, Nutrients: rec.ForGrams(grams)})
	r.logger.Debug("resolved food",
		zap.String("food", name),
		zap.String("source", source),
		zap.Float64("grams", est.Grams),
		zap.Duration("took", time.Since(start)),
	)
	return toOutput(name, est, source), nil
}

// lookupRaw asks the oracle for a raw ingredient and caches a good answer.
// A rejected or failed query yields nil record and nil error.
func (r *Resolver) lookupRaw(ctx context.Context, name, key string) (*food.Record, error) {
	res := r.oracle.QueryRawNutrition(ctx, name)
	if res.Status != oracle.StatusOK {
		return nil, nil
	}

	stored, err := db.InsertFoodIfAbsent(ctx, r.database, &food.Record{
		Key:               key,
		Name:              name,
		BaseQuantityGrams: food.BaseQuantityGrams,
		Per100g:           res.Data,
		Category:          food.CategoryNatural,
		Source:            food.SourceOracle,
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info("cached food", zap.String("food", name), zap.Float64("calories_per_100g", stored.Per100g.Calories))
	return stored, nil
}

func toOutput(name string, est food.Estimate, source string) *ResolveOutput {
	return &ResolveOutput{
		FoodName:    name,
		Grams:       est.Grams,
		Calories:    est.Nutrients.Calories,
		Protein:     est.Nutrients.Protein,
		Carbs:       est.Nutrients.Carbs,
		Fats:        est.Nutrients.Fats,
		Sugar:       est.Nutrients.Sugar,
		Fiber:       est.Nutrients.Fiber,
		IsEstimated: est.IsEstimated,
		Source:      source,
	}
}
