package ops

import (
	"context"
	"database/sql"
	"math"
	"strings"
	"time"

	"github.com/hpungsan/larder/internal/config"
	"github.com/hpungsan/larder/internal/db"
	"github.com/hpungsan/larder/internal/errors"
	"github.com/hpungsan/larder/internal/food"
	"github.com/hpungsan/larder/internal/ledger"
)

// AppendInput contains parameters for the Append operation.
type AppendInput struct {
	UserID   string // required
	Date     string // YYYY-MM-DD, default: today in cfg.Location()
	MealType string // breakfast, lunch, dinner, snacks
	Entry    ledger.Entry
}

// AppendOutput contains the stored entry and the updated day.
type AppendOutput struct {
	Entry  ledger.Entry `json:"entry"`
	Ledger *ledger.Day  `json:"ledger"`
}

// Append adds an entry to a user's day, creating the day on first use.
// The new day expires at the end of the current local day.
func Append(ctx context.Context, database *sql.DB, cfg *config.Config, input AppendInput) (*AppendOutput, error) {
	userID, err := validateUserID(input.UserID)
	if err != nil {
		return nil, err
	}
	mealType, ok := ledger.ParseMealType(input.MealType)
	if !ok {
		return nil, errors.NewInvalidMealType(input.MealType)
	}

	loc := cfg.Location()
	t := now()
	date, err := resolveDate(input.Date, t, loc)
	if err != nil {
		return nil, err
	}

	entry := input.Entry
	entry.MealType = mealType
	entry.FoodName = strings.TrimSpace(entry.FoodName)
	if err := validateEntry(&entry); err != nil {
		return nil, err
	}
	if entry.ID == "" {
		id, err := generateULID()
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		entry.ID = id
	}
	if entry.CreatedAt == 0 {
		entry.CreatedAt = t.Unix()
	}

	expiresAt, err := ledger.EndOfDay(ledger.DateOf(t, loc), loc)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	if _, err := db.AppendEntry(ctx, database, userID, date, expiresAt.UnixMilli(), t, &entry); err != nil {
		return nil, err
	}

	day, _, err := db.GetLedger(ctx, database, userID, date, t)
	if err != nil {
		return nil, err
	}
	return &AppendOutput{Entry: entry, Ledger: day}, nil
}

// RemoveInput contains parameters for the Remove operation.
type RemoveInput struct {
	UserID   string
	Date     string
	MealType string
	EntryID  string
}

// Remove deletes one entry from a slot and subtracts it from the totals.
// A missing day or an entry that is not in the named slot is NOT_FOUND.
func Remove(ctx context.Context, database *sql.DB, cfg *config.Config, input RemoveInput) (*ledger.Day, error) {
	userID, err := validateUserID(input.UserID)
	if err != nil {
		return nil, err
	}
	mealType, ok := ledger.ParseMealType(input.MealType)
	if !ok {
		return nil, errors.NewInvalidMealType(input.MealType)
	}
	entryID := strings.TrimSpace(input.EntryID)
	if entryID == "" {
		return nil, errors.NewInvalidInput("entry_id is required")
	}

	t := now()
	date, err := resolveDate(input.Date, t, cfg.Location())
	if err != nil {
		return nil, err
	}

	_, ledgerID, err := db.GetLedger(ctx, database, userID, date, t)
	if err != nil {
		return nil, err
	}
	if _, err := db.RemoveEntry(ctx, database, ledgerID, mealType, entryID); err != nil {
		return nil, err
	}

	day, _, err := db.GetLedger(ctx, database, userID, date, t)
	if err != nil {
		return nil, err
	}
	return day, nil
}

// TodayInput contains parameters for the Today operation.
type TodayInput struct {
	UserID string
}

// Today returns the user's ledger for the current local date.
func Today(ctx context.Context, database *sql.DB, cfg *config.Config, input TodayInput) (*ledger.Day, error) {
	return GetDay(ctx, database, cfg, GetDayInput{UserID: input.UserID})
}

// GetDayInput contains parameters for the GetDay operation.
type GetDayInput struct {
	UserID string
	Date   string // default: today
}

// GetDay returns the user's ledger for a date. A day with nothing logged
// (or one that has expired) is returned as an empty day, not an error.
func GetDay(ctx context.Context, database *sql.DB, cfg *config.Config, input GetDayInput) (*ledger.Day, error) {
	userID, err := validateUserID(input.UserID)
	if err != nil {
		return nil, err
	}

	t := now()
	date, err := resolveDate(input.Date, t, cfg.Location())
	if err != nil {
		return nil, err
	}

	day, _, err := db.GetLedger(ctx, database, userID, date, t)
	if errors.Is(err, errors.ErrNotFound) {
		return ledger.Empty(userID, date), nil
	}
	if err != nil {
		return nil, err
	}
	return day, nil
}

// RecomputeInput contains parameters for the Recompute operation.
type RecomputeInput struct {
	UserID string
	Date   string
}

// RecomputeOutput contains the day after repair.
type RecomputeOutput struct {
	Ledger   *ledger.Day `json:"ledger"`
	Repaired bool        `json:"repaired"`
}

// Recompute rebuilds a day's totals from its entries when they have drifted.
func Recompute(ctx context.Context, database *sql.DB, cfg *config.Config, input RecomputeInput) (*RecomputeOutput, error) {
	userID, err := validateUserID(input.UserID)
	if err != nil {
		return nil, err
	}

	t := now()
	date, err := resolveDate(input.Date, t, cfg.Location())
	if err != nil {
		return nil, err
	}

	day, ledgerID, err := db.GetLedger(ctx, database, userID, date, t)
	if err != nil {
		return nil, err
	}
	if totalsMatch(day) {
		return &RecomputeOutput{Ledger: day}, nil
	}

	if err := db.RecomputeTotals(ctx, database, ledgerID); err != nil {
		return nil, err
	}

	day, _, err = db.GetLedger(ctx, database, userID, date, t)
	if err != nil {
		return nil, err
	}
	return &RecomputeOutput{Ledger: day, Repaired: true}, nil
}

// LogInput contains parameters for the LogFood operation.
type LogInput struct {
	UserID   string
	Date     string // default: today
	FoodName string
	MealType string
	Quantity float64
	Unit     string
}

// LogOutput contains the logged entry, the updated day, and where the
// nutrients came from.
type LogOutput struct {
	Entry  ledger.Entry `json:"entry"`
	Ledger *ledger.Day  `json:"ledger"`
	Source string       `json:"source"`
}

// LogFood resolves a food and appends it to the user's day. Nothing is
// written to the ledger when resolution fails.
func (r *Resolver) LogFood(ctx context.Context, input LogInput) (*LogOutput, error) {
	if _, err := validateUserID(input.UserID); err != nil {
		return nil, err
	}
	if _, ok := ledger.ParseMealType(input.MealType); !ok {
		return nil, errors.NewInvalidMealType(input.MealType)
	}

	res, err := r.Resolve(ctx, ResolveInput{
		FoodName: input.FoodName,
		MealType: input.MealType,
		Quantity: input.Quantity,
		Unit:     input.Unit,
	})
	if err != nil {
		return nil, err
	}

	out, err := Append(ctx, r.database, r.cfg, AppendInput{
		UserID:   input.UserID,
		Date:     input.Date,
		MealType: input.MealType,
		Entry: ledger.Entry{
			FoodName:        res.FoodName,
			QuantityInGrams: res.Grams,
			Nutrients:       res.Nutrients(),
			IsEstimated:     res.IsEstimated,
		},
	})
	if err != nil {
		return nil, err
	}

	return &LogOutput{Entry: out.Entry, Ledger: out.Ledger, Source: res.Source}, nil
}

// resolveDate validates date, defaulting to t's calendar date in loc.
func resolveDate(date string, t time.Time, loc *time.Location) (string, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return ledger.DateOf(t, loc), nil
	}
	if _, err := ledger.ParseDate(date, loc); err != nil {
		return "", errors.NewInvalidInput("date must be YYYY-MM-DD")
	}
	return date, nil
}

// validateEntry rejects entries that would break the non-negative totals invariant.
func validateEntry(e *ledger.Entry) error {
	if e.FoodName == "" {
		return errors.NewInvalidInput("food_name is required")
	}
	values := []float64{e.QuantityInGrams, e.Calories, e.Protein, e.Carbs, e.Fats, e.Sugar, e.Fiber}
	for _, v := range values {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.NewInvalidInput("quantity and nutrient values must be non-negative numbers")
		}
	}
	return nil
}

// totalsMatch reports whether d's totals equal the sum of its entries
// within rounding noise.
func totalsMatch(d *ledger.Day) bool {
	sum := ledger.Sum(d.Entries())
	return closeTo(d.Totals, sum)
}

func closeTo(a, b food.Nutrients) bool {
	const eps = 1e-6
	return math.Abs(a.Calories-b.Calories) < eps &&
		math.Abs(a.Protein-b.Protein) < eps &&
		math.Abs(a.Carbs-b.Carbs) < eps &&
		math.Abs(a.Fats-b.Fats) < eps &&
		math.Abs(a.Sugar-b.Sugar) < eps &&
		math.Abs(a.Fiber-b.Fiber) < eps
}
