package oracle

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/larder/internal/config"
	"github.com/hpungsan/larder/internal/food"
)

// Status classifies a raw-nutrition query.
type Status string

const (
	StatusOK      Status = "ok"
	StatusNotRaw  Status = "not_raw" // model declined, or the values failed plausibility
	StatusInvalid Status = "invalid"
	StatusError   Status = "error"
)

// RawResult is the outcome of QueryRawNutrition. Data is only meaningful
// when Status is StatusOK.
type RawResult struct {
	Status Status
	Data   food.Nutrients
	Err    error
}

// Oracle asks a Completer for per-100g nutrition and piece weights and
// enforces the response contract on what comes back.
type Oracle struct {
	completer Completer
	logger    *zap.Logger

	maxMacro       float64
	maxCalories    float64
	maxPieceWeight float64
}

// New creates an Oracle. A nil logger is replaced with a no-op logger.
func New(completer Completer, cfg *config.Config, logger *zap.Logger) *Oracle {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Oracle{
		completer:      completer,
		logger:         logger,
		maxMacro:       cfg.MaxMacroPer100g,
		maxCalories:    cfg.MaxCaloriesPer100g,
		maxPieceWeight: cfg.MaxPieceWeightGrams,
	}
}

const rawNutritionPrompt = `You are a nutrition database.
Give the nutrition values per 100 grams of the RAW, UNCOOKED, SINGLE-INGREDIENT food %q.
If it is a prepared dish, a recipe, a branded product, a mix of ingredients, or not a food, respond with exactly: null
Otherwise respond with ONLY a JSON object, no markdown and no commentary, in this shape:
{"calories": number, "protein": number, "carbs": number, "fats": number, "sugar": number, "fiber": number}
Calories are kcal, every other field is grams. Use plain numbers, not strings.`

const pieceWeightPrompt = `What is the average weight in grams of one piece of %q?
Respond with ONLY a number (grams, no units), or exactly: null if the food is not naturally counted in pieces.`

var nutrientFields = []string{"calories", "protein", "carbs", "fats", "sugar", "fiber"}

// QueryRawNutrition asks for per-100g values of a raw single-ingredient food.
// Completer failures are reported as StatusError, never as a Go error.
func (o *Oracle) QueryRawNutrition(ctx context.Context, name string) RawResult {
	text, err := o.completer.Complete(ctx, fmt.Sprintf(rawNutritionPrompt, name))
	if err != nil {
		o.logger.Error("raw nutrition query failed", zap.String("food", name), zap.Error(err))
		return RawResult{Status: StatusError, Err: err}
	}

	res := o.classify(text)
	if res.Status != StatusOK {
		o.logger.Warn("raw nutrition rejected",
			zap.String("food", name),
			zap.String("status", string(res.Status)),
			zap.Int("response_length", len(text)),
		)
	}
	return res
}

func (o *Oracle) classify(text string) RawResult {
	trimmed := strings.TrimSpace(stripFences(text))
	if trimmed == "" || strings.EqualFold(trimmed, "null") {
		return RawResult{Status: StatusNotRaw}
	}

	parsed := ParseObject(trimmed)
	if !parsed.OK {
		return RawResult{Status: StatusInvalid}
	}

	values := make(map[string]float64, len(nutrientFields))
	for _, field := range nutrientFields {
		raw, present := parsed.Value[field]
		n, isNumber := raw.(float64)
		if !present || !isNumber || n < 0 || math.IsNaN(n) || math.IsInf(n, 0) {
			return RawResult{Status: StatusInvalid}
		}
		values[field] = n
	}

	data := food.Nutrients{
		Calories: values["calories"],
		Protein:  values["protein"],
		Carbs:    values["carbs"],
		Fats:     values["fats"],
		Sugar:    values["sugar"],
		Fiber:    values["fiber"],
	}
	if !o.plausible(data) {
		return RawResult{Status: StatusNotRaw}
	}
	return RawResult{Status: StatusOK, Data: data}
}

// plausible rejects per-100g values no single raw ingredient can have.
func (o *Oracle) plausible(n food.Nutrients) bool {
	if n.Protein > o.maxMacro || n.Carbs > o.maxMacro || n.Fats > o.maxMacro {
		return false
	}
	if n.Sugar > n.Carbs {
		return false
	}
	return n.Calories <= o.maxCalories
}

var leadingNumber = regexp.MustCompile(`^[-+]?(\d+(\.\d*)?|\.\d+)`)

// QueryPieceWeight asks for the average weight of one piece of name. ok is
// false for null, non-numeric, non-positive or implausibly heavy answers.
func (o *Oracle) QueryPieceWeight(ctx context.Context, name string) (float64, bool) {
	text, err := o.completer.Complete(ctx, fmt.Sprintf(pieceWeightPrompt, name))
	if err != nil {
		o.logger.Error("piece weight query failed", zap.String("food", name), zap.Error(err))
		return 0, false
	}

	grams, ok := o.parsePieceWeight(text)
	if !ok {
		o.logger.Warn("piece weight unknown", zap.String("food", name), zap.String("response", truncate(text, 64)))
	}
	return grams, ok
}

func (o *Oracle) parsePieceWeight(text string) (float64, bool) {
	s := strings.TrimSpace(stripFences(text))
	if s == "" || strings.EqualFold(s, "null") {
		return 0, false
	}

	m := leadingNumber.FindString(s)
	if m == "" {
		return 0, false
	}
	grams, err := strconv.ParseFloat(m, 64)
	if err != nil || grams <= 0 || grams > o.maxPieceWeight {
		return 0, false
	}
	return grams, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
