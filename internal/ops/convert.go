package ops

import (
	"context"
	"database/sql"
	"math"

	"github.com/hpungsan/larder/internal/db"
	"github.com/hpungsan/larder/internal/errors"
	"github.com/hpungsan/larder/internal/food"
)

// ToGrams converts quantity of unit into grams for rec. ok is false for a
// non-positive quantity or an unknown unit.
//
// Count units use rec's average piece weight. The first time a food is
// counted in pieces the weigher is asked once and the answer is stored on the
// record; later calls never ask again. If the weigher has no answer the
// result is a PIECE_WEIGHT_REQUIRED error.
func ToGrams(ctx context.Context, database *sql.DB, weigher PieceWeigher, rec *food.Record, unit string, quantity float64) (float64, bool, error) {
	if !(quantity > 0) || math.IsInf(quantity, 0) {
		return 0, false, nil
	}

	u := food.NormalizeUnit(unit)
	if factor, ok := food.MassFactor(u); ok {
		return quantity * factor, true, nil
	}
	if !food.IsCountUnit(u) {
		return 0, false, nil
	}

	if rec.AveragePieceWeight != nil && *rec.AveragePieceWeight > 0 {
		return quantity * *rec.AveragePieceWeight, true, nil
	}

	weight, ok := weigher.QueryPieceWeight(ctx, rec.Name)
	if !ok {
		return 0, false, errors.NewPieceWeightRequired(rec.Name)
	}

	stored, err := db.SetPieceWeightIfUnset(ctx, database, rec.Key, weight)
	if err != nil {
		return 0, false, err
	}
	rec.AveragePieceWeight = &stored

	return quantity * stored, true, nil
}
