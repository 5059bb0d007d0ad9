package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/hpungsan/larder/internal/errors"
	"github.com/hpungsan/larder/internal/food"
)

const foodColumns = `
	food_key, name, base_quantity_grams,
	calories, protein, carbs, fats, sugar, fiber,
	average_piece_weight, category, source, created_at, updated_at
`

// GetFood retrieves a cached nutrition record by its normalized key.
func GetFood(ctx context.Context, db *sql.DB, key string) (*food.Record, error) {
	row := db.QueryRowContext(ctx, `SELECT `+foodColumns+` FROM foods WHERE food_key = ?`, key)
	rec, err := scanFood(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("food", key)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return rec, nil
}

// InsertFoodIfAbsent stores rec only when no record exists for rec.Key, then
// returns whatever is stored. Concurrent first resolutions of the same food
// therefore converge on a single row.
func InsertFoodIfAbsent(ctx context.Context, db *sql.DB, rec *food.Record) (*food.Record, error) {
	now := time.Now().Unix()
	if rec.CreatedAt == 0 {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt == 0 {
		rec.UpdatedAt = rec.CreatedAt
	}

	query := `
		INSERT INTO foods (` + foodColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(food_key) DO NOTHING
	`
	if _, err := db.ExecContext(ctx, query, foodArgs(rec)...); err != nil {
		return nil, errors.NewInternal(err)
	}

	return GetFood(ctx, db, rec.Key)
}

// SeedFood inserts or replaces a record's nutrients. Used for manual seeding;
// the resolution path only ever uses InsertFoodIfAbsent. A piece weight that
// is already stored is kept, since it is set at most once.
func SeedFood(ctx context.Context, db *sql.DB, rec *food.Record) error {
	now := time.Now().Unix()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	query := `
		INSERT INTO foods (` + foodColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(food_key) DO UPDATE SET
			name = excluded.name,
			base_quantity_grams = excluded.base_quantity_grams,
			calories = excluded.calories,
			protein = excluded.protein,
			carbs = excluded.carbs,
			fats = excluded.fats,
			sugar = excluded.sugar,
			fiber = excluded.fiber,
			average_piece_weight = COALESCE(foods.average_piece_weight, excluded.average_piece_weight),
			category = excluded.category,
			source = excluded.source,
			updated_at = excluded.updated_at
	`
	if _, err := db.ExecContext(ctx, query, foodArgs(rec)...); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// SetPieceWeightIfUnset records grams as the average piece weight only when
// none is stored yet, and returns the stored value. A caller that loses a
// calibration race gets the winner's weight back.
func SetPieceWeightIfUnset(ctx context.Context, db *sql.DB, key string, grams float64) (float64, error) {
	now := time.Now().Unix()

	_, err := db.ExecContext(ctx, `
		UPDATE foods
		SET average_piece_weight = ?, updated_at = ?
		WHERE food_key = ? AND average_piece_weight IS NULL
	`, grams, now, key)
	if err != nil {
		return 0, errors.NewInternal(err)
	}

	var stored sql.NullFloat64
	err = db.QueryRowContext(ctx, `SELECT average_piece_weight FROM foods WHERE food_key = ?`, key).Scan(&stored)
	if err == sql.ErrNoRows {
		return 0, errors.NewNotFound("food", key)
	}
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	if !stored.Valid {
		return 0, errors.NewInternal(nil)
	}
	return stored.Float64, nil
}

// ListFoods returns cached records ordered by key, plus the total count.
func ListFoods(ctx context.Context, db *sql.DB, limit, offset int) ([]food.Record, int, error) {
	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM foods`).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+foodColumns+` FROM foods ORDER BY food_key LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	items := make([]food.Record, 0)
	for rows.Next() {
		rec, err := scanFood(rows)
		if err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		items = append(items, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	return items, total, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanFood scans a single row into a food.Record.
func scanFood(row rowScanner) (*food.Record, error) {
	var (
		rec         food.Record
		pieceWeight sql.NullFloat64
	)

	err := row.Scan(
		&rec.Key, &rec.Name, &rec.BaseQuantityGrams,
		&rec.Per100g.Calories, &rec.Per100g.Protein, &rec.Per100g.Carbs,
		&rec.Per100g.Fats, &rec.Per100g.Sugar, &rec.Per100g.Fiber,
		&pieceWeight, &rec.Category, &rec.Source, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.AveragePieceWeight = fromNullFloat(pieceWeight)
	return &rec, nil
}

func foodArgs(rec *food.Record) []any {
	base := rec.BaseQuantityGrams
	if base <= 0 {
		base = food.BaseQuantityGrams
	}
	return []any{
		rec.Key, rec.Name, base,
		rec.Per100g.Calories, rec.Per100g.Protein, rec.Per100g.Carbs,
		rec.Per100g.Fats, rec.Per100g.Sugar, rec.Per100g.Fiber,
		toNullFloat(rec.AveragePieceWeight), rec.Category, rec.Source,
		rec.CreatedAt, rec.UpdatedAt,
	}
}

// toNullFloat converts a *float64 to sql.NullFloat64.
func toNullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// fromNullFloat converts a sql.NullFloat64 to *float64.
func fromNullFloat(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	return &nf.Float64
}
