package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hpungsan/larder/internal/errors"
	"github.com/hpungsan/larder/internal/food"
	"github.com/hpungsan/larder/internal/ledger"
)

// ensureLedger returns the id of the live ledger row for (userID, date),
// creating it with the given TTL deadline (unix ms) when absent. An expired
// row that the sweeper has not reached yet is replaced, never revived.
func ensureLedger(ctx context.Context, tx *sql.Tx, userID, date string, expiresAt int64, now time.Time) (int64, error) {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM ledgers WHERE user_id = ? AND date = ? AND expires_at <= ?`,
		userID, date, now.UnixMilli()); err != nil {
		return 0, errors.NewInternal(err)
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledgers (user_id, date, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, date) DO NOTHING
	`, userID, date, expiresAt, now.Unix(), now.Unix())
	if err != nil {
		return 0, errors.NewInternal(err)
	}

	var id int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM ledgers WHERE user_id = ? AND date = ?`,
		userID, date).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, errors.NewNotFound("ledger", userID+"/"+date)
	}
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return id, nil
}

// GetLedger loads the live ledger for (userID, date) with all entries in
// slot order. Rows whose TTL has passed are reported as not found.
// Totals and entries are read from one snapshot.
func GetLedger(ctx context.Context, db *sql.DB, userID, date string, now time.Time) (*ledger.Day, int64, error) {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer tx.Rollback()

	d := ledger.Empty(userID, date)

	var id int64
	err = tx.QueryRowContext(ctx, `
		SELECT id, calories, protein, carbs, fats, sugar, fiber, expires_at, created_at, updated_at
		FROM ledgers
		WHERE user_id = ? AND date = ? AND expires_at > ?
	`, userID, date, now.UnixMilli()).Scan(
		&id,
		&d.Totals.Calories, &d.Totals.Protein, &d.Totals.Carbs,
		&d.Totals.Fats, &d.Totals.Sugar, &d.Totals.Fiber,
		&d.ExpiresAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, 0, errors.NewNotFound("ledger", userID+"/"+date)
	}
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id, meal_type, food_name, quantity_in_grams,
			calories, protein, carbs, fats, sugar, fiber,
			is_estimated, created_at
		FROM ledger_entries
		WHERE ledger_id = ?
		ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e         ledger.Entry
			estimated int
		)
		if err := rows.Scan(
			&e.ID, &e.MealType, &e.FoodName, &e.QuantityInGrams,
			&e.Calories, &e.Protein, &e.Carbs, &e.Fats, &e.Sugar, &e.Fiber,
			&estimated, &e.CreatedAt,
		); err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		e.IsEstimated = estimated != 0

		slot := d.Slot(e.MealType)
		if slot == nil {
			return nil, 0, errors.NewInternal(fmt.Errorf("entry %s has unknown meal type %q", e.ID, e.MealType))
		}
		*slot = append(*slot, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	return d, id, nil
}

// AppendEntry adds e at the end of its slot in the (userID, date) ledger and
// increments the totals by e's nutrients. The ledger row is created on first
// write with the given TTL deadline (unix ms); creation, insert and totals
// update commit together. Totals are updated with SQL increments, not by
// rewriting the whole aggregate, so concurrent appends cannot lose updates.
// Returns the ledger id.
func AppendEntry(ctx context.Context, db *sql.DB, userID, date string, expiresAt int64, now time.Time, e *ledger.Entry) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	defer tx.Rollback()

	ledgerID, err := ensureLedger(ctx, tx, userID, date, expiresAt, now)
	if err != nil {
		return 0, err
	}
	if err := insertEntry(ctx, tx, ledgerID, e); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.NewInternal(err)
	}
	return ledgerID, nil
}

// insertEntry writes e at MAX(position)+1 for its slot and adds its nutrients
// to the totals.
func insertEntry(ctx context.Context, tx *sql.Tx, ledgerID int64, e *ledger.Entry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (
			id, ledger_id, meal_type, position, food_name, quantity_in_grams,
			calories, protein, carbs, fats, sugar, fiber, is_estimated, created_at
		)
		SELECT ?, ?, ?, COALESCE(MAX(position), -1) + 1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		FROM ledger_entries
		WHERE ledger_id = ? AND meal_type = ?
	`,
		e.ID, ledgerID, string(e.MealType), e.FoodName, e.QuantityInGrams,
		e.Calories, e.Protein, e.Carbs, e.Fats, e.Sugar, e.Fiber, boolToInt(e.IsEstimated), e.CreatedAt,
		ledgerID, string(e.MealType),
	)
	if err != nil {
		return errors.NewInternal(err)
	}

	return adjustTotals(ctx, tx, ledgerID, e.Nutrients, false)
}

// RemoveEntry deletes entryID from the given slot and subtracts its nutrients
// from the ledger totals, flooring each field at zero.
func RemoveEntry(ctx context.Context, db *sql.DB, ledgerID int64, mealType ledger.MealType, entryID string) (food.Nutrients, error) {
	var removed food.Nutrients

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return removed, errors.NewInternal(err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		DELETE FROM ledger_entries
		WHERE id = ? AND ledger_id = ? AND meal_type = ?
		RETURNING calories, protein, carbs, fats, sugar, fiber
	`, entryID, ledgerID, string(mealType)).Scan(
		&removed.Calories, &removed.Protein, &removed.Carbs,
		&removed.Fats, &removed.Sugar, &removed.Fiber,
	)
	if err == sql.ErrNoRows {
		return removed, errors.NewNotFound("entry", entryID)
	}
	if err != nil {
		return removed, errors.NewInternal(err)
	}

	if err := adjustTotals(ctx, tx, ledgerID, removed, true); err != nil {
		return removed, err
	}

	if err := tx.Commit(); err != nil {
		return removed, errors.NewInternal(err)
	}
	return removed, nil
}

// adjustTotals adds (or subtracts, floored at zero) n to the ledger totals.
func adjustTotals(ctx context.Context, tx *sql.Tx, ledgerID int64, n food.Nutrients, subtract bool) error {
	query := `
		UPDATE ledgers SET
			calories = calories + ?,
			protein = protein + ?,
			carbs = carbs + ?,
			fats = fats + ?,
			sugar = sugar + ?,
			fiber = fiber + ?,
			updated_at = ?
		WHERE id = ?
	`
	if subtract {
		query = `
		UPDATE ledgers SET
			calories = MAX(calories - ?, 0),
			protein = MAX(protein - ?, 0),
			carbs = MAX(carbs - ?, 0),
			fats = MAX(fats - ?, 0),
			sugar = MAX(sugar - ?, 0),
			fiber = MAX(fiber - ?, 0),
			updated_at = ?
		WHERE id = ?
	`
	}

	result, err := tx.ExecContext(ctx, query,
		n.Calories, n.Protein, n.Carbs, n.Fats, n.Sugar, n.Fiber,
		time.Now().Unix(), ledgerID)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound("ledger", fmt.Sprintf("%d", ledgerID))
	}
	return nil
}

// RecomputeTotals rewrites a ledger's totals as the sum of its entries.
func RecomputeTotals(ctx context.Context, db *sql.DB, ledgerID int64) error {
	result, err := db.ExecContext(ctx, `
		UPDATE ledgers SET
			calories = (SELECT COALESCE(SUM(calories), 0) FROM ledger_entries WHERE ledger_id = ledgers.id),
			protein = (SELECT COALESCE(SUM(protein), 0) FROM ledger_entries WHERE ledger_id = ledgers.id),
			carbs = (SELECT COALESCE(SUM(carbs), 0) FROM ledger_entries WHERE ledger_id = ledgers.id),
			fats = (SELECT COALESCE(SUM(fats), 0) FROM ledger_entries WHERE ledger_id = ledgers.id),
			sugar = (SELECT COALESCE(SUM(sugar), 0) FROM ledger_entries WHERE ledger_id = ledgers.id),
			fiber = (SELECT COALESCE(SUM(fiber), 0) FROM ledger_entries WHERE ledger_id = ledgers.id),
			updated_at = ?
		WHERE id = ?
	`, time.Now().Unix(), ledgerID)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound("ledger", fmt.Sprintf("%d", ledgerID))
	}
	return nil
}

// SweepExpired permanently deletes ledgers whose TTL deadline is at or before
// now, together with their entries. Returns the number of ledgers deleted.
func SweepExpired(ctx context.Context, db *sql.DB, now time.Time) (int, error) {
	nowMs := now.UnixMilli()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM ledger_entries
		WHERE ledger_id IN (SELECT id FROM ledgers WHERE expires_at <= ?)
	`, nowMs); err != nil {
		return 0, errors.NewInternal(err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM ledgers WHERE expires_at <= ?`, nowMs)
	if err != nil {
		return 0, errors.NewInternal(err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(count), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
