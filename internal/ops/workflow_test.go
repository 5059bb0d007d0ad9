package ops

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/larder/internal/errors"
	"github.com/hpungsan/larder/internal/ledger"
)

// TestFullWorkflow exercises a user's day end to end:
// log raw food → log by piece → log composed dish → today → remove → repair → expire → sweep
func TestFullWorkflow(t *testing.T) {
	database, cfg := setupTest(t)
	setClock(t, march10)
	ctx := context.Background()

	orc := &fakeOracle{raw: rawOK(bananaPer100g), pieceWeight: 118, pieceOK: true}
	r := NewResolver(database, cfg, orc, nil)

	// 1. Raw food by weight
	first, err := r.LogFood(ctx, LogInput{UserID: "alex", FoodName: "banana", MealType: "breakfast", Quantity: 150, Unit: "g"})
	require.NoError(t, err)
	require.Equal(t, float64(134), first.Entry.Calories)

	// 2. Same food by piece, calibrating once
	second, err := r.LogFood(ctx, LogInput{UserID: "alex", FoodName: "banana", MealType: "snacks", Quantity: 2, Unit: "pieces"})
	require.NoError(t, err)
	require.Equal(t, float64(236), second.Entry.QuantityInGrams)
	require.Equal(t, SourceCache, second.Source)

	// 3. Composed dish
	orc.mu.Lock()
	orc.raw = rawStatus("not_raw")
	orc.mu.Unlock()
	third, err := r.LogFood(ctx, LogInput{UserID: "alex", FoodName: "butter chicken", MealType: "dinner", Quantity: 1, Unit: "serving"})
	require.NoError(t, err)
	require.True(t, third.Entry.IsEstimated)

	// 4. Today has all three, totals consistent
	day, err := Today(ctx, database, cfg, TodayInput{UserID: "alex"})
	require.NoError(t, err)
	require.Len(t, day.Entries(), 3)
	require.True(t, totalsMatch(day))
	require.Equal(t, first.Entry.Calories+second.Entry.Calories+250, day.Totals.Calories)

	// 5. Remove the snack
	day, err = Remove(ctx, database, cfg, RemoveInput{UserID: "alex", MealType: string(ledger.Snacks), EntryID: second.Entry.ID})
	require.NoError(t, err)
	require.Empty(t, day.Snacks)
	require.Equal(t, first.Entry.Calories+250, day.Totals.Calories)

	// 6. Nothing to repair
	repaired, err := Recompute(ctx, database, cfg, RecomputeInput{UserID: "alex"})
	require.NoError(t, err)
	require.False(t, repaired.Repaired)

	// 7. Next day: yesterday has expired and is swept
	setClock(t, march10.Add(24*time.Hour))
	sweep, err := Sweep(ctx, database)
	require.NoError(t, err)
	require.Equal(t, 1, sweep.Swept)

	_, err = Remove(ctx, database, cfg, RemoveInput{UserID: "alex", Date: "2026-03-10", MealType: "breakfast", EntryID: first.Entry.ID})
	require.True(t, errors.Is(err, errors.ErrNotFound))

	raw, pieces := orc.calls()
	require.Equal(t, 2, raw)
	require.Equal(t, 1, pieces)
}
