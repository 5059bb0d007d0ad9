package ledger

import (
	"strings"
	"time"

	"github.com/hpungsan/larder/internal/food"
)

// DateLayout is the calendar-date format used as part of a ledger's identity.
const DateLayout = "2006-01-02"

// MealType is one of the four meal slots of a day.
type MealType string

const (
	Breakfast MealType = "breakfast"
	Lunch     MealType = "lunch"
	Dinner    MealType = "dinner"
	Snacks    MealType = "snacks"
)

// MealTypes lists the slots in display order.
var MealTypes = []MealType{Breakfast, Lunch, Dinner, Snacks}

// ParseMealType lowercases and trims s and reports whether it names a slot.
func ParseMealType(s string) (MealType, bool) {
	mt := MealType(strings.ToLower(strings.TrimSpace(s)))
	switch mt {
	case Breakfast, Lunch, Dinner, Snacks:
		return mt, true
	}
	return mt, false
}

// Entry is a single logged food occurrence. Entries are immutable; the only
// mutation is whole-entry removal.
type Entry struct {
	ID              string   `json:"id"`
	FoodName        string   `json:"food_name"`
	MealType        MealType `json:"meal_type"`
	QuantityInGrams float64  `json:"quantity_in_grams"`
	food.Nutrients
	IsEstimated bool  `json:"is_estimated"`
	CreatedAt   int64 `json:"created_at"`
}

// Day is the per-user, per-calendar-day aggregate.
type Day struct {
	UserID    string         `json:"user_id"`
	Date      string         `json:"date"`
	Breakfast []Entry        `json:"breakfast"`
	Lunch     []Entry        `json:"lunch"`
	Dinner    []Entry        `json:"dinner"`
	Snacks    []Entry        `json:"snacks"`
	Totals    food.Nutrients `json:"totals"`

	// ExpiresAt is the unix-millisecond TTL deadline (0 for an unsaved day)
	ExpiresAt int64 `json:"expires_at,omitempty"`
	CreatedAt int64 `json:"created_at,omitempty"`
	UpdatedAt int64 `json:"updated_at,omitempty"`
}

// Empty returns the zero-valued day used when nothing has been logged yet.
// Slots are non-nil so they serialize as [] rather than null.
func Empty(userID, date string) *Day {
	return &Day{
		UserID:    userID,
		Date:      date,
		Breakfast: []Entry{},
		Lunch:     []Entry{},
		Dinner:    []Entry{},
		Snacks:    []Entry{},
	}
}

// Slot returns a pointer to the entry sequence for mt, or nil for an unknown slot.
func (d *Day) Slot(mt MealType) *[]Entry {
	switch mt {
	case Breakfast:
		return &d.Breakfast
	case Lunch:
		return &d.Lunch
	case Dinner:
		return &d.Dinner
	case Snacks:
		return &d.Snacks
	}
	return nil
}

// Entries returns every entry across all slots in slot order.
func (d *Day) Entries() []Entry {
	all := make([]Entry, 0, len(d.Breakfast)+len(d.Lunch)+len(d.Dinner)+len(d.Snacks))
	for _, mt := range MealTypes {
		all = append(all, *d.Slot(mt)...)
	}
	return all
}

// Sum returns the elementwise nutrient sum of entries.
func Sum(entries []Entry) food.Nutrients {
	var total food.Nutrients
	for _, e := range entries {
		total = Add(total, e.Nutrients)
	}
	return total
}

// Add returns a + b.
func Add(a, b food.Nutrients) food.Nutrients {
	return food.Nutrients{
		Calories: a.Calories + b.Calories,
		Protein:  a.Protein + b.Protein,
		Carbs:    a.Carbs + b.Carbs,
		Fats:     a.Fats + b.Fats,
		Sugar:    a.Sugar + b.Sugar,
		Fiber:    a.Fiber + b.Fiber,
	}
}

// DateOf formats t as a ledger date in loc.
func DateOf(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// ParseDate validates a YYYY-MM-DD string.
func ParseDate(date string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, date, loc)
}

// EndOfDay returns 23:59:59.999 of date in loc, the ledger TTL deadline.
func EndOfDay(date string, loc *time.Location) (time.Time, error) {
	start, err := ParseDate(date, loc)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(start.Year(), start.Month(), start.Day(), 23, 59, 59, int(999*time.Millisecond), loc), nil
}
