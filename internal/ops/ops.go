package ops

import (
	"context"
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/larder/internal/errors"
	"github.com/hpungsan/larder/internal/oracle"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// PieceWeigher supplies the average weight of one piece of a food.
type PieceWeigher interface {
	QueryPieceWeight(ctx context.Context, name string) (float64, bool)
}

// NutritionOracle is what the resolver needs from *oracle.Oracle.
type NutritionOracle interface {
	PieceWeigher
	QueryRawNutrition(ctx context.Context, name string) oracle.RawResult
}

// now is the clock used for "today" and TTL deadlines. Tests replace it.
var now = time.Now

// validateUserID trims userID and rejects an empty value.
func validateUserID(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", errors.NewInvalidInput("user_id is required")
	}
	return userID, nil
}

// generateULID generates a new ULID.
func generateULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
