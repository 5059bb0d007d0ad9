package web

import (
	"database/sql"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hpungsan/larder/internal/config"
	"github.com/hpungsan/larder/internal/errors"
	"github.com/hpungsan/larder/internal/ledger"
	"github.com/hpungsan/larder/internal/ops"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	resolver *ops.Resolver
	renderer *Renderer
	logger   *zap.Logger
}

type logFoodRequest struct {
	UserID   string  `json:"user_id"`
	Date     string  `json:"date"`
	FoodName string  `json:"food_name"`
	MealType string  `json:"meal_type"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

type resolveRequest struct {
	FoodName string  `json:"food_name"`
	MealType string  `json:"meal_type"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

// HandleLogFood resolves a food and appends it to the user's day.
// POST /api/food-log
func (h *Handlers) HandleLogFood(c *gin.Context) {
	var body logFoodRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.apiError(c, errors.NewInvalidInput("invalid request body"))
		return
	}

	out, err := h.resolver.LogFood(c.Request.Context(), ops.LogInput{
		UserID:   body.UserID,
		Date:     body.Date,
		FoodName: body.FoodName,
		MealType: body.MealType,
		Quantity: body.Quantity,
		Unit:     body.Unit,
	})
	if err != nil {
		h.apiError(c, err)
		return
	}

	c.JSON(http.StatusCreated, out)
}

// HandleRemove deletes one entry from a meal slot.
// DELETE /api/food-log/:date/:meal_type/:entry_id?user_id=
func (h *Handlers) HandleRemove(c *gin.Context) {
	day, err := ops.Remove(c.Request.Context(), h.db, h.cfg, ops.RemoveInput{
		UserID:   c.Query("user_id"),
		Date:     c.Param("date"),
		MealType: c.Param("meal_type"),
		EntryID:  c.Param("entry_id"),
	})
	if err != nil {
		h.apiError(c, err)
		return
	}

	c.JSON(http.StatusOK, day)
}

// HandleToday returns the user's ledger for the current day.
// GET /api/food-log/today?user_id=
func (h *Handlers) HandleToday(c *gin.Context) {
	day, err := ops.Today(c.Request.Context(), h.db, h.cfg, ops.TodayInput{UserID: c.Query("user_id")})
	if err != nil {
		h.apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, day)
}

// HandleGetDay returns the user's ledger for a date.
// GET /api/food-log/:date?user_id=
func (h *Handlers) HandleGetDay(c *gin.Context) {
	day, err := ops.GetDay(c.Request.Context(), h.db, h.cfg, ops.GetDayInput{
		UserID: c.Query("user_id"),
		Date:   c.Param("date"),
	})
	if err != nil {
		h.apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, day)
}

// HandleRepair recomputes a day's totals from its entries.
// POST /api/food-log/:date/repair?user_id=
func (h *Handlers) HandleRepair(c *gin.Context) {
	out, err := ops.Recompute(c.Request.Context(), h.db, h.cfg, ops.RecomputeInput{
		UserID: c.Query("user_id"),
		Date:   c.Param("date"),
	})
	if err != nil {
		h.apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// HandleResolve computes nutrients for a quantity of food without logging it.
// POST /api/nutrition/resolve
func (h *Handlers) HandleResolve(c *gin.Context) {
	var body resolveRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.apiError(c, errors.NewInvalidInput("invalid request body"))
		return
	}

	out, err := h.resolver.Resolve(c.Request.Context(), ops.ResolveInput{
		FoodName: body.FoodName,
		MealType: body.MealType,
		Quantity: body.Quantity,
		Unit:     body.Unit,
	})
	if err != nil {
		h.apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// HandleListFoods lists cached nutrition records.
// GET /api/foods?limit=&offset=
func (h *Handlers) HandleListFoods(c *gin.Context) {
	out, err := ops.ListFoods(c.Request.Context(), h.db, ops.ListFoodsInput{
		Limit:  parseIntParam(c, "limit", ops.DefaultListLimit),
		Offset: parseIntParam(c, "offset", 0),
	})
	if err != nil {
		h.apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// HandleReport renders a day as an HTML page.
// GET /report/:date?user_id=  ("today" selects the current day)
func (h *Handlers) HandleReport(c *gin.Context) {
	date := c.Param("date")
	if date == "today" {
		date = ""
	}

	day, err := ops.GetDay(c.Request.Context(), h.db, h.cfg, ops.GetDayInput{
		UserID: c.Query("user_id"),
		Date:   date,
	})
	if err != nil {
		h.renderer.renderError(c, err)
		return
	}

	h.renderer.renderPage(c, http.StatusOK, "report", ReportPageData{
		PageData: PageData{
			Title:   fmt.Sprintf("Food log for %s", day.Date),
			Version: h.renderer.version,
		},
		Day:          day,
		RenderedHTML: renderMarkdown(ledger.Markdown(day)),
		Entries:      len(day.Entries()),
	})
}

// apiError writes the JSON error envelope for err.
func (h *Handlers) apiError(c *gin.Context, err error) {
	writeError(c, h.renderer.toLarderError(err))
}

// parseIntParam parses a query parameter as int, returning defaultVal on missing/invalid.
func parseIntParam(c *gin.Context, name string, defaultVal int) int {
	s := c.Query(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
