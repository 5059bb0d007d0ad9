package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/hpungsan/larder/internal/config"
	"github.com/hpungsan/larder/internal/errors"
	"github.com/hpungsan/larder/internal/ledger"
	"github.com/hpungsan/larder/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	resolver *ops.Resolver
	logger   *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(database *sql.DB, cfg *config.Config, resolver *ops.Resolver, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{db: database, cfg: cfg, resolver: resolver, logger: logger}
}

// LogRequest represents the arguments for food_log.
type LogRequest struct {
	UserID   string  `json:"user_id"`
	Date     string  `json:"date,omitempty"`
	FoodName string  `json:"food_name"`
	MealType string  `json:"meal_type"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

// RemoveRequest represents the arguments for food_remove.
type RemoveRequest struct {
	UserID   string `json:"user_id"`
	Date     string `json:"date,omitempty"`
	MealType string `json:"meal_type"`
	EntryID  string `json:"entry_id"`
}

// DayRequest represents the arguments for food_today, food_day and ledger_repair.
type DayRequest struct {
	UserID string `json:"user_id"`
	Date   string `json:"date,omitempty"`
	Format string `json:"format,omitempty"`
}

// ResolveRequest represents the arguments for food_resolve.
type ResolveRequest struct {
	FoodName string  `json:"food_name"`
	MealType string  `json:"meal_type"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

// ListFoodsRequest represents the arguments for food_list.
type ListFoodsRequest struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// HandleLog handles the food_log tool call.
func (h *Handlers) HandleLog(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LogRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidInput(err.Error())), nil
	}

	result, err := h.resolver.LogFood(ctx, ops.LogInput{
		UserID:   input.UserID,
		Date:     input.Date,
		FoodName: input.FoodName,
		MealType: input.MealType,
		Quantity: input.Quantity,
		Unit:     input.Unit,
	})
	if err != nil {
		return h.fail(err), nil
	}

	return successResult(result)
}

// HandleRemove handles the food_remove tool call.
func (h *Handlers) HandleRemove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RemoveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidInput(err.Error())), nil
	}

	result, err := ops.Remove(ctx, h.db, h.cfg, ops.RemoveInput{
		UserID:   input.UserID,
		Date:     input.Date,
		MealType: input.MealType,
		EntryID:  input.EntryID,
	})
	if err != nil {
		return h.fail(err), nil
	}

	return successResult(result)
}

// HandleToday handles the food_today tool call.
func (h *Handlers) HandleToday(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DayRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidInput(err.Error())), nil
	}

	result, err := ops.Today(ctx, h.db, h.cfg, ops.TodayInput{UserID: input.UserID})
	if err != nil {
		return h.fail(err), nil
	}

	return successResult(result)
}

// HandleDay handles the food_day tool call. format=markdown returns the
// day as a markdown report instead of JSON.
func (h *Handlers) HandleDay(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DayRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidInput(err.Error())), nil
	}
	if input.Format != "" && input.Format != "json" && input.Format != "markdown" {
		return errorResult(errors.NewInvalidInput("format must be json or markdown")), nil
	}

	day, err := ops.GetDay(ctx, h.db, h.cfg, ops.GetDayInput{UserID: input.UserID, Date: input.Date})
	if err != nil {
		return h.fail(err), nil
	}

	if input.Format == "markdown" {
		return mcp.NewToolResultText(ledger.Markdown(day)), nil
	}
	return successResult(day)
}

// HandleResolve handles the food_resolve tool call.
func (h *Handlers) HandleResolve(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ResolveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidInput(err.Error())), nil
	}

	result, err := h.resolver.Resolve(ctx, ops.ResolveInput{
		FoodName: input.FoodName,
		MealType: input.MealType,
		Quantity: input.Quantity,
		Unit:     input.Unit,
	})
	if err != nil {
		return h.fail(err), nil
	}

	return successResult(result)
}

// HandleListFoods handles the food_list tool call.
func (h *Handlers) HandleListFoods(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListFoodsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidInput(err.Error())), nil
	}

	result, err := ops.ListFoods(ctx, h.db, ops.ListFoodsInput{Limit: input.Limit, Offset: input.Offset})
	if err != nil {
		return h.fail(err), nil
	}

	return successResult(result)
}

// HandleRepair handles the ledger_repair tool call.
func (h *Handlers) HandleRepair(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DayRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidInput(err.Error())), nil
	}

	result, err := ops.Recompute(ctx, h.db, h.cfg, ops.RecomputeInput{UserID: input.UserID, Date: input.Date})
	if err != nil {
		return h.fail(err), nil
	}

	return successResult(result)
}

// HandleSweep handles the ledger_sweep tool call.
func (h *Handlers) HandleSweep(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Sweep(ctx, h.db)
	if err != nil {
		return h.fail(err), nil
	}

	return successResult(result)
}

// fail logs internal failures before converting err to an error result.
func (h *Handlers) fail(err error) *mcp.CallToolResult {
	if errors.StatusOf(err) >= 500 {
		h.logger.Error("tool call failed", zap.Error(err))
	}
	return errorResult(err)
}

// errorResult creates an MCP error result from an error.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var lErr *errors.LarderError
	if stderrors.As(err, &lErr) {
		message := lErr.Message
		if wrapped := err.Error(); lErr != err && wrapped != lErr.Error() {
			message = wrapped
		}
		errorObj := map[string]any{
			"code":    lErr.Code,
			"message": message,
			"status":  lErr.Status,
		}
		// INTERNAL details may carry file paths or SQL text
		if lErr.Code != errors.ErrInternal && lErr.Details != nil {
			errorObj["details"] = lErr.Details
		}
		if lErr.Code == errors.ErrInternal {
			errorObj["message"] = "an internal error occurred"
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
