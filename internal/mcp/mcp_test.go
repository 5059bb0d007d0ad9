package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/larder/internal/config"
	"github.com/hpungsan/larder/internal/db"
	"github.com/hpungsan/larder/internal/errors"
	"github.com/hpungsan/larder/internal/food"
	"github.com/hpungsan/larder/internal/ops"
	"github.com/hpungsan/larder/internal/oracle"
)

// stubOracle answers every raw query with a fixed result and a fixed piece weight.
type stubOracle struct {
	raw         oracle.RawResult
	pieceWeight float64
}

func (s stubOracle) QueryRawNutrition(context.Context, string) oracle.RawResult { return s.raw }

func (s stubOracle) QueryPieceWeight(context.Context, string) (float64, bool) {
	return s.pieceWeight, s.pieceWeight > 0
}

var banana = food.Nutrients{Calories: 89, Protein: 1.1, Carbs: 22.8, Fats: 0.3, Sugar: 12.2, Fiber: 2.6}

// testSetup creates a temporary database, a UTC config, and handlers over a stub oracle.
func testSetup(t *testing.T) (*Handlers, *config.Config) {
	t.Helper()

	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"

	orc := stubOracle{raw: oracle.RawResult{Status: oracle.StatusOK, Data: banana}, pieceWeight: 118}
	resolver := ops.NewResolver(database, cfg, orc, nil)
	return NewHandlers(database, cfg, resolver, nil), cfg
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func logBanana(t *testing.T, h *Handlers, mealType string) map[string]any {
	t.Helper()
	result, err := h.HandleLog(context.Background(), makeRequest(map[string]any{
		"user_id": "alex", "food_name": "banana", "meal_type": mealType, "quantity": 150, "unit": "g",
	}))
	if err != nil {
		t.Fatalf("HandleLog returned error: %v", err)
	}
	return parseOutput(t, result)
}

func TestHandleLog(t *testing.T) {
	h, _ := testSetup(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
		errorCode string
	}{
		{
			name:      "log by weight",
			args:      map[string]any{"user_id": "alex", "food_name": "banana", "meal_type": "lunch", "quantity": 150, "unit": "g"},
			wantError: false,
		},
		{
			name:      "log by piece",
			args:      map[string]any{"user_id": "alex", "food_name": "banana", "meal_type": "snacks", "quantity": 2, "unit": "pieces"},
			wantError: false,
		},
		{
			name:      "invalid meal type",
			args:      map[string]any{"user_id": "alex", "food_name": "banana", "meal_type": "brunch", "quantity": 1, "unit": "g"},
			wantError: true,
			errorCode: "INVALID_MEAL_TYPE",
		},
		{
			name:      "unsupported unit",
			args:      map[string]any{"user_id": "alex", "food_name": "banana", "meal_type": "lunch", "quantity": 1, "unit": "bunch"},
			wantError: true,
			errorCode: "UNSUPPORTED_UNIT",
		},
		{
			name:      "quantity wrong type",
			args:      map[string]any{"user_id": "alex", "food_name": "banana", "meal_type": "lunch", "quantity": "two", "unit": "g"},
			wantError: true,
			errorCode: "INVALID_INPUT",
		},
		{
			name:      "no arguments",
			args:      nil,
			wantError: true,
			errorCode: "INVALID_INPUT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleLog(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("HandleLog returned error: %v", err)
			}
			if tt.wantError {
				assertErrorCode(t, result, tt.errorCode)
				return
			}
			out := parseOutput(t, result)
			entry := out["entry"].(map[string]any)
			if entry["id"] == "" {
				t.Error("expected a generated entry id")
			}
			if out["source"] == nil {
				t.Error("expected source in output")
			}
		})
	}
}

func TestHandleLog_PieceWeight(t *testing.T) {
	h, _ := testSetup(t)

	result, err := h.HandleLog(context.Background(), makeRequest(map[string]any{
		"user_id": "alex", "food_name": "banana", "meal_type": "snacks", "quantity": 1, "unit": "piece",
	}))
	if err != nil {
		t.Fatalf("HandleLog returned error: %v", err)
	}
	entry := parseOutput(t, result)["entry"].(map[string]any)
	if entry["quantity_in_grams"] != float64(118) || entry["calories"] != float64(105) {
		t.Errorf("entry = %v, want 118g / 105 kcal", entry)
	}
}

func TestHandleRemove(t *testing.T) {
	h, _ := testSetup(t)
	ctx := context.Background()

	out := logBanana(t, h, "dinner")
	entryID := out["entry"].(map[string]any)["id"].(string)

	result, err := h.HandleRemove(ctx, makeRequest(map[string]any{"user_id": "alex", "meal_type": "lunch", "entry_id": entryID}))
	if err != nil {
		t.Fatalf("HandleRemove returned error: %v", err)
	}
	assertErrorCode(t, result, "NOT_FOUND")

	result, err = h.HandleRemove(ctx, makeRequest(map[string]any{"user_id": "alex", "meal_type": "dinner", "entry_id": entryID}))
	if err != nil {
		t.Fatalf("HandleRemove returned error: %v", err)
	}
	day := parseOutput(t, result)
	if len(day["dinner"].([]any)) != 0 {
		t.Errorf("dinner = %v, want empty", day["dinner"])
	}
	if day["totals"].(map[string]any)["calories"] != float64(0) {
		t.Errorf("totals = %v, want zero", day["totals"])
	}

	result, err = h.HandleRemove(ctx, makeRequest(map[string]any{"user_id": "alex", "meal_type": "dinner", "entry_id": entryID}))
	if err != nil {
		t.Fatalf("HandleRemove returned error: %v", err)
	}
	assertErrorCode(t, result, "NOT_FOUND")
}

func TestHandleToday(t *testing.T) {
	h, _ := testSetup(t)
	ctx := context.Background()

	result, err := h.HandleToday(ctx, makeRequest(map[string]any{"user_id": "alex"}))
	if err != nil {
		t.Fatalf("HandleToday returned error: %v", err)
	}
	day := parseOutput(t, result)
	if len(day["breakfast"].([]any)) != 0 {
		t.Errorf("expected an empty day, got %v", day)
	}

	logBanana(t, h, "breakfast")
	logBanana(t, h, "breakfast")

	result, err = h.HandleToday(ctx, makeRequest(map[string]any{"user_id": "alex"}))
	if err != nil {
		t.Fatalf("HandleToday returned error: %v", err)
	}
	day = parseOutput(t, result)
	if len(day["breakfast"].([]any)) != 2 {
		t.Errorf("breakfast = %v, want 2 entries", day["breakfast"])
	}
	if day["totals"].(map[string]any)["calories"] != float64(268) {
		t.Errorf("totals = %v, want 268 kcal", day["totals"])
	}

	result, err = h.HandleToday(ctx, makeRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("HandleToday returned error: %v", err)
	}
	assertErrorCode(t, result, "INVALID_INPUT")
}

func TestHandleDay(t *testing.T) {
	h, _ := testSetup(t)
	ctx := context.Background()
	logBanana(t, h, "lunch")

	t.Run("markdown", func(t *testing.T) {
		result, err := h.HandleDay(ctx, makeRequest(map[string]any{"user_id": "alex", "format": "markdown"}))
		if err != nil {
			t.Fatalf("HandleDay returned error: %v", err)
		}
		if result.IsError {
			t.Fatalf("unexpected error: %s", extractErrorMessage(result))
		}
		text := result.Content[0].(mcp.TextContent).Text
		if !strings.Contains(text, "# Food log for") || !strings.Contains(text, "**banana**") {
			t.Errorf("markdown = %q", text)
		}
	})

	t.Run("bad format", func(t *testing.T) {
		result, err := h.HandleDay(ctx, makeRequest(map[string]any{"user_id": "alex", "format": "xml"}))
		if err != nil {
			t.Fatalf("HandleDay returned error: %v", err)
		}
		assertErrorCode(t, result, "INVALID_INPUT")
	})

	t.Run("other date is empty", func(t *testing.T) {
		result, err := h.HandleDay(ctx, makeRequest(map[string]any{"user_id": "alex", "date": "2001-02-03"}))
		if err != nil {
			t.Fatalf("HandleDay returned error: %v", err)
		}
		day := parseOutput(t, result)
		if day["date"] != "2001-02-03" || len(day["lunch"].([]any)) != 0 {
			t.Errorf("day = %v", day)
		}
	})

	t.Run("bad date", func(t *testing.T) {
		result, err := h.HandleDay(ctx, makeRequest(map[string]any{"user_id": "alex", "date": "tomorrow"}))
		if err != nil {
			t.Fatalf("HandleDay returned error: %v", err)
		}
		assertErrorCode(t, result, "INVALID_INPUT")
	})
}

func TestHandleResolve(t *testing.T) {
	h, _ := testSetup(t)
	ctx := context.Background()

	result, err := h.HandleResolve(ctx, makeRequest(map[string]any{"food_name": "Banana", "meal_type": "snacks", "quantity": 150, "unit": "g"}))
	if err != nil {
		t.Fatalf("HandleResolve returned error: %v", err)
	}
	out := parseOutput(t, result)
	if out["calories"] != float64(134) || out["food_name"] != "banana" || out["is_estimated"] != false {
		t.Errorf("out = %v", out)
	}

	result, err = h.HandleResolve(ctx, makeRequest(map[string]any{"food_name": "", "meal_type": "snacks", "quantity": 1, "unit": "g"}))
	if err != nil {
		t.Fatalf("HandleResolve returned error: %v", err)
	}
	assertErrorCode(t, result, "INVALID_INPUT")
}

func TestHandleListFoods(t *testing.T) {
	h, _ := testSetup(t)
	logBanana(t, h, "lunch")

	result, err := h.HandleListFoods(context.Background(), makeRequest(map[string]any{"limit": 10}))
	if err != nil {
		t.Fatalf("HandleListFoods returned error: %v", err)
	}
	out := parseOutput(t, result)
	items := out["items"].([]any)
	if len(items) != 1 || items[0].(map[string]any)["food_key"] != "banana_per_100g" {
		t.Errorf("items = %v", items)
	}
	if out["pagination"].(map[string]any)["limit"] != float64(10) {
		t.Errorf("pagination = %v", out["pagination"])
	}
}

func TestHandleRepair(t *testing.T) {
	h, _ := testSetup(t)
	ctx := context.Background()

	result, err := h.HandleRepair(ctx, makeRequest(map[string]any{"user_id": "alex"}))
	if err != nil {
		t.Fatalf("HandleRepair returned error: %v", err)
	}
	assertErrorCode(t, result, "NOT_FOUND")

	logBanana(t, h, "lunch")
	result, err = h.HandleRepair(ctx, makeRequest(map[string]any{"user_id": "alex"}))
	if err != nil {
		t.Fatalf("HandleRepair returned error: %v", err)
	}
	if out := parseOutput(t, result); out["repaired"] != false {
		t.Errorf("repaired = %v, want false", out["repaired"])
	}
}

func TestHandleSweep(t *testing.T) {
	h, _ := testSetup(t)
	logBanana(t, h, "lunch")

	result, err := h.HandleSweep(context.Background(), makeRequest(nil))
	if err != nil {
		t.Fatalf("HandleSweep returned error: %v", err)
	}
	out := parseOutput(t, result)
	if out["swept"] != float64(0) || out["message"] != "No expired ledgers to sweep" {
		t.Errorf("out = %v", out)
	}
}

func TestServerRegistration(t *testing.T) {
	h, cfg := testSetup(t)

	s := NewServer(h.db, cfg, h.resolver, nil, "test")
	tools := s.ListTools()
	if tools == nil {
		t.Fatal("expected tools to be registered, got nil")
	}

	expectedTools := []string{
		"food_log",
		"food_remove",
		"food_today",
		"food_day",
		"food_resolve",
		"food_list",
		"ledger_repair",
		"ledger_sweep",
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(expectedTools))
	}
	for _, name := range expectedTools {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	h, cfg := testSetup(t)

	cfg.DisabledTools = []string{"ledger_sweep", "ledger_repair", "ledger_sweep"}
	tools := NewServer(h.db, cfg, h.resolver, nil, "test").ListTools()

	if len(tools) != 6 {
		t.Errorf("registered tool count = %d, want 6", len(tools))
	}
	for _, name := range []string{"ledger_sweep", "ledger_repair"} {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}
}

func TestServerRegistration_AllToolsDisabled(t *testing.T) {
	h, cfg := testSetup(t)

	cfg.DisabledTools = AllToolNames()
	if tools := NewServer(h.db, cfg, h.resolver, nil, "test").ListTools(); len(tools) != 0 {
		t.Errorf("registered tool count = %d, want 0 (all disabled)", len(tools))
	}
}

func TestValidateDisabledTools(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantLen int
	}{
		{"all valid", []string{"ledger_sweep", "food_log"}, 0},
		{"one unknown", []string{"ledger_sweep", "food_export"}, 1},
		{"empty list", []string{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if unknown := ValidateDisabledTools(tt.input); len(unknown) != tt.wantLen {
				t.Errorf("ValidateDisabledTools() returned %d unknown, want %d", len(unknown), tt.wantLen)
			}
		})
	}
}

func TestAllToolNames(t *testing.T) {
	names := AllToolNames()
	if len(names) != 8 {
		t.Errorf("AllToolNames() returned %d names, want 8", len(names))
	}
	if !sort.StringsAreSorted(names) {
		t.Errorf("AllToolNames() = %v, want sorted", names)
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	r := errorResult(errors.NewInternal(fmt.Errorf("sql error: open /tmp/secret.db: permission denied")))
	errObj := errorObject(t, r)

	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if strings.Contains(errObj["message"].(string), "secret.db") {
		t.Errorf("message leaks internals: %v", errObj["message"])
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
}

func TestErrorResult_WrappedErrorPreservesContext(t *testing.T) {
	wrapped := fmt.Errorf("foods[2]: %w", errors.NewInvalidInput("name is required"))
	errObj := errorObject(t, errorResult(wrapped))

	if errObj["code"] != string(errors.ErrInvalidInput) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrInvalidInput)
	}
	if msg := errObj["message"].(string); !strings.Contains(msg, "foods[2]") {
		t.Errorf("message should contain wrapper context, got: %s", msg)
	}
}

func TestErrorResult_NonInternalIncludesDetails(t *testing.T) {
	errObj := errorObject(t, errorResult(errors.NewNotFound("entry", "01ABC")))

	if errObj["code"] != string(errors.ErrNotFound) || errObj["status"] != float64(404) {
		t.Fatalf("error = %v", errObj)
	}
	if _, ok := errObj["details"]; !ok {
		t.Fatal("expected non-INTERNAL errors to include details when present")
	}
}

func TestErrorResult_ForeignError(t *testing.T) {
	errObj := errorObject(t, errorResult(fmt.Errorf("boom")))
	if errObj["code"] != string(errors.ErrInternal) || errObj["status"] != float64(500) {
		t.Errorf("error = %v", errObj)
	}
}

// Helper functions

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func errorObject(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if !result.IsError {
		t.Fatal("expected IsError=true")
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	return payload["error"].(map[string]any)
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()
	if code := errorObject(t, result)["code"]; code != expectedCode {
		t.Errorf("error code = %v, want %s", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}
	if tc, ok := result.Content[0].(mcp.TextContent); ok {
		return tc.Text
	}
	return "<non-text content>"
}
