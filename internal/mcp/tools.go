package mcp

import "github.com/mark3labs/mcp-go/mcp"

var mealTypeEnum = mcp.Enum("breakfast", "lunch", "dinner", "snacks")

var logToolDef = mcp.NewTool("food_log",
	mcp.WithDescription("Resolve a food's nutrients and append it to a user's meal slot for the day. "+
		"Raw foods are looked up per 100g and scaled; composed dishes get a fixed per-serving estimate."),
	mcp.WithString("user_id", mcp.Required(), mcp.Description("Ledger owner")),
	mcp.WithString("food_name", mcp.Required(), mcp.Description("Free-text food name, e.g. \"banana\"")),
	mcp.WithString("meal_type", mcp.Required(), mealTypeEnum),
	mcp.WithNumber("quantity", mcp.Required(), mcp.Description("Amount in the given unit; must be > 0")),
	mcp.WithString("unit", mcp.Required(), mcp.Description("g, kg, ml, l, cup, tbsp, tsp, or piece/pieces/pcs")),
	mcp.WithString("date", mcp.Description("YYYY-MM-DD; defaults to today")),
)

var removeToolDef = mcp.NewTool("food_remove",
	mcp.WithDescription("Remove one logged entry from a meal slot and subtract it from the day's totals."),
	mcp.WithString("user_id", mcp.Required()),
	mcp.WithString("meal_type", mcp.Required(), mealTypeEnum),
	mcp.WithString("entry_id", mcp.Required(), mcp.Description("ID returned by food_log")),
	mcp.WithString("date", mcp.Description("YYYY-MM-DD; defaults to today")),
)

var todayToolDef = mcp.NewTool("food_today",
	mcp.WithDescription("Return the user's food log for today. An empty day is returned when nothing is logged."),
	mcp.WithString("user_id", mcp.Required()),
)

var dayToolDef = mcp.NewTool("food_day",
	mcp.WithDescription("Return the user's food log for a date. Days expire at the end of the day they were created."),
	mcp.WithString("user_id", mcp.Required()),
	mcp.WithString("date", mcp.Description("YYYY-MM-DD; defaults to today")),
	mcp.WithString("format", mcp.Enum("json", "markdown"), mcp.Description("Output format (default json)")),
)

var resolveToolDef = mcp.NewTool("food_resolve",
	mcp.WithDescription("Compute nutrients for a quantity of food without logging it."),
	mcp.WithString("food_name", mcp.Required()),
	mcp.WithString("meal_type", mcp.Required(), mealTypeEnum),
	mcp.WithNumber("quantity", mcp.Required()),
	mcp.WithString("unit", mcp.Required()),
)

var listFoodsToolDef = mcp.NewTool("food_list",
	mcp.WithDescription("List cached per-100g nutrition records."),
	mcp.WithNumber("limit", mcp.Description("Page size (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Records to skip")),
)

var repairToolDef = mcp.NewTool("ledger_repair",
	mcp.WithDescription("Recompute a day's totals from its entries if they have drifted."),
	mcp.WithString("user_id", mcp.Required()),
	mcp.WithString("date", mcp.Description("YYYY-MM-DD; defaults to today")),
)

var sweepToolDef = mcp.NewTool("ledger_sweep",
	mcp.WithDescription("Permanently delete every expired ledger. Expired ledgers are already invisible to reads."),
)
