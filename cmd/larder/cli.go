package main

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/larder/internal/config"
	"github.com/hpungsan/larder/internal/errors"
	"github.com/hpungsan/larder/internal/ledger"
	"github.com/hpungsan/larder/internal/ops"
	"github.com/hpungsan/larder/internal/web"
)

// maxSeedBytes bounds a seed document read from stdin or a file.
const maxSeedBytes = 4 << 20

func userFlag() cli.Flag {
	return &cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "Ledger owner", EnvVars: []string{"LARDER_USER"}}
}

func dateFlag() cli.Flag {
	return &cli.StringFlag{Name: "date", Aliases: []string{"d"}, Usage: "YYYY-MM-DD (default: today)"}
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(database *sql.DB, cfg *config.Config, resolver *ops.Resolver, logger *zap.Logger) *cli.App {
	app := &cli.App{
		Name:    "larder",
		Usage:   "Daily calorie ledger with AI nutrition lookup",
		Version: Version,
		Commands: []*cli.Command{
			logCmd(resolver),
			removeCmd(database, cfg),
			todayCmd(database, cfg),
			dayCmd(database, cfg),
			resolveCmd(resolver),
			foodsCmd(database),
			seedCmd(database),
			sweepCmd(database),
			repairCmd(database, cfg),
			serveCmd(database, cfg, resolver, logger),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// logCmd creates the log command.
func logCmd(resolver *ops.Resolver) *cli.Command {
	return &cli.Command{
		Name:      "log",
		Usage:     "Resolve a food and add it to a meal",
		ArgsUsage: "<food name...> <quantity>",
		Flags: []cli.Flag{
			userFlag(),
			&cli.StringFlag{Name: "meal", Aliases: []string{"m"}, Usage: "breakfast|lunch|dinner|snacks", Required: true},
			&cli.StringFlag{Name: "unit", Value: "g", Usage: "Unit for quantity"},
			dateFlag(),
		},
		Action: func(c *cli.Context) error {
			name, quantity, err := parseFoodArgs(c.Args().Slice())
			if err != nil {
				return outputError(err)
			}

			output, err := resolver.LogFood(c.Context, ops.LogInput{
				UserID:   c.String("user"),
				Date:     c.String("date"),
				FoodName: name,
				MealType: c.String("meal"),
				Quantity: quantity,
				Unit:     c.String("unit"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// removeCmd creates the remove command.
func removeCmd(database *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "remove",
		Usage:     "Remove a logged entry",
		ArgsUsage: "<entry id>",
		Flags: []cli.Flag{
			userFlag(),
			&cli.StringFlag{Name: "meal", Aliases: []string{"m"}, Usage: "Slot the entry is in", Required: true},
			dateFlag(),
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidInput("exactly one entry id is required"))
			}

			output, err := ops.Remove(c.Context, database, cfg, ops.RemoveInput{
				UserID:   c.String("user"),
				Date:     c.String("date"),
				MealType: c.String("meal"),
				EntryID:  c.Args().First(),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// todayCmd creates the today command.
func todayCmd(database *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "today",
		Usage: "Show today's food log",
		Flags: []cli.Flag{
			userFlag(),
			&cli.BoolFlag{Name: "markdown", Usage: "Print a markdown report instead of JSON"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Today(c.Context, database, cfg, ops.TodayInput{UserID: c.String("user")})
			if err != nil {
				return outputError(err)
			}
			return outputDay(c, output)
		},
	}
}

// dayCmd creates the day command.
func dayCmd(database *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "day",
		Usage:     "Show the food log for a date",
		ArgsUsage: "<YYYY-MM-DD>",
		Flags: []cli.Flag{
			userFlag(),
			&cli.BoolFlag{Name: "markdown", Usage: "Print a markdown report instead of JSON"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.GetDay(c.Context, database, cfg, ops.GetDayInput{
				UserID: c.String("user"),
				Date:   c.Args().First(),
			})
			if err != nil {
				return outputError(err)
			}
			return outputDay(c, output)
		},
	}
}

// resolveCmd creates the resolve command.
func resolveCmd(resolver *ops.Resolver) *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Compute nutrients for a food without logging it",
		ArgsUsage: "<food name...> <quantity>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "meal", Aliases: []string{"m"}, Value: "snacks", Usage: "breakfast|lunch|dinner|snacks"},
			&cli.StringFlag{Name: "unit", Value: "g", Usage: "Unit for quantity"},
		},
		Action: func(c *cli.Context) error {
			name, quantity, err := parseFoodArgs(c.Args().Slice())
			if err != nil {
				return outputError(err)
			}

			output, err := resolver.Resolve(c.Context, ops.ResolveInput{
				FoodName: name,
				MealType: c.String("meal"),
				Quantity: quantity,
				Unit:     c.String("unit"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// foodsCmd creates the foods command.
func foodsCmd(database *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "foods",
		Usage: "List cached nutrition records",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Max items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Pagination offset"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.ListFoods(c.Context, database, ops.ListFoodsInput{
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// seedCmd creates the seed command.
func seedCmd(database *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Load per-100g nutrition records from a JSON array (stdin or --file)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Path to a JSON file"},
		},
		Action: func(c *cli.Context) error {
			var (
				data []byte
				err  error
			)
			switch path := c.String("file"); {
			case path != "":
				data, err = readFile(path, maxSeedBytes)
			case stdinHasData():
				var text string
				text, err = readStdin(maxSeedBytes)
				data = []byte(text)
			default:
				return outputError(errors.NewInvalidInput("seed data must be piped via stdin or given with --file"))
			}
			if err != nil {
				return outputError(errors.NewInvalidInput(err.Error()))
			}

			var foods []ops.SeedFood
			if err := json.Unmarshal(data, &foods); err != nil {
				return outputError(errors.NewInvalidInput(fmt.Sprintf("seed data is not a JSON array of foods: %v", err)))
			}

			output, err := ops.Seed(c.Context, database, ops.SeedInput{Foods: foods})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// sweepCmd creates the sweep command.
func sweepCmd(database *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Permanently delete expired ledgers",
		Action: func(c *cli.Context) error {
			output, err := ops.Sweep(c.Context, database)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// repairCmd creates the repair command.
func repairCmd(database *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "repair",
		Usage: "Recompute a day's totals from its entries",
		Flags: []cli.Flag{userFlag(), dateFlag()},
		Action: func(c *cli.Context) error {
			output, err := ops.Recompute(c.Context, database, cfg, ops.RecomputeInput{
				UserID: c.String("user"),
				Date:   c.String("date"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// serveCmd creates the serve command: the HTTP API plus the background sweeper.
func serveCmd(database *sql.DB, cfg *config.Config, resolver *ops.Resolver, logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API and daily report pages",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Listen address (default from config)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Listen port (default from config)"},
		},
		Action: func(c *cli.Context) error {
			serveCfg := *cfg
			if c.IsSet("bind") {
				serveCfg.Bind = c.String("bind")
			}
			if c.IsSet("port") {
				serveCfg.Port = c.Int("port")
			}
			if serveCfg.Port <= 0 || serveCfg.Port > 65535 {
				return outputError(errors.NewInvalidInput(fmt.Sprintf("invalid port %d", serveCfg.Port)))
			}

			ctx, cancel := context.WithCancel(c.Context)
			defer cancel()

			sweeper := ops.NewSweeper(database, &serveCfg, logger.Named("sweeper"))
			go sweeper.Run(ctx)

			srv := web.NewServer(database, &serveCfg, resolver, logger.Named("web"), Version)
			if err := web.Run(ctx, srv, logger.Named("web")); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// Helper functions

// parseFoodArgs splits "<food name...> <quantity>" positional arguments.
func parseFoodArgs(args []string) (string, float64, error) {
	if len(args) < 2 {
		return "", 0, errors.NewInvalidInput("food name and quantity are required")
	}
	last := args[len(args)-1]
	quantity, err := strconv.ParseFloat(last, 64)
	if err != nil {
		return "", 0, errors.NewInvalidInput(fmt.Sprintf("quantity %q is not a number", last))
	}
	return strings.Join(args[:len(args)-1], " "), quantity, nil
}

// outputDay prints a day as JSON, or as markdown when --markdown is set.
func outputDay(c *cli.Context, day *ledger.Day) error {
	if c.Bool("markdown") {
		_, err := fmt.Fprint(os.Stdout, ledger.Markdown(day))
		return err
	}
	return outputJSON(day)
}

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var lErr *errors.LarderError
	if stderrors.As(err, &lErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", lErr.Code, lErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads at most maxBytes from stdin.
func readStdin(maxBytes int64) (string, error) {
	data, err := readLimited(os.Stdin, maxBytes)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// readFile reads at most maxBytes from path.
func readFile(path string, maxBytes int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readLimited(f, maxBytes)
}

func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("input exceeds %d bytes", maxBytes)
	}
	return data, nil
}
