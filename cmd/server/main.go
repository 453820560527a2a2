/*
main.go - Application entry point

PURPOSE:
  Command-line front end of the payplan engine. "serve" runs the HTTP API;
  the other commands run one planning or payroll operation against the
  database and print the result.

STARTUP SEQUENCE:
  1. Load config (defaults, TOML file, .env, PAYPLAN_* variables)
  2. Apply command-line overrides
  3. Initialize SQLite store and metrics registry
  4. Build forecaster, allocator, planner and payroll service
  5. Run the selected command

COMMANDS:
  serve                    HTTP API with optional plan scheduler
  generate --month         Regenerate a month's plan
  pay --operator --month   Operator pay (add --week for the weekly window)
  pay --role --month       Management role pay
  seed --scenario          Reset the database and load a demo scenario

GLOBAL FLAGS:
  --config  TOML config file (optional)
  --db      SQLite database path, ":memory:" for in-memory database
  --port    HTTP server port (serve only)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  # Run with file database
  ./server serve --db=./data/payplan.db

  # Plan April from the command line
  ./server seed --scenario=steady-growth --month=2025-04
  ./server generate --month=2025-04

  # Operator pay for March, with the first week of March
  ./server pay --operator=op1 --month=2025-03 --week=2025-03-03

SEE ALSO:
  - config/config.go: Settings and environment variables
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/warp/payplan/config"
	"github.com/warp/payplan/factory"
	"github.com/warp/payplan/forecast"
	"github.com/warp/payplan/generic"
	"github.com/warp/payplan/metrics"
	"github.com/warp/payplan/payroll"
	"github.com/warp/payplan/plan"
	"github.com/warp/payplan/store/sqlite"
)

var (
	configPath string
	dbPath     string
	port       int
)

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Forecast-driven compensation planning engine",
	Long: `Payplan forecasts next month's turnover per company, splits it into
targets for companies, operators and management roles, and computes
operator and role pay against those targets.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "TOML config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")
	rootCmd.PersistentFlags().IntVar(&port, "port", 0, "HTTP server port (overrides config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app is the wired engine shared by every command.
type app struct {
	cfg      config.Config
	store    *sqlite.Store
	registry *prometheus.Registry
	planner  *plan.Planner
	payroll  *payroll.Service
	rules    *factory.RuleFactory
	clock    generic.Clock
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.Database.Path = dbPath
	}
	if flags.Changed("port") {
		cfg.Server.Port = port
	}
	return cfg, cfg.Validate()
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	clock := generic.SystemClock{}
	logger := log.Default()

	planner := &plan.Planner{
		Revenue:   store,
		Plans:     store,
		Operators: store,
		Allocator: plan.NewAllocator(forecast.New(cfg.ForecastPolicy(), clock), cfg.PlanConfig()),
		Metrics:   m,
		Logger:    logger,
		Clock:     clock,
	}
	svc := &payroll.Service{
		Revenue:     store,
		Rules:       store,
		Adjustments: store,
		Debts:       store,
		Plans:       store,
		Roles:       store,
		Operators:   store,
		Config:      cfg.PayrollConfig(),
		Metrics:     m,
		Logger:      logger,
	}

	return &app{
		cfg:      cfg,
		store:    store,
		registry: reg,
		planner:  planner,
		payroll:  svc,
		rules:    factory.NewRuleFactory(),
		clock:    clock,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// monthFlag parses a YYYY-MM flag value; empty means the current month.
func (a *app) monthFlag(v string) (generic.TimePoint, error) {
	if v == "" {
		return generic.MonthStart(generic.Today(a.clock)), nil
	}
	m, err := generic.ParseMonth(v)
	if err != nil {
		return generic.TimePoint{}, fmt.Errorf("invalid month %q (use YYYY-MM): %w", v, err)
	}
	return m, nil
}
