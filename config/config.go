// Package config loads the engine's settings from a TOML file and the
// environment.
//
// Precedence, lowest first: DefaultConfig, the TOML file, a .env file,
// PAYPLAN_* environment variables, then command-line flags (applied by the
// caller).
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/warp/payplan/forecast"
	"github.com/warp/payplan/generic"
	"github.com/warp/payplan/payroll"
	"github.com/warp/payplan/plan"
)

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Forecast  ForecastConfig  `toml:"forecast"`
	Plan      PlanConfig      `toml:"plan"`
	Payroll   PayrollConfig   `toml:"payroll"`
	Scheduler SchedulerConfig `toml:"scheduler"`
}

type ServerConfig struct {
	Port           int      `toml:"port"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

type DatabaseConfig struct {
	// Path of the SQLite file, ":memory:" for a throwaway database.
	Path string `toml:"path"`
}

type ForecastConfig struct {
	Alpha      float64 `toml:"alpha"`
	Beta       float64 `toml:"beta"`
	TrendClamp float64 `toml:"trend_clamp"`
}

type PlanConfig struct {
	WeeksPerMonth           float64  `toml:"weeks_per_month"`
	MinOperatorContribution float64  `toml:"min_operator_contribution"`
	Roles                   []string `toml:"roles"`
	Companies               []string `toml:"companies"`
}

type PayrollConfig struct {
	DefaultBasePay      float64 `toml:"default_base_pay"`
	KPIRate             float64 `toml:"kpi_rate"`
	GroupBonusThreshold float64 `toml:"group_bonus_threshold"`
	GroupBonusPerShift  float64 `toml:"group_bonus_per_shift"`
}

type SchedulerConfig struct {
	Enabled  bool   `toml:"enabled"`
	Interval string `toml:"interval"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		},
		Database: DatabaseConfig{Path: "payplan.db"},
		Forecast: ForecastConfig{Alpha: 0.6, Beta: 0.2},
		Plan: PlanConfig{
			WeeksPerMonth:           4.345,
			MinOperatorContribution: 1000,
			Roles:                   []string{"supervisor", "marketing"},
		},
		Payroll: PayrollConfig{
			DefaultBasePay: 1000,
			KPIRate:        0.1,
		},
		Scheduler: SchedulerConfig{Enabled: false, Interval: "1h"},
	}
}

// Load reads path over the defaults. An empty path skips the file.
// Unknown keys are an error so typos don't silently fall back.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return cfg, fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return cfg, cfg.Validate()
}

// ApplyEnv loads envFiles (".env" when none given) into the process
// environment and overlays PAYPLAN_* variables.
func (c *Config) ApplyEnv(envFiles ...string) error {
	if err := godotenv.Load(envFiles...); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	var errs []error
	c.Server.Port = envInt("PAYPLAN_PORT", c.Server.Port, &errs)
	if origins := getEnv("PAYPLAN_ALLOWED_ORIGINS", ""); origins != "" {
		c.Server.AllowedOrigins = splitList(origins)
	}
	c.Database.Path = getEnv("PAYPLAN_DB_PATH", c.Database.Path)
	c.Forecast.TrendClamp = envFloat("PAYPLAN_TREND_CLAMP", c.Forecast.TrendClamp, &errs)
	c.Payroll.DefaultBasePay = envFloat("PAYPLAN_DEFAULT_BASE_PAY", c.Payroll.DefaultBasePay, &errs)
	c.Payroll.KPIRate = envFloat("PAYPLAN_KPI_RATE", c.Payroll.KPIRate, &errs)
	c.Payroll.GroupBonusThreshold = envFloat("PAYPLAN_GROUP_BONUS_THRESHOLD", c.Payroll.GroupBonusThreshold, &errs)
	c.Payroll.GroupBonusPerShift = envFloat("PAYPLAN_GROUP_BONUS_PER_SHIFT", c.Payroll.GroupBonusPerShift, &errs)
	if companies := getEnv("PAYPLAN_COMPANIES", ""); companies != "" {
		c.Plan.Companies = splitList(companies)
	}
	if v := getEnv("PAYPLAN_SCHEDULER_ENABLED", ""); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PAYPLAN_SCHEDULER_ENABLED: %w", err))
		} else {
			c.Scheduler.Enabled = enabled
		}
	}
	c.Scheduler.Interval = getEnv("PAYPLAN_SCHEDULER_INTERVAL", c.Scheduler.Interval)

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return c.Validate()
}

// Validate checks ranges. Smoothing factors must lie in (0, 1].
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.Forecast.Alpha <= 0 || c.Forecast.Alpha > 1 {
		errs = append(errs, fmt.Errorf("forecast.alpha %v must be in (0, 1]", c.Forecast.Alpha))
	}
	if c.Forecast.Beta <= 0 || c.Forecast.Beta > 1 {
		errs = append(errs, fmt.Errorf("forecast.beta %v must be in (0, 1]", c.Forecast.Beta))
	}
	if c.Forecast.TrendClamp < 0 {
		errs = append(errs, errors.New("forecast.trend_clamp must not be negative"))
	}
	if c.Plan.WeeksPerMonth <= 0 {
		errs = append(errs, errors.New("plan.weeks_per_month must be positive"))
	}
	if c.Plan.MinOperatorContribution < 0 {
		errs = append(errs, errors.New("plan.min_operator_contribution must not be negative"))
	}
	if c.Payroll.DefaultBasePay < 0 || c.Payroll.KPIRate < 0 ||
		c.Payroll.GroupBonusThreshold < 0 || c.Payroll.GroupBonusPerShift < 0 {
		errs = append(errs, errors.New("payroll amounts and rates must not be negative"))
	}
	if _, err := c.SchedulerInterval(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// =============================================================================
// COMPONENT CONFIGS
// =============================================================================

func (c Config) ForecastPolicy() forecast.Policy {
	return forecast.Policy{
		Alpha:      decimal.NewFromFloat(c.Forecast.Alpha),
		Beta:       decimal.NewFromFloat(c.Forecast.Beta),
		TrendClamp: decimal.NewFromFloat(c.Forecast.TrendClamp),
	}
}

func (c Config) PlanConfig() plan.Config {
	pc := plan.Config{
		WeeksPerMonth:           decimal.NewFromFloat(c.Plan.WeeksPerMonth),
		MinOperatorContribution: decimal.NewFromFloat(c.Plan.MinOperatorContribution),
	}
	for _, r := range c.Plan.Roles {
		pc.Roles = append(pc.Roles, generic.RoleCode(r))
	}
	for _, co := range c.Plan.Companies {
		pc.Companies = append(pc.Companies, generic.CompanyCode(co))
	}
	return pc
}

func (c Config) PayrollConfig() payroll.Config {
	return payroll.Config{
		DefaultBasePay: decimal.NewFromFloat(c.Payroll.DefaultBasePay),
		KPIRate:        decimal.NewFromFloat(c.Payroll.KPIRate),
		GroupBonus: payroll.GroupBonus{
			WeeklyThreshold: decimal.NewFromFloat(c.Payroll.GroupBonusThreshold),
			PerShift:        decimal.NewFromFloat(c.Payroll.GroupBonusPerShift),
		},
	}
}

func (c Config) SchedulerInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.Scheduler.Interval)
	if err != nil {
		return 0, fmt.Errorf("scheduler.interval: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("scheduler.interval %s must be positive", d)
	}
	return d, nil
}

// =============================================================================
// ENV HELPERS
// =============================================================================

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envInt(key string, fallback int, errs *[]error) int {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64, errs *[]error) float64 {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return f
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
