// Package config loads runtime settings from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/imprenta-ai/flexoplan/flexoplan/dates"
	"github.com/imprenta-ai/flexoplan/flexoplan/genetic"
)

// Config is the full runtime configuration.
type Config struct {
	DBPath  string
	Dates   dates.Config
	Weights genetic.Weights
	GA      genetic.Params
}

// Load reads FLEXOPLAN_* variables on top of the defaults. A .env file
// in the working directory is merged in first; its absence is not an
// error.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		DBPath:  "flexoplan.db",
		Dates:   dates.DefaultConfig(),
		Weights: genetic.DefaultWeights(),
		GA:      genetic.DefaultParams(),
	}

	var err error
	setString(&cfg.DBPath, "FLEXOPLAN_DB_PATH")

	setInt(&cfg.Dates.Calendar.WeekdayShifts, "FLEXOPLAN_WEEKDAY_SHIFTS", &err)
	setInt(&cfg.Dates.Calendar.HoursPerWeekdayShift, "FLEXOPLAN_WEEKDAY_SHIFT_HOURS", &err)
	setInt(&cfg.Dates.Calendar.SaturdayShifts, "FLEXOPLAN_SATURDAY_SHIFTS", &err)
	setInt(&cfg.Dates.Calendar.HoursPerSaturdayShift, "FLEXOPLAN_SATURDAY_SHIFT_HOURS", &err)
	setInt(&cfg.Dates.Calendar.DayStartHour, "FLEXOPLAN_DAY_START_HOUR", &err)
	setIntList(&cfg.Dates.Calendar.WorkingDays, "FLEXOPLAN_WORKING_DAYS", &err)

	setFloat(&cfg.Dates.Efficiency, "FLEXOPLAN_EFFICIENCY", &err)
	setFloat(&cfg.Dates.SafetyBuffer, "FLEXOPLAN_SAFETY_BUFFER", &err)

	setFloat(&cfg.Weights.SetupCost, "FLEXOPLAN_WEIGHT_SETUP", &err)
	setFloat(&cfg.Weights.DelayPenalty, "FLEXOPLAN_WEIGHT_DELAY", &err)
	setFloat(&cfg.Weights.InkOvercapacity, "FLEXOPLAN_WEIGHT_OVERCAPACITY", &err)
	setFloat(&cfg.Weights.HighInkPriority, "FLEXOPLAN_WEIGHT_HIGH_INK", &err)

	setInt(&cfg.GA.Population, "FLEXOPLAN_GA_POPULATION", &err)
	setInt(&cfg.GA.Generations, "FLEXOPLAN_GA_GENERATIONS", &err)
	setFloat(&cfg.GA.CrossoverProb, "FLEXOPLAN_GA_CROSSOVER_PROB", &err)
	setFloat(&cfg.GA.MutationProb, "FLEXOPLAN_GA_MUTATION_PROB", &err)
	setInt64(&cfg.GA.Seed, "FLEXOPLAN_GA_SEED", &err)

	if err != nil {
		return Config{}, err
	}
	if cfg.Dates.Efficiency <= 0 || cfg.Dates.Efficiency > 1 {
		return Config{}, fmt.Errorf("FLEXOPLAN_EFFICIENCY must be in (0, 1], got %v", cfg.Dates.Efficiency)
	}
	if cfg.Dates.SafetyBuffer < 0 {
		return Config{}, fmt.Errorf("FLEXOPLAN_SAFETY_BUFFER must be >= 0, got %v", cfg.Dates.SafetyBuffer)
	}
	return cfg, nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string, err *error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" || *err != nil {
		return
	}
	parsed, parseErr := strconv.Atoi(strings.TrimSpace(v))
	if parseErr != nil {
		*err = fmt.Errorf("%s: %w", key, parseErr)
		return
	}
	*dst = parsed
}

func setInt64(dst *int64, key string, err *error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" || *err != nil {
		return
	}
	parsed, parseErr := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if parseErr != nil {
		*err = fmt.Errorf("%s: %w", key, parseErr)
		return
	}
	*dst = parsed
}

func setFloat(dst *float64, key string, err *error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" || *err != nil {
		return
	}
	parsed, parseErr := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if parseErr != nil {
		*err = fmt.Errorf("%s: %w", key, parseErr)
		return
	}
	*dst = parsed
}

// setIntList parses a comma-separated weekday list, 0 meaning Monday.
func setIntList(dst *[]int, key string, err *error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" || *err != nil {
		return
	}
	parts := strings.Split(v, ",")
	days := make([]int, 0, len(parts))
	for _, p := range parts {
		parsed, parseErr := strconv.Atoi(strings.TrimSpace(p))
		if parseErr != nil {
			*err = fmt.Errorf("%s: %w", key, parseErr)
			return
		}
		if parsed < 0 || parsed > 6 {
			*err = fmt.Errorf("%s: weekday %d out of range 0..6", key, parsed)
			return
		}
		days = append(days, parsed)
	}
	*dst = days
}
