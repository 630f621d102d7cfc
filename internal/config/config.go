// Package config implements solvereign's layered configuration loader,
// grounded on the teacher's internal/config viper singleton: defaults, then
// the first config file found (project .solvereign/config.yaml walked up
// from cwd, then user config dir, then home dir), then SOLVEREIGN_-prefixed
// env vars, each layer overriding the last. Only one config file is read,
// and CLI flags are not a layer of this loader. Unlike the teacher (yaml-only), solvereign also accepts TOML via
// BurntSushi/toml for the user-level file, matching what both teacher
// dependencies are actually for.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	"github.com/DRNaser/solvereign/internal/fingerprint"
)

// Config holds every recognized knob from spec.md §6.
type Config struct {
	TimeBudgetS      int     `mapstructure:"time_budget_s"`
	Pass2MinTimeS    int     `mapstructure:"pass2_min_time_s"`
	Seed             int64   `mapstructure:"seed"`
	MaxWeeklyHours   float64 `mapstructure:"max_weekly_hours"`
	MinRestMinutes   int     `mapstructure:"min_rest_minutes"`
	FreezeHorizonMin int     `mapstructure:"freeze_horizon_min"`
	PTPenalty        int64   `mapstructure:"pt_penalty"`
	CapQuota2ER      float64 `mapstructure:"cap_quota_2er"`
	KillSwitch       bool    `mapstructure:"kill_switch"`

	// Schema version gate: bumped whenever a knob's meaning changes, so a
	// stored PolicyConfig from an older schema is never silently reused.
	SchemaVersion string `mapstructure:"schema_version"`
}

// CurrentSchemaVersion is the schema this build understands.
const CurrentSchemaVersion = "1.0.0"

// Defaults returns the documented default configuration (spec.md §6).
func Defaults() Config {
	return Config{
		TimeBudgetS:      180,
		Pass2MinTimeS:    30,
		Seed:             94,
		MaxWeeklyHours:   55,
		MinRestMinutes:   660,
		FreezeHorizonMin: 720,
		PTPenalty:        150000,
		CapQuota2ER:      0.30,
		KillSwitch:       false,
		SchemaVersion:    CurrentSchemaVersion,
	}
}

// Loader resolves layered configuration the way the teacher's viper
// singleton does: defaults, then the file found by search-path precedence,
// then env. It has no method for applying caller overrides such as CLI
// flags.
type Loader struct {
	v *viper.Viper
}

// NewLoader builds a Loader seeded with Defaults and ready to read a
// discovered file plus environment variables.
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	d := Defaults()
	v.SetDefault("time_budget_s", d.TimeBudgetS)
	v.SetDefault("pass2_min_time_s", d.Pass2MinTimeS)
	v.SetDefault("seed", d.Seed)
	v.SetDefault("max_weekly_hours", d.MaxWeeklyHours)
	v.SetDefault("min_rest_minutes", d.MinRestMinutes)
	v.SetDefault("freeze_horizon_min", d.FreezeHorizonMin)
	v.SetDefault("pt_penalty", d.PTPenalty)
	v.SetDefault("cap_quota_2er", d.CapQuota2ER)
	v.SetDefault("kill_switch", d.KillSwitch)
	v.SetDefault("schema_version", d.SchemaVersion)
	v.SetEnvPrefix("SOLVEREIGN")
	v.AutomaticEnv()
	return &Loader{v: v}
}

// DiscoverConfigFile walks up from cwd looking for .solvereign/config.yaml,
// then falls back to the user config dir and home dir, mirroring the
// teacher's three-tier precedence in internal/config.Initialize.
func (l *Loader) DiscoverConfigFile() (string, bool) {
	if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; ; {
			p := filepath.Join(dir, ".solvereign", "config.yaml")
			if _, err := os.Stat(p); err == nil {
				return p, true
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}
	if configDir, err := os.UserConfigDir(); err == nil {
		p := filepath.Join(configDir, "solvereign", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(home, ".solvereign", "config.toml")
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

// Load resolves the final Config: defaults -> discovered file -> env vars.
func (l *Loader) Load() (Config, error) {
	if path, ok := l.DiscoverConfigFile(); ok {
		if strings.HasSuffix(path, ".toml") {
			var fileCfg Config
			if _, err := toml.DecodeFile(path, &fileCfg); err != nil {
				return Config{}, fmt.Errorf("decode toml config %s: %w", path, err)
			}
			applyNonZero(l.v, fileCfg)
		} else {
			l.v.SetConfigFile(path)
			if err := l.v.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}
	var c Config
	if err := l.v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.SchemaVersion == "" {
		c.SchemaVersion = CurrentSchemaVersion
	}
	return c, nil
}

// applyNonZero pushes a TOML-decoded Config's non-zero fields into viper as
// defaults, so a TOML file participates in the same precedence chain as a
// YAML one: above the built-in defaults, below SOLVEREIGN_ env vars.
func applyNonZero(v *viper.Viper, c Config) {
	if c.TimeBudgetS != 0 {
		v.SetDefault("time_budget_s", c.TimeBudgetS)
	}
	if c.Pass2MinTimeS != 0 {
		v.SetDefault("pass2_min_time_s", c.Pass2MinTimeS)
	}
	if c.Seed != 0 {
		v.SetDefault("seed", c.Seed)
	}
	if c.MaxWeeklyHours != 0 {
		v.SetDefault("max_weekly_hours", c.MaxWeeklyHours)
	}
	if c.MinRestMinutes != 0 {
		v.SetDefault("min_rest_minutes", c.MinRestMinutes)
	}
	if c.FreezeHorizonMin != 0 {
		v.SetDefault("freeze_horizon_min", c.FreezeHorizonMin)
	}
	if c.PTPenalty != 0 {
		v.SetDefault("pt_penalty", c.PTPenalty)
	}
	if c.CapQuota2ER != 0 {
		v.SetDefault("cap_quota_2er", c.CapQuota2ER)
	}
	if c.KillSwitch {
		v.SetDefault("kill_switch", c.KillSwitch)
	}
	if c.SchemaVersion != "" {
		v.SetDefault("schema_version", c.SchemaVersion)
	}
}

// Hash produces the config_hash referenced throughout spec.md: a canonical,
// field-sorted rendering hashed with fingerprint.SHA256Hex. Field order is
// fixed in code (not map iteration) so the hash is stable regardless of Go
// version or struct layout.
func (c Config) Hash() string {
	canonical := strings.Join([]string{
		"time_budget_s=" + strconv.Itoa(c.TimeBudgetS),
		"pass2_min_time_s=" + strconv.Itoa(c.Pass2MinTimeS),
		"seed=" + strconv.FormatInt(c.Seed, 10),
		"max_weekly_hours=" + strconv.FormatFloat(c.MaxWeeklyHours, 'f', -1, 64),
		"min_rest_minutes=" + strconv.Itoa(c.MinRestMinutes),
		"freeze_horizon_min=" + strconv.Itoa(c.FreezeHorizonMin),
		"pt_penalty=" + strconv.FormatInt(c.PTPenalty, 10),
		"cap_quota_2er=" + strconv.FormatFloat(c.CapQuota2ER, 'f', -1, 64),
		"kill_switch=" + strconv.FormatBool(c.KillSwitch),
		"schema_version=" + c.SchemaVersion,
	}, "|")
	return fingerprint.SHA256Hex(canonical)
}

// MaxWeeklyMinutes is MaxWeeklyHours converted to whole minutes for
// comparisons against integer-minute roster totals.
func (c Config) MaxWeeklyMinutes() int {
	return int(c.MaxWeeklyHours * 60)
}
