// Package config loads service configuration from a YAML file with flag-level
// defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	yaml "go.yaml.in/yaml/v3"
)

// Duration parses YAML scalars like "60s" or "1h30m" via time.ParseDuration.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	if v < 0 {
		return fmt.Errorf("duration must be >= 0, got %q", raw)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	HTTP struct {
		Addr      string `yaml:"addr"`
		AuthToken string `yaml:"auth_token"`
		Debug     bool   `yaml:"debug"`
	} `yaml:"http"`
	DB struct {
		Path string `yaml:"path"`
	} `yaml:"db"`
	Poll struct {
		Interval         Duration `yaml:"interval"`
		ExecutionTimeout Duration `yaml:"execution_timeout"`
	} `yaml:"poll"`
	Retention struct {
		Sweep  string   `yaml:"sweep"` // cron spec, empty disables
		MaxAge Duration `yaml:"max_age"`
	} `yaml:"retention"`
	Notify struct {
		RatePerSec float64 `yaml:"rate_per_sec"`
		Burst      int     `yaml:"burst"`
	} `yaml:"notify"`
	Executor struct {
		Endpoint string `yaml:"endpoint"` // empty selects the echo handler
		Token    string `yaml:"token"`
	} `yaml:"executor"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func Default() Config {
	var c Config
	c.HTTP.Addr = ":8080"
	c.DB.Path = "deferq.db"
	c.Poll.Interval = Duration(60 * time.Second)
	c.Poll.ExecutionTimeout = Duration(30 * time.Second)
	c.Retention.MaxAge = Duration(30 * 24 * time.Hour)
	c.Notify.RatePerSec = 5
	c.Notify.Burst = 10
	c.Log.Level = "info"
	return c
}

// Load reads path over the defaults. Unknown fields are an error so typos
// don't silently configure nothing.
func Load(path string) (Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return c, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

func (c Config) Validate() error {
	if c.Poll.Interval.Std() <= 0 {
		return fmt.Errorf("poll.interval must be > 0")
	}
	if c.Retention.Sweep != "" {
		if _, err := cron.ParseStandard(c.Retention.Sweep); err != nil {
			return fmt.Errorf("retention.sweep: invalid cron spec %q: %w", c.Retention.Sweep, err)
		}
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	return nil
}
