package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Model kinds accepted by Config.Model.
const (
	ModelLinear      = "linear"
	ModelPersistence = "persistence"
)

// DataConfig describes where recordings live and how frames are reduced.
type DataConfig struct {
	Roots         []string `mapstructure:"roots" yaml:"roots"`
	Height        int      `mapstructure:"height" yaml:"height"`
	Width         int      `mapstructure:"width" yaml:"width"`
	TrainFraction float64  `mapstructure:"train_fraction" yaml:"train_fraction"`
	ValFraction   float64  `mapstructure:"val_fraction" yaml:"val_fraction"`
	NumWorkers    int      `mapstructure:"num_workers" yaml:"num_workers"`
}

// Config captures the runtime knobs for a forecasting run.
type Config struct {
	Seed            int64      `mapstructure:"seed" yaml:"seed"`
	NumSteps        int        `mapstructure:"num_steps" yaml:"num_steps"`
	BatchSize       int        `mapstructure:"batch_size" yaml:"batch_size"`
	LearningRate    float64    `mapstructure:"learning_rate" yaml:"learning_rate"`
	ContextFrames   int        `mapstructure:"context_frames" yaml:"context_frames"`
	Horizon         int        `mapstructure:"horizon" yaml:"horizon"`
	Model           string     `mapstructure:"model" yaml:"model"`
	LogEvery        int        `mapstructure:"log_every" yaml:"log_every"`
	EvalEvery       int        `mapstructure:"eval_every" yaml:"eval_every"`
	EvalBatches     int        `mapstructure:"eval_batches" yaml:"eval_batches"`
	CheckpointEvery int        `mapstructure:"checkpoint_every" yaml:"checkpoint_every"`
	MaxCheckpoints  int        `mapstructure:"max_checkpoints" yaml:"max_checkpoints"`
	MetricsAddr     string     `mapstructure:"metrics_addr" yaml:"metrics_addr"`
	Data            DataConfig `mapstructure:"data" yaml:"data"`
}

// Default returns the built-in configuration used when no file is given.
func Default() *Config {
	return &Config{
		Seed:            42,
		NumSteps:        1000,
		BatchSize:       8,
		LearningRate:    0.01,
		ContextFrames:   4,
		Horizon:         1,
		Model:           ModelLinear,
		LogEvery:        50,
		EvalEvery:       200,
		CheckpointEvery: 500,
		MaxCheckpoints:  3,
		Data: DataConfig{
			Roots:         []string{},
			Height:        32,
			Width:         32,
			TrainFraction: 0.7,
			ValFraction:   0.1,
			NumWorkers:    4,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("seed", d.Seed)
	v.SetDefault("num_steps", d.NumSteps)
	v.SetDefault("batch_size", d.BatchSize)
	v.SetDefault("learning_rate", d.LearningRate)
	v.SetDefault("context_frames", d.ContextFrames)
	v.SetDefault("horizon", d.Horizon)
	v.SetDefault("model", d.Model)
	v.SetDefault("log_every", d.LogEvery)
	v.SetDefault("eval_every", d.EvalEvery)
	v.SetDefault("eval_batches", d.EvalBatches)
	v.SetDefault("checkpoint_every", d.CheckpointEvery)
	v.SetDefault("max_checkpoints", d.MaxCheckpoints)
	v.SetDefault("metrics_addr", d.MetricsAddr)
	v.SetDefault("data.roots", d.Data.Roots)
	v.SetDefault("data.height", d.Data.Height)
	v.SetDefault("data.width", d.Data.Width)
	v.SetDefault("data.train_fraction", d.Data.TrainFraction)
	v.SetDefault("data.val_fraction", d.Data.ValFraction)
	v.SetDefault("data.num_workers", d.Data.NumWorkers)
}

// Load reads a Config like Read and validates the result.
func Load(path string, overrides []string) (*Config, error) {
	cfg, err := Read(path, overrides)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read loads a Config from path (YAML, JSON or TOML by extension) and
// applies key=value overrides on top. An empty path starts from Default.
// Only syntax and key names are checked; values are left to Validate.
func Read(path string, overrides []string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := ApplyOverrides(v, overrides); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.UnmarshalExact(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ApplyOverrides sets each key=value pair on v. Keys use dotted paths
// (data.height=16) and must name an existing setting.
func ApplyOverrides(v *viper.Viper, overrides []string) error {
	for _, o := range overrides {
		key, value, ok := strings.Cut(o, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return fmt.Errorf("override %q: want key=value", o)
		}
		if !v.IsSet(key) {
			return fmt.Errorf("override %q: unknown key %s", o, key)
		}
		v.Set(key, strings.TrimSpace(value))
	}
	return nil
}

// Validate verifies the config is runnable and fills in cadence defaults.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if len(c.Data.Roots) == 0 {
		return errors.New("at least one data root must be set")
	}
	for _, root := range c.Data.Roots {
		if strings.TrimSpace(root) == "" {
			return errors.New("data roots must not be empty")
		}
	}
	if c.NumSteps <= 0 {
		return fmt.Errorf("num_steps must be > 0 (got %d)", c.NumSteps)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0 (got %d)", c.BatchSize)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be > 0 (got %g)", c.LearningRate)
	}
	if c.ContextFrames <= 0 {
		return fmt.Errorf("context_frames must be > 0 (got %d)", c.ContextFrames)
	}
	if c.Horizon <= 0 {
		return fmt.Errorf("horizon must be > 0 (got %d)", c.Horizon)
	}
	switch c.Model {
	case ModelLinear, ModelPersistence:
	default:
		return fmt.Errorf("unknown model %q", c.Model)
	}
	if c.Data.Height <= 0 || c.Data.Width <= 0 {
		return fmt.Errorf("data height and width must be > 0 (got %dx%d)", c.Data.Height, c.Data.Width)
	}
	if c.Data.TrainFraction <= 0 || c.Data.TrainFraction >= 1 {
		return fmt.Errorf("data.train_fraction must be in (0, 1) (got %g)", c.Data.TrainFraction)
	}
	if c.Data.ValFraction < 0 || c.Data.ValFraction >= 1 {
		return fmt.Errorf("data.val_fraction must be in [0, 1) (got %g)", c.Data.ValFraction)
	}
	if c.Data.ValFraction > 0 && c.Data.TrainFraction+c.Data.ValFraction >= 1 {
		return fmt.Errorf("data.train_fraction + data.val_fraction must be < 1 (got %g)",
			c.Data.TrainFraction+c.Data.ValFraction)
	}
	if c.Data.NumWorkers <= 0 {
		c.Data.NumWorkers = 1
	}
	if c.LogEvery <= 0 {
		c.LogEvery = 50
	}
	if c.EvalEvery <= 0 {
		c.EvalEvery = c.NumSteps
	}
	if c.CheckpointEvery <= 0 {
		c.CheckpointEvery = c.NumSteps
	}
	if c.MaxCheckpoints <= 0 {
		c.MaxCheckpoints = 1
	}
	return nil
}

// Save writes c as YAML to path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
