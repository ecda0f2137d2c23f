package config

import (
	"time"

	"github.com/mitchellh/mapstructure"
)

// GlobalConfig holds the directives that are not services: bootstrap
// settings and process-wide resource defaults (spec.md §3.4). It is
// decoded from the raw directive map accumulated while parsing, the
// same shape original_source/src/conf.c fills one C global at a time.
type GlobalConfig struct {
	Hostname        string            `mapstructure:"hostname"`
	DefaultRunlevel int               `mapstructure:"runlevel"`
	LogSize         int               `mapstructure:"log_size"`
	LogCount        int               `mapstructure:"log_count"`
	ShutdownHelper  string            `mapstructure:"shutdown"`
	NetworkHelper   string            `mapstructure:"network"`
	RunpartsHelper  string            `mapstructure:"runparts"`
	Debug           bool              `mapstructure:"debug"`
	Rescue          bool              `mapstructure:"rescue"`
	SingleUser      bool              `mapstructure:"single_user"`
	ServiceInterval time.Duration     `mapstructure:"service_interval"`
	RLimits         map[string]string `mapstructure:"rlimit"`
}

// DefaultGlobalConfig matches original_source/src/conf.c's built-in
// defaults (logfile_size_max/logfile_count_max, runlevel 2).
func DefaultGlobalConfig() GlobalConfig {
	return GlobalConfig{
		DefaultRunlevel: 2,
		LogSize:         200000,
		LogCount:        5,
		ServiceInterval: 60 * time.Second,
	}
}

// DecodeGlobal overlays raw directive values onto base using
// mapstructure, the same role hugorm/viper-style config decode plays
// in the rest of the pack.
func DecodeGlobal(base GlobalConfig, raw map[string]interface{}) (GlobalConfig, error) {
	out := base
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return base, err
	}
	if err := dec.Decode(raw); err != nil {
		return base, err
	}
	return out, nil
}
