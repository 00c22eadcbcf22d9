package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "DEVTRACK"

type Config struct {
	DataFile    string        `mapstructure:"data_file"`
	DBPath      string        `mapstructure:"db_file"`
	Addr        string        `mapstructure:"addr"`
	LogLevel    string        `mapstructure:"log_level"`
	LogFile     string        `mapstructure:"log_file"`
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
	Timezone    string        `mapstructure:"timezone"`
}

// LockPath is the advisory lock guarding the data file.
func (c Config) LockPath() string {
	return c.DataFile + ".lock"
}

// Location resolves Timezone, falling back to the process local zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// DefaultDir is $HOME/.devtrack, or .devtrack when no home is available.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".devtrack"
	}
	return filepath.Join(home, ".devtrack")
}

// Load reads configFile (or DefaultDir()/config.yaml when empty and present),
// applies DEVTRACK_* environment overrides and fills derived paths.
func Load(configFile string) (Config, error) {
	v := viper.New()
	v.SetDefault("data_file", filepath.Join(DefaultDir(), "data.json"))
	v.SetDefault("db_file", "")
	v.SetDefault("addr", "127.0.0.1:3000")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("lock_timeout", "5s")
	v.SetDefault("timezone", "Local")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := configFile != ""
	if !explicit {
		configFile = filepath.Join(DefaultDir(), "config.yaml")
	}
	if _, err := os.Stat(configFile); err == nil {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else if explicit {
		return Config{}, fmt.Errorf("config file %s: %w", configFile, err)
	}

	cfg := Config{}
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg.WithDataFile(cfg.DataFile)
}

// WithDataFile points the config at another data file and recomputes the
// derived database path unless one was configured explicitly.
func (c Config) WithDataFile(dataFile string) (Config, error) {
	if strings.TrimSpace(dataFile) == "" {
		return Config{}, fmt.Errorf("data file path is required")
	}
	derived := c.DBPath == "" || c.DBPath == filepath.Join(filepath.Dir(c.DataFile), "devtrack.db")
	c.DataFile = dataFile
	if derived {
		c.DBPath = filepath.Join(filepath.Dir(dataFile), "devtrack.db")
	}
	return c, nil
}
