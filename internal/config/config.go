// Package config loads keyfob's configuration: defaults, then an
// optional config file, then KEYFOB_* environment variables. The
// result is an explicit value handed down from main, not ambient
// global state.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is everything keyfob reads at startup.
type Config struct {
	// Vault is the path of the secret collection file.
	Vault string `mapstructure:"vault"`

	// Digits and Period control code derivation.
	Digits int `mapstructure:"digits"`
	Period int `mapstructure:"period"`

	// NoRemind suppresses the cleartext-storage reminder printed by
	// mutating commands ("don't remind me again").
	NoRemind bool `mapstructure:"no_remind"`

	// LogLevel is the zerolog level name ("debug", "info", "warn", ...).
	LogLevel string `mapstructure:"log_level"`
}

// Path returns the default config file location.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not get user config directory: %w", err)
	}
	return filepath.Join(dir, "keyfob", "config.yaml"), nil
}

// DefaultVaultPath returns the default vault file location in the
// user's home directory, falling back to the working directory when
// the home directory cannot be resolved.
func DefaultVaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "vault.json"
	}
	return filepath.Join(home, ".keyfob", "vault.json")
}

func defaults() map[string]any {
	return map[string]any{
		"vault":     DefaultVaultPath(),
		"digits":    6,
		"period":    30,
		"no_remind": false,
		"log_level": "warn",
	}
}

// Load reads the configuration. file overrides the default search
// location when non-empty; a missing default file is fine, a missing
// explicit file is an error.
func Load(file string) (Config, error) {
	var c Config
	v := viper.New()

	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return c, fmt.Errorf("could not read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if path, err := Path(); err == nil {
			v.AddConfigPath(filepath.Dir(path))
		}
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return c, err
			}
		}
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("keyfob")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	return c, nil
}

// Save writes the configuration to the given file, creating the parent
// directory as needed. An empty file saves to the default location.
func Save(c Config, file string) error {
	if file == "" {
		path, err := Path()
		if err != nil {
			return err
		}
		file = path
	}

	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return fmt.Errorf("could not create config directory: %w", err)
	}

	v := viper.New()
	v.Set("vault", c.Vault)
	v.Set("digits", c.Digits)
	v.Set("period", c.Period)
	v.Set("no_remind", c.NoRemind)
	v.Set("log_level", c.LogLevel)
	if err := v.WriteConfigAs(file); err != nil {
		return fmt.Errorf("could not write config %s: %w", file, err)
	}
	return nil
}
