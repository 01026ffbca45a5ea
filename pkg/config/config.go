// Package config loads typed configuration from the environment. An
// optional dotenv file (ENV_FILE, falling back to ./.env) is exported
// into the process environment once, before the first section is read;
// variables already present in the real environment win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

var (
	loadEnvOnce sync.Once
	loadEnvErr  error
)

// MustNew panics when the section cannot be loaded. Wiring code uses it;
// a missing required variable is unrecoverable at startup.
func MustNew[T any](prefix string) *T {
	conf, err := New[T](prefix)
	if err != nil {
		panic(err)
	}
	return conf
}

func New[T any](prefix string) (*T, error) {
	loadEnvOnce.Do(func() {
		loadEnvErr = loadDotEnv(envFile())
	})
	if loadEnvErr != nil {
		return nil, fmt.Errorf("load env file: %w", loadEnvErr)
	}

	var conf T
	if err := envconfig.Process(prefix, &conf); err != nil {
		return nil, fmt.Errorf("process %s section: %w", prefix, err)
	}
	return &conf, nil
}

func envFile() string {
	if path := strings.TrimSpace(os.Getenv("ENV_FILE")); path != "" {
		return path
	}
	return ".env"
}

func loadDotEnv(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return nil
	}

	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return err
	}

	for k, v := range viper.AllSettings() {
		key := strings.ToUpper(k)
		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, fmt.Sprint(v)); err != nil {
			return err
		}
	}
	return nil
}
