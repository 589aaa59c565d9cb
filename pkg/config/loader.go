package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// cache keeps one parsed copy per config type so every component that asks
// for the same struct sees the same values.
type cache struct {
	mu     sync.Mutex
	values map[reflect.Type]any
}

var (
	parsed = &cache{values: make(map[reflect.Type]any)}

	defaultEnvLoaded sync.Once
)

// LoadEnv loads the given .env files into the process environment, or ./.env
// when no path is given. Variables already set in the environment win.
func LoadEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil {
		return errors.Join(ErrLoadingEnvFile, err)
	}
	return nil
}

// Load parses environment variables into v using `env` and `envDefault` tags.
// The first call for a type parses the environment; later calls for the same
// type copy the cached value.
//
//	type Config struct {
//		MaxAttempts int           `env:"RELAY_MAX_ATTEMPTS" envDefault:"5"`
//		BaseDelay   time.Duration `env:"RELAY_BASE_DELAY" envDefault:"1s"`
//	}
//
//	var cfg Config
//	if err := config.Load(&cfg); err != nil { ... }
func Load[T any](v *T) error {
	defaultEnvLoaded.Do(func() {
		// .env is optional
		_ = godotenv.Load()
	})
	if v == nil {
		return ErrNilPointer
	}

	key := reflect.TypeFor[T]()

	parsed.mu.Lock()
	defer parsed.mu.Unlock()

	if cached, ok := parsed.values[key]; ok {
		*v = cached.(T)
		return nil
	}

	var fresh T
	if err := env.Parse(&fresh); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	parsed.values[key] = fresh
	*v = fresh
	return nil
}

// MustLoad works like Load but panics on failure. Use it in main for
// configuration the process cannot start without.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

// Reset drops every cached config. Tests call it after changing the environment.
func Reset() {
	parsed.mu.Lock()
	defer parsed.mu.Unlock()
	clear(parsed.values)
}
