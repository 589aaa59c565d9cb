package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifyrelay/pkg/config"
)

type relayConfig struct {
	MaxAttempts int           `env:"RELAY_TEST_MAX_ATTEMPTS" envDefault:"5"`
	BaseDelay   time.Duration `env:"RELAY_TEST_BASE_DELAY" envDefault:"1s"`
	Channels    []string      `env:"RELAY_TEST_CHANNELS" envSeparator:"," envDefault:"email,sms,push"`
}

type requiredConfig struct {
	Region string `env:"RELAY_TEST_REGION,required"`
}

type fileConfig struct {
	Name  string `env:"RELAY_TEST_NAME"`
	Limit int    `env:"RELAY_TEST_LIMIT"`
}

// Tests in this file mutate the process environment and the shared cache,
// so they do not run in parallel.

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		config.Reset()
		var cfg relayConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, 5, cfg.MaxAttempts)
		assert.Equal(t, time.Second, cfg.BaseDelay)
		assert.Equal(t, []string{"email", "sms", "push"}, cfg.Channels)
	})

	t.Run("environment overrides defaults", func(t *testing.T) {
		config.Reset()
		t.Setenv("RELAY_TEST_MAX_ATTEMPTS", "3")
		t.Setenv("RELAY_TEST_BASE_DELAY", "250ms")
		var cfg relayConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, 3, cfg.MaxAttempts)
		assert.Equal(t, 250*time.Millisecond, cfg.BaseDelay)
	})

	t.Run("cached after first load", func(t *testing.T) {
		config.Reset()
		var first relayConfig
		require.NoError(t, config.Load(&first))

		t.Setenv("RELAY_TEST_MAX_ATTEMPTS", "9")
		var second relayConfig
		require.NoError(t, config.Load(&second))
		assert.Equal(t, first, second)

		config.Reset()
		var third relayConfig
		require.NoError(t, config.Load(&third))
		assert.Equal(t, 9, third.MaxAttempts)
	})

	t.Run("missing required", func(t *testing.T) {
		config.Reset()
		var cfg requiredConfig
		err := config.Load(&cfg)
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})

	t.Run("nil pointer", func(t *testing.T) {
		var cfg *relayConfig
		assert.ErrorIs(t, config.Load(cfg), config.ErrNilPointer)
	})
}

func TestMustLoad(t *testing.T) {
	config.Reset()
	assert.Panics(t, func() {
		var cfg requiredConfig
		config.MustLoad(&cfg)
	})
}

func TestLoadEnv(t *testing.T) {
	t.Run("loads file", func(t *testing.T) {
		config.Reset()
		os.Unsetenv("RELAY_TEST_NAME")
		os.Unsetenv("RELAY_TEST_LIMIT")
		t.Cleanup(func() {
			os.Unsetenv("RELAY_TEST_NAME")
			os.Unsetenv("RELAY_TEST_LIMIT")
		})

		require.NoError(t, config.LoadEnv("testdata/relay.env"))

		var cfg fileConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, "from_file", cfg.Name)
		assert.Equal(t, 42, cfg.Limit)
	})

	t.Run("missing file", func(t *testing.T) {
		err := config.LoadEnv("testdata/absent.env")
		assert.ErrorIs(t, err, config.ErrLoadingEnvFile)
	})
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()

	t.Run("decodes map", func(t *testing.T) {
		t.Parallel()
		var m map[string]string
		require.NoError(t, config.LoadYAML("testdata/criticality.yaml", &m))
		assert.Equal(t, map[string]string{"MESSAGE": "critical", "LIKE": "non_critical"}, m)
	})

	t.Run("broken file", func(t *testing.T) {
		t.Parallel()
		var m map[string]string
		assert.ErrorIs(t, config.LoadYAML("testdata/broken.yaml", &m), config.ErrReadingFile)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		var m map[string]string
		assert.ErrorIs(t, config.LoadYAML("testdata/none.yaml", &m), config.ErrReadingFile)
	})
}
