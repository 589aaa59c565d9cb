// Package config loads typed configuration for the relay.
//
// Environment variables are the primary source. Structs declare their inputs
// with `env` / `envDefault` tags and are parsed by github.com/caarlos0/env;
// an optional .env file is loaded first through github.com/joho/godotenv.
// Each struct type is parsed once and cached, so components that load the
// same type observe the same values. Reset clears the cache for tests.
//
// Structured inputs that do not fit an environment variable, such as a
// criticality map maintained by operators, are read with LoadYAML.
//
//	var cfg consumer.Config
//	config.MustLoad(&cfg)
//
//	var overrides map[string]string
//	if err := config.LoadYAML("criticality.yaml", &overrides); err != nil { ... }
package config
