// Package config loads the service configuration from the environment.
//
// Load reads optional .env files with github.com/joho/godotenv and parses the
// environment into any struct annotated with github.com/caarlos0/env tags.
// App composes the per-component Config structs into the one value the
// binary needs, and Validate checks that the selected backends have their
// connection settings.
//
//	var cfg config.App
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//	if err := cfg.Validate(); err != nil {
//		return err
//	}
package config
