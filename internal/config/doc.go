// Package config provides centralized configuration management for the
// IntentFlow runtime. It loads the JSON application config, applies defaults
// relative to the config directory, and exposes typed accessors for the
// downstream services.
package config
