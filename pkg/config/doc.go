// Package config loads and validates the bridge configuration. Values come
// from an optional YAML file overridden by DOG_* environment variables.
package config
