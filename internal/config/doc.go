// Package config loads and validates the sync client configuration from
// YAML. Environment variables referenced as ${VAR} in the file are expanded
// before parsing.
package config
