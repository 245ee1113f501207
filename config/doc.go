// Package config loads wonderwhisper configuration from a YAML file, a .env
// file and the process environment using Viper.
//
// # Usage
//
//	var cfg bootstrap.Config
//	err := config.LoadConfig("wonderwhisper", &cfg)
//
// Environment variables override file values when they carry the
// WONDERWHISPER_ prefix, with underscores standing in for nesting:
// WONDERWHISPER_BACKEND_API_KEY sets backend.api_key.
package config
