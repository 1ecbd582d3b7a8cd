// Package config provides configuration loading and validation for the diarization service.
// YAML is read on top of built-in defaults, then .env and environment overrides apply.
package config
