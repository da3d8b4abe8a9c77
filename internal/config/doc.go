// Package config loads, normalizes, and validates jimaku configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// GEMINI_API_KEY. The Config type is threaded through constructors; nothing
// in the repository reads settings from globals.
package config
