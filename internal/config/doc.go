// Package config loads, normalizes, and validates soundrelay's TOML
// configuration. Configuration resolves from an explicit --config path,
// then ~/.config/soundrelay/config.toml, then ./soundrelay.toml, with
// embedded defaults filling anything the file omits.
package config
