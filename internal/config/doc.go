// Package config loads, normalizes, and validates Cartographer configuration.
//
// Configuration is read from TOML (default ~/.config/cartographer/config.toml,
// then ./cartographer.toml), layered over Default(). Paths are expanded to
// absolute form, the LLM key falls back to CARTOGRAPHER_LLM_API_KEY, and user
// pricing entries are merged over the built-in model table. CreateSample
// writes the embedded sample for `cartographer config init`.
package config
