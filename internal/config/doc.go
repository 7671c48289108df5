// Package config defines the bootstrapper settings and helpers to load,
// validate and save them.
//
// Every field has a built-in default, so a missing settings file is not an
// error. Files ending in .toml are decoded as TOML; anything else is YAML.
// Paths may start with "~", which is expanded to the user's home directory.
package config
