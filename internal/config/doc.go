// Package config provides the configuration of a subgrab run: defaults,
// validation, the optional YAML config file and XDG directory helpers.
package config
