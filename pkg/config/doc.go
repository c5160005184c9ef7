// Package config loads application configuration from PORTAL_* environment
// variables and the optional developer-accounts YAML file.
package config
