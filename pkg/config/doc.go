// Package config loads and validates the daemon's YAML configuration:
// listener, TLS, metrics endpoint, peer discovery, delivery pool
// sizing, users, and normalization scheme definitions.
package config
