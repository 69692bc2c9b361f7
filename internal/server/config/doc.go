// Package config handles configuration for the upload server, including
// defaults, JSON overlay and command-line flags.
package config
