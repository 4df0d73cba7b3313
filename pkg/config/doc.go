// Package config loads application configuration from QUIZDECK_*
// environment variables and validates it before startup.
package config
