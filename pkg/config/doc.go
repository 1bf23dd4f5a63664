// Package config reads typed settings from the environment with
// caarlos0/env, loading a local .env through godotenv first. Nested structs
// such as httpserver.Config or abuse.Thresholds compose into one service
// config.
package config
