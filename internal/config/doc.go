// Package config loads evalrelay settings from a YAML file and the
// environment. Environment variables override file values, so a credential
// never needs to live in a config file. Missing optional fields are filled
// with defaults; validation rejects configs without a collector URL or
// project.
package config
