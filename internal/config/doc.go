// Package config loads the calbridge configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// CALBRIDGE_ environment variables where '_' separates nesting levels
// (CALBRIDGE_RETRY_MAXATTEMPTS=5 sets retry.maxattempts). A .env file can
// seed the environment first. Command line flags are applied on top by the
// caller.
package config
