// Package config loads the service configuration and validates it with
// struct tags. Values come from built-in defaults, an optional config.yaml
// and TASKFLOW_* environment variables, which win over the file. A local
// .env file only fills variables not already set in the environment.
package config
