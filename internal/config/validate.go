package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	// Server validation
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "server.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Server.Port),
		})
	}

	validBinds := []string{"loopback", "lan", "custom"}
	if cfg.Server.Bind != "" && !slices.Contains(validBinds, cfg.Server.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "server.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Server.Bind),
		})
	}
	if cfg.Server.Bind == "custom" && cfg.Server.CustomBindHost == "" {
		issues = append(issues, ValidationIssue{
			Path:    "server.customBindHost",
			Message: "required when server.bind is custom",
		})
	}

	validAuthModes := []string{"token", "none"}
	if cfg.Server.Auth.Mode != "" && !slices.Contains(validAuthModes, cfg.Server.Auth.Mode) {
		issues = append(issues, ValidationIssue{
			Path:    "server.auth.mode",
			Message: fmt.Sprintf("must be one of %v, got %q", validAuthModes, cfg.Server.Auth.Mode),
		})
	}

	// Session validation
	validStores := []string{"sqlite", "memory"}
	if cfg.Session.Store != "" && !slices.Contains(validStores, cfg.Session.Store) {
		issues = append(issues, ValidationIssue{
			Path:    "session.store",
			Message: fmt.Sprintf("must be one of %v, got %q", validStores, cfg.Session.Store),
		})
	}
	if cfg.Session.MaxMessages < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "session.maxMessages",
			Message: fmt.Sprintf("must be non-negative, got %d", cfg.Session.MaxMessages),
		})
	}
	if cfg.Session.MaxPerUser < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "session.maxPerUser",
			Message: fmt.Sprintf("must be non-negative, got %d", cfg.Session.MaxPerUser),
		})
	}
	if cfg.Session.ExpiryMinutes < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "session.expiryMinutes",
			Message: fmt.Sprintf("must be non-negative, got %d", cfg.Session.ExpiryMinutes),
		})
	}

	// Generator validation
	validProviders := []string{"anthropic", "mock"}
	if cfg.Generator.Provider != "" && !slices.Contains(validProviders, cfg.Generator.Provider) {
		issues = append(issues, ValidationIssue{
			Path:    "generator.provider",
			Message: fmt.Sprintf("must be one of %v, got %q", validProviders, cfg.Generator.Provider),
		})
	}
	if cfg.Generator.Provider == "anthropic" {
		if cfg.Generator.APIKey == "" {
			issues = append(issues, ValidationIssue{
				Path:    "generator.apiKey",
				Message: "required when generator.provider is anthropic",
			})
		}
		if cfg.Generator.Model == "" {
			issues = append(issues, ValidationIssue{
				Path:    "generator.model",
				Message: "required when generator.provider is anthropic",
			})
		}
	}
	if cfg.Generator.Temperature != nil {
		t := *cfg.Generator.Temperature
		if t < 0 || t > 1 {
			issues = append(issues, ValidationIssue{
				Path:    "generator.temperature",
				Message: fmt.Sprintf("must be 0.0-1.0, got %g", t),
			})
		}
	}

	// Logging validation
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}
	if cfg.Logging.ConsoleLevel != "" && !slices.Contains(validLogLevels, cfg.Logging.ConsoleLevel) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.consoleLevel",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.ConsoleLevel),
		})
	}

	validConsoleStyles := []string{"pretty", "compact", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.consoleStyle",
			Message: fmt.Sprintf("must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle),
		})
	}

	return issues
}
