package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 8377,
			Bind: "loopback",
			Auth: ServerAuth{
				Mode: "token",
			},
		},
		Session: SessionConfig{
			Store:           "sqlite",
			MaxMessages:     200,
			MaxHistory:      50,
			MaxPerUser:      10,
			AutoSaveSeconds: 30,
			ExpiryMinutes:   60,
			CacheTTLSeconds: 5,
		},
		Generator: GeneratorConfig{
			Provider:  "mock",
			MaxTokens: 4096,
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleLevel: "info",
			ConsoleStyle: "pretty",
		},
	}
}
