package config

// Config is the root configuration for Coursewright.
type Config struct {
	Server    ServerConfig    `yaml:"server,omitempty"`
	Session   SessionConfig   `yaml:"session,omitempty"`
	Generator GeneratorConfig `yaml:"generator,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
}

// ServerConfig controls the HTTP/WebSocket API server.
type ServerConfig struct {
	Port           int        `yaml:"port,omitempty"`
	Bind           string     `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string     `yaml:"customBindHost,omitempty"`
	Auth           ServerAuth `yaml:"auth,omitempty"`
}

// ServerAuth configures API authentication.
type ServerAuth struct {
	Mode  string `yaml:"mode,omitempty"` // "token" | "none"
	Token string `yaml:"token,omitempty"`
}

// SessionConfig defines session lifecycle behavior.
type SessionConfig struct {
	Store           string `yaml:"store,omitempty"` // "sqlite" | "memory"
	DBFile          string `yaml:"dbFile,omitempty"`
	MaxMessages     int    `yaml:"maxMessages,omitempty"`
	MaxHistory      int    `yaml:"maxHistory,omitempty"`
	MaxPerUser      int    `yaml:"maxPerUser,omitempty"`
	AutoSaveSeconds int    `yaml:"autoSaveSeconds,omitempty"`
	ExpiryMinutes   int    `yaml:"expiryMinutes,omitempty"`
	CacheTTLSeconds int    `yaml:"cacheTtlSeconds,omitempty"`
}

// GeneratorConfig selects and tunes the content generation provider.
type GeneratorConfig struct {
	Provider          string   `yaml:"provider,omitempty"` // "anthropic" | "mock"
	Model             string   `yaml:"model,omitempty"`
	APIKey            string   `yaml:"apiKey,omitempty"`
	MaxTokens         int      `yaml:"maxTokens,omitempty"`
	Temperature       *float64 `yaml:"temperature,omitempty"`
	InputCostPerMTok  float64  `yaml:"inputCostPerMTok,omitempty"`
	OutputCostPerMTok float64  `yaml:"outputCostPerMTok,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleLevel string `yaml:"consoleLevel,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "compact" | "json"
}
