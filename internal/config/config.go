package config

import "time"

// Config holds client and development server configuration values.
type Config struct {
	APIURL         string          `mapstructure:"api_url" yaml:"api_url"`
	WSURL          string          `mapstructure:"ws_url" yaml:"ws_url"`
	Username       string          `mapstructure:"username" yaml:"username"`
	Token          string          `mapstructure:"token" yaml:"token,omitempty"`
	LogLevel       string          `mapstructure:"log_level" yaml:"log_level"`
	RequestTimeout time.Duration   `mapstructure:"request_timeout" yaml:"request_timeout"`
	Reconnect      ReconnectConfig `mapstructure:"reconnect" yaml:"reconnect"`
	Filter         FilterConfig    `mapstructure:"filter" yaml:"filter"`
	DevServer      DevServerConfig `mapstructure:"devserver" yaml:"devserver"`
}

// ReconnectConfig controls what the session does after the push stream drops.
type ReconnectConfig struct {
	Enabled    bool          `mapstructure:"enabled" yaml:"enabled"`
	Backoff    time.Duration `mapstructure:"backoff" yaml:"backoff"`
	MaxBackoff time.Duration `mapstructure:"max_backoff" yaml:"max_backoff"`
	// Resync reloads the snapshot once the stream is back, covering events missed during the outage.
	Resync bool `mapstructure:"resync" yaml:"resync"`
}

// FilterConfig extends the built-in profanity dictionary.
type FilterConfig struct {
	ExtraWords []string `mapstructure:"extra_words" yaml:"extra_words"`
}

// DevServerConfig configures the local development backend.
type DevServerConfig struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	JWTSecret         string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer         string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		APIURL:         "http://localhost:5001/api/v1",
		WSURL:          "ws://localhost:5001/ws",
		LogLevel:       "info",
		RequestTimeout: 10 * time.Second,
		Reconnect: ReconnectConfig{
			Enabled:    true,
			Backoff:    time.Second,
			MaxBackoff: 30 * time.Second,
			Resync:     true,
		},
		DevServer: DevServerConfig{
			Addr:              ":5001",
			DatabasePath:      "wirechat-dev.db",
			JWTSecret:         "change-me",
			JWTIssuer:         "wirechat-devserver",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   5 * time.Second,
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// Booleans are not merged: a zero value cannot be told apart from an explicit false.
func (c *Config) UpdateFrom(other Config) {
	if other.APIURL != "" {
		c.APIURL = other.APIURL
	}
	if other.WSURL != "" {
		c.WSURL = other.WSURL
	}
	if other.Username != "" {
		c.Username = other.Username
	}
	if other.Token != "" {
		c.Token = other.Token
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.RequestTimeout != 0 {
		c.RequestTimeout = other.RequestTimeout
	}
	if other.Reconnect.Backoff != 0 {
		c.Reconnect.Backoff = other.Reconnect.Backoff
	}
	if other.Reconnect.MaxBackoff != 0 {
		c.Reconnect.MaxBackoff = other.Reconnect.MaxBackoff
	}
	if len(other.Filter.ExtraWords) > 0 {
		c.Filter.ExtraWords = append([]string(nil), other.Filter.ExtraWords...)
	}
	if other.DevServer.Addr != "" {
		c.DevServer.Addr = other.DevServer.Addr
	}
	if other.DevServer.DatabasePath != "" {
		c.DevServer.DatabasePath = other.DevServer.DatabasePath
	}
	if other.DevServer.JWTSecret != "" {
		c.DevServer.JWTSecret = other.DevServer.JWTSecret
	}
	if other.DevServer.JWTIssuer != "" {
		c.DevServer.JWTIssuer = other.DevServer.JWTIssuer
	}
	if other.DevServer.ReadHeaderTimeout != 0 {
		c.DevServer.ReadHeaderTimeout = other.DevServer.ReadHeaderTimeout
	}
	if other.DevServer.ShutdownTimeout != 0 {
		c.DevServer.ShutdownTimeout = other.DevServer.ShutdownTimeout
	}
}
