package config

import "time"

// File represents the structure of the .subgrab configuration file.
// Zero values mean "not set" and leave the corresponding Config field alone.
type File struct {
	// HomeURL overrides the homepage URL.
	HomeURL string `yaml:"home_url,omitempty"`

	// LinkSelector overrides the CSS selector of the article link.
	LinkSelector string `yaml:"link_selector,omitempty"`

	// OutputDir overrides the output directory.
	OutputDir string `yaml:"output_dir,omitempty"`

	// Password bounds the passphrase search.
	Password PasswordRange `yaml:"password,omitempty"`

	// Request holds HTTP request settings.
	Request RequestConfig `yaml:"request,omitempty"`

	// Concurrency overrides the number of parallel downloads.
	Concurrency int `yaml:"concurrency,omitempty"`

	// History enables recording runs in the history database.
	History HistoryConfig `yaml:"history,omitempty"`
}

// PasswordRange is the half-open passphrase range [Min, Max).
type PasswordRange struct {
	Min     int `yaml:"min,omitempty"`
	Max     int `yaml:"max,omitempty"`
	Workers int `yaml:"workers,omitempty"`
}

// RequestConfig holds settings applied to every HTTP request.
type RequestConfig struct {
	// Timeout bounds a single request, e.g. "30s".
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// UserAgent is the User-Agent header.
	UserAgent string `yaml:"user_agent,omitempty"`

	// Cookie is a raw Cookie header value.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra HTTP headers.
	Headers map[string]string `yaml:"headers,omitempty"`

	// MaxBodySize limits the response body size in bytes.
	MaxBodySize int64 `yaml:"max_body_size,omitempty"`

	// Proxy is a SOCKS5 proxy address in "host:port" format.
	Proxy string `yaml:"proxy,omitempty"`

	// Tor starts an embedded Tor daemon for all requests.
	Tor bool `yaml:"tor,omitempty"`
}

// HistoryConfig controls the run history database.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Dir     string `yaml:"dir,omitempty"`
}

// ApplyTo copies every value set in the file onto cfg.
func (f *File) ApplyTo(cfg *Config) {
	if f.HomeURL != "" {
		cfg.HomeURL = f.HomeURL
	}
	if f.LinkSelector != "" {
		cfg.LinkSelector = f.LinkSelector
	}
	if f.OutputDir != "" {
		cfg.OutputDir = f.OutputDir
	}
	if f.Password.Min != 0 {
		cfg.PasswordMin = f.Password.Min
	}
	if f.Password.Max != 0 {
		cfg.PasswordMax = f.Password.Max
	}
	if f.Password.Workers != 0 {
		cfg.Workers = f.Password.Workers
	}
	if f.Request.Timeout != 0 {
		cfg.Timeout = f.Request.Timeout
	}
	if f.Request.UserAgent != "" {
		cfg.UserAgent = f.Request.UserAgent
	}
	if f.Request.Cookie != "" {
		cfg.Cookie = f.Request.Cookie
	}
	if len(f.Request.Headers) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string, len(f.Request.Headers))
		}
		for k, v := range f.Request.Headers {
			cfg.Headers[k] = v
		}
	}
	if f.Request.MaxBodySize != 0 {
		cfg.MaxBodySize = f.Request.MaxBodySize
	}
	if f.Request.Proxy != "" {
		cfg.ProxyAddress = f.Request.Proxy
	}
	if f.Request.Tor {
		cfg.UseTor = true
	}
	if f.Concurrency != 0 {
		cfg.Concurrency = f.Concurrency
	}
	if f.History.Enabled {
		cfg.SaveHistory = true
	}
	if f.History.Dir != "" {
		cfg.DBDir = f.History.Dir
	}
}
