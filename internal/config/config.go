// Package config loads server configuration from an INI file with
// CLI > INI > defaults precedence. The CLI layer applies its overrides on
// top of the value returned by Load.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the full server configuration.
type Config struct {
	// [server]
	Directory string
	Listen    string
	Port      int
	Threads   int
	ChunkSize int

	// [upload]
	EnableUpload     bool
	MaxUploadSizeMiB int64
	UploadDir        string

	// [auth]
	Username string
	Password string

	// [security]
	AllowedExtensions  []string
	RateLimitMbps      float64
	RequestsPerMinute  int
	MaxConcurrentPerIP int

	// [logging]
	Verbose         bool
	DetailedLogging bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:            "127.0.0.1",
		Port:              8080,
		Threads:           8,
		ChunkSize:         8192,
		EnableUpload:      false,
		MaxUploadSizeMiB:  0, // bounded by disk space
		AllowedExtensions:  []string{"*"},
		RateLimitMbps:      0, // no limit
		RequestsPerMinute:  120,
		MaxConcurrentPerIP: 10,
	}
}

// discoveryOrder returns the config file locations probed when no explicit
// path is given.
func discoveryOrder() []string {
	paths := []string{"./irondrop.ini", "./irondrop.conf"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "irondrop", "config.ini"))
	}
	paths = append(paths, "/etc/irondrop/config.ini")
	return paths
}

// Load reads configuration from the given INI file, or from the discovery
// order when path is empty. When the discovery order finds no file, defaults
// apply; an explicit path that cannot be read is an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("ini")
	v.SetEnvPrefix("IRONDROP")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		found := ""
		for _, p := range discoveryOrder() {
			if _, err := os.Stat(p); err == nil {
				found = p
				break
			}
		}
		if found == "" {
			return cfg, nil
		}
		v.SetConfigFile(found)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	setString := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	setInt := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	setBool := func(key string, dst *bool) {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}

	setString("server.directory", &cfg.Directory)
	setString("server.listen", &cfg.Listen)
	setInt("server.port", &cfg.Port)
	setInt("server.threads", &cfg.Threads)
	setInt("server.chunk_size", &cfg.ChunkSize)

	setBool("upload.enabled", &cfg.EnableUpload)
	if v.IsSet("upload.max_size_mib") {
		cfg.MaxUploadSizeMiB = v.GetInt64("upload.max_size_mib")
	}
	setString("upload.directory", &cfg.UploadDir)

	setString("auth.username", &cfg.Username)
	setString("auth.password", &cfg.Password)

	if v.IsSet("security.allowed_extensions") {
		cfg.AllowedExtensions = SplitExtensionList(v.GetString("security.allowed_extensions"))
	}
	if v.IsSet("security.rate_limit_mbps") {
		cfg.RateLimitMbps = v.GetFloat64("security.rate_limit_mbps")
	}
	setInt("security.requests_per_minute", &cfg.RequestsPerMinute)
	setInt("security.max_concurrent_per_ip", &cfg.MaxConcurrentPerIP)

	setBool("logging.verbose", &cfg.Verbose)
	setBool("logging.detailed", &cfg.DetailedLogging)

	return cfg, nil
}

// SplitExtensionList parses a comma-separated glob list such as
// "*.txt,*.pdf, *.zip".
func SplitExtensionList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// Validate enforces the startup invariants. Errors here abort startup with a
// non-zero exit code.
func (c *Config) Validate() error {
	if c.Directory == "" {
		return fmt.Errorf("served directory is required")
	}
	info, err := os.Stat(c.Directory)
	if err != nil {
		return fmt.Errorf("served directory %q: %w", c.Directory, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("served directory %q is not a directory", c.Directory)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Threads < 1 {
		return fmt.Errorf("threads must be at least 1, got %d", c.Threads)
	}
	if c.ChunkSize < 1024 {
		return fmt.Errorf("chunk size must be at least 1024 bytes, got %d", c.ChunkSize)
	}
	if (c.Username == "") != (c.Password == "") {
		return fmt.Errorf("auth requires both username and password")
	}
	if c.EnableUpload && c.UploadDir != "" {
		if err := os.MkdirAll(c.UploadDir, 0o755); err != nil {
			return fmt.Errorf("upload directory %q: %w", c.UploadDir, err)
		}
	}
	return nil
}

// AuthEnabled reports whether Basic auth is configured.
func (c *Config) AuthEnabled() bool {
	return c.Username != "" && c.Password != ""
}

// EffectiveUploadDir returns the upload destination, defaulting to the
// served directory.
func (c *Config) EffectiveUploadDir() string {
	if c.UploadDir != "" {
		return c.UploadDir
	}
	return c.Directory
}

// MaxUploadBytes returns the configured byte ceiling, 0 meaning unbounded.
func (c *Config) MaxUploadBytes() int64 {
	if c.MaxUploadSizeMiB <= 0 {
		return 0
	}
	return c.MaxUploadSizeMiB << 20
}
