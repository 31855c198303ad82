// config.go - Service configuration.
//
// Defaults, overlaid by an optional YAML file (ARD_CONFIG), overlaid
// by environment variables. The result is immutable once LoadConfig
// returns.
package server

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version string
	Commit  string
}

// Config holds every tunable of the service.
type Config struct {
	Addr      string
	DataDir   string
	StaticDir string

	MaxUploadBytes      int64
	AllowedExtensions   []string
	AllowedContentTypes []string
	StrictContentType   bool

	Password     string
	PasswordHash string
	TokenTTL     time.Duration

	RateLimit  int
	RateWindow time.Duration

	UploadTimeout time.Duration

	Build BuildInfo

	// Policy is derived from the fields above by LoadConfig.
	Policy ValidationPolicy
}

// configFile is the YAML shape. Pointer fields distinguish "absent"
// from a deliberate zero value; durations are Go duration strings.
type configFile struct {
	Addr                *string  `yaml:"addr"`
	DataDir             *string  `yaml:"dataDir"`
	StaticDir           *string  `yaml:"staticDir"`
	MaxUploadBytes      *int64   `yaml:"maxUploadBytes"`
	AllowedExtensions   []string `yaml:"allowedExtensions"`
	AllowedContentTypes []string `yaml:"allowedContentTypes"`
	StrictContentType   *bool    `yaml:"strictContentType"`
	Password            *string  `yaml:"password"`
	PasswordHash        *string  `yaml:"passwordHash"`
	TokenTTL            *string  `yaml:"tokenTTL"`
	RateLimit           *int     `yaml:"rateLimit"`
	RateWindow          *string  `yaml:"rateWindow"`
	UploadTimeout       *string  `yaml:"uploadTimeout"`
}

func (f *configFile) apply(cfg *Config) error {
	if f.Addr != nil {
		cfg.Addr = *f.Addr
	}
	if f.DataDir != nil {
		cfg.DataDir = *f.DataDir
	}
	if f.StaticDir != nil {
		cfg.StaticDir = *f.StaticDir
	}
	if f.MaxUploadBytes != nil {
		cfg.MaxUploadBytes = *f.MaxUploadBytes
	}
	if f.AllowedExtensions != nil {
		cfg.AllowedExtensions = f.AllowedExtensions
	}
	if f.AllowedContentTypes != nil {
		cfg.AllowedContentTypes = f.AllowedContentTypes
	}
	if f.StrictContentType != nil {
		cfg.StrictContentType = *f.StrictContentType
	}
	if f.Password != nil {
		cfg.Password = *f.Password
	}
	if f.PasswordHash != nil {
		cfg.PasswordHash = *f.PasswordHash
	}
	for _, d := range []struct {
		raw *string
		dst *time.Duration
		key string
	}{
		{f.TokenTTL, &cfg.TokenTTL, "tokenTTL"},
		{f.RateWindow, &cfg.RateWindow, "rateWindow"},
		{f.UploadTimeout, &cfg.UploadTimeout, "uploadTimeout"},
	} {
		if d.raw == nil {
			continue
		}
		v, err := time.ParseDuration(*d.raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}
	if f.RateLimit != nil {
		cfg.RateLimit = *f.RateLimit
	}
	return nil
}

// DefaultConfig returns the LAN-deployment defaults observed in
// practice: 100MB ceiling, 10 upload attempts per 15 minutes.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		DataDir:        "uploads",
		MaxUploadBytes: 100 << 20,
		TokenTTL:       12 * time.Hour,
		RateLimit:      10,
		RateWindow:     15 * time.Minute,
		UploadTimeout:  10 * time.Minute,
	}
}

// LoadConfig assembles the effective configuration.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv("ARD_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		var file configFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
		if err := file.apply(&cfg); err != nil {
			return cfg, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	overlayString(&cfg.Addr, "ARD_ADDR")
	overlayString(&cfg.DataDir, "ARD_DATA_DIR")
	overlayString(&cfg.StaticDir, "ARD_STATIC_DIR")
	overlayString(&cfg.Password, "ARD_PASSWORD")
	overlayString(&cfg.PasswordHash, "ARD_PASSWORD_HASH")
	overlayString(&cfg.Build.Version, "ARD_VERSION")
	overlayString(&cfg.Build.Commit, "ARD_COMMIT")

	if err := overlayInt64(&cfg.MaxUploadBytes, "ARD_MAX_UPLOAD_BYTES"); err != nil {
		return cfg, err
	}
	if err := overlayInt(&cfg.RateLimit, "ARD_RATE_LIMIT"); err != nil {
		return cfg, err
	}
	if err := overlayDuration(&cfg.TokenTTL, "ARD_TOKEN_TTL"); err != nil {
		return cfg, err
	}
	if err := overlayDuration(&cfg.RateWindow, "ARD_RATE_WINDOW"); err != nil {
		return cfg, err
	}
	if err := overlayDuration(&cfg.UploadTimeout, "ARD_UPLOAD_TIMEOUT"); err != nil {
		return cfg, err
	}
	if err := overlayBool(&cfg.StrictContentType, "ARD_STRICT_CONTENT_TYPE"); err != nil {
		return cfg, err
	}
	if v := os.Getenv("ARD_ALLOWED_EXTENSIONS"); v != "" {
		cfg.AllowedExtensions = splitList(v)
	}
	if v := os.Getenv("ARD_ALLOWED_CONTENT_TYPES"); v != "" {
		cfg.AllowedContentTypes = splitList(v)
	}

	cfg.Policy = cfg.buildPolicy()
	return cfg, nil
}

// buildPolicy derives the validator policy from the raw lists.
func (c Config) buildPolicy() ValidationPolicy {
	p := ValidationPolicy{
		MaxBytes:           c.MaxUploadBytes,
		LenientContentType: !c.StrictContentType,
	}

	if len(c.AllowedExtensions) == 0 {
		p.AllowedExtensions = defaultExtensions()
	} else {
		p.AllowedExtensions = make(map[string]bool, len(c.AllowedExtensions))
		for _, e := range c.AllowedExtensions {
			e = strings.ToLower(strings.TrimSpace(e))
			if e == "" {
				continue
			}
			if !strings.HasPrefix(e, ".") {
				e = "." + e
			}
			p.AllowedExtensions[e] = true
		}
	}

	if len(c.AllowedContentTypes) > 0 {
		p.AllowedContentTypes = make(map[string]bool, len(c.AllowedContentTypes))
		for _, m := range c.AllowedContentTypes {
			m = strings.ToLower(strings.TrimSpace(m))
			if m != "" {
				p.AllowedContentTypes[m] = true
			}
		}
	}

	return p
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func overlayString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func overlayInt64(dst *int64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	*dst = n
	return nil
}

func overlayInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	*dst = n
	return nil
}

func overlayDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	*dst = d
	return nil
}

func overlayBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	*dst = b
	return nil
}
