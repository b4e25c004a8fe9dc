package config

import (
	"fmt"
	"os"
	"time"

	"license-engine/internal/licensing"

	"github.com/caarlos0/env/v11"
)

// Config is the environment-driven configuration shared by the license engine
// entrypoints. The validator itself takes an explicit licensing.Config; this
// layer only translates the process environment into one.
type Config struct {
	LicenseKey    string `env:"LICENSE_KEY,notEmpty,required"`
	PublicKeyPath string `env:"LICENSE_PUBLIC_KEY_PATH,notEmpty,required"`
	ServerURL     string `env:"LICENSE_SERVER_URL"`

	EnableMachineBinding   bool   `env:"LICENSE_MACHINE_BINDING" envDefault:"false"`
	CacheDir               string `env:"LICENSE_CACHE_DIR"`
	OfflineCacheDays       int    `env:"LICENSE_OFFLINE_CACHE_DAYS" envDefault:"7"`
	ValidationCacheMinutes int    `env:"LICENSE_VALIDATION_CACHE_MINUTES" envDefault:"5"`
	PhoneHomeTimeoutMs     int    `env:"LICENSE_PHONE_HOME_TIMEOUT_MS" envDefault:"5000"`

	DiagnosticsDBPath string `env:"LICENSE_DIAGNOSTICS_DB" envDefault:"license-diagnostics.db"`
	APIPort           string `env:"API_PORT" envDefault:"8002"`
}

func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config from environment: %w", err)
	}
	return &cfg, nil
}

// EngineConfig reads the public key file and assembles the validator
// configuration.
func (c *Config) EngineConfig() (licensing.Config, error) {
	publicKeyPem, err := os.ReadFile(c.PublicKeyPath)
	if err != nil {
		return licensing.Config{}, fmt.Errorf("error reading public key file %s: %w", c.PublicKeyPath, err)
	}

	return licensing.Config{
		LicenseKey:             c.LicenseKey,
		PublicKeyPEM:           publicKeyPem,
		ServerURL:              c.ServerURL,
		EnableMachineBinding:   c.EnableMachineBinding,
		CacheDir:               c.CacheDir,
		OfflineCacheDays:       c.OfflineCacheDays,
		ValidationCacheMinutes: c.ValidationCacheMinutes,
		PhoneHomeTimeout:       time.Duration(c.PhoneHomeTimeoutMs) * time.Millisecond,
	}, nil
}
