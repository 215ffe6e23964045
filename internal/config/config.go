// Package config loads server configuration from file and environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the provisioning server configuration.
type Config struct {
	Server    ServerConfig
	Provision ProvisionConfig
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	Port    int
	DataDir string
	TLSCert string
	TLSKey  string
}

// ProvisionConfig holds the hosting provider credentials.
type ProvisionConfig struct {
	ServiceToken string
	TeamSlug     string
	Host         string
}

// Load reads configuration from file and env. Env var overrides use prefix
// VIBE_, e.g. VIBE_PROVISION_SERVICE_TOKEN. The config file defaults to
// ~/.config/vibe/config.toml and can be overridden with VIBE_CONFIG.
func Load() (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("server.port", 8443)
	v.SetDefault("server.data_dir", filepath.Join(os.Getenv("HOME"), ".local", "share", "vibe"))
	v.SetDefault("server.tls_cert", "")
	v.SetDefault("server.tls_key", "")
	v.SetDefault("provision.service_token", "")
	v.SetDefault("provision.team_slug", "")
	v.SetDefault("provision.host", "")

	v.SetConfigType("toml")

	cfgPath := os.Getenv("VIBE_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "vibe"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("VIBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env and defaults still apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	cfg.Server.Port = v.GetInt("server.port")
	cfg.Server.DataDir = v.GetString("server.data_dir")
	cfg.Server.TLSCert = v.GetString("server.tls_cert")
	cfg.Server.TLSKey = v.GetString("server.tls_key")
	cfg.Provision.ServiceToken = v.GetString("provision.service_token")
	cfg.Provision.TeamSlug = v.GetString("provision.team_slug")
	cfg.Provision.Host = v.GetString("provision.host")
	return cfg, nil
}
