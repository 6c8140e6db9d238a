package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rpattn/crmimport/internal/db"
	"github.com/spf13/viper"
)

// CRMConfig controls how the remote CRM is reached.
type CRMConfig struct {
	Webhook           string
	FieldsTimeout     time.Duration
	SearchTimeout     time.Duration
	CreateTimeout     time.Duration
	RequestsPerSecond float64
	Burst             int
}

// ImportConfig holds per-run defaults.
type ImportConfig struct {
	CheckDuplicates    bool
	RegisterSonetEvent bool
}

// ServerConfig holds HTTP service settings.
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
	ArtifactTTL    time.Duration
	FieldsCacheTTL time.Duration
}

// DatabaseConfig enables optional outcome persistence.
type DatabaseConfig struct {
	Enabled bool
	db.Config
}

// Config is the full application configuration.
type Config struct {
	CRM      CRMConfig
	Import   ImportConfig
	Server   ServerConfig
	Database DatabaseConfig
	LogEnv   string
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		CRM: CRMConfig{
			FieldsTimeout:     30 * time.Second,
			SearchTimeout:     30 * time.Second,
			CreateTimeout:     60 * time.Second,
			RequestsPerSecond: 2,
			Burst:             2,
		},
		Import: ImportConfig{
			CheckDuplicates: true,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
			ArtifactTTL:    time.Hour,
			FieldsCacheTTL: 10 * time.Minute,
		},
		Database: DatabaseConfig{
			Config: db.DefaultConfig(),
		},
		LogEnv: "development",
	}
}

// Load reads config.yaml from configPath (optional) and CRMIMPORT_* environment overrides.
func Load(configPath string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.SetEnvPrefix("CRMIMPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range []string{
		"crm.webhook", "crm.fields_timeout", "crm.search_timeout", "crm.create_timeout",
		"crm.requests_per_second", "crm.burst",
		"import.check_duplicates", "import.register_sonet_event",
		"server.addr", "server.allowed_origins", "server.artifact_ttl", "server.fields_cache_ttl",
		"database.enabled", "database.host", "database.port", "database.user",
		"database.password", "database.dbname", "database.sslmode",
		"log.env",
	} {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if v.IsSet("crm.webhook") {
		cfg.CRM.Webhook = v.GetString("crm.webhook")
	}
	if v.IsSet("crm.fields_timeout") {
		cfg.CRM.FieldsTimeout = v.GetDuration("crm.fields_timeout")
	}
	if v.IsSet("crm.search_timeout") {
		cfg.CRM.SearchTimeout = v.GetDuration("crm.search_timeout")
	}
	if v.IsSet("crm.create_timeout") {
		cfg.CRM.CreateTimeout = v.GetDuration("crm.create_timeout")
	}
	if v.IsSet("crm.requests_per_second") {
		cfg.CRM.RequestsPerSecond = v.GetFloat64("crm.requests_per_second")
	}
	if v.IsSet("crm.burst") {
		cfg.CRM.Burst = v.GetInt("crm.burst")
	}
	if v.IsSet("import.check_duplicates") {
		cfg.Import.CheckDuplicates = v.GetBool("import.check_duplicates")
	}
	if v.IsSet("import.register_sonet_event") {
		cfg.Import.RegisterSonetEvent = v.GetBool("import.register_sonet_event")
	}
	if v.IsSet("server.addr") {
		cfg.Server.Addr = v.GetString("server.addr")
	}
	if v.IsSet("server.allowed_origins") {
		cfg.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}
	if v.IsSet("server.artifact_ttl") {
		cfg.Server.ArtifactTTL = v.GetDuration("server.artifact_ttl")
	}
	if v.IsSet("server.fields_cache_ttl") {
		cfg.Server.FieldsCacheTTL = v.GetDuration("server.fields_cache_ttl")
	}
	if v.IsSet("database.enabled") {
		cfg.Database.Enabled = v.GetBool("database.enabled")
	}
	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("log.env") {
		cfg.LogEnv = v.GetString("log.env")
	}

	return cfg, nil
}
