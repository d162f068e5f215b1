// Package common provides configuration management, the catalog error
// taxonomy, query options, and HTTP endpoint utilities shared by the
// OpenCGA catalog services. It includes support for YAML configuration
// files, environment variable overrides, CORS setup, health endpoints,
// and PostgreSQL connections for the audit trail.
package common

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
)

// PrintSplash displays the OpenCGA catalog ASCII art logo to the console.
// This function is typically called during application startup to provide
// visual branding and confirm the service is starting.
func PrintSplash() {
	log.Printf(`
	 ██████╗ ██████╗ ███████╗███╗   ██╗ ██████╗ ██████╗  █████╗
	██╔═══██╗██╔══██╗██╔════╝████╗  ██║██╔════╝██╔════╝ ██╔══██╗
	██║   ██║██████╔╝█████╗  ██╔██╗ ██║██║     ██║  ███╗███████║
	██║   ██║██╔═══╝ ██╔══╝  ██║╚██╗██║██║     ██║   ██║██╔══██║
	╚██████╔╝██║     ███████╗██║ ╚████║╚██████╗╚██████╔╝██║  ██║
	 ╚═════╝ ╚═╝     ╚══════╝╚═╝  ╚═══╝ ╚═════╝ ╚═════╝ ╚═╝  ╚═╝
	`)
}

// Config represents the complete configuration structure for the catalog
// services. It combines server settings, metadata store connections, the
// catalog core parameters, the study lock defaults, the SGE bridge, file
// workspace backends, the audit sink, and logging.
type Config struct {
	Server     ServerConfig   `mapstructure:"server" json:"server"`
	Mongo      MongoConfig    `mapstructure:"mongo" json:"mongo"`
	Audit      AuditConfig    `mapstructure:"audit" json:"audit"`
	Catalog    CatalogConfig  `mapstructure:"catalog" json:"catalog"`
	Storage    StorageConfig  `mapstructure:"storage" json:"storage"`
	SGE        SGEConfig      `mapstructure:"sge" json:"sge"`
	IO         IOConfig       `mapstructure:"io" json:"io"`
	Logging    LoggingConfig  `mapstructure:"logging" json:"logging"`
	CorsConfig CorsConfig     `mapstructure:"cors" json:"cors"`
}

// ServerConfig contains HTTP server configuration parameters.
type ServerConfig struct {
	Host        string `mapstructure:"host" json:"host"`               // Bind address
	Port        int    `mapstructure:"port" json:"port"`               // HTTP server port (default: 9090)
	ContextPath string `mapstructure:"contextPath" json:"contextPath"` // Base path for all endpoints
}

// MongoConfig contains the metadata store connection parameters. The same
// deployment backs the catalog collections and the study configurations.
type MongoConfig struct {
	URI            string `mapstructure:"uri" json:"uri"`                       // Connection string
	Database       string `mapstructure:"database" json:"database"`             // Database name
	TimeoutSeconds int    `mapstructure:"timeoutSeconds" json:"timeoutSeconds"` // Per-operation timeout
}

// AuditConfig contains the PostgreSQL audit trail settings. When disabled,
// audit records are discarded.
type AuditConfig struct {
	Enabled  bool   `mapstructure:"enabled" json:"enabled"`
	Host     string `mapstructure:"host" json:"host"`
	Port     int    `mapstructure:"port" json:"port"`
	User     string `mapstructure:"user" json:"user"`
	Password string `mapstructure:"password" json:"password"`
	DBName   string `mapstructure:"dbname" json:"dbname"`
}

// CatalogConfig contains the catalog core parameters.
type CatalogConfig struct {
	Offset  int    `mapstructure:"offset" json:"offset"`   // Numeric ids are allocated strictly above this
	RootDir string `mapstructure:"rootDir" json:"rootDir"` // Workspace root for the posix I/O manager
}

// StorageConfig contains the study lock defaults used by the metadata
// manager. Durations are in seconds.
type StorageConfig struct {
	LockDuration int `mapstructure:"lockDuration" json:"lockDuration"` // Lock hold duration (default 20)
	LockTimeout  int `mapstructure:"lockTimeout" json:"lockTimeout"`   // Acquisition timeout (default 10)
}

// SGEConfig configures the batch scheduler bridge. Queue order matters:
// tool lists are scanned in order and later matches overwrite earlier ones.
type SGEConfig struct {
	DefaultQueue string        `mapstructure:"defaultQueue" json:"defaultQueue"`
	Queues       []QueueConfig `mapstructure:"queues" json:"queues"`
}

// QueueConfig names a scheduler queue and the tools routed to it.
type QueueConfig struct {
	Name  string   `mapstructure:"name" json:"name"`
	Tools []string `mapstructure:"tools" json:"tools"`
}

// IOConfig selects the workspace backend for user, study and job
// directories.
type IOConfig struct {
	Backend string   `mapstructure:"backend" json:"backend"` // "posix" or "s3"
	S3      S3Config `mapstructure:"s3" json:"s3"`
}

// S3Config contains the object storage settings for the S3 workspace
// backend.
type S3Config struct {
	Bucket         string `mapstructure:"bucket" json:"bucket"`
	Prefix         string `mapstructure:"prefix" json:"prefix"`
	Region         string `mapstructure:"region" json:"region"`
	Endpoint       string `mapstructure:"endpoint" json:"endpoint"` // Optional, for S3-compatible stores
	AccessKey      string `mapstructure:"accessKey" json:"accessKey"`
	SecretKey      string `mapstructure:"secretKey" json:"secretKey"`
	ForcePathStyle bool   `mapstructure:"forcePathStyle" json:"forcePathStyle"`
}

// LoggingConfig routes the daemon log through a rotating file when File is
// set; stderr otherwise.
type LoggingConfig struct {
	File       string `mapstructure:"file" json:"file"`
	MaxSizeMB  int    `mapstructure:"maxSizeMB" json:"maxSizeMB"`
	MaxBackups int    `mapstructure:"maxBackups" json:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAgeDays" json:"maxAgeDays"`
}

// CorsConfig contains Cross-Origin Resource Sharing (CORS) policy settings.
type CorsConfig struct {
	AllowedOrigins   []string `mapstructure:"allowedOrigins" json:"allowedOrigins"`
	AllowedMethods   []string `mapstructure:"allowedMethods" json:"allowedMethods"`
	AllowedHeaders   []string `mapstructure:"allowedHeaders" json:"allowedHeaders"`
	AllowCredentials bool     `mapstructure:"allowCredentials" json:"allowCredentials"`
}

// LoadConfig loads the configuration from YAML files and environment variables.
//
// The function supports multiple configuration sources with the following precedence:
// 1. Environment variables (highest priority)
// 2. Configuration file (if provided)
// 3. Default values (lowest priority)
//
// Environment variables should use underscore notation (e.g., SERVER_PORT for server.port).
//
// Parameters:
//   - configPath: Path to the YAML configuration file. If empty, only environment
//     variables and defaults will be used.
//
// Returns:
//   - *Config: Loaded configuration structure
//   - error: Error if configuration loading fails
//
// Example:
//
//	config, err := LoadConfig("config/catalog.yaml")
//	if err != nil {
//	    log.Fatal("Failed to load config:", err)
//	}
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	if configPath != "" {
		log.Printf("📁 Loading config from file: %s", configPath)
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		log.Println("📁 No config file provided — loading from environment variables only")
	}

	// Override config with environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	log.Println("✅ Configuration loaded successfully")
	PrintConfiguration(cfg)
	return cfg, nil
}

// setDefaults configures sensible default values for all configuration options.
//
// This function sets up defaults that allow the service to run in development
// environments without requiring extensive configuration. Production deployments
// should override these values through configuration files or environment variables.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 9090)
	v.SetDefault("server.contextPath", "")

	// Metadata store defaults
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "opencga_catalog")
	v.SetDefault("mongo.timeoutSeconds", 10)

	// Audit trail defaults
	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.host", "localhost")
	v.SetDefault("audit.port", 5432)
	v.SetDefault("audit.user", "opencga")
	v.SetDefault("audit.password", "opencga")
	v.SetDefault("audit.dbname", "opencga_audit")

	// Catalog defaults
	v.SetDefault("catalog.offset", 150000)
	v.SetDefault("catalog.rootDir", "/opt/opencga/sessions")

	// Study lock defaults
	v.SetDefault("storage.lockDuration", 20)
	v.SetDefault("storage.lockTimeout", 10)

	// SGE defaults
	v.SetDefault("sge.defaultQueue", "")

	// Workspace backend defaults
	v.SetDefault("io.backend", "posix")

	// CORS defaults
	v.SetDefault("cors.allowedOrigins", []string{"*"})
	v.SetDefault("cors.allowedMethods", []string{"GET", "POST", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowedHeaders", []string{"*"})
	v.SetDefault("cors.allowCredentials", true)
}

// PrintConfiguration prints the current configuration to the console with sensitive data redacted.
//
// This function is useful for debugging and verifying configuration during startup.
// Sensitive information such as database credentials is masked to prevent accidental
// exposure in logs.
func PrintConfiguration(cfg *Config) {
	// Create a copy of the config to avoid modifying the original
	cfgCopy := *cfg

	// Redact sensitive information
	if cfg.Mongo.URI != "" {
		cfgCopy.Mongo.URI = "****"
	}
	if cfg.Audit.Host != "" {
		cfgCopy.Audit.Host = "****"
		cfgCopy.Audit.User = "****"
		cfgCopy.Audit.Password = "****"
	}
	if cfg.IO.S3.AccessKey != "" {
		cfgCopy.IO.S3.AccessKey = "****"
		cfgCopy.IO.S3.SecretKey = "****"
	}

	// Convert to JSON for pretty printing
	configJSON, err := json.MarshalIndent(cfgCopy, "", "  ")
	if err != nil {
		log.Printf("Unable to marshal configuration to JSON: %v", err)
		return
	}

	log.Printf("📜 Loaded configuration:\n%s", string(configJSON))
}

// AddCors configures Cross-Origin Resource Sharing (CORS) middleware for the router.
//
// This function sets up CORS policies based on the provided configuration,
// enabling web applications from different domains to make requests to the API.
func AddCors(r *chi.Mux, config *Config) {
	c := cors.New(cors.Options{
		AllowedOrigins:   config.CorsConfig.AllowedOrigins,
		AllowedMethods:   config.CorsConfig.AllowedMethods,
		AllowedHeaders:   config.CorsConfig.AllowedHeaders,
		AllowCredentials: config.CorsConfig.AllowCredentials,
	})
	r.Use(c.Handler)
}
