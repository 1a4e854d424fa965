package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "DBARCHIVE_"

// ConfigValidator is the Strategy interface for validating configuration.
// Database drivers and report backends each provide their own validator,
// looked up by the type named in the configuration.
type ConfigValidator interface {
	// Validate validates the parts of config that belong to this type.
	Validate(config *InternalConfig) error

	// Type returns the type identifier for this validator (e.g., "mysql", "redis").
	Type() string
}

var (
	// validatorRegistry stores all registered config validators.
	validatorRegistry = make(map[string]ConfigValidator)

	// validatorRegistryMutex protects the validator registry from concurrent access.
	validatorRegistryMutex sync.RWMutex
)

// ValidationStrategyRegistry provides methods to register and retrieve config validators.
type ValidationStrategyRegistry struct{}

// Register registers a config validator.
// Panics if validator is nil, type is empty, or type is already registered.
func (r *ValidationStrategyRegistry) Register(validator ConfigValidator) {
	if validator == nil {
		panic("validator cannot be nil")
	}
	if validator.Type() == "" {
		panic("validator type cannot be empty")
	}

	validatorRegistryMutex.Lock()
	defer validatorRegistryMutex.Unlock()

	if _, exists := validatorRegistry[validator.Type()]; exists {
		panic(fmt.Sprintf("validator for type %q is already registered", validator.Type()))
	}

	validatorRegistry[validator.Type()] = validator
}

// Get retrieves a validator by type.
func (r *ValidationStrategyRegistry) Get(validatorType string) (ConfigValidator, bool) {
	validatorRegistryMutex.RLock()
	defer validatorRegistryMutex.RUnlock()

	validator, exists := validatorRegistry[validatorType]
	return validator, exists
}

// RegisterValidator registers a validator with the default registry.
// This is the preferred way to register validators from init() functions.
func RegisterValidator(validator ConfigValidator) {
	defaultValidationRegistry.Register(validator)
}

// GetValidator retrieves a validator by type from the default registry.
func GetValidator(validatorType string) (ConfigValidator, bool) {
	return defaultValidationRegistry.Get(strings.ToLower(validatorType))
}

// RegisteredValidatorTypes lists the registered validator types, sorted.
func RegisteredValidatorTypes() []string {
	validatorRegistryMutex.RLock()
	defer validatorRegistryMutex.RUnlock()

	types := make([]string, 0, len(validatorRegistry))
	for t := range validatorRegistry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

var defaultValidationRegistry = &ValidationStrategyRegistry{}

// ConfigManager handles loading and managing configuration from various sources.
type ConfigManager struct {
	config *InternalConfig
}

// NewConfigManager creates a new configuration manager with default configuration.
func NewConfigManager() *ConfigManager {
	return &ConfigManager{
		config: defaultInternalConfig(),
	}
}

// DefaultInternalConfig returns the configuration used when nothing is loaded.
func DefaultInternalConfig() *InternalConfig {
	return defaultInternalConfig()
}

func defaultInternalConfig() *InternalConfig {
	return &InternalConfig{
		Database: InternalDatabaseConfig{
			Driver:            "mysql",
			Host:              "localhost",
			MaxOpenConns:      4,
			MaxIdleConns:      2,
			ConnMaxLifetime:   30 * time.Minute,
			ConnectionTimeout: 10 * time.Second,
		},
		Archive: InternalArchiveConfig{
			Version:         "2.2",
			Kind:            "packed",
			LOBMode:         "inline",
			SegmentMaxFiles: 1000,
			Checksum:        "md5",
			VerifyWorkers:   4,
		},
		Transfer: InternalTransferConfig{
			BatchSize:       100,
			CreateTables:    true,
			RetryWithoutTLS: true,
		},
	}
}

// LoadFromFile loads configuration from a YAML or JSON file.
// The file format is determined by the file extension (.yaml, .yml, or .json).
func (cm *ConfigManager) LoadFromFile(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".yaml", ".yml":
		return cm.LoadFromYAML(data)
	case ".json":
		return cm.LoadFromJSON(data)
	default:
		return fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json)", ext)
	}
}

// LoadFromYAML loads configuration from YAML data.
func (cm *ConfigManager) LoadFromYAML(data []byte) error {
	config := defaultInternalConfig()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if err := cm.validateConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cm.config = config
	return nil
}

// LoadFromJSON loads configuration from JSON data. Durations are given in
// nanoseconds.
func (cm *ConfigManager) LoadFromJSON(data []byte) error {
	config := defaultInternalConfig()
	if len(data) > 0 {
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	}

	if err := cm.validateConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cm.config = config
	return nil
}

// LoadDotEnv loads the given .env files (".env" when none are given) into
// the process environment. Missing files are ignored; variables already set
// are not overridden.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to stat %s: %w", f, err)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// LoadFromEnv overlays environment variables on the current configuration.
// Environment variables follow the pattern: DBARCHIVE_<SECTION>_<KEY>
// Examples:
//   - DBARCHIVE_DATABASE_DRIVER=postgres
//   - DBARCHIVE_DATABASE_SCHEMAS=public,sales
//   - DBARCHIVE_ARCHIVE_PATH=/data/sales.siard
//   - DBARCHIVE_TRANSFER_BATCH_SIZE=500
//   - DBARCHIVE_REPORT_BACKENDS=redis,kafka
func (cm *ConfigManager) LoadFromEnv() error {
	c := *cm.config
	config := &c
	config.Database.Schemas = append([]string(nil), cm.config.Database.Schemas...)
	config.Report.Backends = append([]InternalBackendConfig(nil), cm.config.Report.Backends...)

	// Database configuration
	envString("DATABASE_DRIVER", &config.Database.Driver)
	envString("DATABASE_HOST", &config.Database.Host)
	envInt("DATABASE_PORT", &config.Database.Port)
	envString("DATABASE_DATABASE", &config.Database.Database)
	envString("DATABASE_USERNAME", &config.Database.Username)
	envString("DATABASE_PASSWORD", &config.Database.Password)
	envBool("DATABASE_TLS", &config.Database.TLS)
	envList("DATABASE_SCHEMAS", &config.Database.Schemas)
	envInt("DATABASE_MAX_OPEN_CONNS", &config.Database.MaxOpenConns)
	envInt("DATABASE_MAX_IDLE_CONNS", &config.Database.MaxIdleConns)
	envDuration("DATABASE_CONN_MAX_LIFETIME", &config.Database.ConnMaxLifetime)
	envDuration("DATABASE_CONNECTION_TIMEOUT", &config.Database.ConnectionTimeout)

	// Archive configuration
	envString("ARCHIVE_PATH", &config.Archive.Path)
	envString("ARCHIVE_VERSION", &config.Archive.Version)
	envString("ARCHIVE_KIND", &config.Archive.Kind)
	envString("ARCHIVE_LOB_MODE", &config.Archive.LOBMode)
	envInt("ARCHIVE_SEGMENT_MAX_FILES", &config.Archive.SegmentMaxFiles)
	if val := os.Getenv(EnvPrefix + "ARCHIVE_SEGMENT_MAX_BYTES"); val != "" {
		var n int64
		if _, err := fmt.Sscanf(val, "%d", &n); err == nil {
			config.Archive.SegmentMaxBytes = n
		}
	}
	envString("ARCHIVE_CHECKSUM", &config.Archive.Checksum)
	envInt("ARCHIVE_VERIFY_WORKERS", &config.Archive.VerifyWorkers)

	// Transfer configuration
	envInt("TRANSFER_BATCH_SIZE", &config.Transfer.BatchSize)
	if val := os.Getenv(EnvPrefix + "TRANSFER_BATCHES_PER_SECOND"); val != "" {
		var rate float64
		if _, err := fmt.Sscanf(val, "%f", &rate); err == nil {
			config.Transfer.BatchesPerSecond = rate
		}
	}
	envBool("TRANSFER_CREATE_TABLES", &config.Transfer.CreateTables)
	envBool("TRANSFER_RETRY_WITHOUT_TLS", &config.Transfer.RetryWithoutTLS)

	// Report configuration
	envString("REPORT_RUN_ID", &config.Report.RunID)
	if val := os.Getenv(EnvPrefix + "REPORT_BACKENDS"); val != "" {
		config.Report.Backends = nil
		for _, t := range splitList(val) {
			config.Report.Backends = append(config.Report.Backends, backendFromEnv(t))
		}
	}

	if err := cm.validateConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cm.config = config
	return nil
}

// backendFromEnv reads the DBARCHIVE_REPORT_<TYPE>_<KEY> variables of one backend.
func backendFromEnv(backendType string) InternalBackendConfig {
	b := InternalBackendConfig{Type: strings.ToLower(backendType)}
	b.Redis.DialTimeout = 5 * time.Second
	b.Kafka.RequiredAcks = -1
	b.Kafka.BatchTimeout = 10 * time.Millisecond
	b.Kafka.WriteTimeout = 10 * time.Second

	envList("REPORT_REDIS_ENDPOINTS", &b.Redis.Endpoints)
	envString("REPORT_REDIS_PASSWORD", &b.Redis.Password)
	envInt("REPORT_REDIS_DB", &b.Redis.DB)
	envString("REPORT_REDIS_KEY", &b.Redis.Key)
	envDuration("REPORT_REDIS_DIAL_TIMEOUT", &b.Redis.DialTimeout)

	envList("REPORT_KAFKA_BROKERS", &b.Kafka.Brokers)
	envString("REPORT_KAFKA_TOPIC", &b.Kafka.Topic)
	envInt("REPORT_KAFKA_REQUIRED_ACKS", &b.Kafka.RequiredAcks)
	envDuration("REPORT_KAFKA_BATCH_TIMEOUT", &b.Kafka.BatchTimeout)
	envDuration("REPORT_KAFKA_WRITE_TIMEOUT", &b.Kafka.WriteTimeout)

	envString("REPORT_DYNAMODB_REGION", &b.DynamoDB.Region)
	envString("REPORT_DYNAMODB_TABLE_NAME", &b.DynamoDB.TableName)
	envString("REPORT_DYNAMODB_ENDPOINT", &b.DynamoDB.Endpoint)
	envString("REPORT_DYNAMODB_ACCESS_KEY_ID", &b.DynamoDB.AccessKeyID)
	envString("REPORT_DYNAMODB_SECRET_ACCESS_KEY", &b.DynamoDB.SecretAccessKey)
	return b
}

func envString(key string, dst *string) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		*dst = val
	}
}

func envInt(key string, dst *int) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		var n int
		if _, err := fmt.Sscanf(val, "%d", &n); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		*dst = val == "true" || val == "1"
	}
}

func envDuration(key string, dst *time.Duration) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

func envList(key string, dst *[]string) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		*dst = splitList(val)
	}
}

func splitList(val string) []string {
	var out []string
	for _, s := range strings.Split(val, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// GetConfig returns the current internal configuration.
func (cm *ConfigManager) GetConfig() *InternalConfig {
	return cm.config
}

// SetConfig validates and installs config.
func (cm *ConfigManager) SetConfig(config *InternalConfig) error {
	if err := cm.validateConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cm.config = config
	return nil
}

// validateConfig validates the configuration and returns an error if invalid.
// The database driver and every report backend are checked by the validator
// registered for their type.
func (cm *ConfigManager) validateConfig(config *InternalConfig) error {
	if config.Database.Driver == "" {
		return fmt.Errorf("database.driver is required")
	}
	validator, exists := GetValidator(config.Database.Driver)
	if !exists {
		return fmt.Errorf("unsupported database driver: %s", config.Database.Driver)
	}
	if err := validator.Validate(config); err != nil {
		return fmt.Errorf("database validation failed: %w", err)
	}
	if config.Database.Port < 0 || config.Database.Port > 65535 {
		return fmt.Errorf("database.port must be between 0 and 65535")
	}
	if config.Database.MaxOpenConns < 0 || config.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database pool sizes must be non-negative")
	}

	if config.Archive.SegmentMaxFiles < 0 || config.Archive.SegmentMaxBytes < 0 {
		return fmt.Errorf("archive segment limits must be non-negative")
	}
	if config.Archive.VerifyWorkers < 0 {
		return fmt.Errorf("archive.verify_workers must be non-negative")
	}

	if config.Transfer.BatchSize <= 0 {
		return fmt.Errorf("transfer.batch_size must be greater than 0")
	}
	if config.Transfer.BatchesPerSecond < 0 {
		return fmt.Errorf("transfer.batches_per_second must be non-negative")
	}

	seen := make(map[string]bool)
	for i, b := range config.Report.Backends {
		if b.Type == "" {
			return fmt.Errorf("report.backends[%d].type is required", i)
		}
		if seen[b.Type] {
			continue
		}
		seen[b.Type] = true
		validator, exists := GetValidator(b.Type)
		if !exists {
			return fmt.Errorf("unsupported report backend: %s", b.Type)
		}
		if err := validator.Validate(config); err != nil {
			return fmt.Errorf("report backend validation failed: %w", err)
		}
	}
	return nil
}
