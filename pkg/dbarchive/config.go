package dbarchive

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rzpsarthak13/dbarchive/internal/registry"
)

// Config represents the root configuration of a converter.
type Config struct {
	// Database describes the relational database read by Export and written by Import.
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Archive describes the archive written by Export and read by Import, Inspect and Verify.
	Archive ArchiveConfig `yaml:"archive" json:"archive"`

	// Transfer tunes how rows are written into the database.
	Transfer TransferConfig `yaml:"transfer" json:"transfer"`

	// Report configures where problems found during a run are published.
	Report ReportConfig `yaml:"report" json:"report"`
}

// DatabaseConfig contains configuration for the relational database.
type DatabaseConfig struct {
	// Driver specifies the database driver. Supports "mysql", "mariadb", "postgres" and "pgx".
	Driver string `yaml:"driver" json:"driver"`

	// Host is the database host address.
	Host string `yaml:"host" json:"host"`

	// Port is the database port number. Zero selects the driver's default port.
	Port int `yaml:"port" json:"port"`

	// Database is the database name.
	Database string `yaml:"database" json:"database"`

	// Username is the database username.
	Username string `yaml:"username" json:"username"`

	// Password is the database password.
	Password string `yaml:"password" json:"password"`

	// TLS enables transport encryption. If the encrypted connection cannot be
	// established it is retried once without, unless Transfer.RetryWithoutTLS is off.
	TLS bool `yaml:"tls" json:"tls"`

	// Schemas limits Export to the named schemas. Empty exports every user schema.
	Schemas []string `yaml:"schemas,omitempty" json:"schemas,omitempty"`

	// MaxOpenConns is the maximum number of open connections to the database.
	MaxOpenConns int `yaml:"max_open_conns" json:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections in the pool.
	MaxIdleConns int `yaml:"max_idle_conns" json:"max_idle_conns"`

	// ConnMaxLifetime is the maximum amount of time a connection may be reused.
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`

	// ConnectionTimeout is the timeout for establishing database connections.
	ConnectionTimeout time.Duration `yaml:"connection_timeout" json:"connection_timeout"`
}

// ArchiveConfig contains configuration for the archive.
type ArchiveConfig struct {
	// Path is the archive file (packed) or directory (folder kinds).
	Path string `yaml:"path" json:"path"`

	// Version is the format version written by Export: "1.0", "2.0", "2.1" or "2.2".
	// Reading always detects the version, including "dk".
	Version string `yaml:"version" json:"version"`

	// Kind is the on-disk shape: "packed", "folder" or "folder-with-checksums".
	Kind string `yaml:"kind" json:"kind"`

	// LOBMode is "inline" to keep large objects inside the archive or
	// "external" to write them to segmented folders next to it.
	LOBMode string `yaml:"lob_mode" json:"lob_mode"`

	// SegmentMaxFiles rolls an external LOB segment after this many files.
	SegmentMaxFiles int `yaml:"segment_max_files" json:"segment_max_files"`

	// SegmentMaxBytes rolls an external LOB segment after this many bytes. Zero disables the limit.
	SegmentMaxBytes int64 `yaml:"segment_max_bytes" json:"segment_max_bytes"`

	// Checksum is the manifest digest of a folder-with-checksums archive:
	// "md5", "sha256", "sha3-256" or "blake2b-512".
	Checksum string `yaml:"checksum" json:"checksum"`

	// VerifyWorkers is the number of files Verify hashes concurrently.
	VerifyWorkers int `yaml:"verify_workers" json:"verify_workers"`
}

// TransferConfig contains configuration for writing rows into the database.
type TransferConfig struct {
	// BatchSize is the number of inserts sent to the database at once.
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// BatchesPerSecond throttles inserts. Zero disables throttling.
	BatchesPerSecond float64 `yaml:"batches_per_second" json:"batches_per_second"`

	// CreateTables creates missing schemas and tables before importing.
	CreateTables bool `yaml:"create_tables" json:"create_tables"`

	// RetryWithoutTLS allows the degraded retry described on DatabaseConfig.TLS.
	RetryWithoutTLS bool `yaml:"retry_without_tls" json:"retry_without_tls"`
}

// ReportConfig contains configuration for problem reporting.
type ReportConfig struct {
	// RunID is stamped on every published problem. Derived from the start time when empty.
	RunID string `yaml:"run_id" json:"run_id"`

	// Backends receive a copy of every problem. Problems are always logged
	// and returned in the Result.
	Backends []BackendConfig `yaml:"backends,omitempty" json:"backends,omitempty"`
}

// BackendConfig configures one problem backend.
type BackendConfig struct {
	// Type is "memory", "redis", "kafka" or "dynamodb".
	Type string `yaml:"type" json:"type"`

	// Redis is only used when Type is "redis".
	Redis RedisConfig `yaml:"redis,omitempty" json:"redis,omitempty"`

	// Kafka is only used when Type is "kafka".
	Kafka KafkaConfig `yaml:"kafka,omitempty" json:"kafka,omitempty"`

	// DynamoDB is only used when Type is "dynamodb".
	DynamoDB DynamoDBConfig `yaml:"dynamodb,omitempty" json:"dynamodb,omitempty"`
}

// RedisConfig contains configuration for the Redis backend.
type RedisConfig struct {
	// Endpoints is a list of Redis endpoints. Only the first one is used.
	Endpoints []string `yaml:"endpoints" json:"endpoints"`

	// Password is the authentication password for Redis.
	Password string `yaml:"password,omitempty" json:"password,omitempty"`

	// DB is the Redis database number (0-15).
	DB int `yaml:"db" json:"db"`

	// Key prefixes the list problems are pushed to: {key}:{run}.
	Key string `yaml:"key" json:"key"`

	// DialTimeout is the timeout for establishing connections.
	DialTimeout time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
}

// KafkaConfig contains configuration for the Kafka backend.
type KafkaConfig struct {
	// Brokers is a list of Kafka broker addresses (e.g., ["localhost:9092"]).
	Brokers []string `yaml:"brokers" json:"brokers"`

	// Topic is the Kafka topic problems are produced to.
	Topic string `yaml:"topic" json:"topic"`

	// RequiredAcks is the number of acknowledgments required (0, 1, or -1 for all).
	RequiredAcks int `yaml:"required_acks" json:"required_acks"`

	// BatchTimeout is the timeout for batching messages.
	BatchTimeout time.Duration `yaml:"batch_timeout" json:"batch_timeout"`

	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

// DynamoDBConfig contains configuration for the DynamoDB backend.
type DynamoDBConfig struct {
	// Region is the AWS region of the table.
	Region string `yaml:"region" json:"region"`

	// TableName is keyed by "run" (string) and "seq" (number).
	TableName string `yaml:"table_name" json:"table_name"`

	// Endpoint overrides the AWS endpoint, e.g. for LocalStack.
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`

	// AccessKeyID and SecretAccessKey override the default credential chain.
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:            "mysql",
			Host:              "localhost",
			MaxOpenConns:      4,
			MaxIdleConns:      2,
			ConnMaxLifetime:   30 * time.Minute,
			ConnectionTimeout: 10 * time.Second,
		},
		Archive: ArchiveConfig{
			Version:         "2.2",
			Kind:            "packed",
			LOBMode:         "inline",
			SegmentMaxFiles: 1000,
			Checksum:        "md5",
			VerifyWorkers:   4,
		},
		Transfer: TransferConfig{
			BatchSize:       100,
			CreateTables:    true,
			RetryWithoutTLS: true,
		},
	}
}

// LoadConfig reads a YAML or JSON configuration file and overlays the
// DBARCHIVE_* environment variables. The variables of envFiles are loaded
// first; a missing .env file is not an error. An empty path starts from
// DefaultConfig.
func LoadConfig(path string, envFiles ...string) (*Config, error) {
	if err := registry.LoadDotEnv(envFiles...); err != nil {
		return nil, err
	}

	mgr := registry.NewConfigManager()
	if path != "" {
		if err := mgr.LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	if err := mgr.LoadFromEnv(); err != nil {
		return nil, err
	}

	data, err := yaml.Marshal(mgr.GetConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return config, nil
}
