package registry

import (
	"time"
)

// InternalConfig represents the internal configuration structure.
// This is a copy of the public Config type to avoid import cycles.
type InternalConfig struct {
	Database InternalDatabaseConfig `yaml:"database" json:"database"`
	Archive  InternalArchiveConfig  `yaml:"archive" json:"archive"`
	Transfer InternalTransferConfig `yaml:"transfer" json:"transfer"`
	Report   InternalReportConfig   `yaml:"report" json:"report"`
}

// InternalDatabaseConfig contains configuration for the live database side
// of a conversion.
type InternalDatabaseConfig struct {
	Driver            string        `yaml:"driver" json:"driver"`
	Host              string        `yaml:"host" json:"host"`
	Port              int           `yaml:"port" json:"port"`
	Database          string        `yaml:"database" json:"database"`
	Username          string        `yaml:"username" json:"username"`
	Password          string        `yaml:"password" json:"password"`
	TLS               bool          `yaml:"tls" json:"tls"`
	Schemas           []string      `yaml:"schemas,omitempty" json:"schemas,omitempty"`
	MaxOpenConns      int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns      int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime   time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout" json:"connection_timeout"`
}

// InternalArchiveConfig describes the archive side of a conversion.
type InternalArchiveConfig struct {
	Path            string `yaml:"path" json:"path"`
	Version         string `yaml:"version" json:"version"`
	Kind            string `yaml:"kind" json:"kind"`
	LOBMode         string `yaml:"lob_mode" json:"lob_mode"`
	SegmentMaxFiles int    `yaml:"segment_max_files" json:"segment_max_files"`
	SegmentMaxBytes int64  `yaml:"segment_max_bytes" json:"segment_max_bytes"`
	Checksum        string `yaml:"checksum" json:"checksum"`
	VerifyWorkers   int    `yaml:"verify_workers" json:"verify_workers"`
}

// InternalTransferConfig controls how rows are written to a database.
type InternalTransferConfig struct {
	BatchSize        int     `yaml:"batch_size" json:"batch_size"`
	BatchesPerSecond float64 `yaml:"batches_per_second" json:"batches_per_second"` // 0 disables throttling
	CreateTables     bool    `yaml:"create_tables" json:"create_tables"`
	RetryWithoutTLS  bool    `yaml:"retry_without_tls" json:"retry_without_tls"`
}

// InternalReportConfig configures where reported problems are published.
// Problems are always collected in memory; Backends add remote copies.
type InternalReportConfig struct {
	RunID    string                  `yaml:"run_id" json:"run_id"`
	Backends []InternalBackendConfig `yaml:"backends,omitempty" json:"backends,omitempty"`
}

// InternalBackendConfig selects one problem publisher. Only the section
// matching Type is read.
type InternalBackendConfig struct {
	Type     string                 `yaml:"type" json:"type"`
	Redis    InternalRedisConfig    `yaml:"redis,omitempty" json:"redis,omitempty"`
	Kafka    InternalKafkaConfig    `yaml:"kafka,omitempty" json:"kafka,omitempty"`
	DynamoDB InternalDynamoDBConfig `yaml:"dynamodb,omitempty" json:"dynamodb,omitempty"`
}

// InternalRedisConfig contains Redis-specific configuration.
type InternalRedisConfig struct {
	Endpoints   []string      `yaml:"endpoints" json:"endpoints"`
	Password    string        `yaml:"password,omitempty" json:"password,omitempty"`
	DB          int           `yaml:"db" json:"db"`
	Key         string        `yaml:"key" json:"key"`
	DialTimeout time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
}

// InternalKafkaConfig contains Kafka-specific configuration.
type InternalKafkaConfig struct {
	Brokers      []string      `yaml:"brokers" json:"brokers"`
	Topic        string        `yaml:"topic" json:"topic"`
	RequiredAcks int           `yaml:"required_acks" json:"required_acks"`
	BatchTimeout time.Duration `yaml:"batch_timeout" json:"batch_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

// InternalDynamoDBConfig contains DynamoDB-specific configuration.
type InternalDynamoDBConfig struct {
	Region          string `yaml:"region" json:"region"`
	TableName       string `yaml:"table_name" json:"table_name"`
	Endpoint        string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty"`
}
