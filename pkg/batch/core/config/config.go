package config

// Package config provides structures and utilities for managing application configuration.

// EmbeddedConfig holds the content of the configuration file, typically passed from main.go.
type EmbeddedConfig []byte

// LogLevel defines the logging level for the application.
type LogLevel string

const (
	LogLevelTrace  LogLevel = "TRACE"
	LogLevelDebug  LogLevel = "DEBUG"
	LogLevelInfo   LogLevel = "INFO"
	LogLevelWarn   LogLevel = "WARN"
	LogLevelError  LogLevel = "ERROR"
	LogLevelFatal  LogLevel = "FATAL"
	LogLevelSilent LogLevel = "SILENT"
)

// BatchConfig holds the sizing and policy of the batch loop.
type BatchConfig struct {
	// BatchSize is the number of records loaded per batch (B).
	BatchSize int64 `yaml:"batch_size"`
	// RangeWidth is the width of every published row range (W).
	RangeWidth int64 `yaml:"range_width"`
	// TransferSize is the number of rows sent per INSERT statement inside one batch.
	TransferSize int `yaml:"transfer_size"`
	// MaxBatchNumber is the last batch number a run processes. 0 means no ceiling.
	MaxBatchNumber int64 `yaml:"max_batch_number"`
	// DuplicatePolicy is one of "fail", "upsert", "skip".
	DuplicatePolicy string `yaml:"duplicate_policy"`
	// DestinationTable is the table records are loaded into.
	DestinationTable string `yaml:"destination_table"`
}

// SourceConfig describes where archives are read from.
type SourceConfig struct {
	// StorageRef is the name of the storage connection holding the archives.
	StorageRef string `yaml:"storage_ref"`
	// Bucket is the bucket (or directory for local storage) holding the archives.
	Bucket string `yaml:"bucket"`
	// Delimiter is the field delimiter of the embedded data file.
	Delimiter string `yaml:"delimiter"`
	// SpoolDir is where non-seekable downloads are spooled. Empty means the OS temp dir.
	SpoolDir string `yaml:"spool_dir"`
}

// CheckpointConfig selects and configures the checkpoint store.
type CheckpointConfig struct {
	// Backend is "database" or "redis".
	Backend string `yaml:"backend"`
	// Table is the checkpoint table for the database backend.
	Table string `yaml:"table"`
}

// QueueConfig holds the names of the queues messages are published to.
type QueueConfig struct {
	// RangeQueue receives one message per row range.
	RangeQueue string `yaml:"range_queue"`
}

// RedisConfig holds the redis connection used by the queue, the lease and the redis checkpoint store.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	PoolSize  int    `yaml:"pool_size"`
	KeyPrefix string `yaml:"key_prefix"`
}

// LeaseConfig configures the per-dataset run lease.
type LeaseConfig struct {
	Enabled              bool `yaml:"enabled"`
	TTLSeconds           int  `yaml:"ttl_seconds"`
	RenewIntervalSeconds int  `yaml:"renew_interval_seconds"`
	AcquireAttempts      int  `yaml:"acquire_attempts"`
	AcquireDelayMillis   int  `yaml:"acquire_delay_millis"`
}

// TelemetryConfig configures metrics and tracing.
type TelemetryConfig struct {
	// ServiceName is reported as the OpenTelemetry service.name resource attribute.
	ServiceName string `yaml:"service_name"`
	// MetricsAddr is the listen address of the Prometheus endpoint. Empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`
	// OTLPEndpoint is the collector endpoint. Empty disables the OTLP exporters.
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	// OTLPProtocol is "grpc" or "http".
	OTLPProtocol string `yaml:"otlp_protocol"`
	// OTLPInsecure disables TLS towards the collector.
	OTLPInsecure bool `yaml:"otlp_insecure"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the application timezone (e.g., "UTC", "Asia/Tokyo").
	Timezone string `yaml:"timezone"`
	// Logging is the logging configuration.
	Logging LoggingConfig `yaml:"logging"`
}

// InfrastructureConfig holds logical dependency settings for infrastructure components.
type InfrastructureConfig struct {
	// DestinationDBRef is the name of the database connection records are loaded into.
	DestinationDBRef string `yaml:"destination_db_ref"`
	// AutoMigrate applies the embedded migrations before a run.
	AutoMigrate bool `yaml:"auto_migrate"`
}

// BlobtosqlConfig holds all configuration under the "blobtosql" top-level key.
type BlobtosqlConfig struct {
	Batch          BatchConfig          `yaml:"batch"`
	Source         SourceConfig         `yaml:"source"`
	Checkpoint     CheckpointConfig     `yaml:"checkpoint"`
	Queue          QueueConfig          `yaml:"queue"`
	Redis          RedisConfig          `yaml:"redis"`
	Lease          LeaseConfig          `yaml:"lease"`
	Telemetry      TelemetryConfig      `yaml:"telemetry"`
	System         SystemConfig         `yaml:"system"`
	Infrastructure InfrastructureConfig `yaml:"infrastructure"`
	// AdapterConfigs holds named database connections, decoded by the database adapter.
	AdapterConfigs map[string]interface{} `yaml:"database"`
	// StorageConfigs holds named storage connections, decoded by the storage adapters.
	StorageConfigs map[string]interface{} `yaml:"storage"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	Blobtosql BlobtosqlConfig `yaml:"blobtosql"`
	// EmbeddedConfig holds the raw YAML the configuration was loaded from.
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// NewConfig returns a new instance of Config with default values.
func NewConfig() *Config {
	return &Config{
		Blobtosql: BlobtosqlConfig{
			Batch: BatchConfig{
				BatchSize:        100000,
				RangeWidth:       10000,
				TransferSize:     20000,
				DuplicatePolicy:  "upsert",
				DestinationTable: "person",
			},
			Source: SourceConfig{
				StorageRef: "archive",
				Bucket:     "datasets",
				Delimiter:  ",",
			},
			Checkpoint: CheckpointConfig{
				Backend: "database",
				Table:   "batch_checkpoint",
			},
			Queue: QueueConfig{
				RangeQueue: "sqltostorage",
			},
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				PoolSize:  10,
				KeyPrefix: "blobtosql",
			},
			Lease: LeaseConfig{
				Enabled:              true,
				TTLSeconds:           60,
				RenewIntervalSeconds: 20,
				AcquireAttempts:      3,
				AcquireDelayMillis:   1000,
			},
			Telemetry: TelemetryConfig{
				ServiceName:  "blobtosql",
				OTLPProtocol: "grpc",
			},
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: "INFO"},
			},
			Infrastructure: InfrastructureConfig{
				DestinationDBRef: "workload",
				AutoMigrate:      true,
			},
			AdapterConfigs: map[string]interface{}{},
			StorageConfigs: map[string]interface{}{},
		},
	}
}
