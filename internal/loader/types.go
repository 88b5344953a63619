// Package loader - Configuration Types
//
// Defines the YAML configuration structure for edad.
//
// ARCHITECTURE:
//
//	┌──────────────────────────────────────────────────────────┐
//	│                       config.yaml                        │
//	├──────────────────────────────────────────────────────────┤
//	│  storage:   backend (s3 | dir | memory), bucket, region  │
//	│  dataset:   silver key, partitioning                     │
//	│  cluster:   compute endpoint                             │
//	│  analysis:  artifact prefix, histogram, identifier,      │
//	│             percentile profile                           │
//	│  schedule:  cron expression for edad serve               │
//	│  logging:   level, json                                  │
//	│  metrics:   /metrics listen address                      │
//	└──────────────────────────────────────────────────────────┘
package loader

import (
	"github.com/xtxerr/rcaeda/config"
)

// Config is the root configuration structure for edad.
type Config struct {
	Storage  StorageConfig  `yaml:"storage"`
	Dataset  DatasetConfig  `yaml:"dataset"`
	Cluster  ClusterConfig  `yaml:"cluster"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// StorageConfig selects the object store.
type StorageConfig struct {
	// Backend is one of "s3", "dir" or "memory".
	// Default: "s3"
	Backend string `yaml:"backend"`

	// Bucket holds the silver dataset and the artifacts.
	// Default: "rca.logs.openstack"
	Bucket string `yaml:"bucket"`

	// Region is the AWS region for the s3 backend.
	Region string `yaml:"region"`

	// Endpoint overrides the S3 endpoint (MinIO, localstack).
	Endpoint string `yaml:"endpoint"`

	// PathStyle forces path-style S3 addressing.
	PathStyle bool `yaml:"path_style"`

	// Root is the base directory for the dir backend.
	Root string `yaml:"root"`
}

// DatasetConfig locates and partitions the silver CSV.
type DatasetConfig struct {
	// SilverKey is read and overwritten in place.
	// Default: "silver/OpenStack_structured.csv"
	SilverKey string `yaml:"silver_key"`

	// Partitions caps the partition count. 0 means no cap.
	Partitions int `yaml:"partitions"`

	// RowsPerPartition is the target partition size.
	// Default: 50000
	RowsPerPartition int `yaml:"rows_per_partition"`
}

// ClusterConfig addresses the compute cluster.
type ClusterConfig struct {
	// Endpoint format: "local://<name>?workers=N"
	Endpoint string `yaml:"endpoint"`
}

// AnalysisConfig controls the analyzers.
type AnalysisConfig struct {
	// OutputPrefix is the key prefix for artifacts.
	// Default: "logs/eda_output"
	OutputPrefix string `yaml:"output_prefix"`

	HistogramBins int              `yaml:"histogram_bins"`
	TopK          int              `yaml:"top_k"`
	Identifier    IdentifierConfig `yaml:"identifier"`

	// Profile writes the numeric profile Parquet artifact.
	// Default: true
	Profile    bool             `yaml:"profile"`
	Percentile PercentileConfig `yaml:"percentile"`
}

// IdentifierConfig names the identifier column and its placeholder.
type IdentifierConfig struct {
	Column     string `yaml:"column"`
	Sentinel   string `yaml:"sentinel"`
	Substitute string `yaml:"substitute"`
}

// PercentileConfig controls the numeric profile.
type PercentileConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Accuracy float64 `yaml:"accuracy"`
}

// ScheduleConfig drives edad serve.
type ScheduleConfig struct {
	Cron string `yaml:"cron"`
}

// LoggingConfig selects log level and format.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// MetricsConfig exposes Prometheus metrics. Empty Listen disables them.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// DefaultConfig returns a configuration populated from config defaults.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: config.DefaultStorageBackend,
			Bucket:  config.DefaultBucket,
			Region:  config.DefaultAWSRegion,
		},
		Dataset: DatasetConfig{
			SilverKey:        config.DefaultSilverKey,
			Partitions:       config.DefaultPartitions,
			RowsPerPartition: config.DefaultRowsPerPartition,
		},
		Cluster: ClusterConfig{
			Endpoint: config.DefaultClusterEndpoint,
		},
		Analysis: AnalysisConfig{
			OutputPrefix:  config.DefaultOutputPrefix,
			HistogramBins: config.DefaultHistogramBins,
			TopK:          config.DefaultTopK,
			Profile:       true,
			Identifier: IdentifierConfig{
				Column:     config.DefaultIdentifierColumn,
				Sentinel:   config.DefaultSentinel,
				Substitute: config.DefaultSubstitute,
			},
			Percentile: PercentileConfig{
				Enabled:  true,
				Accuracy: config.DefaultPercentileAccuracy,
			},
		},
		Schedule: ScheduleConfig{Cron: config.DefaultSchedule},
		Logging:  LoggingConfig{Level: "info"},
		Metrics:  MetricsConfig{Listen: config.DefaultMetricsListen},
	}
}
