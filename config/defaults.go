// Package config provides configuration defaults for the EDA stage.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via config.yaml or command-line flags.
package config

// =============================================================================
// Storage Defaults
// =============================================================================

const (
	// DefaultBucket holds both the silver dataset and the EDA artifacts.
	// Override via config: storage.bucket
	DefaultBucket = "rca.logs.openstack"

	// DefaultSilverKey is the structured log CSV produced by the parsing stage.
	// The imputation write-back overwrites this same key.
	// Override via config: dataset.silver_key
	DefaultSilverKey = "silver/OpenStack_structured.csv"

	// DefaultOutputPrefix is where analysis artifacts are written.
	// Override via config: analysis.output_prefix
	DefaultOutputPrefix = "logs/eda_output"

	// DefaultAWSRegion is used by the S3 backend when no region is configured.
	// Override via config: storage.region
	DefaultAWSRegion = "us-east-1"

	// DefaultStorageBackend selects the blob store implementation.
	// One of: s3, dir, memory.
	// Override via config: storage.backend
	DefaultStorageBackend = "s3"
)

// =============================================================================
// Cluster Defaults
// =============================================================================

const (
	// DefaultClusterEndpoint is the compute cluster address.
	// Override via config: cluster.endpoint
	DefaultClusterEndpoint = "local://eda-scheduler?workers=8"

	// DefaultClusterWorkers is used when the endpoint does not set workers.
	DefaultClusterWorkers = 4

	// MaxClusterWorkers bounds the worker pool of a single client.
	MaxClusterWorkers = 256
)

// =============================================================================
// Dataset Defaults
// =============================================================================

const (
	// DefaultRowsPerPartition controls how the loader splits the CSV.
	// Override via config: dataset.rows_per_partition
	DefaultRowsPerPartition = 50000

	// DefaultPartitions caps the partition count. Zero means no cap.
	// Override via config: dataset.partitions
	DefaultPartitions = 0
)

// =============================================================================
// Analysis Defaults
// =============================================================================

const (
	// DefaultHistogramBins is the number of histogram buckets per numeric column.
	// Override via config: analysis.histogram_bins
	DefaultHistogramBins = 30

	// DefaultTopK is how many identifier values the quality analyzer reports.
	// Override via config: analysis.top_k
	DefaultTopK = 50

	// DefaultIdentifierColumn is the request/correlation identifier column.
	// Override via config: analysis.identifier.column
	DefaultIdentifierColumn = "request_id"

	// DefaultSentinel marks "no identifier assigned".
	// Override via config: analysis.identifier.sentinel
	DefaultSentinel = "-"

	// DefaultSubstitute replaces the sentinel during imputation.
	// Override via config: analysis.identifier.substitute
	DefaultSubstitute = "rca-system"

	// DefaultPercentileAccuracy is the DDSketch relative accuracy (0.01 = 1%).
	// Override via config: analysis.percentile.accuracy
	DefaultPercentileAccuracy = 0.01
)

// =============================================================================
// Schedule Defaults
// =============================================================================

const (
	// DefaultSchedule runs the stage every 30 minutes.
	// Override via config: schedule.cron
	DefaultSchedule = "*/30 * * * *"

	// DefaultMetricsListen is empty: the metrics endpoint is off unless set.
	// Override via config: metrics.listen
	DefaultMetricsListen = ""
)
