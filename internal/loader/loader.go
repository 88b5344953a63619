// Package loader handles configuration file loading, validation, and
// conversion into the runtime types.
//
// This package is responsible for:
//   - Loading YAML configuration files
//   - Expanding environment variables
//   - Validating every field and reporting all problems at once
//   - Converting the configuration into store and pipeline settings
package loader

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/xtxerr/rcaeda/internal/analysis"
	"github.com/xtxerr/rcaeda/internal/blob"
	"github.com/xtxerr/rcaeda/internal/cluster"
	"github.com/xtxerr/rcaeda/internal/errors"
	"github.com/xtxerr/rcaeda/internal/frame"
	"github.com/xtxerr/rcaeda/internal/logging"
	"github.com/xtxerr/rcaeda/internal/pipeline"
	"github.com/xtxerr/rcaeda/internal/trigger"
	"github.com/xtxerr/rcaeda/internal/validation"
)

// =============================================================================
// Load
// =============================================================================

// Load loads configuration from a YAML file over the defaults. An empty
// path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := Parse(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse expands environment variables in data and decodes it into cfg.
// Unknown fields are rejected.
func Parse(data []byte, cfg *Config) error {
	expanded := os.ExpandEnv(string(data))

	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("parse config: %v: %w", err, errors.ErrInvalidConfig)
	}
	return nil
}

// =============================================================================
// Validate
// =============================================================================

// Validate validates the configuration.
func Validate(cfg *Config) error {
	errs := errors.NewValidationErrors()

	// Storage validation
	switch cfg.Storage.Backend {
	case blob.BackendS3, blob.BackendDir, blob.BackendMemory:
	default:
		errs.AddField("storage.backend", fmt.Sprintf("unknown backend %q", cfg.Storage.Backend))
	}
	if cfg.Storage.Bucket == "" {
		errs.AddMissing("storage.bucket")
	} else if err := validation.ValidateBucketName(cfg.Storage.Bucket); err != nil {
		errs.AddField("storage.bucket", err.Error())
	}
	if cfg.Storage.Backend == blob.BackendDir && cfg.Storage.Root == "" {
		errs.AddField("storage.root", "cannot be empty for the dir backend")
	}

	// Dataset validation
	if cfg.Dataset.SilverKey == "" {
		errs.AddMissing("dataset.silver_key")
	} else if err := validation.ValidateKey(cfg.Dataset.SilverKey); err != nil {
		errs.AddField("dataset.silver_key", err.Error())
	}
	if cfg.Dataset.Partitions < 0 {
		errs.AddField("dataset.partitions", "cannot be negative")
	}
	if cfg.Dataset.RowsPerPartition <= 0 {
		errs.AddField("dataset.rows_per_partition", "must be positive")
	}

	// Cluster validation
	if cfg.Cluster.Endpoint == "" {
		errs.AddMissing("cluster.endpoint")
	} else if _, err := cluster.ParseEndpoint(cfg.Cluster.Endpoint); err != nil {
		errs.AddField("cluster.endpoint", err.Error())
	}

	// Analysis validation
	if cfg.Analysis.OutputPrefix == "" {
		errs.AddMissing("analysis.output_prefix")
	} else if err := validation.ValidatePrefix(cfg.Analysis.OutputPrefix); err != nil {
		errs.AddField("analysis.output_prefix", err.Error())
	}
	if cfg.Analysis.HistogramBins <= 0 {
		errs.AddField("analysis.histogram_bins", "must be positive")
	}
	if cfg.Analysis.TopK <= 0 {
		errs.AddField("analysis.top_k", "must be positive")
	}
	id := cfg.Analysis.Identifier
	if id.Column == "" {
		errs.AddMissing("analysis.identifier.column")
	} else if err := validation.ValidateColumnName(id.Column); err != nil {
		errs.AddField("analysis.identifier.column", err.Error())
	}
	if id.Sentinel == "" {
		errs.AddMissing("analysis.identifier.sentinel")
	}
	if id.Substitute == "" {
		errs.AddMissing("analysis.identifier.substitute")
	}
	if id.Sentinel != "" && id.Sentinel == id.Substitute {
		errs.AddField("analysis.identifier.substitute", "must differ from sentinel")
	}
	if frame.IsNA(id.Substitute) && id.Substitute != "" {
		errs.AddField("analysis.identifier.substitute", fmt.Sprintf("%q reads back as null", id.Substitute))
	}
	if p := cfg.Analysis.Percentile; p.Enabled && (p.Accuracy <= 0 || p.Accuracy >= 1) {
		errs.AddField("analysis.percentile.accuracy", "must be in (0, 1)")
	}

	// Schedule validation
	if cfg.Schedule.Cron == "" {
		errs.AddMissing("schedule.cron")
	} else if err := trigger.Validate(cfg.Schedule.Cron); err != nil {
		errs.AddField("schedule.cron", err.Error())
	}

	// Logging validation
	if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		errs.AddField("logging.level", err.Error())
	}

	return errs.Err()
}

// =============================================================================
// Conversion
// =============================================================================

// ToBlobOptions converts the storage section.
func ToBlobOptions(cfg *Config) blob.Options {
	return blob.Options{
		Backend:   cfg.Storage.Backend,
		Region:    cfg.Storage.Region,
		Endpoint:  cfg.Storage.Endpoint,
		PathStyle: cfg.Storage.PathStyle,
		Root:      cfg.Storage.Root,
	}
}

// ToPipelineConfig converts the configuration into runner settings.
func ToPipelineConfig(cfg *Config) pipeline.Config {
	a := cfg.Analysis
	hist := analysis.Histogram{Bins: a.HistogramBins}
	var prof *analysis.Profile
	if a.Profile {
		prof = &analysis.Profile{
			Percentiles: a.Percentile.Enabled,
			Accuracy:    a.Percentile.Accuracy,
			Compression: analysis.CompressionZstd,
		}
	}

	return pipeline.Config{
		Bucket:       cfg.Storage.Bucket,
		SilverKey:    cfg.Dataset.SilverKey,
		Endpoint:     cfg.Cluster.Endpoint,
		OutputPrefix: a.OutputPrefix,
		Read: frame.ReadOptions{
			RowsPerPartition: cfg.Dataset.RowsPerPartition,
			Partitions:       cfg.Dataset.Partitions,
		},
		Analyzers: pipeline.DefaultAnalyzers(hist, prof),
		Identifier: analysis.Identifier{
			Column:   a.Identifier.Column,
			Sentinel: a.Identifier.Sentinel,
			TopK:     a.TopK,
		},
		Substitute: a.Identifier.Substitute,
	}
}

// Summary returns key/value pairs describing cfg for startup logging.
func Summary(cfg *Config) []any {
	return []any{
		"backend", cfg.Storage.Backend,
		"bucket", cfg.Storage.Bucket,
		"silver_key", cfg.Dataset.SilverKey,
		"endpoint", cfg.Cluster.Endpoint,
		"output_prefix", cfg.Analysis.OutputPrefix,
		"schedule", cfg.Schedule.Cron,
	}
}
