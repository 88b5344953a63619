package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xtxerr/rcaeda/internal/blob"
	"github.com/xtxerr/rcaeda/internal/loader"
	"github.com/xtxerr/rcaeda/internal/logging"
	"github.com/xtxerr/rcaeda/internal/pipeline"
	"github.com/xtxerr/rcaeda/internal/validation"
)

// flags shared by every command
var (
	cfgPath   string
	logLevel  string
	logJSON   bool
	backend   string
	bucket    string
	silverKey string
	endpoint  string
	storeRoot string
)

var rootCmd = &cobra.Command{
	Use:   "edad",
	Short: "Exploratory analysis and imputation for structured OpenStack logs",
	Long: `edad loads the structured log CSV from object storage, writes
schema, histogram, identifier and numeric profile artifacts, replaces
placeholder request identifiers and writes the cleaned CSV back to the
same key.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersion sets the version reported by --version.
func SetVersion(v string) {
	rootCmd.Version = v
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgPath, "config", "", "config file path")
	pf.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	pf.BoolVar(&logJSON, "log-json", false, "log as JSON")
	pf.StringVar(&backend, "backend", "", "storage backend: s3, dir, memory (overrides config)")
	pf.StringVar(&bucket, "bucket", "", "bucket name (overrides config)")
	pf.StringVar(&silverKey, "silver-key", "", "silver CSV key (overrides config)")
	pf.StringVar(&endpoint, "endpoint", "", "cluster endpoint (overrides config)")
	pf.StringVar(&storeRoot, "root", "", "root directory for the dir backend (overrides config)")

	rootCmd.AddCommand(runCmd, serveCmd)
}

// loadConfig reads the config file, applies flag overrides, validates the
// result and initializes logging. A positional s3://bucket/key argument
// replaces the bucket and silver key.
func loadConfig(cmd *cobra.Command, args []string) (*loader.Config, error) {
	cfg, err := loader.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	if len(args) > 0 {
		ref, err := validation.ParseObjectRef(args[0])
		if err != nil {
			return nil, err
		}
		cfg.Storage.Bucket = ref.Bucket
		cfg.Dataset.SilverKey = ref.Key
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if flags.Changed("log-json") {
		cfg.Logging.JSON = logJSON
	}
	if flags.Changed("backend") {
		cfg.Storage.Backend = backend
	}
	if flags.Changed("bucket") {
		cfg.Storage.Bucket = bucket
	}
	if flags.Changed("silver-key") {
		cfg.Dataset.SilverKey = silverKey
	}
	if flags.Changed("endpoint") {
		cfg.Cluster.Endpoint = endpoint
	}
	if flags.Changed("root") {
		cfg.Storage.Root = storeRoot
	}

	if err := loader.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}

	level, _ := logging.ParseLevel(cfg.Logging.Level)
	logging.Init(level, cfg.Logging.JSON)
	return cfg, nil
}

// newRunner builds the store and the pipeline runner from cfg.
func newRunner(ctx context.Context, cfg *loader.Config, opts ...pipeline.Option) (*pipeline.Runner, error) {
	store, err := blob.Open(ctx, loader.ToBlobOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return pipeline.New(loader.ToPipelineConfig(cfg), store, opts...), nil
}
