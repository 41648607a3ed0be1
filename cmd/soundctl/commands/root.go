package commands

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/soundwatch/internal/bootstrap"
	"github.com/ewilliams-labs/soundwatch/internal/config"
	"github.com/ewilliams-labs/soundwatch/internal/logging"
)

var (
	modelPath  string
	labelsPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "soundctl",
	Short: "Offline sound classification tool",
	Long: `Offline sound classification tool.

Runs the same decode, feature extraction and inference stages as the API
server against local files, and inspects model and label artifacts.

Examples:
  soundctl classify siren.wav dog.mp3
  soundctl features siren.wav > siren.json
  soundctl predict -f siren.json
  soundctl inspect model --model s3://models/urban/model.msgpack`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Init(logLevel, "text", os.Stderr)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&modelPath, "model", "", "model artifact (path, URL or s3://); overrides MODEL_PATH")
	rootCmd.PersistentFlags().StringVar(&labelsPath, "labels", "", "label table (path, URL or s3://); overrides LABELS_PATH")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(featuresCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(inspectCmd)
}

// Execute runs the root command. An interrupt cancels artifact downloads.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig reads the shared configuration and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if modelPath != "" {
		cfg.ModelPath = modelPath
	}
	if labelsPath != "" {
		cfg.LabelsPath = labelsPath
	}
	return cfg, nil
}

func loadArtifacts(ctx context.Context) (*config.Config, bootstrap.Artifacts, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, bootstrap.Artifacts{}, err
	}
	a, err := bootstrap.LoadArtifacts(ctx, cfg)
	if err != nil {
		return nil, bootstrap.Artifacts{}, err
	}
	return cfg, a, nil
}
