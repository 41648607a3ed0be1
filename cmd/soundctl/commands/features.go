package commands

import (
	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/soundwatch/internal/audio/ingest"
	"github.com/ewilliams-labs/soundwatch/internal/audio/mfcc"
)

var featuresCmd = &cobra.Command{
	Use:   "features <file>",
	Short: "Print the MFCC feature vector of an audio file",
	Long: `Decode an audio file and print its time-averaged MFCC vector as JSON.

The output can be fed back to "soundctl predict -f".

Examples:
  soundctl features siren.wav > siren.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		clip, err := readClip(args[0])
		if err != nil {
			return err
		}

		ing := ingest.New(ingest.Config{TempDir: cfg.TempDir, FFmpegBin: cfg.FFmpegBin})
		wave, err := ing.Ingest(cmd.Context(), clip)
		if err != nil {
			return err
		}
		vec, err := mfcc.NewDefault().Extract(wave)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), featureFile{File: args[0], Features: vec})
	},
}
