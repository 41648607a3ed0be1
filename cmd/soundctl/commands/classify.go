package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/soundwatch/internal/bootstrap"
	"github.com/ewilliams-labs/soundwatch/internal/core/domain"
	"github.com/ewilliams-labs/soundwatch/internal/core/services"
)

var (
	classifyJSON   bool
	classifyScores bool
)

type classifyResult struct {
	File       string             `json:"file"`
	Label      string             `json:"label,omitempty"`
	Confidence float64            `json:"confidence,omitempty"`
	Scores     map[string]float64 `json:"scores,omitempty"`
	Error      string             `json:"error,omitempty"`
	Code       string             `json:"code,omitempty"`
}

var classifyCmd = &cobra.Command{
	Use:   "classify <file>...",
	Short: "Classify one or more audio files",
	Long: `Classify audio files with the configured model.

Each file runs through the full pipeline. A file that fails is reported with
its failure code and the remaining files are still classified; the command
exits non-zero if any file failed.

Examples:
  soundctl classify siren.wav
  soundctl classify --json --scores clips/*.ogg`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, artifacts, err := loadArtifacts(cmd.Context())
		if err != nil {
			return err
		}
		pipeline, err := services.NewPipeline(bootstrap.NewRuntime(cfg, artifacts), nil)
		if err != nil {
			return err
		}

		results := make([]classifyResult, 0, len(args))
		failed := 0
		for _, path := range args {
			r := classifyResult{File: path}
			clip, err := readClip(path)
			if err == nil {
				var res domain.ClassificationResult
				res, err = pipeline.Classify(cmd.Context(), clip)
				if err == nil {
					r.Label = res.Label
					r.Confidence = res.Confidence
					if classifyScores {
						r.Scores = res.Scores
					}
				}
			}
			if err != nil {
				failed++
				r.Error = err.Error()
				var pe *domain.PipelineError
				if errors.As(err, &pe) {
					r.Error = pe.Message()
					r.Code = string(pe.Kind)
				}
			}
			results = append(results, r)
		}

		out := cmd.OutOrStdout()
		if classifyJSON {
			if err := printJSON(out, results); err != nil {
				return err
			}
		} else {
			tw := newTable(out)
			fmt.Fprintln(tw, "FILE\tLABEL\tCONFIDENCE")
			for _, r := range results {
				if r.Error != "" {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", r.File, r.Code, r.Error)
					continue
				}
				fmt.Fprintf(tw, "%s\t%s\t%.4f\n", r.File, r.Label, r.Confidence)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, len(args))
		}
		return nil
	},
}

func init() {
	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "print results as JSON")
	classifyCmd.Flags().BoolVar(&classifyScores, "scores", false, "include per-class scores (JSON only)")
}
