package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/soundwatch/internal/model"
)

var predictInput string

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Score a precomputed feature vector",
	Long: `Run the model on a feature vector read from a file.

The file holds either a bare list of numbers or the document printed by
"soundctl features", in JSON or YAML.

Examples:
  soundctl predict -f siren.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if predictInput == "" {
			return fmt.Errorf("input file is required, use -f flag")
		}
		vec, err := loadFeatures(predictInput)
		if err != nil {
			return err
		}
		_, artifacts, err := loadArtifacts(cmd.Context())
		if err != nil {
			return err
		}

		scores, err := artifacts.Model.Predict(vec)
		if err != nil {
			return err
		}
		idx := model.Argmax(scores)
		label, err := artifacts.Labels.Decode(idx)
		if err != nil {
			return err
		}

		tw := newTable(cmd.OutOrStdout())
		fmt.Fprintf(tw, "prediction:\t%s (%d)\n", label, idx)
		for i, class := range artifacts.Labels.Classes() {
			fmt.Fprintf(tw, "  %s\t%.4f\n", class, scores[i])
		}
		return tw.Flush()
	},
}

func init() {
	predictCmd.Flags().StringVarP(&predictInput, "file", "f", "", "feature vector file (JSON or YAML)")
}
