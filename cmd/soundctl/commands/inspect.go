package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Describe the loaded model or label table",
}

var inspectModelCmd = &cobra.Command{
	Use:   "model",
	Short: "Print the model's layers and shapes",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, artifacts, err := loadArtifacts(cmd.Context())
		if err != nil {
			return err
		}
		net := artifacts.Model

		tw := newTable(cmd.OutOrStdout())
		fmt.Fprintf(tw, "name:\t%s\n", net.Name())
		fmt.Fprintf(tw, "inputs:\t%d\n", net.InputSize())
		fmt.Fprintf(tw, "classes:\t%d\n", net.OutputSize())
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "#\tLAYER\tOUTPUT")
		for _, l := range net.Summary() {
			fmt.Fprintf(tw, "%d\t%s\t%s\n", l.Index, l.Type, l.Output)
		}
		return tw.Flush()
	},
}

var inspectLabelsCmd = &cobra.Command{
	Use:   "labels",
	Short: "Print the label table in class index order",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, artifacts, err := loadArtifacts(cmd.Context())
		if err != nil {
			return err
		}
		tw := newTable(cmd.OutOrStdout())
		for i, class := range artifacts.Labels.Classes() {
			fmt.Fprintf(tw, "%d\t%s\n", i, class)
		}
		return tw.Flush()
	},
}

func init() {
	inspectCmd.AddCommand(inspectModelCmd)
	inspectCmd.AddCommand(inspectLabelsCmd)
}
