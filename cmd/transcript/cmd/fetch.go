package cmd

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(fetchCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <student id>",
	Short: "Fetch one student's transcript.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, _, err := transcripts.GetTranscript(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON {
			return writeJSON(out, rec)
		}
		renderRecord(out, rec)
		return nil
	},
}
