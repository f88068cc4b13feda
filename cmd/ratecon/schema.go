package main

import (
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/ratecon-tracker/internal/llm"
)

var schemaPrompt bool

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the extraction JSON Schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if schemaPrompt {
			_, err := cmd.OutOrStdout().Write([]byte(llm.BuildSystemPrompt() + "\n"))
			return err
		}
		return printJSON(llm.BuildExtractionJSONSchema())
	},
}

func init() {
	schemaCmd.Flags().BoolVar(&schemaPrompt, "prompt", false, "print the system prompt instead")
}
