package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/PierreGtch/TorchData/yaml"
)

var exampleOut string

// exampleCmd prints a starter pipeline definition.
var exampleCmd = &cobra.Command{
	Use:   "example",
	Short: "Print an example pipeline definition",
	Long: `Example prints a complete pipeline definition that joins two streams
on a key and splits the result, as a starting point for new pipelines.`,
	Example: `  # Print to stdout
  torchdata example

  # Write to a file and run it
  torchdata example -o pipeline.yaml
  torchdata run pipeline.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if exampleOut != "" {
			if err := os.WriteFile(exampleOut, []byte(yaml.Example()), 0o600); err != nil {
				return fmt.Errorf("write example: %w", err)
			}
			fmt.Printf("Wrote example pipeline to %s\n", exampleOut)
			return nil
		}
		fmt.Print(yaml.Example())
		return nil
	},
}

func init() {
	exampleCmd.Flags().StringVarP(&exampleOut, "out", "o", "", "Write the example to a file instead of stdout")
	rootCmd.AddCommand(exampleCmd)
}
