package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PierreGtch/TorchData/builtin/script"
)

// scriptsCmd groups Lua script helpers.
var scriptsCmd = &cobra.Command{
	Use:   "scripts",
	Short: "Work with Lua transform scripts",
	Long: `Scripts provides helpers for the Lua scripts referenced by script and
join pipes in pipeline definitions.`,
}

var scriptsValidateCmd = &cobra.Command{
	Use:   "validate <file.lua> [file.lua...]",
	Short: "Check that scripts load and define a transform function",
	Example: `  # Validate transform scripts
  torchdata scripts validate normalize.lua enrich.lua`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		failed := 0
		for _, path := range args {
			filePath, err := expandPath(path)
			if err == nil {
				err = script.ValidateFile(filePath)
			}
			if err != nil {
				fmt.Printf("%s: %v\n", path, err)
				failed++
				continue
			}
			fmt.Printf("%s: ok\n", path)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d script(s) invalid", failed, len(args))
		}
		return nil
	},
}

func init() {
	scriptsCmd.AddCommand(scriptsValidateCmd)
	rootCmd.AddCommand(scriptsCmd)
}
