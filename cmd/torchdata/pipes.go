package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	goyaml "github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/PierreGtch/TorchData/builtin"
	"github.com/PierreGtch/TorchData/yaml"
)

// pipesCmd lists the pipe types available in YAML definitions.
var pipesCmd = &cobra.Command{
	Use:   "pipes",
	Short: "List available pipe types",
	Long:  `Pipes lists the built-in pipe types that can be used in YAML pipeline definitions.`,
	Example: `  # List all pipe types
  torchdata pipes

  # List as JSON
  torchdata pipes --output json

  # Show detail for one type
  torchdata pipes info zip_with_iter`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipesList()
	},
}

var pipesInfoCmd = &cobra.Command{
	Use:   "info <type>",
	Short: "Show detailed information about a pipe type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipesInfo(args[0])
	},
}

func init() {
	pipesCmd.AddCommand(pipesInfoCmd)
	rootCmd.AddCommand(pipesCmd)
}

// builtinMetadata returns metadata for every registered pipe type,
// sorted by category then type.
func builtinMetadata() []builtin.PipeMetadata {
	registry := builtin.RegisterAll(yaml.NewLoader(), cliLogger{})

	metas := make([]builtin.PipeMetadata, 0, len(registry.All()))
	for _, builder := range registry.All() {
		metas = append(metas, builder.Metadata())
	}
	sort.Slice(metas, func(i, j int) bool {
		if metas[i].Category != metas[j].Category {
			return metas[i].Category < metas[j].Category
		}
		return metas[i].Type < metas[j].Type
	})
	return metas
}

func runPipesList() error {
	metas := builtinMetadata()

	switch output {
	case jsonFormat:
		data, err := json.MarshalIndent(metas, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	case yamlFormat:
		rows := make([]map[string]interface{}, len(metas))
		for i, meta := range metas {
			rows[i] = map[string]interface{}{
				"type":        meta.Type,
				"category":    meta.Category,
				"description": meta.Description,
				"inputs":      meta.Inputs,
				"outputs":     meta.Outputs,
			}
		}
		data, err := goyaml.Marshal(rows)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	default:
		return printPipesTable(metas)
	}
}

func printPipesTable(metas []builtin.PipeMetadata) error {
	// Group by category
	categories := make(map[string][]builtin.PipeMetadata)
	for _, meta := range metas {
		categories[meta.Category] = append(categories[meta.Category], meta)
	}

	categoryNames := make([]string, 0, len(categories))
	for cat := range categories {
		categoryNames = append(categoryNames, cat)
	}
	sort.Strings(categoryNames)

	for _, cat := range categoryNames {
		fmt.Printf("\n%s:\n", strings.ToUpper(cat[:1])+cat[1:])
		fmt.Println(strings.Repeat("-", len(cat)+1))
		for _, meta := range categories[cat] {
			fmt.Printf("  %-20s %s\n", meta.Type, meta.Description)
		}
	}

	fmt.Printf("\nTotal: %d pipe types\n", len(metas))
	fmt.Println("\nUse 'torchdata pipes info <type>' for detailed information about a specific type.")
	return nil
}

func runPipesInfo(pipeType string) error {
	for _, meta := range builtinMetadata() {
		if meta.Type != pipeType {
			continue
		}

		fmt.Printf("Pipe Type: %s\n", meta.Type)
		fmt.Printf("Category: %s\n", meta.Category)
		fmt.Printf("Description: %s\n", meta.Description)
		fmt.Printf("Inputs: %d\n", meta.Inputs)
		fmt.Printf("Outputs: %s\n", meta.Outputs)
		if meta.Since != "" {
			fmt.Printf("Since: %s\n", meta.Since)
		}
		fmt.Println()

		if len(meta.ConfigSchema) > 0 {
			fmt.Println("Configuration:")
			schemaJSON, _ := json.MarshalIndent(meta.ConfigSchema, "  ", "  ")
			fmt.Printf("  %s\n", schemaJSON)
			fmt.Println()
		}

		if len(meta.Examples) > 0 {
			fmt.Println("Examples:")
			for i, example := range meta.Examples {
				fmt.Printf("  %d. %s\n", i+1, example.Name)
				if example.Description != "" {
					fmt.Printf("     %s\n", example.Description)
				}
				if len(example.Config) > 0 {
					configYAML, _ := goyaml.Marshal(example.Config)
					fmt.Printf("     Config:\n")
					for _, line := range strings.Split(string(configYAML), "\n") {
						if line != "" {
							fmt.Printf("       %s\n", line)
						}
					}
				}
			}
		}

		return nil
	}

	return fmt.Errorf("pipe type '%s' not found", pipeType)
}
