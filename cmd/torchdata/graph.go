package main

import (
	"encoding/json"
	"fmt"

	goyaml "github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/PierreGtch/TorchData/builtin"
	"github.com/PierreGtch/TorchData/graph"
	"github.com/PierreGtch/TorchData/yaml"
)

// graphCmd shows the pipe graph of a pipeline without running it.
var graphCmd = &cobra.Command{
	Use:   "graph <file.yaml>",
	Short: "Show the pipe graph of a pipeline",
	Long: `Graph builds a pipeline and traverses it from the output pipe, listing
every reachable pipe with its inputs in breadth-first order.`,
	Example: `  # List the pipes of a pipeline
  torchdata graph pipeline.yaml

  # As JSON, for tooling
  torchdata graph pipeline.yaml --output json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGraph(args[0])
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}

// graphEntry is one row of the traversal listing.
type graphEntry struct {
	Name    string   `json:"name" yaml:"name"`
	Type    string   `json:"type" yaml:"type"`
	Sources []string `json:"sources,omitempty" yaml:"sources,omitempty"`
}

func runGraph(path string) error {
	filePath, err := expandPath(path)
	if err != nil {
		return err
	}

	loader := yaml.NewLoader()
	builtin.RegisterAll(loader, cliLogger{})
	pipeline, err := loader.LoadFile(filePath)
	if err != nil {
		return err
	}

	g := graph.Traverse(pipeline.Output)
	entries := make([]graphEntry, 0, g.Len())
	for _, p := range graph.ListAll(g) {
		entry := graphEntry{
			Name: p.Name(),
			Type: fmt.Sprintf("%T", p),
		}
		for _, src := range p.Sources() {
			entry.Sources = append(entry.Sources, src.Name())
		}
		entries = append(entries, entry)
	}

	switch output {
	case jsonFormat:
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	case yamlFormat:
		data, err := goyaml.Marshal(entries)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
	default:
		fmt.Printf("Pipeline: %s (output: %s)\n\n", pipeline.Name, pipeline.Output.Name())
		for _, e := range entries {
			if len(e.Sources) == 0 {
				fmt.Printf("  %-20s %s\n", e.Name, e.Type)
				continue
			}
			fmt.Printf("  %-20s %s  <- %v\n", e.Name, e.Type, e.Sources)
		}
		fmt.Printf("\nTotal: %d pipes\n", len(entries))
	}
	return nil
}
