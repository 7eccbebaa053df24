package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	goyaml "github.com/goccy/go-yaml"
	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	torchdata "github.com/PierreGtch/TorchData"
	"github.com/PierreGtch/TorchData/builtin"
	"github.com/PierreGtch/TorchData/yaml"
)

var runDryRun bool

// runCmd executes a pipeline from a YAML file and prints its output stream.
var runCmd = &cobra.Command{
	Use:   "run <file.yaml>",
	Short: "Execute a pipeline from a YAML file",
	Long: `Run loads a pipeline definition, builds the declared pipes, and drains
the output pipe, printing one item per line.`,
	Example: `  # Run a pipeline
  torchdata run pipeline.yaml

  # Validate without executing
  torchdata run pipeline.yaml --dry-run

  # Print items as JSON
  torchdata run pipeline.yaml --output json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(args[0])
	},
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Validate the pipeline without executing")
	rootCmd.AddCommand(runCmd)
}

func runPipeline(path string) error {
	filePath, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("expand path: %w", err)
	}
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("get absolute path: %w", err)
	}
	if verbose {
		log.Printf("Loading pipeline from: %s", absPath)
	}

	loader := yaml.NewLoader()
	builtin.RegisterAll(loader, cliLogger{})

	pipeline, err := loader.LoadFile(absPath)
	if err != nil {
		return err
	}

	if verbose {
		def := pipeline.Definition
		log.Printf("Loaded pipeline: %s", def.Name)
		if def.Description != "" {
			log.Printf("Description: %s", def.Description)
		}
		log.Printf("Pipes: %d", len(def.Pipes))
	}

	if runDryRun {
		fmt.Println("Pipeline validation successful (dry run)")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	it := pipeline.Output.Iter()
	defer func() { _ = it.Close() }()

	count := 0
	for {
		item, err := it.Next(ctx)
		if err != nil {
			if errors.Is(err, torchdata.ErrEndOfStream) {
				break
			}
			return fmt.Errorf("pipeline failed after %d items: %w", count, err)
		}
		if err := printItem(item); err != nil {
			return err
		}
		count++
	}

	if verbose {
		log.Printf("Pipeline produced %d items", count)
	}
	return nil
}

// printItem writes one output item in the selected format.
func printItem(item any) error {
	switch output {
	case jsonFormat:
		fmt.Println(oj.JSON(item))
	case yamlFormat:
		data, err := goyaml.Marshal(item)
		if err != nil {
			return fmt.Errorf("marshal item: %w", err)
		}
		fmt.Print(string(data))
		fmt.Println("---")
	default:
		fmt.Printf("%v\n", item)
	}
	return nil
}

// expandPath expands ~ to home directory.
func expandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if path == "~" {
			return home, nil
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}
