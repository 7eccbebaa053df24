package main

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/PierreGtch/TorchData/builtin"
	"github.com/PierreGtch/TorchData/yaml"
)

var validateStructureOnly bool

// validateCmd checks pipeline files without executing them.
var validateCmd = &cobra.Command{
	Use:   "validate <file.yaml> [file.yaml...]",
	Short: "Validate pipeline definition files",
	Long: `Validate parses each file, checks the definition structure, and builds
the declared pipes to verify their configuration. Files are validated
concurrently.`,
	Example: `  # Validate a single pipeline
  torchdata validate pipeline.yaml

  # Validate several at once
  torchdata validate pipelines/*.yaml

  # Skip pipe construction, check structure only
  torchdata validate pipeline.yaml --structure-only`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return validateFiles(args)
	},
}

func init() {
	validateCmd.Flags().BoolVar(&validateStructureOnly, "structure-only", false, "Check definition structure without building pipes")
	rootCmd.AddCommand(validateCmd)
}

func validateFiles(paths []string) error {
	var (
		mu       sync.Mutex
		failures = make(map[string]error)
	)

	var g errgroup.Group
	g.SetLimit(8)
	for _, path := range paths {
		path := path
		g.Go(func() error {
			if err := validateFile(path); err != nil {
				mu.Lock()
				failures[path] = err
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(failures) == 0 {
		fmt.Printf("All %d file(s) valid\n", len(paths))
		return nil
	}

	bad := make([]string, 0, len(failures))
	for path := range failures {
		bad = append(bad, path)
	}
	sort.Strings(bad)
	for _, path := range bad {
		fmt.Printf("%s: %v\n", path, failures[path])
	}
	return fmt.Errorf("%d of %d file(s) invalid", len(failures), len(paths))
}

func validateFile(path string) error {
	filePath, err := expandPath(path)
	if err != nil {
		return err
	}

	if validateStructureOnly {
		parser := yaml.NewParser()
		def, err := parser.ParseFile(filePath)
		if err != nil {
			return err
		}
		if err := def.Validate(); err != nil {
			return err
		}
		if verbose {
			log.Printf("%s: structure ok (%d pipes)", path, len(def.Pipes))
		}
		return nil
	}

	loader := yaml.NewLoader()
	builtin.RegisterAll(loader, cliLogger{})
	pipeline, err := loader.LoadFile(filePath)
	if err != nil {
		return err
	}
	if verbose {
		log.Printf("%s: pipeline %q builds (%d pipes)", path, pipeline.Name, len(pipeline.Definition.Pipes))
	}
	return nil
}
