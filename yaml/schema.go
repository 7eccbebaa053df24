// Package yaml provides YAML-based pipeline definition support: a schema
// for declaring pipes and their wiring, a parser, and a loader that builds
// runnable pipelines from registered pipe builders.
package yaml

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// PipelineDefinition represents a complete pipeline defined in YAML.
type PipelineDefinition struct {
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description,omitempty"`
	Version     string                 `yaml:"version,omitempty"`
	Metadata    map[string]interface{} `yaml:"metadata,omitempty"`
	Pipes       []PipeDefinition       `yaml:"pipes"`
	Output      string                 `yaml:"output"`
}

// PipeDefinition represents one pipe in YAML format. A splitter definition
// produces several outputs; downstream pipes reference them by indexed name
// ("split[0]", "split[1]").
type PipeDefinition struct {
	Name        string                 `yaml:"name"`
	Type        string                 `yaml:"type"`
	Description string                 `yaml:"description,omitempty"`
	Inputs      []string               `yaml:"inputs,omitempty"`
	Config      map[string]interface{} `yaml:"config,omitempty"`
}

var inputRefPattern = regexp.MustCompile(`^([^\[\]]+)(?:\[(\d+)\])?$`)

// ParseInputRef splits an input reference into the producing pipe's name and
// the output index ("split[1]" yields "split", 1). A bare name refers to
// output 0.
func ParseInputRef(ref string) (name string, index int, err error) {
	m := inputRefPattern.FindStringSubmatch(strings.TrimSpace(ref))
	if m == nil {
		return "", 0, fmt.Errorf("malformed input reference %q", ref)
	}
	if m[2] == "" {
		return m[1], 0, nil
	}
	index, err = strconv.Atoi(m[2])
	if err != nil {
		return "", 0, fmt.Errorf("malformed input reference %q: %w", ref, err)
	}
	return m[1], index, nil
}

// Validate checks if the pipeline definition is valid.
func (pd *PipelineDefinition) Validate() error {
	if pd.Name == "" {
		return fmt.Errorf("pipeline name is required")
	}
	if pd.Output == "" {
		return fmt.Errorf("output pipe is required")
	}
	if len(pd.Pipes) == 0 {
		return fmt.Errorf("at least one pipe is required")
	}

	pipeNames := make(map[string]bool)
	for _, pipe := range pd.Pipes {
		if pipe.Name == "" {
			return fmt.Errorf("pipe name is required")
		}
		if strings.ContainsAny(pipe.Name, "[]") {
			return fmt.Errorf("pipe name %q must not contain brackets", pipe.Name)
		}
		if pipe.Type == "" {
			return fmt.Errorf("pipe type is required for pipe %s", pipe.Name)
		}
		if pipeNames[pipe.Name] {
			return fmt.Errorf("duplicate pipe name %s", pipe.Name)
		}
		pipeNames[pipe.Name] = true
	}

	for _, pipe := range pd.Pipes {
		for _, ref := range pipe.Inputs {
			name, _, err := ParseInputRef(ref)
			if err != nil {
				return fmt.Errorf("pipe %s: %w", pipe.Name, err)
			}
			if !pipeNames[name] {
				return fmt.Errorf("pipe %s: input %s not found", pipe.Name, name)
			}
			if name == pipe.Name {
				return fmt.Errorf("pipe %s: cannot use itself as input", pipe.Name)
			}
		}
	}

	outName, _, err := ParseInputRef(pd.Output)
	if err != nil {
		return fmt.Errorf("output: %w", err)
	}
	if !pipeNames[outName] {
		return fmt.Errorf("output pipe %s not found", outName)
	}

	return nil
}
