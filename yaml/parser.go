package yaml

import (
	"fmt"
	"io"
	"os"

	goyaml "github.com/goccy/go-yaml"
)

// Parser handles parsing YAML pipeline definitions.
type Parser struct{}

// NewParser creates a new YAML parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse reads and parses a YAML pipeline definition from a reader.
func (p *Parser) Parse(r io.Reader) (*PipelineDefinition, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read definition: %w", err)
	}
	return p.ParseBytes(data)
}

// ParseBytes parses a YAML pipeline definition from raw bytes.
func (p *Parser) ParseBytes(data []byte) (*PipelineDefinition, error) {
	var def PipelineDefinition
	if err := goyaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	return &def, nil
}

// ParseFile reads and parses a YAML pipeline definition from a file.
func (p *Parser) ParseFile(filename string) (*PipelineDefinition, error) {
	// #nosec G304 - This is a parser that needs to accept arbitrary file paths
	// In production, callers should validate the path based on their security requirements
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return p.ParseBytes(data)
}

// ParseString parses a YAML pipeline definition from a string.
func (p *Parser) ParseString(s string) (*PipelineDefinition, error) {
	return p.ParseBytes([]byte(s))
}

// Marshal converts a pipeline definition to YAML format.
func (p *Parser) Marshal(pd *PipelineDefinition) ([]byte, error) {
	data, err := goyaml.Marshal(pd)
	if err != nil {
		return nil, fmt.Errorf("marshal YAML: %w", err)
	}
	return data, nil
}

// MarshalToFile writes a pipeline definition to a YAML file.
func (p *Parser) MarshalToFile(pd *PipelineDefinition, filename string) error {
	data, err := p.Marshal(pd)
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0o600)
}

// Example shows what a YAML pipeline definition looks like.
func Example() string {
	return `name: sample_join
description: Join two keyed streams and split the result round-robin
version: "1.0.0"
output: split[0]

pipes:
  - name: users
    type: wrap
    config:
      items:
        - { id: 1, name: alice }
        - { id: 2, name: bob }

  - name: normalized
    type: script
    inputs: [users]
    config:
      source: |
        function transform(item)
          item.name = string.upper(item.name)
          return item
        end

  - name: emails
    type: wrap
    config:
      items:
        - { id: 2, email: bob@example.com }
        - { id: 1, email: alice@example.com }

  - name: joined
    type: zip_with_iter
    inputs: [normalized, emails]
    config:
      key_path: "$.id"
      buffer_size: 100

  - name: split
    type: round_robin_demux
    inputs: [joined]
    config:
      instances: 2
`
}
