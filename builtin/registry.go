// Package builtin provides the built-in pipe types available to YAML
// pipeline definitions: sources, transforms, keyed joins, and stream
// splitters, each described by JSON-schema metadata.
package builtin

import (
	"fmt"

	torchdata "github.com/PierreGtch/TorchData"
	"github.com/PierreGtch/TorchData/yaml"
)

// PipeBuilder creates pipes and provides metadata.
type PipeBuilder interface {
	Metadata() PipeMetadata
	Build(def *yaml.PipeDefinition, inputs []torchdata.Pipe) ([]torchdata.Pipe, error)
}

// Registry manages all built-in pipe types.
type Registry struct {
	builders map[string]PipeBuilder
}

// NewRegistry creates a new pipe type registry.
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[string]PipeBuilder),
	}
}

// Register adds a pipe builder.
func (r *Registry) Register(builder PipeBuilder) {
	meta := builder.Metadata()
	r.builders[meta.Type] = builder
}

// Get returns a builder by type.
func (r *Registry) Get(pipeType string) (PipeBuilder, bool) {
	builder, exists := r.builders[pipeType]
	return builder, exists
}

// All returns all registered builders.
func (r *Registry) All() map[string]PipeBuilder {
	return r.builders
}

// RegisterAll registers all built-in pipe types with a YAML loader. The
// logger, when non-nil, is passed through to pipes that report soft
// conditions such as buffer eviction.
func RegisterAll(loader *yaml.Loader, logger torchdata.Logger) *Registry {
	registry := NewRegistry()

	// Sources
	registry.Register(&WrapBuilder{})
	registry.Register(&RangeBuilder{})
	registry.Register(&SequenceBuilder{})

	// Transforms
	registry.Register(&JSONPathBuilder{})
	registry.Register(&ScriptBuilder{})

	// Joins
	registry.Register(&ZipWithIterBuilder{Logger: logger})
	registry.Register(&ZipWithMapBuilder{})

	// Splitters
	registry.Register(&RoundRobinDemuxBuilder{Logger: logger})
	registry.Register(&UnzipBuilder{})

	for _, builder := range registry.All() {
		meta := builder.Metadata()
		loader.RegisterPipeType(meta.Type, createValidatingBuilder(builder))
	}

	return registry
}

// createValidatingBuilder wraps a builder with config validation.
func createValidatingBuilder(builder PipeBuilder) yaml.PipeBuilder {
	return func(def *yaml.PipeDefinition, inputs []torchdata.Pipe) ([]torchdata.Pipe, error) {
		meta := builder.Metadata()
		if err := ValidatePipeConfig(&meta, def.Config); err != nil {
			return nil, fmt.Errorf("config validation failed for pipe '%s': %w", def.Name, err)
		}
		if len(inputs) != meta.Inputs {
			return nil, fmt.Errorf("pipe '%s': type %s takes %d input(s), got %d",
				def.Name, meta.Type, meta.Inputs, len(inputs))
		}
		return builder.Build(def, inputs)
	}
}
