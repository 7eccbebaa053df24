package yaml

import (
	"fmt"

	torchdata "github.com/PierreGtch/TorchData"
)

// PipeBuilder builds the pipes of one definition. inputs holds the already
// built upstream pipes, one per entry of the definition's inputs list, in
// order. Most builders return a single pipe; splitter builders return one
// pipe per branch.
type PipeBuilder func(def *PipeDefinition, inputs []torchdata.Pipe) ([]torchdata.Pipe, error)

// Pipeline is a fully constructed pipeline: every declared pipe plus the
// resolved output.
type Pipeline struct {
	Name       string
	Definition *PipelineDefinition
	Output     torchdata.IterPipe

	outputs map[string][]torchdata.Pipe
}

// Outputs returns the pipes built for a definition name, in output order.
func (p *Pipeline) Outputs(name string) ([]torchdata.Pipe, bool) {
	pipes, ok := p.outputs[name]
	return pipes, ok
}

// Loader loads pipeline definitions and constructs executable pipelines.
type Loader struct {
	parser   *Parser
	builders map[string]PipeBuilder
}

// NewLoader creates a new YAML pipeline loader.
func NewLoader() *Loader {
	return &Loader{
		parser:   NewParser(),
		builders: make(map[string]PipeBuilder),
	}
}

// RegisterPipeType registers a builder for a pipe type.
func (l *Loader) RegisterPipeType(pipeType string, builder PipeBuilder) {
	l.builders[pipeType] = builder
}

// LoadFile loads a pipeline from a YAML file.
func (l *Loader) LoadFile(filename string) (*Pipeline, error) {
	def, err := l.parser.ParseFile(filename)
	if err != nil {
		return nil, fmt.Errorf("parse file: %w", err)
	}
	return l.LoadDefinition(def)
}

// LoadString loads a pipeline from a YAML string.
func (l *Loader) LoadString(yamlStr string) (*Pipeline, error) {
	def, err := l.parser.ParseString(yamlStr)
	if err != nil {
		return nil, fmt.Errorf("parse string: %w", err)
	}
	return l.LoadDefinition(def)
}

// LoadDefinition constructs a pipeline from a parsed definition. Pipes are
// built in dependency order regardless of their order in the definition;
// cyclic definitions fail.
func (l *Loader) LoadDefinition(def *PipelineDefinition) (*Pipeline, error) {
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline definition: %w", err)
	}

	b := &pipelineBuild{
		loader:   l,
		defs:     make(map[string]*PipeDefinition, len(def.Pipes)),
		outputs:  make(map[string][]torchdata.Pipe, len(def.Pipes)),
		building: make(map[string]bool),
	}
	for i := range def.Pipes {
		b.defs[def.Pipes[i].Name] = &def.Pipes[i]
	}

	for i := range def.Pipes {
		if _, err := b.build(def.Pipes[i].Name); err != nil {
			return nil, err
		}
	}

	output, err := b.resolve(def.Output)
	if err != nil {
		return nil, fmt.Errorf("output: %w", err)
	}
	out, ok := output.(torchdata.IterPipe)
	if !ok {
		return nil, fmt.Errorf("output pipe %s is not iterable", def.Output)
	}

	return &Pipeline{
		Name:       def.Name,
		Definition: def,
		Output:     out,
		outputs:    b.outputs,
	}, nil
}

type pipelineBuild struct {
	loader   *Loader
	defs     map[string]*PipeDefinition
	outputs  map[string][]torchdata.Pipe
	building map[string]bool
}

// build constructs the pipes for one definition, building its inputs first.
func (b *pipelineBuild) build(name string) ([]torchdata.Pipe, error) {
	if pipes, ok := b.outputs[name]; ok {
		return pipes, nil
	}
	if b.building[name] {
		return nil, fmt.Errorf("pipe %s: input cycle detected", name)
	}
	b.building[name] = true
	defer delete(b.building, name)

	def := b.defs[name]
	builder, ok := b.loader.builders[def.Type]
	if !ok {
		return nil, fmt.Errorf("pipe %s: unknown pipe type %q", name, def.Type)
	}

	inputs := make([]torchdata.Pipe, len(def.Inputs))
	for i, ref := range def.Inputs {
		input, err := b.resolve(ref)
		if err != nil {
			return nil, fmt.Errorf("pipe %s: %w", name, err)
		}
		inputs[i] = input
	}

	pipes, err := builder(def, inputs)
	if err != nil {
		return nil, fmt.Errorf("build pipe %s: %w", name, err)
	}
	if len(pipes) == 0 {
		return nil, fmt.Errorf("build pipe %s: builder produced no pipes", name)
	}
	b.outputs[name] = pipes
	return pipes, nil
}

// resolve maps an input reference to a built pipe, building it on demand.
func (b *pipelineBuild) resolve(ref string) (torchdata.Pipe, error) {
	name, index, err := ParseInputRef(ref)
	if err != nil {
		return nil, err
	}
	pipes, err := b.build(name)
	if err != nil {
		return nil, err
	}
	if index >= len(pipes) {
		return nil, fmt.Errorf("pipe %s has %d outputs, reference %q is out of range", name, len(pipes), ref)
	}
	return pipes[index], nil
}
