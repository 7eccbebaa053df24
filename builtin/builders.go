package builtin

import (
	"context"
	"fmt"
	"os"

	"github.com/ohler55/ojg/jp"

	torchdata "github.com/PierreGtch/TorchData"
	"github.com/PierreGtch/TorchData/builtin/script"
	"github.com/PierreGtch/TorchData/yaml"
)

// configInt reads an integer config value. YAML decoding yields different
// integer types depending on sign and magnitude.
func configInt(config map[string]interface{}, key string, def int) (int, bool) {
	v, ok := config[key]
	if !ok {
		return def, false
	}
	n, ok := asInt(v)
	if !ok {
		return def, false
	}
	return n, true
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// iterInput asserts that an input pipe produces a stream.
func iterInput(def *yaml.PipeDefinition, inputs []torchdata.Pipe, i int) (torchdata.IterPipe, error) {
	ip, ok := inputs[i].(torchdata.IterPipe)
	if !ok {
		return nil, fmt.Errorf("input %d of pipe '%s' must be iterable, got %s", i, def.Name, inputs[i].Name())
	}
	return ip, nil
}

// WrapBuilder builds in-memory source pipes.
type WrapBuilder struct{}

// Metadata returns the pipe type metadata.
func (b *WrapBuilder) Metadata() PipeMetadata {
	return PipeMetadata{
		Type:        "wrap",
		Category:    "source",
		Description: "Produces a fixed list of items in order",
		Inputs:      0,
		ConfigSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"items": map[string]interface{}{
					"type":        "array",
					"description": "Items to produce, in order",
				},
			},
			"required": []string{"items"},
		},
		Examples: []Example{
			{
				Name:   "Wrap strings",
				Config: map[string]interface{}{"items": []interface{}{"a", "b", "c"}},
				Output: []interface{}{"a", "b", "c"},
			},
		},
		Since: "1.0.0",
	}
}

// Build creates a wrap pipe from a definition.
func (b *WrapBuilder) Build(def *yaml.PipeDefinition, inputs []torchdata.Pipe) ([]torchdata.Pipe, error) {
	items, ok := def.Config["items"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("items is required")
	}
	return []torchdata.Pipe{torchdata.Wrap(def.Name, items...)}, nil
}

// RangeBuilder builds integer range source pipes.
type RangeBuilder struct{}

// Metadata returns the pipe type metadata.
func (b *RangeBuilder) Metadata() PipeMetadata {
	return PipeMetadata{
		Type:        "range",
		Category:    "source",
		Description: "Produces the integers [start, stop) with a step",
		Inputs:      0,
		ConfigSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"start": map[string]interface{}{"type": "integer", "default": 0},
				"stop":  map[string]interface{}{"type": "integer"},
				"step":  map[string]interface{}{"type": "integer", "default": 1},
			},
			"required": []string{"stop"},
		},
		Examples: []Example{
			{
				Name:   "First five integers",
				Config: map[string]interface{}{"stop": 5},
				Output: []interface{}{0, 1, 2, 3, 4},
			},
		},
		Since: "1.0.0",
	}
}

// Build creates a range pipe from a definition.
func (b *RangeBuilder) Build(def *yaml.PipeDefinition, inputs []torchdata.Pipe) ([]torchdata.Pipe, error) {
	stop, ok := configInt(def.Config, "stop", 0)
	if !ok {
		return nil, fmt.Errorf("stop is required")
	}
	start, _ := configInt(def.Config, "start", 0)
	step, _ := configInt(def.Config, "step", 1)
	if step == 0 {
		return nil, fmt.Errorf("step must not be zero")
	}
	return []torchdata.Pipe{torchdata.Range(def.Name, start, stop, step)}, nil
}

// SequenceBuilder builds random-access source pipes from a fixed mapping.
type SequenceBuilder struct{}

// Metadata returns the pipe type metadata.
func (b *SequenceBuilder) Metadata() PipeMetadata {
	return PipeMetadata{
		Type:        "sequence",
		Category:    "source",
		Description: "A random-access source addressed by key, for lookup joins",
		Inputs:      0,
		ConfigSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"entries": map[string]interface{}{
					"type":        "object",
					"description": "Mapping from key to item",
				},
			},
			"required": []string{"entries"},
		},
		Since: "1.0.0",
	}
}

// Build creates a sequence pipe from a definition.
func (b *SequenceBuilder) Build(def *yaml.PipeDefinition, inputs []torchdata.Pipe) ([]torchdata.Pipe, error) {
	entries, ok := def.Config["entries"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("entries is required")
	}
	items := make(map[any]any, len(entries))
	for k, v := range entries {
		items[k] = v
	}
	return []torchdata.Pipe{torchdata.Sequence(def.Name, items)}, nil
}

// JSONPathBuilder builds pipes extracting data with JSONPath expressions.
type JSONPathBuilder struct{}

// Metadata returns the pipe type metadata.
func (b *JSONPathBuilder) Metadata() PipeMetadata {
	return PipeMetadata{
		Type:        "jsonpath",
		Category:    "transform",
		Description: "Extracts data from each item using a JSONPath expression",
		Inputs:      1,
		ConfigSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "JSONPath expression to extract data",
				},
				"multiple": map[string]interface{}{
					"type":        "boolean",
					"default":     false,
					"description": "Return all matches as array (true) or first match only (false)",
				},
				"default": map[string]interface{}{
					"description": "Value to yield when the path matches nothing",
				},
			},
			"required": []string{"path"},
		},
		Examples: []Example{
			{
				Name:        "Extract user name",
				Description: "Get user name from nested object",
				Config:      map[string]interface{}{"path": "$.user.name"},
				Input:       map[string]interface{}{"user": map[string]interface{}{"name": "Alice"}},
				Output:      "Alice",
			},
			{
				Name:        "Extract all prices",
				Description: "Get all prices from array of items",
				Config:      map[string]interface{}{"path": "$.items[*].price", "multiple": true},
				Input: map[string]interface{}{
					"items": []interface{}{
						map[string]interface{}{"price": 10.99},
						map[string]interface{}{"price": 2.50},
					},
				},
				Output: []interface{}{10.99, 2.50},
			},
		},
		Since: "1.0.0",
	}
}

// Build creates a JSONPath transform pipe from a definition.
func (b *JSONPathBuilder) Build(def *yaml.PipeDefinition, inputs []torchdata.Pipe) ([]torchdata.Pipe, error) {
	source, err := iterInput(def, inputs, 0)
	if err != nil {
		return nil, err
	}
	pathStr, ok := def.Config["path"].(string)
	if !ok || pathStr == "" {
		return nil, fmt.Errorf("path is required")
	}
	expr, err := jp.ParseString(pathStr)
	if err != nil {
		return nil, fmt.Errorf("invalid JSONPath expression: %w", err)
	}
	multiple, _ := def.Config["multiple"].(bool)
	defaultValue, hasDefault := def.Config["default"]

	m := torchdata.NewMapper(def.Name, source, func(ctx context.Context, item any) (any, error) {
		results := expr.Get(item)
		if len(results) == 0 {
			if hasDefault {
				return defaultValue, nil
			}
			if multiple {
				return []interface{}{}, nil
			}
			return nil, fmt.Errorf("path %s matched nothing in item %v", pathStr, item)
		}
		if multiple {
			return results, nil
		}
		return results[0], nil
	})
	return []torchdata.Pipe{m}, nil
}

// ScriptBuilder builds pipes transforming items through Lua scripts.
type ScriptBuilder struct{}

// Metadata returns the pipe type metadata.
func (b *ScriptBuilder) Metadata() PipeMetadata {
	return PipeMetadata{
		Type:        "script",
		Category:    "transform",
		Description: "Transforms each item through a sandboxed Lua transform(item) function",
		Inputs:      1,
		ConfigSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"source": map[string]interface{}{
					"type":        "string",
					"description": "Inline Lua source defining transform(item)",
				},
				"file": map[string]interface{}{
					"type":        "string",
					"description": "Path to a Lua script defining transform(item)",
				},
			},
		},
		Examples: []Example{
			{
				Name:   "Double each number",
				Config: map[string]interface{}{"source": "function transform(item) return item * 2 end"},
				Input:  3,
				Output: 6,
			},
		},
		Since: "1.0.0",
	}
}

// Build creates a script transform pipe from a definition.
func (b *ScriptBuilder) Build(def *yaml.PipeDefinition, inputs []torchdata.Pipe) ([]torchdata.Pipe, error) {
	src, err := iterInput(def, inputs, 0)
	if err != nil {
		return nil, err
	}
	source, err := scriptSource(def.Config)
	if err != nil {
		return nil, err
	}
	if err := script.Validate(source); err != nil {
		return nil, err
	}

	m := torchdata.NewMapper(def.Name, src, func(ctx context.Context, item any) (any, error) {
		return script.Transform(ctx, source, item)
	})
	return []torchdata.Pipe{m}, nil
}

// scriptSource resolves a Lua script from inline source or a file path.
// Exactly one of the two must be set.
func scriptSource(config map[string]interface{}) (string, error) {
	inline, hasInline := config["source"].(string)
	file, hasFile := config["file"].(string)
	switch {
	case hasInline && hasFile:
		return "", fmt.Errorf("source and file are mutually exclusive")
	case hasInline:
		return inline, nil
	case hasFile:
		content, err := os.ReadFile(file) // #nosec G304 - User-provided script path
		if err != nil {
			return "", fmt.Errorf("read script file: %w", err)
		}
		return string(content), nil
	default:
		return "", fmt.Errorf("either source or file is required")
	}
}

// normalizeKey folds the integer types YAML and Lua decoding produce into
// plain int, so keys computed from different inputs compare equal.
// Non-integral floats and non-numeric keys pass through unchanged.
func normalizeKey(v any) any {
	if f, ok := v.(float64); ok && f != float64(int(f)) {
		return f
	}
	if n, ok := asInt(v); ok {
		return n
	}
	return v
}

// keyFunc builds a join key function from config: a JSONPath expression
// (key_path) or a Lua key(item) script (key_script). prefix distinguishes
// the primary and reference key config fields.
func keyFunc(config map[string]interface{}, prefix string) (torchdata.KeyFunc, bool, error) {
	pathStr, hasPath := config[prefix+"_path"].(string)
	scriptSrc, hasScript := config[prefix+"_script"].(string)
	switch {
	case hasPath && hasScript:
		return nil, false, fmt.Errorf("%s_path and %s_script are mutually exclusive", prefix, prefix)
	case hasPath:
		expr, err := jp.ParseString(pathStr)
		if err != nil {
			return nil, false, fmt.Errorf("invalid %s_path: %w", prefix, err)
		}
		return func(item any) (any, error) {
			results := expr.Get(item)
			if len(results) == 0 {
				return nil, fmt.Errorf("%s_path %s matched nothing in item %v", prefix, pathStr, item)
			}
			return normalizeKey(results[0]), nil
		}, true, nil
	case hasScript:
		return func(item any) (any, error) {
			key, err := script.Key(context.Background(), scriptSrc, item)
			if err != nil {
				return nil, err
			}
			return normalizeKey(key), nil
		}, true, nil
	default:
		return nil, false, nil
	}
}

// ZipWithIterBuilder builds keyed joins of two streams.
type ZipWithIterBuilder struct {
	Logger torchdata.Logger
}

// Metadata returns the pipe type metadata.
func (b *ZipWithIterBuilder) Metadata() PipeMetadata {
	return PipeMetadata{
		Type:        "zip_with_iter",
		Category:    "join",
		Description: "Joins two streams by key, yielding one pair per item of the first stream",
		Inputs:      2,
		ConfigSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"key_path": map[string]interface{}{
					"type":        "string",
					"description": "JSONPath computing each item's join key",
				},
				"key_script": map[string]interface{}{
					"type":        "string",
					"description": "Lua key(item) function computing each item's join key",
				},
				"ref_key_path": map[string]interface{}{
					"type":        "string",
					"description": "JSONPath for reference keys; defaults to the primary key",
				},
				"ref_key_script": map[string]interface{}{
					"type":        "string",
					"description": "Lua key(item) function for reference keys",
				},
				"keep_key": map[string]interface{}{
					"type":        "boolean",
					"default":     false,
					"description": "Yield the join key alongside each pair",
				},
				"buffer_size": map[string]interface{}{
					"type":        "integer",
					"description": "Bound on buffered reference items; -1 for unbounded",
				},
			},
		},
		Since: "1.0.0",
	}
}

// Build creates a keyed join pipe from a definition.
func (b *ZipWithIterBuilder) Build(def *yaml.PipeDefinition, inputs []torchdata.Pipe) ([]torchdata.Pipe, error) {
	source, err := iterInput(def, inputs, 0)
	if err != nil {
		return nil, err
	}
	ref, err := iterInput(def, inputs, 1)
	if err != nil {
		return nil, err
	}

	keyFn, ok, err := keyFunc(def.Config, "key")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("either key_path or key_script is required")
	}

	var opts []torchdata.ZipOption
	if refKeyFn, ok, err := keyFunc(def.Config, "ref_key"); err != nil {
		return nil, err
	} else if ok {
		opts = append(opts, torchdata.WithRefKeyFn(refKeyFn))
	}
	if keep, _ := def.Config["keep_key"].(bool); keep {
		opts = append(opts, torchdata.WithKeepKey())
	}
	if n, ok := configInt(def.Config, "buffer_size", 0); ok {
		opts = append(opts, torchdata.WithBufferSize(n))
	}
	if b.Logger != nil {
		opts = append(opts, torchdata.WithZipLogger(b.Logger))
	}

	z, err := torchdata.NewIterKeyZipper(def.Name, source, ref, keyFn, opts...)
	if err != nil {
		return nil, err
	}
	return []torchdata.Pipe{z}, nil
}

// ZipWithMapBuilder builds lookup joins against a random-access source.
type ZipWithMapBuilder struct{}

// Metadata returns the pipe type metadata.
func (b *ZipWithMapBuilder) Metadata() PipeMetadata {
	return PipeMetadata{
		Type:        "zip_with_map",
		Category:    "join",
		Description: "Joins a stream against a random-access source; every key must resolve",
		Inputs:      2,
		ConfigSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"key_path": map[string]interface{}{
					"type":        "string",
					"description": "JSONPath computing each item's lookup key",
				},
				"key_script": map[string]interface{}{
					"type":        "string",
					"description": "Lua key(item) function computing each item's lookup key",
				},
				"keep_key": map[string]interface{}{
					"type":        "boolean",
					"default":     false,
					"description": "Yield the lookup key alongside each pair",
				},
			},
		},
		Since: "1.0.0",
	}
}

// Build creates a lookup join pipe from a definition.
func (b *ZipWithMapBuilder) Build(def *yaml.PipeDefinition, inputs []torchdata.Pipe) ([]torchdata.Pipe, error) {
	source, err := iterInput(def, inputs, 0)
	if err != nil {
		return nil, err
	}
	ref, ok := inputs[1].(torchdata.MapPipe)
	if !ok {
		return nil, fmt.Errorf("input 1 of pipe '%s' must be a random-access source, got %s", def.Name, inputs[1].Name())
	}

	keyFn, found, err := keyFunc(def.Config, "key")
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("either key_path or key_script is required")
	}

	var opts []torchdata.MapZipOption
	if keep, _ := def.Config["keep_key"].(bool); keep {
		opts = append(opts, torchdata.WithMapKeepKey())
	}

	z, err := torchdata.NewMapKeyZipper(def.Name, source, ref, keyFn, opts...)
	if err != nil {
		return nil, err
	}
	return []torchdata.Pipe{z}, nil
}

// RoundRobinDemuxBuilder builds round-robin stream splitters.
type RoundRobinDemuxBuilder struct {
	Logger torchdata.Logger
}

// Metadata returns the pipe type metadata.
func (b *RoundRobinDemuxBuilder) Metadata() PipeMetadata {
	return PipeMetadata{
		Type:        "round_robin_demux",
		Category:    "split",
		Description: "Splits a stream into N branches, routing item i to branch i mod N",
		Inputs:      1,
		Outputs:     "one branch per instance",
		ConfigSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"instances": map[string]interface{}{
					"type":        "integer",
					"minimum":     1,
					"description": "Number of output branches",
				},
				"buffer_size": map[string]interface{}{
					"type":        "integer",
					"description": "Bound on items buffered across branches; -1 for unbounded",
				},
			},
			"required": []string{"instances"},
		},
		Since: "1.0.0",
	}
}

// Build creates the branches of a round-robin split from a definition.
func (b *RoundRobinDemuxBuilder) Build(def *yaml.PipeDefinition, inputs []torchdata.Pipe) ([]torchdata.Pipe, error) {
	source, err := iterInput(def, inputs, 0)
	if err != nil {
		return nil, err
	}
	instances, ok := configInt(def.Config, "instances", 0)
	if !ok {
		return nil, fmt.Errorf("instances is required")
	}

	var opts []torchdata.DemuxOption
	if n, ok := configInt(def.Config, "buffer_size", 0); ok {
		opts = append(opts, torchdata.WithDemuxBufferSize(n))
	}
	if b.Logger != nil {
		opts = append(opts, torchdata.WithDemuxLogger(b.Logger))
	}

	branches, err := torchdata.RoundRobinDemux(def.Name, source, instances, opts...)
	if err != nil {
		return nil, err
	}
	pipes := make([]torchdata.Pipe, len(branches))
	for i, branch := range branches {
		pipes[i] = branch
	}
	return pipes, nil
}

// UnzipBuilder builds positional splitters over fixed-length sequences.
type UnzipBuilder struct{}

// Metadata returns the pipe type metadata.
func (b *UnzipBuilder) Metadata() PipeMetadata {
	return PipeMetadata{
		Type:        "unzip",
		Category:    "split",
		Description: "Splits a stream of fixed-length sequences into one branch per column",
		Inputs:      1,
		Outputs:     "one branch per retained column",
		ConfigSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"sequence_length": map[string]interface{}{
					"type":        "integer",
					"minimum":     1,
					"description": "Number of elements in each sequence",
				},
				"skip_columns": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "integer"},
					"description": "Column indices to drop from the split",
				},
				"buffer_size": map[string]interface{}{
					"type":        "integer",
					"description": "Bound on the fastest branch's lead; -1 for unbounded",
				},
			},
			"required": []string{"sequence_length"},
		},
		Since: "1.0.0",
	}
}

// Build creates the branches of an unzip split from a definition.
func (b *UnzipBuilder) Build(def *yaml.PipeDefinition, inputs []torchdata.Pipe) ([]torchdata.Pipe, error) {
	source, err := iterInput(def, inputs, 0)
	if err != nil {
		return nil, err
	}
	seqLen, ok := configInt(def.Config, "sequence_length", 0)
	if !ok {
		return nil, fmt.Errorf("sequence_length is required")
	}

	var opts []torchdata.UnzipOption
	if raw, ok := def.Config["skip_columns"].([]interface{}); ok {
		skip := make([]int, 0, len(raw))
		for _, v := range raw {
			col, ok := asInt(v)
			if !ok {
				return nil, fmt.Errorf("skip_columns must hold integers, got %T", v)
			}
			skip = append(skip, col)
		}
		opts = append(opts, torchdata.WithSkipColumns(skip...))
	}
	if n, ok := configInt(def.Config, "buffer_size", 0); ok {
		opts = append(opts, torchdata.WithUnzipBufferSize(n))
	}

	branches, err := torchdata.Unzip(def.Name, source, seqLen, opts...)
	if err != nil {
		return nil, err
	}
	pipes := make([]torchdata.Pipe, len(branches))
	for i, branch := range branches {
		pipes[i] = branch
	}
	return pipes, nil
}
