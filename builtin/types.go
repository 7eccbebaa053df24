package builtin

// PipeMetadata describes a pipe type.
type PipeMetadata struct {
	Type         string                 `json:"type"`
	Category     string                 `json:"category"`
	Description  string                 `json:"description"`
	Inputs       int                    `json:"inputs"`
	Outputs      string                 `json:"outputs,omitempty"`
	ConfigSchema map[string]interface{} `json:"configSchema"`
	Examples     []Example              `json:"examples,omitempty"`
	Since        string                 `json:"since,omitempty"`
}

// Example shows how to use a pipe type.
type Example struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Config      map[string]interface{} `json:"config"`
	Input       interface{}            `json:"input,omitempty"`
	Output      interface{}            `json:"output,omitempty"`
}
