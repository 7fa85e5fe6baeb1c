package tooling

import "fmt"

// ToolName identifies one of the workspace tools exposed to the model.
type ToolName string

const (
	ToolWriteScript ToolName = "create_or_replace_python_file"
	ToolRunScript   ToolName = "run_python_file"
	ToolReadFile    ToolName = "read_file"
	ToolListFiles   ToolName = "list_files"
)

type ToolDefinition struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

type ToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Registry holds the static tool schemas advertised to completion providers.
type Registry struct {
	byName      map[ToolName]ToolDefinition
	definitions []ToolDefinition
}

var defaultRegistry = newRegistry(
	ToolDefinition{
		Type: "function",
		Function: ToolFunction{
			Name:        string(ToolWriteScript),
			Description: "Create a new Python file or replace an existing one in the workspace directory",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"description": `Relative path within workspace directory (e.g., "script.py" or "subfolder/module.py")`,
					},
					"content": map[string]any{
						"type":        "string",
						"description": "Python code content to write to the file",
					},
				},
				"required": []string{"path", "content"},
			},
		},
	},
	ToolDefinition{
		Type: "function",
		Function: ToolFunction{
			Name:        string(ToolRunScript),
			Description: "Execute a Python file from the workspace directory and return the output",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"description": "Python file path within workspace directory to execute",
					},
				},
				"required": []string{"path"},
			},
		},
	},
	ToolDefinition{
		Type: "function",
		Function: ToolFunction{
			Name:        string(ToolReadFile),
			Description: "Read the contents of a file from the workspace directory",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"description": "File path within workspace directory to read",
					},
				},
				"required": []string{"path"},
			},
		},
	},
	ToolDefinition{
		Type: "function",
		Function: ToolFunction{
			Name:        string(ToolListFiles),
			Description: "List files and directories in the workspace or a subdirectory",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"description": `Directory path within workspace to list (use "." for root workspace)`,
						"default":     ".",
					},
				},
				"required": []string{},
			},
		},
	},
)

func newRegistry(defs ...ToolDefinition) *Registry {
	bucket := make(map[ToolName]ToolDefinition, len(defs))
	for _, def := range defs {
		name := ToolName(def.Function.Name)
		if _, dup := bucket[name]; dup {
			panic(fmt.Sprintf("tool %s registered twice", name))
		}
		bucket[name] = def
	}
	return &Registry{byName: bucket, definitions: defs}
}

// DefaultRegistry returns the registry of the four workspace tools.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Definitions returns a copy of the schemas in registration order.
func (r *Registry) Definitions() []ToolDefinition {
	out := make([]ToolDefinition, len(r.definitions))
	copy(out, r.definitions)
	return out
}

func (r *Registry) Lookup(name string) (ToolDefinition, bool) {
	def, ok := r.byName[ToolName(name)]
	return def, ok
}

// Names lists the registered tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.definitions))
	for _, def := range r.definitions {
		out = append(out, def.Function.Name)
	}
	return out
}

func stringArg(args map[string]any, key string) (string, bool) {
	val, ok := args[key]
	if !ok || val == nil {
		return "", false
	}
	switch cast := val.(type) {
	case string:
		return cast, true
	default:
		return fmt.Sprintf("%v", cast), true
	}
}
