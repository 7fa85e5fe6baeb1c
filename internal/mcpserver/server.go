// Package mcpserver exposes the workspace tools over the Model Context
// Protocol so other agents can drive the same sandbox.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"cophysicist/internal/logging"
	"cophysicist/internal/tooling"
)

const instructions = `This MCP server manages a Python workspace for physics and mathematics work.

Create scripts with create_or_replace_python_file, execute them with run_python_file,
and inspect results with read_file and list_files. All paths are relative to the
workspace root; absolute paths and paths escaping the workspace are rejected.
`

// New builds an MCP server with every registry tool routed through d.
func New(d *tooling.Dispatcher, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "cophysicist",
		Title:   "Co-Physicist workspace tools",
		Version: version,
	}, &mcp.ServerOptions{Instructions: instructions})

	for _, def := range tooling.DefaultRegistry().Definitions() {
		server.AddTool(&mcp.Tool{
			Name:        def.Function.Name,
			Description: def.Function.Description,
			InputSchema: def.Function.Parameters,
		}, handler(d, def.Function.Name))
	}
	return server
}

// Serve runs the server on stdin/stdout until the client disconnects or ctx
// ends.
func Serve(ctx context.Context, d *tooling.Dispatcher, version string) error {
	logging.DevLog("mcp: serving workspace %s on stdio", d.Store().Root())
	return New(d, version).Run(ctx, &mcp.StdioTransport{})
}

func handler(d *tooling.Dispatcher, name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := map[string]any{}
		if raw := req.Params.Arguments; len(raw) > 0 && string(raw) != "null" {
			if err := json.Unmarshal(raw, &args); err != nil {
				return textResult(fmt.Sprintf("Error: invalid arguments: %v", err), true), nil
			}
		}
		formatted := tooling.Format(d.Dispatch(ctx, name, args))
		return textResult(formatted.Text, formatted.IsError), nil
	}
}

func textResult(text string, isError bool) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: isError,
	}
}
