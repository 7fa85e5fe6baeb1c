package tooling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

type recordedCall struct {
	name    string
	success bool
}

type memoryRecorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (m *memoryRecorder) Record(_ context.Context, name string, _ map[string]any, result Result, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, recordedCall{name: name, success: result.Success})
}

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	store := newTestStore(t)
	return NewDispatcher(store, NewRunner(store, RunnerOptions{}))
}

func TestParseCall(t *testing.T) {
	cases := []struct {
		name string
		args map[string]any
		want Call
	}{
		{"create_or_replace_python_file", map[string]any{"path": "a.py", "content": "x"}, WriteScriptCall{Path: "a.py", Content: "x"}},
		{"run_python_file", map[string]any{"path": "a.py"}, RunScriptCall{Path: "a.py"}},
		{"read_file", map[string]any{"path": "data.csv"}, ReadFileCall{Path: "data.csv"}},
		{"list_files", map[string]any{}, ListFilesCall{Path: "."}},
		{"list_files", nil, ListFilesCall{Path: "."}},
		{"list_files", map[string]any{"path": ""}, ListFilesCall{Path: "."}},
		{"list_files", map[string]any{"path": "sub"}, ListFilesCall{Path: "sub"}},
	}
	for _, tc := range cases {
		got, err := ParseCall(tc.name, tc.args)
		if err != nil {
			t.Fatalf("ParseCall(%s, %v): %v", tc.name, tc.args, err)
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Fatalf("ParseCall(%s) mismatch (-want +got):\n%s", tc.name, diff)
		}
		if got.Tool() != ToolName(tc.name) {
			t.Fatalf("Tool() = %s, want %s", got.Tool(), tc.name)
		}
	}
}

func TestParseCallUnknownTool(t *testing.T) {
	_, err := ParseCall("bogus_tool", nil)
	var unknown *UnknownToolError
	if !errors.As(err, &unknown) || unknown.Name != "bogus_tool" {
		t.Fatalf("err = %v, want UnknownToolError", err)
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	d := newTestDispatcher(t)
	res := d.Dispatch(context.Background(), "bogus_tool", map[string]any{})
	want := Result{Success: false, Error: "Unknown tool: bogus_tool"}
	if diff := cmp.Diff(want, res, cmpopts.IgnoreFields(Result{}, "Err")); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatchListFilesDefaultsToRoot(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()
	if res := d.Dispatch(ctx, "create_or_replace_python_file", map[string]any{"path": "pkg/a.py", "content": "pass\n"}); !res.Success {
		t.Fatalf("write failed: %s", res.Error)
	}
	implicit := d.Dispatch(ctx, "list_files", map[string]any{})
	explicit := d.Dispatch(ctx, "list_files", map[string]any{"path": "."})
	if diff := cmp.Diff(explicit, implicit, cmpopts.IgnoreFields(Result{}, "Err")); diff != "" {
		t.Fatalf("list_files {} differs from {path: \".\"} (-explicit +implicit):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"pkg"}, implicit.Listing.Directories); diff != "" {
		t.Fatalf("directories mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatchMissingArgumentsFailCleanly(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()
	for _, name := range []string{"create_or_replace_python_file", "run_python_file", "read_file"} {
		res := d.Dispatch(ctx, name, map[string]any{})
		if res.Success || res.Error == "" {
			t.Fatalf("%s without path should fail, got %+v", name, res)
		}
	}
}

func TestDispatchRoundTripAndRecorder(t *testing.T) {
	rec := &memoryRecorder{}
	d := newTestDispatcher(t).WithRecorder(rec)
	ctx := context.Background()

	d.Dispatch(ctx, "create_or_replace_python_file", map[string]any{"path": "x.py", "content": "print(1)\n"})
	read := d.Dispatch(ctx, "read_file", map[string]any{"path": "x.py"})
	if !read.Success || *read.Content != "print(1)\n" {
		t.Fatalf("read back failed: %+v", read)
	}
	d.Dispatch(ctx, "read_file", map[string]any{"path": "../escape"})
	d.Dispatch(ctx, "bogus_tool", nil)

	want := []recordedCall{
		{"create_or_replace_python_file", true},
		{"read_file", true},
		{"read_file", false},
		{"bogus_tool", false},
	}
	if diff := cmp.Diff(want, rec.calls, cmp.AllowUnexported(recordedCall{})); diff != "" {
		t.Fatalf("recorded calls mismatch (-want +got):\n%s", diff)
	}
}

type noopRecorder struct{}

func (noopRecorder) Record(context.Context, string, map[string]any, Result, time.Duration) {}

func TestDispatchRecoversFromPanics(t *testing.T) {
	d := &Dispatcher{recorder: noopRecorder{}}
	res := d.Dispatch(context.Background(), "read_file", map[string]any{"path": "x.py"})
	if res.Success || res.Error == "" {
		t.Fatalf("expected normalized failure, got %+v", res)
	}
}

func TestRegistryDefinitions(t *testing.T) {
	reg := DefaultRegistry()
	if diff := cmp.Diff([]string{
		"create_or_replace_python_file",
		"run_python_file",
		"read_file",
		"list_files",
	}, reg.Names()); diff != "" {
		t.Fatalf("tool names mismatch (-want +got):\n%s", diff)
	}

	required := map[string][]string{
		"create_or_replace_python_file": {"path", "content"},
		"run_python_file":               {"path"},
		"read_file":                     {"path"},
		"list_files":                    {},
	}
	for _, def := range reg.Definitions() {
		if def.Type != "function" {
			t.Fatalf("%s type = %s", def.Function.Name, def.Type)
		}
		got, _ := def.Function.Parameters["required"].([]string)
		if diff := cmp.Diff(required[def.Function.Name], got, cmpopts.EquateEmpty()); diff != "" {
			t.Fatalf("%s required mismatch (-want +got):\n%s", def.Function.Name, diff)
		}
	}

	def, ok := reg.Lookup("list_files")
	if !ok {
		t.Fatalf("list_files not registered")
	}
	path := def.Function.Parameters["properties"].(map[string]any)["path"].(map[string]any)
	if path["default"] != "." {
		t.Fatalf("list_files path default = %v", path["default"])
	}

	defs := reg.Definitions()
	defs[0].Function.Name = "mutated"
	if reg.Definitions()[0].Function.Name == "mutated" {
		t.Fatalf("Definitions must return a copy")
	}
}
