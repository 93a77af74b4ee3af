package analyzer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/valyala/fastjson"

	"github.com/olegiv/logtriage-go/internal/triage"
)

// Dispatch errors.
var (
	ErrUnknownTool      = errors.New("unknown tool")
	ErrInvalidArguments = errors.New("invalid tool arguments")
)

// Tool names exposed by NewToolRegistry.
const (
	ToolAnalyzeLevels = "analyze_levels"
	ToolClusterErrors = "cluster_errors"
)

// Handler runs a tool with already parsed JSON arguments.
// The arguments are only valid for the duration of the call.
type Handler func(ctx context.Context, args *fastjson.Value) (interface{}, error)

// Tool is a named, dispatchable operation.
type Tool struct {
	Name        string
	Description string
	Handler     Handler
}

// Registry holds all registered tools.
// It provides thread-safe access to tools and decodes their arguments.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]*Tool
	parsers fastjson.ParserPool
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*Tool),
	}
}

// NewToolRegistry returns a registry with analyze_levels and cluster_errors
// bound to ts.
func NewToolRegistry(ts Toolset) *Registry {
	r := NewRegistry()
	// Both tools are valid by construction.
	_ = r.Register(&Tool{
		Name:        ToolAnalyzeLevels,
		Description: "Count lines per level and per time bucket",
		Handler: func(ctx context.Context, args *fastjson.Value) (interface{}, error) {
			path, err := requiredString(args, "log_path")
			if err != nil {
				return nil, err
			}
			bin, err := intArg(args, "bin_minutes", triage.DefaultBinMinutes)
			if err != nil {
				return nil, err
			}
			report, err := ts.AnalyzeLevels(ctx, path, bin)
			if err != nil {
				return nil, err
			}
			return report, nil
		},
	})
	_ = r.Register(&Tool{
		Name:        ToolClusterErrors,
		Description: "Group error-ish lines into similarity clusters",
		Handler: func(ctx context.Context, args *fastjson.Value) (interface{}, error) {
			path, err := requiredString(args, "log_path")
			if err != nil {
				return nil, err
			}
			opts := triage.DefaultClusterOptions()
			if opts.Threshold, err = floatArg(args, "threshold", opts.Threshold); err != nil {
				return nil, err
			}
			if opts.TopK, err = intArg(args, "top_k", opts.TopK); err != nil {
				return nil, err
			}
			if opts.ExamplesEach, err = intArg(args, "examples_each", opts.ExamplesEach); err != nil {
				return nil, err
			}
			report, err := ts.ClusterErrors(ctx, path, opts)
			if err != nil {
				return nil, err
			}
			return report, nil
		},
	})
	return r
}

// Register adds a tool to the registry.
// If a tool with the same name already exists, it will be overwritten.
func (r *Registry) Register(tool *Tool) error {
	if tool == nil {
		return fmt.Errorf("cannot register nil tool")
	}
	if tool.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if tool.Handler == nil {
		return fmt.Errorf("tool handler cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.tools[tool.Name] = tool
	return nil
}

// Get retrieves a tool by name.
// Returns nil and false if the tool is not registered.
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	return tool, ok
}

// MustGet retrieves a tool by name or panics if not found.
func (r *Registry) MustGet(name string) *Tool {
	tool, ok := r.Get(name)
	if !ok {
		panic(fmt.Sprintf("tool %q not registered", name))
	}
	return tool
}

// List returns all registered tool names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has checks if a tool is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.tools[name]
	return ok
}

// Dispatch runs the tool called name with a JSON object of arguments.
// Empty args are treated as an empty object.
func (r *Registry) Dispatch(ctx context.Context, name string, args []byte) (interface{}, error) {
	tool, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownTool, name, r.List())
	}

	if len(args) == 0 {
		args = []byte("{}")
	}

	p := r.parsers.Get()
	defer r.parsers.Put(p)

	v, err := p.ParseBytes(args)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if v.Type() != fastjson.TypeObject {
		return nil, fmt.Errorf("%w: expected a JSON object, got %s", ErrInvalidArguments, v.Type())
	}

	return tool.Handler(ctx, v)
}

// lookup returns the value for key, or nil when it is missing or null.
func lookup(args *fastjson.Value, key string) *fastjson.Value {
	v := args.Get(key)
	if v == nil || v.Type() == fastjson.TypeNull {
		return nil
	}
	return v
}

func requiredString(args *fastjson.Value, key string) (string, error) {
	v := lookup(args, key)
	if v == nil {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidArguments, key)
	}
	b, err := v.StringBytes()
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidArguments, key, err)
	}
	if len(b) == 0 {
		return "", fmt.Errorf("%w: %s cannot be empty", ErrInvalidArguments, key)
	}
	return string(b), nil
}

func intArg(args *fastjson.Value, key string, def int) (int, error) {
	v := lookup(args, key)
	if v == nil {
		return def, nil
	}
	n, err := v.Int()
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidArguments, key, err)
	}
	return n, nil
}

func floatArg(args *fastjson.Value, key string, def float64) (float64, error) {
	v := lookup(args, key)
	if v == nil {
		return def, nil
	}
	f, err := v.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidArguments, key, err)
	}
	return f, nil
}
