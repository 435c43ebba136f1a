// Package codec wraps the external bytecode tools. Each Adapter covers one
// conversion edge and reduces whatever the tool does (exit status, missing
// output, partial output) to a Result or a CodecFailure.
package codec

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"jdsx/internal/artifact"
	"jdsx/internal/errs"
)

// Edge is a direct conversion between two kinds.
type Edge struct {
	From artifact.Kind
	To   artifact.Kind
}

func (e Edge) String() string {
	return string(e.From) + "->" + string(e.To)
}

// The direct edges routes are composed from.
var (
	ClassToDex  = Edge{artifact.ClassFiles, artifact.Dex}
	DexToJar    = Edge{artifact.Dex, artifact.ClassJar}
	JarToDex    = Edge{artifact.ClassJar, artifact.Dex}
	DexToSmali  = Edge{artifact.Dex, artifact.Smali}
	SmaliToDex  = Edge{artifact.Smali, artifact.Dex}
	JarToJava   = Edge{artifact.ClassJar, artifact.JavaSource}
	JarToClass  = Edge{artifact.ClassJar, artifact.ClassFiles}
	JavaToClass = Edge{artifact.JavaSource, artifact.ClassFiles}
)

// DirectEdges lists every edge an adapter can serve.
var DirectEdges = []Edge{ClassToDex, DexToJar, JarToDex, DexToSmali, SmaliToDex, JarToJava, JarToClass, JavaToClass}

// Result is the outcome of a successful adapter run. Path is the primary
// output; Aux lists extra files the tool wrote that callers may care about.
type Result struct {
	Path string
	Aux  []string
}

// Adapter invokes exactly one external tool for one edge.
type Adapter interface {
	Edge() Edge
	// Name identifies the backend, e.g. "d8" or "dx".
	Name() string
	Run(ctx context.Context, inputs []string, output string) (Result, error)
}

// Registry maps edges to adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[Edge]Adapter
}

// NewRegistry creates a registry and registers any provided adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: map[Edge]Adapter{}}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds or replaces the adapter for its edge.
func (r *Registry) Register(a Adapter) {
	if r == nil || a == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.adapters == nil {
		r.adapters = map[Edge]Adapter{}
	}
	r.adapters[a.Edge()] = a
}

// Get returns the adapter registered for e.
func (r *Registry) Get(e Edge) (Adapter, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[e]
	return a, ok
}

// Edges returns the registered edges in a stable order.
func (r *Registry) Edges() []Edge {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	out := make([]Edge, 0, len(r.adapters))
	for e := range r.adapters {
		out = append(out, e)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func checkArgs(e Edge, tool string, inputs []string, output string, single bool) error {
	if len(inputs) == 0 {
		return &errs.Error{Code: errs.InvalidArgument, Op: tool, Hop: e.String(), Message: "no input paths provided"}
	}
	if single && len(inputs) != 1 {
		return &errs.Error{Code: errs.InvalidArgument, Op: tool, Hop: e.String(), Message: fmt.Sprintf("expected one input, got %d", len(inputs))}
	}
	for _, in := range inputs {
		if strings.TrimSpace(in) == "" {
			return &errs.Error{Code: errs.InvalidArgument, Op: tool, Hop: e.String(), Message: "input path cannot be empty"}
		}
	}
	if strings.TrimSpace(output) == "" {
		return &errs.Error{Code: errs.InvalidArgument, Op: tool, Hop: e.String(), Message: "output path cannot be empty"}
	}
	return nil
}

const maxToolOutput = 4 << 10

// failure builds the CodecFailure for a tool run, folding the tool's own
// diagnostics into the cause.
func failure(e Edge, tool, message string, cause error, toolOutput []byte) error {
	diag := strings.TrimSpace(string(toolOutput))
	if len(diag) > maxToolOutput {
		diag = "..." + diag[len(diag)-maxToolOutput:]
	}
	switch {
	case cause != nil && diag != "":
		cause = fmt.Errorf("%w\n%s", cause, diag)
	case cause == nil && diag != "":
		cause = fmt.Errorf("%s", diag)
	}
	return &errs.Error{Code: errs.CodecFailure, Op: tool, Hop: e.String(), Message: message, Cause: cause}
}

// expectOutput turns "the tool exited zero but wrote nothing" into a failure.
func expectOutput(e Edge, tool, path string, toolOutput []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return failure(e, tool, "produced no output", nil, toolOutput)
	}
	if !info.IsDir() && info.Size() == 0 {
		return failure(e, tool, "produced an empty output file", nil, toolOutput)
	}
	return nil
}
