// Package convert chains codec adapters into multi-hop conversions between
// artifact kinds.
package convert

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"

	"jdsx/internal/artifact"
	"jdsx/internal/codec"
	"jdsx/internal/errs"
	"jdsx/internal/safeio"
	"jdsx/internal/workspace"
)

// Orchestrator runs conversions. Independent requests may share one
// Orchestrator as long as their output paths differ.
type Orchestrator struct {
	reg    *codec.Registry
	ws     *workspace.Workspace
	logger *log.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger used for per-hop progress lines.
func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// New creates an Orchestrator. A nil workspace means one rooted at the
// system temp dir.
func New(reg *codec.Registry, ws *workspace.Workspace, opts ...Option) *Orchestrator {
	if ws == nil {
		ws = workspace.New("")
	}
	o := &Orchestrator{reg: reg, ws: ws, logger: log.Default()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Workspace returns the workspace raw-text inputs are materialized in.
func (o *Orchestrator) Workspace() *workspace.Workspace {
	return o.ws
}

// Convert converts in to target. The final output goes to output when it
// is non-empty, otherwise next to the last hop's input. Every hop is
// validated before and after it runs; the first failure aborts the chain.
func (o *Orchestrator) Convert(ctx context.Context, in artifact.Artifact, target artifact.Kind, output string) (artifact.Artifact, error) {
	const op = "convert"
	if strings.TrimSpace(in.Path) == "" {
		return artifact.Artifact{}, errs.New(errs.InvalidArgument, op, "source path is empty")
	}
	if !in.Kind.Valid() {
		return artifact.Artifact{}, errs.Newf(errs.InvalidArgument, op, "unknown source kind %q", in.Kind)
	}
	if !target.Valid() {
		return artifact.Artifact{}, errs.Newf(errs.InvalidArgument, op, "unknown target kind %q", target)
	}
	hops, err := Route(in.Kind, target)
	if err != nil {
		return artifact.Artifact{}, err
	}
	explicit := strings.TrimSpace(output)
	if explicit != "" {
		if explicit, err = filepath.Abs(explicit); err != nil {
			return artifact.Artifact{}, errs.Wrap(errs.InvalidPath, op, err, "resolve output path")
		}
	}

	cur := in
	for i, e := range hops {
		dst := ""
		if i == len(hops)-1 {
			dst = explicit
		}
		next, err := o.hop(ctx, e, cur, dst)
		if err != nil {
			o.logger.Printf("%s failed: %v", e, err)
			return artifact.Artifact{}, err
		}
		cur = next
	}
	cur.Ephemeral = explicit == ""
	return cur, nil
}

// hop runs one edge: validate input, derive output, run the adapter and
// validate what it produced.
func (o *Orchestrator) hop(ctx context.Context, e codec.Edge, in artifact.Artifact, output string) (artifact.Artifact, error) {
	adapter, ok := o.reg.Get(e)
	if !ok {
		return artifact.Artifact{}, &errs.Error{Code: errs.UnsupportedRoute, Op: "hop", Hop: e.String(), Message: "no adapter registered"}
	}

	inputs, err := hopInputs(in)
	if err != nil {
		return artifact.Artifact{}, errs.WithHop(err, e.String())
	}

	existed := false
	if output == "" {
		if output, err = DeriveOutput(e, in.Path); err != nil {
			return artifact.Artifact{}, errs.WithHop(err, e.String())
		}
		// Derived paths belong to the converter. Whatever an earlier run
		// left there must not leak into this hop's output.
		if err := os.RemoveAll(output); err != nil {
			return artifact.Artifact{}, &errs.Error{Code: errs.InvalidPath, Op: "hop", Hop: e.String(), Message: "cannot clear stale output", Path: output, Cause: err}
		}
	} else if samePath(output, in.Path) {
		return artifact.Artifact{}, &errs.Error{Code: errs.InvalidPath, Op: "hop", Hop: e.String(), Message: "output would overwrite the input", Path: output}
	} else {
		_, statErr := os.Stat(output)
		existed = statErr == nil
	}

	o.logger.Printf("%s → %s (%s)", in.Path, output, adapter.Name())
	res, err := adapter.Run(ctx, inputs, output)
	if err == nil {
		if res.Path == "" {
			res.Path = output
		}
		err = validateOutput(e, res.Path)
	}
	if err != nil {
		if !existed {
			_ = os.RemoveAll(output)
		}
		for _, aux := range res.Aux {
			_ = os.Remove(aux)
		}
		return artifact.Artifact{}, errs.WithHop(err, e.String())
	}
	return artifact.Artifact{Kind: e.To, Path: res.Path, Ephemeral: true}, nil
}

// hopInputs validates a hop's input artifact and expands it into the paths
// the adapter receives.
func hopInputs(in artifact.Artifact) ([]string, error) {
	role := safeio.RoleAny
	switch in.Kind.InputShape() {
	case artifact.ShapeFile:
		role = safeio.RoleFile
	case artifact.ShapeDir:
		role = safeio.RoleDir
	}
	if err := safeio.RequireExists(in.Path, role, string(in.Kind)+" input"); err != nil {
		return nil, err
	}
	switch in.Kind {
	case artifact.Dex:
		if !safeio.IsValidDex(in.Path) {
			return nil, &errs.Error{Code: errs.MissingArtifact, Op: "validate", Message: "input is not a valid dex file", Path: in.Path}
		}
	case artifact.ClassFiles:
		return expandClassInput(in.Path)
	case artifact.JavaSource:
		return expandJavaInput(in.Path)
	}
	return []string{in.Path}, nil
}

// validateOutput checks what a hop claims to have produced. A missing or
// malformed output is the codec's failure, not the caller's.
func validateOutput(e codec.Edge, path string) error {
	fail := func(msg string) error {
		return &errs.Error{Code: errs.CodecFailure, Op: "validate", Hop: e.String(), Message: msg, Path: path}
	}
	if err := safeio.RequireNonEmpty(path, string(e.To)+" output"); err != nil {
		return fail("hop produced no output")
	}
	if e.To == artifact.Dex {
		if err := safeio.RequireExists(path, safeio.RoleFile, "dex output"); err != nil {
			return fail("dex output is not a readable file")
		}
		if !safeio.IsValidDex(path) {
			return fail("output is not a valid dex file")
		}
	}
	return nil
}

func samePath(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	return err1 == nil && err2 == nil && aa == bb
}
