package convert

import (
	"fmt"
	"sort"

	"jdsx/internal/artifact"
	"jdsx/internal/codec"
	"jdsx/internal/errs"
	"jdsx/internal/pathutil"
)

type pair struct {
	from artifact.Kind
	to   artifact.Kind
}

// routes is the fixed table of shortest hop sequences. Pairs missing from
// the table are unsupported.
var routes = map[pair][]codec.Edge{
	{artifact.ClassFiles, artifact.Dex}:        {codec.ClassToDex},
	{artifact.ClassFiles, artifact.ClassJar}:   {codec.ClassToDex, codec.DexToJar},
	{artifact.ClassFiles, artifact.Smali}:      {codec.ClassToDex, codec.DexToSmali},
	{artifact.ClassFiles, artifact.JavaSource}: {codec.ClassToDex, codec.DexToJar, codec.JarToJava},

	{artifact.Dex, artifact.ClassJar}:   {codec.DexToJar},
	{artifact.Dex, artifact.Smali}:      {codec.DexToSmali},
	{artifact.Dex, artifact.ClassFiles}: {codec.DexToJar, codec.JarToClass},
	{artifact.Dex, artifact.JavaSource}: {codec.DexToJar, codec.JarToJava},

	{artifact.ClassJar, artifact.Dex}:        {codec.JarToDex},
	{artifact.ClassJar, artifact.ClassFiles}: {codec.JarToClass},
	{artifact.ClassJar, artifact.JavaSource}: {codec.JarToJava},
	{artifact.ClassJar, artifact.Smali}:      {codec.JarToDex, codec.DexToSmali},

	{artifact.JavaSource, artifact.ClassFiles}: {codec.JavaToClass},
	{artifact.JavaSource, artifact.Dex}:        {codec.JavaToClass, codec.ClassToDex},
	{artifact.JavaSource, artifact.ClassJar}:   {codec.JavaToClass, codec.ClassToDex, codec.DexToJar},
	{artifact.JavaSource, artifact.Smali}:      {codec.JavaToClass, codec.ClassToDex, codec.DexToSmali},

	{artifact.Smali, artifact.Dex}:        {codec.SmaliToDex},
	{artifact.Smali, artifact.ClassJar}:   {codec.SmaliToDex, codec.DexToJar},
	{artifact.Smali, artifact.ClassFiles}: {codec.SmaliToDex, codec.DexToJar, codec.JarToClass},
	{artifact.Smali, artifact.JavaSource}: {codec.SmaliToDex, codec.DexToJar, codec.JarToJava},
}

// Route returns the hop sequence for from -> to.
func Route(from, to artifact.Kind) ([]codec.Edge, error) {
	const op = "route"
	if !from.Valid() {
		return nil, errs.Newf(errs.InvalidArgument, op, "unknown source kind %q", from)
	}
	if !to.Valid() {
		return nil, errs.Newf(errs.InvalidArgument, op, "unknown target kind %q", to)
	}
	hops, ok := routes[pair{from, to}]
	if !ok {
		return nil, errs.Newf(errs.UnsupportedRoute, op, "no conversion from %s to %s", from, to)
	}
	return append([]codec.Edge(nil), hops...), nil
}

// RouteInfo describes one supported pair for listings.
type RouteInfo struct {
	From artifact.Kind
	To   artifact.Kind
	Hops []codec.Edge
}

func (r RouteInfo) String() string {
	s := fmt.Sprintf("%s -> %s:", r.From, r.To)
	for i, h := range r.Hops {
		if i > 0 {
			s += ","
		}
		s += " " + h.String()
	}
	return s
}

// Routes lists every supported pair in a stable order.
func Routes() []RouteInfo {
	out := make([]RouteInfo, 0, len(routes))
	for p, hops := range routes {
		out = append(out, RouteInfo{From: p.from, To: p.to, Hops: append([]codec.Edge(nil), hops...)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// outputName is how a hop names its output next to its input.
type outputName struct {
	suffix string // replaces the input's extension
	dir    string // fixed sibling directory name
}

var outputNames = map[codec.Edge]outputName{
	codec.ClassToDex:  {suffix: ".dex"},
	codec.DexToJar:    {suffix: ".jar"},
	codec.JarToDex:    {suffix: ".dex"},
	codec.DexToSmali:  {suffix: "_smali"},
	codec.SmaliToDex:  {suffix: ".dex"},
	codec.JarToClass:  {suffix: "_extract"},
	codec.JarToJava:   {suffix: "_java"},
	codec.JavaToClass: {dir: "compiled_classes"},
}

// DeriveOutput computes where hop e writes when its input is at input.
func DeriveOutput(e codec.Edge, input string) (string, error) {
	name, ok := outputNames[e]
	if !ok {
		return "", errs.Newf(errs.UnsupportedRoute, "derive", "no output naming for %s", e)
	}
	if name.dir != "" {
		return pathutil.SiblingDir(input, name.dir)
	}
	return pathutil.Sibling(input, name.suffix)
}

// DerivedPaths lists every path a conversion of input from one kind to
// another writes when no explicit output is given, in hop order. Two
// conversions whose lists intersect must not run at the same time.
func DerivedPaths(from, to artifact.Kind, input string) ([]string, error) {
	hops, err := Route(from, to)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(hops))
	cur := input
	for _, e := range hops {
		out, err := DeriveOutput(e, cur)
		if err != nil {
			return nil, errs.WithHop(err, e.String())
		}
		paths = append(paths, out)
		cur = out
	}
	return paths, nil
}
