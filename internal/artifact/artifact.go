// Package artifact defines the tagged filesystem references that move
// through a conversion chain.
package artifact

import (
	"fmt"
	"sort"
	"strings"
)

// Kind is one of the five bytecode representations.
type Kind string

const (
	JavaSource Kind = "java"
	ClassFiles Kind = "class"
	Dex        Kind = "dex"
	ClassJar   Kind = "jar"
	Smali      Kind = "smali"
)

// Kinds lists every supported kind in a stable order.
var Kinds = []Kind{JavaSource, ClassFiles, Dex, ClassJar, Smali}

// Shape describes what a kind may look like on disk when used as an input.
type Shape int

const (
	ShapeFile Shape = iota
	ShapeDir
	ShapeEither
)

func (s Shape) String() string {
	switch s {
	case ShapeFile:
		return "file"
	case ShapeDir:
		return "directory"
	default:
		return "file or directory"
	}
}

var aliases = map[string]Kind{
	"java":       JavaSource,
	"javasource": JavaSource,
	"source":     JavaSource,
	"class":      ClassFiles,
	"classes":    ClassFiles,
	"classfiles": ClassFiles,
	"dex":        Dex,
	"jar":        ClassJar,
	"classjar":   ClassJar,
	"smali":      Smali,
}

// ParseKind accepts the canonical names and a few common aliases.
func ParseKind(s string) (Kind, error) {
	k, ok := aliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		names := make([]string, 0, len(Kinds))
		for _, k := range Kinds {
			names = append(names, string(k))
		}
		sort.Strings(names)
		return "", fmt.Errorf("unknown artifact kind %q (want one of %s)", s, strings.Join(names, ", "))
	}
	return k, nil
}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// InputShape is the on-disk shape a kind must have when consumed.
func (k Kind) InputShape() Shape {
	switch k {
	case ClassFiles, Smali, JavaSource:
		return ShapeEither
	case Dex, ClassJar:
		return ShapeFile
	default:
		return ShapeEither
	}
}

// Artifact is one stage of bytecode on disk. Ephemeral artifacts are
// byproducts the caller did not name; they are never the caller's
// responsibility and are never reused across calls.
type Artifact struct {
	Kind      Kind
	Path      string
	Ephemeral bool
}

// New returns a durable (caller-owned) artifact.
func New(kind Kind, path string) Artifact {
	return Artifact{Kind: kind, Path: path}
}

func (a Artifact) String() string {
	if a.Ephemeral {
		return fmt.Sprintf("%s:%s (ephemeral)", a.Kind, a.Path)
	}
	return fmt.Sprintf("%s:%s", a.Kind, a.Path)
}
