package convert

import (
	"context"
	"path"
	"regexp"
	"strings"

	"jdsx/internal/artifact"
	"jdsx/internal/errs"
)

// TempSmaliName is used for Smali text that has no parsable class header.
const TempSmaliName = "TempSmali.smali"

var (
	publicTypeRe  = regexp.MustCompile(`\bpublic\s+(?:(?:abstract|final|static|strictfp|sealed|non-sealed)\s+)*(?:class|interface|enum|record|@interface)\s+([A-Za-z_$][A-Za-z0-9_$]*)`)
	smaliHeaderRe = regexp.MustCompile(`(?m)^\s*\.class\b[^\n]*?\bL([^;\s]+);`)
)

// JavaClassName returns the public top-level type declared in src.
func JavaClassName(src string) (string, bool) {
	m := publicTypeRe.FindStringSubmatch(src)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// SmaliClassName returns the simple class name from src's .class header,
// e.g. "Hello" for ".class public Lcom/example/Hello;".
func SmaliClassName(src string) (string, bool) {
	m := smaliHeaderRe.FindStringSubmatch(src)
	if m == nil {
		return "", false
	}
	name := path.Base(m[1])
	if name == "" || name == "." || name == "/" {
		return "", false
	}
	return name, true
}

// textFileName picks the file name raw text is materialized under. javac
// requires a public class to live in a file of the same name.
func textFileName(kind artifact.Kind, text string) (string, error) {
	switch kind {
	case artifact.JavaSource:
		name, ok := JavaClassName(text)
		if !ok {
			return "", errs.New(errs.InvalidArgument, "convert-text", "java source declares no public class")
		}
		return name + ".java", nil
	case artifact.Smali:
		if name, ok := SmaliClassName(text); ok {
			return name + ".smali", nil
		}
		return TempSmaliName, nil
	}
	return "", errs.Newf(errs.InvalidArgument, "convert-text", "raw text is not supported for %s", kind)
}

// ConvertText converts raw Java or Smali source text. All argument checks
// happen before anything touches the filesystem; the text is then written
// into a fresh workspace scope of its own and converted from there.
func (o *Orchestrator) ConvertText(ctx context.Context, kind artifact.Kind, text string, target artifact.Kind, output string) (artifact.Artifact, error) {
	const op = "convert-text"
	if kind != artifact.JavaSource && kind != artifact.Smali {
		return artifact.Artifact{}, errs.Newf(errs.InvalidArgument, op, "raw text is not supported for %q", kind)
	}
	if !target.Valid() {
		return artifact.Artifact{}, errs.Newf(errs.InvalidArgument, op, "unknown target kind %q", target)
	}
	if strings.TrimSpace(text) == "" {
		return artifact.Artifact{}, errs.New(errs.EmptyInput, op, "source text is empty")
	}
	if _, err := Route(kind, target); err != nil {
		return artifact.Artifact{}, err
	}
	name, err := textFileName(kind, text)
	if err != nil {
		return artifact.Artifact{}, err
	}
	src, err := o.ws.Materialize(text, name)
	if err != nil {
		return artifact.Artifact{}, err
	}
	return o.Convert(ctx, artifact.Artifact{Kind: kind, Path: src, Ephemeral: true}, target, output)
}
