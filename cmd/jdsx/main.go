// jdsx converts JVM and Android bytecode artifacts between Java source,
// class files, DEX, class JARs and Smali.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"jdsx/internal/artifact"
	"jdsx/internal/artifactstore"
	"jdsx/internal/codec"
	"jdsx/internal/config"
	"jdsx/internal/convert"
	"jdsx/internal/safeio"
	"jdsx/internal/workspace"
)

var version = "dev"

const usageText = `usage: jdsx <command> [flags]

commands:
  convert -to KIND [-from KIND] [-o OUT] INPUT...   convert files or directories
  convert -to KIND -from java|smali -stdin          convert source text read from stdin
  routes  [-from KIND]                              list supported conversions
  isdex   FILE...                                   check DEX magic headers
  version                                           print the version

kinds: java, class, dex, jar, smali
`

var errUsage = errors.New("usage error")

// newToolchain builds the toolchain the codecs run through. Tests swap it
// for one backed by fake tools.
var newToolchain = func(cacheSize int) (*codec.Toolchain, error) {
	return codec.NewToolchain(codec.ExecRunner{}, cacheSize)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "jdsx: %v\n", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usageText)
		return fmt.Errorf("%w: no command given", errUsage)
	}
	switch args[0] {
	case "convert":
		return runConvert(ctx, args[1:], stdin, stdout, stderr)
	case "routes":
		return runRoutes(args[1:], stdout, stderr)
	case "isdex":
		return runIsDex(args[1:], stdout)
	case "version", "-V", "--version":
		fmt.Fprintf(stdout, "jdsx %s\n", version)
		return nil
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usageText)
		return nil
	}
	fmt.Fprint(stderr, usageText)
	return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
}

type convertFlags struct {
	from, to   string
	output     string
	configPath string
	backend    string
	stdin      bool
	isolate    bool
	publish    bool
	runID      string
	jobs       int
}

func runConvert(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var f convertFlags
	fs.StringVar(&f.from, "from", "", "source kind (inferred from the file extension when omitted)")
	fs.StringVar(&f.to, "to", "", "target kind")
	fs.StringVar(&f.output, "o", "", "explicit output path (single input only)")
	fs.StringVar(&f.configPath, "config", "", "TOML config file (default $JDSX_CONFIG)")
	fs.StringVar(&f.backend, "backend", "", "class->dex backend: d8 or dx")
	fs.BoolVar(&f.stdin, "stdin", false, "read java or smali source text from stdin")
	fs.BoolVar(&f.isolate, "isolate", false, "copy inputs to the temp workspace so intermediates never land next to them")
	fs.BoolVar(&f.publish, "publish", false, "publish results to the configured artifact store")
	fs.StringVar(&f.runID, "run-id", "", "publish run ID (random when empty)")
	fs.IntVar(&f.jobs, "j", 4, "number of inputs converted concurrently")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	inputs := fs.Args()

	target, err := artifact.ParseKind(f.to)
	if err != nil {
		return fmt.Errorf("%w: -to: %v", errUsage, err)
	}
	switch {
	case f.stdin && len(inputs) > 0:
		return fmt.Errorf("%w: -stdin takes no input paths", errUsage)
	case !f.stdin && len(inputs) == 0:
		return fmt.Errorf("%w: no input paths", errUsage)
	case f.output != "" && len(inputs) > 1:
		return fmt.Errorf("%w: -o needs exactly one input", errUsage)
	case f.isolate && f.output == "" && !f.publish:
		return fmt.Errorf("%w: -isolate needs -o or -publish, results in the workspace are removed on exit", errUsage)
	case f.jobs < 1:
		return fmt.Errorf("%w: -j must be at least 1", errUsage)
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	if f.backend != "" {
		cfg.DexBackend = f.backend
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
	}

	logger := log.New(stderr, "jdsx: ", log.LstdFlags)
	ws := workspace.New(cfg.TempRoot)
	defer func() {
		if err := ws.Cleanup(); err != nil {
			logger.Printf("cleanup: %v", err)
		}
	}()

	tc, err := newToolchain(cfg.ToolCache)
	if err != nil {
		return err
	}
	reg, err := codec.NewDefaultRegistry(tc, cfg.CodecOptions())
	if err != nil {
		return err
	}
	orch := convert.New(reg, ws, convert.WithLogger(logger))

	var store artifactstore.Store
	if f.publish {
		s, closeStore, err := artifactstore.Open(ctx, cfg.Publish)
		if err != nil {
			return err
		}
		defer closeStore()
		if s == nil {
			return fmt.Errorf("%w: -publish needs JDSX_PUBLISH set to file, s3 or postgres", errUsage)
		}
		store = s
	}

	var results []artifact.Artifact
	if f.stdin {
		results, err = convertText(ctx, orch, f, target, stdin)
	} else {
		results, err = convertPaths(ctx, orch, ws, f, target, inputs)
	}
	if err != nil {
		return err
	}
	for _, res := range results {
		fmt.Fprintf(stdout, "%s\t%s\n", res.Kind, res.Path)
	}

	if store == nil {
		return nil
	}
	runID := f.runID
	if runID == "" {
		runID = artifactstore.NewRunID()
	}
	for _, res := range results {
		pub, err := artifactstore.Publish(ctx, store, runID, res)
		if err != nil {
			return fmt.Errorf("publish %s: %w", res.Path, err)
		}
		logger.Printf("published %s → %s (%d files)", res.Path, pub.RunID, len(pub.Paths))
		for _, p := range pub.Paths {
			u, err := store.GetURL(ctx, runID, p)
			if err != nil || u == "" {
				u = runID + "/" + p
			}
			fmt.Fprintf(stdout, "published\t%s\n", u)
		}
	}
	return nil
}

func convertText(ctx context.Context, orch *convert.Orchestrator, f convertFlags, target artifact.Kind, stdin io.Reader) ([]artifact.Artifact, error) {
	kind, err := artifact.ParseKind(f.from)
	if err != nil {
		return nil, fmt.Errorf("%w: -stdin needs -from java or -from smali", errUsage)
	}
	text, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	res, err := orch.ConvertText(ctx, kind, string(text), target, f.output)
	if err != nil {
		return nil, err
	}
	return []artifact.Artifact{res}, nil
}

func convertPaths(ctx context.Context, orch *convert.Orchestrator, ws *workspace.Workspace, f convertFlags, target artifact.Kind, inputs []string) ([]artifact.Artifact, error) {
	kinds := make([]artifact.Kind, len(inputs))
	for i, in := range inputs {
		k, err := sourceKind(f.from, in)
		if err != nil {
			return nil, err
		}
		kinds[i] = k
	}

	groups := make([][]int, len(inputs))
	for i := range inputs {
		groups[i] = []int{i}
	}
	if !f.isolate && f.output == "" {
		var err error
		if groups, err = batches(kinds, target, inputs); err != nil {
			return nil, err
		}
	}

	results := make([]artifact.Artifact, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.jobs)
	for _, group := range groups {
		g.Go(func() error {
			for _, i := range group {
				in := inputs[i]
				src := in
				if f.isolate {
					imported, err := ws.Import(in)
					if err != nil {
						return err
					}
					src = imported
				}
				res, err := orch.Convert(gctx, artifact.New(kinds[i], src), target, f.output)
				if err != nil {
					return fmt.Errorf("%s: %w", in, err)
				}
				results[i] = res
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// batches groups input indexes so that inputs reading or writing a common
// path share a batch. Batches run concurrently; each batch runs its inputs
// in command-line order.
func batches(kinds []artifact.Kind, target artifact.Kind, inputs []string) ([][]int, error) {
	parent := make([]int, len(inputs))
	for i := range parent {
		parent[i] = i
	}
	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	owner := map[string]int{}
	for i, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", in, err)
		}
		derived, err := convert.DerivedPaths(kinds[i], target, abs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", in, err)
		}
		for _, p := range append([]string{abs}, derived...) {
			j, ok := owner[p]
			if !ok {
				owner[p] = i
				continue
			}
			if ri, rj := find(i), find(j); ri != rj {
				parent[ri] = rj
			}
		}
	}

	var out [][]int
	index := map[int]int{}
	for i := range inputs {
		root := find(i)
		k, ok := index[root]
		if !ok {
			k = len(out)
			index[root] = k
			out = append(out, nil)
		}
		out[k] = append(out[k], i)
	}
	return out, nil
}

// sourceKind returns the -from kind, or infers it from the input's
// extension.
func sourceKind(from, input string) (artifact.Kind, error) {
	if strings.TrimSpace(from) != "" {
		k, err := artifact.ParseKind(from)
		if err != nil {
			return "", fmt.Errorf("%w: -from: %v", errUsage, err)
		}
		return k, nil
	}
	switch strings.ToLower(filepath.Ext(input)) {
	case ".java":
		return artifact.JavaSource, nil
	case ".class":
		return artifact.ClassFiles, nil
	case ".dex":
		return artifact.Dex, nil
	case ".jar":
		return artifact.ClassJar, nil
	case ".smali":
		return artifact.Smali, nil
	}
	return "", fmt.Errorf("%w: cannot infer the kind of %s, pass -from", errUsage, input)
}

func runRoutes(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("routes", flag.ContinueOnError)
	fs.SetOutput(stderr)
	from := fs.String("from", "", "only list routes from this kind")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	var only artifact.Kind
	if *from != "" {
		k, err := artifact.ParseKind(*from)
		if err != nil {
			return fmt.Errorf("%w: -from: %v", errUsage, err)
		}
		only = k
	}
	for _, r := range convert.Routes() {
		if only != "" && r.From != only {
			continue
		}
		fmt.Fprintln(stdout, r.String())
	}
	return nil
}

func runIsDex(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: isdex needs at least one file", errUsage)
	}
	invalid := 0
	for _, p := range args {
		ok := safeio.IsValidDex(p)
		if !ok {
			invalid++
		}
		fmt.Fprintf(stdout, "%s\t%t\n", p, ok)
	}
	if invalid > 0 {
		return fmt.Errorf("%d of %d files are not valid dex", invalid, len(args))
	}
	return nil
}
