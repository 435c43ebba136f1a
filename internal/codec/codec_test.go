package codec

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jdsx/internal/errs"
)

type call struct {
	name string
	args []string
}

// fakeTools returns a toolchain whose commands resolve to themselves and run
// fn instead of a subprocess.
func fakeTools(t *testing.T, fn func(name string, args []string) ([]byte, error)) (*Toolchain, *[]call) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []call
	)
	tc, err := NewToolchain(RunnerFunc(func(_ context.Context, _ string, name string, args ...string) ([]byte, error) {
		mu.Lock()
		calls = append(calls, call{name: name, args: append([]string(nil), args...)})
		mu.Unlock()
		return fn(name, args)
	}), 8)
	require.NoError(t, err)
	tc.LookPath = func(file string) (string, error) { return file, nil }
	return tc, &calls
}

func writeJar(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func argAfter(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func TestToolchainCachesResolution(t *testing.T) {
	tc, err := NewToolchain(RunnerFunc(func(context.Context, string, string, ...string) ([]byte, error) {
		return nil, nil
	}), 4)
	require.NoError(t, err)
	lookups := 0
	tc.LookPath = func(file string) (string, error) {
		lookups++
		return "/opt/bin/" + file, nil
	}
	for i := 0; i < 3; i++ {
		p, err := tc.Resolve([]string{"d8", "--release"})
		require.NoError(t, err)
		assert.Equal(t, "/opt/bin/d8", p)
	}
	assert.Equal(t, 1, lookups)
}

func TestToolchainMissingTool(t *testing.T) {
	tc, err := NewToolchain(nil, 0)
	require.NoError(t, err)
	tc.LookPath = func(file string) (string, error) { return "", errors.New("not on PATH") }

	_, err = tc.Exec(context.Background(), "", []string{"baksmali"}, "disassemble")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"baksmali" not found`)

	_, err = tc.Resolve(nil)
	assert.Error(t, err)
}

func TestToolchainPassesFixedArguments(t *testing.T) {
	tc, calls := fakeTools(t, func(string, []string) ([]byte, error) { return nil, nil })
	_, err := tc.Exec(context.Background(), "", []string{"java", "-jar", "/opt/fernflower.jar"}, "in.jar", "out")
	require.NoError(t, err)
	require.Len(t, *calls, 1)
	assert.Equal(t, "java", (*calls)[0].name)
	assert.Equal(t, []string{"-jar", "/opt/fernflower.jar", "in.jar", "out"}, (*calls)[0].args)
}

func TestSplitCommand(t *testing.T) {
	assert.Equal(t, []string{"java", "-jar", "/opt/ff.jar"}, SplitCommand("  java  -jar\t/opt/ff.jar "))
	assert.Empty(t, SplitCommand("   "))
}

func TestD8MovesProducedDex(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "Hello.dex")
	tc, calls := fakeTools(t, func(_ string, args []string) ([]byte, error) {
		staging := argAfter(args, "--output")
		require.NoError(t, os.WriteFile(filepath.Join(staging, "classes2.dex"), []byte("dex\n035\x00two"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(staging, "classes.dex"), []byte("dex\n035\x00one"), 0o644))
		return nil, nil
	})

	res, err := D8{Tools: tc, Command: []string{"d8"}, MinAPI: 21}.Run(context.Background(), []string{filepath.Join(dir, "Hello.class")}, output)
	require.NoError(t, err)
	assert.Equal(t, output, res.Path)

	got, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "dex\n035\x00one", string(got))
	require.Len(t, res.Aux, 1)
	assert.Equal(t, filepath.Join(dir, "Hello-classes2.dex"), res.Aux[0])
	assert.NoDirExists(t, output+".d8")

	require.Len(t, *calls, 1)
	assert.Equal(t, "21", argAfter((*calls)[0].args, "--min-api"))
}

func TestD8WithoutDexIsCodecFailure(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "Empty.dex")
	tc, _ := fakeTools(t, func(string, []string) ([]byte, error) { return nil, nil })

	_, err := D8{Tools: tc, Command: []string{"d8"}}.Run(context.Background(), []string{filepath.Join(dir, "Empty.class")}, output)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrCodecFailure))
	assert.Equal(t, "class->dex", errs.HopOf(err))
	assert.NoFileExists(t, output)
}

func TestD8ToolErrorCarriesDiagnostics(t *testing.T) {
	dir := t.TempDir()
	tc, _ := fakeTools(t, func(string, []string) ([]byte, error) {
		return []byte("Error: Invalid class file magic"), errors.New("exit status 1")
	})
	_, err := D8{Tools: tc, Command: []string{"d8"}}.Run(context.Background(), []string{filepath.Join(dir, "Bad.class")}, filepath.Join(dir, "Bad.dex"))
	require.Error(t, err)
	assert.Equal(t, errs.CodecFailure, errs.CodeOf(err))
	assert.Contains(t, err.Error(), "Invalid class file magic")
	assert.Contains(t, err.Error(), "exit status 1")
}

func TestDXWritesOutputDirectly(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "Hello.dex")
	tc, calls := fakeTools(t, func(_ string, args []string) ([]byte, error) {
		for _, a := range args {
			if strings.HasPrefix(a, "--output=") {
				return nil, os.WriteFile(strings.TrimPrefix(a, "--output="), []byte("dex\n035\x00"), 0o644)
			}
		}
		return nil, nil
	})
	res, err := DX{Tools: tc, Command: []string{"dx"}}.Run(context.Background(), []string{"A.class", "A$1.class"}, output)
	require.NoError(t, err)
	assert.Equal(t, output, res.Path)
	assert.Equal(t, []string{"--dex", "--no-strict", "--output=" + output, "A.class", "A$1.class"}, (*calls)[0].args)
}

func TestAdaptersRejectBadArguments(t *testing.T) {
	tc, calls := fakeTools(t, func(string, []string) ([]byte, error) { return nil, nil })
	ctx := context.Background()

	_, err := Dex2Jar{Tools: tc, Command: []string{"d2j-dex2jar"}}.Run(ctx, []string{"a.dex", "b.dex"}, "out.jar")
	assert.True(t, errors.Is(err, errs.ErrInvalidArgument))
	_, err = Smali{Tools: tc, Command: []string{"smali"}}.Run(ctx, nil, "out.dex")
	assert.True(t, errors.Is(err, errs.ErrInvalidArgument))
	_, err = Javac{Tools: tc, Command: []string{"javac"}}.Run(ctx, []string{"A.java"}, " ")
	assert.True(t, errors.Is(err, errs.ErrInvalidArgument))
	assert.Empty(t, *calls)
}

func TestDexToolsCallingConvention(t *testing.T) {
	dir := t.TempDir()
	tc, calls := fakeTools(t, func(_ string, args []string) ([]byte, error) {
		return nil, os.WriteFile(argAfter(args, "-o"), []byte("PK"), 0o644)
	})
	in := filepath.Join(dir, "test.dex")
	out := filepath.Join(dir, "test.jar")
	res, err := Dex2Jar{Tools: tc, Command: []string{"d2j-dex2jar"}}.Run(context.Background(), []string{in}, out)
	require.NoError(t, err)
	assert.Equal(t, out, res.Path)
	assert.Equal(t, []string{in, "-o", out, "--force"}, (*calls)[0].args)
}

func TestDexToolsEmptyOutputIsFailure(t *testing.T) {
	dir := t.TempDir()
	tc, _ := fakeTools(t, func(_ string, args []string) ([]byte, error) {
		return []byte("done"), os.WriteFile(argAfter(args, "-o"), nil, 0o644)
	})
	_, err := Jar2Dex{Tools: tc, Command: []string{"d2j-jar2dex"}}.Run(context.Background(), []string{filepath.Join(dir, "x.jar")}, filepath.Join(dir, "x.dex"))
	require.Error(t, err)
	assert.Equal(t, "jar->dex", errs.HopOf(err))
	assert.Contains(t, err.Error(), "empty output")
}

func TestBaksmaliRequiresSmaliFiles(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "Hello_smali")

	tc, _ := fakeTools(t, func(_ string, args []string) ([]byte, error) {
		return nil, os.MkdirAll(argAfter(args, "-o"), 0o755)
	})
	_, err := Baksmali{Tools: tc, Command: []string{"baksmali"}}.Run(context.Background(), []string{filepath.Join(dir, "Hello.dex")}, out)
	assert.True(t, errors.Is(err, errs.ErrCodecFailure))

	tc, calls := fakeTools(t, func(_ string, args []string) ([]byte, error) {
		o := argAfter(args, "-o")
		require.NoError(t, os.MkdirAll(o, 0o755))
		return nil, os.WriteFile(filepath.Join(o, "Hello.smali"), []byte(".class public LHello;"), 0o644)
	})
	res, err := Baksmali{Tools: tc, Command: []string{"baksmali"}}.Run(context.Background(), []string{filepath.Join(dir, "Hello.dex")}, out)
	require.NoError(t, err)
	assert.Equal(t, out, res.Path)
	assert.Equal(t, "disassemble", (*calls)[0].args[0])
}

func TestSmaliAssemblesAllInputs(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "Hello.dex")
	tc, calls := fakeTools(t, func(_ string, args []string) ([]byte, error) {
		return nil, os.WriteFile(argAfter(args, "-o"), []byte("dex\n035\x00"), 0o644)
	})
	_, err := Smali{Tools: tc, Command: []string{"smali"}}.Run(context.Background(), []string{"a.smali", "b.smali"}, out)
	require.NoError(t, err)
	assert.Equal(t, []string{"assemble", "a.smali", "b.smali", "-o", out}, (*calls)[0].args)
}

func TestJavacNeedsClassOutput(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "compiled_classes")
	tc, _ := fakeTools(t, func(string, []string) ([]byte, error) {
		return []byte("warning: nothing to do"), nil
	})
	_, err := Javac{Tools: tc, Command: []string{"javac"}}.Run(context.Background(), []string{"Hello.java"}, out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to do")

	tc, _ = fakeTools(t, func(_ string, args []string) ([]byte, error) {
		return nil, os.WriteFile(filepath.Join(argAfter(args, "-d"), "Hello.class"), []byte{0xCA, 0xFE}, 0o644)
	})
	res, err := Javac{Tools: tc, Command: []string{"javac"}}.Run(context.Background(), []string{"Hello.java"}, out)
	require.NoError(t, err)
	assert.Equal(t, out, res.Path)
}

func TestContainsClasses(t *testing.T) {
	dir := t.TempDir()
	with := filepath.Join(dir, "with.jar")
	writeJar(t, with, map[string]string{"META-INF/MANIFEST.MF": "Manifest-Version: 1.0\n", "com/x/A.class": "\xCA\xFE"})
	without := filepath.Join(dir, "without.jar")
	writeJar(t, without, map[string]string{"META-INF/MANIFEST.MF": "Manifest-Version: 1.0\n"})

	ok, err := ContainsClasses(with)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = ContainsClasses(without)
	require.NoError(t, err)
	assert.False(t, ok)

	notZip := filepath.Join(dir, "plain.jar")
	require.NoError(t, os.WriteFile(notZip, []byte("not a zip"), 0o644))
	_, err = ContainsClasses(notZip)
	assert.Error(t, err)
}

func TestExtractAdapter(t *testing.T) {
	dir := t.TempDir()
	jar := filepath.Join(dir, "test.jar")
	writeJar(t, jar, map[string]string{
		"com/x/A.class":        "\xCA\xFE",
		"com/x/A$Inner.class":  "\xCA\xFE",
		"META-INF/MANIFEST.MF": "Manifest-Version: 1.0\n",
	})
	out := filepath.Join(dir, "test_extract")
	res, err := Extract{}.Run(context.Background(), []string{jar}, out)
	require.NoError(t, err)
	assert.Equal(t, out, res.Path)
	assert.FileExists(t, filepath.Join(out, "com", "x", "A.class"))
	assert.FileExists(t, filepath.Join(out, "com", "x", "A$Inner.class"))
	assert.Equal(t, 2, countFiles(out, ".class"))
}

func TestExtractRejectsJarWithoutClasses(t *testing.T) {
	dir := t.TempDir()
	jar := filepath.Join(dir, "res.jar")
	writeJar(t, jar, map[string]string{"res/strings.xml": "<resources/>"})
	_, err := Extract{}.Run(context.Background(), []string{jar}, filepath.Join(dir, "res_extract"))
	assert.True(t, errors.Is(err, errs.ErrCodecFailure))
}

func TestExtractJarRejectsEscapingEntries(t *testing.T) {
	dir := t.TempDir()
	jar := filepath.Join(dir, "evil.jar")
	writeJar(t, jar, map[string]string{"../evil.class": "\xCA\xFE"})
	dest := filepath.Join(dir, "sub", "out")
	_, err := ExtractJar(jar, dest)
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "sub", "evil.class"))
}

func TestDecompilerUnpacksSourceJar(t *testing.T) {
	dir := t.TempDir()
	jar := filepath.Join(dir, "test.jar")
	writeJar(t, jar, map[string]string{"Hello.class": "\xCA\xFE"})
	out := filepath.Join(dir, "test_java")

	tc, calls := fakeTools(t, func(_ string, args []string) ([]byte, error) {
		staging := args[len(args)-1]
		writeJar(t, filepath.Join(staging, "test.jar"), map[string]string{"Hello.java": "public class Hello {}"})
		return nil, nil
	})
	res, err := Decompiler{Tools: tc, Command: []string{"fernflower"}}.Run(context.Background(), []string{jar}, out)
	require.NoError(t, err)
	assert.Equal(t, out, res.Path)
	assert.FileExists(t, filepath.Join(out, "Hello.java"))
	assert.NoDirExists(t, out+"_jar")
	assert.Equal(t, []string{jar, out + "_jar"}, (*calls)[0].args)
}

func TestDecompilerAcceptsLooseSources(t *testing.T) {
	dir := t.TempDir()
	jar := filepath.Join(dir, "test.jar")
	writeJar(t, jar, map[string]string{"Hello.class": "\xCA\xFE"})
	out := filepath.Join(dir, "test_java")

	tc, _ := fakeTools(t, func(_ string, args []string) ([]byte, error) {
		return nil, os.WriteFile(filepath.Join(args[len(args)-1], "Hello.java"), []byte("class Hello {}"), 0o644)
	})
	_, err := Decompiler{Tools: tc, Command: []string{"fernflower"}}.Run(context.Background(), []string{jar}, out)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(out, "Hello.java"))
}

func TestDecompilerRefusesJarWithoutClasses(t *testing.T) {
	dir := t.TempDir()
	jar := filepath.Join(dir, "empty.jar")
	writeJar(t, jar, map[string]string{"META-INF/MANIFEST.MF": "Manifest-Version: 1.0\n"})
	tc, calls := fakeTools(t, func(string, []string) ([]byte, error) { return nil, nil })

	_, err := Decompiler{Tools: tc, Command: []string{"fernflower"}}.Run(context.Background(), []string{jar}, filepath.Join(dir, "empty_java"))
	require.Error(t, err)
	assert.Equal(t, errs.CodecFailure, errs.CodeOf(err))
	assert.Equal(t, "jar->java", errs.HopOf(err))
	assert.Empty(t, *calls, "decompiler must not run on a jar without classes")
}

func TestNewDefaultRegistry(t *testing.T) {
	tc, _ := fakeTools(t, func(string, []string) ([]byte, error) { return nil, nil })

	reg, err := NewDefaultRegistry(tc, Options{})
	require.NoError(t, err)
	assert.ElementsMatch(t, DirectEdges, reg.Edges())
	a, ok := reg.Get(ClassToDex)
	require.True(t, ok)
	assert.Equal(t, BackendD8, a.Name())

	reg, err = NewDefaultRegistry(tc, Options{DexBackend: "DX", Tools: Tools{DX: []string{"/opt/dx"}}})
	require.NoError(t, err)
	a, _ = reg.Get(ClassToDex)
	assert.Equal(t, BackendDX, a.Name())
	assert.Equal(t, []string{"/opt/dx"}, a.(DX).Command)

	_, err = NewDefaultRegistry(tc, Options{DexBackend: "jack"})
	assert.Error(t, err)
	_, err = NewDefaultRegistry(nil, Options{})
	assert.Error(t, err)
}

func TestEdgeString(t *testing.T) {
	assert.Equal(t, "class->dex", ClassToDex.String())
	assert.Equal(t, "jar->java", JarToJava.String())
	assert.Equal(t, "java->class", JavaToClass.String())
}
