package codec

import "context"

// Dex2Jar converts a DEX file to a class JAR with d2j-dex2jar.
type Dex2Jar struct {
	Tools   *Toolchain
	Command []string
}

func (Dex2Jar) Edge() Edge   { return DexToJar }
func (Dex2Jar) Name() string { return "dex2jar" }

func (a Dex2Jar) Run(ctx context.Context, inputs []string, output string) (Result, error) {
	return runSingle(ctx, a.Tools, a.Command, a.Edge(), a.Name(), inputs, output)
}

// Jar2Dex converts a class JAR to DEX with d2j-jar2dex.
type Jar2Dex struct {
	Tools   *Toolchain
	Command []string
}

func (Jar2Dex) Edge() Edge   { return JarToDex }
func (Jar2Dex) Name() string { return "jar2dex" }

func (a Jar2Dex) Run(ctx context.Context, inputs []string, output string) (Result, error) {
	return runSingle(ctx, a.Tools, a.Command, a.Edge(), a.Name(), inputs, output)
}

// runSingle drives the dex-tools calling convention: "<in> -o <out> --force".
func runSingle(ctx context.Context, tc *Toolchain, command []string, e Edge, name string, inputs []string, output string) (Result, error) {
	if err := checkArgs(e, name, inputs, output, true); err != nil {
		return Result{}, err
	}
	out, err := tc.Exec(ctx, "", command, inputs[0], "-o", output, "--force")
	if err != nil {
		return Result{}, failure(e, name, "conversion failed", err, out)
	}
	if err := expectOutput(e, name, output, out); err != nil {
		return Result{}, err
	}
	return Result{Path: output}, nil
}
