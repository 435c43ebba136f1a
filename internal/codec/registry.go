package codec

import (
	"fmt"
	"strings"
)

// Backend names for the ClassFiles -> Dex edge.
const (
	BackendD8 = "d8"
	BackendDX = "dx"
)

// Tools holds the command line for each external tool. Each entry is the
// executable followed by any fixed leading arguments.
type Tools struct {
	D8         []string
	DX         []string
	Dex2Jar    []string
	Jar2Dex    []string
	Baksmali   []string
	Smali      []string
	Javac      []string
	Decompiler []string
}

// DefaultTools returns the tool names as installed by the Android SDK
// build-tools, dex-tools, smali and a JDK.
func DefaultTools() Tools {
	return Tools{
		D8:         []string{"d8"},
		DX:         []string{"dx"},
		Dex2Jar:    []string{"d2j-dex2jar"},
		Jar2Dex:    []string{"d2j-jar2dex"},
		Baksmali:   []string{"baksmali"},
		Smali:      []string{"smali"},
		Javac:      []string{"javac"},
		Decompiler: []string{"fernflower"},
	}
}

// Options selects adapters for NewDefaultRegistry.
type Options struct {
	DexBackend string
	MinAPI     int
	Tools      Tools
}

// NewDefaultRegistry wires one adapter per direct edge.
func NewDefaultRegistry(tc *Toolchain, opts Options) (*Registry, error) {
	if tc == nil {
		return nil, fmt.Errorf("toolchain is required")
	}
	t := withDefaults(opts.Tools)

	var dexer Adapter
	switch strings.ToLower(strings.TrimSpace(opts.DexBackend)) {
	case "", BackendD8:
		dexer = D8{Tools: tc, Command: t.D8, MinAPI: opts.MinAPI}
	case BackendDX:
		dexer = DX{Tools: tc, Command: t.DX}
	default:
		return nil, fmt.Errorf("unknown dex backend %q (want %s or %s)", opts.DexBackend, BackendD8, BackendDX)
	}

	return NewRegistry(
		dexer,
		Dex2Jar{Tools: tc, Command: t.Dex2Jar},
		Jar2Dex{Tools: tc, Command: t.Jar2Dex},
		Baksmali{Tools: tc, Command: t.Baksmali},
		Smali{Tools: tc, Command: t.Smali},
		Decompiler{Tools: tc, Command: t.Decompiler},
		Javac{Tools: tc, Command: t.Javac},
		Extract{},
	), nil
}

func withDefaults(t Tools) Tools {
	d := DefaultTools()
	pick := func(v, def []string) []string {
		if len(v) == 0 {
			return def
		}
		return v
	}
	return Tools{
		D8:         pick(t.D8, d.D8),
		DX:         pick(t.DX, d.DX),
		Dex2Jar:    pick(t.Dex2Jar, d.Dex2Jar),
		Jar2Dex:    pick(t.Jar2Dex, d.Jar2Dex),
		Baksmali:   pick(t.Baksmali, d.Baksmali),
		Smali:      pick(t.Smali, d.Smali),
		Javac:      pick(t.Javac, d.Javac),
		Decompiler: pick(t.Decompiler, d.Decompiler),
	}
}
