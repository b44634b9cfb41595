package host

import (
	"context"
	stdErrors "errors"
	"fmt"
	"slices"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// ErrInvalidGuest is returned for modules that do not implement the guest ABI.
var ErrInvalidGuest = stdErrors.New("invalid guest module")

type exportSignature struct {
	params  []api.ValueType
	results []api.ValueType
}

var (
	i32 = api.ValueTypeI32
	i64 = api.ValueTypeI64
)

// requiredExports lists the functions a guest must export.
var requiredExports = map[string]exportSignature{
	"allocate":       {params: []api.ValueType{i32}, results: []api.ValueType{i32}},
	"deallocate":     {params: []api.ValueType{i32, i32}},
	"invoke_command": {params: []api.ValueType{i32, i32}, results: []api.ValueType{i64}},
	"call":           {params: []api.ValueType{i32, i32, i32, i32}},
}

// Compile compiles wasmBytes and checks the guest exports against the ABI.
func Compile(ctx context.Context, rt wazero.Runtime, wasmBytes []byte) (wazero.CompiledModule, error) {
	compiled, err := rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to compile guest: %w", err)
	}
	if err := checkExports(compiled.ExportedFunctions()); err != nil {
		_ = compiled.Close(ctx)
		return nil, err
	}
	return compiled, nil
}

func checkExports(exports map[string]api.FunctionDefinition) error {
	names := make([]string, 0, len(requiredExports))
	for name := range requiredExports {
		names = append(names, name)
	}
	slices.Sort(names)

	var errs []error
	for _, name := range names {
		want := requiredExports[name]
		def, ok := exports[name]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: missing export %q", ErrInvalidGuest, name))
			continue
		}
		if !slices.Equal(def.ParamTypes(), want.params) || !slices.Equal(def.ResultTypes(), want.results) {
			errs = append(errs, fmt.Errorf("%w: export %q has signature %s -> %s, want %s -> %s",
				ErrInvalidGuest, name,
				typeNames(def.ParamTypes()), typeNames(def.ResultTypes()),
				typeNames(want.params), typeNames(want.results)))
		}
	}
	return stdErrors.Join(errs...)
}

func typeNames(types []api.ValueType) string {
	out := "("
	for i, t := range types {
		if i > 0 {
			out += ","
		}
		out += api.ValueTypeName(t)
	}
	return out + ")"
}
