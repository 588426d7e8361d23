package identity

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// Exports a WebAssembly resolver must provide.
const (
	wasmExportAllocate    = "allocate"
	wasmExportGetIdentity = "get_identity"
)

// WasmResolver runs a WebAssembly module's get_identity export.
//
// The guest receives the file path as UTF-8 bytes written into memory it
// allocated, and returns the identity packed as ptr<<32 | len. A packed value
// of 0 means the file has no identity.
type WasmResolver struct {
	mu          sync.Mutex
	runtime     wazero.Runtime
	module      api.Module
	allocate    api.Function
	getIdentity api.Function
}

// LoadWasm compiles and instantiates the module at path.
func LoadWasm(ctx context.Context, path string) (Resolver, error) {
	wasmBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read wasm module: %w", err)
	}

	resolver, err := NewWasmResolver(ctx, filepath.Base(path), wasmBytes)
	if err != nil {
		return nil, err
	}
	return resolver, nil
}

// NewWasmResolver instantiates wasmBytes in a fresh runtime with WASI preview1 available.
func NewWasmResolver(ctx context.Context, name string, wasmBytes []byte) (*WasmResolver, error) {
	rt := wazero.NewRuntime(ctx)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate WASI: %w", err)
	}

	mod, err := rt.InstantiateWithConfig(ctx, wasmBytes, wazero.NewModuleConfig().WithName(name))
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate module: %w", err)
	}

	// Reactor-style modules need their initializer run before any export is called
	if init := mod.ExportedFunction("_initialize"); init != nil {
		if _, err := init.Call(ctx); err != nil {
			rt.Close(ctx)
			return nil, fmt.Errorf("failed to call _initialize: %w", err)
		}
	}

	r := &WasmResolver{
		runtime:     rt,
		module:      mod,
		allocate:    mod.ExportedFunction(wasmExportAllocate),
		getIdentity: mod.ExportedFunction(wasmExportGetIdentity),
	}

	switch {
	case r.allocate == nil:
		err = fmt.Errorf("%w: module %s does not export %q", ErrInvalidResolver, name, wasmExportAllocate)
	case r.getIdentity == nil:
		err = fmt.Errorf("%w: module %s does not export %q", ErrInvalidResolver, name, wasmExportGetIdentity)
	case mod.Memory() == nil:
		err = fmt.Errorf("%w: module %s does not export memory", ErrInvalidResolver, name)
	}
	if err != nil {
		rt.Close(ctx)
		return nil, err
	}

	return r, nil
}

// Identity passes filePath to the guest and reads back its answer.
func (r *WasmResolver) Identity(ctx context.Context, filePath string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	input := []byte(filePath)
	allocated, err := r.allocate.Call(ctx, uint64(len(input)))
	if err != nil {
		return "", fmt.Errorf("failed to allocate in guest: %w", err)
	}
	if len(allocated) == 0 {
		return "", fmt.Errorf("allocate returned no results")
	}

	ptr := uint32(allocated[0])
	if !r.module.Memory().Write(ptr, input) {
		return "", fmt.Errorf("failed to write path to guest memory")
	}

	results, err := r.getIdentity.Call(ctx, uint64(ptr), uint64(len(input)))
	if err != nil {
		return "", fmt.Errorf("get_identity failed for %s: %w", filePath, err)
	}
	if len(results) == 0 || results[0] == 0 {
		return "", nil
	}

	outPtr := uint32(results[0] >> 32)
	outLen := uint32(results[0])
	data, ok := r.module.Memory().Read(outPtr, outLen)
	if !ok {
		return "", fmt.Errorf("failed to read identity from guest memory")
	}
	// string() copies, so later guest writes cannot change the result
	return string(data), nil
}

// Close releases the runtime and every module instantiated in it.
func (r *WasmResolver) Close(ctx context.Context) error {
	return r.runtime.Close(ctx)
}
