// Package cdmloader implements the CDMLoader (spec.md §4.2): dynamic
// loading of the vendor Widevine CDM shared library, resolution of its
// two required exports, and the one-shot process-wide
// InitializeCdmModule call.
//
// The library's path is only known at runtime (it comes from the
// Locator or the WIDEVINE_CDM_BLOB override), so this cannot be a
// static cgo `#cgo LDFLAGS: -lwidevinecdm` link like the teacher's Rust
// FFI bridges in keymanager/*/key_custody_core use — it has to dlopen.
// The real bridge lives in loader_cgo.go, gated the same way the
// teacher's key_custody_core package gates its Rust FFI
// (ws_key_custody_core_cgo.go / ws_key_custody_core_stub.go): a
// //go:build cgo file with the real implementation and a //go:build
// !cgo stub that reports "not supported" on platforms without cgo.
package cdmloader

import (
	"fmt"
	"sync"

	"github.com/SariskaIO/sparkle-cdm-widevine/cdm"
)

// HostGetter is the function signature the CDM invokes, potentially
// many times, to obtain the Host_10 object associated with
// user_data and a requested interface version. A Module's HostGetter
// must return nil for any version other than cdm.InterfaceVersion.
type HostGetter func(interfaceVersion int, userData interface{}) cdm.HostCallbacks

// Module is a loaded vendor CDM shared library. A Module is created once
// per process (spec.md invariant 4 operates at the System/CDM-instance
// level, but the underlying shared library and its
// InitializeCdmModule barrier are process-global per spec.md §5).
type Module struct {
	path string

	once    sync.Once
	initErr error

	handle handle
}

// Open dlopens the shared library at path with lazy symbol binding and
// resolves its two required exports, failing if either is missing. It
// does not yet call InitializeCdmModule; that happens lazily on the
// first CreateInstance call, matching the reference adapter's
// do_init_once one-shot barrier.
func Open(path string) (*Module, error) {
	h, err := openHandle(path)
	if err != nil {
		return nil, fmt.Errorf("cdmloader: open %s: %w", path, err)
	}
	return &Module{path: path, handle: h}, nil
}

// ensureInitialized calls the InitializeCdmModule_10 export resolved by
// Open, exactly once for this Module's lifetime.
func (m *Module) ensureInitialized() error {
	m.once.Do(func() {
		m.initErr = m.handle.initializeCdmModule()
	})
	return m.initErr
}

// CreateInstance invokes the CreateCdmInstance export once for
// keySystem, returning a cdm.ContentDecryptionModule bound to hostGetter
// and userData. It calls InitializeCdmModule first if this is the first
// instance created from this Module.
func (m *Module) CreateInstance(keySystem string, hostGetter HostGetter, userData interface{}) (cdm.ContentDecryptionModule, error) {
	if err := m.ensureInitialized(); err != nil {
		return nil, fmt.Errorf("cdmloader: InitializeCdmModule: %w", err)
	}
	instance, err := m.handle.createCdmInstance(keySystem, hostGetter, userData)
	if err != nil {
		return nil, fmt.Errorf("cdmloader: CreateCdmInstance: %w", err)
	}
	return instance, nil
}

// Close unloads the shared library. It must only be called after every
// instance created from this Module has been destroyed.
func (m *Module) Close() error {
	return m.handle.close()
}

// Path returns the filesystem path the Module was opened from.
func (m *Module) Path() string { return m.path }
