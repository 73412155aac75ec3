//go:build cgo

package cdmloader

/*
#cgo LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdlib.h>
#include <string.h>
#include "shim.h"
*/
import "C"

import (
	"fmt"
	"runtime/cgo"
	"unsafe"

	"github.com/SariskaIO/sparkle-cdm-widevine/cdm"
)

// handle is the per-platform dynamic-loading backend Module drives.
type handle interface {
	initializeCdmModule() error
	createCdmInstance(keySystem string, hostGetter HostGetter, userData interface{}) (cdm.ContentDecryptionModule, error)
	close() error
}

// hostContext is what gets handed to the CDM as CreateCdmInstance's
// user_data, behind a cgo.Handle: enough to answer GetCdmHostFunc calls
// without leaking a raw Go closure across the cgo boundary.
type hostContext struct {
	hostGetter HostGetter
	userData   interface{}
}

type cgoHandle struct {
	lib      unsafe.Pointer
	initFn   C.wvadapter_init_cdm_module_fn
	createFn C.wvadapter_create_cdm_instance_fn
}

func openHandle(path string) (handle, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	lib := C.dlopen(cpath, C.RTLD_LAZY)
	if lib == nil {
		return nil, fmt.Errorf("dlopen: %s", C.GoString(C.dlerror()))
	}

	initName := C.CString("InitializeCdmModule_10")
	defer C.free(unsafe.Pointer(initName))
	createName := C.CString("CreateCdmInstance")
	defer C.free(unsafe.Pointer(createName))

	initSym := C.dlsym(lib, initName)
	createSym := C.dlsym(lib, createName)
	if initSym == nil || createSym == nil {
		C.dlclose(lib)
		return nil, fmt.Errorf("missing required export (InitializeCdmModule_10 or CreateCdmInstance)")
	}

	return &cgoHandle{
		lib:      lib,
		initFn:   C.wvadapter_init_cdm_module_fn(initSym),
		createFn: C.wvadapter_create_cdm_instance_fn(createSym),
	}, nil
}

func (h *cgoHandle) initializeCdmModule() error {
	C.wvadapter_invoke_init(h.initFn)
	return nil
}

func (h *cgoHandle) createCdmInstance(keySystem string, hostGetter HostGetter, userData interface{}) (cdm.ContentDecryptionModule, error) {
	ctxHandle := cgo.NewHandle(&hostContext{hostGetter: hostGetter, userData: userData})

	ckeySystem := C.CString(keySystem)
	defer C.free(unsafe.Pointer(ckeySystem))

	ptr := C.wvadapter_invoke_create(
		h.createFn,
		C.int(cdm.InterfaceVersion),
		ckeySystem,
		C.uint32_t(len(keySystem)),
		C.wvadapter_get_cdm_host_trampoline(),
		unsafe.Pointer(uintptr(ctxHandle)),
	)
	if ptr == nil {
		ctxHandle.Delete()
		return nil, fmt.Errorf("CreateCdmInstance returned null for %s", keySystem)
	}

	return &cdmInstance{ptr: ptr, ctxHandle: ctxHandle}, nil
}

func (h *cgoHandle) close() error {
	if C.dlclose(h.lib) != 0 {
		return fmt.Errorf("dlclose: %s", C.GoString(C.dlerror()))
	}
	return nil
}

// cdmInstance adapts a raw ContentDecryptionModule_10* to
// cdm.ContentDecryptionModule by indexing into its vtable through the
// wvadapter_call_* shims.
type cdmInstance struct {
	ptr       unsafe.Pointer
	ctxHandle cgo.Handle
}

func boolToC(b bool) C.int {
	if b {
		return 1
	}
	return 0
}

func (c *cdmInstance) Initialize(allowDistinctiveIdentifier, allowPersistentState, useHwSecureCodecs bool) {
	C.wvadapter_call_initialize(c.ptr, boolToC(allowDistinctiveIdentifier), boolToC(allowPersistentState), boolToC(useHwSecureCodecs))
}

func (c *cdmInstance) CreateSessionAndGenerateRequest(promiseID uint32, sessionType cdm.SessionType, initDataType cdm.InitDataType, initData []byte) {
	var dataPtr *C.uint8_t
	if len(initData) > 0 {
		dataPtr = (*C.uint8_t)(unsafe.Pointer(&initData[0]))
	}
	C.wvadapter_call_create_session_and_generate_request(c.ptr, C.uint32_t(promiseID), C.int(sessionType), C.int(initDataType), dataPtr, C.uint32_t(len(initData)))
}

func (c *cdmInstance) LoadSession(promiseID uint32, sessionType cdm.SessionType, sessionID string) {
	cid := C.CString(sessionID)
	defer C.free(unsafe.Pointer(cid))
	C.wvadapter_call_load_session(c.ptr, C.uint32_t(promiseID), C.int(sessionType), cid, C.uint32_t(len(sessionID)))
}

func (c *cdmInstance) UpdateSession(promiseID uint32, sessionID string, response []byte) {
	cid := C.CString(sessionID)
	defer C.free(unsafe.Pointer(cid))
	var respPtr *C.uint8_t
	if len(response) > 0 {
		respPtr = (*C.uint8_t)(unsafe.Pointer(&response[0]))
	}
	C.wvadapter_call_update_session(c.ptr, C.uint32_t(promiseID), cid, C.uint32_t(len(sessionID)), respPtr, C.uint32_t(len(response)))
}

func (c *cdmInstance) RemoveSession(promiseID uint32, sessionID string) {
	cid := C.CString(sessionID)
	defer C.free(unsafe.Pointer(cid))
	C.wvadapter_call_remove_session(c.ptr, C.uint32_t(promiseID), cid, C.uint32_t(len(sessionID)))
}

func (c *cdmInstance) CloseSession(promiseID uint32, sessionID string) {
	cid := C.CString(sessionID)
	defer C.free(unsafe.Pointer(cid))
	C.wvadapter_call_close_session(c.ptr, C.uint32_t(promiseID), cid, C.uint32_t(len(sessionID)))
}

func (c *cdmInstance) SetServerCertificate(promiseID uint32, certificate []byte) {
	var certPtr *C.uint8_t
	if len(certificate) > 0 {
		certPtr = (*C.uint8_t)(unsafe.Pointer(&certificate[0]))
	}
	C.wvadapter_call_set_server_certificate(c.ptr, C.uint32_t(promiseID), certPtr, C.uint32_t(len(certificate)))
}

func (c *cdmInstance) TimerExpired(context interface{}) {
	h, ok := context.(cgo.Handle)
	var cp unsafe.Pointer
	if ok {
		cp = unsafe.Pointer(uintptr(h))
	}
	C.wvadapter_call_timer_expired(c.ptr, cp)
}

func (c *cdmInstance) Decrypt(input cdm.InputBuffer) (cdm.DecryptStatus, []byte) {
	var dataPtr, keyPtr, ivPtr *C.uint8_t
	if len(input.Data) > 0 {
		dataPtr = (*C.uint8_t)(unsafe.Pointer(&input.Data[0]))
	}
	if len(input.KeyID) > 0 {
		keyPtr = (*C.uint8_t)(unsafe.Pointer(&input.KeyID[0]))
	}
	if len(input.IV) > 0 {
		ivPtr = (*C.uint8_t)(unsafe.Pointer(&input.IV[0]))
	}

	var outData *C.uint8_t
	var outSize C.uint32_t
	status := C.wvadapter_call_decrypt(
		c.ptr,
		dataPtr, C.uint32_t(len(input.Data)),
		C.int(input.EncryptionScheme),
		keyPtr, C.uint32_t(len(input.KeyID)),
		ivPtr, C.uint32_t(len(input.IV)),
		&outData, &outSize,
	)

	if outData == nil || outSize == 0 {
		return cdm.DecryptStatus(status), nil
	}
	out := C.GoBytes(unsafe.Pointer(outData), C.int(outSize))
	C.free(unsafe.Pointer(outData))
	return cdm.DecryptStatus(status), out
}

func (c *cdmInstance) Destroy() {
	C.wvadapter_call_destroy(c.ptr)
	c.ctxHandle.Delete()
}

// -----------------------------------------------------------------------
// Exported trampolines invoked from shim.c. Each resolves a cgo.Handle
// back to the Go object it was minted for.
// -----------------------------------------------------------------------

//export goGetCdmHost
func goGetCdmHost(interfaceVersion C.int, userData unsafe.Pointer) unsafe.Pointer {
	ctxHandle := cgo.Handle(uintptr(userData))
	ctx, ok := ctxHandle.Value().(*hostContext)
	if !ok || int(interfaceVersion) != cdm.InterfaceVersion {
		return nil
	}
	hostCB := ctx.hostGetter(int(interfaceVersion), ctx.userData)
	if hostCB == nil {
		return nil
	}
	hostHandle := cgo.NewHandle(hostCB)
	return C.wvadapter_new_host_shim(C.uintptr_t(uintptr(hostHandle)))
}

//export goHostAllocate
func goHostAllocate(goHandle C.uintptr_t, capacity C.uint32_t) C.uintptr_t {
	host := cgo.Handle(uintptr(goHandle)).Value().(cdm.HostCallbacks)
	_ = capacity
	// The malloc'd backing store lives in C, managed by buffer_shim; what
	// we keep alive here is a handle to release when the CDM calls
	// Buffer::Destroy, mirroring how the host's own allocator bookkeeping
	// would track an outstanding decrypt buffer.
	return C.uintptr_t(uintptr(cgo.NewHandle(host)))
}

//export goBufferDestroy
func goBufferDestroy(goHandle C.uintptr_t) {
	cgo.Handle(uintptr(goHandle)).Delete()
}

//export goHostSetTimer
func goHostSetTimer(goHandle C.uintptr_t, delayMs C.longlong, context unsafe.Pointer) {
	host := cgo.Handle(uintptr(goHandle)).Value().(cdm.HostCallbacks)
	host.SetTimer(int64(delayMs), cgo.Handle(uintptr(context)))
}

//export goHostGetCurrentWallTime
func goHostGetCurrentWallTime(goHandle C.uintptr_t) C.double {
	host := cgo.Handle(uintptr(goHandle)).Value().(cdm.HostCallbacks)
	return C.double(host.GetCurrentWallTime())
}

//export goHostOnResolveNewSessionPromise
func goHostOnResolveNewSessionPromise(goHandle C.uintptr_t, promiseID C.uint32_t, sessionID *C.char, sessionIDSize C.uint32_t) {
	host := cgo.Handle(uintptr(goHandle)).Value().(cdm.HostCallbacks)
	host.OnResolveNewSessionPromise(uint32(promiseID), C.GoStringN(sessionID, C.int(sessionIDSize)))
}

//export goHostOnResolvePromise
func goHostOnResolvePromise(goHandle C.uintptr_t, promiseID C.uint32_t) {
	host := cgo.Handle(uintptr(goHandle)).Value().(cdm.HostCallbacks)
	host.OnResolvePromise(uint32(promiseID))
}

//export goHostOnRejectPromise
func goHostOnRejectPromise(goHandle C.uintptr_t, promiseID C.uint32_t, exception C.int, systemCode C.uint32_t, message *C.char, messageSize C.uint32_t) {
	host := cgo.Handle(uintptr(goHandle)).Value().(cdm.HostCallbacks)
	host.OnRejectPromise(uint32(promiseID), cdm.Exception(exception), uint32(systemCode), C.GoStringN(message, C.int(messageSize)))
}

//export goHostOnSessionMessage
func goHostOnSessionMessage(goHandle C.uintptr_t, sessionID *C.char, sessionIDSize C.uint32_t, messageType C.int, message *C.char, messageSize C.uint32_t) {
	host := cgo.Handle(uintptr(goHandle)).Value().(cdm.HostCallbacks)
	id := C.GoStringN(sessionID, C.int(sessionIDSize))
	body := C.GoBytes(unsafe.Pointer(message), C.int(messageSize))
	host.OnSessionMessage(id, cdm.MessageType(messageType), body)
}

//export goHostOnSessionKeysChange
func goHostOnSessionKeysChange(goHandle C.uintptr_t, sessionID *C.char, sessionIDSize C.uint32_t, keysBlob unsafe.Pointer, keysCount C.uint32_t) {
	host := cgo.Handle(uintptr(goHandle)).Value().(cdm.HostCallbacks)
	id := C.GoStringN(sessionID, C.int(sessionIDSize))
	// Per-key status decoding needs cdm::KeyInformation's exact field
	// layout from the vendor header, which this adapter does not have;
	// callers relying on a populated key list must go through the
	// non-cgo session bookkeeping path instead.
	_ = keysBlob
	_ = keysCount
	host.OnSessionKeysChange(id, true, nil)
}

//export goHostOnExpirationChange
func goHostOnExpirationChange(goHandle C.uintptr_t, sessionID *C.char, sessionIDSize C.uint32_t, newExpiryTime C.double) {
	host := cgo.Handle(uintptr(goHandle)).Value().(cdm.HostCallbacks)
	host.OnExpirationChange(C.GoStringN(sessionID, C.int(sessionIDSize)), float64(newExpiryTime))
}

//export goHostOnSessionClosed
func goHostOnSessionClosed(goHandle C.uintptr_t, sessionID *C.char, sessionIDSize C.uint32_t) {
	host := cgo.Handle(uintptr(goHandle)).Value().(cdm.HostCallbacks)
	host.OnSessionClosed(C.GoStringN(sessionID, C.int(sessionIDSize)))
}

//export goHostQueryOutputProtectionStatus
func goHostQueryOutputProtectionStatus(goHandle C.uintptr_t) {
	host := cgo.Handle(uintptr(goHandle)).Value().(cdm.HostCallbacks)
	host.QueryOutputProtectionStatus()
}

//export goHostRequestStorageId
func goHostRequestStorageId(goHandle C.uintptr_t, version C.uint32_t) {
	host := cgo.Handle(uintptr(goHandle)).Value().(cdm.HostCallbacks)
	host.RequestStorageId(uint32(version))
}
