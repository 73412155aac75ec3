//go:build !cgo

package cdmloader

import (
	"fmt"

	"github.com/SariskaIO/sparkle-cdm-widevine/cdm"
)

// handle is the non-cgo stand-in: every operation that would touch the
// native library fails. Mirrors the teacher's
// ws_key_custody_core_stub.go fallback for builds without a working C
// toolchain.
type handle interface {
	initializeCdmModule() error
	createCdmInstance(keySystem string, hostGetter HostGetter, userData interface{}) (cdm.ContentDecryptionModule, error)
	close() error
}

type stubHandle struct{}

var errCgoDisabled = fmt.Errorf("cdmloader: built without cgo, cannot load native CDM libraries")

func openHandle(path string) (handle, error) {
	return nil, errCgoDisabled
}

func (stubHandle) initializeCdmModule() error {
	return errCgoDisabled
}

func (stubHandle) createCdmInstance(keySystem string, hostGetter HostGetter, userData interface{}) (cdm.ContentDecryptionModule, error) {
	return nil, errCgoDisabled
}

func (stubHandle) close() error {
	return errCgoDisabled
}
