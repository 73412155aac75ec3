// Package system implements System (spec.md §4.7): the top-level object
// owning one Host, one CDM instance, and the set of session ids this
// particular key-system binding is responsible for, plus the adapter's
// public, synchronous operation surface.
package system

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/SariskaIO/sparkle-cdm-widevine/cdm"
	"github.com/SariskaIO/sparkle-cdm-widevine/cdmloader"
	"github.com/SariskaIO/sparkle-cdm-widevine/decrypt"
	"github.com/SariskaIO/sparkle-cdm-widevine/host"
	"github.com/SariskaIO/sparkle-cdm-widevine/internal/wvlog"
	"github.com/SariskaIO/sparkle-cdm-widevine/locator"
	"github.com/SariskaIO/sparkle-cdm-widevine/promise"
	"github.com/SariskaIO/sparkle-cdm-widevine/session"
)

// GroupedError aggregates multiple sub-errors encountered in the course
// of a single operation into one, so a caller gets the whole picture
// instead of only the first failure.
type GroupedError struct {
	Op     string
	Errors []error
}

func (g *GroupedError) Error() string {
	if len(g.Errors) == 0 {
		return g.Op
	}
	msgs := make([]string, len(g.Errors))
	for i, e := range g.Errors {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%s: %s", g.Op, strings.Join(msgs, "; "))
}

func (g *GroupedError) Unwrap() []error { return g.Errors }

var (
	initOnce sync.Once
	initErr  error
	module   *cdmloader.Module
)

// IsTypeSupported implements the is_type_supported adapter entry point.
// mimeType is accepted but not inspected; every MIME type this adapter
// is asked about is treated as supported once the key system matches.
func IsTypeSupported(keySystem, mimeType string) cdm.AdapterError {
	_ = mimeType
	if !cdm.IsWidevine(keySystem) {
		return cdm.ErrorKeySystemNotSupported
	}
	return cdm.ErrorNone
}

// Init locates and loads the vendor CDM library exactly once per
// process. Later calls are idempotent and return the result of the
// first attempt.
func Init(ctx context.Context, loc locator.Locator) cdm.AdapterError {
	initOnce.Do(func() {
		path, ok, locErr := loc.Locate(ctx)
		if !ok {
			errs := []error{fmt.Errorf("no widevine cdm library found")}
			if locErr != nil {
				errs = append(errs, locErr)
			}
			initErr = &GroupedError{Op: "system: init", Errors: errs}
			return
		}
		if locErr != nil {
			wvlog.Warningf("system: init: locator reported non-fatal errors alongside a hit: %v", locErr)
		}

		m, openErr := cdmloader.Open(path)
		if openErr != nil {
			initErr = &GroupedError{Op: "system: init", Errors: []error{openErr}}
			return
		}
		module = m
		wvlog.Infof("system: loaded cdm module from %s", path)
	})
	if initErr != nil {
		wvlog.Errorf("system: init failed: %v", initErr)
		return cdm.ErrorFail
	}
	return cdm.ErrorNone
}

// System is one binding of a key-system identifier to a freshly created
// CDM instance, its Host, and the ids of the sessions it created or
// loaded.
type System struct {
	keySystem string
	promises  *promise.Registry
	host      *host.Host
	cdm       cdm.ContentDecryptionModule

	mu         sync.Mutex
	sessionIDs map[string]struct{}

	cdmInitOnce sync.Once
	cdmInitErr  error
}

// CreateSystem implements create_system. Init must have already
// succeeded process-wide.
func CreateSystem(keySystem string) (*System, error) {
	if !cdm.IsWidevine(keySystem) {
		return nil, cdm.ErrorKeySystemNotSupported
	}
	if module == nil {
		return nil, fmt.Errorf("system: create_system called before a successful init")
	}

	promises := promise.New()
	h := host.New(promises)

	instance, err := module.CreateInstance(keySystem, func(interfaceVersion int, userData interface{}) cdm.HostCallbacks {
		if interfaceVersion != cdm.InterfaceVersion {
			return nil
		}
		return h
	}, nil)
	if err != nil {
		h.Stop()
		return nil, err
	}
	h.Bind(instance)

	return newSystem(keySystem, promises, h, instance), nil
}

// newSystem assembles a System from already-constructed parts. Split out
// of CreateSystem so tests can drive a System against a fake
// cdm.ContentDecryptionModule without a loaded vendor library.
func newSystem(keySystem string, promises *promise.Registry, h *host.Host, instance cdm.ContentDecryptionModule) *System {
	return &System{
		keySystem:  keySystem,
		promises:   promises,
		host:       h,
		cdm:        instance,
		sessionIDs: make(map[string]struct{}),
	}
}

// DestructSystem implements destruct_system: the Host's outstanding
// timers are cancelled first, then the CDM's Destroy() runs.
func (s *System) DestructSystem() {
	s.host.Stop()
	s.cdm.Destroy()
}

// SupportsServerCertificate reports this adapter's fixed answer to
// system_supports_server_certificate (spec.md §4.10 domain-stack
// wiring): true, since SetServerCertificate is always wired through to
// the CDM.
func (s *System) SupportsServerCertificate() bool { return true }

func waitResult(ctx context.Context, ch <-chan promise.Result) (promise.Result, error) {
	select {
	case r := <-ch:
		return r, nil
	case <-ctx.Done():
		return promise.Result{}, ctx.Err()
	}
}

// ensureCdmInitialized calls cdm.Initialize and waits on the Host's
// initialized future exactly once for this System's lifetime, per
// spec.md §4.7 step 2 of construct_session.
func (s *System) ensureCdmInitialized(ctx context.Context) cdm.AdapterError {
	s.cdmInitOnce.Do(func() {
		s.cdm.Initialize(false, false, false)
		ok, err := s.host.WaitInitialized(ctx)
		if err != nil {
			s.cdmInitErr = err
			return
		}
		if !ok {
			s.cdmInitErr = fmt.Errorf("cdm reported initialization failure")
		}
	})
	if s.cdmInitErr != nil {
		return cdm.ErrorFail
	}
	return cdm.ErrorNone
}

// SetServerCertificate implements set_server_certificate.
func (s *System) SetServerCertificate(ctx context.Context, certificate []byte) cdm.AdapterError {
	id := s.promises.Allocate()
	ch := s.promises.Park(id, promise.KindSetServerCertificate)
	s.cdm.SetServerCertificate(id, certificate)

	result, err := waitResult(ctx, ch)
	if err != nil {
		return cdm.ErrorFail
	}
	if !result.Ok() {
		return result.Rejected.AdapterError()
	}
	return cdm.ErrorNone
}

// ConstructSession implements construct_session.
func (s *System) ConstructSession(ctx context.Context, licenseType cdm.LicenseType, initDataTypeName string, initData []byte, callbacks session.Callbacks, user interface{}) (*session.Session, cdm.AdapterError) {
	initDataType, ok := cdm.InitDataTypeFromString(initDataTypeName)
	if !ok {
		return nil, cdm.ErrorInvalidArg
	}
	if errCode := s.ensureCdmInitialized(ctx); errCode != cdm.ErrorNone {
		return nil, errCode
	}

	sessionType := cdm.SessionTypeFromLicenseType(licenseType)
	id := s.promises.Allocate()
	ch := s.promises.Park(id, promise.KindCreateSession)
	s.host.ParkCreateSession(id, sessionType, callbacks, user)
	s.cdm.CreateSessionAndGenerateRequest(id, sessionType, initDataType, initData)

	result, err := waitResult(ctx, ch)
	if err != nil {
		return nil, cdm.ErrorFail
	}
	if !result.Ok() {
		return nil, result.Rejected.AdapterError()
	}

	sess, ok := s.host.Session(result.SessionID)
	if !ok {
		return nil, cdm.ErrorFail
	}
	s.mu.Lock()
	s.sessionIDs[result.SessionID] = struct{}{}
	s.mu.Unlock()
	return sess, cdm.ErrorNone
}

// LoadSession implements load_session. Unlike update/remove/close, a
// rejection here has no existing Session to report the error through,
// per spec.md §4.7.
func (s *System) LoadSession(ctx context.Context, licenseType cdm.LicenseType, sessionID string, callbacks session.Callbacks, user interface{}) (*session.Session, cdm.AdapterError) {
	sessionType := cdm.SessionTypeFromLicenseType(licenseType)
	id := s.promises.Allocate()
	ch := s.promises.Park(id, promise.KindLoad)
	s.host.ParkCreateSession(id, sessionType, callbacks, user)
	s.cdm.LoadSession(id, sessionType, sessionID)

	result, err := waitResult(ctx, ch)
	if err != nil {
		return nil, cdm.ErrorFail
	}
	if !result.Ok() {
		return nil, result.Rejected.AdapterError()
	}

	sess, ok := s.host.Session(result.SessionID)
	if !ok {
		return nil, cdm.ErrorFail
	}
	s.mu.Lock()
	s.sessionIDs[result.SessionID] = struct{}{}
	s.mu.Unlock()
	return sess, cdm.ErrorNone
}

// UpdateSession implements update_session.
func (s *System) UpdateSession(ctx context.Context, sessionID string, response []byte) cdm.AdapterError {
	id := s.promises.Allocate()
	ch := s.promises.Park(id, promise.KindUpdate)
	s.cdm.UpdateSession(id, sessionID, response)
	return s.waitAndReport(ctx, ch, sessionID)
}

// RemoveSession implements remove_session.
func (s *System) RemoveSession(ctx context.Context, sessionID string) cdm.AdapterError {
	id := s.promises.Allocate()
	ch := s.promises.Park(id, promise.KindRemove)
	s.cdm.RemoveSession(id, sessionID)
	errCode := s.waitAndReport(ctx, ch, sessionID)
	if errCode == cdm.ErrorNone {
		s.evict(sessionID)
	}
	return errCode
}

// CloseSession implements close_session.
func (s *System) CloseSession(ctx context.Context, sessionID string) cdm.AdapterError {
	id := s.promises.Allocate()
	ch := s.promises.Park(id, promise.KindClose)
	s.cdm.CloseSession(id, sessionID)
	errCode := s.waitAndReport(ctx, ch, sessionID)
	if errCode == cdm.ErrorNone {
		s.evict(sessionID)
	}
	return errCode
}

// waitAndReport waits for ch and, on rejection, delivers the message
// through the named session's error callback before returning the
// mapped code.
func (s *System) waitAndReport(ctx context.Context, ch <-chan promise.Result, sessionID string) cdm.AdapterError {
	result, err := waitResult(ctx, ch)
	if err != nil {
		return cdm.ErrorFail
	}
	if !result.Ok() {
		if sess, ok := s.host.Session(sessionID); ok {
			sess.Error(result.Rejected.Message)
		}
		return result.Rejected.AdapterError()
	}
	return cdm.ErrorNone
}

// evict removes sessionID from both this System's id set and the Host
// arena. OnSessionClosed evicts the same entry from the Host arena when
// the CDM reports it unsolicited; doing it here too keeps System's own
// bookkeeping correct even if that callback never arrives (e.g. after a
// successful remove_session, which this adapter's simplified ABI has no
// separate closed notification for).
func (s *System) evict(sessionID string) {
	s.mu.Lock()
	delete(s.sessionIDs, sessionID)
	s.mu.Unlock()
	s.host.RemoveSession(sessionID)
}

// GetSystemSession implements get_system_session: a linear scan, in
// deterministic session-id order, returning the first session whose key
// table contains keyID.
func (s *System) GetSystemSession(keyID []byte) (*session.Session, bool) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.sessionIDs))
	for id := range s.sessionIDs {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	sort.Strings(ids)

	for _, id := range ids {
		sess, ok := s.host.Session(id)
		if ok && sess.HasKeyID(keyID) {
			return sess, true
		}
	}
	return nil, false
}

// SessionKeyStatuses implements the adapter's key-status enumeration, the
// generalization of get_key_status (spec.md §4.6) to the whole table
// rather than one key at a time. Returns false if sessionID is not a
// live session of this System.
func (s *System) SessionKeyStatuses(sessionID string) (session.KeyStatuses, bool) {
	sess, ok := s.host.Session(sessionID)
	if !ok {
		return nil, false
	}
	return sess.AllKeyStatuses(), true
}

// Decrypt implements gstreamer_session_decrypt, delegating to the
// DecryptPipeline.
func (s *System) Decrypt(sample []byte, descriptor []byte, subsampleCount int, iv, keyID []byte) cdm.AdapterError {
	return decrypt.Decrypt(s.cdm, sample, descriptor, subsampleCount, iv, keyID).Err
}

// KeySystem returns the key-system identifier this System was created
// for.
func (s *System) KeySystem() string { return s.keySystem }
