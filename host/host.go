// Package host implements the Host (spec.md §4.5): the CDM's callback
// surface, the wall-clock timer bridge, the one-shot initialized
// future, and the authoritative session arena spec.md §9 resolves the
// source's Host/System ownership cycle into — Host owns every Session
// by id, System holds only ids and dereferences through the Host.
package host

import (
	"context"
	"sync"
	"time"

	"github.com/SariskaIO/sparkle-cdm-widevine/buffer"
	"github.com/SariskaIO/sparkle-cdm-widevine/cdm"
	"github.com/SariskaIO/sparkle-cdm-widevine/internal/clock"
	"github.com/SariskaIO/sparkle-cdm-widevine/internal/wvlog"
	"github.com/SariskaIO/sparkle-cdm-widevine/promise"
	"github.com/SariskaIO/sparkle-cdm-widevine/session"
)

// pendingCreate is what CreateSessionAndGenerateRequest parks alongside
// its promise id: everything OnResolveNewSessionPromise needs to turn a
// bare session id string into a full Session.
type pendingCreate struct {
	sessionType cdm.SessionType
	callbacks   session.Callbacks
	user        interface{}
}

// Host is exclusively owned by exactly one System (spec.md invariant 4).
type Host struct {
	clock    *clock.Scheduler
	promises *promise.Registry

	mu       sync.Mutex
	sessions map[string]*session.Session
	pending  map[uint32]pendingCreate

	initOnce    sync.Once
	initialized chan struct{}
	initOk      bool

	cdmMu       sync.Mutex
	cdmInstance cdm.ContentDecryptionModule
}

// New constructs a Host sharing promises with its owning System.
func New(promises *promise.Registry) *Host {
	return &Host{
		clock:       clock.NewScheduler(),
		promises:    promises,
		sessions:    make(map[string]*session.Session),
		pending:     make(map[uint32]pendingCreate),
		initialized: make(chan struct{}),
	}
}

// Bind attaches the CDM instance this Host services TimerExpired calls
// against. It is set once, after CreateCdmInstance returns, because the
// host-getter closure handed to the CDM needs a Host before the CDM
// instance pointer exists.
func (h *Host) Bind(instance cdm.ContentDecryptionModule) {
	h.cdmMu.Lock()
	h.cdmInstance = instance
	h.cdmMu.Unlock()
}

// Stop cancels outstanding timers. Must be called exactly once, at
// System teardown, before the CDM's Destroy().
func (h *Host) Stop() {
	h.clock.Stop()
}

// WaitInitialized blocks until OnInitialized fires or ctx is done.
func (h *Host) WaitInitialized(ctx context.Context) (bool, error) {
	select {
	case <-h.initialized:
		return h.initOk, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// ParkCreateSession records the context a pending
// CreateSessionAndGenerateRequest call needs once the CDM resolves it
// with a session id.
func (h *Host) ParkCreateSession(promiseID uint32, sessionType cdm.SessionType, callbacks session.Callbacks, user interface{}) {
	h.mu.Lock()
	h.pending[promiseID] = pendingCreate{sessionType: sessionType, callbacks: callbacks, user: user}
	h.mu.Unlock()
}

// Session looks up a live session by CDM session id.
func (h *Host) Session(id string) (*session.Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[id]
	return s, ok
}

// Sessions returns a snapshot of every session currently in the arena,
// for System's get_system_session linear scan.
func (h *Host) Sessions() []*session.Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*session.Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		out = append(out, s)
	}
	return out
}

// RemoveSession evicts a session from the arena directly. The CDM only
// calls OnSessionClosed for close_session; a successful remove_session
// has no equivalent unsolicited callback in this adapter's simplified
// ABI, so System calls this explicitly once RemoveSession's promise
// resolves.
func (h *Host) RemoveSession(id string) {
	h.mu.Lock()
	delete(h.sessions, id)
	h.mu.Unlock()
}

// --- cdm.HostCallbacks -------------------------------------------------

// Allocate implements cdm.HostCallbacks.
func (h *Host) Allocate(capacity uint32) cdm.Buffer {
	return buffer.Allocator{}.Allocate(capacity)
}

// SetTimer implements cdm.HostCallbacks: the fire callback runs on the
// scheduler's single goroutine, never the CDM's calling thread.
func (h *Host) SetTimer(delayMs int64, timerContext interface{}) {
	h.clock.Schedule(time.Duration(delayMs)*time.Millisecond, func() {
		h.cdmMu.Lock()
		instance := h.cdmInstance
		h.cdmMu.Unlock()
		if instance != nil {
			instance.TimerExpired(timerContext)
		}
	})
}

// GetCurrentWallTime implements cdm.HostCallbacks.
func (h *Host) GetCurrentWallTime() float64 {
	return clock.WallTimeSeconds()
}

// OnInitialized implements cdm.HostCallbacks. Must fire exactly once;
// later calls are ignored rather than panicking, consistent with
// "callbacks never throw."
func (h *Host) OnInitialized(success bool) {
	h.initOnce.Do(func() {
		h.initOk = success
		close(h.initialized)
	})
}

// OnResolveNewSessionPromise implements cdm.HostCallbacks.
func (h *Host) OnResolveNewSessionPromise(promiseID uint32, sessionID string) {
	h.mu.Lock()
	pc, ok := h.pending[promiseID]
	if ok {
		delete(h.pending, promiseID)
	}
	h.mu.Unlock()

	if !ok {
		wvlog.Warningf("host: resolved new-session promise %d with no pending create request", promiseID)
		h.promises.Resolve(promiseID, sessionID)
		return
	}

	s := session.New(sessionID, pc.sessionType, pc.user, pc.callbacks)
	h.mu.Lock()
	h.sessions[sessionID] = s
	h.mu.Unlock()

	h.promises.Resolve(promiseID, sessionID)
}

// OnResolvePromise implements cdm.HostCallbacks.
func (h *Host) OnResolvePromise(promiseID uint32) {
	h.promises.Resolve(promiseID, "")
}

// OnRejectPromise implements cdm.HostCallbacks.
func (h *Host) OnRejectPromise(promiseID uint32, exception cdm.Exception, systemCode uint32, message string) {
	h.promises.Reject(promiseID, cdm.RejectedPromise{
		ID:         promiseID,
		Exception:  exception,
		SystemCode: systemCode,
		Message:    message,
	})
}

// OnSessionMessage implements cdm.HostCallbacks.
func (h *Host) OnSessionMessage(sessionID string, messageType cdm.MessageType, message []byte) {
	s, ok := h.Session(sessionID)
	if !ok {
		wvlog.Warningf("host: message for unknown session %q dropped", sessionID)
		return
	}
	s.Dispatch(messageType, message)
}

// OnSessionKeysChange implements cdm.HostCallbacks.
func (h *Host) OnSessionKeysChange(sessionID string, hasAdditionalUsableKey bool, keys []cdm.KeyInformation) {
	s, ok := h.Session(sessionID)
	if !ok {
		wvlog.Warningf("host: keys-change for unknown session %q dropped", sessionID)
		return
	}
	_ = hasAdditionalUsableKey
	s.OnKeyUpdate(keys)
}

// OnExpirationChange implements cdm.HostCallbacks.
func (h *Host) OnExpirationChange(sessionID string, newExpiryTime float64) {
	if s, ok := h.Session(sessionID); ok {
		s.SetExpiration(newExpiryTime)
	}
}

// OnSessionClosed implements cdm.HostCallbacks.
func (h *Host) OnSessionClosed(sessionID string) {
	h.mu.Lock()
	delete(h.sessions, sessionID)
	h.mu.Unlock()
}

// QueryOutputProtectionStatus implements cdm.HostCallbacks. This
// adapter never enables output protection, so kQuerySucceeded with a
// zero mask is always the right answer; the vendor ABI's asynchronous
// reply channel for this query is not part of this adapter's
// ContentDecryptionModule surface, so the answer is logged rather than
// delivered back to the CDM.
func (h *Host) QueryOutputProtectionStatus() {
	wvlog.Infof("host: output protection query answered succeeded, mask=0")
}

// RequestStorageId implements cdm.HostCallbacks. It only logs the
// request; no storage id, placeholder or otherwise, is delivered back
// to the CDM, because this adapter's ContentDecryptionModule surface has
// no reply call for it.
func (h *Host) RequestStorageId(version uint32) {
	wvlog.Infof("host: storage id requested for version %d, using placeholder", version)
}
