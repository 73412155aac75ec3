package host

import (
	"context"
	"testing"
	"time"

	"github.com/SariskaIO/sparkle-cdm-widevine/cdm"
	"github.com/SariskaIO/sparkle-cdm-widevine/promise"
	"github.com/SariskaIO/sparkle-cdm-widevine/session"
)

// fakeCdm records the last TimerExpired context it was given, standing in
// for a real CDM instance across SetTimer's scheduler roundtrip.
type fakeCdm struct {
	timerCh chan interface{}
}

func newFakeCdm() *fakeCdm { return &fakeCdm{timerCh: make(chan interface{}, 1)} }

func (f *fakeCdm) Initialize(bool, bool, bool)                                                   {}
func (f *fakeCdm) CreateSessionAndGenerateRequest(uint32, cdm.SessionType, cdm.InitDataType, []byte) {}
func (f *fakeCdm) LoadSession(uint32, cdm.SessionType, string)                                   {}
func (f *fakeCdm) UpdateSession(uint32, string, []byte)                                          {}
func (f *fakeCdm) RemoveSession(uint32, string)                                                  {}
func (f *fakeCdm) CloseSession(uint32, string)                                                   {}
func (f *fakeCdm) SetServerCertificate(uint32, []byte)                                           {}
func (f *fakeCdm) Destroy()                                                                      {}
func (f *fakeCdm) Decrypt(cdm.InputBuffer) (cdm.DecryptStatus, []byte)                            { return cdm.StatusSuccess, nil }

func (f *fakeCdm) TimerExpired(ctx interface{}) {
	f.timerCh <- ctx
}

func TestOnInitializedFiresOnceAndUnblocksWaiters(t *testing.T) {
	h := New(promise.New())

	h.OnInitialized(true)
	h.OnInitialized(false) // second call must be ignored, not panic on a closed channel

	ok, err := h.WaitInitialized(context.Background())
	if err != nil {
		t.Fatalf("WaitInitialized: %v", err)
	}
	if !ok {
		t.Fatal("expected the first OnInitialized(true) result to stick")
	}
}

func TestWaitInitializedRespectsContextCancellation(t *testing.T) {
	h := New(promise.New())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.WaitInitialized(ctx)
	if err == nil {
		t.Fatal("expected a context error")
	}
}

func TestParkCreateSessionThenResolveBuildsSession(t *testing.T) {
	promises := promise.New()
	h := New(promises)
	ch := promises.Park(1, promise.KindCreateSession)

	h.ParkCreateSession(1, cdm.SessionTypeTemporary, session.Callbacks{}, "the-user")
	h.OnResolveNewSessionPromise(1, "sess-1")

	s, ok := h.Session("sess-1")
	if !ok {
		t.Fatal("expected session sess-1 to be in the arena")
	}
	if s.Type != cdm.SessionTypeTemporary {
		t.Fatalf("session type = %v, want Temporary", s.Type)
	}

	select {
	case result := <-ch:
		if !result.Ok() || result.SessionID != "sess-1" {
			t.Fatalf("unexpected promise result: %+v", result)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the promise to resolve")
	}
}

func TestOnResolveNewSessionPromiseWithNoPendingCreateStillResolves(t *testing.T) {
	promises := promise.New()
	h := New(promises)
	ch := promises.Park(5, promise.KindCreateSession)

	h.OnResolveNewSessionPromise(5, "sess-orphan")

	select {
	case r := <-ch:
		if !r.Ok() || r.SessionID != "sess-orphan" {
			t.Fatalf("unexpected result: %+v", r)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for resolution")
	}

	if _, ok := h.Session("sess-orphan"); ok {
		t.Fatal("no Session should be built without a parked pendingCreate")
	}
}

func TestOnSessionMessageRoutesToDispatch(t *testing.T) {
	promises := promise.New()
	h := New(promises)

	var gotType cdm.MessageType
	h.ParkCreateSession(1, cdm.SessionTypeTemporary, session.Callbacks{
		ProcessChallenge: func(interface{}, cdm.MessageType, []byte) {},
	}, nil)
	h.OnResolveNewSessionPromise(1, "sess-1")

	h.ParkCreateSession(2, cdm.SessionTypeTemporary, session.Callbacks{
		ProcessChallenge: func(user interface{}, messageType cdm.MessageType, message []byte) {
			gotType = messageType
		},
	}, nil)
	h.OnResolveNewSessionPromise(2, "sess-2")

	h.OnSessionMessage("sess-2", cdm.MessageTypeLicenseRequest, []byte("body"))
	if gotType != cdm.MessageTypeLicenseRequest {
		t.Fatalf("got %v, want LicenseRequest", gotType)
	}
}

func TestOnSessionMessageForUnknownSessionIsDropped(t *testing.T) {
	h := New(promise.New())
	// Must not panic.
	h.OnSessionMessage("does-not-exist", cdm.MessageTypeLicenseRequest, []byte("x"))
}

func TestOnSessionKeysChangeUpdatesSessionKeyTable(t *testing.T) {
	promises := promise.New()
	h := New(promises)
	h.ParkCreateSession(1, cdm.SessionTypeTemporary, session.Callbacks{}, nil)
	h.OnResolveNewSessionPromise(1, "sess-1")

	h.OnSessionKeysChange("sess-1", true, []cdm.KeyInformation{
		{KeyID: []byte("k1"), Status: cdm.KeyStatusUsable},
	})

	s, _ := h.Session("sess-1")
	if !s.HasKeyID([]byte("k1")) {
		t.Fatal("expected key k1 to be recorded")
	}
}

func TestOnSessionClosedEvictsFromArena(t *testing.T) {
	promises := promise.New()
	h := New(promises)
	h.ParkCreateSession(1, cdm.SessionTypeTemporary, session.Callbacks{}, nil)
	h.OnResolveNewSessionPromise(1, "sess-1")

	h.OnSessionClosed("sess-1")

	if _, ok := h.Session("sess-1"); ok {
		t.Fatal("expected session to be evicted")
	}
}

func TestSetTimerFiresTimerExpiredOnBoundCdm(t *testing.T) {
	h := New(promise.New())
	f := newFakeCdm()
	h.Bind(f)

	h.SetTimer(1, "ctx-value")

	select {
	case got := <-f.timerCh:
		if got != "ctx-value" {
			t.Fatalf("got %v, want ctx-value", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for TimerExpired")
	}

	h.Stop()
}

func TestGetCurrentWallTimeIsRecent(t *testing.T) {
	h := New(promise.New())
	now := h.GetCurrentWallTime()
	if now <= 0 {
		t.Fatalf("expected a positive wall time, got %v", now)
	}
}

func TestStopIsSafeWithNoTimersScheduled(t *testing.T) {
	h := New(promise.New())
	h.Stop()
}
