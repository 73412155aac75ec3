package system

import (
	"context"
	"testing"

	"github.com/SariskaIO/sparkle-cdm-widevine/cdm"
	"github.com/SariskaIO/sparkle-cdm-widevine/host"
	"github.com/SariskaIO/sparkle-cdm-widevine/promise"
	"github.com/SariskaIO/sparkle-cdm-widevine/session"
)

// fakeCdm answers every call synchronously, on the calling goroutine,
// by invoking the Host callbacks it was bound to directly — standing in
// for a real CDM's own worker threads without needing any of them.
type fakeCdm struct {
	h *host.Host

	initialized bool
	nextSession int
	rejectNext  bool
}

func (f *fakeCdm) Initialize(bool, bool, bool) {
	f.initialized = true
	f.h.OnInitialized(true)
}

func (f *fakeCdm) CreateSessionAndGenerateRequest(promiseID uint32, sessionType cdm.SessionType, initDataType cdm.InitDataType, initData []byte) {
	if f.rejectNext {
		f.rejectNext = false
		f.h.OnRejectPromise(promiseID, cdm.ExceptionTypeError, 0, "rejected by test")
		return
	}
	f.nextSession++
	id := "fake-session"
	f.h.OnResolveNewSessionPromise(promiseID, id)
}

func (f *fakeCdm) LoadSession(promiseID uint32, sessionType cdm.SessionType, sessionID string) {
	f.h.OnResolveNewSessionPromise(promiseID, sessionID)
}

func (f *fakeCdm) UpdateSession(promiseID uint32, sessionID string, response []byte) {
	if f.rejectNext {
		f.rejectNext = false
		f.h.OnRejectPromise(promiseID, cdm.ExceptionTypeError, 0, "update rejected")
		return
	}
	f.h.OnResolvePromise(promiseID)
}

func (f *fakeCdm) RemoveSession(promiseID uint32, sessionID string) {
	f.h.OnResolvePromise(promiseID)
}

func (f *fakeCdm) CloseSession(promiseID uint32, sessionID string) {
	f.h.OnResolvePromise(promiseID)
	f.h.OnSessionClosed(sessionID)
}

func (f *fakeCdm) SetServerCertificate(promiseID uint32, certificate []byte) {
	f.h.OnResolvePromise(promiseID)
}

func (f *fakeCdm) TimerExpired(interface{}) {}
func (f *fakeCdm) Destroy()                 {}

func (f *fakeCdm) Decrypt(cdm.InputBuffer) (cdm.DecryptStatus, []byte) {
	return cdm.StatusSuccess, nil
}

func newTestSystem() (*System, *fakeCdm) {
	promises := promise.New()
	h := host.New(promises)
	f := &fakeCdm{h: h}
	h.Bind(f)
	return newSystem(cdm.WidevineKeySystem, promises, h, f), f
}

func TestIsTypeSupported(t *testing.T) {
	if got := IsTypeSupported(cdm.WidevineKeySystem, "video/mp4"); got != cdm.ErrorNone {
		t.Fatalf("got %v, want ErrorNone", got)
	}
	if got := IsTypeSupported("com.example.drm", "video/mp4"); got != cdm.ErrorKeySystemNotSupported {
		t.Fatalf("got %v, want ErrorKeySystemNotSupported", got)
	}
}

func TestConstructSessionSuccess(t *testing.T) {
	s, _ := newTestSystem()
	sess, errCode := s.ConstructSession(context.Background(), cdm.LicenseTypeTemporary, "cenc", []byte("init-data"), session.Callbacks{}, nil)
	if errCode != cdm.ErrorNone {
		t.Fatalf("unexpected error %v", errCode)
	}
	if sess == nil {
		t.Fatal("expected a session")
	}
	if _, ok := s.sessionIDs[sess.ID]; !ok {
		t.Fatal("expected session id to be tracked by System")
	}
}

func TestConstructSessionUnknownInitDataType(t *testing.T) {
	s, _ := newTestSystem()
	_, errCode := s.ConstructSession(context.Background(), cdm.LicenseTypeTemporary, "not-a-real-type", nil, session.Callbacks{}, nil)
	if errCode != cdm.ErrorInvalidArg {
		t.Fatalf("got %v, want ErrorInvalidArg", errCode)
	}
}

func TestConstructSessionRejection(t *testing.T) {
	s, f := newTestSystem()
	f.rejectNext = true
	_, errCode := s.ConstructSession(context.Background(), cdm.LicenseTypeTemporary, "cenc", nil, session.Callbacks{}, nil)
	if errCode != cdm.ErrorFail {
		t.Fatalf("got %v, want ErrorFail", errCode)
	}
}

func TestRemoveSessionEvictsFromSystemAndHost(t *testing.T) {
	s, _ := newTestSystem()
	sess, errCode := s.ConstructSession(context.Background(), cdm.LicenseTypeTemporary, "cenc", nil, session.Callbacks{}, nil)
	if errCode != cdm.ErrorNone {
		t.Fatalf("construct failed: %v", errCode)
	}

	if errCode := s.RemoveSession(context.Background(), sess.ID); errCode != cdm.ErrorNone {
		t.Fatalf("remove failed: %v", errCode)
	}
	if _, ok := s.sessionIDs[sess.ID]; ok {
		t.Fatal("expected session id to be evicted from System")
	}
	if _, ok := s.host.Session(sess.ID); ok {
		t.Fatal("expected session to be evicted from Host arena")
	}
}

func TestSessionKeyStatuses(t *testing.T) {
	s, _ := newTestSystem()
	sess, errCode := s.ConstructSession(context.Background(), cdm.LicenseTypeTemporary, "cenc", nil, session.Callbacks{}, nil)
	if errCode != cdm.ErrorNone {
		t.Fatalf("construct failed: %v", errCode)
	}
	sess.OnKeyUpdate([]cdm.KeyInformation{{KeyID: []byte("k1"), Status: cdm.KeyStatusUsable}})

	statuses, ok := s.SessionKeyStatuses(sess.ID)
	if !ok {
		t.Fatal("expected a key-status table for a live session")
	}
	if info, ok := statuses["k1"]; !ok || info.Status != cdm.KeyStatusUsable {
		t.Fatalf("unexpected key-status table: %+v", statuses)
	}

	if _, ok := s.SessionKeyStatuses("no-such-session"); ok {
		t.Fatal("did not expect a key-status table for an unknown session")
	}
}

func TestGetSystemSessionScansByKeyID(t *testing.T) {
	s, _ := newTestSystem()
	sess, errCode := s.ConstructSession(context.Background(), cdm.LicenseTypeTemporary, "cenc", nil, session.Callbacks{}, nil)
	if errCode != cdm.ErrorNone {
		t.Fatalf("construct failed: %v", errCode)
	}
	sess.OnKeyUpdate([]cdm.KeyInformation{{KeyID: []byte("k1"), Status: cdm.KeyStatusUsable}})

	found, ok := s.GetSystemSession([]byte("k1"))
	if !ok || found.ID != sess.ID {
		t.Fatalf("expected to find session %q, got %v (ok=%v)", sess.ID, found, ok)
	}

	if _, ok := s.GetSystemSession([]byte("missing")); ok {
		t.Fatal("did not expect a match for an unknown key id")
	}
}
