// Package session implements Session (spec.md §4.6): the per-license
// object the adapter hands back to callers, its key-status table, and
// the routing of unsolicited CDM messages to the caller's callback
// struct.
package session

import (
	"sync"

	"github.com/SariskaIO/sparkle-cdm-widevine/cdm"
	"github.com/SariskaIO/sparkle-cdm-widevine/internal/wvlog"
)

// Callbacks is the caller-supplied function-pointer struct a Session
// routes unsolicited CDM events through. Any field may be nil.
type Callbacks struct {
	ProcessChallenge   func(user interface{}, messageType cdm.MessageType, message []byte)
	KeyUpdate          func(user interface{}, keyID []byte, status cdm.KeyStatus)
	KeysUpdated        func(user interface{})
	Error              func(user interface{}, message string)
	OutputTypeChanged  func(user interface{})
}

// KeyStatuses is the snapshot returned by Session.AllKeyStatuses: every key
// id this session has ever heard about, with its latest status.
type KeyStatuses map[string]cdm.KeyInformation

// Session is shared, by id, between the owning Host's session arena and
// the System that created it (spec.md §9): neither side holds the other
// by value, both dereference the same *Session behind the Host's map.
type Session struct {
	ID         string
	Type       cdm.SessionType
	Expiration float64

	user      interface{}
	callbacks Callbacks

	mu   sync.Mutex
	keys KeyStatuses
}

// New constructs a Session bound to the given CDM session id.
func New(id string, sessionType cdm.SessionType, user interface{}, callbacks Callbacks) *Session {
	return &Session{
		ID:        id,
		Type:      sessionType,
		user:      user,
		callbacks: callbacks,
		keys:      make(KeyStatuses),
	}
}

// Error invokes the caller's error callback, if set.
func (s *Session) Error(message string) {
	if s.callbacks.Error != nil {
		s.callbacks.Error(s.user, message)
	}
}

func (s *Session) message(messageType cdm.MessageType, body []byte) {
	if s.callbacks.ProcessChallenge != nil {
		s.callbacks.ProcessChallenge(s.user, messageType, body)
	}
}

// LicenseRequest routes a kLicenseRequest message.
func (s *Session) LicenseRequest(body []byte) { s.message(cdm.MessageTypeLicenseRequest, body) }

// LicenseRenewal routes a kLicenseRenewal message.
func (s *Session) LicenseRenewal(body []byte) { s.message(cdm.MessageTypeLicenseRenewal, body) }

// LicenseRelease routes a kLicenseRelease message.
func (s *Session) LicenseRelease(body []byte) { s.message(cdm.MessageTypeLicenseRelease, body) }

// Individualization routes a kIndividualizationRequest message.
func (s *Session) Individualization(body []byte) {
	s.message(cdm.MessageTypeIndividualizationRequest, body)
}

// Dispatch routes an OnSessionMessage callback to the right handler by
// message type, per spec.md §4.5. Unknown message types are logged and
// dropped.
func (s *Session) Dispatch(messageType cdm.MessageType, body []byte) {
	switch messageType {
	case cdm.MessageTypeLicenseRequest:
		s.LicenseRequest(body)
	case cdm.MessageTypeLicenseRenewal:
		s.LicenseRenewal(body)
	case cdm.MessageTypeLicenseRelease:
		s.LicenseRelease(body)
	case cdm.MessageTypeIndividualizationRequest:
		s.Individualization(body)
	default:
		wvlog.Warningf("session %s: dropping message of unknown type %d", s.ID, int(messageType))
	}
}

// OnKeyUpdate merges keys into the key-status table, fires a per-key
// KeyUpdate callback for each, and a single trailing KeysUpdated
// notification.
func (s *Session) OnKeyUpdate(keys []cdm.KeyInformation) {
	s.mu.Lock()
	for _, k := range keys {
		s.keys[string(k.KeyID)] = k
	}
	s.mu.Unlock()

	for _, k := range keys {
		if s.callbacks.KeyUpdate != nil {
			s.callbacks.KeyUpdate(s.user, k.KeyID, k.Status)
		}
	}
	if s.callbacks.KeysUpdated != nil {
		s.callbacks.KeysUpdated(s.user)
	}
}

// SetExpiration updates the session's expiration time, in wall-clock
// seconds since the Unix epoch.
func (s *Session) SetExpiration(t float64) {
	s.Expiration = t
}

// GetKeyInfo returns the current status for keyID, or
// cdm.KeyStatusStatusPending if this session has not heard about that
// key yet.
func (s *Session) GetKeyInfo(keyID []byte) cdm.KeyInformation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if info, ok := s.keys[string(keyID)]; ok {
		return info
	}
	return cdm.KeyInformation{KeyID: keyID, Status: cdm.KeyStatusStatusPending}
}

// HasKeyID reports whether keyID is present in this session's key table,
// used by System.GetSystemSession's linear scan.
func (s *Session) HasKeyID(keyID []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[string(keyID)]
	return ok
}

// AllKeyStatuses returns a snapshot copy of the session's key-status table.
func (s *Session) AllKeyStatuses() KeyStatuses {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(KeyStatuses, len(s.keys))
	for k, v := range s.keys {
		out[k] = v
	}
	return out
}
