// Package cdm defines the shared vocabulary of the Content Decryption
// Module ABI (interface version 10) that every other package in this
// module builds on: status/exception enums, the buffer and input-buffer
// shapes the vendor CDM expects, and the two interfaces
// (ContentDecryptionModule and HostCallbacks) that stand in for the
// CDM's and the host's C++ vtables.
package cdm

import "fmt"

// InterfaceVersion is the only CDM ABI version this adapter speaks.
const InterfaceVersion = 10

// WidevineKeySystem and WidevineUUID are the only key-system identifiers
// this adapter accepts.
const (
	WidevineKeySystem = "com.widevine.alpha"
	WidevineUUID       = "edef8ba9-79d6-4ace-a3c8-27dcd51d21ed"
)

// SessionType mirrors cdm::SessionType.
type SessionType int

const (
	SessionTypeTemporary SessionType = iota
	SessionTypePersistentLicense
	SessionTypePersistentUsageRecord
)

// LicenseType is the adapter-facing equivalent of SessionType, matching
// the external OpenCDM LicenseType enum.
type LicenseType int

const (
	LicenseTypeTemporary LicenseType = iota
	LicenseTypePersistentUsageRecord
	LicenseTypePersistentLicense
)

// SessionTypeFromLicenseType mirrors sessionTypeFromLicenseType in the
// reference adapter: unknown license types degrade to Temporary.
func SessionTypeFromLicenseType(lt LicenseType) SessionType {
	switch lt {
	case LicenseTypePersistentLicense:
		return SessionTypePersistentLicense
	case LicenseTypePersistentUsageRecord:
		return SessionTypePersistentUsageRecord
	default:
		return SessionTypeTemporary
	}
}

// InitDataType mirrors cdm::InitDataType.
type InitDataType int

const (
	InitDataTypeCenc InitDataType = iota
	InitDataTypeKeyIDs
	InitDataTypeWebM
)

// InitDataTypeFromString maps the adapter's string init-data-type name to
// the CDM enum. The bool return reports whether the name was recognized.
func InitDataTypeFromString(name string) (InitDataType, bool) {
	switch name {
	case "cenc":
		return InitDataTypeCenc, true
	case "keyids":
		return InitDataTypeKeyIDs, true
	case "webm":
		return InitDataTypeWebM, true
	default:
		return 0, false
	}
}

// MessageType mirrors cdm::MessageType, the kind of unsolicited message a
// session delivers to the host.
type MessageType int

const (
	MessageTypeLicenseRequest MessageType = iota
	MessageTypeLicenseRenewal
	MessageTypeLicenseRelease
	MessageTypeIndividualizationRequest
)

// KeyStatus mirrors cdm::KeyStatus.
type KeyStatus int

const (
	KeyStatusUsable KeyStatus = iota
	KeyStatusInternalError
	KeyStatusExpired
	KeyStatusOutputRestricted
	KeyStatusOutputDownscaled
	KeyStatusStatusPending
	KeyStatusReleased
)

func (s KeyStatus) String() string {
	switch s {
	case KeyStatusUsable:
		return "usable"
	case KeyStatusInternalError:
		return "internal-error"
	case KeyStatusExpired:
		return "expired"
	case KeyStatusOutputRestricted:
		return "output-restricted"
	case KeyStatusOutputDownscaled:
		return "output-downscaled"
	case KeyStatusStatusPending:
		return "status-pending"
	case KeyStatusReleased:
		return "released"
	default:
		return fmt.Sprintf("key-status(%d)", int(s))
	}
}

// KeyInformation is one entry of a session's key-status table, as
// delivered by OnSessionKeysChange.
type KeyInformation struct {
	KeyID      []byte
	Status     KeyStatus
	SystemCode uint32
}

// Exception mirrors cdm::Exception, the reason a promise was rejected.
type Exception int

const (
	ExceptionTypeError Exception = iota
	ExceptionNotSupportedError
	ExceptionInvalidStateError
	ExceptionQuotaExceededError
	ExceptionOther
)

// QueryResult mirrors cdm::QueryResult for output-protection queries.
type QueryResult int

const (
	QuerySucceeded QueryResult = iota
	QueryFailed
)

// DecryptStatus mirrors cdm::Status, the outcome of a Decrypt call.
type DecryptStatus int

const (
	StatusSuccess DecryptStatus = iota
	StatusNeedMoreData
	StatusNoKey
	StatusDecryptError
	StatusSessionError
)

// AdapterError maps a Decrypt outcome to the adapter-level error code
// per spec §4.9/§7: kSuccess->None, kNeedMoreData->MoreDataAvailable,
// kNoKey->InvalidSession, anything else->Fail.
func (s DecryptStatus) AdapterError() AdapterError {
	switch s {
	case StatusSuccess:
		return ErrorNone
	case StatusNeedMoreData:
		return ErrorMoreDataAvailable
	case StatusNoKey:
		return ErrorInvalidSession
	default:
		return ErrorFail
	}
}

// EncryptionScheme mirrors cdm::EncryptionScheme. Only CENC is used by
// this adapter.
type EncryptionScheme int

const (
	EncryptionSchemeUnencrypted EncryptionScheme = iota
	EncryptionSchemeCenc
	EncryptionSchemeCbcs
)

// Pattern mirrors cdm::Pattern, the CBCS crypto-byte-block pattern. This
// adapter always sends the all-encrypted {0,0} pattern (CENC has none),
// per spec.
type Pattern struct {
	CryptByteBlock   uint32
	SkipByteBlock    uint32
}

// SubsampleEntry is one {clear_bytes, cipher_bytes} pair describing a
// contiguous run of a CENC sample.
type SubsampleEntry struct {
	ClearBytes  uint16
	CipherBytes uint32
}

// InputBuffer mirrors cdm::InputBuffer_2, the argument shape `Decrypt`
// expects.
type InputBuffer struct {
	Data             []byte
	EncryptionScheme EncryptionScheme
	KeyID            []byte
	IV               []byte
	Subsamples       []SubsampleEntry
	Pattern          Pattern
	Timestamp        int64
}

// Buffer mirrors cdm::Buffer, the CDM's output-buffer contract.
type Buffer interface {
	Capacity() uint32
	Data() []byte
	SetSize(size uint32)
	Size() uint32
	Destroy()
}

// ContentDecryptionModule mirrors cdm::ContentDecryptionModule_10, the
// vendor CDM's entry points as seen from the host side. Every method is
// asynchronous except Decrypt and Destroy: the CDM answers by calling
// back into the HostCallbacks the host supplied at creation time,
// matched to the call by promise id.
type ContentDecryptionModule interface {
	Initialize(allowDistinctiveIdentifier, allowPersistentState, useHwSecureCodecs bool)
	CreateSessionAndGenerateRequest(promiseID uint32, sessionType SessionType, initDataType InitDataType, initData []byte)
	LoadSession(promiseID uint32, sessionType SessionType, sessionID string)
	UpdateSession(promiseID uint32, sessionID string, response []byte)
	RemoveSession(promiseID uint32, sessionID string)
	CloseSession(promiseID uint32, sessionID string)
	SetServerCertificate(promiseID uint32, certificate []byte)
	TimerExpired(context interface{})
	Decrypt(input InputBuffer) (DecryptStatus, []byte)
	Destroy()
}

// HostCallbacks mirrors cdm::Host_10, the callback surface the host
// implements and the CDM invokes, possibly from any of its own worker
// threads.
type HostCallbacks interface {
	Allocate(capacity uint32) Buffer
	SetTimer(delayMs int64, context interface{})
	GetCurrentWallTime() float64

	OnInitialized(success bool)
	OnResolveNewSessionPromise(promiseID uint32, sessionID string)
	OnResolvePromise(promiseID uint32)
	OnRejectPromise(promiseID uint32, exception Exception, systemCode uint32, message string)

	OnSessionMessage(sessionID string, messageType MessageType, message []byte)
	OnSessionKeysChange(sessionID string, hasAdditionalUsableKey bool, keys []KeyInformation)
	OnExpirationChange(sessionID string, newExpiryTime float64)
	OnSessionClosed(sessionID string)

	QueryOutputProtectionStatus()
	RequestStorageId(version uint32)
}

// AdapterError mirrors the OpenCDMError enum exposed at the adapter
// boundary.
type AdapterError int

const (
	ErrorNone AdapterError = iota
	ErrorUnknown
	ErrorFail
	ErrorInvalidArg
	ErrorInvalidSession
	ErrorKeySystemNotSupported
	ErrorMoreDataAvailable
)

func (e AdapterError) Error() string {
	switch e {
	case ErrorNone:
		return "none"
	case ErrorUnknown:
		return "unknown"
	case ErrorFail:
		return "fail"
	case ErrorInvalidArg:
		return "invalid argument"
	case ErrorInvalidSession:
		return "invalid session"
	case ErrorKeySystemNotSupported:
		return "key system not supported"
	case ErrorMoreDataAvailable:
		return "more data available"
	default:
		return fmt.Sprintf("adapter error(%d)", int(e))
	}
}

// IsWidevine reports whether keySystem is one of the two accepted
// Widevine identifiers, regardless of MIME type.
func IsWidevine(keySystem string) bool {
	return keySystem == WidevineKeySystem || keySystem == WidevineUUID
}

// RejectedPromise mirrors the C++ RejectedPromise aggregate: the reason a
// promise was rejected, mapped to the adapter's coarser AdapterError.
type RejectedPromise struct {
	ID         uint32
	Exception  Exception
	SystemCode uint32
	Message    string
}

// AdapterError maps a CDM rejection reason to the adapter-level error
// code per spec: the first four Exception values map to ErrorFail,
// anything else maps to ErrorUnknown.
func (r RejectedPromise) AdapterError() AdapterError {
	switch r.Exception {
	case ExceptionTypeError, ExceptionNotSupportedError, ExceptionInvalidStateError, ExceptionQuotaExceededError:
		return ErrorFail
	default:
		return ErrorUnknown
	}
}
