package licensing

import (
	"context"
	"errors"
	"time"
)

var (
	ErrMalformedToken      = errors.New("malformed license token")
	ErrInvalidSignature    = errors.New("invalid license signature")
	ErrInvalidSchema       = errors.New("invalid license claims")
	ErrNotYetValid         = errors.New("license is not yet valid")
	ErrExpiredLicense      = errors.New("expired license")
	ErrMachineMismatch     = errors.New("license is bound to a different machine")
	ErrPhoneHomeFailed     = errors.New("license server verification failed")
	ErrOfflineCacheExpired = errors.New("offline license cache expired")
	ErrUnknownLimit        = errors.New("unknown license limit")
	ErrFeatureNotLicensed  = errors.New("feature not included in license")
)

// Reason identifies why a validation produced an invalid result. It is the
// serialized form of the failure, stable across cache round trips.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonMalformedToken   Reason = "malformed_token"
	ReasonInvalidSignature Reason = "invalid_signature"
	ReasonInvalidSchema    Reason = "invalid_schema"
	ReasonNotYetValid      Reason = "not_yet_valid"
	ReasonExpired          Reason = "expired"
	ReasonMachineMismatch  Reason = "machine_mismatch"
	ReasonRemoteRejected   Reason = "remote_rejected"
)

// Err maps a reason back to the corresponding sentinel error, or nil for
// ReasonNone.
func (r Reason) Err() error {
	switch r {
	case ReasonMalformedToken:
		return ErrMalformedToken
	case ReasonInvalidSignature:
		return ErrInvalidSignature
	case ReasonInvalidSchema:
		return ErrInvalidSchema
	case ReasonNotYetValid:
		return ErrNotYetValid
	case ReasonExpired:
		return ErrExpiredLicense
	case ReasonMachineMismatch:
		return ErrMachineMismatch
	case ReasonRemoteRejected:
		return ErrPhoneHomeFailed
	default:
		return nil
	}
}

// Result is the tagged outcome of a single validation attempt. Claims may be
// present on some invalid outcomes (expired but well formed, machine mismatch)
// so diagnostic surfaces can still show tier and company.
type Result struct {
	Valid     bool      `json:"valid"`
	Reason    Reason    `json:"reason,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Claims    *Claims   `json:"claims,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// consistent reports whether a result upholds its own invariants: a valid
// result always carries claims, an invalid one always carries a recognized
// reason. Durable cache entries that fail this check are corrupt regardless
// of whether they parse.
func (r *Result) consistent() bool {
	if r.Valid {
		return r.Claims != nil
	}
	return r.Reason.Err() != nil
}

func validResult(claims *Claims, now time.Time) Result {
	return Result{Valid: true, Claims: claims, CheckedAt: now}
}

func invalidResult(reason Reason, detail string, claims *Claims, now time.Time) Result {
	return Result{Valid: false, Reason: reason, Detail: detail, Claims: claims, CheckedAt: now}
}

// DiagnosticsRecorder receives one event per completed validation. Recorders
// are advisory only; the validator never consults them for trust decisions
// and ignores their errors beyond logging.
type DiagnosticsRecorder interface {
	RecordValidation(ctx context.Context, tokenDigest string, valid bool, reason Reason) error
}
