package attest

import "errors"

var (
	ErrNotInitialized       = errors.New("attest: not initialized")
	ErrAlreadyInitialized   = errors.New("attest: already initialized")
	ErrUnauthorized         = errors.New("attest: unauthorized")
	ErrInvalidAttestation   = errors.New("attest: invalid attestation")
	ErrAttestationExists    = errors.New("attest: attestation already exists")
	ErrAttestationNotFound  = errors.New("attest: attestation not found")
	ErrAttestationRevoked   = errors.New("attest: attestation revoked")
	ErrFeesNotConfigured    = errors.New("attest: fees not configured")
	ErrInvalidFeeConfig     = errors.New("attest: invalid fee config")
	ErrInvalidBrackets      = errors.New("attest: invalid volume brackets")
	ErrScoreOutOfRange      = errors.New("attest: anomaly score out of range")
	ErrUpdaterNotAuthorized = errors.New("attest: updater not authorized")
)
