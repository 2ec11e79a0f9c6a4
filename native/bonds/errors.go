package bonds

import "errors"

var (
	ErrNotInitialized      = errors.New("bonds: not initialized")
	ErrAlreadyInitialized  = errors.New("bonds: already initialized")
	ErrUnauthorized        = errors.New("bonds: unauthorized")
	ErrInvalidBond         = errors.New("bonds: invalid bond terms")
	ErrBondNotFound        = errors.New("bonds: bond not found")
	ErrBondNotActive       = errors.New("bonds: bond not active")
	ErrFullyRedeemed       = errors.New("bonds: bond already fully redeemed")
	ErrAlreadyRedeemed     = errors.New("bonds: already redeemed for period")
	ErrInvalidRevenue      = errors.New("bonds: attested revenue must be non-negative")
	ErrInvalidPeriod       = errors.New("bonds: period required")
	ErrAttestationMissing  = errors.New("bonds: attestation not found")
	ErrAttestationRevoked  = errors.New("bonds: attestation is revoked")
	ErrSelfTransfer        = errors.New("bonds: cannot transfer to self")
	ErrNotOwner            = errors.New("bonds: not bond owner")
	ErrOwnerMatchesIssuer  = errors.New("bonds: issuer and owner must differ")
	ErrDisputeNotFound     = errors.New("bonds: dispute not found")
	ErrDisputeWrongStatus  = errors.New("bonds: dispute in wrong status")
	ErrDisputeExists       = errors.New("bonds: challenger already disputes this attestation")
	ErrInvalidDispute      = errors.New("bonds: invalid dispute")
	ErrResolverNotAllowed  = errors.New("bonds: resolver not authorized")
	ErrNoAttestationSource = errors.New("bonds: attestation source not configured")
)
