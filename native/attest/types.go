package attest

import (
	"fmt"
	"math/big"
	"strings"
)

// AnomalyScoreMax bounds the analytics risk score.
const AnomalyScoreMax = 100

// Attestation is the immutable on-record claim of a business's revenue for a
// single reporting period. The (Root, Timestamp, Version) triple is never
// mutated after submission; FeePaid records the fee charged at that time.
type Attestation struct {
	Business  [20]byte
	Period    string
	Root      [32]byte
	Timestamp uint64
	Version   uint32
	FeePaid   *big.Int
}

// Clone returns a deep copy so callers can safely mutate the result without
// affecting stored state.
func (a *Attestation) Clone() *Attestation {
	if a == nil {
		return nil
	}
	clone := *a
	if a.FeePaid != nil {
		clone.FeePaid = new(big.Int).Set(a.FeePaid)
	} else {
		clone.FeePaid = big.NewInt(0)
	}
	return &clone
}

// AnomalyRecord carries analytics flags for an existing attestation. It lives
// under its own storage key and never touches the attestation fields.
type AnomalyRecord struct {
	Flags uint32
	Score uint32
}

// Revocation marks an attestation as revoked without altering the attestation
// record itself.
type Revocation struct {
	RevokedAt uint64
	RevokedBy [20]byte
	Reason    string
}

// FeeConfig is the admin-owned fee schedule. It is replaced wholesale on every
// update.
type FeeConfig struct {
	Token     string
	Collector [20]byte
	BaseFee   *big.Int
	Enabled   bool
}

// Clone returns a deep copy of the fee configuration.
func (c *FeeConfig) Clone() *FeeConfig {
	if c == nil {
		return nil
	}
	clone := *c
	if c.BaseFee != nil {
		clone.BaseFee = new(big.Int).Set(c.BaseFee)
	} else {
		clone.BaseFee = big.NewInt(0)
	}
	return &clone
}

// VolumeBrackets holds the ordered volume discount table. Thresholds are
// cumulative attestation counts; a business qualifies for the highest bracket
// whose threshold does not exceed its counter.
type VolumeBrackets struct {
	Thresholds []uint64
	Discounts  []uint32
}

// Validate enforces the bracket table invariants: parallel arrays of equal
// length, strictly ascending thresholds, discounts within basis-point range.
func (b *VolumeBrackets) Validate() error {
	if b == nil {
		return fmt.Errorf("%w: nil brackets", ErrInvalidBrackets)
	}
	if len(b.Thresholds) != len(b.Discounts) {
		return fmt.Errorf("%w: thresholds and discounts length mismatch", ErrInvalidBrackets)
	}
	for i := 1; i < len(b.Thresholds); i++ {
		if b.Thresholds[i] <= b.Thresholds[i-1] {
			return fmt.Errorf("%w: thresholds must be strictly ascending", ErrInvalidBrackets)
		}
	}
	for _, bps := range b.Discounts {
		if bps > bpsDenominator {
			return fmt.Errorf("%w: discount bps out of range", ErrInvalidBrackets)
		}
	}
	return nil
}

// NormalizePeriod canonicalises a period identifier such as "2026-02".
func NormalizePeriod(period string) (string, error) {
	trimmed := strings.TrimSpace(period)
	if trimmed == "" {
		return "", fmt.Errorf("%w: period required", ErrInvalidAttestation)
	}
	return trimmed, nil
}
