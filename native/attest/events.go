package attest

import (
	"encoding/hex"
	"strconv"

	"veritasor/core/types"
)

const (
	EventTypeAttestationSubmitted = "attest.submitted"
	EventTypeAttestationRevoked   = "attest.revoked"
	EventTypeAnomalyUpdated       = "attest.anomaly.updated"
	EventTypeFeesConfigured       = "attest.fees.configured"
)

// NewSubmittedEvent returns the canonical event payload for a newly stored
// attestation.
func NewSubmittedEvent(a *Attestation) *types.Event {
	if a == nil {
		return nil
	}
	attrs := map[string]string{
		"business":  hex.EncodeToString(a.Business[:]),
		"period":    a.Period,
		"root":      hex.EncodeToString(a.Root[:]),
		"timestamp": strconv.FormatUint(a.Timestamp, 10),
		"version":   strconv.FormatUint(uint64(a.Version), 10),
	}
	if a.FeePaid != nil {
		attrs["feePaid"] = a.FeePaid.String()
	}
	return &types.Event{Type: EventTypeAttestationSubmitted, Attributes: attrs}
}

// NewRevokedEvent returns the payload emitted when an attestation is flagged
// revoked.
func NewRevokedEvent(business [20]byte, period string, rev *Revocation) *types.Event {
	attrs := map[string]string{
		"business": hex.EncodeToString(business[:]),
		"period":   period,
	}
	if rev != nil {
		attrs["revokedBy"] = hex.EncodeToString(rev.RevokedBy[:])
		attrs["revokedAt"] = strconv.FormatUint(rev.RevokedAt, 10)
		if rev.Reason != "" {
			attrs["reason"] = rev.Reason
		}
	}
	return &types.Event{Type: EventTypeAttestationRevoked, Attributes: attrs}
}

// NewAnomalyEvent returns the payload emitted when an anomaly record is
// created or updated.
func NewAnomalyEvent(business [20]byte, period string, record *AnomalyRecord) *types.Event {
	attrs := map[string]string{
		"business": hex.EncodeToString(business[:]),
		"period":   period,
	}
	if record != nil {
		attrs["flags"] = strconv.FormatUint(uint64(record.Flags), 10)
		attrs["score"] = strconv.FormatUint(uint64(record.Score), 10)
	}
	return &types.Event{Type: EventTypeAnomalyUpdated, Attributes: attrs}
}

// NewFeesConfiguredEvent returns the payload emitted when the fee schedule is
// replaced or toggled.
func NewFeesConfiguredEvent(c *FeeConfig) *types.Event {
	if c == nil {
		return nil
	}
	attrs := map[string]string{
		"token":     c.Token,
		"collector": hex.EncodeToString(c.Collector[:]),
		"enabled":   strconv.FormatBool(c.Enabled),
	}
	if c.BaseFee != nil {
		attrs["baseFee"] = c.BaseFee.String()
	}
	return &types.Event{Type: EventTypeFeesConfigured, Attributes: attrs}
}
