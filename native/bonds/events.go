package bonds

import (
	"encoding/hex"
	"strconv"

	"veritasor/core/types"
)

const (
	EventTypeBondIssued           = "bonds.issued"
	EventTypeBondRedeemed         = "bonds.redeemed"
	EventTypeBondFullyRedeemed    = "bonds.fully_redeemed"
	EventTypeBondDefaulted        = "bonds.defaulted"
	EventTypeBondOwnerTransferred = "bonds.owner.transferred"
	EventTypeDisputeOpened        = "bonds.dispute.opened"
	EventTypeDisputeResolved      = "bonds.dispute.resolved"
	EventTypeDisputeClosed        = "bonds.dispute.closed"
)

func formatID(id uint64) string { return strconv.FormatUint(id, 10) }

// NewIssuedEvent returns the canonical payload for a newly issued bond.
func NewIssuedEvent(b *Bond, owner [20]byte) *types.Event {
	if b == nil {
		return nil
	}
	attrs := map[string]string{
		"id":        formatID(b.ID),
		"issuer":    hex.EncodeToString(b.Issuer[:]),
		"owner":     hex.EncodeToString(owner[:]),
		"token":     b.Token,
		"structure": strconv.FormatUint(uint64(b.Structure), 10),
		"status":    b.Status.String(),
	}
	if b.FaceValue != nil {
		attrs["faceValue"] = b.FaceValue.String()
	}
	return &types.Event{Type: EventTypeBondIssued, Attributes: attrs}
}

// NewRedeemedEvent returns the payload emitted after a period settlement.
func NewRedeemedEvent(r *RedemptionRecord) *types.Event {
	if r == nil {
		return nil
	}
	attrs := map[string]string{
		"id":     formatID(r.BondID),
		"period": r.Period,
	}
	if r.Amount != nil {
		attrs["amount"] = r.Amount.String()
	}
	if r.AttestedRevenue != nil {
		attrs["attestedRevenue"] = r.AttestedRevenue.String()
	}
	return &types.Event{Type: EventTypeBondRedeemed, Attributes: attrs}
}

// NewFullyRedeemedEvent returns the payload emitted when a bond reaches its
// face value.
func NewFullyRedeemedEvent(b *Bond) *types.Event {
	if b == nil {
		return nil
	}
	return &types.Event{Type: EventTypeBondFullyRedeemed, Attributes: map[string]string{
		"id":     formatID(b.ID),
		"status": b.Status.String(),
	}}
}

// NewDefaultedEvent returns the payload emitted when the admin marks a bond
// defaulted.
func NewDefaultedEvent(b *Bond) *types.Event {
	if b == nil {
		return nil
	}
	return &types.Event{Type: EventTypeBondDefaulted, Attributes: map[string]string{
		"id":     formatID(b.ID),
		"status": b.Status.String(),
	}}
}

// NewOwnershipTransferredEvent returns the payload emitted after an ownership
// transfer.
func NewOwnershipTransferredEvent(id uint64, from, to [20]byte) *types.Event {
	return &types.Event{Type: EventTypeBondOwnerTransferred, Attributes: map[string]string{
		"id":   formatID(id),
		"from": hex.EncodeToString(from[:]),
		"to":   hex.EncodeToString(to[:]),
	}}
}

func disputeAttributes(d *Dispute) map[string]string {
	attrs := map[string]string{
		"id":         formatID(d.ID),
		"challenger": hex.EncodeToString(d.Challenger[:]),
		"business":   hex.EncodeToString(d.Business[:]),
		"period":     d.Period,
		"status":     d.Status.String(),
	}
	if d.Resolution != nil {
		attrs["resolver"] = hex.EncodeToString(d.Resolution.Resolver[:])
		attrs["outcome"] = d.Resolution.Outcome
	}
	return attrs
}

// NewDisputeOpenedEvent returns the payload emitted when a dispute is opened.
func NewDisputeOpenedEvent(d *Dispute) *types.Event {
	if d == nil {
		return nil
	}
	return &types.Event{Type: EventTypeDisputeOpened, Attributes: disputeAttributes(d)}
}

// NewDisputeResolvedEvent returns the payload emitted when a dispute is
// resolved.
func NewDisputeResolvedEvent(d *Dispute) *types.Event {
	if d == nil {
		return nil
	}
	return &types.Event{Type: EventTypeDisputeResolved, Attributes: disputeAttributes(d)}
}

// NewDisputeClosedEvent returns the payload emitted when a dispute is closed.
func NewDisputeClosedEvent(d *Dispute) *types.Event {
	if d == nil {
		return nil
	}
	return &types.Event{Type: EventTypeDisputeClosed, Attributes: disputeAttributes(d)}
}
