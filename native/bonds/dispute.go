package bonds

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// RoleArbiter marks addresses allowed to resolve disputes alongside the admin.
const RoleArbiter = "ROLE_BOND_ARBITER"

// DisputeStatus tracks the strictly forward dispute lifecycle
// Open -> Resolved -> Closed.
type DisputeStatus uint8

const (
	DisputeOpen DisputeStatus = iota
	DisputeResolved
	DisputeClosed
)

func (s DisputeStatus) String() string {
	switch s {
	case DisputeOpen:
		return "open"
	case DisputeResolved:
		return "resolved"
	case DisputeClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Resolution records the arbiter decision attached to a resolved dispute.
type Resolution struct {
	Resolver   [20]byte
	Outcome    string
	ResolvedAt uint64
	Notes      string
}

// Dispute is a formal challenge against a stored attestation.
type Dispute struct {
	ID         uint64
	Challenger [20]byte
	Business   [20]byte
	Period     string
	Kind       string
	Evidence   string
	Status     DisputeStatus
	OpenedAt   uint64
	Resolution *Resolution
}

type storedDispute struct {
	ID         uint64
	Challenger [20]byte
	Business   [20]byte
	Period     string
	Kind       string
	Evidence   string
	Status     uint8
	OpenedAt   uint64
	Resolved   bool
	Resolver   [20]byte
	Outcome    string
	ResolvedAt uint64
	Notes      string
}

func (s *storedDispute) toDispute() *Dispute {
	d := &Dispute{
		ID:         s.ID,
		Challenger: s.Challenger,
		Business:   s.Business,
		Period:     s.Period,
		Kind:       s.Kind,
		Evidence:   s.Evidence,
		Status:     DisputeStatus(s.Status),
		OpenedAt:   s.OpenedAt,
	}
	if s.Resolved {
		d.Resolution = &Resolution{
			Resolver:   s.Resolver,
			Outcome:    s.Outcome,
			ResolvedAt: s.ResolvedAt,
			Notes:      s.Notes,
		}
	}
	return d
}

func disputeIDBytes(id uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return buf
}

func (e *Engine) nextDisputeID() (uint64, error) {
	var counter uint64
	if _, err := e.state.KVGet(disputeCounterKey(), &counter); err != nil {
		return 0, err
	}
	counter++
	if err := e.state.KVPut(disputeCounterKey(), counter); err != nil {
		return 0, err
	}
	return counter, nil
}

func (e *Engine) loadDispute(id uint64) (*storedDispute, error) {
	stored := new(storedDispute)
	ok, err := e.state.KVGet(disputeKey(id), stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrDisputeNotFound
	}
	return stored, nil
}

// OpenDispute records a new challenge against the attestation for
// (business, period). The attestation must exist and the challenger may not
// already hold a non-closed dispute on the same attestation. Returns the
// assigned dispute id.
func (e *Engine) OpenDispute(challenger, business [20]byte, period, kind, evidence string) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if e.attestations == nil {
		return 0, ErrNoAttestationSource
	}
	trimmedPeriod := strings.TrimSpace(period)
	if trimmedPeriod == "" {
		return 0, fmt.Errorf("%w: period required", ErrInvalidDispute)
	}
	trimmedKind := strings.TrimSpace(kind)
	if trimmedKind == "" {
		return 0, fmt.Errorf("%w: dispute type required", ErrInvalidDispute)
	}
	hasAtt, err := e.attestations.HasAttestation(business, trimmedPeriod)
	if err != nil {
		return 0, err
	}
	if !hasAtt {
		return 0, fmt.Errorf("%w: business %x period %s", ErrAttestationMissing, business, trimmedPeriod)
	}

	existing, err := e.DisputesByAttestation(business, trimmedPeriod)
	if err != nil {
		return 0, err
	}
	for _, id := range existing {
		stored, err := e.loadDispute(id)
		if err != nil {
			return 0, err
		}
		if stored.Challenger == challenger && DisputeStatus(stored.Status) != DisputeClosed {
			return 0, fmt.Errorf("%w: dispute %d", ErrDisputeExists, id)
		}
	}

	id, err := e.nextDisputeID()
	if err != nil {
		return 0, err
	}
	stored := &storedDispute{
		ID:         id,
		Challenger: challenger,
		Business:   business,
		Period:     trimmedPeriod,
		Kind:       trimmedKind,
		Evidence:   strings.TrimSpace(evidence),
		Status:     uint8(DisputeOpen),
		OpenedAt:   uint64(e.now()),
	}
	if err := e.state.KVPut(disputeKey(id), stored); err != nil {
		return 0, err
	}
	if err := e.state.KVAppend(disputeAttestationIndexKey(business, trimmedPeriod), disputeIDBytes(id)); err != nil {
		return 0, err
	}
	if err := e.state.KVAppend(disputeChallengerIndexKey(challenger), disputeIDBytes(id)); err != nil {
		return 0, err
	}
	e.emit(NewDisputeOpenedEvent(stored.toDispute()))
	return id, nil
}

// ResolveDispute attaches an outcome to an open dispute and moves it to
// Resolved. The resolver must be the registry admin or carry the arbiter role.
func (e *Engine) ResolveDispute(id uint64, resolver [20]byte, outcome, notes string) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	stored, err := e.loadDispute(id)
	if err != nil {
		return err
	}
	if DisputeStatus(stored.Status) != DisputeOpen {
		return fmt.Errorf("%w: cannot resolve in status %s", ErrDisputeWrongStatus, DisputeStatus(stored.Status))
	}
	admin, err := e.Admin()
	if err != nil {
		return err
	}
	if resolver != admin && !e.state.HasRole(RoleArbiter, resolver[:]) {
		return ErrResolverNotAllowed
	}
	trimmedOutcome := strings.TrimSpace(outcome)
	if trimmedOutcome == "" {
		return fmt.Errorf("%w: outcome required", ErrInvalidDispute)
	}
	stored.Status = uint8(DisputeResolved)
	stored.Resolved = true
	stored.Resolver = resolver
	stored.Outcome = trimmedOutcome
	stored.ResolvedAt = uint64(e.now())
	stored.Notes = strings.TrimSpace(notes)
	if err := e.state.KVPut(disputeKey(id), stored); err != nil {
		return err
	}
	e.emit(NewDisputeResolvedEvent(stored.toDispute()))
	return nil
}

// CloseDispute finalises a resolved dispute. Any caller may close; the
// resolution itself is immutable once closed.
func (e *Engine) CloseDispute(id uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	stored, err := e.loadDispute(id)
	if err != nil {
		return err
	}
	if DisputeStatus(stored.Status) != DisputeResolved {
		return fmt.Errorf("%w: cannot close in status %s", ErrDisputeWrongStatus, DisputeStatus(stored.Status))
	}
	stored.Status = uint8(DisputeClosed)
	if err := e.state.KVPut(disputeKey(id), stored); err != nil {
		return err
	}
	e.emit(NewDisputeClosedEvent(stored.toDispute()))
	return nil
}

// Dispute retrieves a dispute by id.
func (e *Engine) Dispute(id uint64) (*Dispute, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	stored := new(storedDispute)
	ok, err := e.state.KVGet(disputeKey(id), stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return stored.toDispute(), true, nil
}

// DisputesByAttestation returns the ids of all disputes ever opened against
// (business, period), in creation order. The index is append-only.
func (e *Engine) DisputesByAttestation(business [20]byte, period string) ([]uint64, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.disputeIndex(disputeAttestationIndexKey(business, strings.TrimSpace(period)))
}

// DisputesByChallenger returns the ids of all disputes ever opened by the
// challenger, in creation order.
func (e *Engine) DisputesByChallenger(challenger [20]byte) ([]uint64, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.disputeIndex(disputeChallengerIndexKey(challenger))
}

func (e *Engine) disputeIndex(key []byte) ([]uint64, error) {
	var raw [][]byte
	if err := e.state.KVGetList(key, &raw); err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(raw))
	for _, entry := range raw {
		if len(entry) != 8 {
			continue
		}
		ids = append(ids, binary.BigEndian.Uint64(entry))
	}
	return ids, nil
}

// AddArbiter grants dispute-resolution rights to the address. Admin only.
func (e *Engine) AddArbiter(caller, arbiter [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	return e.state.SetRole(RoleArbiter, arbiter[:])
}

// RemoveArbiter withdraws dispute-resolution rights. Admin only.
func (e *Engine) RemoveArbiter(caller, arbiter [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	return e.state.RemoveRole(RoleArbiter, arbiter[:])
}

// IsArbiter reports whether the address carries the arbiter role.
func (e *Engine) IsArbiter(addr [20]byte) bool {
	if e == nil || e.state == nil {
		return false
	}
	return e.state.HasRole(RoleArbiter, addr[:])
}
