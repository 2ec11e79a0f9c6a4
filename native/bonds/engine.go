package bonds

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"veritasor/core/events"
	"veritasor/core/types"
)

const bpsDenominator = 10_000

var errNilState = errors.New("bonds: engine state not configured")

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVHas(key []byte) (bool, error)
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
	Transfer(from, to []byte, symbol string, amount *big.Int) error
	TokenExists(symbol string) bool
	HasRole(role string, addr []byte) bool
	SetRole(role string, addr []byte) error
	RemoveRole(role string, addr []byte) error
}

// AttestationSource is the synchronous lookup a redemption performs against
// the attestation registry. A failed lookup aborts the redemption.
type AttestationSource interface {
	HasAttestation(business [20]byte, period string) (bool, error)
	IsRevoked(business [20]byte, period string) (bool, error)
}

type bondEvent struct {
	evt *types.Event
}

func (e bondEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e bondEvent) Event() *types.Event { return e.evt }

// Engine drives bond issuance, redemption settlement, and the dispute
// lifecycle against external state.
type Engine struct {
	state        engineState
	attestations AttestationSource
	emitter      events.Emitter
	nowFn        func() int64
}

// NewEngine creates a bond engine with a no-op emitter. Callers can override
// the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAttestationSource configures the attestation registry consulted during
// redemptions.
func (e *Engine) SetAttestationSource(src AttestationSource) { e.attestations = src }

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(bondEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// Initialize performs the one-time admin bootstrap for the bond registry.
func (e *Engine) Initialize(admin [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	exists, err := e.state.KVHas(adminKey())
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyInitialized
	}
	return e.state.KVPut(adminKey(), admin)
}

// Admin returns the configured admin address.
func (e *Engine) Admin() ([20]byte, error) {
	var admin [20]byte
	if e == nil || e.state == nil {
		return admin, errNilState
	}
	ok, err := e.state.KVGet(adminKey(), &admin)
	if err != nil {
		return admin, err
	}
	if !ok {
		return admin, ErrNotInitialized
	}
	return admin, nil
}

func (e *Engine) requireAdmin(caller [20]byte) error {
	admin, err := e.Admin()
	if err != nil {
		return err
	}
	if caller != admin {
		return ErrUnauthorized
	}
	return nil
}

func (e *Engine) nextBondID() (uint64, error) {
	var counter uint64
	if _, err := e.state.KVGet(bondCounterKey(), &counter); err != nil {
		return 0, err
	}
	counter++
	if err := e.state.KVPut(bondCounterKey(), counter); err != nil {
		return 0, err
	}
	return counter, nil
}

// IssueBond validates the supplied terms and persists a new active bond along
// with its initial owner and a zeroed redemption total. Returns the assigned
// bond id.
func (e *Engine) IssueBond(issuer, initialOwner [20]byte, terms *Bond) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if terms == nil {
		return 0, fmt.Errorf("%w: nil bond", ErrInvalidBond)
	}
	if issuer == initialOwner {
		return 0, ErrOwnerMatchesIssuer
	}
	sanitized, err := SanitizeBond(terms)
	if err != nil {
		return 0, err
	}
	if !e.state.TokenExists(sanitized.Token) {
		return 0, fmt.Errorf("%w: token %s not registered", ErrInvalidBond, sanitized.Token)
	}
	id, err := e.nextBondID()
	if err != nil {
		return 0, err
	}
	sanitized.ID = id
	sanitized.Issuer = issuer
	sanitized.Status = BondActive
	sanitized.IssuedAt = uint64(e.now())
	if err := e.state.KVPut(bondKey(id), sanitized); err != nil {
		return 0, err
	}
	if err := e.state.KVPut(ownerKey(id), initialOwner); err != nil {
		return 0, err
	}
	if err := e.state.KVPut(totalRedeemedKey(id), big.NewInt(0)); err != nil {
		return 0, err
	}
	e.emit(NewIssuedEvent(sanitized, initialOwner))
	return id, nil
}

// Bond retrieves the bond record for the provided id.
func (e *Engine) Bond(id uint64) (*Bond, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	bond := new(Bond)
	ok, err := e.state.KVGet(bondKey(id), bond)
	if err != nil || !ok {
		return nil, false, err
	}
	return bond, true, nil
}

// Owner returns the current holder of the bond.
func (e *Engine) Owner(id uint64) ([20]byte, bool, error) {
	var owner [20]byte
	if e == nil || e.state == nil {
		return owner, false, errNilState
	}
	ok, err := e.state.KVGet(ownerKey(id), &owner)
	return owner, ok, err
}

// Redemption returns the settlement record for (bond, period), if any.
func (e *Engine) Redemption(id uint64, period string) (*RedemptionRecord, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	record := new(RedemptionRecord)
	ok, err := e.state.KVGet(redemptionKey(id, strings.TrimSpace(period)), record)
	if err != nil || !ok {
		return nil, false, err
	}
	return record, true, nil
}

// TotalRedeemed returns the running payment sum for the bond.
func (e *Engine) TotalRedeemed(id uint64) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	total := new(big.Int)
	ok, err := e.state.KVGet(totalRedeemedKey(id), total)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return total, nil
}

// RemainingValue returns the face value still outstanding for the bond.
func (e *Engine) RemainingValue(id uint64) (*big.Int, error) {
	bond, ok, err := e.Bond(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrBondNotFound
	}
	total, err := e.TotalRedeemed(id)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Sub(bond.FaceValue, total), nil
}

// calculateRedemption computes the nominal payment for one period under the
// bond's structure. All arithmetic runs in big.Int so revenue*bps cannot wrap.
func calculateRedemption(bond *Bond, attestedRevenue *big.Int) *big.Int {
	switch bond.Structure {
	case StructureFixed:
		return cloneBigInt(bond.MinPayment)
	case StructureRevenueLinked:
		share := new(big.Int).Mul(attestedRevenue, big.NewInt(int64(bond.RevenueShareBps)))
		share.Div(share, big.NewInt(bpsDenominator))
		if share.Cmp(bond.MinPayment) < 0 {
			return cloneBigInt(bond.MinPayment)
		}
		if share.Cmp(bond.MaxPayment) > 0 {
			return cloneBigInt(bond.MaxPayment)
		}
		return share
	case StructureHybrid:
		component := new(big.Int).Mul(attestedRevenue, big.NewInt(int64(bond.RevenueShareBps)))
		component.Div(component, big.NewInt(bpsDenominator))
		total := new(big.Int).Add(bond.MinPayment, component)
		if total.Cmp(bond.MaxPayment) > 0 {
			return cloneBigInt(bond.MaxPayment)
		}
		return total
	default:
		return big.NewInt(0)
	}
}

// Redeem settles one period of an active bond against attested revenue.
//
// The sequence mirrors the settlement contract: active check, double-payment
// guard, attestation existence and revocation check, structure formula,
// face-value headroom cap, token transfer from issuer to the current owner,
// then record + total bookkeeping and the automatic FullyRedeemed transition.
//
// The period is canonicalized with the same trim rule the attestation registry
// applies, so whitespace variants of one period share a single redemption slot.
func (e *Engine) Redeem(bondID uint64, period string, attestedRevenue *big.Int) (*RedemptionRecord, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.attestations == nil {
		return nil, ErrNoAttestationSource
	}
	period = strings.TrimSpace(period)
	if period == "" {
		return nil, ErrInvalidPeriod
	}
	bond, ok, err := e.Bond(bondID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrBondNotFound
	}
	if bond.Status != BondActive {
		return nil, fmt.Errorf("%w: status %s", ErrBondNotActive, bond.Status)
	}
	if attestedRevenue == nil || attestedRevenue.Sign() < 0 {
		return nil, ErrInvalidRevenue
	}

	exists, err := e.state.KVHas(redemptionKey(bondID, period))
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: bond %d period %s", ErrAlreadyRedeemed, bondID, period)
	}

	hasAtt, err := e.attestations.HasAttestation(bond.Issuer, period)
	if err != nil {
		return nil, err
	}
	if !hasAtt {
		return nil, fmt.Errorf("%w: issuer %x period %s", ErrAttestationMissing, bond.Issuer, period)
	}
	revoked, err := e.attestations.IsRevoked(bond.Issuer, period)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrAttestationRevoked
	}

	total, err := e.TotalRedeemed(bondID)
	if err != nil {
		return nil, err
	}
	headroom := new(big.Int).Sub(bond.FaceValue, total)
	if headroom.Sign() <= 0 {
		return nil, ErrFullyRedeemed
	}
	nominal := calculateRedemption(bond, attestedRevenue)
	actual := nominal
	if actual.Cmp(headroom) > 0 {
		actual = headroom
	}

	if actual.Sign() > 0 {
		owner, ok, err := e.Owner(bondID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrBondNotFound
		}
		if err := e.state.Transfer(bond.Issuer[:], owner[:], bond.Token, actual); err != nil {
			return nil, fmt.Errorf("bonds: redemption transfer failed: %w", err)
		}
	}

	record := &RedemptionRecord{
		BondID:          bondID,
		Period:          period,
		AttestedRevenue: cloneBigInt(attestedRevenue),
		Amount:          cloneBigInt(actual),
		RedeemedAt:      uint64(e.now()),
	}
	if err := e.state.KVPut(redemptionKey(bondID, period), record); err != nil {
		return nil, err
	}
	newTotal := new(big.Int).Add(total, actual)
	if err := e.state.KVPut(totalRedeemedKey(bondID), newTotal); err != nil {
		return nil, err
	}
	if newTotal.Cmp(bond.FaceValue) >= 0 {
		bond.Status = BondFullyRedeemed
		if err := e.state.KVPut(bondKey(bondID), bond); err != nil {
			return nil, err
		}
		e.emit(NewFullyRedeemedEvent(bond))
	}
	e.emit(NewRedeemedEvent(record))
	return record.Clone(), nil
}

// TransferOwnership moves the bond to a new holder. Only the current owner may
// transfer, and never to themselves.
func (e *Engine) TransferOwnership(bondID uint64, currentOwner, newOwner [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	stored, ok, err := e.Owner(bondID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrBondNotFound
	}
	if stored != currentOwner {
		return ErrNotOwner
	}
	if currentOwner == newOwner {
		return ErrSelfTransfer
	}
	if err := e.state.KVPut(ownerKey(bondID), newOwner); err != nil {
		return err
	}
	e.emit(NewOwnershipTransferredEvent(bondID, currentOwner, newOwner))
	return nil
}

// MarkDefaulted transitions an active bond to Defaulted. The transition is
// terminal and leaves past redemptions untouched. Admin only.
func (e *Engine) MarkDefaulted(caller [20]byte, bondID uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	bond, ok, err := e.Bond(bondID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrBondNotFound
	}
	if bond.Status != BondActive {
		return fmt.Errorf("%w: status %s", ErrBondNotActive, bond.Status)
	}
	bond.Status = BondDefaulted
	if err := e.state.KVPut(bondKey(bondID), bond); err != nil {
		return err
	}
	e.emit(NewDefaultedEvent(bond))
	return nil
}
