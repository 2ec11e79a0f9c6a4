package attest

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"veritasor/core/events"
	"veritasor/core/types"
)

// RoleAnalytics is the role carried by addresses allowed to write anomaly
// records.
const RoleAnalytics = "ROLE_ATTEST_ANALYTICS"

var errNilState = errors.New("attest: engine state not configured")

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVHas(key []byte) (bool, error)
	Transfer(from, to []byte, symbol string, amount *big.Int) error
	TokenExists(symbol string) bool
	HasRole(role string, addr []byte) bool
	SetRole(role string, addr []byte) error
	RemoveRole(role string, addr []byte) error
}

type attestEvent struct {
	evt *types.Event
}

func (e attestEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e attestEvent) Event() *types.Event { return e.evt }

// Engine wires the attestation registry and its dynamic fee schedule with
// external state and event emitters.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine creates an attestation engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

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
	e.emitter.Emit(attestEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// Initialize performs the one-time admin bootstrap. Every admin-gated
// operation fails until this has been called.
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

type storedAttestation struct {
	Root      [32]byte
	Timestamp uint64
	Version   uint32
	FeePaid   *big.Int
}

// Submit records a revenue attestation for (business, period). The submission
// fee is collected first; a failed fee transfer aborts the whole call before
// any state is written. The usage counter increments on every successful
// submission, fees enabled or not.
func (e *Engine) Submit(business [20]byte, period string, root [32]byte, timestamp uint64, version uint32) (*Attestation, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	normalized, err := NormalizePeriod(period)
	if err != nil {
		return nil, err
	}
	key := attestationKey(business, normalized)
	exists, err := e.state.KVHas(key)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: business %x period %s", ErrAttestationExists, business, normalized)
	}

	feePaid, err := e.collectFee(business)
	if err != nil {
		return nil, err
	}
	if err := e.incrementUsageCount(business); err != nil {
		return nil, err
	}

	stored := storedAttestation{
		Root:      root,
		Timestamp: timestamp,
		Version:   version,
		FeePaid:   feePaid,
	}
	if err := e.state.KVPut(key, &stored); err != nil {
		return nil, err
	}
	att := &Attestation{
		Business:  business,
		Period:    normalized,
		Root:      root,
		Timestamp: timestamp,
		Version:   version,
		FeePaid:   new(big.Int).Set(feePaid),
	}
	e.emit(NewSubmittedEvent(att))
	return att, nil
}

// Get returns the stored attestation for (business, period), if any.
func (e *Engine) Get(business [20]byte, period string) (*Attestation, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	normalized, err := NormalizePeriod(period)
	if err != nil {
		return nil, false, err
	}
	var stored storedAttestation
	ok, err := e.state.KVGet(attestationKey(business, normalized), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	att := &Attestation{
		Business:  business,
		Period:    normalized,
		Root:      stored.Root,
		Timestamp: stored.Timestamp,
		Version:   stored.Version,
		FeePaid:   stored.FeePaid,
	}
	if att.FeePaid == nil {
		att.FeePaid = big.NewInt(0)
	}
	return att, true, nil
}

// Verify reports whether an attestation exists for (business, period) and its
// stored root matches the supplied one.
func (e *Engine) Verify(business [20]byte, period string, root [32]byte) (bool, error) {
	att, ok, err := e.Get(business, period)
	if err != nil || !ok {
		return false, err
	}
	return att.Root == root, nil
}

// Revoke flags an existing attestation as revoked. The attestation record
// itself is left untouched; downstream consumers observe the flag through
// IsRevoked. Admin only.
func (e *Engine) Revoke(caller [20]byte, business [20]byte, period string, reason string) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	normalized, err := NormalizePeriod(period)
	if err != nil {
		return err
	}
	exists, err := e.state.KVHas(attestationKey(business, normalized))
	if err != nil {
		return err
	}
	if !exists {
		return ErrAttestationNotFound
	}
	revKey := revocationKey(business, normalized)
	revoked, err := e.state.KVHas(revKey)
	if err != nil {
		return err
	}
	if revoked {
		return ErrAttestationRevoked
	}
	rev := Revocation{
		RevokedAt: uint64(e.now()),
		RevokedBy: caller,
		Reason:    reason,
	}
	if err := e.state.KVPut(revKey, &rev); err != nil {
		return err
	}
	e.emit(NewRevokedEvent(business, normalized, &rev))
	return nil
}

// IsRevoked reports whether the attestation for (business, period) carries a
// revocation marker.
func (e *Engine) IsRevoked(business [20]byte, period string) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	normalized, err := NormalizePeriod(period)
	if err != nil {
		return false, err
	}
	return e.state.KVHas(revocationKey(business, normalized))
}

// AddAuthorizedAnalytics grants anomaly-writer rights to the address. Admin
// only.
func (e *Engine) AddAuthorizedAnalytics(caller, analytics [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	return e.state.SetRole(RoleAnalytics, analytics[:])
}

// RemoveAuthorizedAnalytics withdraws anomaly-writer rights. Admin only.
func (e *Engine) RemoveAuthorizedAnalytics(caller, analytics [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	return e.state.RemoveRole(RoleAnalytics, analytics[:])
}

// IsAuthorizedAnalytics reports whether the address may write anomaly records.
func (e *Engine) IsAuthorizedAnalytics(addr [20]byte) bool {
	if e == nil || e.state == nil {
		return false
	}
	return e.state.HasRole(RoleAnalytics, addr[:])
}

// SetAnomaly stores analytics flags and a risk score for an existing
// attestation. Only addresses in the authorized-analytics set may call this.
// The attestation record is never modified.
func (e *Engine) SetAnomaly(updater [20]byte, business [20]byte, period string, flags uint32, score uint32) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if !e.state.HasRole(RoleAnalytics, updater[:]) {
		return ErrUpdaterNotAuthorized
	}
	normalized, err := NormalizePeriod(period)
	if err != nil {
		return err
	}
	exists, err := e.state.KVHas(attestationKey(business, normalized))
	if err != nil {
		return err
	}
	if !exists {
		return ErrAttestationNotFound
	}
	if score > AnomalyScoreMax {
		return fmt.Errorf("%w: %d", ErrScoreOutOfRange, score)
	}
	record := AnomalyRecord{Flags: flags, Score: score}
	if err := e.state.KVPut(anomalyKey(business, normalized), &record); err != nil {
		return err
	}
	e.emit(NewAnomalyEvent(business, normalized, &record))
	return nil
}

// GetAnomaly returns the anomaly record for (business, period), if set.
func (e *Engine) GetAnomaly(business [20]byte, period string) (*AnomalyRecord, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	normalized, err := NormalizePeriod(period)
	if err != nil {
		return nil, false, err
	}
	record := new(AnomalyRecord)
	ok, err := e.state.KVGet(anomalyKey(business, normalized), record)
	if err != nil || !ok {
		return nil, false, err
	}
	return record, true, nil
}
