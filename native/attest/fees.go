package attest

import (
	"fmt"
	"math/big"
	"strings"
)

const bpsDenominator = 10_000

// ConfigureFees replaces the fee schedule atomically. Admin only.
func (e *Engine) ConfigureFees(caller [20]byte, token string, collector [20]byte, baseFee *big.Int, enabled bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	normalized := strings.ToUpper(strings.TrimSpace(token))
	if normalized == "" {
		return fmt.Errorf("%w: token required", ErrInvalidFeeConfig)
	}
	if !e.state.TokenExists(normalized) {
		return fmt.Errorf("%w: token %s not registered", ErrInvalidFeeConfig, normalized)
	}
	if baseFee == nil || baseFee.Sign() < 0 {
		return fmt.Errorf("%w: base fee must be non-negative", ErrInvalidFeeConfig)
	}
	config := FeeConfig{
		Token:     normalized,
		Collector: collector,
		BaseFee:   new(big.Int).Set(baseFee),
		Enabled:   enabled,
	}
	if err := e.state.KVPut(feeConfigKey(), &config); err != nil {
		return err
	}
	e.emit(NewFeesConfiguredEvent(&config))
	return nil
}

// SetFeeEnabled toggles fee collection without touching the rest of the
// schedule. Fails if no schedule exists yet. Admin only.
func (e *Engine) SetFeeEnabled(caller [20]byte, enabled bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	config, ok, err := e.feeConfig()
	if err != nil {
		return err
	}
	if !ok {
		return ErrFeesNotConfigured
	}
	config.Enabled = enabled
	if err := e.state.KVPut(feeConfigKey(), config); err != nil {
		return err
	}
	e.emit(NewFeesConfiguredEvent(config))
	return nil
}

// SetTierDiscount assigns the basis-point discount for a tier level. Tiers are
// open-ended upward; tier 0 is the default for unassigned businesses. Admin
// only.
func (e *Engine) SetTierDiscount(caller [20]byte, tier uint32, discountBps uint32) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if discountBps > bpsDenominator {
		return fmt.Errorf("%w: tier discount bps out of range", ErrInvalidFeeConfig)
	}
	return e.state.KVPut(tierDiscountKey(tier), discountBps)
}

// SetBusinessTier assigns a business to a fee tier. Admin only.
func (e *Engine) SetBusinessTier(caller [20]byte, business [20]byte, tier uint32) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	return e.state.KVPut(businessTierKey(business), tier)
}

// SetVolumeBrackets replaces the volume discount table atomically. The table
// is validated before any write so a malformed table never partially lands.
// Admin only.
func (e *Engine) SetVolumeBrackets(caller [20]byte, thresholds []uint64, discounts []uint32) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	brackets := &VolumeBrackets{
		Thresholds: append([]uint64(nil), thresholds...),
		Discounts:  append([]uint32(nil), discounts...),
	}
	if err := brackets.Validate(); err != nil {
		return err
	}
	return e.state.KVPut(bracketsKey(), brackets)
}

// FeeConfig returns the current fee schedule, if configured.
func (e *Engine) FeeConfig() (*FeeConfig, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	return e.feeConfig()
}

func (e *Engine) feeConfig() (*FeeConfig, bool, error) {
	config := new(FeeConfig)
	ok, err := e.state.KVGet(feeConfigKey(), config)
	if err != nil || !ok {
		return nil, false, err
	}
	if config.BaseFee == nil {
		config.BaseFee = big.NewInt(0)
	}
	return config, true, nil
}

// BusinessTier returns the tier assigned to a business (0 if unset).
func (e *Engine) BusinessTier(business [20]byte) (uint32, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	var tier uint32
	if _, err := e.state.KVGet(businessTierKey(business), &tier); err != nil {
		return 0, err
	}
	return tier, nil
}

// BusinessCount returns the cumulative attestation count for a business.
func (e *Engine) BusinessCount(business [20]byte) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	var count uint64
	if _, err := e.state.KVGet(usageCountKey(business), &count); err != nil {
		return 0, err
	}
	return count, nil
}

func (e *Engine) incrementUsageCount(business [20]byte) error {
	count, err := e.BusinessCount(business)
	if err != nil {
		return err
	}
	return e.state.KVPut(usageCountKey(business), count+1)
}

func (e *Engine) tierDiscount(business [20]byte) (uint32, error) {
	tier, err := e.BusinessTier(business)
	if err != nil {
		return 0, err
	}
	var bps uint32
	if _, err := e.state.KVGet(tierDiscountKey(tier), &bps); err != nil {
		return 0, err
	}
	return bps, nil
}

func (e *Engine) volumeDiscount(count uint64) (uint32, error) {
	brackets := new(VolumeBrackets)
	ok, err := e.state.KVGet(bracketsKey(), brackets)
	if err != nil || !ok {
		return 0, err
	}
	var bps uint32
	for i, threshold := range brackets.Thresholds {
		if threshold <= count {
			bps = brackets.Discounts[i]
		}
	}
	return bps, nil
}

// ComputeFee applies tier and volume discounts to the base fee. Discounts
// stack additively and are capped at 100%; integer division truncates toward
// zero so rounding always favours the payer.
func ComputeFee(baseFee *big.Int, tierBps, volumeBps uint32) *big.Int {
	if baseFee == nil || baseFee.Sign() <= 0 {
		return big.NewInt(0)
	}
	effective := uint64(tierBps) + uint64(volumeBps)
	if effective > bpsDenominator {
		effective = bpsDenominator
	}
	fee := new(big.Int).Mul(baseFee, big.NewInt(int64(bpsDenominator-effective)))
	return fee.Div(fee, big.NewInt(bpsDenominator))
}

// QuoteFee prices the next attestation for a business without side effects.
// The volume lookup uses the counter as it stands now, i.e. before the pending
// submission: discounts are earned by past volume. Returns zero when fees are
// disabled or unconfigured.
func (e *Engine) QuoteFee(business [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	config, ok, err := e.feeConfig()
	if err != nil {
		return nil, err
	}
	if !ok || !config.Enabled {
		return big.NewInt(0), nil
	}
	tierBps, err := e.tierDiscount(business)
	if err != nil {
		return nil, err
	}
	count, err := e.BusinessCount(business)
	if err != nil {
		return nil, err
	}
	volumeBps, err := e.volumeDiscount(count)
	if err != nil {
		return nil, err
	}
	return ComputeFee(config.BaseFee, tierBps, volumeBps), nil
}

// collectFee charges the submission fee during Submit. A zero quote performs
// no transfer; a failed transfer aborts the submission.
func (e *Engine) collectFee(business [20]byte) (*big.Int, error) {
	config, ok, err := e.feeConfig()
	if err != nil {
		return nil, err
	}
	if !ok || !config.Enabled {
		return big.NewInt(0), nil
	}
	fee, err := e.QuoteFee(business)
	if err != nil {
		return nil, err
	}
	if fee.Sign() > 0 {
		collector := config.Collector
		if err := e.state.Transfer(business[:], collector[:], config.Token, fee); err != nil {
			return nil, fmt.Errorf("attest: fee transfer failed: %w", err)
		}
	}
	return fee, nil
}
